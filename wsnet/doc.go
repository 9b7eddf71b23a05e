// File: wsnet/doc.go
// Package wsnet adapts a net.Conn into the wsproto.Sink/BufferedSink
// surface an Endpoint writes to, and drives the read loop that feeds
// incoming bytes into an Endpoint.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package wsnet
