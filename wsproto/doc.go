// File: wsproto/doc.go
// Package wsproto implements the RFC 6455 WebSocket wire protocol: frame
// encoding/decoding, masking, message reassembly, and the endpoint lifecycle
// state machine (including the closing handshake and permessage-deflate
// integration via the permessage subpackage).
//
// The HTTP upgrade handshake, sub-protocol negotiation, and connection
// routing are out of scope: wsproto.Endpoint is constructed after upgrade,
// around an already-established byte stream.
//
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package wsproto
