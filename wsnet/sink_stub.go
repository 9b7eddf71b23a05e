//go:build !linux

// File: wsnet/sink_stub.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package wsnet

import "net"

// bytesBuffered has no portable equivalent to TIOCOUTQ outside Linux;
// callers get 0, nil rather than a platform-specific guess.
func bytesBuffered(conn net.Conn) (int, error) {
	return 0, nil
}
