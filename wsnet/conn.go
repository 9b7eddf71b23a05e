// File: wsnet/conn.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package wsnet

import (
	"net"

	"github.com/coreproto/wscore/wsproto"
)

// DefaultReadBufferSize is the chunk size Serve reads into when the
// caller does not specify one.
const DefaultReadBufferSize = 4096

// Conn adapts a net.Conn into the wsproto.BufferedSink an Endpoint writes
// to, and runs the read loop that feeds inbound bytes to it.
type Conn struct {
	raw         net.Conn
	readBufSize int
}

// NewConn wraps raw for use with an Endpoint. readBufSize of 0 selects
// DefaultReadBufferSize.
func NewConn(raw net.Conn, readBufSize int) *Conn {
	if readBufSize <= 0 {
		readBufSize = DefaultReadBufferSize
	}
	return &Conn{raw: raw, readBufSize: readBufSize}
}

// Write implements wsproto.Sink.
func (c *Conn) Write(p []byte) (int, error) {
	return c.raw.Write(p)
}

// BytesBuffered implements wsproto.BufferedSink via a platform-specific
// socket-buffer query (TIOCOUTQ on Linux; 0, nil elsewhere).
func (c *Conn) BytesBuffered() (int, error) {
	return bytesBuffered(c.raw)
}

// Serve reads from the connection until it fails or closes, feeding every
// chunk to ep. It returns the read error that ended the loop, or nil once
// ep is observed in StateClosed after a successful read. Serve does not
// close the connection itself.
func (c *Conn) Serve(ep *wsproto.Endpoint) error {
	buf := make([]byte, c.readBufSize)
	for {
		n, err := c.raw.Read(buf)
		if n > 0 {
			ep.Feed(buf[:n])
		}
		if err != nil {
			if ep.ReadyState() != wsproto.StateClosed {
				ep.Abort(err)
			}
			return err
		}
		if ep.ReadyState() == wsproto.StateClosed {
			return nil
		}
	}
}

// Close closes the underlying connection.
func (c *Conn) Close() error {
	return c.raw.Close()
}
