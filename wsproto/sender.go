// File: wsproto/sender.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package wsproto

import (
	"github.com/coreproto/wscore/wsproto/permessage"
)

// Sink is the destination a Sender writes encoded frames to. An Endpoint
// supplies one backed by the underlying connection (see package wsnet);
// tests can supply a simple bytes.Buffer-backed Sink.
type Sink interface {
	Write(p []byte) (int, error)
}

// BufferedSink is a Sink that can report how much of what it has been
// given to write is still unacknowledged by the peer (SPEC_FULL.md's
// domain-stack BytesBuffered component, backed on Linux by a TIOCOUTQ
// ioctl; see package wsnet).
type BufferedSink interface {
	Sink
	BytesBuffered() (int, error)
}

// Sender builds and writes RFC 6455 frames for one endpoint. It holds no
// goroutines or locks: like Receiver, it is driven synchronously by its
// owning Endpoint.
type Sender struct {
	sink Sink
	role Role
	ext  *permessage.Session

	// CompressionThreshold is the minimum message size, in bytes, that
	// triggers permessage-deflate compression of a message written by
	// Send. Messages shorter than this are sent uncompressed even when
	// an extension session is active (SPEC_FULL.md §4.2); streamed
	// messages are never compressed (see writeFragment).
	CompressionThreshold int

	streaming bool
}

// NewSender constructs a Sender for an endpoint of the given role, writing
// encoded frames to sink. ext may be nil if permessage-deflate was not
// negotiated.
func NewSender(sink Sink, role Role, ext *permessage.Session) *Sender {
	return &Sender{sink: sink, role: role, ext: ext, CompressionThreshold: 256}
}

func (s *Sender) mask() bool {
	return s.role == RoleClient
}

// Send writes data as a single complete, unfragmented message.
func (s *Sender) Send(opcode Opcode, data []byte) error {
	if s.streaming {
		return ErrStreamInProgress
	}
	return s.writeMessage(opcode, data, true)
}

// StreamStart begins a fragmented message with the first fragment's
// payload (which may be empty). Opcode must be OpText or OpBinary.
func (s *Sender) StreamStart(opcode Opcode, data []byte) error {
	if s.streaming {
		return ErrStreamInProgress
	}
	if opcode != OpText && opcode != OpBinary {
		return ErrInvalidOptions
	}
	s.streaming = true
	return s.writeFragment(opcode, data, false)
}

// StreamContinue writes an intermediate fragment of the message started
// by StreamStart.
func (s *Sender) StreamContinue(data []byte) error {
	if !s.streaming {
		return ErrInvalidOptions
	}
	return s.writeFragment(OpContinuation, data, false)
}

// StreamEnd writes the final fragment of the message started by
// StreamStart and ends the stream.
func (s *Sender) StreamEnd(data []byte) error {
	if !s.streaming {
		return ErrInvalidOptions
	}
	err := s.writeFragment(OpContinuation, data, true)
	s.streaming = false
	return err
}

// Ping writes an unfragmented ping control frame. data must be at most
// MaxControlPayload bytes.
func (s *Sender) Ping(data []byte) error {
	if len(data) > MaxControlPayload {
		return ErrInvalidOptions
	}
	return s.writeMessage(OpPing, data, true)
}

// Pong writes an unfragmented pong control frame. data must be at most
// MaxControlPayload bytes.
func (s *Sender) Pong(data []byte) error {
	if len(data) > MaxControlPayload {
		return ErrInvalidOptions
	}
	return s.writeMessage(OpPong, data, true)
}

// Close writes a close control frame carrying code and reason. An empty
// reason with code 0 writes a close frame with no payload.
func (s *Sender) Close(code CloseCode, reason string) error {
	var payload []byte
	if code != 0 {
		payload = make([]byte, 2+len(reason))
		payload[0] = byte(code >> 8)
		payload[1] = byte(code)
		copy(payload[2:], reason)
	}
	return s.writeMessage(OpClose, payload, true)
}

// writeMessage writes an unfragmented data or control frame, applying
// permessage-deflate to data frames of at least CompressionThreshold bytes.
func (s *Sender) writeMessage(opcode Opcode, data []byte, fin bool) error {
	if opcode.IsControl() {
		return s.writeFrame(fin, false, opcode, data)
	}

	rsv1 := false
	if s.ext != nil && len(data) >= s.CompressionThreshold {
		compressed, err := s.ext.Compress(data)
		if err == nil {
			data = compressed
			rsv1 = true
		}
	}
	return s.writeFrame(fin, rsv1, opcode, data)
}

// writeFragment writes one fragment of a streamed message. Compression
// requires the whole message up front (DEFLATE needs the complete input to
// produce a sync-flush block), which a caller streaming a message a chunk
// at a time cannot supply; streamed messages are therefore always sent
// uncompressed, with RSV1 clear on every fragment, regardless of whether an
// extension session is active.
func (s *Sender) writeFragment(opcode Opcode, data []byte, fin bool) error {
	if opcode == OpContinuation {
		return s.writeFrame(fin, false, OpContinuation, data)
	}
	return s.writeFrame(fin, false, opcode, data)
}

func (s *Sender) writeFrame(fin, rsv1 bool, opcode Opcode, payload []byte) error {
	mask := s.mask()
	var key [4]byte
	if mask {
		key = newMaskKey()
	}

	buf := make([]byte, headerLen(len(payload), mask)+len(payload))
	off := encodeHeader(buf, fin, rsv1, opcode, len(payload), mask, key)
	copy(buf[off:], payload)
	if mask {
		maskBytes(buf[off:], key)
	}

	_, err := s.sink.Write(buf)
	return err
}
