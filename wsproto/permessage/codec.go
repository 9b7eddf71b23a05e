// File: wsproto/permessage/codec.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package permessage

import (
	"bytes"
	"compress/flate"
	"errors"
	"io"
)

// deflateTrailer is the 4-byte sequence RFC 7692 Section 7.2.1 requires
// senders to strip from the end of a compressed payload (and receivers to
// re-append before inflating): the empty-block sync-flush trailer DEFLATE
// always produces.
var deflateTrailer = []byte{0x00, 0x00, 0xff, 0xff}

// ErrTooLarge is returned by Decompress when the inflated message would
// exceed the caller-supplied maxPayload.
var ErrTooLarge = errors.New("permessage: decompressed message exceeds limit")

// Session holds the negotiated permessage-deflate parameters for one
// endpoint and the compressor/decompressor state that persists across
// messages when context takeover is in effect.
type Session struct {
	isServer bool
	cfg      Config

	compressor   *flate.Writer
	compressBuf  *bytes.Buffer
	noTakeoverTx bool

	decompressor io.ReadCloser
	rxSrc        *messageSource
	rxWindow     []byte // last 32 KiB of inflated output, under context takeover
	noTakeoverRx bool
}

// messageSource is the byte source the Session's *flate.Reader reads
// from; Decompress points it at each new message in turn.
type messageSource struct {
	r io.Reader
}

func (s *messageSource) Read(p []byte) (int, error) {
	return s.r.Read(p)
}

func newSession(isServer bool, cfg Config) *Session {
	s := &Session{isServer: isServer, cfg: cfg}
	if isServer {
		s.noTakeoverTx = cfg.ServerNoContextTakeover
		s.noTakeoverRx = cfg.ClientNoContextTakeover
	} else {
		s.noTakeoverTx = cfg.ClientNoContextTakeover
		s.noTakeoverRx = cfg.ServerNoContextTakeover
	}
	return s
}

// Compress deflates data, sync-flushes, and strips the trailing empty
// block, returning a payload suitable for an RSV1-marked frame.
//
// When context takeover is negotiated the same *flate.Writer is reused
// across calls without ever being Reset, so its sliding window keeps
// referencing bytes from earlier messages per RFC 7692 Section 7.2.2.
// A new writer is built only for the first message and, under a
// negotiated no-context-takeover, for every message, so each one starts
// from an empty window.
func (s *Session) Compress(data []byte) ([]byte, error) {
	if s.compressor == nil || s.noTakeoverTx {
		s.compressBuf = new(bytes.Buffer)
		w, err := flate.NewWriter(s.compressBuf, flate.DefaultCompression)
		if err != nil {
			return nil, err
		}
		s.compressor = w
	} else {
		s.compressBuf.Reset()
	}
	if _, err := s.compressor.Write(data); err != nil {
		return nil, err
	}
	if err := s.compressor.Flush(); err != nil {
		return nil, err
	}
	out := s.compressBuf.Bytes()
	out = bytes.TrimSuffix(out, deflateTrailer)
	return append([]byte(nil), out...), nil
}

// Decompress re-appends the stripped trailer and inflates data, refusing
// to produce more than maxPayload bytes (maxPayload<=0 means unlimited).
// A final empty stored block is appended after the trailer so the reader
// ends the message with io.EOF.
func (s *Session) Decompress(data []byte, maxPayload int64) ([]byte, error) {
	src := make([]byte, 0, len(data)+len(deflateTrailer)+5)
	src = append(src, data...)
	src = append(src, deflateTrailer...)
	src = append(src, 0x01, 0x00, 0x00, 0xff, 0xff)

	r, err := s.decompressorFor(src)
	if err != nil {
		return nil, err
	}

	var out bytes.Buffer
	if !s.noTakeoverRx {
		defer func() {
			s.rxWindow = append(s.rxWindow, out.Bytes()...)
			if len(s.rxWindow) > 1<<15 {
				s.rxWindow = s.rxWindow[len(s.rxWindow)-1<<15:]
			}
		}()
	}
	limit := maxPayload
	if limit <= 0 {
		if _, err := out.ReadFrom(r); err != nil {
			return nil, err
		}
		return out.Bytes(), nil
	}

	n, err := io.CopyN(&out, r, limit+1)
	if err != nil && err != io.EOF {
		return nil, err
	}
	if n > limit {
		return nil, ErrTooLarge
	}
	return out.Bytes(), nil
}

// decompressorFor returns the flate reader to use for the next message.
// Under a negotiated no-context-takeover (and for the first message) a
// new reader is built, so the message decodes against an empty window.
// Otherwise the existing reader is pointed at the new message and
// Reset with rxWindow as its dictionary, which presets its sliding
// window with the output of earlier messages.
func (s *Session) decompressorFor(src []byte) (io.Reader, error) {
	if s.noTakeoverRx || s.decompressor == nil {
		s.rxSrc = &messageSource{r: bytes.NewReader(src)}
		s.decompressor = flate.NewReader(s.rxSrc)
		return s.decompressor, nil
	}
	s.rxSrc.r = bytes.NewReader(src)
	if err := s.decompressor.(flate.Resetter).Reset(s.rxSrc, s.rxWindow); err != nil {
		return nil, err
	}
	return s.decompressor, nil
}
