// File: wsproto/receiver.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package wsproto

import (
	"sync/atomic"
	"unicode/utf8"

	"github.com/coreproto/wscore/wsproto/permessage"
)

// parseState names a step of the incremental frame parser (SPEC_FULL.md
// §4.1's state table).
type parseState int

const (
	stateHeader parseState = iota
	stateExtLen
	stateMaskKey
	statePayload
)

// Listener receives the typed events a Receiver (via its owning Endpoint)
// produces, in order. This is the "consumer interface with typed event
// variants" called for in SPEC_FULL.md §9, replacing an emitter with
// mutable callback slots.
type Listener interface {
	OnText(data []byte)
	OnBinary(data []byte)
	OnPing(data []byte)
	OnPong(data []byte)
	OnClose(code CloseCode, reason string, hasCode bool)
	OnError(err *ProtocolError)
}

// Receiver consumes arbitrary-length byte chunks and emits, in order,
// complete messages and control frames to a Listener. It never blocks: Add
// returns as soon as it has consumed (or buffered) the bytes handed to it.
type Receiver struct {
	listener   Listener
	role       Role
	maxPayload int64
	ext        *permessage.Session

	// terminal is set by Cleanup, which an Endpoint may call from a
	// goroutine other than the one driving Add (a close-timer callback
	// racing the reader goroutine's in-flight Add). It is the only
	// Receiver field Cleanup touches for that reason: atomic load/store
	// is enough to make the flag itself race-free, and Add re-checks it
	// between every parse step so a concurrent Cleanup is observed
	// promptly without Add ever touching a buffer Cleanup has freed.
	terminal atomic.Bool

	state parseState
	hdr   header
	need  int    // bytes still needed to complete the current state
	buf   []byte // scratch accumulator for header/length/mask fields

	// Message assembly state (data frames only; control frames never
	// disturb this).
	msgOpcode Opcode
	msgBuf    []byte
	msgRSV1   bool // compressed bit captured from the first fragment
	inMessage bool

	// Per-frame payload accumulation.
	frameBuf []byte
	frameGot int
}

// NewReceiver constructs a Receiver for an endpoint of the given role. ext
// may be nil if permessage-deflate was not negotiated. maxPayload of 0
// means unlimited.
func NewReceiver(role Role, maxPayload int64, ext *permessage.Session, listener Listener) *Receiver {
	return &Receiver{
		listener:   listener,
		role:       role,
		maxPayload: maxPayload,
		ext:        ext,
		state:      stateHeader,
		need:       2,
	}
}

// Add appends chunk to the Receiver's input and drives the parser as far
// as the available bytes allow. It tolerates a split at any byte boundary
// and is a no-op for an empty chunk or after Cleanup.
func (r *Receiver) Add(chunk []byte) {
	if r.terminal.Load() || len(chunk) == 0 {
		return
	}

	for len(chunk) > 0 {
		switch r.state {
		case stateHeader:
			chunk = r.feedFixed(chunk)
		case stateExtLen:
			chunk = r.feedExtLen(chunk)
		case stateMaskKey:
			chunk = r.feedMaskKey(chunk)
		case statePayload:
			chunk = r.feedPayload(chunk)
		}
		if r.terminal.Load() {
			return
		}
	}
}

// feedFixed accumulates the mandatory 2-byte header.
func (r *Receiver) feedFixed(chunk []byte) []byte {
	chunk = r.accumulate(chunk, 2)
	if len(r.buf) < 2 {
		return chunk
	}
	h, extLenBytes := decodeFixedHeader(r.buf[0], r.buf[1])
	r.buf = r.buf[:0]

	if h.rsv2 || h.rsv3 || (h.rsv1 && r.ext == nil) {
		r.fail(newProtoErr(ErrKindReservedBits, "RSV bit set without a matching negotiated extension"))
		return nil
	}
	if !h.opcode.valid() {
		r.fail(newProtoErr(ErrKindInvalidOpcode, h.opcode.String()))
		return nil
	}
	if h.opcode.IsControl() {
		if !h.fin {
			r.fail(newProtoErr(ErrKindFragmentedControl, h.opcode.String()))
			return nil
		}
		if h.rsv1 {
			r.fail(newProtoErr(ErrKindReservedBits, "control frames cannot be compressed"))
			return nil
		}
	}
	if h.opcode == OpContinuation && h.rsv1 {
		r.fail(newProtoErr(ErrKindReservedBits, "continuation frames must not carry RSV1"))
		return nil
	}

	r.hdr = h
	if extLenBytes > 0 {
		r.state = stateExtLen
		r.need = extLenBytes
		return chunk
	}
	return r.afterLength(chunk)
}

func (r *Receiver) feedExtLen(chunk []byte) []byte {
	chunk = r.accumulate(chunk, r.need)
	if len(r.buf) < r.need {
		return chunk
	}
	if r.need == 2 {
		r.hdr.payloadLen = decodeLen16(r.buf)
	} else {
		n := decodeLen64(r.buf)
		// Lenient on inbound (SPEC_FULL.md §9): a set high bit is ignored
		// rather than rejected, matching RFC 6455's permissive stance.
		r.hdr.payloadLen = n &^ (1 << 63)
	}
	r.buf = r.buf[:0]

	if r.hdr.opcode.IsControl() && r.hdr.payloadLen > MaxControlPayload {
		r.fail(newProtoErr(ErrKindOversizedControl, ""))
		return nil
	}
	return r.afterLength(chunk)
}

// afterLength runs the checks that depend only on the decoded length and
// advances to MASK_KEY or PAYLOAD.
func (r *Receiver) afterLength(chunk []byte) []byte {
	if !r.hdr.opcode.IsControl() {
		if err := r.checkSize(r.hdr.payloadLen); err != nil {
			r.fail(err)
			return nil
		}
	}
	if err := r.checkMaskDirection(r.hdr.masked); err != nil {
		r.fail(err)
		return nil
	}
	if r.hdr.masked {
		r.state = stateMaskKey
		r.need = 4
		return chunk
	}
	return r.startPayload(chunk)
}

func (r *Receiver) feedMaskKey(chunk []byte) []byte {
	chunk = r.accumulate(chunk, 4)
	if len(r.buf) < 4 {
		return chunk
	}
	copy(r.hdr.maskKey[:], r.buf)
	r.buf = r.buf[:0]
	return r.startPayload(chunk)
}

func (r *Receiver) startPayload(chunk []byte) []byte {
	r.frameBuf = make([]byte, r.hdr.payloadLen)
	r.frameGot = 0
	r.state = statePayload
	if r.hdr.payloadLen == 0 {
		return r.finishFrame(chunk)
	}
	return chunk
}

func (r *Receiver) feedPayload(chunk []byte) []byte {
	want := int(r.hdr.payloadLen) - r.frameGot
	n := want
	if n > len(chunk) {
		n = len(chunk)
	}
	copy(r.frameBuf[r.frameGot:], chunk[:n])
	r.frameGot += n
	chunk = chunk[n:]

	if r.frameGot < int(r.hdr.payloadLen) {
		return chunk
	}
	if r.hdr.masked {
		maskBytes(r.frameBuf, r.hdr.maskKey)
	}
	return r.finishFrame(chunk)
}

// finishFrame dispatches the completed frame and resets the parser to
// HEADER for the next one.
func (r *Receiver) finishFrame(chunk []byte) []byte {
	payload := r.frameBuf
	h := r.hdr
	r.frameBuf = nil
	r.frameGot = 0
	r.state = stateHeader
	r.need = 2

	if h.opcode.IsControl() {
		r.dispatchControl(h.opcode, payload)
		return chunk
	}
	if err := r.assemble(h, payload); err != nil {
		r.fail(err)
		return nil
	}
	return chunk
}

func (r *Receiver) dispatchControl(opcode Opcode, payload []byte) {
	switch opcode {
	case OpPing:
		r.listener.OnPing(payload)
	case OpPong:
		r.listener.OnPong(payload)
	case OpClose:
		r.dispatchClose(payload)
	}
}

func (r *Receiver) dispatchClose(payload []byte) {
	if len(payload) == 0 {
		r.listener.OnClose(CloseNoStatusRcvd, "", false)
		return
	}
	if len(payload) == 1 {
		r.fail(newProtoErr(ErrKindBadClosePayload, "close payload length 1"))
		return
	}
	code := CloseCode(uint16(payload[0])<<8 | uint16(payload[1]))
	reason := payload[2:]
	if !validFromPeer(code) {
		r.fail(newProtoErr(ErrKindBadClosePayload, "close code not allowed from peer"))
		return
	}
	if !utf8.Valid(reason) {
		r.fail(newProtoErr(ErrKindBadUTF8, "close reason"))
		return
	}
	r.listener.OnClose(code, string(reason), true)
}

// assemble folds a data frame into the in-progress message, finalizing and
// dispatching it once FIN=1 is seen.
func (r *Receiver) assemble(h header, payload []byte) *ProtocolError {
	if h.opcode == OpContinuation {
		if !r.inMessage {
			return newProtoErr(ErrKindUnexpectedContinue, "")
		}
	} else {
		if r.inMessage {
			return newProtoErr(ErrKindMessageInProgress, "")
		}
		r.inMessage = true
		r.msgOpcode = h.opcode
		r.msgRSV1 = h.rsv1
		r.msgBuf = r.msgBuf[:0]
	}

	r.msgBuf = append(r.msgBuf, payload...)

	if !h.fin {
		return nil
	}

	r.inMessage = false
	data := r.msgBuf
	r.msgBuf = nil
	opcode := r.msgOpcode

	if r.msgRSV1 {
		decompressed, err := r.ext.Decompress(data, r.maxPayload)
		if err != nil {
			if err == permessage.ErrTooLarge {
				return newProtoErr(ErrKindMessageTooLarge, "")
			}
			return newProtoErr(ErrKindDecompressFailure, err.Error())
		}
		data = decompressed
	}

	if opcode == OpText {
		if !utf8.Valid(data) {
			return newProtoErr(ErrKindBadUTF8, "")
		}
		r.listener.OnText(data)
		return nil
	}
	r.listener.OnBinary(data)
	return nil
}

// checkSize enforces maxPayload at the frame-header step: the declared
// frame length plus whatever has already accumulated for the in-progress
// message must not exceed the limit. This bounds memory use instead of
// detecting overflow only after a full (possibly huge) accumulation
// (SPEC_FULL.md §9, resolving the source's open question).
func (r *Receiver) checkSize(frameLen uint64) *ProtocolError {
	if r.maxPayload <= 0 {
		return nil
	}
	total := int64(len(r.msgBuf)) + int64(frameLen)
	if total > r.maxPayload {
		return newProtoErr(ErrKindMessageTooLarge, "")
	}
	return nil
}

// checkMaskDirection enforces the role matrix: client->server data and
// control frames must be masked; server->client frames must not be.
func (r *Receiver) checkMaskDirection(masked bool) *ProtocolError {
	wantMasked := r.role == RoleServer
	if masked != wantMasked {
		return newProtoErr(ErrKindMaskDirection, "")
	}
	return nil
}

// accumulate appends as much of chunk as needed to reach n bytes in
// r.buf and returns the unconsumed remainder of chunk.
func (r *Receiver) accumulate(chunk []byte, n int) []byte {
	need := n - len(r.buf)
	if need > len(chunk) {
		need = len(chunk)
	}
	r.buf = append(r.buf, chunk[:need]...)
	return chunk[need:]
}

func (r *Receiver) fail(err *ProtocolError) {
	r.listener.OnError(err)
}

// Cleanup puts the Receiver in a terminal state; subsequent Add calls are
// no-ops. It does not touch r.buf/msgBuf/frameBuf directly: those are only
// ever written by Add, which may still be in flight on another goroutine
// when Cleanup runs (an Endpoint's close timer fires independently of its
// reader goroutine), and those buffers are bounded by maxPayload, so
// leaving them to the garbage collector once the Receiver itself is
// dropped costs nothing a forced nil-out here would save.
func (r *Receiver) Cleanup() {
	r.terminal.Store(true)
}
