// File: wsproto/endpoint.go
// Package wsproto's Endpoint ties together a Receiver, a Sender, and the
// connection lifecycle state machine described in SPEC_FULL.md §4.3.
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package wsproto

import (
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/eapache/queue"
)

// pendingSend is a queued Send call the Endpoint could not issue
// immediately because a stream was already in progress. Queuing here
// (rather than rejecting with ErrStreamInProgress) is what the eapache
// FIFO backs: callers get ordered delivery without having to serialize
// their own calls.
type pendingSend struct {
	opcode Opcode
	data   []byte
	done   chan error
}

// Endpoint drives a Receiver/Sender pair through the CONNECTING -> OPEN ->
// CLOSING -> CLOSED lifecycle. Feed must be called from a single reader
// goroutine (it drives the Receiver, which is not itself safe for
// concurrent use); Send/Stream*/Ping/Close may be called concurrently
// from any number of other goroutines and are serialized against each
// other by senderMu, so frames never interleave on the wire.
type Endpoint struct {
	role     Role
	receiver *Receiver
	listener Listener
	log      *slog.Logger
	connID   string

	senderMu sync.Mutex
	sender   *Sender
	outbox   *queue.Queue

	// receiverMu serializes every call into receiver.Add: Feed is meant
	// to be driven by one reader goroutine, but Resume also feeds
	// buffered chunks into the Receiver from whatever goroutine called
	// it, and Add is not itself safe for concurrent use. Resume holds
	// this for its whole replay, so a Feed arriving the instant paused
	// flips back to false still queues behind the replay instead of
	// racing ahead of it.
	receiverMu sync.Mutex

	mu           sync.Mutex
	state        ReadyState
	closeTimer   *time.Timer
	closeTimeout time.Duration
	paused       bool
	pauseBuf     [][]byte

	initialBytes []byte

	bytesReceived int64
	errSurfaced   bool
}

// NewEndpoint constructs an Endpoint in the CONNECTING state. Call Open
// once the handshake (out of scope for this package) has completed.
func NewEndpoint(opts Options) *Endpoint {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	e := &Endpoint{
		role:     opts.Role,
		listener: opts.Listener,
		log:      log,
		connID:   opts.ConnID,
		state:    StateConnecting,
		outbox:   queue.New(),
	}
	e.receiver = NewReceiver(opts.Role, opts.MaxPayload, opts.Extension, e)
	e.sender = NewSender(opts.Sink, opts.Role, opts.Extension)
	if opts.CompressionThreshold > 0 {
		e.sender.CompressionThreshold = opts.CompressionThreshold
	}
	e.closeTimeout = opts.closeTimeout()
	if len(opts.InitialBytes) > 0 {
		e.initialBytes = append([]byte(nil), opts.InitialBytes...)
	}
	return e
}

// Open transitions the Endpoint from CONNECTING to OPEN, then feeds any
// InitialBytes supplied at construction through the Receiver, in order,
// before returning — so those bytes are always processed ahead of
// whatever the caller passes to Feed next.
func (e *Endpoint) Open() {
	e.mu.Lock()
	if e.state != StateConnecting {
		e.mu.Unlock()
		return
	}
	e.state = StateOpen
	e.log.Debug("endpoint open", "conn", e.connID, "role", e.role)
	initial := e.initialBytes
	e.initialBytes = nil
	e.mu.Unlock()

	if len(initial) > 0 {
		atomic.AddInt64(&e.bytesReceived, int64(len(initial)))
		e.receiverMu.Lock()
		e.receiver.Add(initial)
		e.receiverMu.Unlock()
	}
}

// ReadyState returns the Endpoint's current lifecycle state.
func (e *Endpoint) ReadyState() ReadyState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state
}

// BytesReceived returns the total number of raw bytes handed to Feed,
// plus any InitialBytes that Open fed through the Receiver.
func (e *Endpoint) BytesReceived() int64 {
	return atomic.LoadInt64(&e.bytesReceived)
}

// BytesBuffered reports how many bytes written to the Endpoint's sink are
// still sitting in the kernel socket send buffer, for backpressure
// decisions. It returns 0, nil if the sink does not support the query.
func (e *Endpoint) BytesBuffered() (int, error) {
	e.senderMu.Lock()
	defer e.senderMu.Unlock()
	if bs, ok := e.sender.sink.(BufferedSink); ok {
		return bs.BytesBuffered()
	}
	return 0, nil
}

// Feed supplies raw bytes read from the underlying connection. While
// paused, bytes are buffered unparsed until Resume.
func (e *Endpoint) Feed(chunk []byte) {
	atomic.AddInt64(&e.bytesReceived, int64(len(chunk)))

	e.mu.Lock()
	if e.state == StateClosed {
		e.mu.Unlock()
		return
	}
	if e.paused {
		e.pauseBuf = append(e.pauseBuf, append([]byte(nil), chunk...))
		e.mu.Unlock()
		return
	}
	e.mu.Unlock()

	e.receiverMu.Lock()
	e.receiver.Add(chunk)
	e.receiverMu.Unlock()
}

// Pause stops the Receiver from parsing fed bytes; they accumulate in an
// internal buffer until Resume (SPEC_FULL.md's resolution of the open
// question on backpressure semantics). Pause before OPEN is a user error.
func (e *Endpoint) Pause() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.state == StateConnecting {
		return ErrNotOpen
	}
	e.paused = true
	return nil
}

// Resume re-enables parsing and replays any bytes buffered since Pause.
// Resume before OPEN is a user error. receiverMu is held for the whole
// replay (not just the state flip) so a Feed call that observes paused
// turn false the instant it's unlocked still has to wait its turn behind
// the replay, instead of a concurrent reader goroutine delivering a newer
// chunk to the Receiver ahead of older buffered ones.
func (e *Endpoint) Resume() error {
	e.receiverMu.Lock()
	defer e.receiverMu.Unlock()

	e.mu.Lock()
	if e.state == StateConnecting {
		e.mu.Unlock()
		return ErrNotOpen
	}
	e.paused = false
	buffered := e.pauseBuf
	e.pauseBuf = nil
	e.mu.Unlock()

	for _, chunk := range buffered {
		e.receiver.Add(chunk)
	}
	return nil
}

// SendText sends an unfragmented text message.
func (e *Endpoint) SendText(data []byte) error {
	return e.send(OpText, data)
}

// SendBinary sends an unfragmented binary message.
func (e *Endpoint) SendBinary(data []byte) error {
	return e.send(OpBinary, data)
}

func (e *Endpoint) send(opcode Opcode, data []byte) error {
	if e.ReadyState() != StateOpen {
		return ErrNotOpen
	}

	e.senderMu.Lock()
	err := e.sender.Send(opcode, data)
	if err != ErrStreamInProgress {
		e.senderMu.Unlock()
		e.abortOnWriteError(err)
		return err
	}
	done := make(chan error, 1)
	e.outbox.Add(&pendingSend{opcode: opcode, data: data, done: done})
	e.senderMu.Unlock()
	err = <-done
	e.abortOnWriteError(err)
	return err
}

// drain flushes queued sends once the Sender is no longer streaming.
// Callers must hold senderMu.
func (e *Endpoint) drain() {
	for e.outbox.Length() > 0 {
		p := e.outbox.Remove().(*pendingSend)
		p.done <- e.sender.Send(p.opcode, p.data)
	}
}

// StreamStart begins a fragmented message.
func (e *Endpoint) StreamStart(opcode Opcode, data []byte) error {
	if e.ReadyState() != StateOpen {
		return ErrNotOpen
	}
	e.senderMu.Lock()
	err := e.sender.StreamStart(opcode, data)
	e.senderMu.Unlock()
	e.abortOnWriteError(err)
	return err
}

// StreamContinue writes an intermediate fragment.
func (e *Endpoint) StreamContinue(data []byte) error {
	if e.ReadyState() != StateOpen {
		return ErrNotOpen
	}
	e.senderMu.Lock()
	err := e.sender.StreamContinue(data)
	e.senderMu.Unlock()
	e.abortOnWriteError(err)
	return err
}

// StreamEnd writes the final fragment and drains any sends queued while
// the stream was in progress.
func (e *Endpoint) StreamEnd(data []byte) error {
	if e.ReadyState() != StateOpen {
		return ErrNotOpen
	}
	e.senderMu.Lock()
	err := e.sender.StreamEnd(data)
	e.drain()
	e.senderMu.Unlock()
	e.abortOnWriteError(err)
	return err
}

// Ping sends a ping control frame.
func (e *Endpoint) Ping(data []byte) error {
	if e.ReadyState() != StateOpen {
		return ErrNotOpen
	}
	e.senderMu.Lock()
	err := e.sender.Ping(data)
	e.senderMu.Unlock()
	e.abortOnWriteError(err)
	return err
}

// Close begins the closing handshake: sends a close frame with code and
// reason, transitions to CLOSING, and starts the close timer. If the
// Endpoint is already CLOSING or CLOSED, Close is a no-op.
func (e *Endpoint) Close(code CloseCode, reason string) error {
	e.mu.Lock()
	if e.state == StateClosing || e.state == StateClosed {
		e.mu.Unlock()
		return nil
	}
	e.state = StateClosing
	e.closeTimer = time.AfterFunc(e.closeTimeout, e.onCloseTimeout)
	e.mu.Unlock()

	e.senderMu.Lock()
	err := e.sender.Close(code, reason)
	e.senderMu.Unlock()
	e.abortOnWriteError(err)
	return err
}

func (e *Endpoint) onCloseTimeout() {
	e.finish(CloseAbnormal, "", true)
}

// Abort reports a transport-level I/O failure (socket read/write error, or
// the connection ending before a close handshake) and finishes the
// Endpoint with code 1006, without attempting to write a close frame. The
// failure is surfaced to the Listener's OnError exactly once (SPEC_FULL.md
// §7: "surface error once; subsequent errors are swallowed").
func (e *Endpoint) Abort(err error) {
	e.mu.Lock()
	already := e.errSurfaced
	e.errSurfaced = true
	e.mu.Unlock()

	if !already && err != nil {
		msg := err.Error()
		e.listener.OnError(&ProtocolError{Kind: ErrKindIOFailure, CloseCode: CloseAbnormal, Message: msg})
	}
	e.finish(CloseAbnormal, "", true)
}

// Terminate forces CLOSED immediately with code 1006, without running the
// close handshake, and fails any queued sends with ErrClosed. It does not
// close the Sink or the underlying connection; the Endpoint holds no
// handle that could (wsnet.Conn.Close does that).
func (e *Endpoint) Terminate() {
	e.finish(CloseAbnormal, "", true)
}

// finish moves the Endpoint to CLOSED, stops the close timer, cleans up
// the Receiver, fails any sends still queued behind an in-progress stream,
// and notifies the listener exactly once. hasCode reports whether code is
// an actual close code to surface (false only for the locally-synthesized
// CloseNoStatusRcvd case where no close frame of our own ever carried it).
func (e *Endpoint) finish(code CloseCode, reason string, hasCode bool) {
	e.mu.Lock()
	if e.state == StateClosed {
		e.mu.Unlock()
		return
	}
	e.state = StateClosed
	if e.closeTimer != nil {
		e.closeTimer.Stop()
	}
	e.mu.Unlock()

	e.senderMu.Lock()
	for e.outbox.Length() > 0 {
		e.outbox.Remove().(*pendingSend).done <- ErrClosed
	}
	e.senderMu.Unlock()

	e.receiver.Cleanup()
	e.log.Debug("endpoint closed", "conn", e.connID, "code", code)
	e.listener.OnClose(code, reason, hasCode)
}

// The Receiver dispatches events to the Endpoint itself (Endpoint
// implements Listener), which forwards data/ping/error events to the
// user's Listener unchanged but intercepts close/ping-autoreply to drive
// the state machine.

// OnText, OnBinary, OnPing, and OnPong are only forwarded while the
// Endpoint is OPEN. Once a close frame has been sent or received
// (CLOSING), only the close frame itself and whatever the Receiver had
// already buffered for the frame in flight are allowed to complete; any
// later data or control frame from the peer is discarded in place
// (SPEC_FULL.md §4.3).
func (e *Endpoint) OnText(data []byte) {
	if e.ReadyState() != StateOpen {
		return
	}
	e.listener.OnText(data)
}

func (e *Endpoint) OnBinary(data []byte) {
	if e.ReadyState() != StateOpen {
		return
	}
	e.listener.OnBinary(data)
}

func (e *Endpoint) OnPing(data []byte) {
	if e.ReadyState() != StateOpen {
		return
	}
	e.senderMu.Lock()
	err := e.sender.Pong(data)
	e.senderMu.Unlock()
	if err != nil {
		e.abortOnWriteError(err)
		return
	}
	e.listener.OnPing(data)
}

func (e *Endpoint) OnPong(data []byte) {
	if e.ReadyState() != StateOpen {
		return
	}
	e.listener.OnPong(data)
}

// OnClose handles a close frame from the peer. If we initiated the close
// (state is CLOSING), this is the peer's acknowledgment and the Endpoint
// finishes cleanly. Otherwise this is a peer-initiated close: the
// Endpoint echoes it back before finishing.
func (e *Endpoint) OnClose(code CloseCode, reason string, hasCode bool) {
	if e.ReadyState() == StateOpen {
		echoCode := code
		if !hasCode {
			echoCode = CloseNormalClosure
		}
		e.senderMu.Lock()
		err := e.sender.Close(echoCode, reason)
		e.senderMu.Unlock()
		// abortOnWriteError may already move the Endpoint to CLOSED (with
		// 1006) if the echo write failed; finish below is then a no-op,
		// since finish only ever acts on its first call per Endpoint.
		e.abortOnWriteError(err)
	}
	e.finish(code, reason, hasCode)
}

// OnError handles a protocol violation detected by the Receiver: it is
// surfaced to the Listener exactly once, then the Endpoint closes with the
// violation's close code. A second error arriving while the first is
// already being torn down (e.g. more bytes parsed out of a chunk already
// in flight) is swallowed (SPEC_FULL.md §7).
func (e *Endpoint) OnError(err *ProtocolError) {
	e.mu.Lock()
	already := e.errSurfaced
	e.errSurfaced = true
	e.mu.Unlock()
	if already {
		return
	}
	e.listener.OnError(err)
	_ = e.Close(err.CloseCode, err.Message)
}

// abortOnWriteError forces the Endpoint to CLOSED with 1006 and surfaces
// the failure to the Listener once, for a Sink write that failed rather
// than a usage error the Sender rejected outright, or ErrClosed, which
// means the Endpoint had already finished by the time a queued send was
// drained and so needs no further action (SPEC_FULL.md §7: "I/O failures
// ... force CLOSED with 1006; surface error once"). senderMu must already
// be released by the caller, since Abort->finish drains the outbox
// under it.
func (e *Endpoint) abortOnWriteError(err error) {
	switch err {
	case nil, ErrStreamInProgress, ErrInvalidOptions, ErrNotOpen, ErrClosed:
		return
	}
	e.Abort(err)
}
