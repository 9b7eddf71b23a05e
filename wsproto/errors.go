// File: wsproto/errors.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package wsproto

import (
	"errors"
	"fmt"
)

// ErrorKind classifies the protocol-level errors the Receiver and Sender
// can raise; each kind carries the close code the Endpoint must send when
// surfacing it (see SPEC_FULL.md §4.1's error taxonomy table).
type ErrorKind string

const (
	ErrKindReservedBits       ErrorKind = "reserved-bits-set"
	ErrKindInvalidOpcode      ErrorKind = "invalid-opcode"
	ErrKindFragmentedControl  ErrorKind = "fragmented-control"
	ErrKindOversizedControl   ErrorKind = "oversized-control"
	ErrKindMaskDirection      ErrorKind = "mask-direction"
	ErrKindMessageInProgress  ErrorKind = "message-in-progress"
	ErrKindUnexpectedContinue ErrorKind = "unexpected-continuation"
	ErrKindBadUTF8            ErrorKind = "bad-utf8"
	ErrKindMessageTooLarge    ErrorKind = "message-too-large"
	ErrKindBadClosePayload    ErrorKind = "bad-close-payload"
	ErrKindDecompressFailure  ErrorKind = "decompression-failure"

	// ErrKindIOFailure marks an error surfaced by the transport (socket
	// read/write failure, or the peer ending the stream before OPEN),
	// rather than one detected by the frame parser itself. It always
	// closes with 1006.
	ErrKindIOFailure ErrorKind = "io-failure"
)

// closeCode maps an ErrorKind to the close code the Endpoint must emit
// when it closes in response.
func (k ErrorKind) closeCode() CloseCode {
	switch k {
	case ErrKindBadUTF8, ErrKindDecompressFailure:
		return CloseInvalidPayloadData
	case ErrKindMessageTooLarge:
		return CloseMessageTooBig
	case ErrKindIOFailure:
		return CloseAbnormal
	default:
		return CloseProtocolError
	}
}

// ProtocolError is a structured protocol violation detected by the
// Receiver or Sender. It always carries the close code the Endpoint must
// emit to the peer.
type ProtocolError struct {
	Kind      ErrorKind
	CloseCode CloseCode
	Message   string
}

func (e *ProtocolError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("wsproto: %s", e.Kind)
	}
	return fmt.Sprintf("wsproto: %s: %s", e.Kind, e.Message)
}

func newProtoErr(kind ErrorKind, message string) *ProtocolError {
	return &ProtocolError{Kind: kind, CloseCode: kind.closeCode(), Message: message}
}

// User-facing sentinel errors returned synchronously by Endpoint methods;
// these never alter endpoint state (SPEC_FULL.md §7, "User errors").
var (
	ErrNotOpen          = errors.New("wsproto: endpoint is not open")
	ErrInvalidOptions   = errors.New("wsproto: invalid send options")
	ErrStreamInProgress = errors.New("wsproto: stream already in progress")
	ErrClosed           = errors.New("wsproto: endpoint is closed")
)
