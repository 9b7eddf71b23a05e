// File: wsproto/closecode.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package wsproto

// CloseCode is the 16-bit status code carried in a close frame, per
// RFC 6455 Section 7.4.
type CloseCode uint16

const (
	CloseNormalClosure   CloseCode = 1000
	CloseGoingAway       CloseCode = 1001
	CloseProtocolError   CloseCode = 1002
	CloseUnsupportedData CloseCode = 1003
	// CloseNoStatusRcvd is never sent on the wire; it is reported locally
	// when a close frame arrived with a zero-length payload.
	CloseNoStatusRcvd CloseCode = 1005
	// CloseAbnormal is never sent on the wire; it is reported locally when
	// the socket ended without a close-frame exchange.
	CloseAbnormal           CloseCode = 1006
	CloseInvalidPayloadData CloseCode = 1007
	ClosePolicyViolation    CloseCode = 1008
	CloseMessageTooBig      CloseCode = 1009
	CloseMissingExtension   CloseCode = 1010
	CloseInternalServerErr  CloseCode = 1011
)

// validFromPeer reports whether code is one a peer is permitted to send in
// a close frame (RFC 6455 Section 7.4.1, plus the 3000-4999 range reserved
// for library/application use).
func validFromPeer(code CloseCode) bool {
	switch code {
	case CloseNormalClosure, CloseGoingAway, CloseProtocolError,
		CloseUnsupportedData, CloseInvalidPayloadData, ClosePolicyViolation,
		CloseMessageTooBig, CloseMissingExtension, CloseInternalServerErr:
		return true
	}
	return code >= 3000 && code <= 4999
}
