// File: wsproto/options.go
// Author: momentics <momentics@gmail.com>
// License: Apache-2.0
package wsproto

import (
	"log/slog"
	"time"

	"github.com/coreproto/wscore/wsproto/permessage"
)

// Options configures a new Endpoint. There are no package-level globals:
// every Endpoint is independently configured (SPEC_FULL.md's ambient-stack
// configuration section).
type Options struct {
	// Role determines masking direction; required.
	Role Role
	// Sink receives the encoded bytes the Endpoint writes. Required.
	Sink Sink
	// Listener receives decoded messages and control events. Required.
	Listener Listener

	// Extension is the negotiated permessage-deflate session, or nil if
	// the extension was not negotiated.
	Extension *permessage.Session

	// InitialBytes carries any bytes already buffered by the upgrade
	// handshake reader past the end of the HTTP headers. They are fed to
	// the Receiver before Open returns, ahead of anything later passed to
	// Feed, so a client that pipelines its first frame behind the
	// handshake response is not misordered.
	InitialBytes []byte

	// MaxPayload bounds the reassembled size of a single message. Zero
	// means unlimited.
	MaxPayload int64

	// CloseTimeout bounds how long the Endpoint waits for the peer's
	// close frame after it has sent its own, before forcing CLOSED.
	// Zero selects the default of 30 seconds.
	CloseTimeout time.Duration

	// CompressionThreshold is forwarded to the Sender; zero selects its
	// default.
	CompressionThreshold int

	// Log receives structured diagnostic records. A nil Log falls back to
	// slog.Default() (NewEndpoint's doing, not this type's) rather than
	// disabling logging; supply a discarding handler explicitly if an
	// Endpoint must stay silent.
	Log *slog.Logger

	// ConnID identifies the connection in log records.
	ConnID string
}

func (o Options) closeTimeout() time.Duration {
	if o.CloseTimeout > 0 {
		return o.CloseTimeout
	}
	return 30 * time.Second
}
