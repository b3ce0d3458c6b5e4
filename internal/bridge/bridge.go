// Package bridge connects the transmitter to the device holding the
// signing credential. The HTTP implementation talks to the card daemon
// over loopback; Local signs in-process for installations whose
// credential lives in this machine's wallet.
package bridge

import (
	"context"
	"errors"
	"time"

	"github.com/biglietteria/riepilogo/internal/crypto/smime"
)

var (
	// ErrNotConnected reports that the signer device cannot be reached.
	// Timeouts collapse onto this: a bridge that does not answer within
	// its deadline is not connected, it is not a case for a blind retry.
	ErrNotConnected = errors.New("signer bridge not connected")
	// ErrNoSigner reports a reachable bridge without a usable credential.
	ErrNoSigner = errors.New("no signing credential available")
	// ErrSignRefused reports that the device rejected the request, for
	// example after a PIN prompt was dismissed.
	ErrSignRefused = errors.New("signature request refused")
)

// Artifact is a signed report message as returned by a bridge: the
// complete outer envelope, the identity that signed it and when.
type Artifact struct {
	SignedBytes []byte
	SignerEmail string
	SignerName  string
	SignedAt    time.Time
}

// Bridge is the signing device as seen from the transmitter. The device
// is a single-session resource: callers must not issue two Sign calls
// concurrently.
type Bridge interface {
	// Connected reports whether the device currently answers.
	Connected(ctx context.Context) bool
	// SignerEmail returns the mailbox bound to the inserted credential.
	// The transmitter uses it as the sender of record.
	SignerEmail(ctx context.Context) (string, error)
	// Sign produces the signed artifact for one report payload.
	Sign(ctx context.Context, p smime.Payload) (*Artifact, error)
}
