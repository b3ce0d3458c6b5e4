// Package mail delivers finished report messages to the authority's
// intake mailbox.
package mail

import (
	"context"
	"errors"
)

// Envelope is the SMTP-level sender and recipient pair. It is separate
// from the message headers: a signed artifact's headers are frozen at
// signing time, the envelope is chosen at dispatch time.
type Envelope struct {
	From string
	To   string
}

var ErrBadEnvelope = errors.New("envelope requires sender and recipient")

// Transport delivers one complete message. Implementations must pass raw
// through unmodified; re-encoding a signed artifact breaks its signature.
type Transport interface {
	Send(ctx context.Context, env Envelope, raw []byte) error
}
