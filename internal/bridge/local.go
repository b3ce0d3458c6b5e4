package bridge

import (
	"context"
	"fmt"
	"time"

	"github.com/biglietteria/riepilogo/internal/crypto/credstore"
	"github.com/biglietteria/riepilogo/internal/crypto/smime"
)

// Local signs in-process with an unlocked wallet identity.
type Local struct {
	ident *credstore.Identity
	clock func() time.Time
}

func NewLocal(ident *credstore.Identity) (*Local, error) {
	if ident == nil || ident.Cert == nil || ident.Signer == nil {
		return nil, ErrNoSigner
	}
	return &Local{ident: ident, clock: time.Now}, nil
}

func (l *Local) Connected(ctx context.Context) bool {
	return true
}

func (l *Local) SignerEmail(ctx context.Context) (string, error) {
	email := l.ident.Email()
	if email == "" {
		return "", fmt.Errorf("%w: certificate carries no mailbox", ErrNoSigner)
	}
	return email, nil
}

func (l *Local) Sign(ctx context.Context, p smime.Payload) (*Artifact, error) {
	now := l.clock()

	signable, err := smime.BuildSignable(p, now)
	if err != nil {
		return nil, err
	}
	der, err := smime.Sign(l.ident.Signer, l.ident.Cert, l.ident.Chain, signable)
	if err != nil {
		return nil, fmt.Errorf("sign report: %w", err)
	}
	wrapped := smime.WrapSigned(p, der, now)

	return &Artifact{
		SignedBytes: wrapped,
		SignerEmail: l.ident.Email(),
		SignerName:  l.ident.DisplayName(),
		SignedAt:    now,
	}, nil
}
