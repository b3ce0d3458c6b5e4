//go:build !cgo

package credstore

import (
	"crypto"
	"crypto/x509"
	"errors"
	"io"
)

var errNoCardSupport = errors.New("card signing unavailable in this build (cgo disabled)")

// CardSigner is unavailable when cgo is disabled.
type CardSigner struct {
	Module    string
	Slot      uint
	PIN       string
	KeyID     []byte
	PublicKey crypto.PublicKey
}

func (s *CardSigner) Public() crypto.PublicKey {
	return s.PublicKey
}

func (s *CardSigner) Sign(rand io.Reader, digest []byte, opts crypto.SignerOpts) ([]byte, error) {
	return nil, errNoCardSupport
}

type CardCredential struct {
	Cert  *x509.Certificate
	KeyID []byte
}

func CardCredentials(module string, slot uint) ([]CardCredential, error) {
	return nil, errNoCardSupport
}
