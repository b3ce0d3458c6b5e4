// Package credstore manages the signing credentials used for report
// transmission: PKCS#12 identities sealed into a local vault, smart card
// keys reached through PKCS#11 middleware, and certificates held by the
// operating system store.
package credstore

import (
	"crypto"
	"crypto/sha256"
	"crypto/x509"
	"errors"
	"strings"

	"github.com/biglietteria/riepilogo/internal/crypto/certinfo"
)

var (
	ErrNotFound         = errors.New("identity not found")
	ErrPasswordRequired = errors.New("credential password required")
	ErrWrongPassword    = errors.New("credential password incorrect")
	ErrInvalidFile      = errors.New("invalid credential file")
	ErrDuplicate        = errors.New("credential already imported")
)

// Identity is one signing credential: the certificate presented to the
// authority and the private key behind it. Signer is populated only by
// Unlock and Import; List returns identities without key access.
type Identity struct {
	ID          string
	Label       string
	Cert        *x509.Certificate
	Chain       []*x509.Certificate
	Fingerprint [32]byte
	Signer      crypto.Signer
}

// Fingerprint returns the SHA-256 fingerprint of a certificate.
func Fingerprint(cert *x509.Certificate) [32]byte {
	return sha256.Sum256(cert.Raw)
}

// Email returns the mailbox bound to the credential certificate, or the
// empty string when the certificate carries none.
func (id *Identity) Email() string {
	return certinfo.Extract(id.Cert).Email
}

// DisplayName returns the holder name used in transmission records.
func (id *Identity) DisplayName() string {
	info := certinfo.Extract(id.Cert)
	switch {
	case info.Nome != "" || info.Cognome != "":
		return strings.TrimSpace(info.Nome + " " + info.Cognome)
	case info.Organization != "":
		return info.Organization
	default:
		return id.Cert.Subject.CommonName
	}
}
