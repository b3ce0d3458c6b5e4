package credstore

import (
	"crypto"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"strings"

	pkcs12 "software.sslmate.com/src/go-pkcs12"
)

// LoadP12 parses a PKCS#12/PFX credential and returns the signing key with
// its certificate chain. Files exported without a password are accepted by
// retrying with the empty password.
func LoadP12(r io.Reader, password string) (crypto.Signer, *x509.Certificate, []*x509.Certificate, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, nil, nil, err
	}

	var decodeErr error
	sawBadPassword := false
	for _, pass := range passwordCandidates(password) {
		priv, cert, chain, err := pkcs12.DecodeChain(data, pass)
		if err == nil {
			signer, ok := priv.(crypto.Signer)
			if !ok {
				return nil, nil, nil, fmt.Errorf("%w: key does not support signing", ErrInvalidFile)
			}
			return signer, cert, chain, nil
		}
		if isBadPassword(err) {
			sawBadPassword = true
		} else if decodeErr == nil {
			decodeErr = err
		}
	}

	if sawBadPassword {
		if password == "" {
			return nil, nil, nil, ErrPasswordRequired
		}
		return nil, nil, nil, ErrWrongPassword
	}
	return nil, nil, nil, fmt.Errorf("%w: %v", ErrInvalidFile, decodeErr)
}

// passwordCandidates keeps the empty-password fallback so that files
// exported without protection still open when the operator typed one.
func passwordCandidates(password string) []string {
	if password == "" {
		return []string{""}
	}
	return []string{password, ""}
}

func isBadPassword(err error) bool {
	if errors.Is(err, pkcs12.ErrIncorrectPassword) || errors.Is(err, pkcs12.ErrDecryption) {
		return true
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "decryption password incorrect") ||
		strings.Contains(msg, "incorrect padding")
}
