//go:build cgo && (darwin || windows)

package credstore

import (
	"bytes"
	"crypto"
	"crypto/sha256"
	"crypto/x509"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/github/smimesign/certstore"
)

// SystemIdentities lists signing-capable certificates from the operating
// system store. Expired certificates and those without a usable key are
// skipped.
func SystemIdentities() ([]Identity, error) {
	st, err := certstore.Open()
	if err != nil {
		return nil, fmt.Errorf("open system store: %w", err)
	}
	defer st.Close()

	ids, err := st.Identities()
	if err != nil {
		return nil, fmt.Errorf("list system identities: %w", err)
	}

	now := time.Now()
	var out []Identity
	for _, id := range ids {
		cert, err := id.Certificate()
		if err != nil || cert == nil {
			continue
		}
		if now.After(cert.NotAfter) || now.Before(cert.NotBefore) {
			continue
		}
		if cert.KeyUsage != 0 && cert.KeyUsage&(x509.KeyUsageDigitalSignature|x509.KeyUsageContentCommitment) == 0 {
			continue
		}
		label := cert.Subject.CommonName
		if label == "" {
			label = cert.Subject.String()
		}
		chain, _ := id.CertificateChain()
		if len(chain) > 0 && chain[0].Equal(cert) {
			chain = chain[1:]
		}
		out = append(out, Identity{
			Label:       label,
			Cert:        cert,
			Chain:       chain,
			Fingerprint: Fingerprint(cert),
		})
	}
	return out, nil
}

func systemSigner(fingerprintHex string) (crypto.Signer, error) {
	want, err := hex.DecodeString(fingerprintHex)
	if err != nil || len(want) != sha256.Size {
		return nil, fmt.Errorf("system key reference corrupt")
	}

	st, err := certstore.Open()
	if err != nil {
		return nil, fmt.Errorf("open system store: %w", err)
	}
	defer st.Close()

	ids, err := st.Identities()
	if err != nil {
		return nil, fmt.Errorf("list system identities: %w", err)
	}

	for _, id := range ids {
		cert, certErr := id.Certificate()
		if certErr != nil || cert == nil {
			continue
		}
		fp := sha256.Sum256(cert.Raw)
		if !bytes.Equal(fp[:], want) {
			continue
		}
		signer, signErr := id.Signer()
		if signErr != nil {
			return nil, fmt.Errorf("access system signer: %w", signErr)
		}
		if signer == nil {
			return nil, fmt.Errorf("system signer unavailable")
		}
		return signer, nil
	}
	return nil, fmt.Errorf("system certificate no longer available")
}
