package bridge

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"math/big"
	"testing"
	"time"

	"github.com/biglietteria/riepilogo/internal/crypto/credstore"
	"github.com/biglietteria/riepilogo/internal/crypto/smime"
)

func testIdentity(t *testing.T, emails []string) *credstore.Identity {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(3),
		Subject: pkix.Name{
			CommonName:   "ROSSI MARIO",
			SerialNumber: "TINIT-RSSMRA70A01H501S",
		},
		EmailAddresses: emails,
		NotBefore:      time.Now().Add(-time.Hour),
		NotAfter:       time.Now().Add(24 * time.Hour),
		KeyUsage:       x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("create certificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("parse certificate: %v", err)
	}

	return &credstore.Identity{
		ID:          "test",
		Label:       "cassa di prova",
		Cert:        cert,
		Fingerprint: credstore.Fingerprint(cert),
		Signer:      key,
	}
}

func TestLocalSign(t *testing.T) {
	ident := testIdentity(t, []string{"firma@cassa.example"})
	l, err := NewLocal(ident)
	if err != nil {
		t.Fatalf("NewLocal failed: %v", err)
	}
	l.clock = func() time.Time {
		return time.Date(2026, 3, 5, 18, 30, 0, 0, time.FixedZone("CET", 3600))
	}

	ctx := context.Background()
	if !l.Connected(ctx) {
		t.Fatal("local bridge must always be connected")
	}

	email, err := l.SignerEmail(ctx)
	if err != nil {
		t.Fatalf("SignerEmail failed: %v", err)
	}
	if email != "firma@cassa.example" {
		t.Fatalf("unexpected email %q", email)
	}

	art, err := l.Sign(ctx, testPayload())
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	if art.SignerEmail != "firma@cassa.example" {
		t.Fatalf("artifact email %q", art.SignerEmail)
	}
	if art.SignerName != "MARIO ROSSI" {
		t.Fatalf("artifact name %q", art.SignerName)
	}
	if !art.SignedAt.Equal(l.clock()) {
		t.Fatalf("artifact timestamp %v", art.SignedAt)
	}

	signerCert, err := smime.CheckArtifact(art.SignedBytes)
	if err != nil {
		t.Fatalf("artifact failed plausibility check: %v", err)
	}
	if signerCert.Subject.CommonName != "ROSSI MARIO" {
		t.Fatalf("artifact signed by %q", signerCert.Subject.CommonName)
	}
}

func TestLocalSignerEmailMissing(t *testing.T) {
	l, err := NewLocal(testIdentity(t, nil))
	if err != nil {
		t.Fatalf("NewLocal failed: %v", err)
	}
	if _, err := l.SignerEmail(context.Background()); !errors.Is(err, ErrNoSigner) {
		t.Fatalf("expected ErrNoSigner, got: %v", err)
	}
}

func TestNewLocalRejectsLockedIdentity(t *testing.T) {
	ident := testIdentity(t, []string{"firma@cassa.example"})
	ident.Signer = nil
	if _, err := NewLocal(ident); !errors.Is(err, ErrNoSigner) {
		t.Fatalf("expected ErrNoSigner, got: %v", err)
	}
}
