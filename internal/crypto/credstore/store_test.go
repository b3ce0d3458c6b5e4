package credstore

import (
	"bytes"
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"errors"
	"math/big"
	"testing"
	"time"

	pkcs12 "software.sslmate.com/src/go-pkcs12"
)

func testKeyCert(t *testing.T) (*rsa.PrivateKey, *x509.Certificate) {
	t.Helper()

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("generate key: %v", err)
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(7),
		Subject: pkix.Name{
			CommonName:   "ROSSI MARIO",
			SerialNumber: "TINIT-RSSMRA70A01H501S",
		},
		EmailAddresses: []string{"mario.rossi@biglietteria.example"},
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
	return key, cert
}

func testP12(t *testing.T, password string) ([]byte, *x509.Certificate) {
	t.Helper()

	key, cert := testKeyCert(t)
	enc := pkcs12.Modern
	if password == "" {
		enc = pkcs12.Passwordless
	}
	data, err := enc.Encode(key, cert, nil, password)
	if err != nil {
		t.Fatalf("encode PKCS#12: %v", err)
	}
	return data, cert
}

func TestLoadP12RoundTrip(t *testing.T) {
	data, cert := testP12(t, "segreto")

	signer, got, chain, err := LoadP12(bytes.NewReader(data), "segreto")
	if err != nil {
		t.Fatalf("LoadP12 failed: %v", err)
	}
	if signer == nil {
		t.Fatal("no signer returned")
	}
	if !got.Equal(cert) {
		t.Fatal("certificate mismatch")
	}
	if len(chain) != 0 {
		t.Fatalf("unexpected chain of %d certificates", len(chain))
	}
}

func TestLoadP12EmptyPasswordFallback(t *testing.T) {
	data, _ := testP12(t, "")
	if _, _, _, err := LoadP12(bytes.NewReader(data), "typed-anyway"); err != nil {
		t.Fatalf("fallback to empty password failed: %v", err)
	}
}

func TestLoadP12WrongPassword(t *testing.T) {
	data, _ := testP12(t, "segreto")
	_, _, _, err := LoadP12(bytes.NewReader(data), "sbagliata")
	if !errors.Is(err, ErrWrongPassword) {
		t.Fatalf("expected ErrWrongPassword, got: %v", err)
	}
}

func TestLoadP12PasswordRequired(t *testing.T) {
	data, _ := testP12(t, "segreto")
	_, _, _, err := LoadP12(bytes.NewReader(data), "")
	if !errors.Is(err, ErrPasswordRequired) {
		t.Fatalf("expected ErrPasswordRequired, got: %v", err)
	}
}

func TestLoadP12InvalidFile(t *testing.T) {
	_, _, _, err := LoadP12(bytes.NewReader([]byte("not-a-pkcs12")), "")
	if !errors.Is(err, ErrInvalidFile) {
		t.Fatalf("expected ErrInvalidFile, got: %v", err)
	}
}

func TestStoreImportListUnlock(t *testing.T) {
	ctx := context.Background()
	st, err := Open(t.TempDir(), []byte("vault-pw"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	data, cert := testP12(t, "segreto")
	imported, err := st.Import(ctx, "Cassa 1", bytes.NewReader(data), "segreto")
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}
	if imported.Signer == nil {
		t.Fatal("imported identity has no signer")
	}
	if imported.Email() != "mario.rossi@biglietteria.example" {
		t.Fatalf("unexpected email %q", imported.Email())
	}

	list, err := st.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 1 {
		t.Fatalf("expected 1 identity, got %d", len(list))
	}
	if list[0].Signer != nil {
		t.Fatal("List must not expose signers")
	}
	if list[0].Label != "Cassa 1" {
		t.Fatalf("unexpected label %q", list[0].Label)
	}

	unlocked, err := st.Unlock(ctx, imported.ID, "")
	if err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}

	digest := sha256.Sum256([]byte("payload"))
	sig, err := unlocked.Signer.Sign(rand.Reader, digest[:], crypto.SHA256)
	if err != nil {
		t.Fatalf("Sign failed: %v", err)
	}
	if err := rsa.VerifyPKCS1v15(cert.PublicKey.(*rsa.PublicKey), crypto.SHA256, digest[:], sig); err != nil {
		t.Fatalf("signature does not verify: %v", err)
	}
}

func TestStoreRejectsDuplicate(t *testing.T) {
	ctx := context.Background()
	st, err := Open(t.TempDir(), []byte("vault-pw"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	data, _ := testP12(t, "segreto")
	if _, err := st.Import(ctx, "prima", bytes.NewReader(data), "segreto"); err != nil {
		t.Fatalf("first import failed: %v", err)
	}
	if _, err := st.Import(ctx, "seconda", bytes.NewReader(data), "segreto"); !errors.Is(err, ErrDuplicate) {
		t.Fatalf("expected ErrDuplicate, got: %v", err)
	}
}

func TestStoreUnlockWrongVaultPassphrase(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	st, err := Open(dir, []byte("right"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	data, _ := testP12(t, "segreto")
	imported, err := st.Import(ctx, "cassa", bytes.NewReader(data), "segreto")
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	st2, err := Open(dir, []byte("wrong"))
	if err != nil {
		t.Fatalf("reopen failed: %v", err)
	}
	if _, err := st2.Unlock(ctx, imported.ID, ""); err == nil {
		t.Fatal("expected unlock failure with wrong vault passphrase")
	}
}

func TestStoreDelete(t *testing.T) {
	ctx := context.Background()
	st, err := Open(t.TempDir(), []byte("pw"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	data, _ := testP12(t, "segreto")
	imported, err := st.Import(ctx, "cassa", bytes.NewReader(data), "segreto")
	if err != nil {
		t.Fatalf("Import failed: %v", err)
	}

	if err := st.Delete(ctx, imported.ID); err != nil {
		t.Fatalf("Delete failed: %v", err)
	}
	if _, err := st.Unlock(ctx, imported.ID, ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound after delete, got: %v", err)
	}
	list, err := st.List(ctx)
	if err != nil {
		t.Fatalf("List failed: %v", err)
	}
	if len(list) != 0 {
		t.Fatalf("expected empty store, got %d identities", len(list))
	}
}

func TestStoreUnlockMissing(t *testing.T) {
	st, err := Open(t.TempDir(), []byte("pw"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}
	if _, err := st.Unlock(context.Background(), "no-such-id", ""); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got: %v", err)
	}
}

func TestStoreLinkCardUnlock(t *testing.T) {
	ctx := context.Background()
	st, err := Open(t.TempDir(), []byte("pw"))
	if err != nil {
		t.Fatalf("Open failed: %v", err)
	}

	_, cert := testKeyCert(t)
	linked, err := st.LinkCard(ctx, "CNS operatore", cert, nil, "/usr/lib/libbit4xpki.so", 1, []byte{0x01})
	if err != nil {
		t.Fatalf("LinkCard failed: %v", err)
	}
	if linked.Signer != nil {
		t.Fatal("linked identity must not carry a signer")
	}

	unlocked, err := st.Unlock(ctx, linked.ID, "12345")
	if err != nil {
		t.Fatalf("Unlock failed: %v", err)
	}
	card, ok := unlocked.Signer.(*CardSigner)
	if !ok {
		t.Fatalf("expected CardSigner, got %T", unlocked.Signer)
	}
	if card.Module != "/usr/lib/libbit4xpki.so" || card.Slot != 1 || card.PIN != "12345" {
		t.Fatalf("card reference mismatch: %+v", card)
	}
	if !bytes.Equal(card.KeyID, []byte{0x01}) {
		t.Fatalf("key id mismatch: %x", card.KeyID)
	}
}
