package smime

import (
	"bytes"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/base64"
	"errors"
	"math/big"
	"strings"
	"testing"
	"time"

	"github.com/smallstep/pkcs7"
)

var buildTime = time.Date(2026, 3, 15, 2, 30, 0, 0, time.FixedZone("CET", 3600))

func testPayload() Payload {
	return Payload{
		From:           "mario.rossi@pec.example.it",
		To:             "intake@authority.example.it",
		Subject:        "RPG_2026_03_14_001",
		Body:           "Invio riepilogo città di Milano",
		AttachmentName: "RPG_2026_03_14_001.xsi",
		Attachment:     bytes.Repeat([]byte("<RiepilogoGiornaliero/>"), 10),
	}
}

func testIdentity(t *testing.T) (*rsa.PrivateKey, *x509.Certificate) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("GenerateKey: %v", err)
	}
	tpl := &x509.Certificate{
		SerialNumber:   big.NewInt(1),
		Subject:        pkix.Name{CommonName: "ROSSI MARIO"},
		NotBefore:      time.Now().Add(-time.Hour),
		NotAfter:       time.Now().Add(24 * time.Hour),
		KeyUsage:       x509.KeyUsageDigitalSignature,
		EmailAddresses: []string{"mario.rossi@pec.example.it"},
	}
	der, err := x509.CreateCertificate(rand.Reader, tpl, tpl, &key.PublicKey, key)
	if err != nil {
		t.Fatalf("CreateCertificate: %v", err)
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		t.Fatalf("ParseCertificate: %v", err)
	}
	return key, cert
}

func TestBuildSignable(t *testing.T) {
	msg, err := BuildSignable(testPayload(), buildTime)
	if err != nil {
		t.Fatalf("BuildSignable: %v", err)
	}
	out := string(msg)

	boundary := boundaryPrefix + "00"
	for _, want := range []string{
		"From:mario.rossi@pec.example.it\r\n",
		"To:intake@authority.example.it\r\n",
		"Subject:RPG_2026_03_14_001\r\n",
		"Date:" + buildTime.Format(dateLayout) + "\r\n",
		"Content-Type: multipart/mixed;\r\n\tboundary=\"" + boundary + "\"\r\n",
		"This is a multi-part message in MIME format.\r\n",
		"charset=\"Windows-1252\"",
		"Content-Transfer-Encoding: quoted-printable",
		"citt=E0",
		"Content-Transfer-Encoding: base64",
		"Content-Disposition: attachment;\r\n\tfilename=\"RPG_2026_03_14_001.xsi\"",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("message missing %q:\n%s", want, out)
		}
	}
	if !strings.HasSuffix(out, "--"+boundary+"--\r\n") {
		t.Fatalf("message missing terminal boundary:\n%s", out)
	}

	// The attachment travels base64 encoded in lines of at most 76 chars.
	inBase64 := false
	for _, line := range strings.Split(out, "\r\n") {
		if strings.HasPrefix(line, "--") {
			inBase64 = false
		}
		if inBase64 && len(line) > 76 {
			t.Fatalf("base64 line longer than 76 chars: %q", line)
		}
		if line == "" {
			continue
		}
		if strings.Contains(line, "Content-Transfer-Encoding: base64") {
			inBase64 = true
		}
	}
}

func TestBuildSignableRejects(t *testing.T) {
	p := testPayload()
	p.Attachment = nil
	if _, err := BuildSignable(p, buildTime); err == nil {
		t.Fatal("expected error for empty attachment")
	}

	p = testPayload()
	p.AttachmentName = ""
	if _, err := BuildSignable(p, buildTime); err == nil {
		t.Fatal("expected error for missing attachment name")
	}
}

func TestMessageIDHeader(t *testing.T) {
	p := testPayload()
	p.MessageID = "<abc-123@pec.example.it>"

	msg, err := BuildSignable(p, buildTime)
	if err != nil {
		t.Fatalf("BuildSignable: %v", err)
	}
	if !strings.Contains(string(msg), "Message-ID:<abc-123@pec.example.it>\r\n") {
		t.Fatalf("inner message id header missing:\n%s", msg)
	}

	outer := WrapSigned(p, bytes.Repeat([]byte{0x30}, 600), buildTime)
	if !strings.Contains(string(outer), "Message-ID:<abc-123@pec.example.it>\r\n") {
		t.Fatal("outer message id header missing")
	}
}

func TestNewMessageID(t *testing.T) {
	id := NewMessageID("mario.rossi@pec.example.it")
	if !strings.HasPrefix(id, "<") || !strings.HasSuffix(id, "@pec.example.it>") {
		t.Fatalf("id = %q", id)
	}
	if NewMessageID("mario.rossi@pec.example.it") == id {
		t.Fatal("two ids collide")
	}
	if got := NewMessageID("not-a-mailbox"); !strings.HasSuffix(got, "@localhost>") {
		t.Fatalf("fallback host: %q", got)
	}
}

func TestWrapSigned(t *testing.T) {
	der := bytes.Repeat([]byte{0x30, 0x82}, 600)
	out := string(WrapSigned(testPayload(), der, buildTime))

	for _, want := range []string{
		"Content-Type: application/x-pkcs7-mime;\r\n\tsmime-type=signed-data;\r\n\tname=\"smime.p7m\"\r\n",
		"Content-Transfer-Encoding: base64\r\n",
		"Content-Disposition: attachment;\r\n\tfilename=\"smime.p7m\"\r\n",
	} {
		if !strings.Contains(out, want) {
			t.Fatalf("wrap missing %q:\n%s", want, out)
		}
	}

	sep := strings.Index(out, "\r\n\r\n")
	if sep < 0 {
		t.Fatal("no header/body separator")
	}
	body := strings.NewReplacer("\r", "", "\n", "").Replace(out[sep:])
	decoded, err := base64.StdEncoding.DecodeString(body)
	if err != nil {
		t.Fatalf("body base64: %v", err)
	}
	if !bytes.Equal(decoded, der) {
		t.Fatal("wrapped bytes differ from input DER")
	}
}

func TestSignAndCheckArtifact(t *testing.T) {
	key, cert := testIdentity(t)

	msg, err := BuildSignable(testPayload(), buildTime)
	if err != nil {
		t.Fatalf("BuildSignable: %v", err)
	}
	der, err := Sign(key, cert, nil, msg)
	if err != nil {
		t.Fatalf("Sign: %v", err)
	}

	p7, err := pkcs7.Parse(der)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if !bytes.Equal(p7.Content, msg) {
		t.Fatal("signed container does not embed the message")
	}
	if err := p7.Verify(); err != nil {
		t.Fatalf("Verify: %v", err)
	}

	outer := WrapSigned(testPayload(), der, buildTime)
	signerCert, err := CheckArtifact(outer)
	if err != nil {
		t.Fatalf("CheckArtifact: %v", err)
	}
	if signerCert == nil || signerCert.Subject.CommonName != "ROSSI MARIO" {
		t.Fatalf("unexpected signer cert: %+v", signerCert)
	}
}

func TestCheckArtifactRejects(t *testing.T) {
	if _, err := CheckArtifact([]byte("tiny")); !errors.Is(err, ErrArtifactTooSmall) {
		t.Fatalf("small artifact: got %v", err)
	}

	junk := append([]byte("Content-Type: text/plain\r\n\r\n"), bytes.Repeat([]byte("A"), 2048)...)
	if _, err := CheckArtifact(junk); !errors.Is(err, ErrArtifactFraming) {
		t.Fatalf("wrong headers: got %v", err)
	}

	// Valid framing around bytes that are not a SignedData.
	outer := WrapSigned(testPayload(), bytes.Repeat([]byte{0x30}, 2000), buildTime)
	if _, err := CheckArtifact(outer); !errors.Is(err, ErrArtifactFraming) {
		t.Fatalf("garbage DER: got %v", err)
	}
}
