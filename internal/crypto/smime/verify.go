package smime

import (
	"bytes"
	"crypto/x509"
	"encoding/base64"
	"errors"
	"fmt"

	"github.com/smallstep/pkcs7"
)

// MinArtifactSize is the smallest credible outer message: below it the signer
// cannot have embedded a certificate at all.
const MinArtifactSize = 1024

var (
	ErrArtifactTooSmall = errors.New("signed artifact implausibly small")
	ErrArtifactFraming  = errors.New("signed artifact framing invalid")
)

// CheckArtifact verifies that bytes returned by a signer are a credible outer
// S/MIME message: plausible size, the x-pkcs7-mime header block, and a base64
// body that parses as a PKCS7 SignedData with embedded content. It returns
// the signer certificate when the container carries exactly one.
func CheckArtifact(raw []byte) (*x509.Certificate, error) {
	if len(raw) < MinArtifactSize {
		return nil, fmt.Errorf("%w: %d bytes", ErrArtifactTooSmall, len(raw))
	}

	sep := bytes.Index(raw, []byte(crlf+crlf))
	if sep < 0 {
		return nil, fmt.Errorf("%w: no header/body separator", ErrArtifactFraming)
	}
	headers := bytes.ToLower(raw[:sep])
	for _, want := range []string{"application/x-pkcs7-mime", "smime-type=signed-data", "base64"} {
		if !bytes.Contains(headers, []byte(want)) {
			return nil, fmt.Errorf("%w: missing %q header", ErrArtifactFraming, want)
		}
	}

	body := bytes.Map(dropEOL, raw[sep:])
	der, err := base64.StdEncoding.DecodeString(string(body))
	if err != nil {
		return nil, fmt.Errorf("%w: body is not base64: %v", ErrArtifactFraming, err)
	}

	p7, err := pkcs7.Parse(der)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrArtifactFraming, err)
	}
	if len(p7.Signers) == 0 {
		return nil, fmt.Errorf("%w: no signers", ErrArtifactFraming)
	}
	if len(p7.Content) == 0 {
		return nil, fmt.Errorf("%w: detached content", ErrArtifactFraming)
	}
	return p7.GetOnlySigner(), nil
}

func dropEOL(r rune) rune {
	if r == '\r' || r == '\n' {
		return -1
	}
	return r
}
