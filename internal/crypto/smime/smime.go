// Package smime builds, signs and checks the S/MIME messages that carry
// report files to the authority's intake.
//
// The message layout is fixed: an inner multipart/mixed RFC822 message with a
// quoted-printable text part and exactly one base64 attachment holding the
// raw report wire bytes, signed whole into a PKCS7 SignedData, then wrapped
// in an outer application/x-pkcs7-mime message. The signed bytes are
// immutable once produced; the outer wrap carries them in base64 untouched.
package smime

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"mime/quotedprintable"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/text/encoding/charmap"
)

const (
	crlf           = "\r\n"
	boundaryPrefix = "----=_NextPart_8F84C6CA"
	// dateLayout is the RFC822 date form with an unpadded day of month.
	dateLayout = "Mon, 2 Jan 2006 15:04:05 -0700"
)

// Payload describes one signable message: the visible headers, a short text
// body and the single report attachment.
type Payload struct {
	From    string
	To      string
	Subject string
	Body    string
	// MessageID, when set, is emitted as the Message-ID header. One
	// transmission keeps one id across its signed and unsigned renditions.
	MessageID      string
	AttachmentName string
	// Attachment holds the raw generator wire bytes, never a previously
	// signed container.
	Attachment []byte
}

// NewMessageID returns a fresh Message-ID value, angle brackets included.
// The host part comes from the sender's mailbox.
func NewMessageID(from string) string {
	host := "localhost"
	if i := strings.LastIndex(from, "@"); i >= 0 && i+1 < len(from) {
		host = from[i+1:]
	}
	return "<" + uuid.NewString() + "@" + host + ">"
}

// BuildSignable renders the inner MIME message whose bytes get signed.
func BuildSignable(p Payload, now time.Time) ([]byte, error) {
	if len(p.Attachment) == 0 {
		return nil, fmt.Errorf("empty attachment %q", p.AttachmentName)
	}
	if p.AttachmentName == "" {
		return nil, fmt.Errorf("missing attachment name")
	}

	boundary := fmt.Sprintf("%s%02d", boundaryPrefix, now.UnixNano()%100)

	var b bytes.Buffer
	writeAddressHeaders(&b, p, now)
	b.WriteString("MIME-Version: 1.0" + crlf)
	b.WriteString("Content-Type: multipart/mixed;" + crlf + "\tboundary=\"" + boundary + "\"" + crlf)
	b.WriteString(crlf)
	b.WriteString("This is a multi-part message in MIME format." + crlf + crlf)

	if p.Body != "" {
		qp, err := quotedPrintableWindows1252(p.Body)
		if err != nil {
			return nil, err
		}
		b.WriteString("--" + boundary + crlf)
		b.WriteString("Content-Type: text/plain;" + crlf + "\tcharset=\"Windows-1252\"" + crlf)
		b.WriteString("Content-Transfer-Encoding: quoted-printable" + crlf + crlf)
		b.Write(qp)
		b.WriteString(crlf)
	}

	b.WriteString(crlf + "--" + boundary + crlf)
	b.WriteString("Content-Type: application/octet-stream;" + crlf + "\tname=\"" + p.AttachmentName + "\"" + crlf)
	b.WriteString("Content-Transfer-Encoding: base64" + crlf)
	b.WriteString("Content-Disposition: attachment;" + crlf + "\tfilename=\"" + p.AttachmentName + "\"" + crlf + crlf)
	b.Write(base64Wrap(p.Attachment))

	b.WriteString(crlf + "--" + boundary + "--" + crlf)
	return b.Bytes(), nil
}

// WrapSigned builds the outer transport message around a DER SignedData. Its
// headers name the signer as visible sender; the signed bytes travel base64
// encoded and unmodified.
func WrapSigned(p Payload, der []byte, now time.Time) []byte {
	var b bytes.Buffer
	writeAddressHeaders(&b, p, now)
	b.WriteString("MIME-Version: 1.0" + crlf)
	b.WriteString("Content-Type: application/x-pkcs7-mime;" + crlf + "\tsmime-type=signed-data;" + crlf + "\tname=\"smime.p7m\"" + crlf)
	b.WriteString("Content-Transfer-Encoding: base64" + crlf)
	b.WriteString("Content-Disposition: attachment;" + crlf + "\tfilename=\"smime.p7m\"" + crlf)
	b.WriteString(crlf)
	b.Write(base64Wrap(der))
	b.WriteString(crlf)
	return b.Bytes()
}

// writeAddressHeaders emits the visible address headers. The compact
// colon form without a following space is what the authority's intake has
// always received.
func writeAddressHeaders(b *bytes.Buffer, p Payload, now time.Time) {
	if p.From != "" {
		b.WriteString("From:" + p.From + crlf)
	}
	if p.To != "" {
		b.WriteString("To:" + p.To + crlf)
	}
	if p.Subject != "" {
		b.WriteString("Subject:" + p.Subject + crlf)
	}
	b.WriteString("Date:" + now.Format(dateLayout) + crlf)
	if p.MessageID != "" {
		b.WriteString("Message-ID:" + p.MessageID + crlf)
	}
}

// quotedPrintableWindows1252 encodes text for the message body: Windows-1252
// bytes first, quoted-printable on top.
func quotedPrintableWindows1252(text string) ([]byte, error) {
	encoded, err := charmap.Windows1252.NewEncoder().Bytes([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("encode body to Windows-1252: %w", err)
	}
	var out bytes.Buffer
	w := quotedprintable.NewWriter(&out)
	if _, err := w.Write(encoded); err != nil {
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return out.Bytes(), nil
}

// base64Wrap encodes to base64 broken into 76 character lines.
func base64Wrap(data []byte) []byte {
	encoded := base64.StdEncoding.EncodeToString(data)
	var out bytes.Buffer
	for len(encoded) > 76 {
		out.WriteString(encoded[:76])
		out.WriteString(crlf)
		encoded = encoded[76:]
	}
	out.WriteString(encoded)
	return out.Bytes()
}
