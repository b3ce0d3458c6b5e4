// Package transmit drives one report from entity graph to the intake
// mailbox: filename coherence, document rendering and structural checks,
// signing through the bridge, dispatch. Every call produces a Result,
// also on failure, so batch callers keep going past one bad report.
package transmit

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/biglietteria/riepilogo/internal/bridge"
	"github.com/biglietteria/riepilogo/internal/crypto/smime"
	"github.com/biglietteria/riepilogo/internal/filename"
	"github.com/biglietteria/riepilogo/internal/mail"
	"github.com/biglietteria/riepilogo/internal/model"
	"github.com/biglietteria/riepilogo/internal/xmlcheck"
	"github.com/biglietteria/riepilogo/internal/xmlgen"
)

var (
	ErrMissingReport      = errors.New("no report to transmit")
	ErrEmptySystemCode    = errors.New("emission system code is empty")
	ErrMissingRecipient   = errors.New("no recipient address")
	ErrSubjectMismatch    = errors.New("subject does not match file name")
	ErrReportTypeMismatch = errors.New("file name does not match report type")
	// ErrSignedName rejects an explicit file name ending in the signed
	// container suffix. The attachment is the raw report file; the
	// signature is applied here, never upstream.
	ErrSignedName = errors.New("file name carries the signed container suffix")
	ErrSystemCodeMismatch = errors.New("system code does not match report content")
	ErrDocumentInvalid    = errors.New("document failed structural validation")
)

// State is the terminal state of one transmission.
type State string

const (
	// StateSent means the message reached the relay.
	StateSent State = "sent"
	// StateBlocked means the request never produced outbound traffic:
	// the input, the filename or the document itself was rejected.
	StateBlocked State = "blocked"
	// StateFailed means signing or dispatch broke after validation passed.
	StateFailed State = "failed"
)

// Stage names the pipeline phase a transmission ended in.
type Stage string

const (
	StageValidate Stage = "validate"
	StageSign     Stage = "sign"
	StageSend     Stage = "send"
	StageDone     Stage = "done"
)

// SigningPolicy decides how hard a transmission insists on a signature.
type SigningPolicy int

const (
	// SignDefault resolves per report type: access-control summaries are
	// only acknowledged by the authority when signed, so they require a
	// signature; the other families prefer one.
	SignDefault SigningPolicy = iota
	// SignRequire fails the transmission when no signature can be made.
	SignRequire
	// SignPrefer signs when the bridge answers and falls back to an
	// unsigned message when it does not.
	SignPrefer
	// SignSkip never contacts the bridge.
	SignSkip
)

// Request describes one report submission.
type Request struct {
	Report     *model.ReportData
	SystemCode string
	To         string
	// FileName and Subject override generation when supplied by the
	// caller. They are still checked against each other and against the
	// report: coherence failures abort before any network traffic.
	FileName string
	Subject  string
	// Body is the cover text of the message. Empty picks a standard line.
	Body    string
	Signing SigningPolicy
}

// Result is the outcome of one transmission attempt.
type Result struct {
	State State
	Stage Stage
	// ReportType is the report family name, empty when the request was
	// rejected before the payload could be identified.
	ReportType string
	FileName   string
	Subject    string
	// MessageID is the Message-ID header of the outbound message, empty
	// when the request was blocked before a message was built.
	MessageID string
	// Signed reports whether the dispatched message carried a signature.
	// Fallback marks a message that went out unsigned although signing
	// was attempted.
	Signed      bool
	Fallback    bool
	SignerEmail string
	SignerName  string
	SignedAt    time.Time
	Validation  *xmlcheck.Result
	Err         error
}

// Ok reports whether the message was dispatched.
func (r *Result) Ok() bool {
	return r.State == StateSent
}

// Config assembles a Transmitter. Mail and From are mandatory; a nil
// Bridge behaves as a permanently disconnected one.
type Config struct {
	Bridge bridge.Bridge
	Mail   mail.Transport
	// From is the generic outbound identity used for unsigned dispatch.
	// Signed dispatch always uses the signer's own mailbox instead.
	From  string
	Clock func() time.Time
}

// Transmitter sends reports. It is safe for concurrent use; signing
// round trips are serialized internally because the signer is a
// single-session device.
type Transmitter struct {
	bridge bridge.Bridge
	mail   mail.Transport
	from   string
	clock  func() time.Time
	signMu sync.Mutex
}

func New(cfg Config) (*Transmitter, error) {
	if cfg.Mail == nil {
		return nil, errors.New("transmit: mail transport is required")
	}
	if cfg.From == "" {
		return nil, errors.New("transmit: outbound address is required")
	}
	t := &Transmitter{
		bridge: cfg.Bridge,
		mail:   cfg.Mail,
		from:   cfg.From,
		clock:  cfg.Clock,
	}
	if t.clock == nil {
		t.clock = time.Now
	}
	return t, nil
}

// Transmit runs one submission end to end and always returns a Result.
func (t *Transmitter) Transmit(ctx context.Context, req Request) *Result {
	res := &Result{State: StateBlocked, Stage: StageValidate}

	// Nothing below performs I/O until the request itself is coherent.
	if req.Report == nil {
		res.Err = ErrMissingReport
		return res
	}
	rt, err := req.Report.Type()
	if err != nil {
		res.Err = err
		return res
	}
	res.ReportType = rt.String()

	if req.SystemCode == "" {
		res.Err = ErrEmptySystemCode
		return res
	}
	if err := filename.CheckSystemCode(req.SystemCode); err != nil {
		res.Err = err
		return res
	}
	if code := reportSystemCode(req.Report); code != req.SystemCode {
		res.Err = fmt.Errorf("%w: request %q, report %q", ErrSystemCodeMismatch, req.SystemCode, code)
		return res
	}
	if req.To == "" {
		res.Err = ErrMissingRecipient
		return res
	}

	hdr, err := req.Report.Header()
	if err != nil {
		res.Err = err
		return res
	}

	name := req.FileName
	if name == "" {
		name, err = filename.Generate(rt, hdr.DataReport, req.SystemCode, hdr.Progressivo)
		if err != nil {
			res.Err = err
			return res
		}
	}
	res.FileName = name

	subject := req.Subject
	if subject == "" {
		subject = filename.Subject(name)
	}
	res.Subject = subject
	if filename.Subject(name) != subject {
		res.Err = fmt.Errorf("%w: subject %q, file %q", ErrSubjectMismatch, subject, name)
		return res
	}

	if err := filename.Validate(name); err != nil {
		res.Err = err
		return res
	}
	if strings.HasSuffix(name, filename.SignedExtension) {
		res.Err = fmt.Errorf("%w: %q", ErrSignedName, name)
		return res
	}
	if !strings.HasPrefix(name, rt.Code()+"_") {
		res.Err = fmt.Errorf("%w: %q for a %s report", ErrReportTypeMismatch, name, rt)
		return res
	}

	text, err := xmlgen.Generate(req.Report, t.clock())
	if err != nil {
		res.Err = err
		return res
	}
	wire, err := xmlgen.EncodeWire(text)
	if err != nil {
		res.Err = err
		return res
	}
	check := xmlcheck.ValidateAs(wire, rt)
	res.Validation = check
	if !check.Valid {
		res.Err = fmt.Errorf("%w: %d errors", ErrDocumentInvalid, len(check.Errors))
		return res
	}

	policy := req.Signing
	if policy == SignDefault {
		if rt == model.AccessControl {
			policy = SignRequire
		} else {
			policy = SignPrefer
		}
	}

	res.Stage = StageSign
	res.State = StateFailed

	payload := smime.Payload{
		From:           t.from,
		To:             req.To,
		Subject:        subject,
		Body:           req.Body,
		MessageID:      smime.NewMessageID(t.from),
		AttachmentName: name,
		// The attachment is always the raw generator output. Wrapping an
		// already signed container in a second signature makes the
		// message unreadable at the intake.
		Attachment: wire,
	}
	if payload.Body == "" {
		payload.Body = "In allegato il riepilogo " + subject + "."
	}
	res.MessageID = payload.MessageID

	var raw []byte
	envFrom := t.from

	if policy != SignSkip {
		art, signerEmail, err := t.signOnce(ctx, payload)
		switch {
		case err == nil:
			res.Signed = true
			res.SignerEmail = art.SignerEmail
			if res.SignerEmail == "" {
				res.SignerEmail = signerEmail
			}
			res.SignerName = art.SignerName
			res.SignedAt = art.SignedAt
			raw = art.SignedBytes
			envFrom = signerEmail
		case policy == SignRequire:
			res.Err = err
			return res
		default:
			res.Fallback = true
		}
	}

	if raw == nil {
		unsigned, err := smime.BuildSignable(payload, t.clock())
		if err != nil {
			res.Err = err
			return res
		}
		raw = unsigned
	}

	res.Stage = StageSend
	env := mail.Envelope{From: envFrom, To: req.To}
	if err := t.mail.Send(ctx, env, raw); err != nil {
		res.Err = fmt.Errorf("mail dispatch: %w", err)
		return res
	}

	res.State = StateSent
	res.Stage = StageDone
	return res
}

// signOnce performs one serialized signing round trip: connectivity,
// signer identity, signature, artifact plausibility. The signer is a
// single-session device, so reports queued together sign strictly one
// after the other. A bridge timeout surfaces as not connected; it is not
// retried here.
func (t *Transmitter) signOnce(ctx context.Context, payload smime.Payload) (*bridge.Artifact, string, error) {
	if t.bridge == nil {
		return nil, "", bridge.ErrNotConnected
	}

	t.signMu.Lock()
	defer t.signMu.Unlock()

	if !t.bridge.Connected(ctx) {
		return nil, "", bridge.ErrNotConnected
	}

	signerEmail, err := t.bridge.SignerEmail(ctx)
	if err != nil {
		return nil, "", err
	}
	// The sender of record is the signing credential's mailbox, never the
	// configured one: the intake matches the visible sender against the
	// signature, and the headers freeze the moment they are signed.
	payload.From = signerEmail

	art, err := t.bridge.Sign(ctx, payload)
	if err != nil {
		return nil, "", err
	}
	if _, err := smime.CheckArtifact(art.SignedBytes); err != nil {
		return nil, "", err
	}
	return art, signerEmail, nil
}

// reportSystemCode returns the system code the report content declares.
func reportSystemCode(d *model.ReportData) string {
	switch {
	case d.Daily != nil:
		return d.Daily.Titolare.SistemaEmissione
	case d.Monthly != nil:
		return d.Monthly.Titolare.SistemaEmissione
	case d.AccessControl != nil:
		return d.AccessControl.Titolare.CodiceSistemaCA
	}
	return ""
}
