package bridge

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/biglietteria/riepilogo/internal/crypto/smime"
)

// HTTPBridge talks to the signer daemon over its HTTP API: GET /status,
// GET /identity, POST /sign.
type HTTPBridge struct {
	base   string
	client *http.Client
}

// NewHTTP builds a bridge client for baseURL. The timeout bounds every
// call including the signing round trip, which waits on card I/O.
func NewHTTP(baseURL string, timeout time.Duration) *HTTPBridge {
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &HTTPBridge{
		base:   strings.TrimRight(baseURL, "/"),
		client: &http.Client{Timeout: timeout},
	}
}

type statusResponse struct {
	Ready bool `json:"ready"`
}

type identityResponse struct {
	Email string `json:"email"`
	Name  string `json:"name"`
}

type signRequest struct {
	From           string `json:"from"`
	To             string `json:"to"`
	Subject        string `json:"subject"`
	Body           string `json:"body"`
	MessageID      string `json:"messageId,omitempty"`
	AttachmentName string `json:"attachmentName"`
	Attachment     []byte `json:"attachment"`
}

type signResponse struct {
	Signed      []byte    `json:"signed"`
	SignerEmail string    `json:"signerEmail"`
	SignerName  string    `json:"signerName"`
	SignedAt    time.Time `json:"signedAt"`
}

func (b *HTTPBridge) Connected(ctx context.Context) bool {
	req, err := http.NewRequestWithContext(ctx, "GET", b.base+"/status", nil)
	if err != nil {
		return false
	}
	resp, err := b.client.Do(req)
	if err != nil {
		log.Printf("DEBUG: bridge status check failed: %v", err)
		return false
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return false
	}
	var st statusResponse
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		return false
	}
	return st.Ready
}

func (b *HTTPBridge) SignerEmail(ctx context.Context) (string, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", b.base+"/identity", nil)
	if err != nil {
		return "", fmt.Errorf("build identity request: %w", err)
	}
	resp, err := b.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrNotConnected, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusNotFound, http.StatusServiceUnavailable:
		return "", ErrNoSigner
	default:
		return "", httpError("identity", resp)
	}

	var ident identityResponse
	if err := json.NewDecoder(resp.Body).Decode(&ident); err != nil {
		return "", fmt.Errorf("decode identity response: %w", err)
	}
	if ident.Email == "" {
		return "", ErrNoSigner
	}
	return ident.Email, nil
}

func (b *HTTPBridge) Sign(ctx context.Context, p smime.Payload) (*Artifact, error) {
	log.Printf("DEBUG: bridge sign request for %s (%d attachment bytes)", p.AttachmentName, len(p.Attachment))

	payload, err := json.Marshal(signRequest{
		From:           p.From,
		To:             p.To,
		Subject:        p.Subject,
		Body:           p.Body,
		MessageID:      p.MessageID,
		AttachmentName: p.AttachmentName,
		Attachment:     p.Attachment,
	})
	if err != nil {
		return nil, fmt.Errorf("marshal sign request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "POST", b.base+"/sign", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("build sign request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := b.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotConnected, err)
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
	case http.StatusServiceUnavailable:
		return nil, ErrNoSigner
	case http.StatusConflict:
		return nil, fmt.Errorf("%w: %s", ErrSignRefused, bodySnippet(resp.Body))
	default:
		return nil, httpError("sign", resp)
	}

	var out signResponse
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return nil, fmt.Errorf("decode sign response: %w", err)
	}
	if len(out.Signed) == 0 {
		return nil, fmt.Errorf("bridge returned an empty artifact")
	}

	art := &Artifact{
		SignedBytes: out.Signed,
		SignerEmail: out.SignerEmail,
		SignerName:  out.SignerName,
		SignedAt:    out.SignedAt,
	}
	if art.SignedAt.IsZero() {
		art.SignedAt = time.Now()
	}
	log.Printf("DEBUG: bridge returned %d signed bytes for %s", len(art.SignedBytes), art.SignerEmail)
	return art, nil
}

func httpError(op string, resp *http.Response) error {
	msg := bodySnippet(resp.Body)
	if msg == "" {
		msg = resp.Status
	}
	return fmt.Errorf("bridge %s request failed: %s", op, msg)
}

func bodySnippet(r io.Reader) string {
	b, _ := io.ReadAll(io.LimitReader(r, 2048))
	return strings.TrimSpace(string(b))
}
