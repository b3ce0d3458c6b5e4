// fakebridge is a development stand-in for the signer daemon. It serves
// the bridge HTTP API (GET /status, GET /identity, POST /sign) and signs
// with either a stored identity or a throwaway key generated at startup,
// so the pipeline can be exercised end to end without a smart card.
package main

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/json"
	"flag"
	"fmt"
	"log"
	"math/big"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/biglietteria/riepilogo/internal/bridge"
	"github.com/biglietteria/riepilogo/internal/crypto/credstore"
	"github.com/biglietteria/riepilogo/internal/crypto/smime"
)

var (
	local *bridge.Local
	ident *credstore.Identity

	// One signing at a time, like the card the daemon stands in for.
	signMu sync.Mutex

	port       int
	storeDir   string
	identityID string
	pin        string
	email      string
	holder     string
	delay      time.Duration
	refuse     bool
)

func main() {
	flag.IntVar(&port, "port", 17450, "Port to listen on")
	flag.StringVar(&storeDir, "store", "", "Credential store directory (with -identity)")
	flag.StringVar(&identityID, "identity", "", "Stored identity id to sign with")
	flag.StringVar(&pin, "pin", "", "Smart card PIN when the identity is card-linked")
	flag.StringVar(&email, "email", "firma.prova@biglietteria.example", "Mailbox of the throwaway identity")
	flag.StringVar(&holder, "name", "PROVA FIRMA", "Holder name of the throwaway identity, surname first as on a qualified certificate")
	flag.DurationVar(&delay, "delay", 0, "Artificial delay per signature, for timeout testing")
	flag.BoolVar(&refuse, "refuse", false, "Refuse every signature with 409")
	flag.Parse()

	var err error
	if identityID != "" {
		ident, err = storedIdentity()
	} else {
		ident, err = throwawayIdentity()
	}
	if err != nil {
		log.Fatalf("Failed to load identity: %v", err)
	}
	local, err = bridge.NewLocal(ident)
	if err != nil {
		log.Fatalf("Failed to build signer: %v", err)
	}

	http.HandleFunc("/status", handleStatus)
	http.HandleFunc("/identity", handleIdentity)
	http.HandleFunc("/sign", handleSign)

	addr := fmt.Sprintf("127.0.0.1:%d", port)
	log.Printf("fakebridge listening on %s, signing as %s <%s>", addr, ident.DisplayName(), ident.Email())
	if err := http.ListenAndServe(addr, nil); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}

func storedIdentity() (*credstore.Identity, error) {
	if storeDir == "" {
		return nil, fmt.Errorf("-identity requires -store")
	}
	store, err := credstore.Open(storeDir, []byte(os.Getenv("RIEPILOGO_VAULT_PASSPHRASE")))
	if err != nil {
		return nil, err
	}
	return store.Unlock(context.Background(), identityID, pin)
}

func throwawayIdentity() (*credstore.Identity, error) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		return nil, err
	}
	tmpl := &x509.Certificate{
		SerialNumber: big.NewInt(time.Now().UnixNano()),
		Subject: pkix.Name{
			CommonName:   holder,
			SerialNumber: "TINIT-PRVFRM70A01H501X",
		},
		EmailAddresses: []string{email},
		NotBefore:      time.Now().Add(-time.Hour),
		NotAfter:       time.Now().AddDate(5, 0, 0),
		KeyUsage:       x509.KeyUsageDigitalSignature,
	}
	der, err := x509.CreateCertificate(rand.Reader, tmpl, tmpl, &key.PublicKey, key)
	if err != nil {
		return nil, err
	}
	cert, err := x509.ParseCertificate(der)
	if err != nil {
		return nil, err
	}
	return &credstore.Identity{
		ID:          "ephemeral",
		Label:       "chiave di prova",
		Cert:        cert,
		Fingerprint: credstore.Fingerprint(cert),
		Signer:      key,
	}, nil
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

func handleStatus(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(statusResponse{Ready: true})
}

func handleIdentity(w http.ResponseWriter, r *http.Request) {
	if ident.Email() == "" {
		http.Error(w, "loaded certificate carries no mailbox", http.StatusServiceUnavailable)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(identityResponse{Email: ident.Email(), Name: ident.DisplayName()})
}

func handleSign(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "POST only", http.StatusMethodNotAllowed)
		return
	}
	var req signRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "Invalid JSON", http.StatusBadRequest)
		return
	}
	if refuse {
		http.Error(w, "signature refused by operator", http.StatusConflict)
		return
	}

	signMu.Lock()
	if delay > 0 {
		time.Sleep(delay)
	}
	art, err := local.Sign(r.Context(), smime.Payload{
		From:           req.From,
		To:             req.To,
		Subject:        req.Subject,
		Body:           req.Body,
		MessageID:      req.MessageID,
		AttachmentName: req.AttachmentName,
		Attachment:     req.Attachment,
	})
	signMu.Unlock()
	if err != nil {
		log.Printf("ERROR: signing %s failed: %v", req.AttachmentName, err)
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}

	log.Printf("signed %s for %s (%d bytes)", req.AttachmentName, req.To, len(art.SignedBytes))
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(signResponse{
		Signed:      art.SignedBytes,
		SignerEmail: art.SignerEmail,
		SignerName:  art.SignerName,
		SignedAt:    art.SignedAt,
	})
}
