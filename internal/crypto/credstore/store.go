package credstore

import (
	"context"
	"crypto"
	"crypto/x509"
	"encoding/hex"
	"encoding/json"
	"encoding/pem"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Store keeps imported credentials under one directory. Vault identities
// hold their private key sealed on disk; card and system identities hold
// only a reference resolved again at unlock time.
type Store struct {
	mu         sync.Mutex
	dir        string
	passphrase []byte
}

type cardRef struct {
	Module   string `json:"module"`
	Slot     uint   `json:"slot"`
	KeyIDHex string `json:"keyIdHex"`
}

type systemRef struct {
	FingerprintHex string `json:"fingerprintHex"`
}

type record struct {
	ID             string     `json:"id"`
	Label          string     `json:"label"`
	CertPEM        string     `json:"certPem"`
	ChainPEM       []string   `json:"chainPem,omitempty"`
	FingerprintHex string     `json:"fingerprintHex"`
	Card           *cardRef   `json:"card,omitempty"`
	System         *systemRef `json:"system,omitempty"`
}

// Open prepares a credential store rooted at dir. The passphrase guards
// the sealed private keys of vault identities for the lifetime of the
// store.
func Open(dir string, passphrase []byte) (*Store, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}
	return &Store{dir: dir, passphrase: passphrase}, nil
}

// Import reads a PKCS#12 credential, seals its private key with the store
// passphrase and records the identity. The returned identity carries the
// live signer.
func (s *Store) Import(ctx context.Context, label string, r io.Reader, password string) (*Identity, error) {
	signer, cert, chain, err := LoadP12(r, password)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	fp := Fingerprint(cert)
	if s.existsLocked(fp) {
		return nil, ErrDuplicate
	}

	keyBytes, err := x509.MarshalPKCS8PrivateKey(signer)
	if err != nil {
		return nil, fmt.Errorf("marshal private key: %w", err)
	}
	sealed, err := Seal(keyBytes, s.passphrase)
	if err != nil {
		return nil, fmt.Errorf("seal private key: %w", err)
	}

	id := uuid.New().String()
	keyPath := filepath.Join(s.dir, id+".key.sealed")
	if err := os.WriteFile(keyPath, sealed, 0600); err != nil {
		return nil, fmt.Errorf("write sealed key: %w", err)
	}

	if err := s.writeRecord(record{
		ID:             id,
		Label:          label,
		CertPEM:        encodeCertPEM(cert),
		ChainPEM:       encodeChainPEM(chain),
		FingerprintHex: hex.EncodeToString(fp[:]),
	}); err != nil {
		os.Remove(keyPath)
		return nil, err
	}

	return &Identity{
		ID:          id,
		Label:       label,
		Cert:        cert,
		Chain:       chain,
		Fingerprint: fp,
		Signer:      signer,
	}, nil
}

// LinkCard records a smart card credential. No key material touches the
// disk; the signer is rebuilt from the middleware reference at unlock
// time.
func (s *Store) LinkCard(ctx context.Context, label string, cert *x509.Certificate, chain []*x509.Certificate, module string, slot uint, keyID []byte) (*Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fp := Fingerprint(cert)
	if s.existsLocked(fp) {
		return nil, ErrDuplicate
	}

	id := uuid.New().String()
	if err := s.writeRecord(record{
		ID:             id,
		Label:          label,
		CertPEM:        encodeCertPEM(cert),
		ChainPEM:       encodeChainPEM(chain),
		FingerprintHex: hex.EncodeToString(fp[:]),
		Card: &cardRef{
			Module:   module,
			Slot:     slot,
			KeyIDHex: hex.EncodeToString(keyID),
		},
	}); err != nil {
		return nil, err
	}
	return &Identity{ID: id, Label: label, Cert: cert, Chain: chain, Fingerprint: fp}, nil
}

// LinkSystem records a credential whose key stays in the operating system
// store.
func (s *Store) LinkSystem(ctx context.Context, label string, cert *x509.Certificate, chain []*x509.Certificate) (*Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	fp := Fingerprint(cert)
	if s.existsLocked(fp) {
		return nil, ErrDuplicate
	}

	id := uuid.New().String()
	if err := s.writeRecord(record{
		ID:             id,
		Label:          label,
		CertPEM:        encodeCertPEM(cert),
		ChainPEM:       encodeChainPEM(chain),
		FingerprintHex: hex.EncodeToString(fp[:]),
		System:         &systemRef{FingerprintHex: hex.EncodeToString(fp[:])},
	}); err != nil {
		return nil, err
	}
	return &Identity{ID: id, Label: label, Cert: cert, Chain: chain, Fingerprint: fp}, nil
}

// List returns all recorded identities without key access, ordered by
// label.
func (s *Store) List(ctx context.Context) ([]Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return nil, fmt.Errorf("read store dir: %w", err)
	}

	var out []Identity
	for _, entry := range entries {
		if filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		rec, err := s.readRecord(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			continue
		}
		ident, err := rec.identity()
		if err != nil {
			continue
		}
		out = append(out, *ident)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Label < out[j].Label })
	return out, nil
}

// Unlock resolves the signer behind a recorded identity. cardPIN is used
// only for card-backed identities and may stay empty when the middleware
// holds a cached login.
func (s *Store) Unlock(ctx context.Context, id, cardPIN string) (*Identity, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, err := s.readRecord(id)
	if err != nil {
		return nil, err
	}
	ident, err := rec.identity()
	if err != nil {
		return nil, err
	}

	switch {
	case rec.Card != nil:
		keyID, err := hex.DecodeString(rec.Card.KeyIDHex)
		if err != nil {
			return nil, fmt.Errorf("card key reference corrupt: %w", err)
		}
		ident.Signer = &CardSigner{
			Module:    rec.Card.Module,
			Slot:      rec.Card.Slot,
			PIN:       cardPIN,
			KeyID:     keyID,
			PublicKey: ident.Cert.PublicKey,
		}
	case rec.System != nil:
		signer, err := systemSigner(rec.System.FingerprintHex)
		if err != nil {
			return nil, err
		}
		ident.Signer = signer
	default:
		sealed, err := os.ReadFile(filepath.Join(s.dir, id+".key.sealed"))
		if err != nil {
			return nil, fmt.Errorf("read sealed key: %w", err)
		}
		keyBytes, err := Unseal(sealed, s.passphrase)
		if err != nil {
			return nil, err
		}
		priv, err := x509.ParsePKCS8PrivateKey(keyBytes)
		if err != nil {
			return nil, fmt.Errorf("parse private key: %w", err)
		}
		signer, ok := priv.(crypto.Signer)
		if !ok {
			return nil, fmt.Errorf("stored key does not support signing")
		}
		ident.Signer = signer
	}
	return ident, nil
}

// Delete removes an identity record and any sealed key material.
func (s *Store) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.readRecord(id); err != nil {
		return err
	}
	os.Remove(filepath.Join(s.dir, id+".key.sealed"))
	return os.Remove(filepath.Join(s.dir, id+".json"))
}

func (s *Store) existsLocked(fp [32]byte) bool {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		return false
	}
	want := hex.EncodeToString(fp[:])
	for _, entry := range entries {
		if filepath.Ext(entry.Name()) != ".json" {
			continue
		}
		rec, err := s.readRecord(strings.TrimSuffix(entry.Name(), ".json"))
		if err != nil {
			continue
		}
		if rec.FingerprintHex == want {
			return true
		}
	}
	return false
}

func (s *Store) readRecord(id string) (*record, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, id+".json"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	var rec record
	if err := json.Unmarshal(data, &rec); err != nil {
		return nil, fmt.Errorf("identity record corrupt: %w", err)
	}
	return &rec, nil
}

func (s *Store) writeRecord(rec record) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal identity record: %w", err)
	}
	if err := os.WriteFile(filepath.Join(s.dir, rec.ID+".json"), data, 0600); err != nil {
		return fmt.Errorf("write identity record: %w", err)
	}
	return nil
}

func (r *record) identity() (*Identity, error) {
	block, _ := pem.Decode([]byte(r.CertPEM))
	if block == nil {
		return nil, fmt.Errorf("identity record %s: certificate missing", r.ID)
	}
	cert, err := x509.ParseCertificate(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("identity record %s: %w", r.ID, err)
	}

	var chain []*x509.Certificate
	for _, pemStr := range r.ChainPEM {
		b, _ := pem.Decode([]byte(pemStr))
		if b == nil {
			continue
		}
		if c, err := x509.ParseCertificate(b.Bytes); err == nil {
			chain = append(chain, c)
		}
	}

	return &Identity{
		ID:          r.ID,
		Label:       r.Label,
		Cert:        cert,
		Chain:       chain,
		Fingerprint: Fingerprint(cert),
	}, nil
}

func encodeCertPEM(cert *x509.Certificate) string {
	return string(pem.EncodeToMemory(&pem.Block{Type: "CERTIFICATE", Bytes: cert.Raw}))
}

func encodeChainPEM(chain []*x509.Certificate) []string {
	var out []string
	for _, c := range chain {
		out = append(out, encodeCertPEM(c))
	}
	return out
}
