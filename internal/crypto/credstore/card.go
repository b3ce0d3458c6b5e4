//go:build cgo

package credstore

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"errors"
	"fmt"
	"io"
	"log"
	"math/big"

	"github.com/miekg/pkcs11"
)

// CardSigner signs through PKCS#11 middleware. Every signature opens its
// own session so the card can be removed and reinserted between calls.
type CardSigner struct {
	Module    string
	Slot      uint
	PIN       string
	KeyID     []byte
	PublicKey crypto.PublicKey
}

func (s *CardSigner) Public() crypto.PublicKey {
	return s.PublicKey
}

func (s *CardSigner) Sign(rand io.Reader, digest []byte, opts crypto.SignerOpts) ([]byte, error) {
	log.Printf("DEBUG: CardSigner.Sign slot %d module %s", s.Slot, s.Module)

	p := pkcs11.New(s.Module)
	if p == nil {
		return nil, fmt.Errorf("load PKCS#11 module %s", s.Module)
	}
	defer p.Destroy()

	if err := p.Initialize(); err != nil && !alreadyDone(err, pkcs11.CKR_CRYPTOKI_ALREADY_INITIALIZED) {
		return nil, fmt.Errorf("initialize middleware: %w", err)
	}
	defer p.Finalize()

	session, err := p.OpenSession(s.Slot, pkcs11.CKF_SERIAL_SESSION)
	if err != nil {
		return nil, fmt.Errorf("open card session: %w", err)
	}
	defer p.CloseSession(session)

	if s.PIN != "" {
		if err := p.Login(session, pkcs11.CKU_USER, s.PIN); err != nil {
			if !alreadyDone(err, pkcs11.CKR_USER_ALREADY_LOGGED_IN) {
				return nil, fmt.Errorf("card login: %w", err)
			}
		} else {
			defer p.Logout(session)
		}
	}

	key, err := findCardKey(p, session, s.KeyID)
	if err != nil {
		return nil, err
	}

	var mech *pkcs11.Mechanism
	payload := digest
	switch s.PublicKey.(type) {
	case *rsa.PublicKey:
		mech = pkcs11.NewMechanism(pkcs11.CKM_RSA_PKCS, nil)
		prefix, err := digestInfoPrefix(opts.HashFunc())
		if err != nil {
			return nil, err
		}
		payload = append(prefix, digest...)
	case *ecdsa.PublicKey:
		mech = pkcs11.NewMechanism(pkcs11.CKM_ECDSA, nil)
	default:
		return nil, fmt.Errorf("unsupported key type %T", s.PublicKey)
	}

	if err := p.SignInit(session, []*pkcs11.Mechanism{mech}, key); err != nil {
		log.Printf("DEBUG: SignInit failed: %v", err)
		return nil, fmt.Errorf("sign init: %w", err)
	}
	sig, err := p.Sign(session, payload)
	if err != nil {
		log.Printf("DEBUG: card Sign failed: %v", err)
		return nil, fmt.Errorf("card signature: %w", err)
	}

	if _, ok := s.PublicKey.(*ecdsa.PublicKey); ok {
		return encodeECDSASignature(sig)
	}
	log.Printf("DEBUG: card signature produced, %d bytes", len(sig))
	return sig, nil
}

// CardCredential pairs a certificate read from a card with the key
// identifier binding it to its private key object.
type CardCredential struct {
	Cert  *x509.Certificate
	KeyID []byte
}

// CardCredentials lists the certificates present on a card.
func CardCredentials(module string, slot uint) ([]CardCredential, error) {
	p := pkcs11.New(module)
	if p == nil {
		return nil, fmt.Errorf("load PKCS#11 module %s", module)
	}
	defer p.Destroy()

	if err := p.Initialize(); err != nil && !alreadyDone(err, pkcs11.CKR_CRYPTOKI_ALREADY_INITIALIZED) {
		return nil, fmt.Errorf("initialize middleware: %w", err)
	}
	defer p.Finalize()

	session, err := p.OpenSession(slot, pkcs11.CKF_SERIAL_SESSION)
	if err != nil {
		return nil, fmt.Errorf("open card session: %w", err)
	}
	defer p.CloseSession(session)

	if err := p.FindObjectsInit(session, []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_CLASS, pkcs11.CKO_CERTIFICATE),
	}); err != nil {
		return nil, fmt.Errorf("certificate search: %w", err)
	}
	objs, _, err := p.FindObjects(session, 32)
	p.FindObjectsFinal(session)
	if err != nil {
		return nil, fmt.Errorf("certificate search: %w", err)
	}

	var out []CardCredential
	for _, obj := range objs {
		attrs, err := p.GetAttributeValue(session, obj, []*pkcs11.Attribute{
			pkcs11.NewAttribute(pkcs11.CKA_VALUE, nil),
			pkcs11.NewAttribute(pkcs11.CKA_ID, nil),
		})
		if err != nil || len(attrs) < 2 {
			continue
		}
		cert, err := x509.ParseCertificate(attrs[0].Value)
		if err != nil {
			continue
		}
		out = append(out, CardCredential{Cert: cert, KeyID: attrs[1].Value})
	}
	return out, nil
}

func findCardKey(p *pkcs11.Ctx, session pkcs11.SessionHandle, keyID []byte) (pkcs11.ObjectHandle, error) {
	tmpl := []*pkcs11.Attribute{
		pkcs11.NewAttribute(pkcs11.CKA_CLASS, pkcs11.CKO_PRIVATE_KEY),
	}
	if len(keyID) > 0 {
		tmpl = append(tmpl, pkcs11.NewAttribute(pkcs11.CKA_ID, keyID))
	}
	if err := p.FindObjectsInit(session, tmpl); err != nil {
		return 0, fmt.Errorf("key search: %w", err)
	}
	objs, _, err := p.FindObjects(session, 1)
	p.FindObjectsFinal(session)
	if err != nil {
		return 0, fmt.Errorf("key search: %w", err)
	}
	if len(objs) == 0 {
		return 0, errors.New("private key not present on card")
	}
	return objs[0], nil
}

func alreadyDone(err error, code pkcs11.Error) bool {
	var pe pkcs11.Error
	return errors.As(err, &pe) && pe == code
}

type digestInfo struct {
	Algorithm pkix.AlgorithmIdentifier
	Digest    []byte
}

var (
	oidDigestSHA1   = asn1.ObjectIdentifier{1, 3, 14, 3, 2, 26}
	oidDigestSHA256 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 1}
	oidDigestSHA384 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 2}
	oidDigestSHA512 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 3}
)

// digestInfoPrefix builds the DigestInfo header CKM_RSA_PKCS expects in
// front of the raw digest. Marshalling a zero-filled DigestInfo and cutting
// the hash bytes off the end yields the prefix for any standard hash size.
func digestInfoPrefix(hash crypto.Hash) ([]byte, error) {
	var oid asn1.ObjectIdentifier
	switch hash {
	case crypto.SHA1:
		oid = oidDigestSHA1
	case crypto.SHA256:
		oid = oidDigestSHA256
	case crypto.SHA384:
		oid = oidDigestSHA384
	case crypto.SHA512:
		oid = oidDigestSHA512
	default:
		return nil, fmt.Errorf("unsupported hash %v", hash)
	}

	full, err := asn1.Marshal(digestInfo{
		Algorithm: pkix.AlgorithmIdentifier{
			Algorithm:  oid,
			Parameters: asn1.RawValue{Tag: asn1.TagNull},
		},
		Digest: make([]byte, hash.Size()),
	})
	if err != nil {
		return nil, err
	}
	return full[:len(full)-hash.Size()], nil
}

func encodeECDSASignature(sig []byte) ([]byte, error) {
	if len(sig) == 0 || len(sig)%2 != 0 {
		return nil, errors.New("malformed ECDSA signature from card")
	}
	half := len(sig) / 2
	r := new(big.Int).SetBytes(sig[:half])
	s := new(big.Int).SetBytes(sig[half:])
	return asn1.Marshal(struct{ R, S *big.Int }{r, s})
}
