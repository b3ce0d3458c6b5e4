package smime

import (
	"crypto"
	"crypto/sha256"
	"crypto/x509"
	"crypto/x509/pkix"
	"encoding/asn1"
	"fmt"
	"log"

	"github.com/smallstep/pkcs7"
)

// Sign wraps a rendered MIME message into an attached PKCS7 SignedData. The
// content stays embedded: the recipient recovers the whole message from the
// signature container.
func Sign(signer crypto.Signer, cert *x509.Certificate, chain []*x509.Certificate, message []byte) ([]byte, error) {
	log.Printf("DEBUG: Starting S/MIME signing (message len: %d)", len(message))

	sd, err := pkcs7.NewSignedData(message)
	if err != nil {
		return nil, fmt.Errorf("failed to create signed data: %w", err)
	}
	sd.SetDigestAlgorithm(pkcs7.OIDDigestAlgorithmSHA256)

	certHash := sha256.Sum256(cert.Raw)
	log.Printf("DEBUG: Signer Cert: %s (%x)", cert.Subject.CommonName, certHash[:8])

	signingCertV2 := SigningCertificateV2{
		Certs: []ESSCertIDv2{
			{
				HashAlgorithm: pkix.AlgorithmIdentifier{
					Algorithm:  OidSHA256,
					Parameters: asn1.RawValue{Tag: asn1.TagNull},
				},
				CertHash: certHash[:],
			},
		},
	}
	signingCertV2Bytes, err := asn1.Marshal(signingCertV2)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal signingCertificateV2: %w", err)
	}

	config := pkcs7.SignerInfoConfig{
		ExtraSignedAttributes: []pkcs7.Attribute{
			{
				Type:  OidSigningCertificateV2,
				Value: asn1.RawValue{FullBytes: signingCertV2Bytes},
			},
		},
	}
	if err := sd.AddSigner(cert, signer, config); err != nil {
		log.Printf("DEBUG: AddSigner failed: %v", err)
		return nil, fmt.Errorf("failed to add signer: %w", err)
	}

	log.Printf("DEBUG: Adding %d certs to chain", len(chain))
	for _, c := range chain {
		sd.AddCertificate(c)
	}

	der, err := sd.Finish()
	if err != nil {
		log.Printf("DEBUG: pkcs7.Finish failed: %v", err)
		return nil, fmt.Errorf("failed to finish signature: %w", err)
	}

	log.Printf("DEBUG: Signing complete, signature size: %d", len(der))
	return der, nil
}
