package smime

import (
	"crypto/x509/pkix"
	"encoding/asn1"
)

// OID for id-aa-signingCertificateV2
var OidSigningCertificateV2 = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 16, 2, 47}
var OidSHA256 = asn1.ObjectIdentifier{2, 16, 840, 1, 101, 3, 4, 2, 1}

type SigningCertificateV2 struct {
	Certs []ESSCertIDv2
}

type ESSCertIDv2 struct {
	HashAlgorithm pkix.AlgorithmIdentifier `asn1:"default:sha256"`
	CertHash      []byte
	IssuerSerial  IssuerSerial `asn1:"optional"`
}

type IssuerSerial struct {
	Issuer asn1.RawValue
	Serial asn1.RawValue
}
