// Package certinfo extracts the holder identity from Italian qualified
// certificates: natural persons (codice fiscale in the serialNumber
// attribute, ETSI TINIT/PNOIT prefixes) and legal-entity seals
// (organizationIdentifier with a VATIT partita IVA).
package certinfo

import (
	"crypto/x509"
	"encoding/asn1"
	"regexp"
	"strings"
)

var (
	oidGivenName              = asn1.ObjectIdentifier{2, 5, 4, 42}
	oidSurname                = asn1.ObjectIdentifier{2, 5, 4, 4}
	oidSerialNumber           = asn1.ObjectIdentifier{2, 5, 4, 5}
	oidOrganization           = asn1.ObjectIdentifier{2, 5, 4, 10}
	oidOrganizationIdentifier = asn1.ObjectIdentifier{2, 5, 4, 97}
	oidEmailAddress           = asn1.ObjectIdentifier{1, 2, 840, 113549, 1, 9, 1}
)

var (
	// Italian natural-person fiscal code.
	reCodiceFiscale = regexp.MustCompile(`\b[A-Z]{6}\d{2}[A-Z]\d{2}[A-Z]\d{3}[A-Z]\b`)
	// Legal-entity partita IVA.
	rePartitaIVA = regexp.MustCompile(`\b\d{11}\b`)
)

// Info is the identity read out of one certificate.
type Info struct {
	Nome          string
	Cognome       string
	CodiceFiscale string
	Organization  string
	PartitaIVA    string
	// Email is the address bound into the credential, from the subject
	// alternative names or the legacy subject attribute.
	Email         string
	IsLegalEntity bool
	RawSubject    string
	Issuer        string
	ValidUntil    string
}

// Extract reads the holder identity of an Italian qualified certificate.
func Extract(cert *x509.Certificate) Info {
	info := Info{
		RawSubject: cert.Subject.String(),
		Issuer:     cert.Issuer.CommonName,
		ValidUntil: cert.NotAfter.Format("2006-01-02"),
	}

	var hasPersonalAttrs bool
	for _, name := range cert.Subject.Names {
		val, ok := name.Value.(string)
		if !ok {
			continue
		}
		val = strings.TrimSpace(val)
		switch {
		case name.Type.Equal(oidGivenName):
			info.Nome = normalizeSpace(val)
			if info.Nome != "" {
				hasPersonalAttrs = true
			}
		case name.Type.Equal(oidSurname):
			info.Cognome = normalizeSpace(val)
			if info.Cognome != "" {
				hasPersonalAttrs = true
			}
		case name.Type.Equal(oidSerialNumber):
			if cf := extractCodiceFiscale(val); cf != "" {
				info.CodiceFiscale = cf
				hasPersonalAttrs = true
			}
		case name.Type.Equal(oidOrganization):
			info.Organization = normalizeSpace(val)
		case name.Type.Equal(oidOrganizationIdentifier):
			info.PartitaIVA = extractPartitaIVA(val)
		case name.Type.Equal(oidEmailAddress):
			if info.Email == "" {
				info.Email = val
			}
		}
	}

	// The SAN list wins over the legacy subject attribute.
	if len(cert.EmailAddresses) > 0 {
		info.Email = cert.EmailAddresses[0]
	}

	cn := normalizeSpace(cert.Subject.CommonName)
	if info.CodiceFiscale == "" {
		info.CodiceFiscale = extractCodiceFiscale(cn)
	}
	if info.Nome == "" && info.Cognome == "" && info.Organization == "" {
		namePart := cn
		if idx := strings.IndexAny(namePart, "/-"); idx >= 0 {
			namePart = namePart[:idx]
		}
		parts := strings.Fields(normalizeSpace(namePart))
		if len(parts) >= 2 && extractCodiceFiscale(namePart) == "" {
			info.Cognome = parts[0]
			info.Nome = strings.Join(parts[1:], " ")
		}
	}

	info.IsLegalEntity = info.PartitaIVA != "" || (!hasPersonalAttrs && info.CodiceFiscale == "" && info.Organization != "")
	return info
}

func extractCodiceFiscale(s string) string {
	v := strings.ToUpper(normalizeSpace(s))
	for _, p := range []string{"TINIT-", "PNOIT-", "IDCIT-", "CF:"} {
		v = strings.TrimPrefix(v, p)
	}
	return reCodiceFiscale.FindString(v)
}

func extractPartitaIVA(s string) string {
	v := strings.ToUpper(normalizeSpace(s))
	v = strings.TrimPrefix(v, "VATIT-")
	if m := rePartitaIVA.FindString(v); m != "" {
		return m
	}
	return v
}

func normalizeSpace(s string) string {
	return strings.Join(strings.Fields(strings.TrimSpace(s)), " ")
}
