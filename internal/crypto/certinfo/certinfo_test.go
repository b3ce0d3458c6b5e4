package certinfo

import (
	"crypto/x509"
	"crypto/x509/pkix"
	"testing"
	"time"
)

func TestExtract_PersonalTINITStyle(t *testing.T) {
	cert := &x509.Certificate{
		Subject: pkix.Name{
			CommonName: "ROSSI MARIO",
			Names: []pkix.AttributeTypeAndValue{
				{Type: oidGivenName, Value: "MARIO"},
				{Type: oidSurname, Value: "ROSSI"},
				{Type: oidSerialNumber, Value: "TINIT-RSSMRA80A01H501U"},
			},
		},
		Issuer: pkix.Name{
			CommonName:   "ArubaPEC EU Qualified Certificates CA G1",
			Organization: []string{"ArubaPEC S.p.A."},
		},
		EmailAddresses: []string{"mario.rossi@pec.example.it"},
		NotAfter:       time.Date(2027, 6, 30, 12, 0, 0, 0, time.UTC),
	}

	info := Extract(cert)
	if info.IsLegalEntity {
		t.Fatal("expected personal certificate, got legal entity")
	}
	if info.CodiceFiscale != "RSSMRA80A01H501U" {
		t.Fatalf("unexpected codice fiscale: %q", info.CodiceFiscale)
	}
	if info.Nome != "MARIO" || info.Cognome != "ROSSI" {
		t.Fatalf("unexpected holder name: %q %q", info.Nome, info.Cognome)
	}
	if info.Email != "mario.rossi@pec.example.it" {
		t.Fatalf("unexpected email: %q", info.Email)
	}
	if info.ValidUntil != "2027-06-30" {
		t.Fatalf("unexpected expiry: %q", info.ValidUntil)
	}
}

func TestExtract_LegalEntitySeal(t *testing.T) {
	cert := &x509.Certificate{
		Subject: pkix.Name{
			CommonName: "BIGLIETTERIA CENTRALE SRL",
			Names: []pkix.AttributeTypeAndValue{
				{Type: oidOrganization, Value: "BIGLIETTERIA CENTRALE SRL"},
				{Type: oidOrganizationIdentifier, Value: "VATIT-01234567890"},
			},
		},
		Issuer: pkix.Name{CommonName: "InfoCert Qualified Electronic Seal CA"},
	}

	info := Extract(cert)
	if !info.IsLegalEntity {
		t.Fatal("expected legal-entity certificate")
	}
	if info.PartitaIVA != "01234567890" {
		t.Fatalf("unexpected partita IVA: %q", info.PartitaIVA)
	}
	if info.Organization != "BIGLIETTERIA CENTRALE SRL" {
		t.Fatalf("unexpected organization: %q", info.Organization)
	}
}

func TestExtract_CodiceFiscaleFromCommonName(t *testing.T) {
	cert := &x509.Certificate{
		Subject: pkix.Name{
			CommonName: "VRDLGU75C03F839K/7420091000123456.q9KLv1xyz",
		},
		Issuer: pkix.Name{CommonName: "Actalis CNS CA"},
	}

	info := Extract(cert)
	if info.CodiceFiscale != "VRDLGU75C03F839K" {
		t.Fatalf("unexpected codice fiscale: %q", info.CodiceFiscale)
	}
	if info.Nome != "" || info.Cognome != "" {
		t.Fatalf("no holder name expected, got %q %q", info.Nome, info.Cognome)
	}
}

func TestExtract_LegacyEmailAttribute(t *testing.T) {
	cert := &x509.Certificate{
		Subject: pkix.Name{
			CommonName: "BIANCHI LUISA",
			Names: []pkix.AttributeTypeAndValue{
				{Type: oidSurname, Value: "BIANCHI"},
				{Type: oidGivenName, Value: "LUISA"},
				{Type: oidEmailAddress, Value: "luisa.bianchi@example.it"},
			},
		},
		Issuer: pkix.Name{CommonName: "Test CA"},
	}

	info := Extract(cert)
	if info.Email != "luisa.bianchi@example.it" {
		t.Fatalf("unexpected email: %q", info.Email)
	}
}
