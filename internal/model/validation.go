package model

import (
	"errors"
	"fmt"
	"regexp"
	"time"
)

var (
	reSistemaEmissione = regexp.MustCompile(`^[A-Za-z0-9]{8}$`)
	reCodiceLocale     = regexp.MustCompile(`^\d{13}$`)
	// Italian fiscal identifiers: personal codice fiscale and partita IVA.
	reCodiceFiscale = regexp.MustCompile(`^[A-Z]{6}\d{2}[A-Z]\d{2}[A-Z]\d{3}[A-Z]$`)
	rePartitaIVA    = regexp.MustCompile(`^\d{11}$`)
)

func validCodiceFiscale(cf string) bool {
	return reCodiceFiscale.MatchString(cf) || rePartitaIVA.MatchString(cf)
}

func validData(s string) bool {
	if len(s) != 8 {
		return false
	}
	_, err := time.Parse("20060102", s)
	return err == nil
}

func validOra(s string) bool {
	if len(s) != 4 {
		return false
	}
	_, err := time.Parse("1504", s)
	return err == nil
}

// Validate checks the populated payload. Every value handed to the generator
// or the transmitter must pass it first.
func (d *ReportData) Validate() error {
	t, err := d.Type()
	if err != nil {
		return err
	}
	switch t {
	case Daily:
		return d.Daily.Validate()
	case Monthly:
		return d.Monthly.Validate()
	default:
		return d.AccessControl.Validate()
	}
}

func (h Header) validate() error {
	if h.Progressivo < 1 || h.Progressivo > 999 {
		return fmt.Errorf("progressivo %d outside [1,999]", h.Progressivo)
	}
	if h.DataReport.IsZero() {
		return errors.New("missing data riepilogo")
	}
	return nil
}

func (t Titolare) validate() error {
	if t.Denominazione == "" {
		return errors.New("titolare: missing denominazione")
	}
	if !validCodiceFiscale(t.CodiceFiscale) {
		return fmt.Errorf("titolare: invalid codice fiscale %q", t.CodiceFiscale)
	}
	if !reSistemaEmissione.MatchString(t.SistemaEmissione) {
		return fmt.Errorf("titolare: sistema emissione %q is not 8 alphanumeric characters", t.SistemaEmissione)
	}
	return nil
}

func (t TitolareCA) validate() error {
	if t.Denominazione == "" {
		return errors.New("titolare: missing denominazione")
	}
	if !validCodiceFiscale(t.CodiceFiscale) {
		return fmt.Errorf("titolare: invalid codice fiscale %q", t.CodiceFiscale)
	}
	if !reSistemaEmissione.MatchString(t.CodiceSistemaCA) {
		return fmt.Errorf("titolare: codice sistema %q is not 8 alphanumeric characters", t.CodiceSistemaCA)
	}
	if t.DataOraRiepilogo.IsZero() {
		return errors.New("titolare: missing data ora riepilogo")
	}
	if t.ProgressivoRiepilogo < 1 || t.ProgressivoRiepilogo > 999 {
		return fmt.Errorf("titolare: progressivo riepilogo %d outside [1,999]", t.ProgressivoRiepilogo)
	}
	return nil
}

func (o Organizzatore) validate() error {
	if o.Denominazione == "" {
		return errors.New("organizzatore: missing denominazione")
	}
	if !validCodiceFiscale(o.CodiceFiscale) {
		return fmt.Errorf("organizzatore: invalid codice fiscale %q", o.CodiceFiscale)
	}
	if o.Tipo != Gestore && o.Tipo != Terzo {
		return fmt.Errorf("organizzatore: tipo %q must be G or T", o.Tipo)
	}
	return nil
}

func (i Intrattenimento) validate() error {
	if i.TipoTassazione != TassazioneSpettacolo && i.TipoTassazione != TassazioneIntrattenimento {
		return fmt.Errorf("intrattenimento: tipo tassazione %q must be S or I", i.TipoTassazione)
	}
	if i.Incidenza != nil && (*i.Incidenza < 0 || *i.Incidenza > 100) {
		return fmt.Errorf("intrattenimento: incidenza %d outside [0,100]", *i.Incidenza)
	}
	return nil
}

func (l Locale) validate() error {
	if l.Denominazione == "" {
		return errors.New("locale: missing denominazione")
	}
	if !reCodiceLocale.MatchString(l.CodiceLocale) {
		return fmt.Errorf("locale: codice %q is not 13 digits", l.CodiceLocale)
	}
	return nil
}

func (g MultiGenere) validate() error {
	if g.TipoGenere == "" {
		return errors.New("multigenere: missing tipo genere")
	}
	if g.IncidenzaGenere < 0 || g.IncidenzaGenere > 100 {
		return fmt.Errorf("multigenere: incidenza %d outside [0,100]", g.IncidenzaGenere)
	}
	if len(g.TitoliOpere) == 0 {
		return errors.New("multigenere: at least one titolo opera required")
	}
	for i, op := range g.TitoliOpere {
		if op.Titolo == "" {
			return fmt.Errorf("multigenere: opera %d missing titolo", i+1)
		}
	}
	return nil
}

func (t TitoloAccesso) validate() error {
	if t.TipoTitolo == "" {
		return errors.New("titolo accesso: missing tipo titolo")
	}
	if t.Quantita < 1 {
		return fmt.Errorf("titolo accesso: quantita %d must be positive", t.Quantita)
	}
	if t.CorrispettivoLordo < 0 {
		return errors.New("titolo accesso: negative corrispettivo lordo")
	}
	if t.IVACorrispettivo < 0 {
		return errors.New("titolo accesso: negative iva corrispettivo")
	}
	if t.Prevendita != nil && *t.Prevendita < 0 {
		return errors.New("titolo accesso: negative prevendita")
	}
	if t.IVAPrevendita != nil && *t.IVAPrevendita < 0 {
		return errors.New("titolo accesso: negative iva prevendita")
	}
	if t.ImportoPrestazione != nil && *t.ImportoPrestazione < 0 {
		return errors.New("titolo accesso: negative importo prestazione")
	}
	return nil
}

func (o OrdineDiPosto) validate() error {
	if o.CodiceOrdine == "" {
		return errors.New("ordine di posto: missing codice ordine")
	}
	if o.Capienza < 1 {
		return fmt.Errorf("ordine di posto %s: capienza %d must be positive", o.CodiceOrdine, o.Capienza)
	}
	for i, t := range o.Titoli {
		if err := t.validate(); err != nil {
			return fmt.Errorf("ordine di posto %s, titolo %d: %w", o.CodiceOrdine, i+1, err)
		}
	}
	return nil
}

func (e EventoRPG) validate() error {
	if e.Intrattenimento != nil {
		if err := e.Intrattenimento.validate(); err != nil {
			return err
		}
	}
	if err := e.Locale.validate(); err != nil {
		return err
	}
	if !validData(e.DataEvento) {
		return fmt.Errorf("evento: data %q is not a valid YYYYMMDD date", e.DataEvento)
	}
	if !validOra(e.OraEvento) {
		return fmt.Errorf("evento: ora %q is not a valid HHMM time", e.OraEvento)
	}
	if len(e.Generi) == 0 {
		return errors.New("evento: at least one multigenere required")
	}
	for i, g := range e.Generi {
		if err := g.validate(); err != nil {
			return fmt.Errorf("genere %d: %w", i+1, err)
		}
	}
	if len(e.Ordini) == 0 {
		return errors.New("evento: at least one ordine di posto required")
	}
	for _, o := range e.Ordini {
		if err := o.validate(); err != nil {
			return err
		}
	}
	return nil
}

func (e EventoRPM) validate() error {
	if err := e.Intrattenimento.validate(); err != nil {
		return err
	}
	if err := e.Locale.validate(); err != nil {
		return err
	}
	if !validData(e.DataEvento) {
		return fmt.Errorf("evento: data %q is not a valid YYYYMMDD date", e.DataEvento)
	}
	if !validOra(e.OraEvento) {
		return fmt.Errorf("evento: ora %q is not a valid HHMM time", e.OraEvento)
	}
	if len(e.Generi) == 0 {
		return errors.New("evento: at least one multigenere required")
	}
	for i, g := range e.Generi {
		if err := g.validate(); err != nil {
			return fmt.Errorf("genere %d: %w", i+1, err)
		}
	}
	if len(e.Ordini) == 0 {
		return errors.New("evento: at least one ordine di posto required")
	}
	for _, o := range e.Ordini {
		if err := o.validate(); err != nil {
			return err
		}
		if o.IVAEccedenzaOmaggi < 0 {
			return fmt.Errorf("ordine di posto %s: negative iva eccedenza omaggi", o.CodiceOrdine)
		}
	}
	return nil
}

func (e EventoRCA) validate() error {
	if !reSistemaEmissione.MatchString(e.SistemaEmissione) {
		return fmt.Errorf("evento: sistema emissione %q is not 8 alphanumeric characters", e.SistemaEmissione)
	}
	if err := e.Locale.validate(); err != nil {
		return err
	}
	if !validData(e.DataEvento) {
		return fmt.Errorf("evento: data %q is not a valid YYYYMMDD date", e.DataEvento)
	}
	if !validOra(e.OraEvento) {
		return fmt.Errorf("evento: ora %q is not a valid HHMM time", e.OraEvento)
	}
	for i, a := range e.Accessi {
		if a.TipoTitolo == "" {
			return fmt.Errorf("accesso %d: missing tipo titolo", i+1)
		}
		if a.Quantita < 0 {
			return fmt.Errorf("accesso %d: negative quantita", i+1)
		}
	}
	return nil
}

func (r *DailyReport) Validate() error {
	if err := r.Header.validate(); err != nil {
		return err
	}
	if err := r.Titolare.validate(); err != nil {
		return err
	}
	if err := r.Organizzatore.validate(); err != nil {
		return err
	}
	for i, e := range r.Eventi {
		if err := e.validate(); err != nil {
			return fmt.Errorf("evento %d: %w", i+1, err)
		}
	}
	return nil
}

func (r *MonthlyReport) Validate() error {
	if err := r.Header.validate(); err != nil {
		return err
	}
	if err := r.Titolare.validate(); err != nil {
		return err
	}
	if err := r.Organizzatore.Organizzatore.validate(); err != nil {
		return err
	}
	for i, e := range r.Organizzatore.Eventi {
		if err := e.validate(); err != nil {
			return fmt.Errorf("evento %d: %w", i+1, err)
		}
	}
	return nil
}

func (r *AccessControlReport) Validate() error {
	if err := r.Header.validate(); err != nil {
		return err
	}
	if err := r.Titolare.validate(); err != nil {
		return err
	}
	if err := r.Organizzatore.validate(); err != nil {
		return err
	}
	for i, e := range r.Eventi {
		if err := e.validate(); err != nil {
			return fmt.Errorf("evento %d: %w", i+1, err)
		}
	}
	return nil
}
