package model

// DailyReport is the RiepilogoGiornaliero (RPG) entity graph. Events sit at
// root level next to the organizer, never inside it.
type DailyReport struct {
	Header
	Titolare      Titolare
	Organizzatore Organizzatore
	Eventi        []EventoRPG
}

// Titolare identifies the fiscal system operator of record for Daily and
// Monthly reports. AccessControl uses the unrelated TitolareCA shape.
type Titolare struct {
	Denominazione string
	CodiceFiscale string
	// SistemaEmissione is the authority-assigned emission system code:
	// exactly 8 alphanumeric characters, case preserved as assigned.
	// There is no default value for it anywhere in this codebase.
	SistemaEmissione string
}

type TipoOrganizzatore string

const (
	Gestore TipoOrganizzatore = "G"
	Terzo   TipoOrganizzatore = "T"
)

type Organizzatore struct {
	Denominazione string
	CodiceFiscale string
	Tipo          TipoOrganizzatore
}

type TipoTassazione string

const (
	TassazioneSpettacolo      TipoTassazione = "S"
	TassazioneIntrattenimento TipoTassazione = "I"
)

type Intrattenimento struct {
	TipoTassazione TipoTassazione
	// Incidenza is the entertainment share in percent, 0 to 100.
	Incidenza *int
}

type Locale struct {
	Denominazione string
	// CodiceLocale is the 13-digit venue code from the authority registry.
	CodiceLocale string
}

type TitoloOpera struct {
	Titolo    string
	Autore    string
	Esecutore string
}

type MultiGenere struct {
	TipoGenere      string
	IncidenzaGenere int
	// TitoliOpere must hold at least one entry.
	TitoliOpere []TitoloOpera
}

// TitoloAccesso is one line of issued access titles. All monetary values are
// integer euro cents; optional amounts are nil when not applicable.
type TitoloAccesso struct {
	TipoTitolo         string
	Quantita           int
	CorrispettivoLordo int64
	Prevendita         *int64
	IVACorrispettivo   int64
	IVAPrevendita      *int64
	ImportoPrestazione *int64
}

// OrdineDiPosto is the Daily seating-order shape. The excess-gift-VAT
// field exists only on the Monthly shape, never here.
type OrdineDiPosto struct {
	CodiceOrdine string
	Capienza     int
	Titoli       []TitoloAccesso
}

// EventoRPG is the Daily event shape. Intrattenimento is optional here,
// unlike the Monthly shape where it is mandatory.
type EventoRPG struct {
	Intrattenimento *Intrattenimento
	Locale          Locale
	// DataEvento is the event date in YYYYMMDD wire form.
	DataEvento string
	// OraEvento is the start time in HHMM wire form.
	OraEvento string
	Generi    []MultiGenere
	Ordini    []OrdineDiPosto
}
