package model

import "time"

// AccessControlReport is the RiepilogoControlloAccessi (RCA) entity graph.
// Like Daily it keeps events at root level, but both its Titolare and Evento
// shapes diverge from the other families.
type AccessControlReport struct {
	Header
	Titolare      TitolareCA
	Organizzatore Organizzatore
	Eventi        []EventoRCA
}

// TitolareCA is the access-control operator record. Despite the name it is
// structurally unrelated to Titolare: the access-control schema binds the
// summary date, time and sequence to the operator element itself.
type TitolareCA struct {
	Denominazione   string
	CodiceFiscale   string
	CodiceSistemaCA string
	// DataOraRiepilogo is the access-control summary timestamp the schema
	// requires on the operator node.
	DataOraRiepilogo     time.Time
	ProgressivoRiepilogo int
}

// EventoRCA is the access-control event shape. The emission system code is
// embedded in every event because a single access-control system reports
// titles issued by several emission systems.
type EventoRCA struct {
	SistemaEmissione string
	Locale           Locale
	DataEvento       string
	OraEvento        string
	Accessi          []TitoloAccessoRCA
}

// TitoloAccessoRCA counts the access titles of one type checked at the gates.
type TitoloAccessoRCA struct {
	TipoTitolo string
	Quantita   int
}
