package model

// MonthlyReport is the RiepilogoMensile (RPM) entity graph. Its events are
// children of the organizer node, an inversion of the Daily layout that the
// authority's monthly schema mandates.
type MonthlyReport struct {
	Header
	Titolare      Titolare
	Organizzatore OrganizzatoreRPM
}

type OrganizzatoreRPM struct {
	Organizzatore
	Eventi []EventoRPM
}

// EventoRPM is the Monthly event shape: Intrattenimento is mandatory and the
// seating orders carry the excess-gift-VAT attribute.
type EventoRPM struct {
	Intrattenimento Intrattenimento
	Locale          Locale
	DataEvento      string
	OraEvento       string
	Generi          []MultiGenere
	Ordini          []OrdineDiPostoRPM
}

// OrdineDiPostoRPM extends the seating order with IVAEccedenzaOmaggi, the VAT
// due on complimentary titles exceeding the allowed quota. The attribute is
// mandatory on Monthly reports and forbidden on Daily ones, so it exists only
// on this type.
type OrdineDiPostoRPM struct {
	OrdineDiPosto
	IVAEccedenzaOmaggi int64
}
