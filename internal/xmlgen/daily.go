package xmlgen

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"time"

	"github.com/biglietteria/riepilogo/internal/model"
)

type riepilogoGiornaliero struct {
	XMLName                xml.Name         `xml:"RiepilogoGiornaliero"`
	Sostituzione           string           `xml:"Sostituzione,attr"`
	Data                   string           `xml:"Data,attr"`
	DataGenerazione        string           `xml:"DataGenerazione,attr"`
	OraGenerazione         string           `xml:"OraGenerazione,attr"`
	ProgressivoGenerazione string           `xml:"ProgressivoGenerazione,attr"`
	Titolare               titolareXML      `xml:"Titolare"`
	Organizzatore          organizzatoreXML `xml:"Organizzatore"`
	Eventi                 []eventoRPGXML   `xml:"Evento"`
}

type titolareXML struct {
	Denominazione    string `xml:"Denominazione,attr"`
	CodiceFiscale    string `xml:"CodiceFiscale,attr"`
	SistemaEmissione string `xml:"SistemaEmissione,attr"`
}

type organizzatoreXML struct {
	Denominazione     string `xml:"Denominazione,attr"`
	CodiceFiscale     string `xml:"CodiceFiscale,attr"`
	TipoOrganizzatore string `xml:"TipoOrganizzatore,attr"`
}

type intrattenimentoXML struct {
	TipoTassazione string `xml:"TipoTassazione,attr"`
	Incidenza      string `xml:"Incidenza,attr,omitempty"`
}

type localeXML struct {
	Denominazione string `xml:"Denominazione,attr"`
	CodiceLocale  string `xml:"CodiceLocale,attr"`
}

type multiGenereXML struct {
	TipoGenere      string           `xml:"TipoGenere,attr"`
	IncidenzaGenere string           `xml:"IncidenzaGenere,attr"`
	TitoliOpere     []titoloOperaXML `xml:"TitoloOpera"`
}

type titoloOperaXML struct {
	Titolo    string `xml:"Titolo,attr"`
	Autore    string `xml:"Autore,attr,omitempty"`
	Esecutore string `xml:"Esecutore,attr,omitempty"`
}

type titoloAccessoXML struct {
	TipoTitolo         string `xml:"TipoTitolo,attr"`
	Quantita           string `xml:"Quantita,attr"`
	CorrispettivoLordo string `xml:"CorrispettivoLordo,attr"`
	Prevendita         string `xml:"Prevendita,attr,omitempty"`
	IVACorrispettivo   string `xml:"IVACorrispettivo,attr"`
	IVAPrevendita      string `xml:"IVAPrevendita,attr,omitempty"`
	ImportoPrestazione string `xml:"ImportoPrestazione,attr,omitempty"`
}

type ordineDiPostoXML struct {
	CodiceOrdine string             `xml:"CodiceOrdine,attr"`
	Capienza     string             `xml:"Capienza,attr"`
	Titoli       []titoloAccessoXML `xml:"TitoloAccesso"`
}

type eventoRPGXML struct {
	DataEvento      string              `xml:"DataEvento,attr"`
	OraEvento       string              `xml:"OraEvento,attr"`
	Intrattenimento *intrattenimentoXML `xml:"Intrattenimento"`
	Locale          localeXML           `xml:"Locale"`
	Generi          []multiGenereXML    `xml:"MultiGenere"`
	Ordini          []ordineDiPostoXML  `xml:"OrdineDiPosto"`
}

// Daily serializes a RiepilogoGiornaliero. Events stay root-level siblings of
// the organizer node.
func Daily(r *model.DailyReport, now time.Time) (string, error) {
	if err := r.Validate(); err != nil {
		return "", fmt.Errorf("riepilogo giornaliero: %w", err)
	}

	doc := riepilogoGiornaliero{
		Sostituzione:           r.SostituzioneCode(),
		Data:                   r.DataReport.Format("20060102"),
		DataGenerazione:        now.Format("20060102"),
		OraGenerazione:         now.Format("1504"),
		ProgressivoGenerazione: progressivo(r.Progressivo),
		Titolare:               newTitolareXML(r.Titolare),
		Organizzatore:          newOrganizzatoreXML(r.Organizzatore),
	}
	for _, e := range r.Eventi {
		doc.Eventi = append(doc.Eventi, newEventoRPGXML(e))
	}

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("riepilogo giornaliero: %w", err)
	}
	return Header + string(out), nil
}

func newTitolareXML(t model.Titolare) titolareXML {
	return titolareXML{
		Denominazione:    t.Denominazione,
		CodiceFiscale:    t.CodiceFiscale,
		SistemaEmissione: t.SistemaEmissione,
	}
}

func newOrganizzatoreXML(o model.Organizzatore) organizzatoreXML {
	return organizzatoreXML{
		Denominazione:     o.Denominazione,
		CodiceFiscale:     o.CodiceFiscale,
		TipoOrganizzatore: string(o.Tipo),
	}
}

func newIntrattenimentoXML(i model.Intrattenimento) intrattenimentoXML {
	return intrattenimentoXML{
		TipoTassazione: string(i.TipoTassazione),
		Incidenza:      optInt(i.Incidenza),
	}
}

func newLocaleXML(l model.Locale) localeXML {
	return localeXML{Denominazione: l.Denominazione, CodiceLocale: l.CodiceLocale}
}

func newMultiGenereXML(g model.MultiGenere) multiGenereXML {
	out := multiGenereXML{
		TipoGenere:      g.TipoGenere,
		IncidenzaGenere: strconv.Itoa(g.IncidenzaGenere),
	}
	for _, op := range g.TitoliOpere {
		out.TitoliOpere = append(out.TitoliOpere, titoloOperaXML{
			Titolo:    op.Titolo,
			Autore:    op.Autore,
			Esecutore: op.Esecutore,
		})
	}
	return out
}

func newTitoloAccessoXML(t model.TitoloAccesso) titoloAccessoXML {
	return titoloAccessoXML{
		TipoTitolo:         t.TipoTitolo,
		Quantita:           strconv.Itoa(t.Quantita),
		CorrispettivoLordo: cents(t.CorrispettivoLordo),
		Prevendita:         optCents(t.Prevendita),
		IVACorrispettivo:   cents(t.IVACorrispettivo),
		IVAPrevendita:      optCents(t.IVAPrevendita),
		ImportoPrestazione: optCents(t.ImportoPrestazione),
	}
}

func newOrdineDiPostoXML(o model.OrdineDiPosto) ordineDiPostoXML {
	out := ordineDiPostoXML{
		CodiceOrdine: o.CodiceOrdine,
		Capienza:     strconv.Itoa(o.Capienza),
	}
	for _, t := range o.Titoli {
		out.Titoli = append(out.Titoli, newTitoloAccessoXML(t))
	}
	return out
}

func newEventoRPGXML(e model.EventoRPG) eventoRPGXML {
	out := eventoRPGXML{
		DataEvento: e.DataEvento,
		OraEvento:  e.OraEvento,
		Locale:     newLocaleXML(e.Locale),
	}
	if e.Intrattenimento != nil {
		i := newIntrattenimentoXML(*e.Intrattenimento)
		out.Intrattenimento = &i
	}
	for _, g := range e.Generi {
		out.Generi = append(out.Generi, newMultiGenereXML(g))
	}
	for _, o := range e.Ordini {
		out.Ordini = append(out.Ordini, newOrdineDiPostoXML(o))
	}
	return out
}
