package xmlgen

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"time"

	"github.com/biglietteria/riepilogo/internal/model"
)

type riepilogoMensile struct {
	XMLName                xml.Name            `xml:"RiepilogoMensile"`
	Sostituzione           string              `xml:"Sostituzione,attr"`
	Mese                   string              `xml:"Mese,attr"`
	DataGenerazione        string              `xml:"DataGenerazione,attr"`
	OraGenerazione         string              `xml:"OraGenerazione,attr"`
	ProgressivoGenerazione string              `xml:"ProgressivoGenerazione,attr"`
	Titolare               titolareXML         `xml:"Titolare"`
	Organizzatore          organizzatoreRPMXML `xml:"Organizzatore"`
}

// organizzatoreRPMXML nests the month's events inside the organizer node.
// The monthly schema is the only one with this layout.
type organizzatoreRPMXML struct {
	Denominazione     string         `xml:"Denominazione,attr"`
	CodiceFiscale     string         `xml:"CodiceFiscale,attr"`
	TipoOrganizzatore string         `xml:"TipoOrganizzatore,attr"`
	Eventi            []eventoRPMXML `xml:"Evento"`
}

type eventoRPMXML struct {
	DataEvento      string                `xml:"DataEvento,attr"`
	OraEvento       string                `xml:"OraEvento,attr"`
	Intrattenimento intrattenimentoXML    `xml:"Intrattenimento"`
	Locale          localeXML             `xml:"Locale"`
	Generi          []multiGenereXML      `xml:"MultiGenere"`
	Ordini          []ordineDiPostoRPMXML `xml:"OrdineDiPosto"`
}

type ordineDiPostoRPMXML struct {
	CodiceOrdine       string             `xml:"CodiceOrdine,attr"`
	Capienza           string             `xml:"Capienza,attr"`
	IVAEccedenzaOmaggi string             `xml:"IVAEccedenzaOmaggi,attr"`
	Titoli             []titoloAccessoXML `xml:"TitoloAccesso"`
}

// Monthly serializes a RiepilogoMensile. The period attribute is the month
// (YYYYMM) and every seating order carries IVAEccedenzaOmaggi.
func Monthly(r *model.MonthlyReport, now time.Time) (string, error) {
	if err := r.Validate(); err != nil {
		return "", fmt.Errorf("riepilogo mensile: %w", err)
	}

	doc := riepilogoMensile{
		Sostituzione:           r.SostituzioneCode(),
		Mese:                   r.DataReport.Format("200601"),
		DataGenerazione:        now.Format("20060102"),
		OraGenerazione:         now.Format("1504"),
		ProgressivoGenerazione: progressivo(r.Progressivo),
		Titolare:               newTitolareXML(r.Titolare),
		Organizzatore: organizzatoreRPMXML{
			Denominazione:     r.Organizzatore.Denominazione,
			CodiceFiscale:     r.Organizzatore.CodiceFiscale,
			TipoOrganizzatore: string(r.Organizzatore.Tipo),
		},
	}
	for _, e := range r.Organizzatore.Eventi {
		doc.Organizzatore.Eventi = append(doc.Organizzatore.Eventi, newEventoRPMXML(e))
	}

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("riepilogo mensile: %w", err)
	}
	return Header + string(out), nil
}

func newEventoRPMXML(e model.EventoRPM) eventoRPMXML {
	out := eventoRPMXML{
		DataEvento:      e.DataEvento,
		OraEvento:       e.OraEvento,
		Intrattenimento: newIntrattenimentoXML(e.Intrattenimento),
		Locale:          newLocaleXML(e.Locale),
	}
	for _, g := range e.Generi {
		out.Generi = append(out.Generi, newMultiGenereXML(g))
	}
	for _, o := range e.Ordini {
		ord := ordineDiPostoRPMXML{
			CodiceOrdine:       o.CodiceOrdine,
			Capienza:           strconv.Itoa(o.Capienza),
			IVAEccedenzaOmaggi: cents(o.IVAEccedenzaOmaggi),
		}
		for _, t := range o.Titoli {
			ord.Titoli = append(ord.Titoli, newTitoloAccessoXML(t))
		}
		out.Ordini = append(out.Ordini, ord)
	}
	return out
}
