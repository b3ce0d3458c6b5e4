package xmlgen

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"time"

	"github.com/biglietteria/riepilogo/internal/model"
)

type riepilogoControlloAccessi struct {
	XMLName                xml.Name         `xml:"RiepilogoControlloAccessi"`
	Sostituzione           string           `xml:"Sostituzione,attr"`
	Data                   string           `xml:"Data,attr"`
	DataGenerazione        string           `xml:"DataGenerazione,attr"`
	OraGenerazione         string           `xml:"OraGenerazione,attr"`
	ProgressivoGenerazione string           `xml:"ProgressivoGenerazione,attr"`
	Titolare               titolareCAXML    `xml:"Titolare"`
	Organizzatore          organizzatoreXML `xml:"Organizzatore"`
	Eventi                 []eventoRCAXML   `xml:"Evento"`
}

// titolareCAXML shares the Titolare element name with the other families but
// none of its attribute set beyond denominazione and codice fiscale.
type titolareCAXML struct {
	Denominazione        string `xml:"Denominazione,attr"`
	CodiceFiscale        string `xml:"CodiceFiscale,attr"`
	CodiceSistemaCA      string `xml:"CodiceSistemaCA,attr"`
	DataRiepilogo        string `xml:"DataRiepilogo,attr"`
	OraRiepilogo         string `xml:"OraRiepilogo,attr"`
	ProgressivoRiepilogo string `xml:"ProgressivoRiepilogo,attr"`
}

type eventoRCAXML struct {
	SistemaEmissione string             `xml:"SistemaEmissione,attr"`
	DataEvento       string             `xml:"DataEvento,attr"`
	OraEvento        string             `xml:"OraEvento,attr"`
	Locale           localeXML          `xml:"Locale"`
	Accessi          []titoloAccessoRCA `xml:"TitoloAccesso"`
}

type titoloAccessoRCA struct {
	TipoTitolo string `xml:"TipoTitolo,attr"`
	Quantita   string `xml:"Quantita,attr"`
}

// AccessControl serializes a RiepilogoControlloAccessi. Every event names the
// emission system whose titles were checked, and the operator node carries
// the summary timestamp and sequence.
func AccessControl(r *model.AccessControlReport, now time.Time) (string, error) {
	if err := r.Validate(); err != nil {
		return "", fmt.Errorf("riepilogo controllo accessi: %w", err)
	}

	doc := riepilogoControlloAccessi{
		Sostituzione:           r.SostituzioneCode(),
		Data:                   r.DataReport.Format("20060102"),
		DataGenerazione:        now.Format("20060102"),
		OraGenerazione:         now.Format("1504"),
		ProgressivoGenerazione: progressivo(r.Progressivo),
		Titolare: titolareCAXML{
			Denominazione:        r.Titolare.Denominazione,
			CodiceFiscale:        r.Titolare.CodiceFiscale,
			CodiceSistemaCA:      r.Titolare.CodiceSistemaCA,
			DataRiepilogo:        r.Titolare.DataOraRiepilogo.Format("20060102"),
			OraRiepilogo:         r.Titolare.DataOraRiepilogo.Format("1504"),
			ProgressivoRiepilogo: progressivo(r.Titolare.ProgressivoRiepilogo),
		},
		Organizzatore: newOrganizzatoreXML(r.Organizzatore),
	}
	for _, e := range r.Eventi {
		ev := eventoRCAXML{
			SistemaEmissione: e.SistemaEmissione,
			DataEvento:       e.DataEvento,
			OraEvento:        e.OraEvento,
			Locale:           newLocaleXML(e.Locale),
		}
		for _, a := range e.Accessi {
			ev.Accessi = append(ev.Accessi, titoloAccessoRCA{
				TipoTitolo: a.TipoTitolo,
				Quantita:   strconv.Itoa(a.Quantita),
			})
		}
		doc.Eventi = append(doc.Eventi, ev)
	}

	out, err := xml.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("riepilogo controllo accessi: %w", err)
	}
	return Header + string(out), nil
}
