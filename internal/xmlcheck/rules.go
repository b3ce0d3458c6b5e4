package xmlcheck

import (
	"fmt"
	"regexp"
	"strconv"

	"github.com/biglietteria/riepilogo/internal/model"
)

var (
	reData8    = regexp.MustCompile(`^\d{8}$`)
	reMese6    = regexp.MustCompile(`^\d{6}$`)
	reOra4     = regexp.MustCompile(`^\d{4}$`)
	reSistema8 = regexp.MustCompile(`^[A-Za-z0-9]{8}$`)
	reLocale13 = regexp.MustCompile(`^\d{13}$`)
	reDigits   = regexp.MustCompile(`^\d+$`)
)

func requireAttr(res *Result, el *element, path, name string) (string, bool) {
	v, ok := el.attr(name)
	if !ok {
		res.errorf(CodeMissingAttribute, path, "missing %s", name)
	}
	return v, ok
}

func checkFormatAttr(res *Result, el *element, path, name string, re *regexp.Regexp, desc string) {
	if v, ok := requireAttr(res, el, path, name); ok && !re.MatchString(v) {
		res.errorf(CodeBadAttribute, path, "%s=%q is not %s", name, v, desc)
	}
}

func checkEnumAttr(res *Result, el *element, path, name string, allowed ...string) {
	v, ok := requireAttr(res, el, path, name)
	if !ok {
		return
	}
	for _, a := range allowed {
		if v == a {
			return
		}
	}
	res.errorf(CodeBadAttribute, path, "%s=%q not in %v", name, v, allowed)
}

func checkProgressivoAttr(res *Result, el *element, path, name string) {
	v, ok := requireAttr(res, el, path, name)
	if !ok {
		return
	}
	n, err := strconv.Atoi(v)
	if err != nil || len(v) > 3 || n < 1 || n > 999 {
		res.errorf(CodeBadAttribute, path, "%s=%q outside [1,999]", name, v)
	}
}

func forbidAttr(res *Result, el *element, path, name, family string) {
	if _, ok := el.attr(name); ok {
		res.errorf(CodeForbiddenAttribute, path, "%s belongs to the %s family", name, family)
	}
}

func checkRoot(res *Result, root *element, t model.ReportType) {
	path := "/" + root.name

	checkEnumAttr(res, root, path, "Sostituzione", "N", "S")
	if t == model.Monthly {
		checkFormatAttr(res, root, path, "Mese", reMese6, "a YYYYMM month")
	} else {
		checkFormatAttr(res, root, path, "Data", reData8, "a YYYYMMDD date")
	}
	checkFormatAttr(res, root, path, "DataGenerazione", reData8, "a YYYYMMDD date")
	checkFormatAttr(res, root, path, "OraGenerazione", reOra4, "a HHMM time")
	checkProgressivoAttr(res, root, path, "ProgressivoGenerazione")

	tit := root.firstChild("Titolare")
	if tit == nil {
		res.errorf(CodeMissingElement, path, "missing Titolare")
	} else {
		checkTitolare(res, tit, path+"/Titolare", t)
	}

	org := root.firstChild("Organizzatore")
	if org == nil {
		res.errorf(CodeMissingElement, path, "missing Organizzatore")
	} else {
		checkOrganizzatore(res, org, path+"/Organizzatore")
	}

	// The monthly family nests events inside the organizer node, the other
	// two keep them root-level. An event on the wrong side is a structural
	// regression even when its content is fine.
	if t == model.Monthly {
		if len(root.childrenNamed("Evento")) > 0 {
			res.errorf(CodeMisplacedElement, path+"/Evento", "monthly events must be children of Organizzatore")
		}
		if org != nil {
			checkEventi(res, org.childrenNamed("Evento"), path+"/Organizzatore", t)
		}
		return
	}
	if org != nil && len(org.childrenNamed("Evento")) > 0 {
		res.errorf(CodeMisplacedElement, path+"/Organizzatore/Evento", "%s events must be root-level siblings of Organizzatore", t.Code())
	}
	checkEventi(res, root.childrenNamed("Evento"), path, t)
}

func checkEventi(res *Result, events []*element, base string, t model.ReportType) {
	if len(events) == 0 {
		res.warnf(CodeEmptyReport, base, "report lists no events")
		return
	}
	for i, ev := range events {
		checkEvento(res, ev, fmt.Sprintf("%s/Evento[%d]", base, i+1), t)
	}
}

func checkTitolare(res *Result, el *element, path string, t model.ReportType) {
	requireAttr(res, el, path, "Denominazione")
	requireAttr(res, el, path, "CodiceFiscale")

	if t == model.AccessControl {
		checkFormatAttr(res, el, path, "CodiceSistemaCA", reSistema8, "8 alphanumeric characters")
		checkFormatAttr(res, el, path, "DataRiepilogo", reData8, "a YYYYMMDD date")
		checkFormatAttr(res, el, path, "OraRiepilogo", reOra4, "a HHMM time")
		checkProgressivoAttr(res, el, path, "ProgressivoRiepilogo")
		forbidAttr(res, el, path, "SistemaEmissione", "daily/monthly")
		return
	}
	checkFormatAttr(res, el, path, "SistemaEmissione", reSistema8, "8 alphanumeric characters")
	forbidAttr(res, el, path, "CodiceSistemaCA", "access-control")
}

func checkOrganizzatore(res *Result, el *element, path string) {
	requireAttr(res, el, path, "Denominazione")
	requireAttr(res, el, path, "CodiceFiscale")
	checkEnumAttr(res, el, path, "TipoOrganizzatore", "G", "T")
}

func checkEvento(res *Result, ev *element, path string, t model.ReportType) {
	checkFormatAttr(res, ev, path, "DataEvento", reData8, "a YYYYMMDD date")
	checkFormatAttr(res, ev, path, "OraEvento", reOra4, "a HHMM time")

	loc := ev.firstChild("Locale")
	if loc == nil {
		res.errorf(CodeMissingElement, path, "missing Locale")
	} else {
		requireAttr(res, loc, path+"/Locale", "Denominazione")
		checkFormatAttr(res, loc, path+"/Locale", "CodiceLocale", reLocale13, "13 digits")
	}

	if t == model.AccessControl {
		checkFormatAttr(res, ev, path, "SistemaEmissione", reSistema8, "8 alphanumeric characters")
		accessi := ev.childrenNamed("TitoloAccesso")
		if len(accessi) == 0 {
			res.warnf(CodeEmptyReport, path, "event lists no checked titles")
		}
		for i, a := range accessi {
			apath := fmt.Sprintf("%s/TitoloAccesso[%d]", path, i+1)
			requireAttr(res, a, apath, "TipoTitolo")
			checkFormatAttr(res, a, apath, "Quantita", reDigits, "an integer count")
			for _, monetary := range []string{"CorrispettivoLordo", "Prevendita", "IVACorrispettivo", "IVAPrevendita", "ImportoPrestazione"} {
				forbidAttr(res, a, apath, monetary, "daily/monthly")
			}
		}
		return
	}

	intr := ev.firstChild("Intrattenimento")
	if t == model.Monthly && intr == nil {
		res.errorf(CodeMissingElement, path, "missing Intrattenimento")
	}
	if intr != nil {
		ipath := path + "/Intrattenimento"
		checkEnumAttr(res, intr, ipath, "TipoTassazione", "S", "I")
		if v, ok := intr.attr("Incidenza"); ok {
			if n, err := strconv.Atoi(v); err != nil || n < 0 || n > 100 {
				res.errorf(CodeBadAttribute, ipath, "Incidenza=%q outside [0,100]", v)
			}
		}
	}

	generi := ev.childrenNamed("MultiGenere")
	if len(generi) == 0 {
		res.errorf(CodeMissingElement, path, "at least one MultiGenere required")
	}
	for i, g := range generi {
		gpath := fmt.Sprintf("%s/MultiGenere[%d]", path, i+1)
		requireAttr(res, g, gpath, "TipoGenere")
		if v, ok := requireAttr(res, g, gpath, "IncidenzaGenere"); ok {
			if n, err := strconv.Atoi(v); err != nil || n < 0 || n > 100 {
				res.errorf(CodeBadAttribute, gpath, "IncidenzaGenere=%q outside [0,100]", v)
			}
		}
		opere := g.childrenNamed("TitoloOpera")
		if len(opere) == 0 {
			res.errorf(CodeMissingElement, gpath, "at least one TitoloOpera required")
		}
		for j, op := range opere {
			requireAttr(res, op, fmt.Sprintf("%s/TitoloOpera[%d]", gpath, j+1), "Titolo")
		}
	}

	ordini := ev.childrenNamed("OrdineDiPosto")
	if len(ordini) == 0 {
		res.errorf(CodeMissingElement, path, "at least one OrdineDiPosto required")
	}
	for i, o := range ordini {
		opath := fmt.Sprintf("%s/OrdineDiPosto[%d]", path, i+1)
		requireAttr(res, o, opath, "CodiceOrdine")
		checkFormatAttr(res, o, opath, "Capienza", reDigits, "an integer count")

		// The excess-gift VAT attribute is the hard divergence between the
		// two ticketing families: mandatory on monthly orders, forbidden on
		// daily ones.
		if t == model.Monthly {
			checkFormatAttr(res, o, opath, "IVAEccedenzaOmaggi", reDigits, "an integer amount in cents")
		} else {
			forbidAttr(res, o, opath, "IVAEccedenzaOmaggi", "monthly")
		}

		for j, a := range o.childrenNamed("TitoloAccesso") {
			apath := fmt.Sprintf("%s/TitoloAccesso[%d]", opath, j+1)
			requireAttr(res, a, apath, "TipoTitolo")
			checkFormatAttr(res, a, apath, "Quantita", reDigits, "an integer count")
			checkFormatAttr(res, a, apath, "CorrispettivoLordo", reDigits, "an integer amount in cents")
			checkFormatAttr(res, a, apath, "IVACorrispettivo", reDigits, "an integer amount in cents")
		}
	}
}
