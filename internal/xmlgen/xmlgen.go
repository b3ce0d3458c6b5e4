// Package xmlgen serializes report graphs to the authority's XML wire form.
//
// Generation is a two step contract: the Generate functions produce XML text
// as a UTF-8 Go string whose declaration names ISO-8859-1, and EncodeWire
// performs the one and only conversion to the single-byte wire charset.
// Nothing downstream may re-encode or normalize the wire bytes again.
package xmlgen

import (
	"fmt"
	"strconv"
	"time"

	"golang.org/x/text/encoding/charmap"

	"github.com/biglietteria/riepilogo/internal/model"
)

// Header is the declaration prepended to every generated report.
const Header = `<?xml version="1.0" encoding="ISO-8859-1"?>` + "\n"

// Generate dispatches to the serializer of whichever payload the report data
// carries. The generation timestamp becomes the DataGenerazione and
// OraGenerazione root attributes.
func Generate(d *model.ReportData, now time.Time) (string, error) {
	t, err := d.Type()
	if err != nil {
		return "", err
	}
	switch t {
	case model.Daily:
		return Daily(d.Daily, now)
	case model.Monthly:
		return Monthly(d.Monthly, now)
	default:
		return AccessControl(d.AccessControl, now)
	}
}

// EncodeWire converts generated XML text to its ISO-8859-1 wire bytes. A rune
// outside the charset is an error, never a silent substitution.
func EncodeWire(text string) ([]byte, error) {
	b, err := charmap.ISO8859_1.NewEncoder().Bytes([]byte(text))
	if err != nil {
		return nil, fmt.Errorf("encode report to ISO-8859-1: %w", err)
	}
	return b, nil
}

func cents(v int64) string {
	return strconv.FormatInt(v, 10)
}

func optCents(v *int64) string {
	if v == nil {
		return ""
	}
	return strconv.FormatInt(*v, 10)
}

func optInt(v *int) string {
	if v == nil {
		return ""
	}
	return strconv.Itoa(*v)
}

func progressivo(p int) string {
	return fmt.Sprintf("%03d", p)
}
