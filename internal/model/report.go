package model

import (
	"fmt"
	"strings"
	"time"
)

// ReportType selects one of the three SIAE summary families. The type decides
// the filename layout (4 segments for Monthly, 5 otherwise), which Titolare
// and Evento shapes apply, and which structural rule set the checker runs.
type ReportType int

const (
	Daily ReportType = iota
	Monthly
	AccessControl
)

// Code returns the three-letter report code used in filenames.
func (t ReportType) Code() string {
	switch t {
	case Daily:
		return "RPG"
	case Monthly:
		return "RPM"
	case AccessControl:
		return "RCA"
	}
	return ""
}

// RootElement returns the XML root tag of the report family.
func (t ReportType) RootElement() string {
	switch t {
	case Daily:
		return "RiepilogoGiornaliero"
	case Monthly:
		return "RiepilogoMensile"
	case AccessControl:
		return "RiepilogoControlloAccessi"
	}
	return ""
}

func (t ReportType) String() string {
	switch t {
	case Daily:
		return "daily"
	case Monthly:
		return "monthly"
	case AccessControl:
		return "access-control"
	}
	return fmt.Sprintf("ReportType(%d)", int(t))
}

// ParseCode maps a report code (RPG, RPM, RCA, case-insensitive) to its type.
func ParseCode(code string) (ReportType, error) {
	switch strings.ToUpper(code) {
	case "RPG":
		return Daily, nil
	case "RPM":
		return Monthly, nil
	case "RCA":
		return AccessControl, nil
	}
	return 0, fmt.Errorf("unknown report code %q", code)
}

// Header carries the root-level metadata shared by all report families.
type Header struct {
	// Sostituzione marks the report as replacing a previously transmitted
	// one for the same period and progressivo.
	Sostituzione bool
	// DataReport is the period the report covers: the day for Daily and
	// AccessControl, any day inside the month for Monthly.
	DataReport time.Time
	// Progressivo disambiguates multiple submissions in the same period.
	// Valid range is 1 to 999.
	Progressivo int
}

// SostituzioneCode returns the wire form of the substitution flag.
func (h Header) SostituzioneCode() string {
	if h.Sostituzione {
		return "S"
	}
	return "N"
}

// ReportData is the tagged union consumed by the generator/checker/transmit
// chain. Exactly one of the three payload pointers must be set; the payload
// type fixes the Titolare and Evento shapes at compile time.
type ReportData struct {
	Daily         *DailyReport
	Monthly       *MonthlyReport
	AccessControl *AccessControlReport
}

// Type reports which payload is populated. It fails when none or more than
// one is set.
func (d *ReportData) Type() (ReportType, error) {
	var (
		t ReportType
		n int
	)
	if d.Daily != nil {
		t, n = Daily, n+1
	}
	if d.Monthly != nil {
		t, n = Monthly, n+1
	}
	if d.AccessControl != nil {
		t, n = AccessControl, n+1
	}
	if n != 1 {
		return 0, fmt.Errorf("report data must carry exactly one payload, has %d", n)
	}
	return t, nil
}

// Header returns the common header of whichever payload is set.
func (d *ReportData) Header() (Header, error) {
	t, err := d.Type()
	if err != nil {
		return Header{}, err
	}
	switch t {
	case Daily:
		return d.Daily.Header, nil
	case Monthly:
		return d.Monthly.Header, nil
	default:
		return d.AccessControl.Header, nil
	}
}
