// Package filename implements the naming convention for outbound report
// files. The authority's intake keys duplicate detection on the filename, so
// generation and validation are strict: no fallback values, no truncation.
package filename

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/biglietteria/riepilogo/internal/model"
)

const Extension = ".xsi"

// SignedExtension is the suffix carried by a signed artifact of a report file.
const SignedExtension = ".xsi.p7m"

var (
	ErrInvalidSystemCode = errors.New("invalid system code")
	ErrInvalidSequence   = errors.New("invalid sequence number")
	ErrBadName           = errors.New("invalid report filename")
)

var (
	reSystemCode = regexp.MustCompile(`^[A-Za-z0-9]{8}$`)
	// A run of ten or more digits after an underscore is a timestamp, and a
	// timestamp in the name defeats the authority's duplicate detection.
	reTimestamp = regexp.MustCompile(`_\d{10,}`)
	reDigits    = regexp.MustCompile(`^\d+$`)
)

// CheckSystemCode verifies an emission system code: exactly 8 alphanumeric
// characters, as assigned by the authority.
func CheckSystemCode(systemCode string) error {
	if !reSystemCode.MatchString(systemCode) {
		return fmt.Errorf("%w: %q is not 8 alphanumeric characters", ErrInvalidSystemCode, systemCode)
	}
	return nil
}

// Generate builds the filename for one report submission. The system code is
// validated but never embedded in the name: an operator without a real code
// must not produce artifacts at all.
//
// Monthly names carry four segments (RPM_YYYY_MM_NNN.xsi), Daily and
// AccessControl names carry five (RPG_YYYY_MM_DD_NNN.xsi and
// RCA_YYYY_MM_DD_NNN.xsi).
func Generate(t model.ReportType, date time.Time, systemCode string, progressivo int) (string, error) {
	if err := CheckSystemCode(systemCode); err != nil {
		return "", err
	}
	if progressivo < 1 || progressivo > 999 {
		return "", fmt.Errorf("%w: %d outside [1,999]", ErrInvalidSequence, progressivo)
	}
	if date.IsZero() {
		return "", fmt.Errorf("%w: zero report date", ErrBadName)
	}

	switch t {
	case model.Monthly:
		return fmt.Sprintf("%s_%04d_%02d_%03d%s", t.Code(), date.Year(), int(date.Month()), progressivo, Extension), nil
	case model.Daily, model.AccessControl:
		return fmt.Sprintf("%s_%04d_%02d_%02d_%03d%s", t.Code(), date.Year(), int(date.Month()), date.Day(), progressivo, Extension), nil
	}
	return "", fmt.Errorf("%w: unknown report type %v", ErrBadName, t)
}

// Validate checks a report filename, signed or unsigned, against the naming
// rules: known prefix, the segment count that prefix mandates, well formed
// date and sequence segments, and no embedded digit run long enough to be a
// timestamp.
func Validate(name string) error {
	base, ok := trimExtension(name)
	if !ok {
		return fmt.Errorf("%w: %q does not end in %s or %s", ErrBadName, name, Extension, SignedExtension)
	}
	if reTimestamp.MatchString(base) {
		return fmt.Errorf("%w: %q embeds a timestamp-length digit run", ErrBadName, name)
	}

	segments := strings.Split(base, "_")
	var want int
	switch segments[0] {
	case model.Monthly.Code():
		want = 4
	case model.Daily.Code(), model.AccessControl.Code():
		want = 5
	default:
		return fmt.Errorf("%w: unknown prefix %q", ErrBadName, segments[0])
	}
	if len(segments) != want {
		return fmt.Errorf("%w: %q has %d segments, %s names take %d", ErrBadName, name, len(segments), segments[0], want)
	}

	for i, width := range segmentWidths(want) {
		if seg := segments[i+1]; len(seg) != width || !reDigits.MatchString(seg) {
			return fmt.Errorf("%w: segment %q is not %d digits", ErrBadName, seg, width)
		}
	}

	if want == 4 {
		if _, err := time.Parse("200601", segments[1]+segments[2]); err != nil {
			return fmt.Errorf("%w: %q is not a valid year/month", ErrBadName, segments[1]+"_"+segments[2])
		}
	} else {
		if _, err := time.Parse("20060102", segments[1]+segments[2]+segments[3]); err != nil {
			return fmt.Errorf("%w: %q is not a valid date", ErrBadName, segments[1]+"_"+segments[2]+"_"+segments[3])
		}
	}

	if seq := segments[want-1]; seq == "000" {
		return fmt.Errorf("%w: sequence 000 outside [1,999]", ErrInvalidSequence)
	}
	return nil
}

// Subject returns the mail subject for a report filename: the base name with
// the trailing .xsi or .xsi.p7m removed. For any name Validate accepts, the
// result is byte-identical to the name's base.
func Subject(name string) string {
	if base, ok := trimExtension(name); ok {
		return base
	}
	return name
}

func trimExtension(name string) (string, bool) {
	if strings.HasSuffix(name, SignedExtension) {
		return strings.TrimSuffix(name, SignedExtension), true
	}
	if strings.HasSuffix(name, Extension) {
		return strings.TrimSuffix(name, Extension), true
	}
	return name, false
}

// segmentWidths lists the digit widths of the segments after the prefix.
func segmentWidths(segments int) []int {
	if segments == 4 {
		return []int{4, 2, 3}
	}
	return []int{4, 2, 2, 3}
}
