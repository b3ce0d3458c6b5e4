// Package xmlcheck is the structural gate run on generated reports before
// transmission. It performs targeted presence and format checks against the
// authority's schema families, not full grammar validation: inputs come from
// the generator, never from arbitrary sources, and the point is catching
// generator regressions and cross-family rule violations.
//
// Validation never fails with an error value. Every input yields a Result
// whose issue lists let the caller decide pass or block policy.
package xmlcheck

import (
	"errors"
	"fmt"

	"github.com/biglietteria/riepilogo/internal/model"
)

// Issue codes.
const (
	CodeMalformedXML       = "MALFORMED_XML"
	CodeUnknownReportType  = "UNKNOWN_REPORT_TYPE"
	CodeRootMismatch       = "ROOT_MISMATCH"
	CodeMissingAttribute   = "MISSING_ATTRIBUTE"
	CodeBadAttribute       = "BAD_ATTRIBUTE"
	CodeForbiddenAttribute = "FORBIDDEN_ATTRIBUTE"
	CodeMissingElement     = "MISSING_ELEMENT"
	CodeMisplacedElement   = "MISPLACED_ELEMENT"
	CodeEmptyReport        = "EMPTY_REPORT"
)

var (
	errMultipleRoots = errors.New("multiple root elements")
	errNoRoot        = errors.New("no root element")
)

// Issue is one finding, anchored to a slash path inside the document.
type Issue struct {
	Code   string `json:"code"`
	Path   string `json:"path"`
	Detail string `json:"detail"`
}

func (i Issue) String() string {
	return fmt.Sprintf("%s at %s: %s", i.Code, i.Path, i.Detail)
}

// Result is the outcome of one structural check run.
type Result struct {
	Valid bool `json:"valid"`
	// Type is the detected report family; meaningful only when TypeKnown.
	Type      model.ReportType `json:"type"`
	TypeKnown bool             `json:"typeKnown"`
	Errors    []Issue          `json:"errors"`
	Warnings  []Issue          `json:"warnings"`
}

func (r *Result) errorf(code, path, format string, args ...any) {
	r.Errors = append(r.Errors, Issue{Code: code, Path: path, Detail: fmt.Sprintf(format, args...)})
}

func (r *Result) warnf(code, path, format string, args ...any) {
	r.Warnings = append(r.Warnings, Issue{Code: code, Path: path, Detail: fmt.Sprintf(format, args...)})
}

// Validate checks a report document, detecting the family from the root tag.
func Validate(doc []byte) *Result {
	return run(doc, nil)
}

// ValidateAs checks a report document against one expected family. A root
// tag of a different family is an error even when the document would be
// valid for that other family.
func ValidateAs(doc []byte, want model.ReportType) *Result {
	return run(doc, &want)
}

func run(doc []byte, want *model.ReportType) *Result {
	res := &Result{}

	root, err := parse(doc)
	if err != nil {
		res.errorf(CodeMalformedXML, "/", "%v", err)
		return res
	}

	var detected model.ReportType
	switch root.name {
	case model.Daily.RootElement():
		detected = model.Daily
	case model.Monthly.RootElement():
		detected = model.Monthly
	case model.AccessControl.RootElement():
		detected = model.AccessControl
	default:
		res.errorf(CodeUnknownReportType, "/"+root.name, "unknown root element %q", root.name)
		return res
	}
	res.Type = detected
	res.TypeKnown = true

	if want != nil && *want != detected {
		res.errorf(CodeRootMismatch, "/"+root.name, "document is %s, expected %s", detected.Code(), want.Code())
		return res
	}

	checkRoot(res, root, detected)
	res.Valid = len(res.Errors) == 0
	return res
}
