package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/biglietteria/riepilogo/internal/config"
	"github.com/biglietteria/riepilogo/internal/filename"
	"github.com/biglietteria/riepilogo/internal/model"
	"github.com/biglietteria/riepilogo/internal/xmlcheck"
	"github.com/biglietteria/riepilogo/internal/xmlgen"
)

// loadReport parses a report entity graph from its JSON form. Unknown
// fields are rejected so a typo in the input surfaces instead of
// silently dropping data.
func loadReport(path string) (*model.ReportData, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var report model.ReportData
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&report); err != nil {
		return nil, fmt.Errorf("parse report %s: %w", path, err)
	}
	return &report, nil
}

func runGenera(args []string) error {
	fs := flag.NewFlagSet("genera", flag.ExitOnError)
	reportPath := fs.String("report", "", "report entity graph (JSON file)")
	envFile := fs.String("env", "", "environment file to merge before reading settings")
	system := fs.String("system", "", "emission system code (default RIEPILOGO_SYSTEM_CODE)")
	outDir := fs.String("out", ".", "directory the report file is written to")
	fs.Parse(args)

	if *reportPath == "" {
		return errors.New("-report is required")
	}
	cfg, err := config.Load(*envFile)
	if err != nil {
		return err
	}
	if *system == "" {
		*system = cfg.SystemCode
	}

	report, err := loadReport(*reportPath)
	if err != nil {
		return err
	}
	rt, err := report.Type()
	if err != nil {
		return err
	}
	hdr, err := report.Header()
	if err != nil {
		return err
	}
	name, err := filename.Generate(rt, hdr.DataReport, *system, hdr.Progressivo)
	if err != nil {
		return err
	}

	text, err := xmlgen.Generate(report, time.Now())
	if err != nil {
		return err
	}
	wire, err := xmlgen.EncodeWire(text)
	if err != nil {
		return err
	}

	check := xmlcheck.ValidateAs(wire, rt)
	printIssues(check)
	if !check.Valid {
		return fmt.Errorf("document failed structural validation, %d errors", len(check.Errors))
	}

	path := filepath.Join(*outDir, name)
	if err := os.WriteFile(path, wire, 0644); err != nil {
		return err
	}
	fmt.Printf("file:    %s\n", path)
	fmt.Printf("subject: %s\n", filename.Subject(name))
	return nil
}

type controllaResponse struct {
	Valid      bool             `json:"valid"`
	FileName   string           `json:"fileName"`
	NameError  string           `json:"nameError,omitempty"`
	Subject    string           `json:"subject,omitempty"`
	Validation *xmlcheck.Result `json:"validation"`
}

func runControlla(args []string) error {
	fs := flag.NewFlagSet("controlla", flag.ExitOnError)
	jsonOut := fs.Bool("json", false, "print the outcome as JSON")
	fs.Parse(args)

	if fs.NArg() != 1 {
		return errors.New("exactly one report file path is required")
	}
	path := fs.Arg(0)
	raw, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	base := filepath.Base(path)
	check := xmlcheck.Validate(raw)

	out := controllaResponse{
		FileName:   base,
		Validation: check,
	}
	if err := filename.Validate(base); err != nil {
		out.NameError = err.Error()
	} else {
		out.Subject = filename.Subject(base)
		if check.TypeKnown && !strings.HasPrefix(base, check.Type.Code()+"_") {
			out.NameError = fmt.Sprintf("file name %q does not match the %s content", base, check.Type)
		}
	}
	out.Valid = check.Valid && out.NameError == ""

	if *jsonOut {
		printJSON(out)
	} else {
		fmt.Printf("file:    %s\n", base)
		if out.Subject != "" {
			fmt.Printf("subject: %s\n", out.Subject)
		}
		if out.NameError != "" {
			fmt.Printf("invalid: %s\n", out.NameError)
		}
		printIssues(check)
		if out.Valid {
			fmt.Println("state:   valid")
		} else {
			fmt.Println("state:   invalid")
		}
	}
	if !out.Valid {
		return errors.New("report file failed the checks")
	}
	return nil
}

func runNome(args []string) error {
	fs := flag.NewFlagSet("nome", flag.ExitOnError)
	typeCode := fs.String("type", "", "report code: RPG, RPM or RCA")
	date := fs.String("date", "", "report period date, YYYY-MM-DD")
	envFile := fs.String("env", "", "environment file to merge before reading settings")
	system := fs.String("system", "", "emission system code (default RIEPILOGO_SYSTEM_CODE)")
	seq := fs.Int("seq", 1, "progressivo, 1 to 999")
	fs.Parse(args)

	if *typeCode == "" || *date == "" {
		return errors.New("-type and -date are required")
	}
	rt, err := model.ParseCode(*typeCode)
	if err != nil {
		return err
	}
	day, err := time.Parse("2006-01-02", *date)
	if err != nil {
		return fmt.Errorf("parse date %q: %w", *date, err)
	}
	if *system == "" {
		cfg, err := config.Load(*envFile)
		if err != nil {
			return err
		}
		*system = cfg.SystemCode
	}

	name, err := filename.Generate(rt, day, *system, *seq)
	if err != nil {
		return err
	}
	fmt.Printf("file:    %s\n", name)
	fmt.Printf("subject: %s\n", filename.Subject(name))
	return nil
}
