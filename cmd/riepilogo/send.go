package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/biglietteria/riepilogo/internal/bridge"
	"github.com/biglietteria/riepilogo/internal/config"
	"github.com/biglietteria/riepilogo/internal/crypto/credstore"
	"github.com/biglietteria/riepilogo/internal/mail"
	"github.com/biglietteria/riepilogo/internal/storage"
	"github.com/biglietteria/riepilogo/internal/transmit"
	"github.com/biglietteria/riepilogo/internal/xmlcheck"
)

type inviaResponse struct {
	State      string           `json:"state"`
	Stage      string           `json:"stage"`
	ReportType string           `json:"reportType,omitempty"`
	FileName   string           `json:"fileName,omitempty"`
	Subject    string           `json:"subject,omitempty"`
	MessageID  string           `json:"messageId,omitempty"`
	Signed     bool             `json:"signed"`
	Fallback   bool             `json:"fallback,omitempty"`
	SignerMail string           `json:"signerMail,omitempty"`
	SignerName string           `json:"signerName,omitempty"`
	SignedAt   string           `json:"signedAt,omitempty"`
	Error      string           `json:"error,omitempty"`
	Validation *xmlcheck.Result `json:"validation,omitempty"`
}

func runInvia(args []string) error {
	fs := flag.NewFlagSet("invia", flag.ExitOnError)
	reportPath := fs.String("report", "", "report entity graph (JSON file)")
	envFile := fs.String("env", "", "environment file to merge before reading settings")
	system := fs.String("system", "", "emission system code (default RIEPILOGO_SYSTEM_CODE)")
	to := fs.String("to", "", "intake mailbox (default RIEPILOGO_TO)")
	name := fs.String("file", "", "report file name (default derived from the report)")
	subject := fs.String("subject", "", "message subject (default the file base name)")
	body := fs.String("body", "", "message text")
	sign := fs.String("sign", "", "signing policy: require, prefer or skip (default per report type)")
	identity := fs.String("identity", "", "sign in-process with this stored identity instead of the bridge")
	pin := fs.String("pin", "", "smart card PIN when -identity names a card credential")
	jsonOut := fs.Bool("json", false, "print the outcome as JSON")
	fs.Parse(args)

	if *reportPath == "" {
		return errors.New("-report is required")
	}
	policy, err := signingPolicy(*sign)
	if err != nil {
		return err
	}

	cfg, err := config.Load(*envFile)
	if err != nil {
		return err
	}
	if *system == "" {
		*system = cfg.SystemCode
	}
	if *to == "" {
		*to = cfg.To
	}
	if err := cfg.CheckTransmit(); err != nil {
		return err
	}

	report, err := loadReport(*reportPath)
	if err != nil {
		return err
	}

	ctx := context.Background()
	br, err := buildBridge(ctx, cfg, *identity, *pin)
	if err != nil {
		return err
	}

	tm, err := transmit.New(transmit.Config{
		Bridge: br,
		Mail: &mail.SMTP{
			Host:     cfg.SMTPHost,
			Port:     cfg.SMTPPort,
			User:     cfg.SMTPUser,
			Password: cfg.SMTPPassword,
		},
		From: cfg.From,
	})
	if err != nil {
		return err
	}

	res := tm.Transmit(ctx, transmit.Request{
		Report:     report,
		SystemCode: *system,
		To:         *to,
		FileName:   *name,
		Subject:    *subject,
		Body:       *body,
		Signing:    policy,
	})

	if journal, jerr := storage.NewJournal(cfg.JournalDir); jerr != nil {
		log.Printf("DEBUG: journal unavailable: %v", jerr)
	} else if jerr := journal.Append(journalEntry(res, *to)); jerr != nil {
		log.Printf("DEBUG: journal write failed: %v", jerr)
	}

	if *jsonOut {
		printJSON(inviaResult(res))
	} else {
		printResult(res)
	}
	if !res.Ok() {
		return fmt.Errorf("transmission %s at stage %s", res.State, res.Stage)
	}
	return nil
}

func runPonte(args []string) error {
	fs := flag.NewFlagSet("ponte", flag.ExitOnError)
	envFile := fs.String("env", "", "environment file to merge before reading settings")
	fs.Parse(args)

	cfg, err := config.Load(*envFile)
	if err != nil {
		return err
	}
	if cfg.BridgeURL == "" {
		return errors.New("RIEPILOGO_BRIDGE_URL is not set")
	}

	ctx := context.Background()
	br := bridge.NewHTTP(cfg.BridgeURL, cfg.BridgeTimeout)
	if !br.Connected(ctx) {
		return fmt.Errorf("bridge at %s is not reachable", cfg.BridgeURL)
	}
	fmt.Printf("bridge:  %s\n", cfg.BridgeURL)

	email, err := br.SignerEmail(ctx)
	if err != nil {
		if errors.Is(err, bridge.ErrNoSigner) {
			fmt.Println("signer:  none loaded")
			return nil
		}
		return err
	}
	fmt.Printf("signer:  %s\n", email)
	return nil
}

func runStorico(args []string) error {
	fs := flag.NewFlagSet("storico", flag.ExitOnError)
	envFile := fs.String("env", "", "environment file to merge before reading settings")
	n := fs.Int("n", 20, "number of entries to show")
	jsonOut := fs.Bool("json", false, "print the entries as JSON")
	fs.Parse(args)

	cfg, err := config.Load(*envFile)
	if err != nil {
		return err
	}
	journal, err := storage.NewJournal(cfg.JournalDir)
	if err != nil {
		return err
	}
	entries, err := journal.Tail(*n)
	if err != nil {
		return err
	}

	if *jsonOut {
		printJSON(entries)
		return nil
	}
	if len(entries) == 0 {
		fmt.Println("journal is empty")
		return nil
	}
	for _, e := range entries {
		line := fmt.Sprintf("%s  %-7s  %-8s  %s", e.Timestamp, e.State, e.Stage, orDash(e.FileName))
		switch {
		case e.Signed:
			line += "  signed"
		case e.Fallback:
			line += "  unsigned fallback"
		}
		if e.Error != "" {
			line += "  " + e.Error
		}
		fmt.Println(line)
	}
	return nil
}

func signingPolicy(s string) (transmit.SigningPolicy, error) {
	switch strings.ToLower(s) {
	case "":
		return transmit.SignDefault, nil
	case "require":
		return transmit.SignRequire, nil
	case "prefer":
		return transmit.SignPrefer, nil
	case "skip":
		return transmit.SignSkip, nil
	}
	return 0, fmt.Errorf("unknown signing policy %q", s)
}

// buildBridge picks the signing path: a stored identity unlocked in-process,
// the configured daemon, or none at all.
func buildBridge(ctx context.Context, cfg *config.Config, identityID, pin string) (bridge.Bridge, error) {
	if identityID != "" {
		store, err := credstore.Open(cfg.StoreDir, []byte(cfg.VaultPassphrase))
		if err != nil {
			return nil, err
		}
		ident, err := store.Unlock(ctx, identityID, pin)
		if err != nil {
			return nil, fmt.Errorf("unlock identity %s: %w", identityID, err)
		}
		return bridge.NewLocal(ident)
	}
	if cfg.BridgeURL != "" {
		return bridge.NewHTTP(cfg.BridgeURL, cfg.BridgeTimeout), nil
	}
	return nil, nil
}

func journalEntry(res *transmit.Result, to string) storage.Entry {
	e := storage.Entry{
		State:      string(res.State),
		Stage:      string(res.Stage),
		ReportType: res.ReportType,
		FileName:   res.FileName,
		Subject:    res.Subject,
		MessageID:  res.MessageID,
		Signed:     res.Signed,
		Fallback:   res.Fallback,
		SignerName: res.SignerName,
		SignerMail: res.SignerEmail,
		To:         to,
	}
	if res.Err != nil {
		e.Error = res.Err.Error()
	}
	return e
}

func inviaResult(res *transmit.Result) inviaResponse {
	out := inviaResponse{
		State:      string(res.State),
		Stage:      string(res.Stage),
		ReportType: res.ReportType,
		FileName:   res.FileName,
		Subject:    res.Subject,
		MessageID:  res.MessageID,
		Signed:     res.Signed,
		Fallback:   res.Fallback,
		SignerMail: res.SignerEmail,
		SignerName: res.SignerName,
		Validation: res.Validation,
	}
	if !res.SignedAt.IsZero() {
		out.SignedAt = res.SignedAt.Format(time.RFC3339)
	}
	if res.Err != nil {
		out.Error = res.Err.Error()
	}
	return out
}

func printResult(res *transmit.Result) {
	fmt.Printf("file:    %s\n", orDash(res.FileName))
	fmt.Printf("subject: %s\n", orDash(res.Subject))
	fmt.Printf("state:   %s (stage %s)\n", res.State, res.Stage)
	if res.MessageID != "" {
		fmt.Printf("message: %s\n", res.MessageID)
	}
	switch {
	case res.Signed:
		fmt.Printf("signed:  yes, by %s (%s)\n", res.SignerEmail, res.SignerName)
	case res.Fallback:
		fmt.Println("signed:  no, sent unsigned after a signing failure")
	default:
		fmt.Println("signed:  no")
	}
	if res.Validation != nil {
		printIssues(res.Validation)
	}
	if res.Err != nil {
		fmt.Printf("error:   %v\n", res.Err)
	}
}

func printIssues(check *xmlcheck.Result) {
	for _, w := range check.Warnings {
		fmt.Printf("warning: %s %s: %s\n", w.Code, w.Path, w.Detail)
	}
	for _, e := range check.Errors {
		fmt.Printf("invalid: %s %s: %s\n", e.Code, e.Path, e.Detail)
	}
}

func printJSON(v any) {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		fmt.Println(`{"error":"internal JSON encoding failure"}`)
		return
	}
	fmt.Println(string(b))
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
