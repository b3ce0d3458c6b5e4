// Package storage keeps the transmission journal: one JSON line per
// transmission attempt, appended under a lock, never rewritten.
package storage

import (
	"bufio"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry is one journal line. The fields mirror a transmission result as
// plain strings so the journal stays readable with nothing but jq.
type Entry struct {
	ID         string `json:"id"`
	Timestamp  string `json:"timestamp"`
	State      string `json:"state"`
	Stage      string `json:"stage"`
	ReportType string `json:"reportType,omitempty"`
	FileName   string `json:"fileName,omitempty"`
	Subject    string `json:"subject,omitempty"`
	MessageID  string `json:"messageId,omitempty"`
	Signed     bool   `json:"signed"`
	Fallback   bool   `json:"fallback,omitempty"`
	SignerName string `json:"signerName,omitempty"`
	SignerMail string `json:"signerMail,omitempty"`
	To         string `json:"to,omitempty"`
	Error      string `json:"error,omitempty"`
}

type Journal struct {
	mu       sync.Mutex
	filePath string
}

func NewJournal(dir string) (*Journal, error) {
	if err := os.MkdirAll(dir, 0700); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}
	return &Journal{
		filePath: filepath.Join(dir, "journal.jsonl"),
	}, nil
}

// Append writes one entry, stamping its id and timestamp.
func (j *Journal) Append(entry Entry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	if entry.ID == "" {
		entry.ID = uuid.NewString()
	}
	entry.Timestamp = time.Now().Format(time.RFC3339)
	log.Printf("DEBUG: journal entry: id=%s state=%s file=%s", entry.ID, entry.State, entry.FileName)

	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("failed to marshal entry: %w", err)
	}

	f, err := os.OpenFile(j.filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("failed to open journal: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("failed to write entry: %w", err)
	}
	if _, err := f.WriteString("\n"); err != nil {
		return fmt.Errorf("failed to write newline: %w", err)
	}

	return nil
}

// ReadAll returns every readable entry in append order. A torn or garbled
// line is skipped; it must not hide the rest of the history.
func (j *Journal) ReadAll() ([]Entry, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	f, err := os.Open(j.filePath)
	if err != nil {
		if os.IsNotExist(err) {
			return []Entry{}, nil
		}
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}
	defer f.Close()

	var entries []Entry
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		var entry Entry
		if err := json.Unmarshal(line, &entry); err != nil {
			continue
		}
		entries = append(entries, entry)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("failed to read journal: %w", err)
	}
	return entries, nil
}

// Tail returns the last n entries in append order.
func (j *Journal) Tail(n int) ([]Entry, error) {
	entries, err := j.ReadAll()
	if err != nil {
		return nil, err
	}
	if n < 0 {
		n = 0
	}
	if n < len(entries) {
		entries = entries[len(entries)-n:]
	}
	return entries, nil
}
