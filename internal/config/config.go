// Package config loads the pipeline settings from the environment, with
// an optional dotenv file merged in first. Variables already present in
// the process environment always win over file values.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Config carries every runtime setting of the pipeline. All fields map
// to RIEPILOGO_* environment variables.
type Config struct {
	SMTPHost     string
	SMTPPort     int
	SMTPUser     string
	SMTPPassword string

	// BridgeURL is the local signer daemon endpoint. Empty means no
	// daemon: signing happens in-process against the credential store.
	BridgeURL     string
	BridgeTimeout time.Duration

	StoreDir        string
	VaultPassphrase string
	JournalDir      string

	// From is the outbound address for unsigned dispatch. Signed
	// messages always travel under the signer's own mailbox.
	From string
	// To is the authority intake mailbox.
	To string
	// SystemCode is the installation's emission system code.
	SystemCode string
}

// Load reads the configuration. With an explicit file path the file must
// exist; with an empty path the file named by RIEPILOGO_ENV (.env.<name>)
// or the plain .env is merged when present and silently skipped when not.
func Load(envFile string) (*Config, error) {
	explicit := envFile != ""
	if envFile == "" {
		if env := os.Getenv("RIEPILOGO_ENV"); env != "" {
			envFile = ".env." + env
		} else {
			envFile = ".env"
		}
	}
	if err := godotenv.Load(envFile); err != nil {
		if explicit || !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load environment file %s: %w", envFile, err)
		}
	}

	base := defaultBaseDir()
	cfg := &Config{
		SMTPHost:        os.Getenv("RIEPILOGO_SMTP_HOST"),
		SMTPUser:        os.Getenv("RIEPILOGO_SMTP_USER"),
		SMTPPassword:    os.Getenv("RIEPILOGO_SMTP_PASSWORD"),
		BridgeURL:       os.Getenv("RIEPILOGO_BRIDGE_URL"),
		StoreDir:        getenv("RIEPILOGO_STORE_DIR", filepath.Join(base, "credenziali")),
		VaultPassphrase: os.Getenv("RIEPILOGO_VAULT_PASSPHRASE"),
		JournalDir:      getenv("RIEPILOGO_JOURNAL_DIR", base),
		From:            os.Getenv("RIEPILOGO_FROM"),
		To:              os.Getenv("RIEPILOGO_TO"),
		SystemCode:      os.Getenv("RIEPILOGO_SYSTEM_CODE"),
	}

	port, err := getint("RIEPILOGO_SMTP_PORT", 25)
	if err != nil {
		return nil, err
	}
	cfg.SMTPPort = port

	timeout, err := getdur("RIEPILOGO_BRIDGE_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}
	cfg.BridgeTimeout = timeout

	return cfg, nil
}

// CheckTransmit verifies the settings a transmission cannot run without.
func (c *Config) CheckTransmit() error {
	if c.SMTPHost == "" {
		return errors.New("RIEPILOGO_SMTP_HOST is not set")
	}
	if c.From == "" {
		return errors.New("RIEPILOGO_FROM is not set")
	}
	if c.To == "" {
		return errors.New("RIEPILOGO_TO is not set")
	}
	return nil
}

func defaultBaseDir() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return ".riepilogo"
	}
	return filepath.Join(dir, "riepilogo")
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getint(key string, fallback int) (int, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not a number", key, v)
	}
	return n, nil
}

func getdur(key string, fallback time.Duration) (time.Duration, error) {
	v := os.Getenv(key)
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("%s: %q is not a duration", key, v)
	}
	return d, nil
}
