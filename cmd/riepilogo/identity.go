package main

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/biglietteria/riepilogo/internal/config"
	"github.com/biglietteria/riepilogo/internal/crypto/credstore"
)

func runIdentita(args []string) error {
	fs := flag.NewFlagSet("identita", flag.ExitOnError)
	envFile := fs.String("env", "", "environment file to merge before reading settings")
	importPath := fs.String("import", "", "import a PKCS#12 credential file")
	password := fs.String("password", "", "PKCS#12 password, omit for passwordless files")
	label := fs.String("label", "", "label for the imported or linked credential")
	deleteID := fs.String("delete", "", "delete the stored identity with this id")
	cardModule := fs.String("card", "", "PKCS#11 middleware path, lists the card certificates")
	slot := fs.Uint("slot", 0, "card slot for -card")
	system := fs.Bool("system", false, "list the OS certificate store")
	link := fs.String("link", "", "hex id of the certificate to link, with -card or -system")
	fs.Parse(args)

	cfg, err := config.Load(*envFile)
	if err != nil {
		return err
	}
	ctx := context.Background()

	switch {
	case *importPath != "":
		return importP12(ctx, cfg, *importPath, *label, *password)
	case *deleteID != "":
		store, err := credstore.Open(cfg.StoreDir, []byte(cfg.VaultPassphrase))
		if err != nil {
			return err
		}
		if err := store.Delete(ctx, *deleteID); err != nil {
			return err
		}
		fmt.Printf("deleted %s\n", *deleteID)
		return nil
	case *cardModule != "" && *link != "":
		return linkCard(ctx, cfg, *cardModule, *slot, *link, *label)
	case *cardModule != "":
		return listCard(*cardModule, *slot)
	case *system && *link != "":
		return linkSystem(ctx, cfg, *link, *label)
	case *system:
		return listSystem()
	default:
		return listStore(ctx, cfg)
	}
}

func importP12(ctx context.Context, cfg *config.Config, path, label, password string) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()

	if label == "" {
		label = strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	}
	store, err := credstore.Open(cfg.StoreDir, []byte(cfg.VaultPassphrase))
	if err != nil {
		return err
	}
	ident, err := store.Import(ctx, label, f, password)
	if err != nil {
		return err
	}
	fmt.Println("imported:")
	printIdentity(ident)
	return nil
}

func listStore(ctx context.Context, cfg *config.Config) error {
	store, err := credstore.Open(cfg.StoreDir, []byte(cfg.VaultPassphrase))
	if err != nil {
		return err
	}
	idents, err := store.List(ctx)
	if err != nil {
		return err
	}
	if len(idents) == 0 {
		fmt.Println("no stored identities")
		return nil
	}
	for i := range idents {
		printIdentity(&idents[i])
	}
	return nil
}

func listCard(module string, slot uint) error {
	creds, err := credstore.CardCredentials(module, slot)
	if err != nil {
		return err
	}
	if len(creds) == 0 {
		fmt.Println("no certificates on the card")
		return nil
	}
	for _, c := range creds {
		holder := credstore.Identity{Cert: c.Cert}
		fmt.Printf("%-16x  %s  expires %s\n",
			c.KeyID, holder.DisplayName(), c.Cert.NotAfter.Format("2006-01-02"))
	}
	return nil
}

func linkCard(ctx context.Context, cfg *config.Config, module string, slot uint, keyHex, label string) error {
	keyID, err := hex.DecodeString(keyHex)
	if err != nil {
		return fmt.Errorf("parse key id %q: %w", keyHex, err)
	}
	creds, err := credstore.CardCredentials(module, slot)
	if err != nil {
		return err
	}
	for _, c := range creds {
		if !bytes.Equal(c.KeyID, keyID) {
			continue
		}
		if label == "" {
			holder := credstore.Identity{Cert: c.Cert}
			label = holder.DisplayName()
		}
		store, err := credstore.Open(cfg.StoreDir, []byte(cfg.VaultPassphrase))
		if err != nil {
			return err
		}
		ident, err := store.LinkCard(ctx, label, c.Cert, nil, module, slot, keyID)
		if err != nil {
			return err
		}
		fmt.Println("linked:")
		printIdentity(ident)
		return nil
	}
	return fmt.Errorf("no card certificate with key id %s", keyHex)
}

func listSystem() error {
	idents, err := credstore.SystemIdentities()
	if err != nil {
		return err
	}
	if len(idents) == 0 {
		fmt.Println("no usable certificates in the OS store")
		return nil
	}
	for i := range idents {
		id := &idents[i]
		fmt.Printf("%x  %s  expires %s\n",
			id.Fingerprint[:8], id.DisplayName(), id.Cert.NotAfter.Format("2006-01-02"))
	}
	return nil
}

func linkSystem(ctx context.Context, cfg *config.Config, fpHex, label string) error {
	prefix, err := hex.DecodeString(fpHex)
	if err != nil {
		return fmt.Errorf("parse fingerprint %q: %w", fpHex, err)
	}
	if len(prefix) == 0 || len(prefix) > sha256.Size {
		return fmt.Errorf("fingerprint %q must be 1 to %d bytes of hex", fpHex, sha256.Size)
	}
	idents, err := credstore.SystemIdentities()
	if err != nil {
		return err
	}
	for i := range idents {
		id := &idents[i]
		if !bytes.Equal(id.Fingerprint[:len(prefix)], prefix) {
			continue
		}
		if label == "" {
			label = id.DisplayName()
		}
		store, err := credstore.Open(cfg.StoreDir, []byte(cfg.VaultPassphrase))
		if err != nil {
			return err
		}
		linked, err := store.LinkSystem(ctx, label, id.Cert, id.Chain)
		if err != nil {
			return err
		}
		fmt.Println("linked:")
		printIdentity(linked)
		return nil
	}
	return fmt.Errorf("no OS store certificate with fingerprint %s", fpHex)
}

func printIdentity(id *credstore.Identity) {
	email := id.Email()
	if email == "" {
		email = "-"
	}
	fmt.Printf("%s  %-24s  %s <%s>  expires %s\n",
		id.ID, id.Label, id.DisplayName(), email, id.Cert.NotAfter.Format("2006-01-02"))
}
