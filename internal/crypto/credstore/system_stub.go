//go:build !cgo || (!darwin && !windows)

package credstore

import (
	"crypto"
	"errors"
)

var errNoSystemStore = errors.New("system store unavailable in this build")

func SystemIdentities() ([]Identity, error) {
	return nil, errNoSystemStore
}

func systemSigner(fingerprintHex string) (crypto.Signer, error) {
	return nil, errNoSystemStore
}
