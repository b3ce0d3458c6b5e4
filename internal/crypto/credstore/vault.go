package credstore

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"errors"
	"fmt"

	"golang.org/x/crypto/pbkdf2"
)

const (
	vaultSaltSize = 16
	vaultKeySize  = 32
	vaultKDFIter  = 4096
)

var errVaultCorrupt = errors.New("vault record corrupt")

func vaultKey(passphrase, salt []byte) []byte {
	return pbkdf2.Key(passphrase, salt, vaultKDFIter, vaultKeySize, sha256.New)
}

// Seal encrypts key material for storage on disk. The returned record is
// the salt, the GCM nonce and the ciphertext concatenated.
func Seal(plain, passphrase []byte) ([]byte, error) {
	salt := make([]byte, vaultSaltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}

	block, err := aes.NewCipher(vaultKey(passphrase, salt))
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}

	nonce := make([]byte, gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}

	record := append(salt, nonce...)
	return append(record, gcm.Seal(nil, nonce, plain, nil)...), nil
}

// Unseal decrypts a record produced by Seal.
func Unseal(record, passphrase []byte) ([]byte, error) {
	if len(record) < vaultSaltSize {
		return nil, errVaultCorrupt
	}
	salt, rest := record[:vaultSaltSize], record[vaultSaltSize:]

	block, err := aes.NewCipher(vaultKey(passphrase, salt))
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	if len(rest) < gcm.NonceSize() {
		return nil, errVaultCorrupt
	}

	plain, err := gcm.Open(nil, rest[:gcm.NonceSize()], rest[gcm.NonceSize():], nil)
	if err != nil {
		return nil, fmt.Errorf("vault passphrase rejected: %w", err)
	}
	return plain, nil
}
