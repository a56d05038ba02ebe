package auth

import (
	"crypto/rand"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/argon2"
	"golang.org/x/crypto/chacha20poly1305"
)

// Argon2id parameters used to derive the sealing key from a passphrase.
const (
	Memory      = 64 * 1024 // 64 MB
	Iterations  = 3
	Parallelism = 2
	SaltLength  = 16
)

var ErrWrongPassphrase = errors.New("wrong passphrase or corrupted sealed key")

// SealKey encrypts secret with a key derived from passphrase. The result
// carries every parameter needed by OpenKey:
//
//	$argon2id$v=19$m=65536,t=3,p=2$<salt>$<nonce|ciphertext>
func SealKey(passphrase string, secret []byte) (string, error) {
	salt := make([]byte, SaltLength)
	if _, err := rand.Read(salt); err != nil {
		return "", err
	}
	aead, err := chacha20poly1305.NewX(deriveKey(passphrase, salt, Iterations, Memory, Parallelism))
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(secret)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", err
	}
	sealed := aead.Seal(nonce, nonce, secret, nil)

	return fmt.Sprintf("$argon2id$v=%d$m=%d,t=%d,p=%d$%s$%s",
		argon2.Version, Memory, Iterations, Parallelism,
		base64.RawStdEncoding.EncodeToString(salt),
		base64.RawStdEncoding.EncodeToString(sealed)), nil
}

// OpenKey reverses SealKey.
func OpenKey(passphrase, encoded string) ([]byte, error) {
	parts := strings.Split(encoded, "$")
	if len(parts) != 6 || parts[1] != "argon2id" {
		return nil, errors.New("invalid sealed key format")
	}

	var version, memory, iterations, parallelism int
	if _, err := fmt.Sscanf(parts[2], "v=%d", &version); err != nil {
		return nil, fmt.Errorf("invalid sealed key version: %w", err)
	}
	if version != argon2.Version {
		return nil, fmt.Errorf("unsupported argon2 version %d", version)
	}
	if _, err := fmt.Sscanf(parts[3], "m=%d,t=%d,p=%d", &memory, &iterations, &parallelism); err != nil {
		return nil, fmt.Errorf("invalid sealed key parameters: %w", err)
	}

	salt, err := base64.RawStdEncoding.DecodeString(parts[4])
	if err != nil {
		return nil, err
	}
	sealed, err := base64.RawStdEncoding.DecodeString(parts[5])
	if err != nil {
		return nil, err
	}

	aead, err := chacha20poly1305.NewX(deriveKey(passphrase, salt, uint32(iterations), uint32(memory), uint8(parallelism)))
	if err != nil {
		return nil, err
	}
	if len(sealed) < aead.NonceSize() {
		return nil, ErrWrongPassphrase
	}
	nonce, ciphertext := sealed[:aead.NonceSize()], sealed[aead.NonceSize():]
	secret, err := aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return nil, ErrWrongPassphrase
	}
	return secret, nil
}

func deriveKey(passphrase string, salt []byte, iterations, memory uint32, parallelism uint8) []byte {
	return argon2.IDKey([]byte(passphrase), salt, iterations, memory, parallelism, chacha20poly1305.KeySize)
}
