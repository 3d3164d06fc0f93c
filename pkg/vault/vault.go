// Package vault encrypts small per-user secrets (provider API keys) at rest.
//
// Envelopes are hex(nonce) + ":" + hex(ciphertext) using AES-256-GCM with a
// key derived from the process secret. Only this package parses them.
package vault

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const (
	keySize   = 32
	separator = ":"
	hkdfInfo  = "audio-translator/provider-keys/v1"
)

var (
	ErrEmptySecret       = errors.New("vault secret must not be empty")
	ErrMalformedEnvelope = errors.New("malformed envelope")
)

// Result is the outcome of Decrypt. A corrupt result carries the original
// input in Plaintext so callers that choose to degrade can still do so.
type Result struct {
	Plaintext string
	Corrupt   bool
}

// Value returns the plaintext and whether it can be trusted.
func (r Result) Value() (string, bool) {
	return r.Plaintext, !r.Corrupt
}

type Vault struct {
	aead   cipher.AEAD
	random io.Reader
	logger *slog.Logger
}

// New derives the AES key from secret with HKDF-SHA256, so any secret length works.
func New(secret string, logger *slog.Logger) (*Vault, error) {
	if secret == "" {
		return nil, ErrEmptySecret
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	key := make([]byte, keySize)
	if _, err := io.ReadFull(hkdf.New(sha256.New, []byte(secret), nil, []byte(hkdfInfo)), key); err != nil {
		return nil, fmt.Errorf("failed to derive vault key: %w", err)
	}

	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("failed to create cipher: %w", err)
	}
	aead, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("failed to create GCM: %w", err)
	}

	return &Vault{aead: aead, random: rand.Reader, logger: logger.With("component", "vault")}, nil
}

// Encrypt seals plaintext under a fresh nonce, the empty string included. On
// cipher failure the plaintext is returned unchanged and the event is logged.
func (v *Vault) Encrypt(plaintext string) string {
	envelope, err := v.seal(plaintext)
	if err != nil {
		v.logger.Error("encryption failed, storing value unencrypted", "error", err)
		return plaintext
	}
	return envelope
}

func (v *Vault) seal(plaintext string) (string, error) {
	nonce := make([]byte, v.aead.NonceSize())
	if _, err := io.ReadFull(v.random, nonce); err != nil {
		return "", fmt.Errorf("failed to generate nonce: %w", err)
	}
	ciphertext := v.aead.Seal(nil, nonce, []byte(plaintext), nil)
	return hex.EncodeToString(nonce) + separator + hex.EncodeToString(ciphertext), nil
}

// Decrypt opens an envelope produced by Encrypt.
func (v *Vault) Decrypt(envelope string) Result {
	if envelope == "" {
		return Result{}
	}
	plaintext, err := v.open(envelope)
	if err != nil {
		v.logger.Warn("decryption failed, value is corrupt", "error", err)
		return Result{Plaintext: envelope, Corrupt: true}
	}
	return Result{Plaintext: plaintext}
}

func (v *Vault) open(envelope string) (string, error) {
	nonceHex, ciphertextHex, ok := strings.Cut(envelope, separator)
	if !ok || nonceHex == "" || ciphertextHex == "" {
		return "", ErrMalformedEnvelope
	}
	nonce, err := hex.DecodeString(nonceHex)
	if err != nil || len(nonce) != v.aead.NonceSize() {
		return "", ErrMalformedEnvelope
	}
	ciphertext, err := hex.DecodeString(ciphertextHex)
	if err != nil {
		return "", ErrMalformedEnvelope
	}
	plaintext, err := v.aead.Open(nil, nonce, ciphertext, nil)
	if err != nil {
		return "", fmt.Errorf("authentication failed or corrupted data: %w", err)
	}
	return string(plaintext), nil
}
