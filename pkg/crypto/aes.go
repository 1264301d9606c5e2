// Package crypto holds the symmetric primitives of the server: AES-256-GCM
// sealing of integration secrets at rest, and keyed hashing plus random
// generation of opaque tokens.
package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
)

// ErrDecrypt hides why an open failed (wrong key, tampered data, other context).
var ErrDecrypt = errors.New("decryption failed")

// DeriveKey decodes a 64-character hex string into an AES-256 key.
func DeriveKey(hexKey string) ([]byte, error) {
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("invalid hex key: %w", err)
	}
	if len(key) != 32 {
		return nil, fmt.Errorf("key must be exactly 32 bytes (64 hex chars), got %d bytes", len(key))
	}
	return key, nil
}

// Box seals values with AES-256-GCM. The context string is authenticated as
// additional data, so a ciphertext stored for one integration cannot be
// replayed into another row.
type Box struct {
	aead cipher.AEAD
}

// NewBox builds a Box from a 32-byte key.
func NewBox(key []byte) (*Box, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return &Box{aead: gcm}, nil
}

// Seal returns base64(nonce || ciphertext).
func (b *Box) Seal(plaintext []byte, context string) (string, error) {
	nonce := make([]byte, b.aead.NonceSize())
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("nonce generation: %w", err)
	}
	sealed := b.aead.Seal(nonce, nonce, plaintext, []byte(context))
	return base64.StdEncoding.EncodeToString(sealed), nil
}

// Open reverses Seal. Any failure is reported as ErrDecrypt.
func (b *Box) Open(encoded, context string) ([]byte, error) {
	data, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, fmt.Errorf("%w: bad encoding", ErrDecrypt)
	}
	nonceSize := b.aead.NonceSize()
	if len(data) < nonceSize {
		return nil, fmt.Errorf("%w: ciphertext too short", ErrDecrypt)
	}
	plaintext, err := b.aead.Open(nil, data[:nonceSize], data[nonceSize:], []byte(context))
	if err != nil {
		return nil, ErrDecrypt
	}
	return plaintext, nil
}

// SealJSON marshals v and seals it.
func (b *Box) SealJSON(v any, context string) (string, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return "", fmt.Errorf("marshal secret: %w", err)
	}
	return b.Seal(raw, context)
}

// OpenJSON opens encoded and unmarshals it into v.
func (b *Box) OpenJSON(encoded, context string, v any) error {
	raw, err := b.Open(encoded, context)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return fmt.Errorf("%w: malformed secret", ErrDecrypt)
	}
	return nil
}
