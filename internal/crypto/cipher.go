// Package crypto seals direct message text at rest.
package crypto

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	"golang.org/x/crypto/chacha20poly1305"
)

// sealedPrefix marks payloads produced by XChaCha. Rows without it predate
// encryption and are returned unchanged.
const sealedPrefix = "xc1:"

// ErrMalformed is returned for sealed payloads that cannot be opened.
var ErrMalformed = errors.New("crypto: malformed message payload")

// Cipher turns message text into an opaque stored payload and back.
type Cipher interface {
	Seal(plaintext string) (string, error)
	Open(payload string) (string, error)
}

// Plaintext stores text as-is. Used when no key is configured.
type Plaintext struct{}

func (Plaintext) Seal(plaintext string) (string, error) { return plaintext, nil }

func (Plaintext) Open(payload string) (string, error) {
	if strings.HasPrefix(payload, sealedPrefix) {
		return "", fmt.Errorf("%w: sealed payload without a key", ErrMalformed)
	}
	return payload, nil
}

// XChaCha seals with XChaCha20-Poly1305 and a random nonce per message.
type XChaCha struct {
	key []byte
}

// NewXChaCha builds a cipher from a 32-byte key.
func NewXChaCha(key []byte) (*XChaCha, error) {
	if len(key) != chacha20poly1305.KeySize {
		return nil, fmt.Errorf("crypto: key must be %d bytes, got %d", chacha20poly1305.KeySize, len(key))
	}
	return &XChaCha{key: append([]byte(nil), key...)}, nil
}

// FromHexKey returns an XChaCha cipher for a hex key, or Plaintext when the
// key is empty.
func FromHexKey(hexKey string) (Cipher, error) {
	if hexKey == "" {
		return Plaintext{}, nil
	}
	key, err := hex.DecodeString(hexKey)
	if err != nil {
		return nil, fmt.Errorf("crypto: decode key: %w", err)
	}
	return NewXChaCha(key)
}

func (c *XChaCha) Seal(plaintext string) (string, error) {
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", err
	}
	nonce := make([]byte, aead.NonceSize(), aead.NonceSize()+len(plaintext)+aead.Overhead())
	if _, err := rand.Read(nonce); err != nil {
		return "", fmt.Errorf("crypto: nonce: %w", err)
	}
	sealed := aead.Seal(nonce, nonce, []byte(plaintext), nil)
	return sealedPrefix + base64.RawStdEncoding.EncodeToString(sealed), nil
}

func (c *XChaCha) Open(payload string) (string, error) {
	encoded, ok := strings.CutPrefix(payload, sealedPrefix)
	if !ok {
		return payload, nil
	}
	raw, err := base64.RawStdEncoding.DecodeString(encoded)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	aead, err := chacha20poly1305.NewX(c.key)
	if err != nil {
		return "", err
	}
	if len(raw) < aead.NonceSize()+aead.Overhead() {
		return "", ErrMalformed
	}
	nonce, box := raw[:aead.NonceSize()], raw[aead.NonceSize():]
	plain, err := aead.Open(nil, nonce, box, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrMalformed, err)
	}
	return string(plain), nil
}
