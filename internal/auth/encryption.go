package auth

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"io"
	"strings"
)

const (
	ivSize  = 16
	tagSize = 16
)

// Cipher encrypts small secrets (TOTP keys, recovery codes) at rest with
// AES-128-GCM. The framing is IV || ciphertext || tag.
type Cipher struct {
	aead cipher.AEAD
}

func NewCipher(key []byte) (*Cipher, error) {
	if len(key) != 16 {
		return nil, ErrInvalidKey
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	aead, err := cipher.NewGCMWithNonceSize(block, ivSize)
	if err != nil {
		return nil, err
	}
	return &Cipher{aead: aead}, nil
}

// NewCipherFromBase64 parses ENCRYPTION_KEY style values.
func NewCipherFromBase64(raw string) (*Cipher, error) {
	trimmed := strings.TrimSpace(raw)
	key, err := base64.StdEncoding.DecodeString(trimmed)
	if err != nil {
		key, err = base64.RawStdEncoding.DecodeString(trimmed)
	}
	if err != nil {
		return nil, fmt.Errorf("decode encryption key: %w", err)
	}
	return NewCipher(key)
}

func (c *Cipher) Encrypt(data []byte) ([]byte, error) {
	iv := make([]byte, ivSize, ivSize+len(data)+tagSize)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return nil, err
	}
	return c.aead.Seal(iv, iv, data, nil), nil
}

func (c *Cipher) EncryptString(s string) ([]byte, error) {
	return c.Encrypt([]byte(s))
}

func (c *Cipher) Decrypt(encrypted []byte) ([]byte, error) {
	if len(encrypted) < ivSize+tagSize+1 {
		return nil, ErrInvalidData
	}
	plain, err := c.aead.Open(nil, encrypted[:ivSize], encrypted[ivSize:], nil)
	if err != nil {
		return nil, fmt.Errorf("decrypt: %w", err)
	}
	return plain, nil
}

func (c *Cipher) DecryptToString(encrypted []byte) (string, error) {
	plain, err := c.Decrypt(encrypted)
	if err != nil {
		return "", err
	}
	return string(plain), nil
}
