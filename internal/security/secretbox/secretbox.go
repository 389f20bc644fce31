// Package secretbox sella valores con AES-256-GCM.
//
// La clave se deriva de AUTH_SECRET con HKDF-SHA256, así el mismo secreto del
// scaffold sirve para varios usos (sesión, CSRF) con claves independientes según info.
package secretbox

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"errors"
	"fmt"
	"io"
	"strings"

	"golang.org/x/crypto/hkdf"
)

const (
	nonceSizeGCM      = 12 // AES-GCM nonce recomendado (96 bits)
	requiredKeyLength = 32 // AES-256
	minSecretLength   = 32
	sep               = "." // base64url(nonce).base64url(ciphertext)
)

var (
	ErrShortSecret = fmt.Errorf("secretbox: secret must be at least %d bytes", minSecretLength)
	ErrMalformed   = errors.New("secretbox: malformed sealed value")
	ErrOpen        = errors.New("secretbox: authentication failed")
)

// Box cifra y descifra con una clave fija. Es seguro para uso concurrente.
type Box struct {
	aead cipher.AEAD
}

// New deriva una clave de 32 bytes desde secret con HKDF(info) y arma el AEAD.
func New(secret, info string) (*Box, error) {
	if len(secret) < minSecretLength {
		return nil, ErrShortSecret
	}
	key := make([]byte, requiredKeyLength)
	r := hkdf.New(sha256.New, []byte(secret), nil, []byte(info))
	if _, err := io.ReadFull(r, key); err != nil {
		return nil, fmt.Errorf("secretbox: hkdf: %w", err)
	}
	return newWithKey(key)
}

func newWithKey(key []byte) (*Box, error) {
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, fmt.Errorf("aes.NewCipher: %w", err)
	}
	aesgcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, fmt.Errorf("cipher.NewGCM: %w", err)
	}
	return &Box{aead: aesgcm}, nil
}

// Seal cifra plain y lo asocia a aad (puede ser nil).
// Devuelve base64url(nonce).base64url(ciphertext), apto para cookies.
func (b *Box) Seal(plain, aad []byte) (string, error) {
	nonce := make([]byte, nonceSizeGCM)
	if _, err := io.ReadFull(rand.Reader, nonce); err != nil {
		return "", fmt.Errorf("nonce random: %w", err)
	}
	ct := b.aead.Seal(nil, nonce, plain, aad)
	return base64.RawURLEncoding.EncodeToString(nonce) + sep + base64.RawURLEncoding.EncodeToString(ct), nil
}

// Open revierte Seal. Cualquier manipulación o aad distinto devuelve ErrOpen.
func (b *Box) Open(sealed string, aad []byte) ([]byte, error) {
	nb64, cb64, ok := strings.Cut(sealed, sep)
	if !ok {
		return nil, ErrMalformed
	}
	nonce, err := base64.RawURLEncoding.DecodeString(nb64)
	if err != nil || len(nonce) != nonceSizeGCM {
		return nil, ErrMalformed
	}
	ct, err := base64.RawURLEncoding.DecodeString(cb64)
	if err != nil {
		return nil, ErrMalformed
	}
	pt, err := b.aead.Open(nil, nonce, ct, aad)
	if err != nil {
		return nil, ErrOpen
	}
	return pt, nil
}
