package envelope

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"fmt"
	"io"

	"golang.org/x/crypto/chacha20poly1305"
	"golang.org/x/crypto/hkdf"
)

const (
	derivedKeySize = 32
	tagSize        = 16
	hkdfInfo       = "authguard/envelope/v1"
)

// Sealer encrypts and decrypts envelopes under one KeyMaterial.
// It holds no mutable state and is safe for concurrent use.
type Sealer struct {
	km KeyMaterial
}

// New validates km and returns a Sealer that owns a private copy of the secret.
func New(km KeyMaterial) (*Sealer, error) {
	km = km.withDefaults()
	if err := km.validate(); err != nil {
		return nil, err
	}

	secret := make([]byte, len(km.Secret))
	copy(secret, km.Secret)
	km.Secret = secret

	return &Sealer{km: km}, nil
}

// Algorithm reports the configured AEAD construction.
func (s *Sealer) Algorithm() Algorithm {
	return s.km.Algorithm
}

// Seal encrypts plaintext into a new envelope.
func (s *Sealer) Seal(plaintext []byte) (string, error) {
	salt := make([]byte, s.km.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}
	iv := make([]byte, s.km.IVLength)
	if _, err := io.ReadFull(rand.Reader, iv); err != nil {
		return "", fmt.Errorf("generate iv: %w", err)
	}

	aead, err := s.newAEAD(salt)
	if err != nil {
		return "", err
	}

	sealed := aead.Seal(nil, iv, plaintext, []byte(s.km.Algorithm))
	ciphertext, tag := sealed[:len(sealed)-tagSize], sealed[len(sealed)-tagSize:]

	out := make([]byte, 0, 2+len(salt)+len(iv)+len(sealed))
	out = append(out, byte(len(salt)))
	out = append(out, salt...)
	out = append(out, byte(len(iv)))
	out = append(out, iv...)
	out = append(out, tag...)
	out = append(out, ciphertext...)

	return base64.StdEncoding.EncodeToString(out), nil
}

// Open verifies and decrypts an envelope produced by Seal.
func (s *Sealer) Open(encoded string) ([]byte, error) {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return nil, ErrDecryption
	}

	salt, iv, tag, ciphertext, ok := s.split(raw)
	if !ok {
		return nil, ErrDecryption
	}

	aead, err := s.newAEAD(salt)
	if err != nil {
		return nil, ErrDecryption
	}

	sealed := make([]byte, 0, len(ciphertext)+len(tag))
	sealed = append(sealed, ciphertext...)
	sealed = append(sealed, tag...)

	plaintext, err := aead.Open(nil, iv, sealed, []byte(s.km.Algorithm))
	if err != nil {
		return nil, ErrDecryption
	}
	return plaintext, nil
}

func (s *Sealer) split(raw []byte) (salt, iv, tag, ciphertext []byte, ok bool) {
	if len(raw) < 1 {
		return nil, nil, nil, nil, false
	}
	saltLen := int(raw[0])
	raw = raw[1:]
	if saltLen < minSaltLength || len(raw) < saltLen+1 {
		return nil, nil, nil, nil, false
	}
	salt, raw = raw[:saltLen], raw[saltLen:]

	ivLen := int(raw[0])
	raw = raw[1:]
	if ivLen != s.km.IVLength || len(raw) < ivLen+tagSize {
		return nil, nil, nil, nil, false
	}
	iv, raw = raw[:ivLen], raw[ivLen:]
	tag, ciphertext = raw[:tagSize], raw[tagSize:]

	return salt, iv, tag, ciphertext, true
}

func (s *Sealer) newAEAD(salt []byte) (cipher.AEAD, error) {
	key := make([]byte, derivedKeySize)
	defer zero(key)

	if _, err := io.ReadFull(hkdf.New(sha256.New, s.km.Secret, salt, []byte(hkdfInfo)), key); err != nil {
		return nil, fmt.Errorf("derive key: %w", err)
	}

	switch s.km.Algorithm {
	case ChaCha20Poly1305:
		return chacha20poly1305.New(key)
	case XChaCha20Poly1305:
		return chacha20poly1305.NewX(key)
	default:
		block, err := aes.NewCipher(key)
		if err != nil {
			return nil, fmt.Errorf("create aes cipher: %w", err)
		}
		return cipher.NewGCMWithNonceSize(block, s.km.IVLength)
	}
}

func zero(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
