package envelope

import (
	"errors"
	"fmt"
)

// Algorithm names an AEAD construction.
type Algorithm string

const (
	AESGCM            Algorithm = "aes-256-gcm"
	ChaCha20Poly1305  Algorithm = "chacha20-poly1305"
	XChaCha20Poly1305 Algorithm = "xchacha20-poly1305"
)

const (
	minSecretLength   = 32
	minSaltLength     = 16
	maxFieldLength    = 255
	defaultSaltLength = 16
	minAESIVLength    = 12
	maxAESIVLength    = 32
)

var (
	// ErrDecryption is returned for every envelope that fails to open.
	ErrDecryption = errors.New("envelope: decryption failed")
	// ErrInvalidKeyMaterial is returned by New for unusable key material.
	ErrInvalidKeyMaterial = errors.New("envelope: invalid key material")
)

// KeyMaterial is loaded once at startup and never mutated afterwards.
type KeyMaterial struct {
	Algorithm  Algorithm
	Secret     []byte
	IVLength   int
	SaltLength int
}

// String redacts the secret so KeyMaterial is safe to pass to loggers.
func (k KeyMaterial) String() string {
	return fmt.Sprintf("KeyMaterial{Algorithm:%s IVLength:%d SaltLength:%d Secret:[REDACTED]}", k.Algorithm, k.IVLength, k.SaltLength)
}

// GoString keeps %#v from printing the secret.
func (k KeyMaterial) GoString() string {
	return k.String()
}

func (k KeyMaterial) withDefaults() KeyMaterial {
	if k.Algorithm == "" {
		k.Algorithm = AESGCM
	}
	if k.SaltLength == 0 {
		k.SaltLength = defaultSaltLength
	}
	if k.IVLength == 0 {
		switch k.Algorithm {
		case XChaCha20Poly1305:
			k.IVLength = 24
		default:
			k.IVLength = 12
		}
	}
	return k
}

func (k KeyMaterial) validate() error {
	if len(k.Secret) < minSecretLength {
		return fmt.Errorf("%w: secret must be at least %d bytes", ErrInvalidKeyMaterial, minSecretLength)
	}
	if k.SaltLength < minSaltLength || k.SaltLength > maxFieldLength {
		return fmt.Errorf("%w: salt length must be in [%d,%d]", ErrInvalidKeyMaterial, minSaltLength, maxFieldLength)
	}

	switch k.Algorithm {
	case AESGCM:
		if k.IVLength < minAESIVLength || k.IVLength > maxAESIVLength {
			return fmt.Errorf("%w: aes-256-gcm iv length must be in [%d,%d]", ErrInvalidKeyMaterial, minAESIVLength, maxAESIVLength)
		}
	case ChaCha20Poly1305:
		if k.IVLength != 12 {
			return fmt.Errorf("%w: chacha20-poly1305 iv length must be 12", ErrInvalidKeyMaterial)
		}
	case XChaCha20Poly1305:
		if k.IVLength != 24 {
			return fmt.Errorf("%w: xchacha20-poly1305 iv length must be 24", ErrInvalidKeyMaterial)
		}
	default:
		return fmt.Errorf("%w: unsupported algorithm %q", ErrInvalidKeyMaterial, k.Algorithm)
	}

	return nil
}
