package hashing

import (
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"io"

	"golang.org/x/crypto/argon2"
)

const (
	minMemoryKB    uint32 = 8 * 1024
	minTimeCost    uint32 = 1
	minParallelism uint8  = 1
	minSaltLength  uint32 = 16
	minKeyLength   uint32 = 16
	maxFieldLength uint32 = 1024
)

// Config holds the Argon2id cost parameters. Changing SaltLength or KeyLength
// invalidates previously stored hashes.
type Config struct {
	Memory      uint32
	Time        uint32
	Parallelism uint8
	SaltLength  uint32
	KeyLength   uint32
}

// DefaultConfig follows the OWASP baseline for Argon2id.
func DefaultConfig() Config {
	return Config{
		Memory:      64 * 1024,
		Time:        3,
		Parallelism: 2,
		SaltLength:  16,
		KeyLength:   32,
	}
}

// Argon2 hashes and verifies data. It is immutable and safe for concurrent use.
type Argon2 struct {
	config Config
}

// NewArgon2 validates cfg and returns a hasher.
func NewArgon2(cfg Config) (*Argon2, error) {
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return &Argon2{config: cfg}, nil
}

// Hash returns base64(salt | digest) for data with a fresh random salt.
func (a *Argon2) Hash(data string) (string, error) {
	salt := make([]byte, a.config.SaltLength)
	if _, err := io.ReadFull(rand.Reader, salt); err != nil {
		return "", fmt.Errorf("generate salt: %w", err)
	}

	digest := a.digest(data, salt)

	out := make([]byte, 0, len(salt)+len(digest))
	out = append(out, salt...)
	out = append(out, digest...)

	return base64.StdEncoding.EncodeToString(out), nil
}

// Compare recomputes the digest of data with the salt embedded in encoded and
// compares it in constant time. Malformed envelopes never match.
func (a *Argon2) Compare(data, encoded string) bool {
	raw, err := base64.StdEncoding.DecodeString(encoded)
	if err != nil {
		return false
	}
	if len(raw) != int(a.config.SaltLength+a.config.KeyLength) {
		return false
	}

	salt, stored := raw[:a.config.SaltLength], raw[a.config.SaltLength:]
	computed := a.digest(data, salt)

	return subtle.ConstantTimeCompare(computed, stored) == 1
}

func (a *Argon2) digest(data string, salt []byte) []byte {
	return argon2.IDKey(
		[]byte(data),
		salt,
		a.config.Time,
		a.config.Memory,
		a.config.Parallelism,
		a.config.KeyLength,
	)
}

func validateConfig(cfg Config) error {
	if cfg.Memory < minMemoryKB {
		return errors.New("hashing memory must be >= 8192 KB")
	}
	if cfg.Time < minTimeCost {
		return errors.New("hashing time must be >= 1")
	}
	if cfg.Parallelism < minParallelism {
		return errors.New("hashing parallelism must be >= 1")
	}
	if cfg.SaltLength < minSaltLength || cfg.SaltLength > maxFieldLength {
		return errors.New("hashing salt length must be in [16,1024]")
	}
	if cfg.KeyLength < minKeyLength || cfg.KeyLength > maxFieldLength {
		return errors.New("hashing key length must be in [16,1024]")
	}

	return nil
}
