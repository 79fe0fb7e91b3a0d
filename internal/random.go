package internal

import (
	"crypto/rand"
	"errors"
	"math/big"
	"strings"
)

// ErrInvalidDigits is returned for a code length outside 6..10.
var ErrInvalidDigits = errors.New("invalid code digits")

// NewNumericCode returns a uniformly random decimal code of the given length.
// Leading zeros are kept.
func NewNumericCode(digits int) (string, error) {
	if digits < 6 || digits > 10 {
		return "", ErrInvalidDigits
	}

	var b strings.Builder
	b.Grow(digits)

	max := big.NewInt(10)
	for i := 0; i < digits; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", err
		}
		b.WriteByte(byte('0' + n.Int64()))
	}
	return b.String(), nil
}

// IsNumeric reports whether v is non-empty and all ASCII digits.
func IsNumeric(v string) bool {
	if v == "" {
		return false
	}
	for i := 0; i < len(v); i++ {
		if v[i] < '0' || v[i] > '9' {
			return false
		}
	}
	return true
}
