package hashing

import (
	"encoding/base64"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fastConfig() Config {
	return Config{
		Memory:      8 * 1024,
		Time:        1,
		Parallelism: 1,
		SaltLength:  16,
		KeyLength:   32,
	}
}

func newTestHasher(t *testing.T) *Argon2 {
	t.Helper()
	h, err := NewArgon2(fastConfig())
	require.NoError(t, err)
	return h
}

func TestArgon2_HashAndCompare(t *testing.T) {
	h := newTestHasher(t)

	encoded, err := h.Hash("correct horse battery staple")
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)
	assert.Len(t, raw, 16+32)

	assert.True(t, h.Compare("correct horse battery staple", encoded))
	assert.False(t, h.Compare("correct horse battery stapler", encoded))
	assert.False(t, h.Compare("", encoded))
}

func TestArgon2_DistinctSaltsBothVerify(t *testing.T) {
	h := newTestHasher(t)

	a, err := h.Hash("123456")
	require.NoError(t, err)
	b, err := h.Hash("123456")
	require.NoError(t, err)

	assert.NotEqual(t, a, b)
	assert.True(t, h.Compare("123456", a))
	assert.True(t, h.Compare("123456", b))
}

func TestArgon2_EmptyInput(t *testing.T) {
	h := newTestHasher(t)

	encoded, err := h.Hash("")
	require.NoError(t, err)
	assert.True(t, h.Compare("", encoded))
	assert.False(t, h.Compare("x", encoded))
}

func TestArgon2_MalformedEnvelopes(t *testing.T) {
	h := newTestHasher(t)

	cases := map[string]string{
		"empty":        "",
		"not base64":   "%%%",
		"too short":    base64.StdEncoding.EncodeToString(make([]byte, 20)),
		"too long":     base64.StdEncoding.EncodeToString(make([]byte, 49)),
		"zero payload": base64.StdEncoding.EncodeToString(make([]byte, 48)),
	}
	for name, encoded := range cases {
		t.Run(name, func(t *testing.T) {
			assert.False(t, h.Compare("anything", encoded))
		})
	}
}

func TestArgon2_ParametersAreNotEmbedded(t *testing.T) {
	h := newTestHasher(t)
	encoded, err := h.Hash("secret")
	require.NoError(t, err)

	cfg := fastConfig()
	cfg.Time = 2
	other, err := NewArgon2(cfg)
	require.NoError(t, err)

	assert.False(t, other.Compare("secret", encoded))
}

func TestNewArgon2_Validation(t *testing.T) {
	cases := map[string]func(*Config){
		"low memory":     func(c *Config) { c.Memory = 1024 },
		"zero time":      func(c *Config) { c.Time = 0 },
		"zero threads":   func(c *Config) { c.Parallelism = 0 },
		"short salt":     func(c *Config) { c.SaltLength = 8 },
		"short key":      func(c *Config) { c.KeyLength = 8 },
		"oversized salt": func(c *Config) { c.SaltLength = 4096 },
		"oversized key":  func(c *Config) { c.KeyLength = 4096 },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := fastConfig()
			mutate(&cfg)
			_, err := NewArgon2(cfg)
			assert.Error(t, err)
		})
	}

	_, err := NewArgon2(DefaultConfig())
	assert.NoError(t, err)
}
