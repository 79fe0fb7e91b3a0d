package envelope

import (
	"bytes"
	"crypto/rand"
	"encoding/base64"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testSecret(t *testing.T) []byte {
	t.Helper()
	secret := make([]byte, 32)
	_, err := rand.Read(secret)
	require.NoError(t, err)
	return secret
}

func newTestSealer(t *testing.T, alg Algorithm) *Sealer {
	t.Helper()
	s, err := New(KeyMaterial{Algorithm: alg, Secret: testSecret(t)})
	require.NoError(t, err)
	return s
}

func TestSealer_RoundTrip(t *testing.T) {
	inputs := []string{
		"",
		"a",
		"user-123|1700000000",
		strings.Repeat("long payload ", 512),
		"unicode ✓ ünïcödé",
	}

	for _, alg := range []Algorithm{AESGCM, ChaCha20Poly1305, XChaCha20Poly1305} {
		t.Run(string(alg), func(t *testing.T) {
			s := newTestSealer(t, alg)
			for _, in := range inputs {
				env, err := s.Seal([]byte(in))
				require.NoError(t, err)

				out, err := s.Open(env)
				require.NoError(t, err)
				assert.Equal(t, in, string(out))
			}
		})
	}
}

func TestSealer_FreshSaltAndIVPerCall(t *testing.T) {
	s := newTestSealer(t, AESGCM)

	a, err := s.Seal([]byte("same"))
	require.NoError(t, err)
	b, err := s.Seal([]byte("same"))
	require.NoError(t, err)
	assert.NotEqual(t, a, b)

	rawA, err := base64.StdEncoding.DecodeString(a)
	require.NoError(t, err)
	rawB, err := base64.StdEncoding.DecodeString(b)
	require.NoError(t, err)

	saltLen := int(rawA[0])
	assert.Equal(t, 16, saltLen)
	assert.False(t, bytes.Equal(rawA[1:1+saltLen], rawB[1:1+saltLen]), "salt reused")

	ivOffset := 1 + saltLen
	ivLen := int(rawA[ivOffset])
	assert.Equal(t, 12, ivLen)
	assert.False(t, bytes.Equal(rawA[ivOffset+1:ivOffset+1+ivLen], rawB[ivOffset+1:ivOffset+1+ivLen]), "iv reused")
}

func TestSealer_EnvelopeLayout(t *testing.T) {
	s, err := New(KeyMaterial{Algorithm: AESGCM, Secret: testSecret(t), IVLength: 16, SaltLength: 32})
	require.NoError(t, err)

	plaintext := []byte("hello")
	env, err := s.Seal(plaintext)
	require.NoError(t, err)

	raw, err := base64.StdEncoding.DecodeString(env)
	require.NoError(t, err)
	assert.Equal(t, 1+32+1+16+tagSize+len(plaintext), len(raw))
	assert.Equal(t, byte(32), raw[0])
	assert.Equal(t, byte(16), raw[33])
}

func TestSealer_TamperDetection(t *testing.T) {
	s := newTestSealer(t, AESGCM)

	env, err := s.Seal([]byte("reset:user-1:1700000900"))
	require.NoError(t, err)
	raw, err := base64.StdEncoding.DecodeString(env)
	require.NoError(t, err)

	for i := range raw {
		tampered := make([]byte, len(raw))
		copy(tampered, raw)
		tampered[i] ^= 0x01

		out, err := s.Open(base64.StdEncoding.EncodeToString(tampered))
		assert.ErrorIs(t, err, ErrDecryption, "byte %d", i)
		assert.Nil(t, out, "byte %d", i)
	}

	chars := []byte(env)
	if chars[10] == 'A' {
		chars[10] = 'B'
	} else {
		chars[10] = 'A'
	}
	_, err = s.Open(string(chars))
	assert.ErrorIs(t, err, ErrDecryption)
}

func TestSealer_MalformedEnvelopes(t *testing.T) {
	s := newTestSealer(t, AESGCM)

	cases := map[string]string{
		"empty":       "",
		"not base64":  "!!!not-base64!!!",
		"one byte":    base64.StdEncoding.EncodeToString([]byte{16}),
		"short salt":  base64.StdEncoding.EncodeToString(append([]byte{4}, make([]byte, 40)...)),
		"no tag":      base64.StdEncoding.EncodeToString(append(append([]byte{16}, make([]byte, 16)...), append([]byte{12}, make([]byte, 12)...)...)),
		"iv mismatch": base64.StdEncoding.EncodeToString(append(append([]byte{16}, make([]byte, 16)...), append([]byte{13}, make([]byte, 40)...)...)),
	}

	for name, env := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := s.Open(env)
			assert.ErrorIs(t, err, ErrDecryption)
		})
	}
}

func TestSealer_WrongKeyFails(t *testing.T) {
	a := newTestSealer(t, AESGCM)
	b := newTestSealer(t, AESGCM)

	env, err := a.Seal([]byte("secret"))
	require.NoError(t, err)

	_, err = b.Open(env)
	assert.ErrorIs(t, err, ErrDecryption)
}

func TestSealer_ConcurrentUse(t *testing.T) {
	s := newTestSealer(t, ChaCha20Poly1305)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			env, err := s.Seal([]byte("payload"))
			if !assert.NoError(t, err) {
				return
			}
			out, err := s.Open(env)
			assert.NoError(t, err)
			assert.Equal(t, "payload", string(out))
		}()
	}
	wg.Wait()
}

func TestNew_Validation(t *testing.T) {
	secret := make([]byte, 32)

	cases := []struct {
		name string
		km   KeyMaterial
	}{
		{"short secret", KeyMaterial{Secret: make([]byte, 16)}},
		{"short salt", KeyMaterial{Secret: secret, SaltLength: 8}},
		{"unknown algorithm", KeyMaterial{Secret: secret, Algorithm: "rot13"}},
		{"aes short iv", KeyMaterial{Secret: secret, Algorithm: AESGCM, IVLength: 8}},
		{"chacha wrong iv", KeyMaterial{Secret: secret, Algorithm: ChaCha20Poly1305, IVLength: 24}},
		{"xchacha wrong iv", KeyMaterial{Secret: secret, Algorithm: XChaCha20Poly1305, IVLength: 12}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := New(tc.km)
			assert.ErrorIs(t, err, ErrInvalidKeyMaterial)
		})
	}
}

func TestKeyMaterial_StringRedactsSecret(t *testing.T) {
	km := KeyMaterial{Algorithm: AESGCM, Secret: []byte("super-secret-value-that-must-not-leak")}
	assert.NotContains(t, km.String(), "super-secret")
	assert.Contains(t, km.String(), "REDACTED")
}

func TestNew_CopiesSecret(t *testing.T) {
	secret := testSecret(t)
	s, err := New(KeyMaterial{Secret: secret})
	require.NoError(t, err)

	env, err := s.Seal([]byte("x"))
	require.NoError(t, err)

	for i := range secret {
		secret[i] = 0
	}
	out, err := s.Open(env)
	require.NoError(t, err)
	assert.Equal(t, "x", string(out))
}
