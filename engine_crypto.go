package authguard

import (
	"errors"
	"time"

	"github.com/MrEthical07/authguard/internal/envelope"
	"go.uber.org/zap"
)

// Encrypt seals plaintext into a base64 envelope with a fresh salt and IV.
func (e *Engine) Encrypt(plaintext string) (string, error) {
	if e == nil || e.sealer == nil {
		return "", ErrEngineNotReady
	}
	out, err := e.sealer.Seal([]byte(plaintext))
	if err != nil {
		e.logger().Error("envelope seal failed", zap.Error(err))
		return "", err
	}
	return out, nil
}

// Decrypt opens an envelope produced by [Engine.Encrypt]. Every failure,
// whether malformed input, a wrong key or a tampered byte, is [ErrDecryption]
// with no further detail and no partial plaintext.
func (e *Engine) Decrypt(encoded string) (string, error) {
	if e == nil || e.sealer == nil {
		return "", ErrEngineNotReady
	}
	plain, err := e.sealer.Open(encoded)
	if err != nil {
		if errors.Is(err, envelope.ErrDecryption) {
			e.metricInc(MetricDecryptionFailure)
		}
		return "", ErrDecryption
	}
	return string(plain), nil
}

// Hash returns base64(salt || argon2id digest) of data with a fresh salt.
func (e *Engine) Hash(data string) (string, error) {
	if e == nil || e.hasher == nil {
		return "", ErrEngineNotReady
	}
	// wall clock: the injected clock may be frozen
	start := time.Now()
	out, err := e.hasher.Hash(data)
	if e.metrics != nil {
		e.metrics.Observe(MetricHashLatency, time.Since(start))
	}
	return out, err
}

// CompareHash reports whether data matches an envelope from [Engine.Hash].
// Malformed envelopes compare false.
func (e *Engine) CompareHash(data, encoded string) bool {
	if e == nil || e.hasher == nil {
		return false
	}
	return e.hasher.Compare(data, encoded)
}
