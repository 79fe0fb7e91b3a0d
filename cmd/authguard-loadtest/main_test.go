package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func TestPercentile(t *testing.T) {
	samples := []time.Duration{1, 2, 3, 4, 5, 6, 7, 8, 9, 10}
	require.Equal(t, time.Duration(1), percentile(samples, 0))
	require.Equal(t, time.Duration(5), percentile(samples, 50))
	require.Equal(t, time.Duration(10), percentile(samples, 100))
	require.Zero(t, percentile(nil, 50))
}

func TestComputeStats(t *testing.T) {
	s := computeStats(time.Second, []time.Duration{3, 1, 2}, 1)
	require.Equal(t, 3, s.ops)
	require.EqualValues(t, 1, s.failures)
	require.Equal(t, time.Duration(2), s.p50)
	require.InDelta(t, 3.0, s.opsPerS, 0.001)
}

func TestExactnessPhaseAgainstMiniredis(t *testing.T) {
	t.Setenv("AUTHGUARD_ENCRYPTION_SECRET", "0123456789abcdef0123456789abcdef")
	t.Setenv("AUTHGUARD_HASH_MEMORY", "8192")
	t.Setenv("AUTHGUARD_HASH_TIME", "1")

	err := run(zaptest.NewLogger(t), 20, 15, 5, 32, 200, 0, false)
	require.NoError(t, err)
}
