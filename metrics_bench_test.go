package authguard

import (
	"context"
	"strconv"
	"testing"
	"time"
)

func BenchmarkMetricsInc(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		m.Inc(MetricRateLimitHit)
	}
}

func BenchmarkMetricsIncDisabled(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: false})
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		m.Inc(MetricRateLimitHit)
	}
}

var hotMetricIDs = [...]MetricID{
	MetricIPBlocked,
	MetricRateLimitHit,
	MetricNewDevice,
	MetricTwoFactorFailure,
}

func BenchmarkMetricsIncMixedParallel(b *testing.B) {
	m := NewMetrics(MetricsConfig{Enabled: true})
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		idx := 0
		for pb.Next() {
			m.Inc(hotMetricIDs[idx])
			idx++
			if idx == len(hotMetricIDs) {
				idx = 0
			}
		}
	})
}

func BenchmarkMetricsObserveLatencyParallel(b *testing.B) {
	m := NewMetrics(MetricsConfig{
		Enabled:                 true,
		EnableLatencyHistograms: true,
	})
	d := 80 * time.Millisecond
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		for pb.Next() {
			m.Observe(MetricHashLatency, d)
		}
	})
}

func benchmarkEngine(b *testing.B) *Engine {
	b.Helper()
	cfg := testConfig()
	cfg.PasswordReset.Enabled = false
	cfg.TwoFactor.Enabled = false
	cfg.Verification.Enabled = false

	engine, err := New().WithConfig(cfg).WithInMemoryStore().Build()
	if err != nil {
		b.Fatal(err)
	}
	b.Cleanup(engine.Close)
	return engine
}

func BenchmarkCheckLimitInMemoryParallel(b *testing.B) {
	engine := benchmarkEngine(b)
	ctx := context.Background()
	b.ReportAllocs()
	b.ResetTimer()

	b.RunParallel(func(pb *testing.PB) {
		i := 0
		for pb.Next() {
			_ = engine.CheckLimit(ctx, "bench:"+strconv.Itoa(i%64), 1<<30, time.Hour)
			i++
		}
	})
}

func BenchmarkEncryptDecrypt(b *testing.B) {
	engine := benchmarkEngine(b)
	b.ReportAllocs()
	b.ResetTimer()

	for i := 0; i < b.N; i++ {
		sealed, err := engine.Encrypt("payload")
		if err != nil {
			b.Fatal(err)
		}
		if _, err := engine.Decrypt(sealed); err != nil {
			b.Fatal(err)
		}
	}
}
