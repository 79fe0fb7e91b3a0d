package otel

import (
	"context"
	"sync"
	"testing"

	"github.com/MrEthical07/authguard"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"
)

type fakeSource struct {
	mu       sync.RWMutex
	snapshot authguard.MetricsSnapshot
}

func (f *fakeSource) MetricsSnapshot() authguard.MetricsSnapshot {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := authguard.MetricsSnapshot{
		Counters:   make(map[authguard.MetricID]uint64, len(f.snapshot.Counters)),
		Histograms: make(map[authguard.MetricID][]uint64, len(f.snapshot.Histograms)),
	}
	for k, v := range f.snapshot.Counters {
		out.Counters[k] = v
	}
	for k, buckets := range f.snapshot.Histograms {
		out.Histograms[k] = append([]uint64(nil), buckets...)
	}
	return out
}

func newMeterProvider() (*sdkmetric.ManualReader, *sdkmetric.MeterProvider) {
	reader := sdkmetric.NewManualReader()
	return reader, sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
}

func findInt64(t *testing.T, rm metricdata.ResourceMetrics, name string) int64 {
	t.Helper()
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != name {
				continue
			}
			switch data := m.Data.(type) {
			case metricdata.Sum[int64]:
				require.Len(t, data.DataPoints, 1)
				return data.DataPoints[0].Value
			case metricdata.Gauge[int64]:
				require.Len(t, data.DataPoints, 1)
				return data.DataPoints[0].Value
			}
		}
	}
	t.Fatalf("metric %s not collected", name)
	return 0
}

func TestExporterRegistersAndCollects(t *testing.T) {
	reader, provider := newMeterProvider()

	src := &fakeSource{
		snapshot: authguard.MetricsSnapshot{
			Counters: map[authguard.MetricID]uint64{
				authguard.MetricTwoFactorSuccess: 3,
				authguard.MetricAuditDropped:     1,
			},
			Histograms: map[authguard.MetricID][]uint64{
				authguard.MetricHashLatency: {1, 1, 1, 1, 1, 1, 1, 1},
			},
		},
	}

	exp, err := NewExporterFromSource(provider.Meter("authguard-test"), src)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, exp.Close())
	}()

	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	require.EqualValues(t, 3, findInt64(t, rm, "authguard_two_factor_success_total"))
	require.EqualValues(t, 1, findInt64(t, rm, "authguard_audit_dropped_total"))
	require.EqualValues(t, 4, findInt64(t, rm, "authguard_hash_latency_seconds_bucket_le_0_1"))
	require.EqualValues(t, 8, findInt64(t, rm, "authguard_hash_latency_seconds_count"))
}

func TestExporterRejectsNilArguments(t *testing.T) {
	_, provider := newMeterProvider()

	_, err := NewExporterFromSource(provider.Meter("authguard-test"), nil)
	require.ErrorIs(t, err, ErrNilSource)

	_, err = NewExporterFromSource(nil, &fakeSource{})
	require.ErrorIs(t, err, ErrNilMeter)

	_, err = NewExporter(provider.Meter("authguard-test"), nil)
	require.ErrorIs(t, err, ErrNilSource)
}

func TestExporterConcurrentCollectNoPanic(t *testing.T) {
	reader, provider := newMeterProvider()

	src := &fakeSource{
		snapshot: authguard.MetricsSnapshot{
			Counters: map[authguard.MetricID]uint64{
				authguard.MetricRateLimitHit: 1,
			},
			Histograms: map[authguard.MetricID][]uint64{},
		},
	}

	exp, err := NewExporterFromSource(provider.Meter("authguard-test"), src)
	require.NoError(t, err)
	defer func() {
		require.NoError(t, exp.Close())
	}()

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(v uint64) {
			defer wg.Done()
			src.mu.Lock()
			src.snapshot.Counters[authguard.MetricRateLimitHit] = v
			src.mu.Unlock()

			var rm metricdata.ResourceMetrics
			_ = reader.Collect(context.Background(), &rm)
		}(uint64(i + 1))
	}
	wg.Wait()
}
