package prometheus

import (
	"net/http"

	"github.com/MrEthical07/authguard"
	"github.com/MrEthical07/authguard/metrics/export/internaldefs"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type metricsSource interface {
	MetricsSnapshot() authguard.MetricsSnapshot
}

type histogramDesc struct {
	id   authguard.MetricID
	desc *prometheus.Desc
}

// Exporter is a [prometheus.Collector] over the engine's in-process metrics.
// Every scrape reads one snapshot.
type Exporter struct {
	source     metricsSource
	counters   map[authguard.MetricID]*prometheus.Desc
	order      []authguard.MetricID
	histograms []histogramDesc
}

var _ prometheus.Collector = (*Exporter)(nil)

// NewExporter creates a collector that reads from engine.
func NewExporter(engine *authguard.Engine) *Exporter {
	return NewExporterFromSource(engine)
}

// NewExporterFromSource creates a collector over any snapshot source.
func NewExporterFromSource(source metricsSource) *Exporter {
	e := &Exporter{
		source:   source,
		counters: make(map[authguard.MetricID]*prometheus.Desc, len(internaldefs.CounterDefs)),
		order:    make([]authguard.MetricID, 0, len(internaldefs.CounterDefs)),
	}
	for _, def := range internaldefs.CounterDefs {
		e.counters[def.ID] = prometheus.NewDesc(def.Name, def.Help, nil, nil)
		e.order = append(e.order, def.ID)
	}
	for _, def := range internaldefs.HistogramDefs {
		e.histograms = append(e.histograms, histogramDesc{
			id:   def.ID,
			desc: prometheus.NewDesc(def.Name, def.Help, nil, nil),
		})
	}
	return e
}

func (e *Exporter) Describe(ch chan<- *prometheus.Desc) {
	for _, id := range e.order {
		ch <- e.counters[id]
	}
	for _, h := range e.histograms {
		ch <- h.desc
	}
}

// Collect emits nothing for a source with metrics disabled.
func (e *Exporter) Collect(ch chan<- prometheus.Metric) {
	if e == nil || e.source == nil {
		return
	}

	snapshot := e.source.MetricsSnapshot()
	if len(snapshot.Counters) == 0 && len(snapshot.Histograms) == 0 {
		return
	}

	for _, id := range e.order {
		ch <- prometheus.MustNewConstMetric(e.counters[id], prometheus.CounterValue, float64(snapshot.Counters[id]))
	}

	for _, h := range e.histograms {
		raw, ok := snapshot.Histograms[h.id]
		if !ok {
			continue
		}
		cumulative := internaldefs.CumulativeBuckets(internaldefs.NormalizeBuckets(raw))
		buckets := make(map[float64]uint64, len(internaldefs.HistogramBounds))
		for i, le := range internaldefs.HistogramBounds {
			buckets[le] = cumulative[i]
		}
		// The engine does not track the sample sum.
		ch <- prometheus.MustNewConstHistogram(h.desc, cumulative[len(cumulative)-1], 0, buckets)
	}
}

// Handler serves the exporter from a private registry, so nothing lands in
// the global default registry.
func (e *Exporter) Handler() http.Handler {
	registry := prometheus.NewRegistry()
	registry.MustRegister(e)
	return promhttp.HandlerFor(registry, promhttp.HandlerOpts{})
}
