package status

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/rmmh/mcr2anvil/go/convert"
)

// Metrics is a convert.Recorder that counts chunks and regions.
type Metrics struct {
	Chunks        *prometheus.CounterVec
	Regions       *prometheus.CounterVec
	RegionSeconds prometheus.Histogram
}

// NewMetrics creates the conversion metrics and registers them with reg.
func NewMetrics(reg prometheus.Registerer) (*Metrics, error) {
	m := &Metrics{
		Chunks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mcr2anvil_chunks_total",
			Help: "Chunks seen by the converter, partitioned by outcome.",
		}, []string{"outcome"}),
		Regions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "mcr2anvil_regions_total",
			Help: "Region files processed, partitioned by dimension and outcome.",
		}, []string{"dimension", "outcome"}),
		RegionSeconds: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "mcr2anvil_region_seconds",
			Help:    "Time spent converting one region file.",
			Buckets: prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
	}
	for _, c := range []prometheus.Collector{m.Chunks, m.Regions, m.RegionSeconds} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Metrics) RecordRegion(dimension string, res convert.RegionResult) {
	m.Chunks.WithLabelValues("converted").Add(float64(res.Converted))
	m.Chunks.WithLabelValues("skipped").Add(float64(res.Skipped))
	m.Chunks.WithLabelValues("failed").Add(float64(res.Failed))
	outcome := "ok"
	if !res.OK() {
		outcome = "failed"
	}
	m.Regions.WithLabelValues(dimension, outcome).Inc()
	m.RegionSeconds.Observe(res.Elapsed.Seconds())
}
