// Package metrics exposes the Prometheus metrics of the decoders.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const (
	StatusSuccess = "success"
	StatusFailure = "failure"
)

// Decoder holds the metrics of a decoder instance. A nil *Decoder is valid
// and records nothing.
type Decoder struct {
	samplesTotal          *prometheus.CounterVec
	stageDuration         *prometheus.HistogramVec
	perThreadEntriesTotal prometheus.Counter
	perThreadEntries      prometheus.Gauge
	scratchBytes          prometheus.Gauge
}

var _ prometheus.Collector = (*Decoder)(nil)

// NewDecoder creates the metrics and registers them in the registerer.
func NewDecoder(
	registerer prometheus.Registerer,
	decoderName string,
) (*Decoder, error) {
	constLabels := prometheus.Labels{"decoder": decoderName}
	m := &Decoder{
		samplesTotal: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:        "imgcodec_decoded_samples_total",
				Help:        "Total number of processed samples",
				ConstLabels: constLabels,
			},
			[]string{"stage", "status"}, // stage is the failed stage or "done"
		),
		stageDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:        "imgcodec_decode_stage_duration_seconds",
				Help:        "Time taken by a decode stage of a sample",
				ConstLabels: constLabels,
				// 10us .. ~5s
				Buckets: prometheus.ExponentialBuckets(0.00001, 2, 20),
			},
			[]string{"stage"},
		),
		perThreadEntriesTotal: prometheus.NewCounter(
			prometheus.CounterOpts{
				Name:        "imgcodec_per_thread_resources_created_total",
				Help:        "Total number of created per-thread resource entries",
				ConstLabels: constLabels,
			},
		),
		perThreadEntries: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name:        "imgcodec_per_thread_resources",
				Help:        "Current number of per-thread resource entries",
				ConstLabels: constLabels,
			},
		),
		scratchBytes: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Name:        "imgcodec_scratch_bytes",
				Help:        "Device memory held by the per-thread scratch buffers",
				ConstLabels: constLabels,
			},
		),
	}
	if registerer != nil {
		if err := registerer.Register(m); err != nil {
			return nil, err
		}
	}
	return m, nil
}

func (m *Decoder) Describe(ch chan<- *prometheus.Desc) {
	m.samplesTotal.Describe(ch)
	m.stageDuration.Describe(ch)
	m.perThreadEntriesTotal.Describe(ch)
	m.perThreadEntries.Describe(ch)
	m.scratchBytes.Describe(ch)
}

func (m *Decoder) Collect(ch chan<- prometheus.Metric) {
	m.samplesTotal.Collect(ch)
	m.stageDuration.Collect(ch)
	m.perThreadEntriesTotal.Collect(ch)
	m.perThreadEntries.Collect(ch)
	m.scratchBytes.Collect(ch)
}

// ObserveSample records the outcome of a sample; stage is where it failed,
// and is ignored on success.
func (m *Decoder) ObserveSample(stage string, err error) {
	if m == nil {
		return
	}
	if err == nil {
		m.samplesTotal.WithLabelValues("done", StatusSuccess).Inc()
		return
	}
	m.samplesTotal.WithLabelValues(stage, StatusFailure).Inc()
}

func (m *Decoder) ObserveStage(stage string, d time.Duration) {
	if m == nil {
		return
	}
	m.stageDuration.WithLabelValues(stage).Observe(d.Seconds())
}

func (m *Decoder) PerThreadEntryCreated(scratchBytes uint64) {
	if m == nil {
		return
	}
	m.perThreadEntriesTotal.Inc()
	m.perThreadEntries.Inc()
	m.scratchBytes.Add(float64(scratchBytes))
}

func (m *Decoder) PerThreadEntryClosed(scratchBytes uint64) {
	if m == nil {
		return
	}
	m.perThreadEntries.Dec()
	m.scratchBytes.Sub(float64(scratchBytes))
}
