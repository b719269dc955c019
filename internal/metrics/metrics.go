// Package metrics exposes Prometheus instrumentation for relay streams.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Stream outcomes.
const (
	OutcomeDone  = "done"
	OutcomeError = "error"
)

// Recorder receives one start and one finish event per relay invocation.
type Recorder interface {
	StreamStarted(vendor string)
	StreamFinished(vendor, outcome string, fragments int, elapsed time.Duration)
}

// Noop discards all events.
type Noop struct{}

// StreamStarted implements Recorder.
func (Noop) StreamStarted(string) {}

// StreamFinished implements Recorder.
func (Noop) StreamFinished(string, string, int, time.Duration) {}

// Prometheus records relay activity as Prometheus collectors.
type Prometheus struct {
	inFlight  *prometheus.GaugeVec
	streams   *prometheus.CounterVec
	fragments *prometheus.CounterVec
	duration  *prometheus.HistogramVec
}

// NewPrometheus creates the collectors and registers them with reg.
// Pass prometheus.DefaultRegisterer to expose them through promhttp.Handler.
func NewPrometheus(reg prometheus.Registerer) (*Prometheus, error) {
	p := &Prometheus{
		inFlight: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "clarifyai",
			Subsystem: "relay",
			Name:      "streams_in_flight",
			Help:      "Relay streams currently open.",
		}, []string{"vendor"}),
		streams: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clarifyai",
			Subsystem: "relay",
			Name:      "streams_total",
			Help:      "Relay invocations by terminal outcome.",
		}, []string{"vendor", "outcome"}),
		fragments: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "clarifyai",
			Subsystem: "relay",
			Name:      "fragments_total",
			Help:      "Text fragments delivered to callers.",
		}, []string{"vendor"}),
		duration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "clarifyai",
			Subsystem: "relay",
			Name:      "stream_duration_seconds",
			Help:      "Time from invocation to the terminal callback.",
			Buckets:   []float64{0.25, 0.5, 1, 2, 5, 10, 20, 40, 80},
		}, []string{"vendor", "outcome"}),
	}

	for _, c := range []prometheus.Collector{p.inFlight, p.streams, p.fragments, p.duration} {
		if err := reg.Register(c); err != nil {
			return nil, err
		}
	}
	return p, nil
}

// StreamStarted implements Recorder.
func (p *Prometheus) StreamStarted(vendor string) {
	p.inFlight.WithLabelValues(vendor).Inc()
}

// StreamFinished implements Recorder.
func (p *Prometheus) StreamFinished(vendor, outcome string, fragments int, elapsed time.Duration) {
	p.inFlight.WithLabelValues(vendor).Dec()
	p.streams.WithLabelValues(vendor, outcome).Inc()
	p.fragments.WithLabelValues(vendor).Add(float64(fragments))
	p.duration.WithLabelValues(vendor, outcome).Observe(elapsed.Seconds())
}
