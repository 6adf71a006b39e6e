// Package metrics tracks issuance activity, adapted from the teacher's
// internal/metrics/metrics.go (prometheusTracker/nullTracker pattern),
// with fields rewritten for drive-loop and nonce-pool activity instead
// of HTTP request/latency/inflight tracking.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

type tracker interface {
	TrackDriveStep(step string, outcome string)
	TrackPollDuration(step string, duration time.Duration)
	TrackNonceRefill(outcome string)
}

// Tracker is the process-wide sink every package reports through; Enable
// swaps in a real Prometheus-backed tracker, otherwise observations are
// dropped.
var Tracker tracker = &nullTracker{}

// Enable installs a Prometheus-backed tracker and returns the handler to
// mount at /metrics.
func Enable() http.Handler {
	Tracker = NewPrometheusTracker()
	return promhttp.Handler()
}

type nullTracker struct{}

func (nullTracker) TrackDriveStep(step, outcome string)              {}
func (nullTracker) TrackPollDuration(step string, dur time.Duration) {}
func (nullTracker) TrackNonceRefill(outcome string)                  {}

type prometheusTracker struct {
	driveSteps   *prometheus.CounterVec
	pollDuration *prometheus.HistogramVec
	nonceRefills *prometheus.CounterVec
}

// NewPrometheusTracker builds and registers the collectors with the
// default registry.
func NewPrometheusTracker() *prometheusTracker {
	tracker := &prometheusTracker{
		driveSteps: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:      "drive_steps_total",
				Namespace: "mdacme",
				Subsystem: "drive",
				Help:      "Drive phases executed, labeled by phase and outcome (ok, error).",
			},
			[]string{"step", "outcome"},
		),

		pollDuration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:      "poll_duration_seconds",
				Namespace: "mdacme",
				Subsystem: "drive",
				Help:      "Duration of the challenge polling loop, labeled by phase (monitor-challenges).",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"step"},
		),

		nonceRefills: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name:      "nonce_refills_total",
				Namespace: "mdacme",
				Subsystem: "acmeclient",
				Help:      "Replay-Nonce pool refills, labeled by outcome (hit, miss).",
			},
			[]string{"outcome"},
		),
	}

	prometheus.MustRegister(tracker.driveSteps, tracker.pollDuration, tracker.nonceRefills)

	return tracker
}

func (p *prometheusTracker) TrackDriveStep(step, outcome string) {
	p.driveSteps.WithLabelValues(step, outcome).Inc()
}

func (p *prometheusTracker) TrackPollDuration(step string, duration time.Duration) {
	p.pollDuration.WithLabelValues(step).Observe(duration.Seconds())
}

func (p *prometheusTracker) TrackNonceRefill(outcome string) {
	p.nonceRefills.WithLabelValues(outcome).Inc()
}
