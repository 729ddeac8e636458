package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "embednotify"

// Recorder observes notification outcomes.
type Recorder struct {
	registry *prometheus.Registry

	notificationsTotal *prometheus.CounterVec
	notificationSecs   *prometheus.HistogramVec
	lastSuccess        prometheus.Gauge
}

// NewRecorder creates a Recorder with its own registry.
func NewRecorder() *Recorder {
	registry := prometheus.NewRegistry()
	r := &Recorder{
		registry: registry,
		notificationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Embed-ready notifications by outcome.",
		}, []string{"outcome"}),
		notificationSecs: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "notification_duration_seconds",
			Help:      "Latency of embed-ready notifications by outcome.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"outcome"}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_success_timestamp_seconds",
			Help:      "Unix time of the most recent acknowledged notification.",
		}),
	}
	registry.MustRegister(r.notificationsTotal, r.notificationSecs, r.lastSuccess)
	return r
}

// Observe records one notification outcome and its latency.
func (r *Recorder) Observe(outcome string, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.notificationsTotal.WithLabelValues(outcome).Inc()
	r.notificationSecs.WithLabelValues(outcome).Observe(elapsed.Seconds())
	if outcome == "success" {
		r.lastSuccess.SetToCurrentTime()
	}
}

// Count returns the running total for outcome.
func (r *Recorder) Count(outcome string) (float64, error) {
	families, err := r.registry.Gather()
	if err != nil {
		return 0, fmt.Errorf("gather metrics: %w", err)
	}
	for _, family := range families {
		if family.GetName() != namespace+"_notifications_total" {
			continue
		}
		for _, metric := range family.GetMetric() {
			for _, label := range metric.GetLabel() {
				if label.GetName() == "outcome" && label.GetValue() == outcome {
					return metric.GetCounter().GetValue(), nil
				}
			}
		}
	}
	return 0, nil
}

// Gatherer exposes the private registry.
func (r *Recorder) Gatherer() prometheus.Gatherer {
	return r.registry
}

// WriteTextfile atomically writes the registry in text exposition format.
// An empty path is a no-op.
func (r *Recorder) WriteTextfile(path string) error {
	if r == nil || strings.TrimSpace(path) == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics directory: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, r.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
