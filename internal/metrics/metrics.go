// Package metrics records run metrics in a private Prometheus registry and
// writes them in the node_exporter textfile format.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const namespace = "modelsync"

// Recorder collects the metrics of one run.
type Recorder struct {
	reg *prometheus.Registry

	fetches      *prometheus.CounterVec
	fetchSeconds *prometheus.HistogramVec
	models       *prometheus.GaugeVec
	documents    *prometheus.CounterVec
	lastRun      prometheus.Gauge
}

// New creates a Recorder with all metrics registered.
func New() *Recorder {
	r := &Recorder{
		reg: prometheus.NewRegistry(),
		fetches: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_fetches_total",
			Help:      "Provider fetches by outcome.",
		}, []string{"provider", "status"}),
		fetchSeconds: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "provider_fetch_duration_seconds",
			Help:      "Provider fetch latency, pagination included.",
			Buckets:   []float64{0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"provider"}),
		models: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "provider_models",
			Help:      "Models returned by the last successful fetch.",
		}, []string{"provider"}),
		documents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "documents_total",
			Help:      "Configuration documents processed by result.",
		}, []string{"result"}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished.",
		}),
	}
	r.reg.MustRegister(r.fetches, r.fetchSeconds, r.models, r.documents, r.lastRun)
	return r
}

// ObserveFetch records one provider fetch.
func (r *Recorder) ObserveFetch(provider, status string, models int, elapsed time.Duration) {
	r.fetches.WithLabelValues(provider, status).Inc()
	r.fetchSeconds.WithLabelValues(provider).Observe(elapsed.Seconds())
	if models > 0 {
		r.models.WithLabelValues(provider).Set(float64(models))
	}
}

// Document results.
const (
	DocumentUpdated   = "updated"
	DocumentUnchanged = "unchanged"
	DocumentFailed    = "failed"
	DocumentInvalid   = "invalid"
)

// ObserveDocument records one document result.
func (r *Recorder) ObserveDocument(result string) {
	r.documents.WithLabelValues(result).Inc()
}

// Finish stamps the run end time.
func (r *Recorder) Finish(t time.Time) {
	r.lastRun.Set(float64(t.Unix()))
}

// Registry exposes the underlying registry, e.g. for a push gateway.
func (r *Recorder) Registry() *prometheus.Registry { return r.reg }

// WriteTextfile writes every metric to path atomically.
func (r *Recorder) WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, r.reg); err != nil {
		return fmt.Errorf("writing metrics to %s: %w", path, err)
	}
	return nil
}
