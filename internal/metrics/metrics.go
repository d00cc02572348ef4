// Package metrics exposes analysis counters and latencies in Prometheus format.
//
// A nil *Recorder is valid and records nothing, so callers never need to
// check whether metrics are enabled.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ppiankov/chartrisk/internal/model"
)

const namespace = "chartrisk"

// Recorder owns a private registry with every chartrisk collector
type Recorder struct {
	registry *prometheus.Registry

	analyses           *prometheus.CounterVec
	analysisDuration   *prometheus.HistogramVec
	stageDuration      *prometheus.HistogramVec
	collaboratorErrors *prometheus.CounterVec
	findings           *prometheus.CounterVec
	catalogReloads     *prometheus.CounterVec
	cacheLookups       *prometheus.CounterVec
}

// New creates a recorder and registers its collectors
func New() *Recorder {
	r := &Recorder{
		registry: prometheus.NewRegistry(),
		analyses: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "analyses_total",
			Help:      "Analyses by terminal status and mode.",
		}, []string{"status", "mode", "degraded"}),
		analysisDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "analysis_duration_seconds",
			Help:      "End-to-end analysis latency.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"mode"}),
		stageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "stage_duration_seconds",
			Help:      "Latency of each pipeline stage.",
			Buckets:   prometheus.ExponentialBuckets(0.001, 4, 8),
		}, []string{"stage"}),
		collaboratorErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collaborator_errors_total",
			Help:      "Failed calls to external collaborators after retries.",
		}, []string{"collaborator", "kind"}),
		findings: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "findings_total",
			Help:      "Merged findings by source and severity.",
		}, []string{"source", "severity"}),
		catalogReloads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "catalog_reloads_total",
			Help:      "Rule catalog reloads by result.",
		}, []string{"result"}),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_lookups_total",
			Help:      "Collaborator response cache lookups by namespace and result.",
		}, []string{"namespace", "result"}),
	}

	r.registry.MustRegister(
		r.analyses,
		r.analysisDuration,
		r.stageDuration,
		r.collaboratorErrors,
		r.findings,
		r.catalogReloads,
		r.cacheLookups,
		collectors.NewGoCollector(),
	)
	return r
}

// Registry returns the underlying registry
func (r *Recorder) Registry() *prometheus.Registry {
	if r == nil {
		return nil
	}
	return r.registry
}

// Handler serves the registry in the Prometheus text format
func (r *Recorder) Handler() http.Handler {
	if r == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(r.registry, promhttp.HandlerOpts{})
}

// ObserveAnalysis records one finished analysis
func (r *Recorder) ObserveAnalysis(result *model.AnalysisResult, elapsed time.Duration) {
	if r == nil || result == nil {
		return
	}
	degraded := "false"
	if result.Degraded {
		degraded = "true"
	}
	r.analyses.WithLabelValues(string(result.Status), string(result.Mode), degraded).Inc()
	r.analysisDuration.WithLabelValues(string(result.Mode)).Observe(elapsed.Seconds())

	for _, f := range result.Findings {
		r.findings.WithLabelValues(string(f.Source), f.Severity.String()).Inc()
	}
}

// ObserveStage records the latency of one pipeline stage
func (r *Recorder) ObserveStage(stage model.PipelineState, elapsed time.Duration) {
	if r == nil {
		return
	}
	r.stageDuration.WithLabelValues(string(stage)).Observe(elapsed.Seconds())
}

// CollaboratorError counts a collaborator call that failed for good
func (r *Recorder) CollaboratorError(collaborator, kind string) {
	if r == nil {
		return
	}
	r.collaboratorErrors.WithLabelValues(collaborator, kind).Inc()
}

// CatalogReload counts a rule catalog reload
func (r *Recorder) CatalogReload(degraded bool, err error) {
	if r == nil {
		return
	}
	result := "ok"
	switch {
	case err != nil:
		result = "error"
	case degraded:
		result = "degraded"
	}
	r.catalogReloads.WithLabelValues(result).Inc()
}

// CacheLookup counts one response cache lookup; it implements cache.Observer
func (r *Recorder) CacheLookup(namespace string, hit bool) {
	if r == nil {
		return
	}
	result := "miss"
	if hit {
		result = "hit"
	}
	r.cacheLookups.WithLabelValues(namespace, result).Inc()
}
