package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for the
// extraction pipeline.
type Metrics struct {
	JobsTotal         *prometheus.CounterVec // labels: outcome={success,error}
	JobDuration       prometheus.Histogram
	ExtractionRunning prometheus.Gauge

	// Remote layer fetch metrics.
	FetchRequests *prometheus.CounterVec   // labels: source, outcome={success,error,empty}
	FetchRetries  prometheus.Counter
	FetchDuration *prometheus.HistogramVec // labels: source

	// Spatial processing metrics.
	CellsProcessed *prometheus.CounterVec // labels: path={fully_inside,clipped,dropped}
	LayersDerived  *prometheus.CounterVec // labels: status={ok,empty_after_clip,no_data,error}
}

// NewMetrics creates and registers all pipeline metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := &Metrics{
		JobsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rofsw",
			Name:      "jobs_total",
			Help:      "Extraction jobs by outcome.",
		}, []string{"outcome"}),
		JobDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "rofsw",
			Name:      "job_duration_seconds",
			Help:      "Duration of a complete geocode-fetch-clip-package job.",
			Buckets:   []float64{1, 5, 10, 30, 60, 120, 300},
		}),
		ExtractionRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "rofsw",
			Name:      "extraction_running",
			Help:      "1 while a job is being processed, 0 otherwise.",
		}),
		FetchRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rofsw",
			Name:      "fetch_requests_total",
			Help:      "Remote layer fetches by source and outcome.",
		}, []string{"source", "outcome"}),
		FetchRetries: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "rofsw",
			Name:      "fetch_retries_total",
			Help:      "Total fetch attempts beyond the first.",
		}),
		FetchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "rofsw",
			Name:      "fetch_duration_seconds",
			Help:      "Remote layer fetch duration in seconds, download included.",
			Buckets:   []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 180},
		}, []string{"source"}),
		CellsProcessed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rofsw",
			Name:      "cells_processed_total",
			Help:      "Grid cells by clip path.",
		}, []string{"path"}),
		LayersDerived: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "rofsw",
			Name:      "layers_derived_total",
			Help:      "Output layers by final status.",
		}, []string{"status"}),
	}

	prometheus.MustRegister(
		m.JobsTotal,
		m.JobDuration,
		m.ExtractionRunning,
		m.FetchRequests,
		m.FetchRetries,
		m.FetchDuration,
		m.CellsProcessed,
		m.LayersDerived,
	)

	return m
}

// NewMetricsForTesting creates Metrics with a fresh registry to avoid
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return &Metrics{
		JobsTotal:         prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "rofsw", Name: "jobs_total"}, []string{"outcome"}),
		JobDuration:       prometheus.NewHistogram(prometheus.HistogramOpts{Namespace: "rofsw", Name: "job_duration_seconds"}),
		ExtractionRunning: prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "rofsw", Name: "extraction_running"}),
		FetchRequests:     prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "rofsw", Name: "fetch_requests_total"}, []string{"source", "outcome"}),
		FetchRetries:      prometheus.NewCounter(prometheus.CounterOpts{Namespace: "rofsw", Name: "fetch_retries_total"}),
		FetchDuration:     prometheus.NewHistogramVec(prometheus.HistogramOpts{Namespace: "rofsw", Name: "fetch_duration_seconds"}, []string{"source"}),
		CellsProcessed:    prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "rofsw", Name: "cells_processed_total"}, []string{"path"}),
		LayersDerived:     prometheus.NewCounterVec(prometheus.CounterOpts{Namespace: "rofsw", Name: "layers_derived_total"}, []string{"status"}),
	}
}
