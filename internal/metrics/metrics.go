// Package metrics exposes Prometheus instrumentation for a coverage run.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Failure reasons used as the "reason" label.
const (
	ReasonDomain     = "domain"
	ReasonDegenerate = "degenerate"
)

var (
	stepsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "coverage_steps_total",
			Help: "Time steps accumulated by this process.",
		},
	)

	satelliteFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "coverage_satellite_failures_total",
			Help: "Satellite-steps skipped because the footprint could not be mapped.",
		},
		[]string{"reason"},
	)

	stepDurationSeconds = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "coverage_step_duration_seconds",
			Help:    "Wall time to propagate, map and accumulate one step.",
			Buckets: prometheus.ExponentialBuckets(0.01, 2, 12),
		},
	)

	stepCells = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "coverage_step_cells",
			Help: "Distinct cells covered in the most recent step.",
		},
	)

	coveredCells = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "coverage_covered_cells",
			Help: "Distinct cells covered at least once so far.",
		},
	)

	satellites = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "coverage_satellites",
			Help: "Satellites propagated each step.",
		},
	)
)

func init() {
	prometheus.MustRegister(stepsTotal)
	prometheus.MustRegister(satelliteFailuresTotal)
	prometheus.MustRegister(stepDurationSeconds)
	prometheus.MustRegister(stepCells)
	prometheus.MustRegister(coveredCells)
	prometheus.MustRegister(satellites)
}

// Handler returns the Prometheus metrics HTTP handler.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveStep records one completed step.
func ObserveStep(d time.Duration, cellsThisStep, coveredSoFar int) {
	stepsTotal.Inc()
	stepDurationSeconds.Observe(d.Seconds())
	stepCells.Set(float64(cellsThisStep))
	coveredCells.Set(float64(coveredSoFar))
}

// SatelliteFailure counts one skipped satellite-step.
func SatelliteFailure(reason string) {
	satelliteFailuresTotal.WithLabelValues(reason).Inc()
}

// SetSatellites records the constellation size.
func SetSatellites(n int) {
	satellites.Set(float64(n))
}
