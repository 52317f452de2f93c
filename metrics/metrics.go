// Package metrics exposes VisionForge tracking activity as Prometheus
// metrics.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	visionforge "github.com/swdee/go-visionforge"
	"github.com/swdee/go-visionforge/match"
)

// Metrics holds the Prometheus collectors for a tracker.  It implements
// visionforge.Observer
type Metrics struct {
	registry          *prometheus.Registry
	cyclesTotal       prometheus.Counter
	cycleDuration     prometheus.Histogram
	detectionsTotal   prometheus.Counter
	tracksCreated     prometheus.Counter
	tracksContinued   prometheus.Counter
	activeTracks      prometheus.Gauge
	matchVerdicts     *prometheus.CounterVec
	schedulerStops    *prometheus.CounterVec
	framesTotal       prometheus.Counter
	httpRequestsTotal prometheus.Counter
}

// New creates and registers the tracker metrics.  When instance is not empty
// it is attached to every metric as a constant label
func New(instance string) *Metrics {

	registry := prometheus.NewRegistry()

	var labels prometheus.Labels

	if instance != "" {
		labels = prometheus.Labels{"instance_id": instance}
	}

	m := &Metrics{
		registry: registry,
		cyclesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "vf_detection_cycles_total",
			Help:        "Total number of published detection cycles",
			ConstLabels: labels,
		}),
		cycleDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:        "vf_detection_duration_seconds",
			Help:        "Time spent in the object detector per cycle",
			Buckets:     prometheus.ExponentialBuckets(0.005, 2, 12),
			ConstLabels: labels,
		}),
		detectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "vf_detections_total",
			Help:        "Total number of detections used across all cycles",
			ConstLabels: labels,
		}),
		tracksCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "vf_tracks_created_total",
			Help:        "Total number of tracks started with a new identity",
			ConstLabels: labels,
		}),
		tracksContinued: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "vf_tracks_continued_total",
			Help:        "Total number of detections that continued an existing track",
			ConstLabels: labels,
		}),
		activeTracks: prometheus.NewGauge(prometheus.GaugeOpts{
			Name:        "vf_active_tracks",
			Help:        "Number of tracks in the latest published detection cycle",
			ConstLabels: labels,
		}),
		matchVerdicts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "vf_match_verdicts_total",
			Help:        "Total number of template match attempts by verdict",
			ConstLabels: labels,
		}, []string{"verdict"}),
		schedulerStops: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name:        "vf_scheduler_stops_total",
			Help:        "Total number of detection scheduler exits by reason",
			ConstLabels: labels,
		}, []string{"reason"}),
		framesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "vf_frames_total",
			Help:        "Total number of frames passed through the tracker",
			ConstLabels: labels,
		}),
		httpRequestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name:        "vf_http_requests_total",
			Help:        "Total number of HTTP requests received",
			ConstLabels: labels,
		}),
	}

	registry.MustRegister(
		m.cyclesTotal,
		m.cycleDuration,
		m.detectionsTotal,
		m.tracksCreated,
		m.tracksContinued,
		m.activeTracks,
		m.matchVerdicts,
		m.schedulerStops,
		m.framesTotal,
		m.httpRequestsTotal,
	)

	return m
}

// DetectionCycle records a published detection cycle
func (m *Metrics) DetectionCycle(stats visionforge.CycleStats) {
	m.cyclesTotal.Inc()
	m.cycleDuration.Observe(stats.Duration.Seconds())
	m.detectionsTotal.Add(float64(stats.Detections))
	m.tracksCreated.Add(float64(stats.Created))
	m.tracksContinued.Add(float64(stats.Continued))
	m.activeTracks.Set(float64(stats.Tracks))
}

// MatchEvaluated records the verdict of a template match
func (m *Metrics) MatchEvaluated(verdict match.Verdict) {
	m.matchVerdicts.WithLabelValues(verdict.String()).Inc()
}

// SchedulerStopped records the detection scheduler exiting
func (m *Metrics) SchedulerStopped(reason visionforge.StopReason) {
	m.schedulerStops.WithLabelValues(reason.String()).Inc()
}

// IncFrames increments the processed frames counter
func (m *Metrics) IncFrames() {
	m.framesTotal.Inc()
}

// Registry returns the registry the metrics are registered with
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns an http.Handler that serves the metrics
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// RequestMiddleware returns chi compatible middleware counting requests
func RequestMiddleware(m *Metrics) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r)
			m.httpRequestsTotal.Inc()
		})
	}
}
