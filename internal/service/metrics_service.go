package service

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsService encapsulates Prometheus instrumentation for the search
// loop. All methods are nil-safe so the scheduler runs uninstrumented when
// no metrics service is wired.
type MetricsService struct {
	registry *prometheus.Registry
	handler  http.Handler

	searchAttempts     prometheus.Counter
	validCandidates    prometheus.Counter
	bestScore          prometheus.Gauge
	generationDuration *prometheus.HistogramVec
	generationsTotal   *prometheus.CounterVec
}

// NewMetricsService registers the scheduler collectors.
func NewMetricsService() *MetricsService {
	registry := prometheus.NewRegistry()

	searchAttempts := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "duty_search_attempts_total",
		Help: "Total constructive attempts executed by the duty search",
	})

	validCandidates := prometheus.NewCounter(prometheus.CounterOpts{
		Name: "duty_search_valid_candidates_total",
		Help: "Total attempts that produced a complete, valid candidate",
	})

	bestScore := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "duty_search_best_score",
		Help: "Fairness score of the best candidate in the most recent search",
	})

	generationDuration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "duty_generation_duration_seconds",
		Help:    "End-to-end duration of schedule generation",
		Buckets: prometheus.DefBuckets,
	}, []string{"term"})

	generationsTotal := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "duty_generations_total",
		Help: "Total schedule generation runs by outcome",
	}, []string{"term", "outcome"})

	registry.MustRegister(searchAttempts, validCandidates, bestScore, generationDuration, generationsTotal)

	return &MetricsService{
		registry:           registry,
		handler:            promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		searchAttempts:     searchAttempts,
		validCandidates:    validCandidates,
		bestScore:          bestScore,
		generationDuration: generationDuration,
		generationsTotal:   generationsTotal,
	}
}

// Handler exposes the Prometheus HTTP handler for the ops listener.
func (m *MetricsService) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// ObserveSearchAttempt counts one constructive attempt.
func (m *MetricsService) ObserveSearchAttempt() {
	if m == nil {
		return
	}
	m.searchAttempts.Inc()
}

// ObserveValidCandidate counts one attempt that survived validation.
func (m *MetricsService) ObserveValidCandidate() {
	if m == nil {
		return
	}
	m.validCandidates.Inc()
}

// SetBestScore records the running best fairness score.
func (m *MetricsService) SetBestScore(score float64) {
	if m == nil {
		return
	}
	m.bestScore.Set(score)
}

// ObserveGeneration records the outcome and duration of one generation run.
func (m *MetricsService) ObserveGeneration(term string, outcome string, duration time.Duration) {
	if m == nil {
		return
	}
	m.generationDuration.WithLabelValues(term).Observe(duration.Seconds())
	m.generationsTotal.WithLabelValues(term, outcome).Inc()
}
