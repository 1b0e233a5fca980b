// Package metrics exposes Prometheus collectors for detection runs, outbound
// collaborators, scrapers and the HTTP API.
package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "hyaluron"

// Metrics holds all service collectors
type Metrics struct {
	registry prometheus.Gatherer

	// Detection
	ProfilesAnalyzed   *prometheus.CounterVec
	ProfilesSuspicious *prometheus.CounterVec
	RiskScore          prometheus.Histogram

	// Collaborators
	CollaboratorFailures *prometheus.CounterVec
	BreakerState         *prometheus.GaugeVec

	// Scrapers
	ScraperFetchDuration *prometheus.HistogramVec
	ScraperResults       *prometheus.CounterVec
	ScraperErrors        *prometheus.CounterVec

	// Monitor
	RunsTotal      *prometheus.CounterVec
	RunDuration    prometheus.Histogram
	CasesFiled     prometheus.Counter
	CasesEscalated prometheus.Counter

	// HTTP
	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
}

// New registers all collectors with reg. Passing nil uses a fresh registry,
// which keeps tests isolated from each other.
func New(reg *prometheus.Registry) *Metrics {
	if reg == nil {
		reg = prometheus.NewRegistry()
	}
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,

		ProfilesAnalyzed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "profiles_analyzed_total",
			Help:      "Total number of profiles scored",
		}, []string{"platform"}),
		ProfilesSuspicious: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "profiles_suspicious_total",
			Help:      "Total number of profiles at or above the suspicion threshold",
		}, []string{"platform"}),
		RiskScore: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "risk_score",
			Help:      "Distribution of profile risk scores",
			Buckets:   prometheus.LinearBuckets(10, 10, 10),
		}),

		CollaboratorFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "collaborator_failures_total",
			Help:      "Failures of persistence, evidence or event publishing per profile",
		}, []string{"collaborator"}),
		BreakerState: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "circuit_breaker_state",
			Help:      "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		}, []string{"name"}),

		ScraperFetchDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "scraper_fetch_duration_seconds",
			Help:      "Duration of scraper fetches in seconds",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		}, []string{"platform"}),
		ScraperResults: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scraper_results_total",
			Help:      "Total number of raw profiles returned by scrapers",
		}, []string{"platform"}),
		ScraperErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "scraper_errors_total",
			Help:      "Total number of failed scraper fetches",
		}, []string{"platform"}),

		RunsTotal: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "monitor_runs_total",
			Help:      "Monitor runs by outcome",
		}, []string{"status"}),
		RunDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "monitor_run_duration_seconds",
			Help:      "Duration of monitor runs in seconds",
			Buckets:   prometheus.ExponentialBuckets(1, 2, 12),
		}),
		CasesFiled: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cases_filed_total",
			Help:      "Total number of cases filed on the board",
		}),
		CasesEscalated: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cases_escalated_total",
			Help:      "Total number of cases reported to a health authority",
		}),

		HTTPRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		}, []string{"method", "route", "status"}),
		HTTPDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency in seconds",
			Buckets:   prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
}

// Handler returns the /metrics handler for this registry
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// ProfileAnalyzed records one scored profile
func (m *Metrics) ProfileAnalyzed(platform string, score float64, suspicious bool) {
	platform = label(platform)
	m.ProfilesAnalyzed.WithLabelValues(platform).Inc()
	m.RiskScore.Observe(score)
	if suspicious {
		m.ProfilesSuspicious.WithLabelValues(platform).Inc()
	}
}

// CollaboratorFailed records a failed forward to persistence, evidence or events
func (m *Metrics) CollaboratorFailed(collaborator string) {
	m.CollaboratorFailures.WithLabelValues(collaborator).Inc()
}

// ScraperFetched records one scraper call
func (m *Metrics) ScraperFetched(platform string, results int, duration time.Duration, err error) {
	platform = label(platform)
	m.ScraperFetchDuration.WithLabelValues(platform).Observe(duration.Seconds())
	if err != nil {
		m.ScraperErrors.WithLabelValues(platform).Inc()
		return
	}
	m.ScraperResults.WithLabelValues(platform).Add(float64(results))
}

// RunFinished records a completed monitor run
func (m *Metrics) RunFinished(duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "failed"
	}
	m.RunsTotal.WithLabelValues(status).Inc()
	m.RunDuration.Observe(duration.Seconds())
}

// CaseFiled counts a filed case
func (m *Metrics) CaseFiled() { m.CasesFiled.Inc() }

// CaseEscalated counts a case reported to an authority
func (m *Metrics) CaseEscalated() { m.CasesEscalated.Inc() }

// SetBreakerState publishes a breaker transition
func (m *Metrics) SetBreakerState(name string, state int) {
	m.BreakerState.WithLabelValues(name).Set(float64(state))
}

// ObserveHTTP records one served request
func (m *Metrics) ObserveHTTP(method, route string, status int, duration time.Duration) {
	if route == "" {
		route = "unmatched"
	}
	m.HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.HTTPDuration.WithLabelValues(method, route).Observe(duration.Seconds())
}

func label(platform string) string {
	platform = strings.ToLower(strings.TrimSpace(platform))
	if platform == "" {
		return "unknown"
	}
	return platform
}
