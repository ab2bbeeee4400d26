// Package metrics holds the Prometheus collectors exported by the
// authentication server.
package metrics

import (
	"net/http"
	"sync"

	grpcprom "github.com/grpc-ecosystem/go-grpc-prometheus"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Registry collects every metric served on /metrics.
	Registry = prometheus.NewRegistry()

	// Registrations counts successful Register calls.
	Registrations = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "zkauth_registrations_total",
		Help: "Number of identities registered or re-registered",
	})

	// Challenges counts issued authentication challenges.
	Challenges = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "zkauth_challenges_total",
		Help: "Number of authentication challenges issued",
	})

	// AuthAttempts counts completed authentications by outcome.
	AuthAttempts = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "zkauth_auth_attempts_total",
		Help: "Number of authentication responses received, by result",
	}, []string{"result"})

	// SessionsExpired counts pending sessions dropped after their TTL.
	SessionsExpired = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "zkauth_sessions_expired_total",
		Help: "Number of pending sessions removed because they expired",
	})

	// SessionsEvicted counts pending sessions dropped to respect max_pending.
	SessionsEvicted = prometheus.NewCounter(prometheus.CounterOpts{
		Name: "zkauth_sessions_evicted_total",
		Help: "Number of pending sessions evicted because the registry was full",
	})

	// PendingSessions reports the current size of the pending session registry.
	PendingSessions = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "zkauth_pending_sessions",
		Help: "Number of authentication sessions awaiting a response",
	})

	// VerifyLatency measures the proof verification step.
	VerifyLatency = prometheus.NewHistogram(prometheus.HistogramOpts{
		Name:    "zkauth_verify_duration_seconds",
		Help:    "Time spent verifying Chaum-Pedersen responses",
		Buckets: prometheus.DefBuckets,
	})

	// HTTPCallCounter counts HTTP requests by status code and method.
	HTTPCallCounter = prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "http_call_counter",
		Help: "Number of HTTP calls received",
	}, []string{"code", "method"})

	// HTTPLatency measures HTTP request handling time.
	HTTPLatency = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "http_response_duration",
		Help:    "histogram of request latencies",
		Buckets: prometheus.DefBuckets,
	}, []string{"method"})

	// HTTPInFlight reports requests currently being served.
	HTTPInFlight = prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "http_in_flight",
		Help: "A gauge of requests currently being served.",
	})

	bindOnce sync.Once
)

// Bind registers every collector with Registry. It is safe to call more
// than once.
func Bind() {
	bindOnce.Do(func() {
		Registry.MustRegister(
			collectors.NewGoCollector(),
			collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
			Registrations,
			Challenges,
			AuthAttempts,
			SessionsExpired,
			SessionsEvicted,
			PendingSessions,
			VerifyLatency,
			HTTPCallCounter,
			HTTPLatency,
			HTTPInFlight,
			grpcprom.DefaultServerMetrics,
		)
	})
}

// Handler serves Registry in the Prometheus exposition format.
func Handler() http.Handler {
	Bind()
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}

// InstrumentHandler wraps next with the HTTP collectors.
func InstrumentHandler(next http.Handler) http.Handler {
	return promhttp.InstrumentHandlerInFlight(HTTPInFlight,
		promhttp.InstrumentHandlerDuration(HTTPLatency,
			promhttp.InstrumentHandlerCounter(HTTPCallCounter, next)))
}
