// Package metrics holds the Prometheus instruments of the auth client.
//
// All methods are safe on a nil *Metrics so components may run without
// instrumentation.
package metrics

import (
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

type Metrics struct {
	SessionChecks     *prometheus.CounterVec
	HandshakeOutcomes *prometheus.CounterVec
	LogoutFailures    prometheus.Counter
	BackendLatency    *prometheus.HistogramVec
}

// New creates and registers the instruments on reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		SessionChecks: f.NewCounterVec(prometheus.CounterOpts{
			Name: "campusgive_session_checks_total",
			Help: "Session verifications by result (authenticated, anonymous, discarded).",
		}, []string{"result"}),
		HandshakeOutcomes: f.NewCounterVec(prometheus.CounterOpts{
			Name: "campusgive_handshake_outcomes_total",
			Help: "Popup handshakes by provider and outcome.",
		}, []string{"provider", "outcome"}),
		LogoutFailures: f.NewCounter(prometheus.CounterOpts{
			Name: "campusgive_logout_backend_failures_total",
			Help: "Best-effort server logouts that failed.",
		}),
		BackendLatency: f.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "campusgive_backend_request_duration_seconds",
			Help:    "Latency of backend auth requests.",
			Buckets: prometheus.DefBuckets,
		}, []string{"endpoint", "result"}),
	}
}

func (m *Metrics) IncSessionCheck(result string) {
	if m == nil {
		return
	}
	m.SessionChecks.WithLabelValues(result).Inc()
}

// OtherProvider labels every provider outside KnownProviders.
const OtherProvider = "other"

// KnownProviders are the providers that get their own label value. Provider
// names come from user input, so anything else is folded into OtherProvider
// to keep label cardinality bounded.
var KnownProviders = []string{"apple", "facebook", "github", "google", "microsoft"}

// ProviderLabel maps a provider name onto the bounded label set.
func ProviderLabel(provider string) string {
	p := strings.ToLower(strings.TrimSpace(provider))
	for _, k := range KnownProviders {
		if p == k {
			return k
		}
	}
	return OtherProvider
}

func (m *Metrics) IncHandshake(provider, outcome string) {
	if m == nil {
		return
	}
	m.HandshakeOutcomes.WithLabelValues(ProviderLabel(provider), outcome).Inc()
}

func (m *Metrics) IncLogoutFailure() {
	if m == nil {
		return
	}
	m.LogoutFailures.Inc()
}

func (m *Metrics) ObserveBackendRequest(endpoint, result string, d time.Duration) {
	if m == nil {
		return
	}
	m.BackendLatency.WithLabelValues(endpoint, result).Observe(d.Seconds())
}
