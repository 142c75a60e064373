package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Resolver labels
const (
	ResolverTaxCode      = "tax_code"
	ResolverMunicipality = "municipality"
)

// Metrics provides observability for document emission.
type Metrics struct {
	// Lookups that fell back to a default value, by resolver
	ResolverFallback *prometheus.CounterVec

	// Emission outcomes by status and gateway mode
	EmissionOutcome *prometheus.CounterVec

	// Document build latency
	BuildLatency prometheus.Histogram

	// Gateway round-trip latency by mode
	SubmitLatency *prometheus.HistogramVec
}

// New creates a new Metrics instance registered on reg.
// A nil reg registers on the default prometheus registry.
func New(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	factory := promauto.With(reg)

	return &Metrics{
		ResolverFallback: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nfse_resolver_fallback_total",
			Help: "Total lookups that returned the default value because nothing matched",
		}, []string{"resolver"}), // resolver: "tax_code", "municipality"

		EmissionOutcome: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "nfse_emissions_total",
			Help: "Total emission attempts by outcome status and gateway mode",
		}, []string{"status", "mode"}),

		BuildLatency: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "nfse_build_duration_seconds",
			Help:    "Duration of XML document assembly including reference lookups",
			Buckets: []float64{0.001, 0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1},
		}),

		SubmitLatency: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "nfse_gateway_submit_duration_seconds",
			Help:    "Duration of gateway submissions by mode",
			Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}, []string{"mode"}),
	}
}

// IncrementFallback records a lookup that fell back to its default.
func (m *Metrics) IncrementFallback(resolver string) {
	if m != nil {
		m.ResolverFallback.WithLabelValues(resolver).Inc()
	}
}

// IncrementOutcome records an emission outcome.
func (m *Metrics) IncrementOutcome(status, mode string) {
	if m != nil {
		m.EmissionOutcome.WithLabelValues(status, mode).Inc()
	}
}

// ObserveBuildLatency records the document build duration.
func (m *Metrics) ObserveBuildLatency(d time.Duration) {
	if m != nil {
		m.BuildLatency.Observe(d.Seconds())
	}
}

// ObserveSubmitLatency records a gateway round trip.
func (m *Metrics) ObserveSubmitLatency(mode string, d time.Duration) {
	if m != nil {
		m.SubmitLatency.WithLabelValues(mode).Observe(d.Seconds())
	}
}
