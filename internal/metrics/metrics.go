package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Outcome label values for ProviderCalls.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Component label values.
const (
	ComponentGeocode  = "geocode"
	ComponentRoute    = "route"
	ComponentGenerate = "generate"
	ComponentWeather  = "weather"
)

type Metrics struct {
	OrdersEnriched *prometheus.CounterVec
	ProviderCalls  *prometheus.CounterVec
	RequestSeconds *prometheus.HistogramVec
	ActiveWorkers  prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		OrdersEnriched: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "hermes_orders_enriched_total",
			Help: "Total number of enriched orders by outcome.",
		}, []string{"status"}),
		ProviderCalls: promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
			Name: "hermes_provider_calls_total",
			Help: "Total number of calls to external providers.",
		}, []string{"component", "provider", "outcome"}),
		RequestSeconds: promauto.With(reg).NewHistogramVec(prometheus.HistogramOpts{
			Name:    "hermes_provider_request_duration_seconds",
			Help:    "Duration of requests to external providers.",
			Buckets: prometheus.DefBuckets,
		}, []string{"component", "provider"}),
		ActiveWorkers: promauto.With(reg).NewGauge(prometheus.GaugeOpts{
			Name: "hermes_active_workers",
			Help: "Current number of workers processing orders.",
		}),
	}
}

// NewRegistry returns a private registry carrying the Go and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// ObserveCall records one provider call and its duration in seconds.
func (m *Metrics) ObserveCall(component, provider string, seconds float64, err error) {
	if m == nil {
		return
	}
	outcome := OutcomeSuccess
	if err != nil {
		outcome = OutcomeFailure
	}
	m.ProviderCalls.WithLabelValues(component, provider, outcome).Inc()
	m.RequestSeconds.WithLabelValues(component, provider).Observe(seconds)
}
