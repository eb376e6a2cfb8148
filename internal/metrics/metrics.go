package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const namespace = "currency_rate"

type Metrics struct {
	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	RateRequestsTotal prometheus.Counter
	ConversionsTotal  *prometheus.CounterVec

	RefreshCyclesTotal     *prometheus.CounterVec
	RatesStoredTotal       prometheus.Counter
	RatesSkippedTotal      prometheus.Counter
	ProviderFetchAttempts  prometheus.Counter
	LastRefreshSuccessTime prometheus.Gauge
	CachedRates            prometheus.Gauge

	RPCRequestsTotal *prometheus.CounterVec
	RPCLatency       prometheus.Histogram
}

// NewMetrics registers every collector on reg. Pass prometheus.DefaultRegisterer
// in production and a fresh prometheus.NewRegistry() in tests.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "http_requests_total",
				Help:      "Total number of HTTP requests",
			},
			[]string{"path", "method", "status_code"},
		),

		HTTPRequestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "http_request_duration_seconds",
				Help:      "HTTP request duration in seconds",
				Buckets:   prometheus.DefBuckets,
			},
			[]string{"path", "method"},
		),

		RateRequestsTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rate_requests_total",
				Help:      "Total number of cached rate lookups served",
			},
		),

		ConversionsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "conversions_total",
				Help:      "Total number of currency conversions by outcome",
			},
			[]string{"outcome"},
		),

		RefreshCyclesTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "refresh_cycles_total",
				Help:      "Total number of refresh cycles by trigger and outcome",
			},
			[]string{"trigger", "outcome"},
		),

		RatesStoredTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rates_stored_total",
				Help:      "Total number of rates written to the cache",
			},
		),

		RatesSkippedTotal: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rates_skipped_total",
				Help:      "Total number of fetched rates that could not be cached",
			},
		),

		ProviderFetchAttempts: factory.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "provider_fetch_attempts_total",
				Help:      "Total number of calls made to the rate provider",
			},
		),

		LastRefreshSuccessTime: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "last_refresh_success_timestamp_seconds",
				Help:      "Unix time of the last refresh that stored at least one rate",
			},
		),

		CachedRates: factory.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "cached_rates",
				Help:      "Number of rates held in the cache after the last refresh",
			},
		),

		RPCRequestsTotal: factory.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "rpc_requests_total",
				Help:      "Total number of bus conversion requests by role and outcome",
			},
			[]string{"role", "outcome"},
		),

		RPCLatency: factory.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "rpc_request_duration_seconds",
				Help:      "Round-trip latency of bus conversion requests",
				Buckets:   prometheus.DefBuckets,
			},
		),
	}
}

// NewNop returns collectors bound to a private registry.
func NewNop() *Metrics {
	return NewMetrics(prometheus.NewRegistry())
}
