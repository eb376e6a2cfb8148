package http

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"currency-rate-service/internal/metrics"
	"currency-rate-service/pkg/logger"
)

type Router struct {
	handler  *Handler
	log      *logger.Logger
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
}

func NewRouter(handler *Handler, log *logger.Logger, metrics *metrics.Metrics, gatherer prometheus.Gatherer) *Router {
	return &Router{
		handler:  handler,
		log:      log,
		metrics:  metrics,
		gatherer: gatherer,
	}
}

// observe records metrics for every request and logs it. Metrics are
// labelled by route pattern so raw paths never become label values.
func (r *Router) observe(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(rec, req)

		route := req.Pattern
		if route == "" {
			route = "unmatched"
		}
		elapsed := time.Since(start)
		r.metrics.HTTPRequestDuration.WithLabelValues(route, req.Method).Observe(elapsed.Seconds())
		r.metrics.HTTPRequestsTotal.WithLabelValues(route, req.Method, strconv.Itoa(rec.status/100)+"xx").Inc()

		r.log.Info("HTTP request",
			"route", route,
			"method", req.Method,
			"path", req.URL.Path,
			"query", req.URL.RawQuery,
			"status", rec.status,
			"bytes", rec.bytes,
			"duration", elapsed,
			"remote_addr", req.RemoteAddr,
		)
	})
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (s *statusRecorder) WriteHeader(code int) {
	s.status = code
	s.ResponseWriter.WriteHeader(code)
}

func (s *statusRecorder) Write(b []byte) (int, error) {
	n, err := s.ResponseWriter.Write(b)
	s.bytes += n
	return n, err
}

func (r *Router) SetupRoutes() http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("GET /api/v1/convert", r.handler.ConvertCurrencyHandler)
	mux.HandleFunc("GET /api/v1/rates", r.handler.ListRatesHandler)
	mux.HandleFunc("GET /api/v1/rates/status", r.handler.RefreshStatusHandler)
	mux.HandleFunc("GET /api/v1/rates/{code}", r.handler.GetRateHandler)
	mux.HandleFunc("POST /api/v1/rates/refresh", r.handler.RefreshRatesHandler)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("OK"))
	})

	root := http.NewServeMux()
	root.Handle("/", r.observe(mux))
	root.Handle("GET /metrics", promhttp.HandlerFor(r.gatherer, promhttp.HandlerOpts{}))
	return root
}
