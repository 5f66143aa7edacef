package server

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics contains the Prometheus metrics of the results server.
type Metrics struct {
	RequestsTotal   *prometheus.CounterVec
	RequestDuration *prometheus.HistogramVec

	RunTrades    prometheus.Gauge
	RunBars      prometheus.Gauge
	RunAnomalies prometheus.Gauge
}

// NewMetrics creates and registers all metrics on the given registerer.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		RequestsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "tradeqc_http_requests_total",
			Help: "Total number of HTTP requests by route and status code",
		}, []string{"route", "code"}),
		RequestDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "tradeqc_http_request_duration_seconds",
			Help:    "HTTP request duration by route",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
		}, []string{"route"}),
		RunTrades: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tradeqc_run_trades_kept",
			Help: "Trades kept by the cleaning filter in the loaded run",
		}),
		RunBars: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tradeqc_run_bars_total",
			Help: "Bars emitted in the loaded run",
		}),
		RunAnomalies: factory.NewGauge(prometheus.GaugeOpts{
			Name: "tradeqc_run_anomalies_total",
			Help: "Anomalous bars flagged in the loaded run",
		}),
	}
}

// Middleware records request counts and latency per matched route.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := &statusWriter{ResponseWriter: w, code: http.StatusOK}
		next.ServeHTTP(sw, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		m.RequestsTotal.WithLabelValues(route, strconv.Itoa(sw.code)).Inc()
		m.RequestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

type statusWriter struct {
	http.ResponseWriter
	code int
}

func (w *statusWriter) WriteHeader(code int) {
	w.code = code
	w.ResponseWriter.WriteHeader(code)
}
