package observability

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics mengumpulkan metrik Prometheus untuk aplikasi.
type Metrics struct {
	registry          *prometheus.Registry
	handler           http.Handler
	requestsTotal     *prometheus.CounterVec
	requestDuration   *prometheus.HistogramVec
	stockMovements    *prometheus.CounterVec
	insufficientStock *prometheus.CounterVec
	ledgerDrift       prometheus.Gauge
}

// NewMetrics menginisialisasi registry dan metrik dasar.
func NewMetrics() *Metrics {
	registry := prometheus.NewRegistry()
	requests := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "samudra_http_requests_total",
		Help: "Jumlah permintaan HTTP berdasarkan route dan status.",
	}, []string{"route", "code"})
	duration := prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "samudra_http_request_duration_seconds",
		Help:    "Durasi permintaan HTTP per route.",
		Buckets: prometheus.DefBuckets,
	}, []string{"route"})
	movements := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "samudra_stock_movements_total",
		Help: "Jumlah mutasi stok per modul dan arah.",
	}, []string{"module", "movement"})
	insufficient := prometheus.NewCounterVec(prometheus.CounterOpts{
		Name: "samudra_insufficient_stock_total",
		Help: "Jumlah penolakan karena stok tidak mencukupi.",
	}, []string{"module"})
	drift := prometheus.NewGauge(prometheus.GaugeOpts{
		Name: "samudra_ledger_drift_rows",
		Help: "Jumlah baris stok yang tidak cocok dengan total ledger (hasil scan terakhir).",
	})
	registry.MustRegister(requests, duration, movements, insufficient, drift)
	return &Metrics{
		registry:          registry,
		handler:           promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		requestsTotal:     requests,
		requestDuration:   duration,
		stockMovements:    movements,
		insufficientStock: insufficient,
		ledgerDrift:       drift,
	}
}

// Handler mengembalikan http.Handler untuk endpoint /metrics.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, http.StatusText(http.StatusServiceUnavailable), http.StatusServiceUnavailable)
		})
	}
	return m.handler
}

// Middleware mencatat metrik untuk setiap permintaan HTTP.
func (m *Metrics) Middleware(next http.Handler) http.Handler {
	if m == nil {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(&recorder, r)
		route := routePattern(r)
		m.requestsTotal.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		m.requestDuration.WithLabelValues(route).Observe(time.Since(start).Seconds())
	})
}

// ObserveMovement menambah counter mutasi stok.
func (m *Metrics) ObserveMovement(module, movement string) {
	if m == nil {
		return
	}
	m.stockMovements.WithLabelValues(module, movement).Inc()
}

// ObserveInsufficientStock menambah counter penolakan stok.
func (m *Metrics) ObserveInsufficientStock(module string) {
	if m == nil {
		return
	}
	m.insufficientStock.WithLabelValues(module).Inc()
}

// SetLedgerDrift menyimpan hasil scan integritas ledger terakhir.
func (m *Metrics) SetLedgerDrift(rows int) {
	if m == nil {
		return
	}
	m.ledgerDrift.Set(float64(rows))
}

// Registerer mengekspos registry untuk pendaftaran metrik khusus.
func (m *Metrics) Registerer() prometheus.Registerer {
	if m == nil {
		return prometheus.DefaultRegisterer
	}
	return m.registry
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

func routePattern(r *http.Request) string {
	if routeCtx := chi.RouteContext(r.Context()); routeCtx != nil {
		if pattern := routeCtx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return "unknown"
}
