// Package telemetry exposes Prometheus metrics on a dedicated port. The
// HTTP API keeps its own JSON /metrics for humans; this package serves
// the scrape endpoint.
package telemetry

import (
	"context"
	"errors"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/abcfood/fingerprint-bridge/internal/logger"
)

// Source supplies the gauge callbacks. All funcs must be safe for
// concurrent use.
type Source struct {
	DevicesConfigured func() int
	SchedulerRunning  func() bool
	CacheCounts       func() map[string]int
}

// Metrics owns the registry and the instruments.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequests *prometheus.CounterVec
	HTTPDuration *prometheus.HistogramVec
	Refreshes    *prometheus.CounterVec
	Backups      *prometheus.CounterVec
}

// New builds a registry with process collectors, domain gauges bound to
// src, and the request instruments.
func New(src Source) *Metrics {
	reg := prometheus.NewRegistry()

	promauto.With(reg).NewGaugeFunc(prometheus.GaugeOpts{
		Name: "fpbridge_devices_configured",
		Help: "Number of terminals in the fleet configuration",
	}, func() float64 { return float64(src.DevicesConfigured()) })

	promauto.With(reg).NewGaugeFunc(prometheus.GaugeOpts{
		Name: "fpbridge_scheduler_running",
		Help: "1 when the background scheduler accepts fires",
	}, func() float64 {
		if src.SchedulerRunning() {
			return 1
		}
		return 0
	})

	m := &Metrics{
		registry: reg,
		HTTPRequests: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "fpbridge_http_requests_total",
				Help: "API requests by method, route pattern, and status",
			},
			[]string{"method", "route", "status"},
		),
		HTTPDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "fpbridge_http_request_duration_seconds",
				Help:    "API request latency by route pattern",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "route"},
		),
		Refreshes: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "fpbridge_cache_refreshes_total",
				Help: "Attendance cache refreshes by device and result",
			},
			[]string{"device", "result"},
		),
		Backups: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "fpbridge_backups_total",
				Help: "Device backups by device and result",
			},
			[]string{"device", "result"},
		),
	}

	promauto.With(reg).NewGaugeFunc(prometheus.GaugeOpts{
		Name: "fpbridge_cached_attendance_records",
		Help: "Total attendance records held across all device snapshots",
	}, func() float64 {
		total := 0
		for _, n := range src.CacheCounts() {
			total += n
		}
		return float64(total)
	})

	return m
}

// ObserveRefresh counts one attendance cache refresh outcome.
func (m *Metrics) ObserveRefresh(device string, err error) {
	m.Refreshes.WithLabelValues(device, outcome(err)).Inc()
}

// ObserveBackup counts one device backup outcome.
func (m *Metrics) ObserveBackup(device string, err error) {
	m.Backups.WithLabelValues(device, outcome(err)).Inc()
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// Handler serves the scrape endpoint.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

// Serve runs the scrape server until ctx is cancelled.
func (m *Metrics) Serve(ctx context.Context, host string, port int) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", m.Handler())

	srv := &http.Server{
		Addr:              net.JoinHostPort(host, strconv.Itoa(port)),
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("Metrics server listening", "addr", srv.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
