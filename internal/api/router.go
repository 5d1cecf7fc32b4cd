// Package api serves the REST surface: device inspection, attendance
// reads, user management, HRIS sync, and backup operations. Every
// endpoint answers the common Response envelope; everything under
// /api/v1 requires the X-API-Key header.
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/abcfood/fingerprint-bridge/internal/telemetry"
	"github.com/abcfood/fingerprint-bridge/pkg/cache"
	"github.com/abcfood/fingerprint-bridge/pkg/config"
	"github.com/abcfood/fingerprint-bridge/pkg/scheduler"
	"github.com/abcfood/fingerprint-bridge/pkg/service"
)

// Handlers bundles everything the routes need.
type Handlers struct {
	svc     *service.Service
	sched   *scheduler.Scheduler
	version string
}

// NewRouter configures the chi router with all middleware and routes.
//
// Middleware stack, in order: request ID, real IP, request logging,
// panic recovery, request timeout, CORS. The timeout is generous because
// a device call behind the slot lock can queue behind retries.
// /health and /metrics stay outside the authenticated subtree.
func NewRouter(settings *config.Settings, svc *service.Service, sched *scheduler.Scheduler, metrics *telemetry.Metrics, version string) http.Handler {
	h := &Handlers{svc: svc, sched: sched, version: version}

	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(chimiddleware.Timeout(5 * time.Minute))
	if metrics != nil {
		r.Use(instrument(metrics))
	}
	if origins := settings.CORSOrigins(); len(origins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Content-Type", "X-API-Key"},
			AllowCredentials: false,
			MaxAge:           300,
		}))
	}

	r.Get("/health", h.Health)
	r.Get("/metrics", h.SystemMetrics)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(apiKeyAuth(settings.APIKey))

		r.Route("/devices", func(r chi.Router) {
			r.Get("/", h.ListDevices)
			r.Get("/{name}", h.GetDevice)
			r.Post("/{name}/restart", h.RestartDevice)
			r.Get("/{name}/time", h.GetDeviceTime)
			r.Put("/{name}/time", h.SyncDeviceTime)
		})

		r.Route("/attendance", func(r chi.Router) {
			r.Get("/{device}", h.GetAttendance)
			r.Get("/{device}/count", h.CountAttendance)
			r.Get("/{device}/cache", h.CacheStatus)
			r.Post("/{device}/cache/refresh", h.RefreshCache)
			r.Delete("/{device}", h.ClearAttendance)
		})

		r.Route("/users", func(r chi.Router) {
			r.Get("/{device}", h.ListUsers)
			r.Post("/{device}", h.AddUser)
			r.Post("/{device}/sync", h.SyncUsers)
			r.Get("/{device}/{user_id}", h.GetUser)
			r.Put("/{device}/{uid}", h.UpdateUser)
			r.Delete("/{device}/{uid}", h.DeleteUser)
		})

		r.Route("/fingerprints", func(r chi.Router) {
			r.Get("/{device}/count", h.CountFingerprints)
			r.Get("/{device}/{user_id}", h.ListFingerprints)
		})

		r.Route("/backup", func(r chi.Router) {
			r.Post("/{device}", h.RunBackup)
			r.Get("/list", h.ListBackups)
			// The object key contains slashes, so the route takes the
			// whole remaining path.
			r.Post("/restore/*", h.RestoreBackup)
		})
	})

	return r
}

// Health is the liveness probe.
func (h *Handlers) Health(w http.ResponseWriter, r *http.Request) {
	OK(w, map[string]any{
		"status":  "healthy",
		"service": "fingerprint-bridge",
		"version": h.version,
	})
}

// SystemMetrics reports a human-readable system summary. The Prometheus
// scrape endpoint lives on its own port.
func (h *Handlers) SystemMetrics(w http.ResponseWriter, r *http.Request) {
	var statuses map[string]cache.Status
	if c := h.svc.Cache(); c != nil {
		statuses = c.AllStatuses()
	}
	OK(w, map[string]any{
		"service":            "fingerprint-bridge",
		"version":            h.version,
		"devices_configured": len(h.svc.Pool().Keys()),
		"scheduler_running":  h.sched != nil && h.sched.Running(),
		"attendance_cache":   statuses,
	})
}
