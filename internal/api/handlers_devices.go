package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

// ListDevices answers the fleet with per-device online flags. Each probe
// is a short device session, run sequentially.
func (h *Handlers) ListDevices(w http.ResponseWriter, r *http.Request) {
	statuses := h.svc.AllDeviceStatuses(r.Context())
	OK(w, map[string]any{
		"count":   len(statuses),
		"devices": statuses,
	})
}

// GetDevice answers detailed info for one device. An unreachable device
// is a 503, not a silent offline flag.
func (h *Handlers) GetDevice(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "name")
	status, err := h.svc.DeviceStatus(r.Context(), key)
	if err != nil {
		Error(w, err)
		return
	}
	if !status.Online {
		ErrorWithStatus(w, http.StatusServiceUnavailable,
			"device "+key+" is offline: "+status.Error)
		return
	}
	OK(w, status)
}

// RestartDevice reboots one terminal.
func (h *Handlers) RestartDevice(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "name")
	if err := h.svc.RestartDevice(r.Context(), key); err != nil {
		Error(w, err)
		return
	}
	OK(w, map[string]any{"device": key, "restarted": true})
}

// GetDeviceTime reads the device clock and reports drift from server time.
func (h *Handlers) GetDeviceTime(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "name")
	deviceTime, err := h.svc.DeviceTime(r.Context(), key)
	if err != nil {
		Error(w, err)
		return
	}
	now := time.Now()
	OK(w, map[string]any{
		"device":        key,
		"device_time":   deviceTime,
		"server_time":   now,
		"drift_seconds": int(now.Sub(deviceTime).Seconds()),
	})
}

// SyncDeviceTime sets the device clock to server time.
func (h *Handlers) SyncDeviceTime(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "name")
	if err := h.svc.SyncDeviceTime(r.Context(), key); err != nil {
		Error(w, err)
		return
	}
	OK(w, map[string]any{"device": key, "synced": true})
}
