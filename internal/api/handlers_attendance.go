package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/abcfood/fingerprint-bridge/pkg/service"
)

// GetAttendance answers attendance records for one device, optionally
// bounded by from/to and paginated. The cache serves reads by default;
// use_cache=false forces a device session.
func (h *Handlers) GetAttendance(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "device")

	from, err := timeParam(r, "from")
	if err != nil {
		ErrorWithStatus(w, http.StatusBadRequest, err.Error())
		return
	}
	to, err := timeParam(r, "to")
	if err != nil {
		ErrorWithStatus(w, http.StatusBadRequest, err.Error())
		return
	}
	useCache, err := boolParam(r, "use_cache", true)
	if err != nil {
		ErrorWithStatus(w, http.StatusBadRequest, err.Error())
		return
	}
	p, err := pageParams(r)
	if err != nil {
		ErrorWithStatus(w, http.StatusBadRequest, err.Error())
		return
	}

	records, err := h.svc.GetAttendance(r.Context(), key, from, to, useCache)
	if err != nil {
		Error(w, err)
		return
	}

	lo, hi := p.slice(len(records))
	window := records[lo:hi]
	data := map[string]any{
		"device": key,
		"total":  len(records),
		"count":  hi - lo,
	}
	if p.enabled {
		data["limit"] = p.limit
		data["offset"] = p.offset
	}

	// format=hris answers the hr.fingerprint.log row shape instead of raw
	// punch records.
	if r.URL.Query().Get("format") == "hris" {
		cfg, _ := h.svc.Pool().Config(key)
		data["records"] = service.FormatForHRIS(window, key, cfg.Name)
	} else {
		data["records"] = window
	}
	OK(w, data)
}

// CountAttendance answers the record count, preferring the cache over a
// device round trip.
func (h *Handlers) CountAttendance(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "device")
	count, err := h.svc.CountAttendance(r.Context(), key)
	if err != nil {
		Error(w, err)
		return
	}
	OK(w, map[string]any{"device": key, "count": count})
}

// CacheStatus answers the cache entry metadata for one device.
func (h *Handlers) CacheStatus(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "device")
	if _, err := h.svc.Pool().Client(key); err != nil {
		Error(w, err)
		return
	}
	OK(w, h.svc.Cache().Status(key))
}

// RefreshCache forces a cache refresh for one device and answers the new
// record count. Concurrent refreshes of the same device coalesce.
func (h *Handlers) RefreshCache(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "device")
	count, err := h.svc.Cache().Refresh(r.Context(), key)
	if err != nil {
		Error(w, err)
		return
	}
	OK(w, map[string]any{"device": key, "count": count, "refreshed": true})
}

// ClearAttendance wipes the attendance log on the device. Requires
// confirm=true; the records are gone for good.
func (h *Handlers) ClearAttendance(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "device")
	confirm, err := boolParam(r, "confirm", false)
	if err != nil {
		ErrorWithStatus(w, http.StatusBadRequest, err.Error())
		return
	}
	if !confirm {
		ErrorWithStatus(w, http.StatusBadRequest,
			"clearing attendance is irreversible; pass confirm=true")
		return
	}
	if err := h.svc.ClearAttendance(r.Context(), key); err != nil {
		Error(w, err)
		return
	}
	OK(w, map[string]any{"device": key, "cleared": true})
}
