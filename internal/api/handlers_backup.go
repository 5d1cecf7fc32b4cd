package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

type runBackupRequest struct {
	IncludeAttendance *bool `json:"include_attendance"`
}

// RunBackup snapshots one device (users, templates, optionally
// attendance) into object storage.
func (h *Handlers) RunBackup(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "device")

	var req runBackupRequest
	if err := decodeBody(r, &req); err != nil {
		ErrorWithStatus(w, http.StatusBadRequest, err.Error())
		return
	}
	includeAttendance := true
	if req.IncludeAttendance != nil {
		includeAttendance = *req.IncludeAttendance
	}

	result, err := h.svc.RunBackup(r.Context(), key, includeAttendance)
	if err != nil {
		Error(w, err)
		return
	}
	OK(w, result)
}

// ListBackups answers stored backups, newest first, optionally filtered
// by the device query parameter.
func (h *Handlers) ListBackups(w http.ResponseWriter, r *http.Request) {
	deviceKey := r.URL.Query().Get("device")

	backups, err := h.svc.ListBackups(r.Context(), deviceKey)
	if err != nil {
		Error(w, err)
		return
	}
	OK(w, map[string]any{
		"count":   len(backups),
		"backups": backups,
	})
}

type restoreRequest struct {
	DryRun       *bool  `json:"dry_run"`
	TargetDevice string `json:"target_device"`
}

// RestoreBackup pushes a stored backup back onto a device. The object key
// is the wildcard remainder of the path. dry_run defaults to true; an
// empty target restores to the backup's own device.
func (h *Handlers) RestoreBackup(w http.ResponseWriter, r *http.Request) {
	s3Key := chi.URLParam(r, "*")
	if s3Key == "" {
		ErrorWithStatus(w, http.StatusBadRequest, "missing backup key")
		return
	}

	var req restoreRequest
	if err := decodeBody(r, &req); err != nil {
		ErrorWithStatus(w, http.StatusBadRequest, err.Error())
		return
	}
	dryRun := true
	if req.DryRun != nil {
		dryRun = *req.DryRun
	}

	result, err := h.svc.RestoreBackup(r.Context(), s3Key, req.TargetDevice, dryRun)
	if err != nil {
		Error(w, err)
		return
	}
	OK(w, result)
}
