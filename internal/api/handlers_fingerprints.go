package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// ListFingerprints answers the stored templates for one user. Template
// bytes travel base64-encoded.
func (h *Handlers) ListFingerprints(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "device")
	userID := chi.URLParam(r, "user_id")

	prints, err := h.svc.ListFingerprints(r.Context(), key, userID)
	if err != nil {
		Error(w, err)
		return
	}
	OK(w, map[string]any{
		"device":       key,
		"user_id":      userID,
		"count":        len(prints),
		"fingerprints": prints,
	})
}

// CountFingerprints answers the total template count plus the per-user
// breakdown.
func (h *Handlers) CountFingerprints(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "device")

	total, err := h.svc.CountFingerprints(r.Context(), key)
	if err != nil {
		Error(w, err)
		return
	}
	summary, err := h.svc.FingerprintSummary(r.Context(), key)
	if err != nil {
		Error(w, err)
		return
	}
	OK(w, map[string]any{
		"device":          key,
		"total":           total,
		"users_with_fp":   len(summary),
		"per_user_counts": summary,
	})
}
