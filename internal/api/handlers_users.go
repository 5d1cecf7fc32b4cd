package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/abcfood/fingerprint-bridge/pkg/device"
	"github.com/abcfood/fingerprint-bridge/pkg/service"
)

// ListUsers answers all user records on one device.
func (h *Handlers) ListUsers(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "device")
	users, err := h.svc.ListUsers(r.Context(), key)
	if err != nil {
		Error(w, err)
		return
	}
	OK(w, map[string]any{
		"device": key,
		"count":  len(users),
		"users":  users,
	})
}

// GetUser answers one user looked up by HRIS user id.
func (h *Handlers) GetUser(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "device")
	user, err := h.svc.GetUser(r.Context(), key, chi.URLParam(r, "user_id"))
	if err != nil {
		Error(w, err)
		return
	}
	OK(w, user)
}

type addUserRequest struct {
	UID       int    `json:"uid"`
	UserID    string `json:"user_id"`
	Name      string `json:"name"`
	Privilege int    `json:"privilege"`
	Password  string `json:"password"`
	Card      int    `json:"card"`
}

// AddUser enrolls a user record on the device.
func (h *Handlers) AddUser(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "device")

	var req addUserRequest
	if err := decodeBody(r, &req); err != nil {
		ErrorWithStatus(w, http.StatusBadRequest, err.Error())
		return
	}
	if req.Name == "" {
		ErrorWithStatus(w, http.StatusBadRequest, "name is required")
		return
	}

	u := device.User{
		UID:       req.UID,
		UserID:    req.UserID,
		Name:      req.Name,
		Privilege: req.Privilege,
		Password:  req.Password,
		Card:      req.Card,
	}
	if err := h.svc.AddUser(r.Context(), key, u); err != nil {
		Error(w, err)
		return
	}
	JSON(w, http.StatusCreated, Response{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Data:      map[string]any{"device": key, "uid": u.UID, "name": u.Name},
	})
}

type updateUserRequest struct {
	Name      *string `json:"name"`
	UserID    *string `json:"user_id"`
	Privilege *int    `json:"privilege"`
	Card      *int    `json:"card"`
}

// UpdateUser rewrites selected fields of an existing user record.
func (h *Handlers) UpdateUser(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "device")
	uid, err := uidParam(chi.URLParam(r, "uid"))
	if err != nil {
		ErrorWithStatus(w, http.StatusBadRequest, err.Error())
		return
	}

	var req updateUserRequest
	if err := decodeBody(r, &req); err != nil {
		ErrorWithStatus(w, http.StatusBadRequest, err.Error())
		return
	}

	upd := service.UserUpdate{
		Name:      req.Name,
		UserID:    req.UserID,
		Privilege: req.Privilege,
		Card:      req.Card,
	}
	if err := h.svc.UpdateUser(r.Context(), key, uid, upd); err != nil {
		Error(w, err)
		return
	}
	OK(w, map[string]any{"device": key, "uid": uid, "updated": true})
}

// DeleteUser removes a user record by uid.
func (h *Handlers) DeleteUser(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "device")
	uid, err := uidParam(chi.URLParam(r, "uid"))
	if err != nil {
		ErrorWithStatus(w, http.StatusBadRequest, err.Error())
		return
	}
	if err := h.svc.DeleteUser(r.Context(), key, uid); err != nil {
		Error(w, err)
		return
	}
	OK(w, map[string]any{"device": key, "uid": uid, "deleted": true})
}

type syncUsersRequest struct {
	DryRun *bool `json:"dry_run"`
}

// SyncUsers diffs the HRIS employee list against the device and enrolls
// or renames as needed. dry_run defaults to true.
func (h *Handlers) SyncUsers(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "device")

	var req syncUsersRequest
	if err := decodeBody(r, &req); err != nil {
		ErrorWithStatus(w, http.StatusBadRequest, err.Error())
		return
	}
	dryRun := true
	if req.DryRun != nil {
		dryRun = *req.DryRun
	}

	result, err := h.svc.SyncUsersFromHRIS(r.Context(), key, dryRun)
	if err != nil {
		Error(w, err)
		return
	}
	OK(w, result)
}
