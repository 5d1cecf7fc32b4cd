package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/abcfood/fingerprint-bridge/pkg/device"
	"github.com/abcfood/fingerprint-bridge/pkg/service"
)

// Response is the envelope every endpoint answers with.
type Response struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Data      any       `json:"data,omitempty"`
	Error     string    `json:"error,omitempty"`
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		http.Error(w, `{"status":"error","error":"failed to encode response"}`,
			http.StatusInternalServerError)
	}
}

// OK answers 200 with data in the envelope.
func OK(w http.ResponseWriter, data any) {
	JSON(w, http.StatusOK, Response{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Data:      data,
	})
}

// Error answers an error envelope with the status mapped from the error
// kind: unknown device or user 404, unconfigured peripheral 503, anything
// else 500. An unreachable device is a plain 500 here; only the device
// detail endpoint reports offline as 503.
func Error(w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, device.ErrUnknownDevice), errors.Is(err, device.ErrUnknownUser):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrNotConfigured):
		status = http.StatusServiceUnavailable
	}
	ErrorWithStatus(w, status, err.Error())
}

// ErrorWithStatus answers an error envelope with an explicit status.
func ErrorWithStatus(w http.ResponseWriter, status int, msg string) {
	JSON(w, status, Response{
		Status:    "error",
		Timestamp: time.Now().UTC(),
		Error:     msg,
	})
}
