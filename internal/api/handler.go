// Package api provides HTTP handlers for the wsdeck API.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/ashureev/wsdeck/internal/session"
	"github.com/ashureev/wsdeck/internal/store"
	"github.com/containerd/errdefs"
)

// Handler provides common handler utilities.
type Handler struct {
	sessions    *session.Store
	ctrl        *session.Controller
	journal     store.Journal
	connectWait time.Duration
}

// NewHandler creates a new Handler. journal may be nil when archiving is disabled.
func NewHandler(sessions *session.Store, ctrl *session.Controller, journal store.Journal, connectWait time.Duration) *Handler {
	if connectWait <= 0 {
		connectWait = 20 * time.Second
	}
	return &Handler{
		sessions:    sessions,
		ctrl:        ctrl,
		journal:     journal,
		connectWait: connectWait,
	}
}

// JSON writes a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		http.Error(w, `{"error": "failed to encode response"}`, http.StatusInternalServerError)
	}
}

// Error writes a JSON error response.
func Error(w http.ResponseWriter, status int, message string) {
	JSON(w, status, map[string]string{"error": message})
}

// statusForError maps a session or transport error to an HTTP status.
func statusForError(err error) int {
	switch {
	case errdefs.IsNotFound(err):
		return http.StatusNotFound
	case errdefs.IsInvalidArgument(err):
		return http.StatusBadRequest
	case errdefs.IsUnavailable(err), errors.Is(err, session.ErrConnectionClosed):
		return http.StatusBadGateway
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

func decode(r *http.Request, v interface{}) error {
	defer func() { _ = r.Body.Close() }()
	return json.NewDecoder(r.Body).Decode(v)
}
