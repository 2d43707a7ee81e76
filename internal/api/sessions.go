package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ashureev/wsdeck/internal/domain"
	"github.com/go-chi/chi/v5"
)

// sessionView is a session without its log, plus the log length.
type sessionView struct {
	domain.SessionInfo
	MessageCount int `json:"messageCount"`
}

func viewOf(info domain.SessionInfo) sessionView {
	v := sessionView{SessionInfo: info, MessageCount: len(info.Messages)}
	v.Messages = nil
	return v
}

type createSessionRequest struct {
	Endpoint string `json:"url"`
	Name     string `json:"name"`
}

type renameSessionRequest struct {
	Name string `json:"name"`
}

type sendMessageRequest struct {
	Content string `json:"content"`
}

type setActiveRequest struct {
	ID *string `json:"id"`
}

// RegisterRoutes registers session routes.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Route("/api", func(r chi.Router) {
		r.Get("/sessions", h.ListSessions)
		r.Post("/sessions", h.CreateSession)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", h.GetSession)
			r.Patch("/", h.RenameSession)
			r.Post("/connect", h.Connect)
			r.Post("/disconnect", h.Disconnect)
			r.Get("/messages", h.ListMessages)
			r.Post("/messages", h.SendMessage)
		})
		r.Get("/active", h.GetActive)
		r.Put("/active", h.SetActive)
		r.Get("/journal", h.ListJournal)
		r.Get("/journal/{id}", h.GetJournal)
	})
}

// ListSessions returns every session in creation order.
func (h *Handler) ListSessions(w http.ResponseWriter, r *http.Request) {
	all := h.sessions.All()
	out := make([]sessionView, 0, len(all))
	for _, s := range all {
		out = append(out, viewOf(s.Snapshot()))
	}
	JSON(w, http.StatusOK, out)
}

// CreateSession registers a new disconnected session.
func (h *Handler) CreateSession(w http.ResponseWriter, r *http.Request) {
	var req createSessionRequest
	if err := decode(r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid_request")
		return
	}
	if strings.TrimSpace(req.Endpoint) == "" {
		Error(w, http.StatusBadRequest, "url_required")
		return
	}

	id := h.sessions.CreateSession(req.Endpoint, req.Name)
	JSON(w, http.StatusCreated, map[string]string{"id": id})
}

// GetSession returns one session including its log.
func (h *Handler) GetSession(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sessions.Get(chi.URLParam(r, "id"))
	if !ok {
		Error(w, http.StatusNotFound, "session_not_found")
		return
	}
	JSON(w, http.StatusOK, s.Snapshot())
}

// RenameSession changes a session's display name.
func (h *Handler) RenameSession(w http.ResponseWriter, r *http.Request) {
	var req renameSessionRequest
	if err := decode(r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid_request")
		return
	}

	id := chi.URLParam(r, "id")
	if !h.sessions.RenameSession(id, req.Name) {
		Error(w, http.StatusNotFound, "session_not_found")
		return
	}
	s, _ := h.sessions.Get(id)
	JSON(w, http.StatusOK, viewOf(s.Snapshot()))
}

// Connect opens the session's connection and waits for the outcome.
func (h *Handler) Connect(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	attempt := h.ctrl.Connect(id)

	ctx, cancel := context.WithTimeout(r.Context(), h.connectWait)
	defer cancel()

	if err := attempt.Wait(ctx); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			Error(w, http.StatusGatewayTimeout, "connect_pending")
			return
		}
		slog.Info("Connect failed", "session_id", id, "error", err)
		Error(w, statusForError(err), err.Error())
		return
	}

	s, ok := h.sessions.Get(id)
	if !ok {
		Error(w, http.StatusNotFound, "session_not_found")
		return
	}
	JSON(w, http.StatusOK, viewOf(s.Snapshot()))
}

// Disconnect closes the session's connection. Unknown ids are a no-op.
func (h *Handler) Disconnect(w http.ResponseWriter, r *http.Request) {
	h.ctrl.Disconnect(chi.URLParam(r, "id"))
	w.WriteHeader(http.StatusNoContent)
}

// ListMessages returns the session's live log.
func (h *Handler) ListMessages(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sessions.Get(chi.URLParam(r, "id"))
	if !ok {
		Error(w, http.StatusNotFound, "session_not_found")
		return
	}
	msgs := s.Messages()
	if msgs == nil {
		msgs = []domain.Message{}
	}
	JSON(w, http.StatusOK, msgs)
}

// SendMessage transmits content. Sends that cannot go out are dropped, not failed.
func (h *Handler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendMessageRequest
	if err := decode(r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid_request")
		return
	}

	sent := h.ctrl.SendMessage(chi.URLParam(r, "id"), req.Content)
	JSON(w, http.StatusAccepted, map[string]bool{"sent": sent})
}

// GetActive returns the active session, or 204 when there is none.
func (h *Handler) GetActive(w http.ResponseWriter, r *http.Request) {
	s, ok := h.sessions.Active()
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	JSON(w, http.StatusOK, viewOf(s.Snapshot()))
}

// SetActive moves the active pointer. A null or empty id clears it.
func (h *Handler) SetActive(w http.ResponseWriter, r *http.Request) {
	var req setActiveRequest
	if err := decode(r, &req); err != nil {
		Error(w, http.StatusBadRequest, "invalid_request")
		return
	}

	id := ""
	if req.ID != nil {
		id = *req.ID
	}
	h.sessions.SetActive(id)
	w.WriteHeader(http.StatusNoContent)
}

// ListJournal returns archived session metadata, oldest first.
func (h *Handler) ListJournal(w http.ResponseWriter, r *http.Request) {
	if h.journal == nil {
		Error(w, http.StatusNotFound, "journal_disabled")
		return
	}

	sessions, err := h.journal.ListSessions(r.Context())
	if err != nil {
		slog.Error("Failed to list journal sessions", "error", err)
		Error(w, http.StatusInternalServerError, "journal_unavailable")
		return
	}
	if sessions == nil {
		sessions = []domain.SessionInfo{}
	}
	JSON(w, http.StatusOK, sessions)
}

// GetJournal returns the archived transcript for a session.
func (h *Handler) GetJournal(w http.ResponseWriter, r *http.Request) {
	if h.journal == nil {
		Error(w, http.StatusNotFound, "journal_disabled")
		return
	}

	id := chi.URLParam(r, "id")
	msgs, err := h.journal.ListMessages(r.Context(), id)
	if err != nil {
		slog.Error("Failed to read journal", "session_id", id, "error", err)
		Error(w, http.StatusInternalServerError, "journal_unavailable")
		return
	}
	if msgs == nil {
		msgs = []domain.Message{}
	}
	JSON(w, http.StatusOK, msgs)
}
