package api

import (
	"errors"
	"net/http"

	"github.com/lp-portfolio/internal/session"
)

// handleGetSession handles GET /api/session
func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	if s.session == nil {
		respondError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Wallet session is not enabled", nil)
		return
	}
	respondJSON(w, http.StatusOK, s.session.State())
}

// handleSessionEvent handles POST /api/session/events
func (s *Server) handleSessionEvent(w http.ResponseWriter, r *http.Request) {
	if s.session == nil {
		respondError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, "Wallet session is not enabled", nil)
		return
	}

	var event session.Event
	if err := parseJSONBody(r, &event); err != nil {
		respondError(w, http.StatusBadRequest, ErrCodeInvalidInput, "Invalid request body", nil)
		return
	}

	msg, err := session.ParseEvent(event)
	if err != nil {
		respondServiceError(w, err)
		return
	}

	if err := s.session.Send(r.Context(), msg); err != nil {
		if errors.Is(err, session.ErrNotRunning) {
			respondError(w, http.StatusServiceUnavailable, ErrCodeServiceUnavailable, err.Error(), nil)
			return
		}
		respondServiceError(w, err)
		return
	}

	respondJSON(w, http.StatusAccepted, map[string]string{
		"status": "accepted",
		"type":   event.Type,
	})
}
