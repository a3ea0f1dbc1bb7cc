package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/atrium-ai/atrium/internal/history"
	"github.com/atrium-ai/atrium/internal/logging"
	"github.com/atrium-ai/atrium/pkg/types"
)

// ChatRequest is the body of POST /api/chat.
type ChatRequest struct {
	UserID    string `json:"user_id"`
	Message   string `json:"message"`
	SessionID string `json:"session_id,omitempty"`
}

// handleChat runs one streaming chat turn. The response is an SSE
// stream of {"content"} frames, then a {"session_id"} frame, then the
// [DONE] sentinel. Errors surface as a readable content frame on the
// same stream, never as a bare disconnect.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body")
		return
	}
	if req.UserID == "" || req.Message == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "user_id and message are required")
		return
	}

	sse, err := newSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	w.WriteHeader(http.StatusOK)
	sse.flush()

	sessionID, runErr := s.coordinator.StreamTurn(r.Context(), req.UserID, req.SessionID, req.Message,
		func(chunk string) {
			if err := sse.writeData(map[string]string{"content": chunk}); err != nil {
				logging.Debug().Err(err).Msg("client gone mid-stream")
			}
		})
	if runErr != nil {
		logging.Error().Err(runErr).Str("sessionID", sessionID).Msg("chat turn failed")
		sse.writeData(map[string]string{"content": "Error: " + runErr.Error()})
	}

	if sessionID != "" {
		sse.writeData(map[string]string{"session_id": sessionID})
	}
	sse.writeRaw("[DONE]")
}

// handleHistory returns the user's chat records, newest first, without
// message bodies.
func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "user_id is required")
		return
	}

	records, err := s.history.ListRecords(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"sessions": records})
}

// handleSessionHistory returns one chat record with its messages.
func (s *Server) handleSessionHistory(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	sessionID := chi.URLParam(r, "sessionID")
	if userID == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "user_id is required")
		return
	}

	record, err := s.history.GetRecord(r.Context(), userID, sessionID)
	if errors.Is(err, history.ErrNotFound) {
		writeError(w, http.StatusNotFound, ErrCodeNotFound, "session not found")
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, record)
}

// handleDeleteSession removes one chat record.
func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	sessionID := chi.URLParam(r, "sessionID")
	if userID == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "user_id is required")
		return
	}

	if err := s.history.DeleteRecord(r.Context(), userID, sessionID); err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	writeSuccess(w)
}

// handleListConnections returns the names of the services the user has
// connected. Tokens never leave the server.
func (s *Server) handleListConnections(w http.ResponseWriter, r *http.Request) {
	userID := r.URL.Query().Get("user_id")
	if userID == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "user_id is required")
		return
	}

	bundle, err := s.history.GetUserTokens(r.Context(), userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}

	services := make([]string, 0, len(bundle))
	for service := range bundle {
		services = append(services, service)
	}
	writeJSON(w, http.StatusOK, map[string]any{"connections": services})
}

// handleSetConnection stores a service token for a user.
func (s *Server) handleSetConnection(w http.ResponseWriter, r *http.Request) {
	service := chi.URLParam(r, "service")

	var req struct {
		UserID string             `json:"user_id"`
		Token  types.ServiceToken `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "invalid request body")
		return
	}
	if req.UserID == "" || req.Token.AccessToken == "" {
		writeError(w, http.StatusBadRequest, ErrCodeInvalidRequest, "user_id and token.accessToken are required")
		return
	}

	if err := s.history.SetUserToken(r.Context(), req.UserID, service, &req.Token); err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	writeSuccess(w)
}

// handleHealth reports liveness.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"time":   time.Now().UTC().Format(time.RFC3339),
	})
}
