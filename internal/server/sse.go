package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/atrium-ai/atrium/internal/event"
	"github.com/atrium-ai/atrium/internal/logging"
)

// SSEHeartbeatInterval is the interval for SSE heartbeat comments on
// the event-bus endpoint.
const SSEHeartbeatInterval = 30 * time.Second

// sseWriter wraps http.ResponseWriter for SSE.
type sseWriter struct {
	w       http.ResponseWriter
	flusher http.Flusher
	rc      *http.ResponseController
}

func newSSEWriter(w http.ResponseWriter) (*sseWriter, error) {
	rc := http.NewResponseController(w)
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, fmt.Errorf("streaming not supported")
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	return &sseWriter{w: w, flusher: flusher, rc: rc}, nil
}

// writeData writes one `data:` frame with a JSON payload.
func (s *sseWriter) writeData(payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	return s.writeRaw(string(data))
}

// writeEvent writes an `id:` line followed by a JSON `data:` frame.
// Clients can resume ordering from the last seen id.
func (s *sseWriter) writeEvent(id string, payload any) error {
	data, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	if _, err := fmt.Fprintf(s.w, "id: %s\ndata: %s\n\n", id, data); err != nil {
		return err
	}
	s.flush()
	return nil
}

// writeRaw writes one `data:` frame verbatim. Used for the terminal
// [DONE] sentinel, which is not JSON.
func (s *sseWriter) writeRaw(data string) error {
	if _, err := fmt.Fprintf(s.w, "data: %s\n\n", data); err != nil {
		return err
	}
	s.flush()
	return nil
}

func (s *sseWriter) flush() {
	if err := s.rc.Flush(); err != nil {
		s.flusher.Flush()
	}
}

func (s *sseWriter) writeHeartbeat() {
	fmt.Fprintf(s.w, ": heartbeat\n\n")
	s.flush()
}

// handleEvents streams the internal event bus over SSE, optionally
// filtered to one session via ?session_id=.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	sessionID := r.URL.Query().Get("session_id")

	sse, err := newSSEWriter(w)
	if err != nil {
		writeError(w, http.StatusInternalServerError, ErrCodeInternalError, err.Error())
		return
	}
	w.WriteHeader(http.StatusOK)
	sse.flush()

	events := make(chan event.Event, 10)
	unsub := event.SubscribeAll(func(e event.Event) {
		if sessionID != "" && !eventBelongsToSession(e, sessionID) {
			return
		}
		select {
		case events <- e:
		default:
			logging.Warn().Str("eventType", string(e.Type)).Msg("SSE event dropped: channel full")
		}
	})
	defer unsub()

	ticker := time.NewTicker(SSEHeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case e := <-events:
			frame := map[string]any{"type": e.Type, "properties": e.Data}
			if err := sse.writeEvent(e.ID, frame); err != nil {
				return
			}
		case <-ticker.C:
			sse.writeHeartbeat()
		}
	}
}

// eventBelongsToSession checks if a bus event belongs to a session.
func eventBelongsToSession(e event.Event, sessionID string) bool {
	switch data := e.Data.(type) {
	case event.SessionCreatedData:
		return data.SessionID == sessionID
	case event.SessionDeletedData:
		return data.SessionID == sessionID
	case event.TurnStartedData:
		return data.SessionID == sessionID
	case event.TurnDeltaData:
		return data.SessionID == sessionID
	case event.TurnCompletedData:
		return data.SessionID == sessionID
	case event.ToolStartedData:
		return data.SessionID == sessionID
	case event.ToolCompletedData:
		return data.SessionID == sessionID
	case event.SessionErrorData:
		return data.SessionID == sessionID
	}
	return false
}
