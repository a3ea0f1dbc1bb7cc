package session

import (
	"context"
	"errors"
	"strings"

	"github.com/atrium-ai/atrium/internal/event"
	"github.com/atrium-ai/atrium/internal/logging"
	"github.com/atrium-ai/atrium/pkg/types"
)

// Runner executes one agent turn against a session, emitting events as
// they are produced. Implementations append their own events (user
// message, tool calls, tool responses, model output) to the session
// store; the coordinator handles the secondary chat record.
type Runner interface {
	Run(ctx context.Context, sess *types.Session, message string, emit func(*types.Event)) error
}

// HistoryStore is the slice of chat-record storage the coordinator
// needs: record lifecycle and per-turn message appends.
type HistoryStore interface {
	CreateChatSession(ctx context.Context, userID, title string) (*types.ChatRecord, error)
	GetRecord(ctx context.Context, userID, sessionID string) (*types.ChatRecord, error)
	AddMessage(ctx context.Context, userID, sessionID, role, content string) error
}

// Coordinator drives one streaming conversation turn end to end:
// session resolution, hydration from the chat record when the event log
// is empty, running the agent, and dual persistence of the outcome.
type Coordinator struct {
	appName string
	store   *Store
	history HistoryStore
	runner  Runner
}

func NewCoordinator(appName string, store *Store, history HistoryStore, runner Runner) *Coordinator {
	return &Coordinator{appName: appName, store: store, history: history, runner: runner}
}

const titleLimit = 30

// deriveTitle builds a chat title from the first message of a new
// conversation.
func deriveTitle(message string) string {
	runes := []rune(message)
	if len(runes) <= titleLimit {
		return message
	}
	return string(runes[:titleLimit]) + "..."
}

// StreamTurn runs one turn of the conversation identified by sessionID
// for userID. An empty or "null" sessionID starts a new conversation.
// Each assistant text delta is passed to emit as it arrives. Returns
// the resolved session ID.
//
// Persistence on completion: the assistant's accumulated text is written
// to the chat record; the runner has already appended the structured
// events to the session log. If the context is cancelled mid-turn, the
// partial text produced so far is still persisted.
func (c *Coordinator) StreamTurn(ctx context.Context, userID, sessionID, message string, emit func(string)) (string, error) {
	newConversation := sessionID == "" || sessionID == "null"
	if newConversation {
		record, err := c.history.CreateChatSession(ctx, userID, deriveTitle(message))
		if err != nil {
			return "", err
		}
		sessionID = record.ID
		event.Publish(event.Event{Type: event.SessionCreated, Data: event.SessionCreatedData{
			SessionID: sessionID,
			UserID:    userID,
			Title:     record.Title,
		}})
	}

	sess, err := c.resolveSession(ctx, userID, sessionID)
	if err != nil {
		event.Publish(event.Event{Type: event.SessionError, Data: event.SessionErrorData{SessionID: sessionID, Message: err.Error()}})
		return sessionID, err
	}

	// Record the user message after hydration so it is not replayed twice.
	if err := c.history.AddMessage(ctx, userID, sessionID, "user", message); err != nil {
		logging.Warn().Err(err).Str("sessionID", sessionID).Msg("failed to record user message")
	}

	event.Publish(event.Event{Type: event.TurnStarted, Data: event.TurnStartedData{SessionID: sessionID, UserID: userID}})

	var reply strings.Builder
	runErr := c.runner.Run(ctx, sess, message, func(ev *types.Event) {
		text := ev.Text()
		if text == "" {
			return
		}
		reply.WriteString(text)
		emit(text)
		event.Publish(event.Event{Type: event.TurnDelta, Data: event.TurnDeltaData{SessionID: sessionID, Content: text}})
	})

	switch {
	case runErr == nil:
		c.persistReply(ctx, userID, sessionID, reply.String())
		event.Publish(event.Event{Type: event.TurnCompleted, Data: event.TurnCompletedData{
			SessionID: sessionID,
			UserID:    userID,
			Length:    reply.Len(),
		}})
	case errors.Is(runErr, context.Canceled) || errors.Is(runErr, context.DeadlineExceeded):
		// Client went away mid-stream. Keep whatever was produced.
		if reply.Len() > 0 {
			c.persistReply(context.WithoutCancel(ctx), userID, sessionID, reply.String())
		}
	default:
		event.Publish(event.Event{Type: event.SessionError, Data: event.SessionErrorData{SessionID: sessionID, Message: runErr.Error()}})
	}

	return sessionID, runErr
}

// persistReply records the assistant's text in the chat record.
func (c *Coordinator) persistReply(ctx context.Context, userID, sessionID, text string) {
	if text == "" {
		return
	}
	if err := c.history.AddMessage(ctx, userID, sessionID, "assistant", text); err != nil {
		logging.Error().Err(err).Str("sessionID", sessionID).Msg("failed to record assistant reply")
	}
}

// resolveSession fetches or creates the event-log session and, when the
// log is empty but the chat record has prior messages, rebuilds the log
// from the record so the model sees the earlier conversation.
func (c *Coordinator) resolveSession(ctx context.Context, userID, sessionID string) (*types.Session, error) {
	sess, err := c.store.Get(ctx, c.appName, userID, sessionID)
	if errors.Is(err, ErrNotFound) {
		sess, err = c.store.Create(ctx, c.appName, userID, sessionID)
	}
	if err != nil {
		return nil, err
	}

	if len(sess.Events) > 0 {
		return sess, nil
	}

	record, err := c.history.GetRecord(ctx, userID, sessionID)
	if err != nil {
		// No prior record to hydrate from; a fresh session is fine.
		return sess, nil
	}

	hydrated := 0
	for _, msg := range record.Messages {
		if msg.Content == "" {
			continue
		}
		author, role := "user", "user"
		if msg.Role != "user" {
			author, role = "model", "model"
		}
		ev := types.NewTextEvent(author, role, msg.Content)
		if err := c.store.AppendEvent(ctx, sess, ev); err != nil {
			return nil, err
		}
		hydrated++
	}
	if hydrated > 0 {
		logging.Info().
			Str("sessionID", sessionID).
			Int("messages", hydrated).
			Msg("hydrated session from chat record")
	}
	return sess, nil
}
