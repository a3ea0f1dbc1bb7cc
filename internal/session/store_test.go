package session

import (
	"context"
	"database/sql/driver"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atrium-ai/atrium/pkg/types"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store
}

func TestCreateAndGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx, "agents", "u1", "s1")
	require.NoError(t, err)
	assert.Equal(t, "agents:u1:s1", sess.Key())
	assert.Empty(t, sess.Events)

	got, err := store.Get(ctx, "agents", "u1", "s1")
	require.NoError(t, err)
	assert.Equal(t, sess.Key(), got.Key())
}

func TestCreateIsIdempotent(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx, "agents", "u1", "s1")
	require.NoError(t, err)
	require.NoError(t, store.AppendEvent(ctx, sess, types.NewTextEvent("user", "user", "hi")))

	// A second create returns the existing state, not an empty session.
	again, err := store.Create(ctx, "agents", "u1", "s1")
	require.NoError(t, err)
	require.Len(t, again.Events, 1)
	assert.Equal(t, "hi", again.Events[0].Text())
}

func TestGetMissingSession(t *testing.T) {
	store := newTestStore(t)

	_, err := store.Get(context.Background(), "agents", "u1", "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestAppendEventOrdering(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx, "agents", "u1", "s1")
	require.NoError(t, err)

	require.NoError(t, store.AppendEvent(ctx, sess, types.NewTextEvent("user", "user", "question")))
	require.NoError(t, store.AppendEvent(ctx, sess, &types.Event{
		Author: "orchestrator",
		Content: &types.Content{
			Role: "model",
			Parts: []types.Part{
				{FunctionCall: &types.FunctionCall{ID: "call_1", Name: "web_search", Args: map[string]any{"query": "q"}}},
			},
		},
	}))
	require.NoError(t, store.AppendEvent(ctx, sess, &types.Event{
		Author: "orchestrator",
		Content: &types.Content{
			Role: "tool",
			Parts: []types.Part{
				{FunctionResponse: &types.FunctionResponse{ID: "call_1", Name: "web_search", Response: map[string]any{"hits": []any{"a"}}}},
			},
		},
	}))

	// The in-memory handle tracks each append.
	assert.Len(t, sess.Events, 3)

	got, err := store.Get(ctx, "agents", "u1", "s1")
	require.NoError(t, err)
	require.Len(t, got.Events, 3)
	assert.Equal(t, "question", got.Events[0].Text())
	require.Len(t, got.Events[1].FunctionCalls(), 1)
	assert.Equal(t, "call_1", got.Events[1].FunctionCalls()[0].ID)
	require.Len(t, got.Events[2].FunctionResponses(), 1)
}

func TestAppendToDeletedSession(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx, "agents", "u1", "s1")
	require.NoError(t, err)
	require.NoError(t, store.Delete(ctx, "agents", "u1", "s1"))

	err = store.AppendEvent(ctx, sess, types.NewTextEvent("user", "user", "hi"))
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteAbsentSessionIsNoop(t *testing.T) {
	store := newTestStore(t)
	assert.NoError(t, store.Delete(context.Background(), "agents", "u1", "never-existed"))
}

func TestListSessions(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	for _, id := range []string{"s1", "s2"} {
		_, err := store.Create(ctx, "agents", "u1", id)
		require.NoError(t, err)
	}
	_, err := store.Create(ctx, "agents", "other-user", "s3")
	require.NoError(t, err)

	sessions, err := store.List(ctx, "agents", "u1")
	require.NoError(t, err)
	assert.Len(t, sessions, 2)
}

func TestGetRecoversFromClosedPool(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	_, err := store.Create(ctx, "agents", "u1", "s1")
	require.NoError(t, err)

	// Kill the pool out from under the store; the retry path reopens it.
	store.conn().Close()

	got, err := store.Get(ctx, "agents", "u1", "s1")
	require.NoError(t, err)
	assert.Equal(t, "agents:u1:s1", got.Key())
}

func TestIsTransient(t *testing.T) {
	assert.True(t, isTransient(driver.ErrBadConn))
	assert.True(t, isTransient(errors.New("sql: database is closed")))
	assert.True(t, isTransient(errors.New("database is locked")))
	assert.False(t, isTransient(nil))
	assert.False(t, isTransient(errors.New("UNIQUE constraint failed")))
}
