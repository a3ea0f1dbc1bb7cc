package memory

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewWithoutKeyIsNil(t *testing.T) {
	assert.Nil(t, New("", ""))
}

func TestNilClientDegrades(t *testing.T) {
	var client *Client
	_, err := client.Add(context.Background(), "fact", nil)
	assert.Error(t, err)
	_, err = client.Search(context.Background(), "fact", 5)
	assert.Error(t, err)
}

func TestAddAndSearch(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		switch r.URL.Path {
		case "/memories":
			var payload map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			assert.Equal(t, "user prefers dark mode", payload["content"])
			json.NewEncoder(w).Encode(map[string]any{"id": "mem-1", "status": "queued"})
		case "/search":
			var payload map[string]any
			require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
			assert.Equal(t, "preferences", payload["q"])
			assert.Equal(t, float64(5), payload["limit"])
			json.NewEncoder(w).Encode(map[string]any{
				"results": []map[string]any{
					{"id": "mem-1", "content": "user prefers dark mode", "score": 0.92},
				},
			})
		default:
			http.NotFound(w, r)
		}
	}))
	defer server.Close()

	client := New("sk-test", server.URL)
	require.NotNil(t, client)

	added, err := client.Add(context.Background(), "user prefers dark mode", nil)
	require.NoError(t, err)
	assert.Equal(t, "mem-1", added.ID)

	results, err := client.Search(context.Background(), "preferences", 0)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "user prefers dark mode", results[0].Content)
	assert.InDelta(t, 0.92, results[0].Score, 0.001)
}

func TestErrorStatusSurfaces(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusUnauthorized)
	}))
	defer server.Close()

	client := New("bad-key", server.URL)
	_, err := client.Add(context.Background(), "fact", nil)
	assert.ErrorContains(t, err, "401")
}
