package session

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atrium-ai/atrium/pkg/types"
)

func TestEncodeDecodeTextEvent(t *testing.T) {
	ev := types.NewTextEvent("orchestrator", "model", "hello there")

	data, err := EncodeEvent(ev)
	require.NoError(t, err)

	decoded, err := DecodeEvent(data)
	require.NoError(t, err)
	assert.Equal(t, "orchestrator", decoded.Author)
	assert.Equal(t, "model", decoded.Content.Role)
	assert.Equal(t, "hello there", decoded.Text())
}

func TestEncodePartUnionTags(t *testing.T) {
	ev := &types.Event{
		Author: "orchestrator",
		Content: &types.Content{
			Role: "model",
			Parts: []types.Part{
				{FunctionCall: &types.FunctionCall{
					ID:   "call_1",
					Name: "web_search",
					Args: map[string]any{"query": "weather"},
				}},
			},
		},
	}

	data, err := EncodeEvent(ev)
	require.NoError(t, err)

	// Only the present union member appears in the record.
	var raw map[string]any
	require.NoError(t, json.Unmarshal(data, &raw))
	parts := raw["content"].(map[string]any)["parts"].([]any)
	part := parts[0].(map[string]any)
	assert.Contains(t, part, "function_call")
	assert.NotContains(t, part, "text")
	assert.NotContains(t, part, "function_response")
}

func TestEncodeNormalizesToolResponse(t *testing.T) {
	ev := &types.Event{
		Author: "data_agent",
		Content: &types.Content{
			Role: "tool",
			Parts: []types.Part{
				{FunctionResponse: &types.FunctionResponse{
					ID:       "call_1",
					Name:     "gmail_search",
					Response: types.ToolError("gmail not connected"),
				}},
			},
		},
	}

	data, err := EncodeEvent(ev)
	require.NoError(t, err)

	decoded, err := DecodeEvent(data)
	require.NoError(t, err)
	resps := decoded.FunctionResponses()
	require.Len(t, resps, 1)
	assert.Equal(t, "Error: gmail not connected", resps[0].Response)
}

func TestEncodeUnserializableResponse(t *testing.T) {
	ev := &types.Event{
		Author: "data_agent",
		Content: &types.Content{
			Role: "tool",
			Parts: []types.Part{
				{FunctionResponse: &types.FunctionResponse{
					ID:       "call_2",
					Name:     "odd_tool",
					Response: make(chan int),
				}},
			},
		},
	}

	data, err := EncodeEvent(ev)
	require.NoError(t, err)

	// The payload is reduced to a string; the event itself survives.
	decoded, err := DecodeEvent(data)
	require.NoError(t, err)
	_, ok := decoded.FunctionResponses()[0].Response.(string)
	assert.True(t, ok)
}

func TestDecodeEventsRejectsMalformed(t *testing.T) {
	_, err := decodeEvents("{not json]")
	assert.Error(t, err)
}

func TestAppendEncodedPreservesOrder(t *testing.T) {
	first, err := appendEncoded("[]", types.NewTextEvent("user", "user", "one"))
	require.NoError(t, err)
	second, err := appendEncoded(first, types.NewTextEvent("orchestrator", "model", "two"))
	require.NoError(t, err)

	events, err := decodeEvents(second)
	require.NoError(t, err)
	require.Len(t, events, 2)
	assert.Equal(t, "one", events[0].Text())
	assert.Equal(t, "two", events[1].Text())
}
