package provider

import (
	"testing"

	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atrium-ai/atrium/pkg/types"
)

func callEvent(id, name string, args map[string]any) *types.Event {
	return &types.Event{
		Author: "orchestrator",
		Content: &types.Content{
			Role: "model",
			Parts: []types.Part{
				{FunctionCall: &types.FunctionCall{ID: id, Name: name, Args: args}},
			},
		},
	}
}

func responseEvent(id, name string, response any) *types.Event {
	return &types.Event{
		Author: "orchestrator",
		Content: &types.Content{
			Role: "tool",
			Parts: []types.Part{
				{FunctionResponse: &types.FunctionResponse{ID: id, Name: name, Response: response}},
			},
		},
	}
}

func TestPlainConversation(t *testing.T) {
	events := []*types.Event{
		types.NewTextEvent("user", "user", "hi"),
		types.NewTextEvent("orchestrator", "model", "hello"),
	}

	messages := ToBackendMessages(events)
	require.Len(t, messages, 2)
	assert.Equal(t, schema.User, messages[0].Role)
	assert.Equal(t, "hi", messages[0].Content)
	assert.Equal(t, schema.Assistant, messages[1].Role)
	assert.Equal(t, "hello", messages[1].Content)
}

func TestToolCallRoundTrip(t *testing.T) {
	events := []*types.Event{
		types.NewTextEvent("user", "user", "search for weather"),
		callEvent("call_1", "web_search", map[string]any{"query": "weather"}),
		responseEvent("call_1", "web_search", map[string]any{"results": []any{"sunny"}}),
		types.NewTextEvent("orchestrator", "model", "It is sunny."),
	}

	messages := ToBackendMessages(events)
	require.Len(t, messages, 4)

	assistant := messages[1]
	require.Len(t, assistant.ToolCalls, 1)
	assert.Equal(t, "call_1", assistant.ToolCalls[0].ID)
	assert.Equal(t, "web_search", assistant.ToolCalls[0].Function.Name)
	assert.JSONEq(t, `{"query":"weather"}`, assistant.ToolCalls[0].Function.Arguments)

	tool := messages[2]
	assert.Equal(t, schema.Tool, tool.Role)
	assert.Equal(t, "call_1", tool.ToolCallID)
	assert.JSONEq(t, `{"results":["sunny"]}`, tool.Content)
}

func TestMissingCallIDUsesSentinel(t *testing.T) {
	events := []*types.Event{
		callEvent("", "web_search", map[string]any{"query": "q"}),
		responseEvent("", "web_search", "ok"),
	}

	messages := ToBackendMessages(events)
	require.Len(t, messages, 2)
	assert.Equal(t, "call_unknown", messages[0].ToolCalls[0].ID)
	assert.Equal(t, "call_unknown", messages[1].ToolCallID)
}

func TestToolResultsTakePrecedence(t *testing.T) {
	// A single event carrying both a result and text emits only the result.
	ev := &types.Event{
		Author: "orchestrator",
		Content: &types.Content{
			Role: "tool",
			Parts: []types.Part{
				{Text: "stray"},
				{FunctionResponse: &types.FunctionResponse{ID: "call_1", Name: "t", Response: "done"}},
			},
		},
	}

	messages := ToBackendMessages([]*types.Event{ev})
	require.Len(t, messages, 1)
	assert.Equal(t, schema.Tool, messages[0].Role)
}

func TestErrorResultEncodesAsString(t *testing.T) {
	events := []*types.Event{
		responseEvent("call_1", "gmail_search", types.ToolError("gmail not connected")),
	}

	messages := ToBackendMessages(events)
	require.Len(t, messages, 1)
	assert.Equal(t, "Error: gmail not connected", messages[0].Content)
}

func TestRepairDropsDanglingCallWithoutText(t *testing.T) {
	events := []*types.Event{
		types.NewTextEvent("user", "user", "hi"),
		callEvent("call_lost", "web_search", map[string]any{"query": "q"}),
		types.NewTextEvent("orchestrator", "model", "answer"),
	}

	messages := ToBackendMessages(events)
	require.Len(t, messages, 2)
	for _, msg := range messages {
		assert.Empty(t, msg.ToolCalls)
	}
}

func TestRepairKeepsTextOfDanglingCall(t *testing.T) {
	ev := callEvent("call_lost", "web_search", map[string]any{"query": "q"})
	ev.Content.Parts = append([]types.Part{{Text: "let me check"}}, ev.Content.Parts...)

	messages := ToBackendMessages([]*types.Event{ev})
	require.Len(t, messages, 1)
	assert.Equal(t, schema.Assistant, messages[0].Role)
	assert.Equal(t, "let me check", messages[0].Content)
	assert.Empty(t, messages[0].ToolCalls)
}

func TestRepairKeepsAnsweredFiltersUnanswered(t *testing.T) {
	ev := &types.Event{
		Author: "orchestrator",
		Content: &types.Content{
			Role: "model",
			Parts: []types.Part{
				{FunctionCall: &types.FunctionCall{ID: "call_a", Name: "one", Args: map[string]any{}}},
				{FunctionCall: &types.FunctionCall{ID: "call_b", Name: "two", Args: map[string]any{}}},
			},
		},
	}
	events := []*types.Event{ev, responseEvent("call_a", "one", "ok")}

	messages := ToBackendMessages(events)
	require.Len(t, messages, 2)
	require.Len(t, messages[0].ToolCalls, 1)
	assert.Equal(t, "call_a", messages[0].ToolCalls[0].ID)
}

func TestHydratedHistoryReconciles(t *testing.T) {
	// Text-only events, as produced by chat-record hydration.
	events := []*types.Event{
		types.NewTextEvent("user", "user", "hi"),
		types.NewTextEvent("model", "model", "hello"),
	}

	messages := ToBackendMessages(events)
	require.Len(t, messages, 2)
	assert.Equal(t, schema.User, messages[0].Role)
	assert.Equal(t, "hi", messages[0].Content)
	assert.Equal(t, schema.Assistant, messages[1].Role)
	assert.Equal(t, "hello", messages[1].Content)
}

func TestEmptyAndNilEventsProduceNothing(t *testing.T) {
	events := []*types.Event{
		nil,
		{Author: "user"},
		{Author: "user", Content: &types.Content{Role: "user"}},
		types.NewTextEvent("user", "user", ""),
	}

	assert.Empty(t, ToBackendMessages(events))
}
