package agent

import (
	"context"
	"encoding/json"
	"path/filepath"
	"testing"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/atrium-ai/atrium/internal/provider"
	"github.com/atrium-ai/atrium/internal/session"
	"github.com/atrium-ai/atrium/internal/tool"
	"github.com/atrium-ai/atrium/pkg/types"
)

// fakeProvider returns scripted streams, one per completion call.
type fakeProvider struct {
	responses [][]*schema.Message
	requests  []*provider.CompletionRequest
}

func (f *fakeProvider) ID() string                            { return "fake" }
func (f *fakeProvider) ChatModel() model.ToolCallingChatModel { return nil }

func (f *fakeProvider) CreateCompletion(_ context.Context, req *provider.CompletionRequest) (*provider.CompletionStream, error) {
	f.requests = append(f.requests, req)
	var chunks []*schema.Message
	if len(f.requests) <= len(f.responses) {
		chunks = f.responses[len(f.requests)-1]
	}
	return provider.NewCompletionStream(schema.StreamReaderFromArray(chunks)), nil
}

type emptyTokens struct{}

func (emptyTokens) GetUserTokens(context.Context, string) (types.TokenBundle, error) {
	return types.TokenBundle{}, nil
}

type echoTool struct{}

func (echoTool) Name() string        { return "echo" }
func (echoTool) Description() string { return "Echoes its input back." }

func (echoTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {"text": {"type": "string", "description": "Text to echo."}},
		"required": ["text"]
	}`)
}

func (echoTool) Execute(_ context.Context, args map[string]any) types.ToolResult {
	return types.ToolValue(args["text"])
}

func newTestRunner(t *testing.T, responses [][]*schema.Message) (*Runner, *fakeProvider, *types.Session) {
	t.Helper()
	store, err := session.Open(filepath.Join(t.TempDir(), "sessions.db"))
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })

	sess, err := store.Create(context.Background(), "agents", "u1", "s1")
	require.NoError(t, err)

	fake := &fakeProvider{responses: responses}
	cfg := &types.Config{Model: "gpt-4o"}
	return NewRunner(fake, store, emptyTokens{}, nil, cfg), fake, sess
}

func textChunks(chunks ...string) []*schema.Message {
	out := make([]*schema.Message, 0, len(chunks))
	for _, c := range chunks {
		out = append(out, &schema.Message{Role: schema.Assistant, Content: c})
	}
	return out
}

func callChunk(id, name, args string) *schema.Message {
	return &schema.Message{
		Role: schema.Assistant,
		ToolCalls: []schema.ToolCall{
			{ID: id, Function: schema.FunctionCall{Name: name, Arguments: args}},
		},
	}
}

func TestRunPlainTextTurn(t *testing.T) {
	runner, fake, sess := newTestRunner(t, [][]*schema.Message{
		textChunks("Hel", "lo"),
	})

	var streamed []string
	err := runner.Run(context.Background(), sess, "hi", func(ev *types.Event) {
		streamed = append(streamed, ev.Text())
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"Hel", "lo"}, streamed)

	// User event then one finalized assistant event.
	require.Len(t, sess.Events, 2)
	assert.Equal(t, "hi", sess.Events[0].Text())
	assert.Equal(t, "master_orchestrator", sess.Events[1].Author)
	assert.Equal(t, "Hello", sess.Events[1].Text())

	// History sent to the backend starts with the system instruction.
	require.NotEmpty(t, fake.requests)
	assert.Equal(t, schema.System, fake.requests[0].Messages[0].Role)
	assert.Equal(t, "hi", fake.requests[0].Messages[1].Content)
}

func TestRunLoopExecutesTool(t *testing.T) {
	runner, fake, sess := newTestRunner(t, [][]*schema.Message{
		{callChunk("call_1", "echo", `{"text":"hi"}`)},
		textChunks("done"),
	})

	ag := &Agent{Name: "worker", Instruction: "Work.", Tools: tool.NewRegistry(echoTool{})}
	messages := []*schema.Message{schema.SystemMessage(ag.Instruction), schema.UserMessage("go")}

	text, err := runner.runLoop(context.Background(), ag, sess, messages, nil)
	require.NoError(t, err)
	assert.Equal(t, "done", text)

	// Call event, response event, finalized text event.
	require.Len(t, sess.Events, 3)
	calls := sess.Events[0].FunctionCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, "echo", calls[0].Name)
	assert.Equal(t, map[string]any{"text": "hi"}, calls[0].Args)

	resps := sess.Events[1].FunctionResponses()
	require.Len(t, resps, 1)
	assert.Equal(t, "call_1", resps[0].ID)

	// The second completion call saw the tool result.
	require.Len(t, fake.requests, 2)
	last := fake.requests[1].Messages[len(fake.requests[1].Messages)-1]
	assert.Equal(t, schema.Tool, last.Role)
	assert.Equal(t, "call_1", last.ToolCallID)
	assert.Equal(t, "hi", last.Content)
}

func TestRunLoopMergesStreamedCallFragments(t *testing.T) {
	runner, _, sess := newTestRunner(t, [][]*schema.Message{
		{
			callChunk("call_1", "echo", `{"te`),
			{Role: schema.Assistant, ToolCalls: []schema.ToolCall{
				{Function: schema.FunctionCall{Arguments: `xt":"hi"}`}},
			}},
		},
		textChunks("ok"),
	})

	ag := &Agent{Name: "worker", Instruction: "Work.", Tools: tool.NewRegistry(echoTool{})}
	messages := []*schema.Message{schema.SystemMessage(ag.Instruction), schema.UserMessage("go")}

	_, err := runner.runLoop(context.Background(), ag, sess, messages, nil)
	require.NoError(t, err)

	calls := sess.Events[0].FunctionCalls()
	require.Len(t, calls, 1)
	assert.Equal(t, map[string]any{"text": "hi"}, calls[0].Args)
}

func TestRunDelegatesToSubAgent(t *testing.T) {
	runner, _, sess := newTestRunner(t, [][]*schema.Message{
		{callChunk("call_1", "delegate_to_agent", `{"agent_name":"helper","query":"do it"}`)},
		textChunks("sub answer"),
		textChunks("final"),
	})

	helper := &Agent{
		Name:        "helper",
		Description: "Helps.",
		Instruction: "Help.",
		Tools:       tool.NewRegistry(),
	}
	root := &Agent{
		Name:        "root",
		Instruction: "Delegate.",
		Tools:       tool.NewRegistry(),
		SubAgents:   []*Agent{helper},
	}

	var streamed []string
	messages := []*schema.Message{schema.SystemMessage(root.Instruction), schema.UserMessage("go")}
	text, err := runner.runLoop(context.Background(), root, sess, messages, func(ev *types.Event) {
		streamed = append(streamed, ev.Text())
	})
	require.NoError(t, err)
	assert.Equal(t, "final", text)

	// Only the root agent's text streams to the caller.
	assert.Equal(t, []string{"final"}, streamed)

	// The delegation result is recorded as the tool response.
	var delegateResp *types.FunctionResponse
	for _, ev := range sess.Events {
		for _, resp := range ev.FunctionResponses() {
			if resp.Name == "delegate_to_agent" {
				delegateResp = resp
			}
		}
	}
	require.NotNil(t, delegateResp)
	result, ok := delegateResp.Response.(types.ToolResult)
	require.True(t, ok)
	assert.Equal(t, "sub answer", result.Value)
}

func TestRunLoopUnknownSubAgent(t *testing.T) {
	runner, _, sess := newTestRunner(t, [][]*schema.Message{
		{callChunk("call_1", "delegate_to_agent", `{"agent_name":"nobody","query":"x"}`)},
		textChunks("sorry"),
	})

	root := &Agent{
		Name:        "root",
		Instruction: "Delegate.",
		Tools:       tool.NewRegistry(),
		SubAgents:   []*Agent{{Name: "helper", Tools: tool.NewRegistry()}},
	}
	messages := []*schema.Message{schema.SystemMessage(root.Instruction), schema.UserMessage("go")}

	text, err := runner.runLoop(context.Background(), root, sess, messages, nil)
	require.NoError(t, err)
	assert.Equal(t, "sorry", text)

	resps := sess.Events[1].FunctionResponses()
	require.Len(t, resps, 1)
	result := resps[0].Response.(types.ToolResult)
	assert.True(t, result.IsError())
	assert.Contains(t, result.Err, "unknown sub-agent")
}

func TestRunLoopStepLimit(t *testing.T) {
	responses := make([][]*schema.Message, maxSteps)
	for i := range responses {
		responses[i] = []*schema.Message{callChunk("call_x", "echo", `{"text":"again"}`)}
	}
	runner, _, sess := newTestRunner(t, responses)

	ag := &Agent{Name: "worker", Instruction: "Work.", Tools: tool.NewRegistry(echoTool{})}
	messages := []*schema.Message{schema.SystemMessage(ag.Instruction), schema.UserMessage("go")}

	_, err := runner.runLoop(context.Background(), ag, sess, messages, nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "exceeded")
}

func TestNewOrchestratorShape(t *testing.T) {
	root := NewOrchestrator("u1", types.TokenBundle{}, nil)

	assert.Equal(t, "master_orchestrator", root.Name)
	require.Len(t, root.SubAgents, 3)

	data, ok := root.SubAgent("data_science_agent")
	require.True(t, ok)
	assert.Contains(t, data.Tools.Names(), "list_emails")
	assert.Contains(t, data.Tools.Names(), "search_repos")

	research, ok := root.SubAgent("research_agent")
	require.True(t, ok)
	assert.Equal(t, []string{"search_web", "scrape_website"}, research.Tools.Names())

	mem, ok := root.SubAgent("memory_agent")
	require.True(t, ok)
	assert.Contains(t, mem.Tools.Names(), "memory_tool")
	assert.Contains(t, mem.Tools.Names(), "save_context_tool")
}
