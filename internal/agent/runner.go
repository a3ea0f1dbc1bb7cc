package agent

import (
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/cloudwego/eino/schema"

	"github.com/atrium-ai/atrium/internal/event"
	"github.com/atrium-ai/atrium/internal/logging"
	"github.com/atrium-ai/atrium/internal/memory"
	"github.com/atrium-ai/atrium/internal/provider"
	"github.com/atrium-ai/atrium/internal/session"
	"github.com/atrium-ai/atrium/pkg/types"
)

// maxSteps bounds the think/act cycle of one agent so a confused model
// cannot loop on tool calls forever.
const maxSteps = 10

// delegateTool is the synthetic tool the orchestrator uses to hand a
// task to one of its sub-agents.
const delegateTool = "delegate_to_agent"

// TokenSource resolves a user's connected-service tokens.
type TokenSource interface {
	GetUserTokens(ctx context.Context, userID string) (types.TokenBundle, error)
}

// Runner implements the agent-loop collaborator of the turn coordinator:
// it appends the user event, builds the per-user orchestrator, and drives
// the think/act cycle until the model produces a final answer.
type Runner struct {
	provider  provider.Provider
	store     *session.Store
	tokens    TokenSource
	mem       *memory.Client
	model     string
	maxTokens int
}

func NewRunner(p provider.Provider, store *session.Store, tokens TokenSource, mem *memory.Client, cfg *types.Config) *Runner {
	maxTokens := cfg.OpenAI.MaxTokens
	if maxTokens == 0 {
		maxTokens = 4096
	}
	return &Runner{
		provider:  p,
		store:     store,
		tokens:    tokens,
		mem:       mem,
		model:     cfg.Model,
		maxTokens: maxTokens,
	}
}

// Run executes one turn. The user message is appended to the session
// first, so the durable log reflects program order even if the model
// call fails afterwards.
func (r *Runner) Run(ctx context.Context, sess *types.Session, message string, emit func(*types.Event)) error {
	userEvent := types.NewTextEvent("user", "user", message)
	if err := r.store.AppendEvent(ctx, sess, userEvent); err != nil {
		return fmt.Errorf("failed to initialize session: %w", err)
	}

	tokens, err := r.tokens.GetUserTokens(ctx, sess.UserID)
	if err != nil {
		logging.Warn().Err(err).Str("userID", sess.UserID).Msg("token lookup failed, running without connected services")
		tokens = types.TokenBundle{}
	}

	root := NewOrchestrator(sess.UserID, tokens, r.mem)
	messages := append(
		[]*schema.Message{schema.SystemMessage(root.Instruction)},
		provider.ToBackendMessages(sess.Events)...,
	)

	_, err = r.runLoop(ctx, root, sess, messages, emit)
	return err
}

// runLoop drives one agent's think/act cycle to completion and returns
// the agent's final text. Sub-agent runs pass a nil emit so only the
// orchestrator's text streams to the caller.
func (r *Runner) runLoop(ctx context.Context, ag *Agent, sess *types.Session, messages []*schema.Message, emit func(*types.Event)) (string, error) {
	tools := ag.Tools.Infos()
	if len(ag.SubAgents) > 0 {
		tools = append(tools, delegateToolInfo(ag))
	}

	for step := 0; step < maxSteps; step++ {
		stream, err := r.provider.CreateCompletion(ctx, &provider.CompletionRequest{
			Model:     r.model,
			Messages:  messages,
			Tools:     tools,
			MaxTokens: r.maxTokens,
		})
		if err != nil {
			return "", err
		}

		text, calls, err := r.consumeStream(ctx, stream, ag.Name, emit)
		if err != nil {
			return "", err
		}

		if len(calls) == 0 {
			if text != "" {
				ev := types.NewTextEvent(ag.Name, "model", text)
				if err := r.store.AppendEvent(ctx, sess, ev); err != nil {
					return "", err
				}
			}
			return text, nil
		}

		if err := r.appendCallEvent(ctx, sess, ag.Name, text, calls); err != nil {
			return "", err
		}
		messages = append(messages, &schema.Message{
			Role:      schema.Assistant,
			Content:   text,
			ToolCalls: calls,
		})

		for _, call := range calls {
			result := r.executeCall(ctx, ag, sess, call, emit)

			ev := &types.Event{
				Author: ag.Name,
				Content: &types.Content{
					Role: "tool",
					Parts: []types.Part{
						{FunctionResponse: &types.FunctionResponse{
							ID:       call.ID,
							Name:     call.Function.Name,
							Response: result,
						}},
					},
				},
			}
			if err := r.store.AppendEvent(ctx, sess, ev); err != nil {
				return "", err
			}
			messages = append(messages, &schema.Message{
				Role:       schema.Tool,
				ToolCallID: call.ID,
				Content:    types.EncodeValue(result),
			})
		}
	}

	logging.Warn().Str("agent", ag.Name).Int("maxSteps", maxSteps).Msg("agent hit step limit")
	return "", fmt.Errorf("agent %s exceeded %d steps without a final answer", ag.Name, maxSteps)
}

// consumeStream drains one completion stream, forwarding text deltas and
// merging streamed tool-call fragments into complete calls.
func (r *Runner) consumeStream(ctx context.Context, stream *provider.CompletionStream, agentName string, emit func(*types.Event)) (string, []schema.ToolCall, error) {
	defer stream.Close()

	var text string
	var calls []schema.ToolCall
	for {
		select {
		case <-ctx.Done():
			return "", nil, ctx.Err()
		default:
		}

		msg, err := stream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return "", nil, err
		}

		if msg.Content != "" {
			text += msg.Content
			if emit != nil {
				emit(types.NewTextEvent(agentName, "model", msg.Content))
			}
		}
		for _, tc := range msg.ToolCalls {
			calls = mergeToolCall(calls, tc)
		}
	}
	return text, calls, nil
}

// mergeToolCall folds one streamed tool-call fragment into the
// accumulated calls. A fragment without an id continues the most recent
// call's arguments.
func mergeToolCall(calls []schema.ToolCall, tc schema.ToolCall) []schema.ToolCall {
	if tc.ID != "" {
		for i := range calls {
			if calls[i].ID == tc.ID {
				if tc.Function.Name != "" {
					calls[i].Function.Name = tc.Function.Name
				}
				calls[i].Function.Arguments += tc.Function.Arguments
				return calls
			}
		}
		return append(calls, tc)
	}
	if len(calls) == 0 {
		return append(calls, tc)
	}
	last := &calls[len(calls)-1]
	if tc.Function.Name != "" {
		last.Function.Name = tc.Function.Name
	}
	last.Function.Arguments += tc.Function.Arguments
	return calls
}

// appendCallEvent records the assistant's tool-call request, with any
// text the model produced alongside it.
func (r *Runner) appendCallEvent(ctx context.Context, sess *types.Session, agentName, text string, calls []schema.ToolCall) error {
	var parts []types.Part
	if text != "" {
		parts = append(parts, types.Part{Text: text})
	}
	for _, call := range calls {
		args := map[string]any{}
		if call.Function.Arguments != "" {
			if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
				logging.Warn().Err(err).Str("tool", call.Function.Name).Msg("unparseable tool arguments")
			}
		}
		parts = append(parts, types.Part{FunctionCall: &types.FunctionCall{
			ID:   call.ID,
			Name: call.Function.Name,
			Args: args,
		}})
	}
	return r.store.AppendEvent(ctx, sess, &types.Event{
		Author:  agentName,
		Content: &types.Content{Role: "model", Parts: parts},
	})
}

// executeCall runs one tool call, which is either a delegation to a
// sub-agent or a call into the agent's own registry. Failures come back
// as error-variant results the model can read.
func (r *Runner) executeCall(ctx context.Context, ag *Agent, sess *types.Session, call schema.ToolCall, emit func(*types.Event)) types.ToolResult {
	args := map[string]any{}
	if call.Function.Arguments != "" {
		if err := json.Unmarshal([]byte(call.Function.Arguments), &args); err != nil {
			return types.ToolError("invalid arguments for %s: %v", call.Function.Name, err)
		}
	}

	event.Publish(event.Event{Type: event.ToolStarted, Data: event.ToolStartedData{
		SessionID: sess.ID,
		Agent:     ag.Name,
		Tool:      call.Function.Name,
		CallID:    call.ID,
	}})

	var result types.ToolResult
	if call.Function.Name == delegateTool {
		result = r.delegate(ctx, ag, sess, args)
	} else {
		result = ag.Tools.Execute(ctx, call.Function.Name, args)
	}

	event.Publish(event.Event{Type: event.ToolCompleted, Data: event.ToolCompletedData{
		SessionID: sess.ID,
		Agent:     ag.Name,
		Tool:      call.Function.Name,
		CallID:    call.ID,
		IsError:   result.IsError(),
	}})
	return result
}

// delegate runs a sub-agent's own loop on the delegated query and
// returns its final text as the tool result.
func (r *Runner) delegate(ctx context.Context, ag *Agent, sess *types.Session, args map[string]any) types.ToolResult {
	name, _ := args["agent_name"].(string)
	query, _ := args["query"].(string)

	sub, ok := ag.SubAgent(name)
	if !ok {
		return types.ToolError("unknown sub-agent: %s", name)
	}
	if query == "" {
		return types.ToolError("query is required")
	}

	logging.Info().Str("from", ag.Name).Str("to", sub.Name).Msg("delegating to sub-agent")

	messages := []*schema.Message{
		schema.SystemMessage(sub.Instruction),
		schema.UserMessage(query),
	}
	text, err := r.runLoop(ctx, sub, sess, messages, nil)
	if err != nil {
		return types.ToolError("%s failed: %v", sub.Name, err)
	}
	return types.ToolValue(text)
}

// delegateToolInfo builds the delegation tool schema listing the agent's
// sub-agents by name.
func delegateToolInfo(ag *Agent) *schema.ToolInfo {
	desc := "Delegates the task to a specialized sub-agent and returns its answer. Available agents:"
	for _, sub := range ag.SubAgents {
		desc += "\n- " + sub.Name + ": " + sub.Description
	}
	return &schema.ToolInfo{
		Name: delegateTool,
		Desc: desc,
		ParamsOneOf: schema.NewParamsOneOfByParams(map[string]*schema.ParameterInfo{
			"agent_name": {
				Type:     schema.String,
				Desc:     "Name of the sub-agent to delegate to.",
				Required: true,
			},
			"query": {
				Type:     schema.String,
				Desc:     "The full task or question to hand to the sub-agent.",
				Required: true,
			},
		}),
	}
}
