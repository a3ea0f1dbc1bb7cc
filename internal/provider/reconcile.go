package provider

import (
	"encoding/json"

	"github.com/cloudwego/eino/schema"

	"github.com/atrium-ai/atrium/pkg/types"
)

// callUnknown is the correlation sentinel for tool calls and results
// whose id was lost, typically after rehydration from the chat record.
const callUnknown = "call_unknown"

// ToBackendMessages flattens stored conversation events into the message
// list the completion backend accepts, then repairs dangling tool-call
// references so the backend never rejects the history.
func ToBackendMessages(events []*types.Event) []*schema.Message {
	var messages []*schema.Message
	for _, ev := range events {
		messages = append(messages, eventToMessages(ev)...)
	}
	return repairToolCalls(messages)
}

// eventToMessages converts one event. Tool results take precedence over
// any other parts the event carries; an event with nothing usable
// produces no message.
func eventToMessages(ev *types.Event) []*schema.Message {
	if ev == nil || ev.Content == nil {
		return nil
	}

	if resps := ev.FunctionResponses(); len(resps) > 0 {
		out := make([]*schema.Message, 0, len(resps))
		for _, resp := range resps {
			callID := resp.ID
			if callID == "" {
				callID = callUnknown
			}
			out = append(out, &schema.Message{
				Role:       schema.Tool,
				ToolCallID: callID,
				Content:    types.EncodeValue(resp.Response),
			})
		}
		return out
	}

	role := backendRole(ev.Content.Role)
	text := ev.Text()

	if calls := ev.FunctionCalls(); len(calls) > 0 {
		toolCalls := make([]schema.ToolCall, 0, len(calls))
		for _, call := range calls {
			callID := call.ID
			if callID == "" {
				callID = callUnknown
			}
			args, err := json.Marshal(call.Args)
			if err != nil {
				args = []byte("{}")
			}
			toolCalls = append(toolCalls, schema.ToolCall{
				ID: callID,
				Function: schema.FunctionCall{
					Name:      call.Name,
					Arguments: string(args),
				},
			})
		}
		return []*schema.Message{{
			Role:      schema.Assistant,
			Content:   text,
			ToolCalls: toolCalls,
		}}
	}

	if text == "" {
		return nil
	}
	return []*schema.Message{{Role: role, Content: text}}
}

// backendRole maps a stored role to the backend's role set. Unknown
// roles pass through as given.
func backendRole(role string) schema.RoleType {
	switch role {
	case "user":
		return schema.User
	case "model", "assistant":
		return schema.Assistant
	case "system":
		return schema.System
	case "tool":
		return schema.Tool
	default:
		return schema.RoleType(role)
	}
}

// repairToolCalls drops tool-call requests that have no matching tool
// result anywhere in the list. An assistant message left with neither
// calls nor text disappears entirely. Pure two-pass filter: collect the
// answered ids, then rewrite.
func repairToolCalls(messages []*schema.Message) []*schema.Message {
	answered := map[string]bool{}
	for _, msg := range messages {
		if msg.Role == schema.Tool && msg.ToolCallID != "" {
			answered[msg.ToolCallID] = true
		}
	}

	out := make([]*schema.Message, 0, len(messages))
	for _, msg := range messages {
		if msg.Role != schema.Assistant || len(msg.ToolCalls) == 0 {
			out = append(out, msg)
			continue
		}

		kept := make([]schema.ToolCall, 0, len(msg.ToolCalls))
		for _, call := range msg.ToolCalls {
			if answered[call.ID] {
				kept = append(kept, call)
			}
		}
		switch {
		case len(kept) == len(msg.ToolCalls):
			out = append(out, msg)
		case len(kept) > 0:
			repaired := *msg
			repaired.ToolCalls = kept
			out = append(out, &repaired)
		case msg.Content != "":
			repaired := *msg
			repaired.ToolCalls = nil
			out = append(out, &repaired)
		}
		// All calls dangling and no text: the message is dropped.
	}
	return out
}
