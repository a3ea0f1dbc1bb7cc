package tool

import (
	"context"
	"encoding/json"

	"github.com/atrium-ai/atrium/internal/memory"
	"github.com/atrium-ai/atrium/pkg/types"
)

// MemoryQueryTool retrieves past context relevant to a query.
type MemoryQueryTool struct {
	client *memory.Client
}

func NewMemoryQueryTool(client *memory.Client) *MemoryQueryTool {
	return &MemoryQueryTool{client: client}
}

func (t *MemoryQueryTool) Name() string { return "memory_tool" }

func (t *MemoryQueryTool) Description() string {
	return "Retrieves past context and memories relevant to the query."
}

func (t *MemoryQueryTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {
				"type": "string",
				"description": "What to recall."
			}
		},
		"required": ["query"]
	}`)
}

func (t *MemoryQueryTool) Execute(ctx context.Context, args map[string]any) types.ToolResult {
	query := stringArg(args, "query")
	if query == "" {
		return types.ToolError("query is required")
	}

	results, err := t.client.Search(ctx, query, 5)
	if err != nil {
		return types.ToolError("querying memory: %v", err)
	}

	out := make([]any, 0, len(results))
	for _, r := range results {
		out = append(out, map[string]any{
			"id":      r.ID,
			"content": r.Content,
			"score":   r.Score,
		})
	}
	return types.ToolValue(out)
}

// MemorySaveTool stores important information in long-term memory.
type MemorySaveTool struct {
	client *memory.Client
	userID string
}

func NewMemorySaveTool(client *memory.Client, userID string) *MemorySaveTool {
	return &MemorySaveTool{client: client, userID: userID}
}

func (t *MemorySaveTool) Name() string { return "save_context_tool" }

func (t *MemorySaveTool) Description() string {
	return "Saves important information (user preferences, project details, social context) to long-term memory."
}

func (t *MemorySaveTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"content": {
				"type": "string",
				"description": "The information to remember."
			}
		},
		"required": ["content"]
	}`)
}

func (t *MemorySaveTool) Execute(ctx context.Context, args map[string]any) types.ToolResult {
	content := stringArg(args, "content")
	if content == "" {
		return types.ToolError("content is required")
	}

	result, err := t.client.Add(ctx, content, map[string]any{
		"source":  "agent_interaction",
		"user_id": t.userID,
	})
	if err != nil {
		return types.ToolError("saving memory: %v", err)
	}
	return types.ToolValue(map[string]any{"id": result.ID, "status": result.Status})
}
