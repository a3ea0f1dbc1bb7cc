package tool

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/atrium-ai/atrium/pkg/types"
)

const gchatBaseURL = "https://chat.googleapis.com/v1"

// ChatSpacesTool lists the Google Chat spaces the user belongs to.
type ChatSpacesTool struct {
	client *restClient
}

func NewChatSpacesTool(token *types.ServiceToken) *ChatSpacesTool {
	if token == nil {
		return &ChatSpacesTool{}
	}
	return &ChatSpacesTool{client: newRESTClient(gchatBaseURL, token.AccessToken)}
}

func (t *ChatSpacesTool) Name() string { return "list_spaces" }

func (t *ChatSpacesTool) Description() string {
	return "Lists the Google Chat spaces (rooms and DMs) the user is in."
}

func (t *ChatSpacesTool) Parameters() json.RawMessage {
	return json.RawMessage(`{"type": "object", "properties": {}}`)
}

func (t *ChatSpacesTool) Execute(ctx context.Context, args map[string]any) types.ToolResult {
	if t.client == nil {
		return types.ToolError("Google Chat not connected.")
	}

	var listing struct {
		Spaces []map[string]any `json:"spaces"`
	}
	if err := t.client.getJSON(ctx, "/spaces", nil, &listing); err != nil {
		return types.ToolError("listing spaces: %v", err)
	}

	spaces := make([]any, 0, len(listing.Spaces))
	for _, s := range listing.Spaces {
		spaces = append(spaces, s)
	}
	return types.ToolValue(spaces)
}

// ChatMessagesTool lists messages in one Google Chat space.
type ChatMessagesTool struct {
	client *restClient
}

func NewChatMessagesTool(token *types.ServiceToken) *ChatMessagesTool {
	if token == nil {
		return &ChatMessagesTool{}
	}
	return &ChatMessagesTool{client: newRESTClient(gchatBaseURL, token.AccessToken)}
}

func (t *ChatMessagesTool) Name() string { return "list_messages" }

func (t *ChatMessagesTool) Description() string {
	return "Lists messages in a Google Chat space. The space name has the form 'spaces/AAAAAAAAAAA'."
}

func (t *ChatMessagesTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"space_name": {
				"type": "string",
				"description": "The space resource name, as returned by list_spaces."
			}
		},
		"required": ["space_name"]
	}`)
}

func (t *ChatMessagesTool) Execute(ctx context.Context, args map[string]any) types.ToolResult {
	if t.client == nil {
		return types.ToolError("Google Chat not connected.")
	}

	spaceName := stringArg(args, "space_name")
	if spaceName == "" {
		return types.ToolError("space_name is required")
	}

	var listing struct {
		Messages []map[string]any `json:"messages"`
	}
	if err := t.client.getJSON(ctx, "/"+spaceName+"/messages", url.Values{}, &listing); err != nil {
		return types.ToolError("listing messages: %v", err)
	}

	messages := make([]any, 0, len(listing.Messages))
	for _, m := range listing.Messages {
		messages = append(messages, m)
	}
	return types.ToolValue(messages)
}
