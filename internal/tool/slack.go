package tool

import (
	"context"
	"encoding/json"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/atrium-ai/atrium/pkg/types"
)

const slackBaseURL = "https://slack.com/api"

type slackChannel struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	NumMembers int    `json:"num_members"`
	IsMember   bool   `json:"is_member"`
}

// SlackChannelsTool lists public channels in the workspace.
type SlackChannelsTool struct {
	client *restClient
}

func NewSlackChannelsTool(token *types.ServiceToken) *SlackChannelsTool {
	if token == nil {
		return &SlackChannelsTool{}
	}
	return &SlackChannelsTool{client: newRESTClient(slackBaseURL, token.AccessToken)}
}

func (t *SlackChannelsTool) Name() string { return "list_channels" }

func (t *SlackChannelsTool) Description() string {
	return "Lists public channels in the Slack workspace."
}

func (t *SlackChannelsTool) Parameters() json.RawMessage {
	return json.RawMessage(`{"type": "object", "properties": {}}`)
}

func (t *SlackChannelsTool) Execute(ctx context.Context, args map[string]any) types.ToolResult {
	if t.client == nil {
		return types.ToolError("Slack not connected.")
	}

	channels, errMsg := slackChannels(ctx, t.client, 20)
	if errMsg != "" {
		return types.ToolError("listing channels: %s", errMsg)
	}

	out := make([]any, 0, len(channels))
	for _, c := range channels {
		out = append(out, map[string]any{
			"name":      c.Name,
			"id":        c.ID,
			"members":   c.NumMembers,
			"is_member": c.IsMember,
		})
	}
	return types.ToolValue(out)
}

// SlackSearchTool searches recent messages across public channels. Bot
// tokens cannot use the search API, so it scans channel history.
type SlackSearchTool struct {
	client *restClient
}

func NewSlackSearchTool(token *types.ServiceToken) *SlackSearchTool {
	if token == nil {
		return &SlackSearchTool{}
	}
	return &SlackSearchTool{client: newRESTClient(slackBaseURL, token.AccessToken)}
}

func (t *SlackSearchTool) Name() string { return "search_messages" }

func (t *SlackSearchTool) Description() string {
	return "Searches recent messages in public Slack channels for a text fragment."
}

func (t *SlackSearchTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {
				"type": "string",
				"description": "Text to search for in recent messages."
			}
		},
		"required": ["query"]
	}`)
}

func (t *SlackSearchTool) Execute(ctx context.Context, args map[string]any) types.ToolResult {
	if t.client == nil {
		return types.ToolError("Slack not connected.")
	}

	query := strings.ToLower(stringArg(args, "query"))
	if query == "" {
		return types.ToolError("query is required")
	}

	channels, errMsg := slackChannels(ctx, t.client, 5)
	if errMsg != "" {
		return types.ToolError("searching Slack: %s", errMsg)
	}

	matches := []any{}
	for _, channel := range channels {
		if !channel.IsMember {
			continue
		}

		var history struct {
			OK       bool   `json:"ok"`
			Error    string `json:"error"`
			Messages []struct {
				User string `json:"user"`
				Text string `json:"text"`
				TS   string `json:"ts"`
			} `json:"messages"`
		}
		err := t.client.getJSON(ctx, "/conversations.history",
			url.Values{"channel": {channel.ID}, "limit": {"10"}}, &history)
		if err != nil || !history.OK {
			continue
		}

		for _, msg := range history.Messages {
			if !strings.Contains(strings.ToLower(msg.Text), query) {
				continue
			}
			user := msg.User
			if user == "" {
				user = "unknown"
			}
			matches = append(matches, map[string]any{
				"time":    slackTimestamp(msg.TS),
				"user":    user,
				"channel": channel.Name,
				"message": msg.Text,
			})
			if len(matches) >= 10 {
				return types.ToolValue(matches)
			}
		}
	}
	return types.ToolValue(matches)
}

// slackChannels fetches public channels; the second return is the Slack
// API error string when the call is rejected.
func slackChannels(ctx context.Context, client *restClient, limit int) ([]slackChannel, string) {
	var listing struct {
		OK       bool           `json:"ok"`
		Error    string         `json:"error"`
		Channels []slackChannel `json:"channels"`
	}
	err := client.getJSON(ctx, "/conversations.list",
		url.Values{"limit": {strconv.Itoa(limit)}, "types": {"public_channel"}}, &listing)
	if err != nil {
		return nil, err.Error()
	}
	if !listing.OK {
		return nil, listing.Error
	}
	return listing.Channels, ""
}

func slackTimestamp(ts string) string {
	seconds, err := strconv.ParseFloat(ts, 64)
	if err != nil {
		return ts
	}
	return time.Unix(int64(seconds), 0).UTC().Format("2006-01-02 15:04:05")
}
