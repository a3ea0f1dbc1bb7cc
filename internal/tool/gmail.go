package tool

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"net/url"

	"github.com/atrium-ai/atrium/pkg/types"
)

const gmailBaseURL = "https://gmail.googleapis.com/gmail/v1"

// GmailListTool lists the most recent emails matching a query.
type GmailListTool struct {
	client *restClient
}

func NewGmailListTool(token *types.ServiceToken) *GmailListTool {
	if token == nil {
		return &GmailListTool{}
	}
	return &GmailListTool{client: newRESTClient(gmailBaseURL, token.AccessToken)}
}

func (t *GmailListTool) Name() string { return "list_emails" }

func (t *GmailListTool) Description() string {
	return "Lists the most recent emails from Gmail, optionally filtered by a Gmail search query."
}

func (t *GmailListTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {
				"type": "string",
				"description": "Gmail search query, e.g. 'from:alice@example.com'. Defaults to the inbox."
			}
		}
	}`)
}

func (t *GmailListTool) Execute(ctx context.Context, args map[string]any) types.ToolResult {
	if t.client == nil {
		return types.ToolError("Gmail not connected.")
	}

	query := stringArg(args, "query")
	if query == "" {
		query = "label:inbox"
	}

	var listing struct {
		Messages []struct {
			ID       string `json:"id"`
			ThreadID string `json:"threadId"`
		} `json:"messages"`
	}
	params := url.Values{"q": {query}, "maxResults": {"10"}}
	if err := t.client.getJSON(ctx, "/users/me/messages", params, &listing); err != nil {
		return types.ToolError("listing emails: %v", err)
	}

	emails := []any{}
	for _, msg := range listing.Messages {
		var detail struct {
			Snippet string `json:"snippet"`
		}
		err := t.client.getJSON(ctx, "/users/me/messages/"+msg.ID,
			url.Values{"format": {"metadata"}}, &detail)
		if err != nil {
			return types.ToolError("listing emails: %v", err)
		}
		emails = append(emails, map[string]any{
			"id":       msg.ID,
			"snippet":  detail.Snippet,
			"threadId": msg.ThreadID,
		})
	}
	return types.ToolValue(emails)
}

// GmailGetTool fetches the full content of one email.
type GmailGetTool struct {
	client *restClient
}

func NewGmailGetTool(token *types.ServiceToken) *GmailGetTool {
	if token == nil {
		return &GmailGetTool{}
	}
	return &GmailGetTool{client: newRESTClient(gmailBaseURL, token.AccessToken)}
}

func (t *GmailGetTool) Name() string { return "get_email_content" }

func (t *GmailGetTool) Description() string {
	return "Gets the subject, sender, date and body of a specific email by message id."
}

func (t *GmailGetTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"message_id": {
				"type": "string",
				"description": "The Gmail message id, as returned by list_emails."
			}
		},
		"required": ["message_id"]
	}`)
}

type gmailPayload struct {
	MimeType string `json:"mimeType"`
	Headers  []struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	} `json:"headers"`
	Body struct {
		Data string `json:"data"`
	} `json:"body"`
	Parts []gmailPayload `json:"parts"`
}

func (t *GmailGetTool) Execute(ctx context.Context, args map[string]any) types.ToolResult {
	if t.client == nil {
		return types.ToolError("Gmail not connected.")
	}

	messageID := stringArg(args, "message_id")
	if messageID == "" {
		return types.ToolError("message_id is required")
	}

	var message struct {
		Payload gmailPayload `json:"payload"`
	}
	err := t.client.getJSON(ctx, "/users/me/messages/"+messageID,
		url.Values{"format": {"full"}}, &message)
	if err != nil {
		return types.ToolError("getting email content: %v", err)
	}

	header := func(name string, fallback string) string {
		for _, h := range message.Payload.Headers {
			if h.Name == name {
				return h.Value
			}
		}
		return fallback
	}

	return types.ToolValue(map[string]any{
		"id":      messageID,
		"subject": header("Subject", "No Subject"),
		"from":    header("From", "Unknown"),
		"date":    header("Date", "Unknown"),
		"body":    gmailBody(&message.Payload),
	})
}

// gmailBody extracts the plain-text body, descending into multipart
// payloads to find the text/plain part.
func gmailBody(payload *gmailPayload) string {
	if len(payload.Parts) == 0 {
		return decodeGmailData(payload.Body.Data)
	}
	for i := range payload.Parts {
		part := &payload.Parts[i]
		if part.MimeType == "text/plain" {
			if body := decodeGmailData(part.Body.Data); body != "" {
				return body
			}
		}
	}
	return ""
}

func decodeGmailData(data string) string {
	if data == "" {
		return ""
	}
	decoded, err := base64.URLEncoding.WithPadding(base64.NoPadding).DecodeString(data)
	if err != nil {
		return ""
	}
	return string(decoded)
}
