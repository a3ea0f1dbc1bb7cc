package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"net/url"
	"strings"

	"github.com/atrium-ai/atrium/pkg/types"
)

const driveBaseURL = "https://www.googleapis.com/drive/v3"

const driveFields = "nextPageToken, files(id, name, mimeType, webViewLink)"

// DriveListTool lists the user's most recent non-trashed Drive files.
type DriveListTool struct {
	client *restClient
}

func NewDriveListTool(token *types.ServiceToken) *DriveListTool {
	if token == nil {
		return &DriveListTool{}
	}
	return &DriveListTool{client: newRESTClient(driveBaseURL, token.AccessToken)}
}

func (t *DriveListTool) Name() string { return "list_files" }

func (t *DriveListTool) Description() string {
	return "Lists the most recent files from Google Drive."
}

func (t *DriveListTool) Parameters() json.RawMessage {
	return json.RawMessage(`{"type": "object", "properties": {}}`)
}

func (t *DriveListTool) Execute(ctx context.Context, args map[string]any) types.ToolResult {
	if t.client == nil {
		return types.ToolError("Google Drive not connected.")
	}
	files, err := driveQuery(ctx, t.client, "trashed = false")
	if err != nil {
		return types.ToolError("listing Drive files: %v", err)
	}
	return types.ToolValue(files)
}

// DriveSearchTool searches Drive by name or by a Drive query filter.
type DriveSearchTool struct {
	client *restClient
}

func NewDriveSearchTool(token *types.ServiceToken) *DriveSearchTool {
	if token == nil {
		return &DriveSearchTool{}
	}
	return &DriveSearchTool{client: newRESTClient(driveBaseURL, token.AccessToken)}
}

func (t *DriveSearchTool) Name() string { return "search_files" }

func (t *DriveSearchTool) Description() string {
	return "Searches for files in Google Drive by name, or by a Drive query filter such as type:document."
}

func (t *DriveSearchTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {
				"type": "string",
				"description": "File name fragment or Drive filter expression."
			}
		},
		"required": ["query"]
	}`)
}

// driveTypeAliases maps the type: shorthand users actually write to the
// Drive mime-type filter the API wants.
var driveTypeAliases = map[string]string{
	"document":    "mimeType = 'application/vnd.google-apps.document'",
	"folder":      "mimeType = 'application/vnd.google-apps.folder'",
	"spreadsheet": "mimeType = 'application/vnd.google-apps.spreadsheet'",
}

func (t *DriveSearchTool) Execute(ctx context.Context, args map[string]any) types.ToolResult {
	if t.client == nil {
		return types.ToolError("Google Drive not connected.")
	}

	query := stringArg(args, "query")
	if query == "" {
		return types.ToolError("query is required")
	}

	for alias, filter := range driveTypeAliases {
		if strings.Contains(query, "type:"+alias) ||
			strings.Contains(query, "type = '"+alias+"'") ||
			strings.Contains(query, "type='"+alias+"'") {
			query = filter
			break
		}
	}

	// Filter-looking queries run as-is; on failure fall back to a name
	// search, matching what users usually mean.
	if strings.ContainsAny(query, ":=") {
		files, err := driveQuery(ctx, t.client, fmt.Sprintf("trashed = false and (%s)", query))
		if err == nil {
			return types.ToolValue(files)
		}
	}

	escaped := strings.ReplaceAll(query, "'", `\'`)
	files, err := driveQuery(ctx, t.client, fmt.Sprintf("trashed = false and name contains '%s'", escaped))
	if err != nil {
		return types.ToolError("searching Drive files: %v", err)
	}
	return types.ToolValue(files)
}

func driveQuery(ctx context.Context, client *restClient, q string) ([]any, error) {
	var listing struct {
		Files []map[string]any `json:"files"`
	}
	params := url.Values{
		"q":        {q},
		"pageSize": {"10"},
		"fields":   {driveFields},
	}
	if err := client.getJSON(ctx, "/files", params, &listing); err != nil {
		return nil, err
	}
	files := make([]any, 0, len(listing.Files))
	for _, f := range listing.Files {
		files = append(files, f)
	}
	return files, nil
}
