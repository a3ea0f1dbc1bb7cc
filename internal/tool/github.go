package tool

import (
	"context"
	"encoding/json"
	"net/url"

	"github.com/atrium-ai/atrium/pkg/types"
)

const githubBaseURL = "https://api.github.com"

type githubRepo struct {
	Name        string `json:"name"`
	HTMLURL     string `json:"html_url"`
	Description string `json:"description"`
	Stars       int    `json:"stargazers_count"`
	Language    string `json:"language"`
}

func (r githubRepo) summary() map[string]any {
	return map[string]any{
		"name":        r.Name,
		"url":         r.HTMLURL,
		"description": r.Description,
		"stars":       r.Stars,
		"language":    r.Language,
	}
}

// GitHubReposTool lists the authenticated user's repositories.
type GitHubReposTool struct {
	client *restClient
}

func NewGitHubReposTool(token *types.ServiceToken) *GitHubReposTool {
	if token == nil {
		return &GitHubReposTool{}
	}
	return &GitHubReposTool{client: newRESTClient(githubBaseURL, token.AccessToken)}
}

func (t *GitHubReposTool) Name() string { return "list_repos" }

func (t *GitHubReposTool) Description() string {
	return "Lists the authenticated user's GitHub repositories, most recently updated first."
}

func (t *GitHubReposTool) Parameters() json.RawMessage {
	return json.RawMessage(`{"type": "object", "properties": {}}`)
}

func (t *GitHubReposTool) Execute(ctx context.Context, args map[string]any) types.ToolResult {
	if t.client == nil {
		return types.ToolError("GitHub not connected.")
	}

	var repos []githubRepo
	err := t.client.getJSON(ctx, "/user/repos",
		url.Values{"sort": {"updated"}, "direction": {"desc"}}, &repos)
	if err != nil {
		return types.ToolError("listing GitHub repos: %v", err)
	}

	out := make([]any, 0, len(repos))
	for _, r := range repos {
		out = append(out, r.summary())
	}
	return types.ToolValue(out)
}

// GitHubSearchTool searches the user's repositories.
type GitHubSearchTool struct {
	client *restClient
}

func NewGitHubSearchTool(token *types.ServiceToken) *GitHubSearchTool {
	if token == nil {
		return &GitHubSearchTool{}
	}
	return &GitHubSearchTool{client: newRESTClient(githubBaseURL, token.AccessToken)}
}

func (t *GitHubSearchTool) Name() string { return "search_repos" }

func (t *GitHubSearchTool) Description() string {
	return "Searches the authenticated user's GitHub repositories by keyword."
}

func (t *GitHubSearchTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {
				"type": "string",
				"description": "Keywords to match against repository names and descriptions."
			}
		},
		"required": ["query"]
	}`)
}

func (t *GitHubSearchTool) Execute(ctx context.Context, args map[string]any) types.ToolResult {
	if t.client == nil {
		return types.ToolError("GitHub not connected.")
	}

	query := stringArg(args, "query")
	if query == "" {
		return types.ToolError("query is required")
	}

	var user struct {
		Login string `json:"login"`
	}
	if err := t.client.getJSON(ctx, "/user", nil, &user); err != nil {
		return types.ToolError("searching GitHub repos: %v", err)
	}

	var result struct {
		Items []githubRepo `json:"items"`
	}
	err := t.client.getJSON(ctx, "/search/repositories",
		url.Values{"q": {"user:" + user.Login + " " + query}}, &result)
	if err != nil {
		return types.ToolError("searching GitHub repos: %v", err)
	}

	out := make([]any, 0, len(result.Items))
	for _, r := range result.Items {
		out = append(out, r.summary())
	}
	return types.ToolValue(out)
}
