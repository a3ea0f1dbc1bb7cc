package tool

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"github.com/atrium-ai/atrium/pkg/types"
)

const ddgBaseURL = "https://html.duckduckgo.com/html/"

// WebSearchTool performs a web search against DuckDuckGo's HTML
// endpoint and scrapes the result list.
type WebSearchTool struct {
	baseURL string
	client  *http.Client
}

func NewWebSearchTool() *WebSearchTool {
	return &WebSearchTool{
		baseURL: ddgBaseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (t *WebSearchTool) Name() string { return "search_web" }

func (t *WebSearchTool) Description() string {
	return "Performs a web search and returns result titles, links and snippets."
}

func (t *WebSearchTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"query": {
				"type": "string",
				"description": "The search query."
			},
			"max_results": {
				"type": "integer",
				"description": "Maximum number of results to return (default 5)."
			}
		},
		"required": ["query"]
	}`)
}

func (t *WebSearchTool) Execute(ctx context.Context, args map[string]any) types.ToolResult {
	query := stringArg(args, "query")
	if query == "" {
		return types.ToolError("query is required")
	}
	maxResults := intArg(args, "max_results", 5)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		t.baseURL+"?q="+url.QueryEscape(query), nil)
	if err != nil {
		return types.ToolError("searching web: %v", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")

	resp, err := t.client.Do(req)
	if err != nil {
		return types.ToolError("searching web: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return types.ToolError("searching web: status %d", resp.StatusCode)
	}

	doc, err := goquery.NewDocumentFromReader(resp.Body)
	if err != nil {
		return types.ToolError("searching web: %v", err)
	}

	results := []any{}
	doc.Find(".result").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		link := sel.Find(".result__a").First()
		href, _ := link.Attr("href")
		title := strings.TrimSpace(link.Text())
		snippet := strings.TrimSpace(sel.Find(".result__snippet").First().Text())
		if title == "" {
			return true
		}
		results = append(results, map[string]any{
			"title": title,
			"href":  cleanDDGLink(href),
			"body":  snippet,
		})
		return len(results) < maxResults
	})
	return types.ToolValue(results)
}

// cleanDDGLink unwraps DuckDuckGo's redirect links (/l/?uddg=<target>).
func cleanDDGLink(href string) string {
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}
