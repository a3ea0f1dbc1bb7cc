package tool

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	md "github.com/JohannesKaufmann/html-to-markdown"
	"github.com/PuerkitoBio/goquery"

	"github.com/atrium-ai/atrium/pkg/types"
)

const (
	maxScrapeSize = 5 * 1024 * 1024 // 5MB
	scrapeTimeout = 30 * time.Second
)

// WebScrapeTool fetches a page and converts it to markdown for the
// model to read.
type WebScrapeTool struct {
	client *http.Client
}

func NewWebScrapeTool() *WebScrapeTool {
	return &WebScrapeTool{client: &http.Client{Timeout: scrapeTimeout}}
}

func (t *WebScrapeTool) Name() string { return "scrape_website" }

func (t *WebScrapeTool) Description() string {
	return "Fetches a web page and returns its readable content as markdown. The URL must start with http:// or https://."
}

func (t *WebScrapeTool) Parameters() json.RawMessage {
	return json.RawMessage(`{
		"type": "object",
		"properties": {
			"url": {
				"type": "string",
				"description": "The URL to fetch content from."
			}
		},
		"required": ["url"]
	}`)
}

func (t *WebScrapeTool) Execute(ctx context.Context, args map[string]any) types.ToolResult {
	pageURL := stringArg(args, "url")
	if !strings.HasPrefix(pageURL, "http://") && !strings.HasPrefix(pageURL, "https://") {
		return types.ToolError("URL must start with http:// or https://")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, pageURL, nil)
	if err != nil {
		return types.ToolError("fetching page: %v", err)
	}
	req.Header.Set("User-Agent", "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")

	resp, err := t.client.Do(req)
	if err != nil {
		return types.ToolError("fetching page: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return types.ToolError("fetching page: status %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxScrapeSize))
	if err != nil {
		return types.ToolError("fetching page: %v", err)
	}

	markdown, err := htmlToMarkdown(string(body))
	if err != nil {
		return types.ToolError("converting page: %v", err)
	}

	return types.ToolValue(map[string]any{
		"url":     pageURL,
		"content": markdown,
	})
}

// htmlToMarkdown strips non-content elements and converts what remains.
func htmlToMarkdown(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse HTML: %w", err)
	}
	doc.Find("script, style, noscript, iframe").Remove()

	cleaned, err := doc.Html()
	if err != nil {
		return "", fmt.Errorf("render HTML: %w", err)
	}

	converter := md.NewConverter("", true, nil)
	markdown, err := converter.ConvertString(cleaned)
	if err != nil {
		return "", fmt.Errorf("convert to markdown: %w", err)
	}
	return strings.TrimSpace(markdown), nil
}
