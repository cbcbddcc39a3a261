package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/erauner12/topicbridge/internal/mcpserver/remote"
)

// Web search tool handlers

const (
	snippetLength = 300
	summaryLength = 500
	exaSearchType = "auto"
)

// SearchHit is one formatted search result
type SearchHit struct {
	Title   string   `json:"title"`
	URL     string   `json:"url"`
	Snippet string   `json:"snippet"`
	Date    *string  `json:"date"`
	Score   *float64 `json:"score"`
	Content string   `json:"content,omitempty"`
}

// NewsArticle is one formatted news result
type NewsArticle struct {
	Title   string   `json:"title"`
	URL     string   `json:"url"`
	Source  string   `json:"source"`
	Date    *string  `json:"date"`
	Summary string   `json:"summary"`
	Content string   `json:"content"`
	Score   *float64 `json:"score"`
}

// ExtractedContent is returned by extract_content
type ExtractedContent struct {
	URL       string `json:"url"`
	Title     string `json:"title"`
	Content   string `json:"content"`
	WordCount int    `json:"word_count"`
	Timestamp string `json:"timestamp"`
	Error     string `json:"error,omitempty"`
}

// truncate cuts s to n runes and marks the cut with "..."
func truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n]) + "..."
}

func optionalString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func sourceDomain(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "Unknown"
	}
	return u.Host
}

func timestamp(tc *ToolContext) string {
	return tc.now().Format(time.RFC3339)
}

func HandleWebSearch(ctx context.Context, tc *ToolContext, raw json.RawMessage) (interface{}, error) {
	var params WebSearchParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, NewToolError(ErrCodeInvalidParams, "Invalid parameters: "+err.Error(), nil)
	}
	if err := params.Validate(); err != nil {
		return nil, NewToolError(ErrCodeInvalidParams, err.Error(), nil)
	}

	engine, err := tc.search()
	if err != nil {
		return nil, err
	}

	req := remote.SearchRequest{
		Query:      params.Query,
		NumResults: params.MaxResults,
		Type:       exaSearchType,
	}
	if params.includeContent() {
		req.Contents = &remote.ContentsOptions{Text: true}
	}

	resp, err := engine.Search(ctx, req)
	if err != nil {
		return nil, remoteFailure("Web search failed", err)
	}

	results := make([]SearchHit, 0, len(resp.Results))
	for _, r := range resp.Results {
		hit := SearchHit{
			Title:   r.Title,
			URL:     r.URL,
			Snippet: truncate(r.Text, snippetLength),
			Date:    optionalString(r.PublishedDate),
			Score:   r.Score,
		}
		if params.includeContent() {
			hit.Content = r.Text
		}
		results = append(results, hit)
	}

	tc.logger().Info().Str("query", params.Query).Int("results", len(results)).Msg("web search completed")

	return map[string]any{
		"results":       results,
		"query":         params.Query,
		"search_engine": "exa.ai",
		"total_results": len(results),
		"timestamp":     timestamp(tc),
	}, nil
}

func HandleExtractContent(ctx context.Context, tc *ToolContext, raw json.RawMessage) (interface{}, error) {
	var params ExtractContentParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, NewToolError(ErrCodeInvalidParams, "Invalid parameters: "+err.Error(), nil)
	}
	if err := params.Validate(); err != nil {
		return nil, NewToolError(ErrCodeInvalidParams, err.Error(), nil)
	}

	fetcher, err := tc.fetcher()
	if err != nil {
		return nil, err
	}

	page, err := fetcher.Fetch(ctx, params.URL)
	if err != nil {
		return nil, remoteFailure("Content extraction failed", err)
	}

	logger := tc.logger().With().Str("url", params.URL).Int("status", page.StatusCode).Logger()

	switch page.StatusCode {
	case http.StatusForbidden:
		logger.Warn().Msg("content extraction blocked by website")
		return ExtractedContent{
			URL:       params.URL,
			Title:     "Access Forbidden",
			Content:   fmt.Sprintf("Content extraction blocked by website (HTTP 403). This website (%s) does not allow automated access.", params.URL),
			Timestamp: timestamp(tc),
			Error:     "access_forbidden",
		}, nil
	case http.StatusNotFound:
		logger.Warn().Msg("content not found")
		return ExtractedContent{
			URL:       params.URL,
			Title:     "Content Not Found",
			Content:   fmt.Sprintf("The requested content at %s was not found (HTTP 404).", params.URL),
			Timestamp: timestamp(tc),
			Error:     "not_found",
		}, nil
	}

	title := page.Title
	if title == "" {
		title = "No title found"
	}
	content := page.Text
	truncated := utf8.RuneCountInString(content) > params.MaxLength
	if truncated {
		content = string([]rune(content)[:params.MaxLength])
	}
	wordCount := len(strings.Fields(content))
	if truncated {
		content += "..."
	}

	logger.Debug().Int("length", len(page.Text)).Bool("truncated", truncated).Msg("content extracted")

	return ExtractedContent{
		URL:       params.URL,
		Title:     title,
		Content:   content,
		WordCount: wordCount,
		Timestamp: timestamp(tc),
	}, nil
}

func HandleSearchNews(ctx context.Context, tc *ToolContext, raw json.RawMessage) (interface{}, error) {
	var params SearchNewsParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, NewToolError(ErrCodeInvalidParams, "Invalid parameters: "+err.Error(), nil)
	}
	if err := params.Validate(); err != nil {
		return nil, NewToolError(ErrCodeInvalidParams, err.Error(), nil)
	}

	engine, err := tc.search()
	if err != nil {
		return nil, err
	}

	end := tc.now()
	start := end.AddDate(0, 0, -params.DaysBack)
	startDate, endDate := start.Format(time.DateOnly), end.Format(time.DateOnly)

	resp, err := engine.Search(ctx, remote.SearchRequest{
		Query:              params.Query + " news",
		NumResults:         params.MaxResults,
		Type:               exaSearchType,
		StartPublishedDate: startDate,
		EndPublishedDate:   endDate,
		Contents:           &remote.ContentsOptions{Text: true},
	})
	if err != nil {
		return nil, remoteFailure("News search failed", err)
	}

	articles := make([]NewsArticle, 0, len(resp.Results))
	for _, r := range resp.Results {
		articles = append(articles, NewsArticle{
			Title:   r.Title,
			URL:     r.URL,
			Source:  sourceDomain(r.URL),
			Date:    optionalString(r.PublishedDate),
			Summary: truncate(r.Text, summaryLength),
			Content: r.Text,
			Score:   r.Score,
		})
	}

	tc.logger().Info().Str("query", params.Query).Int("articles", len(articles)).Msg("news search completed")

	return map[string]any{
		"articles":      articles,
		"query":         params.Query,
		"date_range":    startDate + " to " + endDate,
		"total_results": len(articles),
		"timestamp":     timestamp(tc),
	}, nil
}

func HandleFindSimilar(ctx context.Context, tc *ToolContext, raw json.RawMessage) (interface{}, error) {
	var params FindSimilarParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, NewToolError(ErrCodeInvalidParams, "Invalid parameters: "+err.Error(), nil)
	}
	if err := params.Validate(); err != nil {
		return nil, NewToolError(ErrCodeInvalidParams, err.Error(), nil)
	}

	engine, err := tc.search()
	if err != nil {
		return nil, err
	}

	resp, err := engine.FindSimilar(ctx, remote.SimilarRequest{
		URL:        params.URL,
		NumResults: params.MaxResults,
		Contents:   &remote.ContentsOptions{Text: true},
	})
	if err != nil {
		return nil, remoteFailure("Similarity search failed", err)
	}

	results := make([]SearchHit, 0, len(resp.Results))
	for _, r := range resp.Results {
		results = append(results, SearchHit{
			Title:   r.Title,
			URL:     r.URL,
			Snippet: truncate(r.Text, snippetLength),
			Date:    optionalString(r.PublishedDate),
			Score:   r.Score,
			Content: r.Text,
		})
	}

	return map[string]any{
		"similar_results": results,
		"original_url":    params.URL,
		"total_results":   len(results),
		"timestamp":       timestamp(tc),
	}, nil
}
