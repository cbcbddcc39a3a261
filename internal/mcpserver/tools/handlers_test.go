package tools

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/erauner12/topicbridge/internal/mcpserver/remote"
)

type statusUpdate struct {
	pageID string
	status string
}

type fakeTopicStore struct {
	pages      []remote.Page
	queryErr   error
	updateErr  error
	createErr  error
	queries    []string
	updates    []statusUpdate
	created    []remote.Block
	createdFor string
}

func (f *fakeTopicStore) QueryDatabase(ctx context.Context, status string, pageSize int) ([]remote.Page, error) {
	f.queries = append(f.queries, fmt.Sprintf("%s/%d", status, pageSize))
	if f.queryErr != nil {
		return nil, f.queryErr
	}
	if pageSize < len(f.pages) {
		return f.pages[:pageSize], nil
	}
	return f.pages, nil
}

func (f *fakeTopicStore) UpdatePageStatus(ctx context.Context, pageID, status string) error {
	f.updates = append(f.updates, statusUpdate{pageID, status})
	return f.updateErr
}

func (f *fakeTopicStore) CreatePage(ctx context.Context, parentPageID, title string, children []remote.Block) (*remote.Page, error) {
	if f.createErr != nil {
		return nil, f.createErr
	}
	f.createdFor = parentPageID
	f.created = children
	return &remote.Page{ID: "child-1", URL: "https://www.notion.so/child1"}, nil
}

type fakeSearch struct {
	results  []remote.SearchResult
	err      error
	searches []remote.SearchRequest
	similar  []remote.SimilarRequest
}

func (f *fakeSearch) Search(ctx context.Context, req remote.SearchRequest) (*remote.SearchResponse, error) {
	f.searches = append(f.searches, req)
	if f.err != nil {
		return nil, f.err
	}
	return &remote.SearchResponse{Results: f.results}, nil
}

func (f *fakeSearch) FindSimilar(ctx context.Context, req remote.SimilarRequest) (*remote.SearchResponse, error) {
	f.similar = append(f.similar, req)
	if f.err != nil {
		return nil, f.err
	}
	return &remote.SearchResponse{Results: f.results}, nil
}

type fakeFetcher struct {
	page *remote.FetchedPage
	err  error
}

func (f *fakeFetcher) Fetch(ctx context.Context, url string) (*remote.FetchedPage, error) {
	if f.err != nil {
		return nil, f.err
	}
	p := *f.page
	p.URL = url
	return &p, nil
}

var fixedNow = time.Date(2026, 3, 31, 12, 0, 0, 0, time.UTC)

func newTestContext(services *Services) *ToolContext {
	services.Now = func() time.Time { return fixedNow }
	return NewToolContext(nil, "session-1", FilterContext{}, services)
}

func call(t *testing.T, tc *ToolContext, name, args string) (string, error) {
	t.Helper()
	registry := NewRegistry()
	RegisterAllTools(registry)
	result, err := registry.Call(context.Background(), tc, CallRequest{Name: name, Arguments: json.RawMessage(args)})
	if err != nil {
		return "", err
	}
	text, _ := result.FirstText()
	return text, nil
}

func decode[T any](t *testing.T, text string) T {
	t.Helper()
	var v T
	if err := json.Unmarshal([]byte(text), &v); err != nil {
		t.Fatalf("result is not JSON: %v\n%s", err, text)
	}
	return v
}

func titleProp(s string) remote.Property {
	return remote.Property{Type: "title", Title: []remote.RichText{{PlainText: s}}}
}

func textProp(s string) remote.Property {
	return remote.Property{Type: "rich_text", RichText: []remote.RichText{{PlainText: s}}}
}

func TestSelectTopicFromBacklog(t *testing.T) {
	store := &fakeTopicStore{pages: []remote.Page{
		{ID: "aaaa-1111", Properties: map[string]remote.Property{
			"Topic":     titleProp("Grid storage"),
			"Angle":     textProp("cost curves"),
			"Geo Focus": {Type: "multi_select", MultiSelect: []remote.SelectOption{{Name: "EU"}, {Name: "US"}}},
		}},
		{ID: "bbbb-2222"},
	}}
	tc := newTestContext(&Services{Topics: store})

	text, err := call(t, tc, "select_topic_from_backlog", `{}`)
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}

	got := decode[map[string]string](t, text)
	if got["page_id"] != "aaaa-1111" {
		t.Errorf("expected first backlog page, got %v", got["page_id"])
	}
	if got["notion_url"] != "https://www.notion.so/aaaa1111" {
		t.Errorf("unexpected notion_url %q", got["notion_url"])
	}
	if got["Topic"] != "Grid storage" || got["Angle"] != "cost curves" || got["Geo Focus"] != "EU, US" {
		t.Errorf("unexpected properties %v", got)
	}
	if _, ok := got["Stance"]; !ok {
		t.Error("missing properties should be present as empty strings")
	}

	if len(store.queries) != 1 || store.queries[0] != "Backlog/100" {
		t.Errorf("unexpected queries %v", store.queries)
	}
	if len(store.updates) != 1 || store.updates[0] != (statusUpdate{"aaaa-1111", "Candidate"}) {
		t.Errorf("expected status update to Candidate, got %v", store.updates)
	}
}

func TestSelectTopicFromBacklog_Empty(t *testing.T) {
	tc := newTestContext(&Services{Topics: &fakeTopicStore{}})

	text, err := call(t, tc, "select_topic_from_backlog", ``)
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if text != "{}" {
		t.Errorf("expected empty object, got %q", text)
	}
}

func TestSelectTopicFromBacklog_UpdateFailureStillReturnsTopic(t *testing.T) {
	store := &fakeTopicStore{
		pages:     []remote.Page{{ID: "p1"}},
		updateErr: errors.New("conflict"),
	}
	tc := newTestContext(&Services{Topics: store})

	text, err := call(t, tc, "select_topic_from_backlog", `{}`)
	if err != nil {
		t.Fatalf("status update failure should not fail the call: %v", err)
	}
	if got := decode[map[string]string](t, text); got["page_id"] != "p1" {
		t.Errorf("unexpected result %v", got)
	}
}

func TestUpdateTopicStatus(t *testing.T) {
	store := &fakeTopicStore{}
	tc := newTestContext(&Services{Topics: store})

	text, err := call(t, tc, "update_topic_status", `{"topic_id":"p1","new_status":"Research"}`)
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}

	got := decode[map[string]any](t, text)
	if got["success"] != true || got["message"] != "Topic status updated to Research" {
		t.Errorf("unexpected result %v", got)
	}
	if store.updates[0] != (statusUpdate{"p1", "Research"}) {
		t.Errorf("unexpected update %v", store.updates)
	}
}

func TestUpdateTopicStatus_Errors(t *testing.T) {
	tests := []struct {
		name     string
		args     string
		store    *fakeTopicStore
		wantCode ErrorCode
		wantText string
	}{
		{"bad status", `{"topic_id":"p1","new_status":"Done"}`, &fakeTopicStore{}, ErrCodeInvalidParams, "invalid arguments"},
		{"blank id", `{"topic_id":"  ","new_status":"Research"}`, &fakeTopicStore{}, ErrCodeInvalidParams, "topic_id is required"},
		{"remote failure", `{"topic_id":"p1","new_status":"Research"}`,
			&fakeTopicStore{updateErr: &remote.StatusError{Service: "Notion", StatusCode: 404, Body: "missing"}},
			ErrCodeExecutionFailed, "Status update failed: Notion API error: 404 - missing"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := call(t, newTestContext(&Services{Topics: tt.store}), "update_topic_status", tt.args)

			var toolErr *ToolError
			if !errors.As(err, &toolErr) {
				t.Fatalf("expected ToolError, got %v", err)
			}
			if toolErr.Code != tt.wantCode {
				t.Errorf("expected %s, got %s", tt.wantCode, toolErr.Code)
			}
			if !strings.Contains(toolErr.Message, tt.wantText) {
				t.Errorf("expected message to contain %q, got %q", tt.wantText, toolErr.Message)
			}
			if toolErr.Data["tool"] != "update_topic_status" {
				t.Errorf("expected tool name in data, got %v", toolErr.Data)
			}
		})
	}
}

func TestQueryTopicsByStatus(t *testing.T) {
	store := &fakeTopicStore{pages: []remote.Page{
		{ID: "p1", Properties: map[string]remote.Property{"Topic": titleProp("One"), "Must Hit": textProp("x")}},
		{ID: "p2", Properties: map[string]remote.Property{"Topic": titleProp("Two")}},
	}}
	tc := newTestContext(&Services{Topics: store})

	text, err := call(t, tc, "query_topics_by_status", `{"status":"Research"}`)
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}

	got := decode[[]map[string]string](t, text)
	if len(got) != 2 {
		t.Fatalf("expected 2 topics, got %d", len(got))
	}
	if got[0]["Topic"] != "One" || got[0]["Must Hit"] != "x" || got[0]["page_id"] != "p1" {
		t.Errorf("unexpected first topic %v", got[0])
	}
	if store.queries[0] != "Research/10" {
		t.Errorf("expected default limit 10, got %v", store.queries)
	}
}

func TestQueryTopicsByStatus_MissingStore(t *testing.T) {
	_, err := call(t, newTestContext(&Services{}), "query_topics_by_status", `{"status":"Backlog"}`)

	var toolErr *ToolError
	if !errors.As(err, &toolErr) || toolErr.Code != ErrCodeExecutionFailed {
		t.Fatalf("expected EXECUTION_FAILED, got %v", err)
	}
}

func TestCreateResearchPage(t *testing.T) {
	store := &fakeTopicStore{}
	tc := newTestContext(&Services{Topics: store})

	report := `{"topic_title":"Grid storage","executive_summary":"**Storage** is growing.","key_findings":["Costs fell 40% since 2020"],"citations":[{"title":"IEA","url":"https://iea.org/report"}]}`
	args, _ := json.Marshal(map[string]string{"topic_id": "parent-1", "research_data": report})

	text, err := call(t, tc, "create_research_page", string(args))
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}

	got := decode[map[string]any](t, text)
	if got["page_id"] != "child-1" || got["url"] != "https://www.notion.so/child1" {
		t.Errorf("unexpected result %v", got)
	}
	if store.createdFor != "parent-1" {
		t.Errorf("page created under %q", store.createdFor)
	}
	if len(store.created) == 0 || store.created[0].Type != "heading_1" {
		t.Errorf("expected heading first, got %+v", store.created)
	}
}

func TestCreateResearchPage_InvalidJSON(t *testing.T) {
	store := &fakeTopicStore{}
	_, err := call(t, newTestContext(&Services{Topics: store}), "create_research_page", `{"topic_id":"p","research_data":"{nope"}`)

	var toolErr *ToolError
	if !errors.As(err, &toolErr) || !strings.Contains(toolErr.Message, "Invalid JSON format") {
		t.Fatalf("expected invalid JSON error, got %v", err)
	}
	if store.created != nil {
		t.Error("no page should be created")
	}
}

func TestWebSearch(t *testing.T) {
	score := 0.75
	search := &fakeSearch{results: []remote.SearchResult{
		{Title: "A", URL: "https://a.example/x", Text: strings.Repeat("w", 400), Score: &score, PublishedDate: "2026-03-01"},
		{Title: "B", URL: "https://b.example"},
	}}
	tc := newTestContext(&Services{Search: search})

	text, err := call(t, tc, "web_search", `{"query":"grid storage"}`)
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}

	got := decode[struct {
		Results      []SearchHit `json:"results"`
		Engine       string      `json:"search_engine"`
		TotalResults int         `json:"total_results"`
		Timestamp    string      `json:"timestamp"`
	}](t, text)

	if got.TotalResults != 2 || got.Engine != "exa.ai" {
		t.Errorf("unexpected envelope %+v", got)
	}
	if got.Timestamp != "2026-03-31T12:00:00Z" {
		t.Errorf("unexpected timestamp %q", got.Timestamp)
	}
	first := got.Results[0]
	if len(first.Snippet) != 303 || !strings.HasSuffix(first.Snippet, "...") {
		t.Errorf("expected 300 char snippet with ellipsis, got %d chars", len(first.Snippet))
	}
	if len(first.Content) != 400 {
		t.Errorf("expected full content by default, got %d chars", len(first.Content))
	}
	if got.Results[1].Date != nil {
		t.Errorf("missing date should be null")
	}

	req := search.searches[0]
	if req.NumResults != 10 || req.Type != "auto" || req.Contents == nil || !req.Contents.Text {
		t.Errorf("unexpected search request %+v", req)
	}
}

func TestWebSearch_WithoutContent(t *testing.T) {
	search := &fakeSearch{results: []remote.SearchResult{{Title: "A", URL: "https://a.example", Text: "abc"}}}
	tc := newTestContext(&Services{Search: search})

	text, err := call(t, tc, "web_search", `{"query":"q","max_results":3,"include_content":false}`)
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}
	if strings.Contains(text, `"content"`) {
		t.Errorf("content should be omitted: %s", text)
	}
	if search.searches[0].Contents != nil || search.searches[0].NumResults != 3 {
		t.Errorf("unexpected request %+v", search.searches[0])
	}
}

func TestWebSearch_Failure(t *testing.T) {
	search := &fakeSearch{err: fmt.Errorf("%w: EXA_API_KEY is not set", remote.ErrMissingCredentials)}
	_, err := call(t, newTestContext(&Services{Search: search}), "web_search", `{"query":"q"}`)

	var toolErr *ToolError
	if !errors.As(err, &toolErr) {
		t.Fatalf("expected ToolError, got %v", err)
	}
	if !strings.Contains(toolErr.Message, "Web search failed") || !strings.Contains(toolErr.Message, "EXA_API_KEY") {
		t.Errorf("unexpected message %q", toolErr.Message)
	}
}

func TestSearchNews(t *testing.T) {
	search := &fakeSearch{results: []remote.SearchResult{
		{Title: "N", URL: "https://news.example.com/story", Text: "short"},
	}}
	tc := newTestContext(&Services{Search: search})

	text, err := call(t, tc, "search_news", `{"query":"batteries","days_back":7}`)
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}

	got := decode[struct {
		Articles  []NewsArticle `json:"articles"`
		DateRange string        `json:"date_range"`
	}](t, text)
	if got.DateRange != "2026-03-24 to 2026-03-31" {
		t.Errorf("unexpected date range %q", got.DateRange)
	}
	if got.Articles[0].Source != "news.example.com" || got.Articles[0].Summary != "short" {
		t.Errorf("unexpected article %+v", got.Articles[0])
	}

	req := search.searches[0]
	if req.Query != "batteries news" || req.NumResults != 5 || req.StartPublishedDate != "2026-03-24" {
		t.Errorf("unexpected request %+v", req)
	}
}

func TestFindSimilar(t *testing.T) {
	search := &fakeSearch{results: []remote.SearchResult{{Title: "S", URL: "https://s.example"}}}
	tc := newTestContext(&Services{Search: search})

	text, err := call(t, tc, "find_similar", `{"url":"https://seed.example/post"}`)
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}

	got := decode[map[string]any](t, text)
	if got["original_url"] != "https://seed.example/post" || got["total_results"] != float64(1) {
		t.Errorf("unexpected result %v", got)
	}
	if search.similar[0].NumResults != 5 {
		t.Errorf("expected default 5 results, got %d", search.similar[0].NumResults)
	}
}

func TestFindSimilar_RejectsRelativeURL(t *testing.T) {
	_, err := call(t, newTestContext(&Services{Search: &fakeSearch{}}), "find_similar", `{"url":"/relative"}`)

	var toolErr *ToolError
	if !errors.As(err, &toolErr) || toolErr.Code != ErrCodeInvalidParams {
		t.Fatalf("expected INVALID_PARAMS, got %v", err)
	}
}

func TestExtractContent(t *testing.T) {
	fetcher := &fakeFetcher{page: &remote.FetchedPage{
		StatusCode: 200,
		Title:      "Storage",
		Text:       strings.Repeat("word ", 200),
	}}
	tc := newTestContext(&Services{Fetcher: fetcher})

	text, err := call(t, tc, "extract_content", `{"url":"https://example.com/a","max_length":500}`)
	if err != nil {
		t.Fatalf("call failed: %v", err)
	}

	got := decode[ExtractedContent](t, text)
	if got.Title != "Storage" || got.Error != "" {
		t.Errorf("unexpected result %+v", got)
	}
	if len(got.Content) != 503 {
		t.Errorf("expected truncation to 500 chars plus ellipsis, got %d", len(got.Content))
	}
	if got.WordCount != 100 {
		t.Errorf("expected 100 words, got %d", got.WordCount)
	}
}

func TestExtractContent_BlockedPages(t *testing.T) {
	tests := []struct {
		status    int
		wantTitle string
		wantError string
	}{
		{403, "Access Forbidden", "access_forbidden"},
		{404, "Content Not Found", "not_found"},
	}

	for _, tt := range tests {
		t.Run(tt.wantError, func(t *testing.T) {
			tc := newTestContext(&Services{Fetcher: &fakeFetcher{page: &remote.FetchedPage{StatusCode: tt.status}}})

			text, err := call(t, tc, "extract_content", `{"url":"https://example.com/a"}`)
			if err != nil {
				t.Fatalf("blocked pages should not fail: %v", err)
			}
			got := decode[ExtractedContent](t, text)
			if got.Title != tt.wantTitle || got.Error != tt.wantError || got.WordCount != 0 {
				t.Errorf("unexpected result %+v", got)
			}
		})
	}
}

func TestExtractContent_FetchFailure(t *testing.T) {
	tc := newTestContext(&Services{Fetcher: &fakeFetcher{err: &remote.StatusError{URL: "https://example.com/a", StatusCode: 500}}})

	_, err := call(t, tc, "extract_content", `{"url":"https://example.com/a"}`)

	var toolErr *ToolError
	if !errors.As(err, &toolErr) {
		t.Fatalf("expected ToolError, got %v", err)
	}
	want := "Tool 'extract_content' execution failed: Content extraction failed: HTTP 500 when accessing https://example.com/a"
	if toolErr.Message != want {
		t.Errorf("unexpected message:\n got %s\nwant %s", toolErr.Message, want)
	}
}
