package tools

import (
	"context"
	"time"

	"github.com/erauner12/topicbridge/internal/mcpserver/remote"
	"github.com/rs/zerolog"
)

// TopicStore is the topic database the topic tools work against
type TopicStore interface {
	QueryDatabase(ctx context.Context, status string, pageSize int) ([]remote.Page, error)
	UpdatePageStatus(ctx context.Context, pageID, status string) error
	CreatePage(ctx context.Context, parentPageID, title string, children []remote.Block) (*remote.Page, error)
}

// SearchEngine runs web searches
type SearchEngine interface {
	Search(ctx context.Context, req remote.SearchRequest) (*remote.SearchResponse, error)
	FindSimilar(ctx context.Context, req remote.SimilarRequest) (*remote.SearchResponse, error)
}

// PageFetcher downloads a single web page
type PageFetcher interface {
	Fetch(ctx context.Context, url string) (*remote.FetchedPage, error)
}

// Services holds the remote dependencies shared by every session
type Services struct {
	Topics  TopicStore
	Search  SearchEngine
	Fetcher PageFetcher
	Now     func() time.Time
}

func (s *Services) now() time.Time {
	if s == nil || s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

// ToolContext provides shared resources for tool handlers
type ToolContext struct {
	Logger    *zerolog.Logger
	SessionID string
	Caller    FilterContext
	Services  *Services
}

// NewToolContext creates the per-call context handed to handlers
func NewToolContext(logger *zerolog.Logger, sessionID string, caller FilterContext, services *Services) *ToolContext {
	return &ToolContext{
		Logger:    logger,
		SessionID: sessionID,
		Caller:    caller,
		Services:  services,
	}
}

func (tc *ToolContext) logger() *zerolog.Logger {
	if tc == nil || tc.Logger == nil {
		nop := zerolog.Nop()
		return &nop
	}
	return tc.Logger
}

func (tc *ToolContext) topics() (TopicStore, error) {
	if tc == nil || tc.Services == nil || tc.Services.Topics == nil {
		return nil, NewToolError(ErrCodeExecutionFailed, "topic database is not configured", nil)
	}
	return tc.Services.Topics, nil
}

func (tc *ToolContext) search() (SearchEngine, error) {
	if tc == nil || tc.Services == nil || tc.Services.Search == nil {
		return nil, NewToolError(ErrCodeExecutionFailed, "search engine is not configured", nil)
	}
	return tc.Services.Search, nil
}

func (tc *ToolContext) fetcher() (PageFetcher, error) {
	if tc == nil || tc.Services == nil || tc.Services.Fetcher == nil {
		return nil, NewToolError(ErrCodeExecutionFailed, "page fetcher is not configured", nil)
	}
	return tc.Services.Fetcher, nil
}

func (tc *ToolContext) now() time.Time {
	if tc == nil {
		return time.Now()
	}
	return tc.Services.now()
}
