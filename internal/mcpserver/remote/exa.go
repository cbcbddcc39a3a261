package remote

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// DefaultExaBaseURL is the public Exa API endpoint
const DefaultExaBaseURL = "https://api.exa.ai"

// ExaConfig holds credentials for the search API
type ExaConfig struct {
	APIKey  string
	BaseURL string
}

// ExaClient talks to the Exa search API
type ExaClient struct {
	cfg  ExaConfig
	http *HTTPClient
}

// NewExaClient creates an Exa client. Missing credentials are reported per call.
func NewExaClient(cfg ExaConfig, httpClient *HTTPClient) *ExaClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultExaBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	return &ExaClient{cfg: cfg, http: httpClient}
}

// ContentsOptions asks Exa to return page contents with each result
type ContentsOptions struct {
	Text bool `json:"text"`
}

// SearchRequest is the body of POST /search
type SearchRequest struct {
	Query              string           `json:"query"`
	NumResults         int              `json:"numResults,omitempty"`
	Type               string           `json:"type,omitempty"`
	StartPublishedDate string           `json:"startPublishedDate,omitempty"`
	EndPublishedDate   string           `json:"endPublishedDate,omitempty"`
	Contents           *ContentsOptions `json:"contents,omitempty"`
}

// SimilarRequest is the body of POST /findSimilar
type SimilarRequest struct {
	URL        string           `json:"url"`
	NumResults int              `json:"numResults,omitempty"`
	Contents   *ContentsOptions `json:"contents,omitempty"`
}

// SearchResult is one Exa hit
type SearchResult struct {
	ID            string   `json:"id,omitempty"`
	Title         string   `json:"title"`
	URL           string   `json:"url"`
	PublishedDate string   `json:"publishedDate,omitempty"`
	Author        string   `json:"author,omitempty"`
	Score         *float64 `json:"score,omitempty"`
	Text          string   `json:"text,omitempty"`
}

// SearchResponse is the shared response of /search and /findSimilar
type SearchResponse struct {
	RequestID string         `json:"requestId,omitempty"`
	Results   []SearchResult `json:"results"`
}

// Search runs a query, returning contents when requested
func (c *ExaClient) Search(ctx context.Context, req SearchRequest) (*SearchResponse, error) {
	var resp SearchResponse
	if err := c.post(ctx, "/search", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// FindSimilar returns pages similar to req.URL
func (c *ExaClient) FindSimilar(ctx context.Context, req SimilarRequest) (*SearchResponse, error) {
	var resp SearchResponse
	if err := c.post(ctx, "/findSimilar", req, &resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

func (c *ExaClient) post(ctx context.Context, path string, body, out any) error {
	if c.cfg.APIKey == "" {
		return fmt.Errorf("%w: EXA_API_KEY is not set", ErrMissingCredentials)
	}

	h := http.Header{}
	h.Set("x-api-key", c.cfg.APIKey)

	return c.http.DoJSON(ctx, JSONRequest{
		Service: "Exa",
		Method:  http.MethodPost,
		URL:     c.cfg.BaseURL + path,
		Header:  h,
		Body:    body,
	}, out)
}
