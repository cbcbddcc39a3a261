package remote

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"unicode/utf8"
)

const (
	// DefaultNotionBaseURL is the public Notion API endpoint
	DefaultNotionBaseURL = "https://api.notion.com"

	// NotionAPIVersion is sent as the Notion-Version header
	NotionAPIVersion = "2022-06-28"

	// MaxPageSize is the largest page_size Notion accepts
	MaxPageSize = 100

	// maxBlocksPerRequest is Notion's limit on children per create/append
	maxBlocksPerRequest = 100

	// maxRichTextLength is Notion's limit on a single rich text content
	maxRichTextLength = 2000

	// StatusProperty is the select property holding a topic's workflow state
	StatusProperty = "Status"
)

// NotionConfig holds credentials for the topic database
type NotionConfig struct {
	APIKey     string
	DatabaseID string
	BaseURL    string
	APIVersion string
}

// NotionClient talks to the Notion REST API
type NotionClient struct {
	cfg  NotionConfig
	http *HTTPClient
}

// NewNotionClient creates a Notion client. Missing credentials are reported
// per call, not here.
func NewNotionClient(cfg NotionConfig, httpClient *HTTPClient) *NotionClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultNotionBaseURL
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")
	if cfg.APIVersion == "" {
		cfg.APIVersion = NotionAPIVersion
	}
	return &NotionClient{cfg: cfg, http: httpClient}
}

// Page is a Notion page as returned by query and create
type Page struct {
	ID          string              `json:"id"`
	URL         string              `json:"url,omitempty"`
	CreatedTime string              `json:"created_time,omitempty"`
	Properties  map[string]Property `json:"properties,omitempty"`
}

// PropertyText returns the plain text value of a named property
func (p Page) PropertyText(name string) string {
	prop, ok := p.Properties[name]
	if !ok {
		return ""
	}
	return prop.Text()
}

// PublicURL is the notion.so link for the page
func (p Page) PublicURL() string {
	if p.URL != "" {
		return p.URL
	}
	return "https://www.notion.so/" + strings.ReplaceAll(p.ID, "-", "")
}

// Property is a page property value. Only the fields used by topics are decoded.
type Property struct {
	Type        string         `json:"type"`
	Title       []RichText     `json:"title,omitempty"`
	RichText    []RichText     `json:"rich_text,omitempty"`
	Select      *SelectOption  `json:"select,omitempty"`
	Status      *SelectOption  `json:"status,omitempty"`
	MultiSelect []SelectOption `json:"multi_select,omitempty"`
	Number      *float64       `json:"number,omitempty"`
	URL         *string        `json:"url,omitempty"`
	Date        *DateValue     `json:"date,omitempty"`
}

// SelectOption is a select, status or multi_select value
type SelectOption struct {
	Name string `json:"name"`
}

// DateValue is a date property value
type DateValue struct {
	Start string `json:"start"`
	End   string `json:"end,omitempty"`
}

// Text flattens the property to a display string
func (p Property) Text() string {
	switch p.Type {
	case "title":
		return joinPlainText(p.Title)
	case "rich_text":
		return joinPlainText(p.RichText)
	case "select":
		if p.Select != nil {
			return p.Select.Name
		}
	case "status":
		if p.Status != nil {
			return p.Status.Name
		}
	case "multi_select":
		names := make([]string, 0, len(p.MultiSelect))
		for _, opt := range p.MultiSelect {
			names = append(names, opt.Name)
		}
		return strings.Join(names, ", ")
	case "number":
		if p.Number != nil {
			return strconv.FormatFloat(*p.Number, 'f', -1, 64)
		}
	case "url":
		if p.URL != nil {
			return *p.URL
		}
	case "date":
		if p.Date != nil {
			if p.Date.End != "" {
				return p.Date.Start + " to " + p.Date.End
			}
			return p.Date.Start
		}
	}
	return ""
}

func joinPlainText(parts []RichText) string {
	var b strings.Builder
	for _, part := range parts {
		if part.PlainText != "" {
			b.WriteString(part.PlainText)
		} else if part.Text != nil {
			b.WriteString(part.Text.Content)
		}
	}
	return b.String()
}

// RichText is a Notion rich text object. Outgoing objects set Text; incoming
// ones also carry PlainText.
type RichText struct {
	Type      string       `json:"type,omitempty"`
	Text      *TextContent `json:"text,omitempty"`
	PlainText string       `json:"plain_text,omitempty"`
}

// TextContent is the text payload of a rich text object
type TextContent struct {
	Content string    `json:"content"`
	Link    *LinkInfo `json:"link,omitempty"`
}

// LinkInfo is a hyperlink target
type LinkInfo struct {
	URL string `json:"url"`
}

// Text builds a plain rich text run, truncated to Notion's length limit
func Text(content string) RichText {
	return RichText{Type: "text", Text: &TextContent{Content: truncateRunes(content, maxRichTextLength)}}
}

// Link builds a hyperlinked rich text run
func Link(content, href string) RichText {
	rt := Text(content)
	rt.Text.Link = &LinkInfo{URL: href}
	return rt
}

// TextBlock is the body shared by headings, paragraphs and list items
type TextBlock struct {
	RichText []RichText `json:"rich_text"`
}

// Block is a Notion block object
type Block struct {
	Object           string     `json:"object"`
	Type             string     `json:"type"`
	Heading1         *TextBlock `json:"heading_1,omitempty"`
	Heading2         *TextBlock `json:"heading_2,omitempty"`
	Heading3         *TextBlock `json:"heading_3,omitempty"`
	Paragraph        *TextBlock `json:"paragraph,omitempty"`
	BulletedListItem *TextBlock `json:"bulleted_list_item,omitempty"`
	Divider          *struct{}  `json:"divider,omitempty"`
}

// Heading builds a heading block of level 1 to 3
func Heading(level int, text string) Block {
	body := &TextBlock{RichText: []RichText{Text(text)}}
	switch level {
	case 1:
		return Block{Object: "block", Type: "heading_1", Heading1: body}
	case 2:
		return Block{Object: "block", Type: "heading_2", Heading2: body}
	default:
		return Block{Object: "block", Type: "heading_3", Heading3: body}
	}
}

// Paragraph builds a paragraph block
func Paragraph(parts ...RichText) Block {
	return Block{Object: "block", Type: "paragraph", Paragraph: &TextBlock{RichText: parts}}
}

// Bullet builds a bulleted list item block
func Bullet(parts ...RichText) Block {
	return Block{Object: "block", Type: "bulleted_list_item", BulletedListItem: &TextBlock{RichText: parts}}
}

// Divider builds a divider block
func Divider() Block {
	return Block{Object: "block", Type: "divider", Divider: &struct{}{}}
}

func (c *NotionClient) header() http.Header {
	h := http.Header{}
	h.Set("Authorization", "Bearer "+c.cfg.APIKey)
	h.Set("Notion-Version", c.cfg.APIVersion)
	return h
}

func (c *NotionClient) requireKey() error {
	if c.cfg.APIKey == "" {
		return fmt.Errorf("%w: NOTION_API_KEY is not set", ErrMissingCredentials)
	}
	return nil
}

type queryResponse struct {
	Results    []Page `json:"results"`
	HasMore    bool   `json:"has_more"`
	NextCursor string `json:"next_cursor"`
}

// QueryDatabase returns pages whose Status select equals status, oldest first
func (c *NotionClient) QueryDatabase(ctx context.Context, status string, pageSize int) ([]Page, error) {
	if err := c.requireKey(); err != nil {
		return nil, err
	}
	if c.cfg.DatabaseID == "" {
		return nil, fmt.Errorf("%w: EG_NOTION_DB_ID is not set", ErrMissingCredentials)
	}
	if pageSize < 1 || pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	body := map[string]any{
		"filter": map[string]any{
			"property": StatusProperty,
			"select":   map[string]any{"equals": status},
		},
		"sorts": []map[string]any{
			{"timestamp": "created_time", "direction": "ascending"},
		},
		"page_size": pageSize,
	}

	var resp queryResponse
	err := c.http.DoJSON(ctx, JSONRequest{
		Service: "Notion",
		Method:  http.MethodPost,
		URL:     fmt.Sprintf("%s/v1/databases/%s/query", c.cfg.BaseURL, url.PathEscape(c.cfg.DatabaseID)),
		Header:  c.header(),
		Body:    body,
	}, &resp)
	if err != nil {
		return nil, err
	}

	return resp.Results, nil
}

// UpdatePageStatus sets the Status select of a page
func (c *NotionClient) UpdatePageStatus(ctx context.Context, pageID, status string) error {
	if err := c.requireKey(); err != nil {
		return err
	}

	body := map[string]any{
		"properties": map[string]any{
			StatusProperty: map[string]any{
				"select": map[string]any{"name": status},
			},
		},
	}

	return c.http.DoJSON(ctx, JSONRequest{
		Service: "Notion",
		Method:  http.MethodPatch,
		URL:     fmt.Sprintf("%s/v1/pages/%s", c.cfg.BaseURL, url.PathEscape(pageID)),
		Header:  c.header(),
		Body:    body,
	}, nil)
}

// CreatePage creates a child page under parentPageID. Children beyond
// Notion's per-request limit are appended in follow-up requests.
func (c *NotionClient) CreatePage(ctx context.Context, parentPageID, title string, children []Block) (*Page, error) {
	if err := c.requireKey(); err != nil {
		return nil, err
	}

	first := children
	var rest []Block
	if len(children) > maxBlocksPerRequest {
		first, rest = children[:maxBlocksPerRequest], children[maxBlocksPerRequest:]
	}

	body := map[string]any{
		"parent": map[string]any{"page_id": parentPageID},
		"properties": map[string]any{
			"title": map[string]any{
				"title": []RichText{Text(title)},
			},
		},
		"children": first,
	}

	var page Page
	err := c.http.DoJSON(ctx, JSONRequest{
		Service: "Notion",
		Method:  http.MethodPost,
		URL:     c.cfg.BaseURL + "/v1/pages",
		Header:  c.header(),
		Body:    body,
	}, &page)
	if err != nil {
		return nil, err
	}

	for len(rest) > 0 {
		n := min(len(rest), maxBlocksPerRequest)
		if err := c.appendBlocks(ctx, page.ID, rest[:n]); err != nil {
			return &page, err
		}
		rest = rest[n:]
	}

	return &page, nil
}

func (c *NotionClient) appendBlocks(ctx context.Context, blockID string, children []Block) error {
	return c.http.DoJSON(ctx, JSONRequest{
		Service: "Notion",
		Method:  http.MethodPatch,
		URL:     fmt.Sprintf("%s/v1/blocks/%s/children", c.cfg.BaseURL, url.PathEscape(blockID)),
		Header:  c.header(),
		Body:    map[string]any{"children": children},
	}, nil)
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	r := []rune(s)
	return string(r[:n])
}
