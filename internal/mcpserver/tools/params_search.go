package tools

import (
	"fmt"
	"net/url"
	"strings"
)

func validateURL(field, raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" || (u.Scheme != "http" && u.Scheme != "https") {
		return fmt.Errorf("%s must be an absolute http(s) URL", field)
	}
	return nil
}

func validateRange(field string, v, min, max int) error {
	if v < min || v > max {
		return fmt.Errorf("%s must be between %d and %d", field, min, max)
	}
	return nil
}

type WebSearchParams struct {
	Query          string `json:"query"`
	MaxResults     int    `json:"max_results,omitempty"`
	IncludeContent *bool  `json:"include_content,omitempty"`
}

func (p *WebSearchParams) Validate() error {
	if strings.TrimSpace(p.Query) == "" {
		return fmt.Errorf("query is required")
	}
	if p.MaxResults == 0 {
		p.MaxResults = 10
	}
	return validateRange("max_results", p.MaxResults, 1, 20)
}

func (p *WebSearchParams) includeContent() bool {
	return p.IncludeContent == nil || *p.IncludeContent
}

type ExtractContentParams struct {
	URL       string `json:"url"`
	MaxLength int    `json:"max_length,omitempty"`
}

func (p *ExtractContentParams) Validate() error {
	if err := validateURL("url", p.URL); err != nil {
		return err
	}
	if p.MaxLength == 0 {
		p.MaxLength = 2000
	}
	return validateRange("max_length", p.MaxLength, 500, 5000)
}

type SearchNewsParams struct {
	Query      string `json:"query"`
	MaxResults int    `json:"max_results,omitempty"`
	DaysBack   int    `json:"days_back,omitempty"`
}

func (p *SearchNewsParams) Validate() error {
	if strings.TrimSpace(p.Query) == "" {
		return fmt.Errorf("query is required")
	}
	if p.MaxResults == 0 {
		p.MaxResults = 5
	}
	if p.DaysBack == 0 {
		p.DaysBack = 30
	}
	if err := validateRange("max_results", p.MaxResults, 1, 10); err != nil {
		return err
	}
	return validateRange("days_back", p.DaysBack, 1, 365)
}

type FindSimilarParams struct {
	URL        string `json:"url"`
	MaxResults int    `json:"max_results,omitempty"`
}

func (p *FindSimilarParams) Validate() error {
	if err := validateURL("url", p.URL); err != nil {
		return err
	}
	if p.MaxResults == 0 {
		p.MaxResults = 5
	}
	return validateRange("max_results", p.MaxResults, 1, 10)
}
