package tools

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"github.com/erauner12/topicbridge/internal/mcpserver/remote"
)

// ResearchPageTitle is the title of every research child page
const ResearchPageTitle = "Research Report"

// ResearchReport is the research_data payload of create_research_page.
// Newer field names win over their older fallbacks.
type ResearchReport struct {
	TopicTitle          string            `json:"topic_title"`
	ExecutiveSummary    string            `json:"executive_summary"`
	ResearchSummary     string            `json:"research_summary"`
	ResearchMethodology []any             `json:"research_methodology"`
	Methodology         []any             `json:"methodology"`
	KeyFindings         []any             `json:"key_findings"`
	KeyInsights         []any             `json:"key_insights"`
	SupportingEvidence  []any             `json:"supporting_evidence"`
	Digest              []any             `json:"digest"`
	RecentDevelopments  []any             `json:"recent_developments"`
	Citations           []json.RawMessage `json:"citations"`
}

// Citation is the structured citation form
type Citation struct {
	Title       string `json:"title"`
	URL         string `json:"url"`
	Description string `json:"description"`
}

var (
	markdownLink  = regexp.MustCompile(`\[.*?\]\(.*?\)`)
	parenURL      = regexp.MustCompile(`\(https?://[^\s)]+\)`)
	blankLines    = regexp.MustCompile(`\n\s*\n`)
	citationURL   = regexp.MustCompile(`https?://[^\s)\]]+(?:/[^\s)\]]*)?`)
	markdownNoise = strings.NewReplacer(
		"####", "", "###", "", "##", "",
		"**", "", "*", "",
		"[Skip to content]", "", "[Sections]", "", "[Home]", "",
	)
)

// cleanText strips markdown artifacts that render badly in Notion
func cleanText(text string) string {
	if text == "" {
		return ""
	}
	text = markdownNoise.Replace(text)
	text = markdownLink.ReplaceAllString(text, "")
	text = parenURL.ReplaceAllString(text, "")
	text = blankLines.ReplaceAllString(text, "\n")
	return strings.TrimSpace(text)
}

func itemText(item any) string {
	switch v := item.(type) {
	case string:
		return v
	case nil:
		return ""
	default:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(data)
	}
}

func firstNonEmpty(lists ...[]any) []any {
	for _, l := range lists {
		if len(l) > 0 {
			return l
		}
	}
	return nil
}

// bulletSection appends a heading and one bullet per item longer than minLen
func bulletSection(blocks []remote.Block, heading string, items []any, minLen int) []remote.Block {
	if len(items) == 0 {
		return blocks
	}
	blocks = append(blocks, remote.Heading(2, heading))
	for _, item := range items {
		if text := cleanText(itemText(item)); len(text) > minLen {
			blocks = append(blocks, remote.Bullet(remote.Text(text)))
		}
	}
	return blocks
}

// Blocks renders the report as Notion blocks
func (r ResearchReport) Blocks() []remote.Block {
	title := r.TopicTitle
	if title == "" {
		title = ResearchPageTitle
	}
	blocks := []remote.Block{remote.Heading(1, cleanText("Research Digest: "+title))}

	switch {
	case r.ExecutiveSummary != "":
		blocks = append(blocks, remote.Heading(2, "Executive Summary"))
		if text := cleanText(r.ExecutiveSummary); text != "" {
			blocks = append(blocks, remote.Paragraph(remote.Text(text)))
		}
	case r.ResearchSummary != "":
		blocks = append(blocks, remote.Heading(2, "Research Summary"))
		if text := cleanText(r.ResearchSummary); text != "" {
			blocks = append(blocks, remote.Paragraph(remote.Text(text)))
		}
	}

	blocks = bulletSection(blocks, "Research Methodology", firstNonEmpty(r.ResearchMethodology, r.Methodology), 10)

	if len(r.KeyFindings) > 0 {
		blocks = bulletSection(blocks, "Key Findings", r.KeyFindings, 10)
	} else {
		blocks = bulletSection(blocks, "Key Insights", r.KeyInsights, 10)
	}

	if len(r.SupportingEvidence) > 0 {
		blocks = bulletSection(blocks, "Supporting Evidence", r.SupportingEvidence, 10)
	} else {
		blocks = bulletSection(blocks, "Research Digest", r.Digest, 20)
	}

	blocks = bulletSection(blocks, "Recent Developments", r.RecentDevelopments, 10)

	if len(r.Citations) > 0 {
		blocks = append(blocks, remote.Heading(2, "Citations"))
		for _, raw := range r.Citations {
			if block, ok := citationBlock(raw); ok {
				blocks = append(blocks, block)
			}
		}
	}

	return blocks
}

func citationBlock(raw json.RawMessage) (remote.Block, bool) {
	var structured Citation
	if err := json.Unmarshal(raw, &structured); err == nil {
		title := structured.Title
		if title == "" {
			title = "Source"
		}
		title = cleanText(title)
		if title == "" || structured.URL == "" {
			return remote.Block{}, false
		}
		parts := []remote.RichText{remote.Link(title, structured.URL)}
		if desc := cleanText(structured.Description); desc != "" {
			parts = append(parts, remote.Text("\n"+desc))
		}
		return remote.Paragraph(parts...), true
	}

	var text string
	if err := json.Unmarshal(raw, &text); err != nil {
		return remote.Block{}, false
	}
	text = cleanText(text)
	if text == "" {
		return remote.Block{}, false
	}

	url := citationURL.FindString(text)
	if url == "" || len(text) <= len(url)+10 {
		if url != "" {
			return remote.Paragraph(remote.Link(url, url)), true
		}
		return remote.Paragraph(remote.Text(text)), true
	}

	title := strings.TrimSpace(strings.ReplaceAll(text, url, ""))
	if title == "" {
		title = url
	}
	return remote.Paragraph(remote.Link(title, url)), true
}
