package tools

import (
	"encoding/json"
	"testing"

	"github.com/erauner12/topicbridge/internal/mcpserver/remote"
)

func TestCleanText(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"", ""},
		{"## Heading **bold** *em*", "Heading bold em"},
		{"[Skip to content] Body [Home]", "Body"},
		{"See [the report](https://x.example/r) now", "See  now"},
		{"Source (https://x.example/r) cited", "Source  cited"},
		{"one\n\n\n two", "one\n two"},
	}

	for _, tt := range tests {
		if got := cleanText(tt.in); got != tt.want {
			t.Errorf("cleanText(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}
}

func blockText(b remote.Block) string {
	var body *remote.TextBlock
	switch b.Type {
	case "heading_1":
		body = b.Heading1
	case "heading_2":
		body = b.Heading2
	case "paragraph":
		body = b.Paragraph
	case "bulleted_list_item":
		body = b.BulletedListItem
	}
	if body == nil || len(body.RichText) == 0 {
		return ""
	}
	return body.RichText[0].Text.Content
}

func TestResearchReport_Blocks(t *testing.T) {
	var report ResearchReport
	err := json.Unmarshal([]byte(`{
		"research_summary": "Fallback summary",
		"methodology": ["short", "Reviewed twelve utility filings"],
		"key_insights": ["Insight that is long enough"],
		"digest": ["too short for digest", "A digest entry that is long enough"],
		"recent_developments": [{"event": "merger"}],
		"citations": [
			{"title": "IEA", "url": "https://iea.org/r", "description": "Annual outlook"},
			{"title": "No link"},
			"Grid report 2026 https://grid.example/report",
			"https://bare.example/x",
			"Plain text citation"
		]
	}`), &report)
	if err != nil {
		t.Fatal(err)
	}

	blocks := report.Blocks()

	want := []struct {
		typ  string
		text string
	}{
		{"heading_1", "Research Digest: Research Report"},
		{"heading_2", "Research Summary"},
		{"paragraph", "Fallback summary"},
		{"heading_2", "Research Methodology"},
		{"bulleted_list_item", "Reviewed twelve utility filings"},
		{"heading_2", "Key Insights"},
		{"bulleted_list_item", "Insight that is long enough"},
		{"heading_2", "Research Digest"},
		{"bulleted_list_item", "A digest entry that is long enough"},
		{"heading_2", "Recent Developments"},
		{"bulleted_list_item", `{"event":"merger"}`},
		{"heading_2", "Citations"},
		{"paragraph", "IEA"},
		{"paragraph", "Grid report 2026"},
		{"paragraph", "https://bare.example/x"},
		{"paragraph", "Plain text citation"},
	}

	if len(blocks) != len(want) {
		for _, b := range blocks {
			t.Logf("%s %q", b.Type, blockText(b))
		}
		t.Fatalf("expected %d blocks, got %d", len(want), len(blocks))
	}
	for i, w := range want {
		if blocks[i].Type != w.typ || blockText(blocks[i]) != w.text {
			t.Errorf("block %d = %s %q, want %s %q", i, blocks[i].Type, blockText(blocks[i]), w.typ, w.text)
		}
	}

	iea := blocks[12].Paragraph.RichText
	if len(iea) != 2 || iea[0].Text.Link == nil || iea[0].Text.Link.URL != "https://iea.org/r" {
		t.Errorf("structured citation should link title and append description, got %+v", iea)
	}
	grid := blocks[13].Paragraph.RichText[0]
	if grid.Text.Link == nil || grid.Text.Link.URL != "https://grid.example/report" {
		t.Errorf("string citation should link its URL, got %+v", grid)
	}
}

func TestResearchReport_PrefersNewerFields(t *testing.T) {
	report := ResearchReport{
		TopicTitle:         "Batteries",
		ExecutiveSummary:   "Exec",
		ResearchSummary:    "Old",
		KeyFindings:        []any{"Finding that is long"},
		KeyInsights:        []any{"Insight that is long"},
		SupportingEvidence: []any{"Evidence that is long"},
		Digest:             []any{"Digest entry that is long enough"},
	}

	var headings []string
	for _, b := range report.Blocks() {
		if b.Type == "heading_1" || b.Type == "heading_2" {
			headings = append(headings, blockText(b))
		}
	}

	want := []string{"Research Digest: Batteries", "Executive Summary", "Key Findings", "Supporting Evidence"}
	if len(headings) != len(want) {
		t.Fatalf("headings = %v, want %v", headings, want)
	}
	for i := range want {
		if headings[i] != want[i] {
			t.Errorf("headings = %v, want %v", headings, want)
			break
		}
	}
}
