package tools

import (
	"context"
	"encoding/json"

	"github.com/erauner12/topicbridge/internal/mcpserver/remote"
)

// Topic database tool handlers

// Topic is the flattened view of a topic page
type Topic struct {
	Topic      string `json:"Topic"`
	Angle      string `json:"Angle"`
	Stance     string `json:"Stance"`
	Audience   string `json:"Audience"`
	MustHit    string `json:"Must Hit"`
	RedLines   string `json:"Red lines"`
	GeoFocus   string `json:"Geo Focus"`
	TimeWindow string `json:"Time Window"`
	PageID     string `json:"page_id"`
}

func topicFromPage(page remote.Page) Topic {
	return Topic{
		Topic:      page.PropertyText("Topic"),
		Angle:      page.PropertyText("Angle"),
		Stance:     page.PropertyText("Stance"),
		Audience:   page.PropertyText("Audience"),
		MustHit:    page.PropertyText("Must Hit"),
		RedLines:   page.PropertyText("Red lines"),
		GeoFocus:   page.PropertyText("Geo Focus"),
		TimeWindow: page.PropertyText("Time Window"),
		PageID:     page.ID,
	}
}

// SelectedTopic is returned by select_topic_from_backlog
type SelectedTopic struct {
	PageID     string `json:"page_id"`
	NotionURL  string `json:"notion_url"`
	Topic      string `json:"Topic"`
	Angle      string `json:"Angle"`
	Stance     string `json:"Stance"`
	Audience   string `json:"Audience"`
	GeoFocus   string `json:"Geo Focus"`
	TimeWindow string `json:"Time Window"`
}

func HandleSelectTopicFromBacklog(ctx context.Context, tc *ToolContext, raw json.RawMessage) (interface{}, error) {
	store, err := tc.topics()
	if err != nil {
		return nil, err
	}
	logger := tc.logger()

	pages, err := store.QueryDatabase(ctx, "Backlog", remote.MaxPageSize)
	if err != nil {
		return nil, remoteFailure("Topic query failed", err)
	}
	if len(pages) == 0 {
		logger.Info().Msg("no backlog topics found")
		return map[string]any{}, nil
	}

	page := pages[0]
	if page.ID == "" {
		return nil, NewToolError(ErrCodeExecutionFailed, "Selected topic missing page_id", nil)
	}

	// The topic is still returned when the status update fails
	if err := store.UpdatePageStatus(ctx, page.ID, "Candidate"); err != nil {
		logger.Warn().Err(err).Str("pageId", page.ID).Msg("failed to mark topic as Candidate")
	} else {
		logger.Info().Str("pageId", page.ID).Msg("topic moved from Backlog to Candidate")
	}

	topic := topicFromPage(page)
	return SelectedTopic{
		PageID:     page.ID,
		NotionURL:  remote.Page{ID: page.ID}.PublicURL(),
		Topic:      topic.Topic,
		Angle:      topic.Angle,
		Stance:     topic.Stance,
		Audience:   topic.Audience,
		GeoFocus:   topic.GeoFocus,
		TimeWindow: topic.TimeWindow,
	}, nil
}

func HandleUpdateTopicStatus(ctx context.Context, tc *ToolContext, raw json.RawMessage) (interface{}, error) {
	var params UpdateTopicStatusParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, NewToolError(ErrCodeInvalidParams, "Invalid parameters: "+err.Error(), nil)
	}
	if err := params.Validate(); err != nil {
		return nil, NewToolError(ErrCodeInvalidParams, err.Error(), nil)
	}

	store, err := tc.topics()
	if err != nil {
		return nil, err
	}

	if err := store.UpdatePageStatus(ctx, params.TopicID, params.NewStatus); err != nil {
		return nil, remoteFailure("Status update failed", err)
	}

	tc.logger().Info().
		Str("pageId", params.TopicID).
		Str("status", params.NewStatus).
		Msg("topic status updated")

	return map[string]any{
		"success":    true,
		"topic_id":   params.TopicID,
		"new_status": params.NewStatus,
		"message":    "Topic status updated to " + params.NewStatus,
	}, nil
}

func HandleQueryTopicsByStatus(ctx context.Context, tc *ToolContext, raw json.RawMessage) (interface{}, error) {
	var params QueryTopicsParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, NewToolError(ErrCodeInvalidParams, "Invalid parameters: "+err.Error(), nil)
	}
	if err := params.Validate(); err != nil {
		return nil, NewToolError(ErrCodeInvalidParams, err.Error(), nil)
	}

	store, err := tc.topics()
	if err != nil {
		return nil, err
	}

	pages, err := store.QueryDatabase(ctx, params.Status, params.Limit)
	if err != nil {
		return nil, remoteFailure("Topic query failed", err)
	}

	topics := make([]Topic, 0, len(pages))
	for _, page := range pages {
		topics = append(topics, topicFromPage(page))
	}

	tc.logger().Debug().Int("count", len(topics)).Str("status", params.Status).Msg("topics queried")
	return topics, nil
}

func HandleCreateResearchPage(ctx context.Context, tc *ToolContext, raw json.RawMessage) (interface{}, error) {
	var params CreateResearchPageParams
	if err := json.Unmarshal(raw, &params); err != nil {
		return nil, NewToolError(ErrCodeInvalidParams, "Invalid parameters: "+err.Error(), nil)
	}
	if err := params.Validate(); err != nil {
		return nil, NewToolError(ErrCodeInvalidParams, err.Error(), nil)
	}

	var report ResearchReport
	if err := json.Unmarshal([]byte(params.ResearchData), &report); err != nil {
		return nil, NewToolError(ErrCodeInvalidParams, "Invalid JSON format: "+err.Error(), nil)
	}

	store, err := tc.topics()
	if err != nil {
		return nil, err
	}

	page, err := store.CreatePage(ctx, params.TopicID, ResearchPageTitle, report.Blocks())
	if err != nil {
		return nil, remoteFailure("Failed to create research page", err)
	}

	tc.logger().Info().Str("pageId", page.ID).Str("parentId", params.TopicID).Msg("research page created")

	return map[string]any{
		"success": true,
		"page_id": page.ID,
		"url":     page.PublicURL(),
		"message": "Research page created successfully",
	}, nil
}
