package tools

import (
	"fmt"
	"slices"
	"strings"
)

// TopicStatuses are the values of the topic database's Status select
var TopicStatuses = []string{"Backlog", "Candidate", "Research", "Writing", "Complete", "Archived"}

func validateStatus(field, status string) error {
	if !slices.Contains(TopicStatuses, status) {
		return fmt.Errorf("%s must be one of %s", field, strings.Join(TopicStatuses, ", "))
	}
	return nil
}

type UpdateTopicStatusParams struct {
	TopicID   string `json:"topic_id"`
	NewStatus string `json:"new_status"`
}

func (p *UpdateTopicStatusParams) Validate() error {
	if strings.TrimSpace(p.TopicID) == "" {
		return fmt.Errorf("topic_id is required")
	}
	return validateStatus("new_status", p.NewStatus)
}

type QueryTopicsParams struct {
	Status string `json:"status"`
	Limit  int    `json:"limit,omitempty"`
}

func (p *QueryTopicsParams) Validate() error {
	if err := validateStatus("status", p.Status); err != nil {
		return err
	}
	if p.Limit == 0 {
		p.Limit = 10
	}
	if p.Limit < 1 || p.Limit > 100 {
		return fmt.Errorf("limit must be between 1 and 100")
	}
	return nil
}

type CreateResearchPageParams struct {
	TopicID      string `json:"topic_id"`
	ResearchData string `json:"research_data"`
}

func (p *CreateResearchPageParams) Validate() error {
	if strings.TrimSpace(p.TopicID) == "" {
		return fmt.Errorf("topic_id is required")
	}
	if strings.TrimSpace(p.ResearchData) == "" {
		return fmt.Errorf("research_data is required")
	}
	return nil
}
