package tools

// RegisterAllTools registers all available tools with the registry.
// Registration order is the tools/list order.
func RegisterAllTools(r *Registry) {
	// Topic database tools
	registerTopicTools(r)

	// Web research tools
	registerSearchTools(r)
}

func registerTopicTools(r *Registry) {
	r.MustRegister(ToolDefinition{
		Name:        "select_topic_from_backlog",
		Description: "Select the oldest topic in Backlog status and move it to Candidate. Returns the topic's properties, or an empty object when the backlog is empty.",
		InputSchema: EmptySchema(),
	}, HandleSelectTopicFromBacklog)

	r.MustRegister(ToolDefinition{
		Name:        "update_topic_status",
		Description: "Update the Status of a topic page",
		InputSchema: BuildSchema(map[string]any{
			"topic_id":   StringSchema("Notion page ID of the topic"),
			"new_status": EnumSchema("New status value", TopicStatuses),
		}, []string{"topic_id", "new_status"}),
	}, HandleUpdateTopicStatus)

	r.MustRegister(ToolDefinition{
		Name:        "query_topics_by_status",
		Description: "List topics with the given Status, oldest first",
		InputSchema: BuildSchema(map[string]any{
			"status": EnumSchema("Status to filter by", TopicStatuses),
			"limit":  BoundedIntegerSchema("Maximum number of topics to return (default: 10)", 1, 100, 10),
		}, []string{"status"}),
	}, HandleQueryTopicsByStatus)

	r.MustRegister(ToolDefinition{
		Name:        "create_research_page",
		Description: "Create a Research Report child page under a topic from a JSON research report",
		InputSchema: BuildSchema(map[string]any{
			"topic_id":      StringSchema("Notion page ID of the parent topic"),
			"research_data": StringSchema("JSON string with the research report (executive_summary, key_findings, supporting_evidence, recent_developments, citations, ...)"),
		}, []string{"topic_id", "research_data"}),
	}, HandleCreateResearchPage)
}

func registerSearchTools(r *Registry) {
	r.MustRegister(ToolDefinition{
		Name:        "web_search",
		Description: "Search the web with Exa and return ranked results with snippets",
		InputSchema: BuildSchema(map[string]any{
			"query":           StringSchema("Search query"),
			"max_results":     BoundedIntegerSchema("Maximum number of results (default: 10, max: 20)", 1, 20, 10),
			"include_content": WithDefault(BooleanSchema("Include the full page text of each result"), true),
		}, []string{"query"}),
	}, HandleWebSearch)

	r.MustRegister(ToolDefinition{
		Name:        "extract_content",
		Description: "Fetch a web page and return its title and readable text",
		InputSchema: BuildSchema(map[string]any{
			"url":        URLSchema("URL of the page to extract"),
			"max_length": BoundedIntegerSchema("Maximum length of the extracted text (default: 2000)", 500, 5000, 2000),
		}, []string{"url"}),
	}, HandleExtractContent)

	r.MustRegister(ToolDefinition{
		Name:        "search_news",
		Description: "Search recent news articles with Exa, limited to a date window",
		InputSchema: BuildSchema(map[string]any{
			"query":       StringSchema("News search query"),
			"max_results": BoundedIntegerSchema("Maximum number of articles (default: 5)", 1, 10, 5),
			"days_back":   BoundedIntegerSchema("How many days back to search (default: 30)", 1, 365, 30),
		}, []string{"query"}),
	}, HandleSearchNews)

	r.MustRegister(ToolDefinition{
		Name:        "find_similar",
		Description: "Find pages similar to a given URL with Exa",
		InputSchema: BuildSchema(map[string]any{
			"url":         URLSchema("Reference URL"),
			"max_results": BoundedIntegerSchema("Maximum number of results (default: 5)", 1, 10, 5),
		}, []string{"url"}),
	}, HandleFindSimilar)
}
