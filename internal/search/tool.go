package search

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/tezansahu/career-mentor-agent/internal/llm"
)

// ToolName is the function name the model calls to search the web.
const ToolName = "web_search"

// Tool adapts a Client to the agent tool interface.
//
// Execute never returns an error: provider failures become a short
// textual result so the model can acknowledge the failure and carry on
// instead of aborting the stream.
type Tool struct {
	client *Client
}

func NewTool(client *Client) *Tool {
	return &Tool{client: client}
}

func (t *Tool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        ToolName,
		Description: "Search the web for current information such as job listings, courses, salaries and industry trends.",
		Schema: map[string]any{
			"type": "object",
			"properties": map[string]any{
				"query": map[string]any{
					"type":        "string",
					"description": "Search query",
				},
			},
			"required":             []string{"query"},
			"additionalProperties": false,
		},
	}
}

func (t *Tool) Preview(args json.RawMessage) string {
	var payload struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(args, &payload); err != nil || payload.Query == "" {
		return ""
	}
	return payload.Query
}

func (t *Tool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	var payload struct {
		Query string `json:"query"`
	}
	if err := json.Unmarshal(args, &payload); err != nil {
		return fmt.Sprintf("Error: invalid web_search arguments: %v", err), nil
	}
	if payload.Query == "" {
		return "Error: web_search requires a query", nil
	}

	resp, err := t.client.Search(ctx, payload.Query)
	if err != nil {
		return fmt.Sprintf("Error: %v", err), nil
	}
	return resp.FormatMarkdown(), nil
}
