package handlers

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/tezansahu/career-mentor-agent/internal/web/component"
)

func TestToolLabel(t *testing.T) {
	assert.Equal(t, "Searching the web (golang jobs)",
		toolLabel("web_search", "(golang jobs)", component.ToolStateRunning))
	assert.Equal(t, "Search complete",
		toolLabel("web_search", "", component.ToolStateDone))
	assert.Equal(t, "Search failed (x)",
		toolLabel("web_search", "(x)", component.ToolStateFailed))
	assert.Equal(t, "Running tool",
		toolLabel("unknown_tool", "", component.ToolStateRunning))
}
