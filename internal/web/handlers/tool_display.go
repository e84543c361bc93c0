package handlers

import (
	"fmt"

	"github.com/tezansahu/career-mentor-agent/internal/web/component"
)

// toolDisplayInfo holds the user-facing labels for one tool.
type toolDisplayInfo struct {
	RunningMsg string
	DoneMsg    string
	FailedMsg  string
}

// toolDisplay maps tool names to labels. Names match the tools'
// ToolSpec names.
var toolDisplay = map[string]toolDisplayInfo{
	"web_search": {
		RunningMsg: "Searching the web",
		DoneMsg:    "Search complete",
		FailedMsg:  "Search failed",
	},
}

var defaultToolDisplay = toolDisplayInfo{
	RunningMsg: "Running tool",
	DoneMsg:    "Tool finished",
	FailedMsg:  "Tool failed",
}

// toolLabel builds the label shown next to a tool badge, e.g.
// "Searching the web (golang jobs)".
func toolLabel(name, info, state string) string {
	display, ok := toolDisplay[name]
	if !ok {
		display = defaultToolDisplay
	}

	var msg string
	switch state {
	case component.ToolStateRunning:
		msg = display.RunningMsg
	case component.ToolStateFailed:
		msg = display.FailedMsg
	default:
		msg = display.DoneMsg
	}

	if info != "" {
		return fmt.Sprintf("%s %s", msg, info)
	}
	return msg
}
