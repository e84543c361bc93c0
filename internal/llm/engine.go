package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/tezansahu/career-mentor-agent/internal/log"
)

const (
	defaultMaxTurns = 5
	stopToolHint    = "IMPORTANT: Do not call any tools. Use the information already retrieved and answer directly."
)

func getMaxTurns(req Request) int {
	if req.MaxTurns > 0 {
		return req.MaxTurns
	}
	return defaultMaxTurns
}

// Engine orchestrates provider calls and external tool execution.
// When the model requests registered tools, the engine executes them,
// feeds the results back and streams the follow-up turn, until the model
// answers without tool calls or the turn budget runs out.
type Engine struct {
	provider Provider
	tools    *ToolRegistry
	logger   log.Logger
}

// NewEngine creates an engine. Panics if logger is nil to catch wiring
// errors at startup.
func NewEngine(provider Provider, tools *ToolRegistry, logger log.Logger) *Engine {
	if logger == nil {
		panic("llm: logger is required")
	}
	if tools == nil {
		tools = NewToolRegistry()
	}
	return &Engine{
		provider: provider,
		tools:    tools,
		logger:   logger,
	}
}

// RegisterTool adds a tool to the engine's registry.
func (e *Engine) RegisterTool(tool Tool) {
	e.tools.Register(tool)
}

// Tools returns the engine's tool registry.
func (e *Engine) Tools() *ToolRegistry {
	return e.tools
}

// Stream returns a stream of events for the request, applying external
// tools when the provider supports tool calls.
func (e *Engine) Stream(ctx context.Context, req Request) (Stream, error) {
	caps := e.provider.Capabilities()

	if caps.ToolCalls && e.tools.Len() > 0 {
		for _, spec := range e.tools.AllSpecs() {
			if !hasToolNamed(req.Tools, spec.Name) {
				req.Tools = append(req.Tools, spec)
			}
		}
	}

	if len(req.Tools) > 0 && caps.ToolCalls {
		return newEventStream(ctx, func(ctx context.Context, events chan<- Event) error {
			return e.runLoop(ctx, req, events)
		}), nil
	}

	return e.provider.Stream(ctx, req)
}

func hasToolNamed(tools []ToolSpec, name string) bool {
	for _, t := range tools {
		if t.Name == name {
			return true
		}
	}
	return false
}

func (e *Engine) runLoop(ctx context.Context, req Request, events chan<- Event) error {
	maxTurns := getMaxTurns(req)

	for attempt := 0; attempt < maxTurns; attempt++ {
		if attempt == maxTurns-1 {
			req.Messages = append(req.Messages, SystemText(stopToolHint))
		}

		stream, err := e.provider.Stream(ctx, req)
		if err != nil {
			return err
		}

		var toolCalls []ToolCall
		var textBuilder strings.Builder
		for {
			event, err := stream.Recv()
			if err == io.EOF {
				break
			}
			if err != nil {
				stream.Close()
				return err
			}
			if event.Type == EventError && event.Err != nil {
				stream.Close()
				return event.Err
			}
			if event.Type == EventTextDelta && event.Text != "" {
				textBuilder.WriteString(event.Text)
			}
			if event.Type == EventToolCall && event.Tool != nil {
				toolCalls = append(toolCalls, *event.Tool)
				continue
			}
			if event.Type == EventDone {
				continue
			}
			events <- event
		}
		stream.Close()

		if len(toolCalls) == 0 {
			events <- Event{Type: EventDone}
			return nil
		}

		if attempt == maxTurns-1 {
			return fmt.Errorf("agentic loop exceeded max turns (%d)", maxTurns)
		}

		toolCalls = ensureToolCallIDs(toolCalls)
		toolCalls = dedupeToolCalls(toolCalls)

		toolResults := make([]Message, 0, len(toolCalls))
		for _, call := range toolCalls {
			toolResults = append(toolResults, e.executeToolCall(ctx, call, events))
		}

		req.Messages = append(req.Messages, buildAssistantMessage(textBuilder.String(), toolCalls))
		req.Messages = append(req.Messages, toolResults...)
	}

	return fmt.Errorf("agentic loop ended unexpectedly")
}

// executeToolCall runs a single tool call, emitting exec start/end
// events. Execution failures become error results for the model, never
// stream failures.
func (e *Engine) executeToolCall(ctx context.Context, call ToolCall, events chan<- Event) Message {
	info := e.getToolPreview(call)
	events <- Event{Type: EventToolExecStart, ToolCallID: call.ID, ToolName: call.Name, ToolInfo: info}

	tool, ok := e.tools.Get(call.Name)
	if !ok {
		errMsg := fmt.Sprintf("Error: tool not registered: %s", call.Name)
		e.logger.Warn("tool call for unregistered tool", "tool", call.Name)
		events <- Event{Type: EventToolExecEnd, ToolCallID: call.ID, ToolName: call.Name, ToolInfo: info, ToolSuccess: false, ToolOutput: errMsg}
		return ToolErrorMessage(call.ID, call.Name, errMsg)
	}

	output, err := tool.Execute(ctx, call.Arguments)
	if err != nil {
		errMsg := fmt.Sprintf("Error: %v", err)
		e.logger.Warn("tool execution failed", "tool", call.Name, "error", err)
		events <- Event{Type: EventToolExecEnd, ToolCallID: call.ID, ToolName: call.Name, ToolInfo: info, ToolSuccess: false, ToolOutput: errMsg}
		return ToolErrorMessage(call.ID, call.Name, errMsg)
	}

	e.logger.Debug("tool executed", "tool", call.Name, "output_len", len(output))
	events <- Event{Type: EventToolExecEnd, ToolCallID: call.ID, ToolName: call.Name, ToolInfo: info, ToolSuccess: true, ToolOutput: output}
	return ToolResultMessage(call.ID, call.Name, output)
}

func buildAssistantMessage(text string, toolCalls []ToolCall) Message {
	var parts []Part
	if text != "" {
		parts = append(parts, Part{Type: PartText, Text: text})
	}
	for i := range toolCalls {
		call := toolCalls[i]
		parts = append(parts, Part{Type: PartToolCall, ToolCall: &call})
	}
	return Message{Role: RoleAssistant, Parts: parts}
}

// Preview limits for tool call argument display.
const (
	previewMaxLen      = 500
	previewMaxParams   = 5
	previewValueMaxLen = 200
)

// ensureToolCallIDs backfills IDs for providers that stream tool calls
// without one, so exec start and end events stay correlated.
func ensureToolCallIDs(calls []ToolCall) []ToolCall {
	for i := range calls {
		if strings.TrimSpace(calls[i].ID) == "" {
			calls[i].ID = fmt.Sprintf("toolcall-%d", i+1)
		}
	}
	return calls
}

// dedupeToolCalls drops repeated IDs, keeping the first occurrence.
// Calls without an ID are kept as-is.
func dedupeToolCalls(calls []ToolCall) []ToolCall {
	if len(calls) < 2 {
		return calls
	}
	seen := make(map[string]bool, len(calls))
	out := calls[:0]
	for _, call := range calls {
		id := strings.TrimSpace(call.ID)
		if id != "" {
			if seen[id] {
				continue
			}
			seen[id] = true
		}
		out = append(out, call)
	}
	return out
}

// getToolPreview asks the tool for a display preview first and falls
// back to the generic argument formatting.
func (e *Engine) getToolPreview(call ToolCall) string {
	if tool, ok := e.tools.Get(call.Name); ok {
		if preview := tool.Preview(call.Arguments); preview != "" {
			if strings.HasPrefix(preview, "(") {
				return preview
			}
			return "(" + preview + ")"
		}
	}
	return ExtractToolInfo(call)
}

// ExtractToolInfo builds a preview string from tool call arguments,
// e.g. `(remote data science jobs)` for a single-argument call.
func ExtractToolInfo(call ToolCall) string {
	if len(call.Arguments) == 0 {
		return ""
	}

	var args map[string]any
	if err := json.Unmarshal(call.Arguments, &args); err != nil {
		return ""
	}

	return formatToolArgs(args)
}

func formatToolArgs(args map[string]any) string {
	type argPair struct {
		key string
		val string
	}
	var pairs []argPair

	for key, raw := range args {
		var val string
		switch v := raw.(type) {
		case string:
			if v == "" {
				continue
			}
			val = v
		case float64:
			if v == float64(int(v)) {
				val = fmt.Sprintf("%d", int(v))
			} else {
				val = fmt.Sprintf("%g", v)
			}
		case bool:
			val = fmt.Sprintf("%v", v)
		default:
			continue
		}
		pairs = append(pairs, argPair{key: key, val: truncateRunes(val, previewValueMaxLen)})
	}

	if len(pairs) == 0 {
		return ""
	}

	sort.Slice(pairs, func(i, j int) bool { return pairs[i].key < pairs[j].key })

	var b strings.Builder
	b.WriteString("(")
	if len(pairs) == 1 {
		b.WriteString(pairs[0].val)
	} else {
		for i, p := range pairs {
			if i >= previewMaxParams {
				b.WriteString(", ...")
				break
			}
			if i > 0 {
				b.WriteString(", ")
			}
			b.WriteString(p.key)
			b.WriteString(":")
			b.WriteString(p.val)
		}
	}
	b.WriteString(")")

	result := b.String()
	if runes := []rune(result); len(runes) > previewMaxLen {
		result = string(runes[:previewMaxLen-4]) + "...)"
	}
	return result
}

// truncateRunes shortens s to at most max runes, appending an ellipsis
// when it cuts. Slicing on runes keeps multi-byte characters intact.
func truncateRunes(s string, max int) string {
	if len(s) <= max {
		return s
	}
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}
	return string(runes[:max-3]) + "..."
}
