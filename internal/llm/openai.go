package llm

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
)

// DefaultBaseURL is the GitHub Models inference endpoint. It speaks the
// OpenAI chat completions protocol and authenticates with a GitHub
// personal access token.
const DefaultBaseURL = "https://models.inference.ai.azure.com"

// OpenAIProvider implements Provider against an OpenAI-compatible chat
// completions endpoint.
type OpenAIProvider struct {
	client openai.Client
	model  string
	name   string
}

// NewOpenAIProvider creates a provider for the GitHub Models endpoint.
func NewOpenAIProvider(token, model string) *OpenAIProvider {
	return NewOpenAIProviderWithBaseURL(DefaultBaseURL, token, model)
}

// NewOpenAIProviderWithBaseURL creates a provider against a custom
// OpenAI-compatible endpoint. Used by tests with httptest servers.
func NewOpenAIProviderWithBaseURL(baseURL, token, model string) *OpenAIProvider {
	client := openai.NewClient(
		option.WithAPIKey(token),
		option.WithBaseURL(strings.TrimSuffix(baseURL, "/")),
	)
	return &OpenAIProvider{
		client: client,
		model:  model,
		name:   "GitHub Models",
	}
}

func (p *OpenAIProvider) Name() string {
	return fmt.Sprintf("%s (%s)", p.name, p.model)
}

func (p *OpenAIProvider) Capabilities() Capabilities {
	return Capabilities{ToolCalls: true}
}

func (p *OpenAIProvider) Stream(ctx context.Context, req Request) (Stream, error) {
	return newEventStream(ctx, func(ctx context.Context, events chan<- Event) error {
		messages, err := buildChatMessages(req.Messages)
		if err != nil {
			return err
		}
		if len(messages) == 0 {
			return fmt.Errorf("no messages provided")
		}

		params := openai.ChatCompletionNewParams{
			Model:    openai.ChatModel(chooseModel(req.Model, p.model)),
			Messages: messages,
			Tools:    buildChatTools(req.Tools),
			StreamOptions: openai.ChatCompletionStreamOptionsParam{
				IncludeUsage: openai.Bool(true),
			},
		}
		if req.Temperature > 0 {
			params.Temperature = openai.Float(float64(req.Temperature))
		}
		if req.MaxOutputTokens > 0 {
			params.MaxCompletionTokens = openai.Int(int64(req.MaxOutputTokens))
		}

		stream := p.client.Chat.Completions.NewStreaming(ctx, params)
		defer stream.Close()

		toolState := newToolCallState()
		var lastUsage *Usage

		for stream.Next() {
			chunk := stream.Current()

			if chunk.Usage.PromptTokens > 0 || chunk.Usage.CompletionTokens > 0 {
				lastUsage = &Usage{
					InputTokens:  int(chunk.Usage.PromptTokens),
					OutputTokens: int(chunk.Usage.CompletionTokens),
				}
			}

			for _, choice := range chunk.Choices {
				if choice.Delta.Content != "" {
					events <- Event{Type: EventTextDelta, Text: choice.Delta.Content}
				}
				if len(choice.Delta.ToolCalls) > 0 {
					toolState.Add(choice.Delta.ToolCalls)
				}
			}
		}

		if err := stream.Err(); err != nil {
			return fmt.Errorf("%s streaming error: %w", p.name, err)
		}

		for _, call := range toolState.Calls() {
			call := call
			events <- Event{Type: EventToolCall, Tool: &call}
		}
		if lastUsage != nil {
			events <- Event{Type: EventUsage, Use: lastUsage}
		}
		events <- Event{Type: EventDone}
		return nil
	}), nil
}

func chooseModel(requested, fallback string) string {
	if requested != "" {
		return requested
	}
	return fallback
}

func buildChatMessages(messages []Message) ([]openai.ChatCompletionMessageParamUnion, error) {
	var result []openai.ChatCompletionMessageParamUnion
	for _, msg := range messages {
		switch msg.Role {
		case RoleSystem:
			if text := collectText(msg.Parts); text != "" {
				result = append(result, openai.SystemMessage(text))
			}
		case RoleUser:
			if text := collectText(msg.Parts); text != "" {
				result = append(result, openai.UserMessage(text))
			}
		case RoleAssistant:
			text, toolCalls := splitParts(msg.Parts)
			if len(toolCalls) > 0 {
				assistant := openai.ChatCompletionAssistantMessageParam{ToolCalls: toolCalls}
				if text != "" {
					assistant.Content.OfString = openai.String(text)
				}
				result = append(result, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})
				continue
			}
			if text != "" {
				result = append(result, openai.AssistantMessage(text))
			}
		case RoleTool:
			for _, part := range msg.Parts {
				if part.Type != PartToolResult || part.ToolResult == nil {
					continue
				}
				result = append(result, openai.ToolMessage(part.ToolResult.Content, part.ToolResult.ID))
			}
		default:
			return nil, fmt.Errorf("unsupported message role: %s", msg.Role)
		}
	}
	return result, nil
}

func collectText(parts []Part) string {
	var b strings.Builder
	for _, part := range parts {
		if part.Type == PartText {
			b.WriteString(part.Text)
		}
	}
	return b.String()
}

func splitParts(parts []Part) (string, []openai.ChatCompletionMessageToolCallParam) {
	var textParts []string
	var toolCalls []openai.ChatCompletionMessageToolCallParam
	for _, part := range parts {
		switch part.Type {
		case PartText:
			if part.Text != "" {
				textParts = append(textParts, part.Text)
			}
		case PartToolCall:
			if part.ToolCall == nil {
				continue
			}
			toolCalls = append(toolCalls, openai.ChatCompletionMessageToolCallParam{
				ID: part.ToolCall.ID,
				Function: openai.ChatCompletionMessageToolCallFunctionParam{
					Name:      part.ToolCall.Name,
					Arguments: string(part.ToolCall.Arguments),
				},
			})
		}
	}
	return strings.Join(textParts, ""), toolCalls
}

func buildChatTools(specs []ToolSpec) []openai.ChatCompletionToolParam {
	if len(specs) == 0 {
		return nil
	}
	tools := make([]openai.ChatCompletionToolParam, 0, len(specs))
	for _, spec := range specs {
		tools = append(tools, openai.ChatCompletionToolParam{
			Function: openai.FunctionDefinitionParam{
				Name:        spec.Name,
				Description: openai.String(spec.Description),
				Parameters:  openai.FunctionParameters(spec.Schema),
			},
		})
	}
	return tools
}

// toolCallState accumulates streamed tool call deltas by choice index.
type toolCallState struct {
	byIndex map[int64]*partialToolCall
	order   []int64
}

type partialToolCall struct {
	id   string
	name string
	args strings.Builder
}

func newToolCallState() *toolCallState {
	return &toolCallState{byIndex: make(map[int64]*partialToolCall)}
}

func (s *toolCallState) Add(calls []openai.ChatCompletionChunkChoiceDeltaToolCall) {
	for _, call := range calls {
		state, ok := s.byIndex[call.Index]
		if !ok {
			state = &partialToolCall{}
			s.byIndex[call.Index] = state
			s.order = append(s.order, call.Index)
		}
		if call.ID != "" {
			state.id = call.ID
		}
		if call.Function.Name != "" {
			state.name = call.Function.Name
		}
		if call.Function.Arguments != "" {
			state.args.WriteString(call.Function.Arguments)
		}
	}
}

func (s *toolCallState) Calls() []ToolCall {
	if len(s.order) == 0 {
		return nil
	}
	sort.Slice(s.order, func(i, j int) bool { return s.order[i] < s.order[j] })
	calls := make([]ToolCall, 0, len(s.order))
	for _, idx := range s.order {
		state := s.byIndex[idx]
		if state == nil {
			continue
		}
		calls = append(calls, ToolCall{
			ID:        state.id,
			Name:      state.name,
			Arguments: []byte(state.args.String()),
		})
	}
	return calls
}
