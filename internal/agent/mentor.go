// Package agent wraps the llm engine as a single conversational career
// mentor. One Mentor exists per chat session, created lazily once
// credentials are available, and every Send chains onto the same
// conversation history.
package agent

import (
	"context"
	"fmt"
	"sync"

	"github.com/tezansahu/career-mentor-agent/internal/llm"
	"github.com/tezansahu/career-mentor-agent/internal/log"
)

// Config assembles a Mentor.
type Config struct {
	Provider llm.Provider
	Tools    *llm.ToolRegistry
	Model    string
	MaxTurns int
	Logger   log.Logger
}

// Mentor owns the conversation with the model: the system prompt, the
// accumulated message history and the tool-executing engine.
type Mentor struct {
	engine   *llm.Engine
	model    string
	maxTurns int
	logger   log.Logger

	mu       sync.Mutex
	messages []llm.Message
}

// New creates a Mentor. Panics if the logger is nil to catch wiring
// errors at startup.
func New(cfg Config) (*Mentor, error) {
	if cfg.Logger == nil {
		panic("agent: logger is required")
	}
	if cfg.Provider == nil {
		return nil, fmt.Errorf("agent: provider is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("agent: model is required")
	}

	return &Mentor{
		engine:   llm.NewEngine(cfg.Provider, cfg.Tools, cfg.Logger.With("component", "llm")),
		model:    cfg.Model,
		maxTurns: cfg.MaxTurns,
		logger:   cfg.Logger,
		messages: []llm.Message{llm.SystemText(systemPrompt)},
	}, nil
}

// Model returns the model identifier the mentor was created with.
func (m *Mentor) Model() string {
	return m.model
}

// Send appends the user's message to the conversation and streams the
// mentor's response. The caller must consume the stream and commit the
// final assistant text with RecordAssistant to keep the conversation
// chained.
func (m *Mentor) Send(ctx context.Context, userText string) (llm.Stream, error) {
	m.mu.Lock()
	m.messages = append(m.messages, llm.UserText(userText))
	snapshot := make([]llm.Message, len(m.messages))
	copy(snapshot, m.messages)
	m.mu.Unlock()

	m.logger.Debug("sending user message", "model", m.model, "history_len", len(snapshot))

	return m.engine.Stream(ctx, llm.Request{
		Model:    m.model,
		Messages: snapshot,
		MaxTurns: m.maxTurns,
	})
}

// RecordAssistant commits the assistant's final text to the
// conversation history so the next Send sees it.
func (m *Mentor) RecordAssistant(text string) {
	if text == "" {
		return
	}
	m.mu.Lock()
	m.messages = append(m.messages, llm.AssistantText(text))
	m.mu.Unlock()
}

// HistoryLen returns the number of messages in the conversation,
// including the system prompt.
func (m *Mentor) HistoryLen() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.messages)
}
