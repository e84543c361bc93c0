package llm

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"
)

// MockProvider is a scripted Provider for tests. Each configured turn
// is played back for one Stream call, in order.
type MockProvider struct {
	name string
	caps Capabilities

	mu       sync.Mutex
	turns    []MockTurn
	turnIdx  int
	Requests []Request
}

// MockTurn scripts a single provider response. Err, when set, fails
// the stream after Text has been emitted.
type MockTurn struct {
	Text      string
	ChunkSize int
	ToolCalls []ToolCall
	Err       error
	Delay     time.Duration
}

func NewMockProvider(name string) *MockProvider {
	return &MockProvider{
		name: name,
		caps: Capabilities{ToolCalls: true},
	}
}

func (p *MockProvider) WithCapabilities(caps Capabilities) *MockProvider {
	p.caps = caps
	return p
}

func (p *MockProvider) AddTurn(turn MockTurn) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.turns = append(p.turns, turn)
}

func (p *MockProvider) AddTextResponse(text string) {
	p.AddTurn(MockTurn{Text: text})
}

func (p *MockProvider) AddToolCall(id, name string, args any) {
	data, err := json.Marshal(args)
	if err != nil {
		panic(fmt.Sprintf("mock: marshal tool args: %v", err))
	}
	p.AddTurn(MockTurn{ToolCalls: []ToolCall{{ID: id, Name: name, Arguments: data}}})
}

func (p *MockProvider) AddError(err error) {
	p.AddTurn(MockTurn{Err: err})
}

// Reset clears recorded requests and rewinds the turn script.
func (p *MockProvider) Reset() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Requests = nil
	p.turnIdx = 0
}

// CurrentTurn returns the index of the next turn to play.
func (p *MockProvider) CurrentTurn() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.turnIdx
}

// RequestCount returns the number of Stream calls made.
func (p *MockProvider) RequestCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.Requests)
}

func (p *MockProvider) Name() string {
	return p.name
}

func (p *MockProvider) Capabilities() Capabilities {
	return p.caps
}

func (p *MockProvider) Stream(ctx context.Context, req Request) (Stream, error) {
	p.mu.Lock()
	p.Requests = append(p.Requests, req)
	if p.turnIdx >= len(p.turns) {
		p.mu.Unlock()
		return nil, fmt.Errorf("mock: no more turns configured (got %d calls)", len(p.Requests))
	}
	turn := p.turns[p.turnIdx]
	p.turnIdx++
	p.mu.Unlock()

	return newEventStream(ctx, func(ctx context.Context, events chan<- Event) error {
		if turn.Delay > 0 {
			select {
			case <-time.After(turn.Delay):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		for _, chunk := range chunkText(turn.Text, turn.ChunkSize) {
			select {
			case events <- Event{Type: EventTextDelta, Text: chunk}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		// Err fails the stream after any scripted text, simulating a
		// connection dying mid-response.
		if turn.Err != nil {
			return turn.Err
		}
		for i := range turn.ToolCalls {
			call := turn.ToolCalls[i]
			select {
			case events <- Event{Type: EventToolCall, Tool: &call}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		events <- Event{Type: EventUsage, Use: &Usage{InputTokens: 10, OutputTokens: len(turn.Text)}}
		events <- Event{Type: EventDone}
		return nil
	}), nil
}

// chunkText splits text into chunks of at most size bytes. A size of 0
// or less yields the whole text as one chunk.
func chunkText(text string, size int) []string {
	if text == "" {
		return nil
	}
	if size <= 0 {
		size = len(text)
	}
	var chunks []string
	for len(text) > size {
		chunks = append(chunks, text[:size])
		text = text[size:]
	}
	return append(chunks, text)
}
