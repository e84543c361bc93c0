package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"sync"
	"testing"

	"github.com/a-h/templ"
	"github.com/stretchr/testify/require"

	"github.com/tezansahu/career-mentor-agent/internal/llm"
	"github.com/tezansahu/career-mentor-agent/internal/log"
	"github.com/tezansahu/career-mentor-agent/internal/session"
)

const testSecret = "0123456789abcdef0123456789abcdef"

// fakeSSE records everything the chat handler writes.
type fakeSSE struct {
	mu     sync.Mutex
	Chunks []string
	Tools  []string
	Done   []string
	Errors []string // "code: message"
}

func (f *fakeSSE) WriteChunk(text string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Chunks = append(f.Chunks, text)
	return nil
}

func (f *fakeSSE) render(ctx context.Context, comp templ.Component) (string, error) {
	var buf bytes.Buffer
	err := comp.Render(ctx, &buf)
	return buf.String(), err
}

func (f *fakeSSE) WriteTool(ctx context.Context, comp templ.Component) error {
	html, err := f.render(ctx, comp)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Tools = append(f.Tools, html)
	return nil
}

func (f *fakeSSE) WriteDone(ctx context.Context, comp templ.Component) error {
	html, err := f.render(ctx, comp)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Done = append(f.Done, html)
	return nil
}

func (f *fakeSSE) WriteError(code, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Errors = append(f.Errors, code+": "+message)
	return nil
}

// countingFactory records provider creation so tests can assert no
// handle exists before credentials are in place.
type countingFactory struct {
	mu       sync.Mutex
	provider *llm.MockProvider
	calls    int
}

func (c *countingFactory) factory() ProviderFactory {
	return func(token, model string) llm.Provider {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.calls++
		return c.provider
	}
}

func (c *countingFactory) Calls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.calls
}

// scriptedStream replays a fixed event sequence and then io.EOF.
type scriptedStream struct {
	events []llm.Event
	idx    int
}

func (s *scriptedStream) Recv() (llm.Event, error) {
	if s.idx >= len(s.events) {
		return llm.Event{}, io.EOF
	}
	ev := s.events[s.idx]
	s.idx++
	return ev, nil
}

func (s *scriptedStream) Close() error { return nil }

// scriptedProvider plays the same raw event sequence for every Stream
// call. Unlike MockProvider it can stop mid-sequence, e.g. a tool exec
// start with no matching end.
type scriptedProvider struct {
	events []llm.Event
}

func (p *scriptedProvider) Name() string { return "scripted" }

func (p *scriptedProvider) Capabilities() llm.Capabilities {
	return llm.Capabilities{ToolCalls: true}
}

func (p *scriptedProvider) Stream(ctx context.Context, req llm.Request) (llm.Stream, error) {
	return &scriptedStream{events: p.events}, nil
}

func withProvider(p llm.Provider) envOption {
	return func(cfg *ChatConfig) {
		cfg.ProviderFactory = func(token, model string) llm.Provider { return p }
	}
}

// fakeSearchTool is a web_search stand-in that never errors.
type fakeSearchTool struct {
	output string
}

func (f *fakeSearchTool) Spec() llm.ToolSpec {
	return llm.ToolSpec{
		Name:        "web_search",
		Description: "search the web",
		Schema:      map[string]any{"type": "object"},
	}
}

func (f *fakeSearchTool) Execute(ctx context.Context, args json.RawMessage) (string, error) {
	return f.output, nil
}

func (f *fakeSearchTool) Preview(args json.RawMessage) string {
	var parsed struct {
		Query string `json:"query"`
	}
	_ = json.Unmarshal(args, &parsed)
	return parsed.Query
}

// testEnv bundles the wired handlers for one test.
type testEnv struct {
	store    *session.Store
	sessions *Sessions
	chat     *Chat
	provider *llm.MockProvider
	factory  *countingFactory
	sse      *fakeSSE
}

type envOption func(*ChatConfig)

func withDefaults(creds session.Credentials) envOption {
	return func(cfg *ChatConfig) { cfg.Defaults = creds }
}

func newTestEnv(t *testing.T, opts ...envOption) *testEnv {
	t.Helper()

	store := session.NewStore(log.NewNop())
	sessions := NewSessions(store, []byte(testSecret), true)

	provider := llm.NewMockProvider("mock")
	factory := &countingFactory{provider: provider}
	sse := &fakeSSE{}

	cfg := ChatConfig{
		Logger:          log.NewNop(),
		Sessions:        sessions,
		MaxTurns:        5,
		ProviderFactory: factory.factory(),
		SearchFactory: func(apiKey string) llm.Tool {
			return &fakeSearchTool{output: "- [Result](https://example.com) - snippet"}
		},
		SSEWriterFn: func(w http.ResponseWriter) (SSEWriter, error) {
			return sse, nil
		},
	}
	for _, opt := range opts {
		opt(&cfg)
	}

	chat := NewChat(cfg)
	sessions.OnDelete(chat.DropMentor)

	return &testEnv{
		store:    store,
		sessions: sessions,
		chat:     chat,
		provider: provider,
		factory:  factory,
		sse:      sse,
	}
}

// newSessionWithCreds creates a store session with credentials set.
func (e *testEnv) newSessionWithCreds(t *testing.T, creds session.Credentials) session.Session {
	t.Helper()
	sess, err := e.store.Create(context.Background())
	require.NoError(t, err)
	if creds != (session.Credentials{}) {
		require.NoError(t, e.store.SetCredentials(context.Background(), sess.ID, creds))
	}
	got, err := e.store.Get(context.Background(), sess.ID)
	require.NoError(t, err)
	return got
}

// addSessionCookie attaches the session cookie to a request.
func addSessionCookie(r *http.Request, sess session.Session) {
	r.AddCookie(&http.Cookie{Name: SessionCookieName, Value: sess.ID.String()})
}
