package handlers

import (
	"context"
	"errors"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/a-h/templ"
	"github.com/google/uuid"

	"github.com/tezansahu/career-mentor-agent/internal/agent"
	"github.com/tezansahu/career-mentor-agent/internal/llm"
	"github.com/tezansahu/career-mentor-agent/internal/log"
	"github.com/tezansahu/career-mentor-agent/internal/session"
	"github.com/tezansahu/career-mentor-agent/internal/web/component"
	"github.com/tezansahu/career-mentor-agent/internal/web/sse"
)

// SSEWriter is the streaming surface the chat handler writes to.
// An interface so tests can capture events.
type SSEWriter interface {
	WriteChunk(text string) error
	WriteTool(ctx context.Context, comp templ.Component) error
	WriteDone(ctx context.Context, comp templ.Component) error
	WriteError(code, message string) error
}

// SSETimeout bounds one streaming connection so abandoned clients
// cannot pin goroutines forever.
const SSETimeout = 5 * time.Minute

// TitleMaxLength is the maximum length of auto-generated session
// titles, in runes.
const TitleMaxLength = 50

// ProviderFactory builds an llm.Provider for the given token and
// model. Injected so tests never reach the network.
type ProviderFactory func(token, model string) llm.Provider

// SearchToolFactory builds the web search tool for the given API key.
type SearchToolFactory func(apiKey string) llm.Tool

// ChatConfig assembles a Chat handler.
type ChatConfig struct {
	Logger   log.Logger
	Sessions *Sessions

	// Defaults supply credentials from the environment; per-session
	// values take precedence field by field.
	Defaults session.Credentials

	MaxTurns int

	ProviderFactory ProviderFactory
	SearchFactory   SearchToolFactory

	// SSEWriterFn is optional; nil uses sse.NewWriter.
	SSEWriterFn func(w http.ResponseWriter) (SSEWriter, error)
}

// Chat handles message submission and response streaming. It owns the
// per-session agent handles: one mentor per session, created lazily on
// the first streamed response and kept for the session's lifetime.
type Chat struct {
	logger      log.Logger
	sessions    *Sessions
	defaults    session.Credentials
	maxTurns    int
	provider    ProviderFactory
	searchTool  SearchToolFactory
	sseWriterFn func(w http.ResponseWriter) (SSEWriter, error)

	mu      sync.Mutex
	mentors map[uuid.UUID]*agent.Mentor
	pending map[string]pendingMessage
}

// pendingMessage is a user message accepted by Send and not yet picked
// up by its stream. Keeping the text server-side means the SSE GET
// carries only the message ID: the streamed question is always the
// committed user turn, and a forged link cannot submit text of its own.
type pendingMessage struct {
	sessionID uuid.UUID
	content   string
}

func defaultSSEWriterFn(w http.ResponseWriter) (SSEWriter, error) {
	return sse.NewWriter(w)
}

// NewChat creates a Chat handler. Panics if logger, sessions or the
// provider factory is nil to catch wiring errors at startup.
func NewChat(cfg ChatConfig) *Chat {
	if cfg.Logger == nil {
		panic("handlers: logger is required")
	}
	if cfg.Sessions == nil {
		panic("handlers: sessions is required")
	}
	if cfg.ProviderFactory == nil {
		panic("handlers: provider factory is required")
	}
	sseWriterFn := cfg.SSEWriterFn
	if sseWriterFn == nil {
		sseWriterFn = defaultSSEWriterFn
	}
	return &Chat{
		logger:      cfg.Logger,
		sessions:    cfg.Sessions,
		defaults:    cfg.Defaults,
		maxTurns:    cfg.MaxTurns,
		provider:    cfg.ProviderFactory,
		searchTool:  cfg.SearchFactory,
		sseWriterFn: sseWriterFn,
		mentors:     make(map[uuid.UUID]*agent.Mentor),
		pending:     make(map[string]pendingMessage),
	}
}

// addPending stores a message for pickup by its stream. A session has
// at most one pending message; a newer Send supersedes an abandoned
// one, so the map stays bounded by the number of sessions.
func (h *Chat) addPending(msgID string, sessionID uuid.UUID, content string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for id, p := range h.pending {
		if p.sessionID == sessionID {
			delete(h.pending, id)
		}
	}
	h.pending[msgID] = pendingMessage{sessionID: sessionID, content: content}
}

// takePending consumes the pending message for msgID. It only matches
// within the requesting session, so a message ID cannot be replayed
// from another session.
func (h *Chat) takePending(msgID string, sessionID uuid.UUID) (string, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	p, ok := h.pending[msgID]
	if !ok || p.sessionID != sessionID {
		return "", false
	}
	delete(h.pending, msgID)
	return p.content, true
}

// EffectiveCredentials merges session credentials over the environment
// defaults, field by field.
func (h *Chat) EffectiveCredentials(creds session.Credentials) session.Credentials {
	out := creds
	if out.Token == "" {
		out.Token = h.defaults.Token
	}
	if out.Model == "" {
		out.Model = h.defaults.Model
	}
	if out.SerperKey == "" {
		out.SerperKey = h.defaults.SerperKey
	}
	return out
}

// mentorFor returns the session's mentor, creating it on first use.
// No provider handle exists until this is called with complete
// credentials.
func (h *Chat) mentorFor(sessionID uuid.UUID, creds session.Credentials) (*agent.Mentor, error) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if mentor, ok := h.mentors[sessionID]; ok {
		return mentor, nil
	}

	registry := llm.NewToolRegistry()
	if creds.SerperKey != "" && h.searchTool != nil {
		registry.Register(h.searchTool(creds.SerperKey))
	}

	mentor, err := agent.New(agent.Config{
		Provider: h.provider(creds.Token, creds.Model),
		Tools:    registry,
		Model:    creds.Model,
		MaxTurns: h.maxTurns,
		Logger:   h.logger.With("session_id", sessionID),
	})
	if err != nil {
		return nil, err
	}

	h.mentors[sessionID] = mentor
	h.logger.Info("mentor created", "session_id", sessionID, "model", creds.Model,
		"search_enabled", creds.SerperKey != "")
	return mentor, nil
}

// DropMentor releases the agent handle and any pending message for a
// deleted session.
func (h *Chat) DropMentor(sessionID uuid.UUID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.mentors, sessionID)
	for id, p := range h.pending {
		if p.sessionID == sessionID {
			delete(h.pending, id)
		}
	}
}

// MentorCount returns the number of live agent handles.
func (h *Chat) MentorCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.mentors)
}

// Send handles POST /chat/send. Validates credentials, appends the
// user turn and returns the user bubble plus the streaming shell the
// client script attaches an SSE connection to. Supports lazy session
// creation: a pre-session token gets a fresh session and updated form
// fields in the response.
func (h *Chat) Send(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form data", http.StatusBadRequest)
		return
	}

	content := strings.TrimSpace(r.FormValue("content"))
	if content == "" {
		http.Error(w, "content is required", http.StatusBadRequest)
		return
	}

	var (
		sess         session.Session
		newCSRFToken string
		isNewSession bool
		err          error
	)

	if IsPreSessionToken(r.FormValue("csrf_token")) {
		// First message from a fresh visitor. The CSRF middleware has
		// already validated the pre-session token.
		sess, err = h.sessions.CreateAndBind(w, r)
		if err != nil {
			h.logger.Error("lazy session creation failed", "error", err)
			http.Error(w, "failed to create session", http.StatusInternalServerError)
			return
		}
		isNewSession = true
		newCSRFToken = h.sessions.NewCSRFToken(sess.ID)
		h.logger.Info("session created on first message", "session_id", sess.ID)
	} else {
		sess, err = h.sessions.Resolve(r)
		if err != nil {
			http.Error(w, "invalid session", http.StatusForbidden)
			return
		}
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")

	// Chat is blocked until a token and model are available. No agent
	// handle is created for the refused submission.
	creds := h.EffectiveCredentials(sess.Credentials)
	if !creds.Complete() {
		w.WriteHeader(http.StatusUnprocessableEntity)
		note := component.ErrorNote("Add your GitHub token in the sidebar before chatting.")
		if isNewSession {
			note = join(note, component.SessionFields(sess.ID.String(), newCSRFToken))
		}
		_ = note.Render(r.Context(), w)
		return
	}

	if err := h.sessions.Store().AppendTurn(r.Context(), sess.ID, session.Turn{
		Role: session.RoleUser,
		Text: content,
	}); err != nil {
		http.Error(w, "failed to record message", http.StatusInternalServerError)
		return
	}
	h.maybeSetTitle(r.Context(), sess, content)

	msgID := uuid.NewString()
	h.addPending(msgID, sess.ID, content)
	fragments := []templ.Component{
		component.MessageBubble(component.MessageBubbleProps{Role: session.RoleUser, Content: content}),
		component.AssistantStreaming(msgID, sess.ID.String()),
	}
	if isNewSession {
		fragments = append(fragments, component.SessionFields(sess.ID.String(), newCSRFToken))
	}
	for _, frag := range fragments {
		if err := frag.Render(r.Context(), w); err != nil {
			h.logger.Error("render send response", "error", err)
			return
		}
	}
}

// join renders components in sequence as one.
func join(comps ...templ.Component) templ.Component {
	return templ.ComponentFunc(func(ctx context.Context, w io.Writer) error {
		for _, c := range comps {
			if err := c.Render(ctx, w); err != nil {
				return err
			}
		}
		return nil
	})
}

// maybeSetTitle titles an untitled session from its first message.
func (h *Chat) maybeSetTitle(ctx context.Context, sess session.Session, content string) {
	if sess.Title != "" {
		return
	}
	if err := h.sessions.Store().SetTitle(ctx, sess.ID, truncateForTitle(content)); err != nil {
		h.logger.Warn("set session title", "error", err, "session_id", sess.ID)
	}
}

// truncateForTitle shortens a message to a session title, breaking at
// a word boundary when one is near enough.
func truncateForTitle(message string) string {
	message = strings.TrimSpace(message)
	runes := []rune(message)
	if len(runes) <= TitleMaxLength {
		return message
	}

	truncated := string(runes[:TitleMaxLength])
	if lastSpace := strings.LastIndex(truncated, " "); lastSpace > TitleMaxLength/2 {
		truncated = truncated[:lastSpace]
	}
	return strings.TrimSpace(truncated) + "..."
}

// Stream handles GET /chat/stream?msg_id=X, the SSE endpoint. Each
// assistant response gets its own connection. The message text comes
// from the pending entry Send recorded, never from the URL.
func (h *Chat) Stream(w http.ResponseWriter, r *http.Request) {
	msgID := r.URL.Query().Get("msg_id")
	if msgID == "" {
		http.Error(w, "missing parameters", http.StatusBadRequest)
		return
	}

	sess, err := h.sessions.Resolve(r)
	if err != nil {
		http.Error(w, "invalid session", http.StatusForbidden)
		return
	}

	sw, err := h.sseWriterFn(w)
	if err != nil {
		h.logger.Error("SSE not supported", "error", err)
		http.Error(w, "SSE not supported", http.StatusInternalServerError)
		return
	}

	creds := h.EffectiveCredentials(sess.Credentials)
	if !creds.Complete() {
		_ = sw.WriteError("missing_credentials", "Add your GitHub token in the sidebar before chatting.")
		return
	}

	query, ok := h.takePending(msgID, sess.ID)
	if !ok {
		_ = sw.WriteError("unknown_message", "No pending message for this stream.")
		return
	}

	// One submission per session at a time.
	store := h.sessions.Store()
	if err := store.BeginSubmission(r.Context(), sess.ID); err != nil {
		if errors.Is(err, session.ErrSubmissionInFlight) {
			_ = sw.WriteError("busy", "A response is already streaming for this chat.")
		} else {
			_ = sw.WriteError("invalid_session", "Session no longer exists.")
		}
		return
	}
	defer store.EndSubmission(context.WithoutCancel(r.Context()), sess.ID)

	mentor, err := h.mentorFor(sess.ID, creds)
	if err != nil {
		h.logger.Error("mentor creation failed", "error", err, "session_id", sess.ID)
		_ = sw.WriteError("agent_error", "Could not start the mentor with these settings.")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), SSETimeout)
	defer cancel()

	h.stream(ctx, sw, mentor, sess.ID, msgID, query)
}

// streamState accumulates one response while it streams.
type streamState struct {
	text  strings.Builder
	tools []session.ToolCallRecord
	// pending maps tool call IDs to indexes in tools; a call that
	// never sees its end event stays committed with empty output.
	pending map[string]int
	done    bool
}

// stream consumes the mentor's event stream, renders each event once
// and commits the result. The commit happens exactly once per
// response: on a clean finish it is the final text, on an abrupt end
// it is whatever chunks arrived.
func (h *Chat) stream(ctx context.Context, sw SSEWriter, mentor *agent.Mentor, sessionID uuid.UUID, msgID, query string) {
	eventStream, err := mentor.Send(ctx, query)
	if err != nil {
		h.logger.Error("mentor send failed", "error", err, "session_id", sessionID)
		_ = sw.WriteError("stream_error", "Failed to start the response. Please try again.")
		return
	}
	defer eventStream.Close()

	state := &streamState{pending: make(map[string]int)}
	var streamErr error

	for {
		event, err := eventStream.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			streamErr = err
			break
		}
		h.renderEvent(ctx, sw, state, event)
	}

	finalText := agent.StripTermination(state.text.String())

	// Commit once, even when the stream ended abruptly or the client
	// went away mid-response.
	if finalText != "" || len(state.tools) > 0 {
		mentor.RecordAssistant(finalText)
		commitCtx := context.WithoutCancel(ctx)
		if err := h.sessions.Store().AppendTurn(commitCtx, sessionID, session.Turn{
			Role:      session.RoleAssistant,
			Text:      finalText,
			ToolCalls: state.tools,
		}); err != nil {
			h.logger.Error("commit assistant turn", "error", err, "session_id", sessionID)
		}
	}

	if streamErr != nil {
		h.logger.Error("stream failed", "error", streamErr, "session_id", sessionID, "partial_len", len(finalText))
		_ = sw.WriteError("stream_error", "The response was interrupted.")
	}
	if !state.done {
		h.logger.Warn("stream ended without done event", "session_id", sessionID)
	}

	final := component.MessageBubble(component.MessageBubbleProps{
		Role:    session.RoleAssistant,
		Content: finalText,
	})
	if err := sw.WriteDone(ctx, final); err != nil {
		h.logger.Debug("write done failed, client likely gone", "error", err)
	}
}

// renderEvent renders one stream event. Events are forwarded as they
// arrive and never replayed, so nothing is rendered twice.
func (h *Chat) renderEvent(ctx context.Context, sw SSEWriter, state *streamState, event llm.Event) {
	switch event.Type {
	case llm.EventTextDelta:
		if event.Text == "" {
			return
		}
		state.text.WriteString(event.Text)
		if err := sw.WriteChunk(event.Text); err != nil {
			h.logger.Debug("write chunk failed, client likely gone", "error", err)
		}

	case llm.EventToolExecStart:
		state.pending[event.ToolCallID] = len(state.tools)
		state.tools = append(state.tools, session.ToolCallRecord{
			Name:  event.ToolName,
			Input: strings.Trim(event.ToolInfo, "()"),
		})
		_ = sw.WriteTool(ctx, component.ToolStatus(component.ToolStatusProps{
			CallID: event.ToolCallID,
			Label:  toolLabel(event.ToolName, event.ToolInfo, component.ToolStateRunning),
			State:  component.ToolStateRunning,
		}))

	case llm.EventToolExecEnd:
		if idx, ok := state.pending[event.ToolCallID]; ok {
			state.tools[idx].Output = event.ToolOutput
			delete(state.pending, event.ToolCallID)
		}
		toolState := component.ToolStateDone
		if !event.ToolSuccess {
			toolState = component.ToolStateFailed
		}
		_ = sw.WriteTool(ctx, component.ToolStatus(component.ToolStatusProps{
			CallID: event.ToolCallID,
			Label:  toolLabel(event.ToolName, event.ToolInfo, toolState),
			State:  toolState,
		}))

	case llm.EventDone:
		state.done = true

	case llm.EventUsage:
		if event.Use != nil {
			h.logger.Debug("usage", "input_tokens", event.Use.InputTokens, "output_tokens", event.Use.OutputTokens)
		}
	}
}

// RegisterRoutes registers the chat routes.
func (h *Chat) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /chat/send", h.Send)
	mux.HandleFunc("GET /chat/stream", h.Stream)
}
