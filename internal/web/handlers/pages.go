package handlers

import (
	"net/http"

	"github.com/google/uuid"

	"github.com/tezansahu/career-mentor-agent/internal/config"
	"github.com/tezansahu/career-mentor-agent/internal/log"
	"github.com/tezansahu/career-mentor-agent/internal/session"
	"github.com/tezansahu/career-mentor-agent/internal/web/component"
)

// PagesConfig assembles the Pages handler.
type PagesConfig struct {
	Logger   log.Logger
	Sessions *Sessions
	Chat     *Chat
}

// Pages renders the full chat page.
type Pages struct {
	logger   log.Logger
	sessions *Sessions
	chat     *Chat
}

// NewPages creates a Pages handler. Panics if logger is nil.
func NewPages(cfg PagesConfig) *Pages {
	if cfg.Logger == nil {
		panic("handlers: logger is required")
	}
	return &Pages{logger: cfg.Logger, sessions: cfg.Sessions, chat: cfg.Chat}
}

// Chat handles GET /. Fresh visitors get the pre-session state: no
// cookie, no store entry, a pre-session CSRF token. The session is
// created lazily on the first message or settings save.
//
// Query parameters:
//   - session_id: switch to an existing session (sidebar links)
//   - saved: show the settings confirmation after the redirect from
//     POST /settings
func (h *Pages) Chat(w http.ResponseWriter, r *http.Request) {
	// Session switches must not serve a cached transcript.
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")

	sess, err := h.sessions.Resolve(r)
	hasSession := err == nil

	if idStr := r.URL.Query().Get("session_id"); idStr != "" {
		if id, parseErr := uuid.Parse(idStr); parseErr == nil {
			if switched, getErr := h.sessions.Store().Get(r.Context(), id); getErr == nil {
				sess = switched
				hasSession = true
				h.sessions.SetSessionCookie(w, id)
			}
		}
	}

	props := component.ChatPageProps{
		Models:        config.Models(),
		SettingsSaved: r.URL.Query().Get("saved") == "1",
	}

	if hasSession {
		props.SessionID = sess.ID.String()
		props.CSRFToken = h.sessions.NewCSRFToken(sess.ID)

		turns, turnsErr := h.sessions.Store().Turns(r.Context(), sess.ID)
		if turnsErr != nil {
			h.logger.Error("load transcript", "error", turnsErr, "session_id", sess.ID)
		}
		props.Turns = turnsToView(turns)
	} else {
		props.CSRFToken = h.sessions.NewPreSessionCSRFToken()
	}

	creds := session.Credentials{}
	if hasSession {
		creds = sess.Credentials
	}
	effective := h.chat.EffectiveCredentials(creds)
	props.ActiveModel = effective.Model
	props.TokenSet = effective.Token != ""
	props.SerperSet = effective.SerperKey != ""
	props.CredentialsOK = effective.Complete()

	sessions, listErr := h.sessions.Store().List(r.Context())
	if listErr != nil {
		h.logger.Error("load sessions", "error", listErr)
	}
	for _, s := range sessions {
		if s.TurnCount == 0 && s.Title == "" && s.ID != sess.ID {
			continue
		}
		props.Sessions = append(props.Sessions, component.SessionItem{
			ID:        s.ID.String(),
			Title:     s.Title,
			UpdatedAt: s.UpdatedAt,
		})
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := component.ChatPage(props).Render(r.Context(), w); err != nil {
		h.logger.Error("render chat page", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
	}
}

func turnsToView(turns []session.Turn) []component.TurnView {
	views := make([]component.TurnView, 0, len(turns))
	for _, turn := range turns {
		views = append(views, component.TurnView{
			Role:      turn.Role,
			Text:      turn.Text,
			ToolCalls: turn.ToolCalls,
		})
	}
	return views
}

// RegisterRoutes registers the page routes.
func (h *Pages) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /{$}", h.Chat)
}
