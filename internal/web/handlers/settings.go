package handlers

import (
	"net/http"
	"strings"

	"github.com/tezansahu/career-mentor-agent/internal/config"
	"github.com/tezansahu/career-mentor-agent/internal/log"
	"github.com/tezansahu/career-mentor-agent/internal/session"
)

// Settings handles the sidebar credential form. Credentials live on
// the session; an empty field keeps the session's current value so
// saving the model alone does not wipe a stored token.
type Settings struct {
	logger   log.Logger
	sessions *Sessions
}

// NewSettings creates a Settings handler. Panics if logger is nil.
func NewSettings(logger log.Logger, sessions *Sessions) *Settings {
	if logger == nil {
		panic("handlers: logger is required")
	}
	return &Settings{logger: logger, sessions: sessions}
}

// Save handles POST /settings. Supports lazy session creation like
// the chat form: a pre-session token gets a session before the
// credentials are stored. The agent handle, once created, keeps the
// settings it started with; new settings apply to the next chat.
//
// The form is a plain browser POST, so Save redirects back to the
// chat page rather than answering with a fragment. The saved=1 query
// parameter tells the page to show the confirmation note.
func (h *Settings) Save(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, "invalid form data", http.StatusBadRequest)
		return
	}

	model := strings.TrimSpace(r.FormValue("model"))
	if model != "" && !config.ValidModel(model) {
		http.Error(w, "unknown model", http.StatusBadRequest)
		return
	}

	var (
		sess session.Session
		err  error
	)

	if IsPreSessionToken(r.FormValue("csrf_token")) {
		sess, err = h.sessions.CreateAndBind(w, r)
		if err != nil {
			http.Error(w, "failed to create session", http.StatusInternalServerError)
			return
		}
	} else {
		sess, err = h.sessions.Resolve(r)
		if err != nil {
			http.Error(w, "invalid session", http.StatusForbidden)
			return
		}
	}

	creds := sess.Credentials
	if token := strings.TrimSpace(r.FormValue("token")); token != "" {
		creds.Token = token
	}
	if model != "" {
		creds.Model = model
	}
	if key := strings.TrimSpace(r.FormValue("serper_key")); key != "" {
		creds.SerperKey = key
	}

	if err := h.sessions.Store().SetCredentials(r.Context(), sess.ID, creds); err != nil {
		http.Error(w, "failed to save settings", http.StatusInternalServerError)
		return
	}
	h.logger.Info("settings saved", "session_id", sess.ID, "model", creds.Model,
		"token_set", creds.Token != "", "search_enabled", creds.SerperKey != "")

	http.Redirect(w, r, "/?saved=1", http.StatusSeeOther)
}

// RegisterRoutes registers the settings route.
func (h *Settings) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /settings", h.Save)
}
