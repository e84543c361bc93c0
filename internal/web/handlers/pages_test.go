package handlers

import (
	"context"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tezansahu/career-mentor-agent/internal/log"
	"github.com/tezansahu/career-mentor-agent/internal/session"
)

func newTestPages(t *testing.T, env *testEnv) *Pages {
	t.Helper()
	return NewPages(PagesConfig{
		Logger:   log.NewNop(),
		Sessions: env.sessions,
		Chat:     env.chat,
	})
}

func TestPages_FreshVisitorGetsPreSessionState(t *testing.T) {
	env := newTestEnv(t)
	pages := newTestPages(t, env)

	r := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()
	pages.Chat(w, r)

	require.Equal(t, 200, w.Code)
	body := w.Body.String()

	// Pre-session token, no session bound, no store writes.
	assert.Contains(t, body, "pre:")
	assert.Contains(t, body, `id="session-id" name="session_id" value=""`)
	sessions, err := env.store.List(context.Background())
	require.NoError(t, err)
	assert.Empty(t, sessions)
	assert.Empty(t, w.Result().Cookies())
}

func TestPages_RendersTranscript(t *testing.T) {
	env := newTestEnv(t)
	pages := newTestPages(t, env)
	ctx := context.Background()

	sess := env.newSessionWithCreds(t, creds())
	require.NoError(t, env.store.AppendTurn(ctx, sess.ID, session.Turn{
		Role: session.RoleUser, Text: "should I learn Go?",
	}))
	require.NoError(t, env.store.AppendTurn(ctx, sess.ID, session.Turn{
		Role: session.RoleAssistant, Text: "Yes.",
		ToolCalls: []session.ToolCallRecord{{Name: "web_search", Input: "go jobs", Output: "x"}},
	}))

	r := httptest.NewRequest("GET", "/", nil)
	addSessionCookie(r, sess)
	w := httptest.NewRecorder()
	pages.Chat(w, r)

	body := w.Body.String()
	assert.Contains(t, body, "should I learn Go?")
	assert.Contains(t, body, "Used web_search (go jobs)")
	assert.Contains(t, body, `value="`+sess.ID.String()+`"`)
	// Credentials configured, so no hint.
	assert.NotContains(t, body, "Add your GitHub token")
}

func TestPages_SessionSwitchUpdatesCookie(t *testing.T) {
	env := newTestEnv(t)
	pages := newTestPages(t, env)

	current := env.newSessionWithCreds(t, creds())
	other := env.newSessionWithCreds(t, creds())

	r := httptest.NewRequest("GET", "/?session_id="+other.ID.String(), nil)
	addSessionCookie(r, current)
	w := httptest.NewRecorder()
	pages.Chat(w, r)

	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)
	assert.Equal(t, other.ID.String(), cookies[0].Value)
}

func TestPages_ShowsSettingsSavedNote(t *testing.T) {
	env := newTestEnv(t)
	pages := newTestPages(t, env)
	sess := env.newSessionWithCreds(t, creds())

	r := httptest.NewRequest("GET", "/?saved=1", nil)
	addSessionCookie(r, sess)
	w := httptest.NewRecorder()
	pages.Chat(w, r)

	assert.Contains(t, w.Body.String(), "Settings saved.")

	// Without the flag the note stays empty.
	r = httptest.NewRequest("GET", "/", nil)
	addSessionCookie(r, sess)
	w = httptest.NewRecorder()
	pages.Chat(w, r)
	assert.Contains(t, w.Body.String(), `<div id="settings-note" class="settings-note"></div>`)
}

func TestPages_CredentialHintWithoutToken(t *testing.T) {
	env := newTestEnv(t)
	pages := newTestPages(t, env)

	r := httptest.NewRequest("GET", "/", nil)
	w := httptest.NewRecorder()
	pages.Chat(w, r)

	assert.Contains(t, w.Body.String(), "Add your GitHub token")
}
