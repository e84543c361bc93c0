package web

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tezansahu/career-mentor-agent/internal/config"
	"github.com/tezansahu/career-mentor-agent/internal/llm"
	"github.com/tezansahu/career-mentor-agent/internal/log"
	"github.com/tezansahu/career-mentor-agent/internal/session"
)

func testConfig() *config.Config {
	return &config.Config{
		Model:    config.DefaultModel,
		MaxTurns: 5,
		Addr:     "localhost:8080",
	}
}

func newTestServer(t *testing.T) *Server {
	t.Helper()
	srv, err := NewServer(ServerConfig{
		Logger:       log.NewNop(),
		SessionStore: session.NewStore(log.NewNop()),
		Config:       testConfig(),
		CSRFSecret:   []byte(testSecret),
		IsDev:        true,
		ProviderFactory: func(token, model string) llm.Provider {
			return llm.NewMockProvider("test")
		},
	})
	require.NoError(t, err)
	return srv
}

func TestNewServer_Validation(t *testing.T) {
	_, err := NewServer(ServerConfig{})
	assert.Error(t, err)

	_, err = NewServer(ServerConfig{
		Logger:       log.NewNop(),
		SessionStore: session.NewStore(log.NewNop()),
		Config:       testConfig(),
		CSRFSecret:   []byte("short"),
	})
	assert.ErrorContains(t, err, "CSRF secret")
}

func TestServer_SecurityHeaders(t *testing.T) {
	srv := newTestServer(t)

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest("GET", "/health", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Security-Policy"), "default-src 'self'")
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", w.Header().Get("X-Frame-Options"))
}

func TestServer_Routes(t *testing.T) {
	srv := newTestServer(t)

	tests := []struct {
		method string
		path   string
		want   int
	}{
		{"GET", "/", http.StatusOK},
		{"GET", "/health", http.StatusOK},
		{"GET", "/ready", http.StatusOK},
		{"GET", "/sessions", http.StatusOK},
		{"GET", "/static/css/app.css", http.StatusOK},
		{"GET", "/static/js/chat.js", http.StatusOK},
		{"GET", "/nope", http.StatusNotFound},
		// Mutations without a CSRF token are rejected.
		{"POST", "/chat/send", http.StatusForbidden},
		{"POST", "/settings", http.StatusForbidden},
		{"POST", "/sessions", http.StatusForbidden},
	}
	for _, tt := range tests {
		w := httptest.NewRecorder()
		srv.ServeHTTP(w, httptest.NewRequest(tt.method, tt.path, nil))
		assert.Equal(t, tt.want, w.Code, "%s %s", tt.method, tt.path)
	}
}

func TestServer_HomePageServesChat(t *testing.T) {
	srv := newTestServer(t)

	w := httptest.NewRecorder()
	srv.ServeHTTP(w, httptest.NewRequest("GET", "/", nil))

	require.Equal(t, http.StatusOK, w.Code)
	body := w.Body.String()
	assert.Contains(t, body, "Career Mentor")
	assert.Contains(t, body, "/static/js/chat.js")
	// Fresh visitors get a pre-session CSRF token.
	assert.Contains(t, body, `value="pre:`)
}
