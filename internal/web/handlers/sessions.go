// Package handlers provides the HTTP handlers of the chat interface.
package handlers

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/tezansahu/career-mentor-agent/internal/session"
	"github.com/tezansahu/career-mentor-agent/internal/web/component"
)

// Sentinel errors for session and CSRF operations. Note that
// ErrSessionCookieNotFound is the HTTP-layer condition; the store has
// its own session.ErrSessionNotFound.
var (
	ErrSessionCookieNotFound = errors.New("session cookie not found")
	ErrSessionInvalid        = errors.New("session ID invalid")
	ErrCSRFRequired          = errors.New("CSRF token required")
	ErrCSRFInvalid           = errors.New("CSRF token invalid")
	ErrCSRFExpired           = errors.New("CSRF token expired")
	ErrCSRFMalformed         = errors.New("CSRF token malformed")
)

// Pre-session CSRF tokens carry this prefix so validation can tell
// them apart from session-bound tokens.
const preSessionPrefix = "pre:"

// Cookie and token configuration.
const (
	SessionCookieName = "sid"
	CSRFTokenTTL      = 24 * time.Hour
	SessionMaxAge     = 30 * 24 * 3600 // seconds
	CSRFClockSkew     = 5 * time.Minute
)

// Sessions handles the session cookie, CSRF tokens and the sidebar
// session routes. Composes the in-memory session store.
type Sessions struct {
	store      *session.Store
	hmacSecret []byte
	isDev      bool // disables the Secure cookie flag for HTTP dev servers
	onDelete   func(uuid.UUID)
}

// OnDelete registers a callback invoked after a session is deleted,
// used to release the session's agent handle.
func (s *Sessions) OnDelete(fn func(uuid.UUID)) { s.onDelete = fn }

// NewSessions creates a Sessions handler. The secret must be at least
// 32 bytes for HMAC-SHA256.
func NewSessions(store *session.Store, hmacSecret []byte, isDev bool) *Sessions {
	return &Sessions{
		store:      store,
		hmacSecret: hmacSecret,
		isDev:      isDev,
	}
}

// Store returns the underlying session store.
func (s *Sessions) Store() *session.Store { return s.store }

// ID extracts the session ID from the cookie without creating one.
func (*Sessions) ID(r *http.Request) (uuid.UUID, error) {
	cookie, err := r.Cookie(SessionCookieName)
	if err != nil {
		return uuid.Nil, ErrSessionCookieNotFound
	}

	id, err := uuid.Parse(cookie.Value)
	if err != nil {
		return uuid.Nil, ErrSessionInvalid
	}
	return id, nil
}

// Resolve returns the session the request belongs to, verifying it
// still exists in the store.
func (s *Sessions) Resolve(r *http.Request) (session.Session, error) {
	id, err := s.ID(r)
	if err != nil {
		return session.Session{}, err
	}
	return s.store.Get(r.Context(), id)
}

// CreateAndBind creates a new session and sets the cookie.
func (s *Sessions) CreateAndBind(w http.ResponseWriter, r *http.Request) (session.Session, error) {
	sess, err := s.store.Create(r.Context())
	if err != nil {
		return session.Session{}, fmt.Errorf("create session: %w", err)
	}
	s.SetSessionCookie(w, sess.ID)
	return sess, nil
}

// SetSessionCookie sets or refreshes the session cookie.
func (s *Sessions) SetSessionCookie(w http.ResponseWriter, sessionID uuid.UUID) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookieName,
		Value:    sessionID.String(),
		Path:     "/",
		Secure:   !s.isDev,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   SessionMaxAge,
	})
}

// NewCSRFToken creates an HMAC token bound to the session:
// "timestamp:signature".
func (s *Sessions) NewCSRFToken(sessionID uuid.UUID) string {
	timestamp := time.Now().Unix()
	signature := s.sign(fmt.Sprintf("%s:%d", sessionID.String(), timestamp))
	return fmt.Sprintf("%d:%s", timestamp, signature)
}

// CheckCSRF verifies a session-bound token's signature and age.
func (s *Sessions) CheckCSRF(sessionID uuid.UUID, token string) error {
	if token == "" {
		return ErrCSRFRequired
	}

	parts := strings.SplitN(token, ":", 2)
	if len(parts) != 2 {
		return ErrCSRFMalformed
	}

	timestamp, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return ErrCSRFMalformed
	}
	if err := checkTokenAge(timestamp); err != nil {
		return err
	}

	expected := s.sign(fmt.Sprintf("%s:%d", sessionID.String(), timestamp))
	if subtle.ConstantTimeCompare([]byte(parts[1]), []byte(expected)) != 1 {
		return ErrCSRFInvalid
	}
	return nil
}

// NewPreSessionCSRFToken creates a token for visitors without a
// session yet. Format: "pre:nonce:timestamp:signature". Bound to a
// random nonce instead of a session ID.
func (s *Sessions) NewPreSessionCSRFToken() string {
	nonce := uuid.New().String()
	timestamp := time.Now().Unix()
	signature := s.sign(fmt.Sprintf("%s:%d", nonce, timestamp))
	return fmt.Sprintf("%s%s:%d:%s", preSessionPrefix, nonce, timestamp, signature)
}

// CheckPreSessionCSRF verifies a pre-session token.
func (s *Sessions) CheckPreSessionCSRF(token string) error {
	if token == "" {
		return ErrCSRFRequired
	}
	if !strings.HasPrefix(token, preSessionPrefix) {
		return ErrCSRFMalformed
	}

	parts := strings.SplitN(strings.TrimPrefix(token, preSessionPrefix), ":", 3)
	if len(parts) != 3 {
		return ErrCSRFMalformed
	}

	timestamp, err := strconv.ParseInt(parts[1], 10, 64)
	if err != nil {
		return ErrCSRFMalformed
	}
	if err := checkTokenAge(timestamp); err != nil {
		return err
	}

	expected := s.sign(fmt.Sprintf("%s:%d", parts[0], timestamp))
	if subtle.ConstantTimeCompare([]byte(parts[2]), []byte(expected)) != 1 {
		return ErrCSRFInvalid
	}
	return nil
}

// IsPreSessionToken reports whether the token is a pre-session token.
func IsPreSessionToken(token string) bool {
	return strings.HasPrefix(token, preSessionPrefix)
}

func (s *Sessions) sign(message string) string {
	h := hmac.New(sha256.New, s.hmacSecret)
	h.Write([]byte(message))
	return base64.URLEncoding.EncodeToString(h.Sum(nil))
}

func checkTokenAge(timestamp int64) error {
	age := time.Since(time.Unix(timestamp, 0))
	if age > CSRFTokenTTL {
		return ErrCSRFExpired
	}
	if age < -CSRFClockSkew {
		// Future timestamp means tampering.
		return ErrCSRFInvalid
	}
	return nil
}

// List handles GET /sessions. Returns the sidebar list as an HTML
// fragment, most recently updated first.
func (s *Sessions) List(w http.ResponseWriter, r *http.Request) {
	sessions, err := s.store.List(r.Context())
	if err != nil {
		http.Error(w, "failed to load sessions", http.StatusInternalServerError)
		return
	}

	activeID := ""
	if current, err := s.ID(r); err == nil {
		activeID = current.String()
	}

	items := make([]component.SessionItem, 0, len(sessions))
	for _, sess := range sessions {
		if sess.TurnCount == 0 && sess.Title == "" {
			// Hide empty placeholder sessions.
			continue
		}
		items = append(items, component.SessionItem{
			ID:        sess.ID.String(),
			Title:     sess.Title,
			UpdatedAt: sess.UpdatedAt,
		})
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := component.SessionList(items, activeID).Render(r.Context(), w); err != nil {
		// Partial content may already be written; logged by middleware.
		return
	}
}

// Create handles POST /sessions, the New Chat action. Creates a fresh
// session, binds the cookie and redirects to the empty chat. The new
// session starts with the previous session's credentials so the user
// does not re-enter them.
func (s *Sessions) Create(w http.ResponseWriter, r *http.Request) {
	var previous session.Credentials
	if current, err := s.Resolve(r); err == nil {
		previous = current.Credentials
	}

	sess, err := s.CreateAndBind(w, r)
	if err != nil {
		http.Error(w, "failed to create session", http.StatusInternalServerError)
		return
	}

	if previous != (session.Credentials{}) {
		_ = s.store.SetCredentials(r.Context(), sess.ID, previous)
	}

	http.Redirect(w, r, "/?session_id="+sess.ID.String(), http.StatusSeeOther)
}

// Delete handles DELETE /sessions/{id}. Removes the session and its
// transcript. If the current session was deleted, the client is
// redirected to a fresh page.
func (s *Sessions) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := uuid.Parse(r.PathValue("id"))
	if err != nil {
		http.Error(w, "invalid session ID", http.StatusBadRequest)
		return
	}

	current, _ := s.ID(r)
	deletingCurrent := current == id

	if err := s.store.Delete(r.Context(), id); err != nil {
		if errors.Is(err, session.ErrSessionNotFound) {
			http.Error(w, "session not found", http.StatusNotFound)
			return
		}
		http.Error(w, "failed to delete session", http.StatusInternalServerError)
		return
	}

	if s.onDelete != nil {
		s.onDelete(id)
	}

	if deletingCurrent {
		http.SetCookie(w, &http.Cookie{
			Name:   SessionCookieName,
			Value:  "",
			Path:   "/",
			MaxAge: -1,
		})
	}
	w.WriteHeader(http.StatusNoContent)
}

// RegisterRoutes registers the session routes.
func (s *Sessions) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /sessions", s.List)
	mux.HandleFunc("POST /sessions", s.Create)
	mux.HandleFunc("DELETE /sessions/{id}", s.Delete)
}
