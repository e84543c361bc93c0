package session

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tezansahu/career-mentor-agent/internal/log"
)

// Sentinel errors for store operations, checked with errors.Is().
var (
	// ErrSessionNotFound indicates the requested session does not exist.
	ErrSessionNotFound = errors.New("session not found")

	// ErrSubmissionInFlight indicates the session is already processing
	// a submission. Only one runs per session at a time.
	ErrSubmissionInFlight = errors.New("submission already in flight")
)

// state is the store's internal record for one session.
type state struct {
	session  Session
	turns    []Turn
	inFlight bool
}

// Store holds all sessions in memory behind a single mutex. Methods
// take a context for API symmetry with persistent stores; none of them
// block.
type Store struct {
	mu       sync.RWMutex
	sessions map[uuid.UUID]*state
	logger   log.Logger
	now      func() time.Time
}

// NewStore creates an empty store. Panics if logger is nil to catch
// wiring errors at startup.
func NewStore(logger log.Logger) *Store {
	if logger == nil {
		panic("session: logger is required")
	}
	return &Store{
		sessions: make(map[uuid.UUID]*state),
		logger:   logger,
		now:      time.Now,
	}
}

// Create adds a new session and returns it.
func (s *Store) Create(ctx context.Context) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	sess := Session{
		ID:        uuid.New(),
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.sessions[sess.ID] = &state{session: sess}
	s.logger.Debug("session created", "session_id", sess.ID)
	return sess, nil
}

// Get returns a session by ID.
func (s *Store) Get(ctx context.Context, id uuid.UUID) (Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.sessions[id]
	if !ok {
		return Session{}, ErrSessionNotFound
	}
	return st.session, nil
}

// List returns all sessions, most recently updated first.
func (s *Store) List(ctx context.Context) ([]Session, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	sessions := make([]Session, 0, len(s.sessions))
	for _, st := range s.sessions {
		sessions = append(sessions, st.session)
	}
	sort.Slice(sessions, func(i, j int) bool {
		return sessions[i].UpdatedAt.After(sessions[j].UpdatedAt)
	})
	return sessions, nil
}

// Delete removes a session and its transcript.
func (s *Store) Delete(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.sessions[id]; !ok {
		return ErrSessionNotFound
	}
	delete(s.sessions, id)
	s.logger.Debug("session deleted", "session_id", id)
	return nil
}

// SetTitle updates the session title.
func (s *Store) SetTitle(ctx context.Context, id uuid.UUID, title string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	st.session.Title = title
	st.session.UpdatedAt = s.now()
	return nil
}

// SetCredentials updates the session's agent settings.
func (s *Store) SetCredentials(ctx context.Context, id uuid.UUID, creds Credentials) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	st.session.Credentials = creds
	st.session.UpdatedAt = s.now()
	return nil
}

// AppendTurn appends one turn to the session transcript. The log is
// append-only: existing turns are never modified or removed.
func (s *Store) AppendTurn(ctx context.Context, id uuid.UUID, turn Turn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	if turn.CreatedAt.IsZero() {
		turn.CreatedAt = s.now()
	}
	// Copy tool call records so callers can't mutate committed state.
	if len(turn.ToolCalls) > 0 {
		calls := make([]ToolCallRecord, len(turn.ToolCalls))
		copy(calls, turn.ToolCalls)
		turn.ToolCalls = calls
	}
	st.turns = append(st.turns, turn)
	st.session.TurnCount = len(st.turns)
	st.session.UpdatedAt = s.now()
	return nil
}

// Turns returns a snapshot of the session transcript in append order.
// The snapshot is independent of later appends.
func (s *Store) Turns(ctx context.Context, id uuid.UUID) ([]Turn, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	st, ok := s.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	turns := make([]Turn, len(st.turns))
	copy(turns, st.turns)
	return turns, nil
}

// BeginSubmission marks the session as processing a user submission.
// Returns ErrSubmissionInFlight if one is already running.
func (s *Store) BeginSubmission(ctx context.Context, id uuid.UUID) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	st, ok := s.sessions[id]
	if !ok {
		return ErrSessionNotFound
	}
	if st.inFlight {
		return ErrSubmissionInFlight
	}
	st.inFlight = true
	return nil
}

// EndSubmission clears the in-flight mark. Safe to call for deleted
// sessions.
func (s *Store) EndSubmission(ctx context.Context, id uuid.UUID) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if st, ok := s.sessions[id]; ok {
		st.inFlight = false
	}
}
