package session

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tezansahu/career-mentor-agent/internal/log"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	return NewStore(log.NewNop())
}

func TestStore_CreateGet(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx)
	require.NoError(t, err)
	assert.NotEqual(t, uuid.Nil, sess.ID)
	assert.False(t, sess.CreatedAt.IsZero())

	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, sess.ID, got.ID)

	_, err = store.Get(ctx, uuid.New())
	assert.ErrorIs(t, err, ErrSessionNotFound)
}

func TestStore_ListOrdering(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	// Deterministic clock so UpdatedAt strictly increases.
	var tick int
	store.now = func() time.Time {
		tick++
		return time.Unix(int64(tick), 0)
	}

	first, err := store.Create(ctx)
	require.NoError(t, err)
	second, err := store.Create(ctx)
	require.NoError(t, err)

	sessions, err := store.List(ctx)
	require.NoError(t, err)
	require.Len(t, sessions, 2)
	assert.Equal(t, second.ID, sessions[0].ID)

	// Appending to the first session bumps it to the top.
	require.NoError(t, store.AppendTurn(ctx, first.ID, Turn{Role: RoleUser, Text: "hi"}))
	sessions, err = store.List(ctx)
	require.NoError(t, err)
	assert.Equal(t, first.ID, sessions[0].ID)
}

func TestStore_Delete(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx)
	require.NoError(t, err)

	require.NoError(t, store.Delete(ctx, sess.ID))
	_, err = store.Get(ctx, sess.ID)
	assert.ErrorIs(t, err, ErrSessionNotFound)
	assert.ErrorIs(t, store.Delete(ctx, sess.ID), ErrSessionNotFound)
}

func TestStore_AppendOnly(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx)
	require.NoError(t, err)

	require.NoError(t, store.AppendTurn(ctx, sess.ID, Turn{Role: RoleUser, Text: "question"}))
	require.NoError(t, store.AppendTurn(ctx, sess.ID, Turn{
		Role: RoleAssistant,
		Text: "answer",
		ToolCalls: []ToolCallRecord{
			{Name: "web_search", Input: `{"query":"x"}`, Output: "results"},
		},
	}))

	snapshot, err := store.Turns(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, snapshot, 2)

	// Every turn already present is unchanged by further appends.
	require.NoError(t, store.AppendTurn(ctx, sess.ID, Turn{Role: RoleUser, Text: "more"}))

	after, err := store.Turns(ctx, sess.ID)
	require.NoError(t, err)
	require.Len(t, after, 3)
	assert.Equal(t, snapshot[0], after[0])
	assert.Equal(t, snapshot[1], after[1])

	// The earlier snapshot itself is unaffected.
	require.Len(t, snapshot, 2)
	assert.Equal(t, "question", snapshot[0].Text)
	assert.Equal(t, "answer", snapshot[1].Text)
}

func TestStore_TurnsSnapshotIsolated(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx)
	require.NoError(t, err)

	turn := Turn{
		Role:      RoleAssistant,
		Text:      "answer",
		ToolCalls: []ToolCallRecord{{Name: "web_search", Input: "in", Output: "out"}},
	}
	require.NoError(t, store.AppendTurn(ctx, sess.ID, turn))

	// Mutating the caller's copy after appending must not leak in.
	turn.ToolCalls[0].Output = "tampered"

	got, err := store.Turns(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, "out", got[0].ToolCalls[0].Output)
}

func TestStore_TurnCount(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx)
	require.NoError(t, err)

	require.NoError(t, store.AppendTurn(ctx, sess.ID, Turn{Role: RoleUser, Text: "a"}))
	require.NoError(t, store.AppendTurn(ctx, sess.ID, Turn{Role: RoleAssistant, Text: "b"}))

	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, 2, got.TurnCount)
}

func TestStore_Credentials(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx)
	require.NoError(t, err)
	assert.False(t, sess.Credentials.Complete())

	creds := Credentials{Token: "ghp_x", Model: "gpt-4o-mini"}
	require.NoError(t, store.SetCredentials(ctx, sess.ID, creds))

	got, err := store.Get(ctx, sess.ID)
	require.NoError(t, err)
	assert.Equal(t, creds, got.Credentials)
	assert.True(t, got.Credentials.Complete())

	assert.ErrorIs(t, store.SetCredentials(ctx, uuid.New(), creds), ErrSessionNotFound)
}

func TestCredentials_Complete(t *testing.T) {
	assert.False(t, Credentials{}.Complete())
	assert.False(t, Credentials{Token: "t"}.Complete())
	assert.False(t, Credentials{Model: "m"}.Complete())
	assert.True(t, Credentials{Token: "t", Model: "m"}.Complete())
	// The search key is optional.
	assert.True(t, Credentials{Token: "t", Model: "m", SerperKey: ""}.Complete())
}

func TestStore_SubmissionExclusivity(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx)
	require.NoError(t, err)

	require.NoError(t, store.BeginSubmission(ctx, sess.ID))
	assert.ErrorIs(t, store.BeginSubmission(ctx, sess.ID), ErrSubmissionInFlight)

	store.EndSubmission(ctx, sess.ID)
	assert.NoError(t, store.BeginSubmission(ctx, sess.ID))

	// EndSubmission on a deleted session is a no-op.
	require.NoError(t, store.Delete(ctx, sess.ID))
	store.EndSubmission(ctx, sess.ID)
}

func TestStore_ConcurrentAppends(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	sess, err := store.Create(ctx)
	require.NoError(t, err)

	const writers = 8
	const perWriter = 25

	var wg sync.WaitGroup
	for i := 0; i < writers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < perWriter; j++ {
				_ = store.AppendTurn(ctx, sess.ID, Turn{Role: RoleUser, Text: "x"})
				_, _ = store.Turns(ctx, sess.ID)
			}
		}()
	}
	wg.Wait()

	turns, err := store.Turns(ctx, sess.ID)
	require.NoError(t, err)
	assert.Len(t, turns, writers*perWriter)
}
