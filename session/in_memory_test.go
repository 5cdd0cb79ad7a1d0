package session

import (
	"context"
	"testing"
	"time"

	"github.com/hupe1980/agentcrew/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Interface compliance (compile-time assertions)
var (
	_ core.SessionStore = (*InMemoryStore)(nil)
	_ core.SessionStore = (*RedisStore)(nil)
)

func TestInMemoryStore_HistoryRoundTrip(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	err := s.AppendTurns(ctx, "sess-1", core.UserMessage("hi"), core.AssistantMessage("hello"))
	require.NoError(t, err)

	turns, err := s.History(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, turns, 2)
	assert.Equal(t, core.RoleUser, turns[0].Role)
	assert.Equal(t, "hi", turns[0].Text)
	assert.Equal(t, core.RoleAssistant, turns[1].Role)
	assert.Equal(t, "hello", turns[1].Text)
}

func TestInMemoryStore_UnknownSessionReadsEmpty(t *testing.T) {
	s := NewInMemoryStore()
	turns, err := s.History(context.Background(), "never-seen")
	require.NoError(t, err)
	assert.Empty(t, turns)
}

func TestInMemoryStore_HistoryCopyIsolated(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	require.NoError(t, s.AppendTurns(ctx, "sess-1", core.UserMessage("hi")))

	turns, err := s.History(ctx, "sess-1")
	require.NoError(t, err)
	turns[0].Text = "mutated"

	again, err := s.History(ctx, "sess-1")
	require.NoError(t, err)
	assert.Equal(t, "hi", again[0].Text)
}

func TestInMemoryStore_TTLExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1000, 0)
	s := NewInMemoryStore(func(o *InMemoryOptions) {
		o.TTL = time.Minute
		o.Clock = func() time.Time { return now }
	})

	require.NoError(t, s.AppendTurns(ctx, "sess-1", core.UserMessage("hi")))
	require.NoError(t, s.PutInfo(ctx, core.SessionInfo{ID: "sess-1", Profile: "helper", CreatedAt: now}))

	now = now.Add(30 * time.Second)
	turns, err := s.History(ctx, "sess-1")
	require.NoError(t, err)
	assert.Len(t, turns, 1)

	now = now.Add(2 * time.Minute)
	turns, err = s.History(ctx, "sess-1")
	require.NoError(t, err)
	assert.Empty(t, turns, "expired history should read as empty")

	_, err = s.Info(ctx, "sess-1")
	assert.ErrorIs(t, err, core.ErrSessionNotFound)

	// The id is reusable after expiry and starts a fresh history.
	require.NoError(t, s.AppendTurns(ctx, "sess-1", core.UserMessage("again")))
	turns, err = s.History(ctx, "sess-1")
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "again", turns[0].Text)
}

func TestInMemoryStore_InfoAndList(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()

	created := time.Now().UTC()
	require.NoError(t, s.PutInfo(ctx, core.SessionInfo{ID: "a", Profile: "helper", CreatedAt: created}))
	require.NoError(t, s.PutInfo(ctx, core.SessionInfo{ID: "b", Profile: "manager", CreatedAt: created}))

	info, err := s.Info(ctx, "a")
	require.NoError(t, err)
	assert.Equal(t, "helper", info.Profile)

	infos, err := s.List(ctx)
	require.NoError(t, err)
	assert.Len(t, infos, 2)

	_, err = s.Info(ctx, "missing")
	assert.ErrorIs(t, err, core.ErrSessionNotFound)
}

func TestInMemoryStore_DeleteIsIdempotent(t *testing.T) {
	ctx := context.Background()
	s := NewInMemoryStore()
	require.NoError(t, s.AppendTurns(ctx, "sess-1", core.UserMessage("hi")))

	require.NoError(t, s.Delete(ctx, "sess-1"))
	require.NoError(t, s.Delete(ctx, "sess-1"))

	turns, err := s.History(ctx, "sess-1")
	require.NoError(t, err)
	assert.Empty(t, turns)
}
