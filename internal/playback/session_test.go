package playback

import (
	"context"
	"io"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tracksidelive/trackside/pkg/logging"
)

func testRegistry() *Registry {
	logger := logging.NewLogger()
	logger.SetOutput(io.Discard)
	return NewRegistry(NewMemoryStore(time.Hour), logger)
}

func TestBeginCreatesLoadingSession(t *testing.T) {
	r := testRegistry()
	s, err := r.Begin(context.Background(), "user-1", "/lmsc-18-j-carter.mp3")
	require.NoError(t, err)

	assert.NotEmpty(t, s.ID)
	assert.Equal(t, StateLoading, s.State)
	assert.Equal(t, "/lmsc-18-j-carter.mp3", s.Mount)
	assert.Zero(t, s.Candidate)
}

func TestBeginTearsDownPreviousSession(t *testing.T) {
	r := testRegistry()
	ctx := context.Background()

	first, err := r.Begin(ctx, "user-1", "/lmsc-18-j-carter.mp3")
	require.NoError(t, err)
	_, err = r.MarkPlaying(ctx, first.ID)
	require.NoError(t, err)

	second, err := r.Begin(ctx, "user-1", "/plm-5-m-reyes.mp3")
	require.NoError(t, err)
	assert.NotEqual(t, first.ID, second.ID)

	// The first session no longer validates.
	_, ok := r.Validate(ctx, first.ID)
	assert.False(t, ok)
	_, ok = r.Validate(ctx, second.ID)
	assert.True(t, ok)
}

func TestLifecycleTransitions(t *testing.T) {
	r := testRegistry()
	ctx := context.Background()

	s, err := r.Begin(ctx, "user-1", "/lmsc-18-j-carter.mp3")
	require.NoError(t, err)

	s, err = r.AdvanceCandidate(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, 1, s.Candidate)
	assert.Equal(t, StateLoading, s.State)

	s, err = r.MarkPlaying(ctx, s.ID)
	require.NoError(t, err)
	assert.Equal(t, StatePlaying, s.State)

	// Playing cannot jump back to playing.
	_, err = r.MarkPlaying(ctx, s.ID)
	assert.ErrorIs(t, err, ErrBadTransition)

	require.NoError(t, r.Stop(ctx, s.ID, "user-1"))
	_, ok := r.Validate(ctx, s.ID)
	assert.False(t, ok)
}

func TestMarkErrorKeepsDiagnostic(t *testing.T) {
	r := testRegistry()
	ctx := context.Background()

	s, err := r.Begin(ctx, "user-1", "/lmsc-18-j-carter.mp3")
	require.NoError(t, err)

	s, err = r.MarkError(ctx, s.ID, "all stream candidates failed")
	require.NoError(t, err)
	assert.Equal(t, StateError, s.State)
	assert.Equal(t, "all stream candidates failed", s.LastError)

	// Error is terminal except for teardown.
	_, err = r.MarkPlaying(ctx, s.ID)
	assert.ErrorIs(t, err, ErrBadTransition)
}

func TestStopRejectsWrongUser(t *testing.T) {
	r := testRegistry()
	ctx := context.Background()

	s, err := r.Begin(ctx, "user-1", "/lmsc-18-j-carter.mp3")
	require.NoError(t, err)

	assert.ErrorIs(t, r.Stop(ctx, s.ID, "user-2"), ErrSessionWrongUser)
	_, ok := r.Validate(ctx, s.ID)
	assert.True(t, ok)
}

func TestMemoryStoreSweep(t *testing.T) {
	store := NewMemoryStore(time.Millisecond)
	ctx := context.Background()

	require.NoError(t, store.Put(ctx, Session{ID: "s1", UserID: "u1", UpdatedAt: time.Now().Add(-time.Minute)}))
	require.NoError(t, store.Put(ctx, Session{ID: "s2", UserID: "u2", UpdatedAt: time.Now().Add(time.Minute)}))

	assert.Equal(t, 1, store.Sweep())
	_, ok, err := store.Get(ctx, "s1")
	require.NoError(t, err)
	assert.False(t, ok)
	_, ok, err = store.Get(ctx, "s2")
	require.NoError(t, err)
	assert.True(t, ok)
}
