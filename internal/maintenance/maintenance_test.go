package maintenance

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/schoolcup/internal/tournament"
)

type fakeStore struct {
	closed     bool
	purged     int64
	stale      []tournament.Game
	err        error
	gotNow     time.Time
	gotPurge   time.Time
	gotStale   time.Time
	closeCalls int
}

func (f *fakeStore) CloseExpiredRegistration(_ context.Context, now time.Time) (bool, error) {
	f.closeCalls++
	f.gotNow = now
	return f.closed, f.err
}

func (f *fakeStore) PurgeReviewedRequests(_ context.Context, cutoff time.Time) (int64, error) {
	f.gotPurge = cutoff
	return f.purged, f.err
}

func (f *fakeStore) StaleLiveGames(_ context.Context, cutoff time.Time) ([]tournament.Game, error) {
	f.gotStale = cutoff
	return f.stale, f.err
}

func bufLogger() (*slog.Logger, *bytes.Buffer) {
	var buf bytes.Buffer
	return slog.New(slog.NewTextHandler(&buf, nil)), &buf
}

func TestTasksUseRetentionWindows(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	fs := &fakeStore{closed: true, purged: 3, stale: []tournament.Game{{ID: 9, HomeTeam: "A", AwayTeam: "B"}}}
	logger, buf := bufLogger()

	require.NoError(t, closeRegistration(t.Context(), fs, now, logger))
	require.NoError(t, purgeRequests(t.Context(), fs, now, logger))
	require.NoError(t, staleGames(t.Context(), fs, now, logger))

	assert.Equal(t, now, fs.gotNow)
	assert.Equal(t, now.AddDate(0, 0, -90), fs.gotPurge)
	assert.Equal(t, now.Add(-4*time.Hour), fs.gotStale)

	out := buf.String()
	assert.Contains(t, out, "window closed")
	assert.Contains(t, out, "count=3")
	assert.Contains(t, out, "game_id=9")
}

func TestRunAllJoinsErrors(t *testing.T) {
	fs := &fakeStore{err: errors.New("db down")}
	logger, _ := bufLogger()

	err := RunAll(t.Context(), fs, logger)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "db down")
	assert.Equal(t, 1, fs.closeCalls)
	assert.False(t, fs.gotStale.IsZero(), "later tasks still run")

	assert.NoError(t, RunAll(t.Context(), &fakeStore{}, logger))
}

func TestStartStopsWithContext(t *testing.T) {
	fs := &fakeStore{}
	logger, _ := bufLogger()
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		Start(ctx, fs, Config{}, logger)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Start did not return after cancel")
	}
}
