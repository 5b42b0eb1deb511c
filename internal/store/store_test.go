package store

import (
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/albapepper/schoolcup/internal/tournament"
)

func TestTranslate(t *testing.T) {
	assert.NoError(t, translate(nil))
	assert.ErrorIs(t, translate(pgx.ErrNoRows), ErrNotFound)
	assert.ErrorIs(t, translate(fmt.Errorf("scan: %w", pgx.ErrNoRows)), ErrNotFound)

	tests := []struct {
		code string
		want error
	}{
		{pgUniqueViolation, ErrConflict},
		{pgForeignKeyViolation, ErrReference},
		{pgCheckViolation, ErrConstraint},
	}
	for _, tt := range tests {
		err := translate(&pgconn.PgError{Code: tt.code, ConstraintName: "teams_name_key"})
		assert.ErrorIs(t, err, tt.want, tt.code)
		assert.Contains(t, err.Error(), "teams_name_key")
	}

	other := errors.New("boom")
	assert.Equal(t, other, translate(other))
}

func TestWrap(t *testing.T) {
	assert.NoError(t, wrap("get team", nil))

	err := wrap("get team", pgx.ErrNoRows)
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Equal(t, "get team: not found", err.Error())

	// Domain errors pass through untouched.
	err = wrap("set game 1 live", fmt.Errorf("%w: finished -> live", tournament.ErrInvalidTransition))
	assert.ErrorIs(t, err, tournament.ErrInvalidTransition)
}

func TestMustAffect(t *testing.T) {
	assert.ErrorIs(t, mustAffect(pgconn.NewCommandTag("DELETE 0"), nil), ErrNotFound)
	assert.NoError(t, mustAffect(pgconn.NewCommandTag("UPDATE 1"), nil))

	boom := errors.New("boom")
	assert.Equal(t, boom, mustAffect(pgconn.CommandTag{}, boom))
}

func TestErrRowSurfacesBuildError(t *testing.T) {
	_, err := qExec(t.Context(), nil, psql.Update("teams"))
	assert.Error(t, err, "update without SET must fail before touching the pool")

	var n int
	assert.Error(t, qRow(t.Context(), nil, psql.Update("teams")).Scan(&n))
}

func TestGroupByDay(t *testing.T) {
	loc := time.FixedZone("BRT", -3*3600)
	at := func(s string) tournament.Game {
		ts, err := time.Parse(time.RFC3339, s)
		require.NoError(t, err)
		return tournament.Game{ScheduledAt: ts}
	}
	games := []tournament.Game{
		at("2026-05-04T12:00:00Z"),
		at("2026-05-04T20:00:00Z"),
		at("2026-05-05T02:00:00Z"), // still the 4th in BRT
		at("2026-05-05T14:00:00Z"),
	}

	days := GroupByDay(games, loc)
	require.Len(t, days, 2)
	assert.Equal(t, "2026-05-04", days[0].Date)
	assert.Len(t, days[0].Games, 3)
	assert.Equal(t, "2026-05-05", days[1].Date)
	assert.Len(t, days[1].Games, 1)

	utc := GroupByDay(games, nil)
	require.Len(t, utc, 2)
	assert.Len(t, utc[0].Games, 2)

	assert.Empty(t, GroupByDay(nil, loc))
}

func TestIsRankableStat(t *testing.T) {
	for _, s := range []string{"goals", "yellow_cards", "red_cards", "points", "aces", "blocks"} {
		assert.True(t, IsRankableStat(s), s)
	}
	assert.False(t, IsRankableStat("name"))
	assert.False(t, IsRankableStat("goals; DROP TABLE players"))
}
