package store

import (
	"context"

	sq "github.com/Masterminds/squirrel"
	"golang.org/x/sync/errgroup"

	"github.com/albapepper/schoolcup/internal/tournament"
)

// Dashboard holds the counters on the admin landing page.
type Dashboard struct {
	Teams          int                           `json:"teams"`
	Players        int                           `json:"players"`
	Modalities     int                           `json:"modalities"`
	GamesScheduled int                           `json:"games_scheduled"`
	GamesLive      int                           `json:"games_live"`
	GamesFinished  int                           `json:"games_finished"`
	PendingTeams   int                           `json:"pending_team_requests"`
	PendingPlayers int                           `json:"pending_player_requests"`
	Registration   tournament.RegistrationConfig `json:"registration"`
}

// Dashboard runs the counters concurrently on the pool.
func (s *Store) Dashboard(ctx context.Context) (Dashboard, error) {
	var d Dashboard
	g, ctx := errgroup.WithContext(ctx)

	counts := []struct {
		dst   *int
		table string
		pred  sq.Sqlizer
	}{
		{&d.Teams, "teams", nil},
		{&d.Players, "players", nil},
		{&d.Modalities, "modalities", sq.Eq{"active": true}},
		{&d.GamesScheduled, "games", sq.Eq{"status": tournament.StatusScheduled}},
		{&d.GamesLive, "games", sq.Eq{"status": tournament.StatusLive}},
		{&d.GamesFinished, "games", sq.Eq{"status": tournament.StatusFinished}},
		{&d.PendingTeams, "team_requests", sq.Eq{"status": tournament.RequestPending}},
		{&d.PendingPlayers, "player_requests", sq.Eq{"status": tournament.RequestPending}},
	}
	for _, c := range counts {
		g.Go(func() error {
			n, err := countWhere(ctx, s.pool, c.table, c.pred)
			if err != nil {
				return wrap("count "+c.table, err)
			}
			*c.dst = n
			return nil
		})
	}
	g.Go(func() error {
		reg, err := getRegistration(ctx, s.pool)
		d.Registration = reg
		return err
	})

	if err := g.Wait(); err != nil {
		return Dashboard{}, err
	}
	return d, nil
}

// countWhere is a tiny helper for dashboard counters.
func countWhere(ctx context.Context, q querier, table string, pred sq.Sqlizer) (int, error) {
	b := psql.Select("count(*)").From(table)
	if pred != nil {
		b = b.Where(pred)
	}
	var n int
	err := qRow(ctx, q, b).Scan(&n)
	return n, err
}
