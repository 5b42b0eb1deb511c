package store

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/albapepper/schoolcup/internal/config"
	"github.com/albapepper/schoolcup/internal/scoring"
	"github.com/albapepper/schoolcup/internal/tournament"
)

// ErrConfigLocked is returned when scoring rules change after a set ended.
var ErrConfigLocked = errors.New("scoring rules are locked once a set is finished")

// LiveGame is the persisted live state of a set-scored game.
type LiveGame struct {
	Game  tournament.Game `json:"game"`
	Match scoring.Match   `json:"match"`
}

// LiveFunc advances a match. Returning an error rolls the whole update back.
type LiveFunc func(g tournament.Game, m scoring.Match) ([]scoring.Event, scoring.Match, error)

func loadConfig(ctx context.Context, q querier, gameID int64) (scoring.Config, error) {
	var c scoring.Config
	err := q.QueryRow(ctx, "game_config_by_game", gameID).Scan(
		&c.PointsPerSet, &c.TiebreakPoints, &c.MinLead, &c.SetsToWin,
		&c.MaxTimeouts, &c.Rotation, &c.ServeEvery)
	return c, err
}

func loadSets(ctx context.Context, q querier, gameID int64) ([]scoring.Set, error) {
	rows, err := q.Query(ctx, "game_sets_by_game", gameID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sets []scoring.Set
	for rows.Next() {
		var st scoring.Set
		if err := rows.Scan(&st.Number, &st.HomePoints, &st.AwayPoints, &st.HomeTimeouts, &st.AwayTimeouts,
			&st.FirstServer, &st.Server, &st.Rallies, &st.Winner, &st.Finished); err != nil {
			return nil, err
		}
		sets = append(sets, st)
	}
	return sets, rows.Err()
}

// loadMatch rebuilds the match of a game. The winner is derived from the
// sets so it never disagrees with them.
func loadMatch(ctx context.Context, q querier, gameID int64) (scoring.Match, error) {
	cfg, err := loadConfig(ctx, q, gameID)
	if err != nil {
		return scoring.Match{}, err
	}
	sets, err := loadSets(ctx, q, gameID)
	if err != nil {
		return scoring.Match{}, err
	}
	m := scoring.Match{Config: cfg, Sets: sets}
	home, away := m.SetsWon()
	switch {
	case home >= cfg.SetsToWin:
		m.Winner = scoring.Home
	case away >= cfg.SetsToWin:
		m.Winner = scoring.Away
	}
	return m, nil
}

// GetLive returns a game with its scoring state. Games not started yet
// return their config (saved or default) and no sets.
func (s *Store) GetLive(ctx context.Context, gameID int64) (LiveGame, error) {
	g, err := s.GetGame(ctx, gameID)
	if err != nil {
		return LiveGame{}, err
	}
	m, err := loadMatch(ctx, s.pool, gameID)
	if errors.Is(err, pgx.ErrNoRows) {
		cfg, derr := scoring.DefaultConfig(g.Sport)
		if derr != nil {
			return LiveGame{Game: g}, nil
		}
		return LiveGame{Game: g, Match: scoring.Match{Config: cfg}}, nil
	}
	if err != nil {
		return LiveGame{}, wrap("load match", err)
	}
	return LiveGame{Game: g, Match: m}, nil
}

// openLive writes the default rules (unless configured already) and the
// first set, home serving.
func openLive(ctx context.Context, tx pgx.Tx, gameID int64, sport string) error {
	cfg, err := scoring.DefaultConfig(sport)
	if err != nil {
		return err
	}
	if err := upsertConfig(ctx, tx, gameID, cfg, false); err != nil {
		return err
	}
	_, err = tx.Exec(ctx, `
		INSERT INTO game_sets (game_id, set_number, first_server, server)
		VALUES ($1, 1, $2, $2) ON CONFLICT (game_id, set_number) DO NOTHING`,
		gameID, scoring.Home)
	return err
}

func upsertConfig(ctx context.Context, q querier, gameID int64, c scoring.Config, overwrite bool) error {
	conflict := "DO NOTHING"
	if overwrite {
		conflict = `DO UPDATE SET points_per_set=EXCLUDED.points_per_set,
			tiebreak_points=EXCLUDED.tiebreak_points, min_lead=EXCLUDED.min_lead,
			sets_to_win=EXCLUDED.sets_to_win, max_timeouts_per_set=EXCLUDED.max_timeouts_per_set,
			serve_rotation=EXCLUDED.serve_rotation, serve_every=EXCLUDED.serve_every`
	}
	_, err := q.Exec(ctx, `
		INSERT INTO game_configs (game_id, points_per_set, tiebreak_points, min_lead, sets_to_win,
			max_timeouts_per_set, serve_rotation, serve_every)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8) ON CONFLICT (game_id) `+conflict,
		gameID, c.PointsPerSet, c.TiebreakPoints, c.MinLead, c.SetsToWin,
		c.MaxTimeouts, c.Rotation, c.ServeEvery)
	return err
}

// SaveConfig stores the scoring rules of a set-scored game. Rules may change
// until the first set is finished.
func (s *Store) SaveConfig(ctx context.Context, gameID int64, c scoring.Config) error {
	if err := c.Validate(); err != nil {
		return &tournament.ValidationError{Field: "config", Message: err.Error()}
	}
	return wrap("save config", s.inTx(ctx, func(tx pgx.Tx) error {
		g, err := lockGame(ctx, tx, gameID)
		if err != nil {
			return err
		}
		if !config.SportRegistry[g.Sport].SetBased {
			return &tournament.ValidationError{Field: "config", Message: scoring.ErrUnsupportedSport.Error()}
		}
		var finished bool
		err = tx.QueryRow(ctx, "SELECT EXISTS (SELECT 1 FROM game_sets WHERE game_id=$1 AND finished)", gameID).Scan(&finished)
		if err != nil {
			return err
		}
		if finished {
			return ErrConfigLocked
		}
		return upsertConfig(ctx, tx, gameID, c, true)
	}))
}

// UpdateLive loads the match of a live game under a row lock, lets fn
// advance it and writes back the touched sets, the game score (sets won),
// set_won and timeout highlights and, when the match is won, finishes the
// game. Everything happens in one transaction.
func (s *Store) UpdateLive(ctx context.Context, gameID int64, fn LiveFunc) (LiveGame, []scoring.Event, error) {
	var (
		out    LiveGame
		events []scoring.Event
	)
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		g, err := lockGame(ctx, tx, gameID)
		if err != nil {
			return err
		}
		if g.Status != tournament.StatusLive {
			return fmt.Errorf("%w (status %s)", tournament.ErrGameNotPlayed, g.Status)
		}
		if !config.SportRegistry[g.Sport].SetBased {
			return &tournament.ValidationError{Field: "game", Message: scoring.ErrUnsupportedSport.Error()}
		}
		m, err := loadMatch(ctx, tx, gameID)
		if errors.Is(err, pgx.ErrNoRows) || (err == nil && len(m.Sets) == 0) {
			// Went live without an opened set; open it now.
			if err := openLive(ctx, tx, gameID, g.Sport); err != nil {
				return err
			}
			m, err = loadMatch(ctx, tx, gameID)
		}
		if err != nil {
			return err
		}

		evs, next, err := fn(g, m)
		if err != nil {
			return err
		}
		if err := saveMatch(ctx, tx, g, m, next, evs); err != nil {
			return err
		}
		events = evs
		out.Match = next
		return nil
	})
	if err != nil {
		return LiveGame{}, nil, wrap(fmt.Sprintf("update live game %d", gameID), err)
	}
	out.Game, err = s.GetGame(ctx, gameID)
	return out, events, err
}

func saveMatch(ctx context.Context, tx pgx.Tx, g tournament.Game, prev, next scoring.Match, evs []scoring.Event) error {
	for i, st := range next.Sets {
		if i < len(prev.Sets) && prev.Sets[i] == st {
			continue
		}
		var winner *string
		if st.Winner != "" {
			w := string(st.Winner)
			winner = &w
		}
		_, err := tx.Exec(ctx, `
			INSERT INTO game_sets (game_id, set_number, home_points, away_points, home_timeouts,
				away_timeouts, first_server, server, rallies, winner, finished)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)
			ON CONFLICT (game_id, set_number) DO UPDATE SET
				home_points=EXCLUDED.home_points, away_points=EXCLUDED.away_points,
				home_timeouts=EXCLUDED.home_timeouts, away_timeouts=EXCLUDED.away_timeouts,
				first_server=EXCLUDED.first_server, server=EXCLUDED.server,
				rallies=EXCLUDED.rallies, winner=EXCLUDED.winner, finished=EXCLUDED.finished`,
			g.ID, st.Number, st.HomePoints, st.AwayPoints, st.HomeTimeouts, st.AwayTimeouts,
			st.FirstServer, st.Server, st.Rallies, winner, st.Finished)
		if err != nil {
			return fmt.Errorf("save set %d: %w", st.Number, err)
		}
	}

	home, away := next.SetsWon()
	if home != g.HomeScore || away != g.AwayScore {
		if _, err := tx.Exec(ctx, "UPDATE games SET home_score=$2, away_score=$3 WHERE id=$1", g.ID, home, away); err != nil {
			return err
		}
	}

	for _, ev := range evs {
		if err := logScoringEvent(ctx, tx, g, next, ev); err != nil {
			return err
		}
	}

	if next.Finished() {
		_, err := tx.Exec(ctx, "UPDATE games SET status=$2, finished_at=NOW() WHERE id=$1", g.ID, tournament.StatusFinished)
		return err
	}
	return nil
}

// logScoringEvent records set wins and timeouts in the highlight log. Plain
// points stay in the rally string.
func logScoringEvent(ctx context.Context, tx pgx.Tx, g tournament.Game, m scoring.Match, ev scoring.Event) error {
	teamID := g.HomeTeamID
	if ev.Side == scoring.Away {
		teamID = g.AwayTeamID
	}
	var kind, desc string
	switch ev.Type {
	case scoring.EvtSetWon:
		kind = tournament.EventSetWon
		for _, st := range m.Sets {
			if st.Number == ev.Set {
				desc = fmt.Sprintf("Set %d: %d-%d", st.Number, st.HomePoints, st.AwayPoints)
			}
		}
	case scoring.EvtTimeout:
		kind = tournament.EventTimeout
	default:
		return nil
	}
	_, err := tx.Exec(ctx, `
		INSERT INTO game_events (game_id, kind, team_id, period, description)
		VALUES ($1,$2,$3,$4,$5)`, g.ID, kind, teamID, ev.Set, desc)
	return err
}
