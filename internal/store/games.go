package store

import (
	"context"
	"fmt"
	"time"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/albapepper/schoolcup/internal/config"
	"github.com/albapepper/schoolcup/internal/tournament"
)

// GameFilter narrows ListGames. Zero values match everything.
type GameFilter struct {
	Status     string
	ModalityID int64
	TeamID     int64
	From       time.Time
	To         time.Time
}

var gameColumns = []string{
	"g.id", "g.modality_id", "g.home_team_id", "g.away_team_id",
	"ht.name", "at.name", "m.sport", "g.scheduled_at", "g.location", "g.status",
	"g.home_score", "g.away_score", "g.highlights", "g.started_at", "g.finished_at",
}

func scanGame(row pgx.Row) (tournament.Game, error) {
	var g tournament.Game
	err := row.Scan(&g.ID, &g.ModalityID, &g.HomeTeamID, &g.AwayTeamID,
		&g.HomeTeam, &g.AwayTeam, &g.Sport, &g.ScheduledAt, &g.Location, &g.Status,
		&g.HomeScore, &g.AwayScore, &g.Highlights, &g.StartedAt, &g.FinishedAt)
	return g, err
}

func selectGames() sq.SelectBuilder {
	return psql.Select(gameColumns...).
		From("games g").
		Join("teams ht ON ht.id = g.home_team_id").
		Join("teams at ON at.id = g.away_team_id").
		Join("modalities m ON m.id = g.modality_id")
}

// ListGames returns games ordered by kickoff.
func (s *Store) ListGames(ctx context.Context, f GameFilter) ([]tournament.Game, error) {
	q := selectGames().OrderBy("g.scheduled_at", "g.id")
	if f.Status != "" {
		q = q.Where(sq.Eq{"g.status": f.Status})
	}
	if f.ModalityID > 0 {
		q = q.Where(sq.Eq{"g.modality_id": f.ModalityID})
	}
	if f.TeamID > 0 {
		q = q.Where(sq.Or{sq.Eq{"g.home_team_id": f.TeamID}, sq.Eq{"g.away_team_id": f.TeamID}})
	}
	if !f.From.IsZero() {
		q = q.Where(sq.GtOrEq{"g.scheduled_at": f.From})
	}
	if !f.To.IsZero() {
		q = q.Where(sq.Lt{"g.scheduled_at": f.To})
	}
	return s.queryGames(ctx, s.pool, q)
}

func (s *Store) queryGames(ctx context.Context, q querier, b sq.SelectBuilder) ([]tournament.Game, error) {
	rows, err := qQuery(ctx, q, b)
	if err != nil {
		return nil, wrap("list games", err)
	}
	defer rows.Close()

	out := []tournament.Game{}
	for rows.Next() {
		g, err := scanGame(rows)
		if err != nil {
			return nil, wrap("scan game", err)
		}
		out = append(out, g)
	}
	return out, wrap("list games", rows.Err())
}

// GetGame returns one game with its team names.
func (s *Store) GetGame(ctx context.Context, id int64) (tournament.Game, error) {
	g, err := scanGame(s.pool.QueryRow(ctx, "game_by_id", id))
	return g, wrap("get game", err)
}

// CalendarDay groups the games of one day.
type CalendarDay struct {
	Date  string            `json:"date"`
	Games []tournament.Game `json:"games"`
}

// Calendar returns the games in [from, to) grouped by day in loc.
func (s *Store) Calendar(ctx context.Context, from, to time.Time, loc *time.Location) ([]CalendarDay, error) {
	games, err := s.ListGames(ctx, GameFilter{From: from, To: to})
	if err != nil {
		return nil, err
	}
	return GroupByDay(games, loc), nil
}

// GroupByDay buckets games (already ordered by kickoff) by local date.
func GroupByDay(games []tournament.Game, loc *time.Location) []CalendarDay {
	if loc == nil {
		loc = time.UTC
	}
	out := []CalendarDay{}
	for _, g := range games {
		day := g.ScheduledAt.In(loc).Format(time.DateOnly)
		if n := len(out); n > 0 && out[n-1].Date == day {
			out[n-1].Games = append(out[n-1].Games, g)
			continue
		}
		out = append(out, CalendarDay{Date: day, Games: []tournament.Game{g}})
	}
	return out
}

// FinishedGames returns the finished games of a modality, used for standings.
func (s *Store) FinishedGames(ctx context.Context, modalityID int64) ([]tournament.Game, error) {
	return s.ListGames(ctx, GameFilter{Status: tournament.StatusFinished, ModalityID: modalityID})
}

// checkTeams verifies both teams exist and play in the game's modality.
func checkTeams(ctx context.Context, q querier, g *tournament.Game) error {
	rows, err := q.Query(ctx, "SELECT id, modality_id FROM teams WHERE id = ANY($1)",
		[]int64{g.HomeTeamID, g.AwayTeamID})
	if err != nil {
		return err
	}
	defer rows.Close()

	found := map[int64]int64{}
	for rows.Next() {
		var id, modality int64
		if err := rows.Scan(&id, &modality); err != nil {
			return err
		}
		found[id] = modality
	}
	if err := rows.Err(); err != nil {
		return err
	}
	for field, id := range map[string]int64{"home_team_id": g.HomeTeamID, "away_team_id": g.AwayTeamID} {
		modality, ok := found[id]
		if !ok {
			return &tournament.ValidationError{Field: field, Message: "team does not exist"}
		}
		if modality != g.ModalityID {
			return &tournament.ValidationError{Field: field, Message: "team plays in another modality"}
		}
	}
	return nil
}

// CreateGame validates g and inserts it as scheduled (or the given status).
func (s *Store) CreateGame(ctx context.Context, g *tournament.Game) error {
	if err := g.Validate(); err != nil {
		return err
	}
	return wrap("create game", s.inTx(ctx, func(tx pgx.Tx) error {
		if err := checkTeams(ctx, tx, g); err != nil {
			return err
		}
		return tx.QueryRow(ctx, `
			INSERT INTO games (modality_id, home_team_id, away_team_id, scheduled_at, location,
				status, home_score, away_score, highlights)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9) RETURNING id`,
			g.ModalityID, g.HomeTeamID, g.AwayTeamID, g.ScheduledAt, g.Location,
			g.Status, g.HomeScore, g.AwayScore, g.Highlights,
		).Scan(&g.ID)
	}))
}

// UpdateGame overwrites the schedule, teams, score and highlights. Status
// only moves through SetStatus.
func (s *Store) UpdateGame(ctx context.Context, g *tournament.Game) error {
	if err := g.Validate(); err != nil {
		return err
	}
	return wrap("update game", s.inTx(ctx, func(tx pgx.Tx) error {
		if err := checkTeams(ctx, tx, g); err != nil {
			return err
		}
		tag, err := qExec(ctx, tx, psql.Update("games").SetMap(map[string]any{
			"modality_id":  g.ModalityID,
			"home_team_id": g.HomeTeamID,
			"away_team_id": g.AwayTeamID,
			"scheduled_at": g.ScheduledAt,
			"location":     g.Location,
			"home_score":   g.HomeScore,
			"away_score":   g.AwayScore,
			"highlights":   g.Highlights,
		}).Where(sq.Eq{"id": g.ID}))
		return mustAffect(tag, err)
	}))
}

// DeleteGame removes a game with its events and sets.
func (s *Store) DeleteGame(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM games WHERE id=$1", id)
	return wrap("delete game", mustAffect(tag, err))
}

// SetStatus moves a game through its lifecycle. Going live stamps
// started_at and, for set sports, opens the first set with the default
// rules unless a config was saved before. Finishing stamps finished_at.
func (s *Store) SetStatus(ctx context.Context, id int64, to string) (tournament.Game, error) {
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		var from, sport string
		err := tx.QueryRow(ctx, `
			SELECT g.status, m.sport FROM games g JOIN modalities m ON m.id = g.modality_id
			WHERE g.id = $1 FOR UPDATE OF g`, id).Scan(&from, &sport)
		if err != nil {
			return err
		}
		if err := tournament.Transition(from, to); err != nil {
			return err
		}

		upd := psql.Update("games").Set("status", to).Where(sq.Eq{"id": id})
		switch to {
		case tournament.StatusLive:
			upd = upd.Set("started_at", sq.Expr("NOW()"))
		case tournament.StatusFinished, tournament.StatusCancelled:
			upd = upd.Set("finished_at", sq.Expr("NOW()"))
		}
		if _, err := qExec(ctx, tx, upd); err != nil {
			return err
		}
		if to == tournament.StatusLive && config.SportRegistry[sport].SetBased {
			return openLive(ctx, tx, id, sport)
		}
		return nil
	})
	if err != nil {
		return tournament.Game{}, wrap(fmt.Sprintf("set game %d %s", id, to), err)
	}
	return s.GetGame(ctx, id)
}

// StaleLiveGames returns games live since before cutoff.
func (s *Store) StaleLiveGames(ctx context.Context, cutoff time.Time) ([]tournament.Game, error) {
	q := selectGames().
		Where(sq.Eq{"g.status": tournament.StatusLive}).
		Where(sq.Lt{"g.started_at": cutoff}).
		OrderBy("g.started_at")
	return s.queryGames(ctx, s.pool, q)
}

// SetPoints returns the total rally points per side of every finished game
// of a modality, keyed by game id. Only set sports have rows.
func (s *Store) SetPoints(ctx context.Context, modalityID int64) (map[int64][2]int, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT gs.game_id, COALESCE(SUM(gs.home_points), 0), COALESCE(SUM(gs.away_points), 0)
		FROM game_sets gs JOIN games g ON g.id = gs.game_id
		WHERE g.modality_id = $1 AND g.status = $2
		GROUP BY gs.game_id`, modalityID, tournament.StatusFinished)
	if err != nil {
		return nil, wrap("set points", err)
	}
	defer rows.Close()

	out := map[int64][2]int{}
	for rows.Next() {
		var id int64
		var home, away int
		if err := rows.Scan(&id, &home, &away); err != nil {
			return nil, wrap("scan set points", err)
		}
		out[id] = [2]int{home, away}
	}
	return out, wrap("set points", rows.Err())
}
