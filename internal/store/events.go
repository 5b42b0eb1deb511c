package store

import (
	"context"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/albapepper/schoolcup/internal/config"
	"github.com/albapepper/schoolcup/internal/tournament"
)

func scanEvent(row pgx.Row) (tournament.GameEvent, error) {
	var e tournament.GameEvent
	err := row.Scan(&e.ID, &e.GameID, &e.Kind, &e.TeamID, &e.PlayerID, &e.Period, &e.Minute, &e.Description, &e.CreatedAt)
	return e, err
}

// ListEvents returns the highlight log of a game, oldest first.
func (s *Store) ListEvents(ctx context.Context, gameID int64) ([]tournament.GameEvent, error) {
	rows, err := s.pool.Query(ctx, "game_events_by_game", gameID)
	if err != nil {
		return nil, wrap("list events", err)
	}
	defer rows.Close()

	out := []tournament.GameEvent{}
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, wrap("scan event", err)
		}
		out = append(out, e)
	}
	return out, wrap("list events", rows.Err())
}

// lockGame loads a game row for update together with its sport.
func lockGame(ctx context.Context, tx pgx.Tx, id int64) (tournament.Game, error) {
	var g tournament.Game
	err := tx.QueryRow(ctx, `
		SELECT g.id, g.modality_id, g.home_team_id, g.away_team_id, m.sport, g.status,
			g.home_score, g.away_score
		FROM games g JOIN modalities m ON m.id = g.modality_id
		WHERE g.id = $1 FOR UPDATE OF g`, id).
		Scan(&g.ID, &g.ModalityID, &g.HomeTeamID, &g.AwayTeamID, &g.Sport, &g.Status, &g.HomeScore, &g.AwayScore)
	return g, err
}

// AddEvent appends a highlight and applies its effect: goals move the
// running score of goal-scored sports and every counted event bumps the
// player's stats.
func (s *Store) AddEvent(ctx context.Context, e *tournament.GameEvent) error {
	if err := e.Validate(); err != nil {
		return err
	}
	return wrap("add event", s.inTx(ctx, func(tx pgx.Tx) error {
		g, err := lockGame(ctx, tx, e.GameID)
		if err != nil {
			return err
		}
		if !tournament.AcceptsEvents(g.Status) {
			return fmt.Errorf("%w (status %s)", tournament.ErrGameNotPlayed, g.Status)
		}
		if err := checkEventRefs(ctx, tx, g, e); err != nil {
			return err
		}

		err = tx.QueryRow(ctx, `
			INSERT INTO game_events (game_id, kind, team_id, player_id, period, minute, description)
			VALUES ($1,$2,$3,$4,$5,$6,$7) RETURNING id, created_at`,
			e.GameID, e.Kind, e.TeamID, e.PlayerID, e.Period, e.Minute, e.Description,
		).Scan(&e.ID, &e.CreatedAt)
		if err != nil {
			return err
		}
		return applyEffect(ctx, tx, g, *e, tournament.EffectOf(g, *e, !config.SportRegistry[g.Sport].SetBased))
	}))
}

// DeleteEvent removes a highlight and reverts its effect.
func (s *Store) DeleteEvent(ctx context.Context, gameID, eventID int64) error {
	return wrap("delete event", s.inTx(ctx, func(tx pgx.Tx) error {
		g, err := lockGame(ctx, tx, gameID)
		if err != nil {
			return err
		}
		e, err := scanEvent(tx.QueryRow(ctx, `
			DELETE FROM game_events WHERE id=$1 AND game_id=$2
			RETURNING id, game_id, kind, team_id, player_id, period, minute, description, created_at`,
			eventID, gameID))
		if err != nil {
			return err
		}
		eff := tournament.EffectOf(g, e, !config.SportRegistry[g.Sport].SetBased)
		return applyEffect(ctx, tx, g, e, eff.Negate())
	}))
}

// checkEventRefs makes sure the team plays in the game and the player is on
// that team.
func checkEventRefs(ctx context.Context, tx pgx.Tx, g tournament.Game, e *tournament.GameEvent) error {
	if e.TeamID != nil && *e.TeamID != g.HomeTeamID && *e.TeamID != g.AwayTeamID {
		return &tournament.ValidationError{Field: "team_id", Message: "team does not play in this game"}
	}
	if e.PlayerID == nil {
		return nil
	}
	var teamID int64
	if err := tx.QueryRow(ctx, "SELECT team_id FROM players WHERE id=$1", *e.PlayerID).Scan(&teamID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &tournament.ValidationError{Field: "player_id", Message: "player does not exist"}
		}
		return err
	}
	if e.TeamID == nil || teamID != *e.TeamID {
		return &tournament.ValidationError{Field: "player_id", Message: "player is not on the event team"}
	}
	return nil
}

func applyEffect(ctx context.Context, tx pgx.Tx, g tournament.Game, e tournament.GameEvent, eff tournament.Effect) error {
	if eff.Empty() {
		return nil
	}
	if eff.HomeGoals != 0 || eff.AwayGoals != 0 {
		_, err := qExec(ctx, tx, psql.Update("games").
			Set("home_score", sq.Expr("GREATEST(home_score + ?, 0)", eff.HomeGoals)).
			Set("away_score", sq.Expr("GREATEST(away_score + ?, 0)", eff.AwayGoals)).
			Where(sq.Eq{"id": g.ID}))
		if err != nil {
			return err
		}
	}
	if e.PlayerID != nil && eff.Stats != (tournament.PlayerStats{}) {
		return applyStats(ctx, tx, *e.PlayerID, eff.Stats)
	}
	return nil
}
