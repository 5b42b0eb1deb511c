// Package db provides a pgxpool-based connection pool with prepared statement
// registration, schema migration and health checking.
package db

import (
	"context"
	_ "embed"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/albapepper/schoolcup/internal/config"
)

//go:embed schema.sql
var schemaSQL string

// Pool wraps pgxpool.Pool with application-specific helpers.
type Pool struct {
	*pgxpool.Pool
}

// New creates and validates a new connection pool.
func New(ctx context.Context, cfg *config.Config) (*Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}

	poolCfg.MinConns = int32(cfg.DBPoolMinConns)
	poolCfg.MaxConns = int32(cfg.DBPoolMaxConns)
	poolCfg.MaxConnLifetime = cfg.DBPoolMaxLife
	poolCfg.MaxConnIdleTime = 5 * time.Minute

	// Register prepared statements on every new connection.
	poolCfg.AfterConnect = func(ctx context.Context, conn *pgx.Conn) error {
		return registerPreparedStatements(ctx, conn)
	}

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("create pool: %w", err)
	}

	// Verify connectivity
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return &Pool{Pool: pool}, nil
}

// Migrate applies the embedded schema. Every statement is idempotent.
// It runs on a plain connection so the prepared statements do not need the
// tables to exist yet.
func Migrate(ctx context.Context, databaseURL string) error {
	conn, err := pgx.Connect(ctx, databaseURL)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, schemaSQL); err != nil {
		return fmt.Errorf("apply schema: %w", err)
	}
	return nil
}

// HealthCheck runs a trivial query to verify the database is reachable.
func (p *Pool) HealthCheck(ctx context.Context) error {
	var n int
	return p.QueryRow(ctx, "health_check").Scan(&n)
}

// registerPreparedStatements registers the hot read statements of the public
// pages. Admin writes use ad-hoc SQL.
func registerPreparedStatements(ctx context.Context, conn *pgx.Conn) error {
	stmts := map[string]string{
		// Health
		"health_check": "SELECT 1",

		// Public: games
		"game_by_id": `SELECT g.id, g.modality_id, g.home_team_id, g.away_team_id,
			ht.name, at.name, m.sport, g.scheduled_at, g.location, g.status,
			g.home_score, g.away_score, g.highlights, g.started_at, g.finished_at
			FROM games g
			JOIN teams ht ON ht.id = g.home_team_id
			JOIN teams at ON at.id = g.away_team_id
			JOIN modalities m ON m.id = g.modality_id
			WHERE g.id = $1`,
		"game_events_by_game": `SELECT id, game_id, kind, team_id, player_id, period, minute, description, created_at
			FROM game_events WHERE game_id = $1 ORDER BY created_at, id`,
		"game_sets_by_game": `SELECT set_number, home_points, away_points, home_timeouts, away_timeouts,
			first_server, server, rallies, COALESCE(winner, ''), finished
			FROM game_sets WHERE game_id = $1 ORDER BY set_number`,
		"game_config_by_game": `SELECT points_per_set, tiebreak_points, min_lead, sets_to_win,
			max_timeouts_per_set, serve_rotation, serve_every
			FROM game_configs WHERE game_id = $1`,

		// Public: teams and players
		"team_by_id": `SELECT id, name, modality_id, category, coach_name, coach_contact, created_at
			FROM teams WHERE id = $1`,
		"players_by_team": `SELECT id, name, jersey_number, team_id, goals, yellow_cards, red_cards,
			points, aces, blocks, is_starter, is_captain, photo_url, created_at
			FROM players WHERE team_id = $1 ORDER BY jersey_number`,
		"player_by_id": `SELECT id, name, jersey_number, team_id, goals, yellow_cards, red_cards,
			points, aces, blocks, is_starter, is_captain, photo_url, created_at
			FROM players WHERE id = $1`,
		"player_photo": "SELECT content_type, data, etag FROM player_photos WHERE player_id = $1",

		// Public: modalities
		"modality_by_id": "SELECT id, name, kind, sport, min_players, max_players, active FROM modalities WHERE id = $1",

		// Registration
		"registration_config":      "SELECT open, opens_at, closes_at, max_teams_per_modality FROM inscricoes_config WHERE id = 1",
		"registration_config_lock": "SELECT open, opens_at, closes_at, max_teams_per_modality FROM inscricoes_config WHERE id = 1 FOR UPDATE",

		// Auth
		"admin_by_email": "SELECT id, email, name, pass_hash, role, password_changed_at FROM admin_users WHERE lower(email) = lower($1)",
		"admin_by_id":    "SELECT id, email, name, pass_hash, role, password_changed_at FROM admin_users WHERE id = $1",
	}

	for name, sql := range stmts {
		if _, err := conn.Prepare(ctx, name, sql); err != nil {
			return fmt.Errorf("prepare %q: %w", name, err)
		}
	}
	return nil
}
