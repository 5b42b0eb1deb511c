package store

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"

	sq "github.com/Masterminds/squirrel"
	"github.com/jackc/pgx/v5"

	"github.com/albapepper/schoolcup/internal/tournament"
)

// Stats that may be ranked by TopPlayers.
var rankableStats = map[string]bool{
	"goals": true, "yellow_cards": true, "red_cards": true,
	"points": true, "aces": true, "blocks": true,
}

// IsRankableStat reports whether TopPlayers accepts stat.
func IsRankableStat(stat string) bool { return rankableStats[stat] }

func scanPlayer(row pgx.Row) (tournament.Player, error) {
	var p tournament.Player
	err := row.Scan(&p.ID, &p.Name, &p.JerseyNumber, &p.TeamID,
		&p.Goals, &p.YellowCards, &p.RedCards, &p.Points, &p.Aces, &p.Blocks,
		&p.IsStarter, &p.IsCaptain, &p.PhotoURL, &p.CreatedAt)
	return p, err
}

func collectPlayers(rows pgx.Rows) ([]tournament.Player, error) {
	defer rows.Close()
	out := []tournament.Player{}
	for rows.Next() {
		p, err := scanPlayer(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ListPlayers returns the roster of a team ordered by jersey number.
func (s *Store) ListPlayers(ctx context.Context, teamID int64) ([]tournament.Player, error) {
	rows, err := s.pool.Query(ctx, "players_by_team", teamID)
	if err != nil {
		return nil, wrap("list players", err)
	}
	out, err := collectPlayers(rows)
	return out, wrap("list players", err)
}

// GetPlayer returns one player.
func (s *Store) GetPlayer(ctx context.Context, id int64) (tournament.Player, error) {
	p, err := scanPlayer(s.pool.QueryRow(ctx, "player_by_id", id))
	return p, wrap("get player", err)
}

// CreatePlayer validates p, checks the roster is not full and inserts it.
func (s *Store) CreatePlayer(ctx context.Context, p *tournament.Player) error {
	if err := p.Validate(); err != nil {
		return err
	}
	return wrap("create player", s.inTx(ctx, func(tx pgx.Tx) error {
		return insertPlayer(ctx, tx, p)
	}))
}

func insertPlayer(ctx context.Context, tx pgx.Tx, p *tournament.Player) error {
	if err := checkRoster(ctx, tx, p.TeamID); err != nil {
		return err
	}
	if p.IsCaptain {
		if _, err := tx.Exec(ctx, "UPDATE players SET is_captain=false WHERE team_id=$1", p.TeamID); err != nil {
			return err
		}
	}
	return tx.QueryRow(ctx, `
		INSERT INTO players (name, jersey_number, team_id, goals, yellow_cards, red_cards,
			points, aces, blocks, is_starter, is_captain)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11) RETURNING id, created_at`,
		p.Name, p.JerseyNumber, p.TeamID, p.Goals, p.YellowCards, p.RedCards,
		p.Points, p.Aces, p.Blocks, p.IsStarter, p.IsCaptain,
	).Scan(&p.ID, &p.CreatedAt)
}

// checkRoster locks the team row and fails when its roster is already at the
// modality's max_players.
func checkRoster(ctx context.Context, tx pgx.Tx, teamID int64) error {
	var count, maxPlayers int
	err := tx.QueryRow(ctx, `
		SELECT (SELECT count(*) FROM players WHERE team_id = t.id), m.max_players
		FROM teams t JOIN modalities m ON m.id = t.modality_id
		WHERE t.id = $1
		FOR UPDATE OF t`, teamID).Scan(&count, &maxPlayers)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return &tournament.ValidationError{Field: "team_id", Message: "team does not exist"}
		}
		return err
	}
	if count >= maxPlayers {
		return &tournament.ValidationError{Field: "team_id", Message: fmt.Sprintf("team already has %d players", maxPlayers)}
	}
	return nil
}

// UpdatePlayer overwrites the editable columns. Making a player captain
// clears the flag on the rest of the team. Moving a player to another team
// is subject to that team's roster limit.
func (s *Store) UpdatePlayer(ctx context.Context, p *tournament.Player) error {
	if err := p.Validate(); err != nil {
		return err
	}
	return wrap("update player", s.inTx(ctx, func(tx pgx.Tx) error {
		var current int64
		if err := tx.QueryRow(ctx, "SELECT team_id FROM players WHERE id=$1 FOR UPDATE", p.ID).Scan(&current); err != nil {
			return err
		}
		if current != p.TeamID {
			if err := checkRoster(ctx, tx, p.TeamID); err != nil {
				return err
			}
		}
		if p.IsCaptain {
			if _, err := tx.Exec(ctx, "UPDATE players SET is_captain=false WHERE team_id=$1 AND id<>$2", p.TeamID, p.ID); err != nil {
				return err
			}
		}
		tag, err := tx.Exec(ctx, `
			UPDATE players SET name=$2, jersey_number=$3, team_id=$4, goals=$5, yellow_cards=$6,
				red_cards=$7, points=$8, aces=$9, blocks=$10, is_starter=$11, is_captain=$12
			WHERE id=$1`,
			p.ID, p.Name, p.JerseyNumber, p.TeamID, p.Goals, p.YellowCards,
			p.RedCards, p.Points, p.Aces, p.Blocks, p.IsStarter, p.IsCaptain)
		return mustAffect(tag, err)
	}))
}

// DeletePlayer removes a player and their photo.
func (s *Store) DeletePlayer(ctx context.Context, id int64) error {
	tag, err := s.pool.Exec(ctx, "DELETE FROM players WHERE id=$1", id)
	return wrap("delete player", mustAffect(tag, err))
}

// TopPlayer is a leaderboard row.
type TopPlayer struct {
	tournament.Player
	TeamName string `json:"team_name"`
	Value    int    `json:"value"`
}

// TopPlayers ranks players by one stat counter, optionally within a modality.
func (s *Store) TopPlayers(ctx context.Context, stat string, modalityID int64, limit int) ([]TopPlayer, error) {
	if !rankableStats[stat] {
		return nil, &tournament.ValidationError{Field: "stat", Message: fmt.Sprintf("cannot rank by %q", stat)}
	}
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	q := psql.Select(
		"p.id", "p.name", "p.jersey_number", "p.team_id", "p.goals", "p.yellow_cards", "p.red_cards",
		"p.points", "p.aces", "p.blocks", "p.is_starter", "p.is_captain", "p.photo_url", "p.created_at",
		"t.name", "p."+stat,
	).From("players p").
		Join("teams t ON t.id = p.team_id").
		Where(sq.Gt{"p." + stat: 0}).
		OrderBy("p."+stat+" DESC", "p.name").
		Limit(uint64(limit))
	if modalityID > 0 {
		q = q.Where(sq.Eq{"t.modality_id": modalityID})
	}

	rows, err := qQuery(ctx, s.pool, q)
	if err != nil {
		return nil, wrap("top players", err)
	}
	defer rows.Close()

	out := []TopPlayer{}
	for rows.Next() {
		var tp TopPlayer
		p := &tp.Player
		if err := rows.Scan(&p.ID, &p.Name, &p.JerseyNumber, &p.TeamID,
			&p.Goals, &p.YellowCards, &p.RedCards, &p.Points, &p.Aces, &p.Blocks,
			&p.IsStarter, &p.IsCaptain, &p.PhotoURL, &p.CreatedAt,
			&tp.TeamName, &tp.Value); err != nil {
			return nil, wrap("scan top player", err)
		}
		out = append(out, tp)
	}
	return out, wrap("top players", rows.Err())
}

// --------------------------------------------------------------------------
// Photos
// --------------------------------------------------------------------------

// Photo is a stored player picture.
type Photo struct {
	ContentType string
	Data        []byte
	ETag        string
}

// PutPhoto stores the picture of a player and points photo_url at it.
func (s *Store) PutPhoto(ctx context.Context, playerID int64, contentType string, data []byte, url string) (string, error) {
	sum := sha256.Sum256(data)
	etag := fmt.Sprintf(`"%x"`, sum[:12])
	err := s.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, "UPDATE players SET photo_url=$2 WHERE id=$1", playerID, url)
		if err := mustAffect(tag, err); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, `
			INSERT INTO player_photos (player_id, content_type, data, etag, updated_at)
			VALUES ($1,$2,$3,$4,NOW())
			ON CONFLICT (player_id) DO UPDATE
			SET content_type=EXCLUDED.content_type, data=EXCLUDED.data, etag=EXCLUDED.etag, updated_at=NOW()`,
			playerID, contentType, data, etag)
		return err
	})
	return etag, wrap("put photo", err)
}

// GetPhoto loads the picture of a player.
func (s *Store) GetPhoto(ctx context.Context, playerID int64) (Photo, error) {
	var p Photo
	err := s.pool.QueryRow(ctx, "player_photo", playerID).Scan(&p.ContentType, &p.Data, &p.ETag)
	return p, wrap("get photo", err)
}

// DeletePhoto removes the picture and clears photo_url.
func (s *Store) DeletePhoto(ctx context.Context, playerID int64) error {
	return wrap("delete photo", s.inTx(ctx, func(tx pgx.Tx) error {
		tag, err := tx.Exec(ctx, "DELETE FROM player_photos WHERE player_id=$1", playerID)
		if err := mustAffect(tag, err); err != nil {
			return err
		}
		_, err = tx.Exec(ctx, "UPDATE players SET photo_url='' WHERE id=$1", playerID)
		return err
	}))
}

// applyStats adds delta to the counters of a player. Counters never drop
// below zero.
func applyStats(ctx context.Context, q querier, playerID int64, d tournament.PlayerStats) error {
	_, err := qExec(ctx, q, psql.Update("players").
		Set("goals", sq.Expr("GREATEST(goals + ?, 0)", d.Goals)).
		Set("yellow_cards", sq.Expr("GREATEST(yellow_cards + ?, 0)", d.YellowCards)).
		Set("red_cards", sq.Expr("GREATEST(red_cards + ?, 0)", d.RedCards)).
		Set("points", sq.Expr("GREATEST(points + ?, 0)", d.Points)).
		Set("aces", sq.Expr("GREATEST(aces + ?, 0)", d.Aces)).
		Set("blocks", sq.Expr("GREATEST(blocks + ?, 0)", d.Blocks)).
		Where(sq.Eq{"id": playerID}))
	return err
}
