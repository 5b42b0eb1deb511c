package live

import (
	"context"
	"log/slog"

	"github.com/albapepper/schoolcup/internal/scoring"
	"github.com/albapepper/schoolcup/internal/store"
	"github.com/albapepper/schoolcup/internal/tournament"
)

// LiveStore is the persistence the scoring service needs.
type LiveStore interface {
	UpdateLive(ctx context.Context, gameID int64, fn store.LiveFunc) (store.LiveGame, []scoring.Event, error)
}

// ScoreUpdate is the payload of a score message.
type ScoreUpdate struct {
	store.LiveGame
	Events []scoring.Event `json:"events"`
}

// Service applies scoring commands to live games and announces the result.
// Concurrent admins are serialized by the row lock taken in UpdateLive; the
// last command to commit is what every screen ends up showing.
type Service struct {
	store  LiveStore
	hub    *Hub
	logger *slog.Logger
}

func NewService(s LiveStore, h *Hub, logger *slog.Logger) *Service {
	return &Service{store: s, hub: h, logger: logger}
}

// Score runs cmd through the scoring engine and persists the new state in
// one transaction. On success the update is published on the game topic.
func (s *Service) Score(ctx context.Context, gameID int64, cmd scoring.Command) (ScoreUpdate, error) {
	lg, events, err := s.store.UpdateLive(ctx, gameID, func(_ tournament.Game, m scoring.Match) ([]scoring.Event, scoring.Match, error) {
		return scoring.Apply(m, cmd)
	})
	if err != nil {
		return ScoreUpdate{}, err
	}

	up := ScoreUpdate{LiveGame: lg, Events: events}
	s.hub.Publish(Message{Type: TypeScore, Table: "game_sets", GameID: gameID, Data: up})

	for _, ev := range events {
		switch ev.Type {
		case scoring.EvtSetWon:
			s.logger.Info("Set won", "game_id", gameID, "set", ev.Set, "side", ev.Side)
		case scoring.EvtMatchWon:
			s.logger.Info("Match won", "game_id", gameID, "side", ev.Side)
		}
	}
	return up, nil
}
