// Package maintenance runs periodic background tasks as Go tickers: closing
// the registration window once it expires, purging old reviewed signups and
// flagging games left live for too long.
package maintenance

import (
	"context"
	"log/slog"
	"time"

	"github.com/albapepper/schoolcup/internal/tournament"
)

const (
	// RequestRetention is how long reviewed requests are kept.
	RequestRetention = 90 * 24 * time.Hour
	// StaleLiveAfter flags games still live this long after kickoff.
	StaleLiveAfter = 4 * time.Hour
)

// Store is the slice of the store the tasks use.
type Store interface {
	CloseExpiredRegistration(ctx context.Context, now time.Time) (bool, error)
	PurgeReviewedRequests(ctx context.Context, cutoff time.Time) (int64, error)
	StaleLiveGames(ctx context.Context, cutoff time.Time) ([]tournament.Game, error)
}

// Config controls maintenance task intervals. Zero duration disables a task.
type Config struct {
	RegistrationInterval time.Duration // Close the signup window after closes_at
	PurgeInterval        time.Duration // Drop reviewed requests past retention
	StaleGameInterval    time.Duration // Warn about games stuck live
}

// DefaultConfig returns sensible production defaults.
func DefaultConfig() Config {
	return Config{
		RegistrationInterval: 5 * time.Minute,
		PurgeInterval:        24 * time.Hour,
		StaleGameInterval:    30 * time.Minute,
	}
}

// Start launches all configured maintenance tickers. Blocks until ctx is
// cancelled. Intended to be called with `go`.
func Start(ctx context.Context, s Store, cfg Config, logger *slog.Logger) {
	logger.Info("Maintenance tickers started",
		"registration", cfg.RegistrationInterval,
		"purge", cfg.PurgeInterval,
		"stale_games", cfg.StaleGameInterval)

	tickers := make([]*time.Ticker, 0, 3)
	defer func() {
		for _, t := range tickers {
			t.Stop()
		}
	}()

	if cfg.RegistrationInterval > 0 {
		t := time.NewTicker(cfg.RegistrationInterval)
		tickers = append(tickers, t)
		go runLoop(ctx, t.C, "registration", func() { closeRegistration(ctx, s, time.Now(), logger) })
	}

	if cfg.PurgeInterval > 0 {
		t := time.NewTicker(cfg.PurgeInterval)
		tickers = append(tickers, t)
		go runLoop(ctx, t.C, "purge", func() { purgeRequests(ctx, s, time.Now(), logger) })
	}

	if cfg.StaleGameInterval > 0 {
		t := time.NewTicker(cfg.StaleGameInterval)
		tickers = append(tickers, t)
		go runLoop(ctx, t.C, "stale_games", func() { staleGames(ctx, s, time.Now(), logger) })
	}

	<-ctx.Done()
	logger.Info("Maintenance tickers stopped")
}

func runLoop(ctx context.Context, ch <-chan time.Time, name string, fn func()) {
	for {
		select {
		case <-ch:
			fn()
		case <-ctx.Done():
			return
		}
	}
}

// --------------------------------------------------------------------------
// Task implementations
// --------------------------------------------------------------------------

func closeRegistration(ctx context.Context, s Store, now time.Time, logger *slog.Logger) error {
	closed, err := s.CloseExpiredRegistration(ctx, now)
	if err != nil {
		logger.Warn("Registration sweep: failed", "error", err)
		return err
	}
	if closed {
		logger.Info("Registration sweep: window closed")
	}
	return nil
}

func purgeRequests(ctx context.Context, s Store, now time.Time, logger *slog.Logger) error {
	n, err := s.PurgeReviewedRequests(ctx, now.Add(-RequestRetention))
	if err != nil {
		logger.Warn("Purge: failed to delete reviewed requests", "error", err)
		return err
	}
	if n > 0 {
		logger.Info("Purge: deleted reviewed requests", "count", n)
	}
	return nil
}

// staleGames only warns; finishing a game is an admin decision.
func staleGames(ctx context.Context, s Store, now time.Time, logger *slog.Logger) error {
	games, err := s.StaleLiveGames(ctx, now.Add(-StaleLiveAfter))
	if err != nil {
		logger.Warn("Stale games: query failed", "error", err)
		return err
	}
	for _, g := range games {
		logger.Warn("Game still live",
			"game_id", g.ID, "home", g.HomeTeam, "away", g.AwayTeam, "started_at", g.StartedAt)
	}
	return nil
}
