package maintenance

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// RunAll runs every task once, in order, and returns the joined errors.
// The admin CLI calls it for deployments that run without the API server.
func RunAll(ctx context.Context, s Store, logger *slog.Logger) error {
	now := time.Now()
	tasks := []struct {
		name string
		fn   func() error
	}{
		{"registration", func() error { return closeRegistration(ctx, s, now, logger) }},
		{"purge", func() error { return purgeRequests(ctx, s, now, logger) }},
		{"stale_games", func() error { return staleGames(ctx, s, now, logger) }},
	}

	var errs []error
	for _, t := range tasks {
		start := time.Now()
		err := t.fn()
		logger.Info("Maintenance task finished",
			"task", t.name, "duration", time.Since(start).Round(time.Millisecond), "ok", err == nil)
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
