package live

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"

	"github.com/albapepper/schoolcup/internal/cache"
)

const (
	channel          = "table_changed"
	reconnectBackoff = 5 * time.Second
	maxReconnect     = 30 * time.Second
)

// Change is the JSON payload of pg_notify('table_changed', ...).
type Change struct {
	Table     string `json:"table"`
	Op        string `json:"op"`
	ID        string `json:"id"`
	GameID    *int64 `json:"game_id"`
	Timestamp int64  `json:"ts"`
}

// Message converts the change into a hub message.
func (c Change) Message() Message {
	m := Message{Type: TypeChange, Table: c.Table, Op: c.Op, ID: c.ID, TS: c.Timestamp}
	if c.GameID != nil {
		m.GameID = *c.GameID
	}
	return m
}

// ParseChange decodes a notification payload.
func ParseChange(payload string) (Change, error) {
	var c Change
	if err := json.Unmarshal([]byte(payload), &c); err != nil {
		return Change{}, err
	}
	if c.Table == "" {
		return Change{}, fmt.Errorf("payload without table")
	}
	return c, nil
}

// Fanout returns the change handler used in production: drop the cached
// reads built from the table, then push the change to subscribers.
func Fanout(h *Hub, c *cache.Cache, logger *slog.Logger) func(Change) {
	return func(ch Change) {
		if n := c.InvalidateTable(ch.Table); n > 0 {
			logger.Debug("Cache invalidated", "table", ch.Table, "keys", n)
		}
		h.Publish(ch.Message())
	}
}

// Listen opens a dedicated connection and listens on the table_changed
// channel, calling handle for every change. It reconnects automatically on
// connection loss. Blocks until ctx is cancelled. Intended to be called
// with `go`.
func Listen(ctx context.Context, dbURL string, handle func(Change), logger *slog.Logger) {
	backoff := reconnectBackoff

	for {
		err := listenLoop(ctx, dbURL, handle, logger)
		if ctx.Err() != nil {
			logger.Info("Change listener stopped (context cancelled)")
			return
		}

		logger.Error("Change listener disconnected, reconnecting...",
			"error", err, "backoff", backoff)

		select {
		case <-time.After(backoff):
			backoff = min(backoff*2, maxReconnect)
		case <-ctx.Done():
			return
		}
	}
}

// listenLoop runs a single listen session. Returns when the connection drops
// or the context is cancelled.
func listenLoop(ctx context.Context, dbURL string, handle func(Change), logger *slog.Logger) error {
	conn, err := pgx.Connect(ctx, dbURL)
	if err != nil {
		return fmt.Errorf("connect: %w", err)
	}
	defer conn.Close(context.Background())

	if _, err := conn.Exec(ctx, "LISTEN "+channel); err != nil {
		return fmt.Errorf("LISTEN %s: %w", channel, err)
	}
	logger.Info("Change listener connected", "channel", channel)

	for {
		n, err := conn.WaitForNotification(ctx)
		if err != nil {
			return fmt.Errorf("wait for notification: %w", err)
		}

		change, err := ParseChange(n.Payload)
		if err != nil {
			logger.Warn("Failed to parse change event", "payload", n.Payload, "error", err)
			continue
		}
		logger.Debug("Change received", "table", change.Table, "op", change.Op, "id", change.ID)
		handle(change)
	}
}
