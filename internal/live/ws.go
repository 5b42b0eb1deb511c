package live

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/coder/websocket"
)

const (
	writeTimeout = 5 * time.Second
	pingEvery    = 30 * time.Second
	outboxSize   = 32
)

// clientMessage is what a screen may send: {"type":"ping"}.
type clientMessage struct {
	Type string `json:"type"`
}

// ParseTopics splits the comma separated topics query value. Empty means
// everything.
func ParseTopics(raw string) []string {
	var out []string
	for _, t := range strings.Split(raw, ",") {
		if t = strings.TrimSpace(t); t != "" {
			out = append(out, t)
		}
	}
	if len(out) == 0 {
		return []string{TopicAll}
	}
	return out
}

// Handler upgrades to a websocket and streams hub messages for the topics
// in ?topics= (for example topics=game:12,table:games).
func Handler(h *Hub, originPatterns []string, logger *slog.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			OriginPatterns: originPatterns,
		})
		if err != nil {
			// Accept already wrote the HTTP error.
			return
		}
		defer conn.Close(websocket.StatusNormalClosure, "bye")

		topics := ParseTopics(r.URL.Query().Get("topics"))
		id, out := h.Subscribe(topics, outboxSize)
		defer h.Unsubscribe(id)
		logger.Debug("Live client connected", "client", id, "topics", topics)

		ctx, cancel := context.WithCancel(r.Context())
		defer cancel()

		// Writer goroutine
		go func() {
			defer cancel()
			ticker := time.NewTicker(pingEvery)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					pctx, pcancel := context.WithTimeout(ctx, writeTimeout)
					err := conn.Ping(pctx)
					pcancel()
					if err != nil {
						return
					}
				case msg, ok := <-out:
					if !ok {
						// Dropped by the hub or shutting down.
						conn.Close(websocket.StatusTryAgainLater, "lagging behind, reconnect")
						return
					}
					if err := write(ctx, conn, msg); err != nil {
						return
					}
				}
			}
		}()

		// Reader loop
		for {
			_, data, err := conn.Read(ctx)
			if err != nil {
				switch websocket.CloseStatus(err) {
				case websocket.StatusNormalClosure, websocket.StatusGoingAway:
				default:
					if ctx.Err() == nil {
						logger.Debug("Live client read failed", "client", id, "error", err)
					}
				}
				return
			}
			var cm clientMessage
			if json.Unmarshal(data, &cm) == nil && cm.Type == "ping" {
				if err := write(ctx, conn, map[string]any{"type": "pong", "ts": time.Now().Unix()}); err != nil {
					return
				}
			}
		}
	}
}

func write(ctx context.Context, conn *websocket.Conn, v any) error {
	payload, err := json.Marshal(v)
	if err != nil {
		return err
	}
	wctx, cancel := context.WithTimeout(ctx, writeTimeout)
	defer cancel()
	return conn.Write(wctx, websocket.MessageText, payload)
}
