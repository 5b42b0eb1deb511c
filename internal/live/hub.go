// Package live pushes row changes and score updates to open screens. A Hub
// owns the subscriber set in a single goroutine; the Postgres listener and
// the scoring service publish into it and every websocket connection reads
// from its own buffered outbox.
package live

import (
	"context"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// Message types.
const (
	TypeChange = "change"
	TypeScore  = "score"
)

// TopicAll matches every message.
const TopicAll = "*"

// Message is what subscribers receive, serialized as JSON.
type Message struct {
	Type   string `json:"type"`
	Table  string `json:"table,omitempty"`
	Op     string `json:"op,omitempty"`
	ID     string `json:"id,omitempty"`
	GameID int64  `json:"game_id,omitempty"`
	Data   any    `json:"data,omitempty"`
	TS     int64  `json:"ts"`
}

// Topics lists the topics a message is delivered on.
func (m Message) Topics() []string {
	t := []string{TopicAll}
	if m.Table != "" {
		t = append(t, TableTopic(m.Table))
	}
	if m.GameID > 0 {
		t = append(t, GameTopic(m.GameID))
	}
	return t
}

func TableTopic(table string) string { return "table:" + table }
func GameTopic(id int64) string      { return "game:" + strconv.FormatInt(id, 10) }

// --------------------------------------------------------------------------
// Hub messages
// --------------------------------------------------------------------------

type hubMsg interface{ isHubMsg() }

type subscribe struct {
	id     string
	topics map[string]bool
	out    chan Message
}

type unsubscribe struct{ id string }

type publish struct{ msg Message }

type stats struct{ reply chan Stats }

func (subscribe) isHubMsg()   {}
func (unsubscribe) isHubMsg() {}
func (publish) isHubMsg()     {}
func (stats) isHubMsg()       {}

// Stats is a snapshot of the hub counters.
type Stats struct {
	Subscribers int   `json:"subscribers"`
	Published   int64 `json:"published"`
	Dropped     int64 `json:"dropped"`
}

type subscriber struct {
	topics map[string]bool
	out    chan Message
}

// Hub fans messages out to subscribers. Delivery never blocks: a subscriber
// whose outbox is full is dropped and its outbox closed.
type Hub struct {
	inbox chan hubMsg
	subs  map[string]*subscriber
	ctx   context.Context

	published, dropped int64
}

// NewHub starts the hub loop. It stops, closing every outbox, when parent
// is cancelled.
func NewHub(parent context.Context) *Hub {
	h := &Hub{
		inbox: make(chan hubMsg, 256),
		subs:  make(map[string]*subscriber),
		ctx:   parent,
	}
	go h.loop()
	return h
}

// Subscribe registers a subscriber for topics (TopicAll when empty) and
// returns its id and outbox. The outbox is closed on Unsubscribe, when the
// subscriber falls behind, or when the hub stops.
func (h *Hub) Subscribe(topics []string, buffer int) (string, <-chan Message) {
	if buffer < 1 {
		buffer = 16
	}
	set := make(map[string]bool, len(topics))
	for _, t := range topics {
		set[t] = true
	}
	if len(set) == 0 {
		set[TopicAll] = true
	}
	id := uuid.NewString()
	out := make(chan Message, buffer)
	if !h.send(subscribe{id: id, topics: set, out: out}) {
		close(out)
	}
	return id, out
}

// Unsubscribe removes a subscriber. Unknown ids are ignored.
func (h *Hub) Unsubscribe(id string) { h.send(unsubscribe{id: id}) }

// Publish queues m for delivery. It stamps TS when unset.
func (h *Hub) Publish(m Message) {
	if m.TS == 0 {
		m.TS = time.Now().Unix()
	}
	h.send(publish{msg: m})
}

// Stats asks the loop for its counters.
func (h *Hub) Stats() Stats {
	reply := make(chan Stats, 1)
	if !h.send(stats{reply: reply}) {
		return Stats{}
	}
	select {
	case s := <-reply:
		return s
	case <-h.ctx.Done():
		return Stats{}
	}
}

func (h *Hub) send(m hubMsg) bool {
	if h.ctx.Err() != nil {
		return false
	}
	select {
	case h.inbox <- m:
		return true
	case <-h.ctx.Done():
		return false
	}
}

func (h *Hub) loop() {
	for {
		select {
		case <-h.ctx.Done():
			h.shutdown()
			return

		case m := <-h.inbox:
			switch msg := m.(type) {
			case subscribe:
				h.subs[msg.id] = &subscriber{topics: msg.topics, out: msg.out}

			case unsubscribe:
				if s, ok := h.subs[msg.id]; ok {
					close(s.out)
					delete(h.subs, msg.id)
				}

			case publish:
				h.published++
				h.broadcast(msg.msg)

			case stats:
				msg.reply <- Stats{Subscribers: len(h.subs), Published: h.published, Dropped: h.dropped}
			}
		}
	}
}

func (h *Hub) broadcast(m Message) {
	topics := m.Topics()
	for id, s := range h.subs {
		if !s.wants(topics) {
			continue
		}
		select {
		case s.out <- m:
		default:
			// Slow subscriber: drop it, the client reconnects and refetches.
			close(s.out)
			delete(h.subs, id)
			h.dropped++
		}
	}
}

func (s *subscriber) wants(topics []string) bool {
	for _, t := range topics {
		if s.topics[t] {
			return true
		}
	}
	return false
}

func (h *Hub) shutdown() {
	for id, s := range h.subs {
		close(s.out)
		delete(h.subs, id)
	}
}
