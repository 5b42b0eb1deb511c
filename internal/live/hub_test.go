package live

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func recv(t *testing.T, ch <-chan Message) Message {
	t.Helper()
	select {
	case m, ok := <-ch:
		require.True(t, ok, "outbox closed")
		return m
	case <-time.After(time.Second):
		t.Fatal("no message")
	}
	return Message{}
}

func nothing(t *testing.T, ch <-chan Message) {
	t.Helper()
	select {
	case m := <-ch:
		t.Fatalf("unexpected message %+v", m)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestMessageTopics(t *testing.T) {
	m := Message{Type: TypeChange, Table: "games", GameID: 9}
	assert.Equal(t, []string{"*", "table:games", "game:9"}, m.Topics())
	assert.Equal(t, []string{"*"}, Message{Type: TypeChange}.Topics())
}

func TestHubRoutesByTopic(t *testing.T) {
	h := NewHub(t.Context())

	_, all := h.Subscribe(nil, 4)
	_, game := h.Subscribe([]string{GameTopic(3)}, 4)
	_, teams := h.Subscribe([]string{TableTopic("teams")}, 4)

	h.Publish(Message{Type: TypeScore, GameID: 3})
	h.Publish(Message{Type: TypeChange, Table: "teams", ID: "5"})

	m := recv(t, all)
	assert.Equal(t, TypeScore, m.Type)
	assert.NotZero(t, m.TS)
	assert.Equal(t, "teams", recv(t, all).Table)

	assert.Equal(t, int64(3), recv(t, game).GameID)
	nothing(t, game)

	assert.Equal(t, "5", recv(t, teams).ID)
	nothing(t, teams)
}

func TestHubKeepsPublishOrder(t *testing.T) {
	h := NewHub(t.Context())
	_, out := h.Subscribe([]string{GameTopic(1)}, 16)

	for i := 1; i <= 5; i++ {
		h.Publish(Message{Type: TypeScore, GameID: 1, ID: string(rune('0' + i))})
	}
	for i := 1; i <= 5; i++ {
		assert.Equal(t, string(rune('0'+i)), recv(t, out).ID)
	}
}

func TestHubDropsSlowSubscriber(t *testing.T) {
	h := NewHub(t.Context())
	_, slow := h.Subscribe(nil, 1)
	_, fast := h.Subscribe(nil, 8)

	h.Publish(Message{Type: TypeChange, ID: "1"})
	h.Publish(Message{Type: TypeChange, ID: "2"})
	recv(t, fast)
	recv(t, fast)

	// The first message is still buffered, then the outbox is closed.
	assert.Equal(t, "1", recv(t, slow).ID)
	_, ok := <-slow
	assert.False(t, ok)

	st := h.Stats()
	assert.Equal(t, 1, st.Subscribers)
	assert.Equal(t, int64(2), st.Published)
	assert.Equal(t, int64(1), st.Dropped)
}

func TestHubUnsubscribe(t *testing.T) {
	h := NewHub(t.Context())
	id, out := h.Subscribe(nil, 4)
	h.Unsubscribe(id)

	_, ok := <-out
	assert.False(t, ok)
	assert.Equal(t, 0, h.Stats().Subscribers)

	h.Unsubscribe("unknown")
}

func TestHubShutdownClosesOutboxes(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	h := NewHub(ctx)
	_, out := h.Subscribe(nil, 4)
	require.Equal(t, 1, h.Stats().Subscribers)

	cancel()
	select {
	case _, ok := <-out:
		assert.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("outbox not closed on shutdown")
	}

	// Calls after shutdown return instead of blocking.
	h.Publish(Message{Type: TypeChange})
	_, late := h.Subscribe(nil, 1)
	_, ok := <-late
	assert.False(t, ok)
	assert.Equal(t, Stats{}, h.Stats())
}
