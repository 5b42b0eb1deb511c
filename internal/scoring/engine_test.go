package scoring

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func volleyball(t *testing.T) Match {
	t.Helper()
	cfg, err := DefaultConfig("volleyball")
	require.NoError(t, err)
	m, err := NewMatch(cfg, Home)
	require.NoError(t, err)
	return m
}

func tableTennis(t *testing.T) Match {
	t.Helper()
	cfg, err := DefaultConfig("table_tennis")
	require.NoError(t, err)
	m, err := NewMatch(cfg, Home)
	require.NoError(t, err)
	return m
}

// play applies one point per byte of rallies ('h' or 'a') and returns every
// event produced along the way.
func play(t *testing.T, m Match, rallies string) ([]Event, Match) {
	t.Helper()
	var all []Event
	for i := 0; i < len(rallies); i++ {
		evts, next, err := Apply(m, Command{Type: CmdPoint, Side: sideOf(rallies[i])})
		require.NoError(t, err, "rally %d", i)
		all = append(all, evts...)
		m = next
	}
	return all, m
}

func containsEvent(events []Event, typ EventType) bool {
	for _, e := range events {
		if e.Type == typ {
			return true
		}
	}
	return false
}

func TestDefaultConfig(t *testing.T) {
	_, err := DefaultConfig("futsal")
	assert.ErrorIs(t, err, ErrUnsupportedSport)

	cfg, err := DefaultConfig("volleyball")
	require.NoError(t, err)
	assert.Equal(t, 5, cfg.MaxSets())
	assert.Equal(t, 25, cfg.Target(1))
	assert.Equal(t, 15, cfg.Target(5))
}

func TestConfigValidate(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
	}{
		{"zero points", Config{TiebreakPoints: 15, MinLead: 2, SetsToWin: 3, Rotation: RotationWinner}},
		{"zero lead", Config{PointsPerSet: 25, TiebreakPoints: 15, SetsToWin: 3, Rotation: RotationWinner}},
		{"unknown rotation", Config{PointsPerSet: 25, TiebreakPoints: 15, MinLead: 2, SetsToWin: 3, Rotation: "random"}},
		{"alternate without period", Config{PointsPerSet: 11, TiebreakPoints: 11, MinLead: 2, SetsToWin: 3, Rotation: RotationAlternate}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.ErrorIs(t, tc.cfg.Validate(), ErrInvalidConfig)
			_, err := NewMatch(tc.cfg, Home)
			assert.Error(t, err)
		})
	}
}

func TestNewMatchRejectsUnknownSide(t *testing.T) {
	cfg, _ := DefaultConfig("volleyball")
	_, err := NewMatch(cfg, "left")
	assert.ErrorIs(t, err, ErrUnknownSide)
}

func TestPointIncrementsCurrentSet(t *testing.T) {
	m := volleyball(t)

	events, next, err := Apply(m, Command{Type: CmdPoint, Side: Away})
	require.NoError(t, err)

	assert.Equal(t, 1, next.Current().AwayPoints)
	assert.Equal(t, Away, next.Current().Server, "rally winner serves in volleyball")
	assert.True(t, containsEvent(events, EvtServeChanged))
	assert.Zero(t, m.Current().AwayPoints, "input match must not be mutated")
}

func TestSetWonAdvancesToNextSet(t *testing.T) {
	m := volleyball(t)

	events, m := play(t, m, strings.Repeat("h", 25))

	assert.True(t, containsEvent(events, EvtSetWon))
	assert.True(t, containsEvent(events, EvtSetStarted))
	require.Len(t, m.Sets, 2)
	assert.Equal(t, Home, m.Sets[0].Winner)
	assert.True(t, m.Sets[0].Finished)
	assert.Equal(t, 2, m.Current().Number)
	assert.Equal(t, Away, m.Current().Server, "loser of the set serves first")
	assert.False(t, m.Finished())
}

func TestSetNeedsMinimumLead(t *testing.T) {
	m := volleyball(t)

	_, m = play(t, m, strings.Repeat("ha", 24)) // 24-24
	events, m := play(t, m, "h")                // 25-24
	assert.False(t, containsEvent(events, EvtSetWon))
	assert.Len(t, m.Sets, 1)

	events, m = play(t, m, "a") // 25-25
	assert.False(t, containsEvent(events, EvtSetWon))

	events, m = play(t, m, "aa") // 25-27
	assert.True(t, containsEvent(events, EvtSetWon))
	assert.Equal(t, Away, m.Sets[0].Winner)
	assert.Equal(t, 27, m.Sets[0].AwayPoints)
}

func TestMatchWonAfterSetsToWin(t *testing.T) {
	m := volleyball(t)

	_, m = play(t, m, strings.Repeat("h", 50))
	events, m := play(t, m, strings.Repeat("h", 25))

	assert.True(t, containsEvent(events, EvtMatchWon))
	assert.False(t, containsEvent(events, EvtSetStarted))
	assert.Equal(t, Home, m.Winner)
	assert.Len(t, m.Sets, 3)

	home, away := m.SetsWon()
	assert.Equal(t, 3, home)
	assert.Zero(t, away)

	_, _, err := Apply(m, Command{Type: CmdPoint, Side: Away})
	assert.ErrorIs(t, err, ErrMatchFinished)
	_, _, err = Apply(m, Command{Type: CmdUndoPoint})
	assert.ErrorIs(t, err, ErrMatchFinished)
}

func TestDecidingSetUsesTiebreakTarget(t *testing.T) {
	m := volleyball(t)
	h25, a25 := strings.Repeat("h", 25), strings.Repeat("a", 25)
	_, m = play(t, m, h25+a25+h25+a25)
	require.Equal(t, 5, m.Current().Number)

	_, m = play(t, m, strings.Repeat("ha", 13)) // 13-13
	events, m := play(t, m, "h")
	assert.False(t, containsEvent(events, EvtSetWon), "14-13 is not enough")

	events, m = play(t, m, "h") // 15-13
	assert.True(t, containsEvent(events, EvtMatchWon))
	assert.Equal(t, Home, m.Winner)

	hp, ap := m.Points()
	assert.Equal(t, 25*2+15, hp)
	assert.Equal(t, 25*2+13, ap)
}

func TestUndoPoint(t *testing.T) {
	m := volleyball(t)
	_, m = play(t, m, "hha")
	require.Equal(t, Away, m.Current().Server)

	events, next, err := Apply(m, Command{Type: CmdUndoPoint})
	require.NoError(t, err)
	assert.Equal(t, EvtPointUndone, events[0].Type)
	assert.Equal(t, Away, events[0].Side)
	assert.Equal(t, 2, next.Current().HomePoints)
	assert.Zero(t, next.Current().AwayPoints)
	assert.Equal(t, Home, next.Current().Server)
	assert.Equal(t, "hh", next.Current().Rallies)
}

func TestUndoDoesNotCrossSets(t *testing.T) {
	m := volleyball(t)
	_, m = play(t, m, strings.Repeat("h", 25))

	_, _, err := Apply(m, Command{Type: CmdUndoPoint})
	assert.ErrorIs(t, err, ErrNothingToUndo)
}

func TestTimeoutLimit(t *testing.T) {
	m := volleyball(t)

	var err error
	for i := 0; i < 2; i++ {
		_, m, err = Apply(m, Command{Type: CmdTimeout, Side: Home})
		require.NoError(t, err)
	}
	assert.Equal(t, 2, m.Current().HomeTimeouts)

	_, _, err = Apply(m, Command{Type: CmdTimeout, Side: Home})
	assert.ErrorIs(t, err, ErrTimeoutLimit)

	_, m, err = Apply(m, Command{Type: CmdTimeout, Side: Away})
	require.NoError(t, err)

	// Timeouts reset with the next set.
	_, m = play(t, m, strings.Repeat("a", 25))
	assert.Zero(t, m.Current().HomeTimeouts)
	_, _, err = Apply(m, Command{Type: CmdTimeout, Side: Home})
	assert.NoError(t, err)
}

func TestSetServer(t *testing.T) {
	m := volleyball(t)

	events, m, err := Apply(m, Command{Type: CmdSetServer, Side: Away})
	require.NoError(t, err)
	require.Len(t, events, 1)
	assert.Equal(t, Away, m.Current().FirstServer)

	_, m = play(t, m, "h")
	_, _, err = Apply(m, Command{Type: CmdSetServer, Side: Away})
	assert.ErrorIs(t, err, ErrServeLocked)
}

func TestInvalidCommands(t *testing.T) {
	m := volleyball(t)

	_, _, err := Apply(m, Command{Type: CmdPoint, Side: "left"})
	assert.ErrorIs(t, err, ErrUnknownSide)

	_, _, err = Apply(m, Command{Type: "replay"})
	assert.ErrorIs(t, err, ErrUnknownCommand)

	_, _, err = Apply(Match{}, Command{Type: CmdPoint, Side: Home})
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestTableTennisServeAlternatesEveryTwoPoints(t *testing.T) {
	m := tableTennis(t)

	_, m = play(t, m, "h")
	assert.Equal(t, Home, m.Current().Server)
	_, m = play(t, m, "a")
	assert.Equal(t, Away, m.Current().Server)
	_, m = play(t, m, "hh")
	assert.Equal(t, Home, m.Current().Server)
}

func TestTableTennisServeAlternatesEveryPointAtDeuce(t *testing.T) {
	m := tableTennis(t)

	_, m = play(t, m, strings.Repeat("ha", 10)) // 10-10
	assert.Equal(t, Home, m.Current().Server)

	_, m = play(t, m, "h") // 11-10
	assert.Equal(t, Away, m.Current().Server)
	assert.Len(t, m.Sets, 1)

	_, m = play(t, m, "a") // 11-11
	assert.Equal(t, Home, m.Current().Server)

	events, m := play(t, m, "hh") // 13-11
	assert.True(t, containsEvent(events, EvtSetWon))
	assert.Equal(t, Away, m.Current().Server)
}
