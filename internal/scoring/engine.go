package scoring

type CommandType string

const (
	CmdPoint     CommandType = "point"
	CmdUndoPoint CommandType = "undo_point"
	CmdTimeout   CommandType = "timeout"
	CmdSetServer CommandType = "set_server"
)

type Command struct {
	Type CommandType `json:"type"`
	Side Side        `json:"side,omitempty"`
}

type EventType string

const (
	EvtPoint        EventType = "point"
	EvtPointUndone  EventType = "point_undone"
	EvtServeChanged EventType = "serve_changed"
	EvtTimeout      EventType = "timeout"
	EvtSetWon       EventType = "set_won"
	EvtSetStarted   EventType = "set_started"
	EvtMatchWon     EventType = "match_won"
)

type Event struct {
	Type EventType `json:"type"`
	Side Side      `json:"side,omitempty"`
	Set  int       `json:"set"`
}

// Apply advances the match by one command. On error the returned match is
// the input unchanged.
func Apply(m Match, cmd Command) ([]Event, Match, error) {
	if len(m.Sets) == 0 {
		return nil, m, ErrInvalidConfig
	}
	if m.Finished() {
		return nil, m, ErrMatchFinished
	}
	switch cmd.Type {
	case CmdPoint:
		return point(m, cmd.Side)
	case CmdUndoPoint:
		return undo(m)
	case CmdTimeout:
		return timeout(m, cmd.Side)
	case CmdSetServer:
		return setServer(m, cmd.Side)
	}
	return nil, m, ErrUnknownCommand
}

// point scores a rally for side, then checks the set and match win
// conditions in that order.
func point(m Match, side Side) ([]Event, Match, error) {
	if !side.Valid() {
		return nil, m, ErrUnknownSide
	}
	next := m.clone()
	idx := len(next.Sets) - 1
	set := next.Sets[idx]

	set.Rallies += string(side.rally())
	if side == Home {
		set.HomePoints++
	} else {
		set.AwayPoints++
	}
	prevServer := set.Server
	set.Server = serverAfter(m.Config, set.Number, set.FirstServer, set.Rallies)

	events := []Event{{Type: EvtPoint, Side: side, Set: set.Number}}
	if set.Server != prevServer {
		events = append(events, Event{Type: EvtServeChanged, Side: set.Server, Set: set.Number})
	}

	if winner, ok := setWinner(m.Config, set); ok {
		set.Winner = winner
		set.Finished = true
		next.Sets[idx] = set
		events = append(events, Event{Type: EvtSetWon, Side: winner, Set: set.Number})

		home, away := next.SetsWon()
		if home >= m.Config.SetsToWin || away >= m.Config.SetsToWin {
			next.Winner = winner
			events = append(events, Event{Type: EvtMatchWon, Side: winner, Set: set.Number})
			return events, next, nil
		}

		// Loser of the set serves first in the next one.
		first := winner.Other()
		next.Sets = append(next.Sets, Set{Number: set.Number + 1, FirstServer: first, Server: first})
		events = append(events, Event{Type: EvtSetStarted, Side: first, Set: set.Number + 1})
		return events, next, nil
	}

	next.Sets[idx] = set
	return events, next, nil
}

// undo removes the last rally of the current set. It never reaches back into
// a finished set.
func undo(m Match) ([]Event, Match, error) {
	next := m.clone()
	idx := len(next.Sets) - 1
	set := next.Sets[idx]
	if set.Rallies == "" {
		return nil, m, ErrNothingToUndo
	}

	last := sideOf(set.Rallies[len(set.Rallies)-1])
	set.Rallies = set.Rallies[:len(set.Rallies)-1]
	if last == Home {
		set.HomePoints--
	} else {
		set.AwayPoints--
	}
	prevServer := set.Server
	set.Server = serverAfter(m.Config, set.Number, set.FirstServer, set.Rallies)
	next.Sets[idx] = set

	events := []Event{{Type: EvtPointUndone, Side: last, Set: set.Number}}
	if set.Server != prevServer {
		events = append(events, Event{Type: EvtServeChanged, Side: set.Server, Set: set.Number})
	}
	return events, next, nil
}

func timeout(m Match, side Side) ([]Event, Match, error) {
	if !side.Valid() {
		return nil, m, ErrUnknownSide
	}
	next := m.clone()
	idx := len(next.Sets) - 1
	set := next.Sets[idx]
	if set.timeouts(side) >= m.Config.MaxTimeouts {
		return nil, m, ErrTimeoutLimit
	}
	if side == Home {
		set.HomeTimeouts++
	} else {
		set.AwayTimeouts++
	}
	next.Sets[idx] = set
	return []Event{{Type: EvtTimeout, Side: side, Set: set.Number}}, next, nil
}

func setServer(m Match, side Side) ([]Event, Match, error) {
	if !side.Valid() {
		return nil, m, ErrUnknownSide
	}
	next := m.clone()
	idx := len(next.Sets) - 1
	set := next.Sets[idx]
	if set.Rallies != "" {
		return nil, m, ErrServeLocked
	}
	if set.Server == side {
		return nil, m, nil
	}
	set.FirstServer = side
	set.Server = side
	next.Sets[idx] = set
	return []Event{{Type: EvtServeChanged, Side: side, Set: set.Number}}, next, nil
}

// setWinner applies the win condition: the target reached with at least the
// configured lead.
func setWinner(cfg Config, s Set) (Side, bool) {
	target := cfg.Target(s.Number)
	lead := s.HomePoints - s.AwayPoints
	switch {
	case s.HomePoints >= target && lead >= cfg.MinLead:
		return Home, true
	case s.AwayPoints >= target && -lead >= cfg.MinLead:
		return Away, true
	}
	return "", false
}

// serverAfter replays the rallies of a set to find who serves next.
func serverAfter(cfg Config, setNumber int, first Side, rallies string) Side {
	if rallies == "" {
		return first
	}
	if cfg.Rotation == RotationWinner {
		return sideOf(rallies[len(rallies)-1])
	}

	deuce := cfg.Target(setNumber) - 1
	server := first
	home, away, since := 0, 0, 0
	for i := 0; i < len(rallies); i++ {
		if rallies[i] == 'h' {
			home++
		} else {
			away++
		}
		since++
		every := cfg.ServeEvery
		if home >= deuce && away >= deuce {
			every = 1
		}
		if since >= every {
			server = server.Other()
			since = 0
		}
	}
	return server
}
