// Package scoring is the live score state for set-based sports (volleyball,
// table tennis). It is a pure state machine: Apply takes the current match
// and a command and returns the events it produced and the next match. The
// caller persists the result.
package scoring

import (
	"errors"
	"fmt"

	"github.com/albapepper/schoolcup/internal/config"
)

var (
	ErrMatchFinished    = errors.New("match already finished")
	ErrTimeoutLimit     = errors.New("no timeouts left in this set")
	ErrNothingToUndo    = errors.New("no point to undo in the current set")
	ErrUnknownSide      = errors.New("unknown side")
	ErrUnknownCommand   = errors.New("unknown command")
	ErrInvalidConfig    = errors.New("invalid scoring config")
	ErrServeLocked      = errors.New("serve can only be set before the first rally of a set")
	ErrUnsupportedSport = errors.New("sport is not scored by sets")
)

type Side string

const (
	Home Side = "home"
	Away Side = "away"
)

func (s Side) Valid() bool { return s == Home || s == Away }

// Other returns the opposing side.
func (s Side) Other() Side {
	if s == Home {
		return Away
	}
	return Home
}

func (s Side) rally() byte {
	if s == Home {
		return 'h'
	}
	return 'a'
}

func sideOf(b byte) Side {
	if b == 'h' {
		return Home
	}
	return Away
}

type Rotation string

const (
	// RotationWinner gives the serve to whoever won the rally (volleyball).
	RotationWinner Rotation = "winner"
	// RotationAlternate switches the serve every ServeEvery points and every
	// point once both sides are one point from the target (table tennis).
	RotationAlternate Rotation = "alternate"
)

// Config is the game_configs row of a match.
type Config struct {
	PointsPerSet   int      `json:"points_per_set"`
	TiebreakPoints int      `json:"tiebreak_points"`
	MinLead        int      `json:"min_lead"`
	SetsToWin      int      `json:"sets_to_win"`
	MaxTimeouts    int      `json:"max_timeouts_per_set"`
	Rotation       Rotation `json:"serve_rotation"`
	ServeEvery     int      `json:"serve_every"`
}

// DefaultConfig returns the usual rules of a sport.
func DefaultConfig(sport string) (Config, error) {
	switch sport {
	case config.SportVolleyball:
		return Config{
			PointsPerSet: 25, TiebreakPoints: 15, MinLead: 2, SetsToWin: 3,
			MaxTimeouts: 2, Rotation: RotationWinner, ServeEvery: 1,
		}, nil
	case config.SportTableTennis:
		return Config{
			PointsPerSet: 11, TiebreakPoints: 11, MinLead: 2, SetsToWin: 3,
			MaxTimeouts: 1, Rotation: RotationAlternate, ServeEvery: 2,
		}, nil
	}
	return Config{}, fmt.Errorf("%w: %s", ErrUnsupportedSport, sport)
}

// Validate checks the thresholds are usable.
func (c Config) Validate() error {
	switch {
	case c.PointsPerSet < 1:
		return fmt.Errorf("%w: points_per_set must be positive", ErrInvalidConfig)
	case c.TiebreakPoints < 1:
		return fmt.Errorf("%w: tiebreak_points must be positive", ErrInvalidConfig)
	case c.MinLead < 1:
		return fmt.Errorf("%w: min_lead must be at least 1", ErrInvalidConfig)
	case c.SetsToWin < 1:
		return fmt.Errorf("%w: sets_to_win must be positive", ErrInvalidConfig)
	case c.MaxTimeouts < 0:
		return fmt.Errorf("%w: max_timeouts_per_set must not be negative", ErrInvalidConfig)
	case c.Rotation != RotationWinner && c.Rotation != RotationAlternate:
		return fmt.Errorf("%w: unknown serve_rotation %q", ErrInvalidConfig, c.Rotation)
	case c.Rotation == RotationAlternate && c.ServeEvery < 1:
		return fmt.Errorf("%w: serve_every must be positive", ErrInvalidConfig)
	}
	return nil
}

// MaxSets is the number of sets when the match goes the distance.
func (c Config) MaxSets() int { return 2*c.SetsToWin - 1 }

// Target is the point threshold of a set; the deciding set uses the
// tiebreak threshold.
func (c Config) Target(setNumber int) int {
	if setNumber == c.MaxSets() {
		return c.TiebreakPoints
	}
	return c.PointsPerSet
}

// Set is one game_sets row. Rallies records who won each point in order
// ('h' or 'a') so undo and serve can be recomputed.
type Set struct {
	Number       int    `json:"set_number"`
	HomePoints   int    `json:"home_points"`
	AwayPoints   int    `json:"away_points"`
	HomeTimeouts int    `json:"home_timeouts"`
	AwayTimeouts int    `json:"away_timeouts"`
	FirstServer  Side   `json:"first_server"`
	Server       Side   `json:"server"`
	Rallies      string `json:"rallies"`
	Winner       Side   `json:"winner,omitempty"`
	Finished     bool   `json:"finished"`
}

func (s Set) points(side Side) int {
	if side == Home {
		return s.HomePoints
	}
	return s.AwayPoints
}

func (s Set) timeouts(side Side) int {
	if side == Home {
		return s.HomeTimeouts
	}
	return s.AwayTimeouts
}

// Match is the live state of one game.
type Match struct {
	Config Config `json:"config"`
	Sets   []Set  `json:"sets"`
	Winner Side   `json:"winner,omitempty"`
}

// NewMatch opens the first set with firstServer serving.
func NewMatch(cfg Config, firstServer Side) (Match, error) {
	if err := cfg.Validate(); err != nil {
		return Match{}, err
	}
	if !firstServer.Valid() {
		return Match{}, ErrUnknownSide
	}
	return Match{
		Config: cfg,
		Sets:   []Set{{Number: 1, FirstServer: firstServer, Server: firstServer}},
	}, nil
}

// Current returns the set being played (or the last one once finished).
func (m Match) Current() Set {
	if len(m.Sets) == 0 {
		return Set{}
	}
	return m.Sets[len(m.Sets)-1]
}

// Finished reports whether a side has won the match.
func (m Match) Finished() bool { return m.Winner != "" }

// SetsWon counts finished sets per side.
func (m Match) SetsWon() (home, away int) {
	for _, s := range m.Sets {
		switch s.Winner {
		case Home:
			home++
		case Away:
			away++
		}
	}
	return home, away
}

// Points sums every point of every set per side.
func (m Match) Points() (home, away int) {
	for _, s := range m.Sets {
		home += s.HomePoints
		away += s.AwayPoints
	}
	return home, away
}

func (m Match) clone() Match {
	out := m
	out.Sets = append([]Set(nil), m.Sets...)
	return out
}
