package tournament

import (
	"errors"
	"fmt"
	"strings"

	"github.com/albapepper/schoolcup/internal/config"
)

// terr is a comparable error type so errors.Is works on the constants.
type terr string

func (e terr) Error() string { return string(e) }

const (
	ErrInvalidTransition  = terr("invalid status transition")
	ErrRegistrationClosed = terr("registration is closed")
	ErrGameNotPlayed      = terr("game is not live or finished")
	ErrRegistrationFull   = terr("modality has no team slots left")
)

// ValidationError reports the first field that failed a rule.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// IsValidation reports whether err carries a ValidationError.
func IsValidation(err error) bool {
	var ve *ValidationError
	return errors.As(err, &ve)
}

func invalid(field, format string, args ...any) error {
	return &ValidationError{Field: field, Message: fmt.Sprintf(format, args...)}
}

func validCategory(c string) bool {
	return c == CategoryMale || c == CategoryFemale || c == CategoryMixed
}

// --------------------------------------------------------------------------
// Entity rules
// --------------------------------------------------------------------------

// Validate checks a modality before insert/update and trims its name.
func (m *Modality) Validate() error {
	m.Name = strings.TrimSpace(m.Name)
	if m.Name == "" {
		return invalid("name", "is required")
	}
	if m.Kind != KindTeam && m.Kind != KindIndividual {
		return invalid("kind", "must be %q or %q", KindTeam, KindIndividual)
	}
	if _, ok := config.SportRegistry[m.Sport]; !ok {
		return invalid("sport", "unknown sport %q", m.Sport)
	}
	if m.MinPlayers <= 0 {
		return invalid("min_players", "must be positive")
	}
	if m.MaxPlayers < m.MinPlayers {
		return invalid("max_players", "must be >= min_players")
	}
	return nil
}

// Validate checks a team before insert/update and trims text fields.
func (t *Team) Validate() error {
	t.Name = strings.TrimSpace(t.Name)
	t.CoachName = strings.TrimSpace(t.CoachName)
	t.CoachContact = strings.TrimSpace(t.CoachContact)
	if t.Name == "" {
		return invalid("name", "is required")
	}
	if len(t.Name) > 120 {
		return invalid("name", "must be at most 120 characters")
	}
	if t.ModalityID <= 0 {
		return invalid("modality_id", "is required")
	}
	if !validCategory(t.Category) {
		return invalid("category", "must be one of %s, %s, %s", CategoryMale, CategoryFemale, CategoryMixed)
	}
	return nil
}

// Validate checks a player before insert/update.
func (p *Player) Validate() error {
	p.Name = strings.TrimSpace(p.Name)
	if p.Name == "" {
		return invalid("name", "is required")
	}
	if p.TeamID <= 0 {
		return invalid("team_id", "is required")
	}
	if p.JerseyNumber < 0 || p.JerseyNumber > 99 {
		return invalid("jersey_number", "must be between 0 and 99")
	}
	s := p.PlayerStats
	for name, v := range map[string]int{
		"goals": s.Goals, "yellow_cards": s.YellowCards, "red_cards": s.RedCards,
		"points": s.Points, "aces": s.Aces, "blocks": s.Blocks,
	} {
		if v < 0 {
			return invalid(name, "must not be negative")
		}
	}
	return nil
}

// Validate checks the two-distinct-teams and non-negative score rules.
func (g *Game) Validate() error {
	g.Location = strings.TrimSpace(g.Location)
	if g.ModalityID <= 0 {
		return invalid("modality_id", "is required")
	}
	if g.HomeTeamID <= 0 || g.AwayTeamID <= 0 {
		return invalid("teams", "both teams are required")
	}
	if g.HomeTeamID == g.AwayTeamID {
		return invalid("teams", "a match needs two distinct teams")
	}
	if g.ScheduledAt.IsZero() {
		return invalid("scheduled_at", "is required")
	}
	if g.HomeScore < 0 || g.AwayScore < 0 {
		return invalid("score", "must not be negative")
	}
	if g.Status == "" {
		g.Status = StatusScheduled
	}
	if !validStatus(g.Status) {
		return invalid("status", "unknown status %q", g.Status)
	}
	return nil
}

// Validate checks a highlight before it is appended.
func (e *GameEvent) Validate() error {
	e.Description = strings.TrimSpace(e.Description)
	if !eventKinds[e.Kind] {
		return invalid("kind", "unknown event kind %q", e.Kind)
	}
	if e.Kind != EventNote && e.TeamID == nil {
		return invalid("team_id", "is required for %s", e.Kind)
	}
	if e.Kind == EventNote && e.Description == "" {
		return invalid("description", "is required for notes")
	}
	if e.Period < 0 {
		return invalid("period", "must not be negative")
	}
	if e.Minute != nil && *e.Minute < 0 {
		return invalid("minute", "must not be negative")
	}
	return nil
}

// Validate checks a public team signup.
func (r *TeamRequest) Validate() error {
	t := Team{Name: r.Name, ModalityID: r.ModalityID, Category: r.Category, CoachName: r.CoachName, CoachContact: r.CoachContact}
	if err := t.Validate(); err != nil {
		return err
	}
	r.Name, r.CoachName, r.CoachContact = t.Name, t.CoachName, t.CoachContact
	if r.CoachName == "" {
		return invalid("coach_name", "is required")
	}
	if r.CoachContact == "" {
		return invalid("coach_contact", "is required")
	}
	return nil
}

// Validate checks a public player signup.
func (r *PlayerRequest) Validate() error {
	p := Player{Name: r.Name, TeamID: r.TeamID, JerseyNumber: r.JerseyNumber}
	if err := p.Validate(); err != nil {
		return err
	}
	r.Name = p.Name
	return nil
}

// Team materialises an approved team request.
func (r TeamRequest) Team() Team {
	return Team{
		Name:         r.Name,
		ModalityID:   r.ModalityID,
		Category:     r.Category,
		CoachName:    r.CoachName,
		CoachContact: r.CoachContact,
	}
}

// Player materialises an approved player request.
func (r PlayerRequest) Player() Player {
	return Player{Name: r.Name, JerseyNumber: r.JerseyNumber, TeamID: r.TeamID}
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

func validStatus(s string) bool {
	switch s {
	case StatusScheduled, StatusLive, StatusFinished, StatusCancelled:
		return true
	}
	return false
}

var transitions = map[string][]string{
	StatusScheduled: {StatusLive, StatusCancelled},
	StatusLive:      {StatusFinished, StatusCancelled},
}

// CanTransition reports whether a game may move from one status to another.
func CanTransition(from, to string) bool {
	for _, s := range transitions[from] {
		if s == to {
			return true
		}
	}
	return false
}

// Transition returns ErrInvalidTransition wrapped with both states when the
// move is not allowed.
func Transition(from, to string) error {
	if !CanTransition(from, to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
	}
	return nil
}

// AcceptsEvents reports whether highlights may be appended to a game in
// status s. Finished games stay editable so results can be corrected.
func AcceptsEvents(s string) bool {
	return s == StatusLive || s == StatusFinished
}

// ReviewTransition guards approve/reject of registration requests.
func ReviewTransition(status string) error {
	if status != RequestPending {
		return fmt.Errorf("%w: request already %s", ErrInvalidTransition, status)
	}
	return nil
}
