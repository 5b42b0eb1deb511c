// Package tournament holds the row types of the tournament tables and the
// validation rules admin forms and registration requests go through before
// anything is written.
package tournament

import (
	"time"
)

// --------------------------------------------------------------------------
// Enumerations
// --------------------------------------------------------------------------

// Category of a team.
const (
	CategoryMale   = "masculino"
	CategoryFemale = "feminino"
	CategoryMixed  = "misto"
)

// Modality kinds.
const (
	KindTeam       = "team"
	KindIndividual = "individual"
)

// Game lifecycle states.
const (
	StatusScheduled = "scheduled"
	StatusLive      = "live"
	StatusFinished  = "finished"
	StatusCancelled = "cancelled"
)

// Request review states.
const (
	RequestPending  = "pending"
	RequestApproved = "approved"
	RequestRejected = "rejected"
)

// Game event kinds recorded in the highlights log.
const (
	EventGoal         = "goal"
	EventOwnGoal      = "own_goal"
	EventYellowCard   = "yellow_card"
	EventRedCard      = "red_card"
	EventPoint        = "point"
	EventAce          = "ace"
	EventBlock        = "block"
	EventTimeout      = "timeout"
	EventSetWon       = "set_won"
	EventSubstitution = "substitution"
	EventNote         = "note"
)

var eventKinds = map[string]bool{
	EventGoal: true, EventOwnGoal: true, EventYellowCard: true, EventRedCard: true,
	EventPoint: true, EventAce: true, EventBlock: true, EventTimeout: true,
	EventSetWon: true, EventSubstitution: true, EventNote: true,
}

// --------------------------------------------------------------------------
// Rows
// --------------------------------------------------------------------------

type Modality struct {
	ID         int64  `json:"id"`
	Name       string `json:"name"`
	Kind       string `json:"kind"`
	Sport      string `json:"sport"`
	MinPlayers int    `json:"min_players"`
	MaxPlayers int    `json:"max_players"`
	Active     bool   `json:"active"`
}

type Team struct {
	ID           int64     `json:"id"`
	Name         string    `json:"name"`
	ModalityID   int64     `json:"modality_id"`
	Category     string    `json:"category"`
	CoachName    string    `json:"coach_name,omitempty"`
	CoachContact string    `json:"coach_contact,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// PlayerStats are the per-sport counters kept on a player row.
type PlayerStats struct {
	Goals       int `json:"goals"`
	YellowCards int `json:"yellow_cards"`
	RedCards    int `json:"red_cards"`
	Points      int `json:"points"`
	Aces        int `json:"aces"`
	Blocks      int `json:"blocks"`
}

type Player struct {
	ID           int64  `json:"id"`
	Name         string `json:"name"`
	JerseyNumber int    `json:"jersey_number"`
	TeamID       int64  `json:"team_id"`
	PlayerStats
	IsStarter bool      `json:"is_starter"`
	IsCaptain bool      `json:"is_captain"`
	PhotoURL  string    `json:"photo_url,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

type Game struct {
	ID          int64      `json:"id"`
	ModalityID  int64      `json:"modality_id"`
	HomeTeamID  int64      `json:"home_team_id"`
	AwayTeamID  int64      `json:"away_team_id"`
	HomeTeam    string     `json:"home_team,omitempty"`
	AwayTeam    string     `json:"away_team,omitempty"`
	Sport       string     `json:"sport,omitempty"`
	ScheduledAt time.Time  `json:"scheduled_at"`
	Location    string     `json:"location"`
	Status      string     `json:"status"`
	HomeScore   int        `json:"home_score"`
	AwayScore   int        `json:"away_score"`
	Highlights  string     `json:"highlights"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
}

type GameEvent struct {
	ID          int64     `json:"id"`
	GameID      int64     `json:"game_id"`
	Kind        string    `json:"kind"`
	TeamID      *int64    `json:"team_id,omitempty"`
	PlayerID    *int64    `json:"player_id,omitempty"`
	Period      int       `json:"period"`
	Minute      *int      `json:"minute,omitempty"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

type TeamRequest struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	ModalityID   int64      `json:"modality_id"`
	Category     string     `json:"category"`
	CoachName    string     `json:"coach_name"`
	CoachContact string     `json:"coach_contact"`
	Status       string     `json:"status"`
	Reason       string     `json:"reason,omitempty"`
	ReviewedBy   *int64     `json:"reviewed_by,omitempty"`
	ReviewedAt   *time.Time `json:"reviewed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

type PlayerRequest struct {
	ID           int64      `json:"id"`
	Name         string     `json:"name"`
	JerseyNumber int        `json:"jersey_number"`
	TeamID       int64      `json:"team_id"`
	Status       string     `json:"status"`
	Reason       string     `json:"reason,omitempty"`
	ReviewedBy   *int64     `json:"reviewed_by,omitempty"`
	ReviewedAt   *time.Time `json:"reviewed_at,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
}

// RegistrationConfig is the single inscricoes_config row.
type RegistrationConfig struct {
	Open                bool       `json:"open"`
	OpensAt             *time.Time `json:"opens_at,omitempty"`
	ClosesAt            *time.Time `json:"closes_at,omitempty"`
	MaxTeamsPerModality int        `json:"max_teams_per_modality"`
}

// AcceptsAt reports whether public signups are accepted at t.
func (c RegistrationConfig) AcceptsAt(t time.Time) bool {
	if !c.Open {
		return false
	}
	if c.OpensAt != nil && t.Before(*c.OpensAt) {
		return false
	}
	if c.ClosesAt != nil && !t.Before(*c.ClosesAt) {
		return false
	}
	return true
}
