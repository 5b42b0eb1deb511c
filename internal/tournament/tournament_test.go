package tournament

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ptr[T any](v T) *T { return &v }

func TestTeamValidate(t *testing.T) {
	cases := []struct {
		name    string
		team    Team
		wantErr string
	}{
		{"missing name is rejected", Team{Name: "   ", ModalityID: 1, Category: CategoryMixed}, "name"},
		{"missing modality", Team{Name: "3A", Category: CategoryMixed}, "modality_id"},
		{"bad category", Team{Name: "3A", ModalityID: 1, Category: "kids"}, "category"},
		{"ok", Team{Name: " 3A ", ModalityID: 1, Category: CategoryFemale}, ""},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := tc.team.Validate()
			if tc.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, "3A", tc.team.Name)
				return
			}
			var ve *ValidationError
			require.ErrorAs(t, err, &ve)
			assert.Equal(t, tc.wantErr, ve.Field)
		})
	}
}

func TestModalityValidate(t *testing.T) {
	m := Modality{Name: "Vôlei", Kind: KindTeam, Sport: "volleyball", MinPlayers: 6, MaxPlayers: 12}
	require.NoError(t, m.Validate())

	m.MaxPlayers = 4
	assert.True(t, IsValidation(m.Validate()))

	m = Modality{Name: "Chess", Kind: KindIndividual, Sport: "chess", MinPlayers: 1, MaxPlayers: 1}
	assert.ErrorContains(t, m.Validate(), "unknown sport")
}

func TestPlayerValidate(t *testing.T) {
	p := Player{Name: "Ana", TeamID: 3, JerseyNumber: 10}
	require.NoError(t, p.Validate())

	p.JerseyNumber = 100
	assert.True(t, IsValidation(p.Validate()))

	p = Player{Name: "Ana", TeamID: 3, PlayerStats: PlayerStats{Goals: -1}}
	assert.ErrorContains(t, p.Validate(), "goals")
}

func TestGameValidate(t *testing.T) {
	when := time.Date(2026, 5, 10, 14, 0, 0, 0, time.UTC)

	g := Game{ModalityID: 1, HomeTeamID: 2, AwayTeamID: 2, ScheduledAt: when}
	assert.ErrorContains(t, g.Validate(), "two distinct teams")

	g = Game{ModalityID: 1, HomeTeamID: 2, AwayTeamID: 3, ScheduledAt: when, HomeScore: -1}
	assert.ErrorContains(t, g.Validate(), "negative")

	g = Game{ModalityID: 1, HomeTeamID: 2, AwayTeamID: 3, ScheduledAt: when}
	require.NoError(t, g.Validate())
	assert.Equal(t, StatusScheduled, g.Status)
}

func TestGameEventValidate(t *testing.T) {
	e := GameEvent{Kind: EventGoal}
	assert.ErrorContains(t, e.Validate(), "team_id")

	e = GameEvent{Kind: EventNote}
	assert.ErrorContains(t, e.Validate(), "description")

	e = GameEvent{Kind: "dunk", TeamID: ptr(int64(1))}
	assert.ErrorContains(t, e.Validate(), "unknown event kind")

	e = GameEvent{Kind: EventYellowCard, TeamID: ptr(int64(1)), Minute: ptr(12)}
	assert.NoError(t, e.Validate())
}

func TestTransitions(t *testing.T) {
	assert.NoError(t, Transition(StatusScheduled, StatusLive))
	assert.NoError(t, Transition(StatusLive, StatusFinished))
	assert.NoError(t, Transition(StatusScheduled, StatusCancelled))
	assert.NoError(t, Transition(StatusLive, StatusCancelled))

	for _, bad := range [][2]string{
		{StatusScheduled, StatusFinished},
		{StatusFinished, StatusLive},
		{StatusCancelled, StatusScheduled},
		{StatusLive, StatusLive},
	} {
		err := Transition(bad[0], bad[1])
		assert.True(t, errors.Is(err, ErrInvalidTransition), "%s -> %s", bad[0], bad[1])
	}
}

func TestReviewTransition(t *testing.T) {
	assert.NoError(t, ReviewTransition(RequestPending))
	assert.ErrorIs(t, ReviewTransition(RequestApproved), ErrInvalidTransition)
}

func TestRequestsMaterialise(t *testing.T) {
	tr := TeamRequest{Name: " 2B ", ModalityID: 4, Category: CategoryMale, CoachName: "Rui", CoachContact: "rui@escola.pt"}
	require.NoError(t, tr.Validate())
	team := tr.Team()
	assert.Equal(t, "2B", team.Name)
	assert.Equal(t, int64(4), team.ModalityID)

	tr.CoachContact = ""
	assert.ErrorContains(t, tr.Validate(), "coach_contact")

	pr := PlayerRequest{Name: "Bia", TeamID: 9, JerseyNumber: 7}
	require.NoError(t, pr.Validate())
	assert.Equal(t, Player{Name: "Bia", TeamID: 9, JerseyNumber: 7}, pr.Player())
}

func TestRegistrationAcceptsAt(t *testing.T) {
	now := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	before, after := now.Add(-time.Hour), now.Add(time.Hour)

	assert.False(t, RegistrationConfig{}.AcceptsAt(now))
	assert.True(t, RegistrationConfig{Open: true}.AcceptsAt(now))
	assert.False(t, RegistrationConfig{Open: true, OpensAt: &after}.AcceptsAt(now))
	assert.False(t, RegistrationConfig{Open: true, ClosesAt: &before}.AcceptsAt(now))
	assert.False(t, RegistrationConfig{Open: true, ClosesAt: &now}.AcceptsAt(now))
	assert.True(t, RegistrationConfig{Open: true, OpensAt: &before, ClosesAt: &after}.AcceptsAt(now))
}

func TestEffectOf(t *testing.T) {
	g := Game{HomeTeamID: 1, AwayTeamID: 2}

	goal := GameEvent{Kind: EventGoal, TeamID: ptr(int64(2)), PlayerID: ptr(int64(30))}
	eff := EffectOf(g, goal, true)
	assert.Equal(t, 0, eff.HomeGoals)
	assert.Equal(t, 1, eff.AwayGoals)
	assert.Equal(t, 1, eff.Stats.Goals)

	own := GameEvent{Kind: EventOwnGoal, TeamID: ptr(int64(2)), PlayerID: ptr(int64(30))}
	eff = EffectOf(g, own, true)
	assert.Equal(t, 1, eff.HomeGoals)
	assert.Zero(t, eff.Stats.Goals)

	// Set sports never move the score from events.
	eff = EffectOf(g, goal, false)
	assert.Zero(t, eff.AwayGoals)

	ace := GameEvent{Kind: EventAce, TeamID: ptr(int64(1)), PlayerID: ptr(int64(5))}
	eff = EffectOf(g, ace, false)
	assert.Equal(t, PlayerStats{Points: 1, Aces: 1}, eff.Stats)
	assert.Equal(t, PlayerStats{Points: -1, Aces: -1}, eff.Negate().Stats)

	noPlayer := GameEvent{Kind: EventYellowCard, TeamID: ptr(int64(1))}
	assert.True(t, EffectOf(g, noPlayer, true).Empty())
}
