package tournament

// Effect is what appending (or removing) a highlight does to the rows it
// touches: the running score of the game and the counters of the player.
type Effect struct {
	HomeGoals int
	AwayGoals int
	Stats     PlayerStats
}

// Empty reports whether the effect changes nothing.
func (e Effect) Empty() bool {
	return e.HomeGoals == 0 && e.AwayGoals == 0 && e.Stats == (PlayerStats{})
}

// Negate returns the effect of removing the event again.
func (e Effect) Negate() Effect {
	s := e.Stats
	return Effect{
		HomeGoals: -e.HomeGoals,
		AwayGoals: -e.AwayGoals,
		Stats: PlayerStats{
			Goals: -s.Goals, YellowCards: -s.YellowCards, RedCards: -s.RedCards,
			Points: -s.Points, Aces: -s.Aces, Blocks: -s.Blocks,
		},
	}
}

// EffectOf computes the effect of an event on game g. Score changes only
// apply to goal-scored sports; set sports derive their score from sets.
func EffectOf(g Game, e GameEvent, goalScored bool) Effect {
	var eff Effect
	side := 0
	if e.TeamID != nil {
		switch *e.TeamID {
		case g.HomeTeamID:
			side = 1
		case g.AwayTeamID:
			side = 2
		}
	}

	switch e.Kind {
	case EventGoal:
		if goalScored {
			eff.addGoal(side)
		}
		eff.Stats.Goals = 1
	case EventOwnGoal:
		// Credited to the opponent, never to the player.
		if goalScored {
			eff.addGoal(3 - side)
		}
	case EventYellowCard:
		eff.Stats.YellowCards = 1
	case EventRedCard:
		eff.Stats.RedCards = 1
	case EventPoint:
		eff.Stats.Points = 1
	case EventAce:
		eff.Stats.Points = 1
		eff.Stats.Aces = 1
	case EventBlock:
		eff.Stats.Points = 1
		eff.Stats.Blocks = 1
	}

	if e.PlayerID == nil {
		eff.Stats = PlayerStats{}
	}
	return eff
}

func (e *Effect) addGoal(side int) {
	switch side {
	case 1:
		e.HomeGoals++
	case 2:
		e.AwayGoals++
	}
}
