// Package standings ranks the teams of a modality from its finished games.
package standings

import (
	"sort"
	"strings"

	"github.com/albapepper/schoolcup/internal/config"
	"github.com/albapepper/schoolcup/internal/tournament"
)

// League points of a goal-scored game.
const (
	PointsWin  = 3
	PointsDraw = 1
	PointsLoss = 0
)

// Row is one line of the table. For set sports ScoreFor/ScoreAgainst count
// sets and RalliesFor/RalliesAgainst count points inside them.
type Row struct {
	Rank           int    `json:"rank"`
	TeamID         int64  `json:"team_id"`
	TeamName       string `json:"team_name"`
	Played         int    `json:"played"`
	Wins           int    `json:"wins"`
	Draws          int    `json:"draws"`
	Losses         int    `json:"losses"`
	ScoreFor       int    `json:"score_for"`
	ScoreAgainst   int    `json:"score_against"`
	RalliesFor     int    `json:"rallies_for,omitempty"`
	RalliesAgainst int    `json:"rallies_against,omitempty"`
	Points         int    `json:"points"`
}

// Diff is ScoreFor minus ScoreAgainst.
func (r Row) Diff() int { return r.ScoreFor - r.ScoreAgainst }

// Compute builds the table. Every team of the modality gets a row even
// without games. rallies maps a game id to the summed set points per side
// and is only used by set sports.
func Compute(sport string, teams []tournament.Team, games []tournament.Game, rallies map[int64][2]int) []Row {
	rows := make(map[int64]*Row, len(teams))
	for _, t := range teams {
		rows[t.ID] = &Row{TeamID: t.ID, TeamName: t.Name}
	}
	setBased := config.SportRegistry[sport].SetBased

	for _, g := range games {
		if g.Status != tournament.StatusFinished {
			continue
		}
		home, away := rows[g.HomeTeamID], rows[g.AwayTeamID]
		if home == nil || away == nil {
			continue
		}
		record(home, g.HomeScore, g.AwayScore)
		record(away, g.AwayScore, g.HomeScore)
		if r, ok := rallies[g.ID]; ok && setBased {
			home.RalliesFor += r[0]
			home.RalliesAgainst += r[1]
			away.RalliesFor += r[1]
			away.RalliesAgainst += r[0]
		}
	}

	out := make([]Row, 0, len(rows))
	for _, r := range rows {
		out = append(out, *r)
	}
	less := goalLess
	if setBased {
		less = setLess
	}
	sort.Slice(out, func(i, j int) bool { return less(out[i], out[j]) })
	for i := range out {
		out[i].Rank = i + 1
	}
	return out
}

func record(r *Row, scored, conceded int) {
	r.Played++
	r.ScoreFor += scored
	r.ScoreAgainst += conceded
	switch {
	case scored > conceded:
		r.Wins++
		r.Points += PointsWin
	case scored == conceded:
		r.Draws++
		r.Points += PointsDraw
	default:
		r.Losses++
		r.Points += PointsLoss
	}
}

// goalLess orders by points, goal difference, goals scored, then name.
func goalLess(a, b Row) bool {
	if a.Points != b.Points {
		return a.Points > b.Points
	}
	if a.Diff() != b.Diff() {
		return a.Diff() > b.Diff()
	}
	if a.ScoreFor != b.ScoreFor {
		return a.ScoreFor > b.ScoreFor
	}
	return byName(a, b)
}

// setLess orders by wins, set ratio, point ratio, then name.
func setLess(a, b Row) bool {
	if a.Wins != b.Wins {
		return a.Wins > b.Wins
	}
	if c := cmpRatio(a.ScoreFor, a.ScoreAgainst, b.ScoreFor, b.ScoreAgainst); c != 0 {
		return c > 0
	}
	if c := cmpRatio(a.RalliesFor, a.RalliesAgainst, b.RalliesFor, b.RalliesAgainst); c != 0 {
		return c > 0
	}
	return byName(a, b)
}

func byName(a, b Row) bool {
	an, bn := strings.ToLower(a.TeamName), strings.ToLower(b.TeamName)
	if an != bn {
		return an < bn
	}
	return a.TeamID < b.TeamID
}

// cmpRatio compares aFor/aAgainst with bFor/bAgainst without floats. A
// ratio with nothing against and something for beats any finite ratio.
func cmpRatio(aFor, aAgainst, bFor, bAgainst int) int {
	aInf := aAgainst == 0 && aFor > 0
	bInf := bAgainst == 0 && bFor > 0
	switch {
	case aInf && bInf:
		return sign(aFor - bFor)
	case aInf:
		return 1
	case bInf:
		return -1
	case aAgainst == 0 || bAgainst == 0:
		// 0/0 ranks as zero.
		return sign(aFor*max(bAgainst, 1) - bFor*max(aAgainst, 1))
	}
	return sign(aFor*bAgainst - bFor*aAgainst)
}

func sign(n int) int {
	switch {
	case n > 0:
		return 1
	case n < 0:
		return -1
	}
	return 0
}
