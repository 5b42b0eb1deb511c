package handler

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/albapepper/schoolcup/internal/api/respond"
	"github.com/albapepper/schoolcup/internal/cache"
	"github.com/albapepper/schoolcup/internal/config"
	"github.com/albapepper/schoolcup/internal/scoring"
	"github.com/albapepper/schoolcup/internal/standings"
	"github.com/albapepper/schoolcup/internal/store"
	"github.com/albapepper/schoolcup/internal/tournament"
)

// maxCalendarDays bounds one calendar request.
const maxCalendarDays = 92

// GameDetail is a game with its live state and highlights.
type GameDetail struct {
	tournament.Game
	Match  *scoring.Match         `json:"match,omitempty"`
	Events []tournament.GameEvent `json:"events"`
}

// TeamDetail is a team with its roster.
type TeamDetail struct {
	tournament.Team
	Players []tournament.Player `json:"players"`
}

// StandingsTable is the ranking of one modality.
type StandingsTable struct {
	Modality tournament.Modality `json:"modality"`
	Rows     []standings.Row     `json:"rows"`
}

// RegistrationStatus is the public view of the signup window.
type RegistrationStatus struct {
	tournament.RegistrationConfig
	Accepting bool `json:"accepting"`
}

// canonicalQuery keeps only the named parameters in a stable order so
// equivalent URLs share a cache key.
func canonicalQuery(r *http.Request, names ...string) string {
	in := r.URL.Query()
	out := url.Values{}
	for _, n := range names {
		if v := in.Get(n); v != "" {
			out.Set(n, v)
		}
	}
	return out.Encode()
}

// parseDay reads a YYYY-MM-DD query parameter as midnight in loc.
func parseDay(r *http.Request, name string, loc *time.Location) (time.Time, bool, error) {
	raw := r.URL.Query().Get(name)
	if raw == "" {
		return time.Time{}, false, nil
	}
	t, err := time.ParseInLocation(time.DateOnly, raw, loc)
	if err != nil {
		return time.Time{}, false, &tournament.ValidationError{Field: name, Message: fmt.Sprintf("expected YYYY-MM-DD, got %q", raw)}
	}
	return t, true, nil
}

// --------------------------------------------------------------------------
// Games
// --------------------------------------------------------------------------

// ListGames returns games ordered by schedule.
// @Summary List games
// @Description Games filtered by status, modality, team and date range. Live lists are cached for seconds, the rest for minutes.
// @Tags games
// @Produce json
// @Param status query string false "scheduled, live, finished or cancelled"
// @Param modality_id query int false "Modality ID"
// @Param team_id query int false "Team ID (home or away)"
// @Param from query string false "First day, YYYY-MM-DD"
// @Param to query string false "Last day, YYYY-MM-DD"
// @Success 200 {array} tournament.Game
// @Failure 400 {object} respond.ErrorResponse
// @Router /games [get]
func (h *Handler) ListGames(w http.ResponseWriter, r *http.Request) {
	f := store.GameFilter{Status: r.URL.Query().Get("status")}
	var err error
	if f.ModalityID, err = queryID(r, "modality_id"); err != nil {
		h.fail(w, r, err)
		return
	}
	if f.TeamID, err = queryID(r, "team_id"); err != nil {
		h.fail(w, r, err)
		return
	}
	from, ok, err := parseDay(r, "from", h.loc)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if ok {
		f.From = from
	}
	to, ok, err := parseDay(r, "to", h.loc)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if ok {
		f.To = to.AddDate(0, 0, 1)
	}

	ttl := cache.TTLSchedule
	if f.Status == tournament.StatusLive {
		ttl = cache.TTLLive
	}
	key := cache.PrefixGames + "list?" + canonicalQuery(r, "status", "modality_id", "team_id", "from", "to")
	h.cached(w, r, key, ttl, func(ctx context.Context) (any, error) {
		return h.Store.ListGames(ctx, f)
	})
}

// GetGame returns one game with its sets and highlights.
// @Summary Game detail
// @Description A game with its scoring state (set sports) and event log.
// @Tags games
// @Produce json
// @Param id path int true "Game ID"
// @Success 200 {object} GameDetail
// @Failure 404 {object} respond.ErrorResponse
// @Router /games/{id} [get]
func (h *Handler) GetGame(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.cached(w, r, cache.PrefixGames+strconv.FormatInt(id, 10), cache.TTLLive, func(ctx context.Context) (any, error) {
		return h.gameDetail(ctx, id)
	})
}

func (h *Handler) gameDetail(ctx context.Context, id int64) (GameDetail, error) {
	lg, err := h.Store.GetLive(ctx, id)
	if err != nil {
		return GameDetail{}, err
	}
	events, err := h.Store.ListEvents(ctx, id)
	if err != nil {
		return GameDetail{}, err
	}
	d := GameDetail{Game: lg.Game, Events: events}
	if config.SportRegistry[lg.Game.Sport].SetBased {
		d.Match = &lg.Match
	}
	return d, nil
}

// Calendar returns games grouped by local day.
// @Summary Calendar
// @Description Games between two days grouped by day in the tournament time zone. Defaults to the next 30 days.
// @Tags games
// @Produce json
// @Param from query string false "First day, YYYY-MM-DD"
// @Param to query string false "Last day, YYYY-MM-DD"
// @Success 200 {array} store.CalendarDay
// @Failure 400 {object} respond.ErrorResponse
// @Router /calendar [get]
func (h *Handler) Calendar(w http.ResponseWriter, r *http.Request) {
	now := time.Now().In(h.loc)
	from, ok, err := parseDay(r, "from", h.loc)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !ok {
		from = time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, h.loc)
	}
	to, ok, err := parseDay(r, "to", h.loc)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if !ok {
		to = from.AddDate(0, 0, 30)
	}
	if to.Before(from) {
		h.fail(w, r, &tournament.ValidationError{Field: "to", Message: "must not be before from"})
		return
	}
	if to.Sub(from) > maxCalendarDays*24*time.Hour {
		h.fail(w, r, &tournament.ValidationError{Field: "to", Message: fmt.Sprintf("range is limited to %d days", maxCalendarDays)})
		return
	}

	key := cache.PrefixCalendar + from.Format(time.DateOnly) + ":" + to.Format(time.DateOnly)
	h.cached(w, r, key, cache.TTLSchedule, func(ctx context.Context) (any, error) {
		return h.Store.Calendar(ctx, from, to.AddDate(0, 0, 1), h.loc)
	})
}

// --------------------------------------------------------------------------
// Teams and modalities
// --------------------------------------------------------------------------

// ListTeams returns teams ordered by name.
// @Summary List teams
// @Tags teams
// @Produce json
// @Param modality_id query int false "Modality ID"
// @Param category query string false "masculino, feminino or misto"
// @Param q query string false "Name search"
// @Success 200 {array} tournament.Team
// @Router /teams [get]
func (h *Handler) ListTeams(w http.ResponseWriter, r *http.Request) {
	mid, err := queryID(r, "modality_id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	f := store.TeamFilter{ModalityID: mid, Category: r.URL.Query().Get("category"), Search: r.URL.Query().Get("q")}
	key := cache.PrefixTeams + "list?" + canonicalQuery(r, "modality_id", "category", "q")
	h.cached(w, r, key, cache.TTLReference, func(ctx context.Context) (any, error) {
		return h.Store.ListTeams(ctx, f)
	})
}

// GetTeam returns a team with its roster.
// @Summary Team detail
// @Tags teams
// @Produce json
// @Param id path int true "Team ID"
// @Success 200 {object} TeamDetail
// @Failure 404 {object} respond.ErrorResponse
// @Router /teams/{id} [get]
func (h *Handler) GetTeam(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.cached(w, r, cache.PrefixTeams+strconv.FormatInt(id, 10), cache.TTLReference, func(ctx context.Context) (any, error) {
		t, err := h.Store.GetTeam(ctx, id)
		if err != nil {
			return nil, err
		}
		players, err := h.Store.ListPlayers(ctx, id)
		if err != nil {
			return nil, err
		}
		return TeamDetail{Team: t, Players: players}, nil
	})
}

// ListModalities returns the active modalities.
// @Summary List modalities
// @Tags modalities
// @Produce json
// @Success 200 {array} tournament.Modality
// @Router /modalities [get]
func (h *Handler) ListModalities(w http.ResponseWriter, r *http.Request) {
	h.cached(w, r, cache.PrefixModalities+"active", cache.TTLReference, func(ctx context.Context) (any, error) {
		return h.Store.ListModalities(ctx, true)
	})
}

// Standings ranks the teams of a modality.
// @Summary Modality standings
// @Description Futsal ranks by points (3/1/0), goal difference and goals scored. Set sports rank by wins, set ratio and point ratio.
// @Tags modalities
// @Produce json
// @Param id path int true "Modality ID"
// @Success 200 {object} StandingsTable
// @Failure 404 {object} respond.ErrorResponse
// @Router /modalities/{id}/standings [get]
func (h *Handler) Standings(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.cached(w, r, cache.PrefixStandings+strconv.FormatInt(id, 10), cache.TTLSchedule, func(ctx context.Context) (any, error) {
		m, err := h.Store.GetModality(ctx, id)
		if err != nil {
			return nil, err
		}
		teams, err := h.Store.ListTeams(ctx, store.TeamFilter{ModalityID: id})
		if err != nil {
			return nil, err
		}
		games, err := h.Store.FinishedGames(ctx, id)
		if err != nil {
			return nil, err
		}
		var rallies map[int64][2]int
		if config.SportRegistry[m.Sport].SetBased {
			if rallies, err = h.Store.SetPoints(ctx, id); err != nil {
				return nil, err
			}
		}
		return StandingsTable{Modality: m, Rows: standings.Compute(m.Sport, teams, games, rallies)}, nil
	})
}

// --------------------------------------------------------------------------
// Players
// --------------------------------------------------------------------------

// TopPlayers ranks players by one stat counter.
// @Summary Top players
// @Tags players
// @Produce json
// @Param stat query string false "goals, yellow_cards, red_cards, points, aces or blocks" default(goals)
// @Param modality_id query int false "Modality ID"
// @Param limit query int false "Rows, 1 to 100" default(10)
// @Success 200 {array} store.TopPlayer
// @Failure 400 {object} respond.ErrorResponse
// @Router /players/top [get]
func (h *Handler) TopPlayers(w http.ResponseWriter, r *http.Request) {
	stat := r.URL.Query().Get("stat")
	if stat == "" {
		stat = "goals"
	}
	if !store.IsRankableStat(stat) {
		h.fail(w, r, &tournament.ValidationError{Field: "stat", Message: fmt.Sprintf("cannot rank by %q", stat)})
		return
	}
	mid, err := queryID(r, "modality_id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 100 {
		limit = 10
	}
	key := fmt.Sprintf("%s%s:%d:%d", cache.PrefixTop, stat, mid, limit)
	h.cached(w, r, key, cache.TTLSchedule, func(ctx context.Context) (any, error) {
		return h.Store.TopPlayers(ctx, stat, mid, limit)
	})
}

// PlayerPhoto serves a stored player picture.
// @Summary Player photo
// @Tags players
// @Produce image/jpeg,image/png,image/webp
// @Param id path int true "Player ID"
// @Success 200 {file} binary
// @Success 304 "Not modified"
// @Failure 404 {object} respond.ErrorResponse
// @Router /players/{id}/photo [get]
func (h *Handler) PlayerPhoto(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	p, err := h.Store.GetPhoto(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if cache.CheckETagMatch(r.Header.Get("If-None-Match"), p.ETag) {
		respond.WriteNotModified(w, p.ETag)
		return
	}
	w.Header().Set("Content-Type", p.ContentType)
	w.Header().Set("Content-Length", strconv.Itoa(len(p.Data)))
	w.Header().Set("ETag", p.ETag)
	w.Header().Set("Cache-Control", "public, max-age=3600")
	w.WriteHeader(http.StatusOK)
	w.Write(p.Data)
}

// --------------------------------------------------------------------------
// Registration
// --------------------------------------------------------------------------

// GetRegistration returns the signup window.
// @Summary Registration window
// @Tags registration
// @Produce json
// @Success 200 {object} RegistrationStatus
// @Router /registration [get]
func (h *Handler) GetRegistration(w http.ResponseWriter, r *http.Request) {
	h.cached(w, r, cache.PrefixRegistration, cache.TTLLive, func(ctx context.Context) (any, error) {
		c, err := h.Store.GetRegistration(ctx)
		if err != nil {
			return nil, err
		}
		return RegistrationStatus{RegistrationConfig: c, Accepting: c.AcceptsAt(time.Now())}, nil
	})
}

type teamSignup struct {
	Name         string `json:"name"`
	ModalityID   int64  `json:"modality_id"`
	Category     string `json:"category"`
	CoachName    string `json:"coach_name"`
	CoachContact string `json:"coach_contact"`
}

type playerSignup struct {
	Name         string `json:"name"`
	JerseyNumber int    `json:"jersey_number"`
	TeamID       int64  `json:"team_id"`
}

// SubmitTeam stores a pending team signup.
// @Summary Sign up a team
// @Tags registration
// @Accept json
// @Produce json
// @Param body body teamSignup true "Team signup"
// @Success 201 {object} tournament.TeamRequest
// @Failure 400 {object} respond.ErrorResponse
// @Failure 409 {object} respond.ErrorResponse "Window closed or modality full"
// @Router /registration/teams [post]
func (h *Handler) SubmitTeam(w http.ResponseWriter, r *http.Request) {
	var in teamSignup
	if err := decode(w, r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	req := tournament.TeamRequest{
		Name: in.Name, ModalityID: in.ModalityID, Category: in.Category,
		CoachName: in.CoachName, CoachContact: in.CoachContact,
	}
	if err := h.Store.SubmitTeamRequest(r.Context(), &req, time.Now()); err != nil {
		h.fail(w, r, err)
		return
	}
	h.Logger.Info("Team signup received", "request_id", req.ID, "modality_id", req.ModalityID)
	respond.WriteJSONObject(w, http.StatusCreated, req)
}

// SubmitPlayer stores a pending player signup.
// @Summary Sign up a player
// @Tags registration
// @Accept json
// @Produce json
// @Param body body playerSignup true "Player signup"
// @Success 201 {object} tournament.PlayerRequest
// @Failure 400 {object} respond.ErrorResponse
// @Failure 409 {object} respond.ErrorResponse "Window closed"
// @Router /registration/players [post]
func (h *Handler) SubmitPlayer(w http.ResponseWriter, r *http.Request) {
	var in playerSignup
	if err := decode(w, r, &in); err != nil {
		h.fail(w, r, err)
		return
	}
	req := tournament.PlayerRequest{Name: in.Name, JerseyNumber: in.JerseyNumber, TeamID: in.TeamID}
	if err := h.Store.SubmitPlayerRequest(r.Context(), &req, time.Now()); err != nil {
		h.fail(w, r, err)
		return
	}
	h.Logger.Info("Player signup received", "request_id", req.ID, "team_id", req.TeamID)
	respond.WriteJSONObject(w, http.StatusCreated, req)
}
