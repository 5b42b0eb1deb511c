package handler

import (
	"net/http"

	"github.com/albapepper/schoolcup/internal/api/respond"
	"github.com/albapepper/schoolcup/internal/store"
	"github.com/albapepper/schoolcup/internal/tournament"
)

// Admin CRUD reads skip the public cache so editors always see their own
// writes. Successful writes are picked up by the change feed, which
// invalidates the cached public reads.

// --------------------------------------------------------------------------
// Modalities
// --------------------------------------------------------------------------

// AdminListModalities returns every modality, active or not.
// @Summary List all modalities
// @Tags admin
// @Produce json
// @Success 200 {array} tournament.Modality
// @Router /admin/modalities [get]
func (h *Handler) AdminListModalities(w http.ResponseWriter, r *http.Request) {
	out, err := h.Store.ListModalities(r.Context(), false)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, out)
}

// CreateModality adds a modality.
// @Summary Create modality
// @Tags admin
// @Accept json
// @Produce json
// @Param body body tournament.Modality true "Modality"
// @Success 201 {object} tournament.Modality
// @Failure 400 {object} respond.ErrorResponse
// @Failure 409 {object} respond.ErrorResponse
// @Router /admin/modalities [post]
func (h *Handler) CreateModality(w http.ResponseWriter, r *http.Request) {
	var m tournament.Modality
	if err := decode(w, r, &m); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.Store.CreateModality(r.Context(), &m); err != nil {
		h.fail(w, r, err)
		return
	}
	h.audit(r, "modality.create", "id=%d name=%q", m.ID, m.Name)
	respond.WriteJSONObject(w, http.StatusCreated, m)
}

// UpdateModality overwrites a modality.
// @Summary Update modality
// @Tags admin
// @Accept json
// @Produce json
// @Param id path int true "Modality ID"
// @Param body body tournament.Modality true "Modality"
// @Success 200 {object} tournament.Modality
// @Failure 400 {object} respond.ErrorResponse
// @Failure 404 {object} respond.ErrorResponse
// @Router /admin/modalities/{id} [put]
func (h *Handler) UpdateModality(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var m tournament.Modality
	if err := decode(w, r, &m); err != nil {
		h.fail(w, r, err)
		return
	}
	m.ID = id
	if err := h.Store.UpdateModality(r.Context(), &m); err != nil {
		h.fail(w, r, err)
		return
	}
	h.audit(r, "modality.update", "id=%d", id)
	respond.WriteJSONObject(w, http.StatusOK, m)
}

// DeleteModality removes a modality without teams or games.
// @Summary Delete modality
// @Tags admin
// @Param id path int true "Modality ID"
// @Success 204
// @Failure 404 {object} respond.ErrorResponse
// @Failure 409 {object} respond.ErrorResponse "Still referenced"
// @Router /admin/modalities/{id} [delete]
func (h *Handler) DeleteModality(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.Store.DeleteModality(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	h.audit(r, "modality.delete", "id=%d", id)
	respond.WriteNoContent(w)
}

// --------------------------------------------------------------------------
// Teams
// --------------------------------------------------------------------------

// AdminListTeams returns teams, uncached.
// @Summary List teams (admin)
// @Tags admin
// @Produce json
// @Param modality_id query int false "Modality ID"
// @Param category query string false "Category"
// @Param q query string false "Name search"
// @Success 200 {array} tournament.Team
// @Router /admin/teams [get]
func (h *Handler) AdminListTeams(w http.ResponseWriter, r *http.Request) {
	mid, err := queryID(r, "modality_id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	out, err := h.Store.ListTeams(r.Context(), store.TeamFilter{
		ModalityID: mid, Category: r.URL.Query().Get("category"), Search: r.URL.Query().Get("q"),
	})
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, out)
}

// CreateTeam adds a team.
// @Summary Create team
// @Tags admin
// @Accept json
// @Produce json
// @Param body body tournament.Team true "Team"
// @Success 201 {object} tournament.Team
// @Failure 400 {object} respond.ErrorResponse
// @Failure 409 {object} respond.ErrorResponse
// @Router /admin/teams [post]
func (h *Handler) CreateTeam(w http.ResponseWriter, r *http.Request) {
	var t tournament.Team
	if err := decode(w, r, &t); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.Store.CreateTeam(r.Context(), &t); err != nil {
		h.fail(w, r, err)
		return
	}
	h.audit(r, "team.create", "id=%d name=%q", t.ID, t.Name)
	respond.WriteJSONObject(w, http.StatusCreated, t)
}

// UpdateTeam overwrites a team.
// @Summary Update team
// @Tags admin
// @Accept json
// @Produce json
// @Param id path int true "Team ID"
// @Param body body tournament.Team true "Team"
// @Success 200 {object} tournament.Team
// @Failure 400 {object} respond.ErrorResponse
// @Failure 404 {object} respond.ErrorResponse
// @Router /admin/teams/{id} [put]
func (h *Handler) UpdateTeam(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var t tournament.Team
	if err := decode(w, r, &t); err != nil {
		h.fail(w, r, err)
		return
	}
	t.ID = id
	if err := h.Store.UpdateTeam(r.Context(), &t); err != nil {
		h.fail(w, r, err)
		return
	}
	h.audit(r, "team.update", "id=%d", id)
	respond.WriteJSONObject(w, http.StatusOK, t)
}

// DeleteTeam removes a team and its roster.
// @Summary Delete team
// @Tags admin
// @Param id path int true "Team ID"
// @Success 204
// @Failure 404 {object} respond.ErrorResponse
// @Failure 409 {object} respond.ErrorResponse "Team has games"
// @Router /admin/teams/{id} [delete]
func (h *Handler) DeleteTeam(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.Store.DeleteTeam(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	h.audit(r, "team.delete", "id=%d", id)
	respond.WriteNoContent(w)
}

// --------------------------------------------------------------------------
// Players
// --------------------------------------------------------------------------

// AdminListPlayers returns the roster of a team.
// @Summary List players of a team
// @Tags admin
// @Produce json
// @Param team_id query int true "Team ID"
// @Success 200 {array} tournament.Player
// @Failure 400 {object} respond.ErrorResponse
// @Router /admin/players [get]
func (h *Handler) AdminListPlayers(w http.ResponseWriter, r *http.Request) {
	teamID, err := queryID(r, "team_id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if teamID == 0 {
		h.fail(w, r, &tournament.ValidationError{Field: "team_id", Message: "is required"})
		return
	}
	out, err := h.Store.ListPlayers(r.Context(), teamID)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, out)
}

// CreatePlayer adds a player to a team.
// @Summary Create player
// @Tags admin
// @Accept json
// @Produce json
// @Param body body tournament.Player true "Player"
// @Success 201 {object} tournament.Player
// @Failure 400 {object} respond.ErrorResponse "Invalid or roster full"
// @Failure 409 {object} respond.ErrorResponse "Jersey number taken"
// @Router /admin/players [post]
func (h *Handler) CreatePlayer(w http.ResponseWriter, r *http.Request) {
	var p tournament.Player
	if err := decode(w, r, &p); err != nil {
		h.fail(w, r, err)
		return
	}
	p.PhotoURL = ""
	if err := h.Store.CreatePlayer(r.Context(), &p); err != nil {
		h.fail(w, r, err)
		return
	}
	h.audit(r, "player.create", "id=%d team_id=%d", p.ID, p.TeamID)
	respond.WriteJSONObject(w, http.StatusCreated, p)
}

// UpdatePlayer overwrites a player.
// @Summary Update player
// @Tags admin
// @Accept json
// @Produce json
// @Param id path int true "Player ID"
// @Param body body tournament.Player true "Player"
// @Success 200 {object} tournament.Player
// @Failure 400 {object} respond.ErrorResponse
// @Failure 404 {object} respond.ErrorResponse
// @Router /admin/players/{id} [put]
func (h *Handler) UpdatePlayer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var p tournament.Player
	if err := decode(w, r, &p); err != nil {
		h.fail(w, r, err)
		return
	}
	p.ID = id
	if err := h.Store.UpdatePlayer(r.Context(), &p); err != nil {
		h.fail(w, r, err)
		return
	}
	h.audit(r, "player.update", "id=%d", id)
	respond.WriteJSONObject(w, http.StatusOK, p)
}

// DeletePlayer removes a player.
// @Summary Delete player
// @Tags admin
// @Param id path int true "Player ID"
// @Success 204
// @Failure 404 {object} respond.ErrorResponse
// @Router /admin/players/{id} [delete]
func (h *Handler) DeletePlayer(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.Store.DeletePlayer(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	h.audit(r, "player.delete", "id=%d", id)
	respond.WriteNoContent(w)
}

// --------------------------------------------------------------------------
// Games
// --------------------------------------------------------------------------

// CreateGame schedules a game.
// @Summary Create game
// @Tags admin
// @Accept json
// @Produce json
// @Param body body tournament.Game true "Game"
// @Success 201 {object} tournament.Game
// @Failure 400 {object} respond.ErrorResponse
// @Router /admin/games [post]
func (h *Handler) CreateGame(w http.ResponseWriter, r *http.Request) {
	var g tournament.Game
	if err := decode(w, r, &g); err != nil {
		h.fail(w, r, err)
		return
	}
	g.Status = tournament.StatusScheduled
	g.StartedAt, g.FinishedAt = nil, nil
	if err := h.Store.CreateGame(r.Context(), &g); err != nil {
		h.fail(w, r, err)
		return
	}
	h.audit(r, "game.create", "id=%d home=%d away=%d", g.ID, g.HomeTeamID, g.AwayTeamID)
	created, err := h.Store.GetGame(r.Context(), g.ID)
	if err != nil {
		respond.WriteJSONObject(w, http.StatusCreated, g)
		return
	}
	respond.WriteJSONObject(w, http.StatusCreated, created)
}

// UpdateGame edits schedule, teams, score and highlights. Status changes go
// through the lifecycle endpoints.
// @Summary Update game
// @Tags admin
// @Accept json
// @Produce json
// @Param id path int true "Game ID"
// @Param body body tournament.Game true "Game"
// @Success 200 {object} tournament.Game
// @Failure 400 {object} respond.ErrorResponse
// @Failure 404 {object} respond.ErrorResponse
// @Router /admin/games/{id} [put]
func (h *Handler) UpdateGame(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var g tournament.Game
	if err := decode(w, r, &g); err != nil {
		h.fail(w, r, err)
		return
	}
	g.ID = id
	if err := h.Store.UpdateGame(r.Context(), &g); err != nil {
		h.fail(w, r, err)
		return
	}
	h.audit(r, "game.update", "id=%d", id)
	updated, err := h.Store.GetGame(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, updated)
}

// DeleteGame removes a game with its sets and events.
// @Summary Delete game
// @Tags admin
// @Param id path int true "Game ID"
// @Success 204
// @Failure 404 {object} respond.ErrorResponse
// @Router /admin/games/{id} [delete]
func (h *Handler) DeleteGame(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.Store.DeleteGame(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	h.audit(r, "game.delete", "id=%d", id)
	respond.WriteNoContent(w)
}
