package handler

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"

	"github.com/albapepper/schoolcup/internal/api/respond"
	"github.com/albapepper/schoolcup/internal/scoring"
	"github.com/albapepper/schoolcup/internal/store"
	"github.com/albapepper/schoolcup/internal/tournament"
)

// photoTypes are the accepted upload formats, sniffed from the bytes.
var photoTypes = map[string]bool{
	"image/jpeg": true,
	"image/png":  true,
	"image/webp": true,
}

// AdminListGames returns games, uncached.
// @Summary List games (admin)
// @Tags admin
// @Produce json
// @Param status query string false "Status"
// @Param modality_id query int false "Modality ID"
// @Param team_id query int false "Team ID"
// @Success 200 {array} tournament.Game
// @Router /admin/games [get]
func (h *Handler) AdminListGames(w http.ResponseWriter, r *http.Request) {
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
	out, err := h.Store.ListGames(r.Context(), f)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, out)
}

// AdminGetGame returns a game with its live state, uncached.
// @Summary Game detail (admin)
// @Tags admin
// @Produce json
// @Param id path int true "Game ID"
// @Success 200 {object} GameDetail
// @Failure 404 {object} respond.ErrorResponse
// @Router /admin/games/{id} [get]
func (h *Handler) AdminGetGame(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	d, err := h.gameDetail(r.Context(), id)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, d)
}

// --------------------------------------------------------------------------
// Lifecycle
// --------------------------------------------------------------------------

// StartGame moves a scheduled game to live.
// @Summary Start game
// @Tags scoring
// @Produce json
// @Param id path int true "Game ID"
// @Success 200 {object} tournament.Game
// @Failure 409 {object} respond.ErrorResponse "Invalid transition"
// @Router /admin/games/{id}/start [post]
func (h *Handler) StartGame(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, tournament.StatusLive)
}

// FinishGame moves a live game to finished.
// @Summary Finish game
// @Tags scoring
// @Produce json
// @Param id path int true "Game ID"
// @Success 200 {object} tournament.Game
// @Failure 409 {object} respond.ErrorResponse "Invalid transition"
// @Router /admin/games/{id}/finish [post]
func (h *Handler) FinishGame(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, tournament.StatusFinished)
}

// CancelGame cancels a scheduled or live game.
// @Summary Cancel game
// @Tags scoring
// @Produce json
// @Param id path int true "Game ID"
// @Success 200 {object} tournament.Game
// @Failure 409 {object} respond.ErrorResponse "Invalid transition"
// @Router /admin/games/{id}/cancel [post]
func (h *Handler) CancelGame(w http.ResponseWriter, r *http.Request) {
	h.transition(w, r, tournament.StatusCancelled)
}

func (h *Handler) transition(w http.ResponseWriter, r *http.Request, to string) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	g, err := h.Store.SetStatus(r.Context(), id, to)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.audit(r, "game."+to, "id=%d", id)
	respond.WriteJSONObject(w, http.StatusOK, g)
}

// --------------------------------------------------------------------------
// Events
// --------------------------------------------------------------------------

// AddEvent appends a highlight. Goals move the running score and player
// counters in the same transaction.
// @Summary Add game event
// @Tags scoring
// @Accept json
// @Produce json
// @Param id path int true "Game ID"
// @Param body body tournament.GameEvent true "Event"
// @Success 201 {object} tournament.GameEvent
// @Failure 400 {object} respond.ErrorResponse
// @Failure 409 {object} respond.ErrorResponse "Game not live or finished"
// @Router /admin/games/{id}/events [post]
func (h *Handler) AddEvent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var e tournament.GameEvent
	if err := decode(w, r, &e); err != nil {
		h.fail(w, r, err)
		return
	}
	e.ID, e.GameID = 0, id
	if err := h.Store.AddEvent(r.Context(), &e); err != nil {
		h.fail(w, r, err)
		return
	}
	h.audit(r, "event.add", "game_id=%d id=%d kind=%s", id, e.ID, e.Kind)
	respond.WriteJSONObject(w, http.StatusCreated, e)
}

// DeleteEvent removes a highlight and reverts its effect.
// @Summary Delete game event
// @Tags scoring
// @Param id path int true "Game ID"
// @Param eventID path int true "Event ID"
// @Success 204
// @Failure 404 {object} respond.ErrorResponse
// @Router /admin/games/{id}/events/{eventID} [delete]
func (h *Handler) DeleteEvent(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	eventID, err := pathID(r, "eventID")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.Store.DeleteEvent(r.Context(), id, eventID); err != nil {
		h.fail(w, r, err)
		return
	}
	h.audit(r, "event.delete", "game_id=%d id=%d", id, eventID)
	respond.WriteNoContent(w)
}

// --------------------------------------------------------------------------
// Set scoring
// --------------------------------------------------------------------------

// SaveConfig stores the scoring rules of a set-scored game.
// @Summary Save scoring rules
// @Tags scoring
// @Accept json
// @Produce json
// @Param id path int true "Game ID"
// @Param body body scoring.Config true "Rules"
// @Success 200 {object} scoring.Config
// @Failure 400 {object} respond.ErrorResponse
// @Failure 409 {object} respond.ErrorResponse "A set is already finished"
// @Router /admin/games/{id}/config [put]
func (h *Handler) SaveConfig(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var c scoring.Config
	if err := decode(w, r, &c); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.Store.SaveConfig(r.Context(), id, c); err != nil {
		h.fail(w, r, err)
		return
	}
	h.audit(r, "game.config", "id=%d points=%d sets_to_win=%d", id, c.PointsPerSet, c.SetsToWin)
	respond.WriteJSONObject(w, http.StatusOK, c)
}

// Score applies one scoring command to a live set-scored game.
// @Summary Scoring command
// @Description Commands: point, undo_point, timeout, set_server. Side is home or away.
// @Tags scoring
// @Accept json
// @Produce json
// @Param id path int true "Game ID"
// @Param body body scoring.Command true "Command"
// @Success 200 {object} live.ScoreUpdate
// @Failure 400 {object} respond.ErrorResponse
// @Failure 409 {object} respond.ErrorResponse "Match finished, no timeouts left, nothing to undo"
// @Router /admin/games/{id}/score [post]
func (h *Handler) Score(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var cmd scoring.Command
	if err := decode(w, r, &cmd); err != nil {
		h.fail(w, r, err)
		return
	}
	up, err := h.Live.Score(r.Context(), id, cmd)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, up)
}

// --------------------------------------------------------------------------
// Photos
// --------------------------------------------------------------------------

// UploadPhoto stores a player picture sent as multipart field "photo".
// @Summary Upload player photo
// @Tags admin
// @Accept multipart/form-data
// @Produce json
// @Param id path int true "Player ID"
// @Param photo formData file true "JPEG, PNG or WebP"
// @Success 200 {object} map[string]string
// @Failure 400 {object} respond.ErrorResponse
// @Failure 413 {object} respond.ErrorResponse
// @Router /admin/players/{id}/photo [put]
func (h *Handler) UploadPhoto(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	limit := h.Config.PhotoMaxBytes
	// Room for the multipart envelope around the file.
	r.Body = http.MaxBytesReader(w, r.Body, limit+64<<10)
	file, _, err := r.FormFile("photo")
	if err != nil {
		var tooBig *http.MaxBytesError
		if errors.As(err, &tooBig) {
			respond.WriteError(w, http.StatusRequestEntityTooLarge, respond.CodeTooLarge,
				fmt.Sprintf("Photo must be at most %d bytes", limit))
			return
		}
		h.fail(w, r, &tournament.ValidationError{Field: "photo", Message: "multipart field \"photo\" is required"})
		return
	}
	defer file.Close()

	var buf bytes.Buffer
	n, err := io.Copy(&buf, io.LimitReader(file, limit+1))
	if err != nil {
		h.fail(w, r, fmt.Errorf("read photo: %w", err))
		return
	}
	if n > limit {
		respond.WriteError(w, http.StatusRequestEntityTooLarge, respond.CodeTooLarge,
			fmt.Sprintf("Photo must be at most %d bytes", limit))
		return
	}
	data := buf.Bytes()
	contentType := http.DetectContentType(data)
	if !photoTypes[contentType] {
		h.fail(w, r, &tournament.ValidationError{Field: "photo", Message: fmt.Sprintf("unsupported image type %q", contentType)})
		return
	}

	url := "/api/v1/players/" + strconv.FormatInt(id, 10) + "/photo"
	etag, err := h.Store.PutPhoto(r.Context(), id, contentType, data, url)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.audit(r, "player.photo", "id=%d bytes=%d type=%s", id, len(data), contentType)
	respond.WriteJSONObject(w, http.StatusOK, map[string]string{"photo_url": url, "etag": etag})
}

// DeletePhoto removes a player picture.
// @Summary Delete player photo
// @Tags admin
// @Param id path int true "Player ID"
// @Success 204
// @Failure 404 {object} respond.ErrorResponse
// @Router /admin/players/{id}/photo [delete]
func (h *Handler) DeletePhoto(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.Store.DeletePhoto(r.Context(), id); err != nil {
		h.fail(w, r, err)
		return
	}
	h.audit(r, "player.photo_delete", "id=%d", id)
	respond.WriteNoContent(w)
}
