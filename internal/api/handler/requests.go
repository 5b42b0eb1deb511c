package handler

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/albapepper/schoolcup/internal/api/respond"
	"github.com/albapepper/schoolcup/internal/auth"
	"github.com/albapepper/schoolcup/internal/store"
	"github.com/albapepper/schoolcup/internal/tournament"
)

type reviewInput struct {
	Reason string `json:"reason"`
}

// ListRequests returns team or player signups, pending ones by default.
// @Summary List signup requests
// @Tags admin
// @Produce json
// @Param kind path string true "teams or players"
// @Param status query string false "pending, approved or rejected" default(pending)
// @Success 200 {array} tournament.TeamRequest
// @Failure 400 {object} respond.ErrorResponse
// @Router /admin/requests/{kind} [get]
func (h *Handler) ListRequests(w http.ResponseWriter, r *http.Request) {
	status := r.URL.Query().Get("status")
	if status == "" {
		status = tournament.RequestPending
	}
	var (
		out any
		err error
	)
	switch kind := chi.URLParam(r, "kind"); kind {
	case store.RequestKindTeam:
		out, err = h.Store.ListTeamRequests(r.Context(), status)
	case store.RequestKindPlayer:
		out, err = h.Store.ListPlayerRequests(r.Context(), status)
	default:
		err = &tournament.ValidationError{Field: "kind", Message: "must be teams or players"}
	}
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, out)
}

// ApproveRequest materialises a pending signup as a team or player.
// @Summary Approve signup
// @Tags admin
// @Produce json
// @Param kind path string true "teams or players"
// @Param id path int true "Request ID"
// @Success 200 {object} store.Review
// @Failure 400 {object} respond.ErrorResponse "Roster full or invalid"
// @Failure 409 {object} respond.ErrorResponse "Already reviewed"
// @Router /admin/requests/{kind}/{id}/approve [post]
func (h *Handler) ApproveRequest(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, true)
}

// RejectRequest rejects a pending signup with an optional reason.
// @Summary Reject signup
// @Tags admin
// @Accept json
// @Produce json
// @Param kind path string true "teams or players"
// @Param id path int true "Request ID"
// @Param body body reviewInput false "Reason"
// @Success 200 {object} store.Review
// @Failure 409 {object} respond.ErrorResponse "Already reviewed"
// @Router /admin/requests/{kind}/{id}/reject [post]
func (h *Handler) RejectRequest(w http.ResponseWriter, r *http.Request) {
	h.review(w, r, false)
}

func (h *Handler) review(w http.ResponseWriter, r *http.Request, approve bool) {
	id, err := pathID(r, "id")
	if err != nil {
		h.fail(w, r, err)
		return
	}
	var in reviewInput
	if r.ContentLength != 0 {
		if err := decode(w, r, &in); err != nil {
			h.fail(w, r, err)
			return
		}
	}
	kind := chi.URLParam(r, "kind")
	rev, err := h.Store.ReviewRequest(r.Context(), kind, id, approve, auth.UserID(r.Context()), in.Reason)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	h.audit(r, "request."+rev.Status, "kind=%s id=%d created_id=%d", kind, id, rev.CreatedID)
	respond.WriteJSONObject(w, http.StatusOK, rev)
}

// UpdateRegistration replaces the signup window.
// @Summary Update registration window
// @Tags admin
// @Accept json
// @Produce json
// @Param body body tournament.RegistrationConfig true "Window"
// @Success 200 {object} tournament.RegistrationConfig
// @Failure 400 {object} respond.ErrorResponse
// @Router /admin/registration [put]
func (h *Handler) UpdateRegistration(w http.ResponseWriter, r *http.Request) {
	var c tournament.RegistrationConfig
	if err := decode(w, r, &c); err != nil {
		h.fail(w, r, err)
		return
	}
	if err := h.Store.UpdateRegistration(r.Context(), c); err != nil {
		h.fail(w, r, err)
		return
	}
	h.audit(r, "registration.update", "open=%t max_teams=%d", c.Open, c.MaxTeamsPerModality)
	respond.WriteJSONObject(w, http.StatusOK, c)
}

// Dashboard returns the counters of the admin home.
// @Summary Admin dashboard
// @Tags admin
// @Produce json
// @Success 200 {object} store.Dashboard
// @Router /admin/dashboard [get]
func (h *Handler) Dashboard(w http.ResponseWriter, r *http.Request) {
	d, err := h.Store.Dashboard(r.Context())
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, d)
}

// Audit lists admin actions, newest first.
// @Summary Audit log
// @Tags admin
// @Produce json
// @Param limit query int false "Rows, 1 to 200" default(50)
// @Param offset query int false "Offset" default(0)
// @Success 200 {array} store.AuditEntry
// @Router /admin/audit [get]
func (h *Handler) Audit(w http.ResponseWriter, r *http.Request) {
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	offset, _ := strconv.Atoi(r.URL.Query().Get("offset"))
	if offset < 0 {
		offset = 0
	}
	out, err := h.Store.ListAudit(r.Context(), limit, offset)
	if err != nil {
		h.fail(w, r, err)
		return
	}
	respond.WriteJSONObject(w, http.StatusOK, out)
}
