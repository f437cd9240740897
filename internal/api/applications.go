package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"builderscentral/internal/middleware"
	"builderscentral/internal/models"
	"builderscentral/internal/store"
	"builderscentral/internal/util"
)

// ListApplications defaults to the approved showcase. Admins may filter by
// any status; non-admins asking for an unapproved slice get the default.
func (h *Handlers) ListApplications(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.Profile(r.Context())
	status := models.AppStatus(r.URL.Query().Get("status"))
	if status == "" || (p.Role != models.RoleAdmin && status != models.AppApproved) {
		status = models.AppApproved
	}
	page, pageSize := parsePagination(r)
	items, err := h.svc.Store().ListApplications(r.Context(), status, pageSize, (page-1)*pageSize)
	if err != nil {
		util.WriteErrorCtx(w, r.Context(), 500, "internal_error", err.Error())
		return
	}
	util.WriteJSON(w, 200, map[string]any{"items": items, "page": page, "page_size": pageSize})
}

func (h *Handlers) GetApplication(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.Profile(r.Context())
	id := chi.URLParam(r, "id")
	app, err := h.svc.Store().GetApplicationByID(r.Context(), id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			util.WriteErrorCtx(w, r.Context(), 404, "not_found", "application not found")
			return
		}
		util.WriteErrorCtx(w, r.Context(), 500, "internal_error", err.Error())
		return
	}
	// Unapproved submissions are visible to their creator and to admins.
	if app.Status != models.AppApproved && app.CreatorID != p.ID && p.Role != models.RoleAdmin {
		util.WriteErrorCtx(w, r.Context(), 404, "not_found", "application not found")
		return
	}
	stars, err := h.svc.Store().CountStars(r.Context(), app.ID)
	if err != nil {
		util.WriteErrorCtx(w, r.Context(), 500, "internal_error", err.Error())
		return
	}
	util.WriteJSON(w, 200, map[string]any{"application": app, "star_count": stars})
}

func (h *Handlers) SubmitApplication(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.Profile(r.Context())
	var req struct {
		Title       string `json:"title"`
		Description string `json:"description"`
		URL         string `json:"url"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		util.WriteErrorCtx(w, r.Context(), 400, "bad_request", "invalid json")
		return
	}
	app, err := h.svc.SubmitApplication(r.Context(), p, req.Title, req.Description, req.URL)
	if err != nil {
		util.WriteErrorCtx(w, r.Context(), 400, "submit_failed", err.Error())
		return
	}
	util.WriteJSON(w, 201, app)
}

func (h *Handlers) StarApplication(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.Profile(r.Context())
	id := chi.URLParam(r, "id")
	if err := h.svc.StarApplication(r.Context(), p, id); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			util.WriteErrorCtx(w, r.Context(), 404, "not_found", "application not found")
			return
		}
		util.WriteErrorCtx(w, r.Context(), 500, "internal_error", err.Error())
		return
	}
	util.WriteJSON(w, 200, map[string]string{"status": "starred"})
}

func (h *Handlers) UnstarApplication(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.Profile(r.Context())
	id := chi.URLParam(r, "id")
	if err := h.svc.UnstarApplication(r.Context(), p.ID, id); err != nil {
		util.WriteErrorCtx(w, r.Context(), 500, "internal_error", err.Error())
		return
	}
	util.WriteJSON(w, 200, map[string]string{"status": "unstarred"})
}

func (h *Handlers) ListComments(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	page, pageSize := parsePagination(r)
	items, err := h.svc.Store().ListComments(r.Context(), id, pageSize, (page-1)*pageSize)
	if err != nil {
		util.WriteErrorCtx(w, r.Context(), 500, "internal_error", err.Error())
		return
	}
	util.WriteJSON(w, 200, map[string]any{"items": items, "page": page, "page_size": pageSize})
}

func (h *Handlers) CommentApplication(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.Profile(r.Context())
	id := chi.URLParam(r, "id")
	var req struct {
		Body string `json:"body"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		util.WriteErrorCtx(w, r.Context(), 400, "bad_request", "invalid json")
		return
	}
	c, err := h.svc.CommentApplication(r.Context(), p, id, req.Body)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			util.WriteErrorCtx(w, r.Context(), 404, "not_found", "application not found")
			return
		}
		util.WriteErrorCtx(w, r.Context(), 400, "comment_failed", err.Error())
		return
	}
	util.WriteJSON(w, 201, c)
}

// Leaderboard is public: the rating roll-up over approved applications.
func (h *Handlers) Leaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 25
	if v := r.URL.Query().Get("limit"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			limit = n
		}
	}
	items, err := h.svc.Leaderboard(r.Context(), limit)
	if err != nil {
		util.WriteErrorCtx(w, r.Context(), 500, "internal_error", err.Error())
		return
	}
	util.WriteJSON(w, 200, map[string]any{"items": items})
}
