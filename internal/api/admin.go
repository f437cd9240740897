package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"builderscentral/internal/middleware"
	"builderscentral/internal/models"
	"builderscentral/internal/store"
	"builderscentral/internal/util"
)

// AdminListUsers lists profiles, defaulting to the pending approval queue.
// status=all lists everyone, status=approved only the approved.
func (h *Handlers) AdminListUsers(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePagination(r)
	var approved *bool
	switch r.URL.Query().Get("status") {
	case "all":
	case "approved":
		t := true
		approved = &t
	default:
		f := false
		approved = &f
	}
	items, err := h.svc.Store().ListProfiles(r.Context(), approved, pageSize, (page-1)*pageSize)
	if err != nil {
		util.WriteErrorCtx(w, r.Context(), 500, "internal_error", err.Error())
		return
	}
	out := make([]map[string]any, 0, len(items))
	for _, p := range items {
		dto := profileDTO(p, false)
		// Admins review sign-ups by address.
		dto["email"] = p.Email
		out = append(out, dto)
	}
	util.WriteJSON(w, 200, map[string]any{"items": out, "page": page, "page_size": pageSize})
}

func (h *Handlers) AdminApproveUser(w http.ResponseWriter, r *http.Request) {
	admin, _ := middleware.Profile(r.Context())
	id := chi.URLParam(r, "id")
	emailSent, err := h.svc.ApproveUser(r.Context(), admin.ID, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			util.WriteErrorCtx(w, r.Context(), 404, "not_found", "user not found")
			return
		}
		util.WriteErrorCtx(w, r.Context(), 400, "approve_failed", err.Error())
		return
	}
	util.WriteJSON(w, 200, map[string]any{"status": "approved", "email_sent": emailSent})
}

func (h *Handlers) AdminRejectUser(w http.ResponseWriter, r *http.Request) {
	admin, _ := middleware.Profile(r.Context())
	id := chi.URLParam(r, "id")
	if admin.ID == id {
		util.WriteErrorCtx(w, r.Context(), 400, "reject_failed", "cannot reject your own account")
		return
	}
	emailSent, err := h.svc.RejectUser(r.Context(), admin.ID, id)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			util.WriteErrorCtx(w, r.Context(), 404, "not_found", "user not found")
			return
		}
		util.WriteErrorCtx(w, r.Context(), 400, "reject_failed", err.Error())
		return
	}
	util.WriteJSON(w, 200, map[string]any{"status": "rejected", "email_sent": emailSent})
}

func (h *Handlers) AdminReviewApplication(w http.ResponseWriter, r *http.Request) {
	admin, _ := middleware.Profile(r.Context())
	id := chi.URLParam(r, "id")
	var req struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		util.WriteErrorCtx(w, r.Context(), 400, "bad_request", "invalid json")
		return
	}
	app, err := h.svc.ReviewApplication(r.Context(), admin.ID, id, models.AppStatus(req.Status))
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			util.WriteErrorCtx(w, r.Context(), 404, "not_found", "application not found")
			return
		}
		util.WriteErrorCtx(w, r.Context(), 400, "review_failed", err.Error())
		return
	}
	util.WriteJSON(w, 200, app)
}

func (h *Handlers) AdminRateApplication(w http.ResponseWriter, r *http.Request) {
	admin, _ := middleware.Profile(r.Context())
	id := chi.URLParam(r, "id")
	var req struct {
		Score int `json:"score"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		util.WriteErrorCtx(w, r.Context(), 400, "bad_request", "invalid json")
		return
	}
	if err := h.svc.RateApplication(r.Context(), admin.ID, id, req.Score); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			util.WriteErrorCtx(w, r.Context(), 404, "not_found", "application not found")
			return
		}
		util.WriteErrorCtx(w, r.Context(), 400, "rate_failed", err.Error())
		return
	}
	util.WriteJSON(w, 200, map[string]any{"status": "rated", "score": req.Score})
}

func (h *Handlers) AdminAuditLog(w http.ResponseWriter, r *http.Request) {
	page, pageSize := parsePagination(r)
	items, err := h.svc.Store().ListAudit(r.Context(), pageSize, (page-1)*pageSize)
	if err != nil {
		util.WriteErrorCtx(w, r.Context(), 500, "internal_error", err.Error())
		return
	}
	util.WriteJSON(w, 200, map[string]any{"items": items, "page": page, "page_size": pageSize})
}
