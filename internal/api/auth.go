package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"builderscentral/internal/approval"
	"builderscentral/internal/identity"
	"builderscentral/internal/middleware"
	"builderscentral/internal/models"
	"builderscentral/internal/util"
)

type registerRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	CaptchaToken string `json:"captcha_token"`
}

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	if h.provider == nil {
		util.WriteErrorCtx(w, r.Context(), 404, "not_found", "registration is handled by the external identity provider")
		return
	}
	var req registerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		util.WriteErrorCtx(w, r.Context(), 400, "bad_request", "invalid json")
		return
	}
	if h.cfg.CaptchaEnabled {
		ip := middleware.ClientIP(r, h.cfg.TrustProxy)
		if err := h.captchaVerifier.Verify(r.Context(), req.CaptchaToken, ip); err != nil {
			util.WriteErrorCtx(w, r.Context(), 400, "captcha_required", "captcha validation failed")
			return
		}
	}
	if err := h.provider.Register(r.Context(), req.Email, req.Password); err != nil {
		if errors.Is(err, identity.ErrEmailTaken) {
			util.WriteErrorCtx(w, r.Context(), 409, "email_taken", err.Error())
			return
		}
		util.WriteErrorCtx(w, r.Context(), 400, "register_failed", err.Error())
		return
	}
	util.WriteJSON(w, 201, map[string]string{"status": "registered"})
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	if h.provider == nil {
		util.WriteErrorCtx(w, r.Context(), 404, "not_found", "login is handled by the external identity provider")
		return
	}
	var req loginRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		util.WriteErrorCtx(w, r.Context(), 400, "bad_request", "invalid json")
		return
	}
	token, err := h.provider.Login(r.Context(), req.Email, req.Password)
	if err != nil {
		util.WriteErrorCtx(w, r.Context(), 401, "invalid_credentials", "invalid email or password")
		return
	}
	h.bootstrapAndRespond(w, r, token)
}

// SessionFromToken exchanges an identity token for an app session. This is
// the entry point for deployments where sign-in happens elsewhere.
func (h *Handlers) SessionFromToken(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Token string `json:"token"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		util.WriteErrorCtx(w, r.Context(), 400, "bad_request", "invalid json")
		return
	}
	h.bootstrapAndRespond(w, r, req.Token)
}

// bootstrapAndRespond runs the profile bootstrap for a verified principal
// and issues session cookies. A pending profile still gets a session; the
// response carries the gate decision so the client can route accordingly.
func (h *Handlers) bootstrapAndRespond(w http.ResponseWriter, r *http.Request, identityToken string) {
	pr, err := h.verifier.VerifyToken(identityToken)
	if err != nil {
		util.WriteErrorCtx(w, r.Context(), 401, "invalid_token", "invalid or expired identity token")
		return
	}
	prof, decision, err := h.svc.Bootstrap(r.Context(), pr)
	if err != nil {
		util.WriteErrorCtx(w, r.Context(), 503, "profile_unavailable", "could not prepare your profile, please retry")
		return
	}
	raw, err := h.svc.IssueSession(r.Context(), prof.ID, middleware.ClientIP(r, h.cfg.TrustProxy), r.UserAgent())
	if err != nil {
		util.WriteErrorCtx(w, r.Context(), 500, "internal_error", "could not create session")
		return
	}
	csrfToken := randomToken()
	h.setAuthCookies(w, raw, csrfToken)
	util.WriteJSON(w, 200, map[string]any{
		"profile":    profileDTO(prof, true),
		"decision":   string(decision),
		"csrf_token": csrfToken,
	})
}

func (h *Handlers) Logout(w http.ResponseWriter, r *http.Request) {
	c, _ := r.Cookie(h.cfg.SessionCookieName)
	if c != nil && c.Value != "" {
		_ = h.svc.Logout(r.Context(), c.Value)
	}
	h.clearAuthCookies(w)
	util.WriteJSON(w, 200, map[string]string{"status": "ok"})
}

func (h *Handlers) Me(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.Profile(r.Context())
	util.WriteJSON(w, 200, map[string]any{
		"profile":  profileDTO(p, true),
		"decision": string(approval.Decide(p)),
	})
}

func (h *Handlers) UpdateMe(w http.ResponseWriter, r *http.Request) {
	p, _ := middleware.Profile(r.Context())
	var req struct {
		Handle      *string `json:"handle"`
		PublicEmail *bool   `json:"public_email"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		util.WriteErrorCtx(w, r.Context(), 400, "bad_request", "invalid json")
		return
	}
	handle := p.Handle
	if req.Handle != nil {
		handle = *req.Handle
	}
	publicEmail := p.PublicEmail
	if req.PublicEmail != nil {
		publicEmail = *req.PublicEmail
	}
	updated, err := h.svc.UpdateOwnProfile(r.Context(), p.ID, handle, publicEmail)
	if err != nil {
		util.WriteErrorCtx(w, r.Context(), 400, "update_failed", err.Error())
		return
	}
	util.WriteJSON(w, 200, profileDTO(updated, true))
}

// profileDTO shapes a profile for API responses. Email is withheld unless
// the owner is looking or the profile opted into a public address.
func profileDTO(p models.Profile, owner bool) map[string]any {
	out := map[string]any{
		"id":           p.ID,
		"handle":       p.Handle,
		"role":         string(p.Role),
		"approved":     p.Approved,
		"public_email": p.PublicEmail,
		"created_at":   p.CreatedAt,
	}
	if owner || p.PublicEmail {
		out["email"] = p.Email
	}
	return out
}
