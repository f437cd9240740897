package api

import (
	"crypto/rand"
	"encoding/base64"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"builderscentral/internal/captcha"
	"builderscentral/internal/config"
	"builderscentral/internal/identity"
	"builderscentral/internal/middleware"
	"builderscentral/internal/notify"
	"builderscentral/internal/rate"
	"builderscentral/internal/service"
	"builderscentral/internal/util"
)

type Handlers struct {
	cfg             config.Config
	svc             *service.Service
	provider        *identity.Provider
	verifier        *identity.Verifier
	limiter         *rate.Limiter
	captchaVerifier captcha.Verifier
}

// NewRouter wires the full HTTP surface. provider may be nil when an
// external identity store fronts the app; /auth/session still works.
func NewRouter(cfg config.Config, svc *service.Service, provider *identity.Provider, verifier *identity.Verifier) http.Handler {
	h := &Handlers{
		cfg:             cfg,
		svc:             svc,
		provider:        provider,
		verifier:        verifier,
		limiter:         rate.NewLimiter(),
		captchaVerifier: captcha.NewVerifier(cfg),
	}
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	r.Use(middleware.RequestIDMiddleware)
	r.Use(middleware.RequestLogger)
	r.Use(middleware.SecurityHeaders)
	if len(cfg.CORSAllowedOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   cfg.CORSAllowedOrigins,
			AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Content-Type", "X-CSRF-Token"},
			AllowCredentials: true,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		util.WriteJSON(w, 200, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", h.Ready)

	r.Route("/api/v1", func(r chi.Router) {
		r.With(middleware.RateLimit(h.limiter, "register", 10, time.Minute, h.cfg.TrustProxy)).Post("/auth/register", h.Register)
		r.With(middleware.RateLimit(h.limiter, "login", 20, time.Minute, h.cfg.TrustProxy)).Post("/auth/login", h.Login)
		r.With(middleware.RateLimit(h.limiter, "session", 30, time.Minute, h.cfg.TrustProxy)).Post("/auth/session", h.SessionFromToken)
		r.Post("/auth/logout", h.Logout)

		r.Get("/leaderboard", h.Leaderboard)

		r.Group(func(r chi.Router) {
			r.Use(middleware.Authn(h.svc, h.cfg.SessionCookieName))

			// Pending users keep access to their own profile and
			// notifications; only the app surface sits behind the gate.
			r.Get("/me", h.Me)
			r.Get("/notifications", h.ListNotifications)
			r.Get("/notifications/stream", h.StreamNotifications)
			r.Group(func(r chi.Router) {
				r.Use(middleware.CSRFFromCookie(h.cfg.CSRFCookieName))
				r.Patch("/me", h.UpdateMe)
				r.Post("/notifications/{id}/read", h.MarkNotificationRead)
				r.Post("/notifications/read-all", h.MarkAllNotificationsRead)
			})

			r.Group(func(r chi.Router) {
				r.Use(middleware.ApprovedOnly)
				r.Get("/apps", h.ListApplications)
				r.Get("/apps/{id}", h.GetApplication)
				r.Get("/apps/{id}/comments", h.ListComments)

				r.Group(func(r chi.Router) {
					r.Use(middleware.CSRFFromCookie(h.cfg.CSRFCookieName))
					r.With(middleware.RateLimit(h.limiter, "submit", 10, time.Minute, h.cfg.TrustProxy)).Post("/apps", h.SubmitApplication)
					r.Post("/apps/{id}/star", h.StarApplication)
					r.Delete("/apps/{id}/star", h.UnstarApplication)
					r.With(middleware.RateLimit(h.limiter, "comment", 30, time.Minute, h.cfg.TrustProxy)).Post("/apps/{id}/comments", h.CommentApplication)
				})
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(middleware.AdminOnly)
				r.Get("/users", h.AdminListUsers)
				r.Get("/audit-log", h.AdminAuditLog)
				r.Group(func(r chi.Router) {
					r.Use(middleware.CSRFFromCookie(h.cfg.CSRFCookieName))
					r.Post("/users/{id}/approve", h.AdminApproveUser)
					r.Post("/users/{id}/reject", h.AdminRejectUser)
					r.Post("/apps/{id}/review", h.AdminReviewApplication)
					r.Put("/apps/{id}/rating", h.AdminRateApplication)
				})
			})
		})
	})

	return r
}

func (h *Handlers) Ready(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{
		"checked_at": time.Now().UTC().Format(time.RFC3339),
		"components": map[string]any{},
	}
	comps := out["components"].(map[string]any)
	ok := true
	if err := h.svc.Store().Ping(r.Context()); err != nil {
		ok = false
		comps["db"] = map[string]any{"ok": false, "error": err.Error()}
	} else {
		comps["db"] = map[string]any{"ok": true}
	}
	if h.cfg.MailSender == "smtp" {
		if err := notify.Probe(r.Context(), h.cfg); err != nil {
			ok = false
			comps["smtp"] = map[string]any{"ok": false, "error": err.Error()}
		} else {
			comps["smtp"] = map[string]any{"ok": true}
		}
	}
	if ok {
		out["status"] = "ready"
		util.WriteJSON(w, 200, out)
		return
	}
	out["status"] = "degraded"
	util.WriteJSON(w, 503, out)
}

func parsePagination(r *http.Request) (int, int) {
	page := 1
	pageSize := 25
	if v := r.URL.Query().Get("page"); v != "" {
		if p, err := strconv.Atoi(v); err == nil && p > 0 {
			page = p
		}
	}
	if v := r.URL.Query().Get("page_size"); v != "" {
		if ps, err := strconv.Atoi(v); err == nil {
			if ps < 1 {
				ps = 1
			}
			if ps > 100 {
				ps = 100
			}
			pageSize = ps
		}
	}
	return page, pageSize
}

func randomToken() string {
	buf := make([]byte, 32)
	_, _ = rand.Read(buf)
	return base64.RawURLEncoding.EncodeToString(buf)
}

func (h *Handlers) setAuthCookies(w http.ResponseWriter, sessionToken, csrfToken string) {
	maxAge := int(h.cfg.SessionAbsoluteDuration().Seconds())
	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.SessionCookieName,
		Value:    sessionToken,
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.CSRFCookieName,
		Value:    csrfToken,
		Path:     "/",
		HttpOnly: false,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   maxAge,
	})
}

func (h *Handlers) clearAuthCookies(w http.ResponseWriter) {
	expiredAt := time.Unix(1, 0).UTC()
	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.SessionCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
		Expires:  expiredAt,
	})
	http.SetCookie(w, &http.Cookie{
		Name:     h.cfg.CSRFCookieName,
		Value:    "",
		Path:     "/",
		HttpOnly: false,
		Secure:   h.cfg.CookieSecure,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
		Expires:  expiredAt,
	})
}
