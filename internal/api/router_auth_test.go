package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"builderscentral/internal/config"
	"builderscentral/internal/db"
	"builderscentral/internal/events"
	"builderscentral/internal/identity"
	"builderscentral/internal/notify"
	"builderscentral/internal/service"
	"builderscentral/internal/store"
)

type noopSender struct{}

func (noopSender) Send(ctx context.Context, kind notify.Kind, toEmail, toName string) error {
	return nil
}

func newTestRouter(t *testing.T) (http.Handler, *service.Service, *store.Store) {
	t.Helper()
	sqldb, err := db.OpenSQLite(filepath.Join(t.TempDir(), "app.db"), 1, 1, time.Minute)
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	t.Cleanup(func() { _ = sqldb.Close() })
	if err := db.ApplyMigrationFile(sqldb, filepath.Join("..", "..", "migrations", "001_init.sql")); err != nil {
		t.Fatalf("apply migration: %v", err)
	}

	st := store.New(sqldb, "sqlite")
	cfg := config.Config{
		ListenAddr:          ":8080",
		SessionCookieName:   "bc_session",
		CSRFCookieName:      "bc_csrf",
		SessionIdleMinutes:  30,
		SessionAbsoluteHour: 24,
		IdentityMode:        "builtin",
		IdentityJWTKey:      "test-identity-key-0123456789abcdef",
		IdentityTokenTTL:    10 * time.Minute,
		PasswordMinLength:   12,
		PasswordMaxLength:   128,
	}
	svc := service.New(cfg, st, noopSender{}, events.NewHub())
	verifier := identity.NewVerifier(cfg.IdentityJWTKey, cfg.IdentityTokenTTL)
	provider := identity.NewProvider(st, verifier, cfg.PasswordMinLength, cfg.PasswordMaxLength)
	return NewRouter(cfg, svc, provider, verifier), svc, st
}

func doRequest(t *testing.T, router http.Handler, method, path string, body []byte, sess, csrf *http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewReader(body))
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if sess != nil {
		req.AddCookie(sess)
	}
	if csrf != nil {
		req.AddCookie(csrf)
		if method != http.MethodGet && method != http.MethodHead && method != http.MethodOptions {
			req.Header.Set("X-CSRF-Token", csrf.Value)
		}
	}
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	return rec
}

func registerAndLogin(t *testing.T, router http.Handler, email, password string) (*http.Cookie, *http.Cookie, string) {
	t.Helper()
	reg := doRequest(t, router, http.MethodPost, "/api/v1/auth/register",
		[]byte(`{"email":"`+email+`","password":"`+password+`"}`), nil, nil)
	if reg.Code != http.StatusCreated {
		t.Fatalf("register %s: expected 201, got %d body=%s", email, reg.Code, reg.Body.String())
	}
	return login(t, router, email, password)
}

func login(t *testing.T, router http.Handler, email, password string) (*http.Cookie, *http.Cookie, string) {
	t.Helper()
	rec := doRequest(t, router, http.MethodPost, "/api/v1/auth/login",
		[]byte(`{"email":"`+email+`","password":"`+password+`"}`), nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("login %s: expected 200, got %d body=%s", email, rec.Code, rec.Body.String())
	}
	var payload struct {
		Decision string `json:"decision"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode login payload: %v body=%s", err, rec.Body.String())
	}

	var sess, csrf *http.Cookie
	for _, c := range rec.Result().Cookies() {
		switch c.Name {
		case "bc_session":
			sess = c
		case "bc_csrf":
			csrf = c
		}
	}
	if sess == nil || csrf == nil {
		t.Fatalf("login must set session and csrf cookies")
	}
	return sess, csrf, payload.Decision
}

func TestLoginBootstrapsPendingProfile(t *testing.T) {
	router, _, _ := newTestRouter(t)
	sess, csrf, decision := registerAndLogin(t, router, "alice@example.com", "CorrectHorse123!")
	if decision != "pending" {
		t.Fatalf("fresh sign-up must land pending, got %q", decision)
	}

	me := doRequest(t, router, http.MethodGet, "/api/v1/me", nil, sess, csrf)
	if me.Code != http.StatusOK {
		t.Fatalf("pending users can still see /me, got %d body=%s", me.Code, me.Body.String())
	}
	var payload struct {
		Profile struct {
			Handle   string `json:"handle"`
			Approved bool   `json:"approved"`
		} `json:"profile"`
	}
	if err := json.Unmarshal(me.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode /me: %v body=%s", err, me.Body.String())
	}
	if payload.Profile.Handle != "alice" || payload.Profile.Approved {
		t.Fatalf("unexpected bootstrap profile: %+v", payload.Profile)
	}

	// The gate keeps pending users out of the app surface.
	apps := doRequest(t, router, http.MethodGet, "/api/v1/apps", nil, sess, csrf)
	if apps.Code != http.StatusForbidden {
		t.Fatalf("pending user must get 403 on gated routes, got %d", apps.Code)
	}
}

func TestPendingUserKeepsNotificationsAndSettings(t *testing.T) {
	router, _, _ := newTestRouter(t)
	sess, csrf, decision := registerAndLogin(t, router, "fay@example.com", "CorrectHorse123!")
	if decision != "pending" {
		t.Fatalf("fresh sign-up must land pending, got %q", decision)
	}

	notifs := doRequest(t, router, http.MethodGet, "/api/v1/notifications", nil, sess, csrf)
	if notifs.Code != http.StatusOK {
		t.Fatalf("pending users own their notifications, got %d body=%s", notifs.Code, notifs.Body.String())
	}
	readAll := doRequest(t, router, http.MethodPost, "/api/v1/notifications/read-all", []byte(`{}`), sess, csrf)
	if readAll.Code != http.StatusOK {
		t.Fatalf("pending users can mark notifications read, got %d body=%s", readAll.Code, readAll.Body.String())
	}
	patch := doRequest(t, router, http.MethodPatch, "/api/v1/me", []byte(`{"public_email":false}`), sess, csrf)
	if patch.Code != http.StatusOK {
		t.Fatalf("pending users can edit their own profile, got %d body=%s", patch.Code, patch.Body.String())
	}

	apps := doRequest(t, router, http.MethodGet, "/api/v1/apps", nil, sess, csrf)
	if apps.Code != http.StatusForbidden {
		t.Fatalf("app surface stays gated for pending users, got %d", apps.Code)
	}
}

func TestLoginRejectsBadPassword(t *testing.T) {
	router, _, _ := newTestRouter(t)
	reg := doRequest(t, router, http.MethodPost, "/api/v1/auth/register",
		[]byte(`{"email":"bob@example.com","password":"CorrectHorse123!"}`), nil, nil)
	if reg.Code != http.StatusCreated {
		t.Fatalf("register: %d body=%s", reg.Code, reg.Body.String())
	}
	rec := doRequest(t, router, http.MethodPost, "/api/v1/auth/login",
		[]byte(`{"email":"bob@example.com","password":"WrongHorse123!"}`), nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for wrong password, got %d", rec.Code)
	}
}

func TestSessionFromExternalToken(t *testing.T) {
	router, _, _ := newTestRouter(t)
	verifier := identity.NewVerifier("test-identity-key-0123456789abcdef", 10*time.Minute)
	token, err := verifier.IssueToken("ext-1", "carol@example.com", "carol")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}

	rec := doRequest(t, router, http.MethodPost, "/api/v1/auth/session", []byte(`{"token":"`+token+`"}`), nil, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d body=%s", rec.Code, rec.Body.String())
	}
	var payload struct {
		Profile struct {
			ID     string `json:"id"`
			Handle string `json:"handle"`
		} `json:"profile"`
		Decision string `json:"decision"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode payload: %v body=%s", err, rec.Body.String())
	}
	if payload.Profile.ID != "ext-1" || payload.Profile.Handle != "carol" {
		t.Fatalf("unexpected bootstrap from external token: %+v", payload.Profile)
	}
	if payload.Decision != "pending" {
		t.Fatalf("expected pending decision, got %q", payload.Decision)
	}
}

func TestSessionFromGarbageToken(t *testing.T) {
	router, _, _ := newTestRouter(t)
	rec := doRequest(t, router, http.MethodPost, "/api/v1/auth/session", []byte(`{"token":"not-a-jwt"}`), nil, nil)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d body=%s", rec.Code, rec.Body.String())
	}
}

func TestLogoutClearsSession(t *testing.T) {
	router, _, _ := newTestRouter(t)
	sess, csrf, _ := registerAndLogin(t, router, "dave@example.com", "CorrectHorse123!")

	out := doRequest(t, router, http.MethodPost, "/api/v1/auth/logout", []byte(`{}`), sess, csrf)
	if out.Code != http.StatusOK {
		t.Fatalf("logout: %d body=%s", out.Code, out.Body.String())
	}
	me := doRequest(t, router, http.MethodGet, "/api/v1/me", nil, sess, csrf)
	if me.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 after logout, got %d", me.Code)
	}
}

func TestMutationsRequireCSRFToken(t *testing.T) {
	router, svc, _ := newTestRouter(t)
	sess, csrf, _ := registerAndLogin(t, router, "erin@example.com", "CorrectHorse123!")
	approveDirect(t, svc, "erin@example.com")

	req := httptest.NewRequest(http.MethodPatch, "/api/v1/me", bytes.NewReader([]byte(`{"handle":"erin2"}`)))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(sess)
	req.AddCookie(csrf)
	// No X-CSRF-Token header.
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusForbidden {
		t.Fatalf("expected 403 without csrf header, got %d", rec.Code)
	}

	ok := doRequest(t, router, http.MethodPatch, "/api/v1/me", []byte(`{"handle":"erin2"}`), sess, csrf)
	if ok.Code != http.StatusOK {
		t.Fatalf("expected 200 with csrf header, got %d body=%s", ok.Code, ok.Body.String())
	}
}

// approveDirect flips the approval flag in the store, standing in for an
// admin decision when the test is not about the admin surface.
func approveDirect(t *testing.T, svc *service.Service, email string) {
	t.Helper()
	p, err := svc.Store().GetProfileByEmail(context.Background(), email)
	if err != nil {
		t.Fatalf("load profile %s: %v", email, err)
	}
	if err := svc.Store().UpdateProfileApproved(context.Background(), p.ID, true); err != nil {
		t.Fatalf("approve %s: %v", email, err)
	}
}
