package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"builderscentral/internal/approval"
	"builderscentral/internal/config"
	"builderscentral/internal/events"
	"builderscentral/internal/identity"
	"builderscentral/internal/models"
	"builderscentral/internal/notify"
	"builderscentral/internal/store"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrForbidden          = errors.New("forbidden")
	// ErrProfileUnavailable means the bootstrap could not produce a usable
	// profile; the principal stays signed in at the identity layer and
	// should retry.
	ErrProfileUnavailable = errors.New("profile unavailable")
)

type Service struct {
	cfg    config.Config
	st     *store.Store
	sender notify.Sender
	hub    *events.Hub
}

func New(cfg config.Config, st *store.Store, sender notify.Sender, hub *events.Hub) *Service {
	if sender == nil {
		sender = notify.LogSender{}
	}
	if hub == nil {
		hub = events.NewHub()
	}
	return &Service{cfg: cfg, st: st, sender: sender, hub: hub}
}

func (s *Service) Store() *store.Store { return s.st }
func (s *Service) Hub() *events.Hub    { return s.hub }

// Bootstrap reconciles a signed-in principal with exactly one profile row
// and derives the gate decision. Order matters: canonical lookup by subject
// id, then legacy migration by email, then fresh creation.
func (s *Service) Bootstrap(ctx context.Context, pr identity.Principal) (models.Profile, approval.Decision, error) {
	prof, err := s.st.GetProfileByID(ctx, pr.SubjectID)
	switch {
	case err == nil:
	case errors.Is(err, store.ErrNotFound):
		prof, err = s.migrateOrCreate(ctx, pr)
		if err != nil {
			return models.Profile{}, "", fmt.Errorf("%w: %v", ErrProfileUnavailable, err)
		}
	default:
		return models.Profile{}, "", fmt.Errorf("%w: %v", ErrProfileUnavailable, err)
	}
	return prof, approval.Decide(prof), nil
}

func (s *Service) migrateOrCreate(ctx context.Context, pr identity.Principal) (models.Profile, error) {
	existing, err := s.st.GetProfileByEmail(ctx, pr.Email)
	if err == nil {
		// Legacy row from a prior authentication method: rewrite its
		// primary key to the new subject id. Rows elsewhere that still
		// reference the old id are left dangling (known limitation).
		if err := s.st.RewriteProfileID(ctx, existing.ID, pr.SubjectID); err != nil {
			if errors.Is(err, store.ErrConflict) {
				// A concurrent bootstrap already produced a row under the
				// subject id; adopt that row instead of failing the login.
				return s.st.GetProfileByID(ctx, pr.SubjectID)
			}
			return models.Profile{}, err
		}
		return s.st.GetProfileByID(ctx, pr.SubjectID)
	}
	if !errors.Is(err, store.ErrNotFound) {
		return models.Profile{}, err
	}
	return s.createProfile(ctx, pr)
}

func (s *Service) createProfile(ctx context.Context, pr identity.Principal) (models.Profile, error) {
	handle, err := s.pickHandle(ctx, pr)
	if err != nil {
		return models.Profile{}, err
	}
	prof := models.Profile{
		ID:          pr.SubjectID,
		Email:       pr.Email,
		Handle:      handle,
		Role:        models.RoleUser,
		Approved:    false,
		PublicEmail: true,
		CreatedAt:   time.Now().UTC(),
	}
	if err := s.st.InsertProfile(ctx, prof); err != nil {
		if !errors.Is(err, store.ErrConflict) {
			return models.Profile{}, err
		}
		// Duplicate-tab race: another bootstrap for the same principal
		// inserted first. Its row is the canonical one, so return it.
		if won, idErr := s.st.GetProfileByID(ctx, pr.SubjectID); idErr == nil {
			return won, nil
		}
		// Otherwise the conflict was the handle; retry once with a
		// suffixed one.
		prof.Handle = suffixHandle(handle)
		if err := s.st.InsertProfile(ctx, prof); err != nil {
			if errors.Is(err, store.ErrConflict) {
				return s.st.GetProfileByID(ctx, pr.SubjectID)
			}
			return models.Profile{}, err
		}
	}

	s.fanOutToAdmins(ctx, models.NotifyNewUser, "New user registration",
		fmt.Sprintf("%s (%s) signed up and is awaiting approval.", prof.Handle, prof.Email), nil, &prof.ID)
	return prof, nil
}

func (s *Service) pickHandle(ctx context.Context, pr identity.Principal) (string, error) {
	handle := strings.TrimSpace(pr.Handle)
	if handle == "" {
		handle = pr.Email
		if at := strings.Index(handle, "@"); at > 0 {
			handle = handle[:at]
		}
	}
	taken, err := s.st.HandleTaken(ctx, handle)
	if err != nil {
		return "", err
	}
	if taken {
		handle = suffixHandle(handle)
	}
	return handle, nil
}

func suffixHandle(handle string) string {
	return handle + "-" + uuid.NewString()[:6]
}

// fanOutToAdmins writes one notification row per admin. Each insert is
// best-effort: a failure is logged and the rest of the fan-out continues.
func (s *Service) fanOutToAdmins(ctx context.Context, typ, title, message string, applicationID, actionUserID *string) {
	admins, err := s.st.ListProfilesByRole(ctx, models.RoleAdmin)
	if err != nil {
		log.Printf("fan-out list admins failed type=%s err=%v", typ, err)
		return
	}
	for _, admin := range admins {
		s.pushNotification(ctx, models.Notification{
			UserID:        admin.ID,
			Type:          typ,
			Title:         title,
			Message:       message,
			ApplicationID: applicationID,
			ActionUserID:  actionUserID,
		})
	}
}

// pushNotification stores a notification and publishes it to live
// subscribers. Best-effort: the returned error is for callers that want to
// report it, not to abort on.
func (s *Service) pushNotification(ctx context.Context, n models.Notification) error {
	stored, err := s.st.InsertNotification(ctx, n)
	if err != nil {
		log.Printf("notification insert failed recipient=%s type=%s err=%v", n.UserID, n.Type, err)
		return err
	}
	s.hub.Publish(ctx, stored)
	return nil
}

// IssueSession creates an app session for a bootstrapped profile and
// returns the raw opaque token; only its hash is stored.
func (s *Service) IssueSession(ctx context.Context, profileID, ip, userAgent string) (string, error) {
	raw, tokenHash, err := identity.NewOpaqueToken()
	if err != nil {
		return "", err
	}
	now := time.Now().UTC()
	sess := models.Session{
		ID:            uuid.NewString(),
		ProfileID:     profileID,
		TokenHash:     tokenHash,
		IPHint:        ip,
		UserAgentHash: hashUA(userAgent),
		ExpiresAt:     now.Add(s.cfg.SessionAbsoluteDuration()),
		IdleExpiresAt: now.Add(s.cfg.SessionIdleDuration()),
		CreatedAt:     now,
		LastSeenAt:    now,
	}
	if err := s.st.CreateSession(ctx, sess); err != nil {
		return "", err
	}
	return raw, nil
}

// ValidateSession resolves a raw session token to its profile. Pending
// profiles validate fine; the approval gate is applied per route, not here.
func (s *Service) ValidateSession(ctx context.Context, rawToken string) (models.Profile, models.Session, error) {
	sess, err := s.st.GetSessionByTokenHash(ctx, identity.HashToken(rawToken))
	if err != nil {
		return models.Profile{}, models.Session{}, ErrInvalidCredentials
	}
	now := time.Now().UTC()
	if sess.RevokedAt != nil || now.After(sess.ExpiresAt) || now.After(sess.IdleExpiresAt) {
		return models.Profile{}, models.Session{}, ErrInvalidCredentials
	}
	_ = s.st.TouchSession(ctx, sess.ID, now.Add(s.cfg.SessionIdleDuration()))

	prof, err := s.st.GetProfileByID(ctx, sess.ProfileID)
	if err != nil {
		return models.Profile{}, models.Session{}, ErrInvalidCredentials
	}
	return prof, sess, nil
}

func (s *Service) Logout(ctx context.Context, rawToken string) error {
	sess, err := s.st.GetSessionByTokenHash(ctx, identity.HashToken(rawToken))
	if err != nil {
		return nil
	}
	return s.st.RevokeSession(ctx, sess.ID)
}

// UpdateOwnProfile applies the owner-mutable fields (handle, public_email).
func (s *Service) UpdateOwnProfile(ctx context.Context, profileID, handle string, publicEmail bool) (models.Profile, error) {
	handle = strings.TrimSpace(handle)
	if handle == "" {
		return models.Profile{}, errors.New("handle is required")
	}
	if err := s.st.UpdateProfileOwner(ctx, profileID, handle, publicEmail); err != nil {
		return models.Profile{}, err
	}
	return s.st.GetProfileByID(ctx, profileID)
}

func (s *Service) ListNotifications(ctx context.Context, recipientID string, limit, offset int) ([]models.Notification, int, error) {
	items, err := s.st.ListNotificationsByRecipient(ctx, recipientID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	unread, err := s.st.CountUnreadNotifications(ctx, recipientID)
	if err != nil {
		return nil, 0, err
	}
	return items, unread, nil
}

func (s *Service) MarkNotificationRead(ctx context.Context, id, recipientID string) error {
	return s.st.MarkNotificationRead(ctx, id, recipientID, true)
}

func (s *Service) MarkAllNotificationsRead(ctx context.Context, recipientID string) error {
	return s.st.MarkAllNotificationsRead(ctx, recipientID)
}

// EnsureAdmin creates or promotes the bootstrap admin account (identity row
// plus an approved admin profile sharing the identity id).
func (s *Service) EnsureAdmin(ctx context.Context, email, passwordHash, handle string) error {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || passwordHash == "" {
		return nil
	}
	id, err := s.st.GetIdentityByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		id, err = s.st.CreateIdentity(ctx, email, passwordHash)
	}
	if err != nil {
		return err
	}
	prof, err := s.st.GetProfileByEmail(ctx, email)
	if errors.Is(err, store.ErrNotFound) {
		return s.st.InsertProfile(ctx, models.Profile{
			ID:          id.ID,
			Email:       email,
			Handle:      handle,
			Role:        models.RoleAdmin,
			Approved:    true,
			PublicEmail: false,
			CreatedAt:   time.Now().UTC(),
		})
	}
	if err != nil {
		return err
	}
	return s.st.PromoteProfileAdmin(ctx, prof.ID)
}

func hashUA(ua string) string {
	sum := sha256.Sum256([]byte(ua))
	return hex.EncodeToString(sum[:])
}
