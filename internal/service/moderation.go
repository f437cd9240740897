package service

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"builderscentral/internal/models"
	"builderscentral/internal/notify"
)

// ApproveUser flips the approval flag (authoritative), then attempts the
// approval email and the success notification. The returned emailSent flag
// lets the admin UI surface a failed send without failing the action.
func (s *Service) ApproveUser(ctx context.Context, adminID, targetID string) (emailSent bool, err error) {
	target, err := s.st.GetProfileByID(ctx, targetID)
	if err != nil {
		return false, err
	}
	if err := s.st.UpdateProfileApproved(ctx, targetID, true); err != nil {
		return false, err
	}

	if mailErr := s.sender.Send(ctx, notify.KindApproval, target.Email, target.Handle); mailErr != nil {
		log.Printf("approval mail failed user=%s err=%v", targetID, mailErr)
	} else {
		emailSent = true
	}
	_ = s.pushNotification(ctx, models.Notification{
		UserID:       targetID,
		Type:         models.NotifySuccess,
		Title:        "Account approved",
		Message:      "Your account has been approved. Welcome to Builders Central!",
		ActionUserID: &adminID,
	})

	meta, _ := json.Marshal(map[string]string{"user_id": targetID, "email": target.Email})
	if err := s.st.InsertAudit(ctx, adminID, "user.approve", targetID, string(meta)); err != nil {
		log.Printf("audit insert failed action=user.approve err=%v", err)
	}
	return emailSent, nil
}

// RejectUser emails the rejection while the address is still known, then
// revokes sessions and hard-deletes the profile. Irreversible.
func (s *Service) RejectUser(ctx context.Context, adminID, targetID string) (emailSent bool, err error) {
	target, err := s.st.GetProfileByID(ctx, targetID)
	if err != nil {
		return false, err
	}

	if mailErr := s.sender.Send(ctx, notify.KindRejection, target.Email, target.Handle); mailErr != nil {
		log.Printf("rejection mail failed user=%s err=%v", targetID, mailErr)
	} else {
		emailSent = true
	}

	if err := s.st.RevokeProfileSessions(ctx, targetID); err != nil {
		log.Printf("revoke sessions failed user=%s err=%v", targetID, err)
	}
	if err := s.st.DeleteProfile(ctx, targetID); err != nil {
		return emailSent, err
	}

	meta, _ := json.Marshal(map[string]string{"user_id": targetID, "email": target.Email})
	if err := s.st.InsertAudit(ctx, adminID, "user.reject", targetID, string(meta)); err != nil {
		log.Printf("audit insert failed action=user.reject err=%v", err)
	}
	return emailSent, nil
}

// ReviewApplication applies an admin status decision. The status update is
// the source of truth; the creator notification is best-effort and each
// call is treated as authoritative (no dedup for moderation outcomes).
func (s *Service) ReviewApplication(ctx context.Context, adminID, appID string, status models.AppStatus) (models.Application, error) {
	switch status {
	case models.AppApproved, models.AppRejected, models.AppReviewRequested:
	default:
		return models.Application{}, fmt.Errorf("invalid review status %q", status)
	}
	app, err := s.st.GetApplicationByID(ctx, appID)
	if err != nil {
		return models.Application{}, err
	}

	now := time.Now().UTC()
	if err := s.st.UpdateApplicationStatus(ctx, appID, status, now); err != nil {
		return models.Application{}, err
	}
	app.Status = status
	app.ReviewedAt = &now

	switch status {
	case models.AppApproved:
		_ = s.pushNotification(ctx, models.Notification{
			UserID:        app.CreatorID,
			Type:          models.NotifyApproval,
			Title:         "Application approved",
			Message:       fmt.Sprintf("Your application %q was approved.", app.Title),
			ApplicationID: &app.ID,
			ActionUserID:  &adminID,
		})
	case models.AppRejected:
		_ = s.pushNotification(ctx, models.Notification{
			UserID:        app.CreatorID,
			Type:          models.NotifyRejection,
			Title:         "Application rejected",
			Message:       fmt.Sprintf("Your application %q was rejected.", app.Title),
			ApplicationID: &app.ID,
			ActionUserID:  &adminID,
		})
	}

	meta, _ := json.Marshal(map[string]string{"application_id": appID, "status": string(status)})
	if err := s.st.InsertAudit(ctx, adminID, "app.review", appID, string(meta)); err != nil {
		log.Printf("audit insert failed action=app.review err=%v", err)
	}
	return app, nil
}

// RateApplication upserts this admin's leaderboard score for an application.
func (s *Service) RateApplication(ctx context.Context, adminID, appID string, score int) error {
	if score < 1 || score > 5 {
		return fmt.Errorf("score must be between 1 and 5")
	}
	if _, err := s.st.GetApplicationByID(ctx, appID); err != nil {
		return err
	}
	if err := s.st.UpsertRating(ctx, appID, adminID, score); err != nil {
		return err
	}
	meta, _ := json.Marshal(map[string]any{"application_id": appID, "score": score})
	if err := s.st.InsertAudit(ctx, adminID, "app.rate", appID, string(meta)); err != nil {
		log.Printf("audit insert failed action=app.rate err=%v", err)
	}
	return nil
}
