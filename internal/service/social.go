package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"

	"builderscentral/internal/models"
	"builderscentral/internal/store"
)

// SubmitApplication stores a new pending submission and fans a review
// request out to the admins.
func (s *Service) SubmitApplication(ctx context.Context, creator models.Profile, title, description, url string) (models.Application, error) {
	title = strings.TrimSpace(title)
	if title == "" {
		return models.Application{}, errors.New("title is required")
	}
	app, err := s.st.InsertApplication(ctx, models.Application{
		CreatorID:   creator.ID,
		Title:       title,
		Description: strings.TrimSpace(description),
		URL:         strings.TrimSpace(url),
		Status:      models.AppPending,
	})
	if err != nil {
		return models.Application{}, err
	}

	s.fanOutToAdmins(ctx, models.NotifyNewApp, "New application submitted",
		fmt.Sprintf("%s submitted %q for review.", creator.Handle, app.Title), &app.ID, &creator.ID)
	return app, nil
}

// StarApplication records the star and notifies the creator once per
// (recipient, type, application, actor): social notifications are deduped
// with a lookup before insert, unlike moderation outcomes.
func (s *Service) StarApplication(ctx context.Context, actor models.Profile, appID string) error {
	app, err := s.st.GetApplicationByID(ctx, appID)
	if err != nil {
		return err
	}
	if err := s.st.InsertStar(ctx, appID, actor.ID); err != nil {
		if errors.Is(err, store.ErrConflict) {
			// Already starred; nothing new to record or announce.
			return nil
		}
		return err
	}
	if app.CreatorID == actor.ID {
		return nil
	}

	exists, err := s.st.NotificationExists(ctx, app.CreatorID, models.NotifyStar, app.ID, actor.ID)
	if err != nil {
		log.Printf("star notification dedup lookup failed app=%s err=%v", appID, err)
		return nil
	}
	if exists {
		return nil
	}
	_ = s.pushNotification(ctx, models.Notification{
		UserID:        app.CreatorID,
		Type:          models.NotifyStar,
		Title:         "New star",
		Message:       fmt.Sprintf("%s starred %q.", actor.Handle, app.Title),
		ApplicationID: &app.ID,
		ActionUserID:  &actor.ID,
	})
	return nil
}

func (s *Service) UnstarApplication(ctx context.Context, actorID, appID string) error {
	if err := s.st.DeleteStar(ctx, appID, actorID); err != nil && !errors.Is(err, store.ErrNotFound) {
		return err
	}
	return nil
}

// CommentApplication stores the comment and notifies the creator. Every
// comment is a distinct event, so no dedup here.
func (s *Service) CommentApplication(ctx context.Context, actor models.Profile, appID, body string) (models.Comment, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return models.Comment{}, errors.New("comment body is required")
	}
	app, err := s.st.GetApplicationByID(ctx, appID)
	if err != nil {
		return models.Comment{}, err
	}
	c, err := s.st.InsertComment(ctx, models.Comment{
		ApplicationID: appID,
		UserID:        actor.ID,
		Body:          body,
	})
	if err != nil {
		return models.Comment{}, err
	}
	if app.CreatorID != actor.ID {
		_ = s.pushNotification(ctx, models.Notification{
			UserID:        app.CreatorID,
			Type:          models.NotifyComment,
			Title:         "New comment",
			Message:       fmt.Sprintf("%s commented on %q.", actor.Handle, app.Title),
			ApplicationID: &app.ID,
			ActionUserID:  &actor.ID,
		})
	}
	return c, nil
}

func (s *Service) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	if limit <= 0 || limit > 100 {
		limit = 25
	}
	return s.st.Leaderboard(ctx, limit)
}
