package service

import (
	"context"
	"errors"
	"strings"
	"testing"

	"builderscentral/internal/models"
	"builderscentral/internal/notify"
	"builderscentral/internal/store"
)

func TestApproveUserSetsFlagAndNotifies(t *testing.T) {
	svc, st, sender := newTestService(t)
	admin := addProfile(t, st, "admin-1", "admin@example.com", "admin", models.RoleAdmin, true)
	target := addProfile(t, st, "u-1", "alice@example.com", "alice", models.RoleUser, false)

	emailSent, err := svc.ApproveUser(context.Background(), admin.ID, target.ID)
	if err != nil {
		t.Fatalf("approve user: %v", err)
	}
	if !emailSent {
		t.Fatalf("expected email_sent=true with a working sender")
	}

	got, err := st.GetProfileByID(context.Background(), target.ID)
	if err != nil {
		t.Fatalf("load profile: %v", err)
	}
	if !got.Approved {
		t.Fatalf("approval flag must be set")
	}

	sends := sender.all()
	if len(sends) != 1 || sends[0].kind != notify.KindApproval || sends[0].email != "alice@example.com" {
		t.Fatalf("unexpected mail sends: %+v", sends)
	}
	if n := notificationsOfType(t, st, target.ID, models.NotifySuccess); len(n) != 1 {
		t.Fatalf("expected 1 success notification, got %d", len(n))
	}
}

func TestRejectUserEmailsThenDeletes(t *testing.T) {
	svc, st, sender := newTestService(t)
	admin := addProfile(t, st, "admin-1", "admin@example.com", "admin", models.RoleAdmin, true)
	target := addProfile(t, st, "u-1", "bob@example.com", "bob", models.RoleUser, false)

	raw, err := svc.IssueSession(context.Background(), target.ID, "127.0.0.1", "test-agent")
	if err != nil {
		t.Fatalf("issue session: %v", err)
	}

	emailSent, err := svc.RejectUser(context.Background(), admin.ID, target.ID)
	if err != nil {
		t.Fatalf("reject user: %v", err)
	}
	if !emailSent {
		t.Fatalf("rejection mail must go out while the address is still known")
	}
	sends := sender.all()
	if len(sends) != 1 || sends[0].kind != notify.KindRejection || sends[0].email != "bob@example.com" {
		t.Fatalf("unexpected mail sends: %+v", sends)
	}

	if _, err := st.GetProfileByID(context.Background(), target.ID); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("rejected profile must be deleted, got err=%v", err)
	}
	if _, _, err := svc.ValidateSession(context.Background(), raw); err == nil {
		t.Fatalf("rejected user's session must no longer validate")
	}
}

func TestRejectUserMissingTarget(t *testing.T) {
	svc, st, _ := newTestService(t)
	admin := addProfile(t, st, "admin-1", "admin@example.com", "admin", models.RoleAdmin, true)

	if _, err := svc.RejectUser(context.Background(), admin.ID, "ghost"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected not found for missing target, got %v", err)
	}
}

func TestReviewApplicationNotifiesCreator(t *testing.T) {
	svc, st, _ := newTestService(t)
	admin := addProfile(t, st, "admin-1", "admin@example.com", "admin", models.RoleAdmin, true)
	creator := addProfile(t, st, "u-1", "carol@example.com", "carol", models.RoleUser, true)

	app, err := svc.SubmitApplication(context.Background(), creator, "Weather Wizard", "forecasts", "https://weather.example")
	if err != nil {
		t.Fatalf("submit application: %v", err)
	}

	reviewed, err := svc.ReviewApplication(context.Background(), admin.ID, app.ID, models.AppApproved)
	if err != nil {
		t.Fatalf("review application: %v", err)
	}
	if reviewed.Status != models.AppApproved || reviewed.ReviewedAt == nil {
		t.Fatalf("unexpected application after review: %+v", reviewed)
	}

	approvals := notificationsOfType(t, st, creator.ID, models.NotifyApproval)
	if len(approvals) != 1 {
		t.Fatalf("expected 1 approval notification, got %d", len(approvals))
	}
	if !strings.Contains(approvals[0].Message, `"Weather Wizard"`) {
		t.Fatalf("notification must quote the title, got %q", approvals[0].Message)
	}
}

func TestReviewApplicationDoesNotDedup(t *testing.T) {
	svc, st, _ := newTestService(t)
	admin := addProfile(t, st, "admin-1", "admin@example.com", "admin", models.RoleAdmin, true)
	creator := addProfile(t, st, "u-1", "carol@example.com", "carol", models.RoleUser, true)

	app, err := svc.SubmitApplication(context.Background(), creator, "Weather Wizard", "", "")
	if err != nil {
		t.Fatalf("submit application: %v", err)
	}

	// Each moderation decision is authoritative and announced, even repeats.
	for i := 0; i < 2; i++ {
		if _, err := svc.ReviewApplication(context.Background(), admin.ID, app.ID, models.AppRejected); err != nil {
			t.Fatalf("review %d: %v", i, err)
		}
	}
	if got := notificationsOfType(t, st, creator.ID, models.NotifyRejection); len(got) != 2 {
		t.Fatalf("expected 2 rejection notifications, got %d", len(got))
	}
}

func TestReviewRequestedEmitsNoCreatorNotification(t *testing.T) {
	svc, st, _ := newTestService(t)
	admin := addProfile(t, st, "admin-1", "admin@example.com", "admin", models.RoleAdmin, true)
	creator := addProfile(t, st, "u-1", "carol@example.com", "carol", models.RoleUser, true)

	app, err := svc.SubmitApplication(context.Background(), creator, "Weather Wizard", "", "")
	if err != nil {
		t.Fatalf("submit application: %v", err)
	}
	if _, err := svc.ReviewApplication(context.Background(), admin.ID, app.ID, models.AppReviewRequested); err != nil {
		t.Fatalf("review: %v", err)
	}

	items, err := st.ListNotificationsByRecipient(context.Background(), creator.ID, 100, 0)
	if err != nil {
		t.Fatalf("list notifications: %v", err)
	}
	if len(items) != 0 {
		t.Fatalf("review_requested must stay silent toward the creator, got %d notifications", len(items))
	}
}

func TestReviewApplicationRejectsUnknownStatus(t *testing.T) {
	svc, st, _ := newTestService(t)
	admin := addProfile(t, st, "admin-1", "admin@example.com", "admin", models.RoleAdmin, true)
	creator := addProfile(t, st, "u-1", "carol@example.com", "carol", models.RoleUser, true)
	app, err := svc.SubmitApplication(context.Background(), creator, "Weather Wizard", "", "")
	if err != nil {
		t.Fatalf("submit application: %v", err)
	}
	if _, err := svc.ReviewApplication(context.Background(), admin.ID, app.ID, models.AppPending); err == nil {
		t.Fatalf("pending is not a review decision and must be rejected")
	}
}

func TestStarNotificationsAreDeduped(t *testing.T) {
	svc, st, _ := newTestService(t)
	creator := addProfile(t, st, "u-1", "carol@example.com", "carol", models.RoleUser, true)
	fan := addProfile(t, st, "u-2", "dave@example.com", "dave", models.RoleUser, true)

	app, err := svc.SubmitApplication(context.Background(), creator, "Weather Wizard", "", "")
	if err != nil {
		t.Fatalf("submit application: %v", err)
	}

	if err := svc.StarApplication(context.Background(), fan, app.ID); err != nil {
		t.Fatalf("star: %v", err)
	}
	if err := svc.UnstarApplication(context.Background(), fan.ID, app.ID); err != nil {
		t.Fatalf("unstar: %v", err)
	}
	if err := svc.StarApplication(context.Background(), fan, app.ID); err != nil {
		t.Fatalf("re-star: %v", err)
	}

	if got := notificationsOfType(t, st, creator.ID, models.NotifyStar); len(got) != 1 {
		t.Fatalf("expected 1 star notification across re-stars, got %d", len(got))
	}
	stars, err := st.CountStars(context.Background(), app.ID)
	if err != nil {
		t.Fatalf("count stars: %v", err)
	}
	if stars != 1 {
		t.Fatalf("expected 1 star, got %d", stars)
	}
}

func TestStarOwnApplicationIsSilent(t *testing.T) {
	svc, st, _ := newTestService(t)
	creator := addProfile(t, st, "u-1", "carol@example.com", "carol", models.RoleUser, true)
	app, err := svc.SubmitApplication(context.Background(), creator, "Weather Wizard", "", "")
	if err != nil {
		t.Fatalf("submit application: %v", err)
	}
	if err := svc.StarApplication(context.Background(), creator, app.ID); err != nil {
		t.Fatalf("star: %v", err)
	}
	if got := notificationsOfType(t, st, creator.ID, models.NotifyStar); len(got) != 0 {
		t.Fatalf("self-star must not notify, got %d", len(got))
	}
}

func TestCommentsAlwaysNotify(t *testing.T) {
	svc, st, _ := newTestService(t)
	creator := addProfile(t, st, "u-1", "carol@example.com", "carol", models.RoleUser, true)
	fan := addProfile(t, st, "u-2", "dave@example.com", "dave", models.RoleUser, true)
	app, err := svc.SubmitApplication(context.Background(), creator, "Weather Wizard", "", "")
	if err != nil {
		t.Fatalf("submit application: %v", err)
	}

	for _, body := range []string{"nice!", "still nice"} {
		if _, err := svc.CommentApplication(context.Background(), fan, app.ID, body); err != nil {
			t.Fatalf("comment %q: %v", body, err)
		}
	}
	if got := notificationsOfType(t, st, creator.ID, models.NotifyComment); len(got) != 2 {
		t.Fatalf("every comment notifies, expected 2 got %d", len(got))
	}
}

func TestRateApplicationBounds(t *testing.T) {
	svc, st, _ := newTestService(t)
	admin := addProfile(t, st, "admin-1", "admin@example.com", "admin", models.RoleAdmin, true)
	creator := addProfile(t, st, "u-1", "carol@example.com", "carol", models.RoleUser, true)
	app, err := svc.SubmitApplication(context.Background(), creator, "Weather Wizard", "", "")
	if err != nil {
		t.Fatalf("submit application: %v", err)
	}

	if err := svc.RateApplication(context.Background(), admin.ID, app.ID, 0); err == nil {
		t.Fatalf("score 0 must be rejected")
	}
	if err := svc.RateApplication(context.Background(), admin.ID, app.ID, 6); err == nil {
		t.Fatalf("score 6 must be rejected")
	}
	if err := svc.RateApplication(context.Background(), admin.ID, app.ID, 5); err != nil {
		t.Fatalf("rate: %v", err)
	}
	// Re-rating replaces, not appends.
	if err := svc.RateApplication(context.Background(), admin.ID, app.ID, 3); err != nil {
		t.Fatalf("re-rate: %v", err)
	}
	if _, err := svc.ReviewApplication(context.Background(), admin.ID, app.ID, models.AppApproved); err != nil {
		t.Fatalf("approve app: %v", err)
	}

	board, err := svc.Leaderboard(context.Background(), 10)
	if err != nil {
		t.Fatalf("leaderboard: %v", err)
	}
	if len(board) != 1 {
		t.Fatalf("expected 1 leaderboard entry, got %d", len(board))
	}
	if board[0].RatingCount != 1 || board[0].RatingTotal != 3 {
		t.Fatalf("re-rating must upsert, got %+v", board[0])
	}
}
