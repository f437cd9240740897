package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"builderscentral/internal/models"
)

func (s *Store) InsertNotification(ctx context.Context, n models.Notification) (models.Notification, error) {
	if n.ID == "" {
		n.ID = uuid.NewString()
	}
	if n.CreatedAt.IsZero() {
		n.CreatedAt = time.Now().UTC()
	}
	_, err := s.exec(ctx,
		`INSERT INTO notifications(id,user_id,type,title,message,is_read,application_id,action_user_id,created_at) VALUES(?,?,?,?,?,?,?,?,?)`,
		n.ID, n.UserID, n.Type, n.Title, n.Message, boolToInt(n.Read), n.ApplicationID, n.ActionUserID, n.CreatedAt,
	)
	if err != nil {
		return models.Notification{}, err
	}
	return n, nil
}

func (s *Store) ListNotificationsByRecipient(ctx context.Context, recipientID string, limit, offset int) ([]models.Notification, error) {
	rows, err := s.query(ctx,
		`SELECT id,user_id,type,title,message,is_read,application_id,action_user_id,created_at
		 FROM notifications WHERE user_id=? ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		recipientID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Notification
	for rows.Next() {
		var n models.Notification
		var read int
		var appID, actorID sql.NullString
		if err := rows.Scan(&n.ID, &n.UserID, &n.Type, &n.Title, &n.Message, &read, &appID, &actorID, &n.CreatedAt); err != nil {
			return nil, err
		}
		n.Read = read == 1
		if appID.Valid {
			v := appID.String
			n.ApplicationID = &v
		}
		if actorID.Valid {
			v := actorID.String
			n.ActionUserID = &v
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func (s *Store) CountUnreadNotifications(ctx context.Context, recipientID string) (int, error) {
	var n int
	err := s.queryRow(ctx,
		`SELECT COUNT(1) FROM notifications WHERE user_id=? AND is_read=0`, recipientID).Scan(&n)
	return n, err
}

// MarkNotificationRead flips the read flag. The recipient id is part of the
// predicate so one user cannot touch another's rows.
func (s *Store) MarkNotificationRead(ctx context.Context, id, recipientID string, read bool) error {
	res, err := s.exec(ctx,
		`UPDATE notifications SET is_read=? WHERE id=? AND user_id=?`, boolToInt(read), id, recipientID)
	if err != nil {
		return err
	}
	rows, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if rows == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *Store) MarkAllNotificationsRead(ctx context.Context, recipientID string) error {
	_, err := s.exec(ctx,
		`UPDATE notifications SET is_read=1 WHERE user_id=? AND is_read=0`, recipientID)
	return err
}

// NotificationExists reports whether a matching fan-out row is already
// stored; social notifications are deduped with this lookup before insert.
func (s *Store) NotificationExists(ctx context.Context, recipientID, typ, applicationID, actionUserID string) (bool, error) {
	var n int
	err := s.queryRow(ctx,
		`SELECT COUNT(1) FROM notifications WHERE user_id=? AND type=? AND application_id=? AND action_user_id=?`,
		recipientID, typ, applicationID, actionUserID).Scan(&n)
	if err != nil {
		return false, err
	}
	return n > 0, nil
}
