package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"builderscentral/internal/models"
)

func (s *Store) InsertApplication(ctx context.Context, a models.Application) (models.Application, error) {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = time.Now().UTC()
	}
	if a.Status == "" {
		a.Status = models.AppPending
	}
	_, err := s.exec(ctx,
		`INSERT INTO applications(id,creator_id,title,description,url,status,created_at) VALUES(?,?,?,?,?,?,?)`,
		a.ID, a.CreatorID, a.Title, a.Description, a.URL, a.Status, a.CreatedAt,
	)
	if err != nil {
		return models.Application{}, err
	}
	return a, nil
}

func (s *Store) GetApplicationByID(ctx context.Context, id string) (models.Application, error) {
	var a models.Application
	var reviewedAt sql.NullTime
	err := s.queryRow(ctx,
		`SELECT id,creator_id,title,description,url,status,created_at,reviewed_at FROM applications WHERE id=?`,
		id,
	).Scan(&a.ID, &a.CreatorID, &a.Title, &a.Description, &a.URL, &a.Status, &a.CreatedAt, &reviewedAt)
	if err == sql.ErrNoRows {
		return models.Application{}, ErrNotFound
	}
	if err != nil {
		return models.Application{}, err
	}
	if reviewedAt.Valid {
		t := reviewedAt.Time
		a.ReviewedAt = &t
	}
	return a, nil
}

// ListApplications filters by status when one is given; an empty status
// lists everything.
func (s *Store) ListApplications(ctx context.Context, status models.AppStatus, limit, offset int) ([]models.Application, error) {
	q := `SELECT id,creator_id,title,description,url,status,created_at,reviewed_at FROM applications`
	args := []any{}
	if status != "" {
		q += ` WHERE status=?`
		args = append(args, status)
	}
	q += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)

	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Application
	for rows.Next() {
		var a models.Application
		var reviewedAt sql.NullTime
		if err := rows.Scan(&a.ID, &a.CreatorID, &a.Title, &a.Description, &a.URL, &a.Status, &a.CreatedAt, &reviewedAt); err != nil {
			return nil, err
		}
		if reviewedAt.Valid {
			t := reviewedAt.Time
			a.ReviewedAt = &t
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// UpdateApplicationStatus is the authoritative moderation mutation: the new
// status and the review timestamp land in one statement.
func (s *Store) UpdateApplicationStatus(ctx context.Context, id string, status models.AppStatus, reviewedAt time.Time) error {
	res, err := s.exec(ctx,
		`UPDATE applications SET status=?, reviewed_at=? WHERE id=?`, status, reviewedAt, id)
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

func (s *Store) InsertStar(ctx context.Context, applicationID, userID string) error {
	_, err := s.exec(ctx,
		`INSERT INTO app_stars(application_id,user_id,created_at) VALUES(?,?,?)`,
		applicationID, userID, time.Now().UTC())
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

func (s *Store) DeleteStar(ctx context.Context, applicationID, userID string) error {
	res, err := s.exec(ctx,
		`DELETE FROM app_stars WHERE application_id=? AND user_id=?`, applicationID, userID)
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

func (s *Store) CountStars(ctx context.Context, applicationID string) (int, error) {
	var n int
	err := s.queryRow(ctx,
		`SELECT COUNT(1) FROM app_stars WHERE application_id=?`, applicationID).Scan(&n)
	return n, err
}

func (s *Store) InsertComment(ctx context.Context, c models.Comment) (models.Comment, error) {
	if c.ID == "" {
		c.ID = uuid.NewString()
	}
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	_, err := s.exec(ctx,
		`INSERT INTO app_comments(id,application_id,user_id,body,created_at) VALUES(?,?,?,?,?)`,
		c.ID, c.ApplicationID, c.UserID, c.Body, c.CreatedAt,
	)
	if err != nil {
		return models.Comment{}, err
	}
	return c, nil
}

func (s *Store) ListComments(ctx context.Context, applicationID string, limit, offset int) ([]models.Comment, error) {
	rows, err := s.query(ctx,
		`SELECT id,application_id,user_id,body,created_at FROM app_comments WHERE application_id=? ORDER BY created_at ASC LIMIT ? OFFSET ?`,
		applicationID, limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.Comment
	for rows.Next() {
		var c models.Comment
		if err := rows.Scan(&c.ID, &c.ApplicationID, &c.UserID, &c.Body, &c.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// UpsertRating stores or replaces one admin's score for an application.
func (s *Store) UpsertRating(ctx context.Context, applicationID, adminID string, score int) error {
	_, err := s.exec(ctx, upsertRatingQuery(s.driver),
		applicationID, adminID, score, time.Now().UTC())
	return err
}

// upsertRatingQuery picks the conflict clause: sqlite and postgres share
// ON CONFLICT, mysql only has ON DUPLICATE KEY.
func upsertRatingQuery(driver string) string {
	if driver == "mysql" {
		return `INSERT INTO app_ratings(application_id,admin_id,score,created_at) VALUES(?,?,?,?)
		 ON DUPLICATE KEY UPDATE score=VALUES(score), created_at=VALUES(created_at)`
	}
	return `INSERT INTO app_ratings(application_id,admin_id,score,created_at) VALUES(?,?,?,?)
	 ON CONFLICT(application_id,admin_id) DO UPDATE SET score=excluded.score, created_at=excluded.created_at`
}

// Leaderboard aggregates admin ratings over approved applications, ordered
// by average score, then star count.
func (s *Store) Leaderboard(ctx context.Context, limit int) ([]models.LeaderboardEntry, error) {
	rows, err := s.query(ctx,
		`SELECT a.id, a.title, p.handle,
		        COUNT(r.score), COALESCE(SUM(r.score),0), COALESCE(AVG(r.score),0) AS rating_avg,
		        (SELECT COUNT(1) FROM app_stars st WHERE st.application_id = a.id) AS star_count
		 FROM applications a
		 JOIN profiles p ON p.id = a.creator_id
		 LEFT JOIN app_ratings r ON r.application_id = a.id
		 WHERE a.status = ?
		 GROUP BY a.id, a.title, p.handle
		 ORDER BY rating_avg DESC, star_count DESC
		 LIMIT ?`,
		models.AppApproved, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []models.LeaderboardEntry
	for rows.Next() {
		var e models.LeaderboardEntry
		if err := rows.Scan(&e.ApplicationID, &e.Title, &e.CreatorHandle, &e.RatingCount, &e.RatingTotal, &e.RatingAvg, &e.StarCount); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
