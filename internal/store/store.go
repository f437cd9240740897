package store

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"builderscentral/internal/models"
)

var ErrNotFound = errors.New("not found")
var ErrConflict = errors.New("conflict")

type Store struct {
	db     *sql.DB
	driver string
}

// New wraps the opened database. driver is the config driver name
// (sqlite, postgres, mysql); queries are written with ? placeholders and
// rebound per driver.
func New(db *sql.DB, driver string) *Store {
	if driver == "" {
		driver = "sqlite"
	}
	return &Store{db: db, driver: driver}
}

func (s *Store) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// rebind numbers the ? placeholders for postgres. The pgx stdlib driver
// passes SQL through verbatim, so $N must be produced here.
func (s *Store) rebind(q string) string {
	if s.driver != "postgres" {
		return q
	}
	var b strings.Builder
	b.Grow(len(q) + 8)
	n := 0
	for i := 0; i < len(q); i++ {
		if q[i] != '?' {
			b.WriteByte(q[i])
			continue
		}
		n++
		b.WriteByte('$')
		b.WriteString(strconv.Itoa(n))
	}
	return b.String()
}

func (s *Store) exec(ctx context.Context, q string, args ...any) (sql.Result, error) {
	return s.db.ExecContext(ctx, s.rebind(q), args...)
}

func (s *Store) query(ctx context.Context, q string, args ...any) (*sql.Rows, error) {
	return s.db.QueryContext(ctx, s.rebind(q), args...)
}

func (s *Store) queryRow(ctx context.Context, q string, args ...any) *sql.Row {
	return s.db.QueryRowContext(ctx, s.rebind(q), args...)
}

// isUniqueViolation folds the driver-specific duplicate-key errors
// (sqlite, pgx, mysql) into one check.
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique") || strings.Contains(msg, "duplicate")
}

func (s *Store) GetProfileByID(ctx context.Context, id string) (models.Profile, error) {
	return s.scanProfile(s.queryRow(ctx,
		`SELECT id,email,handle,role,approved,public_email,created_at FROM profiles WHERE id=?`, id))
}

func (s *Store) GetProfileByEmail(ctx context.Context, email string) (models.Profile, error) {
	return s.scanProfile(s.queryRow(ctx,
		`SELECT id,email,handle,role,approved,public_email,created_at FROM profiles WHERE email=?`, email))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanProfile(row rowScanner) (models.Profile, error) {
	var p models.Profile
	var approved, publicEmail int
	err := row.Scan(&p.ID, &p.Email, &p.Handle, &p.Role, &approved, &publicEmail, &p.CreatedAt)
	if err == sql.ErrNoRows {
		return models.Profile{}, ErrNotFound
	}
	if err != nil {
		return models.Profile{}, err
	}
	p.Approved = approved == 1
	p.PublicEmail = publicEmail == 1
	return p, nil
}

// InsertProfile stores a new profile row. A duplicate id, email, or handle
// surfaces as ErrConflict so concurrent bootstraps can re-fetch instead of
// creating a second row.
func (s *Store) InsertProfile(ctx context.Context, p models.Profile) error {
	_, err := s.exec(ctx,
		`INSERT INTO profiles(id,email,handle,role,approved,public_email,created_at) VALUES(?,?,?,?,?,?,?)`,
		p.ID, p.Email, p.Handle, p.Role, boolToInt(p.Approved), boolToInt(p.PublicEmail), p.CreatedAt,
	)
	if isUniqueViolation(err) {
		return ErrConflict
	}
	return err
}

// RewriteProfileID changes the row's primary key in place (legacy identity
// migration). Rows in other tables that reference the old id are left as-is.
func (s *Store) RewriteProfileID(ctx context.Context, oldID, newID string) error {
	res, err := s.exec(ctx, `UPDATE profiles SET id=? WHERE id=?`, newID, oldID)
	if isUniqueViolation(err) {
		return ErrConflict
	}
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

func (s *Store) UpdateProfileApproved(ctx context.Context, id string, approved bool) error {
	res, err := s.exec(ctx, `UPDATE profiles SET approved=? WHERE id=?`, boolToInt(approved), id)
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

// UpdateProfileOwner applies the owner-mutable fields.
func (s *Store) UpdateProfileOwner(ctx context.Context, id, handle string, publicEmail bool) error {
	res, err := s.exec(ctx,
		`UPDATE profiles SET handle=?, public_email=? WHERE id=?`, handle, boolToInt(publicEmail), id)
	if isUniqueViolation(err) {
		return ErrConflict
	}
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

// PromoteProfileAdmin forces the row into the admin role with approval set,
// used only by the bootstrap-admin path.
func (s *Store) PromoteProfileAdmin(ctx context.Context, id string) error {
	_, err := s.exec(ctx, `UPDATE profiles SET role='admin', approved=1 WHERE id=?`, id)
	return err
}

func (s *Store) DeleteProfile(ctx context.Context, id string) error {
	res, err := s.exec(ctx, `DELETE FROM profiles WHERE id=?`, id)
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

func (s *Store) ListProfilesByRole(ctx context.Context, role models.Role) ([]models.Profile, error) {
	rows, err := s.query(ctx,
		`SELECT id,email,handle,role,approved,public_email,created_at FROM profiles WHERE role=? ORDER BY created_at ASC`, role)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return s.collectProfiles(rows)
}

// ListProfiles returns profiles filtered by approval state.
// approved == nil lists everything.
func (s *Store) ListProfiles(ctx context.Context, approved *bool, limit, offset int) ([]models.Profile, error) {
	q := `SELECT id,email,handle,role,approved,public_email,created_at FROM profiles`
	args := []any{}
	if approved != nil {
		q += ` WHERE approved=?`
		args = append(args, boolToInt(*approved))
	}
	q += ` ORDER BY created_at DESC LIMIT ? OFFSET ?`
	args = append(args, limit, offset)
	rows, err := s.query(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return s.collectProfiles(rows)
}

func (s *Store) HandleTaken(ctx context.Context, handle string) (bool, error) {
	var n int
	if err := s.queryRow(ctx, `SELECT COUNT(1) FROM profiles WHERE handle=?`, handle).Scan(&n); err != nil {
		return false, err
	}
	return n > 0, nil
}

func (s *Store) collectProfiles(rows *sql.Rows) ([]models.Profile, error) {
	var out []models.Profile
	for rows.Next() {
		p, err := s.scanProfile(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) InsertAudit(ctx context.Context, actorID, action, target, metadata string) error {
	_, err := s.exec(ctx,
		`INSERT INTO audit_log(id,actor_id,action,target,metadata_json,created_at) VALUES(?,?,?,?,?,?)`,
		uuid.NewString(), actorID, action, target, metadata, time.Now().UTC(),
	)
	return err
}

func (s *Store) ListAudit(ctx context.Context, limit, offset int) ([]models.AuditEntry, error) {
	rows, err := s.query(ctx,
		`SELECT id,actor_id,action,target,metadata_json,created_at FROM audit_log ORDER BY created_at DESC LIMIT ? OFFSET ?`,
		limit, offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]models.AuditEntry, 0, limit)
	for rows.Next() {
		var e models.AuditEntry
		if err := rows.Scan(&e.ID, &e.ActorID, &e.Action, &e.Target, &e.MetadataJSON, &e.CreatedAt); err != nil {
			return nil, err
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func boolToInt(v bool) int {
	if v {
		return 1
	}
	return 0
}
