package store

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"builderscentral/internal/models"
)

func (s *Store) CreateIdentity(ctx context.Context, email, passwordHash string) (models.Identity, error) {
	id := models.Identity{ID: uuid.NewString(), Email: email, PasswordHash: passwordHash, CreatedAt: time.Now().UTC()}
	_, err := s.exec(ctx,
		`INSERT INTO identities(id,email,password_hash,created_at) VALUES(?,?,?,?)`,
		id.ID, id.Email, id.PasswordHash, id.CreatedAt,
	)
	if isUniqueViolation(err) {
		return models.Identity{}, ErrConflict
	}
	if err != nil {
		return models.Identity{}, err
	}
	return id, nil
}

func (s *Store) GetIdentityByEmail(ctx context.Context, email string) (models.Identity, error) {
	var id models.Identity
	err := s.queryRow(ctx,
		`SELECT id,email,password_hash,created_at FROM identities WHERE email=?`, email,
	).Scan(&id.ID, &id.Email, &id.PasswordHash, &id.CreatedAt)
	if err == sql.ErrNoRows {
		return models.Identity{}, ErrNotFound
	}
	if err != nil {
		return models.Identity{}, err
	}
	return id, nil
}
