package middleware

import (
	"context"

	"builderscentral/internal/models"
)

type ctxKey string

const (
	ctxProfile ctxKey = "profile"
	ctxSession ctxKey = "session"
)

func WithProfile(ctx context.Context, p models.Profile) context.Context {
	return context.WithValue(ctx, ctxProfile, p)
}

func Profile(ctx context.Context) (models.Profile, bool) {
	p, ok := ctx.Value(ctxProfile).(models.Profile)
	return p, ok
}

func WithSession(ctx context.Context, s models.Session) context.Context {
	return context.WithValue(ctx, ctxSession, s)
}

func Session(ctx context.Context) (models.Session, bool) {
	s, ok := ctx.Value(ctxSession).(models.Session)
	return s, ok
}
