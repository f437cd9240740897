package identity

import (
	"context"
	"errors"
	"fmt"
	netmail "net/mail"
	"strings"

	"builderscentral/internal/store"
)

var ErrInvalidCredentials = errors.New("invalid credentials")
var ErrEmailTaken = errors.New("email already registered")

// Provider is the builtin identity store: email+password rows whose id
// becomes the token subject. Deployments fronted by an external provider
// skip registration/login here and only use the Verifier.
type Provider struct {
	st       *store.Store
	verifier *Verifier
	minLen   int
	maxLen   int
}

func NewProvider(st *store.Store, verifier *Verifier, minPasswordLen, maxPasswordLen int) *Provider {
	return &Provider{st: st, verifier: verifier, minLen: minPasswordLen, maxLen: maxPasswordLen}
}

func (p *Provider) Register(ctx context.Context, email, password string) error {
	email, err := normalizeEmail(email)
	if err != nil {
		return err
	}
	if err := p.validatePassword(password); err != nil {
		return err
	}
	hash, err := HashPassword(password)
	if err != nil {
		return err
	}
	if _, err := p.st.CreateIdentity(ctx, email, hash); err != nil {
		if err == store.ErrConflict {
			return ErrEmailTaken
		}
		return err
	}
	return nil
}

// Login verifies the password and issues an identity token with the
// identity row id as subject.
func (p *Provider) Login(ctx context.Context, email, password string) (string, error) {
	email, err := normalizeEmail(email)
	if err != nil {
		return "", ErrInvalidCredentials
	}
	id, err := p.st.GetIdentityByEmail(ctx, email)
	if err != nil {
		return "", ErrInvalidCredentials
	}
	if !VerifyPassword(id.PasswordHash, password) {
		return "", ErrInvalidCredentials
	}
	return p.verifier.IssueToken(id.ID, id.Email, "")
}

func (p *Provider) validatePassword(pw string) error {
	pw = strings.TrimSpace(pw)
	if pw == "" {
		return errors.New("password is required")
	}
	if len(pw) < p.minLen {
		return fmt.Errorf("password must be at least %d characters", p.minLen)
	}
	if len(pw) > p.maxLen {
		return fmt.Errorf("password must be at most %d characters", p.maxLen)
	}
	return nil
}

func normalizeEmail(email string) (string, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" {
		return "", errors.New("email is required")
	}
	parsed, err := netmail.ParseAddress(email)
	if err != nil {
		return "", errors.New("invalid email address")
	}
	return strings.ToLower(strings.TrimSpace(parsed.Address)), nil
}
