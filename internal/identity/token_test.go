package identity

import (
	"testing"
	"time"
)

func TestIssueAndVerifyToken(t *testing.T) {
	v := NewVerifier("test-identity-key-0123456789abcdef", 10*time.Minute)
	token, err := v.IssueToken("u-1", "Alice@Example.com", "alice")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	pr, err := v.VerifyToken(token)
	if err != nil {
		t.Fatalf("verify token: %v", err)
	}
	if pr.SubjectID != "u-1" {
		t.Fatalf("expected subject u-1, got %q", pr.SubjectID)
	}
	if pr.Email != "alice@example.com" {
		t.Fatalf("email must be lowercased, got %q", pr.Email)
	}
	if pr.Handle != "alice" {
		t.Fatalf("expected handle alice, got %q", pr.Handle)
	}
}

func TestVerifyTokenRejectsWrongKey(t *testing.T) {
	issuer := NewVerifier("test-identity-key-0123456789abcdef", 10*time.Minute)
	token, err := issuer.IssueToken("u-1", "alice@example.com", "")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	other := NewVerifier("a-completely-different-key-value-here", 10*time.Minute)
	if _, err := other.VerifyToken(token); err == nil {
		t.Fatalf("token signed with a different key must not verify")
	}
}

func TestVerifyTokenRejectsExpired(t *testing.T) {
	v := NewVerifier("test-identity-key-0123456789abcdef", -time.Minute)
	token, err := v.IssueToken("u-1", "alice@example.com", "")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	if _, err := v.VerifyToken(token); err == nil {
		t.Fatalf("expired token must not verify")
	}
}

func TestOpaqueTokenHashMatches(t *testing.T) {
	raw, hash, err := NewOpaqueToken()
	if err != nil {
		t.Fatalf("new token: %v", err)
	}
	if raw == "" || hash == "" {
		t.Fatalf("token and hash must be non-empty")
	}
	if HashToken(raw) != hash {
		t.Fatalf("hash must be reproducible from the raw token")
	}
}
