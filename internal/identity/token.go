package identity

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Principal is what the identity collaborator asserts about a signed-in
// actor: a stable subject id, an email, and optionally a suggested handle.
type Principal struct {
	SubjectID string
	Email     string
	Handle    string
}

type Verifier struct {
	key []byte
	ttl time.Duration
}

func NewVerifier(jwtKey string, ttl time.Duration) *Verifier {
	return &Verifier{key: []byte(jwtKey), ttl: ttl}
}

// IssueToken mints an identity token for the builtin provider. External
// providers issue their own tokens with the shared key.
func (v *Verifier) IssueToken(subjectID, email, handle string) (string, error) {
	now := time.Now().UTC()
	claims := jwt.MapClaims{
		"sub":   subjectID,
		"email": email,
		"iat":   now.Unix(),
		"exp":   now.Add(v.ttl).Unix(),
	}
	if handle != "" {
		claims["handle"] = handle
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.key)
}

// VerifyToken parses an identity token into a Principal.
func (v *Verifier) VerifyToken(tokenString string) (Principal, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return v.key, nil
	})
	if err != nil || !token.Valid {
		return Principal{}, fmt.Errorf("invalid or expired identity token")
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Principal{}, fmt.Errorf("invalid token claims")
	}
	sub, _ := claims["sub"].(string)
	email, _ := claims["email"].(string)
	handle, _ := claims["handle"].(string)
	sub = strings.TrimSpace(sub)
	email = strings.ToLower(strings.TrimSpace(email))
	if sub == "" || email == "" {
		return Principal{}, fmt.Errorf("token is missing sub or email")
	}
	return Principal{SubjectID: sub, Email: email, Handle: strings.TrimSpace(handle)}, nil
}

// NewOpaqueToken returns a random session token and its sha256 hex hash;
// only the hash is stored.
func NewOpaqueToken() (raw string, hash string, err error) {
	buf := make([]byte, 32)
	if _, err = rand.Read(buf); err != nil {
		return "", "", err
	}
	raw = base64.RawURLEncoding.EncodeToString(buf)
	sum := sha256.Sum256([]byte(raw))
	hash = hex.EncodeToString(sum[:])
	return raw, hash, nil
}

func HashToken(raw string) string {
	sum := sha256.Sum256([]byte(raw))
	return hex.EncodeToString(sum[:])
}
