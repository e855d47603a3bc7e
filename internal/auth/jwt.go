package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

var ErrUnauthenticated = errors.New("unauthenticated")

// Verifier resolves a signed bearer token into an opaque user id principal.
// Token issuance belongs to the external auth service; this side only
// verifies the HMAC signature and standard claims.
type Verifier struct {
	secret []byte
}

// NewVerifier builds a Verifier for the shared HMAC secret.
func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// ResolvePrincipal validates the token and returns the user id from the
// subject claim. Any parse, signature or expiry failure resolves to
// ErrUnauthenticated; callers fail closed.
func (v *Verifier) ResolvePrincipal(token string) (string, error) {
	parsed, err := jwt.Parse(token, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !parsed.Valid {
		return "", ErrUnauthenticated
	}

	subject, err := parsed.Claims.GetSubject()
	if err != nil || subject == "" {
		return "", ErrUnauthenticated
	}
	return subject, nil
}
