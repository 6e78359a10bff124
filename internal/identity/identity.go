// Package identity resolves client-presented JWTs to user ids. Token
// issuance belongs to the auth service; the real-time server only validates
// and extracts the subject.
package identity

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Resolver validates HS256 tokens signed with a shared secret.
type Resolver struct {
	secret []byte
}

// NewResolver creates a Resolver for the given signing secret.
func NewResolver(secret []byte) *Resolver {
	return &Resolver{secret: secret}
}

// Resolve validates the token and returns the user id from its subject
// claim. Expired, unsigned, or wrong-algorithm tokens are rejected.
func (r *Resolver) Resolve(tokenString string) (string, error) {
	token, err := jwt.ParseWithClaims(tokenString, &jwt.RegisteredClaims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return r.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("identity: token validation failed: %w", err)
	}

	claims, ok := token.Claims.(*jwt.RegisteredClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("identity: invalid token")
	}
	if claims.Subject == "" {
		return "", fmt.Errorf("identity: token has no subject")
	}
	return claims.Subject, nil
}

// Sign issues a token for the given user id. It exists for development
// tooling and tests; production tokens come from the auth service.
func Sign(secret []byte, userID string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Subject:   userID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(secret)
	if err != nil {
		return "", fmt.Errorf("identity: failed to sign token: %w", err)
	}
	return signed, nil
}
