// Package auth validates the bearer tokens that identify transaction
// callers. The engine does not mint tokens; the surrounding deployment's
// identity provider signs them with the shared HS256 key.
package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"keygate/internal/platform/middleware"
	id "keygate/pkg/domain"
)

// Validator checks HS256-signed tokens and extracts the caller principal
// from the subject claim.
type Validator struct {
	signingKey []byte
}

// NewValidator creates a token validator with the shared signing key.
func NewValidator(signingKey string) *Validator {
	return &Validator{signingKey: []byte(signingKey)}
}

// ValidateToken implements middleware.JWTValidator.
func (v *Validator) ValidateToken(tokenString string) (*middleware.JWTClaims, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.signingKey, nil
	}, jwt.WithValidMethods([]string{"HS256"}))
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	if !token.Valid {
		return nil, fmt.Errorf("token invalid")
	}

	subject, err := token.Claims.GetSubject()
	if err != nil || subject == "" {
		return nil, fmt.Errorf("token missing subject claim")
	}

	caller, err := id.ParsePrincipal(subject)
	if err != nil {
		return nil, fmt.Errorf("invalid principal in subject: %w", err)
	}

	return &middleware.JWTClaims{Caller: caller}, nil
}
