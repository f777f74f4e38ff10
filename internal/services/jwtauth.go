package services

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Principal is the authenticated user as reported by the identity provider.
type Principal struct {
	UID         string
	Email       string
	DisplayName string
	PhotoURL    string
}

// JWTAuth verifies bearer tokens minted by the identity provider. Tokens are
// HS256-signed and carry the principal in uid/email/name/picture claims.
type JWTAuth struct {
	secret []byte
}

// NewJWTAuth creates a verifier with the given shared secret.
func NewJWTAuth(secret string) (JWTAuth, error) {
	if secret == "" {
		return JWTAuth{}, errors.New("auth secret is required")
	}
	return JWTAuth{secret: []byte(secret)}, nil
}

// Verify parses and validates the token and extracts the principal.
func (a JWTAuth) Verify(_ context.Context, tokenString string) (Principal, error) {
	token, err := jwt.Parse(tokenString, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrTokenSignatureInvalid
		}
		return a.secret, nil
	})
	if err != nil {
		return Principal{}, fmt.Errorf("failed to parse token: %w", err)
	}
	if !token.Valid {
		return Principal{}, errors.New("invalid token")
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return Principal{}, errors.New("invalid token claims")
	}
	uid, ok := claims["uid"].(string)
	if !ok || uid == "" {
		return Principal{}, errors.New("token is missing uid claim")
	}

	p := Principal{UID: uid}
	if email, ok := claims["email"].(string); ok {
		p.Email = email
	}
	if name, ok := claims["name"].(string); ok {
		p.DisplayName = name
	}
	if picture, ok := claims["picture"].(string); ok {
		p.PhotoURL = picture
	}
	return p, nil
}
