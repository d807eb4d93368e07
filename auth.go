package main

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// TokenVerifier resolves platform-issued bearer tokens into stable player
// identifiers. The platform signs tokens with the app secret using HMAC;
// nothing else is trusted.
type TokenVerifier struct {
	secret []byte
}

// NewTokenVerifier creates a verifier for the given app secret.
func NewTokenVerifier(secret []byte) *TokenVerifier {
	return &TokenVerifier{secret: secret}
}

// Verify validates a token and returns the player id from its "id" claim.
func (v *TokenVerifier) Verify(tokenStr string) (string, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method")
		}
		return v.secret, nil
	})
	if err != nil {
		return "", err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return "", fmt.Errorf("invalid token")
	}
	id, ok := claims["id"].(string)
	if !ok || id == "" {
		return "", fmt.Errorf("invalid token claims")
	}
	return id, nil
}

// MintToken signs a token for a player id. Used by the local platform
// mode and tests; hosted platforms issue their own tokens.
func (v *TokenVerifier) MintToken(playerID string) (string, error) {
	claims := jwt.MapClaims{
		"type": "anonymous",
		"id":   playerID,
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(v.secret)
}
