// Package auth verifies caller identity for gateway requests. The gateway
// does not issue tokens; it validates JWTs minted by the account service
// and extracts the caller's user ID and plan from the claims.
package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Claims holds the JWT payload the gateway cares about.
type Claims struct {
	jwt.RegisteredClaims
	UserID string `json:"uid"`
	Plan   string `json:"plan"`
}

// Verifier validates access tokens signed with a shared HMAC secret.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret []byte) *Verifier {
	return &Verifier{secret: secret}
}

// Verify parses and validates a JWT access token, returning the claims.
func (v *Verifier) Verify(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(_ *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}
	if claims.UserID == "" {
		return nil, fmt.Errorf("token missing uid claim")
	}
	return claims, nil
}
