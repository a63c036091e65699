package models

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// ErrNoExpiry is returned when the access token carries no exp claim.
var ErrNoExpiry = errors.New("access token has no expiry")

// TokenPair is the credential material issued by login, register and refresh.
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
}

// AccessExpiry reads the exp claim of the access token without verifying the
// signature. The backend remains the authority on validity; this is only used
// for display.
func (t TokenPair) AccessExpiry() (time.Time, error) {
	return TokenExpiry(t.AccessToken)
}

// TokenExpiry parses a JWT without verification and returns its exp claim.
func TokenExpiry(token string) (time.Time, error) {
	claims := jwt.RegisteredClaims{}

	_, _, err := jwt.NewParser().ParseUnverified(token, &claims)
	if err != nil {
		return time.Time{}, fmt.Errorf("failed to parse token: %w", err)
	}

	if claims.ExpiresAt == nil {
		return time.Time{}, ErrNoExpiry
	}

	return claims.ExpiresAt.Time, nil
}
