// Package storage persists session credentials in a string key/value store.
//
// The AuthStorage wrapper stores the access token, refresh token and the last
// fetched user profile under namespaced keys. Absence of the access token key
// is the only signal that no prior session exists.
package storage

import (
	"context"
	"crypto/sha256"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/mr-tron/base58"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/polifeed/internal/models"
)

// Sentinel errors
var (
	// ErrNotFound is returned when a key is absent.
	ErrNotFound = errors.New("key not found")
)

// Storage keys
const (
	KeyAccessToken  = "political_feed_access_token"
	KeyRefreshToken = "political_feed_refresh_token"
	KeyUser         = "political_feed_user"
)

// Backend is a durable string key/value store.
type Backend interface {
	// Get returns ErrNotFound when the key is absent.
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string) error
	// Delete removes the keys. Missing keys are not an error.
	Delete(ctx context.Context, keys ...string) error
}

// AuthStorage reads and writes session credentials on top of a Backend.
type AuthStorage struct {
	backend Backend
}

// NewAuthStorage creates an AuthStorage backed by b.
func NewAuthStorage(b Backend) *AuthStorage {
	return &AuthStorage{backend: b}
}

// SaveTokens persists both tokens of a pair.
func (s *AuthStorage) SaveTokens(ctx context.Context, pair models.TokenPair) error {
	if err := s.SaveAccessToken(ctx, pair.AccessToken); err != nil {
		return err
	}
	return s.SaveRefreshToken(ctx, pair.RefreshToken)
}

func (s *AuthStorage) SaveAccessToken(ctx context.Context, token string) error {
	if err := s.backend.Set(ctx, KeyAccessToken, token); err != nil {
		return fmt.Errorf("failed to save access token: %w", err)
	}
	return nil
}

// AccessToken returns the persisted access token, or "" when there is none.
func (s *AuthStorage) AccessToken(ctx context.Context) (string, error) {
	return s.get(ctx, KeyAccessToken)
}

func (s *AuthStorage) SaveRefreshToken(ctx context.Context, token string) error {
	if err := s.backend.Set(ctx, KeyRefreshToken, token); err != nil {
		return fmt.Errorf("failed to save refresh token: %w", err)
	}
	return nil
}

// RefreshToken returns the persisted refresh token, or "" when there is none.
func (s *AuthStorage) RefreshToken(ctx context.Context) (string, error) {
	return s.get(ctx, KeyRefreshToken)
}

// SaveUser stores the profile as JSON.
func (s *AuthStorage) SaveUser(ctx context.Context, user *models.UserProfile) error {
	data, err := json.Marshal(user)
	if err != nil {
		return fmt.Errorf("failed to marshal user: %w", err)
	}

	if err := s.backend.Set(ctx, KeyUser, string(data)); err != nil {
		return fmt.Errorf("failed to save user: %w", err)
	}
	return nil
}

// User returns the cached profile. A missing or unparseable entry yields nil
// without an error.
func (s *AuthStorage) User(ctx context.Context) (*models.UserProfile, error) {
	data, err := s.get(ctx, KeyUser)
	if err != nil || data == "" {
		return nil, err
	}

	var user models.UserProfile
	if err := json.Unmarshal([]byte(data), &user); err != nil {
		log.Warn().Err(err).Msg("failed to parse stored user")
		return nil, nil
	}

	return &user, nil
}

// Clear removes every session key.
func (s *AuthStorage) Clear(ctx context.Context) error {
	if err := s.backend.Delete(ctx, KeyAccessToken, KeyRefreshToken, KeyUser); err != nil {
		return fmt.Errorf("failed to clear auth storage: %w", err)
	}
	return nil
}

func (s *AuthStorage) get(ctx context.Context, key string) (string, error) {
	v, err := s.backend.Get(ctx, key)
	if errors.Is(err, ErrNotFound) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to read %s: %w", key, err)
	}
	return v, nil
}

// Fingerprint returns a short, non-reversible identifier for a token
// (Base58-encoded SHA256) suitable for logs and display.
func Fingerprint(token string) string {
	if token == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(token))
	return base58.Encode(hash[:])[:12]
}
