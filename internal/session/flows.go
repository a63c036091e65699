package session

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/polifeed/internal/client"
	"github.com/wolfeidau/polifeed/internal/models"
	"github.com/wolfeidau/polifeed/internal/storage"
	"github.com/wolfeidau/polifeed/internal/telemetry"
)

// maxProfileAttempts bounds Initialize: the first profile fetch plus one
// fetch after a token refresh.
const maxProfileAttempts = 2

// ErrProfileFetch replaces whatever made GET /users/me fail.
var ErrProfileFetch = errors.New("failed to fetch user profile")

var (
	errNoRefreshToken  = errors.New("no refresh token")
	errRefreshRejected = errors.New("token refresh failed")
	errEmptyTokenPair  = errors.New("token response missing access_token")
)

// Fallback messages when a failure carries no message of its own.
const (
	msgLoginFailed        = "authentication failed"
	msgRegisterFailed     = "registration failed"
	msgResetRequestFailed = "password reset request failed"
	msgResetConfirmFailed = "password reset failed"
)

type registerRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Password string `json:"password"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token"`
}

type passwordResetRequest struct {
	Email string `json:"email"`
}

type passwordResetConfirmRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"new_password"`
}

func (m *Manager) initialize(ctx context.Context) Result {
	m.setState(ctx, loading(false))

	token, err := m.storage.AccessToken(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("failed to read persisted access token")
	}
	if token == "" {
		m.setClient(m.base)
		m.setState(ctx, anonymous(""))
		return Result{}
	}

	m.setClient(m.base.WithAuthToken(token))

	attempt := 0
	user, err := backoff.Retry(ctx, func() (*models.UserProfile, error) {
		attempt++
		if attempt > 1 {
			if err := m.refresh(ctx); err != nil {
				return nil, backoff.Permanent(err)
			}
		}
		return m.fetchUserProfile(ctx)
	},
		backoff.WithBackOff(&backoff.ZeroBackOff{}),
		backoff.WithMaxTries(maxProfileAttempts),
		backoff.WithNotify(func(err error, _ time.Duration) {
			log.Debug().Err(err).Msg("profile fetch failed, refreshing token")
		}),
	)
	if err != nil {
		log.Info().Err(err).Int("attempts", attempt).Msg("could not restore session")

		// a rejected refresh has already logged out
		if !errors.Is(err, errRefreshRejected) {
			m.logout(ctx)
		}
		return Result{}
	}

	m.setState(ctx, authenticated(user))

	log.Info().Str("user", user.Username).Msg("session restored")

	return Result{Success: true, User: user.Clone()}
}

func (m *Manager) login(ctx context.Context, username, password string) Result {
	m.setState(ctx, loading(true))

	user, err := m.authenticate(ctx, func() (*models.TokenPair, error) {
		return m.base.PasswordGrant(ctx, m.endpoints.Auth.Login, username, password)
	})
	if err != nil {
		return m.authFailed(ctx, "login", err, msgLoginFailed)
	}

	m.setState(ctx, authenticated(user))

	log.Info().Str("user", user.Username).Msg("logged in")

	return Result{Success: true, User: user.Clone()}
}

func (m *Manager) register(ctx context.Context, username, email, password string) Result {
	m.setState(ctx, loading(true))

	user, err := m.authenticate(ctx, func() (*models.TokenPair, error) {
		var pair models.TokenPair
		err := m.base.Post(ctx, m.endpoints.Auth.Register, registerRequest{
			Email:    email,
			Username: username,
			Password: password,
		}, &pair)
		if err != nil {
			return nil, err
		}
		return &pair, nil
	})
	if err != nil {
		return m.authFailed(ctx, "register", err, msgRegisterFailed)
	}

	m.setState(ctx, authenticated(user))

	log.Info().Str("user", user.Username).Msg("registered")

	return Result{Success: true, User: user.Clone()}
}

// authenticate runs a credential exchange, persists the pair, attaches the
// access token and fetches the profile.
func (m *Manager) authenticate(ctx context.Context, exchange func() (*models.TokenPair, error)) (*models.UserProfile, error) {
	pair, err := exchange()
	if err != nil {
		return nil, err
	}
	if pair.AccessToken == "" {
		return nil, errEmptyTokenPair
	}

	if err := m.storage.SaveTokens(ctx, *pair); err != nil {
		return nil, err
	}

	m.setClient(m.base.WithAuthToken(pair.AccessToken))

	log.Debug().
		Str("fingerprint", storage.Fingerprint(pair.AccessToken)).
		Msg("access token attached")

	return m.fetchUserProfile(ctx)
}

// authFailed resets to anonymous after a failed login or register. Credentials
// persisted by the failed attempt are dropped so storage matches the state.
func (m *Manager) authFailed(ctx context.Context, op string, err error, fallback string) Result {
	msg := errorMessage(err, fallback)

	log.Warn().Err(err).Str("op", op).Msg("authentication failed")

	m.clearLocal(ctx)
	m.setState(ctx, anonymous(msg))

	return Result{Error: msg}
}

// refresh exchanges the persisted refresh token. A missing token fails
// without touching the state; a rejected exchange logs out.
func (m *Manager) refresh(ctx context.Context) error {
	refreshToken, err := m.storage.RefreshToken(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("failed to read persisted refresh token")
	}
	if refreshToken == "" {
		return errNoRefreshToken
	}

	metrics := telemetry.GetMetrics()
	metrics.TokenRefreshTotal.Add(ctx, 1)

	pair, err := m.exchangeRefreshToken(ctx, refreshToken)
	if err != nil {
		metrics.TokenRefreshErrorsTotal.Add(ctx, 1)
		log.Warn().Err(err).Msg("token refresh failed, logging out")

		m.logout(ctx)
		return fmt.Errorf("%w: %w", errRefreshRejected, err)
	}

	m.setClient(m.base.WithAuthToken(pair.AccessToken))

	log.Debug().
		Str("fingerprint", storage.Fingerprint(pair.AccessToken)).
		Msg("access token refreshed")

	return nil
}

func (m *Manager) exchangeRefreshToken(ctx context.Context, refreshToken string) (*models.TokenPair, error) {
	var pair models.TokenPair
	if err := m.Client().Post(ctx, m.endpoints.Auth.Refresh, refreshRequest{RefreshToken: refreshToken}, &pair); err != nil {
		return nil, err
	}
	if pair.AccessToken == "" {
		return nil, errEmptyTokenPair
	}
	if err := m.storage.SaveTokens(ctx, pair); err != nil {
		return nil, err
	}
	return &pair, nil
}

// logout never fails: the backend is told best effort, local state is always
// cleared.
func (m *Manager) logout(ctx context.Context) {
	if err := m.Client().Post(ctx, m.endpoints.Auth.Logout, nil, nil); err != nil {
		log.Warn().Err(err).Msg("logout notification failed, server session may still be valid")
	}

	m.clearLocal(ctx)
	m.setState(ctx, anonymous(""))
}

// clearLocal drops persisted credentials and the auth header. It ignores
// cancellation of ctx so a cancelled caller still ends up signed out.
func (m *Manager) clearLocal(ctx context.Context) {
	if err := m.storage.Clear(context.WithoutCancel(ctx)); err != nil {
		log.Error().Err(err).Msg("failed to clear persisted credentials")
	}
	m.setClient(m.base)
}

func (m *Manager) requestPasswordReset(ctx context.Context, email string) Result {
	err := m.Client().Post(ctx, m.endpoints.Auth.ResetPassword, passwordResetRequest{Email: email}, nil)
	if err != nil {
		log.Warn().Err(err).Msg("password reset request failed")
		return Result{Error: errorMessage(err, msgResetRequestFailed)}
	}
	return Result{Success: true}
}

func (m *Manager) confirmPasswordReset(ctx context.Context, token, newPassword string) Result {
	err := m.Client().Post(ctx, m.endpoints.Auth.ConfirmPassword, passwordResetConfirmRequest{
		Token:       token,
		NewPassword: newPassword,
	}, nil)
	if err != nil {
		log.Warn().Err(err).Msg("password reset confirmation failed")
		return Result{Error: errorMessage(err, msgResetConfirmFailed)}
	}
	return Result{Success: true}
}

// FetchUserProfile loads the signed-in user and caches it in storage. Unlike
// the state machine operations it returns an error, wrapping ErrProfileFetch.
// It waits for any in-flight Dispatch so a concurrent Logout cannot be undone
// by a late SaveUser.
func (m *Manager) FetchUserProfile(ctx context.Context) (*models.UserProfile, error) {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	return m.fetchUserProfile(ctx)
}

func (m *Manager) fetchUserProfile(ctx context.Context) (*models.UserProfile, error) {
	var user models.UserProfile
	if err := m.Client().Get(ctx, m.endpoints.Users.Me, nil, &user); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrProfileFetch, err)
	}

	if err := m.storage.SaveUser(ctx, &user); err != nil {
		log.Warn().Err(err).Msg("failed to cache user profile")
	}

	return &user, nil
}

// CachedUser returns the profile saved by the last successful fetch.
func (m *Manager) CachedUser(ctx context.Context) (*models.UserProfile, error) {
	return m.storage.User(ctx)
}

func errorMessage(err error, fallback string) string {
	if errors.Is(err, ErrProfileFetch) {
		return ErrProfileFetch.Error()
	}
	if msg := client.Message(err); msg != "" {
		return msg
	}
	return fallback
}
