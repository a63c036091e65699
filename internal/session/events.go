package session

import (
	"context"
)

// Event is a request to move the state machine. Events are created with the
// constructors below and processed by Manager.Dispatch.
type Event interface {
	Name() string
	apply(ctx context.Context, m *Manager) Result
}

// Dispatch processes one event. Events are handled one at a time; a second
// Dispatch blocks until the first has settled.
func (m *Manager) Dispatch(ctx context.Context, ev Event) Result {
	m.opMu.Lock()
	defer m.opMu.Unlock()

	return ev.apply(ctx, m)
}

type initializeEvent struct{}

// InitializeEvent restores a persisted session.
func InitializeEvent() Event { return initializeEvent{} }

func (initializeEvent) Name() string { return "initialize" }
func (initializeEvent) apply(ctx context.Context, m *Manager) Result {
	return m.initialize(ctx)
}

type loginEvent struct {
	username string
	password string
}

// LoginEvent signs in with a username and password.
func LoginEvent(username, password string) Event {
	return loginEvent{username: username, password: password}
}

func (loginEvent) Name() string { return "login" }
func (e loginEvent) apply(ctx context.Context, m *Manager) Result {
	return m.login(ctx, e.username, e.password)
}

type registerEvent struct {
	username string
	email    string
	password string
}

// RegisterEvent creates an account and signs in with it.
func RegisterEvent(username, email, password string) Event {
	return registerEvent{username: username, email: email, password: password}
}

func (registerEvent) Name() string { return "register" }
func (e registerEvent) apply(ctx context.Context, m *Manager) Result {
	return m.register(ctx, e.username, e.email, e.password)
}

type logoutEvent struct{}

// LogoutEvent ends the session locally and, best effort, on the backend.
func LogoutEvent() Event { return logoutEvent{} }

func (logoutEvent) Name() string { return "logout" }
func (logoutEvent) apply(ctx context.Context, m *Manager) Result {
	m.logout(ctx)
	return Result{Success: true}
}

type refreshEvent struct{}

// RefreshEvent exchanges the persisted refresh token for a new pair.
func RefreshEvent() Event { return refreshEvent{} }

func (refreshEvent) Name() string { return "refresh" }
func (refreshEvent) apply(ctx context.Context, m *Manager) Result {
	return Result{Success: m.refresh(ctx) == nil}
}

type requestPasswordResetEvent struct {
	email string
}

// RequestPasswordResetEvent asks the backend to mail a reset token.
func RequestPasswordResetEvent(email string) Event {
	return requestPasswordResetEvent{email: email}
}

func (requestPasswordResetEvent) Name() string { return "request_password_reset" }
func (e requestPasswordResetEvent) apply(ctx context.Context, m *Manager) Result {
	return m.requestPasswordReset(ctx, e.email)
}

type confirmPasswordResetEvent struct {
	token       string
	newPassword string
}

// ConfirmPasswordResetEvent sets a new password using a reset token.
func ConfirmPasswordResetEvent(token, newPassword string) Event {
	return confirmPasswordResetEvent{token: token, newPassword: newPassword}
}

func (confirmPasswordResetEvent) Name() string { return "confirm_password_reset" }
func (e confirmPasswordResetEvent) apply(ctx context.Context, m *Manager) Result {
	return m.confirmPasswordReset(ctx, e.token, e.newPassword)
}

// Initialize restores a persisted session. See InitializeEvent.
func (m *Manager) Initialize(ctx context.Context) Result {
	return m.Dispatch(ctx, InitializeEvent())
}

// Login signs in. See LoginEvent.
func (m *Manager) Login(ctx context.Context, username, password string) Result {
	return m.Dispatch(ctx, LoginEvent(username, password))
}

// Register creates an account. See RegisterEvent.
func (m *Manager) Register(ctx context.Context, username, email, password string) Result {
	return m.Dispatch(ctx, RegisterEvent(username, email, password))
}

// Logout always succeeds locally. See LogoutEvent.
func (m *Manager) Logout(ctx context.Context) {
	m.Dispatch(ctx, LogoutEvent())
}

// Refresh reports whether a new token pair was obtained. See RefreshEvent.
func (m *Manager) Refresh(ctx context.Context) bool {
	return m.Dispatch(ctx, RefreshEvent()).Success
}

// RequestPasswordReset see RequestPasswordResetEvent.
func (m *Manager) RequestPasswordReset(ctx context.Context, email string) Result {
	return m.Dispatch(ctx, RequestPasswordResetEvent(email))
}

// ConfirmPasswordReset see ConfirmPasswordResetEvent.
func (m *Manager) ConfirmPasswordReset(ctx context.Context, token, newPassword string) Result {
	return m.Dispatch(ctx, ConfirmPasswordResetEvent(token, newPassword))
}
