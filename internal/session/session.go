// Package session owns the client side authentication state machine.
//
// A Manager moves between three phases:
//
//	loading ──► anonymous ⇄ authenticated
//
// It starts in loading, persists tokens through storage.AuthStorage and hands
// out a client.Client capability carrying the current access token. Every
// operation reports failures through Result or State.Error; none of them return
// a Go error for backend or network failures.
package session

import (
	"context"
	"sort"
	"sync"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/polifeed/internal/client"
	"github.com/wolfeidau/polifeed/internal/config"
	"github.com/wolfeidau/polifeed/internal/models"
	"github.com/wolfeidau/polifeed/internal/storage"
	"github.com/wolfeidau/polifeed/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// Phase is the coarse state of a session.
type Phase string

const (
	PhaseLoading       Phase = "loading"
	PhaseAnonymous     Phase = "anonymous"
	PhaseAuthenticated Phase = "authenticated"
)

// State is a snapshot of the session. User is non-nil iff IsAuthenticated.
type State struct {
	IsAuthenticated bool
	IsLoading       bool
	User            *models.UserProfile
	// Error holds the last auth operation failure and is cleared when the
	// next operation starts.
	Error string
}

// Phase derives the phase from the state flags. Loading takes precedence.
func (s State) Phase() Phase {
	switch {
	case s.IsLoading:
		return PhaseLoading
	case s.IsAuthenticated:
		return PhaseAuthenticated
	default:
		return PhaseAnonymous
	}
}

func (s State) clone() State {
	s.User = s.User.Clone()
	return s
}

// Result is returned by every operation.
type Result struct {
	Success bool
	User    *models.UserProfile
	Error   string
}

// Observer is notified with a snapshot after every state change. Observers
// run on the dispatching goroutine and must not call Dispatch themselves.
type Observer func(State)

// Manager is the session state machine.
type Manager struct {
	storage   *storage.AuthStorage
	endpoints config.Endpoints
	base      *client.Client

	// opMu serialises transitions so persist tokens, attach header, fetch
	// profile never interleaves with another transition.
	opMu sync.Mutex

	mu        sync.RWMutex
	state     State
	api       *client.Client
	observers map[int]Observer
	nextID    int
}

// New creates a Manager in the loading state. base must not carry an auth
// token; the Manager derives authenticated capabilities from it.
func New(base *client.Client, store *storage.AuthStorage, endpoints config.Endpoints) *Manager {
	anon := base.WithAuthToken("")

	return &Manager{
		storage:   store,
		endpoints: endpoints,
		base:      anon,
		state:     State{IsLoading: true},
		api:       anon,
		observers: make(map[int]Observer),
	}
}

// State returns a copy of the current state.
func (m *Manager) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.state.clone()
}

// Client returns the current request capability. It carries the access token
// while the session is authenticated. Callers holding an older value keep
// using the token it was created with.
func (m *Manager) Client() *client.Client {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.api
}

// Subscribe registers an observer and returns a function removing it.
func (m *Manager) Subscribe(fn Observer) (unsubscribe func()) {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.observers[id] = fn
	m.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			delete(m.observers, id)
			m.mu.Unlock()
		})
	}
}

func (m *Manager) setClient(c *client.Client) {
	m.mu.Lock()
	m.api = c
	m.mu.Unlock()
}

// setState applies fn to the state and notifies observers outside the lock.
func (m *Manager) setState(ctx context.Context, fn func(*State)) {
	m.mu.Lock()
	prev := m.state.Phase()
	fn(&m.state)
	snapshot := m.state.clone()

	ids := make([]int, 0, len(m.observers))
	for id := range m.observers {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	observers := make([]Observer, 0, len(ids))
	for _, id := range ids {
		observers = append(observers, m.observers[id])
	}
	m.mu.Unlock()

	if next := snapshot.Phase(); next != prev {
		log.Debug().
			Str("from", string(prev)).
			Str("to", string(next)).
			Msg("session transition")

		telemetry.GetMetrics().SessionTransitionsTotal.Add(ctx, 1, metric.WithAttributes(
			attribute.String("from", string(prev)),
			attribute.String("to", string(next)),
		))
	}

	for _, o := range observers {
		o(snapshot)
	}
}

func anonymous(errMsg string) func(*State) {
	return func(s *State) {
		*s = State{Error: errMsg}
	}
}

func authenticated(user *models.UserProfile) func(*State) {
	return func(s *State) {
		*s = State{IsAuthenticated: true, User: user}
	}
}

func loading(clearError bool) func(*State) {
	return func(s *State) {
		s.IsLoading = true
		if clearError {
			s.Error = ""
		}
	}
}
