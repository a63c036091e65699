package session

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"github.com/wolfeidau/polifeed/internal/client"
	"github.com/wolfeidau/polifeed/internal/config"
	"github.com/wolfeidau/polifeed/internal/models"
	"github.com/wolfeidau/polifeed/internal/storage"
)

// fakeBackend is an in-process stand-in for the feed API's auth routes.
type fakeBackend struct {
	mu sync.Mutex

	access  map[string]bool
	refresh map[string]bool
	issued  int

	profileCalls int
	refreshCalls int
	logoutCalls  int
	logoutAuth   []string

	rejectProfile bool
	failLogout    bool
	resetEmails   []string
}

func newFakeBackend() *fakeBackend {
	return &fakeBackend{
		access:  make(map[string]bool),
		refresh: make(map[string]bool),
	}
}

var testUser = models.UserProfile{
	ID:       "7f9c2b1e",
	Email:    "alice@example.com",
	Username: "alice",
	Role:     "user",
	Status:   "active",
}

func (f *fakeBackend) issue() models.TokenPair {
	f.issued++
	pair := models.TokenPair{
		AccessToken:  "access-" + strconv.Itoa(f.issued),
		RefreshToken: "refresh-" + strconv.Itoa(f.issued),
		TokenType:    "bearer",
	}
	f.access[pair.AccessToken] = true
	f.refresh[pair.RefreshToken] = true
	return pair
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func detail(msg string) map[string]string {
	return map[string]string{"detail": msg}
}

func (f *fakeBackend) handler(e config.Endpoints) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("POST "+e.Auth.Login, func(w http.ResponseWriter, r *http.Request) {
		_ = r.ParseForm()
		f.mu.Lock()
		defer f.mu.Unlock()

		if r.PostForm.Get("grant_type") != "password" || r.PostForm.Get("password") != "correct-horse" {
			writeJSON(w, http.StatusUnauthorized, detail("Incorrect username or password"))
			return
		}
		writeJSON(w, http.StatusOK, f.issue())
	})

	mux.HandleFunc("POST "+e.Auth.Register, func(w http.ResponseWriter, r *http.Request) {
		var req registerRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		defer f.mu.Unlock()

		if req.Username == "taken" {
			writeJSON(w, http.StatusBadRequest, detail("Username already registered"))
			return
		}
		writeJSON(w, http.StatusCreated, f.issue())
	})

	mux.HandleFunc("GET "+e.Users.Me, func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		f.profileCalls++
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		ok := f.access[token] && !f.rejectProfile
		f.mu.Unlock()

		if !ok {
			writeJSON(w, http.StatusUnauthorized, detail("Could not validate credentials"))
			return
		}
		writeJSON(w, http.StatusOK, testUser)
	})

	mux.HandleFunc("POST "+e.Auth.Refresh, func(w http.ResponseWriter, r *http.Request) {
		var req refreshRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		defer f.mu.Unlock()

		f.refreshCalls++
		if !f.refresh[req.RefreshToken] {
			writeJSON(w, http.StatusUnauthorized, detail("Invalid refresh token"))
			return
		}
		delete(f.refresh, req.RefreshToken)
		writeJSON(w, http.StatusOK, f.issue())
	})

	mux.HandleFunc("POST "+e.Auth.Logout, func(w http.ResponseWriter, r *http.Request) {
		f.mu.Lock()
		defer f.mu.Unlock()

		f.logoutCalls++
		f.logoutAuth = append(f.logoutAuth, r.Header.Get("Authorization"))
		if f.failLogout {
			writeJSON(w, http.StatusInternalServerError, detail("boom"))
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	mux.HandleFunc("POST "+e.Auth.ResetPassword, func(w http.ResponseWriter, r *http.Request) {
		var req passwordResetRequest
		_ = json.NewDecoder(r.Body).Decode(&req)
		f.mu.Lock()
		defer f.mu.Unlock()

		if !strings.Contains(req.Email, "@") {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"detail": "Invalid email",
				"errors": map[string][]string{"email": {"not an email"}},
			})
			return
		}
		f.resetEmails = append(f.resetEmails, req.Email)
		writeJSON(w, http.StatusOK, map[string]string{"message": "sent"})
	})

	mux.HandleFunc("POST "+e.Auth.ConfirmPassword, func(w http.ResponseWriter, r *http.Request) {
		var req passwordResetConfirmRequest
		_ = json.NewDecoder(r.Body).Decode(&req)

		if req.Token != "reset-ok" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	})

	return mux
}

func (f *fakeBackend) counts() (profile, refresh, logout int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.profileCalls, f.refreshCalls, f.logoutCalls
}

type harness struct {
	backend *fakeBackend
	store   *storage.AuthStorage
	mem     *storage.MemoryBackend
	manager *Manager
}

func newHarness(t *testing.T) *harness {
	t.Helper()

	endpoints := config.NewEndpoints(config.DefaultAPIPrefix)
	fb := newFakeBackend()

	srv := httptest.NewServer(fb.handler(endpoints))
	t.Cleanup(srv.Close)

	return newHarnessWithURL(t, fb, srv.URL, endpoints)
}

func newHarnessWithURL(t *testing.T, fb *fakeBackend, baseURL string, endpoints config.Endpoints) *harness {
	t.Helper()

	api, err := client.New(client.Config{BaseURL: baseURL, Timeout: 2 * time.Second})
	require.NoError(t, err)

	mem := storage.NewMemoryBackend()
	store := storage.NewAuthStorage(mem)

	return &harness{
		backend: fb,
		store:   store,
		mem:     mem,
		manager: New(api, store, endpoints),
	}
}

// seed persists tokens as a previous run would have left them.
func (h *harness) seed(t *testing.T, access, refresh string) {
	t.Helper()
	require.NoError(t, h.store.SaveTokens(t.Context(), models.TokenPair{AccessToken: access, RefreshToken: refresh}))
}
