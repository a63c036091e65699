package client

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPasswordGrant(t *testing.T) {
	var form map[string]string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/api/v1/auth/login", r.URL.Path)
		assert.NoError(t, r.ParseForm())

		form = map[string]string{
			"grant_type": r.PostForm.Get("grant_type"),
			"username":   r.PostForm.Get("username"),
			"password":   r.PostForm.Get("password"),
		}

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"acc","refresh_token":"ref","token_type":"Bearer"}`))
	}), time.Second)

	pair, err := c.PasswordGrant(context.Background(), "/api/v1/auth/login", "alice", "s3cret")
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"grant_type": "password", "username": "alice", "password": "s3cret"}, form)
	assert.Equal(t, "acc", pair.AccessToken)
	assert.Equal(t, "ref", pair.RefreshToken)
	assert.Equal(t, "bearer", pair.TokenType)
}

func TestPasswordGrant_Rejected(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"detail":"Incorrect username or password"}`))
	}), time.Second)

	pair, err := c.PasswordGrant(context.Background(), "/api/v1/auth/login", "alice", "wrong")
	require.Error(t, err)
	assert.Nil(t, pair)

	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "Incorrect username or password", apiErr.Message)
}

func TestPasswordGrant_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	baseURL := srv.URL
	srv.Close()

	c, err := New(Config{BaseURL: baseURL, Timeout: time.Second})
	require.NoError(t, err)

	_, err = c.PasswordGrant(context.Background(), "/api/v1/auth/login", "alice", "s3cret")
	require.Error(t, err)

	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, 0, apiErr.Status)
}
