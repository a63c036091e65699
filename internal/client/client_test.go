package client

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type widget struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func newTestClient(t *testing.T, handler http.Handler, timeout time.Duration) *Client {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c, err := New(Config{BaseURL: srv.URL, Timeout: timeout})
	require.NoError(t, err)

	return c
}

func TestClient_GetEncodesParamsInOrder(t *testing.T) {
	var gotQuery string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"id":"1","name":"gizmo"}`))
	}), time.Second)

	var out widget
	err := c.Get(context.Background(), "/widgets", NewParams("a", 1, "b", nil, "c", "x"), &out)
	require.NoError(t, err)

	assert.Equal(t, "a=1&c=x", gotQuery)
	assert.Equal(t, widget{ID: "1", Name: "gizmo"}, out)
}

func TestClient_GetWithoutParamsHasNoQuery(t *testing.T) {
	var gotURI string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotURI = r.URL.RequestURI()
		w.WriteHeader(http.StatusNoContent)
	}), time.Second)

	err := c.Get(context.Background(), "widgets", nil, nil)
	require.NoError(t, err)
	assert.Equal(t, "/widgets", gotURI)
}

func TestClient_PostSendsJSONBody(t *testing.T) {
	var (
		gotBody        map[string]string
		gotContentType string
		gotRequestID   string
	)
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotContentType = r.Header.Get("Content-Type")
		gotRequestID = r.Header.Get("X-Request-ID")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&gotBody))
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"id":"2","name":"sprocket"}`))
	}), time.Second)

	var out widget
	err := c.Post(context.Background(), "/widgets", map[string]string{"name": "sprocket"}, &out)
	require.NoError(t, err)

	assert.Equal(t, map[string]string{"name": "sprocket"}, gotBody)
	assert.Equal(t, "application/json", gotContentType)
	assert.NotEmpty(t, gotRequestID)
	assert.Equal(t, "2", out.ID)
}

func TestClient_Verbs(t *testing.T) {
	tests := []struct {
		method string
		call   func(c *Client) error
	}{
		{http.MethodPut, func(c *Client) error { return c.Put(context.Background(), "/w/1", widget{Name: "a"}, nil) }},
		{http.MethodPatch, func(c *Client) error { return c.Patch(context.Background(), "/w/1", widget{Name: "a"}, nil) }},
		{http.MethodDelete, func(c *Client) error { return c.Delete(context.Background(), "/w/1", nil, nil) }},
	}

	for _, tt := range tests {
		t.Run(tt.method, func(t *testing.T) {
			var gotMethod string
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				gotMethod = r.Method
				w.WriteHeader(http.StatusNoContent)
			}), time.Second)

			require.NoError(t, tt.call(c))
			assert.Equal(t, tt.method, gotMethod)
		})
	}
}

func TestClient_NoContentLeavesOutUntouched(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}), time.Second)

	out := widget{ID: "keep"}
	err := c.Delete(context.Background(), "/widgets/keep", nil, &out)
	require.NoError(t, err)
	assert.Equal(t, "keep", out.ID)
}

func TestClient_Timeout(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
		_, _ = w.Write([]byte(`{"id":"late","name":"late"}`))
	}), 50*time.Millisecond)

	out := widget{ID: "before"}
	err := c.Get(context.Background(), "/slow", nil, &out)
	require.Error(t, err)

	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, 0, apiErr.Status)
	assert.Equal(t, "Request timeout after 50ms", apiErr.Message)
	assert.True(t, apiErr.IsTransport())
	assert.Equal(t, "before", out.ID)
}

func TestClient_NetworkError(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	baseURL := srv.URL
	srv.Close()

	c, err := New(Config{BaseURL: baseURL, Timeout: time.Second})
	require.NoError(t, err)

	err = c.Get(context.Background(), "/anything", nil, nil)
	require.Error(t, err)

	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, 0, apiErr.Status)
	assert.NotEmpty(t, apiErr.Message)
}

func TestClient_ErrorResponses(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		wantMessage string
		wantErrors  map[string][]string
	}{
		{
			name:        "string detail",
			status:      http.StatusBadRequest,
			body:        `{"detail":"Email already registered"}`,
			wantMessage: "Email already registered",
		},
		{
			name:        "detail with field errors",
			status:      http.StatusUnprocessableEntity,
			body:        `{"detail":"bad request","errors":{"email":["invalid"]}}`,
			wantMessage: "bad request",
			wantErrors:  map[string][]string{"email": {"invalid"}},
		},
		{
			name:        "structured detail",
			status:      http.StatusUnprocessableEntity,
			body:        `{"detail":[{"loc":["body","email"],"msg":"bad"}]}`,
			wantMessage: `[{"loc":["body","email"],"msg":"bad"}]`,
		},
		{
			name:        "non json body",
			status:      http.StatusInternalServerError,
			body:        `<html>oops</html>`,
			wantMessage: "Internal Server Error",
		},
		{
			name:        "empty body",
			status:      http.StatusUnauthorized,
			wantMessage: "Unauthorized",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}), time.Second)

			err := c.Get(context.Background(), "/fail", nil, nil)
			require.Error(t, err)

			apiErr, ok := AsAPIError(err)
			require.True(t, ok)
			assert.Equal(t, tt.status, apiErr.Status)
			assert.Equal(t, tt.wantMessage, apiErr.Message)
			assert.Equal(t, tt.wantErrors, apiErr.Errors)
			assert.True(t, IsStatus(err, tt.status))
			assert.Equal(t, tt.wantMessage, Message(err))
		})
	}
}

func TestClient_WithAuthToken(t *testing.T) {
	var gotAuth []string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, present := r.Header["Authorization"]
		if present {
			gotAuth = append(gotAuth, r.Header.Get("Authorization"))
		} else {
			gotAuth = append(gotAuth, "<none>")
		}
		w.WriteHeader(http.StatusNoContent)
	}), time.Second)

	authed := c.WithAuthToken("abc")
	cleared := authed.WithAuthToken("")

	ctx := context.Background()
	require.NoError(t, c.Get(ctx, "/", nil, nil))
	require.NoError(t, authed.Get(ctx, "/", nil, nil))
	require.NoError(t, cleared.Get(ctx, "/", nil, nil))

	assert.Equal(t, []string{"<none>", "Bearer abc", "<none>"}, gotAuth)

	assert.False(t, c.HasAuthToken())
	assert.True(t, authed.HasAuthToken())
	assert.Equal(t, "abc", authed.AuthToken())
	assert.False(t, cleared.HasAuthToken())
}

func TestClient_RequestHeaderOverride(t *testing.T) {
	var gotRequestID, gotAccept string
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotRequestID = r.Header.Get("X-Request-ID")
		gotAccept = r.Header.Get("Accept")
		w.WriteHeader(http.StatusNoContent)
	}), time.Second)

	err := c.Get(context.Background(), "/", nil, nil,
		WithHeader("X-Request-ID", "req-1"),
		WithHeaders(map[string]string{"Accept": "application/json"}))
	require.NoError(t, err)

	assert.Equal(t, "req-1", gotRequestID)
	assert.Equal(t, "application/json", gotAccept)
}

func TestClient_SendsCookies(t *testing.T) {
	var gotCookie string
	mux := http.NewServeMux()
	mux.HandleFunc("/set", func(w http.ResponseWriter, r *http.Request) {
		http.SetCookie(w, &http.Cookie{Name: "csrftoken", Value: "xyz", Path: "/"})
		w.WriteHeader(http.StatusNoContent)
	})
	mux.HandleFunc("/check", func(w http.ResponseWriter, r *http.Request) {
		if ck, err := r.Cookie("csrftoken"); err == nil {
			gotCookie = ck.Value
		}
		w.WriteHeader(http.StatusNoContent)
	})
	c := newTestClient(t, mux, time.Second)

	ctx := context.Background()
	require.NoError(t, c.Get(ctx, "/set", nil, nil))
	require.NoError(t, c.Post(ctx, "/check", nil, nil))

	assert.Equal(t, "xyz", gotCookie)
}

func TestClient_DecodeFailure(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"id":`))
	}), time.Second)

	var out widget
	err := c.Get(context.Background(), "/broken", nil, &out)
	require.Error(t, err)

	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, 0, apiErr.Status)
	assert.Contains(t, apiErr.Message, "failed to decode response")
}

func TestNew_Defaults(t *testing.T) {
	c, err := New(Config{})
	require.NoError(t, err)

	assert.Equal(t, "http://localhost:8000", c.BaseURL())
	assert.Equal(t, 30*time.Second, c.Timeout())
	assert.False(t, c.HasAuthToken())
}
