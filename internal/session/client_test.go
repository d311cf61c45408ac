package session

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestAPIClientDecodesErrorEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/auth/login":
			w.WriteHeader(http.StatusUnauthorized)
			json.NewEncoder(w).Encode(map[string]string{
				"error_code": "INVALID_CREDENTIALS", "error_message": "Invalid username or password",
			})
		case "/api/auth/signup":
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{
				"error_code": "DUPLICATE_USER", "error_message": "User already exists",
			})
		case "/api/profiles":
			w.WriteHeader(http.StatusBadRequest)
			json.NewEncoder(w).Encode(map[string]string{
				"error_code": "INVALID_NAME", "error_message": "Profile name must not be empty",
			})
		default:
			w.WriteHeader(http.StatusNotFound)
			json.NewEncoder(w).Encode(map[string]string{
				"error_code": "NOT_FOUND", "error_message": "Profile not found",
			})
		}
	}))
	defer srv.Close()

	c, err := NewAPIClient(srv.URL)
	require.NoError(t, err)
	ctx := context.Background()

	_, err = c.Login(ctx, "alice", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	_, err = c.Signup(ctx, "alice", "secret1")
	require.ErrorIs(t, err, ErrDuplicateUser)

	_, err = c.CreateProfile(ctx, " ")
	require.ErrorIs(t, err, ErrInvalidName)

	err = c.DeleteProfile(ctx, 42)
	require.ErrorIs(t, err, ErrNotFound)
}

func TestAPIClientKeepsSessionCookie(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		switch r.URL.Path {
		case "/api/auth/login":
			http.SetCookie(w, &http.Cookie{Name: "session_token", Value: "tok", Path: "/"})
			json.NewEncoder(w).Encode(User{ID: 1, Username: "alice"})
		case "/api/auth/me":
			if c, err := r.Cookie("session_token"); err != nil || c.Value != "tok" {
				w.WriteHeader(http.StatusUnauthorized)
				json.NewEncoder(w).Encode(map[string]string{"error_code": "UNAUTHENTICATED"})
				return
			}
			json.NewEncoder(w).Encode(User{ID: 1, Username: "alice"})
		}
	}))
	defer srv.Close()

	c, err := NewAPIClient(srv.URL)
	require.NoError(t, err)
	ctx := context.Background()

	// before login, me is unauthenticated
	_, err = c.Me(ctx)
	require.ErrorIs(t, err, ErrUnauthenticated)

	_, err = c.Login(ctx, "alice", "secret1")
	require.NoError(t, err)

	u, err := c.Me(ctx)
	require.NoError(t, err)
	require.Equal(t, "alice", u.Username)
}

func TestAPIClientTimeout(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer srv.Close()

	c, err := NewAPIClient(srv.URL)
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err = c.Me(ctx)
	require.ErrorIs(t, err, ErrTimeout)
}

func TestFileProfileIDStore(t *testing.T) {
	path := t.TempDir() + "/current_profile"
	store := NewFileProfileIDStore(path)

	_, set, err := store.Load()
	require.NoError(t, err)
	require.False(t, set)

	require.NoError(t, store.Save(42))
	id, set, err := store.Load()
	require.NoError(t, err)
	require.True(t, set)
	require.Equal(t, int64(42), id)

	require.NoError(t, store.Clear())
	_, set, err = store.Load()
	require.NoError(t, err)
	require.False(t, set)

	// clearing twice is fine
	require.NoError(t, store.Clear())
}
