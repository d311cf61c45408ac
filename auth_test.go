package main

import (
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestMain(m *testing.M) {
	jwtSecret = []byte("test-secret")
	os.Exit(m.Run())
}

func TestHashAndComparePassword(t *testing.T) {
	hash, err := hashPassword("secret1")
	require.NoError(t, err)
	require.NotEqual(t, "secret1", hash)

	require.True(t, comparePassword(hash, "secret1"))
	require.False(t, comparePassword(hash, "secret2"))
}

func TestTokenRoundTrip(t *testing.T) {
	token, err := issueToken(42)
	require.NoError(t, err)

	userID, err := verifyToken(token)
	require.NoError(t, err)
	require.Equal(t, int64(42), userID)
}

func TestVerifyTokenExpired(t *testing.T) {
	claims := jwt.MapClaims{"userId": int64(42), "exp": time.Now().Add(-time.Hour).Unix()}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(jwtSecret)
	require.NoError(t, err)

	_, err = verifyToken(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyTokenTampered(t *testing.T) {
	token, err := issueToken(42)
	require.NoError(t, err)

	tampered := token[:len(token)-2] + "xx"
	_, err = verifyToken(tampered)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestVerifyTokenWrongSecret(t *testing.T) {
	claims := jwt.MapClaims{"userId": int64(42), "exp": time.Now().Add(time.Hour).Unix()}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("other-secret"))
	require.NoError(t, err)

	_, err = verifyToken(token)
	require.ErrorIs(t, err, ErrInvalidToken)
}

func TestRequestUserIDSources(t *testing.T) {
	token, err := issueToken(7)
	require.NoError(t, err)

	// cookie alone
	req := httptest.NewRequest("GET", "/api/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: token})
	id, ok := requestUserID(req)
	require.True(t, ok)
	require.Equal(t, int64(7), id)

	// bearer alone
	req = httptest.NewRequest("GET", "/api/auth/me", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	id, ok = requestUserID(req)
	require.True(t, ok)
	require.Equal(t, int64(7), id)

	// a stale cookie must not shadow a valid bearer token
	req = httptest.NewRequest("GET", "/api/auth/me", nil)
	req.AddCookie(&http.Cookie{Name: sessionCookie, Value: "garbage"})
	req.Header.Set("Authorization", "Bearer "+token)
	id, ok = requestUserID(req)
	require.True(t, ok)
	require.Equal(t, int64(7), id)

	// nothing at all
	req = httptest.NewRequest("GET", "/api/auth/me", nil)
	_, ok = requestUserID(req)
	require.False(t, ok)
}

func TestAuthenticateUnknownUser(t *testing.T) {
	app := newTestApp(t)
	_, err := app.authenticate("ghost", "whatever")
	require.ErrorIs(t, err, ErrInvalidCredentials)
}

func TestAuthenticateWrongPassword(t *testing.T) {
	app := newTestApp(t)
	_, _, err := app.signup("alice", "secret1")
	require.NoError(t, err)

	_, err = app.authenticate("alice", "wrong")
	require.ErrorIs(t, err, ErrInvalidCredentials)

	u, err := app.authenticate("alice", "secret1")
	require.NoError(t, err)
	require.Equal(t, "alice", u.Username)
}
