package main

import (
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/crypto/bcrypt"
)

const (
	tokenValidity = 7 * 24 * time.Hour
	sessionCookie = "session_token"
)

// dummyHash is compared against when the username is unknown so that the
// authenticate path takes the same time for "unknown user" and "wrong password".
var dummyHash, _ = bcrypt.GenerateFromPassword([]byte("streamflix-dummy"), bcrypt.DefaultCost)

func hashPassword(p string) (string, error) {
	b, err := bcrypt.GenerateFromPassword([]byte(p), bcrypt.DefaultCost)
	return string(b), err
}

func comparePassword(hash, p string) bool {
	return bcrypt.CompareHashAndPassword([]byte(hash), []byte(p)) == nil
}

// authenticate resolves a username/password pair to a user. Unknown usernames
// still burn a bcrypt compare before failing.
func (a *App) authenticate(username, password string) (*User, error) {
	user, err := a.Store.GetUserByUsername(username)
	if err != nil {
		return nil, err
	}
	if user == nil {
		bcrypt.CompareHashAndPassword(dummyHash, []byte(password))
		return nil, ErrInvalidCredentials
	}
	if !comparePassword(user.Password, password) {
		return nil, ErrInvalidCredentials
	}
	return user, nil
}

func issueToken(userID int64) (string, error) {
	claims := jwt.MapClaims{"userId": userID, "exp": time.Now().Add(tokenValidity).Unix()}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(jwtSecret)
}

// verifyToken returns the embedded user id, or ErrInvalidToken when the
// signature does not verify or the token is expired.
func verifyToken(tokenStr string) (int64, error) {
	token, err := jwt.Parse(tokenStr, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, ErrInvalidToken
		}
		return jwtSecret, nil
	})
	if err != nil || !token.Valid {
		return 0, ErrInvalidToken
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return 0, ErrInvalidToken
	}
	userID, ok := claims["userId"].(float64)
	if !ok {
		return 0, ErrInvalidToken
	}
	return int64(userID), nil
}

// requestUserID extracts the authenticated user id from a request, trying the
// session cookie first and then the Authorization header. A stale cookie does
// not shadow a valid Bearer token. A missing or invalid credential yields
// (0, false), never an error: the caller is simply anonymous.
func requestUserID(r *http.Request) (int64, bool) {
	if c, err := r.Cookie(sessionCookie); err == nil && c.Value != "" {
		if userID, err := verifyToken(c.Value); err == nil {
			return userID, true
		}
	}
	auth := r.Header.Get("Authorization")
	if strings.HasPrefix(auth, "Bearer ") {
		if userID, err := verifyToken(strings.TrimPrefix(auth, "Bearer ")); err == nil {
			return userID, true
		}
	}
	return 0, false
}

func setSessionCookie(w http.ResponseWriter, token string) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    token,
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   int(tokenValidity / time.Second),
	})
}

func clearSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookie,
		Value:    "",
		Path:     "/",
		HttpOnly: true,
		MaxAge:   -1,
	})
}
