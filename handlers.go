package main

import (
	"encoding/json"
	"net/http"
	"strings"

	"go.uber.org/zap"
)

// HandleSignup creates an account and materializes its default profile.
// POST /api/auth/signup
func (a *App) HandleSignup(w http.ResponseWriter, r *http.Request) {
	var c struct{ Username, Password string }
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	c.Username = strings.TrimSpace(c.Username)
	if c.Username == "" || c.Password == "" {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Username and password are required")
		return
	}

	user, profiles, err := a.signup(c.Username, c.Password)
	if err != nil {
		writeStoreError(w, err)
		return
	}

	token, err := issueToken(user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to issue session")
		return
	}
	setSessionCookie(w, token)
	a.Log.Info("user signed up", zap.Int64("user_id", user.ID))
	writeJSON(w, http.StatusCreated, newUserResponse(user, profiles))
}

// signup is shared by the REST handler and the GraphQL mutation: create the
// user, then seed exactly one default profile.
func (a *App) signup(username, password string) (*User, []*Profile, error) {
	hashed, err := hashPassword(password)
	if err != nil {
		return nil, nil, err
	}
	user, err := a.Store.CreateUser(username, hashed)
	if err != nil {
		return nil, nil, err
	}
	p, err := a.Store.AddProfile(user.ID, defaultProfileName)
	if err != nil {
		return nil, nil, err
	}
	return user, []*Profile{p}, nil
}

// HandleLogin authenticates and returns the user with their profile list.
// POST /api/auth/login
// The request field is named "email" but carries the username; the login
// form reuses its email input for the account name.
func (a *App) HandleLogin(w http.ResponseWriter, r *http.Request) {
	var c struct{ Email, Password string }
	if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	if c.Email == "" || c.Password == "" {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Email and password are required")
		return
	}

	user, err := a.authenticate(c.Email, c.Password)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	profiles, err := a.Store.ListProfiles(user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load profiles")
		return
	}

	token, err := issueToken(user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to issue session")
		return
	}
	setSessionCookie(w, token)
	a.Log.Info("user logged in", zap.Int64("user_id", user.ID))
	writeJSON(w, http.StatusOK, newUserResponse(user, profiles))
}

// HandleLogout clears the session cookie. Always succeeds: the client is
// entitled to be logged out regardless of server-side state.
// POST /api/auth/logout
func (a *App) HandleLogout(w http.ResponseWriter, r *http.Request) {
	clearSessionCookie(w)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Logged out"})
}

// HandleMe returns the authenticated user with their profile list, or 401
// for anonymous callers.
// GET /api/auth/me
func (a *App) HandleMe(w http.ResponseWriter, r *http.Request) {
	userID, ok := requestUserID(r)
	if !ok {
		writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "Not authenticated")
		return
	}
	user, err := a.Store.GetUserByID(userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load user")
		return
	}
	if user == nil {
		// token references a user that no longer exists
		writeError(w, http.StatusUnauthorized, "UNAUTHENTICATED", "Not authenticated")
		return
	}
	profiles, err := a.Store.ListProfiles(user.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "INTERNAL_ERROR", "Failed to load profiles")
		return
	}
	writeJSON(w, http.StatusOK, newUserResponse(user, profiles))
}
