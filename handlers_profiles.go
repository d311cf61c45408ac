package main

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Profile endpoints sit behind SessionAuth, so the user id is always in the
// request context here.

// HandleCreateProfile appends a profile to the caller's list.
// POST /api/profiles
func (a *App) HandleCreateProfile(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r)
	var in struct{ Name string }
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	p, err := a.Store.AddProfile(userID, in.Name)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	a.Log.Info("profile created", zap.Int64("user_id", userID), zap.Int64("profile_id", p.ID))
	writeJSON(w, http.StatusCreated, p)
}

// HandleDeleteProfile removes a profile from the caller's list.
// DELETE /api/profiles/{id}
func (a *App) HandleDeleteProfile(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r)
	profileID, ok := profileIDFromPath(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid profile id")
		return
	}
	if err := a.Store.DeleteProfile(userID, profileID); err != nil {
		writeStoreError(w, err)
		return
	}
	a.Log.Info("profile deleted", zap.Int64("user_id", userID), zap.Int64("profile_id", profileID))
	writeJSON(w, http.StatusOK, map[string]bool{"deleted": true})
}

// HandleUpdateProfile renames and/or re-avatars a profile. Omitted fields
// are left unchanged.
// PUT /api/profiles/{id}
func (a *App) HandleUpdateProfile(w http.ResponseWriter, r *http.Request) {
	userID := userIDFromContext(r)
	profileID, ok := profileIDFromPath(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid profile id")
		return
	}
	var in struct {
		Name   *string `json:"name"`
		Avatar *string `json:"avatar"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "INVALID_REQUEST", "Invalid request body")
		return
	}
	p, err := a.Store.UpdateProfile(userID, profileID, in.Name, in.Avatar)
	if err != nil {
		writeStoreError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, p)
}

func profileIDFromPath(r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil || id <= 0 {
		return 0, false
	}
	return id, true
}
