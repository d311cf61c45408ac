package main

import "time"

// User is an account record. Password holds the bcrypt hash and is never
// serialized into responses.
type User struct {
	ID        int64
	Username  string
	Password  string
	CreatedAt time.Time
}

// Profile is a named viewing identity belonging to a user account.
type Profile struct {
	ID     int64  `json:"id"`
	UserID int64  `json:"userId"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

// UserResponse is the wire shape for a user plus their profile list,
// shared by the signup/login/me endpoints and the GraphQL User type.
type UserResponse struct {
	ID       int64      `json:"id"`
	Username string     `json:"username"`
	Profiles []*Profile `json:"profiles"`
}

func newUserResponse(u *User, profiles []*Profile) *UserResponse {
	if profiles == nil {
		profiles = []*Profile{}
	}
	return &UserResponse{ID: u.ID, Username: u.Username, Profiles: profiles}
}
