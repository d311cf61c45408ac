// Package session implements the client-side session context for the
// streaming UI: authentication state, the profile list, and the active
// profile selection. Only the active profile id is persisted locally;
// the profile list itself always comes from the server.
package session

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/http/cookiejar"
	"strings"
)

// Client-side failure taxonomy. API errors are decoded from the server's
// error envelope; ErrTimeout covers any network deadline.
var (
	ErrDuplicateUser      = errors.New("user already exists")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUnauthenticated    = errors.New("not authenticated")
	ErrNotFound           = errors.New("profile not found")
	ErrInvalidName        = errors.New("profile name must not be empty")
	ErrProfileLimit       = errors.New("profile limit reached")
	ErrTimeout            = errors.New("request timed out")
)

// User mirrors the server's user response.
type User struct {
	ID       int64     `json:"id"`
	Username string    `json:"username"`
	Profiles []Profile `json:"profiles"`
}

// Profile mirrors the server's profile shape.
type Profile struct {
	ID     int64  `json:"id"`
	UserID int64  `json:"userId"`
	Name   string `json:"name"`
	Avatar string `json:"avatar"`
}

type apiError struct {
	Code    string `json:"error_code"`
	Message string `json:"error_message"`
}

// API is the server boundary the session talks to. APIClient is the real
// implementation; tests substitute their own.
type API interface {
	Signup(ctx context.Context, username, password string) (*User, error)
	Login(ctx context.Context, username, password string) (*User, error)
	Logout(ctx context.Context) error
	Me(ctx context.Context) (*User, error)
	CreateProfile(ctx context.Context, name string) (*Profile, error)
	DeleteProfile(ctx context.Context, id int64) error
	UpdateProfile(ctx context.Context, id int64, name, avatar *string) (*Profile, error)
}

// APIClient talks REST to the identity service. The session cookie set by
// login/signup lives in the client's cookie jar.
type APIClient struct {
	baseURL string
	http    *http.Client
}

func NewAPIClient(baseURL string) (*APIClient, error) {
	jar, err := cookiejar.New(nil)
	if err != nil {
		return nil, err
	}
	return &APIClient{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Jar: jar},
	}, nil
}

func (c *APIClient) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		if isTimeout(err) {
			return ErrTimeout
		}
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		var apiErr apiError
		if json.NewDecoder(resp.Body).Decode(&apiErr) == nil && apiErr.Code != "" {
			return decodeAPIError(resp.StatusCode, apiErr)
		}
		return fmt.Errorf("server returned status %d", resp.StatusCode)
	}
	if out == nil {
		return nil
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func decodeAPIError(status int, e apiError) error {
	switch e.Code {
	case "DUPLICATE_USER":
		return ErrDuplicateUser
	case "INVALID_CREDENTIALS":
		return ErrInvalidCredentials
	case "UNAUTHENTICATED", "INVALID_TOKEN":
		return ErrUnauthenticated
	case "NOT_FOUND":
		return ErrNotFound
	case "INVALID_NAME":
		return ErrInvalidName
	case "PROFILE_LIMIT":
		return ErrProfileLimit
	}
	return fmt.Errorf("%s (status %d)", e.Message, status)
}

func (c *APIClient) Signup(ctx context.Context, username, password string) (*User, error) {
	var u User
	err := c.do(ctx, http.MethodPost, "/api/auth/signup", map[string]string{
		"username": username, "password": password,
	}, &u)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *APIClient) Login(ctx context.Context, username, password string) (*User, error) {
	var u User
	// the login form sends the account name in the email field
	err := c.do(ctx, http.MethodPost, "/api/auth/login", map[string]string{
		"email": username, "password": password,
	}, &u)
	if err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *APIClient) Logout(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/auth/logout", nil, nil)
}

func (c *APIClient) Me(ctx context.Context) (*User, error) {
	var u User
	if err := c.do(ctx, http.MethodGet, "/api/auth/me", nil, &u); err != nil {
		return nil, err
	}
	return &u, nil
}

func (c *APIClient) CreateProfile(ctx context.Context, name string) (*Profile, error) {
	var p Profile
	err := c.do(ctx, http.MethodPost, "/api/profiles", map[string]string{"name": name}, &p)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

func (c *APIClient) DeleteProfile(ctx context.Context, id int64) error {
	return c.do(ctx, http.MethodDelete, fmt.Sprintf("/api/profiles/%d", id), nil, nil)
}

func (c *APIClient) UpdateProfile(ctx context.Context, id int64, name, avatar *string) (*Profile, error) {
	body := map[string]*string{"name": name, "avatar": avatar}
	var p Profile
	if err := c.do(ctx, http.MethodPut, fmt.Sprintf("/api/profiles/%d", id), body, &p); err != nil {
		return nil, err
	}
	return &p, nil
}
