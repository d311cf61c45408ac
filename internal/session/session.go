package session

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrSuperseded is returned when a network call resolves after the session
// it was started under has been logged out. The late response is discarded
// rather than resurrecting cleared state.
var ErrSuperseded = errors.New("session superseded")

const defaultTimeout = 10 * time.Second

// Session is the single source of truth for "is someone logged in, and
// which profile is active". All mutating calls go through the server first;
// local state changes only after the server accepted the operation, so the
// session is never half-updated.
type Session struct {
	api     API
	ids     ProfileIDStore
	timeout time.Duration

	mu            sync.Mutex
	gen           uint64
	authenticated bool
	user          *User
	profiles      []Profile
	currentID     int64
	hasCurrent    bool
}

func New(api API, ids ProfileIDStore) *Session {
	return &Session{api: api, ids: ids, timeout: defaultTimeout}
}

func (s *Session) callCtx(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(ctx, s.timeout)
}

func (s *Session) snapshot() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gen
}

// install replaces the session state if no logout happened since gen was
// captured.
func (s *Session) install(gen uint64, u *User) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return ErrSuperseded
	}
	s.authenticated = true
	s.user = u
	s.profiles = append([]Profile(nil), u.Profiles...)
	s.hasCurrent = false
	s.currentID = 0
	return nil
}

// Login authenticates and loads the user's profile list. On failure the
// session is left untouched.
func (s *Session) Login(ctx context.Context, username, password string) error {
	gen := s.snapshot()
	ctx, cancel := s.callCtx(ctx)
	defer cancel()
	u, err := s.api.Login(ctx, username, password)
	if err != nil {
		return err
	}
	return s.install(gen, u)
}

// Signup creates an account; the server seeds one default profile.
func (s *Session) Signup(ctx context.Context, username, password string) error {
	gen := s.snapshot()
	ctx, cancel := s.callCtx(ctx)
	defer cancel()
	u, err := s.api.Signup(ctx, username, password)
	if err != nil {
		return err
	}
	return s.install(gen, u)
}

// Restore re-establishes the session on startup. A persisted active-profile
// id is re-selected if it still exists in the restored list; otherwise the
// active profile stays unset and the UI falls back to profile selection.
// An unauthenticated answer is not an error: the session just stays anonymous.
func (s *Session) Restore(ctx context.Context) error {
	gen := s.snapshot()
	ctx, cancel := s.callCtx(ctx)
	defer cancel()
	u, err := s.api.Me(ctx)
	if err != nil {
		if errors.Is(err, ErrUnauthenticated) {
			return nil
		}
		return err
	}
	if err := s.install(gen, u); err != nil {
		return err
	}

	savedID, ok, err := s.ids.Load()
	if err != nil || !ok {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return ErrSuperseded
	}
	for _, p := range s.profiles {
		if p.ID == savedID {
			s.currentID = savedID
			s.hasCurrent = true
			break
		}
	}
	return nil
}

// Logout clears the session unconditionally. The remote call is best
// effort: the user asked to be logged out locally, so a dead server must
// not keep them logged in.
func (s *Session) Logout(ctx context.Context) {
	s.mu.Lock()
	s.gen++
	s.authenticated = false
	s.user = nil
	s.profiles = nil
	s.currentID = 0
	s.hasCurrent = false
	s.mu.Unlock()

	_ = s.ids.Clear()

	ctx, cancel := s.callCtx(ctx)
	defer cancel()
	_ = s.api.Logout(ctx)
}

// SetCurrentProfile activates the given profile and persists its id. An id
// missing from the profile list is a silent no-op.
func (s *Session) SetCurrentProfile(id int64) error {
	s.mu.Lock()
	found := false
	for _, p := range s.profiles {
		if p.ID == id {
			found = true
			break
		}
	}
	if found {
		s.currentID = id
		s.hasCurrent = true
	}
	s.mu.Unlock()
	if !found {
		return nil
	}
	return s.ids.Save(id)
}

// AddProfile creates a profile on the server and appends it locally.
func (s *Session) AddProfile(ctx context.Context, name string) (*Profile, error) {
	gen := s.snapshot()
	ctx, cancel := s.callCtx(ctx)
	defer cancel()
	p, err := s.api.CreateProfile(ctx, name)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return nil, ErrSuperseded
	}
	s.profiles = append(s.profiles, *p)
	if s.user != nil {
		s.user.Profiles = append([]Profile(nil), s.profiles...)
	}
	return p, nil
}

// DeleteProfile removes a profile on the server and locally. Deleting the
// active profile moves the selection to the first remaining profile, or
// unsets it when the list is empty.
func (s *Session) DeleteProfile(ctx context.Context, id int64) error {
	gen := s.snapshot()
	ctx, cancel := s.callCtx(ctx)
	defer cancel()
	if err := s.api.DeleteProfile(ctx, id); err != nil {
		return err
	}

	s.mu.Lock()
	if s.gen != gen {
		s.mu.Unlock()
		return ErrSuperseded
	}
	kept := s.profiles[:0]
	for _, p := range s.profiles {
		if p.ID != id {
			kept = append(kept, p)
		}
	}
	s.profiles = kept
	if s.user != nil {
		s.user.Profiles = append([]Profile(nil), s.profiles...)
	}

	var persist func() error
	if s.hasCurrent && s.currentID == id {
		if len(s.profiles) > 0 {
			next := s.profiles[0].ID
			s.currentID = next
			s.hasCurrent = true
			persist = func() error { return s.ids.Save(next) }
		} else {
			s.currentID = 0
			s.hasCurrent = false
			persist = s.ids.Clear
		}
	}
	s.mu.Unlock()

	if persist != nil {
		return persist()
	}
	return nil
}

// UpdateAvatar replaces a profile's avatar, leaving name and id unchanged.
func (s *Session) UpdateAvatar(ctx context.Context, id int64, avatarURL string) error {
	return s.updateProfile(ctx, id, nil, &avatarURL)
}

// RenameProfile changes a profile's display name.
func (s *Session) RenameProfile(ctx context.Context, id int64, name string) error {
	return s.updateProfile(ctx, id, &name, nil)
}

func (s *Session) updateProfile(ctx context.Context, id int64, name, avatar *string) error {
	gen := s.snapshot()
	ctx, cancel := s.callCtx(ctx)
	defer cancel()
	updated, err := s.api.UpdateProfile(ctx, id, name, avatar)
	if err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gen != gen {
		return ErrSuperseded
	}
	for i := range s.profiles {
		if s.profiles[i].ID == id {
			s.profiles[i] = *updated
			break
		}
	}
	if s.user != nil {
		s.user.Profiles = append([]Profile(nil), s.profiles...)
	}
	return nil
}

// IsAuthenticated reports whether a user is logged in.
func (s *Session) IsAuthenticated() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.authenticated
}

// User returns a copy of the logged-in user, or nil when anonymous.
func (s *Session) User() *User {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.user == nil {
		return nil
	}
	cp := *s.user
	cp.Profiles = append([]Profile(nil), s.profiles...)
	return &cp
}

// Profiles returns a copy of the current profile list.
func (s *Session) Profiles() []Profile {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Profile(nil), s.profiles...)
}

// CurrentProfile returns the active profile, if one is selected.
func (s *Session) CurrentProfile() (*Profile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasCurrent {
		return nil, false
	}
	for _, p := range s.profiles {
		if p.ID == s.currentID {
			cp := p
			return &cp, true
		}
	}
	return nil, false
}
