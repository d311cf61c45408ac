package main

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestApp(t *testing.T) *App {
	t.Helper()
	catalog := NewCatalogClient("http://127.0.0.1:0", "", 0)
	app, err := NewApp(NewMemStore(), zap.NewNop(), catalog, nil, 1000)
	require.NoError(t, err)
	return app
}

// runs the registry contract against every store adapter that can run
// without external services
func forEachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("memory", func(t *testing.T) {
		fn(t, NewMemStore())
	})
	t.Run("sqlite", func(t *testing.T) {
		s, err := NewSQLiteStore(":memory:")
		require.NoError(t, err)
		t.Cleanup(func() { s.close() })
		fn(t, s)
	})
}

func TestCreateUserDuplicate(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		u, err := s.CreateUser("alice", "hash1")
		require.NoError(t, err)
		require.NotZero(t, u.ID)

		_, err = s.CreateUser("alice", "hash2")
		require.ErrorIs(t, err, ErrDuplicateUser)
	})
}

func TestGetUserByUsernameAbsent(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		u, err := s.GetUserByUsername("nobody")
		require.NoError(t, err)
		require.Nil(t, u)
	})
}

func TestAddProfileAppendsInOrder(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		u, err := s.CreateUser("alice", "hash")
		require.NoError(t, err)

		names := []string{"User", "Sarah", "Kids"}
		for _, n := range names {
			_, err := s.AddProfile(u.ID, n)
			require.NoError(t, err)
		}

		list, err := s.ListProfiles(u.ID)
		require.NoError(t, err)
		require.Len(t, list, 3)
		for i, n := range names {
			require.Equal(t, n, list[i].Name)
			require.Equal(t, u.ID, list[i].UserID)
			require.Equal(t, avatarForCount(i), list[i].Avatar)
		}
	})
}

func TestAddProfileInvalidName(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		u, err := s.CreateUser("alice", "hash")
		require.NoError(t, err)

		_, err = s.AddProfile(u.ID, "")
		require.ErrorIs(t, err, ErrInvalidName)
		_, err = s.AddProfile(u.ID, "   ")
		require.ErrorIs(t, err, ErrInvalidName)

		list, err := s.ListProfiles(u.ID)
		require.NoError(t, err)
		require.Empty(t, list)
	})
}

func TestAddProfileLimit(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		u, err := s.CreateUser("alice", "hash")
		require.NoError(t, err)

		for i := 0; i < maxProfiles; i++ {
			_, err := s.AddProfile(u.ID, fmt.Sprintf("p%d", i))
			require.NoError(t, err)
		}
		_, err = s.AddProfile(u.ID, "one too many")
		require.ErrorIs(t, err, ErrProfileLimit)
	})
}

func TestDeleteProfile(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		u, err := s.CreateUser("alice", "hash")
		require.NoError(t, err)
		p1, err := s.AddProfile(u.ID, "User")
		require.NoError(t, err)
		p2, err := s.AddProfile(u.ID, "Kids")
		require.NoError(t, err)

		require.NoError(t, s.DeleteProfile(u.ID, p1.ID))
		require.ErrorIs(t, s.DeleteProfile(u.ID, p1.ID), ErrNotFound)

		list, err := s.ListProfiles(u.ID)
		require.NoError(t, err)
		require.Len(t, list, 1)
		require.Equal(t, p2.ID, list[0].ID)
	})
}

func TestDeleteProfileWrongUser(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		alice, err := s.CreateUser("alice", "hash")
		require.NoError(t, err)
		bob, err := s.CreateUser("bob", "hash")
		require.NoError(t, err)
		p, err := s.AddProfile(alice.ID, "User")
		require.NoError(t, err)

		// bob cannot delete alice's profile
		require.ErrorIs(t, s.DeleteProfile(bob.ID, p.ID), ErrNotFound)
	})
}

func TestUpdateProfileAvatarOnly(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		u, err := s.CreateUser("alice", "hash")
		require.NoError(t, err)
		p, err := s.AddProfile(u.ID, "User")
		require.NoError(t, err)

		avatar := "/assets/avatars/custom.png"
		updated, err := s.UpdateProfile(u.ID, p.ID, nil, &avatar)
		require.NoError(t, err)
		require.Equal(t, p.ID, updated.ID)
		require.Equal(t, "User", updated.Name)
		require.Equal(t, avatar, updated.Avatar)

		list, err := s.ListProfiles(u.ID)
		require.NoError(t, err)
		require.Equal(t, avatar, list[0].Avatar)
	})
}

func TestUpdateProfileRename(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		u, err := s.CreateUser("alice", "hash")
		require.NoError(t, err)
		p, err := s.AddProfile(u.ID, "User")
		require.NoError(t, err)

		name := "Movie Night"
		updated, err := s.UpdateProfile(u.ID, p.ID, &name, nil)
		require.NoError(t, err)
		require.Equal(t, "Movie Night", updated.Name)
		require.Equal(t, p.Avatar, updated.Avatar)

		empty := "  "
		_, err = s.UpdateProfile(u.ID, p.ID, &empty, nil)
		require.ErrorIs(t, err, ErrInvalidName)
	})
}

func TestUpdateProfileNotFound(t *testing.T) {
	forEachStore(t, func(t *testing.T, s Store) {
		u, err := s.CreateUser("alice", "hash")
		require.NoError(t, err)

		avatar := "/x.png"
		_, err = s.UpdateProfile(u.ID, 9999, nil, &avatar)
		require.ErrorIs(t, err, ErrNotFound)
	})
}
