package auth

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"hush/store"
)

func TestFindOrCreateUserIsIdempotent(t *testing.T) {
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	g := &Google{store: s}
	profile := &googleProfile{ID: "109876543210", Email: "g@example.com", Name: "G User"}

	first, err := g.findOrCreateUser(profile)
	require.NoError(t, err)
	require.Equal(t, "109876543210", first.GoogleID)

	second, err := g.findOrCreateUser(profile)
	require.NoError(t, err)
	require.Equal(t, first.ID, second.ID, "same profile id must resolve to the same user")

	// exactly one record exists for the identity
	u, err := s.UserByGoogleID(profile.ID)
	require.NoError(t, err)
	require.Equal(t, first.ID, u.ID)
}

func TestFindOrCreateUserDistinctProfiles(t *testing.T) {
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	g := &Google{store: s}

	a, err := g.findOrCreateUser(&googleProfile{ID: "profile-a"})
	require.NoError(t, err)
	b, err := g.findOrCreateUser(&googleProfile{ID: "profile-b"})
	require.NoError(t, err)
	require.NotEqual(t, a.ID, b.ID)
}
