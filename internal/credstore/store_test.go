package credstore

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unimarket/internal/domain/entity"
)

func TestSaveLoadRoundtrip(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "nested", "credentials.json"))

	session := &entity.Session{
		User:         entity.User{ID: "u1", Username: "dina"},
		AccessToken:  "access-1",
		RefreshToken: "refresh-1",
	}
	require.NoError(t, store.Save(session))
	assert.False(t, session.SavedAt.IsZero())

	loaded, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, loaded)
	assert.Equal(t, "u1", loaded.User.ID)
	assert.Equal(t, "access-1", loaded.AccessToken)
	assert.Equal(t, "refresh-1", loaded.RefreshToken)
}

func TestLoadMissingFileReturnsNil(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "credentials.json"))

	loaded, err := store.Load()

	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestLoadCorruptFileTreatedAsAbsent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))
	store := New(path)

	loaded, err := store.Load()

	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestLoadWithoutAccessTokenReturnsNil(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"user":{"id":"u1"}}`), 0o600))
	store := New(path)

	loaded, err := store.Load()

	require.NoError(t, err)
	assert.Nil(t, loaded)
}

func TestClearIsIdempotent(t *testing.T) {
	store := New(filepath.Join(t.TempDir(), "credentials.json"))

	require.NoError(t, store.Save(&entity.Session{AccessToken: "access-1"}))
	require.NoError(t, store.Clear())

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Nil(t, loaded)

	// Clearing again is not an error.
	require.NoError(t, store.Clear())
}

func TestSaveRestrictsFilePermissions(t *testing.T) {
	path := filepath.Join(t.TempDir(), "credentials.json")
	store := New(path)
	require.NoError(t, store.Save(&entity.Session{AccessToken: "access-1"}))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o600), info.Mode().Perm())
}
