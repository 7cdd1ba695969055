package usecase

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"unimarket/internal/client"
	"unimarket/internal/credstore"
	"unimarket/internal/domain/entity"
	"unimarket/pkg/errors"
)

func signedToken(t *testing.T, expiresIn time.Duration) string {
	t.Helper()
	claims := jwt.MapClaims{
		"sub": "self",
		"exp": time.Now().Add(expiresIn).Unix(),
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte("test-secret"))
	require.NoError(t, err)
	return token
}

func newSessionStore(t *testing.T) *credstore.Store {
	t.Helper()
	return credstore.New(filepath.Join(t.TempDir(), "credentials.json"))
}

func TestRestoreWithoutCredentials(t *testing.T) {
	auth := &stubAuthAPI{}
	uc := NewSessionUseCase(auth, newSessionStore(t))

	session, err := uc.Restore(context.Background())

	require.NoError(t, err)
	assert.Nil(t, session)
	assert.Equal(t, int64(0), auth.meCalls.Load())
}

func TestRestoreExpiredTokenRefreshesOnce(t *testing.T) {
	store := newSessionStore(t)
	require.NoError(t, store.Save(&entity.Session{
		User:         entity.User{ID: "self", Username: "self"},
		AccessToken:  signedToken(t, -time.Minute),
		RefreshToken: "refresh-1",
	}))

	auth := &stubAuthAPI{
		refreshFn: func(refreshToken string) (*client.TokenPair, error) {
			assert.Equal(t, "refresh-1", refreshToken)
			return &client.TokenPair{AccessToken: signedToken(t, time.Hour), RefreshToken: "refresh-2"}, nil
		},
	}
	uc := NewSessionUseCase(auth, store)

	session, err := uc.Restore(context.Background())

	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, int64(1), auth.refreshCalls.Load())
	assert.Equal(t, int64(1), auth.meCalls.Load())

	persisted, err := store.Load()
	require.NoError(t, err)
	require.NotNil(t, persisted)
	assert.Equal(t, "refresh-2", persisted.RefreshToken)
}

func TestRestoreKeepsSessionWhenBackendUnreachable(t *testing.T) {
	store := newSessionStore(t)
	require.NoError(t, store.Save(&entity.Session{
		User:         entity.User{ID: "self", Username: "self"},
		AccessToken:  signedToken(t, time.Hour),
		RefreshToken: "refresh-1",
	}))

	auth := &stubAuthAPI{
		meFn: func() (*entity.User, error) {
			return nil, errors.Network("could not reach the server", nil)
		},
	}
	uc := NewSessionUseCase(auth, store)

	session, err := uc.Restore(context.Background())

	require.NoError(t, err)
	require.NotNil(t, session)
	assert.Equal(t, "self", session.User.ID)
	assert.Equal(t, int64(0), auth.refreshCalls.Load())
}

func TestRestoreRejectedRefreshForcesLogin(t *testing.T) {
	store := newSessionStore(t)
	require.NoError(t, store.Save(&entity.Session{
		User:         entity.User{ID: "self", Username: "self"},
		AccessToken:  signedToken(t, -time.Minute),
		RefreshToken: "refresh-1",
	}))

	auth := &stubAuthAPI{
		refreshFn: func(string) (*client.TokenPair, error) {
			return nil, errors.Unauthorized("refresh token revoked", nil)
		},
	}
	uc := NewSessionUseCase(auth, store)

	session, err := uc.Restore(context.Background())

	require.Error(t, err)
	assert.True(t, errors.IsUnauthorized(err))
	assert.Nil(t, session)
	assert.Nil(t, uc.Current())

	persisted, loadErr := store.Load()
	require.NoError(t, loadErr)
	assert.Nil(t, persisted)
}

func TestRefreshSessionSuppressesBursts(t *testing.T) {
	store := newSessionStore(t)
	auth := &stubAuthAPI{
		loginFn: func(email, password string) (*client.AuthResult, error) {
			return &client.AuthResult{
				User:         entity.User{ID: "self", Username: "self"},
				AccessToken:  signedToken(t, time.Hour),
				RefreshToken: "refresh-1",
			}, nil
		},
		refreshFn: func(string) (*client.TokenPair, error) {
			return &client.TokenPair{AccessToken: signedToken(t, time.Hour)}, nil
		},
	}
	uc := NewSessionUseCase(auth, store)

	_, err := uc.Login(context.Background(), "self@campus.edu", "secret")
	require.NoError(t, err)

	require.NoError(t, uc.RefreshSession(context.Background()))
	require.NoError(t, uc.RefreshSession(context.Background()))

	assert.Equal(t, int64(1), auth.refreshCalls.Load())
}

func TestLoginAndLogoutNotifySubscribers(t *testing.T) {
	store := newSessionStore(t)
	auth := &stubAuthAPI{
		loginFn: func(email, password string) (*client.AuthResult, error) {
			assert.Equal(t, "self@campus.edu", email)
			return &client.AuthResult{
				User:         entity.User{ID: "self", Username: "self"},
				AccessToken:  signedToken(t, time.Hour),
				RefreshToken: "refresh-1",
			}, nil
		},
	}
	uc := NewSessionUseCase(auth, store)

	var published []*entity.Session
	unsubscribe := uc.Subscribe(func(s *entity.Session) {
		published = append(published, s)
	})
	defer unsubscribe()

	session, err := uc.Login(context.Background(), "self@campus.edu", "secret")
	require.NoError(t, err)
	require.NotNil(t, session)
	assert.NotEmpty(t, uc.AccessToken())

	uc.Logout(context.Background())

	require.Len(t, published, 2)
	assert.NotNil(t, published[0])
	assert.Nil(t, published[1])
	assert.Nil(t, uc.Current())
	assert.Empty(t, uc.AccessToken())

	persisted, loadErr := store.Load()
	require.NoError(t, loadErr)
	assert.Nil(t, persisted)
}
