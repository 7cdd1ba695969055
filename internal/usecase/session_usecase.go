package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"unimarket/internal/credstore"
	"unimarket/internal/domain/entity"
	"unimarket/pkg/errors"
	"unimarket/pkg/logger"
)

// SessionUseCase is the single owner of the authenticated session. Every
// component that needs the token reads it from here; only login, refresh and
// logout mutate it. A nil session means "must re-authenticate".
type SessionUseCase struct {
	api   AuthAPI
	store *credstore.Store

	mu      sync.RWMutex
	session *entity.Session
	subs    map[int]func(*entity.Session)
	nextSub int

	refreshMu   sync.Mutex
	lastRefresh time.Time
}

func NewSessionUseCase(api AuthAPI, store *credstore.Store) *SessionUseCase {
	return &SessionUseCase{
		api:   api,
		store: store,
		subs:  make(map[int]func(*entity.Session)),
	}
}

// Current returns a copy of the session, or nil when signed out.
func (uc *SessionUseCase) Current() *entity.Session {
	uc.mu.RLock()
	defer uc.mu.RUnlock()
	if uc.session == nil {
		return nil
	}
	snapshot := *uc.session
	return &snapshot
}

// AccessToken satisfies the TokenProvider contracts of the REST client and
// the realtime channel. Empty means signed out.
func (uc *SessionUseCase) AccessToken() string {
	uc.mu.RLock()
	defer uc.mu.RUnlock()
	if uc.session == nil {
		return ""
	}
	return uc.session.AccessToken
}

// Subscribe registers fn to run on every session change, including logout
// (fn receives nil). Returns an unsubscribe function.
func (uc *SessionUseCase) Subscribe(fn func(*entity.Session)) func() {
	uc.mu.Lock()
	id := uc.nextSub
	uc.nextSub++
	uc.subs[id] = fn
	uc.mu.Unlock()

	return func() {
		uc.mu.Lock()
		delete(uc.subs, id)
		uc.mu.Unlock()
	}
}

func (uc *SessionUseCase) publish(session *entity.Session) {
	uc.mu.Lock()
	uc.session = session
	fns := make([]func(*entity.Session), 0, len(uc.subs))
	for _, fn := range uc.subs {
		fns = append(fns, fn)
	}
	uc.mu.Unlock()

	for _, fn := range fns {
		fn(session)
	}
}

func (uc *SessionUseCase) Login(ctx context.Context, email, password string) (*entity.Session, error) {
	result, err := uc.api.Login(ctx, email, password)
	if err != nil {
		return nil, err
	}

	session := &entity.Session{
		User:         result.User,
		AccessToken:  result.AccessToken,
		RefreshToken: result.RefreshToken,
	}

	if err := uc.store.Save(session); err != nil {
		logger.Warn("failed to persist credentials: %v", err)
	}

	uc.publish(session)
	return session, nil
}

// Logout purges credentials locally and tells the backend best effort.
func (uc *SessionUseCase) Logout(ctx context.Context) {
	if err := uc.api.Logout(ctx); err != nil {
		logger.Debug("server-side logout failed: %v", err)
	}
	if err := uc.store.Clear(); err != nil {
		logger.Warn("failed to clear persisted credentials: %v", err)
	}
	uc.publish(nil)
}

// Restore rebuilds a session from persisted credentials on startup. The
// cached profile is published optimistically before the token is validated;
// an authorization failure gets exactly one silent refresh (see
// RefreshSession and the client transport); a network failure keeps the
// optimistic session so the app works offline-ish rather than forcing a
// spurious login.
func (uc *SessionUseCase) Restore(ctx context.Context) (*entity.Session, error) {
	cached, err := uc.store.Load()
	if err != nil {
		return nil, errors.Internal("failed to read persisted credentials", err)
	}
	if cached == nil {
		return nil, nil
	}

	uc.publish(cached)

	if tokenExpiringSoon(cached.AccessToken) {
		if err := uc.RefreshSession(ctx); err != nil {
			if errors.IsNetwork(err) {
				logger.Warn("token refresh unreachable, keeping cached session")
				return uc.Current(), nil
			}
			uc.clearSession()
			return nil, err
		}
	}

	user, err := uc.api.Me(ctx)
	if err != nil {
		if errors.IsUnauthorized(err) {
			uc.clearSession()
			return nil, err
		}
		// Backend unreachable or misbehaving: the optimistic session stands.
		logger.Warn("session validation deferred: %v", err)
		return uc.Current(), nil
	}

	session := uc.Current()
	if session == nil {
		return nil, nil
	}
	session.User = *user
	if err := uc.store.Save(session); err != nil {
		logger.Warn("failed to persist credentials: %v", err)
	}
	uc.publish(session)
	return session, nil
}

// RefreshSession exchanges the refresh token for a new pair. It implements
// the REST client's Refresher contract. Single-flight: bursts of concurrent
// 401s produce one refresh call, and a refresh that just happened is not
// repeated.
func (uc *SessionUseCase) RefreshSession(ctx context.Context) error {
	uc.refreshMu.Lock()
	defer uc.refreshMu.Unlock()

	if time.Since(uc.lastRefresh) < 10*time.Second {
		return nil
	}

	session := uc.Current()
	if session == nil || session.RefreshToken == "" {
		return errors.Unauthorized("no refresh token available", nil)
	}

	pair, err := uc.api.Refresh(ctx, session.RefreshToken)
	if err != nil {
		if errors.IsNetwork(err) {
			return err
		}
		// A rejected refresh token is unrecoverable: force logout.
		uc.clearSession()
		return errors.Unauthorized("session expired, please sign in again", err)
	}

	uc.lastRefresh = time.Now()
	session.AccessToken = pair.AccessToken
	if pair.RefreshToken != "" {
		session.RefreshToken = pair.RefreshToken
	}

	if err := uc.store.Save(session); err != nil {
		logger.Warn("failed to persist refreshed credentials: %v", err)
	}
	uc.publish(session)
	return nil
}

func (uc *SessionUseCase) clearSession() {
	if err := uc.store.Clear(); err != nil {
		logger.Warn("failed to clear persisted credentials: %v", err)
	}
	uc.publish(nil)
}

// tokenExpiringSoon peeks at the token's exp claim without verifying the
// signature (verification is the backend's job). Unparseable tokens are
// left to the backend to reject.
func tokenExpiringSoon(token string) bool {
	claims := jwt.MapClaims{}
	parser := jwt.NewParser()
	if _, _, err := parser.ParseUnverified(token, claims); err != nil {
		return false
	}
	exp, err := claims.GetExpirationTime()
	if err != nil || exp == nil {
		return false
	}
	return time.Until(exp.Time) < 30*time.Second
}
