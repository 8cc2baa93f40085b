package session

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"hush/cryptoutil"
	"hush/store"
)

const (
	SessionContextKey = "session"
	sessionCookieName = "session"
	oneDayInHours     = 24
)

type Manager struct {
	store                   store.Store
	sessionExpirationInDays int64
	refreshThresholdInDays  int64
	isProd                  bool
}

func NewManager(store store.Store, sessionExpirationInDays int64, refreshThresholdInDays int64, isProd bool) *Manager {
	return &Manager{
		store:                   store,
		sessionExpirationInDays: sessionExpirationInDays,
		refreshThresholdInDays:  refreshThresholdInDays,
		isProd:                  isProd,
	}
}

// CreateSession makes the user the authenticated identity of this client:
// it issues an opaque token, persists its hash, and sets the session cookie.
func (m *Manager) CreateSession(w http.ResponseWriter, userID int64) error {
	token, err := cryptoutil.Random()
	if err != nil {
		return err
	}

	sessionID := cryptoutil.ID(token)
	expiresAt := m.newExpiresAt()
	session, err := m.store.CreateSession(sessionID, userID, expiresAt)
	if err != nil {
		return err
	}
	m.SetSessionCookie(w, token, session.ExpiresAt)
	return nil
}

type SessionValidationResult struct {
	Session *store.Session `json:"session"`
	User    *store.User    `json:"user"`
}

func (m *Manager) newExpiresAt() int64 {
	return time.Now().Add(time.Duration(m.sessionExpirationInDays) * oneDayInHours * time.Hour).Unix()
}

// ValidateSessionToken resolves a cookie token back to its session and
// user. A token that references a missing session or user yields an error,
// never a panic: callers treat that as unauthenticated. Expired sessions
// are deleted and reported as (nil, nil); sessions close to expiry get
// their lifetime extended.
func (m *Manager) ValidateSessionToken(token string) (*SessionValidationResult, error) {
	if token == "" {
		return nil, errors.New("empty session token")
	}

	sessionID := cryptoutil.ID(token)
	session, user, err := m.store.SessionAndUserBySessionID(sessionID)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	expiresAt := time.Unix(session.ExpiresAt, 0)

	if now.After(expiresAt) {
		if err := m.store.DeleteSessionBySessionID(session.ID); err != nil {
			return nil, fmt.Errorf("error deleting expired session: %w", err)
		}
		return nil, nil
	}

	thresholdDuration := time.Duration(m.refreshThresholdInDays) * oneDayInHours * time.Hour
	thresholdTime := expiresAt.Add(-thresholdDuration)

	if now.After(thresholdTime) {
		newExpiresAt := m.newExpiresAt()
		err = m.store.RefreshSession(session.ID, newExpiresAt)
		if err != nil {
			return nil, fmt.Errorf("error refreshing session: %w", err)
		}
		session.ExpiresAt = newExpiresAt
	}

	return &SessionValidationResult{Session: session, User: user}, nil
}

func (m *Manager) InvalidateSession(sessionID string) error {
	return m.store.DeleteSessionBySessionID(sessionID)
}

func (m *Manager) InvalidateUserSessions(userID int64) error {
	return m.store.DeleteSessionsByUserID(userID)
}

func (m *Manager) SetSessionCookie(w http.ResponseWriter, token string, expiresAt int64) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    token,
		HttpOnly: true,
		Path:     "/",
		Secure:   m.isProd,
		SameSite: http.SameSiteLaxMode,
		Expires:  time.Unix(expiresAt, 0),
	})
}

func (m *Manager) DeleteSessionCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     sessionCookieName,
		Value:    "",
		HttpOnly: true,
		Path:     "/",
		Secure:   m.isProd,
		SameSite: http.SameSiteLaxMode,
		MaxAge:   -1,
	})
}

// GetCurrentSession reads the session cookie off the request and validates
// it. Requests without a cookie are simply unauthenticated.
func (m *Manager) GetCurrentSession(r *http.Request) (*SessionValidationResult, error) {
	cookie, err := r.Cookie(sessionCookieName)
	if err != nil {
		return nil, fmt.Errorf("error getting session cookie: %w", err)
	}

	if cookie.Value == "" {
		return nil, errors.New("session cookie is empty")
	}

	result, err := m.ValidateSessionToken(cookie.Value)
	if err != nil {
		return nil, fmt.Errorf("error validating session token: %w", err)
	}

	return result, nil
}

// Logout clears the authenticated identity: the session row is removed and
// the cookie expired. Calling it without an active session is a no-op.
func (m *Manager) Logout(w http.ResponseWriter, r *http.Request) {
	result, err := m.GetCurrentSession(r)
	if err == nil && result != nil && result.Session != nil {
		if err := m.InvalidateSession(result.Session.ID); err != nil {
			slog.Error("error invalidating session on logout", "err", err)
		}
	}
	m.DeleteSessionCookie(w)
}

func FromContext(ctx context.Context) (*SessionValidationResult, bool) {
	session, ok := ctx.Value(SessionContextKey).(*SessionValidationResult)
	return session, ok
}
