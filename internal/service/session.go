package service

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/Payphone-Digital/adminauth/internal/constants"
	apperrors "github.com/Payphone-Digital/adminauth/internal/errors"
	"github.com/Payphone-Digital/adminauth/pkg/cache"
	"github.com/Payphone-Digital/adminauth/pkg/clock"
	ctxutil "github.com/Payphone-Digital/adminauth/pkg/context"
	"github.com/Payphone-Digital/adminauth/pkg/logger"
	"github.com/google/uuid"
)

// Session is server-side web session state. UserID is zero for guests.
type Session struct {
	ID        string            `json:"id"`
	UserID    uint              `json:"user_id"`
	CreatedAt time.Time         `json:"created_at"`
	Data      map[string]string `json:"data,omitempty"`
}

// SessionManager keeps web sessions in the shared key-value store.
type SessionManager struct {
	store cache.Store
	clock clock.Clock
	ttl   time.Duration
}

func NewSessionManager(store cache.Store, clk clock.Clock, ttl time.Duration) *SessionManager {
	return &SessionManager{store: store, clock: clk, ttl: ttl}
}

func sessionKey(id string) string {
	return constants.CacheKeySession + id
}

// TTL is the lifetime of a stored session.
func (m *SessionManager) TTL() time.Duration {
	return m.ttl
}

// Create starts a new session for userID under a fresh random id.
func (m *SessionManager) Create(ctx context.Context, userID uint) (*Session, error) {
	session := &Session{
		ID:        uuid.NewString(),
		UserID:    userID,
		CreatedAt: m.clock.Now(),
		Data:      map[string]string{},
	}
	if err := m.Save(ctx, session); err != nil {
		return nil, err
	}
	return session, nil
}

// Get returns nil, nil for an unknown or expired session.
func (m *SessionManager) Get(ctx context.Context, id string) (*Session, error) {
	raw, found, err := m.store.Get(ctx, sessionKey(id))
	if err != nil {
		return nil, apperrors.Internal(err)
	}
	if !found {
		return nil, nil
	}

	var session Session
	if err := json.Unmarshal([]byte(raw), &session); err != nil {
		return nil, apperrors.Internal(fmt.Errorf("decode session: %w", err))
	}
	return &session, nil
}

func (m *SessionManager) Save(ctx context.Context, session *Session) error {
	raw, err := json.Marshal(session)
	if err != nil {
		return apperrors.Internal(fmt.Errorf("encode session: %w", err))
	}
	if err := m.store.Set(ctx, sessionKey(session.ID), string(raw), m.ttl); err != nil {
		return apperrors.Internal(err)
	}
	return nil
}

// Regenerate replaces old (which may be nil) with a session under a new id
// bound to userID. Data carried by the old session survives.
func (m *SessionManager) Regenerate(ctx context.Context, old *Session, userID uint) (*Session, error) {
	session, err := m.Create(ctx, userID)
	if err != nil {
		return nil, err
	}
	if old == nil {
		return session, nil
	}

	for k, v := range old.Data {
		session.Data[k] = v
	}
	if err := m.Save(ctx, session); err != nil {
		return nil, err
	}
	if err := m.store.Delete(ctx, sessionKey(old.ID)); err != nil {
		return nil, apperrors.Internal(err)
	}
	return session, nil
}

// Invalidate clears the logout keys, destroys session and returns a fresh
// guest session to hand back to the client.
func (m *SessionManager) Invalidate(ctx context.Context, session *Session, reason string) (*Session, error) {
	ctx = ctxutil.WithFunction(ctx, "service", "InvalidateSession")

	logger.InfoWithContext(ctx, "Session cleanup initiated").
		String("reason", reason).
		Uint("user_id", session.UserID).
		String("session_id", session.ID).
		Log()

	for _, key := range constants.SessionCleanupKeys {
		delete(session.Data, key)
	}
	if err := m.store.Delete(ctx, sessionKey(session.ID)); err != nil {
		return nil, apperrors.Internal(err)
	}

	fresh, err := m.Create(ctx, 0)
	if err != nil {
		return nil, err
	}

	logger.InfoWithContext(ctx, "Session cleanup completed").
		String("reason", reason).
		Uint("user_id", session.UserID).
		String("old_session_id", session.ID).
		String("new_session_id", fresh.ID).
		Strings("keys_cleared", constants.SessionCleanupKeys).
		Log()
	return fresh, nil
}
