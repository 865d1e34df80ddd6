package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/openhearth/passgate/internal/models"
	"github.com/openhearth/passgate/internal/storage"
)

// SessionIssuer mints bearer sessions after a successful authentication
// ceremony and resolves them back to their owner. Expiry is enforced lazily
// at resolution time; no background purge runs here.
type SessionIssuer struct {
	sessions storage.SessionStorage
	ttl      time.Duration
}

func NewSessionIssuer(sessions storage.SessionStorage, ttl time.Duration) *SessionIssuer {
	return &SessionIssuer{
		sessions: sessions,
		ttl:      ttl,
	}
}

// Issue creates and persists a session bound to the user. The session id is
// the opaque token the host hands to the client.
func (s *SessionIssuer) Issue(ctx context.Context, username string) (*models.Session, error) {
	now := time.Now()
	session := models.Session{
		ID:        uuid.NewString(),
		Username:  username,
		CreatedAt: now,
		ExpiresAt: now.Add(s.ttl),
	}

	if err := s.sessions.PutSession(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to save session: %w", err)
	}

	return &session, nil
}

// Resolve returns the username bound to the session id. An absent or expired
// session yields ErrNoSession.
func (s *SessionIssuer) Resolve(ctx context.Context, sessionID string) (string, error) {
	session, err := s.sessions.GetSession(ctx, sessionID)
	if err != nil {
		return "", fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil || session.Expired(time.Now()) {
		return "", ErrNoSession
	}

	return session.Username, nil
}
