package auth

import (
	"context"
	"encoding/base64"
	"fmt"
	"time"

	"github.com/go-webauthn/webauthn/protocol"
	"github.com/openhearth/passgate/internal/models"
	"github.com/openhearth/passgate/internal/storage"
)

// ChallengeManager issues and consumes the one-time server challenges that
// authenticators sign over. Each user has a single challenge slot: issuing a
// new challenge silently invalidates the previous one, so two concurrent
// ceremonies for the same user race last-write-wins on the slot.
type ChallengeManager struct {
	challenges storage.ChallengeStorage
	maxAge     time.Duration
}

// NewChallengeManager creates a manager whose challenges expire maxAge after
// issuance. A maxAge of zero disables the age check.
func NewChallengeManager(challenges storage.ChallengeStorage, maxAge time.Duration) *ChallengeManager {
	return &ChallengeManager{
		challenges: challenges,
		maxAge:     maxAge,
	}
}

// Issue generates a fresh random challenge for the user and persists it,
// discarding whatever challenge previously existed.
func (m *ChallengeManager) Issue(ctx context.Context, username string) (string, error) {
	raw, err := protocol.CreateChallenge()
	if err != nil {
		return "", fmt.Errorf("failed to generate challenge: %w", err)
	}

	challenge := models.Challenge{
		Value:     base64.RawURLEncoding.EncodeToString(raw),
		CreatedAt: time.Now(),
	}

	if err := m.challenges.PutChallenge(ctx, username, challenge); err != nil {
		return "", fmt.Errorf("failed to save challenge: %w", err)
	}

	return challenge.Value, nil
}

// Consume reads the user's current challenge. It does not delete it; the slot
// is naturally overwritten on the next Issue. A missing or stale challenge
// yields ErrNoChallenge.
func (m *ChallengeManager) Consume(ctx context.Context, username string) (string, error) {
	challenge, err := m.challenges.GetChallenge(ctx, username)
	if err != nil {
		return "", fmt.Errorf("failed to get challenge: %w", err)
	}
	if challenge == nil {
		return "", ErrNoChallenge
	}
	if m.maxAge > 0 && time.Since(challenge.CreatedAt) > m.maxAge {
		return "", ErrNoChallenge
	}

	return challenge.Value, nil
}
