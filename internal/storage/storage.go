package storage

import (
	"context"

	"github.com/openhearth/passgate/internal/models"
)

type CredentialStorage interface {
	// ListCredentials returns every credential registered to the user.
	// A user with no registrations yields an empty slice, not an error.
	ListCredentials(ctx context.Context, username string) ([]models.Credential, error)
	// PutCredential upserts by (owner, credential id).
	PutCredential(ctx context.Context, credential models.Credential) error
}

type ChallengeStorage interface {
	// GetChallenge returns the user's pending challenge, or nil if none exists.
	GetChallenge(ctx context.Context, username string) (*models.Challenge, error)
	// PutChallenge overwrites whatever challenge the user currently has.
	PutChallenge(ctx context.Context, username string, challenge models.Challenge) error
}

type SessionStorage interface {
	// GetSession returns the session, or nil if it is absent.
	GetSession(ctx context.Context, sessionID string) (*models.Session, error)
	PutSession(ctx context.Context, session models.Session) error
}
