package storage

import (
	"context"
	"sync"
	"time"

	"github.com/openhearth/passgate/internal/models"
)

// MemoryStorage keeps everything in process. It implements all three storage
// contracts, so it can back the whole service for development and tests.
type MemoryStorage struct {
	credentials map[string]map[string]models.Credential
	challenges  map[string]models.Challenge
	sessions    map[string]models.Session
	mu          sync.RWMutex
}

func NewMemoryStorage() *MemoryStorage {
	storage := &MemoryStorage{
		credentials: make(map[string]map[string]models.Credential),
		challenges:  make(map[string]models.Challenge),
		sessions:    make(map[string]models.Session),
	}

	// Start background cleanup routine
	go storage.cleanupRoutine()

	return storage
}

func (m *MemoryStorage) ListCredentials(ctx context.Context, username string) ([]models.Credential, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	creds := make([]models.Credential, 0, len(m.credentials[username]))
	for _, cred := range m.credentials[username] {
		creds = append(creds, cred)
	}
	return creds, nil
}

func (m *MemoryStorage) PutCredential(ctx context.Context, credential models.Credential) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	byID, exists := m.credentials[credential.Owner]
	if !exists {
		byID = make(map[string]models.Credential)
		m.credentials[credential.Owner] = byID
	}
	byID[credential.ID] = credential
	return nil
}

func (m *MemoryStorage) GetChallenge(ctx context.Context, username string) (*models.Challenge, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	challenge, exists := m.challenges[username]
	if !exists {
		return nil, nil
	}
	return &challenge, nil
}

func (m *MemoryStorage) PutChallenge(ctx context.Context, username string, challenge models.Challenge) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.challenges[username] = challenge
	return nil
}

func (m *MemoryStorage) GetSession(ctx context.Context, sessionID string) (*models.Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	session, exists := m.sessions[sessionID]
	if !exists {
		return nil, nil
	}
	return &session, nil
}

func (m *MemoryStorage) PutSession(ctx context.Context, session models.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.sessions[session.ID] = session
	return nil
}

// cleanupRoutine runs every 5 minutes to clean up expired sessions
func (m *MemoryStorage) cleanupRoutine() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for range ticker.C {
		m.cleanup()
	}
}

func (m *MemoryStorage) cleanup() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for sessionID, session := range m.sessions {
		if session.Expired(now) {
			delete(m.sessions, sessionID)
		}
	}
}
