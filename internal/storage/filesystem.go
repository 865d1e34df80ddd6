package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/openhearth/passgate/internal/models"
)

// FilesystemStorage persists the credentials of each user as one JSON file
// under basePath/credentials. Challenges and sessions are ephemeral and stay
// in the session backend.
type FilesystemStorage struct {
	basePath string
}

func NewFilesystemStorage(basePath string) (*FilesystemStorage, error) {
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create base path %s: %w", basePath, err)
	}

	credentialsPath := filepath.Join(basePath, "credentials")
	if err := os.MkdirAll(credentialsPath, 0755); err != nil {
		return nil, fmt.Errorf("failed to create credentials path: %w", err)
	}

	return &FilesystemStorage{
		basePath: basePath,
	}, nil
}

func (f *FilesystemStorage) userPath(username string) string {
	return filepath.Join(f.basePath, "credentials", username+".json")
}

func (f *FilesystemStorage) ListCredentials(ctx context.Context, username string) ([]models.Credential, error) {
	data, err := os.ReadFile(f.userPath(username))
	if err != nil {
		if os.IsNotExist(err) {
			return []models.Credential{}, nil
		}
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	var creds []models.Credential
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("failed to unmarshal credentials: %w", err)
	}

	return creds, nil
}

func (f *FilesystemStorage) PutCredential(ctx context.Context, credential models.Credential) error {
	creds, err := f.ListCredentials(ctx, credential.Owner)
	if err != nil {
		return err
	}

	replaced := false
	for i, cred := range creds {
		if cred.ID == credential.ID {
			creds[i] = credential
			replaced = true
			break
		}
	}
	if !replaced {
		creds = append(creds, credential)
	}

	data, err := json.MarshalIndent(creds, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	if err := os.WriteFile(f.userPath(credential.Owner), data, 0644); err != nil {
		return fmt.Errorf("failed to write credentials file: %w", err)
	}

	return nil
}
