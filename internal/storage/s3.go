package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/minio/minio-go/v7"
	"github.com/minio/minio-go/v7/pkg/credentials"
	"github.com/openhearth/passgate/internal/models"
)

// S3Storage persists per-user credential lists as JSON objects.
type S3Storage struct {
	client *minio.Client
	bucket string
}

func NewS3Storage(endpoint, accessKey, secretKey, bucket string, useSSL bool) (*S3Storage, error) {
	client, err := minio.New(endpoint, &minio.Options{
		Creds:  credentials.NewStaticV4(accessKey, secretKey, ""),
		Secure: useSSL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create MinIO client: %w", err)
	}

	return &S3Storage{
		client: client,
		bucket: bucket,
	}, nil
}

func (s *S3Storage) ListCredentials(ctx context.Context, username string) ([]models.Credential, error) {
	key := fmt.Sprintf("credentials/%s.json", username)

	object, err := s.client.GetObject(ctx, s.bucket, key, minio.GetObjectOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to get credentials from S3: %w", err)
	}
	defer object.Close()

	data, err := io.ReadAll(object)
	if err != nil {
		errResp := minio.ToErrorResponse(err)
		if errResp.Code == "NoSuchKey" {
			return []models.Credential{}, nil
		}
		return nil, fmt.Errorf("failed to read credentials data: %w", err)
	}

	var creds []models.Credential
	if err := json.Unmarshal(data, &creds); err != nil {
		return nil, fmt.Errorf("failed to unmarshal credentials: %w", err)
	}

	return creds, nil
}

func (s *S3Storage) PutCredential(ctx context.Context, credential models.Credential) error {
	creds, err := s.ListCredentials(ctx, credential.Owner)
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

	data, err := json.Marshal(creds)
	if err != nil {
		return fmt.Errorf("failed to marshal credentials: %w", err)
	}

	key := fmt.Sprintf("credentials/%s.json", credential.Owner)
	_, err = s.client.PutObject(ctx, s.bucket, key, bytes.NewReader(data), int64(len(data)), minio.PutObjectOptions{
		ContentType: "application/json",
	})
	if err != nil {
		return fmt.Errorf("failed to save credentials to S3: %w", err)
	}

	return nil
}
