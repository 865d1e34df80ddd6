package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-webauthn/webauthn/webauthn"
	"github.com/redis/go-redis/v9"

	"github.com/openhearth/passgate/internal/api"
	"github.com/openhearth/passgate/internal/auth"
	"github.com/openhearth/passgate/internal/storage"
)

func main() {
	// Setup structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	cfg, err := LoadConfig()
	if err != nil {
		slog.Error("Failed to load config", "error", err)
		os.Exit(1)
	}

	// Setup WebAuthn
	wconfig := &webauthn.Config{
		RPDisplayName: cfg.RPName,
		RPID:          cfg.RPID,
		RPOrigins:     cfg.RPOrigins,
	}

	webAuthn, err := webauthn.New(wconfig)
	if err != nil {
		slog.Error("Failed to create WebAuthn instance", "error", err)
		os.Exit(1)
	}

	// Setup credential storage
	var credentialStorage storage.CredentialStorage
	switch cfg.StorageMode {
	case "s3":
		s3Storage, err := storage.NewS3Storage(cfg.S3.Endpoint, cfg.S3.AccessKey, cfg.S3.SecretKey, cfg.S3.Bucket, cfg.S3.UseSSL)
		if err != nil {
			slog.Error("Failed to create S3 storage", "error", err)
			os.Exit(1)
		}
		credentialStorage = s3Storage
		slog.Info("Using S3 credential storage", "endpoint", cfg.S3.Endpoint, "bucket", cfg.S3.Bucket)
	case "filesystem":
		fsStorage, err := storage.NewFilesystemStorage(cfg.DataPath)
		if err != nil {
			slog.Error("Failed to create filesystem storage", "error", err)
			os.Exit(1)
		}
		credentialStorage = fsStorage
		slog.Info("Using filesystem credential storage", "path", cfg.DataPath)
	case "memory":
		credentialStorage = storage.NewMemoryStorage()
		slog.Warn("Using in-memory credential storage (not persistent)")
	default:
		slog.Error("Invalid STORAGE_MODE", "mode", cfg.StorageMode, "valid_modes", []string{"filesystem", "s3", "memory"})
		os.Exit(1)
	}

	// Setup challenge and session storage
	var challengeStorage storage.ChallengeStorage
	var sessionStorage storage.SessionStorage
	switch cfg.SessionMode {
	case "redis":
		redisClient := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})

		// Test Redis connection
		ctx := context.Background()
		if err := redisClient.Ping(ctx).Err(); err != nil {
			slog.Error("Failed to connect to Redis", "error", err)
			os.Exit(1)
		}

		redisStorage := storage.NewRedisStorage(redisClient, cfg.ChallengeMaxAge)
		challengeStorage = redisStorage
		sessionStorage = redisStorage
		slog.Info("Using Redis challenge and session storage", "addr", cfg.Redis.Addr)
	case "memory":
		memoryStorage := storage.NewMemoryStorage()
		challengeStorage = memoryStorage
		sessionStorage = memoryStorage
		slog.Warn("Using in-memory challenge and session storage (not persistent)")
	default:
		slog.Error("Invalid SESSION_MODE", "mode", cfg.SessionMode, "valid_modes", []string{"redis", "memory"})
		os.Exit(1)
	}

	// Setup services
	rp := auth.RelyingParty{
		Name:   cfg.RPName,
		ID:     cfg.RPID,
		Origin: cfg.RPOrigins[0],
	}
	challenges := auth.NewChallengeManager(challengeStorage, cfg.ChallengeMaxAge)
	sessions := auth.NewSessionIssuer(sessionStorage, cfg.SessionTTL)
	verifier := auth.NewWebAuthnVerifier(webAuthn)
	engine := auth.NewCeremonyEngine(rp, credentialStorage, challenges, sessions, verifier)
	apiServer := api.NewServer(engine, sessions)

	// Setup routes
	mux := http.NewServeMux()

	mux.HandleFunc("GET /auth/attestation/option", apiServer.AttestationOptionHandler)
	mux.HandleFunc("POST /auth/attestation/result", apiServer.AttestationResultHandler)
	mux.HandleFunc("GET /auth/assertion/option", apiServer.AssertionOptionHandler)
	mux.HandleFunc("POST /auth/assertion/result", apiServer.AssertionResultHandler)
	mux.HandleFunc("GET /restricted", apiServer.RestrictedHandler)
	mux.HandleFunc("GET /health", apiServer.HealthHandler)

	// Apply middleware
	handler := api.LoggingMiddleware(api.CORSMiddleware(mux))

	// Create HTTP server
	server := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: handler,
	}

	fmt.Printf("Passgate starting on http://localhost:%s\n", cfg.Port)
	fmt.Println("Endpoints:")
	fmt.Println("  GET  /auth/attestation/option  - Passkey registration options")
	fmt.Println("  POST /auth/attestation/result  - Complete registration")
	fmt.Println("  GET  /auth/assertion/option    - Passkey authentication options")
	fmt.Println("  POST /auth/assertion/result    - Complete authentication")
	fmt.Println("  GET  /restricted               - Session-protected resource")
	fmt.Println("  GET  /health                   - Health check")

	if err := server.ListenAndServe(); err != nil {
		slog.Error("Server failed", "error", err)
		os.Exit(1)
	}
}
