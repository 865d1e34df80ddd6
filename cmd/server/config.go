package main

import (
	"fmt"
	"os"
	"time"

	"github.com/jessevdk/go-flags"
	"gopkg.in/yaml.v3"
)

// Config holds all configuration options
type Config struct {
	// Server config
	Port string `long:"port" env:"PORT" default:"8000" description:"Server port"`

	// Relying party config
	RPName       string   `long:"rp-name" env:"RP_NAME" default:"My WebAuthn App" description:"Relying party display name"`
	RPID         string   `long:"rp-id" env:"RP_ID" default:"localhost" description:"Relying party ID"`
	RPOrigins    []string `long:"rp-origin" env:"RP_ORIGIN" env-delim:"," default:"http://localhost:8000" description:"Relying party origins"`
	RPConfigFile string   `long:"rp-config" env:"RP_CONFIG" description:"YAML file overriding the relying party block"`

	// Ceremony policy
	SessionTTL      time.Duration `long:"session-ttl" env:"SESSION_TTL" default:"24h" description:"Session time-to-live"`
	ChallengeMaxAge time.Duration `long:"challenge-max-age" env:"CHALLENGE_MAX_AGE" default:"5m" description:"Maximum age of a pending challenge (0 disables the check)"`

	// Storage config
	StorageMode string `long:"storage-mode" env:"STORAGE_MODE" default:"filesystem" choice:"filesystem" choice:"s3" choice:"memory" description:"Credential storage backend"`
	SessionMode string `long:"session-mode" env:"SESSION_MODE" default:"memory" choice:"memory" choice:"redis" description:"Challenge and session storage backend"`

	// Filesystem storage
	DataPath string `long:"data-path" env:"DATA_PATH" default:"./data" description:"Filesystem storage directory"`

	// S3 storage
	S3 struct {
		Endpoint  string `long:"s3-endpoint" env:"S3_ENDPOINT" default:"localhost:9000" description:"S3 endpoint (host:port)"`
		Bucket    string `long:"s3-bucket" env:"S3_BUCKET" default:"passgate" description:"S3 bucket name"`
		AccessKey string `long:"s3-access-key" env:"S3_ACCESS_KEY" default:"minioadmin" description:"S3 access key"`
		SecretKey string `long:"s3-secret-key" env:"S3_SECRET_KEY" default:"minioadmin" description:"S3 secret key"`
		UseSSL    bool   `long:"s3-use-ssl" env:"S3_USE_SSL" description:"Use SSL for S3 connections"`
	} `group:"S3 Storage Options"`

	// Redis config
	Redis struct {
		Addr     string `long:"redis-addr" env:"REDIS_ADDR" default:"localhost:6379" description:"Redis address"`
		Password string `long:"redis-password" env:"REDIS_PASSWORD" description:"Redis password"`
		DB       int    `long:"redis-db" env:"REDIS_DB" default:"0" description:"Redis database number"`
	} `group:"Redis Options"`
}

// rpFileConfig is the shape of the optional relying party YAML file.
type rpFileConfig struct {
	Name    string   `yaml:"name"`
	ID      string   `yaml:"id"`
	Origins []string `yaml:"origins"`
}

// LoadConfig parses configuration from environment variables and command line flags
func LoadConfig() (*Config, error) {
	var config Config

	parser := flags.NewParser(&config, flags.Default)
	parser.Usage = "[OPTIONS]"

	if _, err := parser.Parse(); err != nil {
		if flags.WroteHelp(err) {
			os.Exit(0)
		}
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	if config.RPConfigFile != "" {
		if err := config.loadRPFile(); err != nil {
			return nil, err
		}
	}

	return &config, nil
}

func (c *Config) loadRPFile() error {
	data, err := os.ReadFile(c.RPConfigFile)
	if err != nil {
		return fmt.Errorf("failed to read rp config %s: %w", c.RPConfigFile, err)
	}

	var rp rpFileConfig
	if err := yaml.Unmarshal(data, &rp); err != nil {
		return fmt.Errorf("failed to parse rp config %s: %w", c.RPConfigFile, err)
	}

	if rp.Name != "" {
		c.RPName = rp.Name
	}
	if rp.ID != "" {
		c.RPID = rp.ID
	}
	if len(rp.Origins) > 0 {
		c.RPOrigins = rp.Origins
	}

	return nil
}
