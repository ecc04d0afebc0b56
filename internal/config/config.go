// Package config resolves the service configuration once at startup.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v10"
	"github.com/joho/godotenv"
	"github.com/redis/go-redis/v9"
)

// DatabaseConfig is the typed credential set for the durable store.
type DatabaseConfig struct {
	Host     string `env:"DB_HOST" envDefault:"localhost"`
	Port     int    `env:"DB_PORT" envDefault:"5432"`
	User     string `env:"DB_USER" envDefault:"user"`
	Password string `env:"DB_PASSWORD" envDefault:"password"`
	Name     string `env:"DB_NAME" envDefault:"liveroomdb"`
	SSLMode  string `env:"DB_SSLMODE" envDefault:"disable"`
}

// DSN renders the libpq keyword/value connection string.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%d sslmode=%s",
		d.Host, d.User, d.Password, d.Name, d.Port, d.SSLMode)
}

// LiveKitConfig addresses the external media service.
type LiveKitConfig struct {
	URL       string        `env:"LIVEKIT_URL"`
	APIKey    string        `env:"LIVEKIT_API_KEY"`
	APISecret string        `env:"LIVEKIT_API_SECRET"`
	TokenTTL  time.Duration `env:"LIVEKIT_TOKEN_TTL" envDefault:"6h"`
	// RoomEmptyTimeout is how long the media room survives without participants.
	RoomEmptyTimeout time.Duration `env:"LIVEKIT_ROOM_EMPTY_TIMEOUT" envDefault:"10m"`
	RecordingLayout  string        `env:"LIVEKIT_RECORDING_LAYOUT" envDefault:"grid"`
}

// Enabled reports whether media calls can be issued.
func (l LiveKitConfig) Enabled() bool {
	return l.URL != "" && l.APIKey != "" && l.APISecret != ""
}

// RecordingStorageConfig is the S3-compatible target the media service uploads to.
type RecordingStorageConfig struct {
	Bucket       string        `env:"RECORDING_S3_BUCKET"`
	Region       string        `env:"RECORDING_S3_REGION" envDefault:"us-east-1"`
	Endpoint     string        `env:"RECORDING_S3_ENDPOINT"`
	AccessKeyID  string        `env:"RECORDING_S3_ACCESS_KEY_ID"`
	SecretKey    string        `env:"RECORDING_S3_SECRET_KEY"`
	UsePathStyle bool          `env:"RECORDING_S3_USE_PATH_STYLE" envDefault:"true"`
	Prefix       string        `env:"RECORDING_S3_PREFIX" envDefault:"recordings"`
	URLExpiry    time.Duration `env:"RECORDING_URL_EXPIRY" envDefault:"1h"`
}

// Enabled reports whether recordings can be uploaded and signed.
func (r RecordingStorageConfig) Enabled() bool {
	return r.Bucket != "" && r.AccessKeyID != "" && r.SecretKey != ""
}

// ICEConfig is advertised to clients that negotiate peer-to-peer.
type ICEConfig struct {
	URLs       []string `env:"ICE_SERVER_URLS" envSeparator:"," envDefault:"stun:stun.l.google.com:19302"`
	Username   string   `env:"ICE_USERNAME"`
	Credential string   `env:"ICE_CREDENTIAL"`
}

// TelegramConfig enables the operator notification channel.
type TelegramConfig struct {
	BotToken  string `env:"TELEGRAM_BOT_TOKEN"`
	OpsChatID int64  `env:"TELEGRAM_OPS_CHAT_ID"`
}

// Enabled reports whether notifications should be sent.
func (t TelegramConfig) Enabled() bool {
	return t.BotToken != "" && t.OpsChatID != 0
}

// Config holds all configuration for the service.
type Config struct {
	Environment     string        `env:"ENVIRONMENT" envDefault:"development"`
	HTTPAddr        string        `env:"HTTP_ADDR" envDefault:":8080"`
	LogLevel        string        `env:"LOG_LEVEL" envDefault:"info"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" envDefault:"10s"`

	JWTSecret string `env:"JWT_SECRET"`
	JWTIssuer string `env:"JWT_ISSUER"`

	// RedisURL enables cross-instance fan-out and distributed session locks.
	RedisURL string `env:"REDIS_URL"`
	// Redis is parsed from RedisURL by Load; nil when Redis is not configured.
	Redis *redis.Options `env:"-"`

	Locale            string        `env:"LOCALE" envDefault:"en"`
	HistoryLimit      int           `env:"HISTORY_LIMIT" envDefault:"50"`
	SessionLockTTL    time.Duration `env:"SESSION_LOCK_TTL" envDefault:"8s"`
	JoinCodeCacheSize int           `env:"JOIN_CODE_CACHE_SIZE" envDefault:"1024"`
	SendQueueSize     int           `env:"SEND_QUEUE_SIZE" envDefault:"256"`

	Database  DatabaseConfig
	LiveKit   LiveKitConfig
	Recording RecordingStorageConfig
	ICE       ICEConfig
	Telegram  TelegramConfig
}

// Load reads an optional .env file and parses the environment into Config.
func Load() (*Config, error) {
	return load(true)
}

// LoadOperator is Load for operator tooling, which never validates client tokens.
func LoadOperator() (*Config, error) {
	return load(false)
}

func load(serving bool) (*Config, error) {
	// .env is optional; real deployments inject the environment directly
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("parse env config: %w", err)
	}

	if serving && strings.TrimSpace(cfg.JWTSecret) == "" {
		return nil, fmt.Errorf("JWT_SECRET is required")
	}
	if cfg.HistoryLimit <= 0 {
		return nil, fmt.Errorf("HISTORY_LIMIT must be positive")
	}

	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			return nil, fmt.Errorf("parse REDIS_URL: %w", err)
		}
		cfg.Redis = opts
	}

	return cfg, nil
}

// IsDevelopment reports whether human-friendly output should be used.
func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}
