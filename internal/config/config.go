// Package config defines the top-level configuration for the market engine
// daemon and provides validation helpers.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// Config is the root configuration structure. Fields are populated from a
// TOML file and then optionally overridden by MARKETD_* environment
// variables.
type Config struct {
	Engine      EngineConfig      `toml:"engine"`
	Database    DatabaseConfig    `toml:"database"`
	Redis       RedisConfig       `toml:"redis"`
	S3          S3Config          `toml:"s3"`
	Stakehub    StakehubConfig    `toml:"stakehub"`
	Treasury    TreasuryConfig    `toml:"treasury"`
	Auth        AuthConfig        `toml:"auth"`
	Server      ServerConfig      `toml:"server"`
	Notify      NotifyConfig      `toml:"notify"`
	Maintenance MaintenanceConfig `toml:"maintenance"`
	Mode        string            `toml:"mode"`
	LogLevel    string            `toml:"log_level"`
}

// EngineConfig holds the economic parameters of the market engine.
type EngineConfig struct {
	MarketsEnabled   bool     `toml:"markets_enabled"`
	MaxCreatorFeeBps uint32   `toml:"max_creator_fee_bps"`
	ProtocolFeeBps   uint32   `toml:"protocol_fee_bps"`
	BonusPerLevelBps uint32   `toml:"bonus_per_level_bps"`
	SwapFeeBps       uint32   `toml:"swap_fee_bps"`
	DisputeWindow    duration `toml:"dispute_window"`
	VotingWindow     duration `toml:"voting_window"`
	LockTTL          duration `toml:"lock_ttl"`
}

// DatabaseConfig holds PostgreSQL connection parameters.
type DatabaseConfig struct {
	DSN           string `toml:"dsn"`
	Host          string `toml:"host"`
	Port          int    `toml:"port"`
	Database      string `toml:"database"`
	User          string `toml:"user"`
	Password      string `toml:"password"`
	SSLMode       string `toml:"ssl_mode"`
	PoolMaxConns  int    `toml:"pool_max_conns"`
	PoolMinConns  int    `toml:"pool_min_conns"`
	RunMigrations bool   `toml:"run_migrations"`

	// InMemory swaps the Postgres ledger for the in-process one. Meant for
	// local development and tests only.
	InMemory bool `toml:"in_memory"`
}

// RedisConfig holds Redis connection parameters.
type RedisConfig struct {
	Addr       string `toml:"addr"`
	Password   string `toml:"password"`
	DB         int    `toml:"db"`
	PoolSize   int    `toml:"pool_size"`
	MaxRetries int    `toml:"max_retries"`
	TLSEnabled bool   `toml:"tls_enabled"`
}

// S3Config holds S3-compatible object storage parameters for the archiver.
type S3Config struct {
	Enabled        bool   `toml:"enabled"`
	Endpoint       string `toml:"endpoint"`
	Region         string `toml:"region"`
	Bucket         string `toml:"bucket"`
	AccessKey      string `toml:"access_key"`
	SecretKey      string `toml:"secret_key"`
	UseSSL         bool   `toml:"use_ssl"`
	ForcePathStyle bool   `toml:"force_path_style"`
}

// StakehubConfig holds the staking-registry endpoint. Lookups are
// best-effort; an empty URL disables the external oracle entirely.
type StakehubConfig struct {
	URL    string `toml:"url"`
	APIKey string `toml:"api_key"`
}

// TreasuryConfig holds the payment-rail endpoint and its HMAC credentials.
// The secret may be supplied raw or via an encrypted file plus password.
type TreasuryConfig struct {
	URL                 string `toml:"url"`
	APIKey              string `toml:"api_key"`
	APISecret           string `toml:"api_secret"`
	EncryptedSecretPath string `toml:"encrypted_secret_path"`
	SecretPassword      string `toml:"secret_password"`
}

// AuthConfig holds the API key for the HTTP surface and the capability
// allow-lists.
type AuthConfig struct {
	APIKey   string   `toml:"api_key"`
	Creators []string `toml:"creators"`
	Admins   []string `toml:"admins"`
}

// ServerConfig holds HTTP server parameters.
type ServerConfig struct {
	Enabled         bool     `toml:"enabled"`
	Port            int      `toml:"port"`
	CORSOrigins     []string `toml:"cors_origins"`
	RateLimit       int      `toml:"rate_limit"`
	RateLimitWindow duration `toml:"rate_limit_window"`
}

// NotifyConfig holds notification channel credentials. Events lists the
// event types forwarded to senders, either exact ("market.resolved") or as
// a family wildcard ("dispute.*"); empty forwards everything.
type NotifyConfig struct {
	TelegramToken     string   `toml:"telegram_token"`
	TelegramChatID    string   `toml:"telegram_chat_id"`
	DiscordWebhookURL string   `toml:"discord_webhook_url"`
	Events            []string `toml:"events"`
}

// MaintenanceConfig holds the background loop parameters.
type MaintenanceConfig struct {
	LockSweepInterval    duration `toml:"lock_sweep_interval"`
	ArchiveInterval      duration `toml:"archive_interval"`
	ArchiveRetentionDays int      `toml:"archive_retention_days"`
}

// duration is a wrapper around time.Duration that supports TOML string
// decoding (e.g. "5m", "30s").
type duration struct {
	time.Duration
}

// UnmarshalText implements encoding.TextUnmarshaler so the TOML decoder can
// parse duration strings like "5m" or "30s".
func (d *duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

// MarshalText implements encoding.TextMarshaler for round-trip encoding.
func (d duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

// Defaults returns a Config populated with reasonable default values.
func Defaults() Config {
	return Config{
		Engine: EngineConfig{
			MarketsEnabled:   true,
			MaxCreatorFeeBps: 500,
			ProtocolFeeBps:   200,
			BonusPerLevelBps: 250,
			SwapFeeBps:       30,
			DisputeWindow:    duration{24 * time.Hour},
			VotingWindow:     duration{24 * time.Hour},
			LockTTL:          duration{10 * time.Second},
		},
		Database: DatabaseConfig{
			Host:          "localhost",
			Port:          5432,
			Database:      "marketd",
			User:          "postgres",
			SSLMode:       "disable",
			PoolMaxConns:  10,
			PoolMinConns:  2,
			RunMigrations: true,
		},
		Redis: RedisConfig{
			Addr:       "localhost:6379",
			DB:         0,
			PoolSize:   20,
			MaxRetries: 3,
			TLSEnabled: false,
		},
		S3: S3Config{
			Enabled:        false,
			Endpoint:       "http://localhost:9000",
			Region:         "us-east-1",
			Bucket:         "marketd-archive",
			UseSSL:         false,
			ForcePathStyle: true,
		},
		Server: ServerConfig{
			Enabled:         true,
			Port:            8000,
			CORSOrigins:     []string{"http://localhost:3000", "http://localhost:5173"},
			RateLimit:       120,
			RateLimitWindow: duration{time.Minute},
		},
		Notify: NotifyConfig{
			Events: []string{
				"market.resolved",
				"market.cancelled",
				"dispute.*",
			},
		},
		Maintenance: MaintenanceConfig{
			LockSweepInterval:    duration{30 * time.Second},
			ArchiveInterval:      duration{24 * time.Hour},
			ArchiveRetentionDays: 90,
		},
		Mode:     "full",
		LogLevel: "info",
	}
}

// validModes enumerates the accepted values for Config.Mode.
var validModes = map[string]bool{
	"serve":  true, // HTTP API only
	"worker": true, // maintenance loops only
	"full":   true, // everything
}

// validLogLevels enumerates the accepted values for Config.LogLevel.
var validLogLevels = map[string]bool{
	"debug": true,
	"info":  true,
	"warn":  true,
	"error": true,
}

// Validate checks Config for obviously invalid or missing values and returns
// a combined error describing every problem found.
func (c *Config) Validate() error {
	var errs []string

	if !validModes[strings.ToLower(c.Mode)] {
		errs = append(errs, fmt.Sprintf("unknown mode %q (valid: serve, worker, full)", c.Mode))
	}
	if !validLogLevels[strings.ToLower(c.LogLevel)] {
		errs = append(errs, fmt.Sprintf("unknown log_level %q (valid: debug, info, warn, error)", c.LogLevel))
	}

	// Engine
	if c.Engine.MaxCreatorFeeBps > 10000 {
		errs = append(errs, "engine: max_creator_fee_bps must not exceed 10000")
	}
	if c.Engine.ProtocolFeeBps > 10000 {
		errs = append(errs, "engine: protocol_fee_bps must not exceed 10000")
	}
	if c.Engine.SwapFeeBps > 10000 {
		errs = append(errs, "engine: swap_fee_bps must not exceed 10000")
	}
	if c.Engine.DisputeWindow.Duration <= 0 {
		errs = append(errs, "engine: dispute_window must be positive")
	}
	if c.Engine.VotingWindow.Duration <= 0 {
		errs = append(errs, "engine: voting_window must be positive")
	}
	if c.Engine.LockTTL.Duration <= 0 {
		errs = append(errs, "engine: lock_ttl must be positive")
	}

	// Database
	if !c.Database.InMemory {
		if strings.TrimSpace(c.Database.DSN) == "" {
			if c.Database.Host == "" {
				errs = append(errs, "database: host must not be empty (or set database.dsn)")
			}
			if c.Database.Port <= 0 || c.Database.Port > 65535 {
				errs = append(errs, fmt.Sprintf("database: port must be 1-65535, got %d", c.Database.Port))
			}
			if c.Database.Database == "" {
				errs = append(errs, "database: database must not be empty")
			}
		}
		if c.Database.PoolMaxConns < 1 {
			errs = append(errs, "database: pool_max_conns must be >= 1")
		}
		if c.Database.PoolMinConns < 0 {
			errs = append(errs, "database: pool_min_conns must be >= 0")
		}
		if c.Database.PoolMinConns > c.Database.PoolMaxConns {
			errs = append(errs, "database: pool_min_conns must not exceed pool_max_conns")
		}
	}

	// Redis
	if c.Redis.Addr == "" {
		errs = append(errs, "redis: addr must not be empty")
	}
	if c.Redis.PoolSize < 1 {
		errs = append(errs, "redis: pool_size must be >= 1")
	}

	// S3
	if c.S3.Enabled {
		if c.S3.Endpoint == "" {
			errs = append(errs, "s3: endpoint must not be empty when enabled")
		}
		if c.S3.Bucket == "" {
			errs = append(errs, "s3: bucket must not be empty when enabled")
		}
	}

	// Treasury — the payment rail is mandatory; every stake movement goes
	// through it.
	if c.Treasury.URL == "" {
		errs = append(errs, "treasury: url must not be empty")
	}
	if c.Treasury.APIKey == "" {
		errs = append(errs, "treasury: api_key must not be empty")
	}
	if c.Treasury.APISecret == "" && c.Treasury.EncryptedSecretPath == "" {
		errs = append(errs, "treasury: either api_secret or encrypted_secret_path must be set")
	}
	if c.Treasury.EncryptedSecretPath != "" && c.Treasury.SecretPassword == "" {
		errs = append(errs, "treasury: secret_password is required when encrypted_secret_path is set")
	}

	// Auth allow-lists must parse as addresses.
	for _, a := range c.Auth.Creators {
		if !common.IsHexAddress(a) {
			errs = append(errs, fmt.Sprintf("auth: invalid creator address %q", a))
		}
	}
	for _, a := range c.Auth.Admins {
		if !common.IsHexAddress(a) {
			errs = append(errs, fmt.Sprintf("auth: invalid admin address %q", a))
		}
	}

	// Server
	if c.Server.Enabled {
		if c.Server.Port <= 0 || c.Server.Port > 65535 {
			errs = append(errs, fmt.Sprintf("server: port must be 1-65535, got %d", c.Server.Port))
		}
		if c.Server.RateLimit < 0 {
			errs = append(errs, "server: rate_limit must be >= 0")
		}
	}

	// Maintenance
	if c.Maintenance.LockSweepInterval.Duration <= 0 {
		errs = append(errs, "maintenance: lock_sweep_interval must be positive")
	}
	if c.Maintenance.ArchiveRetentionDays < 0 {
		errs = append(errs, "maintenance: archive_retention_days must be >= 0")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}

// CreatorAddresses returns the parsed creator allow-list. Call Validate
// first; invalid entries are skipped here.
func (c *Config) CreatorAddresses() []common.Address {
	return parseAddresses(c.Auth.Creators)
}

// AdminAddresses returns the parsed admin allow-list.
func (c *Config) AdminAddresses() []common.Address {
	return parseAddresses(c.Auth.Admins)
}

func parseAddresses(raw []string) []common.Address {
	out := make([]common.Address, 0, len(raw))
	for _, a := range raw {
		if common.IsHexAddress(a) {
			out = append(out, common.HexToAddress(a))
		}
	}
	return out
}
