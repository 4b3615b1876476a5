package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

// Load reads a TOML configuration file at path, merges it on top of the
// built-in defaults, applies MARKETD_* environment variable overrides, and
// returns the final Config. The returned Config has NOT been validated; the
// caller should invoke Config.Validate() after Load.
func Load(path string) (*Config, error) {
	cfg := Defaults()

	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return nil, err
	}

	// Load .env file if present (silently ignore if missing).
	_ = godotenv.Load()

	applyEnvOverrides(&cfg)

	return &cfg, nil
}

// applyEnvOverrides reads well-known MARKETD_* environment variables and
// overwrites the corresponding Config fields when a variable is set (i.e.
// not empty). This lets operators inject secrets at deploy time without
// touching the TOML file.
func applyEnvOverrides(cfg *Config) {
	// ── Engine ──
	setBool(&cfg.Engine.MarketsEnabled, "MARKETD_ENGINE_MARKETS_ENABLED")
	setUint32(&cfg.Engine.MaxCreatorFeeBps, "MARKETD_ENGINE_MAX_CREATOR_FEE_BPS")
	setUint32(&cfg.Engine.ProtocolFeeBps, "MARKETD_ENGINE_PROTOCOL_FEE_BPS")
	setUint32(&cfg.Engine.BonusPerLevelBps, "MARKETD_ENGINE_BONUS_PER_LEVEL_BPS")
	setUint32(&cfg.Engine.SwapFeeBps, "MARKETD_ENGINE_SWAP_FEE_BPS")
	setDuration(&cfg.Engine.DisputeWindow, "MARKETD_ENGINE_DISPUTE_WINDOW")
	setDuration(&cfg.Engine.VotingWindow, "MARKETD_ENGINE_VOTING_WINDOW")
	setDuration(&cfg.Engine.LockTTL, "MARKETD_ENGINE_LOCK_TTL")

	// ── Database ──
	setStr(&cfg.Database.DSN, "MARKETD_DATABASE_DSN")
	setStr(&cfg.Database.Host, "MARKETD_DATABASE_HOST")
	setInt(&cfg.Database.Port, "MARKETD_DATABASE_PORT")
	setStr(&cfg.Database.Database, "MARKETD_DATABASE_DATABASE")
	setStr(&cfg.Database.User, "MARKETD_DATABASE_USER")
	setStr(&cfg.Database.Password, "MARKETD_DATABASE_PASSWORD")
	setStr(&cfg.Database.SSLMode, "MARKETD_DATABASE_SSL_MODE")
	setInt(&cfg.Database.PoolMaxConns, "MARKETD_DATABASE_POOL_MAX_CONNS")
	setInt(&cfg.Database.PoolMinConns, "MARKETD_DATABASE_POOL_MIN_CONNS")
	setBool(&cfg.Database.RunMigrations, "MARKETD_DATABASE_RUN_MIGRATIONS")
	setBool(&cfg.Database.InMemory, "MARKETD_DATABASE_IN_MEMORY")

	// ── Redis ──
	setStr(&cfg.Redis.Addr, "MARKETD_REDIS_ADDR")
	setStr(&cfg.Redis.Password, "MARKETD_REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "MARKETD_REDIS_DB")
	setInt(&cfg.Redis.PoolSize, "MARKETD_REDIS_POOL_SIZE")
	setInt(&cfg.Redis.MaxRetries, "MARKETD_REDIS_MAX_RETRIES")
	setBool(&cfg.Redis.TLSEnabled, "MARKETD_REDIS_TLS_ENABLED")

	// ── S3 ──
	setBool(&cfg.S3.Enabled, "MARKETD_S3_ENABLED")
	setStr(&cfg.S3.Endpoint, "MARKETD_S3_ENDPOINT")
	setStr(&cfg.S3.Region, "MARKETD_S3_REGION")
	setStr(&cfg.S3.Bucket, "MARKETD_S3_BUCKET")
	setStr(&cfg.S3.AccessKey, "MARKETD_S3_ACCESS_KEY")
	setStr(&cfg.S3.SecretKey, "MARKETD_S3_SECRET_KEY")
	setBool(&cfg.S3.UseSSL, "MARKETD_S3_USE_SSL")
	setBool(&cfg.S3.ForcePathStyle, "MARKETD_S3_FORCE_PATH_STYLE")

	// ── Stakehub ──
	setStr(&cfg.Stakehub.URL, "MARKETD_STAKEHUB_URL")
	setStr(&cfg.Stakehub.APIKey, "MARKETD_STAKEHUB_API_KEY")

	// ── Treasury ──
	setStr(&cfg.Treasury.URL, "MARKETD_TREASURY_URL")
	setStr(&cfg.Treasury.APIKey, "MARKETD_TREASURY_API_KEY")
	setStr(&cfg.Treasury.APISecret, "MARKETD_TREASURY_API_SECRET")
	setStr(&cfg.Treasury.EncryptedSecretPath, "MARKETD_TREASURY_ENCRYPTED_SECRET_PATH")
	setStr(&cfg.Treasury.SecretPassword, "MARKETD_TREASURY_SECRET_PASSWORD")

	// ── Auth ──
	setStr(&cfg.Auth.APIKey, "MARKETD_AUTH_API_KEY")
	setStringSlice(&cfg.Auth.Creators, "MARKETD_AUTH_CREATORS")
	setStringSlice(&cfg.Auth.Admins, "MARKETD_AUTH_ADMINS")

	// ── Server ──
	setBool(&cfg.Server.Enabled, "MARKETD_SERVER_ENABLED")
	setInt(&cfg.Server.Port, "MARKETD_SERVER_PORT")
	setStringSlice(&cfg.Server.CORSOrigins, "MARKETD_SERVER_CORS_ORIGINS")
	setInt(&cfg.Server.RateLimit, "MARKETD_SERVER_RATE_LIMIT")
	setDuration(&cfg.Server.RateLimitWindow, "MARKETD_SERVER_RATE_LIMIT_WINDOW")

	// ── Notify ──
	setStr(&cfg.Notify.TelegramToken, "MARKETD_NOTIFY_TELEGRAM_TOKEN")
	setStr(&cfg.Notify.TelegramChatID, "MARKETD_NOTIFY_TELEGRAM_CHAT_ID")
	setStr(&cfg.Notify.DiscordWebhookURL, "MARKETD_NOTIFY_DISCORD_WEBHOOK_URL")
	setStringSlice(&cfg.Notify.Events, "MARKETD_NOTIFY_EVENTS")

	// ── Maintenance ──
	setDuration(&cfg.Maintenance.LockSweepInterval, "MARKETD_MAINTENANCE_LOCK_SWEEP_INTERVAL")
	setDuration(&cfg.Maintenance.ArchiveInterval, "MARKETD_MAINTENANCE_ARCHIVE_INTERVAL")
	setInt(&cfg.Maintenance.ArchiveRetentionDays, "MARKETD_MAINTENANCE_ARCHIVE_RETENTION_DAYS")

	// ── Top-level ──
	setStr(&cfg.Mode, "MARKETD_MODE")
	setStr(&cfg.LogLevel, "MARKETD_LOG_LEVEL")
}

// ---------------------------------------------------------------------------
// Typed env-var helpers. Each only mutates the target when the environment
// variable is present and non-empty.
// ---------------------------------------------------------------------------

func setStr(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setUint32(dst *uint32, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			*dst = uint32(n)
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func setDuration(dst *duration, key string) {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			dst.Duration = d
		}
	}
}

func setStringSlice(dst *[]string, key string) {
	if v := os.Getenv(key); v != "" {
		parts := strings.Split(v, ",")
		cleaned := make([]string, 0, len(parts))
		for _, p := range parts {
			p = strings.TrimSpace(p)
			if p != "" {
				cleaned = append(cleaned, p)
			}
		}
		if len(cleaned) > 0 {
			*dst = cleaned
		}
	}
}
