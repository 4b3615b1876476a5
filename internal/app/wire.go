package app

import (
	"context"
	"fmt"
	"log/slog"

	ethcommon "github.com/ethereum/go-ethereum/common"

	"github.com/colonyforge/marketd/internal/auth"
	s3blob "github.com/colonyforge/marketd/internal/blob/s3"
	"github.com/colonyforge/marketd/internal/cache/redis"
	"github.com/colonyforge/marketd/internal/config"
	"github.com/colonyforge/marketd/internal/crypto"
	"github.com/colonyforge/marketd/internal/domain"
	"github.com/colonyforge/marketd/internal/notify"
	"github.com/colonyforge/marketd/internal/platform/stakehub"
	"github.com/colonyforge/marketd/internal/platform/treasury"
	"github.com/colonyforge/marketd/internal/store/memory"
	"github.com/colonyforge/marketd/internal/store/postgres"
)

// Dependencies bundles every domain-level dependency that the application
// modes need to operate. It is constructed by Wire and torn down by the
// returned cleanup function.
type Dependencies struct {
	// Persistence
	Ledger domain.Ledger

	// Redis-backed coordination
	LockManager domain.LockManager
	MarketCache domain.MarketCache
	RateLimiter domain.RateLimiter
	SignalBus   domain.SignalBus

	// External services
	Oracle domain.StakingOracle
	Rail   domain.PaymentRail

	// Authorization
	Auth *auth.StaticAuthorizer

	// Blob storage (nil unless s3.enabled)
	BlobWriter  domain.BlobWriter
	BlobReader  domain.BlobReader
	BlobDeleter domain.BlobDeleter
	Archiver    domain.Archiver

	// Notifications
	Notifier *notify.Notifier
}

// zeroLevelOracle is the staking oracle used when no stakehub endpoint is
// configured. Every lookup reports level 0, so bets carry no staking bonus.
type zeroLevelOracle struct{}

func (zeroLevelOracle) BestStakedLevel(context.Context, ethcommon.Address) (uint32, error) {
	return 0, nil
}

// Wire constructs all concrete dependency implementations from the given
// configuration and returns them together with a cleanup function that should
// be called on shutdown to release resources.
func Wire(ctx context.Context, cfg *config.Config) (*Dependencies, func(), error) {
	logger := slog.Default()

	var closers []func()
	cleanup := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	deps := &Dependencies{}

	// --- Ledger ---
	if cfg.Database.InMemory {
		logger.WarnContext(ctx, "wire: using in-memory ledger, all state is lost on shutdown")
		deps.Ledger = memory.New()
	} else {
		pgClient, err := postgres.New(ctx, postgres.ClientConfig{
			DSN:      cfg.Database.DSN,
			Host:     cfg.Database.Host,
			Port:     cfg.Database.Port,
			Database: cfg.Database.Database,
			User:     cfg.Database.User,
			Password: cfg.Database.Password,
			SSLMode:  cfg.Database.SSLMode,
			MaxConns: cfg.Database.PoolMaxConns,
			MinConns: cfg.Database.PoolMinConns,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: postgres: %w", err)
		}
		closers = append(closers, pgClient.Close)

		if cfg.Database.RunMigrations {
			if err := pgClient.RunMigrations(ctx); err != nil {
				cleanup()
				return nil, nil, fmt.Errorf("wire: postgres migrations: %w", err)
			}
		}

		deps.Ledger = postgres.NewLedger(pgClient)
	}

	// --- Redis ---
	redisClient, err := redis.New(ctx, redis.ClientConfig{
		Addr:       cfg.Redis.Addr,
		Password:   cfg.Redis.Password,
		DB:         cfg.Redis.DB,
		PoolSize:   cfg.Redis.PoolSize,
		MaxRetries: cfg.Redis.MaxRetries,
		TLSEnabled: cfg.Redis.TLSEnabled,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: redis: %w", err)
	}
	closers = append(closers, func() { _ = redisClient.Close() })

	deps.LockManager = redis.NewLockManager(redisClient)
	deps.MarketCache = redis.NewMarketCache(redisClient)
	deps.RateLimiter = redis.NewRateLimiter(redisClient)
	deps.SignalBus = redis.NewSignalBus(redisClient)

	// --- Treasury payment rail ---
	secret, err := crypto.LoadSecret(crypto.SecretConfig{
		RawSecret:           cfg.Treasury.APISecret,
		EncryptedSecretPath: cfg.Treasury.EncryptedSecretPath,
		SecretPassword:      cfg.Treasury.SecretPassword,
	})
	if err != nil {
		cleanup()
		return nil, nil, fmt.Errorf("wire: treasury secret: %w", err)
	}
	deps.Rail = treasury.NewClient(cfg.Treasury.URL, &crypto.HMACAuth{
		Key:    cfg.Treasury.APIKey,
		Secret: secret,
	})

	// --- Staking oracle ---
	if cfg.Stakehub.URL != "" {
		deps.Oracle = stakehub.NewClient(cfg.Stakehub.URL, cfg.Stakehub.APIKey)
	} else {
		logger.InfoContext(ctx, "wire: stakehub url not set, staking bonuses disabled")
		deps.Oracle = zeroLevelOracle{}
	}

	// --- Authorization ---
	deps.Auth = auth.New(cfg.CreatorAddresses(), cfg.AdminAddresses())

	// --- S3 blob storage (archiver) ---
	if cfg.S3.Enabled {
		s3Client, err := s3blob.New(ctx, s3blob.ClientConfig{
			Endpoint:       cfg.S3.Endpoint,
			Region:         cfg.S3.Region,
			Bucket:         cfg.S3.Bucket,
			AccessKey:      cfg.S3.AccessKey,
			SecretKey:      cfg.S3.SecretKey,
			UseSSL:         cfg.S3.UseSSL,
			ForcePathStyle: cfg.S3.ForcePathStyle,
		})
		if err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		// Fail fast on a misconfigured bucket instead of surfacing it from
		// the first archival run days later.
		if err := s3Client.Health(ctx); err != nil {
			cleanup()
			return nil, nil, fmt.Errorf("wire: s3: %w", err)
		}
		closers = append(closers, func() { _ = s3Client.Close() })

		deps.BlobWriter = s3blob.NewWriter(s3Client)
		reader := s3blob.NewReader(s3Client)
		deps.BlobReader = reader
		deps.BlobDeleter = reader // same type implements BlobDeleter
		deps.Archiver = s3blob.NewArchiver(deps.BlobWriter, deps.Ledger)
	}

	// --- Notifications ---
	var senders []notify.Sender
	if cfg.Notify.TelegramToken != "" && cfg.Notify.TelegramChatID != "" {
		senders = append(senders, notify.NewTelegramSender(
			cfg.Notify.TelegramToken,
			cfg.Notify.TelegramChatID,
		))
	}
	if cfg.Notify.DiscordWebhookURL != "" {
		senders = append(senders, notify.NewDiscordSender(cfg.Notify.DiscordWebhookURL))
	}
	deps.Notifier = notify.NewNotifier(senders, cfg.Notify.Events, logger)

	return deps, cleanup, nil
}
