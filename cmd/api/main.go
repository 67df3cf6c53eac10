package main

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/bidhaus/auction-backend/internal/api/rest"
	"github.com/bidhaus/auction-backend/internal/infrastructure/auth"
	"github.com/bidhaus/auction-backend/internal/infrastructure/cache"
	"github.com/bidhaus/auction-backend/internal/infrastructure/config"
	"github.com/bidhaus/auction-backend/internal/infrastructure/database"
	"github.com/bidhaus/auction-backend/internal/infrastructure/events"
	"github.com/bidhaus/auction-backend/internal/infrastructure/repository"
	"github.com/bidhaus/auction-backend/internal/infrastructure/telemetry"
	"github.com/bidhaus/auction-backend/internal/metrics"
	"github.com/bidhaus/auction-backend/internal/service/bidding"
	"github.com/bidhaus/auction-backend/internal/service/settlement"
)

// snapshotTTL bounds how stale a cached item price can get if an
// invalidation message is lost
const snapshotTTL = 30 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "fatal: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := telemetry.SetupLogger(cfg.LogLevel)
	slog.SetDefault(logger)

	infraLogger, err := newInfraLogger(cfg.Environment)
	if err != nil {
		return fmt.Errorf("creating infrastructure logger: %w", err)
	}
	defer infraLogger.Sync() //nolint:errcheck

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	logger.Info("starting auction backend",
		"version", cfg.Version,
		"environment", cfg.Environment,
	)

	pool, err := database.NewConnectionPool(ctx, &cfg.Database, infraLogger)
	if err != nil {
		return fmt.Errorf("connecting to database: %w", err)
	}
	defer pool.Close()

	redisClient, err := cache.NewRedisClient(&cfg.Redis, infraLogger)
	if err != nil {
		return fmt.Errorf("connecting to redis: %w", err)
	}
	defer redisClient.Close()

	repos := repository.NewRepositories(pool.Pool(), cfg.Auction)
	transactor := database.NewTransactor(pool.Pool())
	publisher := events.NewPublisher(redisClient, infraLogger)
	snapshots := cache.NewItemSnapshotCache(redisClient, snapshotTTL, infraLogger)
	limiter := cache.NewRateLimiter(redisClient, infraLogger)

	registry, err := metrics.NewRegistry()
	if err != nil {
		return fmt.Errorf("creating metrics registry: %w", err)
	}

	authSvc, err := auth.NewService(cfg.Auth.JWTSecret, cfg.Auth.TokenExpiry)
	if err != nil {
		return fmt.Errorf("creating auth service: %w", err)
	}

	biddingSvc := bidding.NewService(
		repos.Items,
		repos.Ledger,
		repos.Bans,
		repos.Transactions,
		repos.Settings,
		repos.Accounts,
		publisher.ForBidding(),
		registry,
		transactor,
		nil,
		logger,
	)
	settlementSvc := settlement.NewService(repos.Transactions, publisher, logger)

	hub := rest.NewHub(logger)
	handlers := rest.NewHandlers(biddingSvc, settlementSvc, repos.Accounts, authSvc, snapshots, logger)
	health := rest.HealthCheck(map[string]rest.Pinger{
		"postgres": pool,
		"redis":    redisPinger{redisClient},
	})
	router := rest.NewRouter(handlers, hub, health, rest.RouterConfig{
		RateLimiter:       limiter,
		RequestsPerSecond: cfg.Server.RateLimit.RequestsPerSecond,
		BurstSize:         cfg.Server.RateLimit.BurstSize,
		Logger:            logger,
		AdminKey:          cfg.Auth.AdminKey,
		Admin:             rest.NewAdminSettingsHandlers(repos.Settings, logger),
	})

	// Bid and settlement events from any instance reach this instance's
	// websocket subscribers; a bid also drops the item's price snapshot.
	subscriber := events.NewSubscriber(redisClient, func(channel string, payload []byte) {
		hub.Broadcast(channel, payload)
		if channel != events.ChannelBidPlaced {
			return
		}
		var envelope struct {
			ItemID uuid.UUID `json:"item_id"`
		}
		if err := json.Unmarshal(payload, &envelope); err != nil || envelope.ItemID == uuid.Nil {
			return
		}
		invCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		if err := snapshots.Invalidate(invCtx, envelope.ItemID); err != nil {
			logger.Warn("snapshot invalidation failed", "item_id", envelope.ItemID, "error", err)
		}
	}, infraLogger)

	go func() {
		if err := subscriber.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("event subscriber stopped", "error", err)
		}
	}()

	go runSweeper(ctx, biddingSvc, cfg.Auction, logger)

	server := rest.NewServer(&cfg.Server, router, logger)
	if err := server.Start(ctx); err != nil {
		return fmt.Errorf("api server: %w", err)
	}

	logger.Info("auction backend stopped")
	return nil
}

// runSweeper settles expired auctions on a fixed interval. Settlement is
// idempotent across instances since each item closes inside its own
// transaction, so running the sweeper on every instance is safe.
func runSweeper(ctx context.Context, svc bidding.Service, cfg config.AuctionConfig, logger *slog.Logger) {
	ticker := time.NewTicker(cfg.SweepInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			closed, err := svc.SweepExpired(ctx, cfg.SweepBatchSize)
			if err != nil {
				logger.Error("expired auction sweep failed", "error", err)
				continue
			}
			if closed > 0 {
				logger.Info("swept expired auctions", "closed", closed)
			}
		}
	}
}

func newInfraLogger(environment string) (*zap.Logger, error) {
	if environment == "development" {
		return zap.NewDevelopment()
	}
	return zap.NewProduction()
}

// redisPinger adapts the redis client to the health check's Pinger
type redisPinger struct {
	client *redis.Client
}

func (p redisPinger) Ping(ctx context.Context) error {
	return p.client.Ping(ctx).Err()
}
