package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tradepipe/internal/config"
	"github.com/tradepipe/internal/exchange"
	"github.com/tradepipe/internal/exchange/binance"
	"github.com/tradepipe/internal/exchange/bybit"
	"github.com/tradepipe/internal/logger"
	"github.com/tradepipe/internal/models"
	"github.com/tradepipe/internal/pipeline"
	"github.com/tradepipe/internal/pubsub"
	"github.com/tradepipe/internal/queue"
	"github.com/tradepipe/internal/recorder"
	"github.com/tradepipe/internal/repository"
	"github.com/tradepipe/internal/symbols"
	"github.com/tradepipe/internal/worker"
)

func main() {
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.Logging, "worker")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		zl.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := db.AutoMigrate(&models.OrderBookSnapshot{}); err != nil {
		zl.Fatal().Err(err).Msg("failed to migrate database")
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr(),
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rdb.Ping(ctx).Err(); err != nil {
		zl.Fatal().Err(err).Msg("failed to connect to redis")
	}

	exchanges := exchange.NewRegistry()
	exchanges.Register("binance", binance.New)
	exchanges.Register("bybit", bybit.New)

	resolver := symbols.NewResolver(cfg.Symbols.CatalogPath, cfg.Symbols.TTL(), zl)
	publisher := pubsub.NewRedisPublisher(rdb, cfg.Queue.EventChannel, zl)
	q := queue.New(rdb, cfg.Queue.JobKey, cfg.Queue.ControlChannel, zl)

	executor := pipeline.NewExecutor(resolver, exchanges, publisher, cfg.Trading, zl)

	snapshotRepo := repository.NewSnapshotRepository(db)
	rec := recorder.NewRecorder(resolver, exchanges, snapshotRepo, cfg.Trading.OrderBookDepth, zl)

	pool := worker.NewPool(q, executor, rec, cfg.Queue.Concurrency, zl)

	zl.Info().
		Strs("exchanges", exchanges.Supported()).
		Str("queue", cfg.Queue.JobKey).
		Msg("worker starting")

	pool.Run(ctx)

	if err := rdb.Close(); err != nil {
		zl.Error().Err(err).Msg("error closing redis connection")
	}
	zl.Info().Msg("worker exited")
}
