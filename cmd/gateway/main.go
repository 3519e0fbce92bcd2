package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/tradepipe/internal/config"
	"github.com/tradepipe/internal/gateway"
	"github.com/tradepipe/internal/logger"
	"github.com/tradepipe/internal/models"
	"github.com/tradepipe/internal/pubsub"
	"github.com/tradepipe/internal/queue"
	"github.com/tradepipe/internal/repository"
	"github.com/tradepipe/internal/service"
)

func main() {
	cfg, err := config.Load("config.yaml")
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zl, err := logger.New(cfg.Logging, "gateway")
	if err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}

	gin.SetMode(cfg.Server.Mode)

	db, err := gorm.Open(postgres.Open(cfg.Database.DSN()), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		zl.Fatal().Err(err).Msg("failed to connect to database")
	}
	if err := db.AutoMigrate(&models.User{}); err != nil {
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

	userRepo := repository.NewUserRepository(db)
	authService := service.NewAuthService(userRepo, cfg.JWT)
	q := queue.New(rdb, cfg.Queue.JobKey, cfg.Queue.ControlChannel, zl)
	subscriber := pubsub.NewSubscriber(rdb, cfg.Queue.EventChannel, zl)

	server := gateway.NewServer(q, authService, subscriber, zl)
	go server.Run(ctx)

	addr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	srv := &http.Server{
		Addr:    addr,
		Handler: server.Router(),
	}

	go func() {
		zl.Info().Str("addr", addr).Msg("gateway listening")
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			zl.Fatal().Err(err).Msg("gateway server failed")
		}
	}()

	<-ctx.Done()
	zl.Info().Msg("shutting down gateway")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		zl.Error().Err(err).Msg("forced shutdown")
	}

	if err := rdb.Close(); err != nil {
		zl.Error().Err(err).Msg("error closing redis connection")
	}
	zl.Info().Msg("gateway exited")
}
