// cmd/historian/main.go is an asynchronous historian service that pops session event
// records from a Redis queue and persists them to PostgreSQL.
package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/jason-s-yu/wordparty/internal/cache"
	"github.com/jason-s-yu/wordparty/internal/config"
	"github.com/jason-s-yu/wordparty/internal/database"
	"github.com/jason-s-yu/wordparty/internal/historian"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

func main() {
	logger := logrus.New()
	cfg := config.LoadHistorian()
	logger.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
	if err != nil {
		logger.Fatalf("failed to connect to redis: %v", err)
	}
	defer rdb.Close()

	pool, err := database.Connect(ctx, cfg.Postgres.URL())
	if err != nil {
		logger.Fatalf("failed to connect to postgres: %v", err)
	}
	defer pool.Close()
	if err := database.EnsureSchema(ctx, pool); err != nil {
		logger.Fatalf("failed to apply schema: %v", err)
	}

	svc := historian.New(rdb, database.NewArchive(pool), historian.Options{
		Queue:         cfg.EventQueue,
		BatchSize:     cfg.BatchSize,
		FlushInterval: cfg.FlushInterval,
		Inactivity:    cfg.Inactivity,
	}, logger)

	if err := svc.Run(ctx); err != nil {
		logger.Fatalf("historian exited: %v", err)
	}
}
