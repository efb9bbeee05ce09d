// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/wordparty/internal/auth"
	"github.com/jason-s-yu/wordparty/internal/cache"
	"github.com/jason-s-yu/wordparty/internal/config"
	"github.com/jason-s-yu/wordparty/internal/game"
	"github.com/jason-s-yu/wordparty/internal/handlers"
	"github.com/jason-s-yu/wordparty/internal/listener"
	"github.com/jason-s-yu/wordparty/internal/notifier"
	"github.com/jason-s-yu/wordparty/internal/ratelimit"
	"github.com/jason-s-yu/wordparty/internal/registry"
	"github.com/jason-s-yu/wordparty/internal/variant"
	"github.com/jason-s-yu/wordparty/internal/warden"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

const (
	eventBuffer   = 1024
	pruneInterval = time.Minute
)

func main() {
	logger := logrus.New()

	cfg, err := config.LoadServer()
	if err != nil {
		logger.Fatalf("invalid configuration: %v", err)
	}
	logger.SetLevel(cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	signer, err := auth.NewSigner(cfg.TokenTTL)
	if err != nil {
		logger.Fatalf("failed to create token signer: %v", err)
	}
	bank, err := variant.DefaultBank()
	if err != nil {
		logger.Fatalf("failed to load word bank: %v", err)
	}

	hub := notifier.NewHub(logger)
	opts := game.Options{
		MaxSlots: cfg.MaxSlots,
		Timing:   cfg.Timing,
		Notifier: hub,
		Logger:   logger,
	}

	var publisher *cache.Publisher
	if cfg.RedisAddr != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			logger.Fatalf("failed to connect to redis: %v", err)
		}
		defer rdb.Close()
		publisher = cache.NewPublisher(rdb, cfg.EventQueue, eventBuffer, logger)
		opts.Recorder = publisher
		logger.Infof("Publishing session events to %s/%s", cfg.RedisAddr, cfg.EventQueue)
	} else {
		logger.Info("REDIS_ADDR not set, session events are not recorded")
	}

	reg := registry.New(warden.New(), bank, opts)

	chat, hint, connect := ratelimit.Chat(), ratelimit.Hint(), ratelimit.Connect()
	for _, l := range []*ratelimit.Keyed{chat, hint, connect} {
		go l.Run(ctx, pruneInterval)
	}

	srv := handlers.NewServer(handlers.Options{
		Logger:         logger,
		Registry:       reg,
		Hub:            hub,
		Listener:       listener.New(hub, chat, hint, logger),
		Signer:         signer,
		ConnectLimiter: connect,
		PublicBaseURL:  cfg.PublicBaseURL,
		AllowedOrigins: cfg.AllowedOrigins,
	})

	httpSrv := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		logger.Infof("Running on %s", httpSrv.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatalf("server exited: %v", err)
		}
	}()

	<-ctx.Done()
	logger.Info("Shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpSrv.Shutdown(shutdownCtx); err != nil {
		logger.Warnf("HTTP shutdown: %v", err)
	}
	reg.Shutdown()
	if publisher != nil {
		publisher.Close()
	}
}
