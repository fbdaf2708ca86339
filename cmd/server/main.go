package main

import (
	"context"
	"log"
	"net/http"

	_ "github.com/joho/godotenv/autoload"
	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/pch-odds/odds-backend/internal/broadcast"
	"github.com/pch-odds/odds-backend/internal/config"
	"github.com/pch-odds/odds-backend/internal/game"
	"github.com/pch-odds/odds-backend/internal/httpapi"
	"github.com/pch-odds/odds-backend/internal/hub"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger := newLogger(cfg.LogLevel)
	defer func() { _ = logger.Sync() }()

	local := broadcast.NewLocal(logger)
	bc := broadcast.Fanout{local}

	switch cfg.BroadcastRelay {
	case "redis":
		client, err := broadcast.ConnectRedis(cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			logger.Fatal("redis relay", zap.Error(err))
		}
		bc = append(bc, broadcast.NewRedis(client))
		logger.Info("redis relay enabled", zap.String("addr", cfg.RedisAddr))
	case "nats":
		nc, err := broadcast.ConnectNATS(cfg.NATSURL, logger)
		if err != nil {
			logger.Fatal("nats relay", zap.Error(err))
		}
		bc = append(bc, broadcast.NewNATS(nc))
		logger.Info("nats relay enabled", zap.String("url", cfg.NATSURL))
	}

	ctx := context.Background()
	h := hub.NewHub(ctx, hub.Config{
		Clock:       clockwork.NewRealClock(),
		Broadcaster: bc,
		Logger:      logger,
		Rules: game.Rules{
			CountdownSec: cfg.CountdownSec,
			ResultSec:    cfg.ResultResetSec,
		},
	})

	// Build the router *with* the hub injected
	handler := httpapi.SetupRoutes(h, local, logger)

	logger.Info("listening", zap.String("addr", cfg.Addr))
	if err := http.ListenAndServe(cfg.Addr, handler); err != nil {
		logger.Fatal("server exited", zap.Error(err))
	}
}

func newLogger(level string) *zap.Logger {
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		lvl = zapcore.InfoLevel
	}
	zcfg := zap.NewProductionConfig()
	zcfg.Level = zap.NewAtomicLevelAt(lvl)
	logger, err := zcfg.Build()
	if err != nil {
		log.Fatal(err)
	}
	return logger
}
