// Package main provides the lobby server binary: the matchmaking REST
// API and the per-room WebSocket session channel on one listener.
package main

import (
	"context"
	"errors"
	"flag"
	"log"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/losieee/MonsterRat/internal/config"
	"github.com/losieee/MonsterRat/internal/gateway"
	"github.com/losieee/MonsterRat/internal/hub"
	"github.com/losieee/MonsterRat/internal/lobby"
	"github.com/losieee/MonsterRat/internal/observability"
	"github.com/losieee/MonsterRat/internal/server"
)

func main() {
	start := time.Now()

	configPath := flag.String("config", "configs/dev.yaml", "path to configuration file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatalf("loading config: %v", err)
	}

	logger, err := observability.NewLogger(cfg.Logging)
	if err != nil {
		log.Fatalf("initializing logger: %v", err)
	}
	defer logger.Sync()

	broadcast := hub.New(logger)
	store := lobby.NewStore(cfg.Lobby, logger, broadcast)
	reaper := lobby.NewReaper(store, cfg.Lobby, logger)

	rest := gateway.NewRequestGateway(store, logger)
	sessions := gateway.NewSessionGateway(store, broadcast, cfg.Lobby, logger)
	router := gateway.NewRouter(rest, sessions, logger)

	httpServer := &http.Server{
		Addr:              cfg.Server.Addr(),
		Handler:           router,
		ReadHeaderTimeout: cfg.Server.ReadHeaderTimeout,
	}

	lifecycle := server.NewLifecycle(logger)

	lifecycle.Add("http", &server.FuncService{
		StartFn: func() error {
			logger.Info("lobby server listening", zap.String("addr", cfg.Server.Addr()))
			if err := httpServer.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
		StopFn: func() {
			ctx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
			defer cancel()
			if err := httpServer.Shutdown(ctx); err != nil {
				logger.Warn("http shutdown", zap.Error(err))
			}
		},
	})

	lifecycle.Add("reaper", reaper)

	logger.Info("lobby server initialized",
		zap.Duration("startup", time.Since(start)),
		zap.String("addr", cfg.Server.Addr()),
	)

	if err := lifecycle.Run(context.Background()); err != nil {
		logger.Fatal("server error", zap.Error(err))
	}
}
