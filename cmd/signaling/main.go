package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/mossy-p/emocall/config"
	"github.com/mossy-p/emocall/internal/handlers"
	"github.com/mossy-p/emocall/internal/logger"
	"github.com/mossy-p/emocall/internal/presence"
	"github.com/mossy-p/emocall/internal/registry"
	"github.com/mossy-p/emocall/internal/relay"
)

const shutdownTimeout = 10 * time.Second

func main() {
	cfg := config.MustLoad()
	log := logger.New(cfg.Environment)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	iceServers, err := cfg.ICE.Servers()
	if err != nil {
		log.Error("invalid ice servers", slog.Any("error", err))
		os.Exit(1)
	}

	var opts []relay.Option
	if cfg.Redis.Enabled() {
		store, err := presence.Connect(ctx, cfg.Redis)
		if err != nil {
			log.Error("failed to connect to redis", slog.Any("error", err))
			os.Exit(1)
		}
		defer store.Close()

		// Membership from a previous run is stale; nobody is connected yet.
		if err := store.Reset(ctx); err != nil {
			log.Warn("failed to reset presence", slog.Any("error", err))
		}

		mirror := presence.NewMirror(store, log)
		go mirror.Run(ctx)
		opts = append(opts, relay.WithObserver(mirror))
		log.Info("presence mirror enabled", slog.String("redis", cfg.Redis.Addr))
	}

	rl := relay.New(registry.New(), log, opts...)
	go rl.Run(ctx)

	router := handlers.SetupRouter(handlers.RouterConfig{
		AllowedOrigins:    cfg.AllowedOrigins,
		AssetsDir:         cfg.AssetsDir,
		ModelsDir:         cfg.ModelsDir,
		OperatorJWTSecret: cfg.OperatorJWTSecret,
	},
		handlers.NewSignaling(rl, cfg.AllowedOrigins, cfg.OutboxSize, log),
		handlers.NewRooms(rl, iceServers),
	)

	srv := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("starting signaling server",
			slog.String("addr", srv.Addr),
			slog.String("env", cfg.Environment),
		)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server stopped", slog.Any("error", err))
			stop()
		}
	}()

	<-ctx.Done()
	log.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", slog.Any("error", err))
	}
}
