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

	"github.com/lastclick/tntrun/internal/cache"
	"github.com/lastclick/tntrun/internal/config"
	"github.com/lastclick/tntrun/internal/entity"
	"github.com/lastclick/tntrun/internal/game"
	"github.com/lastclick/tntrun/internal/server"
	"github.com/lastclick/tntrun/internal/store"
	"github.com/lastclick/tntrun/internal/world"
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))
	slog.SetDefault(logger)

	cfg, err := config.Load()
	if err != nil {
		logger.Error("load config", "err", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := store.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("connect db", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := store.Migrate(ctx, db); err != nil {
		logger.Error("migrate", "err", err)
		os.Exit(1)
	}

	rdb, err := cache.NewRedis(ctx, cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
	if err != nil {
		logger.Error("connect redis", "err", err)
		os.Exit(1)
	}
	defer rdb.Close()

	publisher := cache.NewPublisher(rdb, 1024, logger)
	go publisher.Run(ctx)

	playerStore := store.NewPlayerStore(db)

	// The arena chunks stay resident for the life of the process.
	blocks := world.NewStore()
	blocks.LoadRegion(cfg.Round.Arena().Bounds())
	ents := entity.NewStore(logger)

	metrics := server.NewMetrics()
	hub := server.NewHub(cfg.WSReadLimit, cfg.WSPingInterval, metrics, logger)

	engine, err := game.NewEngine(cfg.Round, blocks, ents, hub, game.Options{
		Publisher: publisher,
		Profiles:  playerStore,
		Metrics:   metrics,
	}, logger)
	if err != nil {
		logger.Error("create engine", "err", err)
		os.Exit(1)
	}
	hub.SetHandler(engine)

	srv := server.New(db, rdb, hub, metrics, logger)
	srv.SetArenaSource(engine)
	srv.SetProfiles(playerStore)

	limiter := server.NewRateLimiter(20, 40)
	go limiter.RunCleanup(ctx, time.Minute)

	engineDone := make(chan struct{})
	go func() {
		defer close(engineDone)
		engine.Run(ctx, cfg.TickInterval())
	}()

	httpSrv := &http.Server{
		Addr:         cfg.HTTPAddr,
		Handler:      srv.Handler(limiter),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("server starting", "addr", cfg.HTTPAddr, "env", cfg.Env, "tps", cfg.Round.TicksPerSecond)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("listen", "err", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("shutting down")
	shutCtx, shutCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutCancel()
	if err := httpSrv.Shutdown(shutCtx); err != nil {
		logger.Error("shutdown", "err", err)
	}

	cancel()
	<-engineDone
	logger.Info("engine stopped", "tick", engine.Round().CurrentTick(), "publisher_dropped", publisher.Dropped())
}
