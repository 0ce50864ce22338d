package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/piosteiner/adenai-map/internal/api"
	"github.com/piosteiner/adenai-map/internal/config"
	"github.com/piosteiner/adenai-map/internal/database"
	"github.com/piosteiner/adenai-map/internal/handler"
	"github.com/piosteiner/adenai-map/internal/mapview"
	"github.com/piosteiner/adenai-map/internal/middleware"
	"github.com/piosteiner/adenai-map/internal/notify"
	"github.com/piosteiner/adenai-map/internal/repository"
	"github.com/piosteiner/adenai-map/internal/scene"
	"github.com/piosteiner/adenai-map/internal/service"
)

const shutdownTimeout = 10 * time.Second

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run() error {
	// 加载配置
	cfg := config.Load()

	logger, err := cfg.NewLogger()
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer logger.Sync()
	cfg.Report(logger)

	// 初始化数据库
	if err := database.Init(database.Config{Path: cfg.DBPath}, logger); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer database.Close()

	db, err := database.GetDB()
	if err != nil {
		return err
	}
	if err := database.NewMigrationManager(db, logger).RunMigrations(); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	opts := service.DefaultOptions()
	opts.View.CollapseDelay = cfg.CollapseDelay
	opts.View.KeepDefaultVisibleOnHideAll = cfg.KeepDefaultVisibleOnHideAll
	if cfg.StylePalette != "" {
		palette, err := mapview.LoadPalette(cfg.StylePalette)
		if err != nil {
			return err
		}
		opts.Palette = palette
	}

	loop := scene.NewLoop(logger)
	svc, err := service.NewMapService(repository.NewEntityRepository(db, logger), loop, opts, logger)
	if err != nil {
		return err
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	srv := &http.Server{
		Addr:              cfg.Port,
		Handler:           api.SetupRouter(cfg, handler.NewMapHandler(svc), limiter, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// The loop outlives the group context so the scene can be torn down
	// after the HTTP server has drained.
	loopCtx, stopLoop := context.WithCancel(context.Background())
	defer stopLoop()
	go func() { _ = loop.Run(loopCtx) }()

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		_, err := svc.Reload(ctx)
		return err
	})

	g.Go(func() error {
		for {
			select {
			case <-ctx.Done():
				return nil
			case msg := <-svc.Notices():
				logger.Warn("map notice", zap.String("message", msg))
			}
		}
	})

	g.Go(func() error {
		ticker := time.NewTicker(time.Minute)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return nil
			case <-ticker.C:
				limiter.Cleanup()
			}
		}
	})

	if cfg.RedisAddr != "" {
		client := notify.NewClient(cfg.RedisAddr)
		defer client.Close()

		sub := notify.NewSubscriber(client, cfg.ReloadChannel, func(ctx context.Context) error {
			_, err := svc.Reload(ctx)
			return err
		}, logger)
		g.Go(func() error { return sub.Run(ctx) })
	}

	g.Go(func() error {
		logger.Info("server starting", zap.String("addr", cfg.Port))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("failed to start server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http shutdown failed", zap.Error(err))
		}
		if err := svc.Shutdown(shutdownCtx); err != nil {
			logger.Error("scene teardown failed", zap.Error(err))
		}
		stopLoop()
		logger.Info("server stopped")
		return nil
	})

	return g.Wait()
}
