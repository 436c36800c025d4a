package main // Entry point package

import (
	"context"
	"errors"
	"log"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/labstack/echo/v4"
	echomw "github.com/labstack/echo/v4/middleware"
	"golang.org/x/sync/errgroup"

	"github.com/iliyamo/inventory-admin/internal/auth"
	"github.com/iliyamo/inventory-admin/internal/config"
	"github.com/iliyamo/inventory-admin/internal/database"
	"github.com/iliyamo/inventory-admin/internal/handler"
	"github.com/iliyamo/inventory-admin/internal/middleware"
	"github.com/iliyamo/inventory-admin/internal/model"
	"github.com/iliyamo/inventory-admin/internal/queue"
	"github.com/iliyamo/inventory-admin/internal/repository"
	"github.com/iliyamo/inventory-admin/internal/router"
	"github.com/iliyamo/inventory-admin/internal/service"
)

func main() {
	cfg := config.Load()
	logger := newLogger(cfg)
	slog.SetDefault(logger)
	for _, w := range cfg.Warnings() {
		logger.Warn(w)
	}

	codec, err := auth.NewCodec(cfg.JWTSecret)
	if err != nil {
		log.Fatalf("credential codec: %v", err)
	}
	backend, err := url.Parse(cfg.Backend.URL)
	if err != nil || backend.Host == "" {
		log.Fatalf("invalid BACKEND_URL %q", cfg.Backend.URL)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	db, err := database.Open(ctx, cfg.DB)
	if err != nil {
		log.Fatalf("database: %v", err)
	}
	defer db.Close()
	users := repository.NewUserRepo(db)
	seedAdmin(ctx, logger, users, cfg)

	rdb := config.NewRedisClient(cfg.Redis)
	if rdb == nil {
		logger.Warn("redis unreachable; rate limiting and response cache disabled", "addr", cfg.Redis.Address())
	} else {
		defer rdb.Close()
	}

	var events service.EventPublisher = service.Nop{}
	if cfg.AMQP.URL != "" {
		pub := service.NewAMQPPublisher(cfg.AMQP.URL, cfg.AMQP.Queue, logger)
		defer pub.Close()
		events = pub
	}

	e := echo.New()
	e.HideBanner = true
	e.HidePort = true
	e.Use(echomw.Recover(), middleware.RequestLogger(logger))
	router.RegisterRoutes(e, codec)
	router.RegisterAuth(e, handler.NewAuthHandler(codec, users, events, logger), middleware.NewTokenBucket(cfg.RateLimit, rdb))
	router.RegisterResources(e, codec, handler.NewResourceProxy(backend, cfg.Backend.Timeout), middleware.NewRedisCache(cfg.Cache, rdb))

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		addr := ":" + cfg.App.Port
		logger.Info("listening", "addr", addr, "env", cfg.App.Env, "base_url", cfg.App.BaseURL)
		if err := e.Start(addr); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return e.Shutdown(shutdownCtx)
	})
	if cfg.AMQP.URL != "" {
		consumer := &queue.Consumer{URL: cfg.AMQP.URL, Queue: cfg.AMQP.Queue, LogPath: cfg.AMQP.LogPath, Logger: logger}
		g.Go(func() error {
			if err := consumer.Run(ctx); !errors.Is(err, context.Canceled) {
				return err
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		logger.Error("server stopped", "err", err)
		os.Exit(1)
	}
}

func newLogger(cfg config.Config) *slog.Logger {
	opts := &slog.HandlerOptions{Level: cfg.SlogLevel()}
	if cfg.IsProd() {
		return slog.New(slog.NewJSONHandler(os.Stdout, opts))
	}
	return slog.New(slog.NewTextHandler(os.Stdout, opts))
}

// seedAdmin creates the configured admin account on first start.
func seedAdmin(ctx context.Context, logger *slog.Logger, users *repository.UserRepo, cfg config.Config) {
	if cfg.Seed.Username == "" {
		return
	}
	if cfg.Seed.Password == "" {
		logger.Warn("SEED_ADMIN_USERNAME set without SEED_ADMIN_PASSWORD; not seeding")
		return
	}
	id, err := users.Create(ctx, repository.NewUser{
		Username: cfg.Seed.Username,
		FullName: cfg.Seed.FullName,
		Password: cfg.Seed.Password,
		Role:     model.RoleAdmin,
	}, cfg.BcryptCost)
	switch {
	case errors.Is(err, repository.ErrUsernameExists):
		logger.Debug("admin account already present", "username", cfg.Seed.Username)
	case err != nil:
		logger.Error("seed admin failed", "err", err)
	default:
		logger.Info("seeded admin account", "username", cfg.Seed.Username, "id", id)
	}
}
