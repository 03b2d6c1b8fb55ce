// cmd/server/main.go
package main

import (
	"context"
	"errors"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jason-s-yu/squadup/internal/auth"
	"github.com/jason-s-yu/squadup/internal/cache"
	"github.com/jason-s-yu/squadup/internal/config"
	"github.com/jason-s-yu/squadup/internal/database"
	"github.com/jason-s-yu/squadup/internal/handlers"
	"github.com/jason-s-yu/squadup/internal/lobby"
	"github.com/jason-s-yu/squadup/internal/moderation"
	"github.com/jason-s-yu/squadup/internal/store"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
	"golang.org/x/sync/errgroup"
)

func main() {
	logger := logrus.New()

	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}
	configureLogger(logger, cfg)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Fatalf("server exited: %v", err)
	}
}

func configureLogger(logger *logrus.Logger, cfg config.Config) {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		logger.Warnf("unknown LOG_LEVEL %q, using info", cfg.LogLevel)
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)
	if cfg.LogJSON {
		logger.SetFormatter(&logrus.JSONFormatter{})
	}
}

func run(ctx context.Context, cfg config.Config, logger *logrus.Logger) error {
	logger.Infof("PORT: %s", cfg.Port)
	logger.Infof("DATABASE_URL defined: %t", cfg.DatabaseURL != "")

	st, closeStore, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer closeStore()

	sessions, err := newSessions(cfg)
	if err != nil {
		return err
	}

	hub := lobby.NewHub(st, logger, lobby.Options{
		JoinTimeout:    cfg.JoinTimeout,
		OutboundBuffer: cfg.OutboundBuffer,
	})
	srv := handlers.NewServer(hub, st, moderation.NewLexicalScorer(), sessions, logger, cfg.ClientURL, cfg.JoinTimeout)

	// Hijacked websocket connections outlive Shutdown; cancelling the base
	// context ends their read loops.
	baseCtx, cancelBase := context.WithCancel(context.WithoutCancel(ctx))
	defer cancelBase()
	httpServer := &http.Server{
		Addr:              cfg.Addr(),
		Handler:           srv.Routes(),
		ReadHeaderTimeout: 10 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return baseCtx },
	}
	httpServer.RegisterOnShutdown(cancelBase)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Infof("Running on %s", httpServer.Addr)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("Shutting down")
		sctx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return httpServer.Shutdown(sctx)
	})
	return g.Wait()
}

// openStore builds the lobby store selected by STORE_DRIVER, fronted by the
// Redis cache when REDIS_ADDR is set and reachable.
func openStore(ctx context.Context, cfg config.Config, logger *logrus.Logger) (store.LobbyStore, func(), error) {
	var (
		st      store.LobbyStore
		closers []func()
	)
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		pool, err := database.ConnectPostgres(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return nil, nil, err
		}
		pg := database.NewPostgresStore(pool)
		if err := pg.Migrate(ctx); err != nil {
			pool.Close()
			return nil, nil, err
		}
		st = pg
		closers = append(closers, pool.Close)
	case config.DriverSQLite:
		sq, err := database.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return nil, nil, err
		}
		st = sq
		closers = append(closers, func() { sq.Close() })
	default:
		st = store.NewMemoryStore()
	}
	logger.Infof("Lobby store: %s", cfg.StoreDriver)

	if cfg.RedisAddr != "" {
		rdb, err := cache.Connect(ctx, cfg.RedisAddr, cfg.RedisDB)
		if err != nil {
			logger.Warnf("redis unavailable, running without lobby cache: %v", err)
		} else {
			st = cache.NewLobbyCache(st, rdb, cfg.CacheTTL, logger)
			closers = append(closers, func() { rdb.Close() })
			logger.Infof("Lobby cache: redis %s", cfg.RedisAddr)
		}
	}

	return st, func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}, nil
}

func newSessions(cfg config.Config) (*auth.Sessions, error) {
	if cfg.JWTPrivateKeyPath != "" {
		return auth.NewSessionsFromPath(cfg.JWTPrivateKeyPath, cfg.JWTPublicKeyPath, cfg.TokenExpireTime)
	}
	return auth.NewSessions(cfg.TokenExpireTime)
}
