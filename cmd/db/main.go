// cmd/db/main.go applies the lobby schema to the configured SQL store and can
// seed a few sample lobbies for local development.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/jason-s-yu/squadup/internal/config"
	"github.com/jason-s-yu/squadup/internal/database"
	"github.com/jason-s-yu/squadup/internal/store"
	_ "github.com/joho/godotenv/autoload"
	"github.com/sirupsen/logrus"
)

func main() {
	seed := flag.Bool("seed", false, "insert sample lobbies after migrating")
	timeout := flag.Duration("timeout", 30*time.Second, "overall deadline")
	flag.Parse()

	logger := logrus.New()
	cfg, err := config.Load()
	if err != nil {
		logger.Fatalf("config: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	if err := run(ctx, cfg, *seed, logger); err != nil {
		logger.Error(err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg config.Config, seed bool, logger logrus.FieldLogger) error {
	var st store.LobbyStore
	switch cfg.StoreDriver {
	case config.DriverPostgres:
		pool, err := database.ConnectPostgres(ctx, cfg.DatabaseURL, logger)
		if err != nil {
			return err
		}
		defer pool.Close()
		pg := database.NewPostgresStore(pool)
		if err := pg.Migrate(ctx); err != nil {
			return err
		}
		st = pg
	case config.DriverSQLite:
		sq, err := database.OpenSQLite(ctx, cfg.SQLitePath)
		if err != nil {
			return err
		}
		defer sq.Close()
		st = sq
	default:
		return fmt.Errorf("STORE_DRIVER %q has no schema to migrate", cfg.StoreDriver)
	}
	logger.Infof("Schema applied to %s store", cfg.StoreDriver)

	if !seed {
		return nil
	}
	n, err := seedLobbies(ctx, st, time.Now())
	if err != nil {
		return err
	}
	logger.Infof("Seeded %d lobbies", n)
	return nil
}
