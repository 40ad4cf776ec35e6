// Command migrator applies the embedded schema migrations. It reads the
// database settings from the same environment variables cmd/server uses, so
// the two can share one .env file.
package main

import (
	"embed"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net"
	"net/url"
	"os"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/joho/godotenv"

	"github.com/mobidash/importd/internal/config"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

func main() {
	down := flag.Bool("down", false, "roll back all migrations instead of applying them")
	steps := flag.Int("steps", 0, "apply exactly N migrations; negative values roll back")
	flag.Parse()

	if err := godotenv.Overload(); err == nil {
		slog.Info("loaded .env file")
	}

	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load configuration", "error", err)
		os.Exit(1)
	}

	if err := run(cfg.Database, *down, *steps); err != nil {
		if errors.Is(err, migrate.ErrNoChange) {
			slog.Info("database schema is up to date")
			return
		}
		slog.Error("migration failed", "error", err)
		os.Exit(1)
	}

	slog.Info("migrations applied", "database", cfg.Database.Name)
}

func run(db config.DatabaseConfig, down bool, steps int) error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("load embedded migrations: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, databaseURL(db))
	if err != nil {
		return fmt.Errorf("open database: %w", err)
	}
	defer func() {
		if srcErr, dbErr := m.Close(); srcErr != nil || dbErr != nil {
			slog.Warn("close migrator", "source_error", srcErr, "db_error", dbErr)
		}
	}()

	switch {
	case steps != 0:
		return m.Steps(steps)
	case down:
		return m.Down()
	default:
		return m.Up()
	}
}

func databaseURL(db config.DatabaseConfig) string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(db.User, db.Password),
		Host:     net.JoinHostPort(db.Host, db.Port),
		Path:     db.Name,
		RawQuery: "sslmode=" + db.SSLMode,
	}
	return u.String()
}
