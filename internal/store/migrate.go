package store

import (
	"errors"
	"fmt"
	"strings"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/pgx/v5"
	_ "github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/kiranshivaraju/vidlens/migrations"
)

// RunMigrations applies all pending up-migrations embedded in the binary for the
// dialect selected by databaseURL.
func RunMigrations(databaseURL string) error {
	dir, migrateURL, err := migrationTarget(databaseURL)
	if err != nil {
		return err
	}

	src, err := iofs.New(migrations.FS, dir)
	if err != nil {
		return fmt.Errorf("open migration source: %w", err)
	}

	m, err := migrate.NewWithSourceInstance("iofs", src, migrateURL)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}
	defer m.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", err)
	}
	return nil
}

// migrationTarget maps a DATABASE_URL to the embedded directory and the URL
// scheme golang-migrate registers for that driver.
func migrationTarget(databaseURL string) (dir, migrateURL string, err error) {
	switch {
	case IsSQLite(databaseURL):
		return "sqlite", databaseURL, nil
	case strings.HasPrefix(databaseURL, "postgres://"):
		return "postgres", "pgx5://" + strings.TrimPrefix(databaseURL, "postgres://"), nil
	case strings.HasPrefix(databaseURL, "postgresql://"):
		return "postgres", "pgx5://" + strings.TrimPrefix(databaseURL, "postgresql://"), nil
	default:
		return "", "", fmt.Errorf("unsupported database URL scheme: %q", databaseURL)
	}
}
