package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/kiranshivaraju/vidlens/internal/config"
	_ "modernc.org/sqlite"
)

const sqliteScheme = "sqlite://"

// Open connects to the database named by cfg.URL and returns the matching Store.
// postgres:// URLs use a pgx pool, sqlite:// URLs a local database file.
func Open(ctx context.Context, cfg config.DatabaseConfig) (Store, error) {
	if IsSQLite(cfg.URL) {
		db, err := OpenSQLite(ctx, SQLitePath(cfg.URL))
		if err != nil {
			return nil, err
		}
		return NewSQLiteStore(db), nil
	}

	pool, err := Connect(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return NewPostgresStore(pool), nil
}

func Connect(ctx context.Context, cfg config.DatabaseConfig) (*pgxpool.Pool, error) {
	poolCfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse database URL: %w", err)
	}
	poolCfg.MaxConns = int32(cfg.MaxOpenConns)
	poolCfg.MinConns = int32(cfg.MaxIdleConns)
	poolCfg.MaxConnLifetime = cfg.ConnMaxLifetime

	pool, err := pgxpool.NewWithConfig(ctx, poolCfg)
	if err != nil {
		return nil, fmt.Errorf("connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}

	return pool, nil
}

// OpenSQLite opens (creating if needed) a database file. SQLite allows a single
// writer, so the handle is limited to one connection.
func OpenSQLite(ctx context.Context, path string) (*sql.DB, error) {
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create database dir: %w", err)
		}
	}

	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=foreign_keys(1)&_time_format=sqlite"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	db.SetMaxOpenConns(1)

	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return db, nil
}

// IsSQLite reports whether a database URL selects the SQLite backend.
func IsSQLite(url string) bool {
	return strings.HasPrefix(url, sqliteScheme)
}

// SQLitePath extracts the file path from a sqlite:// URL.
func SQLitePath(url string) string {
	return strings.TrimPrefix(url, sqliteScheme)
}
