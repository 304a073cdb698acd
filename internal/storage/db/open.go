// Package db contains the sqlite queries, models, and migrations used by the
// storage package.
package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/pressly/goose/v3"
	"modernc.org/sqlite" // sqlite sql.DB driver initialization
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

//go:embed migrations/*.sql
var migrations embed.FS

var registerHook sync.Once

// Open initializes a SQLite DB connection to the specified dbPath. If the
// database file does not exist, it attempts to create it, and then migrates the
// database to match the current state expected of the system.
func Open(ctx context.Context, logger *slog.Logger, dbPath string) (*sql.DB, error) {
	if dbPath != MemoryPath {
		if _, err := os.Stat(dbPath); err != nil {
			const userOnlyDirPerms = 0o700
			if err = os.MkdirAll(filepath.Dir(dbPath), userOnlyDirPerms); err != nil {
				return nil, fmt.Errorf("failed to create db parent directory: %w", err)
			}
		}
	}

	dsn := dbPath
	if strings.ContainsRune(dsn, '?') {
		dsn += "&"
	} else {
		dsn += "?"
	}
	dsn += "_time_format=sqlite"

	registerHook.Do(func() {
		sqlite.RegisterConnectionHook(func(conn sqlite.ExecQuerierContext, _ string) error {
			const initSQL = `
			pragma foreign_keys = on; -- cascade user deletes to sessions and notes
			pragma journal_mode = WAL; -- allow concurrent writes
			pragma synchronous = normal; -- don't wait for fsync except on checkpointing
			pragma busy_timeout = 5000; -- wait on locks held by the CLI
			pragma temp_store = memory; -- temporary indices
			`
			_, err := conn.ExecContext(context.Background(), initSQL, nil)
			return err
		})
	})

	handle, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to create DB handler: %w", err)
	} else if err = handle.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping DB: %w", err)
	}
	// a single connection keeps :memory: databases coherent and serializes
	// writers
	handle.SetMaxOpenConns(1)

	if err = migrate(ctx, logger.With(slog.String("db", dbPath)), handle); err != nil {
		return nil, errors.Join(err, handle.Close())
	}
	return handle, nil
}

func migrate(ctx context.Context, logger *slog.Logger, handle *sql.DB) error {
	fsys, err := fs.Sub(migrations, "migrations")
	if err != nil {
		return fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	provider, err := goose.NewProvider(goose.DialectSQLite3, handle, fsys)
	if err != nil {
		return fmt.Errorf("failed to create migration provider: %w", err)
	}
	results, err := provider.Up(ctx)
	if err != nil {
		return fmt.Errorf("failed to migrate DB: %w", err)
	}
	for _, res := range results {
		logger.DebugContext(ctx, "applied migration",
			slog.String("source", res.Source.Path),
			slog.Duration("duration", res.Duration),
		)
	}
	return nil
}
