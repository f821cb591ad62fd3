package store

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/icewall905/tuneforge/internal/logger"
)

// DB is the catalog access layer. It is safe for concurrent use; every
// operation borrows a pooled connection for its own duration only.
type DB struct {
	*sqlx.DB
	Logger *logger.Logger
}

// Options controls how the catalog is opened.
type Options struct {
	// Migrate applies the embedded catalog migrations. Leave false for an
	// external catalog owned by another process. The job history table is
	// created either way.
	Migrate bool
	Logger  *logger.Logger
}

// Open opens the catalog at path.
func Open(path string, opts Options) (*DB, error) {
	log := opts.Logger
	if log == nil {
		log = logger.Default()
	}

	if opts.Migrate {
		if dir := filepath.Dir(path); dir != "." && dir != "" {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create db directory: %w", err)
			}
		}
	}

	db, err := sqlx.Open("sqlite", withPragmas(path))
	if err != nil {
		return nil, fmt.Errorf("failed to open db: %w", err)
	}

	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to ping db: %w", err)
	}

	if opts.Migrate {
		if err := RunMigrations(db.DB); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to apply migrations: %w", err)
		}
	}

	if err := RunHistoryMigrations(db.DB); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to prepare job history: %w", err)
	}

	return &DB{DB: db, Logger: log.WithComponent("store")}, nil
}

// NewSQLiteDB opens and migrates a local catalog.
func NewSQLiteDB(path string) (*DB, error) {
	return Open(path, Options{Migrate: true})
}

// withPragmas attaches per-connection pragmas so every pooled connection gets them.
func withPragmas(path string) string {
	pragmas := "_pragma=busy_timeout(30000)&_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)"
	if strings.Contains(path, "?") {
		return path + "&" + pragmas
	}
	return path + "?" + pragmas
}

func (db *DB) Close() error {
	return db.DB.Close()
}

// Healthy reports whether the catalog answers queries.
func (db *DB) Healthy(ctx context.Context) bool {
	return db.PingContext(ctx) == nil
}
