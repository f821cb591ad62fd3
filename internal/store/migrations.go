package store

import (
	"database/sql"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"

	"github.com/icewall905/tuneforge/migrations"
)

const (
	catalogVersionTable = "goose_db_version"
	historyVersionTable = "tuneforge_history_version"
)

// goose keeps its settings in package globals.
var migrateMu sync.Mutex

// RunMigrations applies all pending catalog migrations from the embedded FS.
func RunMigrations(db *sql.DB) error {
	return runMigrationSet(db, migrations.CatalogDir, catalogVersionTable)
}

// RunHistoryMigrations creates the job history table. It tracks its own
// version so it can run against catalogs owned by another process.
func RunHistoryMigrations(db *sql.DB) error {
	return runMigrationSet(db, migrations.HistoryDir, historyVersionTable)
}

func runMigrationSet(db *sql.DB, dir, versionTable string) error {
	migrateMu.Lock()
	defer migrateMu.Unlock()

	goose.SetLogger(goose.NopLogger())
	goose.SetBaseFS(migrations.FS)
	goose.SetTableName(versionTable)
	defer goose.SetTableName(catalogVersionTable)

	if err := goose.SetDialect("sqlite"); err != nil {
		return fmt.Errorf("set dialect: %w", err)
	}

	if err := goose.Up(db, dir); err != nil {
		return fmt.Errorf("run %s migrations: %w", dir, err)
	}

	return nil
}
