package shared

import (
	"context"
	"embed"
	"fmt"
	"sync"

	"github.com/pressly/goose/v3"
)

//go:embed sql/*.sql
var migrationFiles embed.FS

const migrationDir = "sql"

// goose keeps its base FS and dialect in package state.
var gooseMu sync.Mutex

func prepareGoose(db *DB) error {
	goose.SetBaseFS(migrationFiles)
	goose.SetLogger(goose.NopLogger())

	dialect := "sqlite3"
	if db.Driver == DriverPgx {
		dialect = "postgres"
	}

	if err := goose.SetDialect(dialect); err != nil {
		return fmt.Errorf("failed to set migration dialect: %w", err)
	}
	return nil
}

// RunMigrations executes all pending migrations on the database.
// Applied versions are tracked by goose in the goose_db_version table.
func RunMigrations(ctx context.Context, db *DB) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	if err := prepareGoose(db); err != nil {
		return err
	}

	if err := goose.UpContext(ctx, db.DB, migrationDir); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// RollbackMigration rolls back the most recent migration.
func RollbackMigration(ctx context.Context, db *DB) error {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	if err := prepareGoose(db); err != nil {
		return err
	}

	version, err := goose.GetDBVersionContext(ctx, db.DB)
	if err != nil {
		return fmt.Errorf("failed to get current version: %w", err)
	}
	if version == 0 {
		return fmt.Errorf("no migrations to rollback")
	}

	if err := goose.DownContext(ctx, db.DB, migrationDir); err != nil {
		return fmt.Errorf("failed to rollback migration %d: %w", version, err)
	}

	return nil
}

// MigrationVersion returns the highest applied migration version.
func MigrationVersion(ctx context.Context, db *DB) (int64, error) {
	gooseMu.Lock()
	defer gooseMu.Unlock()

	if err := prepareGoose(db); err != nil {
		return 0, err
	}

	return goose.GetDBVersionContext(ctx, db.DB)
}
