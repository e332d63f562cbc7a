package db

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	_ "modernc.org/sqlite"

	"github.com/lucasew/slackoffload/internal/eviction"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

// DB is the migration journal: which files left the source store, where
// they went, and how each run ended.
type DB struct {
	db *sql.DB
}

// MigrationEntry is one journaled migration.
type MigrationEntry struct {
	RunID      string
	FileID     string
	Name       string
	Size       uint64
	Key        string
	Location   string
	MigratedAt time.Time
}

// RunEntry is one journaled run summary.
type RunEntry struct {
	RunID        string
	Strategy     string
	Location     string
	Result       string
	Error        string
	Limit        uint64
	Target       uint64
	TotalBefore  uint64
	TotalAfter   uint64
	FilesRemoved int
	BytesSaved   uint64
	Skipped      int
	StartedAt    time.Time
	FinishedAt   time.Time
}

// Open opens the journal at path and applies pending schema migrations.
func Open(path string) (*DB, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	// sqlite allows one writer; a single connection avoids SQLITE_BUSY.
	db.SetMaxOpenConns(1)

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if err := migrateUp(db); err != nil {
		db.Close()
		return nil, err
	}

	return &DB{db: db}, nil
}

func migrateUp(db *sql.DB) error {
	source, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("failed to load migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(db, &sqlite.Config{})
	if err != nil {
		return fmt.Errorf("failed to init migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", source, "sqlite", driver)
	if err != nil {
		return fmt.Errorf("failed to init migrations: %w", err)
	}
	// m.Close would close db as well, so only the source is released.
	defer source.Close()

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}
	return nil
}

// Close closes the database connection.
func (d *DB) Close() error {
	return d.db.Close()
}

// RecordMigration journals one successful migration of runID.
func (d *DB) RecordMigration(ctx context.Context, runID string, m eviction.Migration) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT INTO migrations (run_id, file_id, name, size, object_key, migrated_at) VALUES (?, ?, ?, ?, ?, ?)`,
		runID, m.ID, m.Name, int64(m.Size), m.Key, time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to record migration of %s: %w", m.ID, err)
	}
	return nil
}

// RecordRun journals the summary of a finished run.
func (d *DB) RecordRun(ctx context.Context, r *eviction.Report) error {
	_, err := d.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO runs (
			run_id, strategy, location, result, error,
			limit_bytes, target_bytes, total_before, total_after,
			files_removed, bytes_saved, skipped, started_at, finished_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		r.RunID, r.Strategy, r.Location, r.Result, r.Error,
		int64(r.Limit), int64(r.Target), int64(r.TotalBefore), int64(r.TotalAfter),
		r.FilesRemoved, int64(r.BytesSaved), len(r.Skipped),
		r.StartedAt.UnixMilli(), r.FinishedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("failed to record run %s: %w", r.RunID, err)
	}
	return nil
}

// FindFile returns every journaled migration of the given source file id,
// most recent first.
func (d *DB) FindFile(ctx context.Context, fileID string) ([]MigrationEntry, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT m.run_id, m.file_id, m.name, m.size, m.object_key, COALESCE(r.location, ''), m.migrated_at
		FROM migrations m LEFT JOIN runs r ON r.run_id = m.run_id
		WHERE m.file_id = ?
		ORDER BY m.migrated_at DESC, m.id DESC`, fileID)
	if err != nil {
		return nil, fmt.Errorf("failed to query migrations of %s: %w", fileID, err)
	}
	defer rows.Close()

	var entries []MigrationEntry
	for rows.Next() {
		var e MigrationEntry
		var size, at int64
		if err := rows.Scan(&e.RunID, &e.FileID, &e.Name, &size, &e.Key, &e.Location, &at); err != nil {
			return nil, fmt.Errorf("failed to scan migration: %w", err)
		}
		e.Size = uint64(size)
		e.MigratedAt = time.UnixMilli(at)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// RecentRuns returns up to limit run summaries, most recent first.
func (d *DB) RecentRuns(ctx context.Context, limit int) ([]RunEntry, error) {
	rows, err := d.db.QueryContext(ctx, `
		SELECT run_id, strategy, location, result, error,
			limit_bytes, target_bytes, total_before, total_after,
			files_removed, bytes_saved, skipped, started_at, finished_at
		FROM runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var entries []RunEntry
	for rows.Next() {
		var e RunEntry
		var lim, target, before, after, saved, started, finished int64
		err := rows.Scan(&e.RunID, &e.Strategy, &e.Location, &e.Result, &e.Error,
			&lim, &target, &before, &after,
			&e.FilesRemoved, &saved, &e.Skipped, &started, &finished)
		if err != nil {
			return nil, fmt.Errorf("failed to scan run: %w", err)
		}
		e.Limit = uint64(lim)
		e.Target = uint64(target)
		e.TotalBefore = uint64(before)
		e.TotalAfter = uint64(after)
		e.BytesSaved = uint64(saved)
		e.StartedAt = time.UnixMilli(started)
		e.FinishedAt = time.UnixMilli(finished)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
