package journal

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

//go:embed schema.sql
var schemaSQL string

// Schema version tracking:
// 0 - Initial schema (pre-migration)
// 1 - Added pruned column to ingest_runs
const currentSchemaVersion = 1

// Entry is one journaled upsert.
type Entry struct {
	ID          string    `json:"id"`
	StartedAt   time.Time `json:"started_at"`
	FinishedAt  time.Time `json:"finished_at"`
	Source      string    `json:"source,omitempty"`
	Policy      string    `json:"policy"`
	Accepted    int       `json:"accepted"`
	Total       int       `json:"total"`
	ProductIDs  []string  `json:"product_ids"`
	BackupPath  string    `json:"backup_path,omitempty"`
	Pruned      int       `json:"pruned"`
	Fingerprint string    `json:"fingerprint,omitempty"`
}

// Journal is an open ingest journal.
type Journal struct {
	db *sql.DB
}

// Open creates or opens the journal database at path.
// Applies required pragmas and migrations automatically.
//
// This function is idempotent - safe to call multiple times.
func Open(path string) (*Journal, error) {
	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open journal: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to journal: %w", err)
	}

	// SQLite only supports one writer at a time
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	if err := applyPragmas(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply pragmas: %w", err)
	}

	if err := applySchema(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	return &Journal{db: db}, nil
}

// Close closes the database connection.
func (j *Journal) Close() error {
	if j.db == nil {
		return nil
	}
	return j.db.Close()
}

// RecordIngest appends e. Re-recording an id that is already present is a
// no-op, so a retried write cannot duplicate a run.
func (j *Journal) RecordIngest(ctx context.Context, e Entry) error {
	ids := e.ProductIDs
	if ids == nil {
		ids = []string{}
	}
	idsJSON, err := json.Marshal(ids)
	if err != nil {
		return fmt.Errorf("record ingest: %w", err)
	}

	_, err = j.db.ExecContext(ctx, `
		INSERT INTO ingest_runs
		(id, started_at, finished_at, source, policy, accepted, total, product_ids, backup_path, pruned, fingerprint)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO NOTHING
	`,
		e.ID,
		e.StartedAt.UTC().Format(time.RFC3339Nano),
		e.FinishedAt.UTC().Format(time.RFC3339Nano),
		e.Source,
		e.Policy,
		e.Accepted,
		e.Total,
		string(idsJSON),
		e.BackupPath,
		e.Pruned,
		e.Fingerprint,
	)
	if err != nil {
		return fmt.Errorf("record ingest: %w", err)
	}
	return nil
}

// Recent returns up to limit entries, newest first. A non-positive limit
// returns every entry.
func (j *Journal) Recent(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = -1 // SQLite: no limit
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT id, started_at, finished_at, source, policy, accepted, total,
		       product_ids, backup_path, pruned, fingerprint
		FROM ingest_runs
		ORDER BY seq DESC
		LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("query journal: %w", err)
	}
	return entries, nil
}

// Count returns the number of journaled runs.
func (j *Journal) Count(ctx context.Context) (int, error) {
	var n int
	if err := j.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM ingest_runs").Scan(&n); err != nil {
		return 0, fmt.Errorf("count journal: %w", err)
	}
	return n, nil
}

func scanEntry(rows *sql.Rows) (Entry, error) {
	var (
		e                 Entry
		started, finished string
		idsJSON           string
	)
	if err := rows.Scan(&e.ID, &started, &finished, &e.Source, &e.Policy, &e.Accepted, &e.Total,
		&idsJSON, &e.BackupPath, &e.Pruned, &e.Fingerprint); err != nil {
		return Entry{}, fmt.Errorf("scan journal row: %w", err)
	}
	var err error
	if e.StartedAt, err = time.Parse(time.RFC3339Nano, started); err != nil {
		return Entry{}, fmt.Errorf("parse started_at of %s: %w", e.ID, err)
	}
	if e.FinishedAt, err = time.Parse(time.RFC3339Nano, finished); err != nil {
		return Entry{}, fmt.Errorf("parse finished_at of %s: %w", e.ID, err)
	}
	if err := json.Unmarshal([]byte(idsJSON), &e.ProductIDs); err != nil {
		return Entry{}, fmt.Errorf("parse product_ids of %s: %w", e.ID, err)
	}
	return e, nil
}

// applyPragmas sets required SQLite configuration.
func applyPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA busy_timeout = 5000",
	}

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	return nil
}

// applySchema creates tables if they don't exist and runs migrations.
// This function is idempotent.
func applySchema(db *sql.DB) error {
	if _, err := db.Exec(schemaSQL); err != nil {
		return fmt.Errorf("failed to execute schema: %w", err)
	}

	if err := runMigrations(db); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}

	return nil
}

// runMigrations applies incremental schema migrations based on user_version.
func runMigrations(db *sql.DB) error {
	var version int
	if err := db.QueryRow("PRAGMA user_version").Scan(&version); err != nil {
		return fmt.Errorf("get user_version: %w", err)
	}

	if version < 1 {
		if err := migrateToV1(db); err != nil {
			return err
		}
	}

	if _, err := db.Exec(fmt.Sprintf("PRAGMA user_version = %d", currentSchemaVersion)); err != nil {
		return fmt.Errorf("set user_version: %w", err)
	}

	return nil
}

// migrateToV1 adds the pruned column to journals created before v1.
// New databases get it from schema.sql.
func migrateToV1(db *sql.DB) error {
	var n int
	err := db.QueryRow(`SELECT COUNT(*) FROM pragma_table_info('ingest_runs') WHERE name = 'pruned'`).Scan(&n)
	if err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	if n > 0 {
		return nil
	}
	if _, err := db.Exec(`ALTER TABLE ingest_runs ADD COLUMN pruned INTEGER NOT NULL DEFAULT 0`); err != nil {
		return fmt.Errorf("migrate to v1: %w", err)
	}
	return nil
}
