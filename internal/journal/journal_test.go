package journal

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openTest(t *testing.T) (*Journal, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "journal.db")
	j, err := Open(path)
	require.NoError(t, err)
	t.Cleanup(func() { j.Close() })
	return j, path
}

func entry(id string, at time.Time) Entry {
	return Entry{
		ID:          id,
		StartedAt:   at,
		FinishedAt:  at.Add(15 * time.Millisecond),
		Source:      "batch1.json",
		Policy:      "standard",
		Accepted:    2,
		Total:       5,
		ProductIDs:  []string{"A", "B"},
		BackupPath:  "/data/backups/products_20250101_000000.json",
		Pruned:      1,
		Fingerprint: "abc123",
	}
}

func TestOpen_Idempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "journal.db")
	for i := 0; i < 3; i++ {
		j, err := Open(path)
		require.NoError(t, err, "Open() iteration %d", i)
		require.NoError(t, j.Close())
	}

	j, err := Open(path)
	require.NoError(t, err)
	defer j.Close()

	var version int
	require.NoError(t, j.db.QueryRow("PRAGMA user_version").Scan(&version))
	assert.Equal(t, currentSchemaVersion, version)

	var mode string
	require.NoError(t, j.db.QueryRow("PRAGMA journal_mode").Scan(&mode))
	assert.Equal(t, "wal", mode)
}

func TestRecordIngest_RoundTrip(t *testing.T) {
	j, _ := openTest(t)
	ctx := context.Background()
	at := time.Date(2025, 1, 1, 8, 0, 0, 0, time.UTC)

	require.NoError(t, j.RecordIngest(ctx, entry("op-1", at)))

	entries, err := j.Recent(ctx, 10)
	require.NoError(t, err)
	require.Len(t, entries, 1)

	got := entries[0]
	assert.Equal(t, "op-1", got.ID)
	assert.True(t, got.StartedAt.Equal(at))
	assert.True(t, got.FinishedAt.Equal(at.Add(15*time.Millisecond)))
	assert.Equal(t, []string{"A", "B"}, got.ProductIDs)
	assert.Equal(t, 2, got.Accepted)
	assert.Equal(t, 5, got.Total)
	assert.Equal(t, 1, got.Pruned)
	assert.Equal(t, "abc123", got.Fingerprint)
}

func TestRecordIngest_DuplicateIDIgnored(t *testing.T) {
	j, _ := openTest(t)
	ctx := context.Background()
	at := time.Now()

	require.NoError(t, j.RecordIngest(ctx, entry("op-1", at)))
	require.NoError(t, j.RecordIngest(ctx, entry("op-1", at)))

	n, err := j.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestRecent_NewestFirstWithLimit(t *testing.T) {
	j, _ := openTest(t)
	ctx := context.Background()
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)

	for i := 1; i <= 5; i++ {
		require.NoError(t, j.RecordIngest(ctx, entry(fmt.Sprintf("op-%d", i), at.Add(time.Duration(i)*time.Minute))))
	}

	entries, err := j.Recent(ctx, 2)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Equal(t, "op-5", entries[0].ID)
	assert.Equal(t, "op-4", entries[1].ID)

	all, err := j.Recent(ctx, 0)
	require.NoError(t, err)
	assert.Len(t, all, 5)
}

func TestRecordIngest_NilProductIDs(t *testing.T) {
	j, _ := openTest(t)
	ctx := context.Background()
	e := entry("op-empty", time.Now())
	e.ProductIDs = nil

	require.NoError(t, j.RecordIngest(ctx, e))
	entries, err := j.Recent(ctx, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{}, entries[0].ProductIDs)
}

func TestMigrateToV1_AddsPrunedColumn(t *testing.T) {
	path := filepath.Join(t.TempDir(), "legacy.db")
	db, err := sql.Open("sqlite3", path)
	require.NoError(t, err)
	_, err = db.Exec(`CREATE TABLE ingest_runs (
		seq INTEGER PRIMARY KEY AUTOINCREMENT,
		id TEXT NOT NULL UNIQUE,
		started_at TEXT NOT NULL,
		finished_at TEXT NOT NULL,
		source TEXT NOT NULL DEFAULT '',
		policy TEXT NOT NULL DEFAULT 'standard',
		accepted INTEGER NOT NULL,
		total INTEGER NOT NULL,
		product_ids TEXT NOT NULL,
		backup_path TEXT NOT NULL DEFAULT '',
		fingerprint TEXT NOT NULL DEFAULT ''
	)`)
	require.NoError(t, err)
	require.NoError(t, db.Close())

	j, err := Open(path)
	require.NoError(t, err)
	defer j.Close()

	require.NoError(t, j.RecordIngest(context.Background(), entry("op-1", time.Now())))
	entries, err := j.Recent(context.Background(), 1)
	require.NoError(t, err)
	assert.Equal(t, 1, entries[0].Pruned)
}
