package catalog

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	promtest "github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/roach88/tourcatalog/internal/schema"
)

func TestMetrics_CountOutcomes(t *testing.T) {
	m := NewMetrics()
	s, _ := newTestStoreWith(t, Options{Metrics: m})
	ctx := context.Background()

	_, err := s.UpsertBatch(ctx, []schema.Record{rec("A", 1), rec("B", 2)})
	require.NoError(t, err)
	_, err = s.UpsertBatch(ctx, []schema.Record{rec("C", 3)})
	require.NoError(t, err)
	_, err = s.UpsertBatch(ctx, []schema.Record{rec("D", -1), rec("E", -2)})
	require.Error(t, err)

	require.NoError(t, os.WriteFile(s.LockPath(), []byte("1"), 0o644))
	now := start
	require.NoError(t, os.Chtimes(s.LockPath(), now, now))
	_, err = s.UpsertBatch(ctx, []schema.Record{rec("F", 1)})
	require.True(t, IsBusy(err))

	assert.Equal(t, 2.0, promtest.ToFloat64(m.batches.WithLabelValues(ResultOK)))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.batches.WithLabelValues(ResultInvalid)))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.batches.WithLabelValues(ResultBusy)))
	assert.Equal(t, 3.0, promtest.ToFloat64(m.records))
	assert.Equal(t, 2.0, promtest.ToFloat64(m.issues))
	assert.Equal(t, 1.0, promtest.ToFloat64(m.backups))
	assert.Equal(t, 3.0, promtest.ToFloat64(m.products))
}

func TestMetrics_CountsPrunedBackups(t *testing.T) {
	m := NewMetrics()
	s, _ := newTestStoreWith(t, Options{Metrics: m})

	old := filepath.Join(s.BackupDir(), "products_20240101_000000.json")
	require.NoError(t, os.WriteFile(old, []byte("[]"), 0o644))
	mt := start.Add(-30 * 24 * time.Hour)
	require.NoError(t, os.Chtimes(old, mt, mt))

	_, err := s.UpsertBatch(context.Background(), []schema.Record{rec("A", 1)})
	require.NoError(t, err)
	assert.Equal(t, 1.0, promtest.ToFloat64(m.pruned))
}

func TestMetrics_NilIsNoop(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.batchDone(ResultError)
		m.accepted(1, 1, time.Second)
		m.rejected(1)
		m.backupCreated()
		m.backupsPruned(2)
	})
}

func TestMetrics_WriteTextfile(t *testing.T) {
	m := NewMetrics()
	s, _ := newTestStoreWith(t, Options{Metrics: m})
	_, err := s.UpsertBatch(context.Background(), []schema.Record{rec("A", 1)})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "catalog.prom")
	require.NoError(t, m.WriteTextfile(path))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), `catalog_upsert_batches_total{result="ok"} 1`)
	assert.Contains(t, string(data), "catalog_document_products 1")
}
