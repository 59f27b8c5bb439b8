package catalog

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/tourcatalog/internal/backup"
	"github.com/roach88/tourcatalog/internal/canonical"
	"github.com/roach88/tourcatalog/internal/journal"
	"github.com/roach88/tourcatalog/internal/lock"
	"github.com/roach88/tourcatalog/internal/schema"
)

// tmpSuffix names the scratch file written before the atomic rename.
const tmpSuffix = ".tmp"

// Journal receives one entry per applied batch.
// *journal.Journal satisfies it.
type Journal interface {
	RecordIngest(ctx context.Context, e journal.Entry) error
}

// Options configures a Store. The zero value is usable.
type Options struct {
	// Validator checks every batch. Nil selects schema.PolicyStandard.
	Validator *schema.Validator

	// Locker guards the mutating path. Nil selects a lock.FileLock on
	// <path>.lock with LockStaleAfter.
	Locker         lock.Locker
	LockStaleAfter time.Duration

	// Retention bounds the age of kept snapshots. Zero selects
	// backup.DefaultRetention.
	Retention time.Duration

	// Journal and Metrics are optional.
	Journal Journal
	Metrics *Metrics

	Logger  *slog.Logger
	Clock   func() time.Time
	NewOpID func() string
}

// Store owns the catalog document at one path.
type Store struct {
	path      string
	validator *schema.Validator
	locker    lock.Locker
	backups   *backup.Manager
	retention time.Duration
	journal   Journal
	metrics   *Metrics
	logger    *slog.Logger
	now       func() time.Time
	newOpID   func() string

	// rename is os.Rename outside of crash tests.
	rename  func(oldpath, newpath string) error
	syncDir func(dir string) error

	mu sync.Mutex
}

// Open returns a store for the document at path and creates its backup
// directory. The document itself is created by the first upsert.
func Open(path string, opts Options) (*Store, error) {
	if path == "" {
		return nil, errors.New("catalog path is required")
	}

	s := &Store{
		path:      path,
		validator: opts.Validator,
		locker:    opts.Locker,
		retention: opts.Retention,
		journal:   opts.Journal,
		metrics:   opts.Metrics,
		logger:    opts.Logger,
		now:       opts.Clock,
		newOpID:   opts.NewOpID,
		rename:    os.Rename,
		syncDir:   syncDir,
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.newOpID == nil {
		s.newOpID = newOpID
	}
	if s.retention <= 0 {
		s.retention = backup.DefaultRetention
	}
	if s.validator == nil {
		v, err := schema.NewValidator(schema.PolicyStandard)
		if err != nil {
			return nil, err
		}
		s.validator = v
	}
	if s.locker == nil {
		s.locker = lock.ForDocument(path, opts.LockStaleAfter, s.now)
	}

	s.backups = backup.NewManager(backup.DirFor(path), s.now, s.logger)
	if err := os.MkdirAll(s.backups.Dir(), 0o755); err != nil {
		return nil, fmt.Errorf("create backup dir: %w", err)
	}
	return s, nil
}

func newOpID() string {
	id, err := uuid.NewV7()
	if err != nil {
		return uuid.NewString()
	}
	return id.String()
}

// Path returns the document path.
func (s *Store) Path() string {
	return s.path
}

// LockPath returns the path of the default lock marker.
func (s *Store) LockPath() string {
	return s.path + lock.Suffix
}

// BackupDir returns the snapshot directory.
func (s *Store) BackupDir() string {
	return s.backups.Dir()
}

// Policy returns the schema policy applied by UpsertBatch.
func (s *Store) Policy() schema.Policy {
	return s.validator.Policy()
}

// UpsertBatch validates records and merges them into the document by
// product_id. It returns the number of records accepted, which is len(records)
// on success.
//
// The batch is all-or-nothing: if any record is invalid a
// *schema.ValidationError is returned and neither the document nor the backup
// directory is touched. If another process holds the lock the call fails
// immediately with an error matching lock.ErrBusy. ctx is only consulted
// before the lock is taken; once the write has started it runs to completion.
func (s *Store) UpsertBatch(ctx context.Context, records []schema.Record) (int, error) {
	return s.apply(ctx, records, true)
}

// InsertBatch is UpsertBatch without replacement: if any product_id of the
// batch is already in the document, the call fails with a *ConflictError and
// neither the document nor the backup directory is touched. Duplicate ids
// within the batch itself still resolve last-write-wins.
func (s *Store) InsertBatch(ctx context.Context, records []schema.Record) (int, error) {
	return s.apply(ctx, records, false)
}

func (s *Store) apply(ctx context.Context, records []schema.Record, replace bool) (int, error) {
	opID := s.newOpID()
	log := s.logger.With("op", opID)
	started := s.now()

	products, err := s.validator.Validate(records)
	if err != nil {
		var ve *schema.ValidationError
		if errors.As(err, &ve) {
			s.metrics.rejected(len(ve.Issues))
		}
		log.Warn("batch rejected", "records", len(records), "error", err)
		return 0, err
	}
	if len(products) == 0 {
		log.Debug("empty batch, nothing to do")
		return 0, nil
	}
	if err := ctx.Err(); err != nil {
		return 0, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var entry journal.Entry
	err = lock.With(s.locker, func() error {
		var existing []schema.Product
		loaded := false
		if !replace {
			if existing, err = s.Load(); err != nil {
				return err
			}
			loaded = true
			if ids := Conflicts(existing, products); len(ids) > 0 {
				return &ConflictError{IDs: ids}
			}
		}

		snap, err := s.backups.Snapshot(s.path)
		if err != nil {
			return fmt.Errorf("snapshot: %w", err)
		}
		if snap != "" {
			s.metrics.backupCreated()
			log.Debug("snapshot created", "path", snap)
		}

		if !loaded {
			if existing, err = s.Load(); err != nil {
				return err
			}
		}
		merged := Merge(existing, products)
		if err := s.Save(merged); err != nil {
			return err
		}

		pruned, err := s.backups.Prune(s.retention)
		if err != nil {
			log.Warn("backup prune failed", "error", err)
		}
		s.metrics.backupsPruned(pruned)

		entry = journal.Entry{
			ID:         opID,
			StartedAt:  started,
			Source:     SourceFrom(ctx),
			Policy:     s.validator.Policy().String(),
			Accepted:   len(products),
			Total:      len(merged),
			ProductIDs: IDs(products),
			BackupPath: snap,
			Pruned:     pruned,
		}
		s.record(context.WithoutCancel(ctx), log, &entry, merged)
		return nil
	})
	if err != nil {
		switch {
		case lock.IsBusy(err):
			s.metrics.batchDone(ResultBusy)
			log.Warn("catalog busy", "error", err)
		case IsConflict(err):
			s.metrics.batchDone(ResultConflict)
			log.Warn("batch rejected", "error", err)
		default:
			s.metrics.batchDone(ResultError)
			log.Error("upsert failed", "error", err)
		}
		return 0, err
	}

	s.metrics.accepted(entry.Accepted, entry.Total, s.now().Sub(started))
	log.Info("batch applied",
		"accepted", entry.Accepted,
		"total", entry.Total,
		"backup", entry.BackupPath,
		"pruned", entry.Pruned,
	)
	return len(products), nil
}

// record appends e to the journal. Journal failures are logged, never
// returned: the document has already been replaced.
func (s *Store) record(ctx context.Context, log *slog.Logger, e *journal.Entry, merged []schema.Product) {
	if s.journal == nil {
		return
	}
	fp, err := canonical.DocumentFingerprint(merged)
	if err != nil {
		log.Warn("fingerprint failed", "error", err)
	}
	e.Fingerprint = fp
	e.FinishedAt = s.now()
	if err := s.journal.RecordIngest(ctx, *e); err != nil {
		log.Warn("journal write failed", "error", err)
	}
}

// Load reads the document. A missing document, or one whose top level is
// valid JSON but not an array, yields an empty slice. A document that is not
// valid JSON yields an error matching ErrMalformedStore.
func (s *Store) Load() ([]schema.Product, error) {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []schema.Product{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read catalog: %w", err)
	}

	if !json.Valid(data) {
		return nil, &MalformedError{Path: s.path, Err: errors.New("invalid JSON")}
	}
	if trimmed := bytes.TrimSpace(data); len(trimmed) == 0 || trimmed[0] != '[' {
		s.logger.Warn("catalog document is not a list, treating as empty", "path", s.path)
		return []schema.Product{}, nil
	}

	var products []schema.Product
	if err := json.Unmarshal(data, &products); err != nil {
		return nil, &MalformedError{Path: s.path, Err: err}
	}
	return products, nil
}

// Save atomically replaces the document with products: it writes
// <path>.tmp, syncs it to disk, renames it over the document and syncs the
// parent directory. On failure the previous document is left in place.
func (s *Store) Save(products []schema.Product) (err error) {
	if products == nil {
		products = []schema.Product{}
	}
	tmp := s.path + tmpSuffix

	f, err := os.OpenFile(tmp, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o644)
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = os.Remove(tmp)
		}
	}()

	enc := json.NewEncoder(f)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(products); err != nil {
		f.Close()
		return fmt.Errorf("encode catalog: %w", err)
	}
	if err := f.Sync(); err != nil {
		f.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := s.rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace catalog: %w", err)
	}
	// The new document is already visible; a failed directory sync only
	// weakens durability across power loss.
	if err := s.syncDir(filepath.Dir(s.path)); err != nil {
		s.logger.Warn("catalog directory not synced", "path", s.path, "error", err)
	}
	return nil
}

// syncDir flushes a directory entry so a rename inside it survives a crash.
func syncDir(path string) error {
	dir, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open dir for sync: %w", err)
	}
	defer dir.Close()
	if err := dir.Sync(); err != nil {
		return fmt.Errorf("sync dir: %w", err)
	}
	return nil
}

// CreateBackupNow snapshots the document outside of an upsert. It returns ""
// when there is no document to copy.
func (s *Store) CreateBackupNow() (string, error) {
	path, err := s.backups.Snapshot(s.path)
	if err != nil {
		return "", fmt.Errorf("snapshot: %w", err)
	}
	if path != "" {
		s.metrics.backupCreated()
		s.logger.Info("backup created", "path", path)
	}
	return path, nil
}

// ListBackups returns the snapshots sorted oldest first.
func (s *Store) ListBackups() ([]backup.Snapshot, error) {
	return s.backups.List()
}

// DeleteStoreAndLock removes the document and its lock marker. It reports
// whether a document existed. Snapshots are kept.
func (s *Store) DeleteStoreAndLock() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existed := true
	if err := os.Remove(s.path); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return false, fmt.Errorf("delete catalog: %w", err)
		}
		existed = false
	}
	if err := os.Remove(s.LockPath()); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return existed, fmt.Errorf("delete lock: %w", err)
	}
	s.logger.Info("catalog deleted", "path", s.path, "existed", existed)
	return existed, nil
}
