// Package backup keeps timestamped snapshots of the catalog document.
//
// Snapshots are flat files named products_<YYYYMMDD_HHMMSS>.json in a
// dedicated directory beside the document. Each snapshot's modification time
// is set to the moment it was taken; retention is measured against it.
package backup

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	// Prefix and Ext bracket every snapshot file name.
	Prefix = "products_"
	Ext    = ".json"

	// TimeLayout is the second-resolution timestamp embedded in names.
	TimeLayout = "20060102_150405"

	// DirName is the backup directory created beside the document.
	DirName = "backups"

	// DefaultRetention is how long snapshots are kept.
	DefaultRetention = 7 * 24 * time.Hour
)

// Snapshot describes one backup file.
type Snapshot struct {
	Name    string    `json:"name"`
	Path    string    `json:"path"`
	Size    int64     `json:"size"`
	ModTime time.Time `json:"mod_time"`
}

// Manager creates, lists and prunes snapshots in one directory.
type Manager struct {
	dir    string
	now    func() time.Time
	logger *slog.Logger
}

// NewManager returns a manager for dir. A nil now selects time.Now and a nil
// logger selects slog.Default().
func NewManager(dir string, now func() time.Time, logger *slog.Logger) *Manager {
	if now == nil {
		now = time.Now
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Manager{dir: dir, now: now, logger: logger}
}

// DirFor returns the backup directory used for the document at docPath.
func DirFor(docPath string) string {
	return filepath.Join(filepath.Dir(docPath), DirName)
}

// Dir returns the snapshot directory.
func (m *Manager) Dir() string {
	return m.dir
}

// Snapshot copies the document at docPath into the backup directory and
// returns the snapshot path. If there is no document yet it returns "" and no
// error. Names colliding within the same second get a _<n> suffix instead of
// overwriting the earlier snapshot.
func (m *Manager) Snapshot(docPath string) (string, error) {
	src, err := os.Open(docPath)
	if errors.Is(err, fs.ErrNotExist) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("open document: %w", err)
	}
	defer src.Close()

	if err := os.MkdirAll(m.dir, 0o755); err != nil {
		return "", fmt.Errorf("create backup dir: %w", err)
	}

	taken := m.now()
	stem := Prefix + taken.Format(TimeLayout)
	dst, path, err := m.createUnique(stem)
	if err != nil {
		return "", err
	}

	_, copyErr := io.Copy(dst, src)
	if copyErr == nil {
		copyErr = dst.Sync()
	}
	if closeErr := dst.Close(); copyErr == nil {
		copyErr = closeErr
	}
	if copyErr != nil {
		_ = os.Remove(path)
		return "", fmt.Errorf("write snapshot %s: %w", path, copyErr)
	}
	if err := os.Chtimes(path, taken, taken); err != nil {
		return "", fmt.Errorf("stamp snapshot %s: %w", path, err)
	}

	m.logger.Debug("backup created", "path", path)
	return path, nil
}

func (m *Manager) createUnique(stem string) (*os.File, string, error) {
	for n := 0; ; n++ {
		name := stem + Ext
		if n > 0 {
			name = fmt.Sprintf("%s_%d%s", stem, n, Ext)
		}
		path := filepath.Join(m.dir, name)
		f, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
		if errors.Is(err, fs.ErrExist) {
			continue
		}
		if err != nil {
			return nil, "", fmt.Errorf("create snapshot %s: %w", path, err)
		}
		return f, path, nil
	}
}

// Prune deletes snapshots whose modification time is before now-retention
// and returns how many it removed. It is best-effort: a snapshot that cannot
// be inspected or deleted is logged and skipped, and one already deleted by
// another process is ignored. Only a failure to read the directory itself is
// returned.
func (m *Manager) Prune(retention time.Duration) (int, error) {
	entries, err := os.ReadDir(m.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("read backup dir: %w", err)
	}

	cutoff := m.now().Add(-retention)
	removed := 0
	for _, entry := range entries {
		if entry.IsDir() || !IsSnapshotName(entry.Name()) {
			continue
		}
		path := filepath.Join(m.dir, entry.Name())
		info, err := entry.Info()
		if err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				m.logger.Warn("skipping unreadable backup", "path", path, "error", err)
			}
			continue
		}
		if !info.ModTime().Before(cutoff) {
			continue
		}
		if err := os.Remove(path); err != nil {
			if !errors.Is(err, fs.ErrNotExist) {
				m.logger.Warn("failed to delete old backup", "path", path, "error", err)
			}
			continue
		}
		removed++
		m.logger.Debug("backup pruned", "path", path, "mod_time", info.ModTime())
	}
	return removed, nil
}

// List returns all snapshots sorted by name, oldest first. A missing
// directory yields an empty list.
func (m *Manager) List() ([]Snapshot, error) {
	entries, err := os.ReadDir(m.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return []Snapshot{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read backup dir: %w", err)
	}

	snaps := make([]Snapshot, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !IsSnapshotName(entry.Name()) {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			// Pruned by another process between ReadDir and Info.
			continue
		}
		snaps = append(snaps, Snapshot{
			Name:    entry.Name(),
			Path:    filepath.Join(m.dir, entry.Name()),
			Size:    info.Size(),
			ModTime: info.ModTime(),
		})
	}
	sort.Slice(snaps, func(i, j int) bool { return snaps[i].Name < snaps[j].Name })
	return snaps, nil
}

// IsSnapshotName reports whether name follows the snapshot naming scheme.
func IsSnapshotName(name string) bool {
	return strings.HasPrefix(name, Prefix) && strings.HasSuffix(name, Ext)
}
