// Package lock provides cooperative, host-local mutual exclusion for the
// catalog's mutating path.
//
// FileLock marks ownership with a file beside the guarded document. The marker
// holds the owner's PID; its modification time is its creation time. A marker
// older than the staleness threshold is presumed abandoned by a crashed holder
// and is reclaimed. Liveness of the recorded PID is never checked.
//
// Reclaiming renames the marker aside before deleting it, so only one of
// several contenders can take a given stale marker. If the marker taken turns
// out to be fresh, it was created by a faster contender between the staleness
// check and the rename; it is linked back and the caller sees ErrBusy. A third
// process creating a marker inside that window can still coexist with the
// restored owner, so the lock stays advisory.
package lock

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"
)

// DefaultStaleAfter is the age beyond which a marker is considered abandoned.
const DefaultStaleAfter = 30 * time.Second

// Suffix is appended to the guarded path to name its marker.
const Suffix = ".lock"

// ErrBusy indicates the lock is held by another, non-stale owner.
var ErrBusy = errors.New("resource busy")

// ErrHeld is returned when Acquire is called on a lock this instance already holds.
var ErrHeld = errors.New("lock already held by this instance")

// BusyError describes a live marker that blocked acquisition.
type BusyError struct {
	Path string
	Age  time.Duration
}

func (e *BusyError) Error() string {
	return fmt.Sprintf("%s: %s is held by another process (age %s); try again later",
		ErrBusy, e.Path, e.Age.Round(time.Millisecond))
}

// Unwrap lets errors.Is(err, ErrBusy) match.
func (e *BusyError) Unwrap() error {
	return ErrBusy
}

// IsBusy reports whether err signals lock contention.
func IsBusy(err error) bool {
	return errors.Is(err, ErrBusy)
}

// Locker is a non-blocking mutual exclusion primitive. Acquire fails
// immediately with an error wrapping ErrBusy when the lock is taken.
type Locker interface {
	Acquire() error
	Release() error
}

// With runs fn while holding l. The lock is released on every exit path,
// including errors and panics raised by fn.
func With(l Locker, fn func() error) (err error) {
	if err := l.Acquire(); err != nil {
		return err
	}
	defer func() {
		if rerr := l.Release(); rerr != nil && err == nil {
			err = fmt.Errorf("release lock: %w", rerr)
		}
	}()
	return fn()
}

// FileLock is a time-based advisory lock backed by a marker file.
// A FileLock is not safe for concurrent use by multiple goroutines.
type FileLock struct {
	path       string
	staleAfter time.Duration
	now        func() time.Time
	held       bool

	beforeReclaim func() // test hook, runs between the staleness check and the rename
}

// NewFileLock returns a lock whose marker lives at path. A non-positive
// staleAfter selects DefaultStaleAfter; a nil now selects time.Now.
func NewFileLock(path string, staleAfter time.Duration, now func() time.Time) *FileLock {
	if staleAfter <= 0 {
		staleAfter = DefaultStaleAfter
	}
	if now == nil {
		now = time.Now
	}
	return &FileLock{path: path, staleAfter: staleAfter, now: now}
}

// ForDocument returns a FileLock guarding the document at docPath.
func ForDocument(docPath string, staleAfter time.Duration, now func() time.Time) *FileLock {
	return NewFileLock(docPath+Suffix, staleAfter, now)
}

// Path returns the marker path.
func (l *FileLock) Path() string {
	return l.path
}

// Held reports whether this instance currently owns the marker.
func (l *FileLock) Held() bool {
	return l.held
}

// Acquire creates the marker, reclaiming it first if it is stale.
func (l *FileLock) Acquire() error {
	if l.held {
		return ErrHeld
	}

	info, err := os.Stat(l.path)
	switch {
	case err == nil:
		age := l.now().Sub(info.ModTime())
		if age < l.staleAfter {
			return &BusyError{Path: l.path, Age: age}
		}
		if err := l.reclaim(); err != nil {
			return err
		}
	case errors.Is(err, fs.ErrNotExist):
	default:
		return fmt.Errorf("stat lock %s: %w", l.path, err)
	}

	// O_EXCL turns a creation race with another process into contention.
	f, err := os.OpenFile(l.path, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if errors.Is(err, fs.ErrExist) {
		return &BusyError{Path: l.path}
	}
	if err != nil {
		return fmt.Errorf("create lock %s: %w", l.path, err)
	}
	_, werr := f.WriteString(strconv.Itoa(os.Getpid()))
	cerr := f.Close()
	if werr == nil {
		werr = cerr
	}
	if werr != nil {
		_ = os.Remove(l.path)
		return fmt.Errorf("write lock %s: %w", l.path, werr)
	}

	l.held = true
	return nil
}

// reclaim moves a stale marker out of the way. Losing the rename to another
// contender is not an error; the O_EXCL create that follows decides the owner.
func (l *FileLock) reclaim() error {
	if l.beforeReclaim != nil {
		l.beforeReclaim()
	}

	aside := fmt.Sprintf("%s.stale.%d.%d", l.path, os.Getpid(), l.now().UnixNano())
	if err := os.Rename(l.path, aside); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return fmt.Errorf("reclaim stale lock %s: %w", l.path, err)
	}
	defer os.Remove(aside)

	info, err := os.Stat(aside)
	if err != nil {
		return fmt.Errorf("reclaim stale lock %s: %w", l.path, err)
	}
	if age := l.now().Sub(info.ModTime()); age < l.staleAfter {
		// Restore the fresh marker unless yet another owner has appeared.
		if err := os.Link(aside, l.path); err != nil && !errors.Is(err, fs.ErrExist) {
			return fmt.Errorf("restore lock %s: %w", l.path, err)
		}
		return &BusyError{Path: l.path, Age: age}
	}
	return nil
}

// Release removes the marker if this instance created it. A marker that is
// already gone is not an error.
func (l *FileLock) Release() error {
	if !l.held {
		return nil
	}
	l.held = false
	if err := os.Remove(l.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove lock %s: %w", l.path, err)
	}
	return nil
}

// ReadOwner returns the PID recorded in the marker at path.
func ReadOwner(path string) (int, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return 0, err
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(b)))
	if err != nil {
		return 0, fmt.Errorf("parse lock owner %s: %w", path, err)
	}
	return pid, nil
}
