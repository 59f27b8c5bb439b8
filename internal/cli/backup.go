package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/tourcatalog/internal/backup"
)

// BackupResult describes a snapshot created on demand.
type BackupResult struct {
	Path string `json:"path"`
	Size int64  `json:"size"`
}

func (r BackupResult) String() string {
	return fmt.Sprintf("✓ Backup created\n  Location: %s\n  Size:     %s", r.Path, formatBytes(r.Size))
}

// BackupList is the output of list-backups.
type BackupList struct {
	Dir     string            `json:"dir"`
	Backups []backup.Snapshot `json:"backups"`
}

func (l BackupList) String() string {
	if len(l.Backups) == 0 {
		return "No backups available."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Available Backups (%d total)\n", len(l.Backups))
	fmt.Fprintf(&b, "%-35s %-20s %10s\n", "Filename", "Created", "Size")
	fmt.Fprintln(&b, strings.Repeat("-", 67))
	for _, s := range l.Backups {
		fmt.Fprintf(&b, "%-35s %-20s %10s\n", s.Name, s.ModTime.Format("2006-01-02 15:04:05"), formatBytes(s.Size))
	}
	return strings.TrimRight(b.String(), "\n")
}

// NewBackupCommand creates the backup command.
func NewBackupCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "backup",
		Short:         "Snapshot the catalog now",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBackup(rootOpts, cmd)
		},
	}
}

func runBackup(opts *RootOptions, cmd *cobra.Command) error {
	f := formatter(opts, cmd)

	s, err := openSession(opts, false)
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeGeneric, "failed to open catalog", nil, err)
	}
	defer s.close()

	path, err := s.store.CreateBackupNow()
	if err != nil {
		return f.fail(ExitFailure, ErrCodeWriteFailed, "failed to create backup", nil, err)
	}
	if path == "" {
		return f.fail(ExitFailure, ErrCodeNotInit, "catalog does not exist; nothing to back up", nil, nil)
	}

	snaps, err := s.store.ListBackups()
	if err != nil {
		return f.fail(ExitFailure, ErrCodeGeneric, "failed to list backups", nil, err)
	}
	result := BackupResult{Path: path}
	for _, snap := range snaps {
		if snap.Path == path {
			result.Size = snap.Size
		}
	}
	return f.Success(result)
}

// NewListBackupsCommand creates the list-backups command.
func NewListBackupsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:           "list-backups",
		Short:         "List catalog snapshots, oldest first",
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runListBackups(rootOpts, cmd)
		},
	}
}

func runListBackups(opts *RootOptions, cmd *cobra.Command) error {
	f := formatter(opts, cmd)

	s, err := openSession(opts, false)
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeGeneric, "failed to open catalog", nil, err)
	}
	defer s.close()

	snaps, err := s.store.ListBackups()
	if err != nil {
		return f.fail(ExitFailure, ErrCodeGeneric, "failed to list backups", nil, err)
	}
	return f.Success(BackupList{Dir: s.store.BackupDir(), Backups: snaps})
}
