package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/tourcatalog/internal/journal"
)

// HistoryOptions holds flags for the history command.
type HistoryOptions struct {
	*RootOptions
	Limit int
}

// HistoryResult lists journal entries, newest first.
type HistoryResult struct {
	Entries []journal.Entry `json:"entries"`
}

func (r HistoryResult) String() string {
	if len(r.Entries) == 0 {
		return "No ingest runs recorded."
	}
	var b strings.Builder
	fmt.Fprintf(&b, "%-20s %-28s %-8s %8s %6s %6s\n", "Started", "Source", "Policy", "Accepted", "Total", "Pruned")
	fmt.Fprintln(&b, strings.Repeat("-", 81))
	for _, e := range r.Entries {
		source := e.Source
		if source == "" {
			source = "-"
		}
		fmt.Fprintf(&b, "%-20s %-28s %-8s %8d %6d %6d\n",
			e.StartedAt.Local().Format("2006-01-02 15:04:05"), source, e.Policy, e.Accepted, e.Total, e.Pruned)
	}
	return strings.TrimRight(b.String(), "\n")
}

// NewHistoryCommand creates the history command.
func NewHistoryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &HistoryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent ingest runs from the journal",
		Long: `Show recent successful upserts recorded in the ingest journal.

Examples:
  catalogctl history
  catalogctl history --limit 50 --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runHistory(opts, cmd)
		},
	}

	cmd.Flags().IntVarP(&opts.Limit, "limit", "n", 20, "maximum entries to show (0 for all)")

	return cmd
}

func runHistory(opts *HistoryOptions, cmd *cobra.Command) error {
	f := formatter(opts.RootOptions, cmd)

	path := opts.Config.Journal()
	if path == "" {
		return f.fail(ExitCommandError, ErrCodeNoJournal, "ingest journal is disabled", nil, nil)
	}

	j, err := journal.Open(path)
	if err != nil {
		return f.fail(ExitFailure, ErrCodeJournalError, "failed to open journal", nil, err)
	}
	defer j.Close()

	entries, err := j.Recent(commandContext(cmd), opts.Limit)
	if err != nil {
		return f.fail(ExitFailure, ErrCodeJournalError, "failed to read journal", nil, err)
	}
	return f.Success(HistoryResult{Entries: entries})
}
