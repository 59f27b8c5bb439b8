package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/tourcatalog/internal/catalog"
)

// topN bounds the destination and supplier lists in text output.
const topN = 5

// StatsResult wraps catalog.Stats for text rendering.
type StatsResult struct {
	*catalog.Stats
}

func (r StatsResult) String() string {
	var b strings.Builder
	rule := strings.Repeat("=", 60)

	fmt.Fprintln(&b, "Catalog Statistics")
	fmt.Fprintln(&b, rule)
	fmt.Fprintf(&b, "Total Products:      %d\n", r.Total)
	if r.Total == 0 {
		fmt.Fprintln(&b, "\nNo products in catalog.")
	} else {
		fmt.Fprintf(&b, "Last Updated:        %s\n", r.LastModified.Format("2006-01-02 15:04:05"))
		fmt.Fprintf(&b, "Database Size:       %s\n", formatBytes(r.SizeBytes))
		fmt.Fprintf(&b, "Active Products:     %d\n", r.Active)
		fmt.Fprintf(&b, "Inactive Products:   %d\n", r.Inactive)
		fmt.Fprintf(&b, "Fingerprint:         %s\n", r.Fingerprint)

		writeCounts(&b, "By Category:", r.Categories, r.Total, 20)
		writeCounts(&b, "By Destination:", catalog.Top(r.Destinations, topN), r.Total, 20)
		writeCounts(&b, "Top Suppliers:", catalog.Top(r.Suppliers, topN), r.Total, 30)
	}
	fmt.Fprintf(&b, "\nBackups Available:   %d\n", r.Backups)
	b.WriteString(rule)
	return b.String()
}

func writeCounts(b *strings.Builder, title string, counts []catalog.Count, total, width int) {
	fmt.Fprintf(b, "\n%s\n", title)
	for _, c := range counts {
		pct := float64(c.Count) / float64(total) * 100
		fmt.Fprintf(b, "  %-*s %3d (%5.1f%%)\n", width, c.Name, c.Count, pct)
	}
}

// formatBytes renders n with a binary unit.
func formatBytes(n int64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := int64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %cB", float64(n)/float64(div), "KMGTPE"[exp])
}

// NewStatsCommand creates the stats command.
func NewStatsCommand(rootOpts *RootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "stats",
		Short: "Show catalog statistics",
		Long: `Show product counts, groupings by category, destination and supplier,
the document fingerprint and the number of available backups.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runStats(rootOpts, cmd)
		},
	}
}

func runStats(opts *RootOptions, cmd *cobra.Command) error {
	f := formatter(opts, cmd)

	s, err := openSession(opts, false)
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeGeneric, "failed to open catalog", nil, err)
	}
	defer s.close()

	st, err := s.store.Stats()
	if err != nil {
		return storeFailure(f, err)
	}
	if !st.Exists {
		msg := fmt.Sprintf("catalog not initialized at %s; run 'catalogctl ingest --file <path>' to create it", st.Path)
		return f.fail(ExitFailure, ErrCodeNotInit, msg, nil, nil)
	}
	return f.Success(StatsResult{st})
}
