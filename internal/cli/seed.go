package cli

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/tourcatalog/internal/catalog"
)

// SeedResult lists the batch files applied by seed.
type SeedResult struct {
	Dir      string         `json:"dir"`
	Files    []IngestResult `json:"files"`
	Accepted int            `json:"accepted"`
}

func (r SeedResult) String() string {
	var b strings.Builder
	for _, f := range r.Files {
		fmt.Fprintf(&b, "  %-40s %4d\n", filepath.Base(f.File), f.Accepted)
	}
	fmt.Fprintf(&b, "✓ Seeded %d product(s) from %d file(s)", r.Accepted, len(r.Files))
	return b.String()
}

// NewSeedCommand creates the seed command.
func NewSeedCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "seed <dir>",
		Short: "Upsert every batch file in a directory",
		Long: `Upsert each batch file found directly in a directory, in name order.

Each file is its own all-or-nothing batch. Seeding stops at the first file
that fails; files applied before it stay applied.

Example:
  catalogctl seed ./seed-data`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runSeed(rootOpts, args[0], cmd)
		},
	}
	return cmd
}

func runSeed(opts *RootOptions, dir string, cmd *cobra.Command) error {
	f := formatter(opts, cmd)

	files, err := FindBatchFiles(dir)
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeScanError, fmt.Sprintf("cannot read %s", dir), nil, err)
	}
	if len(files) == 0 {
		return f.fail(ExitCommandError, ErrCodeNoFiles, fmt.Sprintf("no batch files found in %s", dir), nil, nil)
	}

	s, err := openSession(opts, true)
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeGeneric, "failed to open catalog", nil, err)
	}
	defer s.close()

	result := SeedResult{Dir: dir, Files: []IngestResult{}}
	for _, file := range files {
		records, err := LoadRecords(file)
		if err != nil {
			return loadFailure(f, err)
		}
		if len(records) == 0 {
			f.VerboseLog("Skipping empty batch file %s", file)
			continue
		}
		ctx := catalog.WithSource(commandContext(cmd), filepath.Base(file))
		n, err := s.store.UpsertBatch(ctx, records)
		if err != nil {
			f.VerboseLog("Seeding stopped at %s", file)
			return storeFailure(f, err)
		}
		f.VerboseLog("Applied %s (%d record(s))", file, n)
		result.Files = append(result.Files, IngestResult{File: file, Accepted: n, IDs: batchIDs(records)})
		result.Accepted += n
	}

	return f.Success(result)
}
