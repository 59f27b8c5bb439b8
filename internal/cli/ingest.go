package cli

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/roach88/tourcatalog/internal/catalog"
	"github.com/roach88/tourcatalog/internal/schema"
)

// IngestOptions holds flags for the ingest command.
type IngestOptions struct {
	*RootOptions
	File      string
	NoReplace bool
}

// IngestResult is the outcome of one applied batch file.
type IngestResult struct {
	File     string   `json:"file"`
	Accepted int      `json:"accepted"`
	IDs      []string `json:"product_ids"`
}

func (r IngestResult) String() string {
	return fmt.Sprintf("✓ Ingested %d product(s) from %s", r.Accepted, filepath.Base(r.File))
}

// NewIngestCommand creates the ingest command.
func NewIngestCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &IngestOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Upsert products from a batch file",
		Long: `Validate a batch file and upsert its products into the catalog.

The batch is all-or-nothing: if any record is invalid nothing is written.
Supported formats are a JSON array or object (.json), JSON Lines with
# comments (.jsonl) and YAML (.yaml, .yml).

With --no-replace the batch may only add products: if any product_id is
already in the catalog the whole batch is rejected.

Examples:
  catalogctl ingest --file batch_culture.json
  catalogctl ingest --file new_tour.yaml --no-replace
  catalogctl ingest --file updates.jsonl --strict --format json`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(opts, cmd)
		},
	}

	cmd.Flags().StringVarP(&opts.File, "file", "f", "", "batch file to ingest (required)")
	_ = cmd.MarkFlagRequired("file")
	cmd.Flags().BoolVar(&opts.NoReplace, "no-replace", false, "reject the batch if any product already exists")

	return cmd
}

func runIngest(opts *IngestOptions, cmd *cobra.Command) error {
	f := formatter(opts.RootOptions, cmd)

	records, err := LoadRecords(opts.File)
	if err != nil {
		return loadFailure(f, err)
	}
	if len(records) == 0 {
		return f.fail(ExitFailure, ErrCodeEmptyBatch, fmt.Sprintf("no products found in %s", opts.File), nil, nil)
	}
	f.VerboseLog("Ingesting %d record(s) from %s", len(records), opts.File)

	s, err := openSession(opts.RootOptions, true)
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeGeneric, "failed to open catalog", nil, err)
	}
	defer s.close()

	ctx := catalog.WithSource(commandContext(cmd), filepath.Base(opts.File))
	apply := s.store.UpsertBatch
	if opts.NoReplace {
		apply = s.store.InsertBatch
	}
	n, err := apply(ctx, records)
	if err != nil {
		return storeFailure(f, err)
	}

	return f.Success(IngestResult{File: opts.File, Accepted: n, IDs: batchIDs(records)})
}

// batchIDs returns the trimmed product ids of an accepted batch.
func batchIDs(records []schema.Record) []string {
	ids := make([]string, 0, len(records))
	for _, r := range records {
		if id, ok := r["product_id"].(string); ok {
			ids = append(ids, strings.TrimSpace(id))
		}
	}
	return ids
}

// loadFailure reports a batch file that could not be read.
func loadFailure(f *OutputFormatter, err error) error {
	var le *LoadError
	if errors.As(err, &le) {
		return f.fail(ExitCommandError, le.Code, le.Error(), nil, err)
	}
	return f.fail(ExitCommandError, ErrCodeGeneric, err.Error(), nil, err)
}

// storeFailure maps store errors to CLI codes. Rejected batches, conflicts,
// lock contention and malformed documents are expected failures (exit 1).
func storeFailure(f *OutputFormatter, err error) error {
	var ve *schema.ValidationError
	switch {
	case errors.As(err, &ve):
		lines := make([]string, len(ve.Issues))
		for i, is := range ve.Issues {
			lines[i] = is.String()
		}
		var details any = lines
		if f.Format == "json" {
			details = ve.Issues
		}
		msg := fmt.Sprintf("batch rejected: %d issue(s) in %s", len(ve.Issues), strings.Join(ve.ProductIDs(), ", "))
		return f.fail(ExitFailure, ErrCodeValidation, msg, details, err)
	case catalog.IsConflict(err):
		var ce *catalog.ConflictError
		var details any
		if errors.As(err, &ce) {
			details = ce.IDs
		}
		msg := "batch rejected: products already exist; drop --no-replace to update them"
		return f.fail(ExitFailure, ErrCodeConflict, msg, details, err)
	case catalog.IsBusy(err):
		return f.fail(ExitFailure, ErrCodeBusy, "catalog is locked by another process; try again later", nil, err)
	case catalog.IsMalformed(err):
		return f.fail(ExitFailure, ErrCodeMalformed, err.Error(), nil, err)
	default:
		return f.fail(ExitFailure, ErrCodeGeneric, err.Error(), nil, err)
	}
}
