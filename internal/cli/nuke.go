package cli

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
)

// confirmWord must be typed to confirm deletion.
const confirmWord = "CONFIRM"

// NukeOptions holds flags for the nuke command.
type NukeOptions struct {
	*RootOptions
	Yes bool
}

// NukeResult reports what nuke removed.
type NukeResult struct {
	Path    string `json:"path"`
	Deleted bool   `json:"deleted"`
}

func (r NukeResult) String() string {
	if !r.Deleted {
		return "Catalog does not exist. Nothing to delete."
	}
	return fmt.Sprintf("✓ Catalog deleted: %s", r.Path)
}

// NewNukeCommand creates the nuke command.
func NewNukeCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &NukeOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "nuke",
		Short: "Delete the catalog document and its lock",
		Long: `Permanently delete the catalog document and its lock marker.

Backups are kept. Unless --yes is given, the command asks for the word
CONFIRM on standard input before deleting anything.`,
		Args:          cobra.NoArgs,
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runNuke(opts, cmd)
		},
	}

	cmd.Flags().BoolVarP(&opts.Yes, "yes", "y", false, "skip the confirmation prompt")

	return cmd
}

func runNuke(opts *NukeOptions, cmd *cobra.Command) error {
	f := formatter(opts.RootOptions, cmd)

	s, err := openSession(opts.RootOptions, false)
	if err != nil {
		return f.fail(ExitCommandError, ErrCodeGeneric, "failed to open catalog", nil, err)
	}
	defer s.close()

	path := s.store.Path()
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return f.Success(NukeResult{Path: path})
	}

	if !opts.Yes {
		w := f.GetErrWriter()
		fmt.Fprintln(w, "WARNING: This will permanently delete the catalog document!")
		fmt.Fprintf(w, "  Location: %s\n", path)
		if products, err := s.store.Load(); err == nil {
			fmt.Fprintf(w, "  Products: %d\n", len(products))
		}
		fmt.Fprintf(w, "\nType '%s' to proceed with deletion:\n> ", confirmWord)

		answer, _ := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
		if strings.TrimSpace(answer) != confirmWord {
			return f.fail(ExitFailure, ErrCodeCancelled, "deletion cancelled", nil, nil)
		}
	}

	deleted, err := s.store.DeleteStoreAndLock()
	if err != nil {
		return f.fail(ExitFailure, ErrCodeWriteFailed, "failed to delete catalog", nil, err)
	}
	return f.Success(NukeResult{Path: path, Deleted: deleted})
}
