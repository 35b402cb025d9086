// Package scan implements the scan command: session-tracked discovery
// across one or more providers.
package scan

import (
	"github.com/spf13/cobra"

	"github.com/modelscout/modelscout/internal/appcontext"
)

// Flags holds the scan command's flag values.
type Flags struct {
	Parallel        bool
	ContinueOnError bool
	Resume          bool
	Full            bool
	MaxItems        int64
	MinDownloads    int64
	BatchSize       int
	Tags            []string
	Tasks           []string
}

// NewCommand creates the scan command using the app context.
func NewCommand(ac appcontext.Interface) *cobra.Command {
	flags := &Flags{}

	cmd := &cobra.Command{
		Use:     "scan [provider...]",
		GroupID: "core",
		Short:   "Discover models from provider catalogs",
		Long: `Scan discovers model metadata from provider catalogs. Fixed catalogs are
fetched in one call; hub-scale sources are paginated and streamed to the
artifact store instead of being held in memory.

Every scan runs as a tracked session with periodic checkpoints. An
interrupted scan can be continued with "modelscout sessions resume" or by
rescanning with --resume, which picks up paginated sources from their
persisted cursor.

Without arguments every registered provider is scanned.`,
		Example: `  modelscout scan                            # Scan all registered providers
  modelscout scan openai anthropic           # Scan a subset
  modelscout scan --parallel                 # Scan providers concurrently
  modelscout scan huggingface --max-items 5000 --min-downloads 100
  modelscout scan huggingface --resume       # Continue from the saved cursor`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd.Context(), ac, args, flags)
		},
	}

	cmd.Flags().BoolVar(&flags.Parallel, "parallel", false, "scan providers concurrently")
	cmd.Flags().BoolVar(&flags.ContinueOnError, "continue-on-error", false, "keep scanning remaining providers after a failure")
	cmd.Flags().BoolVar(&flags.Resume, "resume", false, "continue paginated scans from their persisted cursor")
	cmd.Flags().BoolVar(&flags.Full, "full", false, "request extended metadata where the API distinguishes")
	cmd.Flags().Int64Var(&flags.MaxItems, "max-items", 0, "stop a paginated scan after this many items (0 = unbounded)")
	cmd.Flags().Int64Var(&flags.MinDownloads, "min-downloads", 0, "drop hub models below this download count")
	cmd.Flags().IntVar(&flags.BatchSize, "batch-size", 0, "override the provider's page size")
	cmd.Flags().StringSliceVar(&flags.Tags, "tags", nil, "admit only hub models carrying one of these tags")
	cmd.Flags().StringSliceVar(&flags.Tasks, "tasks", nil, "admit only hub models for one of these tasks")

	return cmd
}
