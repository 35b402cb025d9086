package sessions

import (
	"context"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/modelscout/modelscout"
	"github.com/modelscout/modelscout/internal/appcontext"
	"github.com/modelscout/modelscout/internal/render"
	"github.com/modelscout/modelscout/pkg/errors"
)

// newResumeCommand creates the sessions resume subcommand.
func newResumeCommand(ac appcontext.Interface) *cobra.Command {
	return &cobra.Command{
		Use:   "resume <checkpoint-id>",
		Args:  cobra.ExactArgs(1),
		Short: "Resume an interrupted scan from a checkpoint",
		Long: `Resume restores a session from a stored checkpoint and continues the scan
it belonged to. Paginated providers pick up from their persisted cursor
instead of starting over.

Checkpoint IDs appear in scan logs and in the session log; the newest
checkpoint of an interrupted session is the one its Ctrl-C handler wrote.`,
		Example: `  modelscout sessions resume cp-01k2abc
  modelscout sessions list -o json           # Find checkpoint IDs`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runResume(cmd.Context(), ac, args[0])
		},
	}
}

// runResume restores the checkpointed session and rescans its providers
// with resume semantics.
func runResume(ctx context.Context, ac appcontext.Interface, checkpointID string) error {
	sc, err := ac.Scout()
	if err != nil {
		return err
	}

	sess, err := sc.Sessions().ResumeFromCheckpoint(checkpointID)
	if err != nil {
		return err
	}
	if len(sess.Providers) == 0 {
		return errors.NewValidationError("checkpoint", checkpointID, "checkpoint names no providers to rescan")
	}

	opts := []modelscout.ScanOption{
		modelscout.ScanProviders(sess.Providers...),
		modelscout.ScanSession(sess.SessionID),
		modelscout.ScanResume(),
	}
	if sess.Params.BatchSize > 0 {
		opts = append(opts, modelscout.ScanBatchSize(sess.Params.BatchSize))
	}
	if sess.Params.Concurrency > 1 {
		opts = append(opts, modelscout.ScanParallel())
	}

	stop := sc.Sessions().HandleSignals(ctx)
	defer stop()

	multi, err := sc.Scan(ctx, opts...)
	if err != nil {
		_ = sc.Sessions().Fail(sess.SessionID, err)
		return err
	}
	if err := sc.Sessions().Complete(sess.SessionID); err != nil {
		ac.Logger().Warn().Err(err).Str("session", sess.SessionID).Msg("completing session")
	}

	format := render.Detect(ac.OutputFormat())
	if format == render.FormatJSON || format == render.FormatYAML {
		return render.New(format).Format(os.Stdout, multi)
	}
	if err := render.New(format).Format(os.Stdout, render.ScanSummary(multi)); err != nil {
		return err
	}
	color.New(color.FgGreen).Printf("Resumed session %s: %d providers rescanned in %s\n",
		sess.SessionID, len(multi.Results), multi.Duration.Round(time.Millisecond))
	return nil
}
