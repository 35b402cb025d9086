package scan

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"

	"github.com/modelscout/modelscout"
	"github.com/modelscout/modelscout/internal/appcontext"
	"github.com/modelscout/modelscout/internal/providers"
	"github.com/modelscout/modelscout/internal/render"
	"github.com/modelscout/modelscout/pkg/catalog"
)

// runScan executes a tracked scan over the requested providers and renders
// the per-provider summary.
func runScan(ctx context.Context, ac appcontext.Interface, args []string, flags *Flags) error {
	sc, err := ac.Scout()
	if err != nil {
		return err
	}

	names := args
	if len(names) == 0 {
		names = providers.List()
	}

	concurrency := 1
	if flags.Parallel {
		concurrency = len(names)
	}
	sess, err := sc.Sessions().StartTracking(names, catalog.ScanParams{
		BatchSize:   flags.BatchSize,
		Concurrency: concurrency,
	})
	if err != nil {
		return fmt.Errorf("starting session: %w", err)
	}

	// Ctrl-C checkpoints and pauses the session instead of losing it.
	stop := sc.Sessions().HandleSignals(ctx)
	defer stop()

	multi, err := sc.Scan(ctx, scanOptions(names, sess.SessionID, flags)...)
	if err != nil {
		_ = sc.Sessions().Fail(sess.SessionID, err)
		return err
	}

	if len(multi.Results) == 0 && len(multi.Failures) > 0 {
		err := fmt.Errorf("all %d providers failed", len(multi.Failures))
		_ = sc.Sessions().Fail(sess.SessionID, err)
		return err
	}
	if err := sc.Sessions().Complete(sess.SessionID); err != nil {
		ac.Logger().Warn().Err(err).Str("session", sess.SessionID).Msg("completing session")
	}

	return printScan(ac, multi)
}

// scanOptions translates command flags into facade options.
func scanOptions(names []string, sessionID string, flags *Flags) []modelscout.ScanOption {
	opts := []modelscout.ScanOption{
		modelscout.ScanProviders(names...),
		modelscout.ScanSession(sessionID),
	}
	if flags.Parallel {
		opts = append(opts, modelscout.ScanParallel())
	}
	if flags.ContinueOnError {
		opts = append(opts, modelscout.ScanContinueOnError())
	}
	if flags.Resume {
		opts = append(opts, modelscout.ScanResume())
	}
	if flags.Full {
		opts = append(opts, modelscout.ScanFull())
	}
	if flags.MaxItems > 0 {
		opts = append(opts, modelscout.ScanMaxItems(flags.MaxItems))
	}
	if flags.MinDownloads > 0 {
		opts = append(opts, modelscout.ScanMinDownloads(flags.MinDownloads))
	}
	if flags.BatchSize > 0 {
		opts = append(opts, modelscout.ScanBatchSize(flags.BatchSize))
	}
	if len(flags.Tags) > 0 {
		opts = append(opts, modelscout.ScanTags(flags.Tags...))
	}
	if len(flags.Tasks) > 0 {
		opts = append(opts, modelscout.ScanTasks(flags.Tasks...))
	}
	return opts
}

// printScan renders the scan outcome in the effective output format.
func printScan(ac appcontext.Interface, multi *catalog.MultiScanResult) error {
	format := render.Detect(ac.OutputFormat())

	if format == render.FormatJSON || format == render.FormatYAML {
		return render.New(format).Format(os.Stdout, multi)
	}

	if err := render.New(format).Format(os.Stdout, render.ScanSummary(multi)); err != nil {
		return err
	}

	var scanned int64
	for _, res := range multi.Results {
		scanned += res.Stats.Scanned
	}
	green := color.New(color.FgGreen)
	green.Printf("Scanned %d models from %d providers in %s\n",
		scanned, len(multi.Results), multi.Duration.Round(time.Millisecond))
	if len(multi.Failures) > 0 {
		red := color.New(color.FgRed)
		red.Printf("%d providers failed\n", len(multi.Failures))
	}
	return nil
}
