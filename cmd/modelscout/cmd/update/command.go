// Package update implements the update command: incremental change
// detection and application for one provider.
package update

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/modelscout/modelscout"
	"github.com/modelscout/modelscout/internal/appcontext"
	"github.com/modelscout/modelscout/internal/render"
	"github.com/modelscout/modelscout/pkg/catalog"
)

// Flags holds the update command's flag values.
type Flags struct {
	Force        bool
	NoRollback   bool
	SkipSnapshot bool
	Strategy     string
}

// NewCommand creates the update command using the app context.
func NewCommand(ac appcontext.Interface) *cobra.Command {
	flags := &Flags{}

	cmd := &cobra.Command{
		Use:     "update <provider>",
		GroupID: "core",
		Args:    cobra.ExactArgs(1),
		Short:   "Apply incremental catalog changes for a provider",
		Long: `Update re-fetches one provider's catalog, detects what changed since the
last refresh, and applies the delta to the stored state. A snapshot is
taken first so a failed validation rolls the catalog back; every outcome
is recorded in the append-only delta log.

Detection defaults to the provider's configured strategy. --strategy
overrides it for this run: timestamp_based, hash_based, or content_diff.`,
		Example: `  modelscout update openai
  modelscout update huggingface --force      # Refresh even when nothing changed
  modelscout update openai --strategy content_diff`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runUpdate(cmd.Context(), ac, args[0], flags)
		},
	}

	cmd.Flags().BoolVar(&flags.Force, "force", false, "apply the refresh even when detection reports no changes")
	cmd.Flags().BoolVar(&flags.NoRollback, "no-rollback", false, "keep a failed update applied instead of restoring the snapshot")
	cmd.Flags().BoolVar(&flags.SkipSnapshot, "skip-snapshot", false, "apply without a rollback baseline")
	cmd.Flags().StringVar(&flags.Strategy, "strategy", "", "detection strategy override (timestamp_based, hash_based, content_diff)")

	return cmd
}

// runUpdate runs detection and application for one provider and renders the
// resulting delta.
func runUpdate(ctx context.Context, ac appcontext.Interface, provider string, flags *Flags) error {
	sc, err := ac.Scout()
	if err != nil {
		return err
	}

	var opts []modelscout.UpdateOption
	if flags.Force {
		opts = append(opts, modelscout.UpdateForce())
	}
	if flags.NoRollback {
		opts = append(opts, modelscout.UpdateNoRollback())
	}
	if flags.SkipSnapshot {
		opts = append(opts, modelscout.UpdateSkipSnapshot())
	}
	if flags.Strategy != "" {
		opts = append(opts, modelscout.UpdateStrategy(catalog.DetectionStrategy(flags.Strategy)))
	}

	delta, err := sc.Update(ctx, provider, opts...)
	if err != nil {
		return err
	}

	return printDelta(ac, delta)
}

// printDelta renders the delta record in the effective output format.
func printDelta(ac appcontext.Interface, delta *catalog.DeltaRecord) error {
	format := render.Detect(ac.OutputFormat())

	if format == render.FormatJSON || format == render.FormatYAML {
		return render.New(format).Format(os.Stdout, delta)
	}

	green := color.New(color.FgGreen)
	yellow := color.New(color.FgYellow)

	if delta.Changes.Empty() {
		if delta.Applied {
			green.Printf("%s: no changes, catalog refreshed (%s)\n", delta.Provider, delta.DetectedBy)
		} else {
			green.Printf("%s: catalog up to date (%s)\n", delta.Provider, delta.DetectedBy)
		}
		return nil
	}

	if err := render.New(format).Format(os.Stdout, render.Delta(delta)); err != nil {
		return err
	}

	if delta.Applied {
		green.Printf("Applied %d changes (+%d ~%d -%d) in %s\n",
			delta.Changes.Total(), len(delta.Changes.Added), len(delta.Changes.Modified),
			len(delta.Changes.Removed), delta.Duration.Round(time.Millisecond))
	} else {
		yellow.Printf("Detected %d changes, not applied\n", delta.Changes.Total())
	}
	if delta.RolledBack {
		color.New(color.FgRed).Println("Update rolled back to the pre-update snapshot")
	}
	for _, w := range delta.Warnings {
		fmt.Printf("warning: %s\n", w)
	}
	return nil
}
