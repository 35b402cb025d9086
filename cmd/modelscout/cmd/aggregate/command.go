// Package aggregate implements the aggregate command: offline dedup and
// merge of stored scan artifacts into one catalog.
package aggregate

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/modelscout/modelscout"
	"github.com/modelscout/modelscout/internal/appcontext"
	"github.com/modelscout/modelscout/internal/render"
	"github.com/modelscout/modelscout/internal/storage"
	"github.com/modelscout/modelscout/pkg/aggregator"
	"github.com/modelscout/modelscout/pkg/catalog"
)

// Flags holds the aggregate command's flag values.
type Flags struct {
	Threshold float64
	Input     []string
}

// NewCommand creates the aggregate command using the app context.
func NewCommand(ac appcontext.Interface) *cobra.Command {
	flags := &Flags{}

	cmd := &cobra.Command{
		Use:     "aggregate",
		GroupID: "core",
		Short:   "Deduplicate stored scans into one catalog",
		Long: `Aggregate loads stored scan artifacts, deduplicates models that appear
under more than one source, and merges duplicates into single records with
full source attribution. The merged catalog is persisted as a result
artifact.

By default every stored scan is aggregated; --input restricts the run to
specific scan artifact IDs.`,
		Example: `  modelscout aggregate                       # Aggregate all stored scans
  modelscout aggregate --threshold 0.9       # Require closer matches to merge
  modelscout aggregate --input scan-01k2abc --input scan-01k2def`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runAggregate(cmd.Context(), ac, flags)
		},
	}

	cmd.Flags().Float64Var(&flags.Threshold, "threshold", 0, "similarity score required to merge two records (0 = default)")
	cmd.Flags().StringSliceVar(&flags.Input, "input", nil, "scan artifact IDs to aggregate (default: all stored scans)")

	return cmd
}

// runAggregate loads scan artifacts, aggregates them, and persists the
// merged catalog.
func runAggregate(ctx context.Context, ac appcontext.Interface, flags *Flags) error {
	sc, err := ac.Scout()
	if err != nil {
		return err
	}
	store, err := ac.Store()
	if err != nil {
		return err
	}

	ids := flags.Input
	if len(ids) == 0 {
		if ids, err = store.List(storage.KindScan); err != nil {
			return err
		}
	}
	if len(ids) == 0 {
		return fmt.Errorf("no stored scans; run \"modelscout scan\" first")
	}

	batches := make([]aggregator.SourceBatch, 0, len(ids))
	for _, id := range ids {
		var res catalog.ScanResult
		if err := store.ReadJSON(storage.KindScan, id, &res); err != nil {
			return fmt.Errorf("loading scan %s: %w", id, err)
		}
		models, err := loadModels(store, &res)
		if err != nil {
			return fmt.Errorf("loading scan %s: %w", id, err)
		}
		batches = append(batches, aggregator.SourceBatch{Source: res.Provider, Models: models})
	}

	var opts []modelscout.AggregateOption
	if flags.Threshold > 0 {
		opts = append(opts, modelscout.AggregateThreshold(flags.Threshold))
	}
	res, err := sc.Aggregate(ctx, batches, opts...)
	if err != nil {
		return err
	}

	if _, err := store.WriteJSON(storage.KindResult, res.ResultID, res); err != nil {
		return fmt.Errorf("persisting result: %w", err)
	}

	return printAggregation(ac, res)
}

// loadModels materializes a scan artifact's records, following the stream
// reference for paginated scans.
func loadModels(store *storage.Store, res *catalog.ScanResult) ([]catalog.ModelRecord, error) {
	if res.Stream == "" {
		return res.Models, nil
	}
	models := make([]catalog.ModelRecord, 0, res.Stats.Scanned)
	err := store.ReadStream(res.Stream, func(line []byte) error {
		var rec catalog.ModelRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return err
		}
		models = append(models, rec)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return models, nil
}

// printAggregation renders the aggregation outcome in the effective output
// format.
func printAggregation(ac appcontext.Interface, res *catalog.AggregationResult) error {
	format := render.Detect(ac.OutputFormat())

	if format == render.FormatJSON || format == render.FormatYAML {
		return render.New(format).Format(os.Stdout, res)
	}

	if err := render.New(format).Format(os.Stdout, render.Aggregation(res)); err != nil {
		return err
	}

	green := color.New(color.FgGreen)
	green.Printf("Aggregated %d models (%d duplicates merged) in %s\n",
		len(res.Models), res.DedupStats.DuplicatesRemoved, res.Duration.Round(time.Millisecond))
	fmt.Printf("Result stored as %s\n", res.ResultID)
	return nil
}
