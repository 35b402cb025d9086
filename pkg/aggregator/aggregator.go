// Package aggregator folds per-source model listings into one deduplicated
// catalog. Records are normalized, optionally embedded, scored pairwise for
// similarity, clustered greedily in input order, and merged cluster by
// cluster under a per-field conflict-resolution table.
package aggregator

import (
	"context"
	"fmt"
	"time"

	"github.com/agentstation/utc"

	"github.com/modelscout/modelscout/internal/storage"
	"github.com/modelscout/modelscout/pkg/batch"
	"github.com/modelscout/modelscout/pkg/catalog"
	"github.com/modelscout/modelscout/pkg/constants"
	"github.com/modelscout/modelscout/pkg/embedding"
	"github.com/modelscout/modelscout/pkg/errors"
	"github.com/modelscout/modelscout/pkg/logging"
)

// SourceBatch is one source's contribution to an aggregation run.
type SourceBatch struct {
	Source string                `json:"source"`
	Models []catalog.ModelRecord `json:"models"`
}

// Options tune one Aggregate call.
type Options struct {
	// Threshold overrides the aggregator's duplicate threshold for this
	// run. Zero keeps the configured one.
	Threshold float64

	// SkipEmbeddings leaves records unembedded even when a service is
	// configured, scoring similarity on the remaining signals.
	SkipEmbeddings bool
}

// Aggregator deduplicates and merges model records across sources.
type Aggregator struct {
	embedder    embedding.Service
	mergeConfig MergeConfig
	threshold   float64
}

// Option configures an Aggregator.
type Option func(*Aggregator) error

// WithEmbeddings attaches vectors to records before scoring, enabling the
// embedding similarity signal.
func WithEmbeddings(svc embedding.Service) Option {
	return func(a *Aggregator) error {
		a.embedder = svc
		return nil
	}
}

// WithMergeConfig replaces the default conflict-resolution table.
func WithMergeConfig(cfg MergeConfig) Option {
	return func(a *Aggregator) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		if cfg.Name == "" {
			cfg.Name = "custom"
		}
		a.mergeConfig = cfg
		return nil
	}
}

// WithThreshold sets the duplicate-merge threshold, in (0,1].
func WithThreshold(t float64) Option {
	return func(a *Aggregator) error {
		if t <= 0 || t > 1 {
			return errors.NewValidationError("threshold", t, "must be in (0,1]")
		}
		a.threshold = t
		return nil
	}
}

// New builds an Aggregator. Without options it dedups at the medium
// threshold with the default merge table and no embeddings.
func New(opts ...Option) (*Aggregator, error) {
	a := &Aggregator{
		mergeConfig: DefaultMergeConfig(),
		threshold:   constants.ThresholdMedium,
	}
	for _, opt := range opts {
		if err := opt(a); err != nil {
			return nil, err
		}
	}
	return a, nil
}

// record pairs a model with the source batch it arrived from, so merge
// seeds can be attributed back to their sources in the result stats.
type record struct {
	model  catalog.ModelRecord
	source string
}

// Aggregate normalizes, deduplicates, and merges the given batches.
// Per-record embedding failures are accumulated as result errors, never
// fatal. Cluster formation depends on input order: the first occurrence of
// a model seeds its cluster, so identical input yields identical output.
func (a *Aggregator) Aggregate(ctx context.Context, batches []SourceBatch, opts Options) (*catalog.AggregationResult, error) {
	start := time.Now()
	log := logging.Ctx(ctx)

	threshold := opts.Threshold
	if threshold <= 0 {
		threshold = a.threshold
	}
	if threshold > 1 {
		return nil, errors.NewValidationError("threshold", threshold, "must be in (0,1]")
	}

	result := &catalog.AggregationResult{
		ResultID:    storage.NewID(storage.KindResult),
		SourceStats: make(map[string]catalog.SourceContribution, len(batches)),
		StartedAt:   utc.Now(),
	}

	records := a.collect(ctx, batches, opts, result)
	collected := len(records)

	clusters := a.clusterRecords(records, threshold)

	result.Models = make([]catalog.ModelRecord, 0, len(clusters))
	for _, c := range clusters {
		merged := a.mergeCluster(records, c)
		result.Models = append(result.Models, merged)

		seedSource := records[c.members[0]].source
		stats := result.SourceStats[seedSource]
		stats.Contributed++
		result.SourceStats[seedSource] = stats
	}

	duplicates := collected - len(clusters)
	result.DedupStats = catalog.DedupStats{
		DuplicatesFound:   duplicates,
		DuplicatesRemoved: duplicates,
	}
	if collected > 0 {
		result.DedupStats.DedupRate = float64(duplicates) / float64(collected)
	}
	result.Duration = time.Since(start)

	log.Info().
		Int("collected", collected).
		Int("final", len(result.Models)).
		Int("duplicates", duplicates).
		Float64("threshold", threshold).
		Dur("duration", result.Duration).
		Msg("aggregation completed")

	if err := ctx.Err(); err != nil {
		return result, err
	}
	return result, nil
}

// collect flattens the batches into the working record list: every model
// normalized and attributed to its batch source. Records missing vectors
// are then embedded over the batch pool when a service is available.
func (a *Aggregator) collect(ctx context.Context, batches []SourceBatch, opts Options, result *catalog.AggregationResult) []record {
	var records []record

	for _, b := range batches {
		stats := result.SourceStats[b.Source]
		stats.Collected += len(b.Models)

		for i := range b.Models {
			rec := b.Models[i].Clone()
			if b.Source != "" {
				rec.Provenance.SourceProvider = b.Source
			}
			rec.Normalize()
			records = append(records, record{model: rec, source: b.Source})
		}
		result.SourceStats[b.Source] = stats
	}

	if a.embedder != nil && !opts.SkipEmbeddings {
		a.embedRecords(ctx, records, result)
	}
	return records
}

// embedRecords attaches vectors to records that lack one, fanning the
// embedding calls out in parallel batches. A failed record stays unembedded
// and keeps scoring on the remaining signals; the failure is attributed to
// its source in the result stats.
func (a *Aggregator) embedRecords(ctx context.Context, records []record, result *catalog.AggregationResult) {
	var pending []int
	for i := range records {
		if len(records[i].model.Embedding) == 0 {
			pending = append(pending, i)
		}
	}
	if len(pending) == 0 {
		return
	}

	// Each item owns one record slot, so workers never write the same index.
	run, err := batch.Process(ctx, pending, func(ctx context.Context, idx int) (int, error) {
		vec, err := a.embedder.GenerateModelEmbedding(ctx, &records[idx].model)
		if err != nil {
			return idx, err
		}
		records[idx].model.Embedding = vec
		return idx, nil
	}, batch.Options{})
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("embedding pool: %v", err))
	}
	if run == nil {
		return
	}

	for _, f := range run.Failed {
		rec := records[pending[f.Index]]
		stats := result.SourceStats[rec.source]
		stats.Errors++
		result.SourceStats[rec.source] = stats
		result.Errors = append(result.Errors,
			fmt.Sprintf("embedding %s/%s: %v", rec.source, rec.model.ID, f.Err))
	}
}

// FindDuplicates scores every unordered pair at or above the threshold
// without merging, for review tooling. Pairs are reported in input order.
func (a *Aggregator) FindDuplicates(models []catalog.ModelRecord, threshold float64) []DuplicatePair {
	if threshold <= 0 {
		threshold = a.threshold
	}

	var pairs []DuplicatePair
	for i := range models {
		for j := i + 1; j < len(models); j++ {
			score := Similarity(&models[i], &models[j])
			if score >= threshold {
				pairs = append(pairs, DuplicatePair{A: models[i].ID, B: models[j].ID, Score: score})
			}
		}
	}
	return pairs
}

// DuplicatePair is one suspected duplicate relation.
type DuplicatePair struct {
	A     string  `json:"a"`
	B     string  `json:"b"`
	Score float64 `json:"score"`
}
