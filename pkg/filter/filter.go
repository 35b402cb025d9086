// Package filter refines an aggregated model set. A fixed pipeline applies
// category membership filters, named and caller-supplied predicates,
// statistical outlier removal, and a minimum composite quality score, then
// categorizes the survivors and reports quality/category distributions.
package filter

import (
	"math"

	"github.com/rs/zerolog"

	"github.com/modelscout/modelscout/pkg/catalog"
	"github.com/modelscout/modelscout/pkg/errors"
	"github.com/modelscout/modelscout/pkg/logging"
)

// Pipeline stage names keyed in Result.Removed.
const (
	StageCategories = "categories"
	StagePredicates = "predicates"
	StageCustom     = "custom"
	StageOutliers   = "outliers"
	StageQuality    = "quality"
)

const (
	// minOutlierSample is the smallest set on which z-score outlier
	// removal is statistically meaningful. Smaller sets skip the stage.
	minOutlierSample = 10

	// outlierZ flags values further than this many standard deviations
	// from the sample mean.
	outlierZ = 3.0
)

// Predicate reports whether a record survives filtering.
type Predicate func(*catalog.ModelRecord) bool

// Options configures one refinement pass. The pipeline stages run in a
// fixed order; zero values disable the parameterized ones.
type Options struct {
	// Categories keeps only records matching at least one of the named
	// categories. Empty keeps everything.
	Categories []string

	// Predicates names registered predicates to apply, in order.
	Predicates []string

	// Custom predicates run after the named ones.
	Custom []Predicate

	// KeepOutliers skips the z-score outlier stage, which otherwise
	// removes download and context-length extremes from large sets.
	KeepOutliers bool

	// MinQuality drops records scoring below it. Zero disables.
	MinQuality float64
}

// Result reports one refinement pass: the surviving records, per-stage
// removal counts, and the distributions of the kept set.
type Result struct {
	Models               []catalog.ModelRecord `json:"models"`
	Input                int                   `json:"input"`
	Kept                 int                   `json:"kept"`
	Removed              map[string]int        `json:"removed,omitempty"` // stage name → records dropped
	QualityDistribution  map[string]int        `json:"quality_distribution,omitempty"`
	CategoryDistribution map[string]int        `json:"category_distribution,omitempty"`
}

// Filter runs the refinement pipeline against a category rule table.
type Filter struct {
	rules  []CategoryRule
	logger zerolog.Logger
}

// Option configures a Filter.
type Option func(*Filter) error

// WithRules replaces the builtin category rule table.
func WithRules(rules []CategoryRule) Option {
	return func(f *Filter) error {
		if err := validateRules(rules); err != nil {
			return err
		}
		f.rules = rules
		return nil
	}
}

// WithRulesFile replaces the builtin category rule table with one loaded
// from a YAML file.
func WithRulesFile(path string) Option {
	return func(f *Filter) error {
		rules, err := LoadRules(path)
		if err != nil {
			return err
		}
		f.rules = rules
		return nil
	}
}

// WithLogger sets the logger used for refinement summaries.
func WithLogger(logger zerolog.Logger) Option {
	return func(f *Filter) error {
		f.logger = logger
		return nil
	}
}

// New builds a Filter carrying the builtin rule table unless an option
// replaces it.
func New(opts ...Option) (*Filter, error) {
	f := &Filter{
		rules:  BuiltinRules(),
		logger: *logging.Default(),
	}
	for _, opt := range opts {
		if err := opt(f); err != nil {
			return nil, err
		}
	}
	return f, nil
}

// Apply runs the pipeline in its fixed order: category filters, named
// predicates, custom predicates, outlier removal, minimum quality. The
// input is cloned, never mutated; survivors are categorized and both
// distributions computed over them.
func (f *Filter) Apply(models []catalog.ModelRecord, opts Options) (*Result, error) {
	preds, err := f.resolve(opts)
	if err != nil {
		return nil, err
	}

	res := &Result{Input: len(models), Removed: make(map[string]int)}
	kept := catalog.CloneModels(models)

	if len(opts.Categories) > 0 {
		kept = f.filterCategories(kept, opts.Categories, res)
	}
	for _, p := range preds {
		kept = keepWhere(kept, StagePredicates, res, p)
	}
	for _, p := range opts.Custom {
		kept = keepWhere(kept, StageCustom, res, p)
	}
	if !opts.KeepOutliers {
		kept = removeOutliers(kept, res)
	}
	if opts.MinQuality > 0 {
		kept = filterQuality(kept, opts.MinQuality, res)
	}

	res.CategoryDistribution = f.Categorize(kept)
	res.QualityDistribution = QualityDistribution(kept)
	res.Models = kept
	res.Kept = len(kept)

	f.logger.Info().
		Int("input", res.Input).
		Int("kept", res.Kept).
		Interface("removed", res.Removed).
		Msg("refinement complete")

	return res, nil
}

// resolve validates the requested categories and predicates up front so a
// typo fails the pass instead of silently filtering everything out.
func (f *Filter) resolve(opts Options) ([]Predicate, error) {
	known := make(map[string]bool, len(f.rules))
	for _, r := range f.rules {
		known[r.Name] = true
	}
	for _, c := range opts.Categories {
		if !known[c] {
			return nil, errors.NewValidationError("categories", c, "unknown category")
		}
	}

	preds := make([]Predicate, 0, len(opts.Predicates))
	for _, name := range opts.Predicates {
		p, ok := predicates[name]
		if !ok {
			return nil, errors.NewValidationError("predicates", name, "unknown predicate")
		}
		preds = append(preds, p)
	}
	for i, p := range opts.Custom {
		if p == nil {
			return nil, errors.NewValidationError("custom", i, "nil predicate")
		}
	}
	return preds, nil
}

// filterCategories keeps records matching at least one requested category.
func (f *Filter) filterCategories(models []catalog.ModelRecord, categories []string, res *Result) []catalog.ModelRecord {
	wanted := make(map[string]bool, len(categories))
	for _, c := range categories {
		wanted[c] = true
	}
	return keepWhere(models, StageCategories, res, func(r *catalog.ModelRecord) bool {
		for _, rule := range f.rules {
			if wanted[rule.Name] && rule.Matches(r) {
				return true
			}
		}
		return false
	})
}

// removeOutliers drops records whose downloads or context length sit more
// than outlierZ standard deviations from the sample mean. Unknown context
// lengths are excluded from that distribution rather than flagged, and
// each distribution needs minOutlierSample values to be judged at all.
func removeOutliers(models []catalog.ModelRecord, res *Result) []catalog.ModelRecord {
	if len(models) < minOutlierSample {
		return models
	}

	downloads := make([]float64, len(models))
	for i := range models {
		downloads[i] = float64(models[i].Downloads)
	}
	dlMean, dlDev := meanStddev(downloads)

	var ctxLens []float64
	for i := range models {
		if models[i].ContextLength > 0 {
			ctxLens = append(ctxLens, float64(models[i].ContextLength))
		}
	}
	judgeCtx := len(ctxLens) >= minOutlierSample
	var ctxMean, ctxDev float64
	if judgeCtx {
		ctxMean, ctxDev = meanStddev(ctxLens)
	}

	return keepWhere(models, StageOutliers, res, func(r *catalog.ModelRecord) bool {
		if zScore(float64(r.Downloads), dlMean, dlDev) > outlierZ {
			return false
		}
		if judgeCtx && r.ContextLength > 0 && zScore(float64(r.ContextLength), ctxMean, ctxDev) > outlierZ {
			return false
		}
		return true
	})
}

func filterQuality(models []catalog.ModelRecord, min float64, res *Result) []catalog.ModelRecord {
	return keepWhere(models, StageQuality, res, func(r *catalog.ModelRecord) bool {
		return QualityScore(r) >= min
	})
}

// keepWhere filters in place, preserving order and counting removals
// against the named stage.
func keepWhere(models []catalog.ModelRecord, stage string, res *Result, keep Predicate) []catalog.ModelRecord {
	out := models[:0]
	for i := range models {
		if keep(&models[i]) {
			out = append(out, models[i])
		} else {
			res.Removed[stage]++
		}
	}
	return out
}

func meanStddev(xs []float64) (mean, dev float64) {
	for _, x := range xs {
		mean += x
	}
	mean /= float64(len(xs))

	var ss float64
	for _, x := range xs {
		d := x - mean
		ss += d * d
	}
	return mean, math.Sqrt(ss / float64(len(xs)))
}

func zScore(x, mean, dev float64) float64 {
	if dev == 0 {
		return 0
	}
	return math.Abs(x-mean) / dev
}
