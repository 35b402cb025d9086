package aggregator

import (
	"sort"

	"github.com/agentstation/utc"

	"github.com/modelscout/modelscout/pkg/catalog"
	"github.com/modelscout/modelscout/pkg/errors"
)

// Strategy resolves one field across the members of a duplicate cluster.
type Strategy string

// Field conflict-resolution strategies.
const (
	// StrategyHighest keeps the numeric maximum.
	StrategyHighest Strategy = "highest"

	// StrategyLowest keeps the numeric minimum.
	StrategyLowest Strategy = "lowest"

	// StrategyLatest keeps the most recent timestamp.
	StrategyLatest Strategy = "latest"

	// StrategyLongest keeps the longest string.
	StrategyLongest Strategy = "longest"

	// StrategyUnion keeps the set union. Capability and tag sets are
	// unioned regardless of configuration.
	StrategyUnion Strategy = "union"
)

// mergeableFields is the closed set of fields a MergeConfig may address,
// keyed by their JSON names.
var mergeableFields = map[string]bool{
	"downloads":      true,
	"likes":          true,
	"context_length": true,
	"name":           true,
	"description":    true,
	"task":           true,
	"architecture":   true,
	"library":        true,
	"author":         true,
	"collected_at":   true,
	"last_modified":  true,
	"capabilities":   true,
	"tags":           true,
	"categories":     true,
}

// MergeConfig maps fields (by JSON name) to conflict-resolution strategies.
// Fields without an entry fall back to last-non-empty-wins across the
// cluster, scanned in input order.
type MergeConfig struct {
	Name   string              `json:"name" yaml:"name"`
	Fields map[string]Strategy `json:"fields" yaml:"fields"`
}

// DefaultMergeConfig is the standard resolution table: counters take the
// maximum across sources, the description the longest form, the collection
// timestamp the freshest.
func DefaultMergeConfig() MergeConfig {
	return MergeConfig{
		Name: "default",
		Fields: map[string]Strategy{
			"downloads":      StrategyHighest,
			"likes":          StrategyHighest,
			"context_length": StrategyHighest,
			"description":    StrategyLongest,
			"collected_at":   StrategyLatest,
		},
	}
}

// Validate rejects strategies for fields outside the closed mergeable set.
func (c MergeConfig) Validate() error {
	for field, strategy := range c.Fields {
		if !mergeableFields[field] {
			return errors.NewValidationError("fields", field, "not a mergeable field")
		}
		switch strategy {
		case StrategyHighest, StrategyLowest, StrategyLatest, StrategyLongest, StrategyUnion:
		default:
			return errors.NewValidationError(field, string(strategy), "unknown merge strategy")
		}
	}
	return nil
}

func (c MergeConfig) strategyFor(field string) Strategy {
	return c.Fields[field]
}

// mergeCluster folds a duplicate cluster into one record. The seed (first
// member) is the base; every later member is merged in input order, field
// by field. The merged record carries full merge provenance and a hash
// recomputed from its post-merge identity.
func (a *Aggregator) mergeCluster(records []record, c cluster) catalog.ModelRecord {
	seed := records[c.members[0]]
	merged := seed.model.Clone()

	if len(c.members) == 1 {
		return merged
	}

	mergedFrom := make([]string, 0, len(c.members))
	sourceHashes := make([]string, 0, len(c.members))
	mergedFrom = append(mergedFrom, seed.model.ID)
	sourceHashes = append(sourceHashes, seed.model.ModelHash)

	for _, idx := range c.members[1:] {
		member := &records[idx].model
		a.mergeInto(&merged, member)
		mergedFrom = append(mergedFrom, member.ID)
		sourceHashes = append(sourceHashes, member.ModelHash)
	}

	merged.NormalizedID = catalog.NormalizeID(merged.ID)
	merged.Provenance.Merge = &catalog.MergeInfo{
		MergedFrom:   mergedFrom,
		SourceHashes: sourceHashes,
		Strategy:     a.mergeConfig.Name,
		MemberCount:  len(c.members),
	}
	merged.RecomputeHash()
	return merged
}

// mergeInto resolves every field of src against dst in place. The closed
// per-field dispatch below is the whole merge surface; nothing is resolved
// through reflection.
func (a *Aggregator) mergeInto(dst, src *catalog.ModelRecord) {
	cfg := a.mergeConfig

	// Identity and provider have no configurable strategy; they follow the
	// last-non-empty default so the freshest listing names the record.
	dst.ID = mergeString("", dst.ID, src.ID)
	dst.Provider = mergeString("", dst.Provider, src.Provider)
	dst.Name = mergeString(cfg.strategyFor("name"), dst.Name, src.Name)
	dst.Author = mergeString(cfg.strategyFor("author"), dst.Author, src.Author)
	dst.Description = mergeString(cfg.strategyFor("description"), dst.Description, src.Description)
	dst.Task = mergeString(cfg.strategyFor("task"), dst.Task, src.Task)
	dst.Architecture = mergeString(cfg.strategyFor("architecture"), dst.Architecture, src.Architecture)
	dst.Library = mergeString(cfg.strategyFor("library"), dst.Library, src.Library)

	dst.Downloads = mergeInt64(cfg.strategyFor("downloads"), dst.Downloads, src.Downloads)
	dst.Likes = mergeInt64(cfg.strategyFor("likes"), dst.Likes, src.Likes)
	dst.ContextLength = int(mergeInt64(cfg.strategyFor("context_length"), int64(dst.ContextLength), int64(src.ContextLength)))

	dst.LastModified = mergeTime(cfg.strategyFor("last_modified"), dst.LastModified, src.LastModified)
	dst.Provenance.CollectedAt = mergeTime(cfg.strategyFor("collected_at"), dst.Provenance.CollectedAt, src.Provenance.CollectedAt)

	// Capability, tag, and category sets are always unioned, whatever the
	// config says.
	dst.Capabilities = catalog.UnionSets(dst.Capabilities, src.Capabilities)
	dst.Tags = catalog.UnionSets(dst.Tags, src.Tags)
	dst.Categories = catalog.UnionSets(dst.Categories, src.Categories)

	// Pricing merges key-wise: established prices stay, unknown keys join.
	dst.Pricing = mergePricing(dst.Pricing, src.Pricing)

	// Access restrictions are sticky: one source reporting a restriction
	// keeps it on the merged record.
	dst.Private = dst.Private || src.Private
	dst.Gated = dst.Gated || src.Gated

	if len(dst.Embedding) == 0 && len(src.Embedding) > 0 {
		dst.Embedding = append([]float32(nil), src.Embedding...)
	}

	// A known validation outcome beats an unknown one; between two known
	// outcomes the freshest check wins.
	if betterValidation(src.Validation, dst.Validation) {
		dst.Validation = src.Validation
	}
}

func mergeString(s Strategy, a, b string) string {
	switch s {
	case StrategyLongest:
		if len(b) > len(a) {
			return b
		}
		return a
	default:
		if b != "" {
			return b
		}
		return a
	}
}

func mergeInt64(s Strategy, a, b int64) int64 {
	switch s {
	case StrategyHighest:
		if b > a {
			return b
		}
		return a
	case StrategyLowest:
		if b < a {
			return b
		}
		return a
	default:
		if b != 0 {
			return b
		}
		return a
	}
}

func mergeTime(s Strategy, a, b utc.Time) utc.Time {
	switch s {
	case StrategyLatest:
		if b.After(a) {
			return b
		}
		return a
	default:
		if !b.IsZero() {
			return b
		}
		return a
	}
}

func mergePricing(dst, src map[string]float64) map[string]float64 {
	if len(src) == 0 {
		return dst
	}
	if dst == nil {
		dst = make(map[string]float64, len(src))
	}
	keys := make([]string, 0, len(src))
	for k := range src {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if _, ok := dst[k]; !ok {
			dst[k] = src[k]
		}
	}
	return dst
}

func betterValidation(candidate, current catalog.ValidationState) bool {
	known := func(v catalog.ValidationState) bool {
		return v.Status != "" && v.Status != catalog.ValidationUnknown
	}
	if !known(candidate) {
		return false
	}
	if !known(current) {
		return true
	}
	return candidate.CheckedAt.After(current.CheckedAt)
}
