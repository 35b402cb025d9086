// Package catalog defines the provider-agnostic data model shared by every
// modelscout component: the canonical ModelRecord plus the session,
// checkpoint, snapshot, delta, and aggregation-result types that scans
// produce and persist.
package catalog

import (
	"sort"
	"strings"

	"github.com/agentstation/utc"
)

// ModelRecord is the canonical, provider-agnostic description of one model.
type ModelRecord struct {
	// Core identity
	ID           string `json:"id"`                      // Raw identifier as the source reports it
	NormalizedID string `json:"normalized_id"`           // Case/whitespace-folded form of ID
	Name         string `json:"name"`                    // Display name
	Provider     string `json:"provider"`                // Source provider name
	Author       string `json:"author,omitempty"`        // Publishing organization (if known)

	// Descriptive fields
	Description  string   `json:"description,omitempty"`
	Task         string   `json:"task,omitempty"`         // Primary task, e.g. text-generation
	Architecture string   `json:"architecture,omitempty"` // Model architecture (if reported)
	Library      string   `json:"library,omitempty"`      // Serving library (hub sources)
	Capabilities []string `json:"capabilities,omitempty"` // Set semantics: sorted, unique
	Tags         []string `json:"tags,omitempty"`         // Set semantics: sorted, unique
	Categories   []string `json:"categories,omitempty"`   // Assigned by the categorizer; set semantics

	// Access restrictions reported by hub sources.
	Private bool `json:"private,omitempty"`
	Gated   bool `json:"gated,omitempty"`

	// Quantitative fields
	Downloads     int64              `json:"downloads"`
	Likes         int64              `json:"likes"`
	ContextLength int                `json:"context_length,omitempty"`
	Pricing       map[string]float64 `json:"pricing,omitempty"` // Price per unit keyed by kind, nil when unknown

	// LastModified is the source's own modification timestamp for the
	// model, when the API reports one. Change detection keys on it.
	LastModified utc.Time `json:"last_modified"`

	// ModelHash is a pure function of the identity fields
	// (id, name, provider, author, task). It must be recomputed whenever
	// any of those change, e.g. after a merge.
	ModelHash string `json:"model_hash"`

	// Embedding is attached by the embedding service when enabled.
	Embedding []float32 `json:"embedding,omitempty"`

	Validation ValidationState `json:"validation"`
	Provenance Provenance      `json:"provenance"`
}

// ValidationStatus describes the outcome of model testing.
type ValidationStatus string

// Validation statuses.
const (
	ValidationUnknown ValidationStatus = "unknown"
	ValidationPassed  ValidationStatus = "passed"
	ValidationPartial ValidationStatus = "partial"
	ValidationFailed  ValidationStatus = "failed"
)

// ValidationState records whether and when a model passed testing.
type ValidationState struct {
	Status    ValidationStatus `json:"status"`
	CheckedAt utc.Time         `json:"checked_at"`
	Message   string           `json:"message,omitempty"`
}

// Provenance records where a ModelRecord came from and, after a merge,
// which records it absorbed.
type Provenance struct {
	SourceProvider string     `json:"source_provider"`
	CollectedAt    utc.Time   `json:"collected_at"`
	Merge          *MergeInfo `json:"merge,omitempty"`
}

// MergeInfo carries merge provenance for a deduplicated record.
type MergeInfo struct {
	MergedFrom   []string `json:"merged_from"`             // IDs of the absorbed records, seed first
	SourceHashes []string `json:"source_hashes,omitempty"` // Pre-merge model hashes of all members
	Strategy     string   `json:"strategy"`                // Name of the merge configuration used
	MemberCount  int      `json:"member_count"`
}

// Normalize fills derived and defaulted fields in place: the folded
// NormalizedID, set semantics for Capabilities and Tags, non-negative
// counters, a collection timestamp, an unknown validation status, and a
// fresh ModelHash. It is idempotent.
func (r *ModelRecord) Normalize() {
	r.ID = strings.TrimSpace(r.ID)
	r.Name = strings.TrimSpace(r.Name)
	r.NormalizedID = NormalizeID(r.ID)

	r.Capabilities = NormalizeSet(r.Capabilities)
	r.Tags = NormalizeSet(r.Tags)
	r.Categories = NormalizeSet(r.Categories)

	if r.Downloads < 0 {
		r.Downloads = 0
	}
	if r.Likes < 0 {
		r.Likes = 0
	}
	if r.ContextLength < 0 {
		r.ContextLength = 0
	}

	if r.Validation.Status == "" {
		r.Validation.Status = ValidationUnknown
	}
	if r.Provenance.SourceProvider == "" {
		r.Provenance.SourceProvider = r.Provider
	}
	if r.Provenance.CollectedAt.IsZero() {
		r.Provenance.CollectedAt = utc.Now()
	}

	r.ModelHash = ComputeModelHash(r)
}

// RecomputeHash refreshes ModelHash from the current identity fields.
func (r *ModelRecord) RecomputeHash() {
	r.ModelHash = ComputeModelHash(r)
}

// Clone returns a deep copy of the record.
func (r *ModelRecord) Clone() ModelRecord {
	out := *r

	out.Capabilities = append([]string(nil), r.Capabilities...)
	out.Tags = append([]string(nil), r.Tags...)
	out.Categories = append([]string(nil), r.Categories...)
	out.Embedding = append([]float32(nil), r.Embedding...)

	if r.Pricing != nil {
		out.Pricing = make(map[string]float64, len(r.Pricing))
		for k, v := range r.Pricing {
			out.Pricing[k] = v
		}
	}
	if r.Provenance.Merge != nil {
		m := *r.Provenance.Merge
		m.MergedFrom = append([]string(nil), r.Provenance.Merge.MergedFrom...)
		m.SourceHashes = append([]string(nil), r.Provenance.Merge.SourceHashes...)
		out.Provenance.Merge = &m
	}

	return out
}

// CloneModels deep-copies a slice of records.
func CloneModels(models []ModelRecord) []ModelRecord {
	if models == nil {
		return nil
	}
	out := make([]ModelRecord, len(models))
	for i := range models {
		out[i] = models[i].Clone()
	}
	return out
}

// NormalizeSet trims, deduplicates, drops empties, and sorts a string set.
func NormalizeSet(values []string) []string {
	if len(values) == 0 {
		return nil
	}

	seen := make(map[string]struct{}, len(values))
	out := make([]string, 0, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}

	if len(out) == 0 {
		return nil
	}
	sort.Strings(out)
	return out
}

// UnionSets returns the deduplicated, sorted union of two string sets.
func UnionSets(a, b []string) []string {
	return NormalizeSet(append(append([]string(nil), a...), b...))
}
