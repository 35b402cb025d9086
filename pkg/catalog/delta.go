package catalog

import (
	"time"

	"github.com/agentstation/utc"
)

// DetectionStrategy names how changes were detected for a provider.
type DetectionStrategy string

// Change-detection strategies, per provider.
const (
	// DetectTimestamp compares elapsed time against a refresh interval.
	DetectTimestamp DetectionStrategy = "timestamp_based"

	// DetectHash compares a stable hash over ordered id+lastModified pairs.
	DetectHash DetectionStrategy = "hash_based"

	// DetectContentDiff computes a full structural diff.
	DetectContentDiff DetectionStrategy = "content_diff"
)

// Snapshot is a full point-in-time copy of all known models for one
// provider, taken before an incremental update as the rollback baseline.
type Snapshot struct {
	SnapshotID string        `json:"snapshot_id"`
	Provider   string        `json:"provider"`
	CreatedAt  utc.Time      `json:"created_at"`
	Models     []ModelRecord `json:"models"`
	Count      int           `json:"count"`
}

// FieldChange records one field-level difference on a modified model.
type FieldChange struct {
	Field string `json:"field"`
	Old   any    `json:"old,omitempty"`
	New   any    `json:"new,omitempty"`
}

// ModelChange identifies one added, modified, or removed model.
type ModelChange struct {
	ModelID string        `json:"model_id"`
	Fields  []FieldChange `json:"fields,omitempty"` // Populated for modifications only
}

// ChangeSet is the typed outcome of change detection.
type ChangeSet struct {
	Added    []ModelChange `json:"added,omitempty"`
	Modified []ModelChange `json:"modified,omitempty"`
	Removed  []ModelChange `json:"removed,omitempty"`
}

// Empty reports whether the change set contains no changes.
func (c *ChangeSet) Empty() bool {
	return len(c.Added) == 0 && len(c.Modified) == 0 && len(c.Removed) == 0
}

// Total counts all changes across categories.
func (c *ChangeSet) Total() int {
	return len(c.Added) + len(c.Modified) + len(c.Removed)
}

// UpdateMeta is the per-provider bookkeeping kept between incremental
// updates: when the catalog was last refreshed and the hash it had then.
type UpdateMeta struct {
	Provider    string   `json:"provider"`
	LastUpdate  utc.Time `json:"last_update"`
	CatalogHash string   `json:"catalog_hash,omitempty"`
	LastDeltaID string   `json:"last_delta_id,omitempty"`
	ModelCount  int      `json:"model_count"`
}

// DeltaRecord is the immutable, append-only log entry for one incremental
// update: what was detected, how, and how applying it went.
type DeltaRecord struct {
	DeltaID     string            `json:"delta_id"`
	Provider    string            `json:"provider"`
	DetectedBy  DetectionStrategy `json:"detected_by"`
	Changes     ChangeSet         `json:"changes"`
	Applied     bool              `json:"applied"`
	Validated   bool              `json:"validated"`
	RolledBack  bool              `json:"rolled_back,omitempty"`
	Error       string            `json:"error,omitempty"`
	Warnings    []string          `json:"warnings,omitempty"` // Validation warnings that did not block the update
	StartedAt   utc.Time          `json:"started_at"`
	CompletedAt utc.Time          `json:"completed_at"`
	Duration    time.Duration     `json:"duration"`
}
