package catalog

import (
	"time"

	"github.com/agentstation/utc"
)

// ScanStats summarizes one provider scan.
type ScanStats struct {
	Scanned     int64         `json:"scanned"`  // Items fetched from the source
	Filtered    int64         `json:"filtered"` // Items dropped by the filter predicate
	Failed      int64         `json:"failed"`
	FinalOffset int64         `json:"final_offset,omitempty"` // Where a paginated scan stopped
	Duration    time.Duration `json:"duration"`
}

// ScanResult is the outcome of scanning a single provider. Large paginated
// scans stream their records to a JSONL artifact instead of holding them in
// Models; Stream names that artifact.
type ScanResult struct {
	Provider  string        `json:"provider"`
	Models    []ModelRecord `json:"models,omitempty"`
	Stream    string        `json:"stream,omitempty"`
	Stats     ScanStats     `json:"stats"`
	SessionID string        `json:"session_id,omitempty"`
}

// MultiScanResult aggregates per-provider outcomes of a multi-provider scan.
// Failures are collected per provider and never silently dropped.
type MultiScanResult struct {
	Results  map[string]*ScanResult `json:"results"`
	Failures map[string]string      `json:"failures,omitempty"` // provider → error text
	Duration time.Duration          `json:"duration"`
}

// TotalModels counts models across all successful provider results.
func (m *MultiScanResult) TotalModels() int {
	total := 0
	for _, r := range m.Results {
		total += len(r.Models)
	}
	return total
}

// SourceContribution reports how one source fed an aggregation run.
type SourceContribution struct {
	Collected   int `json:"collected"`   // Raw records the source delivered
	Contributed int `json:"contributed"` // Records surviving into the final set
	Errors      int `json:"errors"`
}

// DedupStats reports duplicate detection for one aggregation run.
type DedupStats struct {
	DuplicatesFound   int     `json:"duplicates_found"`
	DuplicatesRemoved int     `json:"duplicates_removed"`
	DedupRate         float64 `json:"dedup_rate"` // removed / collected
}

// AggregationResult is the output of one aggregation run.
type AggregationResult struct {
	ResultID             string                        `json:"result_id"`
	Models               []ModelRecord                 `json:"models"`
	SourceStats          map[string]SourceContribution `json:"source_stats"`
	DedupStats           DedupStats                    `json:"dedup_stats"`
	QualityDistribution  map[string]int                `json:"quality_distribution,omitempty"`
	CategoryDistribution map[string]int                `json:"category_distribution,omitempty"`
	StartedAt            utc.Time                      `json:"started_at"`
	Duration             time.Duration                 `json:"duration"`
	Errors               []string                      `json:"errors,omitempty"`
}
