package render

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/modelscout/modelscout/internal/providers"
	"github.com/modelscout/modelscout/pkg/catalog"
)

// ScanSummary tabulates a multi-provider scan: one row per result, failures
// appended so a partial run is visible at a glance.
func ScanSummary(multi *catalog.MultiScanResult) Table {
	t := Table{
		Headers:   []string{"provider", "scanned", "admitted", "filtered", "failed", "output", "duration"},
		Alignment: []Align{AlignLeft, AlignRight, AlignRight, AlignRight, AlignRight, AlignLeft, AlignRight},
	}

	names := make([]string, 0, len(multi.Results))
	for name := range multi.Results {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		res := multi.Results[name]
		output := strconv.Itoa(len(res.Models)) + " in memory"
		if res.Stream != "" {
			output = "stream " + res.Stream
		}
		t.Rows = append(t.Rows, []string{
			name,
			strconv.FormatInt(res.Stats.Scanned, 10),
			strconv.FormatInt(res.Stats.Scanned-res.Stats.Filtered-res.Stats.Failed, 10),
			strconv.FormatInt(res.Stats.Filtered, 10),
			strconv.FormatInt(res.Stats.Failed, 10),
			output,
			shortDuration(res.Stats.Duration),
		})
	}

	failed := make([]string, 0, len(multi.Failures))
	for name := range multi.Failures {
		failed = append(failed, name)
	}
	sort.Strings(failed)
	for _, name := range failed {
		t.Rows = append(t.Rows, []string{name, "-", "-", "-", "-", "failed: " + multi.Failures[name], "-"})
	}

	return t
}

// Sessions tabulates scan sessions, newest first.
func Sessions(sessions []catalog.ScanSession) Table {
	t := Table{
		Headers:   []string{"session", "status", "phase", "progress", "providers", "updated"},
		Alignment: []Align{AlignLeft, AlignLeft, AlignLeft, AlignRight, AlignLeft, AlignLeft},
	}

	sorted := append([]catalog.ScanSession(nil), sessions...)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].UpdatedAt.After(sorted[j].UpdatedAt)
	})

	for _, sess := range sorted {
		progress := fmt.Sprintf("%d/%d (%d%%)", sess.Progress.Processed, sess.Progress.Total, sess.Progress.Percentage)
		if sess.Progress.Total == 0 {
			progress = strconv.FormatInt(sess.Progress.Processed, 10)
		}
		t.Rows = append(t.Rows, []string{
			sess.SessionID,
			string(sess.Status),
			sess.Progress.Phase,
			progress,
			strings.Join(sess.Providers, ","),
			sess.UpdatedAt.Format(time.RFC3339),
		})
	}

	return t
}

// Strategies tabulates the provider registry with each variant's traversal
// strategy.
func Strategies(names []string) Table {
	t := Table{
		Headers:   []string{"provider", "discovery", "batch", "rate", "resumable"},
		Alignment: []Align{AlignLeft, AlignLeft, AlignRight, AlignRight, AlignCenter},
	}

	for _, name := range names {
		st := providers.StrategyFor(name)
		rate := "-"
		if st.RequestsPerSec > 0 {
			rate = strconv.FormatFloat(st.RequestsPerSec, 'f', -1, 64) + "/s"
		}
		resumable := "no"
		if st.Resumable {
			resumable = "yes"
		}
		t.Rows = append(t.Rows, []string{
			name,
			string(st.Discovery),
			strconv.Itoa(st.BatchSize),
			rate,
			resumable,
		})
	}

	return t
}

// Aggregation tabulates per-source contributions of an aggregation run.
func Aggregation(res *catalog.AggregationResult) Table {
	t := Table{
		Headers:   []string{"source", "collected", "contributed", "errors"},
		Alignment: []Align{AlignLeft, AlignRight, AlignRight, AlignRight},
	}

	sources := make([]string, 0, len(res.SourceStats))
	for name := range res.SourceStats {
		sources = append(sources, name)
	}
	sort.Strings(sources)

	for _, name := range sources {
		stats := res.SourceStats[name]
		t.Rows = append(t.Rows, []string{
			name,
			strconv.Itoa(stats.Collected),
			strconv.Itoa(stats.Contributed),
			strconv.Itoa(stats.Errors),
		})
	}

	return t
}

// Delta tabulates the change set of one provider update.
func Delta(d *catalog.DeltaRecord) Table {
	t := Table{
		Headers:   []string{"model", "change", "fields"},
		Alignment: []Align{AlignLeft, AlignLeft, AlignLeft},
	}

	appendChanges := func(kind string, changes []catalog.ModelChange) {
		for _, c := range changes {
			fields := make([]string, 0, len(c.Fields))
			for _, f := range c.Fields {
				fields = append(fields, f.Field)
			}
			t.Rows = append(t.Rows, []string{c.ModelID, kind, strings.Join(fields, ",")})
		}
	}
	appendChanges("added", d.Changes.Added)
	appendChanges("modified", d.Changes.Modified)
	appendChanges("removed", d.Changes.Removed)

	return t
}

// shortDuration trims a duration for table cells.
func shortDuration(d time.Duration) string {
	if d == 0 {
		return "-"
	}
	return d.Round(time.Millisecond).String()
}
