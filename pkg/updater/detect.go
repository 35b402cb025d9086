package updater

import (
	"crypto/sha256"
	"encoding/hex"
	"sort"
	"strings"
	"time"

	"github.com/modelscout/modelscout/pkg/catalog"
)

// hashModels returns a stable hex sha256 over ordered (id, lastModified)
// pairs. Equal catalogs hash equal regardless of slice order; any id churn
// or timestamp bump changes the hash.
func hashModels(models []catalog.ModelRecord) string {
	pairs := make([]string, 0, len(models))
	for i := range models {
		pairs = append(pairs, models[i].ID+"\x00"+models[i].LastModified.Format(time.RFC3339Nano))
	}
	sort.Strings(pairs)

	h := sha256.New()
	for _, p := range pairs {
		h.Write([]byte(p))
		h.Write([]byte{'\n'})
	}
	return hex.EncodeToString(h.Sum(nil))
}

// recordIndex maps model ids to records for diff lookups.
func recordIndex(models []catalog.ModelRecord) map[string]*catalog.ModelRecord {
	idx := make(map[string]*catalog.ModelRecord, len(models))
	for i := range models {
		idx[models[i].ID] = &models[i]
	}
	return idx
}

// shallowDiff compares catalogs by membership and source timestamp only.
// Modified entries carry no field detail; this is the cheap tier backing
// the timestamp and hash strategies.
func shallowDiff(existing, updated []catalog.ModelRecord) *catalog.ChangeSet {
	cs := &catalog.ChangeSet{}
	existingByID := recordIndex(existing)
	updatedByID := recordIndex(updated)

	for i := range updated {
		prev, ok := existingByID[updated[i].ID]
		if !ok {
			cs.Added = append(cs.Added, catalog.ModelChange{ModelID: updated[i].ID})
			continue
		}
		if !prev.LastModified.Equal(updated[i].LastModified) {
			cs.Modified = append(cs.Modified, catalog.ModelChange{ModelID: updated[i].ID})
		}
	}
	for i := range existing {
		if _, ok := updatedByID[existing[i].ID]; !ok {
			cs.Removed = append(cs.Removed, catalog.ModelChange{ModelID: existing[i].ID})
		}
	}

	sortChangeSet(cs)
	return cs
}

// contentDiff compares catalogs field by field, producing per-field old/new
// values for every modified model.
func contentDiff(existing, updated []catalog.ModelRecord) *catalog.ChangeSet {
	cs := &catalog.ChangeSet{}
	existingByID := recordIndex(existing)
	updatedByID := recordIndex(updated)

	for i := range updated {
		prev, ok := existingByID[updated[i].ID]
		if !ok {
			cs.Added = append(cs.Added, catalog.ModelChange{ModelID: updated[i].ID})
			continue
		}
		if fields := diffRecord(prev, &updated[i]); len(fields) > 0 {
			cs.Modified = append(cs.Modified, catalog.ModelChange{ModelID: updated[i].ID, Fields: fields})
		}
	}
	for i := range existing {
		if _, ok := updatedByID[existing[i].ID]; !ok {
			cs.Removed = append(cs.Removed, catalog.ModelChange{ModelID: existing[i].ID})
		}
	}

	sortChangeSet(cs)
	return cs
}

// diffRecord compares the source-reported fields of two records. Derived
// fields (normalized id, model hash, embedding, categories) and provenance
// bookkeeping are not the source's changes and stay out of the diff.
func diffRecord(existing, updated *catalog.ModelRecord) []catalog.FieldChange {
	var fields []catalog.FieldChange
	add := func(name string, oldV, newV any) {
		fields = append(fields, catalog.FieldChange{Field: name, Old: oldV, New: newV})
	}

	if existing.Name != updated.Name {
		add("name", existing.Name, updated.Name)
	}
	if existing.Author != updated.Author {
		add("author", existing.Author, updated.Author)
	}
	if existing.Description != updated.Description {
		add("description", truncate(existing.Description, 80), truncate(updated.Description, 80))
	}
	if existing.Task != updated.Task {
		add("task", existing.Task, updated.Task)
	}
	if existing.Architecture != updated.Architecture {
		add("architecture", existing.Architecture, updated.Architecture)
	}
	if existing.Library != updated.Library {
		add("library", existing.Library, updated.Library)
	}
	if existing.Private != updated.Private {
		add("private", existing.Private, updated.Private)
	}
	if existing.Gated != updated.Gated {
		add("gated", existing.Gated, updated.Gated)
	}
	if existing.Downloads != updated.Downloads {
		add("downloads", existing.Downloads, updated.Downloads)
	}
	if existing.Likes != updated.Likes {
		add("likes", existing.Likes, updated.Likes)
	}
	if existing.ContextLength != updated.ContextLength {
		add("context_length", existing.ContextLength, updated.ContextLength)
	}
	if !equalStrings(existing.Capabilities, updated.Capabilities) {
		add("capabilities", strings.Join(existing.Capabilities, ","), strings.Join(updated.Capabilities, ","))
	}
	if !equalStrings(existing.Tags, updated.Tags) {
		add("tags", strings.Join(existing.Tags, ","), strings.Join(updated.Tags, ","))
	}
	fields = append(fields, diffPricing(existing.Pricing, updated.Pricing)...)
	if existing.Validation.Status != updated.Validation.Status {
		add("validation.status", string(existing.Validation.Status), string(updated.Validation.Status))
	}
	if !existing.LastModified.Equal(updated.LastModified) {
		add("last_modified", existing.LastModified.Format(time.RFC3339), updated.LastModified.Format(time.RFC3339))
	}

	return fields
}

// diffPricing reports per-kind price changes, additions, and removals.
func diffPricing(existing, updated map[string]float64) []catalog.FieldChange {
	if len(existing) == 0 && len(updated) == 0 {
		return nil
	}

	kinds := make(map[string]struct{}, len(existing)+len(updated))
	for k := range existing {
		kinds[k] = struct{}{}
	}
	for k := range updated {
		kinds[k] = struct{}{}
	}
	names := make([]string, 0, len(kinds))
	for k := range kinds {
		names = append(names, k)
	}
	sort.Strings(names)

	var fields []catalog.FieldChange
	for _, k := range names {
		oldV, hadOld := existing[k]
		newV, hasNew := updated[k]
		switch {
		case !hadOld:
			fields = append(fields, catalog.FieldChange{Field: "pricing." + k, New: newV})
		case !hasNew:
			fields = append(fields, catalog.FieldChange{Field: "pricing." + k, Old: oldV})
		case oldV != newV:
			fields = append(fields, catalog.FieldChange{Field: "pricing." + k, Old: oldV, New: newV})
		}
	}
	return fields
}

// sortChangeSet orders every category by model id for stable output.
func sortChangeSet(cs *catalog.ChangeSet) {
	byID := func(changes []catalog.ModelChange) func(i, j int) bool {
		return func(i, j int) bool { return changes[i].ModelID < changes[j].ModelID }
	}
	sort.Slice(cs.Added, byID(cs.Added))
	sort.Slice(cs.Modified, byID(cs.Modified))
	sort.Slice(cs.Removed, byID(cs.Removed))
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max-3] + "..."
}
