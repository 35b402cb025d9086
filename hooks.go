package modelscout

import (
	"sync"

	"github.com/modelscout/modelscout/pkg/catalog"
)

// Hook function types for catalog change events.
type (
	// ModelAddedHook is called when an applied update adds a model.
	ModelAddedHook func(rec catalog.ModelRecord)

	// ModelUpdatedHook is called when an applied update modifies a model.
	ModelUpdatedHook func(previous, current catalog.ModelRecord)

	// ModelRemovedHook is called when an applied update removes a model.
	ModelRemovedHook func(rec catalog.ModelRecord)
)

// Hooks registers callbacks fired when an applied update changes a
// provider's catalog. Hooks run synchronously on the updating goroutine,
// after the state store already holds the new catalog.
type Hooks interface {
	OnModelAdded(fn ModelAddedHook)
	OnModelUpdated(fn ModelUpdatedHook)
	OnModelRemoved(fn ModelRemovedHook)
}

// hooks manages the registered event callbacks.
type hooks struct {
	mu             sync.RWMutex
	onModelAdded   []ModelAddedHook
	onModelUpdated []ModelUpdatedHook
	onModelRemoved []ModelRemovedHook
}

func newHooks() *hooks {
	return &hooks{}
}

// OnModelAdded registers a callback for added models.
func (h *hooks) OnModelAdded(fn ModelAddedHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onModelAdded = append(h.onModelAdded, fn)
}

// OnModelUpdated registers a callback for modified models.
func (h *hooks) OnModelUpdated(fn ModelUpdatedHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onModelUpdated = append(h.onModelUpdated, fn)
}

// OnModelRemoved registers a callback for removed models.
func (h *hooks) OnModelRemoved(fn ModelRemovedHook) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onModelRemoved = append(h.onModelRemoved, fn)
}

// active reports whether any callback is registered, so callers can skip
// loading state for nothing.
func (h *hooks) active() bool {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.onModelAdded)+len(h.onModelUpdated)+len(h.onModelRemoved) > 0
}

// notify resolves the change set against the previous and current catalogs
// and fires the matching callbacks. Changes whose records cannot be resolved
// on either side are skipped rather than fired with zero values.
func (h *hooks) notify(previous, current []catalog.ModelRecord, changes *catalog.ChangeSet) {
	h.mu.RLock()
	defer h.mu.RUnlock()

	prevByID := indexByID(previous)
	curByID := indexByID(current)

	for _, c := range changes.Added {
		rec, ok := curByID[c.ModelID]
		if !ok {
			continue
		}
		for _, fn := range h.onModelAdded {
			fn(*rec)
		}
	}

	for _, c := range changes.Modified {
		before, okPrev := prevByID[c.ModelID]
		after, okCur := curByID[c.ModelID]
		if !okPrev || !okCur {
			continue
		}
		for _, fn := range h.onModelUpdated {
			fn(*before, *after)
		}
	}

	for _, c := range changes.Removed {
		rec, ok := prevByID[c.ModelID]
		if !ok {
			continue
		}
		for _, fn := range h.onModelRemoved {
			fn(*rec)
		}
	}
}

func indexByID(models []catalog.ModelRecord) map[string]*catalog.ModelRecord {
	idx := make(map[string]*catalog.ModelRecord, len(models))
	for i := range models {
		idx[models[i].ID] = &models[i]
	}
	return idx
}
