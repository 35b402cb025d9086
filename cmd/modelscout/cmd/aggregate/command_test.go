package aggregate

import (
	"testing"

	"github.com/modelscout/modelscout/internal/storage"
	"github.com/modelscout/modelscout/pkg/catalog"
)

func testStore(t *testing.T) *storage.Store {
	t.Helper()
	store, err := storage.New(t.TempDir())
	if err != nil {
		t.Fatalf("storage.New() error = %v", err)
	}
	return store
}

func TestLoadModelsInline(t *testing.T) {
	store := testStore(t)

	res := &catalog.ScanResult{
		Provider: "openai",
		Models: []catalog.ModelRecord{
			{ID: "gpt-4o", Provider: "openai"},
			{ID: "gpt-4o-mini", Provider: "openai"},
		},
	}

	models, err := loadModels(store, res)
	if err != nil {
		t.Fatalf("loadModels() error = %v", err)
	}
	if len(models) != 2 {
		t.Fatalf("loadModels() returned %d models, want 2", len(models))
	}
	if models[0].ID != "gpt-4o" {
		t.Errorf("models[0].ID = %s, want gpt-4o", models[0].ID)
	}
}

func TestLoadModelsStream(t *testing.T) {
	store := testStore(t)

	w, err := store.NewStream("scan_hub_01")
	if err != nil {
		t.Fatalf("NewStream() error = %v", err)
	}
	ids := []string{"org/model-a", "org/model-b", "org/model-c"}
	for _, id := range ids {
		if err := w.Append(catalog.ModelRecord{ID: id, Provider: "huggingface"}); err != nil {
			t.Fatalf("Append(%s) error = %v", id, err)
		}
	}
	if err := w.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	res := &catalog.ScanResult{
		Provider: "huggingface",
		Stream:   "scan_hub_01",
		Stats:    catalog.ScanStats{Scanned: int64(len(ids))},
	}

	models, err := loadModels(store, res)
	if err != nil {
		t.Fatalf("loadModels() error = %v", err)
	}
	if len(models) != len(ids) {
		t.Fatalf("loadModels() returned %d models, want %d", len(models), len(ids))
	}
	for i, id := range ids {
		if models[i].ID != id {
			t.Errorf("models[%d].ID = %s, want %s", i, models[i].ID, id)
		}
	}
}

func TestLoadModelsStreamMissing(t *testing.T) {
	store := testStore(t)

	res := &catalog.ScanResult{Provider: "huggingface", Stream: "never-written"}
	if _, err := loadModels(store, res); err == nil {
		t.Error("loadModels() expected error for missing stream")
	}
}
