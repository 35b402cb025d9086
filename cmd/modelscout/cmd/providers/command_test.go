package providers

import (
	"context"
	"testing"

	"github.com/modelscout/modelscout/internal/appcontext"
	registry "github.com/modelscout/modelscout/internal/providers"
	"github.com/modelscout/modelscout/pkg/errors"
)

func TestRunProvidersUnknown(t *testing.T) {
	ac := &appcontext.Mock{}

	err := runProviders(context.Background(), ac, "no-such-provider", &Flags{})
	if err == nil {
		t.Fatal("runProviders() expected error for unknown provider")
	}
	if !errors.IsNotFound(err) {
		t.Errorf("runProviders() error = %v, want not-found", err)
	}
}

func TestRegistryCoversDocumentedProviders(t *testing.T) {
	// Names the command help references must stay registered.
	expected := []string{
		"anthropic",
		"artificialanalysis",
		"google",
		"groq",
		"huggingface",
		"mistral",
		"openai",
	}

	for _, name := range expected {
		if !registry.Has(name) {
			t.Errorf("registry missing provider %s", name)
		}
	}

	if got := len(registry.List()); got != len(expected) {
		t.Errorf("registry.List() returned %d providers, want %d", got, len(expected))
	}
}
