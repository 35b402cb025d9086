package providers_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelscout/modelscout/internal/providers"
	_ "github.com/modelscout/modelscout/internal/providers/all"
	"github.com/modelscout/modelscout/pkg/errors"
)

func TestRegistryCarriesClosedSet(t *testing.T) {
	want := []string{
		"anthropic",
		"artificialanalysis",
		"google",
		"groq",
		"huggingface",
		"mistral",
		"openai",
	}

	names := providers.List()
	assert.IsIncreasing(t, names, "List must be sorted")
	assert.Subset(t, names, want)

	for _, name := range want {
		require.True(t, providers.Has(name))

		client, err := providers.New(name, providers.Config{APIKey: "test"})
		require.NoError(t, err, "factory for %s", name)
		assert.Equal(t, name, client.Provider())
	}
}

func TestNewUnknownProvider(t *testing.T) {
	_, err := providers.New("replicate", providers.Config{})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrProviderNotFound)
}

func TestRegisterDuplicatePanics(t *testing.T) {
	providers.Register("dup-test", func(providers.Config) providers.Client { return nil })

	assert.Panics(t, func() {
		providers.Register("dup-test", func(providers.Config) providers.Client { return nil })
	})
}

func TestRegisterNilFactoryPanics(t *testing.T) {
	assert.Panics(t, func() {
		providers.Register("nil-test", nil)
	})
}
