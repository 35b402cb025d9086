package google

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/modelscout/modelscout/internal/providers"
	"github.com/modelscout/modelscout/pkg/errors"
)

func TestConvert(t *testing.T) {
	rec := convert(&genai.Model{
		Name:             "models/gemini-2.0-flash",
		DisplayName:      "Gemini 2.0 Flash",
		Description:      "Fast multimodal model",
		InputTokenLimit:  1048576,
		SupportedActions: []string{"generateContent", "streamGenerateContent", "countTokens"},
	})

	assert.Equal(t, "gemini-2.0-flash", rec.ID)
	assert.Equal(t, "Gemini 2.0 Flash", rec.Name)
	assert.Equal(t, "google", rec.Provider)
	assert.Equal(t, "text-generation", rec.Task)
	assert.Equal(t, 1048576, rec.ContextLength)
	assert.Contains(t, rec.Capabilities, "chat")
	assert.Contains(t, rec.Capabilities, "streaming")
	assert.Contains(t, rec.Capabilities, "vision")
}

func TestConvertEmbeddingModel(t *testing.T) {
	rec := convert(&genai.Model{
		Name:             "models/gemini-embedding-001",
		SupportedActions: []string{"embedContent"},
	})

	assert.Equal(t, "gemini-embedding-001", rec.ID)
	assert.Equal(t, "gemini-embedding-001", rec.Name)
	assert.Equal(t, "embedding", rec.Task)
	assert.Contains(t, rec.Capabilities, "embedding")
	assert.NotContains(t, rec.Capabilities, "vision")
}

func TestExtractModelID(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"models/gemini-pro", "gemini-pro"},
		{"tunedModels/my-tuned-1", "my-tuned-1"},
		{"gemini-pro", "gemini-pro"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, extractModelID(tt.in))
	}
}

func TestInitializeRequiresAPIKey(t *testing.T) {
	client := New(providers.Config{})

	err := client.Initialize(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrAPIKeyRequired)
}
