package openai

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelscout/modelscout/internal/providers"
	"github.com/modelscout/modelscout/internal/utils/ptr"
	"github.com/modelscout/modelscout/pkg/catalog"
)

const listingPayload = `{
	"object": "list",
	"data": [
		{"id": "gpt-4", "object": "model", "owned_by": "openai", "created": 1687882411},
		{"id": "gpt-4o", "object": "model", "owned_by": "openai", "created": 1715367049},
		{"id": "text-embedding-3-small", "object": "model", "owned_by": "openai", "created": 1705948997},
		{"id": "whisper-1", "object": "model", "owned_by": "openai", "created": 1677532384}
	]
}`

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return New("openai", srv.URL, providers.Config{APIKey: "sk-test", BaseURL: srv.URL})
}

func TestDiscoverModels(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/models", r.URL.Path)
		assert.Equal(t, "Bearer sk-test", r.Header.Get("Authorization"))
		_, _ = w.Write([]byte(listingPayload))
	})

	models, err := client.DiscoverModels(context.Background(), providers.DiscoverOptions{})
	require.NoError(t, err)
	require.Len(t, models, 4)

	byID := make(map[string]catalog.ModelRecord, len(models))
	for _, m := range models {
		byID[m.ID] = m
	}

	gpt4 := byID["gpt-4"]
	assert.Equal(t, "openai", gpt4.Provider)
	assert.Equal(t, "openai", gpt4.Author)
	assert.Equal(t, "text-generation", gpt4.Task)
	assert.Contains(t, gpt4.Capabilities, "chat")
	assert.Contains(t, gpt4.Capabilities, "function-calling")
	assert.False(t, gpt4.LastModified.IsZero())

	assert.Equal(t, []string{"embedding"}, byID["text-embedding-3-small"].Capabilities)
	assert.Equal(t, []string{"speech-to-text"}, byID["whisper-1"].Capabilities)
	assert.Contains(t, byID["gpt-4o"].Capabilities, "vision")
}

func TestDiscoverModelsHTTPError(t *testing.T) {
	client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"error": {"message": "bad key"}}`))
	})

	_, err := client.DiscoverModels(context.Background(), providers.DiscoverOptions{})
	require.Error(t, err)
}

func TestConvertGroqFields(t *testing.T) {
	client := New("groq", "https://api.groq.com/openai/v1", providers.Config{})

	rec := client.convert(modelData{
		ID:                  "meta-llama/llama-guard-4-12b",
		OwnedBy:             "Meta",
		ContextWindow:       131072,
		MaxCompletionTokens: 1024,
		Active:              ptr.To(false),
	})

	assert.Equal(t, "groq", rec.Provider)
	assert.Equal(t, "meta", rec.Author)
	assert.Equal(t, 131072, rec.ContextLength)
	assert.Contains(t, rec.Tags, "inactive")
}

func TestConvertMistralCapabilities(t *testing.T) {
	client := New("mistral", "https://api.mistral.ai/v1", providers.Config{})

	rec := client.convert(modelData{
		ID:               "pixtral-large-latest",
		Name:             "Pixtral Large",
		Description:      "Frontier multimodal model",
		OwnedBy:          "mistralai",
		MaxContextLength: 128000,
		Capabilities: &capabilities{
			CompletionChat:  true,
			FunctionCalling: true,
			Vision:          true,
		},
	})

	assert.Equal(t, "Pixtral Large", rec.Name)
	assert.Equal(t, "Frontier multimodal model", rec.Description)
	assert.Equal(t, 128000, rec.ContextLength)
	assert.ElementsMatch(t, []string{"chat", "function-calling", "vision"}, rec.Capabilities)
}

func TestTestModel(t *testing.T) {
	t.Run("available", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, "/models/gpt-4", r.URL.Path)
			_, _ = w.Write([]byte(`{"id": "gpt-4", "object": "model", "owned_by": "openai"}`))
		})

		report, err := client.TestModel(context.Background(), "gpt-4", providers.TestQuick)
		require.NoError(t, err)
		assert.True(t, report.Available)
		assert.Equal(t, catalog.ValidationPassed, report.Status)
		assert.Greater(t, report.Latency, time.Duration(0))
	})

	t.Run("missing", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusNotFound)
		})

		report, err := client.TestModel(context.Background(), "no-such-model", providers.TestQuick)
		require.NoError(t, err)
		assert.False(t, report.Available)
		assert.Equal(t, catalog.ValidationFailed, report.Status)
	})

	t.Run("full mode grades sparse metadata", func(t *testing.T) {
		client := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"id": "mystery-model", "object": "model"}`))
		})

		report, err := client.TestModel(context.Background(), "mystery-model", providers.TestFull)
		require.NoError(t, err)
		assert.True(t, report.Available)
	})
}

func TestNormalizeOwner(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"openai", "openai"},
		{"Meta", "meta"},
		{"DeepSeek / Meta", "deepseek"},
		{"Moonshot AI", "moonshot-ai"},
		{"  ", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, normalizeOwner(tt.in), "input %q", tt.in)
	}
}
