package embedding

import (
	"context"

	"google.golang.org/genai"

	"github.com/modelscout/modelscout/pkg/catalog"
	"github.com/modelscout/modelscout/pkg/errors"
)

// DefaultGeminiModel is the embedding model used when none is configured.
const DefaultGeminiModel = "gemini-embedding-001"

// Gemini generates embeddings through the Gemini API.
type Gemini struct {
	client *genai.Client
	model  string
}

var _ Service = (*Gemini)(nil)

// NewGemini creates a Gemini-backed embedding service. model may be empty
// to use DefaultGeminiModel.
func NewGemini(ctx context.Context, apiKey, model string) (*Gemini, error) {
	if apiKey == "" {
		return nil, errors.NewAuthenticationError("google", "api_key", "GOOGLE_API_KEY not set", errors.ErrAPIKeyRequired)
	}
	if model == "" {
		model = DefaultGeminiModel
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Backend: genai.BackendGeminiAPI,
		APIKey:  apiKey,
	})
	if err != nil {
		return nil, err
	}

	return &Gemini{client: client, model: model}, nil
}

// GenerateModelEmbedding embeds the record's descriptive text. Records with
// no embeddable text yield no vector and no error.
func (g *Gemini) GenerateModelEmbedding(ctx context.Context, rec *catalog.ModelRecord) ([]float32, error) {
	text := Text(rec)
	if text == "" {
		return nil, nil
	}

	resp, err := g.client.Models.EmbedContent(ctx, g.model, genai.Text(text), nil)
	if err != nil {
		return nil, errors.WrapFetch("google", "embedContent", 0, err)
	}
	if len(resp.Embeddings) == 0 || len(resp.Embeddings[0].Values) == 0 {
		return nil, errors.New("empty embedding response")
	}

	return resp.Embeddings[0].Values, nil
}
