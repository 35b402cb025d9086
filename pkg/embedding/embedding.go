// Package embedding defines the pluggable embedding capability used by the
// aggregator's similarity scoring and the categorizer's clustering. The
// concrete vector model is external; components depend only on the Service
// interface and treat missing embeddings as "signal not evaluated".
package embedding

import (
	"context"
	"math"
	"strings"

	"github.com/modelscout/modelscout/pkg/catalog"
)

// Service generates an embedding vector for one model record.
type Service interface {
	GenerateModelEmbedding(ctx context.Context, rec *catalog.ModelRecord) ([]float32, error)
}

// Noop never produces embeddings. Aggregation then scores similarity on
// the remaining signals alone.
type Noop struct{}

var _ Service = (*Noop)(nil)

// GenerateModelEmbedding returns no vector and no error.
func (Noop) GenerateModelEmbedding(context.Context, *catalog.ModelRecord) ([]float32, error) {
	return nil, nil
}

// CosineSimilarity computes the cosine of the angle between two vectors.
// Mismatched dimensions or zero-norm vectors score 0.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}

// Text flattens a record's descriptive fields into the text handed to the
// embedding model: name, description, task, and capabilities.
func Text(rec *catalog.ModelRecord) string {
	parts := make([]string, 0, 4)
	for _, p := range []string{
		rec.Name,
		rec.Description,
		rec.Task,
		strings.Join(rec.Capabilities, " "),
	} {
		if strings.TrimSpace(p) != "" {
			parts = append(parts, p)
		}
	}
	return strings.Join(parts, "\n")
}
