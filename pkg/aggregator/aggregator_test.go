package aggregator

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelscout/modelscout/pkg/catalog"
)

// stubEmbedder returns a fixed vector per record id.
type stubEmbedder struct {
	vectors map[string][]float32
	err     error
	calls   int
}

func (s *stubEmbedder) GenerateModelEmbedding(_ context.Context, rec *catalog.ModelRecord) ([]float32, error) {
	s.calls++
	if s.err != nil {
		return nil, s.err
	}
	return s.vectors[rec.ID], nil
}

func TestAggregateMergesKnownDuplicates(t *testing.T) {
	agg, err := New()
	require.NoError(t, err)

	batches := []SourceBatch{
		{Source: "openai", Models: []catalog.ModelRecord{
			{ID: "gpt-4", Name: "GPT-4", Provider: "openai", Downloads: 1000},
		}},
		{Source: "proxy", Models: []catalog.ModelRecord{
			{ID: "gpt-4", Name: "GPT-4-Turbo", Provider: "openai", Downloads: 500},
		}},
	}

	result, err := agg.Aggregate(context.Background(), batches, Options{})
	require.NoError(t, err)
	require.Len(t, result.Models, 1)

	merged := result.Models[0]
	assert.Equal(t, int64(1000), merged.Downloads, "highest strategy keeps the max")
	assert.Equal(t, 1, result.DedupStats.DuplicatesFound)
	assert.Equal(t, 1, result.DedupStats.DuplicatesRemoved)
	assert.InDelta(t, 0.5, result.DedupStats.DedupRate, 1e-9)

	require.NotNil(t, merged.Provenance.Merge)
	assert.Equal(t, []string{"gpt-4", "gpt-4"}, merged.Provenance.Merge.MergedFrom)
	assert.Equal(t, 2, merged.Provenance.Merge.MemberCount)
	assert.Equal(t, "default", merged.Provenance.Merge.Strategy)

	// The hash reflects the post-merge identity.
	assert.Equal(t, catalog.ComputeModelHash(&merged), merged.ModelHash)
}

func TestAggregateThreeSourcesWithOverlaps(t *testing.T) {
	agg, err := New()
	require.NoError(t, err)

	shared := func(n int) catalog.ModelRecord {
		return catalog.ModelRecord{
			ID:     fmt.Sprintf("shared-model-%02d", n),
			Name:   fmt.Sprintf("Shared Model %02d", n),
			Author: "acme",
		}
	}
	unique := func(source string, n int) catalog.ModelRecord {
		return catalog.ModelRecord{
			ID:   fmt.Sprintf("%s/model-%03d", source, n),
			Name: fmt.Sprintf("%s model %03d", source, n),
		}
	}

	var s1, s2, s3 []catalog.ModelRecord
	for n := 0; n < 90; n++ {
		s1 = append(s1, unique("one", n))
	}
	for n := 0; n < 10; n++ {
		s1 = append(s1, shared(n))
	}
	for n := 0; n < 95; n++ {
		s2 = append(s2, unique("two", n))
	}
	for n := 0; n < 5; n++ {
		s2 = append(s2, shared(n))
	}
	for n := 0; n < 95; n++ {
		s3 = append(s3, unique("three", n))
	}
	for n := 5; n < 10; n++ {
		s3 = append(s3, shared(n))
	}

	for i := range s1 {
		s1[i].Provider = "one"
	}
	for i := range s2 {
		s2[i].Provider = "two"
	}
	for i := range s3 {
		s3[i].Provider = "three"
	}

	result, err := agg.Aggregate(context.Background(), []SourceBatch{
		{Source: "one", Models: s1},
		{Source: "two", Models: s2},
		{Source: "three", Models: s3},
	}, Options{})
	require.NoError(t, err)

	collected := 0
	contributed := 0
	for _, stats := range result.SourceStats {
		collected += stats.Collected
		contributed += stats.Contributed
	}
	assert.Equal(t, 300, collected)
	assert.Len(t, result.Models, 290)
	assert.Equal(t, 290, contributed)
	assert.Equal(t, 10, result.DedupStats.DuplicatesRemoved)
	assert.Equal(t, 100, result.SourceStats["one"].Collected)
	assert.Equal(t, 100, result.SourceStats["one"].Contributed, "source one seeds every shared cluster")
}

func TestAggregateIdempotent(t *testing.T) {
	agg, err := New()
	require.NoError(t, err)

	batches := []SourceBatch{
		{Source: "openai", Models: []catalog.ModelRecord{
			{ID: "gpt-4", Name: "GPT-4", Provider: "openai", Downloads: 1000},
			{ID: "gpt-3.5-turbo", Name: "GPT-3.5 Turbo", Provider: "openai"},
		}},
		{Source: "proxy", Models: []catalog.ModelRecord{
			{ID: "gpt-4", Name: "GPT-4", Provider: "openai", Downloads: 900},
			{ID: "claude-3-opus", Name: "Claude 3 Opus", Provider: "anthropic"},
		}},
	}

	first, err := agg.Aggregate(context.Background(), batches, Options{})
	require.NoError(t, err)
	require.Len(t, first.Models, 3)

	second, err := agg.Aggregate(context.Background(), []SourceBatch{
		{Source: "first-pass", Models: first.Models},
	}, Options{})
	require.NoError(t, err)

	assert.Len(t, second.Models, 3)
	assert.Zero(t, second.DedupStats.DuplicatesFound, "re-aggregating a deduplicated set finds nothing")
}

func TestAggregateFirstSeenSeedsCluster(t *testing.T) {
	agg, err := New()
	require.NoError(t, err)

	batches := []SourceBatch{
		{Source: "a", Models: []catalog.ModelRecord{
			{ID: "mistral-7b", Name: "Mistral 7B", Provider: "mistral", Description: "short"},
		}},
		{Source: "b", Models: []catalog.ModelRecord{
			{ID: "mistral-7b", Name: "Mistral 7B", Provider: "mistral", Description: "a considerably longer description"},
		}},
	}

	result, err := agg.Aggregate(context.Background(), batches, Options{})
	require.NoError(t, err)
	require.Len(t, result.Models, 1)

	// Seed attribution goes to the first batch; the longest description
	// still wins the merge.
	assert.Equal(t, 1, result.SourceStats["a"].Contributed)
	assert.Equal(t, 0, result.SourceStats["b"].Contributed)
	assert.Equal(t, "a considerably longer description", result.Models[0].Description)
}

func TestAggregateEmbeddingErrorsAreWarnings(t *testing.T) {
	svc := &stubEmbedder{err: fmt.Errorf("quota exhausted")}
	agg, err := New(WithEmbeddings(svc))
	require.NoError(t, err)

	result, err := agg.Aggregate(context.Background(), []SourceBatch{
		{Source: "openai", Models: []catalog.ModelRecord{
			{ID: "gpt-4", Name: "GPT-4", Provider: "openai"},
		}},
	}, Options{})
	require.NoError(t, err, "embedding failures never abort aggregation")

	assert.Len(t, result.Models, 1)
	require.Len(t, result.Errors, 1)
	assert.Contains(t, result.Errors[0], "quota exhausted")
	assert.Equal(t, 1, result.SourceStats["openai"].Errors)
}

func TestAggregateSkipEmbeddings(t *testing.T) {
	svc := &stubEmbedder{vectors: map[string][]float32{"gpt-4": {1, 0}}}
	agg, err := New(WithEmbeddings(svc))
	require.NoError(t, err)

	_, err = agg.Aggregate(context.Background(), []SourceBatch{
		{Source: "openai", Models: []catalog.ModelRecord{
			{ID: "gpt-4", Name: "GPT-4", Provider: "openai"},
		}},
	}, Options{SkipEmbeddings: true})
	require.NoError(t, err)
	assert.Zero(t, svc.calls)
}

func TestAggregateThresholdOverride(t *testing.T) {
	agg, err := New()
	require.NoError(t, err)

	// Same model behind divergent listings: shared identity lands the pair
	// exactly at the medium threshold, under the high one.
	batches := []SourceBatch{
		{Source: "openai", Models: []catalog.ModelRecord{
			{ID: "gpt-4", Name: "GPT-4", Provider: "openai"},
		}},
		{Source: "proxy", Models: []catalog.ModelRecord{
			{ID: "GPT 4", Name: "GPT-4 Preview", Provider: "azure"},
		}},
	}

	medium, err := agg.Aggregate(context.Background(), batches, Options{})
	require.NoError(t, err)
	assert.Len(t, medium.Models, 1)

	high, err := agg.Aggregate(context.Background(), batches, Options{Threshold: 0.95})
	require.NoError(t, err)
	assert.Len(t, high.Models, 2)
}

func TestAggregateEmptyInput(t *testing.T) {
	agg, err := New()
	require.NoError(t, err)

	result, err := agg.Aggregate(context.Background(), nil, Options{})
	require.NoError(t, err)
	assert.Empty(t, result.Models)
	assert.Zero(t, result.DedupStats.DuplicatesFound)
	assert.NotEmpty(t, result.ResultID)
}

func TestNewRejectsBadOptions(t *testing.T) {
	_, err := New(WithThreshold(0))
	assert.Error(t, err)

	_, err = New(WithThreshold(1.5))
	assert.Error(t, err)

	_, err = New(WithMergeConfig(MergeConfig{Fields: map[string]Strategy{"nonexistent": StrategyHighest}}))
	assert.Error(t, err)

	_, err = New(WithMergeConfig(MergeConfig{Fields: map[string]Strategy{"downloads": "median"}}))
	assert.Error(t, err)
}
