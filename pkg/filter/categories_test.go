package filter

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelscout/modelscout/pkg/catalog"
	"github.com/modelscout/modelscout/pkg/errors"
)

func TestCategoryRuleMatches(t *testing.T) {
	longContext := &Criteria{MinContextLength: 100000, HasPricing: true}

	tests := []struct {
		name string
		rule CategoryRule
		rec  catalog.ModelRecord
		want bool
	}{
		{
			name: "keyword in name",
			rule: CategoryRule{Name: "chat", Keywords: []string{"instruct"}},
			rec:  catalog.ModelRecord{Name: "Llama-3-70B-Instruct"},
			want: true,
		},
		{
			name: "keyword in description",
			rule: CategoryRule{Name: "vision", Keywords: []string{"multimodal"}},
			rec:  catalog.ModelRecord{Name: "pix", Description: "A multimodal encoder."},
			want: true,
		},
		{
			name: "keyword in tags",
			rule: CategoryRule{Name: "code", Keywords: []string{"sql"}},
			rec:  catalog.ModelRecord{Name: "t5", Tags: []string{"text2sql"}},
			want: true,
		},
		{
			name: "keyword is case insensitive",
			rule: CategoryRule{Name: "chat", Keywords: []string{"CHAT"}},
			rec:  catalog.ModelRecord{Name: "chatty-7b"},
			want: true,
		},
		{
			name: "provider match folds case",
			rule: CategoryRule{Name: "commercial", Providers: []string{"openai"}},
			rec:  catalog.ModelRecord{Provider: "OpenAI"},
			want: true,
		},
		{
			name: "criteria requires every set field",
			rule: CategoryRule{Name: "premium", Criteria: longContext},
			rec:  catalog.ModelRecord{ContextLength: 200000},
			want: false,
		},
		{
			name: "criteria satisfied",
			rule: CategoryRule{Name: "premium", Criteria: longContext},
			rec: catalog.ModelRecord{
				ContextLength: 200000,
				Pricing:       map[string]float64{"input_per_1k": 1},
			},
			want: true,
		},
		{
			name: "criteria task folds case",
			rule: CategoryRule{Name: "gen", Criteria: &Criteria{Task: "text-generation"}},
			rec:  catalog.ModelRecord{Task: "Text-Generation"},
			want: true,
		},
		{
			name: "nothing matches",
			rule: CategoryRule{Name: "audio", Keywords: []string{"speech"}},
			rec:  catalog.ModelRecord{Name: "bert-base"},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.rule.Matches(&tt.rec))
		})
	}
}

func TestCategoryRuleValidate(t *testing.T) {
	assert.NoError(t, CategoryRule{Name: "x", Keywords: []string{"y"}}.Validate())
	assert.Error(t, CategoryRule{Keywords: []string{"y"}}.Validate())
	assert.Error(t, CategoryRule{Name: "x"}.Validate())
	assert.Error(t, CategoryRule{Name: "x", Criteria: &Criteria{}}.Validate())
}

func TestLoadRules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "categories.yaml")
	doc := `- name: rag
  keywords: [retrieval, rag]
- name: giant-context
  criteria:
    min_context_length: 500000
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	rules, err := LoadRules(path)
	require.NoError(t, err)
	require.Len(t, rules, 2)

	assert.Equal(t, "rag", rules[0].Name)
	assert.Equal(t, []string{"retrieval", "rag"}, rules[0].Keywords)
	require.NotNil(t, rules[1].Criteria)
	assert.Equal(t, 500000, rules[1].Criteria.MinContextLength)
}

func TestLoadRulesRejectsBadTables(t *testing.T) {
	dir := t.TempDir()

	_, err := LoadRules(filepath.Join(dir, "missing.yaml"))
	assert.True(t, errors.IsPersistence(err))

	dup := filepath.Join(dir, "dup.yaml")
	require.NoError(t, os.WriteFile(dup, []byte("- name: a\n  keywords: [x]\n- name: a\n  keywords: [y]\n"), 0o644))
	_, err = LoadRules(dup)
	assert.True(t, errors.IsValidation(err))

	clauseless := filepath.Join(dir, "clauseless.yaml")
	require.NoError(t, os.WriteFile(clauseless, []byte("- name: a\n"), 0o644))
	_, err = LoadRules(clauseless)
	assert.True(t, errors.IsValidation(err))
}

func TestNewRejectsBadRules(t *testing.T) {
	_, err := New(WithRules([]CategoryRule{{Name: ""}}))
	assert.True(t, errors.IsValidation(err))
}

func TestCategorize(t *testing.T) {
	f, err := New()
	require.NoError(t, err)

	models := []catalog.ModelRecord{
		{ID: "llama", Name: "Llama 3 Instruct", Task: "text-generation"},
		{ID: "starcoder", Name: "StarCoder", Description: "code generation model"},
		{
			ID:            "gpt",
			Name:          "GPT-4o",
			Provider:      "openai",
			ContextLength: 128000,
			Pricing:       map[string]float64{"input_per_1k": 0.005},
		},
		{ID: "plain", Name: "bert-base"},
	}

	dist := f.Categorize(models)

	assert.Equal(t, []string{"chat", "text-generation"}, models[0].Categories)
	assert.Equal(t, []string{"code"}, models[1].Categories)
	assert.Equal(t, []string{"commercial", "long-context", "priced"}, models[2].Categories)
	assert.Empty(t, models[3].Categories)

	assert.Equal(t, 1, dist["chat"])
	assert.Equal(t, 1, dist["code"])
	assert.Equal(t, 1, dist["text-generation"])
	assert.Equal(t, 1, dist["long-context"])
	assert.Equal(t, 1, dist["priced"])
	assert.Equal(t, 1, dist["commercial"])
	assert.Zero(t, dist["audio"])

	assert.Nil(t, f.Categorize(nil))
}

func TestClusterByEmbedding(t *testing.T) {
	models := []catalog.ModelRecord{
		{ID: "a", Embedding: []float32{1, 0}},
		{ID: "b", Embedding: []float32{0.98, 0.2}},
		{ID: "c", Embedding: []float32{0, 1}},
		{ID: "d"},
	}

	groups := ClusterByEmbedding(models, 0)

	require.Len(t, groups, 3)
	require.Len(t, groups[0], 2)
	assert.Equal(t, "a", groups[0][0].ID)
	assert.Equal(t, "b", groups[0][1].ID)
	assert.Equal(t, "c", groups[1][0].ID)
	assert.Equal(t, "d", groups[2][0].ID)

	// A strict threshold splits everything apart.
	strict := ClusterByEmbedding(models, 0.999)
	assert.Len(t, strict, 4)
}
