package filter

import (
	"os"
	"strings"

	"github.com/goccy/go-yaml"

	"github.com/modelscout/modelscout/pkg/catalog"
	"github.com/modelscout/modelscout/pkg/constants"
	"github.com/modelscout/modelscout/pkg/embedding"
	"github.com/modelscout/modelscout/pkg/errors"
)

// Criteria is the structural clause of a category rule. Every set field
// must hold for the clause to match.
type Criteria struct {
	MinContextLength int    `json:"min_context_length,omitempty" yaml:"min_context_length"`
	HasPricing       bool   `json:"has_pricing,omitempty" yaml:"has_pricing"`
	Task             string `json:"task,omitempty" yaml:"task"`
}

func (c *Criteria) matches(r *catalog.ModelRecord) bool {
	if c.MinContextLength > 0 && r.ContextLength < c.MinContextLength {
		return false
	}
	if c.HasPricing && len(r.Pricing) == 0 {
		return false
	}
	if c.Task != "" && !strings.EqualFold(c.Task, r.Task) {
		return false
	}
	return true
}

func (c *Criteria) empty() bool {
	return c.MinContextLength <= 0 && !c.HasPricing && c.Task == ""
}

// CategoryRule assigns its category to records matching any populated
// clause: a keyword found in the name, description, or tags; the provider
// name; or the structural criteria.
type CategoryRule struct {
	Name      string    `json:"name" yaml:"name"`
	Keywords  []string  `json:"keywords,omitempty" yaml:"keywords"`
	Providers []string  `json:"providers,omitempty" yaml:"providers"`
	Criteria  *Criteria `json:"criteria,omitempty" yaml:"criteria"`
}

// Validate rejects unnamed rules and rules that can never match.
func (r CategoryRule) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return errors.NewValidationError("name", r.Name, "category rule needs a name")
	}
	if len(r.Keywords) == 0 && len(r.Providers) == 0 && r.Criteria == nil {
		return errors.NewValidationError("rule", r.Name, "category rule needs at least one clause")
	}
	if r.Criteria != nil && r.Criteria.empty() {
		return errors.NewValidationError("criteria", r.Name, "criteria clause is empty")
	}
	return nil
}

// Matches reports whether the record belongs to the rule's category.
func (r CategoryRule) Matches(rec *catalog.ModelRecord) bool {
	for _, kw := range r.Keywords {
		if keywordMatch(rec, kw) {
			return true
		}
	}
	for _, p := range r.Providers {
		if strings.EqualFold(p, rec.Provider) {
			return true
		}
	}
	return r.Criteria != nil && r.Criteria.matches(rec)
}

// keywordMatch looks for the keyword, case-insensitively, in the record's
// name, description, and tags.
func keywordMatch(rec *catalog.ModelRecord, keyword string) bool {
	kw := strings.ToLower(strings.TrimSpace(keyword))
	if kw == "" {
		return false
	}
	if strings.Contains(strings.ToLower(rec.Name), kw) ||
		strings.Contains(strings.ToLower(rec.Description), kw) {
		return true
	}
	for _, tag := range rec.Tags {
		if strings.Contains(strings.ToLower(tag), kw) {
			return true
		}
	}
	return false
}

// builtinRules is the compiled-in category table. A deployment can replace
// it wholesale with a YAML file (see LoadRules).
var builtinRules = []CategoryRule{
	{Name: "chat", Keywords: []string{"chat", "instruct", "conversational", "assistant"}},
	{Name: "code", Keywords: []string{"code", "coder", "sql", "programming"}},
	{Name: "embedding", Keywords: []string{"embed", "sentence-similarity", "feature-extraction"}},
	{Name: "vision", Keywords: []string{"vision", "image", "multimodal", "ocr"}},
	{Name: "audio", Keywords: []string{"audio", "speech", "whisper", "voice"}},
	{Name: "text-generation", Criteria: &Criteria{Task: "text-generation"}},
	{Name: "long-context", Criteria: &Criteria{MinContextLength: 100000}},
	{Name: "commercial", Providers: []string{"openai", "anthropic", "google", "mistral", "groq"}},
	{Name: "priced", Criteria: &Criteria{HasPricing: true}},
}

// BuiltinRules returns a copy of the compiled-in category table.
func BuiltinRules() []CategoryRule {
	return append([]CategoryRule(nil), builtinRules...)
}

// LoadRules reads a category rule table from a YAML file. The file
// replaces the builtin table wholesale.
func LoadRules(path string) ([]CategoryRule, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapPersist("read", path, err)
	}

	var rules []CategoryRule
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return nil, errors.WrapValidation("categories", err)
	}
	if err := validateRules(rules); err != nil {
		return nil, err
	}
	return rules, nil
}

func validateRules(rules []CategoryRule) error {
	seen := make(map[string]bool, len(rules))
	for _, r := range rules {
		if err := r.Validate(); err != nil {
			return err
		}
		if seen[r.Name] {
			return errors.NewValidationError("rules", r.Name, "duplicate category name")
		}
		seen[r.Name] = true
	}
	return nil
}

// Categorize assigns matching category tags to every record in place and
// returns how many records fell in each category. Records matching no rule
// stay untagged; earlier category assignments are replaced.
func (f *Filter) Categorize(models []catalog.ModelRecord) map[string]int {
	if len(models) == 0 {
		return nil
	}

	dist := make(map[string]int)
	for i := range models {
		var cats []string
		for _, rule := range f.rules {
			if rule.Matches(&models[i]) {
				cats = append(cats, rule.Name)
				dist[rule.Name]++
			}
		}
		models[i].Categories = catalog.NormalizeSet(cats)
	}
	return dist
}

// ClusterByEmbedding greedily groups records whose embedding cosine
// similarity to a group's seed clears the threshold
// (constants.EmbeddingClusterThreshold when zero). Groups are unlabeled
// and ordered by first appearance; records without an embedding end up in
// singleton groups.
func ClusterByEmbedding(models []catalog.ModelRecord, threshold float64) [][]catalog.ModelRecord {
	if threshold <= 0 {
		threshold = constants.EmbeddingClusterThreshold
	}

	groups := make([][]catalog.ModelRecord, 0, len(models))
	visited := make([]bool, len(models))
	for i := range models {
		if visited[i] {
			continue
		}
		visited[i] = true
		group := []catalog.ModelRecord{models[i]}
		for j := i + 1; j < len(models); j++ {
			if visited[j] {
				continue
			}
			if embedding.CosineSimilarity(models[i].Embedding, models[j].Embedding) >= threshold {
				visited[j] = true
				group = append(group, models[j])
			}
		}
		groups = append(groups, group)
	}
	return groups
}
