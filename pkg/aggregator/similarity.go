package aggregator

import (
	"strings"

	"github.com/modelscout/modelscout/pkg/catalog"
	"github.com/modelscout/modelscout/pkg/constants"
	"github.com/modelscout/modelscout/pkg/embedding"
)

// Signal weights for duplicate scoring. The embedding weight only enters
// the denominator when both records carry a vector; the other three are
// always evaluated.
const (
	weightIdentity   = 0.4
	weightName       = 0.3
	weightProvenance = 0.2
	weightEmbedding  = 0.1

	// foldedIdentityFactor discounts identities that only match after
	// case/whitespace folding, relative to raw-equal identifiers.
	foldedIdentityFactor = 0.9
)

// Similarity scores how likely two records describe the same model, in
// [0,1]. It is a weighted sum of identity, name, provenance, and embedding
// signals, normalized over the weights actually evaluated. Records with
// equal normalized identifiers always score at least the medium threshold:
// a shared identity is the definition of "same model" and must land both
// records in one cluster regardless of how far their names drifted.
func Similarity(a, b *catalog.ModelRecord) float64 {
	score := identitySignal(a, b)*weightIdentity +
		nameSimilarity(a.Name, b.Name)*weightName +
		provenanceSignal(a, b)*weightProvenance
	total := weightIdentity + weightName + weightProvenance

	if len(a.Embedding) > 0 && len(b.Embedding) > 0 {
		score += embedding.CosineSimilarity(a.Embedding, b.Embedding) * weightEmbedding
		total += weightEmbedding
	}

	score /= total

	if a.NormalizedID != "" && a.NormalizedID == b.NormalizedID && score < constants.ThresholdMedium {
		score = constants.ThresholdMedium
	}
	if score > 1 {
		score = 1
	}
	return score
}

// identitySignal scores identifier agreement: 1 for raw-equal ids, the
// folded factor when ids only agree after normalization, 0 otherwise.
func identitySignal(a, b *catalog.ModelRecord) float64 {
	if a.ID != "" && a.ID == b.ID {
		return 1
	}
	if a.NormalizedID != "" && a.NormalizedID == b.NormalizedID {
		return foldedIdentityFactor
	}
	return 0
}

// provenanceSignal scores provider and author agreement: 1 when both
// match, 0.5 when one does. Empty fields corroborate nothing.
func provenanceSignal(a, b *catalog.ModelRecord) float64 {
	matches := 0
	if a.Provider != "" && a.Provider == b.Provider {
		matches++
	}
	if a.Author != "" && a.Author == b.Author {
		matches++
	}
	switch matches {
	case 2:
		return 1
	case 1:
		return 0.5
	default:
		return 0
	}
}

// nameSimilarity is 1 − editDistance/maxLen over the case-folded names.
// Two empty names are identical.
func nameSimilarity(a, b string) float64 {
	a = strings.ToLower(strings.TrimSpace(a))
	b = strings.ToLower(strings.TrimSpace(b))

	longest := len(a)
	if len(b) > longest {
		longest = len(b)
	}
	if longest == 0 {
		return 1
	}
	return 1 - float64(levenshtein(a, b))/float64(longest)
}

// levenshtein computes the edit distance between two strings with the
// classic two-row dynamic program.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			cur[j] = min3(
				prev[j]+1,      // deletion
				cur[j-1]+1,     // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
