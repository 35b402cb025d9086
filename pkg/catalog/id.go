package catalog

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"

	"golang.org/x/text/cases"
)

// NormalizeID folds a raw model identifier into its canonical comparison
// form: Unicode case folding, surrounding whitespace trimmed, and internal
// whitespace runs collapsed to single hyphens.
func NormalizeID(id string) string {
	folded := cases.Fold().String(strings.TrimSpace(id))
	fields := strings.Fields(folded)
	if len(fields) == 0 {
		return ""
	}
	return strings.Join(fields, "-")
}

// ComputeModelHash derives the content hash from the record's identity
// fields: id, name, provider, author, and task. The same identity always
// produces the same hash.
func ComputeModelHash(r *ModelRecord) string {
	h := sha256.New()
	for _, part := range []string{r.ID, r.Name, r.Provider, r.Author, r.Task} {
		h.Write([]byte(part))
		h.Write([]byte{0}) // field separator so "ab"+"c" != "a"+"bc"
	}
	return hex.EncodeToString(h.Sum(nil))
}
