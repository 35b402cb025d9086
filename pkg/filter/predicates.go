package filter

import (
	"sort"
	"strings"

	"github.com/agentstation/utc"

	"github.com/modelscout/modelscout/pkg/catalog"
)

// predicates is the registry of named predicates available to
// Options.Predicates. RegisterPredicate extends it at init time.
var predicates = map[string]Predicate{
	"has-description": func(r *catalog.ModelRecord) bool {
		return strings.TrimSpace(r.Description) != ""
	},
	"has-capabilities": func(r *catalog.ModelRecord) bool {
		return len(r.Capabilities) > 0
	},
	"tested-ok": func(r *catalog.ModelRecord) bool {
		return r.Validation.Status == catalog.ValidationPassed
	},
	"recently-updated": func(r *catalog.ModelRecord) bool {
		ref := recencyReference(r)
		return !ref.IsZero() && utc.Now().Sub(ref) < recencyWindow
	},
	"has-pricing": func(r *catalog.ModelRecord) bool {
		return len(r.Pricing) > 0
	},
}

// RegisterPredicate adds a named predicate to the registry. Registering a
// taken name panics, matching the provider registry contract; call it from
// init only.
func RegisterPredicate(name string, p Predicate) {
	if p == nil {
		panic("filter: RegisterPredicate predicate is nil")
	}
	if _, dup := predicates[name]; dup {
		panic("filter: RegisterPredicate called twice for " + name)
	}
	predicates[name] = p
}

// PredicateNames lists the registered predicate names, sorted.
func PredicateNames() []string {
	names := make([]string, 0, len(predicates))
	for name := range predicates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
