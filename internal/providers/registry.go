package providers

import (
	"fmt"
	"sort"
	"sync"

	"github.com/modelscout/modelscout/pkg/errors"
)

// Factory builds a Client from configuration. Provider packages register
// their factory in an init function.
type Factory func(cfg Config) Client

var (
	mu        sync.RWMutex
	factories = make(map[string]Factory)
)

// Register adds a factory under a provider name. Registering the same name
// twice panics: the variant set is closed and a duplicate means two packages
// claim the same provider.
func Register(name string, factory Factory) {
	mu.Lock()
	defer mu.Unlock()

	if factory == nil {
		panic("providers: Register called with nil factory for " + name)
	}
	if _, dup := factories[name]; dup {
		panic("providers: Register called twice for " + name)
	}
	factories[name] = factory
}

// New builds a client for a registered provider name.
func New(name string, cfg Config) (Client, error) {
	mu.RLock()
	factory, ok := factories[name]
	mu.RUnlock()

	if !ok {
		return nil, fmt.Errorf("%w: %q", errors.ErrProviderNotFound, name)
	}
	return factory(cfg), nil
}

// Has reports whether a provider name is registered.
func Has(name string) bool {
	mu.RLock()
	defer mu.RUnlock()
	_, ok := factories[name]
	return ok
}

// List returns the registered provider names, sorted.
func List() []string {
	mu.RLock()
	defer mu.RUnlock()

	names := make([]string, 0, len(factories))
	for name := range factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
