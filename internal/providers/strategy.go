package providers

import (
	"os"
	"time"

	"github.com/goccy/go-yaml"

	"github.com/modelscout/modelscout/pkg/constants"
	"github.com/modelscout/modelscout/pkg/errors"
)

// Discovery describes how a provider's catalog is traversed.
type Discovery string

// Discovery styles.
const (
	// DiscoveryComplete providers return the whole catalog in one call.
	DiscoveryComplete Discovery = "complete"

	// DiscoveryPaginated providers are walked in offset/limit pages and
	// support resumable scans.
	DiscoveryPaginated Discovery = "paginated"

	// DiscoveryAPI providers need an Initialize probe before listing
	// (credential or endpoint discovery).
	DiscoveryAPI Discovery = "api_discovery"
)

// Strategy captures per-provider scan tuning: how the catalog is walked,
// how hard it may be hit, and how large it is expected to be.
type Strategy struct {
	Discovery      Discovery     `json:"discovery" yaml:"discovery"`
	BatchSize      int           `json:"batch_size" yaml:"batch_size"`
	MaxConcurrency int           `json:"max_concurrency" yaml:"max_concurrency"`
	Delay          time.Duration `json:"delay" yaml:"delay"`
	RequestsPerSec float64       `json:"requests_per_sec" yaml:"requests_per_sec"`
	Burst          int           `json:"burst" yaml:"burst"`
	ExpectedModels int           `json:"expected_models" yaml:"expected_models"`
	Resumable      bool          `json:"resumable" yaml:"resumable"`
}

// builtinStrategies is the compiled-in tuning table. Entries can be
// overridden per deployment with a YAML file (see LoadStrategies).
var builtinStrategies = map[string]Strategy{
	"huggingface": {
		Discovery:      DiscoveryPaginated,
		BatchSize:      100,
		MaxConcurrency: 4,
		Delay:          100 * time.Millisecond,
		RequestsPerSec: 10,
		Burst:          5,
		ExpectedModels: 100000,
		Resumable:      true,
	},
	"openai": {
		Discovery:      DiscoveryComplete,
		BatchSize:      100,
		MaxConcurrency: 1,
		RequestsPerSec: 5,
		Burst:          2,
		ExpectedModels: 75,
	},
	"anthropic": {
		Discovery:      DiscoveryComplete,
		BatchSize:      100,
		MaxConcurrency: 1,
		RequestsPerSec: 5,
		Burst:          2,
		ExpectedModels: 20,
	},
	"google": {
		Discovery:      DiscoveryAPI,
		BatchSize:      100,
		MaxConcurrency: 1,
		RequestsPerSec: 5,
		Burst:          2,
		ExpectedModels: 60,
	},
	"groq": {
		Discovery:      DiscoveryComplete,
		BatchSize:      100,
		MaxConcurrency: 1,
		RequestsPerSec: 5,
		Burst:          2,
		ExpectedModels: 30,
	},
	"mistral": {
		Discovery:      DiscoveryComplete,
		BatchSize:      100,
		MaxConcurrency: 1,
		RequestsPerSec: 5,
		Burst:          2,
		ExpectedModels: 60,
	},
	"artificialanalysis": {
		Discovery:      DiscoveryComplete,
		BatchSize:      100,
		MaxConcurrency: 1,
		RequestsPerSec: 1, // Daily quota of 1,000 requests
		Burst:          1,
		ExpectedModels: 250,
	},
}

// StrategyFor returns the tuning for a provider, falling back to
// conservative defaults for names without a builtin entry.
func StrategyFor(name string) Strategy {
	if s, ok := builtinStrategies[name]; ok {
		return s.withDefaults()
	}
	return Strategy{Discovery: DiscoveryComplete}.withDefaults()
}

// Strategies returns a copy of the full builtin table with defaults applied.
func Strategies() map[string]Strategy {
	out := make(map[string]Strategy, len(builtinStrategies))
	for name, s := range builtinStrategies {
		out[name] = s.withDefaults()
	}
	return out
}

// LoadStrategies overlays the builtin table with entries from a YAML file
// keyed by provider name. Entries replace the builtin strategy wholesale;
// zero fields take defaults.
func LoadStrategies(path string) (map[string]Strategy, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapPersist("read", path, err)
	}

	var overrides map[string]Strategy
	if err := yaml.Unmarshal(data, &overrides); err != nil {
		return nil, errors.WrapValidation("strategies", err)
	}

	merged := Strategies()
	for name, s := range overrides {
		merged[name] = s.withDefaults()
	}
	return merged, nil
}

// withDefaults fills zero fields with safe values.
func (s Strategy) withDefaults() Strategy {
	if s.Discovery == "" {
		s.Discovery = DiscoveryComplete
	}
	if s.BatchSize <= 0 {
		s.BatchSize = constants.DefaultBatchSize
	}
	if s.MaxConcurrency <= 0 {
		s.MaxConcurrency = 1
	}
	if s.RequestsPerSec <= 0 {
		s.RequestsPerSec = constants.DefaultRateLimit
	}
	if s.Burst <= 0 {
		s.Burst = constants.BurstSize
	}
	if s.Discovery == DiscoveryPaginated {
		s.Resumable = true
	}
	return s
}
