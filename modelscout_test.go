package modelscout

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelscout/modelscout/internal/providers"
	"github.com/modelscout/modelscout/internal/statestore"
	"github.com/modelscout/modelscout/internal/storage"
	"github.com/modelscout/modelscout/pkg/aggregator"
	"github.com/modelscout/modelscout/pkg/catalog"
	"github.com/modelscout/modelscout/pkg/errors"
	"github.com/modelscout/modelscout/pkg/filter"
	"github.com/modelscout/modelscout/pkg/logging"
	"github.com/modelscout/modelscout/pkg/progress"
	"github.com/modelscout/modelscout/pkg/scanner"
	"github.com/modelscout/modelscout/pkg/updater"
)

// testClient is a scripted provider client. A nil hub serves the fixed
// catalog in one call; a non-nil hub is sliced by offset like a paginated
// listing.
type testClient struct {
	name  string
	fixed []catalog.ModelRecord
	hub   []catalog.ModelRecord
	err   error

	mu    sync.Mutex
	calls int
}

var _ providers.Client = (*testClient)(nil)

func (c *testClient) Provider() string { return c.name }

func (c *testClient) Initialize(context.Context) error { return nil }

func (c *testClient) DiscoverModels(_ context.Context, opts providers.DiscoverOptions) ([]catalog.ModelRecord, error) {
	c.mu.Lock()
	c.calls++
	c.mu.Unlock()

	if c.err != nil {
		return nil, c.err
	}
	if c.hub == nil {
		return catalog.CloneModels(c.fixed), nil
	}

	start := opts.Offset
	if start >= int64(len(c.hub)) {
		return nil, nil
	}
	end := start + int64(opts.Limit)
	if end > int64(len(c.hub)) {
		end = int64(len(c.hub))
	}
	return catalog.CloneModels(c.hub[start:end]), nil
}

func (c *testClient) TestModel(context.Context, string, providers.TestMode) (*providers.TestReport, error) {
	return &providers.TestReport{Provider: c.name}, nil
}

// newTestScout assembles a scout over scripted clients, a temp artifact
// store, and a manually driven scheduler, bypassing the provider registry.
func newTestScout(t *testing.T, clients map[string]*testClient) *scout {
	t.Helper()

	dir := t.TempDir()
	store, err := storage.New(dir)
	require.NoError(t, err)
	state, err := statestore.Open(filepath.Join(dir, "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = state.Close() })

	logger := logging.NewNopLogger()
	s := &scout{
		cfg:    &config{},
		logger: *logger,
		store:  store,
		state:  state,
		hooks:  newHooks(),
	}

	s.tracker = progress.New(
		progress.WithStorage(store),
		progress.WithScheduler(progress.NewManualScheduler()),
		progress.WithLogger(*logger),
	)

	s.scanner = scanner.New(
		scanner.WithClientFactory(func(name string, _ providers.Config) (providers.Client, error) {
			c, ok := clients[name]
			if !ok {
				return nil, fmt.Errorf("no scripted client for %q", name)
			}
			return c, nil
		}),
		scanner.WithStrategyLookup(func(name string) providers.Strategy {
			if c, ok := clients[name]; ok && c.hub != nil {
				return providers.Strategy{Discovery: providers.DiscoveryPaginated, BatchSize: 100, Resumable: true}
			}
			return providers.Strategy{Discovery: providers.DiscoveryComplete, BatchSize: 100}
		}),
		scanner.WithStorage(store),
		scanner.WithStateStore(state),
		scanner.WithProgress(s.tracker),
	)

	s.aggregator, err = aggregator.New()
	require.NoError(t, err)
	s.filter, err = filter.New()
	require.NoError(t, err)
	s.updater, err = updater.New(state, s.discover, updater.WithStorage(store), updater.WithLogger(*logger))
	require.NoError(t, err)

	return s
}

func model(id, provider string, downloads int64) catalog.ModelRecord {
	return catalog.ModelRecord{
		ID:        id,
		Name:      id,
		Provider:  provider,
		Downloads: downloads,
	}
}

func TestNewDefaults(t *testing.T) {
	s, err := New()
	require.NoError(t, err)

	assert.NotNil(t, s.Sessions())

	_, err = s.Update(context.Background(), "openai")
	require.Error(t, err, "no state store is configured")
	assert.True(t, errors.IsValidation(err))

	require.NoError(t, s.Close())
	require.NoError(t, s.Close(), "closing twice is safe")
}

func TestNewOptionValidation(t *testing.T) {
	tests := []struct {
		name string
		opt  Option
	}{
		{"zero threshold", WithThreshold(0)},
		{"threshold above one", WithThreshold(1.2)},
		{"nil logger", WithLogger(nil)},
		{"nil limiter", WithRateLimiter(nil)},
		{"empty storage dir", WithStorageDir("")},
		{"empty state path", WithStateStore("")},
		{"non-positive interval", WithUpdateInterval(0)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := New(tt.opt)
			require.Error(t, err)
		})
	}

	_, err := New(WithProviders(map[string]ProviderConfig{"modelforge": {}}))
	require.Error(t, err)
	assert.True(t, errors.IsNotFound(err), "unknown provider names are rejected")
}

func TestNewWithStorageDir(t *testing.T) {
	dir := t.TempDir()
	client, err := New(WithStorageDir(dir))
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	sc, ok := client.(*scout)
	require.True(t, ok)
	assert.NotNil(t, sc.store)
	assert.NotNil(t, sc.state, "the state store defaults under the storage dir")
	assert.NotNil(t, sc.updater)
	assert.FileExists(t, filepath.Join(dir, "state.db"))
}

func TestNewWithStateStoreOnly(t *testing.T) {
	path := filepath.Join(t.TempDir(), "scout.db")
	client, err := New(WithStateStore(path))
	require.NoError(t, err)
	defer func() { _ = client.Close() }()

	sc, ok := client.(*scout)
	require.True(t, ok)
	assert.Nil(t, sc.store, "no artifact store without a storage dir")
	assert.NotNil(t, sc.state)
	assert.NotNil(t, sc.updater, "updates work with just catalog state")
}

func TestScanProviderFacade(t *testing.T) {
	client := &testClient{name: "openai", fixed: []catalog.ModelRecord{
		model("gpt-4", "openai", 0),
		model("gpt-4o", "openai", 500),
		model("tiny", "openai", 3),
	}}
	s := newTestScout(t, map[string]*testClient{"openai": client})

	res, err := s.ScanProvider(context.Background(), "openai", ScanMinDownloads(100))
	require.NoError(t, err)

	assert.Equal(t, int64(3), res.Stats.Scanned)
	assert.Equal(t, int64(2), res.Stats.Filtered)
	require.Len(t, res.Models, 1)
	assert.Equal(t, "gpt-4o", res.Models[0].ID)
}

func TestScanParallelCollectsFailures(t *testing.T) {
	clients := map[string]*testClient{
		"openai": {name: "openai", fixed: []catalog.ModelRecord{model("gpt-4", "openai", 100)}},
		"groq":   {name: "groq", err: fmt.Errorf("listing unavailable")},
	}
	s := newTestScout(t, clients)

	multi, err := s.Scan(context.Background(),
		ScanProviders("groq", "openai"),
		ScanParallel(),
		ScanContinueOnError(),
	)
	require.NoError(t, err, "parallel scans collect failures instead of returning them")

	require.Contains(t, multi.Results, "openai")
	assert.Len(t, multi.Results["openai"].Models, 1)
	assert.Contains(t, multi.Failures["groq"], "listing unavailable")
}

func TestAggregateFacade(t *testing.T) {
	s := newTestScout(t, nil)

	batches := []aggregator.SourceBatch{
		{Source: "openai", Models: []catalog.ModelRecord{model("gpt-4", "openai", 1000)}},
		{Source: "huggingface", Models: []catalog.ModelRecord{
			model("gpt-4", "openai", 500),
			model("llama-3", "meta", 200),
		}},
	}

	res, err := s.Aggregate(context.Background(), batches)
	require.NoError(t, err)
	assert.Len(t, res.Models, 2, "the shared identity merges")
	assert.Equal(t, 1, res.DedupStats.DuplicatesFound)

	strict, err := s.Aggregate(context.Background(), batches, AggregateThreshold(0.99))
	require.NoError(t, err)
	assert.Len(t, strict.Models, 3, "a stricter threshold keeps the pair apart")
}

func TestRefineFacade(t *testing.T) {
	s := newTestScout(t, nil)

	models := []catalog.ModelRecord{
		model("alpha", "openai", 500),
		model("beta", "openai", 50),
		model("gamma", "openai", 5),
	}

	res, err := s.Refine(context.Background(), models,
		RefineWhere(func(r *catalog.ModelRecord) bool { return r.Downloads >= 100 }),
		RefineKeepOutliers(),
	)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Input)
	assert.Equal(t, 1, res.Kept)
	assert.Equal(t, 2, res.Removed[filter.StageCustom])

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = s.Refine(ctx, models)
	require.ErrorIs(t, err, context.Canceled)
}

func TestUpdateFiresHooks(t *testing.T) {
	client := &testClient{name: "openai", fixed: []catalog.ModelRecord{model("alpha", "openai", 100)}}
	s := newTestScout(t, map[string]*testClient{"openai": client})

	var (
		added   []string
		updated [][2]int64
		removed []string
	)
	s.OnModelAdded(func(rec catalog.ModelRecord) { added = append(added, rec.ID) })
	s.OnModelUpdated(func(previous, current catalog.ModelRecord) {
		updated = append(updated, [2]int64{previous.Downloads, current.Downloads})
	})
	s.OnModelRemoved(func(rec catalog.ModelRecord) { removed = append(removed, rec.ID) })

	// Content diffing reports field-level modifications, not just
	// membership, so the updated hook can fire.
	ctx := context.Background()
	deep := UpdateStrategy(catalog.DetectContentDiff)

	delta, err := s.Update(ctx, "openai", deep)
	require.NoError(t, err)
	require.True(t, delta.Applied)
	assert.Equal(t, []string{"alpha"}, added)

	client.fixed = []catalog.ModelRecord{
		model("alpha", "openai", 999),
		model("beta", "openai", 50),
	}
	delta, err = s.Update(ctx, "openai", deep)
	require.NoError(t, err)
	require.True(t, delta.Applied)
	assert.Equal(t, []string{"alpha", "beta"}, added)
	require.Len(t, updated, 1)
	assert.Equal(t, [2]int64{100, 999}, updated[0], "hooks see the previous and current records")

	client.fixed = []catalog.ModelRecord{model("beta", "openai", 50)}
	delta, err = s.Update(ctx, "openai", deep)
	require.NoError(t, err)
	require.True(t, delta.Applied)
	assert.Equal(t, []string{"alpha"}, removed)

	fired := len(added) + len(updated) + len(removed)
	delta, err = s.Update(ctx, "openai", deep)
	require.NoError(t, err)
	assert.False(t, delta.Applied)
	assert.Equal(t, fired, len(added)+len(updated)+len(removed), "a quiet update fires nothing")
}

func TestUpdateOptionsReachUpdater(t *testing.T) {
	client := &testClient{name: "openai", fixed: []catalog.ModelRecord{model("alpha", "openai", 100)}}
	s := newTestScout(t, map[string]*testClient{"openai": client})
	ctx := context.Background()

	_, err := s.Update(ctx, "openai", UpdateStrategy("guesswork"))
	require.Error(t, err)
	assert.True(t, errors.IsValidation(err))

	delta, err := s.Update(ctx, "openai")
	require.NoError(t, err)
	require.True(t, delta.Applied)

	delta, err = s.Update(ctx, "openai", UpdateForce())
	require.NoError(t, err)
	assert.True(t, delta.Applied, "force applies a quiet refresh")
}
