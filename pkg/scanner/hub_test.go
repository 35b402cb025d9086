package scanner

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/modelscout/modelscout/internal/providers"
	"github.com/modelscout/modelscout/internal/statestore"
	"github.com/modelscout/modelscout/internal/storage"
	"github.com/modelscout/modelscout/pkg/catalog"
	"github.com/modelscout/modelscout/pkg/errors"
)

func hubRecords(n int) []catalog.ModelRecord {
	recs := make([]catalog.ModelRecord, n)
	for i := range recs {
		recs[i] = catalog.ModelRecord{
			ID:        fmt.Sprintf("org/model-%04d", i),
			Provider:  "huggingface",
			Downloads: int64(1000 - i),
		}
	}
	return recs
}

func newHubScanner(t *testing.T, client providers.Client, opts ...Option) (*Scanner, *storage.Store, *statestore.Store) {
	t.Helper()

	store, err := storage.New(t.TempDir())
	require.NoError(t, err)
	state, err := statestore.Open(filepath.Join(t.TempDir(), "state.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = state.Close() })

	base := []Option{
		WithClientFactory(singleClient(client)),
		WithStrategyLookup(fixedStrategy(providers.DiscoveryPaginated, 100)),
		WithStorage(store),
		WithStateStore(state),
		WithFetchBackoff(time.Millisecond, 4*time.Millisecond),
	}
	return New(append(base, opts...)...), store, state
}

func readStreamRecords(t *testing.T, store *storage.Store, name string) []catalog.ModelRecord {
	t.Helper()
	var recs []catalog.ModelRecord
	require.NoError(t, store.ReadStream(name, func(line []byte) error {
		var rec catalog.ModelRecord
		if err := json.Unmarshal(line, &rec); err != nil {
			return err
		}
		recs = append(recs, rec)
		return nil
	}))
	return recs
}

func TestHubScanStreamsWholeListing(t *testing.T) {
	client := &fakeClient{provider: "huggingface", hub: hubRecords(250)}
	s, store, state := newHubScanner(t, client)

	res, err := s.ScanProvider(context.Background(), "huggingface", Options{})
	require.NoError(t, err)

	assert.Equal(t, int64(250), res.Stats.Scanned)
	assert.Equal(t, int64(300), res.Stats.FinalOffset, "offset advances by batch size")
	assert.Empty(t, res.Models, "hub scans stream instead of buffering")
	require.NotEmpty(t, res.Stream)

	recs := readStreamRecords(t, store, res.Stream)
	require.Len(t, recs, 250)
	assert.Equal(t, "org/model-0000", recs[0].ID)
	assert.NotEmpty(t, recs[0].NormalizedID)

	// Completed scans clear the resume cursor.
	_, ok, err := state.Cursor("huggingface")
	require.NoError(t, err)
	assert.False(t, ok)

	// Pages were fetched at 0, 100, 200, and the empty probe at 300.
	assert.Equal(t, []int64{0, 100, 200, 300}, client.requestedOffsets())
}

func TestHubScanMaxItemsPersistsCursor(t *testing.T) {
	client := &fakeClient{provider: "huggingface", hub: hubRecords(1000)}
	s, _, state := newHubScanner(t, client)

	res, err := s.ScanProvider(context.Background(), "huggingface", Options{MaxItems: 300})
	require.NoError(t, err)
	assert.Equal(t, int64(300), res.Stats.Scanned)

	offset, ok, err := state.Cursor("huggingface")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(300), offset)
}

func TestHubScanResumeNeverRefetchesBelowCursor(t *testing.T) {
	client := &fakeClient{provider: "huggingface", hub: hubRecords(1000)}
	s, _, state := newHubScanner(t, client)

	_, err := s.ScanProvider(context.Background(), "huggingface", Options{MaxItems: 300})
	require.NoError(t, err)

	client.mu.Lock()
	client.offsets = nil
	client.mu.Unlock()

	res, err := s.ScanProvider(context.Background(), "huggingface", Options{Resume: true, MaxItems: 200})
	require.NoError(t, err)
	assert.Equal(t, int64(200), res.Stats.Scanned)

	for _, off := range client.requestedOffsets() {
		assert.GreaterOrEqual(t, off, int64(300), "resumed scan fetched below the cursor")
	}

	offset, ok, err := state.Cursor("huggingface")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(500), offset)
}

func TestHubScanResumeDisabledStartsAtZero(t *testing.T) {
	client := &fakeClient{provider: "huggingface", hub: hubRecords(400)}
	s, _, _ := newHubScanner(t, client)

	_, err := s.ScanProvider(context.Background(), "huggingface", Options{MaxItems: 100})
	require.NoError(t, err)

	client.mu.Lock()
	client.offsets = nil
	client.mu.Unlock()

	_, err = s.ScanProvider(context.Background(), "huggingface", Options{MaxItems: 100})
	require.NoError(t, err)
	assert.Equal(t, []int64{0}, client.requestedOffsets())
}

func TestHubScanAppliesFilter(t *testing.T) {
	recs := hubRecords(200) // Downloads descend from 1000 to 801
	client := &fakeClient{provider: "huggingface", hub: recs}
	s, store, _ := newHubScanner(t, client)

	res, err := s.ScanProvider(context.Background(), "huggingface", Options{MinDownloads: 901})
	require.NoError(t, err)

	assert.Equal(t, int64(200), res.Stats.Scanned)
	assert.Equal(t, int64(100), res.Stats.Filtered)

	streamed := readStreamRecords(t, store, res.Stream)
	assert.Len(t, streamed, 100)
	for _, rec := range streamed {
		assert.GreaterOrEqual(t, rec.Downloads, int64(901))
	}
}

func TestHubScanErrorBudget(t *testing.T) {
	client := &fakeClient{provider: "huggingface", discoverErr: fmt.Errorf("503 upstream")}
	s, _, state := newHubScanner(t, client)

	res, err := s.ScanProvider(context.Background(), "huggingface", Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrErrorBudgetExceeded)

	// Budget is MaxRetries x multiplier; the overflowing attempt aborts.
	assert.Equal(t, int64(31), res.Stats.Failed)

	// Every failed window was skipped, never retried in place.
	offsets := client.requestedOffsets()
	for i := 1; i < len(offsets); i++ {
		assert.Greater(t, offsets[i], offsets[i-1])
	}

	// The abort persisted a resume point.
	_, ok, err := state.Cursor("huggingface")
	require.NoError(t, err)
	assert.True(t, ok)
}

func TestHubScanRecoversAfterTransientErrors(t *testing.T) {
	hub := hubRecords(200)
	var calls int
	var mu sync.Mutex

	client := &scriptedClient{fetch: func(opts providers.DiscoverOptions) ([]catalog.ModelRecord, error) {
		mu.Lock()
		calls++
		n := calls
		mu.Unlock()
		if n == 2 {
			return nil, fmt.Errorf("flaky")
		}
		start := opts.Offset
		if start >= int64(len(hub)) {
			return nil, nil
		}
		end := start + int64(opts.Limit)
		if end > int64(len(hub)) {
			end = int64(len(hub))
		}
		return hub[start:end], nil
	}}
	s, store, _ := newHubScanner(t, client)

	res, err := s.ScanProvider(context.Background(), "huggingface", Options{})
	require.NoError(t, err)

	// The failed window (offset 100) was skipped: 100 records lost, rest
	// collected.
	assert.Equal(t, int64(1), res.Stats.Failed)
	streamed := readStreamRecords(t, store, res.Stream)
	assert.Len(t, streamed, 100)
}

func TestHubScanStopRequest(t *testing.T) {
	client := &fakeClient{provider: "huggingface", hub: hubRecords(1000)}
	sink := &fakeSink{stopAfter: 2}
	s, _, state := newHubScanner(t, client, WithProgress(sink))

	res, err := s.ScanProvider(context.Background(), "huggingface", Options{SessionID: "session_x"})
	require.Error(t, err)
	assert.ErrorIs(t, err, errors.ErrStopped)
	assert.Equal(t, int64(200), res.Stats.Scanned, "stopped after two pages")

	offset, ok, err := state.Cursor("huggingface")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, int64(200), offset)
}

func TestHubScanContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := hubRecords(1000)

	var pages int
	var mu sync.Mutex
	client := &scriptedClient{fetch: func(opts providers.DiscoverOptions) ([]catalog.ModelRecord, error) {
		mu.Lock()
		pages++
		if pages == 3 {
			cancel()
		}
		mu.Unlock()
		return hub[opts.Offset : opts.Offset+int64(opts.Limit)], nil
	}}
	s, _, _ := newHubScanner(t, client)

	res, err := s.ScanProvider(ctx, "huggingface", Options{})
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, int64(300), res.Stats.Scanned, "partial progress is kept")
}

func TestHubScanRequiresStorage(t *testing.T) {
	client := &fakeClient{provider: "huggingface", hub: hubRecords(10)}
	s := New(
		WithClientFactory(singleClient(client)),
		WithStrategyLookup(fixedStrategy(providers.DiscoveryPaginated, 100)),
	)

	_, err := s.ScanProvider(context.Background(), "huggingface", Options{})
	assert.Error(t, err)
}

// scriptedClient delegates fetches to a closure.
type scriptedClient struct {
	fetch func(providers.DiscoverOptions) ([]catalog.ModelRecord, error)
}

var _ providers.Client = (*scriptedClient)(nil)

func (c *scriptedClient) Provider() string { return "scripted" }

func (c *scriptedClient) Initialize(context.Context) error { return nil }

func (c *scriptedClient) DiscoverModels(_ context.Context, opts providers.DiscoverOptions) ([]catalog.ModelRecord, error) {
	return c.fetch(opts)
}

func (c *scriptedClient) TestModel(context.Context, string, providers.TestMode) (*providers.TestReport, error) {
	return &providers.TestReport{}, nil
}

// fakeSink counts progress updates and asks for a stop after a threshold.
type fakeSink struct {
	mu        sync.Mutex
	updates   int
	stopAfter int
}

func (f *fakeSink) UpdateProgress(string, int64, int64, string) error {
	f.mu.Lock()
	f.updates++
	f.mu.Unlock()
	return nil
}

func (f *fakeSink) ShouldStop(string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stopAfter > 0 && f.updates >= f.stopAfter
}
