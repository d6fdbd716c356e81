package bulkdata

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fleveque/flystocks/internal/model"
	"github.com/fleveque/flystocks/internal/storage"
)

func newTestStore(t *testing.T, srv *bulkServer) *Store {
	t.Helper()
	cache, err := storage.NewCacheDir(t.TempDir(), "stocks")
	require.NoError(t, err)
	f := NewFetcher(srv.fileURL(), cache, time.Hour, 5*time.Second, zap.NewNop())
	return NewStore(f, zap.NewNop())
}

func TestStore_EnsureLoadsOnce(t *testing.T) {
	srv := newBulkServer(t, gzipBytes(t, sampleFile()))
	s := newTestStore(t, srv)

	assert.Nil(t, s.Current())

	ix, err := s.Ensure(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, ix.Total())

	again, err := s.Ensure(context.Background())
	require.NoError(t, err)
	assert.Same(t, ix, again)
	assert.EqualValues(t, 1, srv.hits.Load())
}

func TestStore_EnsureWithoutSource(t *testing.T) {
	srv := newBulkServer(t, nil)
	srv.fail.Store(true)
	s := newTestStore(t, srv)

	_, err := s.Ensure(context.Background())
	require.ErrorIs(t, err, ErrSourceUnavailable)
	assert.Nil(t, s.Current())
}

func TestStore_RefreshSwapsIndex(t *testing.T) {
	srv := newBulkServer(t, gzipBytes(t, sampleFile()))
	s := newTestStore(t, srv)

	old, err := s.Ensure(context.Background())
	require.NoError(t, err)

	srv.setBody(gzipBytes(t, sampleFile("FBst0012345\tBloomington\tliving stock\tDmel\tw[1118]\t\t12345")))
	res, err := s.Refresh(context.Background(), true)
	require.NoError(t, err)
	assert.True(t, res.Rebuilt)
	assert.Equal(t, 6, res.Total)
	assert.Equal(t, "FB2025_01", res.SourceVersion)

	assert.NotSame(t, old, s.Current())
	assert.Equal(t, 5, old.Total(), "old index is never mutated")
	_, ok := s.Current().Get(model.RepoBDSC, "12345")
	assert.True(t, ok)
}

func TestStore_RefreshNotForcedKeepsIndex(t *testing.T) {
	srv := newBulkServer(t, gzipBytes(t, sampleFile()))
	s := newTestStore(t, srv)

	ix, err := s.Ensure(context.Background())
	require.NoError(t, err)

	res, err := s.Refresh(context.Background(), false)
	require.NoError(t, err)
	assert.False(t, res.Rebuilt)
	assert.Same(t, ix, s.Current())
	assert.EqualValues(t, 1, srv.hits.Load())
}

func TestStore_FetchFailureKeepsServing(t *testing.T) {
	srv := newBulkServer(t, gzipBytes(t, sampleFile()))
	s := newTestStore(t, srv)

	ix, err := s.Ensure(context.Background())
	require.NoError(t, err)

	srv.fail.Store(true)
	res, err := s.Refresh(context.Background(), true)
	require.NoError(t, err)
	assert.True(t, res.FetchFailed)
	assert.NotEmpty(t, res.FetchError)
	assert.Equal(t, 5, res.Total)
	assert.Same(t, ix, s.Current())

	_, valid := s.CacheStatus()
	assert.True(t, valid)

	got := ix.Search(mustRepo(t, model.RepoBDSC), "8056", 20)
	assert.Len(t, got, 2)
}

func TestStore_StaleCacheUsedWhenFetchFailsAtStartup(t *testing.T) {
	srv := newBulkServer(t, gzipBytes(t, sampleFile()))
	cache, err := storage.NewCacheDir(t.TempDir(), "stocks")
	require.NoError(t, err)

	// First process: download.
	f := NewFetcher(srv.fileURL(), cache, time.Hour, 5*time.Second, zap.NewNop())
	_, err = NewStore(f, zap.NewNop()).Ensure(context.Background())
	require.NoError(t, err)

	// Second process, two hours later, source down.
	srv.fail.Store(true)
	later := time.Now().Add(2 * time.Hour)
	f2 := NewFetcher(srv.fileURL(), cache, time.Hour, 5*time.Second, zap.NewNop()).
		WithClock(func() time.Time { return later })
	s2 := NewStore(f2, zap.NewNop())

	ix, err := s2.Ensure(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 5, ix.Total())
}

func TestStore_ConcurrentRefreshCollapses(t *testing.T) {
	srv := newBulkServer(t, gzipBytes(t, sampleFile()))
	srv.delay = 200 * time.Millisecond
	s := newTestStore(t, srv)

	var wg sync.WaitGroup
	results := make([]RefreshResult, 8)
	errs := make([]error, 8)
	for i := range results {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = s.Refresh(context.Background(), true)
		}(i)
	}
	wg.Wait()

	for i := range results {
		require.NoError(t, errs[i])
		assert.Equal(t, 5, results[i].Total)
	}
	assert.EqualValues(t, 1, srv.hits.Load(), "one download for concurrent refreshes")
}

func TestStore_CallerCancellationDoesNotAbortSharedRebuild(t *testing.T) {
	srv := newBulkServer(t, gzipBytes(t, sampleFile()))
	s := newTestStore(t, srv)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ix, err := s.Ensure(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, ix.Total())
}
