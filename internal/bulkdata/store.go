package bulkdata

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/fleveque/flystocks/internal/model"
)

// RefreshResult reports the outcome of a fetch + rebuild.
type RefreshResult struct {
	Total         int       `json:"total"`
	SourceVersion string    `json:"source_version"`
	Rebuilt       bool      `json:"rebuilt"`
	FetchFailed   bool      `json:"fetch_failed"`
	FetchError    string    `json:"fetch_error,omitempty"`
	Scan          ScanStats `json:"scan"`
}

// Store owns the current Index and rebuilds it from the Fetcher's file.
//
// Readers load the index through an atomic pointer and never wait on a
// rebuild: they keep the old index until the new one is swapped in whole.
// Rebuild requests with the same force flag collapse into one in-flight call
// whose result every waiter shares, and rebuildMu keeps at most one rebuild
// running at a time.
type Store struct {
	fetcher   *Fetcher
	logger    *zap.Logger
	tracer    trace.Tracer
	current   atomic.Pointer[Index]
	group     singleflight.Group
	rebuildMu sync.Mutex
}

// NewStore creates an empty Store. Nothing is loaded until first use.
func NewStore(fetcher *Fetcher, logger *zap.Logger) *Store {
	return &Store{
		fetcher: fetcher,
		logger:  logger,
		tracer:  otel.Tracer("github.com/fleveque/flystocks/internal/bulkdata"),
	}
}

// Current returns the loaded index, or nil. It never does I/O.
func (s *Store) Current() *Index {
	return s.current.Load()
}

// CacheStatus reports the cached file's metadata and validity without fetching.
func (s *Store) CacheStatus() (*model.CacheMetadata, bool) {
	return s.fetcher.Status()
}

// Ensure returns the current index, loading it on first use.
func (s *Store) Ensure(ctx context.Context) (*Index, error) {
	if ix := s.current.Load(); ix != nil {
		return ix, nil
	}
	if _, err := s.rebuild(ctx, false); err != nil {
		if ix := s.current.Load(); ix != nil {
			return ix, nil
		}
		return nil, err
	}
	if ix := s.current.Load(); ix != nil {
		return ix, nil
	}
	return nil, fmt.Errorf("%w: index not loaded", ErrSourceUnavailable)
}

// Refresh fetches the bulk file (always when force is set, otherwise only if
// the cache is stale) and rebuilds the index when the file changed.
//
// A failed fetch with a usable cache is not an error: the result carries
// FetchFailed and the index is built from, or stays on, the cached copy.
func (s *Store) Refresh(ctx context.Context, force bool) (RefreshResult, error) {
	return s.rebuild(ctx, force)
}

func (s *Store) rebuild(ctx context.Context, force bool) (RefreshResult, error) {
	key := "rebuild"
	if force {
		key = "rebuild:force"
	}

	// The shared call must not die with whichever caller happened to start it;
	// the fetch timeout still bounds it.
	detached := context.WithoutCancel(ctx)

	v, err, shared := s.group.Do(key, func() (any, error) {
		s.rebuildMu.Lock()
		defer s.rebuildMu.Unlock()
		return s.doRebuild(detached, force)
	})
	if shared {
		s.logger.Debug("joined in-flight rebuild", zap.Bool("force", force))
	}
	res, _ := v.(RefreshResult)
	return res, err
}

func (s *Store) doRebuild(ctx context.Context, force bool) (res RefreshResult, err error) {
	ctx, span := s.tracer.Start(ctx, "bulkdata.rebuild", trace.WithAttributes(attribute.Bool("force", force)))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	meta, fetchErr := s.fetcher.EnsureFresh(ctx, force)
	if meta == nil {
		return res, fetchErr
	}
	if fetchErr != nil {
		res.FetchFailed = true
		res.FetchError = fetchErr.Error()
	}
	res.SourceVersion = meta.SourceVersion

	cur := s.current.Load()
	if cur != nil && sameFile(cur.Metadata(), *meta) {
		res.Total = cur.Total()
		span.SetAttributes(attribute.Bool("rebuilt", false), attribute.Int("total", res.Total))
		return res, nil
	}

	ix, stats, err := BuildIndex(meta.FilePath, *meta, s.logger)
	res.Scan = stats
	if err != nil {
		if cur != nil {
			s.logger.Error("rebuilding index failed, keeping previous index",
				zap.String("previous_version", cur.Metadata().SourceVersion),
				zap.Error(err),
			)
			res.Total = cur.Total()
		}
		return res, fmt.Errorf("building index: %w", err)
	}

	s.current.Store(ix)
	res.Total = ix.Total()
	res.Rebuilt = true
	span.SetAttributes(
		attribute.Bool("rebuilt", true),
		attribute.Int("total", res.Total),
		attribute.String("source_version", meta.SourceVersion),
	)
	return res, nil
}

func sameFile(a, b model.CacheMetadata) bool {
	return a.FilePath == b.FilePath && a.ByteSize == b.ByteSize && a.DownloadedAt.Equal(b.DownloadedAt)
}
