// Package bulkdata keeps a local copy of the FlyBase stocks bulk file and
// turns it into an in-memory index.
//
// The pipeline is Fetcher (download + cache) → BuildIndex (streaming parse) →
// Store (owns the current index and swaps in rebuilt ones).
package bulkdata

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	"go.uber.org/zap"

	"github.com/fleveque/flystocks/internal/model"
	"github.com/fleveque/flystocks/internal/storage"
)

// ErrFetchFailed wraps any transport, status, or timeout failure while
// downloading. The existing cache is never modified when this is returned.
var ErrFetchFailed = errors.New("bulk file fetch failed")

// ErrSourceUnavailable means the fetch failed and there is no cached copy to
// fall back on.
var ErrSourceUnavailable = errors.New("bulk data source unavailable")

var releasePattern = regexp.MustCompile(`FB\d{4}_\d{2}`)

var gzipMagic = []byte{0x1f, 0x8b}

// Fetcher ensures a reasonably fresh copy of the bulk file exists on disk.
type Fetcher struct {
	url     string
	cache   *storage.CacheDir
	client  *http.Client
	maxAge  time.Duration
	timeout time.Duration
	now     func() time.Time
	logger  *zap.Logger
}

// NewFetcher creates a Fetcher for url caching into cache.
func NewFetcher(url string, cache *storage.CacheDir, maxAge, timeout time.Duration, logger *zap.Logger) *Fetcher {
	return &Fetcher{
		url:     url,
		cache:   cache,
		client:  &http.Client{},
		maxAge:  maxAge,
		timeout: timeout,
		now:     time.Now,
		logger:  logger,
	}
}

// WithClock overrides the time source used for staleness checks.
func (f *Fetcher) WithClock(now func() time.Time) *Fetcher {
	f.now = now
	return f
}

// WithHTTPClient overrides the HTTP client.
func (f *Fetcher) WithHTTPClient(c *http.Client) *Fetcher {
	f.client = c
	return f
}

// Status reads the cache metadata without any network I/O. It returns nil
// metadata when nothing is cached.
func (f *Fetcher) Status() (*model.CacheMetadata, bool) {
	meta, err := f.cache.ReadMetadata()
	if err != nil {
		if !errors.Is(err, storage.ErrNoCache) {
			f.logger.Warn("reading cache metadata", zap.Error(err))
		}
		return nil, false
	}
	return meta, f.valid(meta)
}

func (f *Fetcher) valid(meta *model.CacheMetadata) bool {
	return meta != nil && meta.ByteSize > 0 && meta.Age(f.now()) < f.maxAge
}

// EnsureFresh returns the metadata of a usable cached file, downloading a new
// copy when the cache is missing, empty, stale, or force is set.
//
// When the download fails but an older copy exists, that copy's metadata is
// returned together with an error wrapping ErrFetchFailed, so callers can keep
// serving it. Without any copy the error also wraps ErrSourceUnavailable.
func (f *Fetcher) EnsureFresh(ctx context.Context, force bool) (*model.CacheMetadata, error) {
	current, valid := f.Status()
	if valid && !force {
		return current, nil
	}

	meta, err := f.download(ctx)
	if err == nil {
		return meta, nil
	}

	if current != nil && current.ByteSize > 0 {
		f.logger.Warn("fetch failed, serving cached bulk file",
			zap.String("source_version", current.SourceVersion),
			zap.Time("downloaded_at", current.DownloadedAt),
			zap.Error(err),
		)
		return current, err
	}
	return nil, fmt.Errorf("%w: %w", ErrSourceUnavailable, err)
}

// download streams the remote file into a temp file and swaps it into place.
func (f *Fetcher) download(ctx context.Context) (*model.CacheMetadata, error) {
	ctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	f.logger.Info("downloading bulk stock file", zap.String("url", f.url))
	start := f.now()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: creating request: %v", ErrFetchFailed, err)
	}
	req.Header.Set("User-Agent", "flystocks/1.0")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: HTTP %d for %s", ErrFetchFailed, resp.StatusCode, f.url)
	}

	tmp, err := f.cache.CreateTemp()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	tmpPath := tmp.Name()
	committed := false
	defer func() {
		if !committed {
			tmp.Close()
			f.cache.Remove(tmpPath)
		}
	}()

	body := bufio.NewReader(resp.Body)
	if head, err := body.Peek(len(gzipMagic)); err != nil || head[0] != gzipMagic[0] || head[1] != gzipMagic[1] {
		return nil, fmt.Errorf("%w: response is not a gzip file", ErrFetchFailed)
	}

	size, err := io.Copy(tmp, body)
	if err != nil {
		return nil, fmt.Errorf("%w: streaming body: %v", ErrFetchFailed, err)
	}
	if size == 0 {
		return nil, fmt.Errorf("%w: empty response body", ErrFetchFailed)
	}
	if err := tmp.Sync(); err != nil {
		return nil, fmt.Errorf("%w: syncing temp file: %v", ErrFetchFailed, err)
	}
	if err := tmp.Close(); err != nil {
		return nil, fmt.Errorf("%w: closing temp file: %v", ErrFetchFailed, err)
	}

	meta := &model.CacheMetadata{
		DownloadedAt:  f.now(),
		SourceVersion: sourceVersion(resp, f.url, f.now()),
		SourceURL:     f.url,
		ByteSize:      size,
	}
	err = f.cache.Commit(tmpPath, meta)
	switch {
	case errors.Is(err, storage.ErrMetadataNotSaved):
		// The new file is live; only its sidecar is stale.
		f.logger.Warn("bulk stock file cached without metadata", zap.Error(err))
	case err != nil:
		return nil, fmt.Errorf("%w: %v", ErrFetchFailed, err)
	}
	committed = true

	f.logger.Info("bulk stock file downloaded",
		zap.String("source_version", meta.SourceVersion),
		zap.Int64("bytes", size),
		zap.Duration("took", f.now().Sub(start)),
	)
	return meta, nil
}

// sourceVersion picks the FlyBase release tag (e.g. "FB2025_01") from the
// final URL, the Content-Disposition header, or the configured URL. Without a
// tag it falls back to Last-Modified, then the download date.
func sourceVersion(resp *http.Response, configured string, now time.Time) string {
	candidates := []string{resp.Header.Get("Content-Disposition"), configured}
	if resp.Request != nil && resp.Request.URL != nil {
		candidates = append([]string{resp.Request.URL.String()}, candidates...)
	}
	for _, c := range candidates {
		if tag := releasePattern.FindString(c); tag != "" {
			return tag
		}
	}
	if lm := resp.Header.Get("Last-Modified"); lm != "" {
		if t, err := http.ParseTime(lm); err == nil {
			return t.UTC().Format("2006-01-02")
		}
	}
	return now.UTC().Format("2006-01-02")
}
