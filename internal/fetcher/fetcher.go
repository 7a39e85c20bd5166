package fetcher

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"
	"golang.org/x/sync/singleflight"

	"github.com/dshills/mindmup-mcp/internal/cache"
	"github.com/dshills/mindmup-mcp/internal/metrics"
	"github.com/dshills/mindmup-mcp/internal/remote"
	"github.com/dshills/mindmup-mcp/pkg/types"
)

const (
	// DefaultWorkers is the number of downloads allowed to run at once
	DefaultWorkers = 5

	// DefaultTimeout bounds a single download, independent of its callers
	DefaultTimeout = 60 * time.Second

	// DefaultMaxBytes rejects files larger than this before downloading
	DefaultMaxBytes = 100 << 20
)

// Config contains configuration for the fetcher
type Config struct {
	Workers  int           // Concurrent downloads (default: DefaultWorkers)
	Timeout  time.Duration // Per-download timeout (default: DefaultTimeout)
	MaxBytes int64         // Size limit checked against metadata (default: DefaultMaxBytes)
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = DefaultWorkers
	}
	if c.Timeout <= 0 {
		c.Timeout = DefaultTimeout
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = DefaultMaxBytes
	}
	return c
}

// Fetcher coordinates the download pipeline: cache -> metadata -> content -> cache
type Fetcher struct {
	store  remote.Store
	cache  *cache.Cache[*types.Payload]
	cfg    Config
	logger *zap.Logger

	// Worker pool limiting concurrent downloads
	sem   *semaphore.Weighted
	group singleflight.Group

	downloads atomic.Int64
	failures  atomic.Int64
}

// Stats reports fetcher counters
type Stats struct {
	Downloads     int64 `json:"downloads"`
	Failures      int64 `json:"failures"`
	CachedEntries int   `json:"cached_entries"`
	Workers       int   `json:"workers"`
}

// New creates a Fetcher reading from store and caching into c
func New(store remote.Store, c *cache.Cache[*types.Payload], cfg Config, logger *zap.Logger) *Fetcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	cfg = cfg.withDefaults()
	return &Fetcher{
		store:  store,
		cache:  c,
		cfg:    cfg,
		logger: logger,
		sem:    semaphore.NewWeighted(int64(cfg.Workers)),
	}
}

// Fetch returns the decoded payload for fileID, downloading it on a cache miss.
//
// Concurrent misses for the same id share one download. A caller whose ctx
// ends first gets ctx.Err(), but the download keeps running and its result is
// still cached.
func (f *Fetcher) Fetch(ctx context.Context, fileID string) (*types.Payload, error) {
	if p, ok := f.cache.Get(fileID); ok {
		return p, nil
	}

	// The download outlives the caller, bounded only by its own timeout
	dctx := context.WithoutCancel(ctx)
	ch := f.group.DoChan(fileID, func() (interface{}, error) {
		return f.download(dctx, fileID)
	})

	select {
	case <-ctx.Done():
		f.logger.Debug("caller abandoned fetch", zap.String("file_id", fileID), zap.Error(ctx.Err()))
		return nil, ctx.Err()
	case res := <-ch:
		if res.Err != nil {
			return nil, res.Err
		}
		return res.Val.(*types.Payload), nil
	}
}

// Invalidate drops the cached payload for fileID
func (f *Fetcher) Invalidate(fileID string) bool {
	return f.cache.Remove(fileID)
}

// Stats returns a snapshot of the fetcher counters
func (f *Fetcher) Stats() Stats {
	return Stats{
		Downloads:     f.downloads.Load(),
		Failures:      f.failures.Load(),
		CachedEntries: f.cache.Len(),
		Workers:       f.cfg.Workers,
	}
}

// Result is the outcome of one fetch in a batch
type Result struct {
	FileID  string
	Payload *types.Payload
	Err     error
}

// FetchMany fetches all ids concurrently. Individual failures are reported in
// their Result and never fail the batch; only ctx cancellation does.
func (f *Fetcher) FetchMany(ctx context.Context, fileIDs []string) ([]Result, error) {
	results := make([]Result, len(fileIDs))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(f.cfg.Workers)

	for i, id := range fileIDs {
		g.Go(func() error {
			p, err := f.Fetch(gctx, id)
			if err != nil && gctx.Err() != nil {
				return gctx.Err()
			}
			results[i] = Result{FileID: id, Payload: p, Err: err}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return results, nil
}

// download runs the pipeline for one file on a worker slot
func (f *Fetcher) download(ctx context.Context, fileID string) (*types.Payload, error) {
	ctx, cancel := context.WithTimeout(ctx, f.cfg.Timeout)
	defer cancel()

	if err := f.sem.Acquire(ctx, 1); err != nil {
		return nil, &types.FetchError{FileID: fileID, Err: fmt.Errorf("%w: no worker available: %v", types.ErrTransient, err)}
	}
	defer f.sem.Release(1)

	// A download that finished while we waited for a slot already cached it
	if p, ok := f.cache.Get(fileID); ok {
		return p, nil
	}

	metrics.FetchesInFlight.Inc()
	defer metrics.FetchesInFlight.Dec()
	f.downloads.Add(1)

	start := time.Now()
	payload, err := f.fetchPayload(ctx, fileID)
	elapsed := time.Since(start)

	if err != nil {
		f.failures.Add(1)
		metrics.FetchDuration.WithLabelValues(fetchStatus(err)).Observe(elapsed.Seconds())
		f.logger.Warn("fetch failed",
			zap.String("file_id", fileID),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		return nil, err
	}

	metrics.FetchDuration.WithLabelValues("ok").Observe(elapsed.Seconds())
	f.cache.Put(fileID, payload)
	f.logger.Info("fetched document",
		zap.String("file_id", fileID),
		zap.String("name", payload.Name),
		zap.Int("bytes", len(payload.Content)),
		zap.Duration("elapsed", elapsed))
	return payload, nil
}

func (f *Fetcher) fetchPayload(ctx context.Context, fileID string) (*types.Payload, error) {
	info, err := f.store.Metadata(ctx, fileID)
	if err != nil {
		return nil, &types.FetchError{FileID: fileID, Err: err}
	}
	if info.Size > f.cfg.MaxBytes {
		return nil, &types.FetchError{
			FileID: fileID,
			Err:    fmt.Errorf("%w: %d bytes (limit %d)", types.ErrTooLarge, info.Size, f.cfg.MaxBytes),
		}
	}

	body, err := f.store.Content(ctx, fileID)
	if err != nil {
		return nil, &types.FetchError{FileID: fileID, Err: err}
	}

	// Invalid UTF-8 sequences are dropped rather than failing the document
	text := strings.ToValidUTF8(string(body), "")
	if strings.TrimSpace(text) == "" {
		return nil, &types.EmptyContentError{FileID: fileID}
	}

	size := info.Size
	if size <= 0 {
		size = int64(len(body))
	}
	return &types.Payload{
		FileID:       fileID,
		Name:         info.Name,
		MimeType:     info.MimeType,
		Size:         size,
		ModifiedTime: info.ModifiedTime,
		Content:      text,
		FetchedAt:    time.Now(),
	}, nil
}

func fetchStatus(err error) string {
	switch {
	case errors.Is(err, types.ErrNotFound):
		return "not_found"
	case errors.Is(err, types.ErrPermissionDenied):
		return "permission_denied"
	case errors.Is(err, types.ErrTooLarge):
		return "too_large"
	case errors.Is(err, types.ErrEmptyContent):
		return "empty"
	case errors.Is(err, context.DeadlineExceeded):
		return "timeout"
	default:
		return "error"
	}
}
