package crawler

import (
	"context"
	"time"

	"github.com/seolens/seolens/internal/browser"
	crawlerrors "github.com/seolens/seolens/internal/errors"
	"github.com/seolens/seolens/internal/extract"
	"github.com/seolens/seolens/internal/logger"
	"github.com/seolens/seolens/internal/metrics"
)

// Fetcher retrieves one page. The scheduler only depends on this
// interface; tests substitute an in-memory site.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (*PageResult, error)
}

// browserFetcher fetches pages through the browser pool.
type browserFetcher struct {
	pool     *browser.Pool
	stats    *metrics.Collector
	log      *logger.Logger
	keepHTML bool
}

func newBrowserFetcher(pool *browser.Pool, stats *metrics.Collector, log *logger.Logger, keepHTML bool) *browserFetcher {
	return &browserFetcher{
		pool:     pool,
		stats:    stats,
		log:      log.WithComponent("fetcher"),
		keepHTML: keepHTML,
	}
}

// Fetch acquires a handle, navigates, and assembles the page result.
// Session failures are reported to the pool so its recovery ladder can
// act; every other failure stays scoped to this URL.
func (f *browserFetcher) Fetch(ctx context.Context, url string) (*PageResult, error) {
	slot, err := f.pool.Acquire(ctx)
	if err != nil {
		return nil, crawlerrors.Categorize(err, url)
	}
	defer f.pool.Release(slot)

	start := time.Now()
	nav, err := slot.Handle().Navigate(ctx, url)
	if err != nil {
		slot.RecordResult(true)
		cerr := crawlerrors.Categorize(err, url)
		if cerr.Type == crawlerrors.Session {
			f.stats.RecordSessionError()
			f.pool.RecordSessionError()
		}
		return nil, cerr
	}
	duration := time.Since(start)

	html, err := slot.Handle().HTML()
	if err != nil {
		slot.RecordResult(true)
		cerr := crawlerrors.Categorize(err, url)
		if cerr.Type == crawlerrors.Session {
			f.stats.RecordSessionError()
			f.pool.RecordSessionError()
		}
		return nil, cerr
	}

	if crawlerrors.DetectChallenge(nav.StatusCode, html) {
		slot.RecordResult(true)
		f.stats.RecordBotDetection()
		return nil, crawlerrors.NewBotDetectionError(url, nav.StatusCode)
	}

	if nav.StatusCode >= 400 {
		slot.RecordResult(true)
		return nil, crawlerrors.NewStatusError(url, nav.StatusCode)
	}
	slot.RecordResult(false)

	result := &PageResult{
		URL:           url,
		FinalURL:      nav.FinalURL,
		StatusCode:    nav.StatusCode,
		FetchDuration: duration,
	}
	if f.keepHTML {
		result.HTML = html
	}

	meta, err := extract.Extract(nav.FinalURL, html, nav.StatusCode, nav.LoadTime, nav.Headers)
	if err != nil {
		// Extraction failure is not a fetch failure; the page still counts.
		f.log.WithURL(url).WithError(err).Warn("metadata extraction failed")
	} else {
		result.Meta = meta
		result.Links = meta.Links
	}

	return result, nil
}
