// Package enrich runs optional post-crawl enrichment stages. Stages
// execute after the main crawl loop and never affect its outcome.
package enrich

import (
	"context"

	"github.com/seolens/seolens/internal/browser"
	"github.com/seolens/seolens/internal/logger"
)

// PerfSample holds navigation timing collected from the browser's
// Performance API, in milliseconds.
type PerfSample struct {
	TTFB             float64 `json:"ttfb_ms"`
	DOMContentLoaded float64 `json:"dom_content_loaded_ms"`
	Load             float64 `json:"load_ms"`
}

// perfJS reads the navigation timing entry for the current document.
const perfJS = `() => {
	const e = performance.getEntriesByType("navigation")[0];
	if (!e) return null;
	return {
		ttfb: e.responseStart - e.requestStart,
		dcl: e.domContentLoadedEventEnd - e.startTime,
		load: e.loadEventEnd - e.startTime,
	};
}`

// Sampler collects performance timings by re-visiting pages through the
// browser pool.
type Sampler struct {
	pool *browser.Pool
	log  *logger.Logger
}

// NewSampler creates a performance sampler over the given pool.
func NewSampler(pool *browser.Pool, log *logger.Logger) *Sampler {
	if log == nil {
		log = logger.NewDefault()
	}
	return &Sampler{pool: pool, log: log.WithComponent("enrich")}
}

// Sample visits up to limit URLs and returns timings keyed by URL.
// Individual failures are logged and skipped; Sample itself only stops
// on context cancellation.
func (s *Sampler) Sample(ctx context.Context, urls []string, limit int) map[string]*PerfSample {
	if limit <= 0 || limit > len(urls) {
		limit = len(urls)
	}

	samples := make(map[string]*PerfSample)
	for _, url := range urls[:limit] {
		select {
		case <-ctx.Done():
			return samples
		default:
		}

		sample, err := s.sampleOne(ctx, url)
		if err != nil {
			s.log.WithURL(url).WithError(err).Debug("performance sample failed")
			continue
		}
		if sample != nil {
			samples[url] = sample
		}
	}
	return samples
}

// sampleOne navigates one URL and reads its navigation timing.
func (s *Sampler) sampleOne(ctx context.Context, url string) (*PerfSample, error) {
	slot, err := s.pool.Acquire(ctx)
	if err != nil {
		return nil, err
	}
	defer s.pool.Release(slot)

	if _, err := slot.Handle().Navigate(ctx, url); err != nil {
		slot.RecordResult(true)
		return nil, err
	}

	val, err := slot.Handle().Evaluate(perfJS)
	if err != nil {
		slot.RecordResult(true)
		return nil, err
	}
	slot.RecordResult(false)

	if val.Nil() {
		return nil, nil
	}
	return &PerfSample{
		TTFB:             val.Get("ttfb").Num(),
		DOMContentLoaded: val.Get("dcl").Num(),
		Load:             val.Get("load").Num(),
	}, nil
}
