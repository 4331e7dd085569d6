// Package crawler implements a resumable, concurrency-bounded BFS
// crawl engine over a pooled headless browser.
package crawler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/seolens/seolens/internal/browser"
	"github.com/seolens/seolens/internal/checkpoint"
	"github.com/seolens/seolens/internal/enrich"
	crawlerrors "github.com/seolens/seolens/internal/errors"
	"github.com/seolens/seolens/internal/logger"
	"github.com/seolens/seolens/internal/metrics"
	"github.com/seolens/seolens/internal/politeness"
)

// Crawler runs a BFS crawl from a seed URL. The scheduler itself is
// single-threaded; fetches run on worker goroutines bounded by a
// semaphore sized MaxConcurrent.
type Crawler struct {
	cfg     Config
	log     *logger.Logger
	fetcher Fetcher
	gate    *politeness.Gate
	pages   checkpoint.PageStore
	ckpt    *checkpoint.FileStore
	stats   *metrics.Collector
	sem     *semaphore.Weighted

	pool *browser.Pool // nil when a custom Fetcher is injected

	seed     string
	frontier *frontier
	visited  *visitedSet
	results  map[string]*PageResult

	startedAt time.Time
	resumed   bool
	sinceCkpt int
	exhausted int
	fatalErr  error
}

// maxConsecutiveExhaustion is how many pool-exhausted fetches in a row
// abort the crawl. A single timeout is contained to its URL; a streak
// means the pool is wedged.
const maxConsecutiveExhaustion = 5

// New creates a crawler from options.
func New(opts ...Option) (*Crawler, error) {
	c := &Crawler{cfg: DefaultConfig()}
	for _, opt := range opts {
		if err := opt(c); err != nil {
			return nil, err
		}
	}
	if err := c.cfg.Validate(); err != nil {
		return nil, err
	}

	if c.log == nil {
		level := logger.InfoLevel
		if c.cfg.Debug {
			level = logger.DebugLevel
		}
		c.log = logger.New(logger.Config{Level: level, Pretty: true})
	}
	if c.gate == nil {
		c.gate = politeness.NewGate(c.cfg.politenessConfig())
	}

	ckpt, err := checkpoint.NewFileStore(c.cfg.OutputDir)
	if err != nil {
		return nil, err
	}
	c.ckpt = ckpt

	if c.pages == nil {
		pages, err := checkpoint.NewFilePageStore(c.cfg.OutputDir)
		if err != nil {
			return nil, err
		}
		c.pages = pages
	}

	c.stats = metrics.New()
	c.sem = semaphore.NewWeighted(int64(c.cfg.MaxConcurrent))
	c.frontier = newFrontier()
	c.visited = newVisitedSet(uint(c.cfg.MaxPages) * 4)
	c.results = make(map[string]*PageResult)
	return c, nil
}

// outcome carries one finished fetch back to the scheduler.
type outcome struct {
	entry  checkpoint.Entry
	result *PageResult
	err    error
}

// Start runs the crawl to completion or cancellation and returns the
// collected results keyed by normalized URL. A malformed seed is fatal.
// On cancellation the current state is persisted synchronously as a
// paused checkpoint before returning.
func (c *Crawler) Start(ctx context.Context) (map[string]*PageResult, error) {
	seed, err := NormalizeURL(c.cfg.StartURL)
	if err != nil {
		return nil, fmt.Errorf("invalid start URL: %w", err)
	}
	c.seed = seed
	c.startedAt = time.Now().UTC()

	if c.fetcher == nil {
		backend, err := browser.NewRodBackend(c.cfg.browserConfig())
		if err != nil {
			return nil, fmt.Errorf("start browser: %w", err)
		}
		c.pool = browser.NewPool(backend, c.cfg.browserConfig(), c.log)
		defer c.pool.Close()
		c.fetcher = newBrowserFetcher(c.pool, c.stats, c.log, c.cfg.KeepHTML)
	}
	defer c.pages.Close()

	if c.cfg.Resume {
		c.restore(seed)
	}
	if !c.resumed {
		c.frontier.Push(seed, 0)
	}

	c.log.Infof("starting crawl of %s (max %d pages, %d workers)", seed, c.cfg.MaxPages, c.cfg.MaxConcurrent)

	for {
		select {
		case <-ctx.Done():
			c.saveCheckpoint(checkpoint.StatusPaused)
			c.logSummary()
			return c.results, ctx.Err()
		default:
		}

		if c.visited.Len() >= c.cfg.MaxPages || c.frontier.Len() == 0 {
			break
		}

		batch := c.nextBatch()
		if len(batch) == 0 {
			continue
		}

		for _, out := range c.runBatch(ctx, batch) {
			c.handleOutcome(out)
		}
		if c.fatalErr != nil {
			c.saveCheckpoint(checkpoint.StatusPaused)
			c.logSummary()
			return c.results, c.fatalErr
		}
	}

	c.saveCheckpoint(checkpoint.StatusCompleted)
	c.enrichResults(ctx)
	c.logSummary()
	return c.results, nil
}

// restore loads a prior checkpoint and the pages already crawled.
func (c *Crawler) restore(seed string) {
	rec := checkpoint.Load(c.ckpt.Path())
	if rec == nil {
		c.log.Debug("no checkpoint found, starting fresh")
		return
	}
	if rec.Config.StartURL != seed {
		c.log.Warnf("checkpoint is for %s, starting fresh", rec.Config.StartURL)
		return
	}

	c.visited.Restore(rec.VisitedURLs)
	c.frontier.Restore(rec.Queue)
	if !rec.Progress.StartedAt.IsZero() {
		c.startedAt = rec.Progress.StartedAt
	}

	records, err := c.pages.LoadAll()
	if err != nil {
		c.log.WithError(err).Warn("could not reload page results")
	}
	for _, pr := range records {
		c.results[pr.URL] = &PageResult{
			URL:           pr.URL,
			FinalURL:      pr.FinalURL,
			StatusCode:    pr.StatusCode,
			FetchDuration: time.Duration(pr.FetchDurationMS) * time.Millisecond,
			Links:         pr.Links,
			HTML:          pr.HTML,
			Meta:          pr.Meta,
		}
	}

	c.resumed = true
	c.log.Infof("resumed: %d visited, %d queued, %d results reloaded",
		c.visited.Len(), c.frontier.Len(), len(c.results))
}

// nextBatch pops up to MaxConcurrent eligible entries, marking each
// visited at dequeue time. Entries already visited, beyond the depth
// bound, or denied by robots are dropped.
func (c *Crawler) nextBatch() []checkpoint.Entry {
	var batch []checkpoint.Entry
	for len(batch) < c.cfg.MaxConcurrent && c.visited.Len() < c.cfg.MaxPages {
		entry, ok := c.frontier.Pop()
		if !ok {
			break
		}
		if c.visited.Has(entry.URL) {
			continue
		}
		if c.cfg.MaxDepth > 0 && entry.Depth > c.cfg.MaxDepth {
			continue
		}
		if !c.gate.Allow(entry.URL) {
			c.log.WithURL(entry.URL).Debug("blocked by robots.txt")
			continue
		}
		c.visited.Add(entry.URL)
		batch = append(batch, entry)
	}
	return batch
}

// runBatch dispatches one batch of fetches and waits for all of them.
func (c *Crawler) runBatch(ctx context.Context, batch []checkpoint.Entry) []outcome {
	ch := make(chan outcome, len(batch))
	var wg sync.WaitGroup
	for _, entry := range batch {
		wg.Add(1)
		go func(entry checkpoint.Entry) {
			defer wg.Done()
			ch <- c.fetchOne(ctx, entry)
		}(entry)
	}
	wg.Wait()
	close(ch)

	outcomes := make([]outcome, 0, len(batch))
	for out := range ch {
		outcomes = append(outcomes, out)
	}
	return outcomes
}

// fetchOne runs one fetch under the concurrency semaphore and the
// politeness gate.
func (c *Crawler) fetchOne(ctx context.Context, entry checkpoint.Entry) outcome {
	if err := c.sem.Acquire(ctx, 1); err != nil {
		return outcome{entry: entry, err: err}
	}
	defer c.sem.Release(1)

	c.stats.IncInFlight()
	defer c.stats.DecInFlight()

	domain := Domain(entry.URL)
	if err := c.gate.Wait(ctx, domain); err != nil {
		return outcome{entry: entry, err: err}
	}

	start := time.Now()
	result, err := c.fetcher.Fetch(ctx, entry.URL)
	c.gate.Record(domain, err != nil, time.Since(start))
	return outcome{entry: entry, result: result, err: err}
}

// handleOutcome folds one finished fetch into scheduler state: record
// the result, persist it, enqueue discovered links, and checkpoint on
// the configured interval. Failures are contained to their URL.
func (c *Crawler) handleOutcome(out outcome) {
	if out.err != nil {
		cerr := crawlerrors.Categorize(out.err, out.entry.URL)
		if cerr.Type == crawlerrors.PoolExhausted {
			c.exhausted++
			if c.exhausted >= maxConsecutiveExhaustion {
				c.fatalErr = fmt.Errorf("browser pool wedged after %d consecutive acquisition timeouts: %w", c.exhausted, cerr)
			}
		}
		if cerr.Type != crawlerrors.Cancelled {
			c.stats.RecordFailure()
			c.log.WithURL(out.entry.URL).Warnf("fetch failed: %s", cerr.Type)
		}
		return
	}
	c.exhausted = 0

	result := out.result
	c.results[result.URL] = result
	c.stats.RecordPage(result.FetchDuration)
	c.log.PageEvent(result.URL, out.entry.Depth, result.StatusCode, result.FetchDuration)

	if err := c.pages.SavePage(c.toPageRecord(result)); err != nil {
		c.log.WithURL(result.URL).WithError(err).Warn("could not persist page")
	}

	c.enqueueLinks(result.Links, out.entry.Depth+1)

	c.sinceCkpt++
	if c.cfg.CheckpointEvery > 0 && c.sinceCkpt >= c.cfg.CheckpointEvery {
		c.saveCheckpoint(checkpoint.StatusRunning)
		c.sinceCkpt = 0
	}
}

// enqueueLinks pushes same-site, crawlable, unvisited links.
func (c *Crawler) enqueueLinks(links []string, depth int) {
	if c.cfg.MaxDepth > 0 && depth > c.cfg.MaxDepth {
		return
	}
	for _, link := range links {
		normalized, err := NormalizeURL(link)
		if err != nil {
			continue
		}
		if !Crawlable(normalized) || !SameSite(c.seed, normalized) {
			continue
		}
		if c.visited.Has(normalized) {
			continue
		}
		c.frontier.Push(normalized, depth)
	}
}

// toPageRecord converts a result to its persisted form.
func (c *Crawler) toPageRecord(result *PageResult) *checkpoint.PageRecord {
	rec := &checkpoint.PageRecord{
		URL:             result.URL,
		FinalURL:        result.FinalURL,
		StatusCode:      result.StatusCode,
		FetchDurationMS: result.FetchDuration.Milliseconds(),
		Links:           result.Links,
		Meta:            result.Meta,
		FetchedAt:       time.Now().UTC(),
	}
	if c.cfg.KeepHTML {
		rec.HTML = result.HTML
	}
	return rec
}

// saveCheckpoint persists the current crawl state.
func (c *Crawler) saveCheckpoint(status checkpoint.Status) {
	var maxDepth *int
	if c.cfg.MaxDepth > 0 {
		d := c.cfg.MaxDepth
		maxDepth = &d
	}

	rec := &checkpoint.Record{
		Status: status,
		Config: checkpoint.CrawlConfig{
			StartURL:  c.seed,
			MaxPages:  c.cfg.MaxPages,
			MaxDepth:  maxDepth,
			RateLimit: c.cfg.RequestsPerSecond,
		},
		Progress: checkpoint.Progress{
			PagesCrawled: len(c.results),
			StartedAt:    c.startedAt,
		},
		VisitedURLs: c.visited.URLs(),
		Queue:       c.frontier.Snapshot(),
	}
	if err := c.ckpt.Save(rec); err != nil {
		c.log.WithError(err).Error("could not save checkpoint")
	}
}

// enrichResults runs the optional performance sampling stage.
func (c *Crawler) enrichResults(ctx context.Context) {
	if !c.cfg.SamplePerformance || c.pool == nil || len(c.results) == 0 {
		return
	}

	urls := make([]string, 0, len(c.results))
	for url := range c.results {
		urls = append(urls, url)
	}

	sampler := enrich.NewSampler(c.pool, c.log)
	samples := sampler.Sample(ctx, urls, c.cfg.PerfSampleSize)
	for url, sample := range samples {
		c.results[url].Performance = sample
	}
	c.log.Infof("sampled performance for %d pages", len(samples))
}

// Summary returns crawl totals for reporting.
func (c *Crawler) Summary() Summary {
	snap := c.stats.Snapshot()
	return Summary{
		StartURL:  c.seed,
		Attempted: c.visited.Len(),
		Succeeded: len(c.results),
		Failed:    int(snap.PagesFailed),
		Duration:  snap.Elapsed,
		Resumed:   c.resumed,
	}
}

// logSummary emits the end-of-crawl summary line.
func (c *Crawler) logSummary() {
	s := c.Summary()
	c.log.Infof("crawl finished: %d attempted, %d succeeded, %d failed in %s",
		s.Attempted, s.Succeeded, s.Failed, s.Duration.Round(time.Millisecond))
}
