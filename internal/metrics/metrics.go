// Package metrics collects crawl statistics with atomic counters.
package metrics

import (
	"sync/atomic"
	"time"
)

// Collector tracks crawl counters. All methods are safe for concurrent
// use from fetch workers.
type Collector struct {
	pagesCrawled  atomic.Int64
	pagesFailed   atomic.Int64
	botDetections atomic.Int64
	sessionErrors atomic.Int64

	responseTimeSum atomic.Int64 // nanoseconds
	responseTimeNum atomic.Int64

	inFlight    atomic.Int64
	maxInFlight atomic.Int64

	startedAt time.Time
}

// New creates a collector stamped with the crawl start time.
func New() *Collector {
	return &Collector{startedAt: time.Now()}
}

// RecordPage records one successfully crawled page.
func (c *Collector) RecordPage(duration time.Duration) {
	c.pagesCrawled.Add(1)
	c.responseTimeSum.Add(int64(duration))
	c.responseTimeNum.Add(1)
}

// RecordFailure records one failed fetch.
func (c *Collector) RecordFailure() {
	c.pagesFailed.Add(1)
}

// RecordBotDetection records one detected challenge page.
func (c *Collector) RecordBotDetection() {
	c.botDetections.Add(1)
}

// RecordSessionError records one browser session failure.
func (c *Collector) RecordSessionError() {
	c.sessionErrors.Add(1)
}

// IncInFlight marks a fetch as started and updates the high-water mark.
func (c *Collector) IncInFlight() {
	n := c.inFlight.Add(1)
	for {
		prev := c.maxInFlight.Load()
		if n <= prev || c.maxInFlight.CompareAndSwap(prev, n) {
			return
		}
	}
}

// DecInFlight marks a fetch as finished.
func (c *Collector) DecInFlight() {
	c.inFlight.Add(-1)
}

// InFlight returns the number of fetches currently in progress.
func (c *Collector) InFlight() int64 {
	return c.inFlight.Load()
}

// MaxInFlight returns the highest concurrent fetch count observed.
func (c *Collector) MaxInFlight() int64 {
	return c.maxInFlight.Load()
}

// Snapshot is a point-in-time view of the collected stats.
type Snapshot struct {
	PagesCrawled    int64
	PagesFailed     int64
	BotDetections   int64
	SessionErrors   int64
	AvgResponseTime time.Duration
	Elapsed         time.Duration
}

// Snapshot returns the current stats.
func (c *Collector) Snapshot() Snapshot {
	s := Snapshot{
		PagesCrawled:  c.pagesCrawled.Load(),
		PagesFailed:   c.pagesFailed.Load(),
		BotDetections: c.botDetections.Load(),
		SessionErrors: c.sessionErrors.Load(),
		Elapsed:       time.Since(c.startedAt),
	}
	if n := c.responseTimeNum.Load(); n > 0 {
		s.AvgResponseTime = time.Duration(c.responseTimeSum.Load() / n)
	}
	return s
}
