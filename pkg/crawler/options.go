package crawler

import (
	"github.com/seolens/seolens/internal/checkpoint"
	"github.com/seolens/seolens/internal/logger"
	"github.com/seolens/seolens/internal/politeness"
)

// Option configures a Crawler.
type Option func(*Crawler) error

// WithConfig sets the crawl configuration.
func WithConfig(cfg Config) Option {
	return func(c *Crawler) error {
		if err := cfg.Validate(); err != nil {
			return err
		}
		c.cfg = cfg
		return nil
	}
}

// WithLogger sets the logger.
func WithLogger(log *logger.Logger) Option {
	return func(c *Crawler) error {
		c.log = log
		return nil
	}
}

// WithFetcher replaces the browser-backed fetcher. Used by tests and by
// callers embedding the engine behind their own transport.
func WithFetcher(f Fetcher) Option {
	return func(c *Crawler) error {
		c.fetcher = f
		return nil
	}
}

// WithPageStore replaces the default file-backed page store.
func WithPageStore(store checkpoint.PageStore) Option {
	return func(c *Crawler) error {
		c.pages = store
		return nil
	}
}

// WithGate replaces the politeness gate.
func WithGate(gate *politeness.Gate) Option {
	return func(c *Crawler) error {
		c.gate = gate
		return nil
	}
}
