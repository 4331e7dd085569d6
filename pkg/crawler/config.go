package crawler

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/seolens/seolens/internal/browser"
	"github.com/seolens/seolens/internal/politeness"
)

// Config holds crawl configuration.
type Config struct {
	// StartURL is the seed. Must be an absolute http(s) URL.
	StartURL string `yaml:"start_url" json:"start_url"`
	// OutputDir receives the checkpoint and per-page results.
	OutputDir string `yaml:"output_dir" json:"output_dir"`

	// MaxPages bounds the number of URLs that enter the crawl.
	MaxPages int `yaml:"max_pages" json:"max_pages"`
	// MaxDepth bounds BFS depth; 0 means unlimited.
	MaxDepth int `yaml:"max_depth" json:"max_depth"`
	// MaxConcurrent bounds in-flight fetches.
	MaxConcurrent int `yaml:"max_concurrent" json:"max_concurrent"`

	// Delay is the per-domain minimum delay between requests.
	Delay time.Duration `yaml:"delay" json:"delay"`
	// MaxDelay caps adaptive politeness escalation.
	MaxDelay time.Duration `yaml:"max_delay" json:"max_delay"`
	// RequestsPerSecond limits the global request rate.
	RequestsPerSecond float64 `yaml:"requests_per_second" json:"requests_per_second"`
	// Burst is the global limiter burst.
	Burst int `yaml:"burst" json:"burst"`

	// NavTimeout bounds one page navigation.
	NavTimeout time.Duration `yaml:"nav_timeout" json:"nav_timeout"`
	// AcquireTimeout bounds waiting for a free browser handle.
	AcquireTimeout time.Duration `yaml:"acquire_timeout" json:"acquire_timeout"`
	// PoolSize is the browser handle pool capacity.
	PoolSize int `yaml:"pool_size" json:"pool_size"`
	// Headless controls browser visibility.
	Headless bool `yaml:"headless" json:"headless"`

	// CheckpointEvery is the page interval between periodic checkpoints.
	CheckpointEvery int `yaml:"checkpoint_every" json:"checkpoint_every"`
	// Resume continues from an existing checkpoint when present.
	Resume bool `yaml:"resume" json:"resume"`

	// RespectRobots toggles robots.txt evaluation.
	RespectRobots bool `yaml:"respect_robots" json:"respect_robots"`
	// RobotsTimeout bounds one robots.txt fetch.
	RobotsTimeout time.Duration `yaml:"robots_timeout" json:"robots_timeout"`
	// UserAgent is presented to servers and matched against robots rules.
	UserAgent string `yaml:"user_agent" json:"user_agent"`

	// SamplePerformance enables the post-crawl timing stage.
	SamplePerformance bool `yaml:"sample_performance" json:"sample_performance"`
	// PerfSampleSize bounds how many pages the timing stage visits.
	PerfSampleSize int `yaml:"perf_sample_size" json:"perf_sample_size"`

	// KeepHTML stores raw page HTML in results and on disk.
	KeepHTML bool `yaml:"keep_html" json:"keep_html"`

	Verbose bool `yaml:"verbose" json:"verbose"`
	Debug   bool `yaml:"debug" json:"debug"`
}

// DefaultConfig returns production crawl defaults.
func DefaultConfig() Config {
	return Config{
		OutputDir:         "./crawl-output",
		MaxPages:          100,
		MaxDepth:          0,
		MaxConcurrent:     3,
		Delay:             1 * time.Second,
		MaxDelay:          30 * time.Second,
		RequestsPerSecond: 5,
		Burst:             5,
		NavTimeout:        30 * time.Second,
		AcquireTimeout:    30 * time.Second,
		PoolSize:          3,
		Headless:          true,
		CheckpointEvery:   10,
		RespectRobots:     true,
		RobotsTimeout:     10 * time.Second,
		UserAgent:         "seolens/1.0 (+https://github.com/seolens/seolens)",
		PerfSampleSize:    20,
	}
}

// LoadConfigFile reads a YAML or JSON config file into a Config layered
// over the defaults.
func LoadConfigFile(path string) (Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg, fmt.Errorf("read config: %w", err)
	}

	if err := yaml.Unmarshal(data, &cfg); err != nil {
		if jsonErr := json.Unmarshal(data, &cfg); jsonErr != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	}
	return cfg, nil
}

// Validate checks the configuration for usable values.
func (c *Config) Validate() error {
	if c.StartURL == "" {
		return fmt.Errorf("start URL is required")
	}
	if c.MaxPages <= 0 {
		return fmt.Errorf("max_pages must be positive")
	}
	if c.MaxDepth < 0 {
		return fmt.Errorf("max_depth must not be negative")
	}
	if c.MaxConcurrent <= 0 {
		return fmt.Errorf("max_concurrent must be positive")
	}
	if c.PoolSize <= 0 {
		return fmt.Errorf("pool_size must be positive")
	}
	if c.Delay < 0 || c.MaxDelay < c.Delay {
		return fmt.Errorf("delay bounds are inconsistent")
	}
	if c.OutputDir == "" {
		return fmt.Errorf("output_dir is required")
	}
	return nil
}

// browserConfig maps the crawl config onto the browser package.
func (c *Config) browserConfig() browser.Config {
	bc := browser.DefaultConfig()
	bc.Headless = c.Headless
	bc.UserAgent = c.UserAgent
	bc.NavTimeout = c.NavTimeout
	bc.PoolSize = c.PoolSize
	bc.AcquireTimeout = c.AcquireTimeout
	return bc
}

// politenessConfig maps the crawl config onto the politeness package.
func (c *Config) politenessConfig() politeness.Config {
	pc := politeness.DefaultConfig()
	pc.MinDelay = c.Delay
	pc.MaxDelay = c.MaxDelay
	pc.RequestsPerSecond = c.RequestsPerSecond
	pc.Burst = c.Burst
	pc.UserAgent = c.UserAgent
	pc.RobotsTimeout = c.RobotsTimeout
	pc.RespectRobots = c.RespectRobots
	return pc
}
