// Package politeness enforces per-domain request pacing and robots.txt
// rules for the crawler.
package politeness

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

const (
	// maxJitter is the upper bound of the random delay added on top of
	// the per-domain minimum. Jitter is always positive.
	maxJitter = 500 * time.Millisecond

	// adaptiveWindow is the number of recent requests considered when
	// deciding whether to escalate or decay a domain's delay.
	adaptiveWindow = 20

	escalateErrorRate = 0.3
	decayErrorRate    = 0.05
	escalateFactor    = 1.5
	decayFactor       = 0.8
)

// Config holds politeness gate configuration.
type Config struct {
	// MinDelay is the base minimum delay between requests to one domain.
	MinDelay time.Duration
	// MaxDelay caps adaptive escalation.
	MaxDelay time.Duration
	// RequestsPerSecond limits the global request rate across all domains.
	RequestsPerSecond float64
	// Burst is the global limiter burst size.
	Burst int
	// UserAgent is sent on robots.txt fetches and matched against groups.
	UserAgent string
	// RobotsTimeout bounds a single robots.txt fetch.
	RobotsTimeout time.Duration
	// RespectRobots disables robots evaluation when false.
	RespectRobots bool
}

// DefaultConfig returns sensible politeness defaults.
func DefaultConfig() Config {
	return Config{
		MinDelay:          1 * time.Second,
		MaxDelay:          30 * time.Second,
		RequestsPerSecond: 5,
		Burst:             5,
		UserAgent:         "seolens/1.0",
		RobotsTimeout:     10 * time.Second,
		RespectRobots:     true,
	}
}

// domainState tracks pacing state for one domain.
type domainState struct {
	lastRequest time.Time
	delay       time.Duration

	// rolling outcome window
	windowTotal  int
	windowErrors int
}

// Gate coordinates request pacing: a global rate limiter, a per-domain
// adaptive minimum delay with jitter, and robots.txt evaluation.
type Gate struct {
	mu      sync.Mutex
	cfg     Config
	limiter *rate.Limiter
	domains map[string]*domainState
	robots  *RobotsCache
	rng     *rand.Rand
}

// NewGate creates a politeness gate from the given configuration.
func NewGate(cfg Config) *Gate {
	if cfg.MinDelay <= 0 {
		cfg.MinDelay = DefaultConfig().MinDelay
	}
	if cfg.MaxDelay < cfg.MinDelay {
		cfg.MaxDelay = DefaultConfig().MaxDelay
		if cfg.MaxDelay < cfg.MinDelay {
			cfg.MaxDelay = cfg.MinDelay
		}
	}
	if cfg.RequestsPerSecond <= 0 {
		cfg.RequestsPerSecond = DefaultConfig().RequestsPerSecond
	}
	if cfg.Burst <= 0 {
		cfg.Burst = 1
	}

	g := &Gate{
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), cfg.Burst),
		domains: make(map[string]*domainState),
		rng:     rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	if cfg.RespectRobots {
		g.robots = NewRobotsCache(cfg.RobotsTimeout, cfg.UserAgent)
	}
	return g
}

// Allow reports whether the URL passes the host's robots.txt rules.
// Always true when robots evaluation is disabled.
func (g *Gate) Allow(rawURL string) bool {
	if g.robots == nil {
		return true
	}
	return g.robots.Allow(rawURL)
}

// Wait blocks until a request to the given domain is permitted: the
// global limiter admits it and the domain's minimum delay plus jitter
// has elapsed since the previous dispatch. The dispatch slot is
// reserved under the lock before sleeping, so concurrent waiters for
// one domain space out behind each other instead of all reading the
// same last-request timestamp. The reservation stands even if the
// waiter is cancelled.
func (g *Gate) Wait(ctx context.Context, domain string) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return err
	}

	g.mu.Lock()
	state := g.state(domain)
	now := time.Now()
	dispatch := state.lastRequest.Add(state.delay)
	if dispatch.Before(now) {
		dispatch = now
	} else {
		dispatch = dispatch.Add(time.Duration(g.rng.Int63n(int64(maxJitter))))
	}
	state.lastRequest = dispatch
	g.mu.Unlock()

	if wait := time.Until(dispatch); wait > 0 {
		timer := time.NewTimer(wait)
		defer timer.Stop()
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
		}
	}
	return nil
}

// Record feeds a request outcome into the domain's adaptive delay. The
// delay escalates when the recent error rate crosses the escalation
// threshold and decays toward the base delay on sustained success.
func (g *Gate) Record(domain string, failed bool, latency time.Duration) {
	g.mu.Lock()
	defer g.mu.Unlock()

	state := g.state(domain)
	state.windowTotal++
	if failed {
		state.windowErrors++
	}

	if state.windowTotal < adaptiveWindow {
		// Escalate early on consecutive failures so a struggling domain
		// backs off before the window fills.
		if failed && state.windowErrors >= 3 {
			g.escalate(state)
		}
		return
	}

	errRate := float64(state.windowErrors) / float64(state.windowTotal)
	switch {
	case errRate > escalateErrorRate:
		g.escalate(state)
	case errRate < decayErrorRate:
		state.delay = time.Duration(float64(state.delay) * decayFactor)
		if state.delay < g.cfg.MinDelay {
			state.delay = g.cfg.MinDelay
		}
	}

	state.windowTotal = 0
	state.windowErrors = 0
}

// Delay returns the current adaptive delay for a domain.
func (g *Gate) Delay(domain string) time.Duration {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.state(domain).delay
}

// state returns the domain's pacing state, creating it at the base
// delay. Caller holds the mutex.
func (g *Gate) state(domain string) *domainState {
	s, ok := g.domains[domain]
	if !ok {
		s = &domainState{delay: g.cfg.MinDelay}
		g.domains[domain] = s
	}
	return s
}

// escalate multiplies the delay, clamped to MaxDelay. Caller holds the
// mutex.
func (g *Gate) escalate(s *domainState) {
	s.delay = time.Duration(float64(s.delay) * escalateFactor)
	if s.delay > g.cfg.MaxDelay {
		s.delay = g.cfg.MaxDelay
	}
}
