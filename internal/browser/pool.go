package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	crawlerrors "github.com/seolens/seolens/internal/errors"
	"github.com/seolens/seolens/internal/logger"
)

// Health describes a slot's usability.
type Health int

const (
	// Healthy means the slot can serve fetches.
	Healthy Health = iota
	// Degraded means the slot works but is accumulating errors.
	Degraded
	// Unhealthy means the slot should be recycled.
	Unhealthy
)

// String returns the health name.
func (h Health) String() string {
	switch h {
	case Healthy:
		return "healthy"
	case Degraded:
		return "degraded"
	case Unhealthy:
		return "unhealthy"
	default:
		return "unknown"
	}
}

// Slot is a pooled browser handle with usage accounting. A slot is
// checked out to at most one fetch at a time.
type Slot struct {
	ID       int
	handle   Handle
	Requests int
	Errors   int
	health   Health
}

// Handle returns the slot's browser handle.
func (s *Slot) Handle() Handle {
	return s.handle
}

// RecordResult updates the slot's counters after one fetch.
func (s *Slot) RecordResult(failed bool) {
	s.Requests++
	if failed {
		s.Errors++
		if s.health == Healthy {
			s.health = Degraded
		}
	}
}

// errorRate returns the slot's failure ratio.
func (s *Slot) errorRate() float64 {
	if s.Requests == 0 {
		return 0
	}
	return float64(s.Errors) / float64(s.Requests)
}

// Pool manages a bounded set of browser handles. Handles are created
// lazily up to PoolSize, probed for liveness before reuse, and recycled
// when worn out. Session errors past a threshold trigger a two-tier
// recovery: recreate the browser context, then relaunch the process.
type Pool struct {
	mu          sync.Mutex
	backend     Backend
	cfg         Config
	idle        chan *Slot
	freed       chan struct{}
	live        int
	nextID      int
	sessionErrs int
	recovering  bool
	closed      bool
	log         *logger.Logger

	// recovery outcomes, exposed for stats
	contextRecycles int
	relaunches      int
}

// NewPool creates a pool over the given backend. Handles are not
// created until first Acquire.
func NewPool(backend Backend, cfg Config, log *logger.Logger) *Pool {
	if cfg.PoolSize <= 0 {
		cfg.PoolSize = DefaultConfig().PoolSize
	}
	if cfg.AcquireTimeout <= 0 {
		cfg.AcquireTimeout = DefaultConfig().AcquireTimeout
	}
	if log == nil {
		log = logger.NewDefault()
	}
	return &Pool{
		backend: backend,
		cfg:     cfg,
		idle:    make(chan *Slot, cfg.PoolSize),
		freed:   make(chan struct{}, cfg.PoolSize),
		log:     log.WithComponent("pool"),
	}
}

// Acquire returns a usable slot. It hands out an idle slot after a
// liveness probe, creates a new one while below capacity, and otherwise
// blocks until a slot is released or AcquireTimeout elapses, returning
// ErrPoolExhausted.
func (p *Pool) Acquire(ctx context.Context) (*Slot, error) {
	deadline := time.NewTimer(p.cfg.AcquireTimeout)
	defer deadline.Stop()

	for {
		p.mu.Lock()
		if p.closed {
			p.mu.Unlock()
			return nil, fmt.Errorf("pool is closed")
		}
		p.mu.Unlock()

		select {
		case slot := <-p.idle:
			if slot.handle.Alive() {
				return slot, nil
			}
			p.log.Debugf("slot %d failed liveness probe, discarding", slot.ID)
			p.discard(slot)
			continue
		default:
		}

		if slot, created, err := p.tryCreate(); created {
			if err != nil {
				return nil, err
			}
			return slot, nil
		}

		select {
		case slot := <-p.idle:
			if slot.handle.Alive() {
				return slot, nil
			}
			p.log.Debugf("slot %d failed liveness probe, discarding", slot.ID)
			p.discard(slot)
		case <-p.freed:
			// A discard opened capacity; loop to create a replacement.
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, crawlerrors.ErrPoolExhausted
		}
	}
}

// tryCreate makes a new slot when below capacity. The created flag is
// true when a creation was attempted, whether or not it succeeded.
func (p *Pool) tryCreate() (*Slot, bool, error) {
	p.mu.Lock()
	if p.live >= p.cfg.PoolSize {
		p.mu.Unlock()
		return nil, false, nil
	}
	p.live++
	p.nextID++
	id := p.nextID
	p.mu.Unlock()

	handle, err := p.backend.NewHandle()
	if err != nil {
		p.mu.Lock()
		p.live--
		p.mu.Unlock()
		select {
		case p.freed <- struct{}{}:
		default:
		}
		return nil, true, fmt.Errorf("create handle: %w", err)
	}

	p.log.Debugf("created slot %d", id)
	return &Slot{ID: id, handle: handle, health: Healthy}, true, nil
}

// Release returns a slot to the pool. Worn-out slots are recycled and
// slots that fail their reset are discarded; capacity is freed either
// way so a future Acquire can create a replacement.
func (p *Pool) Release(slot *Slot) {
	if slot == nil {
		return
	}

	if p.shouldRecycle(slot) {
		p.log.Debugf("recycling slot %d after %d requests (%d errors)", slot.ID, slot.Requests, slot.Errors)
		p.discard(slot)
		return
	}

	if err := slot.handle.Reset(); err != nil {
		p.log.WithError(err).Debugf("slot %d reset failed, discarding", slot.ID)
		p.discard(slot)
		return
	}

	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		p.discard(slot)
		return
	}

	select {
	case p.idle <- slot:
	default:
		// Capacity shrank under us; drop the extra handle.
		p.discard(slot)
	}
}

// shouldRecycle reports whether the slot passed its request ceiling or
// error-rate threshold.
func (p *Pool) shouldRecycle(slot *Slot) bool {
	if slot.health == Unhealthy {
		return true
	}
	if p.cfg.RecycleAfter > 0 && slot.Requests >= p.cfg.RecycleAfter {
		return true
	}
	if p.cfg.MaxErrorRate > 0 && slot.Requests >= 5 && slot.errorRate() >= p.cfg.MaxErrorRate {
		return true
	}
	return false
}

// discard closes a slot's handle, frees its capacity, and wakes a
// blocked Acquire so it can create a replacement instead of waiting
// out its full timeout.
func (p *Pool) discard(slot *Slot) {
	slot.handle.Close()
	p.mu.Lock()
	p.live--
	p.mu.Unlock()

	select {
	case p.freed <- struct{}{}:
	default:
	}
}

// RecordSessionError counts a browser session failure. When the rolling
// count reaches the threshold the pool runs its recovery ladder:
// recreate the browser context, and if that fails relaunch the whole
// process. Idle handles are drained in both cases since they belong to
// the torn-down context.
func (p *Pool) RecordSessionError() {
	p.mu.Lock()
	p.sessionErrs++
	count := p.sessionErrs
	threshold := p.cfg.SessionErrorThreshold
	if threshold <= 0 {
		threshold = DefaultConfig().SessionErrorThreshold
	}
	if count < threshold || p.recovering || p.closed {
		p.mu.Unlock()
		return
	}
	p.recovering = true
	p.mu.Unlock()

	p.log.Warnf("session error threshold reached (%d), recovering", count)
	p.drainIdle()

	err := p.backend.RecycleContext()
	if err != nil {
		p.log.WithError(err).Warn("context recycle failed, relaunching browser")
		if err := p.backend.Relaunch(); err != nil {
			p.log.WithError(err).Error("browser relaunch failed")
		} else {
			p.mu.Lock()
			p.relaunches++
			p.mu.Unlock()
		}
	} else {
		p.mu.Lock()
		p.contextRecycles++
		p.mu.Unlock()
	}

	p.mu.Lock()
	p.sessionErrs = 0
	p.recovering = false
	p.mu.Unlock()
}

// drainIdle closes every idle handle.
func (p *Pool) drainIdle() {
	for {
		select {
		case slot := <-p.idle:
			p.discard(slot)
		default:
			return
		}
	}
}

// Stats is a point-in-time view of pool state.
type Stats struct {
	Live            int
	Idle            int
	SessionErrors   int
	ContextRecycles int
	Relaunches      int
}

// Stats returns current pool statistics.
func (p *Pool) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return Stats{
		Live:            p.live,
		Idle:            len(p.idle),
		SessionErrors:   p.sessionErrs,
		ContextRecycles: p.contextRecycles,
		Relaunches:      p.relaunches,
	}
}

// Close drains and closes all idle handles and shuts down the backend.
// Checked-out slots are closed by Release after the pool is closed.
func (p *Pool) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.drainIdle()
	return p.backend.Close()
}
