// Package browser manages headless browser instances behind a pooled
// Handle interface.
package browser

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
	"github.com/ysmood/gson"
)

// Config holds browser and pool configuration.
type Config struct {
	Headless          bool
	UserAgent         string
	NavTimeout        time.Duration
	ViewportWidth     int
	ViewportHeight    int
	IgnoreHTTPSErrors bool

	// PoolSize is the maximum number of concurrently open handles.
	PoolSize int
	// AcquireTimeout bounds how long Acquire blocks for a free handle.
	AcquireTimeout time.Duration
	// RecycleAfter is the request ceiling per handle before recycling.
	RecycleAfter int
	// MaxErrorRate recycles a handle whose failure ratio crosses it.
	MaxErrorRate float64
	// SessionErrorThreshold triggers pool-wide recovery when the rolling
	// session failure count reaches it.
	SessionErrorThreshold int
}

// DefaultConfig returns production browser defaults.
func DefaultConfig() Config {
	return Config{
		Headless:          true,
		UserAgent:         "seolens/1.0",
		NavTimeout:        30 * time.Second,
		ViewportWidth:     1366,
		ViewportHeight:    900,
		IgnoreHTTPSErrors: true,

		PoolSize:              3,
		AcquireTimeout:        30 * time.Second,
		RecycleAfter:          50,
		MaxErrorRate:          0.5,
		SessionErrorThreshold: 3,
	}
}

// NavResult describes a completed navigation.
type NavResult struct {
	FinalURL   string
	StatusCode int
	Headers    map[string]string
	LoadTime   time.Duration
}

// Handle is one navigable browser page.
type Handle interface {
	// Navigate loads a URL and waits for the load event.
	Navigate(ctx context.Context, url string) (*NavResult, error)
	// HTML returns the current rendered document.
	HTML() (string, error)
	// Evaluate runs a JavaScript function in the page.
	Evaluate(js string) (gson.JSON, error)
	// Reset returns the handle to a blank page for reuse.
	Reset() error
	// Alive reports whether the handle still responds.
	Alive() bool
	// Close destroys the handle.
	Close() error
}

// Backend creates handles and performs pool-wide recovery.
type Backend interface {
	NewHandle() (Handle, error)
	// RecycleContext replaces the browser context new handles come from.
	RecycleContext() error
	// Relaunch restarts the whole browser process.
	Relaunch() error
	Close() error
}

// RodBackend drives a real Chromium process through rod. Handles are
// pages inside an incognito context so RecycleContext can drop cookies
// and storage without a process restart.
type RodBackend struct {
	mu   sync.Mutex
	cfg  Config
	ln   *launcher.Launcher
	root *rod.Browser
	ctx  *rod.Browser
}

// NewRodBackend launches a browser process and prepares the initial
// incognito context.
func NewRodBackend(cfg Config) (*RodBackend, error) {
	b := &RodBackend{cfg: cfg}
	if err := b.launch(); err != nil {
		return nil, err
	}
	return b, nil
}

// launch starts the process and creates a fresh context. Caller must
// not hold the mutex.
func (b *RodBackend) launch() error {
	ln := launcher.New().
		Headless(b.cfg.Headless).
		Set("disable-gpu").
		Set("no-first-run")
	if b.cfg.IgnoreHTTPSErrors {
		ln = ln.Set("ignore-certificate-errors")
	}

	controlURL, err := ln.Launch()
	if err != nil {
		return fmt.Errorf("launch browser: %w", err)
	}

	root := rod.New().ControlURL(controlURL)
	if err := root.Connect(); err != nil {
		ln.Cleanup()
		return fmt.Errorf("connect browser: %w", err)
	}

	inc, err := root.Incognito()
	if err != nil {
		root.Close()
		ln.Cleanup()
		return fmt.Errorf("create browser context: %w", err)
	}

	b.mu.Lock()
	b.ln = ln
	b.root = root
	b.ctx = inc
	b.mu.Unlock()
	return nil
}

// NewHandle opens a blank page in the current context.
func (b *RodBackend) NewHandle() (Handle, error) {
	b.mu.Lock()
	ctx := b.ctx
	b.mu.Unlock()

	page, err := ctx.Page(proto.TargetCreateTarget{URL: "about:blank"})
	if err != nil {
		return nil, fmt.Errorf("create page: %w", err)
	}

	if b.cfg.UserAgent != "" {
		if err := (proto.NetworkSetUserAgentOverride{
			UserAgent: b.cfg.UserAgent,
		}).Call(page); err != nil {
			page.Close()
			return nil, fmt.Errorf("set user agent: %w", err)
		}
	}
	if b.cfg.ViewportWidth > 0 && b.cfg.ViewportHeight > 0 {
		if err := page.SetViewport(&proto.EmulationSetDeviceMetricsOverride{
			Width:             b.cfg.ViewportWidth,
			Height:            b.cfg.ViewportHeight,
			DeviceScaleFactor: 1,
		}); err != nil {
			page.Close()
			return nil, fmt.Errorf("set viewport: %w", err)
		}
	}

	return &rodHandle{page: page, navTimeout: b.cfg.NavTimeout}, nil
}

// RecycleContext disposes the current incognito context and creates a
// fresh one. Pages from the old context become dead and are discarded
// by the pool.
func (b *RodBackend) RecycleContext() error {
	b.mu.Lock()
	old := b.ctx
	root := b.root
	b.mu.Unlock()

	inc, err := root.Incognito()
	if err != nil {
		return fmt.Errorf("recreate browser context: %w", err)
	}

	b.mu.Lock()
	b.ctx = inc
	b.mu.Unlock()

	if old != nil && old.BrowserContextID != "" {
		// Best effort: dropping the old context also closes its pages.
		_ = proto.TargetDisposeBrowserContext{
			BrowserContextID: old.BrowserContextID,
		}.Call(root)
	}
	return nil
}

// Relaunch kills the browser process and starts a new one.
func (b *RodBackend) Relaunch() error {
	b.mu.Lock()
	root := b.root
	ln := b.ln
	b.mu.Unlock()

	if root != nil {
		_ = root.Close()
	}
	if ln != nil {
		ln.Cleanup()
	}
	return b.launch()
}

// Close shuts down the browser process.
func (b *RodBackend) Close() error {
	b.mu.Lock()
	root := b.root
	ln := b.ln
	b.root = nil
	b.ctx = nil
	b.ln = nil
	b.mu.Unlock()

	var err error
	if root != nil {
		err = root.Close()
	}
	if ln != nil {
		ln.Cleanup()
	}
	return err
}

// rodHandle wraps one rod page.
type rodHandle struct {
	page       *rod.Page
	navTimeout time.Duration
}

// Navigate loads the URL, waits for the load event, and captures the
// main document's response status and headers from the CDP network
// events.
func (h *rodHandle) Navigate(ctx context.Context, url string) (*NavResult, error) {
	page := h.page.Context(ctx)
	if h.navTimeout > 0 {
		page = page.Timeout(h.navTimeout)
	}

	start := time.Now()

	var resp *proto.NetworkResponse
	wait := page.EachEvent(func(e *proto.NetworkResponseReceived) bool {
		if e.Type == proto.NetworkResourceTypeDocument {
			resp = e.Response
			return true
		}
		return false
	})

	if err := page.Navigate(url); err != nil {
		return nil, fmt.Errorf("navigate %s: %w", url, err)
	}
	wait()
	if err := page.WaitLoad(); err != nil {
		return nil, fmt.Errorf("wait load %s: %w", url, err)
	}

	result := &NavResult{
		FinalURL: url,
		LoadTime: time.Since(start),
	}
	if resp != nil {
		result.StatusCode = resp.Status
		result.FinalURL = resp.URL
		result.Headers = make(map[string]string, len(resp.Headers))
		for k, v := range resp.Headers {
			result.Headers[k] = v.Str()
		}
	}
	if info, err := page.Info(); err == nil && info.URL != "" {
		result.FinalURL = info.URL
	}
	return result, nil
}

// HTML returns the rendered document.
func (h *rodHandle) HTML() (string, error) {
	html, err := h.page.HTML()
	if err != nil {
		return "", fmt.Errorf("get html: %w", err)
	}
	return html, nil
}

// Evaluate runs a JavaScript function in the page and returns its value.
func (h *rodHandle) Evaluate(js string) (gson.JSON, error) {
	res, err := h.page.Eval(js)
	if err != nil {
		return gson.JSON{}, fmt.Errorf("evaluate: %w", err)
	}
	return res.Value, nil
}

// Reset navigates back to a blank page so the handle can be reused.
func (h *rodHandle) Reset() error {
	page := h.page.Timeout(5 * time.Second)
	if err := page.Navigate("about:blank"); err != nil {
		return fmt.Errorf("reset page: %w", err)
	}
	return nil
}

// Alive probes the page with a trivial evaluation.
func (h *rodHandle) Alive() bool {
	page := h.page.Timeout(3 * time.Second)
	_, err := page.Eval("() => 1")
	return err == nil
}

// Close destroys the page.
func (h *rodHandle) Close() error {
	return h.page.Close()
}
