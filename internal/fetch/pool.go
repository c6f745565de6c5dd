// Package fetch implements the Fetcher/Renderer: a pool of headless
// Chrome tabs used to load a page, run its JavaScript, dismiss cookie
// consent banners and return the rendered HTML (spec §4.6), grounded in
// the teacher's ChromeDPPool.
package fetch

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/ternarybob/arbor"
)

// PoolConfig configures the headless browser pool.
type PoolConfig struct {
	Size               int
	UserAgent          string
	JavaScriptWaitTime time.Duration
	RequestTimeout     time.Duration
}

// Pool manages a fixed set of headless Chrome browser contexts,
// allocated round-robin, the same allocation strategy as the teacher's
// ChromeDPPool.
type Pool struct {
	mu               sync.Mutex
	browsers         []context.Context
	browserCancels   []context.CancelFunc
	allocatorCancels []context.CancelFunc
	currentIndex     int
	userAgent        string
	logger           arbor.ILogger
}

// NewPool creates and warms size browser instances. A failure to start
// any instance is fatal; partial failures shrink the pool and are
// logged, mirroring the teacher's tolerant startup behavior.
func NewPool(cfg PoolConfig, logger arbor.ILogger) (*Pool, error) {
	if cfg.Size <= 0 {
		return nil, fmt.Errorf("fetch: pool size must be > 0, got %d", cfg.Size)
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = "Mozilla/5.0 (compatible; FocusedCrawl/1.0)"
	}

	p := &Pool{userAgent: userAgent, logger: logger}

	var lastErr error
	for i := 0; i < cfg.Size; i++ {
		if err := p.addInstance(i, userAgent); err != nil {
			lastErr = err
			if logger != nil {
				logger.Warn().Err(err).Int("browser_index", i).Msg("failed to start headless browser instance")
			}
			continue
		}
	}

	if len(p.browsers) == 0 {
		return nil, fmt.Errorf("fetch: failed to start any browser instance: %w", lastErr)
	}
	if logger != nil {
		logger.Info().Int("requested", cfg.Size).Int("started", len(p.browsers)).Msg("headless browser pool ready")
	}
	return p, nil
}

func (p *Pool) addInstance(index int, userAgent string) error {
	allocatorOpts := append(
		chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", true),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(userAgent),
	)

	allocatorCtx, allocatorCancel := chromedp.NewExecAllocator(context.Background(), allocatorOpts...)
	browserCtx, browserCancel := chromedp.NewContext(allocatorCtx)

	testCtx, testCancel := context.WithTimeout(browserCtx, 30*time.Second)
	defer testCancel()
	if err := chromedp.Run(testCtx, chromedp.Navigate("about:blank")); err != nil {
		browserCancel()
		allocatorCancel()
		return fmt.Errorf("browser instance %d failed startup test: %w", index, err)
	}

	p.mu.Lock()
	p.browsers = append(p.browsers, browserCtx)
	p.browserCancels = append(p.browserCancels, browserCancel)
	p.allocatorCancels = append(p.allocatorCancels, allocatorCancel)
	p.mu.Unlock()
	return nil
}

// Tab returns a browser context via round-robin allocation. The
// returned release func is currently a no-op, matching the teacher's
// pool: tabs are shared, not exclusively owned.
func (p *Pool) Tab() (context.Context, func(), error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if len(p.browsers) == 0 {
		return nil, nil, fmt.Errorf("fetch: no browser instances available")
	}
	index := p.currentIndex % len(p.browsers)
	p.currentIndex = (p.currentIndex + 1) % len(p.browsers)
	return p.browsers[index], func() {}, nil
}

// Shutdown cancels every browser and allocator context in the pool.
func (p *Pool) Shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, cancel := range p.browserCancels {
		cancel()
	}
	for _, cancel := range p.allocatorCancels {
		cancel()
	}
	p.browsers = nil
	p.browserCancels = nil
	p.allocatorCancels = nil
}
