// Package browser manages the shared headless Chrome used by element-mode
// fetches. The browser handle is never exposed directly: callers acquire a
// session slot from a fixed-size pool, open a page through it, and release
// the slot when done. Only one navigation is in flight per slot, which keeps
// the underlying automation driver away from concurrent navigations.
package browser

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/stealth"
)

// ErrPoolBusy is returned when no session slot frees up before the
// caller's context expires.
var ErrPoolBusy = errors.New("browser: session pool busy")

// ErrClosed is returned when acquiring from a closed pool.
var ErrClosed = errors.New("browser: pool is closed")

// Config configures the session pool.
type Config struct {
	// PoolSize is the number of concurrent rendering sessions. Default: 1.
	PoolSize int

	// RecycleInterval is the maximum lifetime of a Chrome process before it
	// is quiesced and relaunched. 0 disables recycling.
	RecycleInterval time.Duration

	// RemoteURL is the WebSocket URL of an external Chrome instance.
	// Empty = launch a local Chrome via launcher.
	RemoteURL string

	Logger *slog.Logger
}

func (c *Config) defaults() {
	if c.PoolSize <= 0 {
		c.PoolSize = 1
	}
	if c.Logger == nil {
		c.Logger = slog.Default()
	}
}

// Pool is the fixed-size session pool over one Chrome process. The browser
// is launched lazily on first acquire, so deployments with no element-mode
// trackers never pay for Chrome.
type Pool struct {
	cfg   Config
	slots chan struct{}
	done  chan struct{}

	mu      sync.Mutex
	browser *rod.Browser
	lnch    *launcher.Launcher
	started bool
	looping bool
	closed  bool
	startAt time.Time

	launchFn func() (*rod.Browser, *launcher.Launcher, error)
}

// NewPool creates a Pool. No browser is launched until the first Acquire.
func NewPool(cfg Config) *Pool {
	cfg.defaults()
	slots := make(chan struct{}, cfg.PoolSize)
	for i := 0; i < cfg.PoolSize; i++ {
		slots <- struct{}{}
	}
	p := &Pool{
		cfg:   cfg,
		slots: slots,
		done:  make(chan struct{}),
	}
	p.launchFn = p.launch
	return p
}

// Session is an exclusive lease on one rendering slot. Release must be
// called on every exit path; it is idempotent.
type Session struct {
	pool *Pool
	once sync.Once
}

// Acquire takes a session slot, launching the browser on first use.
// It honours ctx cancellation: a deadline hit while waiting for a free
// slot yields ErrPoolBusy.
func (p *Pool) Acquire(ctx context.Context) (*Session, error) {
	if err := p.ensureStarted(); err != nil {
		return nil, err
	}

	select {
	case <-p.slots:
		return &Session{pool: p}, nil
	case <-p.done:
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrPoolBusy, ctx.Err())
	}
}

// Release returns the slot to the pool.
func (s *Session) Release() {
	s.once.Do(func() {
		s.pool.slots <- struct{}{}
	})
}

// Page opens a fresh stealth page on the pooled browser. The caller owns
// the page and must close it.
func (s *Session) Page() (*rod.Page, error) {
	s.pool.mu.Lock()
	b := s.pool.browser
	s.pool.mu.Unlock()
	if b == nil {
		return nil, fmt.Errorf("browser: no active browser")
	}

	page, err := stealth.Page(b)
	if err != nil {
		return nil, fmt.Errorf("browser: create page: %w", err)
	}
	return page, nil
}

// Close shuts down the browser. Outstanding sessions may still release.
func (p *Pool) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	close(p.done)
	p.cleanupLocked()
	return nil
}

func (p *Pool) ensureStarted() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return ErrClosed
	}
	if p.started {
		return nil
	}

	b, l, err := p.launchFn()
	if err != nil {
		return fmt.Errorf("browser: launch: %w", err)
	}
	p.browser = b
	p.lnch = l
	p.started = true
	p.startAt = time.Now()

	if p.cfg.RecycleInterval > 0 && !p.looping {
		p.looping = true
		go p.recycleLoop()
	}
	return nil
}

func (p *Pool) launch() (*rod.Browser, *launcher.Launcher, error) {
	log := p.cfg.Logger

	var wsURL string
	var lnch *launcher.Launcher

	if p.cfg.RemoteURL != "" {
		wsURL = p.cfg.RemoteURL
		log.Info("browser: connecting to remote", "url", wsURL)
	} else {
		l := launcher.New().
			Headless(true).
			Set("disable-blink-features", "AutomationControlled")
		u, err := l.Launch()
		if err != nil {
			return nil, nil, err
		}
		wsURL = u
		lnch = l
		log.Info("browser: launched local chrome", "url", wsURL)
	}

	b := rod.New().ControlURL(wsURL)
	if err := b.Connect(); err != nil {
		if lnch != nil {
			lnch.Cleanup()
		}
		return nil, nil, fmt.Errorf("connect: %w", err)
	}
	return b, lnch, nil
}

// recycleLoop relaunches Chrome after RecycleInterval. All slots are
// reacquired first so no navigation is in flight during the relaunch.
func (p *Pool) recycleLoop() {
	ticker := time.NewTicker(p.cfg.RecycleInterval)
	defer ticker.Stop()

	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
			p.recycle()
		}
	}
}

func (p *Pool) recycle() {
	log := p.cfg.Logger

	// Quiesce: hold every slot for the duration of the relaunch.
	held := 0
	for held < p.cfg.PoolSize {
		select {
		case <-p.slots:
			held++
		case <-p.done:
			for i := 0; i < held; i++ {
				p.slots <- struct{}{}
			}
			return
		}
	}
	defer func() {
		for i := 0; i < p.cfg.PoolSize; i++ {
			p.slots <- struct{}{}
		}
	}()

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}

	log.Info("browser: recycling", "uptime", time.Since(p.startAt))
	p.cleanupLocked()

	b, l, err := p.launchFn()
	if err != nil {
		log.Error("browser: relaunch failed", "error", err)
		p.started = false
		return
	}
	p.browser = b
	p.lnch = l
	p.startAt = time.Now()
	log.Info("browser: recycled")
}

func (p *Pool) cleanupLocked() {
	if p.browser != nil {
		p.browser.Close()
		p.browser = nil
	}
	if p.lnch != nil {
		p.lnch.Cleanup()
		p.lnch = nil
	}
}
