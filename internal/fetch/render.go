package fetch

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/JohannesKaufmann/html-to-markdown/v2/converter"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/base"
	"github.com/JohannesKaufmann/html-to-markdown/v2/plugin/commonmark"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/trackd/internal/browser"
)

// RenderConfig configures the browser-rendered fetcher.
type RenderConfig struct {
	// Timeout bounds the whole rendered fetch: pool acquire, navigation,
	// idle wait, extraction and capture. Default: 60s.
	Timeout time.Duration
	// IdleWait is how long to wait for the page to settle after load.
	// Default: 5s.
	IdleWait time.Duration
	// CaptureQuality is the JPEG quality of captures. Default: 80.
	CaptureQuality int
}

func (c *RenderConfig) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 60 * time.Second
	}
	if c.IdleWait <= 0 {
		c.IdleWait = 5 * time.Second
	}
	if c.CaptureQuality <= 0 {
		c.CaptureQuality = 80
	}
}

// Render performs element-mode fetches through the shared session pool.
type Render struct {
	pool        *browser.Pool
	config      RenderConfig
	logger      *slog.Logger
	mdConverter *converter.Converter
}

// NewRender creates a Render fetcher over the given session pool.
func NewRender(pool *browser.Pool, cfg RenderConfig, logger *slog.Logger) *Render {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Render{
		pool:   pool,
		config: cfg,
		logger: logger,
		mdConverter: converter.NewConverter(
			converter.WithPlugins(
				base.NewBasePlugin(),
				commonmark.NewCommonmarkPlugin(),
			),
		),
	}
}

// Fetch renders the page and extracts content. With a selector, the first
// matching element's visible text and an element capture are returned;
// ErrElementNotFound when nothing matches. Without a selector, the full
// rendered document text and a full-page capture are returned.
//
// The session slot and the page are released on every exit path.
func (r *Render) Fetch(ctx context.Context, req Request) (*Result, error) {
	ctx, cancel := context.WithTimeout(ctx, r.config.Timeout)
	defer cancel()

	sess, err := r.pool.Acquire(ctx)
	if err != nil {
		return nil, &Error{URL: req.URL, Err: err}
	}
	defer sess.Release()

	page, err := sess.Page()
	if err != nil {
		return nil, &Error{URL: req.URL, Err: err}
	}
	defer page.Close()
	page = page.Context(ctx)

	if err := page.Navigate(req.URL); err != nil {
		return nil, &Error{URL: req.URL, Err: fmt.Errorf("navigate: %w", err)}
	}
	if err := page.WaitLoad(); err != nil {
		return nil, &Error{URL: req.URL, Err: fmt.Errorf("wait load: %w", err)}
	}
	// Best-effort settle wait; dynamic pages may never go fully idle.
	if err := page.WaitIdle(r.config.IdleWait); err != nil {
		r.logger.Debug("fetch: wait idle", "url", req.URL, "error", err)
	}

	if req.Selector != "" {
		return r.fetchElement(page, req)
	}
	return r.fetchDocument(page, req)
}

func (r *Render) fetchElement(page *rod.Page, req Request) (*Result, error) {
	has, el, err := page.Has(req.Selector)
	if err != nil {
		return nil, &Error{URL: req.URL, Err: fmt.Errorf("query %q: %w", req.Selector, err)}
	}
	if !has {
		return nil, fmt.Errorf("%w: %q on %s", ErrElementNotFound, req.Selector, req.URL)
	}

	text, err := el.Text()
	if err != nil {
		return nil, &Error{URL: req.URL, Err: fmt.Errorf("element text: %w", err)}
	}

	shot, err := el.Screenshot(proto.PageCaptureScreenshotFormatJpeg, r.config.CaptureQuality)
	if err != nil {
		return nil, &Error{URL: req.URL, Err: fmt.Errorf("element capture: %w", err)}
	}

	r.logger.Debug("fetch: rendered element", "url", req.URL, "selector", req.Selector, "size", len(text))
	return &Result{Content: text, Capture: shot}, nil
}

func (r *Render) fetchDocument(page *rod.Page, req Request) (*Result, error) {
	res, err := page.Eval(`() => document.documentElement.outerHTML`)
	if err != nil {
		return nil, &Error{URL: req.URL, Err: fmt.Errorf("get document: %w", err)}
	}
	html := res.Value.Str()

	// Markdown conversion gives line-oriented text that diffs cleanly.
	// Fall back to raw HTML when the document defeats the converter.
	content, err := r.mdConverter.ConvertString(html, converter.WithDomain(req.URL))
	if err != nil || strings.TrimSpace(content) == "" {
		r.logger.Warn("fetch: markdown conversion failed, using raw html", "url", req.URL, "error", err)
		content = html
	}

	quality := r.config.CaptureQuality
	shot, err := page.Screenshot(true, &proto.PageCaptureScreenshot{
		Format:  proto.PageCaptureScreenshotFormatJpeg,
		Quality: &quality,
	})
	if err != nil {
		return nil, &Error{URL: req.URL, Err: fmt.Errorf("page capture: %w", err)}
	}

	r.logger.Debug("fetch: rendered document", "url", req.URL, "size", len(content))
	return &Result{Content: content, Capture: shot}, nil
}
