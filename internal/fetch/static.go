package fetch

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/andybalholm/cascadia"
	"github.com/codeGROOVE-dev/retry"
)

// StaticConfig configures the static HTTP fetcher.
type StaticConfig struct {
	// Timeout bounds one HTTP request. Default: 15s.
	Timeout time.Duration
	// MaxBytes caps the response body read. Default: 10MB.
	MaxBytes int64
	// UserAgent sent with requests.
	UserAgent string
	// Attempts is the number of tries for transient failures. Default: 3.
	Attempts uint
}

func (c *StaticConfig) defaults() {
	if c.Timeout <= 0 {
		c.Timeout = 15 * time.Second
	}
	if c.MaxBytes <= 0 {
		c.MaxBytes = 10 * 1024 * 1024
	}
	if c.UserAgent == "" {
		c.UserAgent = "Mozilla/5.0 (compatible; trackd/1.0)"
	}
	if c.Attempts == 0 {
		c.Attempts = 3
	}
}

// Static performs static HTTP retrieval for hash and text modes.
type Static struct {
	client *http.Client
	config StaticConfig
	logger *slog.Logger
}

// NewStatic creates a Static fetcher.
func NewStatic(cfg StaticConfig, logger *slog.Logger) *Static {
	cfg.defaults()
	if logger == nil {
		logger = slog.Default()
	}
	return &Static{
		client: &http.Client{Timeout: cfg.Timeout},
		config: cfg,
		logger: logger,
	}
}

// Fetch GETs the URL with bounded retries. For text mode the body is
// reduced to the concatenated text of all selector matches in document
// order; an empty match set is a valid empty result, not an error.
func (s *Static) Fetch(ctx context.Context, req Request) (*Result, error) {
	var body []byte

	err := retry.Do(
		func() error {
			hreq, err := http.NewRequestWithContext(ctx, http.MethodGet, req.URL, http.NoBody)
			if err != nil {
				return retry.Unrecoverable(fmt.Errorf("new request: %w", err))
			}
			hreq.Header.Set("User-Agent", s.config.UserAgent)
			hreq.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,*/*;q=0.8")
			hreq.Header.Set("Accept-Language", "en-US,en;q=0.5")

			resp, err := s.client.Do(hreq)
			if err != nil {
				return err
			}
			defer resp.Body.Close()

			if resp.StatusCode < 200 || resp.StatusCode >= 400 {
				statusErr := fmt.Errorf("http %d", resp.StatusCode)
				if resp.StatusCode >= 400 && resp.StatusCode < 500 {
					// Client errors won't heal on retry.
					return retry.Unrecoverable(statusErr)
				}
				return statusErr
			}

			body, err = io.ReadAll(io.LimitReader(resp.Body, s.config.MaxBytes))
			if err != nil {
				return fmt.Errorf("read body: %w", err)
			}
			return nil
		},
		retry.Attempts(s.config.Attempts),
		retry.Delay(500*time.Millisecond),
		retry.MaxDelay(5*time.Second),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			s.logger.Debug("fetch: retrying", "url", req.URL, "attempt", n+1, "error", err)
		}),
	)
	if err != nil {
		return nil, &Error{URL: req.URL, Err: err}
	}

	content := string(body)
	if req.Mode == ModeText {
		content, err = extractSelectorText(body, req.Selector)
		if err != nil {
			return nil, &Error{URL: req.URL, Err: err}
		}
	}

	s.logger.Debug("fetch: static fetched", "url", req.URL, "size", len(content))
	return &Result{Content: content}, nil
}

// extractSelectorText concatenates the text of all nodes matching the CSS
// selector, in document order.
func extractSelectorText(body []byte, selector string) (string, error) {
	sel, err := cascadia.Compile(selector)
	if err != nil {
		return "", fmt.Errorf("compile selector %q: %w", selector, err)
	}

	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("parse html: %w", err)
	}

	var parts []string
	doc.FindMatcher(sel).Each(func(_ int, s *goquery.Selection) {
		parts = append(parts, s.Text())
	})
	return strings.Join(parts, "\n"), nil
}
