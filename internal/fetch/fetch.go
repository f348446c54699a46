// Package fetch retrieves tracked resource content. Two strategies exist
// behind one interface: static HTTP retrieval for hash and text modes, and
// browser-rendered retrieval for element mode. A Dispatcher selects the
// strategy from the request mode.
package fetch

import (
	"context"
	"errors"
	"fmt"
)

// Mode is the fetch/extraction strategy of a tracker.
type Mode string

const (
	// ModeHash fetches the full static body and compares it whole.
	ModeHash Mode = "hash"
	// ModeText fetches statically and extracts text matching a CSS selector.
	ModeText Mode = "text"
	// ModeElement renders the page in a browser and captures a screenshot.
	ModeElement Mode = "element"
)

// ParseMode converts a string into a Mode.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case ModeHash, ModeText, ModeElement:
		return Mode(s), nil
	}
	return "", fmt.Errorf("unknown mode %q", s)
}

// Valid reports whether m is one of the known modes.
func (m Mode) Valid() bool {
	switch m {
	case ModeHash, ModeText, ModeElement:
		return true
	}
	return false
}

// Request describes one content retrieval.
type Request struct {
	URL      string
	Mode     Mode
	Selector string
}

// Result is the outcome of a successful fetch. Capture is only set for
// element-mode fetches (JPEG bytes).
type Result struct {
	Content string
	Capture []byte
}

// Fetcher retrieves content for a request.
type Fetcher interface {
	Fetch(ctx context.Context, req Request) (*Result, error)
}

// ErrElementNotFound is returned by element-mode fetches when the selector
// matches nothing in the rendered document.
var ErrElementNotFound = errors.New("fetch: element not found")

// Error wraps a transport or status failure so callers can distinguish
// fetch failures (reschedule, notify owner) from programming errors.
type Error struct {
	URL string
	Err error
}

func (e *Error) Error() string { return fmt.Sprintf("fetch %s: %v", e.URL, e.Err) }

func (e *Error) Unwrap() error { return e.Err }

// Dispatcher routes requests to the static or rendered strategy by mode.
type Dispatcher struct {
	static Fetcher
	render Fetcher
}

// NewDispatcher creates a Dispatcher over the two strategies.
func NewDispatcher(static, render Fetcher) *Dispatcher {
	return &Dispatcher{static: static, render: render}
}

// Fetch dispatches on req.Mode.
func (d *Dispatcher) Fetch(ctx context.Context, req Request) (*Result, error) {
	switch req.Mode {
	case ModeHash, ModeText:
		return d.static.Fetch(ctx, req)
	case ModeElement:
		return d.render.Fetch(ctx, req)
	default:
		return nil, fmt.Errorf("fetch: unknown mode %q", req.Mode)
	}
}
