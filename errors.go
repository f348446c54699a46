package trackd

import (
	"errors"

	"github.com/hazyhaar/trackd/internal/browser"
	"github.com/hazyhaar/trackd/internal/fetch"
)

// ErrInvalidInput is returned when a tracker's URL, mode, selector, or
// interval fails validation. Nothing is persisted.
var ErrInvalidInput = errors.New("trackd: invalid input")

// ErrTrackerLimit is returned at creation when the owner already holds the
// configured maximum number of trackers.
var ErrTrackerLimit = errors.New("trackd: tracker limit reached")

// ErrNotFound is returned when the referenced tracker does not exist.
var ErrNotFound = errors.New("trackd: tracker not found")

// ErrAccessDenied is returned when the calling principal lacks the role an
// operation requires.
var ErrAccessDenied = errors.New("trackd: access denied")

// ErrElementNotFound is returned by element-mode checks whose selector
// matches nothing in the rendered document.
var ErrElementNotFound = fetch.ErrElementNotFound

// ErrSessionPoolBusy is returned when no rendering session frees up within
// the render timeout. The engine treats it like any other fetch failure.
var ErrSessionPoolBusy = browser.ErrPoolBusy
