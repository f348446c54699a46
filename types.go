// Package trackd monitors user-registered web resources for content
// changes. Trackers are re-fetched on a fixed scheduler tick, fingerprinted,
// and a change alert with a bounded diff is emitted when the content moved.
//
// Static pages are fetched over plain HTTP (hash and text modes); pages
// needing script execution go through a pooled headless browser (element
// mode). State lives in SQLite.
package trackd

import (
	"github.com/hazyhaar/trackd/internal/fetch"
	"github.com/hazyhaar/trackd/internal/store"
)

// Re-export store and fetch types for the public API.
type (
	Tracker = store.Tracker
	Admin   = store.Admin
	Stats   = store.Stats
	Status  = store.Status
	Mode    = fetch.Mode
)

const (
	ModeHash    = fetch.ModeHash
	ModeText    = fetch.ModeText
	ModeElement = fetch.ModeElement

	StatusActive = store.StatusActive
	StatusPaused = store.StatusPaused
)
