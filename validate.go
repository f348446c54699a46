package trackd

import (
	"fmt"
	"net/url"

	"github.com/andybalholm/cascadia"

	"github.com/hazyhaar/trackd/internal/fetch"
)

const maxURLLen = 4096

// validateTrackerInput checks the URL shape, the mode, the mode/selector
// consistency, and the interval before anything is fetched or persisted.
//
// Selector rules per mode:
//
//	hash:    forbidden (the whole body is fingerprinted)
//	text:    required (the selector defines what is fingerprinted)
//	element: optional (absent means full rendered document)
func validateTrackerInput(rawURL string, mode fetch.Mode, selector string, intervalSeconds int64) error {
	if rawURL == "" {
		return fmt.Errorf("%w: url is required", ErrInvalidInput)
	}
	if len(rawURL) > maxURLLen {
		return fmt.Errorf("%w: url exceeds %d characters", ErrInvalidInput, maxURLLen)
	}
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("%w: url scheme must be http or https", ErrInvalidInput)
	}
	if u.Host == "" {
		return fmt.Errorf("%w: url has no host", ErrInvalidInput)
	}

	if !mode.Valid() {
		return fmt.Errorf("%w: unknown mode %q", ErrInvalidInput, mode)
	}

	switch mode {
	case fetch.ModeHash:
		if selector != "" {
			return fmt.Errorf("%w: selector not allowed for hash mode", ErrInvalidInput)
		}
	case fetch.ModeText:
		if selector == "" {
			return fmt.Errorf("%w: text mode requires a selector", ErrInvalidInput)
		}
	}
	if selector != "" {
		if _, err := cascadia.Compile(selector); err != nil {
			return fmt.Errorf("%w: bad selector %q: %v", ErrInvalidInput, selector, err)
		}
	}

	if intervalSeconds <= 0 {
		return fmt.Errorf("%w: interval must be positive", ErrInvalidInput)
	}
	return nil
}
