// Package notify defines alert delivery backends for trackd. The engine
// fires a Message at a Notifier and moves on: delivery is best-effort,
// at-most-once, and a delivery failure never rolls back tracker state.
package notify

import "context"

// MaxTextLen bounds the text of an outgoing message. Longer texts are
// hard-truncated before delivery.
const MaxTextLen = 4096

// Message is one change or error alert. Owner is the opaque destination
// handle; Capture carries optional JPEG bytes from element-mode checks.
type Message struct {
	Owner   int64  `json:"owner"`
	Text    string `json:"text"`
	Capture []byte `json:"capture,omitempty"`
}

// Notifier delivers alerts to their destination.
type Notifier interface {
	Notify(ctx context.Context, msg Message) error
	Close() error
}
