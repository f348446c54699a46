package notify

import (
	"context"
	"log/slog"
)

// Router fans a message out to all configured notifiers. One backend
// failing does not block the others; errors are logged and the first
// encountered is returned. The message text is truncated to MaxTextLen
// before delivery.
type Router struct {
	notifiers []Notifier
	logger    *slog.Logger
}

// NewRouter creates a fan-out router delivering to all notifiers.
func NewRouter(logger *slog.Logger, notifiers ...Notifier) *Router {
	if logger == nil {
		logger = slog.Default()
	}
	return &Router{notifiers: notifiers, logger: logger}
}

func (r *Router) Notify(ctx context.Context, msg Message) error {
	if len(msg.Text) > MaxTextLen {
		msg.Text = msg.Text[:MaxTextLen]
	}

	var firstErr error
	for _, n := range r.notifiers {
		if err := n.Notify(ctx, msg); err != nil {
			r.logger.Warn("notify: delivery failed", "owner", msg.Owner, "error", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

func (r *Router) Close() error {
	var firstErr error
	for _, n := range r.notifiers {
		if err := n.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
