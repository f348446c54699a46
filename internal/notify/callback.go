package notify

import "context"

// Func is an in-process notifier delivering messages via a Go function
// call with zero serialisation. This is the path used when a chat
// front-end lives in the same binary, and by tests.
type Func func(ctx context.Context, msg Message) error

func (f Func) Notify(ctx context.Context, msg Message) error {
	return f(ctx, msg)
}

func (f Func) Close() error { return nil }
