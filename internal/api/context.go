package api

import "context"

type contextKey int

const principalKey contextKey = iota

func withPrincipal(ctx context.Context, id int64) context.Context {
	return context.WithValue(ctx, principalKey, id)
}

// principalFrom returns the authenticated user id placed by requireAdmin.
// Zero means the middleware did not run, which only happens in tests
// exercising handlers directly.
func principalFrom(ctx context.Context) int64 {
	id, _ := ctx.Value(principalKey).(int64)
	return id
}
