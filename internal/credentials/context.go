package credentials

import "context"

type fallbackKey struct{}

// WithFallbackAllowed marks ctx so that fallback credentials may be used for
// calls made with it.
func WithFallbackAllowed(ctx context.Context) context.Context {
	return context.WithValue(ctx, fallbackKey{}, true)
}

// FallbackAllowed reports whether ctx permits fallback credentials.
func FallbackAllowed(ctx context.Context) bool {
	allowed, _ := ctx.Value(fallbackKey{}).(bool)
	return allowed
}

// RunWithFallback runs fn with fallback credentials allowed. The permission
// lives only in the context handed to fn.
func RunWithFallback(ctx context.Context, fn func(context.Context) error) error {
	return fn(WithFallbackAllowed(ctx))
}
