package middleware

import "context"

type contextKey string

const ctxExpectedVersion contextKey = "expected_version"

// ExpectedVersionFromContext returns the If-Match version of the request. Zero
// means the caller did not ask for a version check.
func ExpectedVersionFromContext(ctx context.Context) int64 {
	if ctx == nil {
		return 0
	}
	if v, ok := ctx.Value(ctxExpectedVersion).(int64); ok {
		return v
	}
	return 0
}

// WithExpectedVersion injects the session version the caller expects.
func WithExpectedVersion(ctx context.Context, version int64) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, ctxExpectedVersion, version)
}
