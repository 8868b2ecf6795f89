// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// The ledger core takes the already-authenticated acting identity and the
// ledger-provided current time as explicit context values; it never derives
// either internally. Middleware sets the values, services read them, tests
// inject them:
//
//	acting := requestcontext.ActingAs(ctx)
//	now := requestcontext.Now(ctx)
//
//	ctx = requestcontext.WithActingAs(ctx, addr)
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"

	"trustline/pkg/domain"
)

// Context key types (unexported for encapsulation).
type (
	actingAsKey    struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Exported context keys for tests that need raw context.WithValue.
var (
	ContextKeyActingAs    = actingAsKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// ActingAs retrieves the authenticated acting identity from the context.
// Returns the zero address if no identity was established.
func ActingAs(ctx context.Context) domain.Address {
	if addr, ok := ctx.Value(ContextKeyActingAs).(domain.Address); ok {
		return addr
	}
	return domain.ZeroAddress
}

// WithActingAs injects the acting identity into the context. The auth
// middleware calls this after validating the caller's token; service tests
// call it directly.
func WithActingAs(ctx context.Context, addr domain.Address) context.Context {
	return context.WithValue(ctx, ContextKeyActingAs, addr)
}

// RequestID retrieves the request correlation ID from the context.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now retrieves the request-scoped ledger time from context. All reads within
// one operation observe the same instant, so a TimeBound predicate cannot
// flip mid-call. Falls back to time.Now() for non-HTTP contexts (workers,
// tests that don't care).
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime injects a specific time into a context. Tests use this to place
// an operation before or after an escrow time bound.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
