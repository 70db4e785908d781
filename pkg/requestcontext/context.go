// Package requestcontext provides HTTP-independent context accessors for
// request-scoped values.
//
// Context keys and getter/setter functions live here for values that are
// typically set by middleware but consumed by services. By keeping this
// package free of net/http dependencies, services can import only what they
// need without pulling in HTTP-related code.
//
// Usage in services (read values):
//
//	userID := requestcontext.UserID(ctx)
//	today := requestcontext.Today(ctx)
//
// Usage in tests (inject values):
//
//	ctx = requestcontext.WithTime(ctx, fixedTime)
package requestcontext

import (
	"context"
	"time"

	id "lifeline/pkg/domain"
)

// Context key types (unexported for encapsulation).
type (
	userIDKey      struct{}
	roleKey        struct{}
	donorIDKey     struct{}
	hospitalIDKey  struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
)

// Exported context keys for tests that need context.WithValue directly.
var (
	ContextKeyUserID      = userIDKey{}
	ContextKeyRole        = roleKey{}
	ContextKeyDonorID     = donorIDKey{}
	ContextKeyHospitalID  = hospitalIDKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
)

// UserID retrieves the authenticated user ID from the context.
// Returns the zero value (nil UUID) if not set.
func UserID(ctx context.Context) id.UserID {
	if userID, ok := ctx.Value(ContextKeyUserID).(id.UserID); ok {
		return userID
	}
	return id.UserID{}
}

// WithUserID injects a user ID into the context.
func WithUserID(ctx context.Context, userID id.UserID) context.Context {
	return context.WithValue(ctx, ContextKeyUserID, userID)
}

// Role retrieves the acting principal's role from the context.
func Role(ctx context.Context) id.Role {
	if role, ok := ctx.Value(ContextKeyRole).(id.Role); ok {
		return role
	}
	return ""
}

// WithRole injects the acting principal's role into the context.
func WithRole(ctx context.Context, role id.Role) context.Context {
	return context.WithValue(ctx, ContextKeyRole, role)
}

// DonorID retrieves the donor profile ID bound to the authenticated user.
func DonorID(ctx context.Context) id.DonorID {
	if donorID, ok := ctx.Value(ContextKeyDonorID).(id.DonorID); ok {
		return donorID
	}
	return id.DonorID{}
}

// WithDonorID injects a donor profile ID into the context.
func WithDonorID(ctx context.Context, donorID id.DonorID) context.Context {
	return context.WithValue(ctx, ContextKeyDonorID, donorID)
}

// HospitalID retrieves the hospital the authenticated staff member belongs to.
func HospitalID(ctx context.Context) id.HospitalID {
	if hospitalID, ok := ctx.Value(ContextKeyHospitalID).(id.HospitalID); ok {
		return hospitalID
	}
	return id.HospitalID{}
}

// WithHospitalID injects a hospital ID into the context.
func WithHospitalID(ctx context.Context, hospitalID id.HospitalID) context.Context {
	return context.WithValue(ctx, ContextKeyHospitalID, hospitalID)
}

// RequestID retrieves the correlation ID set by middleware.
func RequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return requestID
	}
	return ""
}

// WithRequestID injects a correlation ID into the context.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now returns the request time if one was injected, falling back to the wall
// clock. Eligibility and time-gap computations read time through here so tests
// can pin the clock.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// Today returns the request time truncated to a date in UTC.
func Today(ctx context.Context) time.Time {
	t := Now(ctx).UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// WithTime pins the request time, typically from middleware or tests.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}
