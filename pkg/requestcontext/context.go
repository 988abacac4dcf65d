// Package requestcontext carries request-scoped values through services that
// must not import net/http. Middleware writes them; handlers, services and log
// lines read them:
//
//	userID := requestcontext.UserID(ctx)
//	now := requestcontext.Now(ctx)
//
// Tests set them directly, for example requestcontext.WithTime(ctx, fixed).
package requestcontext

import (
	"context"
	"time"

	id "crowdfund/pkg/domain"
)

type key int

const (
	userIDKey key = iota
	adminKey
	clientIPKey
	userAgentKey
	requestIDKey
	requestTimeKey
)

// value returns the zero T when the key is absent.
func value[T any](ctx context.Context, k key) T {
	v, _ := ctx.Value(k).(T)
	return v
}

// UserID is the authenticated caller, or the nil ID for anonymous requests.
func UserID(ctx context.Context) id.UserID {
	return value[id.UserID](ctx, userIDKey)
}

func WithUserID(ctx context.Context, userID id.UserID) context.Context {
	return context.WithValue(ctx, userIDKey, userID)
}

// IsAdmin reports whether the request presented a valid admin token.
func IsAdmin(ctx context.Context) bool {
	return value[bool](ctx, adminKey)
}

func WithAdmin(ctx context.Context) context.Context {
	return context.WithValue(ctx, adminKey, true)
}

func ClientIP(ctx context.Context) string {
	return value[string](ctx, clientIPKey)
}

func UserAgent(ctx context.Context) string {
	return value[string](ctx, userAgentKey)
}

func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, clientIPKey, clientIP)
	return context.WithValue(ctx, userAgentKey, userAgent)
}

func RequestID(ctx context.Context) string {
	return value[string](ctx, requestIDKey)
}

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, requestIDKey, requestID)
}

// Now is the time pinned by the requesttime middleware, so every rule in one
// request sees the same instant. Outside a request (CLI, tests without a
// pinned time) it is the wall clock.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(requestTimeKey).(time.Time); ok {
		return t
	}
	return time.Now()
}

func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, requestTimeKey, t)
}
