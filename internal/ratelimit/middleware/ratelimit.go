// Package middleware throttles requests per authenticated user, or per client
// IP before authentication, with a separate budget for each route class.
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"crowdfund/internal/ratelimit/metrics"
	"crowdfund/internal/ratelimit/models"
	"crowdfund/pkg/platform/httputil"
	"crowdfund/pkg/requestcontext"
)

// Store counts requests in a sliding window.
type Store interface {
	Allow(ctx context.Context, key string, limit models.Limit) (models.Result, error)
}

// Classifier picks the budget a request draws from.
type Classifier func(r *http.Request) models.Class

type Middleware struct {
	store    Store
	limits   map[models.Class]models.Limit
	classify Classifier
	logger   *slog.Logger
	metrics  *metrics.Metrics
}

type Option func(*Middleware)

func WithClassifier(c Classifier) Option {
	return func(m *Middleware) { m.classify = c }
}

func WithMetrics(mt *metrics.Metrics) Option {
	return func(m *Middleware) { m.metrics = mt }
}

// New requires a limit for ClassDefault; classes without their own limit fall
// back to it.
func New(store Store, limits map[models.Class]models.Limit, logger *slog.Logger, opts ...Option) (*Middleware, error) {
	if _, ok := limits[models.ClassDefault]; !ok {
		return nil, fmt.Errorf("rate limit for class %q is required", models.ClassDefault)
	}
	for class, l := range limits {
		if err := l.Validate(); err != nil {
			return nil, fmt.Errorf("class %s: %w", class, err)
		}
	}
	m := &Middleware{store: store, limits: limits, classify: ClassifyByPath, logger: logger}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Handler applies the limit. Store failures let the request through.
func (m *Middleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		class := m.classify(r)
		limit, ok := m.limits[class]
		if !ok {
			limit = m.limits[models.ClassDefault]
		}

		result, err := m.store.Allow(ctx, models.Key(class, subject(ctx)), limit)
		if err != nil {
			m.metrics.IncrementCheck(string(class), "error")
			m.logger.ErrorContext(ctx, "rate limit check failed",
				"request_id", requestcontext.RequestID(ctx),
				"class", class,
				"error", err,
			)
			next.ServeHTTP(w, r)
			return
		}

		addRateLimitHeaders(w, result)
		if !result.Allowed {
			m.metrics.IncrementCheck(string(class), "limited")
			m.logger.WarnContext(ctx, "rate limit exceeded",
				"request_id", requestcontext.RequestID(ctx),
				"class", class,
				"user_id", requestcontext.UserID(ctx),
			)
			writeRateLimitExceeded(w, result, requestcontext.Now(ctx))
			return
		}
		m.metrics.IncrementCheck(string(class), "allowed")
		next.ServeHTTP(w, r)
	})
}

// ClassifyByPath sends money-moving writes and LLM flows to their own budgets.
func ClassifyByPath(r *http.Request) models.Class {
	path := r.URL.Path
	switch {
	case strings.HasPrefix(path, "/flows/"):
		return models.ClassFlows
	case r.Method == http.MethodPost && strings.HasPrefix(path, "/projects/") &&
		(strings.HasSuffix(path, "/investments") || strings.HasSuffix(path, "/payouts") || strings.HasSuffix(path, "/withdrawals")):
		return models.ClassMoney
	default:
		return models.ClassDefault
	}
}

func subject(ctx context.Context) string {
	if userID := requestcontext.UserID(ctx); !userID.IsNil() {
		return "user:" + userID.String()
	}
	return "ip:" + requestcontext.ClientIP(ctx)
}

type exceededResponse struct {
	Error      string `json:"error"`
	Message    string `json:"error_description"`
	RetryAfter int    `json:"retry_after"`
}

func addRateLimitHeaders(w http.ResponseWriter, result models.Result) {
	w.Header().Set("X-RateLimit-Limit", strconv.Itoa(result.Limit))
	w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(result.Remaining))
	w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(result.ResetAt.Unix(), 10))
}

func writeRateLimitExceeded(w http.ResponseWriter, result models.Result, now time.Time) {
	retry := int(result.RetryAfter(now) / time.Second)
	w.Header().Set("Retry-After", strconv.Itoa(retry))
	httputil.WriteJSON(w, http.StatusTooManyRequests, exceededResponse{
		Error:      "rate_limit_exceeded",
		Message:    "Too many requests. Please try again later.",
		RetryAfter: retry,
	})
}
