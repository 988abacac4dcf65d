package middleware

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/suite"

	"crowdfund/internal/ratelimit/metrics"
	"crowdfund/internal/ratelimit/models"
	"crowdfund/internal/ratelimit/store"
	id "crowdfund/pkg/domain"
	"crowdfund/pkg/requestcontext"
	httptest "crowdfund/pkg/testutil"
)

// =============================================================================
// Rate Limit Middleware Test Suite
// =============================================================================
// Justification for unit tests: subject selection, class budgets and the 429
// envelope are middleware concerns; window arithmetic is covered by store tests.

type failingStore struct{}

func (failingStore) Allow(context.Context, string, models.Limit) (models.Result, error) {
	return models.Result{}, errors.New("redis: connection refused")
}

type RateLimitSuite struct {
	suite.Suite
	now     time.Time
	metrics *metrics.Metrics
	handler http.Handler
}

func TestRateLimitSuite(t *testing.T) {
	suite.Run(t, new(RateLimitSuite))
}

func (s *RateLimitSuite) SetupTest() {
	s.now = time.Date(2026, 4, 1, 10, 0, 0, 0, time.UTC)
	s.metrics = metrics.New(prometheus.NewRegistry())
	s.handler = s.build(store.NewInMemoryWithClock(func() time.Time { return s.now }))
}

func (s *RateLimitSuite) build(st Store) http.Handler {
	m, err := New(st, map[models.Class]models.Limit{
		models.ClassDefault: {Requests: 3, Window: time.Minute},
		models.ClassMoney:   {Requests: 1, Window: time.Minute},
	}, slog.New(slog.NewTextHandler(io.Discard, nil)), WithMetrics(s.metrics))
	s.Require().NoError(err)
	return m.Handler(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
}

func (s *RateLimitSuite) request(method, path string, userID id.UserID, ip string) *http.Request {
	req := httptest.NewRequest(s.T(), method, path)
	ctx := requestcontext.WithTime(req.Context(), s.now)
	ctx = requestcontext.WithClientMetadata(ctx, ip, "")
	if !userID.IsNil() {
		ctx = requestcontext.WithUserID(ctx, userID)
	}
	return req.WithContext(ctx)
}

// =============================================================================
// Budgets
// =============================================================================

func (s *RateLimitSuite) TestUserBudget() {
	user := id.NewUserID()
	for range 3 {
		rr := httptest.DoRequest(s.handler, s.request(http.MethodGet, "/accounts/me", user, "192.0.2.1"))
		httptest.AssertStatus(s.T(), rr, http.StatusNoContent)
	}

	rr := httptest.DoRequest(s.handler, s.request(http.MethodGet, "/accounts/me", user, "192.0.2.9"))
	httptest.AssertStatusAndError(s.T(), rr, http.StatusTooManyRequests, "rate_limit_exceeded")
	s.Equal("60", rr.Header().Get("Retry-After"))
	s.Equal("0", rr.Header().Get("X-RateLimit-Remaining"))
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.Checks.WithLabelValues("default", "limited")))

	s.Run("another user is unaffected", func() {
		rr := httptest.DoRequest(s.handler, s.request(http.MethodGet, "/accounts/me", id.NewUserID(), "192.0.2.1"))
		httptest.AssertStatus(s.T(), rr, http.StatusNoContent)
		s.Equal("2", rr.Header().Get("X-RateLimit-Remaining"))
	})
}

func (s *RateLimitSuite) TestAnonymousCallersAreKeyedByIP() {
	for range 3 {
		httptest.DoRequest(s.handler, s.request(http.MethodGet, "/health", id.UserID{}, "198.51.100.7"))
	}
	rr := httptest.DoRequest(s.handler, s.request(http.MethodGet, "/health", id.UserID{}, "198.51.100.7"))
	httptest.AssertStatus(s.T(), rr, http.StatusTooManyRequests)

	rr = httptest.DoRequest(s.handler, s.request(http.MethodGet, "/health", id.UserID{}, "198.51.100.8"))
	httptest.AssertStatus(s.T(), rr, http.StatusNoContent)
}

func (s *RateLimitSuite) TestMoneyRoutesHaveTheirOwnBudget() {
	user := id.NewUserID()
	rr := httptest.DoRequest(s.handler, s.request(http.MethodPost, "/projects/p1/investments", user, "192.0.2.1"))
	httptest.AssertStatus(s.T(), rr, http.StatusNoContent)

	rr = httptest.DoRequest(s.handler, s.request(http.MethodPost, "/projects/p1/payouts", user, "192.0.2.1"))
	httptest.AssertStatus(s.T(), rr, http.StatusTooManyRequests)

	rr = httptest.DoRequest(s.handler, s.request(http.MethodGet, "/projects/p1", user, "192.0.2.1"))
	httptest.AssertStatus(s.T(), rr, http.StatusNoContent)
}

func (s *RateLimitSuite) TestStoreFailureLetsRequestsThrough() {
	h := s.build(failingStore{})
	rr := httptest.DoRequest(h, s.request(http.MethodGet, "/accounts/me", id.NewUserID(), "192.0.2.1"))
	httptest.AssertStatus(s.T(), rr, http.StatusNoContent)
	s.Equal(float64(1), testutil.ToFloat64(s.metrics.Checks.WithLabelValues("default", "error")))
}

// =============================================================================
// Construction and classification
// =============================================================================

func (s *RateLimitSuite) TestNewRequiresDefaultLimit() {
	_, err := New(store.NewInMemory(), map[models.Class]models.Limit{
		models.ClassFlows: {Requests: 1, Window: time.Minute},
	}, slog.Default())
	s.Error(err)

	_, err = New(store.NewInMemory(), map[models.Class]models.Limit{
		models.ClassDefault: {Requests: 0, Window: time.Minute},
	}, slog.Default())
	s.Error(err)
}

func (s *RateLimitSuite) TestClassifyByPath() {
	cases := []struct {
		method, path string
		want         models.Class
	}{
		{http.MethodPost, "/flows/pitch", models.ClassFlows},
		{http.MethodPost, "/projects/abc/investments", models.ClassMoney},
		{http.MethodPost, "/projects/abc/withdrawals", models.ClassMoney},
		{http.MethodPost, "/projects/abc/publish", models.ClassDefault},
		{http.MethodGet, "/payouts/abc", models.ClassDefault},
	}
	for _, tc := range cases {
		s.Equal(tc.want, ClassifyByPath(httptest.NewRequest(s.T(), tc.method, tc.path)), tc.path)
	}
}
