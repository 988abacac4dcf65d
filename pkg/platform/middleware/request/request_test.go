package request

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"crowdfund/pkg/platform/middleware/device"
	"crowdfund/pkg/requestcontext"
	"crowdfund/pkg/testutil"
)

func TestRequestID(t *testing.T) {
	var seen string
	h := RequestID(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = requestcontext.RequestID(r.Context())
	}))

	t.Run("keeps a well-formed inbound id", func(t *testing.T) {
		req := testutil.NewRequest(t, http.MethodGet, "/health")
		req.Header.Set(HeaderRequestID, "req-123")
		rr := testutil.DoRequest(h, req)
		assert.Equal(t, "req-123", seen)
		assert.Equal(t, "req-123", rr.Header().Get(HeaderRequestID))
	})

	t.Run("mints an id when absent", func(t *testing.T) {
		rr := testutil.DoRequest(h, testutil.NewRequest(t, http.MethodGet, "/health"))
		assert.Len(t, seen, 36)
		assert.Equal(t, seen, rr.Header().Get(HeaderRequestID))
	})

	t.Run("replaces an oversized or non-printable id", func(t *testing.T) {
		for _, bad := range []string{strings.Repeat("a", 129), "has space", "tab\tin"} {
			req := testutil.NewRequest(t, http.MethodGet, "/health")
			req.Header.Set(HeaderRequestID, bad)
			testutil.DoRequest(h, req)
			assert.NotEqual(t, bad, seen)
			assert.Len(t, seen, 36)
		}
	})
}

func TestRecovery(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	h := RequestID(Recovery(logger)(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))

	rr := testutil.DoRequest(h, testutil.NewRequest(t, http.MethodGet, "/projects"))

	testutil.AssertStatusAndError(t, rr, http.StatusInternalServerError, "internal_error")
	assert.Contains(t, buf.String(), "panic recovered")
	assert.Contains(t, buf.String(), rr.Header().Get(HeaderRequestID))
}

func TestRequireJSON(t *testing.T) {
	h := RequireJSON(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	t.Run("json body passes", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/projects", map[string]string{"title": "x"})
		req.Header.Set("Content-Type", "application/json; charset=utf-8")
		testutil.AssertStatus(t, testutil.DoRequest(h, req), http.StatusNoContent)
	})

	t.Run("form body is refused", func(t *testing.T) {
		req := testutil.NewJSONRequest(t, http.MethodPost, "/projects", map[string]string{"title": "x"})
		req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		testutil.AssertStatusAndError(t, testutil.DoRequest(h, req), http.StatusUnsupportedMediaType, "unsupported_media_type")
	})

	t.Run("bodyless post passes", func(t *testing.T) {
		testutil.AssertStatus(t, testutil.DoRequest(h, testutil.NewRequest(t, http.MethodPost, "/projects/1/publish")), http.StatusNoContent)
	})
}

type observation struct {
	method, route, status string
}

type recordingObserver struct {
	mu  sync.Mutex
	got []observation
}

func (o *recordingObserver) ObserveRequest(method, route, status string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.got = append(o.got, observation{method, route, status})
}

func TestLoggerAndMetricsUseRoutePattern(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	obs := &recordingObserver{}

	r := chi.NewRouter()
	r.Use(RequestID, device.Middleware, Logger(logger), Metrics(obs))
	r.Get("/projects/{id}", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	req := testutil.NewRequest(t, http.MethodGet, "/projects/abc")
	req.Header.Set("User-Agent", "Mozilla/5.0 (X11; Linux x86_64; rv:120.0) Gecko/20100101 Firefox/120.0")
	testutil.DoRequest(r, req)
	testutil.DoRequest(r, testutil.NewRequest(t, http.MethodGet, "/nowhere"))

	require.Len(t, obs.got, 2)
	assert.Equal(t, observation{"GET", "/projects/{id}", "404"}, obs.got[0])
	assert.Equal(t, "unmatched", obs.got[1].route)

	var line map[string]any
	require.NoError(t, json.Unmarshal(bytes.SplitN(buf.Bytes(), []byte("\n"), 2)[0], &line))
	assert.Equal(t, "WARN", line["level"])
	assert.Equal(t, "/projects/{id}", line["route"])
	assert.Equal(t, "Firefox", line["browser"])
	assert.Equal(t, float64(404), line["status"])
}
