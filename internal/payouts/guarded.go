package payouts

import (
	"context"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	dErrors "crowdfund/pkg/domain-errors"
	"crowdfund/pkg/platform/circuit"
	"crowdfund/pkg/requestcontext"
)

// Metrics tracks provider calls.
type Metrics struct {
	Transfers       *prometheus.CounterVec
	TransferLatency prometheus.Histogram
	BreakerOpen     prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Transfers: f.NewCounterVec(prometheus.CounterOpts{
			Name: "crowdfund_payout_transfers_total",
			Help: "Payout provider transfers by result",
		}, []string{"result"}),
		TransferLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "crowdfund_payout_transfer_duration_seconds",
			Help:    "Payout provider call latency",
			Buckets: prometheus.DefBuckets,
		}),
		BreakerOpen: f.NewGauge(prometheus.GaugeOpts{
			Name: "crowdfund_payout_breaker_open",
			Help: "1 while the payout provider circuit breaker is open",
		}),
	}
}

func (m *Metrics) observe(result string, d time.Duration) {
	if m == nil {
		return
	}
	m.Transfers.WithLabelValues(result).Inc()
	m.TransferLatency.Observe(d.Seconds())
}

func (m *Metrics) setOpen(open bool) {
	if m == nil {
		return
	}
	if open {
		m.BreakerOpen.Set(1)
		return
	}
	m.BreakerOpen.Set(0)
}

// Guarded wraps a Provider with a circuit breaker. While the breaker is open
// transfers fail fast as unavailable and the payout stays retryable.
type Guarded struct {
	next    Provider
	breaker *circuit.Breaker
	logger  *slog.Logger
	metrics *Metrics
}

type GuardedOption func(*Guarded)

func WithLogger(logger *slog.Logger) GuardedOption {
	return func(g *Guarded) { g.logger = logger }
}

func WithMetrics(m *Metrics) GuardedOption {
	return func(g *Guarded) { g.metrics = m }
}

func NewGuarded(next Provider, breaker *circuit.Breaker, opts ...GuardedOption) *Guarded {
	if breaker == nil {
		breaker = circuit.New("payouts")
	}
	g := &Guarded{next: next, breaker: breaker, logger: slog.Default()}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Guarded) Transfer(ctx context.Context, in Instruction) (string, error) {
	if !g.breaker.Allow() {
		g.metrics.observe("rejected", 0)
		return "", dErrors.New(dErrors.CodeUnavailable, "payout provider is unavailable")
	}
	start := time.Now()
	ref, err := g.next.Transfer(ctx, in)
	if err != nil {
		g.metrics.observe("error", time.Since(start))
		_, change := g.breaker.RecordFailure()
		if change.Opened {
			g.metrics.setOpen(true)
			g.logger.WarnContext(ctx, "payout provider circuit opened",
				"request_id", requestcontext.RequestID(ctx),
				"breaker", g.breaker.Name(),
			)
		}
		return "", dErrors.Wrap(err, dErrors.CodeUnavailable, "payout transfer failed")
	}
	g.metrics.observe("ok", time.Since(start))
	if _, change := g.breaker.RecordSuccess(); change.Closed {
		g.metrics.setOpen(false)
		g.logger.InfoContext(ctx, "payout provider circuit closed",
			"request_id", requestcontext.RequestID(ctx),
			"breaker", g.breaker.Name(),
		)
	}
	return ref, nil
}
