package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Producer is the slice of *kgo.Client the publisher needs.
type Producer interface {
	ProduceSync(ctx context.Context, rs ...*kgo.Record) kgo.ProduceResults
}

// Metrics counts publish attempts by result.
type Metrics struct {
	Published      *prometheus.CounterVec
	PublishLatency prometheus.Histogram
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		Published: f.NewCounterVec(prometheus.CounterOpts{
			Name: "crowdfund_decision_events_published_total",
			Help: "Decision events written to Kafka, by result",
		}, []string{"result"}),
		PublishLatency: f.NewHistogram(prometheus.HistogramOpts{
			Name:    "crowdfund_decision_event_publish_duration_seconds",
			Help:    "Synchronous produce latency for decision events",
			Buckets: prometheus.DefBuckets,
		}),
	}
}

func (m *Metrics) observe(err error, d time.Duration) {
	if m == nil {
		return
	}
	result := "ok"
	if err != nil {
		result = "error"
	}
	m.Published.WithLabelValues(result).Inc()
	m.PublishLatency.Observe(d.Seconds())
}

// Kafka produces JSON events keyed by user id so one user's decisions stay
// ordered within a partition.
type Kafka struct {
	producer Producer
	topic    string
	logger   *slog.Logger
	metrics  *Metrics
}

type KafkaOption func(*Kafka)

func WithLogger(logger *slog.Logger) KafkaOption {
	return func(k *Kafka) { k.logger = logger }
}

func WithMetrics(m *Metrics) KafkaOption {
	return func(k *Kafka) { k.metrics = m }
}

func NewKafka(producer Producer, topic string, opts ...KafkaOption) *Kafka {
	k := &Kafka{producer: producer, topic: topic, logger: slog.Default()}
	for _, opt := range opts {
		opt(k)
	}
	return k
}

func (k *Kafka) Publish(ctx context.Context, event DecisionEvent) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode decision event: %w", err)
	}
	record := &kgo.Record{
		Topic: k.topic,
		Key:   []byte(event.UserID.String()),
		Value: value,
		Headers: []kgo.RecordHeader{
			{Key: "event_id", Value: []byte(event.EventID.String())},
			{Key: "action", Value: []byte(event.Action)},
		},
	}

	start := time.Now()
	err = k.producer.ProduceSync(ctx, record).FirstErr()
	k.metrics.observe(err, time.Since(start))
	if err != nil {
		k.logger.ErrorContext(ctx, "decision event publish failed",
			"request_id", event.RequestID,
			"event_id", event.EventID,
			"user_id", event.UserID,
			"action", event.Action,
			"error", err,
		)
		return fmt.Errorf("publish decision event: %w", err)
	}
	return nil
}
