package flows

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"crowdfund/internal/flows/metrics"
	dErrors "crowdfund/pkg/domain-errors"
	"crowdfund/pkg/platform/circuit"
	"crowdfund/pkg/requestcontext"
)

// ErrExhausted is wrapped when no model produced valid output.
var ErrExhausted = errors.New("every model failed or returned invalid output")

// Output is a generated payload that checks itself after decoding.
type Output interface {
	Validate() error
}

// Result reports which model produced the output and how many attempts
// were made across all models.
type Result struct {
	Model    string `json:"model"`
	Attempts int    `json:"attempts"`
}

// Chain tries an ordered list of models. Each model gets at most maxAttempts
// tries and is skipped while its circuit breaker is open. Provider errors
// count against the breaker; output that fails to decode or validate only
// costs the attempt.
type Chain struct {
	provider    Provider
	models      []string
	maxAttempts int
	breakers    map[string]*circuit.Breaker
	logger      *slog.Logger
	metrics     *metrics.Metrics
}

type ChainOption func(*Chain)

func WithLogger(logger *slog.Logger) ChainOption {
	return func(c *Chain) {
		c.logger = logger
	}
}

func WithMetrics(m *metrics.Metrics) ChainOption {
	return func(c *Chain) {
		c.metrics = m
	}
}

// WithBreakerOptions configures every per-model breaker.
func WithBreakerOptions(opts ...circuit.Option) ChainOption {
	return func(c *Chain) {
		for name := range c.breakers {
			c.breakers[name] = circuit.New("flows:"+name, opts...)
		}
	}
}

func NewChain(provider Provider, models []string, maxAttempts int, opts ...ChainOption) (*Chain, error) {
	if provider == nil {
		return nil, errors.New("flow provider is required")
	}
	var names []string
	for _, m := range models {
		if m = strings.TrimSpace(m); m != "" {
			names = append(names, m)
		}
	}
	if len(names) == 0 {
		return nil, errors.New("at least one model is required")
	}
	if maxAttempts < 1 {
		maxAttempts = 1
	}
	c := &Chain{
		provider:    provider,
		models:      names,
		maxAttempts: maxAttempts,
		breakers:    make(map[string]*circuit.Breaker, len(names)),
		logger:      slog.Default(),
	}
	for _, name := range names {
		c.breakers[name] = circuit.New("flows:" + name)
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Models returns the configured model order.
func (c *Chain) Models() []string {
	return append([]string(nil), c.models...)
}

// Generate runs prompt through the chain and returns the first answer that
// decodes into T, passes T's Validate and, when given, check.
func Generate[T any, PT interface {
	*T
	Output
}](ctx context.Context, c *Chain, flow, prompt string, check func(*T) error) (*T, Result, error) {
	var out *T
	res, err := c.run(ctx, flow, prompt, func(text string) error {
		var candidate T
		if err := decode(text, PT(&candidate)); err != nil {
			return err
		}
		if check != nil {
			if err := check(&candidate); err != nil {
				return err
			}
		}
		out = &candidate
		return nil
	})
	if err != nil {
		return nil, res, err
	}
	return out, res, nil
}

func (c *Chain) run(ctx context.Context, flow, prompt string, accept func(text string) error) (Result, error) {
	attempts := 0
	var lastErr error
	for _, model := range c.models {
		breaker := c.breakers[model]
		if !breaker.Allow() {
			c.logger.WarnContext(ctx, "skipping model with open breaker",
				"request_id", requestcontext.RequestID(ctx),
				"flow", flow,
				"model", model,
			)
			continue
		}
		for attempt := 1; attempt <= c.maxAttempts; attempt++ {
			if err := ctx.Err(); err != nil {
				return Result{Attempts: attempts}, dErrors.Wrap(err, dErrors.CodeUnavailable, "flow generation cancelled")
			}
			attempts++
			start := time.Now()
			text, err := c.provider.Generate(ctx, model, prompt)
			if err != nil {
				lastErr = err
				c.metrics.ObserveAttempt(flow, model, "provider_error", time.Since(start))
				c.recordFailure(ctx, breaker, model)
				c.logger.WarnContext(ctx, "flow generation failed",
					"request_id", requestcontext.RequestID(ctx),
					"flow", flow,
					"model", model,
					"attempt", attempt,
					"error", err,
				)
				if !breaker.Allow() {
					break
				}
				continue
			}
			c.recordSuccess(breaker, model)
			if err := accept(text); err != nil {
				lastErr = err
				c.metrics.ObserveAttempt(flow, model, "invalid_output", time.Since(start))
				c.logger.WarnContext(ctx, "flow output rejected",
					"request_id", requestcontext.RequestID(ctx),
					"flow", flow,
					"model", model,
					"attempt", attempt,
					"error", err,
				)
				continue
			}
			c.metrics.ObserveAttempt(flow, model, "ok", time.Since(start))
			return Result{Model: model, Attempts: attempts}, nil
		}
	}
	if lastErr == nil {
		lastErr = errors.New("all model breakers are open")
	}
	return Result{Attempts: attempts}, dErrors.Wrap(fmt.Errorf("%w: %w", ErrExhausted, lastErr), dErrors.CodeUnavailable, "flow generation is unavailable")
}

func (c *Chain) recordFailure(ctx context.Context, b *circuit.Breaker, model string) {
	if _, change := b.RecordFailure(); change.Opened {
		c.metrics.SetBreakerOpen(model, true)
		c.logger.ErrorContext(ctx, "model breaker opened",
			"request_id", requestcontext.RequestID(ctx),
			"model", model,
		)
	}
}

func (c *Chain) recordSuccess(b *circuit.Breaker, model string) {
	if _, change := b.RecordSuccess(); change.Closed {
		c.metrics.SetBreakerOpen(model, false)
	}
}

// decode accepts bare JSON or JSON inside a markdown code fence, rejects
// unknown fields and runs the output's own validation.
func decode(text string, out Output) error {
	body := strings.TrimSpace(text)
	if strings.HasPrefix(body, "```") {
		body = strings.TrimPrefix(body, "```json")
		body = strings.TrimPrefix(body, "```")
		body = strings.TrimSuffix(strings.TrimSpace(body), "```")
	}
	dec := json.NewDecoder(strings.NewReader(body))
	dec.DisallowUnknownFields()
	if err := dec.Decode(out); err != nil {
		return fmt.Errorf("decode output: %w", err)
	}
	return out.Validate()
}
