package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	accounthandler "crowdfund/internal/accounts/handler"
	accountmetrics "crowdfund/internal/accounts/metrics"
	accountservice "crowdfund/internal/accounts/service"
	accountstore "crowdfund/internal/accounts/store"
	compliancehandler "crowdfund/internal/compliance/handler"
	compliancemetrics "crowdfund/internal/compliance/metrics"
	complianceservice "crowdfund/internal/compliance/service"
	"crowdfund/internal/countries"
	"crowdfund/internal/events"
	"crowdfund/internal/flows"
	flowshandler "crowdfund/internal/flows/handler"
	flowmetrics "crowdfund/internal/flows/metrics"
	marketplacehandler "crowdfund/internal/marketplace/handler"
	marketplacemetrics "crowdfund/internal/marketplace/metrics"
	marketplaceservice "crowdfund/internal/marketplace/service"
	marketplacestore "crowdfund/internal/marketplace/store"
	"crowdfund/internal/payouts"
	"crowdfund/internal/platform/config"
	"crowdfund/internal/platform/kafka"
	"crowdfund/internal/platform/metrics"
	"crowdfund/internal/platform/postgres"
	platformredis "crowdfund/internal/platform/redis"
	ratelimitmetrics "crowdfund/internal/ratelimit/metrics"
	ratelimitmw "crowdfund/internal/ratelimit/middleware"
	ratelimitmodels "crowdfund/internal/ratelimit/models"
	ratelimitstore "crowdfund/internal/ratelimit/store"
	reviewhandler "crowdfund/internal/review/handler"
	reviewmetrics "crowdfund/internal/review/metrics"
	reviewservice "crowdfund/internal/review/service"
	reviewstore "crowdfund/internal/review/store"
	"crowdfund/internal/secrets"
	httptransport "crowdfund/internal/transport/http"
	dErrors "crowdfund/pkg/domain-errors"
	"crowdfund/pkg/platform/circuit"
	"crowdfund/pkg/platform/middleware/auth"
)

const (
	reviewKeyPrefix    = "crowdfund:review"
	rateLimitKeyPrefix = "crowdfund"
)

// app owns the router and every connection it must close on shutdown.
type app struct {
	Router  http.Handler
	closers []func() error
}

func (a *app) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		_ = a.closers[i]()
	}
}

func build(ctx context.Context, cfg config.Config, log *slog.Logger) (*app, error) {
	a := &app{}
	m := metrics.New()
	checks := map[string]httptransport.HealthCheck{}
	secretStore := secrets.NewCaching(secrets.NewEnv(cfg.Server.SecretsPrefix))

	table, err := loadCountries(cfg.Countries)
	if err != nil {
		return nil, err
	}

	db, err := postgres.Open(ctx, postgres.Config{
		URL:             cfg.Database.URL,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	})
	if err != nil {
		return nil, err
	}
	if db != nil {
		a.closers = append(a.closers, db.Close)
		checks["postgres"] = db.PingContext
		if cfg.Database.AutoMigrate {
			if err := postgres.Migrate(db); err != nil {
				a.Close()
				return nil, err
			}
		}
		log.Info("using postgres stores")
	} else {
		log.Warn("DATABASE_URL not set, using in-memory stores")
	}

	rc, err := platformredis.New(ctx, cfg.Redis)
	if err != nil {
		a.Close()
		return nil, err
	}
	if rc != nil {
		a.closers = append(a.closers, rc.Close)
		checks["redis"] = rc.Health
	}
	reviewStore := buildReviewStore(cfg.Review, rc)
	rateLimit, err := buildRateLimit(cfg.RateLimit, rc, log, m)
	if err != nil {
		a.Close()
		return nil, err
	}
	publisher, err := buildPublisher(ctx, cfg, log, m, a, checks)
	if err != nil {
		a.Close()
		return nil, err
	}

	accounts, err := accountservice.New(accountStore(db), table,
		accountservice.WithLogger(log),
		accountservice.WithMetrics(accountmetrics.New(m.Registry)),
	)
	if err != nil {
		a.Close()
		return nil, err
	}

	reviews, err := reviewservice.New(reviewStore,
		reviewservice.WithLogger(log),
		reviewservice.WithMetrics(reviewmetrics.New(m.Registry)),
	)
	if err != nil {
		a.Close()
		return nil, err
	}
	accountResolver := complianceservice.NewAccountResolver(accounts, log)
	reviews.RegisterResolver(accountResolver, accountResolver.Actions()...)

	complianceMetrics := compliancemetrics.New(m.Registry)
	recorder := complianceservice.NewRecorder(publisher, reviews,
		complianceservice.WithRecorderLogger(log),
		complianceservice.WithRecorderMetrics(complianceMetrics),
	)
	checker, err := complianceservice.New(accounts, recorder,
		complianceservice.WithLogger(log),
		complianceservice.WithMetrics(complianceMetrics),
	)
	if err != nil {
		a.Close()
		return nil, err
	}

	payoutProvider := payouts.NewGuarded(payouts.NewSandbox(log),
		circuit.New("payouts", circuit.WithFailureThreshold(5), circuit.WithCooldown(30*time.Second)),
		payouts.WithLogger(log),
		payouts.WithMetrics(payouts.NewMetrics(m.Registry)),
	)
	projectStore, projectTx := marketplaceStores(db)
	marketplace, err := marketplaceservice.New(projectStore, projectTx, accounts, checker, payoutProvider,
		marketplaceservice.WithLogger(log),
		marketplaceservice.WithMetrics(marketplacemetrics.New(m.Registry)),
	)
	if err != nil {
		a.Close()
		return nil, err
	}
	reviews.RegisterResolver(marketplace, marketplace.ReviewActions()...)

	accountsHandler := accounthandler.New(accounts, log)
	complianceHandler := compliancehandler.New(checker, log)
	marketplaceHandler := marketplacehandler.New(marketplace, log)
	user := []httptransport.UserRoutes{
		accountsHandler,
		complianceHandler,
		marketplaceHandler,
	}
	flowService, err := buildFlows(ctx, cfg.LLM, secretStore, accounts, marketplace, log, m)
	if err != nil {
		a.Close()
		return nil, err
	}
	if flowService != nil {
		user = append(user, flowshandler.New(flowService, log))
	}

	validatorOpts := []auth.ValidatorOption{}
	if cfg.Server.JWTIssuer != "" {
		validatorOpts = append(validatorOpts, auth.WithIssuer(cfg.Server.JWTIssuer))
	}
	if cfg.Server.JWTAudience != "" {
		validatorOpts = append(validatorOpts, auth.WithAudience(cfg.Server.JWTAudience))
	}

	a.Router = httptransport.NewRouter(httptransport.Config{
		Logger:         log,
		Observer:       m,
		MetricsHandler: m.Handler(),
		Validator:      auth.NewValidator(secretStore, secrets.JWTSigningKey, validatorOpts...),
		Secrets:        secretStore,
		AdminHashName:  secrets.AdminTokenHash,
		RequestTimeout: cfg.Server.RequestTimeout,
		HealthChecks:   checks,
		RateLimit:      rateLimit,
		User:           user,
		Admin: []httptransport.AdminRoutes{
			accountsHandler,
			complianceHandler,
			marketplaceHandler,
			reviewhandler.New(reviews, log),
		},
	})
	return a, nil
}

func loadCountries(cfg config.CountriesConfig) (*countries.Table, error) {
	if cfg.TablePath != "" {
		return countries.Load(cfg.TablePath)
	}
	return countries.Default()
}

func accountStore(db *sql.DB) accountservice.Store {
	if db == nil {
		return accountstore.NewInMemory()
	}
	return accountstore.NewPostgres(db)
}

func marketplaceStores(db *sql.DB) (marketplacestore.Store, marketplaceservice.StoreTx) {
	if db == nil {
		st := marketplacestore.NewInMemory()
		return st, marketplacestore.NewInMemoryTx(st)
	}
	return marketplacestore.NewPostgres(db), marketplacestore.NewPostgresTx(db)
}

// buildReviewStore relies on config validation: the redis backend implies a
// client.
func buildReviewStore(cfg config.ReviewConfig, rc *platformredis.Client) reviewservice.Store {
	if cfg.Backend != "redis" || rc == nil {
		return reviewstore.NewInMemory()
	}
	return reviewstore.NewRedis(rc.Client, reviewKeyPrefix)
}

// buildRateLimit returns nil when rate limiting is disabled.
func buildRateLimit(cfg config.RateLimitConfig, rc *platformredis.Client, log *slog.Logger, m *metrics.Metrics) (func(http.Handler) http.Handler, error) {
	if !cfg.Enabled {
		log.Warn("rate limiting disabled")
		return nil, nil
	}
	var st ratelimitmw.Store = ratelimitstore.NewInMemory()
	if rc != nil {
		st = ratelimitstore.NewRedis(rc.Client, rateLimitKeyPrefix)
	}
	limiter, err := ratelimitmw.New(st, map[ratelimitmodels.Class]ratelimitmodels.Limit{
		ratelimitmodels.ClassDefault: {Requests: cfg.Default, Window: cfg.Window},
		ratelimitmodels.ClassMoney:   {Requests: cfg.Money, Window: cfg.Window},
		ratelimitmodels.ClassFlows:   {Requests: cfg.Flows, Window: cfg.Window},
	}, log, ratelimitmw.WithMetrics(ratelimitmetrics.New(m.Registry)))
	if err != nil {
		return nil, err
	}
	return limiter.Handler, nil
}

func buildPublisher(ctx context.Context, cfg config.Config, log *slog.Logger, m *metrics.Metrics, a *app, checks map[string]httptransport.HealthCheck) (complianceservice.Publisher, error) {
	kc, err := kafka.New(ctx, cfg.Kafka)
	if err != nil {
		return nil, err
	}
	if kc == nil {
		log.Warn("KAFKA_BROKERS not set, decision events are not published")
		return events.Noop{}, nil
	}
	a.closers = append(a.closers, func() error { kc.Close(); return nil })
	checks["kafka"] = kc.Health
	if err := kc.EnsureTopic(ctx, cfg.Kafka.Topic, cfg.Kafka.Partitions, cfg.Kafka.ReplicationFactor); err != nil {
		return nil, err
	}
	return events.NewKafka(kc.Client, cfg.Kafka.Topic,
		events.WithLogger(log),
		events.WithMetrics(events.NewMetrics(m.Registry)),
	), nil
}

// buildFlows returns nil when no model API key is configured; the flow routes
// are then not mounted.
func buildFlows(ctx context.Context, cfg config.LLMConfig, secretStore secrets.Provider, accounts flows.Accounts, projects flows.Projects, log *slog.Logger, m *metrics.Metrics) (*flows.Service, error) {
	apiKey, err := secretStore.Get(ctx, secrets.GenAIAPIKey)
	if dErrors.HasCode(err, dErrors.CodeNotFound) {
		log.Warn("GENAI_API_KEY not set, flow endpoints disabled")
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	client, err := flows.NewGenAI(ctx, apiKey)
	if err != nil {
		return nil, fmt.Errorf("create genai client: %w", err)
	}
	provider := flows.ProviderFunc(func(ctx context.Context, model, prompt string) (string, error) {
		ctx, cancel := context.WithTimeout(ctx, cfg.Timeout)
		defer cancel()
		return client.Generate(ctx, model, prompt)
	})
	chain, err := flows.NewChain(provider, cfg.Models, cfg.MaxAttempts,
		flows.WithLogger(log),
		flows.WithMetrics(flowmetrics.New(m.Registry)),
		flows.WithBreakerOptions(circuit.WithFailureThreshold(3), circuit.WithCooldown(time.Minute)),
	)
	if err != nil {
		return nil, err
	}
	return flows.NewService(chain, accounts, projects, flows.WithServiceLogger(log))
}
