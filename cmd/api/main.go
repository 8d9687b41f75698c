package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/hibiken/asynq"
	"github.com/microcosm-cc/bluemonday"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/extra/redisotel/v9"
	redis "github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stripe/stripe-go/v81"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/noah-isme/storefront-core/internal/account"
	"github.com/noah-isme/storefront-core/internal/auth"
	"github.com/noah-isme/storefront-core/internal/cart"
	"github.com/noah-isme/storefront-core/internal/catalog"
	"github.com/noah-isme/storefront-core/internal/common"
	"github.com/noah-isme/storefront-core/internal/config"
	"github.com/noah-isme/storefront-core/internal/email"
	"github.com/noah-isme/storefront-core/internal/events"
	"github.com/noah-isme/storefront-core/internal/fulfillment"
	"github.com/noah-isme/storefront-core/internal/health"
	"github.com/noah-isme/storefront-core/internal/inventory"
	"github.com/noah-isme/storefront-core/internal/lock"
	"github.com/noah-isme/storefront-core/internal/obs"
	"github.com/noah-isme/storefront-core/internal/order"
	"github.com/noah-isme/storefront-core/internal/payment"
	"github.com/noah-isme/storefront-core/internal/plugin"
	"github.com/noah-isme/storefront-core/internal/ratelimit"
	"github.com/noah-isme/storefront-core/internal/resilience"
	"github.com/noah-isme/storefront-core/internal/security"
	"github.com/noah-isme/storefront-core/internal/shipping"
	"github.com/noah-isme/storefront-core/internal/shop"
	"github.com/noah-isme/storefront-core/internal/store"
	"github.com/noah-isme/storefront-core/internal/store/mongostore"
	"github.com/noah-isme/storefront-core/internal/store/pgstore"
	"github.com/noah-isme/storefront-core/internal/surcharge"
	"github.com/noah-isme/storefront-core/internal/tax"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	logger := obs.NewLogger(cfg.Obs.ServiceName, cfg.Obs.LogFormat, cfg.Obs.LogLevel).
		With().Str("env", cfg.AppEnv).Logger()

	rootCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	obs.MustRegisterDomainMetrics(cfg.Obs.MetricsNamespace, registry)
	resilience.MustRegisterMetrics(registry)
	httpMetrics := obs.NewHTTPMetrics(cfg.Obs.MetricsNamespace, obs.ParseBucketsCSV(cfg.Obs.MetricsBuckets), registry)

	shutdownTracer, err := obs.InitTracer(rootCtx, obs.TracingConfig{
		ServiceName:   cfg.Obs.ServiceName,
		Endpoint:      cfg.Obs.TracingEndpoint,
		Exporter:      cfg.Obs.TracingExporter,
		SamplingRatio: cfg.Obs.TracingSampling,
		Environment:   cfg.AppEnv,
	})
	if err != nil {
		logger.Error().Err(err).Msg("initialise tracing")
		shutdownTracer = func(context.Context) error { return nil }
	}

	ctx, cancel := context.WithTimeout(rootCtx, 15*time.Second)
	db, err := openStore(ctx, cfg, logger)
	cancel()
	if err != nil {
		logger.Fatal().Err(err).Str("driver", cfg.StoreDriver).Msg("open store")
	}

	redisOpts, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logger.Fatal().Err(err).Msg("parse redis url")
	}
	redisClient := redis.NewClient(redisOpts)
	if err := redisotel.InstrumentTracing(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis tracing")
	}
	if err := redisotel.InstrumentMetrics(redisClient); err != nil {
		logger.Error().Err(err).Msg("instrument redis metrics")
	}
	if err := redisClient.Ping(rootCtx).Err(); err != nil {
		logger.Fatal().Err(err).Msg("ping redis")
	}

	emailQueue := asynq.NewClient(asynq.RedisClientOpt{
		Addr:     redisOpts.Addr,
		Username: redisOpts.Username,
		Password: redisOpts.Password,
		DB:       redisOpts.DB,
	})

	bus := events.NewBus(db)

	catalogSvc := &catalog.Service{
		Products: db,
		Cache:    catalog.NewCache(redisClient, "catalog", cfg.CatalogCacheTTL),
		Logger:   logger,
	}
	inventorySvc := &inventory.Service{
		Inventory: db,
		Products:  db,
		Catalog:   catalogSvc,
		Bus:       bus,
		Logger:    logger,
	}

	plugins, err := buildPlugins(cfg, logger, inventorySvc)
	if err != nil {
		logger.Fatal().Err(err).Msg("register plugins")
	}
	if err := plugins.Startup(rootCtx, bus); err != nil {
		logger.Fatal().Err(err).Msg("plugin startup")
	}
	logger.Info().Strs("plugins", plugins.Names()).Msg("plugins started")

	calculator, err := buildCalculator(cfg, logger, plugins)
	if err != nil {
		logger.Fatal().Err(err).Msg("configure totals calculator")
	}

	cartSvc := &cart.Service{
		Carts:        db,
		Catalog:      catalogSvc,
		Bus:          bus,
		Plugins:      plugins,
		Totals:       calculator,
		Locker:       lock.Locker{R: redisClient, Prefix: "lock:cart"},
		LockTTL:      cfg.ReconcileLockTTL,
		CurrencyCode: cfg.CurrencyCode,
		Logger:       logger,
	}
	shopSvc := &shop.Service{Shops: db, Bus: bus, Logger: logger}
	accountSvc := &account.Service{Accounts: db, Logger: logger}
	mailer := &email.Mailer{
		Client: emailQueue,
		Queue:  cfg.EmailQueue,
		Builder: &email.Builder{
			Shops:   db,
			Orders:  db,
			Plugins: plugins,
			Policy:  bluemonday.StrictPolicy(),
		},
		Shops:  db,
		Logger: logger,
	}
	orderSvc := &order.Service{
		Carts:   cartSvc,
		Store:   db,
		Plugins: plugins,
		Bus:     bus,
		Emails:  mailer,
		Logger:  logger,
	}

	verifier := &auth.Verifier{Secret: []byte(cfg.JWTSecret), Issuer: cfg.JWTIssuer, ClockSkew: 30 * time.Second}
	authMiddleware := auth.Middleware{Verifier: verifier, Logger: logger}

	limiter, err := ratelimit.NewRedis(redisClient, "ratelimit", cfg.RateLimitPerMinute)
	if err != nil {
		logger.Fatal().Err(err).Msg("configure rate limiter")
	}
	rateLimit := ratelimit.Handler{
		Limiter: limiter,
		OnError: func(err error) { logger.Warn().Err(err).Msg("rate limiter unavailable") },
	}
	idem := common.Idem{R: redisClient, TTL: cfg.IdempotencyTTL}

	healthHandler := health.Handler{Probes: []health.Probe{
		health.PingerProbe("store", db, 500*time.Millisecond),
		health.RedisProbe(redisClient, 300*time.Millisecond),
	}}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(obs.RoutePatternMiddleware)
	r.Use(obs.TracingMiddleware)
	r.Use(obs.HTTPObs{Metrics: httpMetrics}.Middleware)
	r.Use(obs.RequestLogger{Logger: logger}.Middleware)
	r.Use(security.Headers{HSTS: cfg.HSTSEnabled}.Middleware)
	r.Use(security.BodyLimit{Max: cfg.MaxBodyBytes}.Middleware)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins(cfg),
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodPatch, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Accept-Language", "Authorization", "Content-Type", "Idempotency-Key", common.CartTokenHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{Registry: registry}))
	r.Get("/health/live", healthHandler.Live)
	r.Get("/health/ready", healthHandler.Ready)

	r.Route("/api/v1", func(v chi.Router) {
		v.Use(authMiddleware.Authenticate)
		v.Use(rateLimit.Middleware)

		v.Get("/catalog/media", catalog.Handler{Service: catalogSvc}.Media)
		(&shop.Handler{Svc: shopSvc}).Routes(v)

		v.Group(func(g chi.Router) {
			g.Use(idem.Middleware)
			(&cart.Handler{Svc: cartSvc}).Routes(g)
			(&order.Handler{Svc: orderSvc}).Routes(g)
		})

		v.Group(func(g chi.Router) {
			g.Use(authMiddleware.RequireAuth)
			(&account.Handler{Svc: accountSvc}).Routes(g)
		})
	})

	srv := &http.Server{
		Addr:              cfg.HTTPAddr(),
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info().Str("addr", srv.Addr).Str("store", cfg.StoreDriver).Msg("server starting")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Fatal().Err(err).Msg("server exited unexpectedly")
		}
	}()

	<-rootCtx.Done()
	health.SetReady(false)
	logger.Info().Msg("shutting down")

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 20*time.Second)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("http shutdown")
	}
	if err := emailQueue.Close(); err != nil {
		logger.Error().Err(err).Msg("close email queue")
	}
	if err := redisClient.Close(); err != nil {
		logger.Error().Err(err).Msg("close redis")
	}
	if err := db.Close(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("close store")
	}
	if err := shutdownTracer(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("shutdown tracer")
	}
}

func openStore(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (store.Store, error) {
	switch cfg.StoreDriver {
	case config.StoreMongo:
		return mongostore.Connect(ctx, cfg.MongoURI, cfg.MongoDatabase, logger)
	case config.StorePostgres:
		return pgstore.Connect(ctx, cfg.DatabaseURL)
	default:
		logger.Warn().Msg("using in-memory store; data is lost on restart")
		return store.NewMemory(), nil
	}
}

func buildPlugins(cfg *config.Config, logger zerolog.Logger, inventorySvc *inventory.Service) (*plugin.Registry, error) {
	var surchargeRules []plugin.SurchargeRule
	if regions := splitList(cfg.SurchargeRegions); len(regions) > 0 {
		fees, err := surcharge.ParseFees(regions)
		if err != nil {
			return nil, err
		}
		surchargeRules = append(surchargeRules, surcharge.RegionRule{Fees: fees})
	}
	if cfg.BulkyItemFee != "" {
		fee, err := decimal.NewFromString(cfg.BulkyItemFee)
		if err != nil {
			return nil, err
		}
		surchargeRules = append(surchargeRules, surcharge.HeavyItemRule{PerUnit: fee})
	}

	methods := []plugin.PaymentMethod{payment.InAdvance{}}
	if cfg.StripeSecretKey != "" {
		stripeMethod, err := payment.NewStripeProcessor(payment.StripeConfig{
			APIKey:   cfg.StripeSecretKey,
			Backends: stripeBackends(),
			Breaker:  resilience.NewBreaker("stripe", 5, 0.5, 30*time.Second).WithLogger(logger),
			Logger:   logger,
		})
		if err != nil {
			return nil, err
		}
		methods = append(methods, stripeMethod)
	}

	reg := &plugin.Registry{}
	for _, p := range []plugin.Plugin{
		surcharge.Plugin(surchargeRules...),
		payment.Plugin(methods...),
		inventorySvc.Plugin(),
		email.Plugin(logger),
	} {
		if err := reg.Register(p); err != nil {
			return nil, err
		}
	}
	return reg, nil
}

// stripeBackends routes Stripe calls through a traced HTTP client.
func stripeBackends() *stripe.Backends {
	httpClient := &http.Client{
		Timeout:   20 * time.Second,
		Transport: otelhttp.NewTransport(http.DefaultTransport),
	}
	backend := func(t stripe.SupportedBackend) stripe.Backend {
		return stripe.GetBackendWithConfig(t, &stripe.BackendConfig{HTTPClient: httpClient})
	}
	return &stripe.Backends{
		API:     backend(stripe.APIBackend),
		Connect: backend(stripe.ConnectBackend),
		Uploads: backend(stripe.UploadsBackend),
	}
}

func buildCalculator(cfg *config.Config, logger zerolog.Logger, plugins *plugin.Registry) (*fulfillment.Calculator, error) {
	methods, err := shipping.ParseMethods(splitList(cfg.ShippingMethods))
	if err != nil {
		return nil, err
	}
	jurisdictions, err := tax.ParseJurisdictions(splitList(cfg.TaxJurisdictionRates))
	if err != nil {
		return nil, err
	}
	return &fulfillment.Calculator{
		Quoter: shipping.GuardedQuoter{
			Next: shipping.FlatRateTable{Methods: methods},
			Breaker: resilience.NewBreaker("shipping",
				cfg.ShippingBreakerMinRequests, cfg.ShippingBreakerRatio, cfg.ShippingBreakerOpenFor).WithLogger(logger),
		},
		Tax:        tax.RateTable{DefaultBps: cfg.TaxRateBps, Jurisdictions: jurisdictions},
		Surcharges: plugins,
	}, nil
}

func allowedOrigins(cfg *config.Config) []string {
	if len(cfg.CORSAllowedOrigins) == 0 {
		return []string{"*"}
	}
	return cfg.CORSAllowedOrigins
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
