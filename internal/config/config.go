package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/v2"
)

// Store drivers.
const (
	StoreMemory   = "memory"
	StoreMongo    = "mongo"
	StorePostgres = "postgres"
)

// Config holds application configuration loaded from the environment.
type Config struct {
	AppEnv             string
	Port               string
	StoreDriver        string
	MongoURI           string
	MongoDatabase      string
	DatabaseURL        string
	RedisURL           string
	JWTSecret          string
	JWTIssuer          string
	CORSAllowedOrigins []string

	CurrencyCode         string
	TaxRateBps           int64
	TaxJurisdictionRates string
	ShippingMethods      string
	SurchargeRegions     string
	BulkyItemFee         string

	CatalogCacheTTL        time.Duration
	IdempotencyTTL         time.Duration
	ReconcileLockTTL       time.Duration
	RateLimitPerMinute     int64
	MaxBodyBytes           int64
	HSTSEnabled            bool
	StripeSecretKey        string
	EmailQueue             string
	EmailWorkerConcurrency int

	ShippingBreakerMinRequests int
	ShippingBreakerRatio       float64
	ShippingBreakerOpenFor     time.Duration

	Obs ObsConfig
}

// ObsConfig holds logging, metrics and tracing settings.
type ObsConfig struct {
	ServiceName      string
	LogFormat        string
	LogLevel         string
	MetricsNamespace string
	MetricsBuckets   string
	TracingExporter  string
	TracingEndpoint  string
	TracingSampling  float64
}

// Load reads configuration from environment variables and optional .env files.
func Load() (*Config, error) {
	_ = godotenv.Load()

	k := koanf.New(".")
	if err := k.Load(env.Provider("", ".", func(s string) string { return s }), nil); err != nil {
		return nil, fmt.Errorf("load env: %w", err)
	}

	cfg := &Config{
		AppEnv:             valueOrDefault(k.String("APP_ENV"), "development"),
		Port:               valueOrDefault(k.String("PORT"), "8080"),
		StoreDriver:        strings.ToLower(valueOrDefault(k.String("STORE_DRIVER"), StoreMemory)),
		MongoURI:           strings.TrimSpace(k.String("MONGO_URI")),
		MongoDatabase:      valueOrDefault(k.String("MONGO_DATABASE"), "storefront"),
		DatabaseURL:        strings.TrimSpace(k.String("DATABASE_URL")),
		RedisURL:           strings.TrimSpace(k.String("REDIS_URL")),
		JWTSecret:          k.String("JWT_SECRET"),
		JWTIssuer:          strings.TrimSpace(k.String("JWT_ISSUER")),
		CORSAllowedOrigins: splitAndTrim(k.String("CORS_ALLOWED_ORIGINS")),

		CurrencyCode:         strings.ToUpper(valueOrDefault(k.String("CURRENCY_CODE"), "USD")),
		TaxRateBps:           parseInt(k.String("TAX_RATE_BPS"), 0),
		TaxJurisdictionRates: k.String("TAX_JURISDICTION_RATES"),
		ShippingMethods:      valueOrDefault(k.String("SHIPPING_METHODS"), "standard:Flat Rate:5.00"),
		SurchargeRegions:     k.String("SURCHARGE_REGIONS"),
		BulkyItemFee:         strings.TrimSpace(k.String("BULKY_ITEM_FEE")),

		CatalogCacheTTL:        parseDuration(k.String("CATALOG_CACHE_TTL"), "5m"),
		IdempotencyTTL:         parseDuration(k.String("IDEMPOTENCY_TTL"), "24h"),
		ReconcileLockTTL:       parseDuration(k.String("RECONCILE_LOCK_TTL"), "10s"),
		RateLimitPerMinute:     parseInt(k.String("RATE_LIMIT_PER_MINUTE"), 120),
		MaxBodyBytes:           parseInt(k.String("MAX_BODY_BYTES"), 1<<20),
		HSTSEnabled:            parseBool(k.String("HSTS_ENABLED"), false),
		StripeSecretKey:        strings.TrimSpace(k.String("STRIPE_SECRET_KEY")),
		EmailQueue:             valueOrDefault(k.String("EMAIL_QUEUE"), "emails"),
		EmailWorkerConcurrency: int(parseInt(k.String("EMAIL_WORKER_CONCURRENCY"), 5)),

		ShippingBreakerMinRequests: int(parseInt(k.String("SHIPPING_BREAKER_MIN_REQUESTS"), 10)),
		ShippingBreakerRatio:       parseFloat(k.String("SHIPPING_BREAKER_FAILURE_RATIO"), 0.5),
		ShippingBreakerOpenFor:     parseDuration(k.String("SHIPPING_BREAKER_OPEN_FOR"), "30s"),

		Obs: ObsConfig{
			ServiceName:      valueOrDefault(k.String("OBS_SERVICE_NAME"), "storefront-core"),
			LogFormat:        valueOrDefault(k.String("OBS_LOG_FORMAT"), "json"),
			LogLevel:         valueOrDefault(k.String("OBS_LOG_LEVEL"), "info"),
			MetricsNamespace: valueOrDefault(k.String("OBS_METRICS_NAMESPACE"), "storefront"),
			MetricsBuckets:   k.String("OBS_METRICS_BUCKETS_MS"),
			TracingExporter:  valueOrDefault(k.String("OBS_TRACING_EXPORTER"), "none"),
			TracingEndpoint:  strings.TrimSpace(k.String("OBS_TRACING_ENDPOINT")),
			TracingSampling:  parseFloat(k.String("OBS_TRACING_SAMPLING_RATIO"), 1),
		},
	}

	switch cfg.StoreDriver {
	case StoreMemory:
	case StoreMongo:
		if cfg.MongoURI == "" {
			return nil, errors.New("MONGO_URI is required when STORE_DRIVER=mongo")
		}
	case StorePostgres:
		if cfg.DatabaseURL == "" {
			return nil, errors.New("DATABASE_URL is required when STORE_DRIVER=postgres")
		}
	default:
		return nil, fmt.Errorf("unsupported STORE_DRIVER %q", cfg.StoreDriver)
	}
	if cfg.RedisURL == "" {
		return nil, errors.New("REDIS_URL is required")
	}
	if cfg.JWTSecret == "" {
		return nil, errors.New("JWT_SECRET is required")
	}
	if cfg.TaxRateBps < 0 {
		return nil, errors.New("TAX_RATE_BPS must not be negative")
	}

	return cfg, nil
}

// HTTPAddr returns the address the HTTP server should bind to.
func (c *Config) HTTPAddr() string {
	port := strings.TrimSpace(c.Port)
	if port == "" {
		port = "8080"
	}
	if strings.HasPrefix(port, ":") {
		return port
	}
	return ":" + port
}

func splitAndTrim(value string) []string {
	if value == "" {
		return nil
	}
	parts := strings.Split(value, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		if trimmed := strings.TrimSpace(part); trimmed != "" {
			result = append(result, trimmed)
		}
	}
	return result
}

func valueOrDefault(value, fallback string) string {
	if strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func parseDuration(value, fallback string) time.Duration {
	base := strings.TrimSpace(value)
	if base == "" {
		base = fallback
	}
	d, err := time.ParseDuration(base)
	if err != nil {
		d, _ = time.ParseDuration(fallback)
	}
	return d
}

func parseInt(value string, fallback int64) int64 {
	v, err := strconv.ParseInt(strings.TrimSpace(value), 10, 64)
	if err != nil {
		return fallback
	}
	return v
}

func parseFloat(value string, fallback float64) float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return fallback
	}
	return v
}

// MustLoad behaves like Load but panics on error.
func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		panic(err)
	}
	return cfg
}

// LoadForTests overrides environment variables for the duration of Load.
func LoadForTests(env map[string]string) (*Config, error) {
	original := make(map[string]string, len(env))
	for key := range env {
		original[key] = os.Getenv(key)
		if err := setEnvVar(key, env[key]); err != nil {
			return nil, err
		}
	}
	cfg, err := Load()
	restoreErr := restoreEnv(original)
	if err != nil {
		return nil, err
	}
	return cfg, restoreErr
}

func setEnvVar(key, value string) error {
	if value == "" {
		return os.Unsetenv(key)
	}
	return os.Setenv(key, value)
}

func restoreEnv(values map[string]string) error {
	var errs []string
	for key, value := range values {
		if err := setEnvVar(key, value); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", key, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("restore env: %s", strings.Join(errs, "; "))
	}
	return nil
}

func parseBool(value string, fallback bool) bool {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "1", "t", "true", "yes", "on":
		return true
	case "0", "f", "false", "no", "off":
		return false
	}
	return fallback
}
