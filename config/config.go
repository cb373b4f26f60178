package config

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"catalog-service/pkg/aws"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
)

// Config holds all settings of the catalog service.
type Config struct {
	Port string
	Env  string
	// InstanceID tags published change events so this instance can skip
	// its own when they come back through the queue.
	InstanceID string

	CatalogAPIURL   string
	RequestTimeout  time.Duration
	MediaOrigin     string
	DefaultCurrency string
	CacheTimeout    time.Duration
	PageSize        int

	RedisURL      string
	RedisCacheTTL time.Duration

	JWTSecret          string
	AllowedOrigins     []string
	SessionIdleTimeout time.Duration
	RateLimitPerMinute int

	AWS                 aws.Options
	UseSecrets          bool
	SNSTopicARN         string
	SQSQueueURL         string
	CloudWatchEnabled   bool
	CloudWatchNamespace string
	CloudWatchLogGroup  string
}

// SecretGetter reads one secret by name. *aws.SecretsClient satisfies it.
type SecretGetter interface {
	GetSecret(ctx context.Context, name string) (string, error)
}

// Secret names read when AWS_USE_SECRETS=true.
const (
	SecretJWT   = "catalog/JWT_SECRET"
	SecretRedis = "catalog/REDIS_URL"
)

// Load reads .env (if present) and the environment. With AWS_USE_SECRETS=true
// secrets from Secrets Manager replace their environment values; failures
// there fall back to the environment.
func Load(ctx context.Context) (*Config, error) {
	if err := godotenv.Load(); err != nil {
		zap.L().Debug("No .env file found, using environment variables")
	}

	cfg, err := fromEnv()
	if err != nil {
		return nil, err
	}

	if cfg.UseSecrets {
		awsCfg, err := aws.LoadAWSConfig(ctx, cfg.AWS)
		if err != nil {
			zap.L().Warn("Secrets Manager unavailable, using environment values", zap.Error(err))
		} else {
			ApplySecrets(ctx, cfg, aws.NewSecretsClient(awsCfg))
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func fromEnv() (*Config, error) {
	var errs []error
	duration := func(key, fallback string) time.Duration {
		raw := getEnv(key, fallback)
		d, err := time.ParseDuration(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: invalid duration %q", key, raw))
		}
		return d
	}
	integer := func(key, fallback string) int {
		raw := getEnv(key, fallback)
		n, err := strconv.Atoi(raw)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: invalid integer %q", key, raw))
		}
		return n
	}

	cfg := &Config{
		Port:               getEnv("PORT", "8086"),
		Env:                getEnv("APP_ENV", "development"),
		InstanceID:         getEnv("INSTANCE_ID", uuid.NewString()),
		CatalogAPIURL:      getEnv("CATALOG_API_URL", ""),
		RequestTimeout:     duration("REQUEST_TIMEOUT", "10s"),
		MediaOrigin:        getEnv("MEDIA_ORIGIN", ""),
		DefaultCurrency:    getEnv("DEFAULT_CURRENCY", "EUR"),
		CacheTimeout:       duration("CATALOG_CACHE_TIMEOUT", "5m"),
		PageSize:           integer("CATALOG_PAGE_SIZE", "12"),
		RedisURL:           getEnv("REDIS_URL", ""),
		RedisCacheTTL:      duration("REDIS_CACHE_TTL", "10m"),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		AllowedOrigins:     splitList(getEnv("ALLOWED_ORIGINS", "http://localhost:3000")),
		SessionIdleTimeout: duration("SESSION_IDLE_TIMEOUT", "30m"),
		RateLimitPerMinute: integer("RATE_LIMIT_PER_MINUTE", "300"),
		AWS: aws.Options{
			Region:          getEnv("AWS_REGION", "us-east-1"),
			Endpoint:        getEnv("AWS_ENDPOINT", ""),
			AccessKeyID:     getEnv("AWS_ACCESS_KEY_ID", ""),
			SecretAccessKey: getEnv("AWS_SECRET_ACCESS_KEY", ""),
		},
		UseSecrets:          getEnv("AWS_USE_SECRETS", "false") == "true",
		SNSTopicARN:         getEnv("CATALOG_SNS_TOPIC_ARN", ""),
		SQSQueueURL:         getEnv("CATALOG_SQS_QUEUE_URL", ""),
		CloudWatchEnabled:   getEnv("CLOUDWATCH_ENABLED", "false") == "true",
		CloudWatchNamespace: getEnv("CLOUDWATCH_NAMESPACE", aws.DefaultNamespace),
		CloudWatchLogGroup:  getEnv("CLOUDWATCH_LOG_GROUP", aws.DefaultLogGroup),
	}
	if len(errs) > 0 {
		return nil, errors.Join(errs...)
	}
	return cfg, nil
}

// ApplySecrets overrides secret-backed settings with values from sm. A secret
// that cannot be read keeps the current value.
func ApplySecrets(ctx context.Context, cfg *Config, sm SecretGetter) {
	for name, dst := range map[string]*string{
		SecretJWT:   &cfg.JWTSecret,
		SecretRedis: &cfg.RedisURL,
	} {
		v, err := sm.GetSecret(ctx, name)
		if err != nil {
			zap.L().Warn("Failed to read secret, keeping environment value", zap.String("secret", name), zap.Error(err))
			continue
		}
		if v != "" {
			*dst = v
		}
	}
}

// Validate reports every invalid setting at once.
func (c *Config) Validate() error {
	var errs []error
	if c.CatalogAPIURL == "" {
		errs = append(errs, errors.New("CATALOG_API_URL is required"))
	} else if u, err := url.Parse(c.CatalogAPIURL); err != nil || u.Scheme == "" || u.Host == "" {
		errs = append(errs, fmt.Errorf("CATALOG_API_URL %q is not an absolute URL", c.CatalogAPIURL))
	}
	if c.MediaOrigin != "" {
		if u, err := url.Parse(c.MediaOrigin); err != nil || u.Scheme == "" || u.Host == "" {
			errs = append(errs, fmt.Errorf("MEDIA_ORIGIN %q is not an absolute URL", c.MediaOrigin))
		}
	}
	for key, d := range map[string]time.Duration{
		"REQUEST_TIMEOUT":       c.RequestTimeout,
		"CATALOG_CACHE_TIMEOUT": c.CacheTimeout,
		"REDIS_CACHE_TTL":       c.RedisCacheTTL,
		"SESSION_IDLE_TIMEOUT":  c.SessionIdleTimeout,
	} {
		if d <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", key))
		}
	}
	if c.PageSize <= 0 {
		errs = append(errs, errors.New("CATALOG_PAGE_SIZE must be positive"))
	}
	if c.RateLimitPerMinute <= 0 {
		errs = append(errs, errors.New("RATE_LIMIT_PER_MINUTE must be positive"))
	}
	return errors.Join(errs...)
}

// Helper to get an environment variable or return a default
func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
