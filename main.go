package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"catalog-service/cache"
	"catalog-service/catalog"
	"catalog-service/clients"
	"catalog-service/config"
	"catalog-service/controllers"
	apperrors "catalog-service/errors"
	"catalog-service/logger"
	"catalog-service/mapper"
	"catalog-service/middleware"
	"catalog-service/pkg/aws"
	"catalog-service/reporting"
	"catalog-service/routes"

	sdkaws "github.com/aws/aws-sdk-go-v2/aws"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	serviceName     = "catalog-service"
	sweepInterval   = time.Minute
	shutdownTimeout = 10 * time.Second
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := logger.Initialize(os.Getenv("APP_ENV")); err != nil {
		panic(err)
	}

	cfg, err := config.Load(ctx)
	if err != nil {
		logger.Log.Fatal("Failed to load configuration", zap.Error(err))
	}

	awsCfg, awsErr := aws.LoadAWSConfig(ctx, cfg.AWS)
	if awsErr != nil {
		logger.Log.Warn("AWS configuration unavailable, running without AWS integrations", zap.Error(awsErr))
	}

	if awsErr == nil && cfg.CloudWatchEnabled {
		cw, err := aws.NewCloudWatchLogsClient(ctx, awsCfg, cfg.CloudWatchLogGroup, serviceName)
		if err != nil {
			logger.Log.Warn("CloudWatch Logs unavailable", zap.Error(err))
		} else if err := logger.InitializeWithWriter(cfg.Env, cw); err != nil {
			logger.Log.Warn("Failed to attach CloudWatch Logs", zap.Error(err))
		}
	}
	defer logger.Log.Sync()

	var metrics *aws.MetricsClient
	if awsErr == nil {
		if m := aws.NewMetricsClient(awsCfg, cfg.CloudWatchNamespace, cfg.CloudWatchEnabled); m.IsEnabled() {
			metrics = m
		}
	}

	// --- Upstream catalog and cache ---
	var api clients.CatalogAPI = clients.NewGatewayClient(cfg.CatalogAPIURL, cfg.RequestTimeout, logger.Log)
	var invalidator catalog.CacheInvalidator
	var redisClient *redis.Client
	if cfg.RedisURL != "" {
		redisClient, err = cache.NewClient(cfg.RedisURL)
		if err != nil {
			logger.Log.Warn("Invalid REDIS_URL, caching disabled", zap.Error(err))
		} else {
			cached := clients.NewCachedCatalogClient(api, cache.NewManager(redisClient, cfg.RedisCacheTTL, logger.Log), logger.Log)
			if metrics != nil {
				cached.WithMetrics(metrics)
			}
			api, invalidator = cached, cached
		}
	}

	m, err := mapper.New(mapper.Options{MediaOrigin: cfg.MediaOrigin, DefaultCurrency: cfg.DefaultCurrency, Logger: logger.Log})
	if err != nil {
		logger.Log.Fatal("Invalid media origin", zap.Error(err))
	}

	// --- Reporting and sync ---
	reporters := reporting.Multi{reporting.NewLogReporter(logger.Log)}
	var snsPublisher catalog.ChangePublisher
	var consumer *aws.SQSConsumer
	if metrics != nil {
		reporters = append(reporters, reporting.NewMetricsReporter(metrics, logger.Log))
	}
	if awsErr == nil {
		snsPublisher, consumer = syncTransport(awsCfg, cfg)
	}

	// Engines are created lazily per session, after publisher is set below.
	var publisher catalog.ChangePublisher
	registry := catalog.NewRegistry(func() *catalog.Engine {
		return catalog.New(api, m,
			catalog.Config{PageSize: cfg.PageSize, CacheTimeout: cfg.CacheTimeout, Origin: cfg.InstanceID},
			catalog.WithLogger(logger.Log),
			catalog.WithReporter(reporters),
			catalog.WithPublisher(publisher),
		)
	}, cfg.SessionIdleTimeout, logger.Log)
	publisher = registry.Publisher(snsPublisher)
	defer registry.Close()

	go registry.Run(ctx, sweepInterval)

	if consumer != nil {
		syncConsumer := catalog.NewSyncConsumer(registry, cfg.InstanceID, invalidator, logger.Log)
		if metrics != nil {
			syncConsumer.WithMetrics(metrics)
		}
		go func() {
			if err := consumer.StartPolling(ctx, syncConsumer.Handle); err != nil && !errors.Is(err, context.Canceled) {
				logger.Log.Error("Change queue polling stopped", zap.Error(err))
			}
		}()
	}

	limiter := middleware.NewRateLimiter(cfg.RateLimitPerMinute, 10*time.Minute)
	go limiter.Run(ctx)

	// --- HTTP server ---
	if cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(logger.RequestLogger())
	r.Use(middleware.SecurityHeaders())
	r.Use(cors.New(cors.Config{
		AllowOrigins:     cfg.AllowedOrigins,
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", controllers.SessionHeader},
		ExposeHeaders:    []string{"Content-Length", controllers.SessionHeader, "X-Request-ID"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))
	r.Use(limiter.Middleware())
	r.Use(apperrors.ErrorMiddleware())

	handler := controllers.NewCatalogHandler(registry, controllers.NewRequestValidator(), cfg.RequestTimeout)
	routes.RegisterRoutes(r, handler, cfg.JWTSecret)

	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "OK", "sessions": registry.Len()})
	})

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: r,
	}

	go func() {
		logger.Log.Info("Catalog Service starting", zap.String("port", cfg.Port), zap.String("instance", cfg.InstanceID))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	<-ctx.Done()
	logger.Log.Info("Shutting down Catalog Service...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Log.Error("Server forced to shutdown", zap.Error(err))
	}

	if redisClient != nil {
		if err := redisClient.Close(); err != nil {
			logger.Log.Error("Failed to close Redis", zap.Error(err))
		}
	}

	logger.Log.Info("Catalog Service stopped gracefully")
}

// syncTransport builds the SNS publisher and SQS consumer carrying change
// events between instances. Either is nil when not configured.
func syncTransport(awsCfg sdkaws.Config, cfg *config.Config) (catalog.ChangePublisher, *aws.SQSConsumer) {
	var pub catalog.ChangePublisher
	if cfg.SNSTopicARN != "" {
		pub = catalog.NewSNSChangePublisher(aws.NewSNSClient(awsCfg, logger.Log), cfg.SNSTopicARN)
	}
	var consumer *aws.SQSConsumer
	if cfg.SQSQueueURL != "" {
		consumer = aws.NewSQSConsumer(awsCfg, cfg.SQSQueueURL, logger.Log)
	}
	return pub, consumer
}
