// RiskEngine 主程序
// 功能：组合风险计算服务，提供 VaR（参数法/历史法/蒙特卡洛）、集中度分析、
// 压力测试与历史报告查询；消费行情价格流，发布风险事件。
// 架构：基于 DDD + HTTP/gRPC + Kafka（outbox 投递）
package main

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/http/pprof"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	mdapplication "github.com/oiltrading/riskengine/internal/marketdata/application"
	mdmysql "github.com/oiltrading/riskengine/internal/marketdata/infrastructure/persistence/mysql"
	mdconsumer "github.com/oiltrading/riskengine/internal/marketdata/interfaces/consumer"
	"github.com/oiltrading/riskengine/internal/risk/application"
	"github.com/oiltrading/riskengine/internal/risk/domain"
	"github.com/oiltrading/riskengine/internal/risk/infrastructure/messaging"
	riskmysql "github.com/oiltrading/riskengine/internal/risk/infrastructure/persistence/mysql"
	riskredis "github.com/oiltrading/riskengine/internal/risk/infrastructure/persistence/redis"
	riskhttp "github.com/oiltrading/riskengine/internal/risk/interfaces/http"
	"github.com/oiltrading/riskengine/pkg/cache"
	"github.com/oiltrading/riskengine/pkg/config"
	"github.com/oiltrading/riskengine/pkg/db"
	"github.com/oiltrading/riskengine/pkg/logger"
	"github.com/oiltrading/riskengine/pkg/metrics"
	"github.com/oiltrading/riskengine/pkg/middleware"
	"github.com/oiltrading/riskengine/pkg/mq"
	"github.com/oiltrading/riskengine/pkg/ratelimit"
	"github.com/oiltrading/riskengine/pkg/trace"
)

func main() {
	// 1. 加载配置
	configPath := "configs/riskengine/config.toml"
	if v := os.Getenv("APP_CONFIG"); v != "" {
		configPath = v
	}
	cfg, err := config.Load(configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// 2. 初始化日志
	loggerCfg := logger.Config{
		Level:      cfg.Logger.Level,
		Format:     cfg.Logger.Format,
		Output:     cfg.Logger.Output,
		FilePath:   cfg.Logger.FilePath,
		MaxSize:    cfg.Logger.MaxSize,
		MaxBackups: cfg.Logger.MaxBackups,
		MaxAge:     cfg.Logger.MaxAge,
		Compress:   cfg.Logger.Compress,
		WithCaller: cfg.Logger.WithCaller,
	}
	if err := logger.Init(loggerCfg); err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}

	ctx := context.Background()
	logger.Info(ctx, "Starting RiskEngine",
		"service", cfg.ServiceName,
		"version", cfg.Version,
		"environment", cfg.Environment,
	)

	// 3. 初始化追踪
	if cfg.Tracing.Enabled {
		shutdown, err := trace.InitTracer(cfg.ServiceName, cfg.Tracing.CollectorEndpoint)
		if err != nil {
			logger.Error(ctx, "Failed to initialize tracer", "error", err)
		} else {
			defer func() {
				if err := shutdown(context.Background()); err != nil {
					logger.Error(ctx, "Failed to shutdown tracer", "error", err)
				}
			}()
			logger.Info(ctx, "Tracer initialized", "endpoint", cfg.Tracing.CollectorEndpoint)
		}
	}

	// 4. 初始化数据库
	dbCfg := db.Config{
		Driver:             cfg.Database.Driver,
		DSN:                cfg.Database.DSN,
		MaxOpenConns:       cfg.Database.MaxOpenConns,
		MaxIdleConns:       cfg.Database.MaxIdleConns,
		ConnMaxLifetime:    cfg.Database.ConnMaxLifetime,
		LogEnabled:         cfg.Database.LogEnabled,
		SlowQueryThreshold: cfg.Database.SlowQueryThreshold,
	}
	database, err := db.Init(dbCfg)
	if err != nil {
		logger.Fatal(ctx, "Failed to initialize database", "error", err)
	}
	defer database.Close()

	if err := database.AutoMigrate(
		&riskmysql.RiskReportModel{},
		&messaging.OutboxMessage{},
		&mdmysql.ClosingPriceModel{},
	); err != nil {
		logger.Fatal(ctx, "Failed to migrate database", "error", err)
	}

	// 5. 初始化 Redis
	redisCfg := cache.Config{
		Host:         cfg.Redis.Host,
		Port:         cfg.Redis.Port,
		Password:     cfg.Redis.Password,
		DB:           cfg.Redis.DB,
		MaxPoolSize:  cfg.Redis.MaxPoolSize,
		ConnTimeout:  cfg.Redis.ConnTimeout,
		ReadTimeout:  cfg.Redis.ReadTimeout,
		WriteTimeout: cfg.Redis.WriteTimeout,
	}
	redisCache, err := cache.New(redisCfg)
	if err != nil {
		logger.Fatal(ctx, "Failed to initialize Redis", "error", err)
	}
	defer redisCache.Close()

	// 6. 初始化限流器
	rateLimiter := ratelimit.NewRedisRateLimiter(redisCache.GetClient())

	// 7. 初始化 Kafka
	kafkaCfg := mq.KafkaConfig{
		Brokers:        cfg.Kafka.Brokers,
		GroupID:        cfg.Kafka.GroupID,
		SessionTimeout: cfg.Kafka.SessionTimeout,
		MaxRetries:     3,
		RetryBackoff:   100,
	}
	producer, err := mq.NewProducer(kafkaCfg)
	if err != nil {
		logger.Fatal(ctx, "Failed to create Kafka producer", "error", err)
	}
	defer producer.Close()

	priceConsumer, err := mq.NewConsumer(kafkaCfg, cfg.Kafka.PricesTopic)
	if err != nil {
		logger.Fatal(ctx, "Failed to create Kafka consumer", "error", err)
	}
	defer priceConsumer.Close()

	dlq := mq.NewDeadLetterQueue(producer, cfg.Kafka.PricesTopic+".dlq")

	// 8. 初始化指标
	metricsInstance := metrics.New(cfg.ServiceName)
	if err := metricsInstance.Register(); err != nil {
		logger.Fatal(ctx, "Failed to register metrics", "error", err)
	}
	if cfg.Metrics.Enabled {
		if err := metrics.StartHTTPServer(cfg.Metrics.Port, cfg.Metrics.Path); err != nil {
			logger.Fatal(ctx, "Failed to start metrics HTTP server", "error", err)
		}
	}

	// 9. 初始化仓储
	reportRepo := riskmysql.NewRiskReportRepository(database)
	priceRepo := mdmysql.NewPriceRepository(database)

	// 10. 初始化应用服务
	ingestionService := mdapplication.NewPriceIngestionService(priceRepo)
	queryService := mdapplication.NewPriceQueryService(priceRepo)

	publisher := messaging.NewOutboxEventPublisher(database, cfg.Kafka.MetricsTopic, cfg.Kafka.BreachTopic)
	reportCache := riskredis.NewReportCache(redisCache)

	riskService := application.NewRiskApplicationService(
		riskParamsFromConfig(cfg.Risk),
		cfg.Risk.LookbackPeriods,
		queryService,
		reportRepo,
		publisher,
		reportCache,
		database,
		metricsInstance,
	)

	// 11. 启动后台工作者：行情消费与 outbox 中继
	bgCtx, bgCancel := context.WithCancel(context.Background())
	defer bgCancel()

	consumer := mdconsumer.NewPriceConsumer(priceConsumer, dlq, ingestionService, metricsInstance)
	go func() {
		if err := consumer.Run(bgCtx); err != nil {
			logger.Error(bgCtx, "Price consumer stopped with error", "error", err)
		}
	}()

	relay := messaging.NewOutboxRelay(database, producer, redisCache, metricsInstance)
	go func() {
		if err := relay.Run(bgCtx); err != nil {
			logger.Error(bgCtx, "Outbox relay stopped with error", "error", err)
		}
	}()

	// 12. 创建 HTTP 服务器
	httpServer := createHTTPServer(cfg, riskService, rateLimiter, metricsInstance, database, redisCache)

	// 13. 创建 gRPC 服务器
	grpcServer := createGRPCServer(cfg)

	// 14. 启动 HTTP 服务器
	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port)
		logger.Info(ctx, "Starting HTTP server", "addr", addr)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal(ctx, "HTTP server error", "error", err)
		}
	}()

	// 15. 启动 gRPC 服务器
	go func() {
		addr := fmt.Sprintf("%s:%d", cfg.GRPC.Host, cfg.GRPC.Port)
		listener, err := net.Listen("tcp", addr)
		if err != nil {
			logger.Fatal(ctx, "Failed to listen on gRPC address", "error", err)
		}
		logger.Info(ctx, "Starting gRPC server", "addr", addr)
		if err := grpcServer.Serve(listener); err != nil {
			logger.Fatal(ctx, "gRPC server error", "error", err)
		}
	}()

	// 16. 优雅关停
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan

	logger.Info(ctx, "Shutting down RiskEngine")

	// 先停后台工作者，避免关停期间继续写 outbox / 拉取行情
	bgCancel()

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error(ctx, "HTTP server shutdown error", "error", err)
	}

	grpcServer.GracefulStop()

	logger.Info(ctx, "RiskEngine stopped")
}

// riskParamsFromConfig 把配置映射为域层风险参数
func riskParamsFromConfig(rc config.RiskConfig) domain.RiskParameters {
	return domain.RiskParameters{
		MinimumWindowLength:            rc.MinimumWindowLength,
		FallbackVolatility:             rc.FallbackVolatility,
		FallbackCorrelation:            rc.FallbackCorrelation,
		CounterpartyConcentrationLimit: rc.CounterpartyConcentrationLimit,
		InstrumentConcentrationLimit:   rc.InstrumentConcentrationLimit,
		MonteCarloMinIterations:        rc.MonteCarloMinIterations,
		RequestTimeBudgetMs:            rc.RequestTimeBudgetMs,
		AnnualizationPeriods:           rc.AnnualizationPeriods,
		MonteCarloWorkers:              rc.MonteCarloWorkers,
		CacheTTLMs:                     rc.CacheTTLMs,
		StressLossLimit:                rc.StressLossLimit,
		DefaultSeed:                    rc.DefaultSeed,
		VolatilityMode:                 rc.VolatilityMode,
		EWMALambda:                     rc.EWMALambda,
	}
}

// createHTTPServer 创建 HTTP 服务器
func createHTTPServer(
	cfg *config.Config,
	riskService *application.RiskApplicationService,
	rateLimiter ratelimit.RateLimiter,
	m *metrics.Metrics,
	database *db.DB,
	redisCache *cache.RedisCache,
) *http.Server {
	gin.SetMode(gin.ReleaseMode)
	router := gin.New()

	// 添加中间件
	router.Use(otelgin.Middleware(cfg.ServiceName))
	router.Use(middleware.GinLoggingMiddleware())
	router.Use(middleware.GinMetricsMiddleware(m))
	router.Use(middleware.GinRecoveryMiddleware())
	router.Use(middleware.GinCORSMiddleware())
	router.Use(middleware.RateLimitMiddleware(rateLimiter, cfg.RateLimit))

	// 注册路由
	httpHandler := riskhttp.NewRiskHandler(riskService)
	httpHandler.RegisterRoutes(&router.RouterGroup)

	// 健康与就绪探针
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status":    "healthy",
			"service":   cfg.ServiceName,
			"timestamp": time.Now().Unix(),
		})
	})
	router.GET("/sys/ready", func(c *gin.Context) {
		sqlDB, err := database.DB.DB()
		if err == nil {
			err = sqlDB.PingContext(c.Request.Context())
		}
		if err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "NOT_READY", "reason": "database unreachable"})
			return
		}
		if err := redisCache.GetClient().Ping(c.Request.Context()).Err(); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "NOT_READY", "reason": "redis unreachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "READY"})
	})

	pp := router.Group("/debug/pprof")
	{
		pp.GET("/", gin.WrapF(pprof.Index))
		pp.GET("/cmdline", gin.WrapF(pprof.Cmdline))
		pp.GET("/profile", gin.WrapF(pprof.Profile))
		pp.GET("/symbol", gin.WrapF(pprof.Symbol))
		pp.GET("/trace", gin.WrapF(pprof.Trace))
	}

	return &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.HTTP.Host, cfg.HTTP.Port),
		Handler:      router,
		ReadTimeout:  time.Duration(cfg.HTTP.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.HTTP.WriteTimeout) * time.Second,
	}
}

// createGRPCServer 创建 gRPC 服务器（仅健康检查与反射，业务面走 HTTP）
func createGRPCServer(cfg *config.Config) *grpc.Server {
	opts := []grpc.ServerOption{
		grpc.StatsHandler(otelgrpc.NewServerHandler()),
		grpc.ChainUnaryInterceptor(
			middleware.GRPCLoggingInterceptor(),
			middleware.GRPCRecoveryInterceptor(),
		),
		grpc.MaxConcurrentStreams(uint32(cfg.GRPC.MaxConcurrentStreams)),
	}

	server := grpc.NewServer(opts...)

	healthServer := health.NewServer()
	healthServer.SetServingStatus(cfg.ServiceName, healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(server, healthServer)
	reflection.Register(server)

	return server
}
