// Package config 提供 TOML 配置加载、环境变量覆盖与 schema 校验
package config

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

// Config 基础配置结构
type Config struct {
	// 服务名称
	ServiceName string `mapstructure:"service_name"`
	// 服务版本
	Version string `mapstructure:"version"`
	// 环境：dev, staging, prod
	Environment string `mapstructure:"environment"`
	// HTTP 服务配置
	HTTP HTTPConfig `mapstructure:"http"`
	// gRPC 服务配置
	GRPC GRPCConfig `mapstructure:"grpc"`
	// 数据库配置
	Database DatabaseConfig `mapstructure:"database"`
	// Redis 配置
	Redis RedisConfig `mapstructure:"redis"`
	// Kafka 配置
	Kafka KafkaConfig `mapstructure:"kafka"`
	// 日志配置
	Logger LoggerConfig `mapstructure:"logger"`
	// 追踪配置
	Tracing TracingConfig `mapstructure:"tracing"`
	// 指标配置
	Metrics MetricsConfig `mapstructure:"metrics"`
	// 限流配置
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
	// 风险引擎参数
	Risk RiskConfig `mapstructure:"risk"`
}

// HTTPConfig HTTP 服务配置
type HTTPConfig struct {
	// 监听地址
	Host string `mapstructure:"host"`
	// 监听端口
	Port int `mapstructure:"port"`
	// 读超时（秒）
	ReadTimeout int `mapstructure:"read_timeout"`
	// 写超时（秒）
	WriteTimeout int `mapstructure:"write_timeout"`
	// 最大连接数
	MaxConnections int `mapstructure:"max_connections"`
}

// GRPCConfig gRPC 服务配置
type GRPCConfig struct {
	// 监听地址
	Host string `mapstructure:"host"`
	// 监听端口
	Port int `mapstructure:"port"`
	// 最大并发流数
	MaxConcurrentStreams int `mapstructure:"max_concurrent_streams"`
	// 连接空闲超时（秒）
	IdleTimeout int `mapstructure:"idle_timeout"`
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	// 驱动：mysql, postgres, sqlite
	Driver string `mapstructure:"driver"`
	// 数据源名称
	DSN string `mapstructure:"dsn"`
	// 最大连接数
	MaxOpenConns int `mapstructure:"max_open_conns"`
	// 最大空闲连接数
	MaxIdleConns int `mapstructure:"max_idle_conns"`
	// 连接最大生命周期（秒）
	ConnMaxLifetime int `mapstructure:"conn_max_lifetime"`
	// 是否启用日志
	LogEnabled bool `mapstructure:"log_enabled"`
	// 慢查询阈值（毫秒）
	SlowQueryThreshold int `mapstructure:"slow_query_threshold"`
}

// RedisConfig Redis 配置
type RedisConfig struct {
	// 主机地址
	Host string `mapstructure:"host"`
	// 端口
	Port int `mapstructure:"port"`
	// 密码
	Password string `mapstructure:"password"`
	// 数据库编号
	DB int `mapstructure:"db"`
	// 最大连接数
	MaxPoolSize int `mapstructure:"max_pool_size"`
	// 连接超时（秒）
	ConnTimeout int `mapstructure:"conn_timeout"`
	// 读超时（秒）
	ReadTimeout int `mapstructure:"read_timeout"`
	// 写超时（秒）
	WriteTimeout int `mapstructure:"write_timeout"`
}

// KafkaConfig Kafka 配置
type KafkaConfig struct {
	// Broker 地址列表
	Brokers []string `mapstructure:"brokers"`
	// Consumer Group ID
	GroupID string `mapstructure:"group_id"`
	// 行情价格主题（消费）
	PricesTopic string `mapstructure:"prices_topic"`
	// 风险指标主题（生产）
	MetricsTopic string `mapstructure:"metrics_topic"`
	// 限额越限主题（生产）
	BreachTopic string `mapstructure:"breach_topic"`
	// 消费者超时（秒）
	SessionTimeout int `mapstructure:"session_timeout"`
}

// LoggerConfig 日志配置
type LoggerConfig struct {
	// 日志级别
	Level string `mapstructure:"level"`
	// 输出格式
	Format string `mapstructure:"format"`
	// 输出目标
	Output string `mapstructure:"output"`
	// 文件路径
	FilePath string `mapstructure:"file_path"`
	// 最大文件大小（MB）
	MaxSize int `mapstructure:"max_size"`
	// 最大备份文件数
	MaxBackups int `mapstructure:"max_backups"`
	// 最大保留天数
	MaxAge int `mapstructure:"max_age"`
	// 是否压缩
	Compress bool `mapstructure:"compress"`
	// 是否输出调用者信息
	WithCaller bool `mapstructure:"with_caller"`
}

// TracingConfig 追踪配置
type TracingConfig struct {
	// 是否启用
	Enabled bool `mapstructure:"enabled"`
	// OTel 收集器端点
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
	// 采样率
	SamplingRate float64 `mapstructure:"sampling_rate"`
}

// MetricsConfig 指标配置
type MetricsConfig struct {
	// 是否启用
	Enabled bool `mapstructure:"enabled"`
	// Prometheus 监听端口
	Port int `mapstructure:"port"`
	// 指标路径
	Path string `mapstructure:"path"`
}

// RateLimitConfig 限流配置
type RateLimitConfig struct {
	// 是否启用
	Enabled bool `mapstructure:"enabled"`
	// 每秒允许的请求数
	RequestsPerSecond int `mapstructure:"requests_per_second"`
	// 突发容量
	Burst int `mapstructure:"burst"`
}

// RiskConfig 风险引擎参数
// 与 internal/risk/domain.RiskParameters 一一对应，由应用层转换注入，
// 每次请求开始时取快照，热更不会撕裂进行中的计算。
type RiskConfig struct {
	// 波动率估计的最小窗口长度（期数）
	MinimumWindowLength int `mapstructure:"minimum_window_length"`
	// 数据不足时的回退年化波动率
	FallbackVolatility float64 `mapstructure:"fallback_volatility"`
	// 任一侧回退时的回退相关系数
	FallbackCorrelation float64 `mapstructure:"fallback_correlation"`
	// 单一对手方最大敞口份额
	CounterpartyConcentrationLimit float64 `mapstructure:"counterparty_concentration_limit"`
	// 单一品种最大敞口份额
	InstrumentConcentrationLimit float64 `mapstructure:"instrument_concentration_limit"`
	// 蒙特卡洛最小可信迭代数
	MonteCarloMinIterations int `mapstructure:"monte_carlo_min_iterations"`
	// 请求级时间预算（毫秒）
	RequestTimeBudgetMs int `mapstructure:"request_time_budget_ms"`
	// 年化期数（交易日）
	AnnualizationPeriods int `mapstructure:"annualization_periods"`
	// 蒙特卡洛并行度，0 表示 GOMAXPROCS
	MonteCarloWorkers int `mapstructure:"monte_carlo_workers"`
	// 结果缓存 TTL（毫秒）
	CacheTTLMs int `mapstructure:"cache_ttl_ms"`
	// 压力情景损失限额（占总敞口比例）
	StressLossLimit float64 `mapstructure:"stress_loss_limit"`
	// 未显式给种子时使用的默认种子
	DefaultSeed uint64 `mapstructure:"default_seed"`
	// 波动率估计模式：sample 或 ewma
	VolatilityMode string `mapstructure:"volatility_mode"`
	// EWMA 衰减因子
	EWMALambda float64 `mapstructure:"ewma_lambda"`
	// 收益序列回看窗口（期数）
	LookbackPeriods int `mapstructure:"lookback_periods"`
}

// Load 从 TOML 文件加载配置，支持环境变量覆盖
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	v.SetEnvPrefix("APP")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &cfg, nil
}

// Validate 验证配置的有效性
func (c *Config) Validate() error {
	if c.ServiceName == "" {
		return fmt.Errorf("service_name is required")
	}
	if c.Environment == "" {
		c.Environment = "dev"
	}
	if c.HTTP.Port <= 0 || c.HTTP.Port > 65535 {
		return fmt.Errorf("invalid HTTP port: %d", c.HTTP.Port)
	}
	if c.GRPC.Port <= 0 || c.GRPC.Port > 65535 {
		return fmt.Errorf("invalid gRPC port: %d", c.GRPC.Port)
	}
	if c.Database.DSN == "" && c.Database.Driver != "sqlite" {
		return fmt.Errorf("database DSN is required for %s driver", c.Database.Driver)
	}
	if c.Risk.MinimumWindowLength < 2 {
		return fmt.Errorf("risk.minimum_window_length must be at least 2, got %d", c.Risk.MinimumWindowLength)
	}
	if c.Risk.FallbackVolatility <= 0 {
		return fmt.Errorf("risk.fallback_volatility must be positive")
	}
	if c.Risk.FallbackCorrelation < -1 || c.Risk.FallbackCorrelation > 1 {
		return fmt.Errorf("risk.fallback_correlation must be in [-1, 1]")
	}
	return nil
}

// setDefaults 设置默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("http.host", "0.0.0.0")
	v.SetDefault("http.port", 8080)
	v.SetDefault("http.read_timeout", 30)
	v.SetDefault("http.write_timeout", 30)
	v.SetDefault("http.max_connections", 1000)

	v.SetDefault("grpc.host", "0.0.0.0")
	v.SetDefault("grpc.port", 50051)
	v.SetDefault("grpc.max_concurrent_streams", 1000)
	v.SetDefault("grpc.idle_timeout", 300)

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 300)
	v.SetDefault("database.log_enabled", false)
	v.SetDefault("database.slow_query_threshold", 1000)

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.max_pool_size", 10)
	v.SetDefault("redis.conn_timeout", 5)
	v.SetDefault("redis.read_timeout", 3)
	v.SetDefault("redis.write_timeout", 3)

	v.SetDefault("kafka.prices_topic", "marketdata.prices.v1")
	v.SetDefault("kafka.metrics_topic", "risk.metrics.computed")
	v.SetDefault("kafka.breach_topic", "risk.limit.breached")
	v.SetDefault("kafka.session_timeout", 10)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "json")
	v.SetDefault("logger.output", "stdout")
	v.SetDefault("logger.file_path", "logs/app.log")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 10)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)
	v.SetDefault("logger.with_caller", true)

	v.SetDefault("tracing.enabled", true)
	v.SetDefault("tracing.collector_endpoint", "localhost:4317")
	v.SetDefault("tracing.sampling_rate", 1.0)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.port", 9090)
	v.SetDefault("metrics.path", "/metrics")

	v.SetDefault("rate_limit.enabled", true)
	v.SetDefault("rate_limit.requests_per_second", 50)
	v.SetDefault("rate_limit.burst", 100)

	v.SetDefault("risk.minimum_window_length", 30)
	v.SetDefault("risk.fallback_volatility", 0.35)
	v.SetDefault("risk.fallback_correlation", 0.5)
	v.SetDefault("risk.counterparty_concentration_limit", 0.25)
	v.SetDefault("risk.instrument_concentration_limit", 0.40)
	v.SetDefault("risk.monte_carlo_min_iterations", 1000)
	v.SetDefault("risk.request_time_budget_ms", 5000)
	v.SetDefault("risk.annualization_periods", 252)
	v.SetDefault("risk.monte_carlo_workers", 0)
	v.SetDefault("risk.cache_ttl_ms", 30000)
	v.SetDefault("risk.stress_loss_limit", 0.20)
	v.SetDefault("risk.default_seed", 42)
	v.SetDefault("risk.volatility_mode", "sample")
	v.SetDefault("risk.ewma_lambda", 0.94)
	v.SetDefault("risk.lookback_periods", 250)
}

// GetEnv 获取环境变量，支持默认值
func GetEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}
