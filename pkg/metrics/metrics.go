// Package metrics 提供 Prometheus helper，包含常用 counter/gauge/histogram 模板
package metrics

import (
	"context"
	"fmt"
	"net/http"

	"github.com/oiltrading/riskengine/pkg/logger"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics 指标集合
type Metrics struct {
	// HTTP 请求计数
	HTTPRequestsTotal prometheus.Counter
	// HTTP 请求耗时
	HTTPRequestDuration prometheus.Histogram

	// 风险计算计数（按方法区分）
	CalculationsTotal *prometheus.CounterVec
	// 风险计算耗时（按方法区分）
	CalculationDuration *prometheus.HistogramVec
	// 风险计算失败计数
	CalculationErrors prometheus.Counter
	// 计算结果携带的降级警告计数
	CalculationWarnings prometheus.Counter

	// 限额突破计数
	LimitBreachesTotal prometheus.Counter

	// 结果缓存命中/未命中
	CacheHits   prometheus.Counter
	CacheMisses prometheus.Counter

	// 行情摄入计数
	PricesIngestedTotal prometheus.Counter
	// 行情消息进入死信队列计数
	PricesDeadLetteredTotal prometheus.Counter

	// outbox 事件发布计数
	OutboxPublishedTotal prometheus.Counter
}

// New 创建指标实例
func New(serviceName string) *Metrics {
	return &Metrics{
		// HTTP 指标
		HTTPRequestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "risk",
			Subsystem: serviceName,
			Name:      "http_requests_total",
			Help:      "Total HTTP requests",
		}),
		HTTPRequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "risk",
			Subsystem: serviceName,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   prometheus.DefBuckets,
		}),

		// 计算指标
		CalculationsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "risk",
			Subsystem: serviceName,
			Name:      "calculations_total",
			Help:      "Total risk calculations by method",
		}, []string{"method"}),
		CalculationDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "risk",
			Subsystem: serviceName,
			Name:      "calculation_duration_seconds",
			Help:      "Risk calculation duration in seconds by method",
			Buckets:   []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 2.5, 5},
		}, []string{"method"}),
		CalculationErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "risk",
			Subsystem: serviceName,
			Name:      "calculation_errors_total",
			Help:      "Total failed risk calculations",
		}),
		CalculationWarnings: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "risk",
			Subsystem: serviceName,
			Name:      "calculation_warnings_total",
			Help:      "Total degradation warnings attached to results",
		}),

		// 限额指标
		LimitBreachesTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "risk",
			Subsystem: serviceName,
			Name:      "limit_breaches_total",
			Help:      "Total concentration or stress limit breaches detected",
		}),

		// 缓存指标
		CacheHits: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "risk",
			Subsystem: serviceName,
			Name:      "cache_hits_total",
			Help:      "Total result cache hits",
		}),
		CacheMisses: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "risk",
			Subsystem: serviceName,
			Name:      "cache_misses_total",
			Help:      "Total result cache misses",
		}),

		// 行情摄入指标
		PricesIngestedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "risk",
			Subsystem: serviceName,
			Name:      "prices_ingested_total",
			Help:      "Total closing prices ingested",
		}),
		PricesDeadLetteredTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "risk",
			Subsystem: serviceName,
			Name:      "prices_dead_lettered_total",
			Help:      "Total price messages routed to the dead letter queue",
		}),

		// outbox 指标
		OutboxPublishedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "risk",
			Subsystem: serviceName,
			Name:      "outbox_published_total",
			Help:      "Total outbox events published to Kafka",
		}),
	}
}

// Register 注册所有指标
func (m *Metrics) Register() error {
	metrics := []prometheus.Collector{
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.CalculationsTotal,
		m.CalculationDuration,
		m.CalculationErrors,
		m.CalculationWarnings,
		m.LimitBreachesTotal,
		m.CacheHits,
		m.CacheMisses,
		m.PricesIngestedTotal,
		m.PricesDeadLetteredTotal,
		m.OutboxPublishedTotal,
	}

	for _, metric := range metrics {
		if err := prometheus.DefaultRegisterer.Register(metric); err != nil {
			logger.Error(context.Background(), "Failed to register metric", "error", err)
			return err
		}
	}

	logger.Info(context.Background(), "Metrics registered successfully")
	return nil
}

// ObserveCalculation 记录一次按方法区分的风险计算
func (m *Metrics) ObserveCalculation(method string, seconds float64) {
	m.CalculationsTotal.WithLabelValues(method).Inc()
	m.CalculationDuration.WithLabelValues(method).Observe(seconds)
}

// StartHTTPServer 启动 Prometheus HTTP 服务器
func StartHTTPServer(port int, path string) error {
	if path == "" {
		path = "/metrics"
	}

	http.Handle(path, promhttp.Handler())

	addr := fmt.Sprintf(":%d", port)
	logger.Info(context.Background(), "Starting Prometheus HTTP server", "addr", addr, "path", path)

	go func() {
		if err := http.ListenAndServe(addr, nil); err != nil {
			logger.Error(context.Background(), "Failed to start Prometheus HTTP server", "error", err)
		}
	}()

	return nil
}
