// Package redis 风险计算结果的 Redis 缓存实现
package redis

import (
	"context"
	"time"

	"github.com/oiltrading/riskengine/internal/risk/application"
	"github.com/oiltrading/riskengine/internal/risk/domain"
	"github.com/oiltrading/riskengine/pkg/cache"
)

// ReportCache 把计算结果按缓存键整体序列化存入 Redis
// 键由应用层构造（快照哈希+请求参数），TTL 由风险参数控制。
type ReportCache struct {
	cache *cache.RedisCache
}

// NewReportCache 创建结果缓存
func NewReportCache(c *cache.RedisCache) application.ReportCache {
	return &ReportCache{cache: c}
}

// Get 读取缓存结果，未命中返回 (nil, false, nil)
func (r *ReportCache) Get(ctx context.Context, key string) (*domain.RiskMetricsResult, bool, error) {
	var result domain.RiskMetricsResult
	ok, err := r.cache.GetJSON(ctx, key, &result)
	if err != nil || !ok {
		return nil, false, err
	}
	return &result, true, nil
}

// Set 写入缓存结果
func (r *ReportCache) Set(ctx context.Context, key string, result *domain.RiskMetricsResult, ttl time.Duration) error {
	return r.cache.SetJSON(ctx, key, result, ttl)
}
