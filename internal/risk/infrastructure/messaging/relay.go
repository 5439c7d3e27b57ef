package messaging

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/oiltrading/riskengine/pkg/cache"
	"github.com/oiltrading/riskengine/pkg/db"
	"github.com/oiltrading/riskengine/pkg/logger"
	"github.com/oiltrading/riskengine/pkg/metrics"
	"github.com/oiltrading/riskengine/pkg/mq"
	"github.com/oiltrading/riskengine/pkg/utils"
)

const (
	relayLockKey   = "risk:outbox:relay:lock"
	relayLockTTL   = 10 * time.Second
	relayBatchSize = 100
	relayInterval  = time.Second
	sentRetention  = 24 * time.Hour
)

// OutboxRelay 轮询 outbox 表，把 pending 事件投递到 Kafka 后标记 sent
// 多副本部署时通过 Redis 租约让单个实例执行扫描；投递语义为至少一次，
// 下游按 event_id 幂等消费。
type OutboxRelay struct {
	db         *db.DB
	producer   *mq.KafkaProducer
	cache      *cache.RedisCache
	metrics    *metrics.Metrics
	instanceID string
}

// NewOutboxRelay 创建 outbox 中继
// cache 可为 nil（单副本部署时跳过租约）。
func NewOutboxRelay(database *db.DB, producer *mq.KafkaProducer, c *cache.RedisCache, m *metrics.Metrics) *OutboxRelay {
	return &OutboxRelay{
		db:         database,
		producer:   producer,
		cache:      c,
		metrics:    m,
		instanceID: uuid.NewString(),
	}
}

// Run 周期性投递，直到 ctx 取消
func (r *OutboxRelay) Run(ctx context.Context) error {
	ticker := time.NewTicker(relayInterval)
	defer ticker.Stop()
	cleanup := time.NewTicker(time.Hour)
	defer cleanup.Stop()

	logger.Info(ctx, "Outbox relay started", "instance_id", r.instanceID)
	for {
		select {
		case <-ctx.Done():
			logger.Info(ctx, "Outbox relay stopped")
			return nil
		case <-ticker.C:
			if err := r.relayBatch(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error(ctx, "Outbox relay pass failed", "error", err)
			}
		case <-cleanup.C:
			if err := r.cleanupSent(ctx); err != nil {
				logger.Error(ctx, "Outbox cleanup failed", "error", err)
			}
		}
	}
}

// relayBatch 投递一批 pending 事件，首个失败即终止本轮以保持投递顺序
func (r *OutboxRelay) relayBatch(ctx context.Context) error {
	if !r.acquireLease(ctx) {
		return nil
	}

	var messages []OutboxMessage
	err := r.db.WithContext(ctx).
		Where("status = ?", outboxStatusPending).
		Order("id ASC").
		Limit(relayBatchSize).
		Find(&messages).Error
	if err != nil {
		return err
	}

	for i := range messages {
		msg := &messages[i]
		err := utils.RetryWithBackoff(3, 100*time.Millisecond, time.Second, func() error {
			return r.producer.SendRaw(ctx, msg.Topic, msg.Key, []byte(msg.Payload))
		})
		if err != nil {
			logger.Error(ctx, "Failed to relay outbox message",
				"event_id", msg.EventID,
				"topic", msg.Topic,
				"error", err,
			)
			return err
		}

		if err := r.db.WithContext(ctx).Model(&OutboxMessage{}).
			Where("id = ?", msg.ID).
			Update("status", outboxStatusSent).Error; err != nil {
			return err
		}
		r.metrics.OutboxPublishedTotal.Inc()
	}
	return nil
}

// acquireLease 尝试获取扫描租约，租约由 TTL 自然过期转移
func (r *OutboxRelay) acquireLease(ctx context.Context) bool {
	if r.cache == nil {
		return true
	}
	acquired, err := r.cache.SetNX(ctx, relayLockKey, r.instanceID, relayLockTTL)
	if err != nil {
		logger.Warn(ctx, "Outbox lease check failed, proceeding without it", "error", err)
		return true
	}
	return acquired
}

// cleanupSent 清理超过保留期的已投递事件
func (r *OutboxRelay) cleanupSent(ctx context.Context) error {
	return r.db.WithContext(ctx).
		Where("status = ? AND updated_at < ?", outboxStatusSent, time.Now().Add(-sentRetention)).
		Delete(&OutboxMessage{}).Error
}
