// Package messaging 风险事件的 Outbox 发布：事件与业务数据同事务落库，
// 由中继异步投递到 Kafka，保证计算结果与对外事件不脱节。
package messaging

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/oiltrading/riskengine/internal/risk/domain"
	"github.com/oiltrading/riskengine/pkg/contextx"
	"github.com/oiltrading/riskengine/pkg/db"
)

// 风险上下文对外发布的 Kafka 主题
const (
	TopicMetricsComputed = "risk.metrics.computed"
	TopicLimitBreached   = "risk.limit.breached"
)

const (
	outboxStatusPending = "pending"
	outboxStatusSent    = "sent"
)

// OutboxMessage 待投递事件表映射
type OutboxMessage struct {
	ID        uint      `gorm:"primaryKey;autoIncrement"`
	EventID   string    `gorm:"column:event_id;type:varchar(36);uniqueIndex"`
	EventType string    `gorm:"column:event_type;type:varchar(100);index"`
	Topic     string    `gorm:"column:topic;type:varchar(100);not null"`
	Key       string    `gorm:"column:message_key;type:varchar(128)"`
	Payload   string    `gorm:"column:payload;type:text"`
	Status    string    `gorm:"column:status;type:varchar(20);index;default:'pending'"`
	CreatedAt time.Time `gorm:"index"`
	UpdatedAt time.Time
}

// TableName 指定表名
func (OutboxMessage) TableName() string {
	return "risk_outbox_messages"
}

// OutboxEventPublisher 实现 EventPublisher 接口，使用 Outbox 模式
// 调用方在事务内发布时，事件记录与业务写入同一事务提交。
type OutboxEventPublisher struct {
	db           *db.DB
	metricsTopic string
	breachTopic  string
}

// NewOutboxEventPublisher 创建 OutboxEventPublisher 实例
// 主题为空时使用默认主题。
func NewOutboxEventPublisher(database *db.DB, metricsTopic, breachTopic string) domain.EventPublisher {
	if metricsTopic == "" {
		metricsTopic = TopicMetricsComputed
	}
	if breachTopic == "" {
		breachTopic = TopicLimitBreached
	}
	return &OutboxEventPublisher{
		db:           database,
		metricsTopic: metricsTopic,
		breachTopic:  breachTopic,
	}
}

// PublishMetricsComputed 发布风险指标计算完成事件
func (p *OutboxEventPublisher) PublishMetricsComputed(ctx context.Context, event domain.MetricsComputedEvent) error {
	return p.publish(ctx, "MetricsComputedEvent", p.metricsTopic, event.SnapshotHash, event)
}

// PublishLimitBreached 发布集中度超限事件
func (p *OutboxEventPublisher) PublishLimitBreached(ctx context.Context, event domain.LimitBreachedEvent) error {
	return p.publish(ctx, "LimitBreachedEvent", p.breachTopic, event.Entity, event)
}

func (p *OutboxEventPublisher) session(ctx context.Context) *gorm.DB {
	if tx, ok := contextx.GetTx(ctx); ok {
		return tx
	}
	return p.db.WithContext(ctx)
}

// publish 序列化事件并写入 outbox 表
func (p *OutboxEventPublisher) publish(ctx context.Context, eventType, topic, key string, event interface{}) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal %s: %w", eventType, err)
	}

	message := &OutboxMessage{
		EventID:   uuid.NewString(),
		EventType: eventType,
		Topic:     topic,
		Key:       key,
		Payload:   string(payload),
		Status:    outboxStatusPending,
	}
	return p.session(ctx).Create(message).Error
}
