package domain

import "context"

// EventPublisher 领域事件发布端口
// outbox 实现将事件与结果写入同一事务，由中继进程投递到 Kafka。
type EventPublisher interface {
	// PublishMetricsComputed 发布计算完成事件
	PublishMetricsComputed(ctx context.Context, event MetricsComputedEvent) error

	// PublishLimitBreached 发布限额突破事件
	PublishLimitBreached(ctx context.Context, event LimitBreachedEvent) error
}
