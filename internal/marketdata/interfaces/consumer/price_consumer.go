// Package consumer 收盘价 Kafka 消费入口
package consumer

import (
	"context"
	"errors"
	"fmt"

	"github.com/oiltrading/riskengine/internal/marketdata/application"
	"github.com/oiltrading/riskengine/pkg/logger"
	"github.com/oiltrading/riskengine/pkg/metrics"
	"github.com/oiltrading/riskengine/pkg/mq"
)

// PriceConsumer 消费 marketdata.prices.v1 上的收盘价消息
// 消息不可解析或摄入失败时转入死信队列，消费循环不中断。
type PriceConsumer struct {
	consumer  *mq.KafkaConsumer
	dlq       *mq.DeadLetterQueue
	ingestion *application.PriceIngestionService
	metrics   *metrics.Metrics
}

// NewPriceConsumer 创建收盘价消费者
func NewPriceConsumer(consumer *mq.KafkaConsumer, dlq *mq.DeadLetterQueue, ingestion *application.PriceIngestionService, m *metrics.Metrics) *PriceConsumer {
	return &PriceConsumer{
		consumer:  consumer,
		dlq:       dlq,
		ingestion: ingestion,
		metrics:   m,
	}
}

// Run 阻塞消费循环，ctx 取消后正常返回
func (pc *PriceConsumer) Run(ctx context.Context) error {
	logger.Info(ctx, "Price consumer started")

	for {
		msg, err := pc.consumer.ReadMessage(ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				logger.Info(ctx, "Price consumer stopped")
				return nil
			}
			return fmt.Errorf("failed to read price message: %w", err)
		}

		if err := pc.Handle(ctx, msg); err != nil {
			logger.Warn(ctx, "Price message routed to dead letter queue",
				"topic", msg.Topic,
				"offset", msg.Offset,
				"key", msg.Key,
				"error", err,
			)
			if dlqErr := pc.dlq.Send(ctx, msg, "price ingestion failed", err); dlqErr != nil {
				logger.Error(ctx, "Failed to send message to dead letter queue",
					"topic", msg.Topic,
					"offset", msg.Offset,
					"error", dlqErr,
				)
			}
			pc.metrics.PricesDeadLetteredTotal.Inc()
			continue
		}

		pc.metrics.PricesIngestedTotal.Inc()
	}
}

// Handle 解析并摄入单条收盘价消息
func (pc *PriceConsumer) Handle(ctx context.Context, msg *mq.Message) error {
	var cmd application.IngestPriceCommand
	if err := msg.UnmarshalPayload(&cmd); err != nil {
		return fmt.Errorf("malformed price payload: %w", err)
	}

	return pc.ingestion.IngestPrice(ctx, cmd)
}
