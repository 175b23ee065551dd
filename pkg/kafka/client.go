// Package kafka 提供了向 Kafka 发布审计事件的功能。
package kafka

import (
	"context"
	"encoding/json"
	"time"

	"docurag-go/internal/config"
	"docurag-go/pkg/events"
	"docurag-go/pkg/log"

	"github.com/segmentio/kafka-go"
)

var producer *kafka.Writer

// InitProducer 初始化 Kafka 生产者。
func InitProducer(cfg config.KafkaConfig) {
	producer = &kafka.Writer{
		Addr:     kafka.TCP(cfg.Brokers),
		Topic:    cfg.Topic,
		Balancer: &kafka.LeastBytes{},
	}
	log.Info("Kafka 生产者初始化成功")
}

// PublishAudit 发布一条审计事件。发布失败只记日志，绝不影响业务调用结果。
func PublishAudit(event events.AuditEvent) {
	if producer == nil {
		return
	}
	if event.Timestamp.IsZero() {
		event.Timestamp = time.Now()
	}

	eventBytes, err := json.Marshal(event)
	if err != nil {
		log.Errorf("序列化审计事件失败: %v", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := producer.WriteMessages(ctx, kafka.Message{Value: eventBytes}); err != nil {
		log.Errorf("发布审计事件失败: type=%s, err=%v", event.Type, err)
		return
	}
	log.Debugf("审计事件已发布: type=%s, collection=%s", event.Type, event.Collection)
}
