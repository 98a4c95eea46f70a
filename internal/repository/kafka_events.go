package repository

import (
	"context"
	"fmt"

	"FxBridge/internal/domain/models"
	domrepo "FxBridge/internal/domain/repository"
	pkgkafka "FxBridge/pkg/kafka"
)

// KafkaEventPublisher broadcasts signal and audit events on Kafka topics.
type KafkaEventPublisher struct {
	producer    *pkgkafka.Producer
	signalTopic string
	auditTopic  string
}

func NewKafkaEventPublisher(producer *pkgkafka.Producer, signalTopic, auditTopic string) *KafkaEventPublisher {
	return &KafkaEventPublisher{
		producer:    producer,
		signalTopic: signalTopic,
		auditTopic:  auditTopic,
	}
}

// PublishSignalEvent keys by broker|symbol so one pair's events stay ordered
// within a partition.
func (p *KafkaEventPublisher) PublishSignalEvent(ctx context.Context, ev *models.SignalEvent) error {
	if ev == nil {
		return fmt.Errorf("signal event is nil")
	}
	key := []byte(ev.Broker + "|" + ev.Symbol)
	return p.producer.Publish(ctx, p.signalTopic, key, ev)
}

func (p *KafkaEventPublisher) PublishAuditEvent(ctx context.Context, record any) error {
	if record == nil {
		return fmt.Errorf("audit record is nil")
	}
	return p.producer.Publish(ctx, p.auditTopic, nil, record)
}

func (p *KafkaEventPublisher) Close() error {
	if p.producer != nil {
		return p.producer.Close()
	}
	return nil
}

var _ domrepo.EventPublisher = (*KafkaEventPublisher)(nil)
