package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/Gunvolt24/resto_sync/internal/domain"
	"github.com/Gunvolt24/resto_sync/internal/ports"
	"github.com/Gunvolt24/resto_sync/pkg/ctxmeta"
	"github.com/Gunvolt24/resto_sync/pkg/metrics"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
)

var _ ports.ChangePublisher = (*Publisher)(nil)

const headerChangeID = "change-id"

// writer — минимальный контракт над kafka.Writer.
type writer interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Publisher — пишет изменения документов в ленту.
// Ключ сообщения — путь, поэтому изменения одного документа идут в одну партицию по порядку.
type Publisher struct {
	writer    writer
	topic     string
	closeOnce sync.Once
}

type PublisherConfig struct {
	Brokers      []string
	Topic        string
	WriteTimeout time.Duration
}

func NewPublisher(cfg *PublisherConfig) *Publisher {
	wt := cfg.WriteTimeout
	if wt <= 0 {
		wt = 10 * time.Second
	}
	return &Publisher{
		writer: &kafka.Writer{
			Addr:                   kafka.TCP(cfg.Brokers...),
			Topic:                  cfg.Topic,
			Balancer:               &kafka.Hash{},
			RequiredAcks:           kafka.RequireAll,
			WriteTimeout:           wt,
			AllowAutoTopicCreation: true,
		},
		topic: cfg.Topic,
	}
}

func (p *Publisher) Publish(ctx context.Context, change domain.Change) error {
	raw, err := json.Marshal(change)
	if err != nil {
		return fmt.Errorf("marshal change %s: %w", change.Path, err)
	}

	id, ok := ctxmeta.RequestIDFromContext(ctx)
	if !ok {
		id = uuid.NewString()
	}
	msg := kafka.Message{
		Key:     []byte(change.Path),
		Value:   raw,
		Headers: []kafka.Header{{Key: headerChangeID, Value: []byte(id)}},
	}

	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		metrics.KafkaMessagesPublished.WithLabelValues(p.topic, "error").Inc()
		return fmt.Errorf("publish change %s: %w", change.Path, err)
	}
	metrics.KafkaMessagesPublished.WithLabelValues(p.topic, "ok").Inc()
	return nil
}

func (p *Publisher) Close() (retErr error) {
	p.closeOnce.Do(func() {
		retErr = p.writer.Close()
	})
	return retErr
}
