package kafka

import (
	"errors"
	"strings"
	"time"

	"github.com/segmentio/kafka-go"
)

// ConsumerConfig — подписка на ленту изменений документов.
type ConsumerConfig struct {
	Brokers     []string
	Topic       string
	GroupID     string
	StartOffset string // first|earliest или last|latest (по умолчанию)

	ProcessTimeout time.Duration // на одно применение изменения
	RetryInitial   time.Duration // первая пауза между повторами
	RetryMax       time.Duration // потолок паузы
}

var (
	errNoBrokers = errors.New("kafka: no brokers configured")
	errNoTopic   = errors.New("kafka: topic is required")
	errNoGroup   = errors.New("kafka: group id is required for manual commits")
)

// Validate — без group id коммиты оффсетов невозможны.
func (c *ConsumerConfig) Validate() error {
	var errs []error
	if len(c.Brokers) == 0 {
		errs = append(errs, errNoBrokers)
	}
	if strings.TrimSpace(c.Topic) == "" {
		errs = append(errs, errNoTopic)
	}
	if strings.TrimSpace(c.GroupID) == "" {
		errs = append(errs, errNoGroup)
	}
	return errors.Join(errs...)
}

// ReaderConfig — конфиг kafka.Reader с ручным коммитом (CommitInterval = 0).
func (c *ConsumerConfig) ReaderConfig() kafka.ReaderConfig {
	rc := kafka.ReaderConfig{
		Brokers:        c.Brokers,
		GroupID:        c.GroupID,
		Topic:          c.Topic,
		CommitInterval: 0,
		StartOffset:    kafka.LastOffset,
	}
	switch strings.ToLower(strings.TrimSpace(c.StartOffset)) {
	case "first", "earliest":
		rc.StartOffset = kafka.FirstOffset
	}
	return rc
}
