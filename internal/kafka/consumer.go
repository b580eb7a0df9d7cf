package kafka

import (
	"context"
	"sync"
	"time"

	"github.com/Gunvolt24/resto_sync/internal/ports"
	"github.com/Gunvolt24/resto_sync/pkg/apperr"
	"github.com/Gunvolt24/resto_sync/pkg/ctxmeta"
	"github.com/Gunvolt24/resto_sync/pkg/metrics"
	"github.com/segmentio/kafka-go"
	goretry "github.com/sethvargo/go-retry"
)

var _ ports.ChangeFeed = (*Consumer)(nil)

// reader — минимальный контракт над kafka.Reader для подмены в тестах.
type reader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Config() kafka.ReaderConfig
	Close() error
}

// changeApplier — получатель ленты изменений документов
// (realtime.Hub: инвалидация кэша и доставка подписчикам).
type changeApplier interface {
	ApplyChange(ctx context.Context, raw []byte) error
}

// Consumer — читатель ленты изменений хранилища документов.
// Оффсет коммитится только после того, как изменение применено или признано битым.
type Consumer struct {
	reader         reader
	applier        changeApplier
	log            ports.Logger
	processTimeout time.Duration
	backoff        func() goretry.Backoff
	closeOnce      sync.Once
}

func NewConsumer(cfg *ConsumerConfig, applier changeApplier, log ports.Logger) *Consumer {
	return newConsumer(kafka.NewReader(cfg.ReaderConfig()), applier, log, cfg)
}

func newConsumer(r reader, applier changeApplier, log ports.Logger, cfg *ConsumerConfig) *Consumer {
	pt := cfg.ProcessTimeout
	if pt <= 0 {
		pt = 5 * time.Second
	}
	initial := cfg.RetryInitial
	if initial <= 0 {
		initial = time.Second
	}
	ceiling := cfg.RetryMax
	if ceiling <= 0 {
		ceiling = 30 * time.Second
	}
	return &Consumer{
		reader:         r,
		applier:        applier,
		log:            log,
		processTimeout: pt,
		backoff: func() goretry.Backoff {
			b := goretry.NewExponential(initial)
			b = goretry.WithJitterPercent(50, b)
			return goretry.WithCappedDuration(ceiling, b)
		},
	}
}

// Run — читает ленту до отмены ctx.
// Ошибки FetchMessage пережидаются с экспоненциальной паузой.
// Временная ошибка применения повторяет то же сообщение (порядок внутри партиции сохраняется);
// permanent-ошибка — лог и коммит, чтобы не застревать на мусоре.
func (c *Consumer) Run(ctx context.Context) error {
	rc := c.reader.Config()
	c.log.Infof(ctx, "change feed consumer started topic=%s group_id=%s brokers=%v", rc.Topic, rc.GroupID, rc.Brokers)

	fetchBackoff := c.backoff()
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			d, _ := fetchBackoff.Next()
			c.log.Warnf(ctx, "fetch failed: %v (will retry in %s)", err, d)
			if !sleep(ctx, d) {
				return ctx.Err()
			}
			continue
		}
		fetchBackoff = c.backoff()
		metrics.KafkaMessagesConsumed.WithLabelValues(rc.Topic).Inc()

		if err := c.apply(ctx, rc.Topic, &msg); err != nil {
			// отмена посреди повторов: без коммита, сообщение придёт снова
			return err
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil {
			c.log.Warnf(ctx, "commit failed offset=%d: %v", msg.Offset, err)
		}
	}
}

// apply — применяет изменение, повторяя временные ошибки до успеха или отмены ctx.
// Возвращает ошибку только при отмене.
func (c *Consumer) apply(ctx context.Context, topic string, msg *kafka.Message) error {
	if id := headerValue(msg, headerChangeID); id != "" {
		ctx = ctxmeta.WithRequestID(ctx, id)
	}

	attempt := 0
	err := goretry.Do(ctx, c.backoff(), func(ctx context.Context) error {
		attempt++
		applyCtx, cancel := context.WithTimeout(ctx, c.processTimeout)
		defer cancel()

		err := c.applier.ApplyChange(applyCtx, msg.Value)
		switch {
		case err == nil:
			metrics.KafkaMessagesProcessed.WithLabelValues(topic).Inc()
			return nil
		case apperr.IsPermanent(err):
			metrics.KafkaMessagesFailed.WithLabelValues(topic).Inc()
			c.log.Warnf(ctx, "invalid change offset=%d: %v (skipped)", msg.Offset, err)
			return nil
		default:
			metrics.KafkaMessagesFailed.WithLabelValues(topic).Inc()
			c.log.Warnf(ctx, "apply failed offset=%d attempt=%d: %v", msg.Offset, attempt, err)
			return goretry.RetryableError(err)
		}
	})
	if err != nil && ctx.Err() != nil {
		return ctx.Err()
	}
	return nil
}

// Close — закрывает reader; повторный вызов ничего не делает.
func (c *Consumer) Close() (retErr error) {
	c.closeOnce.Do(func() {
		retErr = c.reader.Close()
	})
	return retErr
}

func headerValue(msg *kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}
