package ports

import "context"

// ChangeFeed — входящая лента изменений документов (Kafka).
// Run блокируется до отмены ctx; Close освобождает соединение и безопасен повторно.
type ChangeFeed interface {
	Run(ctx context.Context) error
	Close() error
}
