package ports

import (
	"context"
	"encoding/json"

	"github.com/Gunvolt24/resto_sync/internal/domain"
)

// DocumentStore — удалённое иерархическое хранилище JSON-документов.
// Пути разделяются "/"; запись по пути заменяет всё поддерево.
type DocumentStore interface {
	// ReadOnce — значение поддерева; apperr.ErrNotFound, если по пути ничего нет.
	ReadOnce(ctx context.Context, path string) (json.RawMessage, error)
	Write(ctx context.Context, path string, value json.RawMessage) error
	// Update — частичное обновление: каждое поле fields пишется как дочерний путь.
	Update(ctx context.Context, path string, fields map[string]json.RawMessage) error
	Remove(ctx context.Context, path string) error

	// Subscribe — изменения внутри path и ниже; вызов возвращённой функции отписывает.
	Subscribe(path string, fn func(domain.Change)) (unsubscribe func())

	// Connectivity — поток признаков доступности хранилища (true = доступно).
	Connectivity() <-chan bool
}

// ChangePublisher — публикация изменений документов во внешний поток (Kafka).
type ChangePublisher interface {
	Publish(ctx context.Context, change domain.Change) error
	Close() error
}
