package docstore

import (
	"context"

	"github.com/Gunvolt24/resto_sync/internal/domain"
	"github.com/Gunvolt24/resto_sync/internal/ports"
)

// Hub — локальная доставка изменений подписчикам.
type Hub interface {
	Subscribe(path string, fn func(domain.Change)) func()
	Publish(ctx context.Context, ch domain.Change)
}

// Notifier — куда уходят изменения после успешной записи.
// С Publisher изменения идут только во внешнюю ленту: подписчики получат их
// через consumer ленты, который кормит тот же Hub. Без Publisher — сразу в Hub.
type Notifier struct {
	Hub       Hub
	Publisher ports.ChangePublisher
	Log       ports.Logger
}

func (n Notifier) Notify(ctx context.Context, changes ...domain.Change) {
	for _, ch := range changes {
		if n.Publisher != nil {
			if err := n.Publisher.Publish(ctx, ch); err != nil && n.Log != nil {
				n.Log.Warnf(ctx, "publish change %s: %v", ch.Path, err)
			}
			continue
		}
		if n.Hub != nil {
			n.Hub.Publish(ctx, ch)
		}
	}
}

// Subscribe — подписка через Hub; без Hub подписка ничего не получает.
func (n Notifier) Subscribe(path string, fn func(domain.Change)) func() {
	if n.Hub == nil {
		return func() {}
	}
	return n.Hub.Subscribe(path, fn)
}
