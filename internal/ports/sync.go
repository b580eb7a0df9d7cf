package ports

import (
	"context"
	"encoding/json"

	"github.com/Gunvolt24/resto_sync/internal/domain"
)

// ConnectionMonitor — наблюдатель за доступностью удалённого хранилища.
type ConnectionMonitor interface {
	State() domain.ConnectionState
	SetOnline(online bool)
	// Subscribe — fn вызывается сразу с текущим состоянием и далее на каждый переход.
	Subscribe(fn func(domain.ConnectionState)) (unsubscribe func())
}

// SyncManager — очередь отложенных записей с фоновым воспроизведением.
type SyncManager interface {
	AddOperation(ctx context.Context, typ domain.OperationType, payload map[string]json.RawMessage) (domain.PendingOperation, error)
	SyncAll(ctx context.Context) (domain.SyncReport, error)
	Pending() []domain.PendingOperation
}
