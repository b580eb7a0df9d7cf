// Package syncer — долговременная очередь отложенных записей и их фоновое
// воспроизведение при восстановлении связи.
package syncer

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Gunvolt24/resto_sync/internal/domain"
	"github.com/Gunvolt24/resto_sync/internal/ports"
	"github.com/Gunvolt24/resto_sync/internal/retry"
	"github.com/Gunvolt24/resto_sync/pkg/apperr"
	"github.com/Gunvolt24/resto_sync/pkg/ctxmeta"
	"github.com/Gunvolt24/resto_sync/pkg/metrics"
	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"
)

var _ ports.SyncManager = (*Manager)(nil)

const DefaultStorageKey = "pending_sync_operations"

// Replayer — повторная отправка операции одного типа.
type Replayer func(ctx context.Context, op domain.PendingOperation) error

// Manager — единственный владелец списка PendingOperation.
// Список сохраняется в DurableStorage после каждого изменения.
type Manager struct {
	storage ports.DurableStorage
	key     string
	monitor ports.ConnectionMonitor
	exec    *retry.Executor
	log     ports.Logger
	evict   func()
	now     func() time.Time

	replayers map[domain.OperationType]Replayer

	mu  sync.Mutex
	ops []domain.PendingOperation

	group       singleflight.Group
	unsubscribe func()
}

type Option func(*Manager)

func WithStorageKey(key string) Option {
	return func(m *Manager) {
		if key != "" {
			m.key = key
		}
	}
}

// WithEvictor — чем освободить место при переполнении хранилища
// (например, уборка зеркала кэша) перед единственной повторной записью.
func WithEvictor(fn func()) Option {
	return func(m *Manager) { m.evict = fn }
}

func WithClock(now func() time.Time) Option {
	return func(m *Manager) { m.now = now }
}

// NewManager — поднимает сохранённый список; битые данные дают пустой список и предупреждение.
func NewManager(storage ports.DurableStorage, monitor ports.ConnectionMonitor, exec *retry.Executor, log ports.Logger, opts ...Option) *Manager {
	m := &Manager{
		storage:   storage,
		key:       DefaultStorageKey,
		monitor:   monitor,
		exec:      exec,
		log:       log,
		evict:     func() {},
		now:       time.Now,
		replayers: make(map[domain.OperationType]Replayer),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.ops = m.load()
	metrics.SyncPending.Set(float64(len(m.ops)))
	return m
}

// Register — обработчик воспроизведения для типа операции.
func (m *Manager) Register(typ domain.OperationType, r Replayer) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.replayers[typ] = r
}

// Start — подписка на монитор: каждый переход в online запускает SyncAll.
// Подписка сразу получает текущее состояние, так что очередь,
// поднятая из хранилища, разбирается при старте.
func (m *Manager) Start(ctx context.Context) {
	m.unsubscribe = m.monitor.Subscribe(func(s domain.ConnectionState) {
		if !s.Online {
			return
		}
		go func() {
			report, err := m.SyncAll(ctx)
			if err != nil {
				m.log.Warnf(ctx, "background sync failed: %v", err)
				return
			}
			if report.Attempted > 0 {
				m.log.Infof(ctx, "background sync: synced=%d failed=%d remaining=%d",
					report.Synced, report.Failed, report.Remaining)
			}
		}()
	})
}

func (m *Manager) Stop() {
	if m.unsubscribe != nil {
		m.unsubscribe()
	}
}

// AddOperation — добавляет операцию с новым id и отметкой времени, сохраняет список.
func (m *Manager) AddOperation(ctx context.Context, typ domain.OperationType, payload map[string]json.RawMessage) (domain.PendingOperation, error) {
	if typ == "" {
		return domain.PendingOperation{}, apperr.Wrap(apperr.ErrInvalidArgument, apperr.CodeInvalidArgument, "operation type is required")
	}
	op := domain.PendingOperation{
		ID:         uuid.NewString(),
		Type:       typ,
		EnqueuedAt: m.now().Truncate(time.Millisecond),
		Payload:    payload,
	}

	m.mu.Lock()
	m.ops = append(m.ops, op)
	m.persistLocked(ctx)
	m.mu.Unlock()

	m.log.Infof(ctxmeta.WithOperationID(ctx, op.ID), "queued %s operation %s for background sync", op.Type, op.ID)
	return op, nil
}

// SyncAll — последовательно воспроизводит снимок очереди через RetryExecutor
// и одной записью удаляет успешные. Offline или пустая очередь — no-op.
// Параллельные вызовы разделяют один прогон.
func (m *Manager) SyncAll(ctx context.Context) (domain.SyncReport, error) {
	if !m.monitor.State().Online {
		return domain.SyncReport{Remaining: m.Len()}, nil
	}
	v, err, _ := m.group.Do("sync", func() (any, error) {
		return m.syncOnce(ctx), nil
	})
	if err != nil {
		return domain.SyncReport{}, err
	}
	return v.(domain.SyncReport), nil
}

func (m *Manager) syncOnce(ctx context.Context) domain.SyncReport {
	snapshot := m.Pending()
	report := domain.SyncReport{}
	if len(snapshot) == 0 {
		return report
	}

	done := make(map[string]struct{}, len(snapshot))
	for _, op := range snapshot {
		if ctx.Err() != nil || !m.monitor.State().Online {
			break
		}
		report.Attempted++
		opCtx := ctxmeta.WithOperationID(ctx, op.ID)
		if err := m.replay(opCtx, op); err != nil {
			report.Failed++
			metrics.SyncReplayed.WithLabelValues(string(op.Type), "error").Inc()
			m.log.Warnf(opCtx, "replay %s operation %s failed: %v", op.Type, op.ID, err)
			continue
		}
		report.Synced++
		metrics.SyncReplayed.WithLabelValues(string(op.Type), "ok").Inc()
		done[op.ID] = struct{}{}
	}

	m.mu.Lock()
	if len(done) > 0 {
		kept := m.ops[:0:0]
		for _, op := range m.ops {
			if _, ok := done[op.ID]; !ok {
				kept = append(kept, op)
			}
		}
		m.ops = kept
		m.persistLocked(ctx)
	}
	report.Remaining = len(m.ops)
	m.mu.Unlock()
	return report
}

func (m *Manager) replay(ctx context.Context, op domain.PendingOperation) error {
	m.mu.Lock()
	r, ok := m.replayers[op.Type]
	m.mu.Unlock()
	if !ok {
		return apperr.Wrap(apperr.ErrUnknownOperation, apperr.CodeUnknownOperation, "operation %s has type %q", op.ID, op.Type)
	}
	return m.exec.Do(ctx, func(ctx context.Context) error { return r(ctx, op) })
}

// Pending — копия очереди в порядке добавления.
func (m *Manager) Pending() []domain.PendingOperation {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]domain.PendingOperation(nil), m.ops...)
}

func (m *Manager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ops)
}

// persistLocked — best-effort запись; при переполнении: вытеснение и одна повторная попытка.
func (m *Manager) persistLocked(ctx context.Context) {
	metrics.SyncPending.Set(float64(len(m.ops)))

	ops := m.ops
	if ops == nil {
		ops = []domain.PendingOperation{}
	}
	raw, err := json.Marshal(ops)
	if err != nil {
		m.log.Errorf(ctx, "marshal pending operations: %v", err)
		return
	}

	err = m.storage.SetItem(m.key, string(raw))
	if errors.Is(err, apperr.ErrStorageFull) {
		m.evict()
		err = m.storage.SetItem(m.key, string(raw))
	}
	if err != nil {
		m.log.Warnf(ctx, "persist pending operations (%d): %v", len(m.ops), err)
	}
}

func (m *Manager) load() []domain.PendingOperation {
	ctx := context.Background()
	raw, ok, err := m.storage.GetItem(m.key)
	if err != nil {
		m.log.Warnf(ctx, "load pending operations: %v", err)
		return nil
	}
	if !ok || raw == "" {
		return nil
	}
	var ops []domain.PendingOperation
	if err := json.Unmarshal([]byte(raw), &ops); err != nil {
		m.log.Warnf(ctx, "pending operations are corrupt, starting empty: %v", fmt.Errorf("decode %s: %w", m.key, err))
		return nil
	}
	return ops
}
