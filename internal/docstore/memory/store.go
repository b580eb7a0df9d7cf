// Package memory — хранилище документов в памяти процесса: офлайн-демо и тесты.
// Умеет имитировать потерю связи и сбои записи.
package memory

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"github.com/Gunvolt24/resto_sync/internal/docstore"
	"github.com/Gunvolt24/resto_sync/internal/domain"
	"github.com/Gunvolt24/resto_sync/internal/ports"
	"github.com/Gunvolt24/resto_sync/pkg/apperr"
)

var _ ports.DocumentStore = (*Store)(nil)

type Store struct {
	notifier docstore.Notifier
	latency  time.Duration
	now      func() time.Time

	mu       sync.RWMutex
	leaves   map[string]json.RawMessage
	online   bool
	failures []error

	conn chan bool
}

type Option func(*Store)

func WithNotifier(n docstore.Notifier) Option {
	return func(s *Store) { s.notifier = n }
}

// WithLatency — искусственная задержка каждой операции (учитывает ctx).
func WithLatency(d time.Duration) Option {
	return func(s *Store) { s.latency = d }
}

func New(opts ...Option) *Store {
	s := &Store{
		now:    time.Now,
		leaves: make(map[string]json.RawMessage),
		online: true,
		conn:   make(chan bool, 1),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// SetOnline — имитация связи; новое значение уходит в Connectivity.
// Непрочитанное предыдущее значение заменяется.
func (s *Store) SetOnline(online bool) {
	s.mu.Lock()
	s.online = online
	s.mu.Unlock()

	select {
	case <-s.conn:
	default:
	}
	select {
	case s.conn <- online:
	default:
	}
}

// FailNext — следующие операции по очереди вернут errs.
func (s *Store) FailNext(errs ...error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures = append(s.failures, errs...)
}

func (s *Store) Connectivity() <-chan bool { return s.conn }

func (s *Store) ReadOnce(ctx context.Context, path string) (json.RawMessage, error) {
	p, err := s.begin(ctx, path)
	if err != nil {
		return nil, err
	}

	s.mu.RLock()
	sub := make(map[string]json.RawMessage)
	for k, v := range s.leaves {
		if docstore.Within(k, p) {
			sub[k] = v
		}
	}
	s.mu.RUnlock()

	raw, ok, err := docstore.Assemble(p, sub)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, apperr.Wrap(apperr.ErrNotFound, apperr.CodeNotFound, "document %s", p)
	}
	return raw, nil
}

func (s *Store) Write(ctx context.Context, path string, value json.RawMessage) error {
	p, err := s.begin(ctx, path)
	if err != nil {
		return err
	}
	leaves, err := docstore.Flatten(p, value)
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.replaceLocked(p, leaves)
	s.mu.Unlock()

	s.notifier.Notify(ctx, s.change(p, value))
	return nil
}

func (s *Store) Update(ctx context.Context, path string, fields map[string]json.RawMessage) error {
	p, err := s.begin(ctx, path)
	if err != nil {
		return err
	}

	children := make(map[string]map[string]json.RawMessage, len(fields))
	for k, v := range fields {
		child, err := docstore.CleanPath(docstore.Join(p, k))
		if err != nil {
			return err
		}
		leaves, err := docstore.Flatten(child, v)
		if err != nil {
			return err
		}
		children[child] = leaves
	}

	s.mu.Lock()
	for child, leaves := range children {
		s.replaceLocked(child, leaves)
	}
	s.mu.Unlock()

	changes := make([]domain.Change, 0, len(fields))
	for k, v := range fields {
		changes = append(changes, s.change(docstore.Join(p, k), v))
	}
	s.notifier.Notify(ctx, changes...)
	return nil
}

func (s *Store) Remove(ctx context.Context, path string) error {
	p, err := s.begin(ctx, path)
	if err != nil {
		return err
	}
	s.mu.Lock()
	s.replaceLocked(p, nil)
	s.mu.Unlock()

	s.notifier.Notify(ctx, domain.Change{Path: p, Op: domain.ChangeRemove, At: s.now()})
	return nil
}

func (s *Store) Subscribe(path string, fn func(domain.Change)) func() {
	return s.notifier.Subscribe(path, fn)
}

// begin — общая преамбула операции: путь, задержка, связь, впрыснутые сбои.
func (s *Store) begin(ctx context.Context, path string) (string, error) {
	p, err := docstore.CleanPath(path)
	if err != nil {
		return "", err
	}
	if s.latency > 0 {
		t := time.NewTimer(s.latency)
		defer t.Stop()
		select {
		case <-ctx.Done():
			return "", ctx.Err()
		case <-t.C:
		}
	}
	if err := ctx.Err(); err != nil {
		return "", err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.online {
		return "", apperr.Wrap(apperr.ErrOffline, apperr.CodeOffline, "document store %s", p)
	}
	if len(s.failures) > 0 {
		err := s.failures[0]
		s.failures = s.failures[1:]
		return "", err
	}
	return p, nil
}

// replaceLocked — поддерево p заменяется листьями leaves;
// лист-предок (скаляр на месте будущего объекта) удаляется.
func (s *Store) replaceLocked(p string, leaves map[string]json.RawMessage) {
	for k := range s.leaves {
		if docstore.Within(k, p) {
			delete(s.leaves, k)
		}
	}
	if len(leaves) == 0 {
		return
	}
	for _, a := range docstore.Ancestors(p) {
		delete(s.leaves, a)
	}
	for k, v := range leaves {
		s.leaves[k] = v
	}
}

func (s *Store) change(p string, value json.RawMessage) domain.Change {
	ch := domain.Change{Path: p, Op: domain.ChangeSet, Value: value, At: s.now()}
	if len(value) == 0 || string(value) == "null" {
		ch.Op = domain.ChangeRemove
		ch.Value = nil
	}
	return ch
}
