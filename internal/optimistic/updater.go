// Package optimistic — спекулятивная запись в кэш с откатом при ошибке удалённой записи.
package optimistic

import (
	"context"
	"sync"

	"github.com/Gunvolt24/resto_sync/internal/ports"
)

// Cache — то, что нужно апдейтеру от кэша.
type Cache[V any] interface {
	Get(key string) (V, bool)
	Set(key string, value V)
	Delete(key string)
}

// WriteFunc — удалённая запись, подтверждающая спекулятивное значение.
type WriteFunc func(ctx context.Context) (any, error)

type rollback[V any] struct {
	prev  V
	had   bool
	token uint64
}

// Updater — держит не больше одной записи отката на ключ.
//
// Без WithPerKeySerialization перекрывающиеся обновления одного ключа не
// упорядочены: откат более раннего обновления восстанавливает его «предыдущее»
// значение поверх более позднего успешного. С опцией обновления ключа идут по одному.
type Updater[V any] struct {
	cache Cache[V]
	log   ports.Logger

	mu      sync.Mutex
	pending map[string]rollback[V]
	token   uint64

	locks *keyedMutex
}

type Option[V any] func(*Updater[V])

// WithPerKeySerialization — обновления одного ключа выполняются строго последовательно.
func WithPerKeySerialization[V any]() Option[V] {
	return func(u *Updater[V]) { u.locks = newKeyedMutex() }
}

func NewUpdater[V any](cache Cache[V], log ports.Logger, opts ...Option[V]) *Updater[V] {
	u := &Updater[V]{
		cache:   cache,
		log:     log,
		pending: make(map[string]rollback[V]),
	}
	for _, opt := range opts {
		opt(u)
	}
	return u
}

// Update — кладёт speculative в кэш, выполняет write; при ошибке возвращает
// прежнее значение (или удаляет ключ, если его не было) и пробрасывает ошибку.
func (u *Updater[V]) Update(ctx context.Context, key string, speculative V, write WriteFunc) (any, error) {
	if u.locks != nil {
		unlock := u.locks.lock(key)
		defer unlock()
	}

	prev, had := u.cache.Get(key)

	u.mu.Lock()
	u.token++
	rb := rollback[V]{prev: prev, had: had, token: u.token}
	u.pending[key] = rb
	u.mu.Unlock()

	u.cache.Set(key, speculative)

	res, err := write(ctx)
	if err != nil {
		if rb.had {
			u.cache.Set(key, rb.prev)
		} else {
			u.cache.Delete(key)
		}
		u.log.Warnf(ctx, "optimistic update %q rolled back: %v", key, err)
	}

	u.mu.Lock()
	if cur, ok := u.pending[key]; ok && cur.token == rb.token {
		delete(u.pending, key)
	}
	u.mu.Unlock()

	return res, err
}

// Pending — есть ли незавершённое обновление ключа.
func (u *Updater[V]) Pending(key string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	_, ok := u.pending[key]
	return ok
}

// keyedMutex — мьютекс на ключ со счётчиком ссылок.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*refMutex)}
}

func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.mu.Lock()
	return func() {
		m.mu.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
