// Package realtime — разводит изменения документов по подписчикам пути
// и сбрасывает зависящие от них записи кэша чтений.
package realtime

import (
	"context"
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/Gunvolt24/resto_sync/internal/domain"
	"github.com/Gunvolt24/resto_sync/internal/ports"
	"github.com/Gunvolt24/resto_sync/pkg/apperr"
)

// Invalidator — сброс записей кэша по префиксу ключа.
type Invalidator interface {
	Invalidate(prefix string) int
}

type subscription struct {
	id   int
	path string
	fn   func(domain.Change)
}

// Hub — pub/sub по префиксу пути. Подписчик на "a/b" получает изменения
// "a/b", "a/b/c" и изменения предков ("a"), затрагивающие его поддерево.
type Hub struct {
	log   ports.Logger
	cache Invalidator
	now   func() time.Time

	mu     sync.RWMutex
	subs   []subscription
	nextID int
}

type Option func(*Hub)

// WithInvalidator — кэш, из которого выбрасываются списки заказов затронутого ресторана.
func WithInvalidator(c Invalidator) Option {
	return func(h *Hub) { h.cache = c }
}

func NewHub(log ports.Logger, opts ...Option) *Hub {
	h := &Hub{log: log, now: time.Now}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Hub) Subscribe(path string, fn func(domain.Change)) func() {
	path = normalize(path)

	h.mu.Lock()
	h.nextID++
	id := h.nextID
	h.subs = append(h.subs, subscription{id: id, path: path, fn: fn})
	h.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			h.mu.Lock()
			defer h.mu.Unlock()
			for i, s := range h.subs {
				if s.id == id {
					h.subs = append(h.subs[:i:i], h.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Publish — инвалидирует кэш и синхронно доставляет изменение подписчикам.
func (h *Hub) Publish(ctx context.Context, ch domain.Change) {
	ch.Path = normalize(ch.Path)
	if ch.At.IsZero() {
		ch.At = h.now()
	}
	h.invalidate(ctx, ch.Path)

	h.mu.RLock()
	targets := make([]func(domain.Change), 0, len(h.subs))
	for _, s := range h.subs {
		if related(s.path, ch.Path) {
			targets = append(targets, s.fn)
		}
	}
	h.mu.RUnlock()

	for _, fn := range targets {
		fn(ch)
	}
}

// ApplyChange — обработчик сообщения ленты изменений (Kafka).
// Битый JSON или пустой путь — apperr.ErrInvalidArgument: такое сообщение повторять бессмысленно.
func (h *Hub) ApplyChange(ctx context.Context, raw []byte) error {
	var ch domain.Change
	if err := json.Unmarshal(raw, &ch); err != nil {
		return apperr.Wrap(err, apperr.CodeInvalidArgument, "decode change")
	}
	if normalize(ch.Path) == "" {
		return apperr.Wrap(apperr.ErrInvalidArgument, apperr.CodeInvalidArgument, "change without path")
	}
	switch ch.Op {
	case domain.ChangeSet, domain.ChangeRemove:
	default:
		return apperr.Wrap(apperr.ErrInvalidArgument, apperr.CodeInvalidArgument, "change %s: unknown op %q", ch.Path, ch.Op)
	}
	h.Publish(ctx, ch)
	return nil
}

func (h *Hub) Len() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.subs)
}

func (h *Hub) invalidate(ctx context.Context, path string) {
	if h.cache == nil {
		return
	}
	if rid, ok := domain.RestaurantFromOrdersPath(path); ok {
		if n := h.cache.Invalidate(domain.OrdersCacheKey(rid)); n > 0 {
			h.log.Infof(ctx, "realtime: %s changed, dropped %d cached entries", path, n)
		}
		return
	}
	// изменение корня затрагивает списки всех ресторанов
	if related(path, domain.OrdersRootPath) {
		h.cache.Invalidate(domain.OrdersCacheKey(""))
	}
}

func normalize(p string) string {
	return strings.Trim(p, "/")
}

// related — один путь лежит в поддереве другого (или совпадает).
func related(a, b string) bool {
	return within(a, b) || within(b, a)
}

func within(child, parent string) bool {
	if parent == "" {
		return true
	}
	return child == parent || strings.HasPrefix(child, parent+"/")
}
