package memory

import (
	"strings"
	"sync"
	"time"

	"github.com/Gunvolt24/resto_sync/internal/domain"
	"github.com/Gunvolt24/resto_sync/internal/ports"
	"github.com/Gunvolt24/resto_sync/pkg/metrics"
)

const (
	DefaultMaxSize = 500
	DefaultTTL     = 60 * time.Second
)

type entry[V any] struct {
	key         string
	value       V
	storedAt    time.Time
	ttl         time.Duration
	accessCount int
	seq         uint64 // порядок вставки, тай-брейк при вытеснении
}

// TTLCache — потокобезопасный кэш с TTL на запись и вытеснением
// наименее используемой четверти при переполнении.
type TTLCache[V any] struct {
	name       string
	maxSize    int
	defaultTTL time.Duration

	entries map[string]*entry[V]
	seq     uint64
	hits    uint64
	misses  uint64

	clone  func(V) V
	now    func() time.Time
	mirror *mirror[V]
	log    ports.Logger

	mu sync.Mutex
}

type Option[V any] func(*TTLCache[V])

// WithClone — функция копирования значения; Get/Set работают с копиями.
func WithClone[V any](clone func(V) V) Option[V] {
	return func(c *TTLCache[V]) { c.clone = clone }
}

// WithClock — источник времени (для тестов).
func WithClock[V any](now func() time.Time) Option[V] {
	return func(c *TTLCache[V]) { c.now = now }
}

func WithLogger[V any](log ports.Logger) Option[V] {
	return func(c *TTLCache[V]) { c.log = log }
}

// WithMirror — best-effort зеркалирование записей в долговременное хранилище
// под ключами prefix+key. Зеркало переживает перезапуск процесса: промах в памяти
// проверяет его, свежая запись возвращается в память.
func WithMirror[V any](storage ports.DurableStorage, prefix string, ttl time.Duration) Option[V] {
	return func(c *TTLCache[V]) {
		c.mirror = &mirror[V]{storage: storage, prefix: prefix, ttl: ttl}
	}
}

// NewTTLCache — name используется как label метрик и в логах.
func NewTTLCache[V any](name string, maxSize int, defaultTTL time.Duration, opts ...Option[V]) *TTLCache[V] {
	if maxSize <= 0 {
		maxSize = DefaultMaxSize
	}
	if defaultTTL <= 0 {
		defaultTTL = DefaultTTL
	}
	c := &TTLCache[V]{
		name:       name,
		maxSize:    maxSize,
		defaultTTL: defaultTTL,
		entries:    make(map[string]*entry[V]),
		now:        time.Now,
		log:        nopLogger{},
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.mirror != nil {
		c.mirror.log = c.log
		c.mirror.now = c.now
		c.mirror.name = name
	}
	return c
}

// Set — запись с TTL по умолчанию.
func (c *TTLCache[V]) Set(key string, value V) {
	c.SetWithTTL(key, value, c.defaultTTL)
}

// SetWithTTL — вставка/перезапись; accessCount сбрасывается в 1.
// Ошибки зеркалирования не возвращаются.
func (c *TTLCache[V]) SetWithTTL(key string, value V, ttl time.Duration) {
	if ttl <= 0 {
		ttl = c.defaultTTL
	}
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.entries[key]; !exists && len(c.entries) >= c.maxSize {
		c.evictLocked()
	}
	c.seq++
	e := &entry[V]{
		key:         key,
		value:       c.copy(value),
		storedAt:    now,
		ttl:         ttl,
		accessCount: 1,
		seq:         c.seq,
	}
	c.entries[key] = e
	c.updateSizeMetric()

	if c.mirror != nil {
		c.mirror.store(e)
	}
}

// Get — (value, true) для живой записи. Истёкшая запись удаляется и считается промахом.
func (c *TTLCache[V]) Get(key string) (V, bool) {
	var zero V
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if ok && c.isExpired(e, now) {
		c.removeLocked(e)
		metrics.CacheOps.WithLabelValues(c.name, "expired").Inc()
		ok = false
	}
	if !ok && c.mirror != nil {
		e, ok = c.reviveLocked(key, now)
	}
	if !ok {
		c.misses++
		metrics.CacheOps.WithLabelValues(c.name, "miss").Inc()
		return zero, false
	}

	e.accessCount++
	c.hits++
	metrics.CacheOps.WithLabelValues(c.name, "hit").Inc()
	return c.copy(e.value), true
}

// Delete — удаляет ключ (и его зеркало).
func (c *TTLCache[V]) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		c.removeLocked(e)
		return
	}
	if c.mirror != nil {
		c.mirror.remove(key)
	}
}

// Invalidate — удаляет все ключи с префиксом prefix; пустой префикс очищает кэш.
// Возвращает число удалённых записей в памяти.
func (c *TTLCache[V]) Invalidate(prefix string) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for key, e := range c.entries {
		if strings.HasPrefix(key, prefix) {
			c.removeLocked(e)
			removed++
		}
	}
	if c.mirror != nil {
		c.mirror.removePrefix(prefix)
	}
	if removed > 0 {
		metrics.CacheOps.WithLabelValues(c.name, "invalidated").Add(float64(removed))
	}
	return removed
}

// PurgeExpired — активная уборка истёкших записей (в памяти и в зеркале).
func (c *TTLCache[V]) PurgeExpired() int {
	now := c.now()

	c.mu.Lock()
	defer c.mu.Unlock()

	removed := 0
	for _, e := range c.entries {
		if c.isExpired(e, now) {
			c.removeLocked(e)
			removed++
		}
	}
	if c.mirror != nil {
		c.mirror.purgeExpired()
	}
	if removed > 0 {
		metrics.CacheOps.WithLabelValues(c.name, "expired").Add(float64(removed))
	}
	return removed
}

// Stats — накопительная статистика этого экземпляра.
func (c *TTLCache[V]) Stats() domain.CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	st := domain.CacheStats{Size: len(c.entries), Hits: c.hits, Misses: c.misses}
	if total := c.hits + c.misses; total > 0 {
		st.HitRate = float64(c.hits) / float64(total)
	}
	return st
}

// Len — текущее число записей (включая ещё не убранные истёкшие).
func (c *TTLCache[V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *TTLCache[V]) Name() string { return c.name }
