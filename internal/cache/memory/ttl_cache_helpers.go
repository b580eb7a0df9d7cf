package memory

import (
	"cmp"
	"context"
	"slices"
	"time"

	"github.com/Gunvolt24/resto_sync/pkg/metrics"
)

// evictLocked — удаляет ceil(n/4) записей с наименьшим accessCount;
// при равенстве первыми уходят более старые вставки.
func (c *TTLCache[V]) evictLocked() {
	n := len(c.entries)
	if n == 0 {
		return
	}
	victims := make([]*entry[V], 0, n)
	for _, e := range c.entries {
		victims = append(victims, e)
	}
	slices.SortFunc(victims, func(a, b *entry[V]) int {
		if d := cmp.Compare(a.accessCount, b.accessCount); d != 0 {
			return d
		}
		return cmp.Compare(a.seq, b.seq)
	})

	count := (n + 3) / 4
	for _, e := range victims[:count] {
		c.removeLocked(e)
	}
	metrics.CacheOps.WithLabelValues(c.name, "evicted").Add(float64(count))
}

// removeLocked — удаляет запись из индекса и из зеркала.
func (c *TTLCache[V]) removeLocked(e *entry[V]) {
	delete(c.entries, e.key)
	if c.mirror != nil {
		c.mirror.remove(e.key)
	}
	c.updateSizeMetric()
}

// reviveLocked — поднимает запись из зеркала в память, если она ещё жива.
func (c *TTLCache[V]) reviveLocked(key string, now time.Time) (*entry[V], bool) {
	rec, ok := c.mirror.load(key)
	if !ok {
		return nil, false
	}
	e := &entry[V]{
		key:      key,
		value:    rec.Value,
		storedAt: time.UnixMilli(rec.StoredAt),
		ttl:      time.Duration(rec.TTLMillis) * time.Millisecond,
	}
	if c.isExpired(e, now) {
		c.mirror.remove(key)
		return nil, false
	}
	if len(c.entries) >= c.maxSize {
		c.evictLocked()
	}
	c.seq++
	e.seq = c.seq
	c.entries[key] = e
	c.updateSizeMetric()
	return e, true
}

// isExpired — запись видима, пока now - storedAt <= ttl.
func (c *TTLCache[V]) isExpired(e *entry[V], now time.Time) bool {
	return now.Sub(e.storedAt) > e.ttl
}

func (c *TTLCache[V]) copy(v V) V {
	if c.clone == nil {
		return v
	}
	return c.clone(v)
}

func (c *TTLCache[V]) updateSizeMetric() {
	metrics.CacheSize.WithLabelValues(c.name).Set(float64(len(c.entries)))
}

type nopLogger struct{}

func (nopLogger) Infof(context.Context, string, ...any)  {}
func (nopLogger) Warnf(context.Context, string, ...any)  {}
func (nopLogger) Errorf(context.Context, string, ...any) {}
