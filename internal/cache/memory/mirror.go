package memory

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/Gunvolt24/resto_sync/internal/ports"
	"github.com/Gunvolt24/resto_sync/pkg/apperr"
	"github.com/Gunvolt24/resto_sync/pkg/metrics"
)

// mirrorRecord — формат записи в долговременном хранилище.
type mirrorRecord[V any] struct {
	Value     V     `json:"value"`
	StoredAt  int64 `json:"stored_at"`
	TTLMillis int64 `json:"ttl_ms"`
}

type mirror[V any] struct {
	storage ports.DurableStorage
	prefix  string
	ttl     time.Duration // верхняя граница жизни копии; 0 — как у записи в памяти
	name    string
	now     func() time.Time
	log     ports.Logger
}

func (m *mirror[V]) store(e *entry[V]) {
	ttl := e.ttl
	if m.ttl > 0 && m.ttl < ttl {
		ttl = m.ttl
	}
	raw, err := json.Marshal(mirrorRecord[V]{Value: e.value, StoredAt: e.storedAt.UnixMilli(), TTLMillis: ttl.Milliseconds()})
	if err != nil {
		m.log.Warnf(context.Background(), "cache %s: mirror marshal %q: %v", m.name, e.key, err)
		return
	}

	err = m.storage.SetItem(m.prefix+e.key, string(raw))
	if errors.Is(err, apperr.ErrStorageFull) {
		m.purgeExpired()
		err = m.storage.SetItem(m.prefix+e.key, string(raw))
	}
	if err != nil {
		metrics.CacheOps.WithLabelValues(m.name, "mirror_dropped").Inc()
		m.log.Warnf(context.Background(), "cache %s: mirror write %q dropped: %v", m.name, e.key, err)
	}
}

func (m *mirror[V]) load(key string) (mirrorRecord[V], bool) {
	var rec mirrorRecord[V]
	raw, ok, err := m.storage.GetItem(m.prefix + key)
	if err != nil || !ok {
		return rec, false
	}
	if err := json.Unmarshal([]byte(raw), &rec); err != nil {
		m.remove(key)
		return rec, false
	}
	return rec, true
}

func (m *mirror[V]) remove(key string) {
	if err := m.storage.RemoveItem(m.prefix + key); err != nil {
		m.log.Warnf(context.Background(), "cache %s: mirror remove %q: %v", m.name, key, err)
	}
}

func (m *mirror[V]) removePrefix(prefix string) {
	keys, err := m.storage.Keys()
	if err != nil {
		m.log.Warnf(context.Background(), "cache %s: mirror keys: %v", m.name, err)
		return
	}
	full := m.prefix + prefix
	for _, k := range keys {
		if strings.HasPrefix(k, full) {
			_ = m.storage.RemoveItem(k)
		}
	}
}

// purgeExpired — удаляет из хранилища истёкшие и нечитаемые копии.
func (m *mirror[V]) purgeExpired() {
	keys, err := m.storage.Keys()
	if err != nil {
		return
	}
	now := m.now()
	for _, k := range keys {
		if !strings.HasPrefix(k, m.prefix) {
			continue
		}
		raw, ok, err := m.storage.GetItem(k)
		if err != nil || !ok {
			continue
		}
		var rec struct {
			StoredAt  int64 `json:"stored_at"`
			TTLMillis int64 `json:"ttl_ms"`
		}
		if json.Unmarshal([]byte(raw), &rec) != nil ||
			now.Sub(time.UnixMilli(rec.StoredAt)) > time.Duration(rec.TTLMillis)*time.Millisecond {
			_ = m.storage.RemoveItem(k)
		}
	}
}
