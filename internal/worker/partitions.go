package worker

import (
	"context"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/Gunvolt24/resto_sync/internal/cache/memory"
	"github.com/Gunvolt24/resto_sync/internal/domain"
	"github.com/Gunvolt24/resto_sync/internal/ports"
)

const storagePrefix = "sw:"

// Entry — сохранённый ответ.
type Entry struct {
	URL    string      `json:"url"`
	Status int         `json:"status"`
	Header http.Header `json:"header"`
	Body   []byte      `json:"body"`
}

func cloneEntry(e Entry) Entry {
	e.Header = e.Header.Clone()
	e.Body = append([]byte(nil), e.Body...)
	return e
}

// partitions — именованные разделы кэша ответов поверх TTLCache.
// С DurableStorage разделы переживают перезапуск (ключи "sw:<раздел>:<url>").
type partitions struct {
	maxEntries int
	storage    ports.DurableStorage
	log        ports.Logger

	mu     sync.Mutex
	byName map[string]*memory.TTLCache[Entry]
	order  []string
}

func newPartitions(maxEntries int, storage ports.DurableStorage, log ports.Logger) *partitions {
	return &partitions{
		maxEntries: maxEntries,
		storage:    storage,
		log:        log,
		byName:     make(map[string]*memory.TTLCache[Entry]),
	}
}

// open — раздел по имени; создаётся при первом обращении.
func (p *partitions) open(name string, ttl time.Duration) *memory.TTLCache[Entry] {
	p.mu.Lock()
	defer p.mu.Unlock()
	if c, ok := p.byName[name]; ok {
		return c
	}
	opts := []memory.Option[Entry]{
		memory.WithClone(cloneEntry),
		memory.WithLogger[Entry](p.log),
	}
	if p.storage != nil {
		opts = append(opts, memory.WithMirror[Entry](p.storage, storagePrefix+name+":", 0))
	}
	c := memory.NewTTLCache[Entry]("worker_"+name, p.maxEntries, ttl, opts...)
	p.byName[name] = c
	p.order = append(p.order, name)
	return c
}

// match — поиск по всем открытым разделам в порядке создания.
func (p *partitions) match(key string) (Entry, bool) {
	p.mu.Lock()
	caches := make([]*memory.TTLCache[Entry], 0, len(p.order))
	for _, name := range p.order {
		caches = append(caches, p.byName[name])
	}
	p.mu.Unlock()

	for _, c := range caches {
		if e, ok := c.Get(key); ok {
			return e, true
		}
	}
	return Entry{}, false
}

// names — открытые разделы и разделы, оставшиеся в хранилище от прошлых запусков.
func (p *partitions) names() []string {
	p.mu.Lock()
	seen := make(map[string]struct{}, len(p.order))
	out := append([]string(nil), p.order...)
	for _, n := range p.order {
		seen[n] = struct{}{}
	}
	p.mu.Unlock()

	for _, n := range p.storedNames() {
		if _, ok := seen[n]; !ok {
			seen[n] = struct{}{}
			out = append(out, n)
		}
	}
	return out
}

// remove — раздел целиком, вместе с сохранёнными копиями.
func (p *partitions) remove(ctx context.Context, name string) {
	p.mu.Lock()
	c, ok := p.byName[name]
	delete(p.byName, name)
	for i, n := range p.order {
		if n == name {
			p.order = append(p.order[:i:i], p.order[i+1:]...)
			break
		}
	}
	p.mu.Unlock()

	if ok {
		c.Invalidate("")
		return
	}
	p.removeStored(ctx, name)
}

func (p *partitions) stats() map[string]domain.CacheStats {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make(map[string]domain.CacheStats, len(p.byName))
	for name, c := range p.byName {
		out[name] = c.Stats()
	}
	return out
}

func (p *partitions) storedNames() []string {
	if p.storage == nil {
		return nil
	}
	keys, err := p.storage.Keys()
	if err != nil {
		p.log.Warnf(context.Background(), "worker: list stored partitions: %v", err)
		return nil
	}
	var out []string
	seen := map[string]struct{}{}
	for _, k := range keys {
		rest, ok := strings.CutPrefix(k, storagePrefix)
		if !ok {
			continue
		}
		name, _, ok := strings.Cut(rest, ":")
		if !ok {
			continue
		}
		if _, dup := seen[name]; !dup {
			seen[name] = struct{}{}
			out = append(out, name)
		}
	}
	return out
}

func (p *partitions) removeStored(ctx context.Context, name string) {
	if p.storage == nil {
		return
	}
	keys, err := p.storage.Keys()
	if err != nil {
		p.log.Warnf(ctx, "worker: list stored partitions: %v", err)
		return
	}
	prefix := storagePrefix + name + ":"
	for _, k := range keys {
		if strings.HasPrefix(k, prefix) {
			if err := p.storage.RemoveItem(k); err != nil {
				p.log.Warnf(ctx, "worker: remove %s: %v", k, err)
			}
		}
	}
}
