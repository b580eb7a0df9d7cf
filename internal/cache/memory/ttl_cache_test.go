package memory

import (
	"sync"
	"testing"
	"time"

	"github.com/Gunvolt24/resto_sync/internal/domain"
	"github.com/Gunvolt24/resto_sync/internal/ports/mocks"
	"github.com/Gunvolt24/resto_sync/internal/storage/local"
	"github.com/Gunvolt24/resto_sync/pkg/apperr"
	"github.com/golang/mock/gomock"
)

// fakeClock — ручные часы для детерминированных проверок TTL.
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock { return &fakeClock{now: time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)} }

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func TestSetGet_HitMiss(t *testing.T) {
	c := NewTTLCache[string]("test", 2, time.Minute)

	// miss
	if _, ok := c.Get("k1"); ok {
		t.Fatalf("expected miss before Set")
	}

	// hit после Set
	c.Set("k1", "v1")
	got, ok := c.Get("k1")
	if !ok || got != "v1" {
		t.Fatalf("expected hit for k1, got %q %v", got, ok)
	}

	st := c.Stats()
	if st.Hits != 1 || st.Misses != 1 || st.Size != 1 || st.HitRate != 0.5 {
		t.Fatalf("unexpected stats: %+v", st)
	}
}

func TestTTL_Expiry(t *testing.T) {
	clk := newFakeClock()
	c := NewTTLCache[int]("test", 10, time.Second, WithClock[int](clk.Now))

	c.SetWithTTL("short", 1, 100*time.Millisecond)
	clk.Advance(100 * time.Millisecond)
	if _, ok := c.Get("short"); !ok {
		t.Fatalf("entry must be visible while now-storedAt <= ttl")
	}
	clk.Advance(time.Millisecond)
	if _, ok := c.Get("short"); ok {
		t.Fatalf("expected miss after TTL expires")
	}
	if c.Len() != 0 {
		t.Fatalf("expired entry must be removed on access")
	}
}

func TestTTL_RealClock(t *testing.T) {
	c := NewTTLCache[string]("test", 2, 100*time.Millisecond)

	c.Set("k", "v")
	if _, ok := c.Get("k"); !ok {
		t.Fatalf("expected hit right after Set")
	}
	time.Sleep(150 * time.Millisecond)
	if _, ok := c.Get("k"); ok {
		t.Fatalf("expected miss after TTL expires")
	}
}

func TestEviction_LowestAccessQuarter(t *testing.T) {
	c := NewTTLCache[int]("test", 4, time.Minute)

	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("c", 3)
	c.Set("d", 4)
	// a, c, d получают обращения; b остаётся с accessCount=1
	for _, k := range []string{"a", "c", "d"} {
		if _, ok := c.Get(k); !ok {
			t.Fatalf("expected hit for %s", k)
		}
	}

	c.Set("e", 5) // ceil(4/4)=1 → вытесняется b

	if _, ok := c.Get("b"); ok {
		t.Fatalf("expected b to be evicted")
	}
	for _, k := range []string{"a", "c", "d", "e"} {
		if _, ok := c.Get(k); !ok {
			t.Fatalf("expected %s to stay in cache", k)
		}
	}
	if c.Len() > 4 {
		t.Fatalf("size must never exceed maxSize, got %d", c.Len())
	}
}

func TestEviction_TieBreakByInsertionOrder(t *testing.T) {
	c := NewTTLCache[int]("test", 8, time.Minute)
	for i, k := range []string{"k1", "k2", "k3", "k4", "k5", "k6", "k7", "k8"} {
		c.Set(k, i)
	}
	c.Set("k9", 9) // ceil(8/4)=2 → k1 и k2, все accessCount=1

	for _, k := range []string{"k1", "k2"} {
		if _, ok := c.Get(k); ok {
			t.Fatalf("expected %s to be evicted first", k)
		}
	}
	if c.Len() != 7 {
		t.Fatalf("expected 7 entries after eviction, got %d", c.Len())
	}
}

func TestOverwriteDoesNotEvict(t *testing.T) {
	c := NewTTLCache[int]("test", 2, time.Minute)
	c.Set("a", 1)
	c.Set("b", 2)
	c.Set("a", 10)

	if v, ok := c.Get("a"); !ok || v != 10 {
		t.Fatalf("expected overwritten value 10, got %v %v", v, ok)
	}
	if _, ok := c.Get("b"); !ok {
		t.Fatalf("overwrite must not evict other keys")
	}
}

func TestInvalidatePrefix(t *testing.T) {
	c := NewTTLCache[string]("test", 10, time.Minute)
	c.Set("orders_r1", "x")
	c.Set("orders_r2", "y")
	c.Set("tables_r1", "z")

	if n := c.Invalidate("orders_"); n != 2 {
		t.Fatalf("expected 2 invalidated, got %d", n)
	}
	if _, ok := c.Get("tables_r1"); !ok {
		t.Fatalf("non-matching key must survive")
	}
	c.Invalidate("")
	if c.Len() != 0 {
		t.Fatalf("empty prefix must clear cache")
	}
}

func TestPurgeExpired(t *testing.T) {
	clk := newFakeClock()
	c := NewTTLCache[int]("test", 10, time.Second, WithClock[int](clk.Now))
	c.Set("a", 1)
	c.SetWithTTL("b", 2, time.Hour)
	clk.Advance(2 * time.Second)

	if n := c.PurgeExpired(); n != 1 {
		t.Fatalf("expected 1 purged, got %d", n)
	}
	if c.Len() != 1 {
		t.Fatalf("expected 1 entry left, got %d", c.Len())
	}
}

func TestCloneImmutability(t *testing.T) {
	c := NewTTLCache[*domain.Order]("test", 1, time.Minute, WithClone((*domain.Order).Clone))
	orig := &domain.Order{ID: "Z", Items: []domain.Item{{Name: "x"}}}
	c.Set("Z", orig)

	// меняем то, что вернул Get — не должно влиять на кэш
	o1, _ := c.Get("Z")
	o1.Items[0].Name = "changed"
	orig.Items[0].Name = "changed-too"

	o2, _ := c.Get("Z")
	if o2.Items[0].Name != "x" {
		t.Fatalf("cache should return clones, not pointers to internal value")
	}
}

func TestMirror_SurvivesRestart(t *testing.T) {
	store := local.NewMemoryStore(0)
	clk := newFakeClock()

	first := NewTTLCache[string]("test", 10, time.Minute,
		WithClock[string](clk.Now), WithMirror[string](store, "restaurant_", 10*time.Minute))
	first.Set("orders_r1", "payload")

	// «новый процесс» с тем же хранилищем
	second := NewTTLCache[string]("test", 10, time.Minute,
		WithClock[string](clk.Now), WithMirror[string](store, "restaurant_", 10*time.Minute))
	v, ok := second.Get("orders_r1")
	if !ok || v != "payload" {
		t.Fatalf("expected value revived from mirror, got %q %v", v, ok)
	}

	second.Delete("orders_r1")
	if _, ok, _ := store.GetItem("restaurant_orders_r1"); ok {
		t.Fatalf("delete must remove mirrored copy")
	}
}

func TestMirror_ExpiredCopyIgnored(t *testing.T) {
	store := local.NewMemoryStore(0)
	clk := newFakeClock()

	first := NewTTLCache[string]("test", 10, time.Minute,
		WithClock[string](clk.Now), WithMirror[string](store, "p_", 0))
	first.Set("k", "v")
	clk.Advance(2 * time.Minute)

	second := NewTTLCache[string]("test", 10, time.Minute,
		WithClock[string](clk.Now), WithMirror[string](store, "p_", 0))
	if _, ok := second.Get("k"); ok {
		t.Fatalf("expired mirrored copy must not be revived")
	}
	if keys, _ := store.Keys(); len(keys) != 0 {
		t.Fatalf("expired mirrored copy must be removed, got %v", keys)
	}
}

func TestMirror_StorageFull_PurgesAndRetriesOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	store := mocks.NewMockDurableStorage(ctrl)
	clk := newFakeClock()

	c := NewTTLCache[string]("test", 10, time.Minute,
		WithClock[string](clk.Now), WithMirror[string](store, "p_", 0))

	gomock.InOrder(
		store.EXPECT().SetItem("p_k", gomock.Any()).Return(apperr.ErrStorageFull),
		store.EXPECT().Keys().Return([]string{"p_old", "other"}, nil),
		store.EXPECT().GetItem("p_old").Return(`{"value":"x","stored_at":0,"ttl_ms":1}`, true, nil),
		store.EXPECT().RemoveItem("p_old").Return(nil),
		store.EXPECT().SetItem("p_k", gomock.Any()).Return(apperr.ErrStorageFull),
	)

	c.Set("k", "v") // ошибка зеркала не всплывает

	if v, ok := c.Get("k"); !ok || v != "v" {
		t.Fatalf("in-memory write must succeed even if mirror is full")
	}
}
