package app

import (
	"testing"
	"time"

	cachemem "github.com/Gunvolt24/resto_sync/internal/cache/memory"
	"github.com/Gunvolt24/resto_sync/internal/connectivity"
	"github.com/stretchr/testify/require"
)

type fixedLen int

func (n fixedLen) Len() int { return int(n) }

func TestStatsSource_WithoutWorker(t *testing.T) {
	monitor := connectivity.NewMonitor(false, nil, connectivity.Options{}, nopLog{})
	c := cachemem.NewTTLCache[int]("menu", 10, time.Minute)
	c.Set("a", 1)
	_, _ = c.Get("a")
	_, _ = c.Get("b")

	s := &statsSource{monitor: monitor, caches: []namedCache{c}, syncer: fixedLen(3), queue: fixedLen(1)}
	st := s.Stats()

	require.False(t, st.Connection.Online)
	require.Equal(t, 3, st.PendingOps)
	require.Equal(t, 1, st.QueueDepth)
	require.Empty(t, st.WorkerState)
	require.Equal(t, 1, st.Caches["menu"].Size)
	require.InDelta(t, 0.5, st.Caches["menu"].HitRate, 1e-9)
}
