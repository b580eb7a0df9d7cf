package app

import (
	"github.com/Gunvolt24/resto_sync/internal/domain"
	"github.com/Gunvolt24/resto_sync/internal/ports"
	"github.com/Gunvolt24/resto_sync/internal/worker"
)

type namedCache interface {
	Name() string
	Stats() domain.CacheStats
}

// statsSource — сводка для /api/stats: кэши приложения, разделы воркера, очередь и связь.
type statsSource struct {
	monitor ports.ConnectionMonitor
	caches  []namedCache
	syncer  interface{ Len() int }
	queue   interface{ Len() int }
	worker  *worker.Worker // nil — воркер выключен
}

func (s *statsSource) Stats() domain.Stats {
	st := domain.Stats{
		Connection: s.monitor.State(),
		Caches:     make(map[string]domain.CacheStats, len(s.caches)),
		PendingOps: s.syncer.Len(),
		QueueDepth: s.queue.Len(),
	}
	for _, c := range s.caches {
		st.Caches[c.Name()] = c.Stats()
	}
	if s.worker != nil {
		for name, cs := range s.worker.Stats() {
			st.Caches[name] = cs
		}
		st.WorkerState = string(s.worker.State())
	}
	return st
}
