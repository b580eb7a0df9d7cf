package domain

// Stats — сводка для /api/stats и терминальной панели.
type Stats struct {
	Connection  ConnectionState       `json:"connection"`
	Caches      map[string]CacheStats `json:"caches"`
	PendingOps  int                   `json:"pending_ops"`
	QueueDepth  int                   `json:"queue_depth"`
	WorkerState string                `json:"worker_state,omitempty"`
}
