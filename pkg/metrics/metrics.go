package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	KafkaMessagesConsumed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_consumed_total",
			Help: "Number of change feed messages fetched from Kafka",
		},
		[]string{"topic"},
	)
	KafkaMessagesProcessed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_processed_total",
			Help: "Number of change feed messages processed successfully",
		},
		[]string{"topic"},
	)
	KafkaMessagesFailed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_failed_total",
			Help: "Number of change feed messages failed to process",
		},
		[]string{"topic"},
	)
	KafkaMessagesPublished = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "kafka_messages_published_total",
			Help: "Number of document changes published to Kafka",
		},
		[]string{"topic", "result"}, // ok|error
	)
)

var (
	CacheOps = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cache_operations_total",
			Help: "Cache operations",
		},
		[]string{"cache", "op"}, // hit|miss|evicted|expired|invalidated|mirror_dropped
	)
	CacheSize = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cache_size",
			Help: "Number of items currently in cache",
		},
		[]string{"cache"},
	)
)

var (
	RetryAttempts = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "retry_attempts_total",
			Help: "Attempts made by the retry executor",
		},
		[]string{"outcome"}, // success|retry|permanent|exhausted
	)
	ConnectionOnline = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "connection_online",
			Help: "1 when the remote store is reachable",
		},
	)
	ConnectionReconnectAttempts = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "connection_reconnect_attempts",
			Help: "Reconnect probes since the last offline transition",
		},
	)
	ConnectionProbeLatency = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "connection_probe_latency_seconds",
			Help:    "Latency of connectivity health probes",
			Buckets: []float64{0.05, 0.1, 0.2, 0.5, 1, 2, 5},
		},
	)
)

var (
	QueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "operation_queue_depth",
			Help: "Tasks waiting in the operation queue",
		},
	)
	QueueTasks = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "operation_queue_tasks_total",
			Help: "Tasks executed by the operation queue",
		},
		[]string{"result"}, // ok|error
	)
	RateLimitWaits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "rate_limit_waits_total",
			Help: "Times a caller had to wait for a rate limit slot",
		},
	)
	SyncPending = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "sync_pending_operations",
			Help: "Operations waiting for background sync",
		},
	)
	SyncReplayed = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "sync_replayed_total",
			Help: "Replayed pending operations",
		},
		[]string{"type", "result"}, // ok|error
	)
	WorkerResponses = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "worker_responses_total",
			Help: "Responses served by the caching worker",
		},
		[]string{"strategy", "source"}, // source: network|cache|offline|passthrough
	)
)

var registerOnce sync.Once

func collectors() []prometheus.Collector {
	return []prometheus.Collector{
		KafkaMessagesConsumed, KafkaMessagesProcessed, KafkaMessagesFailed, KafkaMessagesPublished,
		CacheOps, CacheSize,
		RetryAttempts, ConnectionOnline, ConnectionReconnectAttempts, ConnectionProbeLatency,
		QueueDepth, QueueTasks, RateLimitWaits,
		SyncPending, SyncReplayed, WorkerResponses,
	}
}

// Register — все коллекторы в указанный registry; первая ошибка прерывает регистрацию.
func Register(reg prometheus.Registerer) error {
	for _, c := range collectors() {
		if err := reg.Register(c); err != nil {
			return err
		}
	}
	return nil
}

// MustRegister — Register в default registry, один раз за процесс.
func MustRegister() {
	registerOnce.Do(func() {
		if err := Register(prometheus.DefaultRegisterer); err != nil {
			panic(err)
		}
	})
}
