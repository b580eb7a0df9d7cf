// Package connectivity — наблюдение за доступностью удалённого хранилища:
// сигналы платформы, периодические health-пробы и подписки на переходы.
package connectivity

import (
	"context"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/Gunvolt24/resto_sync/internal/domain"
	"github.com/Gunvolt24/resto_sync/internal/ports"
	"github.com/Gunvolt24/resto_sync/pkg/metrics"
)

var _ ports.ConnectionMonitor = (*Monitor)(nil)

const (
	DefaultInterval             = 30 * time.Second
	DefaultProbeTimeout         = 5 * time.Second
	DefaultMaxReconnectAttempts = 10
)

// Prober — один health-check; возвращает задержку ответа.
type Prober func(ctx context.Context) (time.Duration, error)

type Options struct {
	Interval             time.Duration
	ProbeTimeout         time.Duration
	MaxReconnectAttempts int
}

type subscriber struct {
	id int
	fn func(domain.ConnectionState)
}

// Monitor — единственный владелец ConnectionState.
// Подписчики вызываются синхронно, в порядке регистрации; колбэк не должен
// синхронно вызывать SetOnline (переход уже доставляется).
type Monitor struct {
	opts  Options
	probe Prober
	log   ports.Logger

	mu     sync.Mutex
	state  domain.ConnectionState
	subs   []subscriber
	nextID int

	deliverMu sync.Mutex // сериализует переход и его доставку
}

func NewMonitor(initialOnline bool, probe Prober, opts Options, log ports.Logger) *Monitor {
	if opts.Interval <= 0 {
		opts.Interval = DefaultInterval
	}
	if opts.ProbeTimeout <= 0 {
		opts.ProbeTimeout = DefaultProbeTimeout
	}
	if opts.MaxReconnectAttempts <= 0 {
		opts.MaxReconnectAttempts = DefaultMaxReconnectAttempts
	}
	m := &Monitor{
		opts:  opts,
		probe: probe,
		log:   log,
		state: domain.ConnectionState{Online: initialOnline},
	}
	m.updateMetrics(m.state)
	return m
}

// HTTPProber — HEAD-запрос на url; любой HTTP-ответ считается признаком связи.
func HTTPProber(client *http.Client, url string) Prober {
	if client == nil {
		client = http.DefaultClient
	}
	return func(ctx context.Context) (time.Duration, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodHead, url, http.NoBody)
		if err != nil {
			return 0, fmt.Errorf("build probe request: %w", err)
		}
		req.Header.Set("Cache-Control", "no-cache")
		start := time.Now()
		resp, err := client.Do(req)
		if err != nil {
			return 0, err
		}
		_ = resp.Body.Close()
		return time.Since(start), nil
	}
}

// AllProbers — связь есть, только если прошли все пробы (например, HTTP и ping
// хранилища); задержка — наибольшая из измеренных. nil-пробы пропускаются.
func AllProbers(probes ...Prober) Prober {
	var active []Prober
	for _, p := range probes {
		if p != nil {
			active = append(active, p)
		}
	}
	switch len(active) {
	case 0:
		return nil
	case 1:
		return active[0]
	}
	return func(ctx context.Context) (time.Duration, error) {
		var worst time.Duration
		for _, p := range active {
			latency, err := p(ctx)
			if err != nil {
				return 0, err
			}
			worst = max(worst, latency)
		}
		return worst, nil
	}
}

func (m *Monitor) State() domain.ConnectionState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// SetOnline — сигнал платформы online/offline. Переход в online сбрасывает
// счётчик переподключений.
func (m *Monitor) SetOnline(online bool) {
	m.transition(func(s *domain.ConnectionState) bool {
		if s.Online == online {
			return false
		}
		s.Online = online
		if online {
			s.ReconnectAttempts = 0
		} else {
			s.Quality = domain.QualityUnknown
		}
		return true
	})
}

// Subscribe — fn сразу получает текущее состояние, затем каждый переход online/offline.
func (m *Monitor) Subscribe(fn func(domain.ConnectionState)) func() {
	m.deliverMu.Lock()
	m.mu.Lock()
	m.nextID++
	id := m.nextID
	m.subs = append(m.subs, subscriber{id: id, fn: fn})
	current := m.state
	m.mu.Unlock()
	fn(current)
	m.deliverMu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			m.mu.Lock()
			defer m.mu.Unlock()
			for i, s := range m.subs {
				if s.id == id {
					m.subs = append(m.subs[:i:i], m.subs[i+1:]...)
					return
				}
			}
		})
	}
}

// Check — один такт health-check. Online: измерить задержку и обновить качество,
// ошибка пробы в offline не переводит. Offline: попытка переподключения
// (не больше MaxReconnectAttempts), успех переводит в online.
func (m *Monitor) Check(ctx context.Context) {
	if m.probe == nil {
		return
	}
	st := m.State()

	if !st.Online {
		if st.ReconnectAttempts >= m.opts.MaxReconnectAttempts {
			return
		}
		m.mu.Lock()
		m.state.ReconnectAttempts++
		attempt := m.state.ReconnectAttempts
		m.updateMetrics(m.state)
		m.mu.Unlock()

		latency, err := m.runProbe(ctx)
		if err != nil {
			m.log.Infof(ctx, "connectivity: reconnect attempt %d/%d failed: %v", attempt, m.opts.MaxReconnectAttempts, err)
			return
		}
		m.transition(func(s *domain.ConnectionState) bool {
			if s.Online {
				return false
			}
			s.Online = true
			s.ReconnectAttempts = 0
			s.Quality = domain.ClassifyLatency(latency)
			s.LastLatency = latency
			return true
		})
		return
	}

	latency, err := m.runProbe(ctx)
	if err != nil {
		m.log.Warnf(ctx, "connectivity: health probe failed: %v", err)
		return
	}
	m.mu.Lock()
	if m.state.Online {
		m.state.Quality = domain.ClassifyLatency(latency)
		m.state.LastLatency = latency
	}
	m.mu.Unlock()
}

// Run — периодические проверки до отмены ctx.
func (m *Monitor) Run(ctx context.Context) error {
	ticker := time.NewTicker(m.opts.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			m.Check(ctx)
		}
	}
}

// Watch — применяет поток сигналов доступности (например, DocumentStore.Connectivity).
func (m *Monitor) Watch(ctx context.Context, signals <-chan bool) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case online, ok := <-signals:
			if !ok {
				return nil
			}
			m.SetOnline(online)
		}
	}
}

func (m *Monitor) runProbe(ctx context.Context) (time.Duration, error) {
	ctx, cancel := context.WithTimeout(ctx, m.opts.ProbeTimeout)
	defer cancel()

	latency, err := m.probe(ctx)
	if err == nil {
		metrics.ConnectionProbeLatency.Observe(latency.Seconds())
	}
	return latency, err
}

// transition — применяет mutate и, если состояние изменилось, доставляет его подписчикам.
func (m *Monitor) transition(mutate func(*domain.ConnectionState) bool) {
	m.deliverMu.Lock()
	defer m.deliverMu.Unlock()

	m.mu.Lock()
	if !mutate(&m.state) {
		m.mu.Unlock()
		return
	}
	next := m.state
	subs := append([]subscriber(nil), m.subs...)
	m.updateMetrics(next)
	m.mu.Unlock()

	m.log.Infof(context.Background(), "connectivity: %s", next.Status())
	for _, s := range subs {
		s.fn(next)
	}
}

func (m *Monitor) updateMetrics(s domain.ConnectionState) {
	online := 0.0
	if s.Online {
		online = 1
	}
	metrics.ConnectionOnline.Set(online)
	metrics.ConnectionReconnectAttempts.Set(float64(s.ReconnectAttempts))
}
