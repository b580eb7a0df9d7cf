package queue

import (
	"context"
	"sync"
	"time"

	"github.com/Gunvolt24/resto_sync/pkg/metrics"
)

const (
	DefaultMaxRequests  = 100
	DefaultWindow       = time.Minute
	DefaultPollInterval = 100 * time.Millisecond
)

// RateLimiter — скользящее окно: не больше maxRequests отметок за последние window.
type RateLimiter struct {
	maxRequests int
	window      time.Duration
	poll        time.Duration
	now         func() time.Time

	stamps []time.Time
	mu     sync.Mutex
}

type LimiterOption func(*RateLimiter)

func WithPollInterval(d time.Duration) LimiterOption {
	return func(l *RateLimiter) {
		if d > 0 {
			l.poll = d
		}
	}
}

func WithLimiterClock(now func() time.Time) LimiterOption {
	return func(l *RateLimiter) { l.now = now }
}

func NewRateLimiter(maxRequests int, window time.Duration, opts ...LimiterOption) *RateLimiter {
	if maxRequests <= 0 {
		maxRequests = DefaultMaxRequests
	}
	if window <= 0 {
		window = DefaultWindow
	}
	l := &RateLimiter{
		maxRequests: maxRequests,
		window:      window,
		poll:        DefaultPollInterval,
		now:         time.Now,
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// CanMakeRequest — выкидывает устаревшие отметки и сообщает, есть ли место.
func (l *RateLimiter) CanMakeRequest() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pruneLocked(l.now())
	return len(l.stamps) < l.maxRequests
}

func (l *RateLimiter) RecordRequest() {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.stamps = append(l.stamps, l.now())
}

// WaitForSlot — опрашивает окно каждые poll, пока не появится место,
// и сразу занимает его. Очерёдности между ожидающими нет.
func (l *RateLimiter) WaitForSlot(ctx context.Context) error {
	if l.tryAcquire() {
		return nil
	}
	metrics.RateLimitWaits.Inc()

	ticker := time.NewTicker(l.poll)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if l.tryAcquire() {
				return nil
			}
		}
	}
}

// InWindow — число отметок в текущем окне.
func (l *RateLimiter) InWindow() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.pruneLocked(l.now())
	return len(l.stamps)
}

func (l *RateLimiter) tryAcquire() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	now := l.now()
	l.pruneLocked(now)
	if len(l.stamps) >= l.maxRequests {
		return false
	}
	l.stamps = append(l.stamps, now)
	return true
}

func (l *RateLimiter) pruneLocked(now time.Time) {
	cut := 0
	for cut < len(l.stamps) && now.Sub(l.stamps[cut]) >= l.window {
		cut++
	}
	if cut > 0 {
		l.stamps = append(l.stamps[:0], l.stamps[cut:]...)
	}
}
