package domain

import "time"

// Quality — оценка качества соединения по задержке проверочного запроса.
type Quality string

const (
	QualityUnknown   Quality = ""
	QualityExcellent Quality = "excellent"
	QualityGood      Quality = "good"
	QualitySlow      Quality = "slow"
)

// ClassifyLatency — <200ms excellent, <500ms good, иначе slow.
func ClassifyLatency(d time.Duration) Quality {
	switch {
	case d < 200*time.Millisecond:
		return QualityExcellent
	case d < 500*time.Millisecond:
		return QualityGood
	default:
		return QualitySlow
	}
}

// ConnectionState — снимок состояния соединения.
type ConnectionState struct {
	Online            bool          `json:"online"`
	Quality           Quality       `json:"quality,omitempty"`
	ReconnectAttempts int           `json:"reconnect_attempts"`
	LastLatency       time.Duration `json:"last_latency_ns,omitempty"`
}

// Status — "online"/"offline".
func (s ConnectionState) Status() string {
	if s.Online {
		return "online"
	}
	return "offline"
}

// CacheStats — накопительная статистика экземпляра кэша.
type CacheStats struct {
	Size    int     `json:"size"`
	Hits    uint64  `json:"hits"`
	Misses  uint64  `json:"misses"`
	HitRate float64 `json:"hit_rate"`
}
