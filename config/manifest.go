package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	toml "github.com/pelletier/go-toml/v2"
)

//go:embed worker.toml
var defaultManifest []byte

// Manifest — описание того, что и как кэширует воркер.
type Manifest struct {
	Version        string
	NetworkTimeout time.Duration
	StaticMaxAge   time.Duration
	APIMaxAge      time.Duration
	MaxEntries     int
	SkipWaiting    bool // активироваться сразу после установки
	StaticFiles    []string
	CacheableHosts []string
	StreamingHosts []string
	StreamingPaths []string
}

type rawManifest struct {
	Version        string   `toml:"version"`
	NetworkTimeout string   `toml:"network_timeout"`
	StaticMaxAge   string   `toml:"static_max_age"`
	APIMaxAge      string   `toml:"api_max_age"`
	MaxEntries     int      `toml:"max_entries"`
	SkipWaiting    *bool    `toml:"skip_waiting"`
	StaticFiles    []string `toml:"static_files"`
	CacheableHosts []string `toml:"cacheable_hosts"`
	StreamingHosts []string `toml:"streaming_hosts"`
	StreamingPaths []string `toml:"streaming_paths"`
}

const (
	defaultNetworkTimeout = 3 * time.Second
	defaultStaticMaxAge   = 24 * time.Hour
	defaultAPIMaxAge      = 5 * time.Minute
	defaultMaxEntries     = 100
)

// LoadManifest — читает манифест из path; пустой path — встроенный worker.toml.
func LoadManifest(path string) (Manifest, error) {
	data := defaultManifest
	if strings.TrimSpace(path) != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Manifest{}, fmt.Errorf("read manifest: %w", err)
		}
		data = b
	}
	return ParseManifest(data)
}

// ParseManifest — разбор TOML с подстановкой значений по умолчанию.
func ParseManifest(data []byte) (Manifest, error) {
	var raw rawManifest
	if err := toml.Unmarshal(data, &raw); err != nil {
		return Manifest{}, fmt.Errorf("parse manifest: %w", err)
	}

	m := Manifest{
		Version:        strings.TrimSpace(raw.Version),
		MaxEntries:     raw.MaxEntries,
		SkipWaiting:    raw.SkipWaiting == nil || *raw.SkipWaiting,
		StaticFiles:    raw.StaticFiles,
		CacheableHosts: lowerAll(raw.CacheableHosts),
		StreamingHosts: lowerAll(raw.StreamingHosts),
		StreamingPaths: raw.StreamingPaths,
	}
	if m.Version == "" {
		return Manifest{}, errors.New("parse manifest: version is required")
	}
	if m.MaxEntries <= 0 {
		m.MaxEntries = defaultMaxEntries
	}

	var err error
	if m.NetworkTimeout, err = durationOr(raw.NetworkTimeout, defaultNetworkTimeout); err != nil {
		return Manifest{}, fmt.Errorf("parse manifest: network_timeout: %w", err)
	}
	if m.StaticMaxAge, err = durationOr(raw.StaticMaxAge, defaultStaticMaxAge); err != nil {
		return Manifest{}, fmt.Errorf("parse manifest: static_max_age: %w", err)
	}
	if m.APIMaxAge, err = durationOr(raw.APIMaxAge, defaultAPIMaxAge); err != nil {
		return Manifest{}, fmt.Errorf("parse manifest: api_max_age: %w", err)
	}
	return m, nil
}

func durationOr(s string, def time.Duration) (time.Duration, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return def, nil
	}
	return time.ParseDuration(s)
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
			out = append(out, s)
		}
	}
	return out
}
