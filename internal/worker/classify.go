package worker

import (
	"net/http"
	"net/url"
	"path"
	"strings"
)

// Strategy — способ обслуживания запроса.
type Strategy string

const (
	StrategyPassthrough          Strategy = "passthrough"
	StrategyNetworkFirst         Strategy = "network_first"
	StrategyCacheFirst           Strategy = "cache_first"
	StrategyStaleWhileRevalidate Strategy = "stale_while_revalidate"
)

// Назначение запроса (Sec-Fetch-Dest).
const (
	DestDocument = "document"
	DestStyle    = "style"
	DestScript   = "script"
	DestImage    = "image"
)

// Request — перехваченный запрос; URL всегда абсолютный.
type Request struct {
	Method string
	URL    *url.URL
	Dest   string
	Header http.Header
}

// NewRequest — Request из входящего HTTP-запроса. Запрос в proxy-форме
// (абсолютный URL) идёт на свой хост, прочие — на origin.
func NewRequest(r *http.Request, origin *url.URL) *Request {
	target := *origin
	if r.URL.IsAbs() {
		target = *r.URL
	} else {
		target.Path = r.URL.Path
		target.RawPath = r.URL.RawPath
		target.RawQuery = r.URL.RawQuery
	}
	return &Request{
		Method: r.Method,
		URL:    &target,
		Dest:   destination(r),
		Header: r.Header.Clone(),
	}
}

// destination — Sec-Fetch-Dest, либо догадка по расширению и Accept.
func destination(r *http.Request) string {
	if d := strings.ToLower(r.Header.Get("Sec-Fetch-Dest")); d != "" {
		return d
	}
	switch strings.ToLower(path.Ext(r.URL.Path)) {
	case ".css":
		return DestStyle
	case ".js", ".mjs":
		return DestScript
	case ".png", ".jpg", ".jpeg", ".gif", ".svg", ".webp", ".ico", ".avif":
		return DestImage
	case ".html", ".htm":
		return DestDocument
	}
	if r.Header.Get("Sec-Fetch-Mode") == "navigate" || strings.Contains(r.Header.Get("Accept"), "text/html") {
		return DestDocument
	}
	return ""
}

// Classify — стратегия для запроса; первое совпадение побеждает.
// Не-GET запросы не кэшируются и идут напрямую.
func (w *Worker) Classify(r *Request) Strategy {
	if r.Method != http.MethodGet {
		return StrategyPassthrough
	}
	host := strings.ToLower(r.URL.Hostname())
	switch {
	case w.isStreaming(host, r.URL.Path):
		return StrategyPassthrough
	case strings.HasPrefix(r.URL.Path, "/api/"), strings.HasPrefix(r.URL.Path, "/templates/"):
		return StrategyNetworkFirst
	case matchHost(host, w.manifest.CacheableHosts):
		return StrategyStaleWhileRevalidate
	case r.Dest == DestDocument:
		return StrategyNetworkFirst
	case r.Dest == DestStyle, r.Dest == DestScript, r.Dest == DestImage:
		return StrategyCacheFirst
	default:
		return StrategyNetworkFirst
	}
}

func (w *Worker) isStreaming(host, p string) bool {
	if matchHost(host, w.manifest.StreamingHosts) {
		return true
	}
	for _, prefix := range w.manifest.StreamingPaths {
		if strings.HasPrefix(p, prefix) {
			return true
		}
	}
	return false
}

// matchHost — host совпадает с одним из hosts или является его поддоменом.
func matchHost(host string, hosts []string) bool {
	for _, h := range hosts {
		if host == h || strings.HasSuffix(host, "."+h) {
			return true
		}
	}
	return false
}
