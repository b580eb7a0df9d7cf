// Package worker — кэширующий HTTP-посредник между страницами и сетью:
// выбор стратегии по классу запроса, версионированные разделы кэша,
// установка/активация и сообщения открытым страницам.
package worker

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/Gunvolt24/resto_sync/config"
	"github.com/Gunvolt24/resto_sync/internal/domain"
	"github.com/Gunvolt24/resto_sync/internal/ports"
	"github.com/Gunvolt24/resto_sync/pkg/apperr"
	"github.com/Gunvolt24/resto_sync/pkg/metrics"
)

// State — фаза жизненного цикла воркера.
type State string

const (
	StateNew        State = "new"
	StateInstalling State = "installing"
	StateInstalled  State = "installed" // ждёт активации
	StateActivated  State = "activated"
)

// Сообщения от страниц.
const (
	MessageSkipWaiting = "skipWaiting"
	MessageClearCache  = "clearCache"
)

// Источник ответа.
const (
	SourceNetwork     = "network"
	SourceCache       = "cache"
	SourceOffline     = "offline"
	SourcePassthrough = "passthrough"
)

const (
	defaultMaxBodyBytes = 10 << 20
	revalidateTimeout   = 30 * time.Second
)

var hopHeaders = []string{
	"Connection", "Keep-Alive", "Proxy-Authenticate", "Proxy-Authorization",
	"Proxy-Connection", "Te", "Trailer", "Transfer-Encoding", "Upgrade",
}

// Response — ответ воркера вместе с происхождением.
type Response struct {
	Entry
	Source   string
	Strategy Strategy

	// rest — непрочитанный остаток тела сверх лимита; такой ответ не кэшируется.
	rest io.ReadCloser
}

// Worker — единственный владелец разделов кэша и состояния жизненного цикла.
type Worker struct {
	manifest config.Manifest
	origin   *url.URL
	client   *http.Client
	log      ports.Logger
	events   *Broadcaster
	parts    *partitions
	maxBody  int64

	mu    sync.Mutex
	state State

	bg sync.WaitGroup
}

type Option func(*Worker)

func WithHTTPClient(c *http.Client) Option {
	return func(w *Worker) { w.client = c }
}

// WithMaxBodyBytes — сколько байт тела буферизуется; ответы больше отдаются потоком без кэша.
func WithMaxBodyBytes(n int64) Option {
	return func(w *Worker) {
		if n > 0 {
			w.maxBody = n
		}
	}
}

// WithStorage — разделы кэша зеркалируются в долговременное хранилище.
func WithStorage(s ports.DurableStorage) Option {
	return func(w *Worker) { w.parts.storage = s }
}

func New(manifest config.Manifest, origin *url.URL, log ports.Logger, opts ...Option) *Worker {
	w := &Worker{
		manifest: manifest,
		origin:   origin,
		client:   http.DefaultClient,
		log:      log,
		events:   NewBroadcaster(),
		parts:    newPartitions(manifest.MaxEntries, nil, log),
		maxBody:  defaultMaxBodyBytes,
		state:    StateNew,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

func (w *Worker) Origin() *url.URL { return w.origin }

func (w *Worker) Events() *Broadcaster { return w.events }

func (w *Worker) Client() *http.Client { return w.client }

func (w *Worker) State() State {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.state
}

// Имена разделов текущей версии.
func (w *Worker) StaticCache() string     { return "static-" + w.manifest.Version }
func (w *Worker) DynamicCache() string    { return "dynamic-" + w.manifest.Version }
func (w *Worker) ThirdPartyCache() string { return "thirdparty-" + w.manifest.Version }

// Partitions — имена существующих разделов (в памяти и в хранилище).
func (w *Worker) Partitions() []string { return w.parts.names() }

func (w *Worker) Stats() map[string]domain.CacheStats { return w.parts.stats() }

// Install — предзагрузка same-origin файлов манифеста в статический раздел.
// Всё или ничего: при любой ошибке раздел не трогается, состояние откатывается.
func (w *Worker) Install(ctx context.Context) error {
	w.setState(StateInstalling)

	var entries []Entry
	for _, raw := range w.manifest.StaticFiles {
		if strings.HasPrefix(raw, "http://") || strings.HasPrefix(raw, "https://") {
			continue
		}
		u, err := w.origin.Parse(raw)
		if err != nil {
			w.setState(StateNew)
			return apperr.Wrap(err, apperr.CodeInvalidArgument, "install: bad static file %q", raw)
		}
		e, rest, err := w.fetch(ctx, &Request{Method: http.MethodGet, URL: u, Header: http.Header{}}, w.manifest.NetworkTimeout)
		if rest != nil {
			_ = rest.Close()
			err = fmt.Errorf("body exceeds %d bytes", w.maxBody)
		}
		if err == nil && !isOK(e.Status) {
			err = fmt.Errorf("status %d", e.Status)
		}
		if err != nil {
			w.setState(StateNew)
			w.log.Errorf(ctx, "worker install failed on %s: %v", u, err)
			return fmt.Errorf("install %s: %w", u, err)
		}
		entries = append(entries, e)
	}

	static := w.parts.open(w.StaticCache(), w.manifest.StaticMaxAge)
	for _, e := range entries {
		static.Set(e.URL, e)
	}
	w.setState(StateInstalled)
	w.log.Infof(ctx, "worker %s installed, %d files precached", w.manifest.Version, len(entries))

	if w.manifest.SkipWaiting {
		return w.Activate(ctx)
	}
	return nil
}

// Activate — удаляет разделы не текущей версии и начинает обслуживать страницы.
func (w *Worker) Activate(ctx context.Context) error {
	w.mu.Lock()
	switch w.state {
	case StateActivated:
		w.mu.Unlock()
		return nil
	case StateInstalled:
	default:
		st := w.state
		w.mu.Unlock()
		return apperr.Wrap(apperr.ErrInvalidArgument, apperr.CodeInvalidArgument, "activate: worker is %s", st)
	}
	w.mu.Unlock()

	current := map[string]bool{w.StaticCache(): true, w.DynamicCache(): true, w.ThirdPartyCache(): true}
	for _, name := range w.parts.names() {
		if !current[name] {
			w.log.Infof(ctx, "worker: deleting stale cache %s", name)
			w.parts.remove(ctx, name)
		}
	}

	// разделы текущей версии могли остаться в хранилище с прошлого запуска
	w.parts.open(w.StaticCache(), w.manifest.StaticMaxAge)
	w.parts.open(w.DynamicCache(), w.manifest.APIMaxAge)
	w.parts.open(w.ThirdPartyCache(), w.manifest.StaticMaxAge)

	w.setState(StateActivated)
	w.events.Publish(Event{Type: EventActivated, Version: w.manifest.Version})
	w.log.Infof(ctx, "worker %s activated", w.manifest.Version)
	return nil
}

// HandleMessage — сообщения открытых страниц.
func (w *Worker) HandleMessage(ctx context.Context, msg string) error {
	switch msg {
	case MessageSkipWaiting:
		if w.State() == StateInstalled {
			return w.Activate(ctx)
		}
		return nil
	case MessageClearCache:
		for _, name := range w.parts.names() {
			w.parts.remove(ctx, name)
		}
		w.events.Publish(Event{Type: EventCacheCleared})
		w.log.Infof(ctx, "worker: all caches cleared")
		return nil
	default:
		return apperr.Wrap(apperr.ErrInvalidArgument, apperr.CodeInvalidArgument, "unknown worker message %q", msg)
	}
}

// Fetch — обслуживает запрос выбранной стратегией. До активации воркер
// страницы не контролирует, и запросы идут в сеть без кэша.
func (w *Worker) Fetch(ctx context.Context, r *Request) (*Response, error) {
	strategy := w.Classify(r)
	if w.State() != StateActivated {
		strategy = StrategyPassthrough
	}

	var (
		resp *Response
		err  error
	)
	switch strategy {
	case StrategyNetworkFirst:
		resp = w.networkFirst(ctx, r)
	case StrategyCacheFirst:
		resp = w.cacheFirst(ctx, r)
	case StrategyStaleWhileRevalidate:
		resp = w.staleWhileRevalidate(ctx, r)
	default:
		var (
			e    Entry
			rest io.ReadCloser
		)
		e, rest, err = w.fetch(ctx, r, 0)
		if err != nil {
			return nil, err
		}
		resp = &Response{Entry: e, Source: SourcePassthrough, rest: rest}
	}
	resp.Strategy = strategy
	metrics.WorkerResponses.WithLabelValues(string(strategy), resp.Source).Inc()
	return resp, nil
}

// Wait — дождаться фоновых обновлений stale-while-revalidate.
func (w *Worker) Wait() { w.bg.Wait() }

func (w *Worker) networkFirst(ctx context.Context, r *Request) *Response {
	key := r.URL.String()
	e, rest, err := w.fetch(ctx, r, w.manifest.NetworkTimeout)
	if err == nil {
		if rest == nil && isOK(e.Status) {
			w.parts.open(w.DynamicCache(), w.manifest.APIMaxAge).SetWithTTL(key, e, w.maxAge(r))
		}
		return &Response{Entry: e, Source: SourceNetwork, rest: rest}
	}

	if cached, hit := w.parts.match(key); hit {
		w.log.Infof(ctx, "worker: serving %s from cache: %v", key, err)
		return &Response{Entry: cached, Source: SourceCache}
	}
	return &Response{Entry: offlineJSON(key), Source: SourceOffline}
}

func (w *Worker) cacheFirst(ctx context.Context, r *Request) *Response {
	key := r.URL.String()
	if cached, hit := w.parts.match(key); hit {
		return &Response{Entry: cached, Source: SourceCache}
	}

	e, rest, err := w.fetch(ctx, r, w.manifest.NetworkTimeout)
	if err != nil {
		w.log.Warnf(ctx, "worker: cache-first fallback for %s: %v", key, err)
		return &Response{Entry: offlineText(key), Source: SourceOffline}
	}
	if rest == nil && isOK(e.Status) {
		w.parts.open(w.StaticCache(), w.manifest.StaticMaxAge).Set(key, e)
	}
	return &Response{Entry: e, Source: SourceNetwork, rest: rest}
}

func (w *Worker) staleWhileRevalidate(ctx context.Context, r *Request) *Response {
	key := r.URL.String()
	part := w.parts.open(w.ThirdPartyCache(), w.manifest.StaticMaxAge)

	cached, hit := part.Get(key)
	if !hit {
		e, rest, err := w.fetch(ctx, r, 0)
		if err != nil {
			return &Response{Entry: offlineText(key), Source: SourceOffline}
		}
		if rest == nil && isOK(e.Status) {
			part.Set(key, e)
		}
		return &Response{Entry: e, Source: SourceNetwork, rest: rest}
	}

	// обновление в фоне не зависит от жизни входящего запроса
	bgReq := *r
	w.bg.Add(1)
	go func() {
		defer w.bg.Done()
		bgCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), revalidateTimeout)
		defer cancel()

		e, rest, err := w.fetch(bgCtx, &bgReq, 0)
		if err != nil {
			w.log.Warnf(bgCtx, "worker: revalidate %s: %v", key, err)
			return
		}
		if rest != nil {
			_ = rest.Close()
			w.log.Warnf(bgCtx, "worker: revalidate %s: body exceeds %d bytes, not cached", key, w.maxBody)
			return
		}
		if isOK(e.Status) {
			part.Set(key, e)
			w.events.Publish(Event{Type: EventCacheUpdated, URL: key})
		}
	}()
	return &Response{Entry: cached, Source: SourceCache}
}

// fetch — поход в сеть. Тело буферизуется до maxBody байт; если оно длиннее,
// возвращается rest с непрочитанным остатком, и кэшировать такой ответ нельзя.
// rest закрывает вызывающий. timeout=0 — без своего лимита.
func (w *Worker) fetch(ctx context.Context, r *Request, timeout time.Duration) (Entry, io.ReadCloser, error) {
	cancel := context.CancelFunc(func() {})
	if timeout > 0 {
		ctx, cancel = context.WithTimeout(ctx, timeout)
	}

	req, err := http.NewRequestWithContext(ctx, r.Method, r.URL.String(), nil)
	if err != nil {
		cancel()
		return Entry{}, nil, err
	}
	for k, vv := range r.Header {
		req.Header[k] = append([]string(nil), vv...)
	}
	for _, h := range hopHeaders {
		req.Header.Del(h)
	}

	resp, err := w.client.Do(req)
	if err != nil {
		cancel()
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Entry{}, nil, apperr.Wrap(err, apperr.CodeTimeout, "fetch %s", r.URL)
		}
		return Entry{}, nil, apperr.Wrap(err, apperr.CodeNetwork, "fetch %s", r.URL)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, w.maxBody+1))
	if err != nil {
		_ = resp.Body.Close()
		cancel()
		return Entry{}, nil, apperr.Wrap(err, apperr.CodeNetwork, "read %s", r.URL)
	}

	header := resp.Header.Clone()
	for _, h := range hopHeaders {
		header.Del(h)
	}
	header.Del("Content-Length")
	e := Entry{URL: r.URL.String(), Status: resp.StatusCode, Header: header, Body: body}

	if int64(len(body)) > w.maxBody {
		return e, &bodyRest{ReadCloser: resp.Body, cancel: cancel}, nil
	}
	_ = resp.Body.Close()
	cancel()
	return e, nil, nil
}

// bodyRest — остаток тела; таймаут запроса живёт, пока остаток не закрыт.
type bodyRest struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *bodyRest) Close() error {
	defer b.cancel()
	return b.ReadCloser.Close()
}

func (w *Worker) maxAge(r *Request) time.Duration {
	if strings.HasPrefix(r.URL.Path, "/api/") {
		return w.manifest.APIMaxAge
	}
	return w.manifest.StaticMaxAge
}

func (w *Worker) setState(s State) {
	w.mu.Lock()
	w.state = s
	w.mu.Unlock()
}

func isOK(status int) bool { return status >= 200 && status < 300 }

func offlineJSON(u string) Entry {
	return Entry{
		URL:    u,
		Status: http.StatusServiceUnavailable,
		Header: http.Header{"Content-Type": []string{"application/json"}},
		Body:   []byte(`{"error":"offline","offline":true}`),
	}
}

func offlineText(u string) Entry {
	return Entry{
		URL:    u,
		Status: http.StatusServiceUnavailable,
		Header: http.Header{"Content-Type": []string{"text/plain; charset=utf-8"}},
		Body:   []byte("offline"),
	}
}

// Serve — отдаёт ответ в http.ResponseWriter.
func (r *Response) Serve(rw http.ResponseWriter) {
	for k, vv := range r.Header {
		rw.Header()[k] = append([]string(nil), vv...)
	}
	rw.Header().Set("X-Worker-Source", r.Source)
	rw.Header().Set("X-Worker-Strategy", string(r.Strategy))
	rw.WriteHeader(r.Status)
	_, _ = io.Copy(rw, bytes.NewReader(r.Body))
	if r.rest != nil {
		_, _ = io.Copy(rw, r.rest)
		_ = r.Close()
	}
}

// Close — освобождает непрочитанный остаток тела, если ответ не был отдан через Serve.
func (r *Response) Close() error {
	if r.rest == nil {
		return nil
	}
	rest := r.rest
	r.rest = nil
	return rest.Close()
}

// Streamed — тело не уместилось в буфер и отдаётся потоком без кэширования.
func (r *Response) Streamed() bool { return r.rest != nil }
