package worker_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Gunvolt24/resto_sync/config"
	"github.com/Gunvolt24/resto_sync/internal/storage/local"
	"github.com/Gunvolt24/resto_sync/internal/worker"
	"github.com/stretchr/testify/require"
)

type nopLogger struct{}

func (nopLogger) Infof(context.Context, string, ...any)  {}
func (nopLogger) Warnf(context.Context, string, ...any)  {}
func (nopLogger) Errorf(context.Context, string, ...any) {}

// origin — тестовый сервер; отвечает "<версия>:<путь>" и считает обращения.
type origin struct {
	srv     *httptest.Server
	mu      sync.Mutex
	hits    map[string]int
	version atomic.Int32
	status  atomic.Int32
}

func newOrigin(t *testing.T) *origin {
	o := &origin{hits: map[string]int{}}
	o.version.Store(1)
	o.status.Store(http.StatusOK)
	o.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		o.mu.Lock()
		o.hits[r.Host+r.URL.Path]++
		o.mu.Unlock()
		w.Header().Set("Content-Type", "text/plain")
		w.WriteHeader(int(o.status.Load()))
		fmt.Fprintf(w, "v%d:%s", o.version.Load(), r.URL.Path)
	}))
	t.Cleanup(o.srv.Close)
	return o
}

func (o *origin) hitsFor(hostPath string) int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.hits[hostPath]
}

// switchTransport — все хосты ведёт на тестовый сервер; умеет «ронять сеть».
type switchTransport struct {
	target *url.URL
	down   atomic.Bool
}

func (s *switchTransport) RoundTrip(r *http.Request) (*http.Response, error) {
	if s.down.Load() {
		return nil, errors.New("network is down")
	}
	out := r.Clone(r.Context())
	out.Host = r.URL.Host
	out.URL.Scheme = s.target.Scheme
	out.URL.Host = s.target.Host
	return http.DefaultTransport.RoundTrip(out)
}

func manifest(skipWaiting bool) config.Manifest {
	return config.Manifest{
		Version:        "v2",
		NetworkTimeout: time.Second,
		StaticMaxAge:   time.Hour,
		APIMaxAge:      time.Minute,
		MaxEntries:     100,
		SkipWaiting:    skipWaiting,
		StaticFiles:    []string{"/", "/js/app.js", "https://cdn.example.com/all.css"},
		CacheableHosts: []string{"cdn.example.com"},
		StreamingHosts: []string{"firebaseio.com"},
		StreamingPaths: []string{"/realtime/"},
	}
}

type fixture struct {
	origin *origin
	net    *switchTransport
	w      *worker.Worker
	base   *url.URL
}

func newFixture(t *testing.T, m config.Manifest, opts ...worker.Option) *fixture {
	t.Helper()
	o := newOrigin(t)
	target, _ := url.Parse(o.srv.URL)
	tr := &switchTransport{target: target}
	base, _ := url.Parse("http://resto.local")

	opts = append([]worker.Option{worker.WithHTTPClient(&http.Client{Transport: tr})}, opts...)
	return &fixture{origin: o, net: tr, w: worker.New(m, base, nopLogger{}, opts...), base: base}
}

func (f *fixture) get(t *testing.T, rawURL, dest string) *worker.Response {
	t.Helper()
	u, err := f.base.Parse(rawURL)
	require.NoError(t, err)
	resp, err := f.w.Fetch(context.Background(), &worker.Request{Method: http.MethodGet, URL: u, Dest: dest, Header: http.Header{}})
	require.NoError(t, err)
	return resp
}

func TestClassify(t *testing.T) {
	f := newFixture(t, manifest(true))
	cases := []struct {
		method, url, dest string
		want              worker.Strategy
	}{
		{"GET", "https://resto-default-rtdb.firebaseio.com/orders.json", "", worker.StrategyPassthrough},
		{"GET", "/realtime/orders", "", worker.StrategyPassthrough},
		{"POST", "/api/orders", "", worker.StrategyPassthrough},
		{"GET", "/api/orders", "", worker.StrategyNetworkFirst},
		{"GET", "/templates/bon/receipt.html", worker.DestDocument, worker.StrategyNetworkFirst},
		{"GET", "https://fonts.cdn.example.com/font.woff2", "font", worker.StrategyStaleWhileRevalidate},
		{"GET", "/menu.html", worker.DestDocument, worker.StrategyNetworkFirst},
		{"GET", "/css/style.css", worker.DestStyle, worker.StrategyCacheFirst},
		{"GET", "/img/logo.png", worker.DestImage, worker.StrategyCacheFirst},
		{"GET", "/manifest.json", "", worker.StrategyNetworkFirst},
	}
	for _, tc := range cases {
		u, _ := f.base.Parse(tc.url)
		got := f.w.Classify(&worker.Request{Method: tc.method, URL: u, Dest: tc.dest})
		require.Equal(t, tc.want, got, "%s %s", tc.method, tc.url)
	}
}

func TestNewRequest_InfersDestination(t *testing.T) {
	base, _ := url.Parse("http://resto.local")

	r := httptest.NewRequest(http.MethodGet, "/js/app.js?v=3", nil)
	req := worker.NewRequest(r, base)
	require.Equal(t, "http://resto.local/js/app.js?v=3", req.URL.String())
	require.Equal(t, worker.DestScript, req.Dest)

	r = httptest.NewRequest(http.MethodGet, "/orders", nil)
	r.Header.Set("Accept", "text/html,application/xhtml+xml")
	require.Equal(t, worker.DestDocument, worker.NewRequest(r, base).Dest)

	r = httptest.NewRequest(http.MethodGet, "https://fonts.gstatic.com/s/inter.woff2", nil)
	r.Header.Set("Sec-Fetch-Dest", "font")
	req = worker.NewRequest(r, base)
	require.Equal(t, "fonts.gstatic.com", req.URL.Host)
	require.Equal(t, "font", req.Dest)
}

func TestInstall_PrecachesAndActivates(t *testing.T) {
	f := newFixture(t, manifest(true))
	require.Equal(t, worker.StateNew, f.w.State())

	require.NoError(t, f.w.Install(context.Background()))
	require.Equal(t, worker.StateActivated, f.w.State())
	require.Equal(t, 1, f.origin.hitsFor("resto.local/js/app.js"))
	require.Zero(t, f.origin.hitsFor("cdn.example.com/all.css"), "third-party files are not precached")

	// предзагруженный файл отдаётся из кэша даже без сети
	f.net.down.Store(true)
	resp := f.get(t, "/js/app.js", worker.DestScript)
	require.Equal(t, worker.SourceCache, resp.Source)
	require.Equal(t, "v1:/js/app.js", string(resp.Body))
}

func TestInstall_FailureLeavesNothing(t *testing.T) {
	f := newFixture(t, manifest(true))
	f.origin.status.Store(http.StatusInternalServerError)

	require.Error(t, f.w.Install(context.Background()))
	require.Equal(t, worker.StateNew, f.w.State())
	require.Empty(t, f.w.Partitions())
}

func TestCacheFirst_StaticAssetSurvivesNetworkLoss(t *testing.T) {
	f := newFixture(t, manifest(true))
	require.NoError(t, f.w.Install(context.Background()))

	first := f.get(t, "/css/style.css", worker.DestStyle)
	require.Equal(t, worker.SourceNetwork, first.Source)
	require.Equal(t, worker.StrategyCacheFirst, first.Strategy)

	f.net.down.Store(true)
	second := f.get(t, "/css/style.css", worker.DestStyle)
	require.Equal(t, http.StatusOK, second.Status)
	require.Equal(t, worker.SourceCache, second.Source)
	require.Equal(t, first.Body, second.Body)

	miss := f.get(t, "/css/print.css", worker.DestStyle)
	require.Equal(t, http.StatusServiceUnavailable, miss.Status)
	require.Equal(t, "offline", string(miss.Body))
}

func TestNetworkFirst_FallsBackToCache(t *testing.T) {
	f := newFixture(t, manifest(true))
	require.NoError(t, f.w.Install(context.Background()))

	online := f.get(t, "/api/restaurants/r1/orders", "")
	require.Equal(t, worker.SourceNetwork, online.Source)

	f.origin.version.Store(2)
	fresh := f.get(t, "/api/restaurants/r1/orders", "")
	require.Equal(t, "v2:/api/restaurants/r1/orders", string(fresh.Body), "network wins while online")

	f.net.down.Store(true)
	cached := f.get(t, "/api/restaurants/r1/orders", "")
	require.Equal(t, worker.SourceCache, cached.Source)
	require.Equal(t, "v2:/api/restaurants/r1/orders", string(cached.Body))

	none := f.get(t, "/api/restaurants/r2/orders", "")
	require.Equal(t, http.StatusServiceUnavailable, none.Status)
	require.Equal(t, worker.SourceOffline, none.Source)
	require.JSONEq(t, `{"error":"offline","offline":true}`, string(none.Body))
	require.Equal(t, "application/json", none.Header.Get("Content-Type"))
}

func TestNetworkFirst_ErrorStatusIsNotCached(t *testing.T) {
	f := newFixture(t, manifest(true))
	require.NoError(t, f.w.Install(context.Background()))

	f.origin.status.Store(http.StatusInternalServerError)
	resp := f.get(t, "/api/health", "")
	require.Equal(t, http.StatusInternalServerError, resp.Status)

	f.net.down.Store(true)
	resp = f.get(t, "/api/health", "")
	require.Equal(t, worker.SourceOffline, resp.Source)
}

func TestStaleWhileRevalidate_ServesCachedAndNotifies(t *testing.T) {
	f := newFixture(t, manifest(true))
	require.NoError(t, f.w.Install(context.Background()))

	events, unsubscribe := f.w.Events().Subscribe(4)
	defer unsubscribe()

	const font = "https://cdn.example.com/fa/all.css"
	first := f.get(t, font, worker.DestStyle)
	require.Equal(t, worker.SourceNetwork, first.Source)

	f.origin.version.Store(2)
	second := f.get(t, font, worker.DestStyle)
	require.Equal(t, worker.SourceCache, second.Source)
	require.Equal(t, "v1:/fa/all.css", string(second.Body), "stale copy is served instantly")
	f.w.Wait()

	select {
	case ev := <-events:
		require.Equal(t, worker.Event{Type: worker.EventCacheUpdated, URL: font}, ev)
	case <-time.After(time.Second):
		t.Fatal("no CACHE_UPDATED event")
	}

	third := f.get(t, font, worker.DestStyle)
	require.Equal(t, "v2:/fa/all.css", string(third.Body))
	f.w.Wait()
}

func TestWaitingWorker_DoesNotControlUntilSkipWaiting(t *testing.T) {
	f := newFixture(t, manifest(false))
	ctx := context.Background()
	require.NoError(t, f.w.Install(ctx))
	require.Equal(t, worker.StateInstalled, f.w.State())

	resp := f.get(t, "/css/style.css", worker.DestStyle)
	require.Equal(t, worker.SourcePassthrough, resp.Source)

	require.NoError(t, f.w.HandleMessage(ctx, worker.MessageSkipWaiting))
	require.Equal(t, worker.StateActivated, f.w.State())

	resp = f.get(t, "/css/style.css", worker.DestStyle)
	require.Equal(t, worker.SourceNetwork, resp.Source)
}

func TestActivate_DropsStalePartitions(t *testing.T) {
	store := local.NewMemoryStore(0)
	require.NoError(t, store.SetItem("sw:static-v1:http://resto.local/js/app.js", `{"value":{},"stored_at":0,"ttl_ms":1}`))
	require.NoError(t, store.SetItem("pending_sync_operations", "[]"))

	f := newFixture(t, manifest(true), worker.WithStorage(store))
	require.NoError(t, f.w.Install(context.Background()))

	require.ElementsMatch(t, []string{"static-v2", "dynamic-v2", "thirdparty-v2"}, f.w.Partitions())
	keys, err := store.Keys()
	require.NoError(t, err)
	require.Contains(t, keys, "pending_sync_operations")
	require.NotContains(t, keys, "sw:static-v1:http://resto.local/js/app.js")
}

func TestActivate_RequiresInstall(t *testing.T) {
	f := newFixture(t, manifest(true))
	require.Error(t, f.w.Activate(context.Background()))
	require.Error(t, f.w.HandleMessage(context.Background(), "reload"))
}

func TestClearCache(t *testing.T) {
	store := local.NewMemoryStore(0)
	f := newFixture(t, manifest(true), worker.WithStorage(store))
	ctx := context.Background()
	require.NoError(t, f.w.Install(ctx))
	f.get(t, "/api/menu", "")
	require.NotEmpty(t, f.w.Partitions())

	require.NoError(t, f.w.HandleMessage(ctx, worker.MessageClearCache))
	require.Empty(t, f.w.Partitions())
	keys, _ := store.Keys()
	require.Empty(t, keys)

	f.net.down.Store(true)
	resp := f.get(t, "/js/app.js", worker.DestScript)
	require.Equal(t, worker.SourceOffline, resp.Source)
}

func TestPartitions_SurviveRestartWithStorage(t *testing.T) {
	store := local.NewMemoryStore(0)
	f := newFixture(t, manifest(true), worker.WithStorage(store))
	ctx := context.Background()
	require.NoError(t, f.w.Install(ctx))
	f.get(t, "/api/menu", "")

	// новый процесс с тем же хранилищем
	restarted := worker.New(manifest(true), f.base, nopLogger{},
		worker.WithHTTPClient(&http.Client{Transport: f.net}), worker.WithStorage(store))
	require.NoError(t, restarted.Install(ctx))
	f.net.down.Store(true)

	u, _ := f.base.Parse("/api/menu")
	resp, err := restarted.Fetch(ctx, &worker.Request{Method: http.MethodGet, URL: u, Header: http.Header{}})
	require.NoError(t, err)
	require.Equal(t, worker.SourceCache, resp.Source)
	require.Equal(t, "v1:/api/menu", string(resp.Body))
}

func TestOversizedBody_StreamedAndNotCached(t *testing.T) {
	payload := strings.Repeat("x", 4096)
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "image/png")
		_, _ = io.WriteString(w, payload)
	}))
	t.Cleanup(srv.Close)
	target, _ := url.Parse(srv.URL)
	base, _ := url.Parse("http://resto.local")

	m := manifest(true)
	m.StaticFiles = nil
	store := local.NewMemoryStore(0)
	w := worker.New(m, base, nopLogger{},
		worker.WithHTTPClient(&http.Client{Transport: &switchTransport{target: target}}),
		worker.WithStorage(store),
		worker.WithMaxBodyBytes(1024))
	ctx := context.Background()
	require.NoError(t, w.Install(ctx))

	u, _ := base.Parse("/img/big.png")
	for i := 0; i < 2; i++ {
		resp, err := w.Fetch(ctx, &worker.Request{Method: http.MethodGet, URL: u, Dest: worker.DestImage, Header: http.Header{}})
		require.NoError(t, err)
		require.Equal(t, worker.SourceNetwork, resp.Source)
		require.True(t, resp.Streamed())

		rec := httptest.NewRecorder()
		resp.Serve(rec)
		require.Equal(t, http.StatusOK, rec.Code)
		require.Equal(t, payload, rec.Body.String())
	}
	require.EqualValues(t, 2, hits.Load())
	require.Zero(t, w.Stats()[w.StaticCache()].Size)

	keys, err := store.Keys()
	require.NoError(t, err)
	require.Empty(t, keys)
}

func TestOversizedBody_FailsInstall(t *testing.T) {
	f := newFixture(t, manifest(false), worker.WithMaxBodyBytes(2))
	require.Error(t, f.w.Install(context.Background()))
	require.Equal(t, worker.StateNew, f.w.State())
}

func TestNetworkFirst_StoresWithRouteMaxAge(t *testing.T) {
	store := local.NewMemoryStore(0)
	f := newFixture(t, manifest(true), worker.WithStorage(store))
	require.NoError(t, f.w.Install(context.Background()))

	f.get(t, "/api/menu", "")
	f.get(t, "/menu.html", worker.DestDocument)

	ttlOf := func(path string) time.Duration {
		raw, ok, err := store.GetItem("sw:" + f.w.DynamicCache() + ":http://resto.local" + path)
		require.NoError(t, err)
		require.True(t, ok, path)
		var rec struct {
			TTLMillis int64 `json:"ttl_ms"`
		}
		require.NoError(t, json.Unmarshal([]byte(raw), &rec))
		return time.Duration(rec.TTLMillis) * time.Millisecond
	}
	require.Equal(t, time.Minute, ttlOf("/api/menu"))
	require.Equal(t, time.Hour, ttlOf("/menu.html"))
}
