// Package dashboard — терминальная панель состояния сервиса (resto-top).
package dashboard

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/Gunvolt24/resto_sync/internal/domain"
)

// Fetcher — то, что панели нужно от API; реализуется *Client, подменяется в тестах.
type Fetcher interface {
	FetchStats(ctx context.Context) (domain.Stats, error)
	SetOnline(ctx context.Context, online bool) error
	SyncNow(ctx context.Context) (domain.SyncReport, error)
}

var _ Fetcher = (*Client)(nil)

const (
	defaultAddr    = "127.0.0.1:8080"
	requestTimeout = 5 * time.Second
)

// Client — клиент служебных маршрутов API.
type Client struct {
	baseURL *url.URL
	http    *http.Client
}

// NewClient — addr вида host:port или полный URL; путь и query отбрасываются.
func NewClient(addr string) (*Client, error) {
	base, err := parseBaseURL(addr)
	if err != nil {
		return nil, err
	}
	return &Client{baseURL: base, http: &http.Client{Timeout: requestTimeout}}, nil
}

func parseBaseURL(addr string) (*url.URL, error) {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		addr = defaultAddr
	}
	if !strings.Contains(addr, "://") {
		addr = "http://" + addr
	}
	u, err := url.Parse(addr)
	if err != nil {
		return nil, fmt.Errorf("parse api address: %w", err)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("api address %q has no host", addr)
	}
	return &url.URL{Scheme: u.Scheme, Host: u.Host}, nil
}

func (c *Client) FetchStats(ctx context.Context) (domain.Stats, error) {
	var st domain.Stats
	err := c.do(ctx, http.MethodGet, "/api/stats", nil, &st)
	return st, err
}

// SetOnline — сигнал связи, как его подала бы платформа.
func (c *Client) SetOnline(ctx context.Context, online bool) error {
	return c.do(ctx, http.MethodPost, "/api/connectivity", map[string]bool{"online": online}, nil)
}

func (c *Client) SyncNow(ctx context.Context) (domain.SyncReport, error) {
	var report domain.SyncReport
	err := c.do(ctx, http.MethodPost, "/api/sync", nil, &report)
	return report, err
}

func (c *Client) do(ctx context.Context, method, path string, body, dest any) error {
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	reqURL := c.baseURL.ResolveReference(&url.URL{Path: path})
	req, err := http.NewRequestWithContext(ctx, method, reqURL.String(), reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Worker-Source", "resto-top")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("execute request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return fmt.Errorf("api %s returned status %d", path, resp.StatusCode)
	}
	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
