package httpx_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/Gunvolt24/resto_sync/pkg/httpx"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/require"
)

type captureLogger struct {
	mu    sync.Mutex
	lines []string
}

func (l *captureLogger) Infof(_ context.Context, format string, args ...any) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.lines = append(l.lines, fmt.Sprintf(format, args...))
}
func (l *captureLogger) Warnf(context.Context, string, ...any)  {}
func (l *captureLogger) Errorf(context.Context, string, ...any) {}

func TestRequestLogger_SkipsServiceRoutesAndLogsSource(t *testing.T) {
	gin.SetMode(gin.TestMode)
	log := &captureLogger{}

	r := gin.New()
	r.Use(httpx.RequestID(), httpx.RequestLogger(log))
	r.GET("/ping", func(c *gin.Context) { c.String(http.StatusOK, "pong") })
	r.NoRoute(func(c *gin.Context) {
		c.Header("X-Worker-Source", "cache")
		c.Status(http.StatusOK)
	})

	for _, p := range []string{"/ping", "/js/app.js"} {
		r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, p, http.NoBody))
	}

	require.Len(t, log.lines, 1)
	require.Contains(t, log.lines[0], "path=/js/app.js")
	require.Contains(t, log.lines[0], "source=cache")
}
