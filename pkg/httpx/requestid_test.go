package httpx_test

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/Gunvolt24/resto_sync/pkg/ctxmeta"
	"github.com/Gunvolt24/resto_sync/pkg/httpx"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

// serveWithID — прогон запроса через middleware; возвращает заголовок ответа и id из контекста.
func serveWithID(t *testing.T, incoming string) (header, fromCtx string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	r := gin.New()
	r.Use(httpx.RequestID())
	r.GET("/", func(c *gin.Context) {
		fromCtx, _ = ctxmeta.RequestIDFromContext(c.Request.Context())
		c.Status(http.StatusNoContent)
	})

	req := httptest.NewRequest(http.MethodGet, "/", http.NoBody)
	if incoming != "" {
		req.Header.Set(httpx.HeaderRequestID, incoming)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w.Header().Get(httpx.HeaderRequestID), fromCtx
}

func TestRequestID_KeepsValidClientID(t *testing.T) {
	for _, id := range []string{"custom-id-42", "pos:terminal.7_a"} {
		header, fromCtx := serveWithID(t, id)
		require.Equal(t, id, header)
		require.Equal(t, id, fromCtx)
	}
}

func TestRequestID_GeneratesWhenMissingOrInvalid(t *testing.T) {
	for _, incoming := range []string{"", "has space", "line\nbreak", strings.Repeat("a", 65)} {
		header, fromCtx := serveWithID(t, incoming)
		parsed, err := uuid.Parse(header)
		require.NoError(t, err, "incoming %q", incoming)
		require.Equal(t, uuid.Version(7), parsed.Version())
		require.Equal(t, header, fromCtx)
	}
}
