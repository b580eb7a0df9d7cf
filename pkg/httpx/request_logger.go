package httpx

import (
	"time"

	"github.com/Gunvolt24/resto_sync/internal/ports"
	"github.com/Gunvolt24/resto_sync/pkg/ctxmeta"
	"github.com/gin-gonic/gin"
)

// служебные маршруты без access-лога
var quietPaths = map[string]struct{}{
	"/metrics":        {},
	"/ping":           {},
	"/_worker/events": {},
}

// RequestLogger — access-лог: статус, длительность и источник ответа воркера.
// request_id и trace_id логгер берёт из контекста сам.
func RequestLogger(log ports.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if _, quiet := quietPaths[path]; quiet {
			return
		}
		if path == "" {
			path = c.Request.URL.Path
		}

		ctx := c.Request.Context()
		span, _ := ctxmeta.SpanIDFromContext(ctx)

		source := c.Writer.Header().Get("X-Worker-Source")
		if source == "" {
			source = "-"
		}

		log.Infof(ctx,
			"request method=%s path=%s status=%d source=%s ip=%s duration=%s size=%d span=%s",
			c.Request.Method,
			path,
			c.Writer.Status(),
			source,
			c.ClientIP(),
			time.Since(start),
			c.Writer.Size(),
			span,
		)
	}
}
