package httpx

import (
	"github.com/Gunvolt24/resto_sync/pkg/ctxmeta"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

const (
	HeaderRequestID = "X-Request-ID"
	maxRequestIDLen = 64
)

// RequestID — сквозной id запроса: берёт X-Request-ID клиента, если он похож на id,
// иначе выдаёт UUIDv7. Id кладётся в контекст и возвращается в ответе.
func RequestID() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if !validRequestID(id) {
			id = newRequestID()
		}
		c.Header(HeaderRequestID, id)
		c.Request = c.Request.WithContext(ctxmeta.WithRequestID(c.Request.Context(), id))
		c.Next()
	}
}

// validRequestID — непустой, не длиннее 64 символов, только [A-Za-z0-9._:-].
// Так чужой заголовок не испортит лог и заголовки Kafka.
func validRequestID(id string) bool {
	if id == "" || len(id) > maxRequestIDLen {
		return false
	}
	for i := 0; i < len(id); i++ {
		ch := id[i]
		switch {
		case ch >= 'a' && ch <= 'z', ch >= 'A' && ch <= 'Z', ch >= '0' && ch <= '9':
		case ch == '-', ch == '_', ch == '.', ch == ':':
		default:
			return false
		}
	}
	return true
}

func newRequestID() string {
	if id, err := uuid.NewV7(); err == nil {
		return id.String()
	}
	return uuid.NewString()
}
