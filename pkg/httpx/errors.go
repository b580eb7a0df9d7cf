package httpx

import (
	"net/http"

	"github.com/Gunvolt24/resto_sync/pkg/apperr"
	"github.com/gin-gonic/gin"
)

// StatusOf — HTTP-статус для кода ошибки.
func StatusOf(err error) int {
	switch apperr.CodeOf(err) {
	case "":
		return http.StatusOK
	case apperr.CodeInvalidArgument:
		return http.StatusBadRequest
	case apperr.CodePermissionDenied:
		return http.StatusForbidden
	case apperr.CodeNotFound:
		return http.StatusNotFound
	case apperr.CodeQueued:
		return http.StatusAccepted
	case apperr.CodeTimeout:
		return http.StatusGatewayTimeout
	case apperr.CodeStorageFull:
		return http.StatusInsufficientStorage
	case apperr.CodeUnknownOperation:
		return http.StatusUnprocessableEntity
	case apperr.CodeOffline, apperr.CodeNetwork, apperr.CodeUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WriteError — JSON-ответ {"error","code","retryable"}; текст внутренних ошибок наружу не отдаём.
func WriteError(c *gin.Context, err error) {
	status := StatusOf(err)
	msg := err.Error()
	if status == http.StatusInternalServerError {
		msg = "internal error"
	}
	c.AbortWithStatusJSON(status, gin.H{
		"error":     msg,
		"code":      apperr.CodeOf(err),
		"retryable": apperr.IsRetryable(err),
	})
}
