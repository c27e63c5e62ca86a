package ginserver

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	gin "github.com/gin-gonic/gin"

	"listingchat/internal/domain/shared/errkind"
)

// respondError maps an error kind to a status. Internal details are logged,
// never returned.
func respondError(c *gin.Context, logger *slog.Logger, err error, action string, attrs ...any) {
	kind := errkind.Of(err)
	status := statusFor(kind)
	if logger != nil && status >= http.StatusInternalServerError {
		logger.ErrorContext(c.Request.Context(), "request failed",
			append([]any{"action", action, "error", err, "kind", string(kind)}, attrs...)...)
	}
	msg := err.Error()
	if kind == errkind.Internal {
		msg = "internal error"
	}
	c.JSON(status, gin.H{"error": msg, "kind": string(kind)})
}

func statusFor(kind errkind.Kind) int {
	switch kind {
	case errkind.Validation:
		return http.StatusBadRequest
	case errkind.Forbidden:
		return http.StatusForbidden
	case errkind.NotFound:
		return http.StatusNotFound
	case errkind.Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func parsePositiveIntStrict(raw string, def int) int {
	value, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || value <= 0 {
		return def
	}
	return value
}
