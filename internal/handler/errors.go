package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/fleveque/flystocks/internal/provider"
	"github.com/fleveque/flystocks/internal/service"
	"github.com/fleveque/flystocks/internal/storage"
)

// statusFor maps domain errors to HTTP status codes. Anything unrecognized
// is an internal error.
func statusFor(err error) int {
	switch {
	case errors.Is(err, provider.ErrMalformedQuery):
		return http.StatusBadRequest
	case errors.Is(err, provider.ErrNotFound),
		errors.Is(err, provider.ErrUnknownRepository),
		errors.Is(err, storage.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, service.ErrTenantRequired):
		return http.StatusUnauthorized
	case provider.IsSourceUnavailable(err):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as a JSON error body. Internal errors are logged
// and hidden from the client.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	status := statusFor(err)
	if status == http.StatusInternalServerError {
		logger.Error("request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err),
		)
		c.JSON(status, gin.H{"error": "internal error"})
		return
	}
	if status == http.StatusServiceUnavailable {
		logger.Warn("stock source unavailable", zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
