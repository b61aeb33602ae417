package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/yukikurage/favor-exchange-api/internal/auth"
	"github.com/yukikurage/favor-exchange-api/internal/repository"
	"go.uber.org/zap"
)

const healthTimeout = 2 * time.Second

// HealthHandler reports whether the service and its backing stores respond
type HealthHandler struct {
	gw         *repository.Gateway
	revocation *auth.RevocationStore
	logger     *zap.Logger
}

func NewHealthHandler(gw *repository.Gateway, revocation *auth.RevocationStore, logger *zap.Logger) *HealthHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &HealthHandler{gw: gw, revocation: revocation, logger: logger}
}

// Health pings the database and, when configured, Redis
func (h *HealthHandler) Health(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), healthTimeout)
	defer cancel()

	checks := gin.H{"database": "ok"}
	healthy := true

	if err := h.pingDatabase(ctx); err != nil {
		h.logger.Warn("database health check failed", zap.Error(err))
		checks["database"] = "unavailable"
		healthy = false
	}

	if h.revocation.Enabled() {
		checks["redis"] = "ok"
		if err := h.revocation.Ping(ctx); err != nil {
			h.logger.Warn("redis health check failed", zap.Error(err))
			checks["redis"] = "unavailable"
			healthy = false
		}
	}

	status := http.StatusOK
	state := "ok"
	if !healthy {
		status = http.StatusServiceUnavailable
		state = "degraded"
	}

	c.JSON(status, gin.H{
		"status":  state,
		"message": "Favor Exchange API is running",
		"checks":  checks,
	})
}

func (h *HealthHandler) pingDatabase(ctx context.Context) error {
	sqlDB, err := h.gw.DB().DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}
