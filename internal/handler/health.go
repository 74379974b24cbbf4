package handler

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/Payphone-Digital/adminauth/pkg/circuit"
	"github.com/Payphone-Digital/adminauth/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// Pinger is satisfied by the redis client.
type Pinger interface {
	Ping(ctx context.Context) error
}

// BreakerState is satisfied by the breaker guarding the redis store.
type BreakerState interface {
	State() circuit.State
}

type HealthHandler struct {
	db      *gorm.DB
	redis   Pinger
	breaker BreakerState
	version string
}

type HealthCheckResponse struct {
	Status    string                 `json:"status"`
	Version   string                 `json:"version"`
	Timestamp time.Time              `json:"timestamp"`
	Checks    map[string]HealthCheck `json:"checks"`
}

type HealthCheck struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// NewHealthHandler takes a nil redis and breaker when the KV store runs in
// memory only.
func NewHealthHandler(db *gorm.DB, redis Pinger, breaker BreakerState, version string) *HealthHandler {
	return &HealthHandler{
		db:      db,
		redis:   redis,
		breaker: breaker,
		version: version,
	}
}

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	ctx, cancel := context.WithTimeout(c.Request.Context(), 5*time.Second)
	defer cancel()

	response := HealthCheckResponse{
		Status:    "healthy",
		Version:   h.version,
		Timestamp: time.Now(),
		Checks:    make(map[string]HealthCheck),
	}

	dbStatus := h.checkDatabase(ctx)
	response.Checks["database"] = dbStatus
	if dbStatus.Status != "healthy" {
		response.Status = "unhealthy"
	}

	// the limiter falls back to memory, so redis never fails the check
	response.Checks["redis"] = h.checkRedis(ctx)
	kv := h.checkKVStore()
	response.Checks["kv_store"] = kv
	if kv.Status == "degraded" && response.Status == "healthy" {
		response.Status = "degraded"
	}

	statusCode := http.StatusOK
	if response.Status == "unhealthy" {
		statusCode = http.StatusServiceUnavailable
	}

	logger.GetLogger().Debug("Health check performed",
		zap.String("overall_status", response.Status),
		zap.Int("status_code", statusCode),
	)

	c.JSON(statusCode, response)
}

func (h *HealthHandler) checkDatabase(ctx context.Context) HealthCheck {
	if h.db == nil {
		return HealthCheck{Status: "unhealthy", Message: "Database connection not initialized"}
	}

	sqlDB, err := h.db.DB()
	if err != nil {
		logger.GetLogger().Error("Failed to get DB instance for health check", zap.Error(err))
		return HealthCheck{Status: "unhealthy", Message: "Failed to get database instance"}
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		logger.GetLogger().Error("Database ping failed", zap.Error(err))
		return HealthCheck{Status: "unhealthy", Message: "Database ping failed: " + err.Error()}
	}

	stats := sqlDB.Stats()
	return HealthCheck{
		Status:  "healthy",
		Message: fmt.Sprintf("Database connection is healthy (open: %d, idle: %d)", stats.OpenConnections, stats.Idle),
	}
}

func (h *HealthHandler) checkRedis(ctx context.Context) HealthCheck {
	if h.redis == nil {
		return HealthCheck{Status: "disabled", Message: "Redis cache is disabled"}
	}

	if err := h.redis.Ping(ctx); err != nil {
		logger.GetLogger().Warn("Redis ping failed", zap.Error(err))
		return HealthCheck{Status: "unhealthy", Message: "Redis ping failed: " + err.Error()}
	}

	return HealthCheck{Status: "healthy", Message: "Redis connection is healthy"}
}

// checkKVStore reports where rate-limit counters and sessions are kept right
// now. Counters written to memory while the breaker is open are per process.
func (h *HealthHandler) checkKVStore() HealthCheck {
	if h.breaker == nil {
		return HealthCheck{Status: "healthy", Message: "in-process store"}
	}

	switch state := h.breaker.State(); state {
	case circuit.StateClosed:
		return HealthCheck{Status: "healthy", Message: "redis"}
	default:
		return HealthCheck{
			Status:  "degraded",
			Message: fmt.Sprintf("redis circuit %s, serving from in-process store", state),
		}
	}
}
