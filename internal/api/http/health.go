package http

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

type HealthResponse struct {
	Status    string    `json:"status"`
	Timestamp time.Time `json:"timestamp"`
	Service   string    `json:"service"`
	Version   string    `json:"version"`
	Redis     string    `json:"redis"`
	Ledger    string    `json:"ledger,omitempty"`
}

type HealthHandler struct {
	serviceName string
	version     string
	redis       *redis.Client
	ledger      *sql.DB
}

// NewHealthHandler reports the session store and, when configured, the ledger database.
// Either handle may be nil.
func NewHealthHandler(serviceName, version string, rdb *redis.Client, ledger *sql.DB) *HealthHandler {
	return &HealthHandler{
		serviceName: serviceName,
		version:     version,
		redis:       rdb,
		ledger:      ledger,
	}
}

func (h *HealthHandler) HealthCheck(c *gin.Context) {
	pingCtx, cancel := context.WithTimeout(c.Request.Context(), 1*time.Second)
	defer cancel()

	status, code := "healthy", http.StatusOK

	redisStatus := "disabled"
	if h.redis != nil {
		if err := h.redis.Ping(pingCtx).Err(); err != nil {
			redisStatus = "down"
			// sessions live in redis, nothing works without it
			status, code = "unhealthy", http.StatusServiceUnavailable
		} else {
			redisStatus = "up"
		}
	}

	ledgerStatus := ""
	if h.ledger != nil {
		if err := h.ledger.PingContext(pingCtx); err != nil {
			ledgerStatus = "down"
			if code == http.StatusOK {
				status = "degraded"
			}
		} else {
			ledgerStatus = "up"
		}
	}

	c.JSON(code, HealthResponse{
		Status:    status,
		Timestamp: time.Now().UTC(),
		Service:   h.serviceName,
		Version:   h.version,
		Redis:     redisStatus,
		Ledger:    ledgerStatus,
	})
}

func (h *HealthHandler) RegisterRoutes(r gin.IRouter) {
	r.GET("/health", h.HealthCheck)
	r.GET("/healthz", h.HealthCheck)
}
