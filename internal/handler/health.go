package handler

import (
	"context"
	"database/sql"
	"net/http"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"
)

// HealthHandler reports liveness plus the reachability and latency of the
// two backing stores, for load balancers and monitoring.
type HealthHandler struct {
	DB    *sql.DB
	Redis *redis.Client
}

func (h *HealthHandler) Health(c echo.Context) error {
	ctx, cancel := context.WithTimeout(c.Request().Context(), 2*time.Second)
	defer cancel()

	status := http.StatusOK
	resp := echo.Map{"status": "OK"}

	start := time.Now()
	if err := h.DB.PingContext(ctx); err != nil {
		status = http.StatusServiceUnavailable
		resp["status"] = "ERROR"
		resp["db"] = "disconnected"
	} else {
		resp["db"] = "connected"
	}
	resp["db_latency_ms"] = time.Since(start).Milliseconds()

	if h.Redis != nil {
		start = time.Now()
		if err := h.Redis.Ping(ctx).Err(); err != nil {
			status = http.StatusServiceUnavailable
			resp["status"] = "ERROR"
			resp["redis"] = "disconnected"
		} else {
			resp["redis"] = "connected"
		}
		resp["redis_latency_ms"] = time.Since(start).Milliseconds()
	}

	return c.JSON(status, resp)
}
