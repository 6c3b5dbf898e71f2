package db

import (
	"context"
	"net/http"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/labstack/echo/v4"
)

// PoolStats represents database connection pool statistics.
type PoolStats struct {
	TotalConns      int32  `json:"total_conns"`
	IdleConns       int32  `json:"idle_conns"`
	AcquiredConns   int32  `json:"acquired_conns"`
	MaxConns        int32  `json:"max_conns"`
	AcquireCount    int64  `json:"acquire_count"`
	AcquireDuration string `json:"acquire_duration"`
	Healthy         bool   `json:"healthy"`
}

// GetPoolStats returns connection pool statistics.
func GetPoolStats(pool *pgxpool.Pool) *PoolStats {
	stat := pool.Stat()
	return &PoolStats{
		TotalConns:      stat.TotalConns(),
		IdleConns:       stat.IdleConns(),
		AcquiredConns:   stat.AcquiredConns(),
		MaxConns:        stat.MaxConns(),
		AcquireCount:    stat.AcquireCount(),
		AcquireDuration: stat.AcquireDuration().String(),
		Healthy:         stat.TotalConns() > 0,
	}
}

// SchemaHealth summarizes the migration state for health reports.
type SchemaHealth struct {
	Current bool  `json:"current"`
	Pending []int `json:"pending,omitempty"`
	Latest  int   `json:"latest"`
}

func schemaHealth(st []MigrationStatus) SchemaHealth {
	h := SchemaHealth{Current: true}
	for _, s := range st {
		if s.Version > h.Latest {
			h.Latest = s.Version
		}
		if !s.Applied {
			h.Current = false
			h.Pending = append(h.Pending, s.Version)
		}
	}
	return h
}

// HealthHandler pings the database and reports pool and schema state. A
// nil migrator skips the schema check.
func HealthHandler(pool *pgxpool.Pool, migrator *Migrator) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		err := pool.Ping(ctx)
		stats := GetPoolStats(pool)
		if err != nil {
			stats.Healthy = false
			return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
				"status": "unhealthy",
				"error":  err.Error(),
				"pool":   stats,
			})
		}

		body := map[string]interface{}{
			"status": "healthy",
			"pool":   stats,
		}
		if migrator != nil {
			st, err := migrator.Status(ctx)
			if err != nil {
				body["status"] = "degraded"
				body["schema_error"] = err.Error()
				return c.JSON(http.StatusServiceUnavailable, body)
			}
			sh := schemaHealth(st)
			body["schema"] = sh
			if !sh.Current {
				body["status"] = "degraded"
				return c.JSON(http.StatusServiceUnavailable, body)
			}
		}
		return c.JSON(http.StatusOK, body)
	}
}
