package db

import (
	"context"
	"fmt"
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

// Pinger is the part of a pool the readiness probe needs.
type Pinger interface {
	Ping(ctx context.Context) error
}

// LivenessHandler never touches the database so platform health checks keep
// passing while the database is briefly unreachable.
func LivenessHandler(version string) echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{
			"status":  "ok",
			"version": version,
		})
	}
}

// ReadinessHandler pings the database and reports pool statistics.
func ReadinessHandler(pool *pgxpool.Pool, sslRootCert string) echo.HandlerFunc {
	return readiness(pool, func() *PoolStats { return GetPoolStats(pool) }, sslRootCert)
}

func readiness(p Pinger, stats func() *PoolStats, sslRootCert string) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx, cancel := context.WithTimeout(c.Request().Context(), 5*time.Second)
		defer cancel()

		err := p.Ping(ctx)
		var s *PoolStats
		if stats != nil {
			s = stats()
		}

		if err != nil {
			if s != nil {
				s.Healthy = false
			}
			return c.JSON(http.StatusServiceUnavailable, map[string]interface{}{
				"status": "error",
				"error":  err.Error(),
				"hint":   TLSHint(sslRootCert),
				"pool":   s,
			})
		}

		return c.JSON(http.StatusOK, map[string]interface{}{
			"status": "ok",
			"pool":   s,
		})
	}
}

// TLSHint explains how to fix the most common readiness failure, a missing
// CA certificate for a provider that requires TLS.
func TLSHint(sslRootCert string) string {
	where := sslRootCert
	if where == "" {
		where = "DB_SSL_ROOT_CERT (unset)"
	}
	return fmt.Sprintf("If TLS fails: download the database provider's CA certificate and "+
		"set sslrootcert in DATABASE_URL or point DB_SSL_ROOT_CERT at it (currently %s).", where)
}
