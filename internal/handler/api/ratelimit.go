package api

import (
	"net/http"
	"time"

	"github.com/labstack/echo/v4"

	svcmetrics "FxBridge/internal/service/metrics"
	"FxBridge/internal/service/ratelimit"
)

// RateLimitMiddleware rejects callers that exceed a per-IP token bucket. EA
// terminals poll aggressively, so the bucket is keyed by IP and route to keep
// one noisy terminal from starving the rest.
func RateLimitMiddleware(limiter *ratelimit.Limiter, capacity, refillPerSec float64) echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			key := c.RealIP() + "|" + c.Path()
			if !limiter.Allow(key, capacity, refillPerSec) {
				svcmetrics.HTTPRateLimited.WithLabelValues(c.Path()).Inc()
				return c.JSON(http.StatusTooManyRequests, echo.Map{
					"success": false,
					"message": "rate limit exceeded",
				})
			}
			return next(c)
		}
	}
}

// LatencyMiddleware observes per-endpoint latency and error counts.
func LatencyMiddleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			start := time.Now()
			err := next(c)
			svcmetrics.HTTPLatency.WithLabelValues(c.Path()).Observe(time.Since(start).Seconds())
			if err != nil || c.Response().Status >= http.StatusInternalServerError {
				svcmetrics.HTTPErrors.WithLabelValues(c.Path()).Inc()
			}
			return err
		}
	}
}
