package middleware

import (
	"time"

	"github.com/cetra-finance/chamber/internal/pkg/metrics"
	"github.com/gin-gonic/gin"
)

func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		// Route template keeps chamber addresses out of the label set.
		endpoint := c.FullPath()
		if endpoint == "" {
			endpoint = "unmatched"
		}
		metrics.HTTPLatency.WithLabelValues(endpoint).Observe(time.Since(start).Seconds())
	}
}
