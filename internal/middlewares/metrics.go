package middlewares

import (
	"time"

	"github.com/gin-gonic/gin"

	"github.com/rayzilt/aipscan-deploy/internal/observability"
)

// Metrics returns a middleware recording per-request counters and latency
// histograms. The route template is preferred over the raw URL so that
// /runs/:id stays one label value.
func Metrics() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		path := c.FullPath()
		if path == "" {
			path = c.Request.URL.Path
		}

		observability.RecordHTTPRequest(c.Request.Method, path, c.Writer.Status(), time.Since(start))
	}
}
