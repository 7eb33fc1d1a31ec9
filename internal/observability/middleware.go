package observability

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// quietRoutes are polled by scrapers and health checks; logging every
// hit at info would drown the session lifecycle lines.
var quietRoutes = map[string]struct{}{
	"/metrics": {},
	"/health":  {},
	"/ready":   {},
}

// RequestLogger emits one line per admin request. Scrape and probe
// routes are demoted to debug; failures are promoted by status class.
func RequestLogger(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := requestRoute(c)
		status := c.Writer.Status()

		event := logger.Info()
		switch {
		case status >= 500:
			event = logger.Error()
		case status >= 400:
			event = logger.Warn()
		default:
			if _, quiet := quietRoutes[route]; quiet {
				event = logger.Debug()
			}
		}

		event.
			Str("method", c.Request.Method).
			Str("route", route).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("remote", c.Request.RemoteAddr).
			Msg("admin request")
	}
}

// RequestMetricsMiddleware feeds the admin request counter and latency
// histogram, labelled by node so multiple daemons on one scrape target
// stay distinguishable.
func RequestMetricsMiddleware(node string) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		RecordHTTPRequest(node, c.Request.Method, requestRoute(c), c.Writer.Status(), time.Since(start))
	}
}

// requestRoute prefers the registered route template over the raw URL
// path so metric label cardinality stays bounded.
func requestRoute(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return c.Request.URL.Path
}
