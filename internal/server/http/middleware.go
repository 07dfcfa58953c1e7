package http

import (
	"github.com/gin-gonic/gin"
)

// requestLog logs every request and records it on the metrics collector.
// The route label uses the registered pattern, not the raw path, so metric
// cardinality stays bounded.
func (s *Server) requestLog() gin.HandlerFunc {
	return func(c *gin.Context) {
		started := s.now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		status := c.Writer.Status()
		latency := s.now().Sub(started)

		s.logger.Info("%s %s -> %d (%s) from %s", c.Request.Method, route, status, latency, c.ClientIP())
		if s.metrics != nil {
			s.metrics.RecordHTTPServerRequest(c.Request.Context(), c.Request.Method, route, status, latency)
		}
	}
}
