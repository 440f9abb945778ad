package metrics

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// PrometheusHandler adapts the standard promhttp handler for mounting on a
// Gin router's /metrics route.
func PrometheusHandler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}

// PrometheusHandlerHTTP returns the metrics handler as a plain
// net/http.Handler, for callers not using Gin.
func PrometheusHandlerHTTP() http.Handler {
	return promhttp.Handler()
}
