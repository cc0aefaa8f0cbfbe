package api

import (
	"crypto/subtle"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/OhSeongHyeon/mocktalkfront/internal/logutil"
)

const requestIDKey = "requestID"

// quietPaths are polled by scrapers and health checks and are not logged.
var quietPaths = map[string]bool{
	"/healthz": true,
	"/metrics": true,
}

// observe tags each request with an id, records metrics and logs the
// outcome.
func observe() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(requestIDKey, id)
		c.Writer.Header().Set("X-Request-ID", id)

		start := time.Now()
		c.Next()
		elapsed := time.Since(start)

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		status := c.Writer.Status()
		httpRequestsTotal.WithLabelValues(c.Request.Method, route, strconv.Itoa(status)).Inc()
		httpRequestDuration.WithLabelValues(c.Request.Method, route).Observe(elapsed.Seconds())

		if quietPaths[route] && status < http.StatusBadRequest {
			return
		}
		logutil.Debug("status request", map[string]interface{}{
			"method":     c.Request.Method,
			"route":      route,
			"status":     status,
			"latency_ms": elapsed.Milliseconds(),
			"request_id": id,
		})
	}
}

// requireToken guards a route group with the shared status token. Without a
// configured token the group is disabled.
func requireToken(token string) gin.HandlerFunc {
	if token == "" {
		return func(c *gin.Context) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "disabled: STATUS_TOKEN is not set"})
		}
	}
	want := []byte(token)
	return func(c *gin.Context) {
		got := presentedToken(c.Request)
		if subtle.ConstantTimeCompare([]byte(got), want) != 1 {
			logutil.Warn("status token rejected", nil, map[string]interface{}{
				"route":      c.FullPath(),
				"request_id": c.GetString(requestIDKey),
			})
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "unauthorized"})
			return
		}
		c.Next()
	}
}

func presentedToken(r *http.Request) string {
	if v, ok := strings.CutPrefix(r.Header.Get("Authorization"), "Bearer "); ok {
		if v = strings.TrimSpace(v); v != "" {
			return v
		}
	}
	return strings.TrimSpace(r.Header.Get("X-Status-Token"))
}
