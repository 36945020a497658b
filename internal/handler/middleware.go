package handler

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"crowdfund/internal/metrics"
	"crowdfund/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	log "github.com/sirupsen/logrus"
)

const (
	HeaderRequestID = "X-Request-ID"
	HeaderCallerID  = "X-Caller-ID"

	ctxRequestID = "request_id"
	ctxCaller    = "caller"
)

// RequestIDMiddleware propagates the client's request id or mints one.
func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(HeaderRequestID)
		if id == "" {
			id = uuid.NewString()
		}
		c.Set(ctxRequestID, id)
		c.Header(HeaderRequestID, id)
		c.Next()
	}
}

func LoggerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if q := c.Request.URL.RawQuery; q != "" {
			path = path + "?" + q
		}

		c.Next()

		log.WithFields(log.Fields{
			"status":     c.Writer.Status(),
			"latency":    time.Since(start),
			"client_ip":  c.ClientIP(),
			"method":     c.Request.Method,
			"path":       path,
			"request_id": c.GetString(ctxRequestID),
		}).Info("[HTTP]")
	}
}

// MetricsMiddleware records latency per route template, not per raw path,
// so campaign ids do not explode label cardinality.
func MetricsMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.HTTPRequestDuration.
			WithLabelValues(c.Request.Method, route, strconv.Itoa(c.Writer.Status())).
			Observe(time.Since(start).Seconds())
	}
}

func RecoveryMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.WithFields(log.Fields{
					"panic":      err,
					"request_id": c.GetString(ctxRequestID),
				}).Error("[PANIC]")
				response.ServerError(c, "internal server error")
			}
		}()
		c.Next()
	}
}

func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization, "+HeaderRequestID+", "+HeaderCallerID)

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}

// CallerMiddleware requires the caller identity header. The identity is
// asserted by the wallet gateway in front of this service.
func CallerMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		caller := strings.TrimSpace(c.GetHeader(HeaderCallerID))
		if caller == "" {
			response.Unauthorized(c, HeaderCallerID+" header is required")
			return
		}
		c.Set(ctxCaller, caller)
		c.Next()
	}
}

func callerOf(c *gin.Context) string {
	return c.GetString(ctxCaller)
}
