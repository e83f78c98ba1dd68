package middleware

import (
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/sheet-tracker/backend/internal/domain"
	"github.com/sheet-tracker/backend/internal/infrastructure"
)

// Caller kinds used as the "caller" metric label
const (
	CallerAnonymous = "anonymous"
	CallerUser      = "user"
	CallerAdmin     = "admin"
)

// MetricsMiddleware records request duration, count and concurrency per
// route template. The caller label is resolved after the handler chain so
// it reflects what AuthMiddleware established.
func MetricsMiddleware(metrics *infrastructure.TelemetryMetrics) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := c.Request.Context()
		route := attribute.String("http.route", routeOf(c))

		metrics.HTTPActiveRequests.Add(ctx, 1, metric.WithAttributes(route))
		start := time.Now()

		c.Next()

		metrics.HTTPActiveRequests.Add(ctx, -1, metric.WithAttributes(route))
		attrs := metric.WithAttributes(
			route,
			attribute.String("http.request.method", c.Request.Method),
			attribute.String("http.status_class", statusClass(c.Writer.Status())),
			attribute.String("caller", CallerKind(c)),
		)
		metrics.HTTPRequestDuration.Record(ctx, time.Since(start).Seconds(), attrs)
		metrics.HTTPRequestCount.Add(ctx, 1, attrs)
	}
}

// CallerKind classifies the request by the role AuthMiddleware attached
func CallerKind(c *gin.Context) string {
	if _, ok := GetUserID(c); !ok {
		return CallerAnonymous
	}
	if role, _ := c.Get(RoleKey); role == domain.RoleAdmin {
		return CallerAdmin
	}
	return CallerUser
}

// routeOf keeps label cardinality bounded: ids stay inside the template and
// unmatched paths collapse to one value
func routeOf(c *gin.Context) string {
	if route := c.FullPath(); route != "" {
		return route
	}
	return "unmatched"
}

func statusClass(status int) string {
	if status < 100 || status > 599 {
		return "unknown"
	}
	return strconv.Itoa(status/100) + "xx"
}
