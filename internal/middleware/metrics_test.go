package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
	"go.opentelemetry.io/otel/sdk/metric/metricdata"

	"github.com/sheet-tracker/backend/internal/infrastructure"
)

func newMetricsRouter(t *testing.T) (*gin.Engine, *sdkmetric.ManualReader) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	reader := sdkmetric.NewManualReader()
	provider := sdkmetric.NewMeterProvider(sdkmetric.WithReader(reader))
	telemetry := &infrastructure.Telemetry{Meter: provider.Meter("test")}
	metrics, err := telemetry.CreateMetrics()
	require.NoError(t, err)

	validator := staticValidator{"user-token": "user", "admin-token": "admin"}
	router := gin.New()
	router.Use(MetricsMiddleware(metrics))
	router.GET("/problems/:id", func(c *gin.Context) { c.Status(http.StatusOK) })
	protected := router.Group("", AuthMiddleware(validator))
	protected.GET("/revisions", func(c *gin.Context) { c.Status(http.StatusOK) })
	return router, reader
}

// requestCounts sums the request counter by "route caller class"
func requestCounts(t *testing.T, reader *sdkmetric.ManualReader) map[string]int64 {
	t.Helper()
	var rm metricdata.ResourceMetrics
	require.NoError(t, reader.Collect(context.Background(), &rm))

	out := make(map[string]int64)
	for _, sm := range rm.ScopeMetrics {
		for _, m := range sm.Metrics {
			if m.Name != "http.server.request.count" {
				continue
			}
			sum, ok := m.Data.(metricdata.Sum[int64])
			require.True(t, ok)
			for _, dp := range sum.DataPoints {
				route, _ := dp.Attributes.Value("http.route")
				caller, _ := dp.Attributes.Value("caller")
				class, _ := dp.Attributes.Value("http.status_class")
				out[route.AsString()+" "+caller.AsString()+" "+class.AsString()] += dp.Value
			}
		}
	}
	return out
}

func TestMetricsMiddlewareLabelsRouteAndCaller(t *testing.T) {
	router, reader := newMetricsRouter(t)

	requests := []struct {
		path  string
		token string
	}{
		{"/problems/3f1c", ""},
		{"/problems/9a2b", ""},
		{"/revisions", "user-token"},
		{"/revisions", "admin-token"},
		{"/revisions", ""},
		{"/nowhere", ""},
	}
	for _, r := range requests {
		req := httptest.NewRequest(http.MethodGet, r.path, nil)
		if r.token != "" {
			req.Header.Set(AuthorizationHeader, BearerPrefix+r.token)
		}
		router.ServeHTTP(httptest.NewRecorder(), req)
	}

	assert.Equal(t, map[string]int64{
		"/problems/:id anonymous 2xx": 2,
		"/revisions user 2xx":         1,
		"/revisions admin 2xx":        1,
		"/revisions anonymous 4xx":    1,
		"unmatched anonymous 4xx":     1,
	}, requestCounts(t, reader))
}

func TestStatusClass(t *testing.T) {
	assert.Equal(t, "2xx", statusClass(http.StatusNoContent))
	assert.Equal(t, "4xx", statusClass(http.StatusConflict))
	assert.Equal(t, "5xx", statusClass(http.StatusServiceUnavailable))
	assert.Equal(t, "unknown", statusClass(0))
}
