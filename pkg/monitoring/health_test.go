package monitoring

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
)

func TestCheckHealthAggregation(t *testing.T) {
	hc := NewHealthChecker("trackside", "test")
	hc.AddCheck("ok", func() CheckResult { return CheckResult{Status: StatusHealthy} })

	status := hc.CheckHealth()
	assert.Equal(t, StatusHealthy, status.Status)

	hc.AddCheck("slow", func() CheckResult { return CheckResult{Status: StatusDegraded} })
	status = hc.CheckHealth()
	assert.Equal(t, StatusDegraded, status.Status)

	hc.AddCheck("down", func() CheckResult { return CheckResult{Status: StatusUnhealthy} })
	status = hc.CheckHealth()
	assert.Equal(t, StatusUnhealthy, status.Status)
}

func TestHealthHandlerStatusCode(t *testing.T) {
	gin.SetMode(gin.TestMode)

	hc := NewHealthChecker("trackside", "test")
	hc.AddCheck("down", func() CheckResult { return CheckResult{Status: StatusUnhealthy} })

	r := gin.New()
	r.GET("/health", hc.Handler())

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestConfigurationHealthCheck(t *testing.T) {
	check := ConfigurationHealthCheck(map[string]string{"JWT_SECRET": "set", "DATABASE_URL": ""})
	result := check()
	assert.Equal(t, StatusUnhealthy, result.Status)
	assert.Contains(t, result.Message, "DATABASE_URL")

	check = ConfigurationHealthCheck(map[string]string{"JWT_SECRET": "set"})
	assert.Equal(t, StatusHealthy, check().Status)
}
