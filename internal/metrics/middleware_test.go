package metrics

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/vaultguard/vaultguard/internal/logging"
)

func TestMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)

	m := NewMetrics("vaultguard")
	router := gin.New()
	router.Use(Middleware(m, logging.NewLogger()))
	router.GET("/vault/records", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"ok": true})
	})

	recorder := httptest.NewRecorder()
	router.ServeHTTP(recorder, httptest.NewRequest("GET", "/vault/records", nil))
	require.Equal(t, http.StatusOK, recorder.Code)

	family := gatherMetric(t, m, "vaultguard_http_requests_total")
	require.NotNil(t, family)
	require.Len(t, family.Metric, 1)

	labels := map[string]string{}
	for _, pair := range family.Metric[0].Label {
		labels[pair.GetName()] = pair.GetValue()
	}
	assert.Equal(t, "/vault/records", labels["endpoint"])
	assert.Equal(t, "GET", labels["method"])
	assert.Equal(t, "200", labels["status"])

	inFlight := gatherMetric(t, m, "vaultguard_http_requests_in_flight")
	require.NotNil(t, inFlight)
	assert.Equal(t, 0.0, inFlight.Metric[0].GetGauge().GetValue())
}
