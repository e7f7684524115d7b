package metrics

import (
	"net/http/httptest"
	"testing"

	dto "github.com/prometheus/client_model/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatherMetric finds a metric family by name in the registry.
func gatherMetric(t *testing.T, m *Metrics, name string) *dto.MetricFamily {
	t.Helper()
	families, err := m.Registry().Gather()
	require.NoError(t, err)
	for _, family := range families {
		if family.GetName() == name {
			return family
		}
	}
	return nil
}

func TestNewMetrics(t *testing.T) {
	m := NewMetrics("vaultguard")
	require.NotNil(t, m)

	// Each instance owns its registry; two instances never collide.
	other := NewMetrics("vaultguard")
	require.NotNil(t, other)
}

func TestMetrics_HTTPCounters(t *testing.T) {
	m := NewMetrics("vaultguard")

	m.RecordHTTPRequest("/vault/records", "GET", "200")
	m.RecordHTTPRequest("/vault/records", "GET", "200")
	m.RecordRequestLatency("/vault/records", "GET", "200", 0.02)

	family := gatherMetric(t, m, "vaultguard_http_requests_total")
	require.NotNil(t, family)
	require.Len(t, family.Metric, 1)
	assert.Equal(t, 2.0, family.Metric[0].GetCounter().GetValue())

	latency := gatherMetric(t, m, "vaultguard_request_latency_seconds")
	require.NotNil(t, latency)
	assert.Equal(t, uint64(1), latency.Metric[0].GetHistogram().GetSampleCount())
}

func TestMetrics_InFlightGauge(t *testing.T) {
	m := NewMetrics("vaultguard")

	m.IncHTTPRequestsInFlight()
	m.IncHTTPRequestsInFlight()
	m.DecHTTPRequestsInFlight()

	family := gatherMetric(t, m, "vaultguard_http_requests_in_flight")
	require.NotNil(t, family)
	assert.Equal(t, 1.0, family.Metric[0].GetGauge().GetValue())
}

func TestMetrics_VaultAndAuth(t *testing.T) {
	m := NewMetrics("vaultguard")

	m.RecordVaultOperation("create", "success")
	m.RecordVaultOperation("create", "error")
	m.SetVaultRecords("sqlite", 42)
	m.IncVaultSubscribers()
	m.RecordAuthAttempt("password", "success")
	m.RecordPasswordGenerated("success")
	m.RecordStrengthScore(4)

	ops := gatherMetric(t, m, "vaultguard_vault_operations_total")
	require.NotNil(t, ops)
	assert.Len(t, ops.Metric, 2)

	records := gatherMetric(t, m, "vaultguard_vault_records")
	require.NotNil(t, records)
	assert.Equal(t, 42.0, records.Metric[0].GetGauge().GetValue())

	scores := gatherMetric(t, m, "vaultguard_strength_scores")
	require.NotNil(t, scores)
	assert.Equal(t, uint64(1), scores.Metric[0].GetHistogram().GetSampleCount())
}

func TestMetrics_Handler(t *testing.T) {
	m := NewMetrics("vaultguard")
	m.RecordHTTPRequest("/health", "GET", "200")

	recorder := httptest.NewRecorder()
	m.Handler().ServeHTTP(recorder, httptest.NewRequest("GET", "/metrics", nil))

	assert.Equal(t, 200, recorder.Code)
	assert.Contains(t, recorder.Body.String(), "vaultguard_http_requests_total")
}
