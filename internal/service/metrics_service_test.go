package service

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-ledger-api/internal/models"
)

func TestMetricsServiceLedgerCounters(t *testing.T) {
	m := NewMetricsService()
	m.RecordBatch("grades", []models.PerItemResult{
		models.Succeeded("s1"),
		{StudentID: "s2", Outcome: models.OutcomeFailure},
		models.Succeeded("s3"),
	})
	m.RecordThresholdAlert()
	m.RecordTransfer("")
	m.RecordTransfer("detach_origin")

	assert.Equal(t, 2.0, testutil.ToFloat64(m.ledgerItems.WithLabelValues("grades", "SUCCESS")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.ledgerItems.WithLabelValues("grades", "FAILURE")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.thresholdAlerts))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.transferStepFailures.WithLabelValues("detach_origin")))
}

func TestMetricsServiceHandlerExposesRegistry(t *testing.T) {
	m := NewMetricsService()
	m.ObserveHTTPRequest(http.MethodPost, "/api/v1/journal/grades", http.StatusOK, 20*time.Millisecond)

	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "http_requests_total"))
}

func TestNilMetricsServiceIsSafe(t *testing.T) {
	var m *MetricsService
	m.RecordThresholdAlert()
	m.RecordNotificationFailure("sync")
	w := httptest.NewRecorder()
	m.Handler().ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}
