package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplicationMetrics(t *testing.T) {
	am := NewApplicationMetrics("marketsum")

	am.ObservePage(OutcomeOK, 200*time.Millisecond)
	am.ObservePage(OutcomeOK, 300*time.Millisecond)
	am.ObservePage(OutcomeNetworkError, time.Second)
	am.AddRecords(7)
	am.AddSkippedRows(2)
	am.ObserveCrawl(5*time.Second, false)

	assert.Equal(t, 2.0, testutil.ToFloat64(am.pages.WithLabelValues(OutcomeOK)))
	assert.Equal(t, 1.0, testutil.ToFloat64(am.pages.WithLabelValues(OutcomeNetworkError)))
	assert.Equal(t, 7.0, testutil.ToFloat64(am.records))
	assert.Equal(t, 2.0, testutil.ToFloat64(am.skippedRows))
	assert.Equal(t, 1.0, testutil.ToFloat64(am.crawls.WithLabelValues("false")))
}

func TestApplicationMetrics_Handler(t *testing.T) {
	am := NewApplicationMetrics("marketsum")
	am.RecordHTTPRequest(http.MethodGet, "/health", http.StatusOK, time.Millisecond)

	rec := httptest.NewRecorder()
	am.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `marketsum_http_requests_total{method="GET",path="/health",status="200"} 1`)
}
