package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndependentRegistries(t *testing.T) {
	a := New()
	b := New()

	a.IngestTotal.WithLabelValues(ResultSuccess, "").Inc()

	assert.Equal(t, 1.0, testutil.ToFloat64(a.IngestTotal.WithLabelValues(ResultSuccess, "")))
	assert.Equal(t, 0.0, testutil.ToFloat64(b.IngestTotal.WithLabelValues(ResultSuccess, "")))
}

func TestHandlerExposesMetrics(t *testing.T) {
	m := New()
	m.QueryTotal.WithLabelValues("hit").Inc()
	m.LatestRecordID.Set(42)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), `foodanalysis_latest_queries_total{result="hit"} 1`)
	assert.Contains(t, string(body), "foodanalysis_latest_record_id 42")
}
