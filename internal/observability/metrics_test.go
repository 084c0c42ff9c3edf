package observability

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewMetrics(t *testing.T) {
	t.Parallel()

	m := NewMetrics("")
	assert.Equal(t, DefaultNamespace, m.Namespace())
	require.NotNil(t, m.Registry())

	m.SetBuildInfo("1.0.0", "abc", "now")
	assert.Equal(t, float64(1), testutil.ToFloat64(m.buildInfo.WithLabelValues("1.0.0", "abc", "now")))
}

func TestMetrics_Handler(t *testing.T) {
	t.Parallel()

	m := NewMetrics("test")
	m.SetBuildInfo("dev", "none", "unknown")

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "test_build_info")
	assert.Contains(t, rec.Body.String(), "test_start_time_seconds")
}
