package httpclient

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewClient(t *testing.T) {
	t.Parallel()

	a := NewClient(testMapping, testPatterns)
	b := NewClient(testMapping, testPatterns, WithTimeout(5*time.Second))

	require.IsType(t, &Transport{}, a.Transport)
	assert.NotSame(t, a.Transport, b.Transport)
	assert.Zero(t, a.Timeout)
	assert.Equal(t, 5*time.Second, b.Timeout)

	tr := a.Transport.(*Transport)
	assert.True(t, tr.Interceptor().ShouldRemap("/api/app/profile"))
	assert.False(t, tr.Interceptor().ShouldRemap("/health"))
}

func TestNewClient_Timeout(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	t.Cleanup(func() {
		close(release)
		srv.Close()
	})

	client := NewClient(testMapping, testPatterns, WithTimeout(50*time.Millisecond))
	_, err := client.Get(srv.URL + "/api/app/slow")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "Client.Timeout")
}

func TestOptions_IgnoreInvalidValues(t *testing.T) {
	t.Parallel()

	o := buildOptions([]Option{
		WithLogger(nil),
		WithURLKey(nil),
		WithMaxBodySize(-1),
		WithBaseTransport(nil),
	})

	assert.NotNil(t, o.logger)
	assert.NotNil(t, o.urlKey)
	assert.Equal(t, int64(DefaultMaxBodySize), o.maxBodySize)
	assert.Equal(t, http.DefaultTransport, o.base)
}

func TestMetrics_NilSafe(t *testing.T) {
	t.Parallel()

	var m *Metrics
	assert.NotPanics(t, func() {
		m.Init()
		m.RecordOperation(DirectionOutbound, ResultRemapped)
		m.ObserveDuration(DirectionInbound, time.Millisecond)
		m.SetBreakerState("x", 1)
	})
}

func TestMetrics_InitCreatesSeries(t *testing.T) {
	t.Parallel()

	m := newTestMetrics()
	m.Init()

	assert.Equal(t, 10, testutil.CollectAndCount(m.operationsTotal))
	assert.Equal(t, 2, testutil.CollectAndCount(m.operationDuration))
	assert.Equal(t, 0.0, testutil.ToFloat64(m.operationsTotal.WithLabelValues("inbound", ResultRemapped)))
}

func TestMetrics_UnregisteredWithNilRegisterer(t *testing.T) {
	t.Parallel()

	a := NewMetrics("", nil)
	b := NewMetrics("", nil)
	a.RecordOperation(DirectionOutbound, ResultRemapped)
	b.RecordOperation(DirectionOutbound, ResultRemapped)
	assert.Equal(t, 1.0, testutil.ToFloat64(a.operationsTotal.WithLabelValues("outbound", ResultRemapped)))
}
