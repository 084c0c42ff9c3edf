package httpclient

import (
	"errors"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func statusResponder(status *atomic.Int32, calls *atomic.Int32) http.RoundTripper {
	return roundTripFunc(func(r *http.Request) (*http.Response, error) {
		calls.Add(1)
		return &http.Response{
			StatusCode: int(status.Load()),
			Header:     http.Header{},
			Body:       io.NopCloser(strings.NewReader("")),
			Request:    r,
		}, nil
	})
}

func newBreakerRequest(t *testing.T) *http.Request {
	t.Helper()
	req, err := http.NewRequest(http.MethodGet, "http://upstream.test/api/app/x", nil)
	require.NoError(t, err)
	return req
}

func TestBreakerTransport_OpensAfterConsecutiveFailures(t *testing.T) {
	t.Parallel()

	var status, calls atomic.Int32
	status.Store(http.StatusServiceUnavailable)

	m := newTestMetrics()
	rt := NewBreakerTransport(statusResponder(&status, &calls), BreakerConfig{
		Name:             "test-upstream",
		MaxRequests:      1,
		Timeout:          time.Hour,
		FailureThreshold: 3,
	}, WithMetrics(m))

	for n := 0; n < 3; n++ {
		resp, err := rt.RoundTrip(newBreakerRequest(t))
		require.NoError(t, err, "5xx responses reach the caller")
		assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)
	}

	resp, err := rt.RoundTrip(newBreakerRequest(t))
	assert.Nil(t, resp)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(3), calls.Load())
	assert.Equal(t, 2.0, testutil.ToFloat64(m.breakerState.WithLabelValues("test-upstream")))
}

func TestBreakerTransport_SuccessResetsFailures(t *testing.T) {
	t.Parallel()

	var status, calls atomic.Int32
	rt := NewBreakerTransport(statusResponder(&status, &calls), BreakerConfig{FailureThreshold: 2, Timeout: time.Hour})

	for _, code := range []int32{500, 200, 500, 404, 500} {
		status.Store(code)
		_, err := rt.RoundTrip(newBreakerRequest(t))
		require.NoError(t, err)
	}
	assert.Equal(t, int32(5), calls.Load())
}

func TestBreakerTransport_TransportErrorsCount(t *testing.T) {
	t.Parallel()

	errDial := errors.New("dial failed")
	var calls atomic.Int32
	base := roundTripFunc(func(*http.Request) (*http.Response, error) {
		calls.Add(1)
		return nil, errDial
	})

	rt := NewBreakerTransport(base, BreakerConfig{FailureThreshold: 2, Timeout: time.Hour})

	for n := 0; n < 2; n++ {
		_, err := rt.RoundTrip(newBreakerRequest(t))
		assert.ErrorIs(t, err, errDial)
	}

	_, err := rt.RoundTrip(newBreakerRequest(t))
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.Equal(t, int32(2), calls.Load())
}

func TestBreakerTransport_HalfOpenRecovers(t *testing.T) {
	t.Parallel()

	var status, calls atomic.Int32
	status.Store(http.StatusBadGateway)

	m := newTestMetrics()
	rt := NewBreakerTransport(statusResponder(&status, &calls), BreakerConfig{
		Name:             "flaky",
		MaxRequests:      1,
		Timeout:          20 * time.Millisecond,
		FailureThreshold: 1,
	}, WithMetrics(m))

	_, err := rt.RoundTrip(newBreakerRequest(t))
	require.NoError(t, err)
	_, err = rt.RoundTrip(newBreakerRequest(t))
	require.ErrorIs(t, err, ErrCircuitOpen)

	status.Store(http.StatusOK)
	assert.Eventually(t, func() bool {
		resp, err := rt.RoundTrip(newBreakerRequest(t))
		return err == nil && resp.StatusCode == http.StatusOK
	}, time.Second, 10*time.Millisecond)
	assert.Equal(t, 0.0, testutil.ToFloat64(m.breakerState.WithLabelValues("flaky")))
}

func TestBreakerTransport_ClosesBodyWhenOpen(t *testing.T) {
	t.Parallel()

	var status, calls atomic.Int32
	status.Store(http.StatusInternalServerError)
	rt := NewBreakerTransport(statusResponder(&status, &calls), BreakerConfig{FailureThreshold: 1, Timeout: time.Hour})

	_, err := rt.RoundTrip(newBreakerRequest(t))
	require.NoError(t, err)

	body := &trackingBody{Reader: strings.NewReader(`{}`)}
	req, err := http.NewRequest(http.MethodPost, "http://upstream.test/api/app/x", body)
	require.NoError(t, err)

	_, err = rt.RoundTrip(req)
	assert.ErrorIs(t, err, ErrCircuitOpen)
	assert.True(t, body.closed)
}

func TestBreakerTransport_UnderRemapTransport(t *testing.T) {
	t.Parallel()

	var status, calls atomic.Int32
	status.Store(http.StatusInternalServerError)
	breaker := NewBreakerTransport(statusResponder(&status, &calls), BreakerConfig{FailureThreshold: 1, Timeout: time.Hour})
	client := NewClient(testMapping, testPatterns, WithBaseTransport(breaker))

	resp, err := client.Get("http://upstream.test/api/app/x")
	require.NoError(t, err)
	_ = readAll(t, resp)

	_, err = client.Get("http://upstream.test/api/app/x")
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrCircuitOpen)
}

type trackingBody struct {
	io.Reader
	closed bool
}

func (b *trackingBody) Close() error {
	b.closed = true
	return nil
}
