package httpclient

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/sony/gobreaker"

	"github.com/vyrodovalexey/fieldremap/internal/observability"
)

// ErrCircuitOpen is returned by a breaker transport that rejects a request.
var ErrCircuitOpen = errors.New("upstream circuit breaker open")

// errUpstreamFailure marks a 5xx response as a breaker failure.
var errUpstreamFailure = errors.New("upstream server error")

// BreakerConfig configures a circuit breaker round tripper.
type BreakerConfig struct {
	Name             string
	MaxRequests      uint32
	Interval         time.Duration
	Timeout          time.Duration
	FailureThreshold uint32
}

type breakerTransport struct {
	next    http.RoundTripper
	cb      *gobreaker.CircuitBreaker
	name    string
	logger  observability.Logger
	metrics *Metrics
}

// NewBreakerTransport wraps next with a circuit breaker. Transport errors
// and 5xx responses count as failures; the breaker opens after
// FailureThreshold consecutive failures.
func NewBreakerTransport(next http.RoundTripper, cfg BreakerConfig, opts ...Option) http.RoundTripper {
	o := buildOptions(opts)
	if next == nil {
		next = http.DefaultTransport
	}
	if cfg.Name == "" {
		cfg.Name = "upstream"
	}
	threshold := cfg.FailureThreshold
	if threshold == 0 {
		threshold = 5
	}

	bt := &breakerTransport{
		next:    next,
		name:    cfg.Name,
		logger:  o.logger,
		metrics: o.metrics,
	}

	bt.cb = gobreaker.NewCircuitBreaker(gobreaker.Settings{
		Name:        cfg.Name,
		MaxRequests: cfg.MaxRequests,
		Interval:    cfg.Interval,
		Timeout:     cfg.Timeout,
		ReadyToTrip: func(counts gobreaker.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		OnStateChange: func(name string, from gobreaker.State, to gobreaker.State) {
			bt.logger.Warn("circuit breaker state change",
				observability.String("name", name),
				observability.String("from", from.String()),
				observability.String("to", to.String()),
			)
			bt.metrics.SetBreakerState(name, breakerStateValue(to))
		},
	})
	bt.metrics.SetBreakerState(cfg.Name, breakerStateValue(gobreaker.StateClosed))

	return bt
}

// RoundTrip implements http.RoundTripper.
func (b *breakerTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	result, err := b.cb.Execute(func() (interface{}, error) {
		resp, err := b.next.RoundTrip(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= http.StatusInternalServerError {
			return resp, errUpstreamFailure
		}
		return resp, nil
	})

	switch {
	case errors.Is(err, gobreaker.ErrOpenState), errors.Is(err, gobreaker.ErrTooManyRequests):
		if req.Body != nil {
			_ = req.Body.Close()
		}
		return nil, fmt.Errorf("%w: %s: %v", ErrCircuitOpen, b.name, err)
	case errors.Is(err, errUpstreamFailure):
		// The 5xx response still goes back to the caller.
		return result.(*http.Response), nil
	case err != nil:
		return nil, err
	}
	return result.(*http.Response), nil
}

func breakerStateValue(s gobreaker.State) int {
	switch s {
	case gobreaker.StateHalfOpen:
		return 1
	case gobreaker.StateOpen:
		return 2
	default:
		return 0
	}
}
