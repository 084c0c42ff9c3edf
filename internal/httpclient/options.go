package httpclient

import (
	"net/http"
	"time"

	"github.com/vyrodovalexey/fieldremap/internal/observability"
)

// DefaultMaxBodySize is the largest body buffered for remapping. Larger
// bodies pass through untouched.
const DefaultMaxBodySize = 10 << 20 // 10MB

// URLKeyFunc returns the string matched against the endpoint patterns.
type URLKeyFunc func(r *http.Request) string

// PathKey matches on the request URL path. It is the default.
func PathKey(r *http.Request) string {
	if r.URL == nil {
		return ""
	}
	return r.URL.Path
}

// RequestURIKey matches on the path plus the raw query.
func RequestURIKey(r *http.Request) string {
	if r.URL == nil {
		return ""
	}
	return r.URL.RequestURI()
}

// FullURLKey matches on the complete request URL.
func FullURLKey(r *http.Request) string {
	if r.URL == nil {
		return ""
	}
	return r.URL.String()
}

type options struct {
	logger      observability.Logger
	metrics     *Metrics
	urlKey      URLKeyFunc
	maxBodySize int64
	base        http.RoundTripper
	timeout     time.Duration
}

func defaultOptions() options {
	return options{
		logger:      observability.NopLogger(),
		urlKey:      PathKey,
		maxBodySize: DefaultMaxBodySize,
		base:        http.DefaultTransport,
	}
}

func buildOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Option configures an Interceptor, a Transport or a client.
type Option func(*options)

// WithLogger sets the logger.
func WithLogger(logger observability.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}

// WithMetrics sets the metrics recorder.
func WithMetrics(m *Metrics) Option {
	return func(o *options) {
		o.metrics = m
	}
}

// WithURLKey sets how the matched URL string is derived from a request.
func WithURLKey(fn URLKeyFunc) Option {
	return func(o *options) {
		if fn != nil {
			o.urlKey = fn
		}
	}
}

// WithMaxBodySize sets the buffering limit for remapped bodies.
func WithMaxBodySize(n int64) Option {
	return func(o *options) {
		if n > 0 {
			o.maxBodySize = n
		}
	}
}

// WithBaseTransport sets the round tripper that performs the exchange.
func WithBaseTransport(rt http.RoundTripper) Option {
	return func(o *options) {
		if rt != nil {
			o.base = rt
		}
	}
}

// WithTimeout sets the overall client timeout used by NewClient.
func WithTimeout(d time.Duration) Option {
	return func(o *options) {
		o.timeout = d
	}
}
