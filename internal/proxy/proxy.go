package proxy

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httputil"
	"net/url"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"

	"github.com/vyrodovalexey/fieldremap/internal/httpclient"
	"github.com/vyrodovalexey/fieldremap/internal/observability"
)

// hopHeaders are headers that should not be forwarded.
var hopHeaders = []string{
	"Connection",
	"Proxy-Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
}

// ReverseProxy forwards requests to a single upstream.
type ReverseProxy struct {
	target          *url.URL
	logger          observability.Logger
	transport       http.RoundTripper
	requestIDHeader string
	flushInterval   time.Duration
	proxy           *httputil.ReverseProxy
}

// ProxyOption is a functional option for configuring the proxy.
type ProxyOption func(*ReverseProxy)

// WithProxyLogger sets the logger for the proxy.
func WithProxyLogger(logger observability.Logger) ProxyOption {
	return func(p *ReverseProxy) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// WithTransport sets the round tripper used for upstream calls.
func WithTransport(transport http.RoundTripper) ProxyOption {
	return func(p *ReverseProxy) {
		p.transport = transport
	}
}

// WithRequestIDHeader sets the header carrying the request ID upstream.
func WithRequestIDHeader(header string) ProxyOption {
	return func(p *ReverseProxy) {
		if header != "" {
			p.requestIDHeader = header
		}
	}
}

// WithFlushInterval sets the flush interval for streaming responses.
func WithFlushInterval(interval time.Duration) ProxyOption {
	return func(p *ReverseProxy) {
		p.flushInterval = interval
	}
}

// NewReverseProxy creates a proxy for an absolute http or https upstream.
// A path on the upstream URL is prefixed to every forwarded path.
func NewReverseProxy(upstream string, opts ...ProxyOption) (*ReverseProxy, error) {
	target, err := url.Parse(upstream)
	if err != nil {
		return nil, &ProxyError{
			Op:      "parse_upstream",
			Target:  upstream,
			Message: "invalid upstream URL",
			Cause:   errors.Join(ErrInvalidUpstream, err),
		}
	}
	if target.Scheme != "http" && target.Scheme != "https" {
		return nil, NewInvalidUpstreamError(upstream, "scheme must be http or https")
	}
	if target.Host == "" {
		return nil, NewInvalidUpstreamError(upstream, "host is required")
	}

	p := &ReverseProxy{
		target:          target,
		logger:          observability.NopLogger(),
		requestIDHeader: "X-Request-ID",
		flushInterval:   -1, // Immediate flush
	}
	for _, opt := range opts {
		opt(p)
	}

	p.proxy = &httputil.ReverseProxy{
		Director:      p.director,
		Transport:     p.transport,
		FlushInterval: p.flushInterval,
		ErrorHandler:  p.errorHandler,
	}
	return p, nil
}

// Target returns the upstream URL.
func (p *ReverseProxy) Target() *url.URL {
	u := *p.target
	return &u
}

// ServeHTTP implements http.Handler.
func (p *ReverseProxy) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	p.proxy.ServeHTTP(w, r)
}

// director rewrites the outgoing request to target the upstream.
func (p *ReverseProxy) director(req *http.Request) {
	ctx := req.Context()
	forwardedHost := req.Host

	req.URL.Scheme = p.target.Scheme
	req.URL.Host = p.target.Host
	req.URL.Path, req.URL.RawPath = joinURLPath(p.target, req.URL)
	switch {
	case p.target.RawQuery == "":
	case req.URL.RawQuery == "":
		req.URL.RawQuery = p.target.RawQuery
	default:
		req.URL.RawQuery = p.target.RawQuery + "&" + req.URL.RawQuery
	}

	for _, h := range hopHeaders {
		req.Header.Del(h)
	}
	// The upstream transport negotiates compression itself and hands back
	// decoded bodies, which the remap transport needs to rewrite them.
	req.Header.Del("Accept-Encoding")

	if req.TLS != nil {
		req.Header.Set("X-Forwarded-Proto", "https")
	} else {
		req.Header.Set("X-Forwarded-Proto", "http")
	}
	req.Header.Set("X-Forwarded-Host", forwardedHost)

	if requestID := observability.RequestIDFromContext(ctx); requestID != "" {
		req.Header.Set(p.requestIDHeader, requestID)
	}
	otel.GetTextMapPropagator().Inject(ctx, propagation.HeaderCarrier(req.Header))

	req.Host = p.target.Host
}

// errorHandler answers with a JSON error matching the failure.
func (p *ReverseProxy) errorHandler(w http.ResponseWriter, r *http.Request, err error) {
	status, body := http.StatusBadGateway, `{"error":"bad gateway","message":"failed to proxy request"}`
	switch {
	case errors.Is(err, httpclient.ErrCircuitOpen):
		status, body = http.StatusServiceUnavailable,
			`{"error":"service unavailable","message":"upstream circuit breaker open"}`
	case errors.Is(err, context.DeadlineExceeded):
		status, body = http.StatusGatewayTimeout, `{"error":"gateway timeout","message":"upstream request timed out"}`
	case errors.Is(err, context.Canceled):
		// The client went away; nobody reads the answer.
		p.logger.WithContext(r.Context()).Debug("client canceled request",
			observability.Path(r.URL.Path),
		)
		w.WriteHeader(499)
		return
	}

	p.logger.WithContext(r.Context()).Error("proxy error",
		observability.Path(r.URL.Path),
		observability.String("method", r.Method),
		observability.Int("status", status),
		observability.Error(err),
	)

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = io.WriteString(w, body)
}

// joinURLPath prefixes the request path with the upstream base path.
func joinURLPath(base, req *url.URL) (path, rawpath string) {
	if base.Path == "" || base.Path == "/" {
		return req.Path, req.RawPath
	}
	if base.RawPath == "" && req.RawPath == "" {
		return singleJoiningSlash(base.Path, req.Path), ""
	}
	return singleJoiningSlash(base.Path, req.Path), singleJoiningSlash(base.EscapedPath(), req.EscapedPath())
}

func singleJoiningSlash(a, b string) string {
	aslash := strings.HasSuffix(a, "/")
	bslash := strings.HasPrefix(b, "/")
	switch {
	case aslash && bslash:
		return a + b[1:]
	case !aslash && !bslash:
		return a + "/" + b
	}
	return a + b
}
