package httpclient

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strconv"
	"strings"

	"github.com/vyrodovalexey/fieldremap/internal/jsonvalue"
	"github.com/vyrodovalexey/fieldremap/internal/observability"
	"github.com/vyrodovalexey/fieldremap/internal/policy"
	"github.com/vyrodovalexey/fieldremap/internal/remap"
)

// Transport is an http.RoundTripper that runs the Interceptor hooks around
// a base round tripper.
//
// Bodies are only rewritten when they are JSON (no Content-Type, or a
// JSON media type), carry no Content-Encoding and fit within the body size
// limit. Anything else, including malformed JSON, passes through byte for
// byte.
type Transport struct {
	interceptor *Interceptor
	base        http.RoundTripper
	urlKey      URLKeyFunc
	maxBodySize int64
	logger      observability.Logger
	metrics     *Metrics
}

// NewTransport creates a Transport for mapping and patterns.
func NewTransport(mapping remap.FieldMapping, patterns *policy.PatternSet, opts ...Option) *Transport {
	o := buildOptions(opts)
	return &Transport{
		interceptor: NewInterceptor(mapping, patterns, opts...),
		base:        o.base,
		urlKey:      o.urlKey,
		maxBodySize: o.maxBodySize,
		logger:      o.logger,
		metrics:     o.metrics,
	}
}

// Interceptor returns the hooks used by the transport.
func (t *Transport) Interceptor() *Interceptor {
	return t.interceptor
}

// RoundTrip implements http.RoundTripper.
func (t *Transport) RoundTrip(req *http.Request) (*http.Response, error) {
	key := t.urlKey(req)
	if !t.interceptor.ShouldRemap(key) {
		t.metrics.RecordOperation(DirectionOutbound, ResultSkipped)
		t.metrics.RecordOperation(DirectionInbound, ResultSkipped)
		return t.base.RoundTrip(req)
	}

	outReq, err := t.rewriteRequest(req, key)
	if err != nil {
		return nil, err
	}

	resp, err := t.base.RoundTrip(outReq)
	if err != nil {
		return nil, err
	}

	if err := t.rewriteResponse(req.Context(), resp, key); err != nil {
		return nil, err
	}
	return resp, nil
}

// rewriteRequest returns req, or a clone of it carrying the remapped body.
// The caller's request is never modified.
func (t *Transport) rewriteRequest(req *http.Request, key string) (*http.Request, error) {
	ctx := req.Context()

	if req.Body == nil || req.Body == http.NoBody {
		t.interceptor.Outbound(ctx, key, nil)
		return req, nil
	}

	if !t.eligible(req.Header) {
		t.metrics.RecordOperation(DirectionOutbound, ResultPassthrough)
		return req, nil
	}

	data, rest, err := t.readLimited(req.Body)
	if err != nil {
		_ = req.Body.Close()
		return nil, fmt.Errorf("reading request body: %w", err)
	}

	out := req.Clone(ctx)
	if rest != nil {
		t.logger.WithContext(ctx).Debug("request body exceeds remap limit, passing through",
			observability.URL(key),
			observability.Int64("limit", t.maxBodySize),
		)
		t.metrics.RecordOperation(DirectionOutbound, ResultPassthrough)
		out.Body = rest
		return out, nil
	}
	_ = req.Body.Close()

	newData := t.remapBytes(ctx, DirectionOutbound, key, data)
	out.Header.Del("Content-Length")
	out.ContentLength = int64(len(newData))
	if len(newData) == 0 {
		out.Body = http.NoBody
		out.GetBody = func() (io.ReadCloser, error) { return http.NoBody, nil }
		return out, nil
	}
	out.Body = io.NopCloser(bytes.NewReader(newData))
	out.GetBody = func() (io.ReadCloser, error) {
		return io.NopCloser(bytes.NewReader(newData)), nil
	}
	return out, nil
}

// rewriteResponse replaces resp.Body with the remapped body in place.
func (t *Transport) rewriteResponse(ctx context.Context, resp *http.Response, key string) error {
	if resp.Body == nil || resp.Body == http.NoBody {
		t.interceptor.Inbound(ctx, key, nil)
		return nil
	}

	if !t.eligible(resp.Header) {
		t.metrics.RecordOperation(DirectionInbound, ResultPassthrough)
		return nil
	}

	data, rest, err := t.readLimited(resp.Body)
	if err != nil {
		_ = resp.Body.Close()
		return fmt.Errorf("reading response body: %w", err)
	}

	if rest != nil {
		t.logger.WithContext(ctx).Debug("response body exceeds remap limit, passing through",
			observability.URL(key),
			observability.Int64("limit", t.maxBodySize),
		)
		t.metrics.RecordOperation(DirectionInbound, ResultPassthrough)
		resp.Body = rest
		return nil
	}
	_ = resp.Body.Close()

	newData := t.remapBytes(ctx, DirectionInbound, key, data)
	resp.Body = io.NopCloser(bytes.NewReader(newData))
	resp.ContentLength = int64(len(newData))
	if resp.Header.Get("Content-Length") != "" {
		resp.Header.Set("Content-Length", strconv.Itoa(len(newData)))
	}
	return nil
}

// remapBytes runs the hook on a buffered JSON body and returns the bytes
// to forward. Unparseable or unchanged bodies come back as data.
func (t *Transport) remapBytes(ctx context.Context, dir Direction, key string, data []byte) []byte {
	if len(data) == 0 {
		t.interceptor.apply(ctx, dir, key, nil)
		return data
	}

	body, err := jsonvalue.Parse(data)
	if err != nil {
		t.logger.WithContext(ctx).Debug("body is not JSON, passing through",
			observability.Direction(string(dir)),
			observability.URL(key),
			observability.Error(err),
		)
		t.metrics.RecordOperation(dir, ResultPassthrough)
		return data
	}

	out := t.interceptor.apply(ctx, dir, key, &body)
	if out == &body {
		return data
	}
	return jsonvalue.Encode(*out)
}

// readLimited reads up to maxBodySize bytes. When the body is larger,
// rest replays the consumed prefix followed by the unread remainder.
func (t *Transport) readLimited(body io.ReadCloser) (data []byte, rest io.ReadCloser, err error) {
	data, err = io.ReadAll(io.LimitReader(body, t.maxBodySize+1))
	if err != nil {
		return nil, nil, err
	}
	if int64(len(data)) > t.maxBodySize {
		return nil, &replayBody{
			Reader: io.MultiReader(bytes.NewReader(data), body),
			closer: body,
		}, nil
	}
	return data, nil, nil
}

// eligible reports whether headers allow the body to be rewritten.
func (t *Transport) eligible(h http.Header) bool {
	if enc := h.Get("Content-Encoding"); enc != "" && !strings.EqualFold(enc, "identity") {
		return false
	}
	return isJSONContentType(h.Get("Content-Type"))
}

// isJSONContentType accepts an empty type, application/json and any
// "+json" structured syntax suffix.
func isJSONContentType(contentType string) bool {
	if contentType == "" {
		return true
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return false
	}
	return mediaType == "application/json" || strings.HasSuffix(mediaType, "+json")
}

type replayBody struct {
	io.Reader
	closer io.Closer
}

func (b *replayBody) Close() error {
	return b.closer.Close()
}
