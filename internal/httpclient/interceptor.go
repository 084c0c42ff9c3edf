// Package httpclient attaches field remapping to HTTP exchanges.
//
// An Interceptor holds the two hooks: Outbound rewrites a request body
// before it is sent and Inbound rewrites a response body before the caller
// sees it. Both apply only when the request URL matches the allow-list.
// Transport runs the hooks inside an http.RoundTripper and NewClient
// builds an *http.Client around it.
package httpclient

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"github.com/vyrodovalexey/fieldremap/internal/jsonvalue"
	"github.com/vyrodovalexey/fieldremap/internal/observability"
	"github.com/vyrodovalexey/fieldremap/internal/policy"
	"github.com/vyrodovalexey/fieldremap/internal/remap"
)

// remapTracer is the OTEL tracer used for remap hook spans.
var remapTracer = otel.Tracer("fieldremap/httpclient")

// Direction tells which side of an exchange a hook runs on.
type Direction string

const (
	// DirectionOutbound is the request side.
	DirectionOutbound Direction = "outbound"
	// DirectionInbound is the response side.
	DirectionInbound Direction = "inbound"
)

// Interceptor applies a FieldMapping to bodies of allow-listed exchanges.
// It is safe for concurrent use; its tables are never modified.
type Interceptor struct {
	mapping  remap.FieldMapping
	patterns *policy.PatternSet
	logger   observability.Logger
	metrics  *Metrics
}

// NewInterceptor creates an Interceptor. A nil pattern set allows nothing.
func NewInterceptor(mapping remap.FieldMapping, patterns *policy.PatternSet, opts ...Option) *Interceptor {
	o := buildOptions(opts)
	return &Interceptor{
		mapping:  mapping,
		patterns: patterns,
		logger:   o.logger,
		metrics:  o.metrics,
	}
}

// ShouldRemap reports whether exchanges for url are remapped.
func (i *Interceptor) ShouldRemap(url string) bool {
	return policy.ShouldRemap(url, i.patterns)
}

// Outbound is the request hook. body is nil when the request has none.
// It returns the body to send, which is body itself when nothing applies.
func (i *Interceptor) Outbound(ctx context.Context, url string, body *jsonvalue.Value) *jsonvalue.Value {
	return i.apply(ctx, DirectionOutbound, url, body)
}

// Inbound is the response hook, keyed by the originating request URL.
func (i *Interceptor) Inbound(ctx context.Context, url string, body *jsonvalue.Value) *jsonvalue.Value {
	return i.apply(ctx, DirectionInbound, url, body)
}

func (i *Interceptor) apply(
	ctx context.Context,
	dir Direction,
	url string,
	body *jsonvalue.Value,
) *jsonvalue.Value {
	_, span := remapTracer.Start(ctx, "remap."+string(dir),
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("remap.url", url),
		),
	)
	defer span.End()

	if !i.ShouldRemap(url) {
		span.SetAttributes(attribute.Bool("remap.matched", false))
		i.metrics.RecordOperation(dir, ResultSkipped)
		return body
	}
	span.SetAttributes(attribute.Bool("remap.matched", true))

	if body == nil {
		i.metrics.RecordOperation(dir, ResultEmpty)
		return nil
	}

	start := time.Now()
	out := remap.Remap(*body, i.mapping)
	i.metrics.ObserveDuration(dir, time.Since(start))

	changed := !out.Equal(*body)
	span.SetAttributes(
		attribute.Bool("remap.changed", changed),
		attribute.String("remap.body_kind", body.Kind().String()),
	)

	if !changed {
		i.metrics.RecordOperation(dir, ResultUnchanged)
		return body
	}

	i.metrics.RecordOperation(dir, ResultRemapped)
	i.logger.WithContext(ctx).Debug("remapped body fields",
		observability.Direction(string(dir)),
		observability.URL(url),
	)
	return &out
}
