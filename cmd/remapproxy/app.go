package main

import (
	"context"
	"fmt"
	"net/http"

	"github.com/vyrodovalexey/fieldremap/internal/config"
	"github.com/vyrodovalexey/fieldremap/internal/health"
	"github.com/vyrodovalexey/fieldremap/internal/httpclient"
	"github.com/vyrodovalexey/fieldremap/internal/observability"
	"github.com/vyrodovalexey/fieldremap/internal/proxy"
)

// breakerName labels the upstream circuit breaker in logs and metrics.
const breakerName = "upstream"

// application holds all application components.
type application struct {
	server  *proxy.Server
	metrics *observability.Metrics
	tracer  *observability.Tracer
	config  *config.Config
}

// newApplication wires the proxy from a validated configuration.
func newApplication(ctx context.Context, cfg *config.Config, logger observability.Logger) (*application, error) {
	mapping, err := cfg.FieldMapping()
	if err != nil {
		return nil, fmt.Errorf("building field mapping: %w", err)
	}
	patterns, err := cfg.PatternSet()
	if err != nil {
		return nil, fmt.Errorf("compiling endpoint patterns: %w", err)
	}
	for _, warning := range config.CollisionWarnings(mapping) {
		logger.Warn("ambiguous field mapping, the last source key in a body wins",
			observability.String("detail", warning),
		)
	}

	obs := cfg.Spec.Observability
	tracer, err := observability.NewTracer(ctx, observability.TracerConfig{
		ServiceName:  obs.Tracing.ServiceName,
		OTLPEndpoint: obs.Tracing.OTLPEndpoint,
		SamplingRate: obs.Tracing.SamplingRate,
		Enabled:      obs.Tracing.Enabled,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing tracer: %w", err)
	}

	metrics := observability.NewMetrics(observability.DefaultNamespace)
	metrics.SetBuildInfo(version, gitCommit, buildTime)
	remapMetrics := httpclient.NewMetrics(metrics.Namespace(), metrics.Registry())
	remapMetrics.Init()

	remapLogger := logger.Named("remap")
	proxyLogger := logger.Named("proxy")

	transport := httpclient.NewTransport(mapping, patterns,
		httpclient.WithBaseTransport(upstreamTransport(cfg, remapLogger, remapMetrics)),
		httpclient.WithLogger(remapLogger),
		httpclient.WithMetrics(remapMetrics),
		httpclient.WithMaxBodySize(cfg.Spec.Proxy.MaxBodySize),
	)

	rp, err := proxy.NewReverseProxy(cfg.Spec.Proxy.Upstream,
		proxy.WithTransport(transport),
		proxy.WithProxyLogger(proxyLogger),
		proxy.WithRequestIDHeader(cfg.Spec.Proxy.RequestIDHeader),
	)
	if err != nil {
		return nil, err
	}

	checker := health.NewChecker(version)
	checker.RegisterCheck("remap", func(context.Context) health.Check {
		return health.Check{
			Status:  health.StatusHealthy,
			Message: fmt.Sprintf("%d fields, %d patterns", mapping.Len(), patterns.Len()),
		}
	})

	opts := []proxy.ServerOption{
		proxy.WithServerLogger(proxyLogger),
		proxy.WithHealthChecker(checker),
	}
	if obs.Metrics.Enabled {
		opts = append(opts,
			proxy.WithServerMetrics(proxy.NewServerMetrics(metrics.Namespace(), metrics.Registry())),
			proxy.WithMetricsHandler(metrics.Handler()),
		)
	}

	server := proxy.NewServer(proxy.ServerConfig{
		Listen:          cfg.Spec.Proxy.Listen,
		ReadTimeout:     cfg.Spec.Proxy.ReadTimeout.Duration(),
		WriteTimeout:    cfg.Spec.Proxy.WriteTimeout.Duration(),
		RequestIDHeader: cfg.Spec.Proxy.RequestIDHeader,
		HealthPath:      config.DefaultHealthPath,
		MetricsPath:     obs.Metrics.Path,
		ServiceName:     obs.Tracing.ServiceName,
	}, rp, opts...)

	logger.Info("configuration loaded",
		observability.String("name", cfg.Metadata.Name),
		observability.String("upstream", cfg.Spec.Proxy.Upstream),
		observability.Int("fields", mapping.Len()),
		observability.Strings("patterns", patterns.Patterns()),
		observability.Bool("circuit_breaker", cfg.Spec.CircuitBreaker.Enabled),
		observability.Bool("tracing", tracer.Enabled()),
	)

	return &application{
		server:  server,
		metrics: metrics,
		tracer:  tracer,
		config:  cfg,
	}, nil
}

// upstreamTransport returns the round tripper performing upstream calls,
// wrapped in a circuit breaker when enabled.
func upstreamTransport(cfg *config.Config, logger observability.Logger, m *httpclient.Metrics) http.RoundTripper {
	base := http.DefaultTransport.(*http.Transport).Clone()

	cb := cfg.Spec.CircuitBreaker
	if !cb.Enabled {
		return base
	}
	return httpclient.NewBreakerTransport(base, httpclient.BreakerConfig{
		Name:             breakerName,
		MaxRequests:      cb.MaxRequests,
		Interval:         cb.Interval.Duration(),
		Timeout:          cb.Timeout.Duration(),
		FailureThreshold: cb.FailureThreshold,
	}, httpclient.WithLogger(logger), httpclient.WithMetrics(m))
}
