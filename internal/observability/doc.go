// Package observability provides logging, metrics, and tracing
// functionality for the remapping client and proxy.
//
// # Logging
//
// The Logger interface provides structured logging backed by zap:
//
//	logger, err := observability.NewLogger(observability.DefaultLogConfig())
//	if err != nil {
//	    log.Fatal(err)
//	}
//	defer logger.Sync()
//
//	logger.Info("body remapped",
//	    observability.Direction("inbound"),
//	    observability.Int("bytes", 512),
//	)
//
// # Metrics
//
// NewMetrics builds a dedicated Prometheus registry; component metrics
// register into it and Handler serves it.
//
// # Tracing
//
// NewTracer installs an OpenTelemetry tracer provider with an OTLP gRPC
// exporter when enabled.
package observability
