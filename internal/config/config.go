// Package config provides configuration loading and validation for the
// field remapping proxy.
package config

import (
	"time"

	"github.com/vyrodovalexey/fieldremap/internal/policy"
	"github.com/vyrodovalexey/fieldremap/internal/remap"
)

// Configuration identity.
const (
	APIVersionPrefix  = "fieldremap.io/"
	DefaultAPIVersion = APIVersionPrefix + "v1"
	KindRemapProxy    = "RemapProxy"
)

// Defaults applied by SetDefaults.
const (
	DefaultListenAddress   = ":8080"
	DefaultMaxBodySize     = 10 << 20 // 10MB
	DefaultRequestIDHeader = "X-Request-ID"
	DefaultMetricsPath     = "/metrics"
	DefaultHealthPath      = "/healthz"
	DefaultServiceName     = "fieldremap"
	DefaultReadTimeout     = 30 * time.Second
	DefaultWriteTimeout    = 60 * time.Second
	DefaultShutdownTimeout = 15 * time.Second

	DefaultCircuitBreakerMaxRequests = 1
	DefaultCircuitBreakerInterval    = 60 * time.Second
	DefaultCircuitBreakerTimeout     = 30 * time.Second
	DefaultCircuitBreakerThreshold   = 5
)

// Config is the root configuration document.
type Config struct {
	APIVersion string   `yaml:"apiVersion" json:"apiVersion"`
	Kind       string   `yaml:"kind" json:"kind"`
	Metadata   Metadata `yaml:"metadata" json:"metadata"`
	Spec       Spec     `yaml:"spec" json:"spec"`
}

// Metadata identifies the configuration.
type Metadata struct {
	Name   string            `yaml:"name" json:"name"`
	Labels map[string]string `yaml:"labels,omitempty" json:"labels,omitempty"`
}

// Spec holds the remapping tables and the proxy settings.
type Spec struct {
	// FieldMapping translates wire field names to application field names.
	FieldMapping map[string]string `yaml:"fieldMapping" json:"fieldMapping"`

	// Patterns are the allow-listed endpoint globs.
	Patterns []string `yaml:"patterns" json:"patterns"`

	Proxy          ProxyConfig          `yaml:"proxy" json:"proxy"`
	CircuitBreaker CircuitBreakerConfig `yaml:"circuitBreaker,omitempty" json:"circuitBreaker,omitempty"`
	Observability  ObservabilityConfig  `yaml:"observability,omitempty" json:"observability,omitempty"`
}

// ProxyConfig configures the reverse proxy in front of the upstream API.
type ProxyConfig struct {
	Listen          string   `yaml:"listen" json:"listen"`
	Upstream        string   `yaml:"upstream" json:"upstream"`
	MaxBodySize     int64    `yaml:"maxBodySize,omitempty" json:"maxBodySize,omitempty"`
	RequestIDHeader string   `yaml:"requestIDHeader,omitempty" json:"requestIDHeader,omitempty"`
	ReadTimeout     Duration `yaml:"readTimeout,omitempty" json:"readTimeout,omitempty"`
	WriteTimeout    Duration `yaml:"writeTimeout,omitempty" json:"writeTimeout,omitempty"`
	ShutdownTimeout Duration `yaml:"shutdownTimeout,omitempty" json:"shutdownTimeout,omitempty"`
}

// CircuitBreakerConfig configures the breaker around upstream calls.
type CircuitBreakerConfig struct {
	Enabled          bool     `yaml:"enabled" json:"enabled"`
	MaxRequests      uint32   `yaml:"maxRequests,omitempty" json:"maxRequests,omitempty"`
	Interval         Duration `yaml:"interval,omitempty" json:"interval,omitempty"`
	Timeout          Duration `yaml:"timeout,omitempty" json:"timeout,omitempty"`
	FailureThreshold uint32   `yaml:"failureThreshold,omitempty" json:"failureThreshold,omitempty"`
}

// ObservabilityConfig configures logging, metrics and tracing.
type ObservabilityConfig struct {
	Logging LoggingConfig `yaml:"logging,omitempty" json:"logging,omitempty"`
	Metrics MetricsConfig `yaml:"metrics,omitempty" json:"metrics,omitempty"`
	Tracing TracingConfig `yaml:"tracing,omitempty" json:"tracing,omitempty"`
}

// LoggingConfig configures the logger.
type LoggingConfig struct {
	Level  string `yaml:"level,omitempty" json:"level,omitempty"`
	Format string `yaml:"format,omitempty" json:"format,omitempty"`
}

// MetricsConfig configures the metrics endpoint.
type MetricsConfig struct {
	Enabled bool   `yaml:"enabled" json:"enabled"`
	Path    string `yaml:"path,omitempty" json:"path,omitempty"`
}

// TracingConfig configures OpenTelemetry tracing.
type TracingConfig struct {
	Enabled      bool    `yaml:"enabled" json:"enabled"`
	OTLPEndpoint string  `yaml:"otlpEndpoint,omitempty" json:"otlpEndpoint,omitempty"`
	SamplingRate float64 `yaml:"samplingRate,omitempty" json:"samplingRate,omitempty"`
	ServiceName  string  `yaml:"serviceName,omitempty" json:"serviceName,omitempty"`
}

// SetDefaults fills unset optional fields.
func (c *Config) SetDefaults() {
	if c.APIVersion == "" {
		c.APIVersion = DefaultAPIVersion
	}
	if c.Kind == "" {
		c.Kind = KindRemapProxy
	}

	p := &c.Spec.Proxy
	if p.Listen == "" {
		p.Listen = DefaultListenAddress
	}
	if p.MaxBodySize == 0 {
		p.MaxBodySize = DefaultMaxBodySize
	}
	if p.RequestIDHeader == "" {
		p.RequestIDHeader = DefaultRequestIDHeader
	}
	if p.ReadTimeout == 0 {
		p.ReadTimeout = Duration(DefaultReadTimeout)
	}
	if p.WriteTimeout == 0 {
		p.WriteTimeout = Duration(DefaultWriteTimeout)
	}
	if p.ShutdownTimeout == 0 {
		p.ShutdownTimeout = Duration(DefaultShutdownTimeout)
	}

	cb := &c.Spec.CircuitBreaker
	if cb.MaxRequests == 0 {
		cb.MaxRequests = DefaultCircuitBreakerMaxRequests
	}
	if cb.Interval == 0 {
		cb.Interval = Duration(DefaultCircuitBreakerInterval)
	}
	if cb.Timeout == 0 {
		cb.Timeout = Duration(DefaultCircuitBreakerTimeout)
	}
	if cb.FailureThreshold == 0 {
		cb.FailureThreshold = DefaultCircuitBreakerThreshold
	}

	o := &c.Spec.Observability
	if o.Logging.Level == "" {
		o.Logging.Level = "info"
	}
	if o.Logging.Format == "" {
		o.Logging.Format = "json"
	}
	if o.Metrics.Path == "" {
		o.Metrics.Path = DefaultMetricsPath
	}
	if o.Tracing.ServiceName == "" {
		o.Tracing.ServiceName = DefaultServiceName
	}
	if o.Tracing.Enabled && o.Tracing.SamplingRate == 0 {
		o.Tracing.SamplingRate = 1.0
	}
}

// FieldMapping builds the immutable mapping table from the configuration.
func (c *Config) FieldMapping() (remap.FieldMapping, error) {
	return remap.NewFieldMapping(c.Spec.FieldMapping)
}

// PatternSet compiles the configured endpoint patterns.
func (c *Config) PatternSet() (*policy.PatternSet, error) {
	return policy.NewPatternSet(c.Spec.Patterns...)
}
