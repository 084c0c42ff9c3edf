package config

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/vyrodovalexey/fieldremap/internal/policy"
	"github.com/vyrodovalexey/fieldremap/internal/remap"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Path    string
	Message string
}

// Error implements the error interface.
func (e *ValidationError) Error() string {
	if e.Path != "" {
		return fmt.Sprintf("%s: %s", e.Path, e.Message)
	}
	return e.Message
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

// Error implements the error interface.
func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return "no validation errors"
	}
	if len(e) == 1 {
		return e[0].Error()
	}

	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("%d validation errors:\n", len(e)))
	for i, err := range e {
		sb.WriteString(fmt.Sprintf("  %d. %s\n", i+1, err.Error()))
	}
	return sb.String()
}

// HasErrors returns true if there are validation errors.
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// Validator validates remap proxy configuration.
type Validator struct {
	errors ValidationErrors
}

// NewValidator creates a new configuration validator.
func NewValidator() *Validator {
	return &Validator{
		errors: make(ValidationErrors, 0),
	}
}

// ValidateConfig validates a configuration.
func ValidateConfig(cfg *Config) error {
	return NewValidator().Validate(cfg)
}

// Validate validates the configuration and returns any errors. Patterns
// are compiled here so that bad globs fail at startup.
func (v *Validator) Validate(cfg *Config) error {
	v.errors = make(ValidationErrors, 0)

	if cfg == nil {
		v.addError("", "configuration is nil")
		return v.errors
	}

	v.validateRoot(cfg)
	v.validateFieldMapping(cfg.Spec.FieldMapping)
	v.validatePatterns(cfg.Spec.Patterns)
	v.validateProxy(&cfg.Spec.Proxy)
	v.validateCircuitBreaker(&cfg.Spec.CircuitBreaker)
	v.validateObservability(&cfg.Spec.Observability)

	if v.errors.HasErrors() {
		return v.errors
	}
	return nil
}

func (v *Validator) validateRoot(cfg *Config) {
	if cfg.APIVersion == "" {
		v.addError("apiVersion", "apiVersion is required")
	} else if !strings.HasPrefix(cfg.APIVersion, APIVersionPrefix) {
		v.addError("apiVersion", fmt.Sprintf("apiVersion must start with '%s'", APIVersionPrefix))
	}

	if cfg.Kind != KindRemapProxy {
		v.addError("kind", fmt.Sprintf("kind must be '%s'", KindRemapProxy))
	}

	if cfg.Metadata.Name == "" {
		v.addError("metadata.name", "name is required")
	}
}

func (v *Validator) validateFieldMapping(mapping map[string]string) {
	for from, to := range mapping {
		if from == "" {
			v.addError("spec.fieldMapping", "source field name must not be empty")
		}
		if to == "" {
			v.addError(fmt.Sprintf("spec.fieldMapping.%s", from), "target field name must not be empty")
		}
	}
}

func (v *Validator) validatePatterns(patterns []string) {
	if len(patterns) == 0 {
		v.addError("spec.patterns", "at least one pattern is required")
		return
	}

	// Compile one by one so every bad pattern is reported.
	for i, p := range patterns {
		if _, err := policy.NewPatternSet(p); err != nil {
			var perr *policy.PatternError
			if errors.As(err, &perr) {
				err = perr.Cause
			}
			v.addError(fmt.Sprintf("spec.patterns[%d]", i), fmt.Sprintf("invalid pattern %q: %v", p, err))
		}
	}
}

func (v *Validator) validateProxy(p *ProxyConfig) {
	if p.Upstream == "" {
		v.addError("spec.proxy.upstream", "upstream is required")
	} else if u, err := url.Parse(p.Upstream); err != nil || u.Scheme == "" || u.Host == "" {
		v.addError("spec.proxy.upstream", "upstream must be an absolute http(s) URL")
	} else if u.Scheme != "http" && u.Scheme != "https" {
		v.addError("spec.proxy.upstream", "upstream scheme must be http or https")
	}

	if p.MaxBodySize < 0 {
		v.addError("spec.proxy.maxBodySize", "maxBodySize must not be negative")
	}
	if p.ReadTimeout < 0 {
		v.addError("spec.proxy.readTimeout", "readTimeout must not be negative")
	}
	if p.WriteTimeout < 0 {
		v.addError("spec.proxy.writeTimeout", "writeTimeout must not be negative")
	}
}

func (v *Validator) validateCircuitBreaker(cb *CircuitBreakerConfig) {
	if !cb.Enabled {
		return
	}
	if cb.Timeout < 0 {
		v.addError("spec.circuitBreaker.timeout", "timeout must not be negative")
	}
	if cb.Interval < 0 {
		v.addError("spec.circuitBreaker.interval", "interval must not be negative")
	}
}

func (v *Validator) validateObservability(o *ObservabilityConfig) {
	switch o.Logging.Format {
	case "", "json", "console":
	default:
		v.addError("spec.observability.logging.format", "format must be 'json' or 'console'")
	}

	if o.Metrics.Enabled && !strings.HasPrefix(o.Metrics.Path, "/") {
		v.addError("spec.observability.metrics.path", "path must start with '/'")
	}

	if o.Tracing.SamplingRate < 0 || o.Tracing.SamplingRate > 1 {
		v.addError("spec.observability.tracing.samplingRate", "samplingRate must be between 0 and 1")
	}
}

// addError adds a validation error.
func (v *Validator) addError(path, message string) {
	v.errors = append(v.errors, ValidationError{Path: path, Message: message})
}

// CollisionWarnings describes field mapping entries whose targets collide.
// Colliding entries are legal; an object holding several of the sources
// keeps only the value of the last one.
func CollisionWarnings(mapping remap.FieldMapping) []string {
	collisions := mapping.Collisions()
	if len(collisions) == 0 {
		return nil
	}

	out := make([]string, 0, len(collisions))
	for _, c := range collisions {
		out = append(out, fmt.Sprintf("fields %s all map to %q", strings.Join(c.Sources, ", "), c.Target))
	}
	return out
}
