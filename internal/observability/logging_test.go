package observability

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestDefaultLogConfig(t *testing.T) {
	t.Parallel()

	cfg := DefaultLogConfig()

	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, "json", cfg.Format)
	assert.Equal(t, "stdout", cfg.Output)
}

func TestNewLogger(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		config  LogConfig
		wantErr bool
	}{
		{
			name:   "default config",
			config: DefaultLogConfig(),
		},
		{
			name:   "console format",
			config: LogConfig{Level: "debug", Format: "console", Output: "stdout"},
		},
		{
			name:   "stderr output",
			config: LogConfig{Level: "info", Format: "json", Output: "stderr"},
		},
		{
			name:   "empty format and output",
			config: LogConfig{Level: "warn"},
		},
		{
			name:    "invalid level",
			config:  LogConfig{Level: "invalid", Format: "json", Output: "stdout"},
			wantErr: true,
		},
		{
			name:    "invalid format",
			config:  LogConfig{Level: "info", Format: "text"},
			wantErr: true,
		},
		{
			name:    "invalid output",
			config:  LogConfig{Level: "info", Output: "/var/log/remap.log"},
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			logger, err := NewLogger(tt.config)

			if tt.wantErr {
				assert.Error(t, err)
				assert.Nil(t, logger)
			} else {
				assert.NoError(t, err)
				assert.NotNil(t, logger)
			}
		})
	}
}

func TestZapLogger_WithContextAddsFields(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.DebugLevel)
	logger := NewZapLogger(zap.New(core))

	ctx := context.Background()
	ctx = ContextWithRequestID(ctx, "req-123")
	ctx = ContextWithTraceID(ctx, "trace-456")
	ctx = ContextWithSpanID(ctx, "span-789")

	logger.WithContext(ctx).Info("remapped", Direction("outbound"), URL("/api/app/x"))

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "req-123", fields["request_id"])
	assert.Equal(t, "trace-456", fields["trace_id"])
	assert.Equal(t, "span-789", fields["span_id"])
	assert.Equal(t, "outbound", fields[KeyDirection])
	assert.Equal(t, "/api/app/x", fields[KeyURL])
}

func TestZapLogger_WithContext_EmptyContext(t *testing.T) {
	t.Parallel()

	logger := NewZapLogger(zap.NewNop())
	assert.Same(t, logger, logger.WithContext(context.Background()))
}

func TestZapLogger_LevelsAndWith(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	logger := NewZapLogger(zap.New(core)).With(String("component", "test"))

	logger.Debug("hidden")
	logger.Info("info")
	logger.Warn("warn")
	logger.Error("error", Error(assert.AnError))

	require.Equal(t, 3, logs.Len())
	for _, entry := range logs.All() {
		assert.Equal(t, "test", entry.ContextMap()["component"])
	}
	assert.NoError(t, logger.Sync())
}

func TestRequestIDFromContext(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "", RequestIDFromContext(context.Background()))
	assert.Equal(t, "abc", RequestIDFromContext(ContextWithRequestID(context.Background(), "abc")))
}

func TestExtractContextFields(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name          string
		ctx           context.Context
		expectedCount int
	}{
		{
			name:          "only request ID",
			ctx:           ContextWithRequestID(context.Background(), "req-123"),
			expectedCount: 1,
		},
		{
			name:          "no fields",
			ctx:           context.Background(),
			expectedCount: 0,
		},
		{
			name:          "empty values",
			ctx:           ContextWithRequestID(context.Background(), ""),
			expectedCount: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Len(t, extractContextFields(tt.ctx), tt.expectedCount)
		})
	}
}

func TestNewZapLogger_Nil(t *testing.T) {
	t.Parallel()

	logger := NewZapLogger(nil)
	require.NotNil(t, logger)
	logger.Info("discarded")
}

func TestNewLogger_Errors(t *testing.T) {
	t.Parallel()

	_, err := NewLogger(LogConfig{Level: "info", Format: "text"})
	assert.ErrorIs(t, err, ErrInvalidLogFormat)

	_, err = NewLogger(LogConfig{Level: "info", Output: "syslog"})
	assert.ErrorIs(t, err, ErrInvalidLogOutput)
}

func TestZapLogger_Named(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zapcore.InfoLevel)
	logger := NewZapLogger(zap.New(core)).Named("transport")

	logger.Info("passed through", Path("/public"))

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	assert.Equal(t, "transport", entry.LoggerName)
	assert.Equal(t, "/public", entry.ContextMap()[KeyPath])
}

func TestContextIDs_Accumulate(t *testing.T) {
	t.Parallel()

	ctx := ContextWithTraceID(context.Background(), "trace-1")
	ctx = ContextWithRequestID(ctx, "req-1")
	ctx = ContextWithRequestID(ctx, "req-2")

	assert.Equal(t, "req-2", RequestIDFromContext(ctx))
	assert.Equal(t, []Field{String(KeyRequestID, "req-2"), String(KeyTraceID, "trace-1")}, extractContextFields(ctx))
}
