package main

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/vyrodovalexey/fieldremap/internal/config"
	"github.com/vyrodovalexey/fieldremap/internal/observability"
)

const testConfigTemplate = `
apiVersion: fieldremap.io/v1
kind: RemapProxy
metadata:
  name: test
spec:
  fieldMapping:
    id_str: id
    name_str: name
    city_str: city
    uid: id
  patterns:
    - /api/app/**
  proxy:
    listen: 127.0.0.1:0
    upstream: %s
    shutdownTimeout: 2s
  circuitBreaker:
    enabled: true
    failureThreshold: 3
  observability:
    logging:
      level: warn
      format: console
    metrics:
      enabled: true
`

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "remapproxy.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))
	return path
}

func TestGetEnvOrDefault(t *testing.T) {
	t.Setenv("REMAP_TEST_SET", "value")
	t.Setenv("REMAP_TEST_EMPTY", "")

	assert.Equal(t, "value", getEnvOrDefault("REMAP_TEST_SET", "default"))
	assert.Equal(t, "default", getEnvOrDefault("REMAP_TEST_EMPTY", "default"))
	assert.Equal(t, "default", getEnvOrDefault("REMAP_TEST_UNSET_KEY", "default"))
}

func TestParseFlags(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		flags, err := parseFlags(nil)
		require.NoError(t, err)
		assert.Equal(t, "configs/remapproxy.yaml", flags.configPath)
		assert.Empty(t, flags.logLevel)
		assert.Empty(t, flags.logFormat)
		assert.False(t, flags.showVersion)
	})

	t.Run("environment", func(t *testing.T) {
		t.Setenv("REMAP_CONFIG_PATH", "/etc/remap.yaml")
		t.Setenv("REMAP_LOG_LEVEL", "debug")
		t.Setenv("REMAP_LOG_FORMAT", "console")

		flags, err := parseFlags(nil)
		require.NoError(t, err)
		assert.Equal(t, "/etc/remap.yaml", flags.configPath)
		assert.Equal(t, "debug", flags.logLevel)
		assert.Equal(t, "console", flags.logFormat)
	})

	t.Run("flags override environment", func(t *testing.T) {
		t.Setenv("REMAP_LOG_LEVEL", "debug")

		flags, err := parseFlags([]string{"-config", "x.yaml", "-log-level", "error", "-version"})
		require.NoError(t, err)
		assert.Equal(t, "x.yaml", flags.configPath)
		assert.Equal(t, "error", flags.logLevel)
		assert.True(t, flags.showVersion)
	})

	t.Run("unknown flag", func(t *testing.T) {
		_, err := parseFlags([]string{"-nope"})
		assert.Error(t, err)
	})
}

func TestPrintVersion(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	printVersion(&buf)
	assert.Contains(t, buf.String(), "fieldremap version "+version)
	assert.Contains(t, buf.String(), "Git commit: "+gitCommit)
}

func TestResolveLogConfig(t *testing.T) {
	t.Parallel()

	cfg := &config.Config{}
	cfg.Spec.Observability.Logging = config.LoggingConfig{Level: "warn", Format: "console"}

	tests := []struct {
		name       string
		flags      cliFlags
		cfg        *config.Config
		wantLevel  string
		wantFormat string
	}{
		{name: "defaults", wantLevel: "info", wantFormat: "json"},
		{name: "from config", cfg: cfg, wantLevel: "warn", wantFormat: "console"},
		{
			name:       "flags win",
			flags:      cliFlags{logLevel: "debug", logFormat: "json"},
			cfg:        cfg,
			wantLevel:  "debug",
			wantFormat: "json",
		},
		{name: "partial flags", flags: cliFlags{logLevel: "error"}, cfg: cfg, wantLevel: "error", wantFormat: "console"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := resolveLogConfig(tt.flags, tt.cfg)
			assert.Equal(t, tt.wantLevel, got.Level)
			assert.Equal(t, tt.wantFormat, got.Format)
		})
	}
}

func TestLoadConfig(t *testing.T) {
	t.Parallel()

	t.Run("valid", func(t *testing.T) {
		t.Parallel()
		cfg, err := loadConfig(writeConfig(t, fmt.Sprintf(testConfigTemplate, "http://localhost:9000")))
		require.NoError(t, err)
		assert.Equal(t, "test", cfg.Metadata.Name)
	})

	t.Run("missing file", func(t *testing.T) {
		t.Parallel()
		_, err := loadConfig(filepath.Join(t.TempDir(), "missing.yaml"))
		assert.Error(t, err)
	})

	t.Run("invalid", func(t *testing.T) {
		t.Parallel()
		_, err := loadConfig(writeConfig(t, fmt.Sprintf(testConfigTemplate, "not-a-url")))
		require.Error(t, err)
		assert.Contains(t, err.Error(), "spec.proxy.upstream")
	})
}

func TestNewApplication_WarnsOnCollisions(t *testing.T) {
	t.Parallel()

	cfg, err := loadConfig(writeConfig(t, fmt.Sprintf(testConfigTemplate, "http://localhost:9000")))
	require.NoError(t, err)

	core, logs := observer.New(zap.WarnLevel)
	app, err := newApplication(context.Background(), cfg, observability.NewZapLogger(zap.New(core)))
	require.NoError(t, err)
	require.NotNil(t, app.server)

	entries := logs.FilterMessage("ambiguous field mapping, the last source key in a body wins").All()
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].ContextMap()["detail"], `"id"`)
}

func TestRun_EndToEnd(t *testing.T) {
	t.Parallel()

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		if string(body) != `{"id":"7","name":"Ada","nested":{"city":"NY"}}` {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"id_str":"7","name_str":"Ada","nested":{"city_str":"NY"}}`)
	}))
	t.Cleanup(upstream.Close)

	cfg, err := loadConfig(writeConfig(t, fmt.Sprintf(testConfigTemplate, upstream.URL)))
	require.NoError(t, err)

	logger := observability.NopLogger()
	app, err := newApplication(context.Background(), cfg, logger)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- run(ctx, app, logger) }()

	require.Eventually(t, func() bool { return app.server.Addr() != "" }, 2*time.Second, 10*time.Millisecond)
	base := "http://" + app.server.Addr()

	resp, err := http.Post(base+"/api/app/profile", "application/json",
		strings.NewReader(`{"id_str":"7","name_str":"Ada","nested":{"city_str":"NY"}}`))
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, `{"id":"7","name":"Ada","nested":{"city":"NY"}}`, string(body))
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	resp, err = http.Get(base + "/metrics")
	require.NoError(t, err)
	metricsBody, err := io.ReadAll(resp.Body)
	_ = resp.Body.Close()
	require.NoError(t, err)
	assert.Contains(t, string(metricsBody), `fieldremap_remap_operations_total{direction="outbound",result="remapped"} 1`)
	assert.Contains(t, string(metricsBody), `fieldremap_remap_operations_total{direction="inbound",result="remapped"} 1`)
	assert.Contains(t, string(metricsBody), `fieldremap_upstream_circuit_breaker_state{name="upstream"} 0`)
	assert.Contains(t, string(metricsBody), "fieldremap_build_info")

	resp, err = http.Get(base + config.DefaultHealthPath)
	require.NoError(t, err)
	_ = resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}

func TestRun_ListenError(t *testing.T) {
	t.Parallel()

	cfg, err := loadConfig(writeConfig(t, fmt.Sprintf(testConfigTemplate, "http://localhost:9000")))
	require.NoError(t, err)
	cfg.Spec.Proxy.Listen = "256.0.0.1:bad"

	logger := observability.NopLogger()
	app, err := newApplication(context.Background(), cfg, logger)
	require.NoError(t, err)

	assert.Error(t, run(context.Background(), app, logger))
}
