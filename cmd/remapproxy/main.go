// Package main is the entry point for the field remapping proxy.
package main

import (
	"context"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/vyrodovalexey/fieldremap/internal/config"
	"github.com/vyrodovalexey/fieldremap/internal/observability"
)

// Version information (set at build time).
var (
	version   = "dev"
	buildTime = "unknown"
	gitCommit = "unknown"
)

// cliFlags holds command line flags.
type cliFlags struct {
	configPath  string
	logLevel    string
	logFormat   string
	showVersion bool
}

func main() {
	flags, err := parseFlags(os.Args[1:])
	if err != nil {
		os.Exit(2)
	}

	if flags.showVersion {
		printVersion(os.Stdout)
		return
	}

	logger := initLogger(resolveLogConfig(flags, nil))

	cfg, err := loadConfig(flags.configPath)
	if err != nil {
		logger.Fatal("failed to load configuration",
			observability.String("config", flags.configPath),
			observability.Error(err),
		)
	}

	// Configuration may carry its own logging settings; flags win.
	logger = initLogger(resolveLogConfig(flags, cfg))
	defer func() { _ = logger.Sync() }()

	logger.Info("starting fieldremap",
		observability.String("version", version),
		observability.String("config", flags.configPath),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app, err := newApplication(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to initialize", observability.Error(err))
	}

	if err := run(ctx, app, logger); err != nil {
		logger.Fatal("proxy failed", observability.Error(err))
	}
}

// parseFlags parses command line flags.
func parseFlags(args []string) (cliFlags, error) {
	fs := flag.NewFlagSet("remapproxy", flag.ContinueOnError)

	var flags cliFlags
	fs.StringVar(&flags.configPath, "config", getEnvOrDefault("REMAP_CONFIG_PATH", "configs/remapproxy.yaml"),
		"Path to configuration file")
	fs.StringVar(&flags.logLevel, "log-level", getEnvOrDefault("REMAP_LOG_LEVEL", ""),
		"Log level (debug, info, warn, error); overrides the configuration")
	fs.StringVar(&flags.logFormat, "log-format", getEnvOrDefault("REMAP_LOG_FORMAT", ""),
		"Log format (json, console); overrides the configuration")
	fs.BoolVar(&flags.showVersion, "version", false, "Show version information")

	if err := fs.Parse(args); err != nil {
		return cliFlags{}, err
	}
	return flags, nil
}

// printVersion prints version information.
func printVersion(w io.Writer) {
	_, _ = fmt.Fprintf(w, "fieldremap version %s\n", version)
	_, _ = fmt.Fprintf(w, "  Build time: %s\n", buildTime)
	_, _ = fmt.Fprintf(w, "  Git commit: %s\n", gitCommit)
}

// resolveLogConfig merges flags over the configuration file over defaults.
func resolveLogConfig(flags cliFlags, cfg *config.Config) observability.LogConfig {
	logCfg := observability.DefaultLogConfig()
	if cfg != nil {
		if l := cfg.Spec.Observability.Logging.Level; l != "" {
			logCfg.Level = l
		}
		if f := cfg.Spec.Observability.Logging.Format; f != "" {
			logCfg.Format = f
		}
	}
	if flags.logLevel != "" {
		logCfg.Level = flags.logLevel
	}
	if flags.logFormat != "" {
		logCfg.Format = flags.logFormat
	}
	return logCfg
}

// initLogger initializes the logger.
func initLogger(cfg observability.LogConfig) observability.Logger {
	logger, err := observability.NewLogger(cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	return logger
}

// loadConfig loads and validates the configuration.
func loadConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if err := config.ValidateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}
