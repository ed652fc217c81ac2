package main

import (
	"flag"
	"fmt"
	"os"
	"slices"
	"strconv"
	"time"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigPath      string
	WorkspacePath   string
	WorkspaceID     string
	SavePath        string
	SaveToStore     bool
	Passes          int
	LogLevel        string
	LogFormat       string
	Serve           bool
	ShutdownTimeout time.Duration
	ListClasses     bool
	ShowVersion     bool
	Validate        bool
}

func parseFlags(args []string) (*CLIConfig, error) {
	cfg := &CLIConfig{}
	fs := flag.NewFlagSet(appName, flag.ContinueOnError)

	// Flags fall back to environment variables
	fs.StringVar(&cfg.ConfigPath, "config",
		getEnv("VIZFLOW_CONFIG", ""),
		"Path to configuration file, JSON or YAML (env: VIZFLOW_CONFIG)")

	fs.StringVar(&cfg.WorkspacePath, "workspace",
		getEnv("VIZFLOW_WORKSPACE", ""),
		"Workspace file to load (env: VIZFLOW_WORKSPACE)")

	fs.StringVar(&cfg.WorkspaceID, "workspace-id",
		getEnv("VIZFLOW_WORKSPACE_ID", ""),
		"Workspace to load from the NATS store (env: VIZFLOW_WORKSPACE_ID)")

	fs.StringVar(&cfg.SavePath, "save",
		getEnv("VIZFLOW_SAVE", ""),
		"Write the workspace to this file after the last pass (env: VIZFLOW_SAVE)")

	fs.BoolVar(&cfg.SaveToStore, "save-store",
		getEnvBool("VIZFLOW_SAVE_STORE", false),
		"Save the workspace to the NATS store after the last pass (env: VIZFLOW_SAVE_STORE)")

	fs.IntVar(&cfg.Passes, "passes",
		getEnvInt("VIZFLOW_PASSES", 1),
		"Number of evaluation passes (env: VIZFLOW_PASSES)")

	fs.StringVar(&cfg.LogLevel, "log-level",
		getEnv("VIZFLOW_LOG_LEVEL", ""),
		"Log level: debug, info, warn, error; overrides the config file (env: VIZFLOW_LOG_LEVEL)")

	fs.StringVar(&cfg.LogFormat, "log-format",
		getEnv("VIZFLOW_LOG_FORMAT", ""),
		"Log format: json, text; overrides the config file (env: VIZFLOW_LOG_FORMAT)")

	fs.BoolVar(&cfg.Serve, "serve",
		getEnvBool("VIZFLOW_SERVE", false),
		"Keep running after the passes, serving metrics and events (env: VIZFLOW_SERVE)")

	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout",
		getEnvDuration("VIZFLOW_SHUTDOWN_TIMEOUT", 10*time.Second),
		"Graceful shutdown timeout (env: VIZFLOW_SHUTDOWN_TIMEOUT)")

	fs.BoolVar(&cfg.ListClasses, "list", false, "List available processor classes and exit")
	fs.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	fs.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")
	fs.BoolVar(&cfg.Validate, "validate", false, "Validate configuration and workspace, then exit")

	fs.Usage = func() { printDetailedHelp(fs) }

	if err := fs.Parse(args); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validateFlags(cfg *CLIConfig) error {
	if cfg.ShowVersion || cfg.ListClasses {
		return nil
	}

	if cfg.ConfigPath != "" {
		if _, err := os.Stat(cfg.ConfigPath); err != nil {
			return fmt.Errorf("config file not found: %s", cfg.ConfigPath)
		}
	}
	if cfg.WorkspacePath != "" && cfg.WorkspaceID != "" {
		return fmt.Errorf("--workspace and --workspace-id are exclusive")
	}
	if cfg.WorkspacePath != "" {
		if _, err := os.Stat(cfg.WorkspacePath); err != nil {
			return fmt.Errorf("workspace file not found: %s", cfg.WorkspacePath)
		}
	}
	if cfg.Passes < 1 {
		return fmt.Errorf("invalid pass count: %d", cfg.Passes)
	}
	if cfg.LogLevel != "" && !slices.Contains([]string{"debug", "info", "warn", "error"}, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}
	if cfg.LogFormat != "" && !slices.Contains([]string{"json", "text"}, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}
	return nil
}

func printDetailedHelp(fs *flag.FlagSet) {
	_, _ = fmt.Fprintf(os.Stderr, `%s - processor network engine

Usage: %s [options]

Options:
`, appName, appName)
	fs.PrintDefaults()
	_, _ = fmt.Fprintf(os.Stderr, `
Examples:
  # Evaluate a workspace three times and save the result
  %s --workspace=scene.yaml --passes=3 --save=scene.out.yaml

  # Load a stored workspace and serve metrics and WebSocket events
  %s --config=vizflow.yaml --workspace-id=3f2a... --serve

  # Validate configuration and workspace only
  %s --config=vizflow.yaml --workspace=scene.json --validate

Version: %s
Build: %s
`, appName, appName, appName, Version, BuildTime)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}
