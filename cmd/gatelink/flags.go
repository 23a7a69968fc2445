package main

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"
)

// CLIConfig holds command-line configuration
type CLIConfig struct {
	ConfigPath      string
	LogLevel        string
	LogFormat       string
	UserID          string
	ShareID         string
	Traffic         bool
	Simulate        bool
	MetricsPort     int
	ShutdownTimeout time.Duration
	ShowVersion     bool
	ShowHelp        bool
	Validate        bool

	// explicit records the flags given on the command line
	explicit map[string]bool
}

func parseFlags() *CLIConfig {
	return parseFlagSet(flag.CommandLine, os.Args[1:])
}

func parseFlagSet(fs *flag.FlagSet, args []string) *CLIConfig {
	cfg := &CLIConfig{explicit: make(map[string]bool)}

	fs.StringVar(&cfg.ConfigPath, "config",
		getEnv("GATELINK_CONFIG", ""),
		"Path to a JSON or YAML configuration file (env: GATELINK_CONFIG)")
	fs.StringVar(&cfg.ConfigPath, "c",
		getEnv("GATELINK_CONFIG", ""),
		"Path to a JSON or YAML configuration file (env: GATELINK_CONFIG)")

	fs.StringVar(&cfg.LogLevel, "log-level",
		getEnv("GATELINK_LOG_LEVEL", "info"),
		"Log level: debug, info, warn, error (env: GATELINK_LOG_LEVEL)")

	fs.StringVar(&cfg.LogFormat, "log-format",
		getEnv("GATELINK_LOG_FORMAT", "json"),
		"Log format: json, text (env: GATELINK_LOG_FORMAT)")

	fs.StringVar(&cfg.UserID, "user",
		getEnv("GATELINK_USER", ""),
		"Open the notification channel for this user (env: GATELINK_USER)")

	fs.StringVar(&cfg.ShareID, "share",
		getEnv("GATELINK_SHARE", ""),
		"Open the location share channel for this share id (env: GATELINK_SHARE)")

	fs.BoolVar(&cfg.Traffic, "traffic",
		getEnvBool("GATELINK_TRAFFIC", false),
		"Open the traffic broadcast channel (env: GATELINK_TRAFFIC)")

	fs.BoolVar(&cfg.Simulate, "simulate",
		getEnvBool("GATELINK_SIMULATION", false),
		"Use generated fallback data instead of the backend (env: GATELINK_SIMULATION)")

	fs.IntVar(&cfg.MetricsPort, "metrics-port",
		getEnvInt("GATELINK_METRICS_PORT", 9090),
		"Metrics and health port, 0 to disable (env: GATELINK_METRICS_PORT)")

	fs.DurationVar(&cfg.ShutdownTimeout, "shutdown-timeout",
		getEnvDuration("GATELINK_SHUTDOWN_TIMEOUT", 10*time.Second),
		"Graceful shutdown timeout (env: GATELINK_SHUTDOWN_TIMEOUT)")

	fs.BoolVar(&cfg.ShowVersion, "version", false, "Show version information")
	fs.BoolVar(&cfg.ShowVersion, "v", false, "Show version information")
	fs.BoolVar(&cfg.ShowHelp, "help", false, "Show help information")
	fs.BoolVar(&cfg.ShowHelp, "h", false, "Show help information")
	fs.BoolVar(&cfg.Validate, "validate", false, "Validate configuration and exit")

	fs.Usage = func() {
		printDetailedHelp(fs)
	}

	_ = fs.Parse(args)

	fs.Visit(func(f *flag.Flag) {
		cfg.explicit[f.Name] = true
	})

	return cfg
}

// isSet reports whether name was given on the command line
func (c *CLIConfig) isSet(name string) bool {
	return c.explicit[name]
}

func validateFlags(cfg *CLIConfig) error {
	if cfg.ShowVersion || cfg.ShowHelp {
		return nil
	}

	if cfg.ConfigPath != "" {
		if _, err := os.Stat(cfg.ConfigPath); err != nil {
			return fmt.Errorf("config file not found: %s", cfg.ConfigPath)
		}
	}

	validLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLevels, cfg.LogLevel) {
		return fmt.Errorf("invalid log level: %s", cfg.LogLevel)
	}

	validFormats := []string{"json", "text"}
	if !contains(validFormats, cfg.LogFormat) {
		return fmt.Errorf("invalid log format: %s", cfg.LogFormat)
	}

	if cfg.MetricsPort < 0 || cfg.MetricsPort > 65535 {
		return fmt.Errorf("invalid metrics port: %d", cfg.MetricsPort)
	}

	if cfg.ShutdownTimeout <= 0 {
		return fmt.Errorf("invalid shutdown timeout: %s", cfg.ShutdownTimeout)
	}

	return nil
}

func printDetailedHelp(fs *flag.FlagSet) {
	_, _ = fmt.Fprintf(os.Stderr, `%s - airport realtime channels

Usage: %s [options]

Options:
`, appName, os.Args[0])
	fs.PrintDefaults()
	_, _ = fmt.Fprintf(os.Stderr, `
Examples:
  # Follow notifications and gate queues for user 42
  %s --user=42 --traffic

  # Run against generated data
  %s --simulate --user=42 --share=trip-7 --log-format=text

  # Run with a config file and environment overrides
  export GATELINK_BASE_URL=wss://api.example.com
  export GATELINK_TOKEN=...
  %s --config=/etc/gatelink/gatelink.yaml --traffic

  # Validate configuration only
  %s --config=gatelink.yaml --validate

Version: %s
Build: %s
`, os.Args[0], os.Args[0], os.Args[0], os.Args[0], Version, BuildTime)
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

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}
