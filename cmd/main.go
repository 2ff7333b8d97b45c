package main

import (
	"context"
	"os"

	"github.com/desertthunder/musicrank/internal/shared"
)

func main() {
	logger := shared.NewLogger(nil)

	configPath := os.Getenv("MUSICRANK_CONFIG")
	if configPath == "" {
		configPath = "config.toml"
	}

	config := shared.DefaultConfig()
	if _, err := os.Stat(configPath); err == nil {
		if loadedConfig, err := shared.LoadConfig(configPath); err == nil {
			config = loadedConfig
		} else {
			logger.Warn("failed to load config, using defaults", "path", configPath, "error", err)
		}
	}
	config.ApplyEnv()
	shared.SetLogLevel(logger, shared.ParseLogLevel(config.Logging.Level))

	runner := NewRunner(RunnerOpts{
		Config: config,
		Logger: logger,
	})

	if err := runner.app().Run(context.Background(), os.Args); err != nil {
		kind := shared.Kind(err)
		logger.Error("command failed", "kind", kind, "error", err)
		os.Exit(exitCode(kind))
	}
}

// exitCode maps an error kind from [shared.Kind] to a process exit status.
func exitCode(kind string) int {
	switch kind {
	case "":
		return 0
	case "InvalidInput":
		return 2
	case "NotFound":
		return 3
	case "Conflict":
		return 4
	case "PermissionDenied":
		return 5
	case "AuthExpired":
		return 6
	case "UpstreamError":
		return 7
	case "SyncFailed":
		return 8
	default:
		return 1
	}
}
