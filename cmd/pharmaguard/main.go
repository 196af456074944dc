// Package main is the entry point for the PharmaGuard command-line client.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/pharmaguard-client/internal/cli"
	"github.com/pharmaguard-client/internal/config"
	"github.com/pharmaguard-client/internal/domain"
	"github.com/pharmaguard-client/internal/logging"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

// loadConfig reads configuration, honoring PHARMAGUARD_CONFIG when set.
func loadConfig() (domain.ConfigManager, error) {
	var opts []config.Option
	if path := os.Getenv("PHARMAGUARD_CONFIG"); path != "" {
		opts = append(opts, config.WithConfigFile(path))
	}
	return config.NewManager(opts...)
}

func run(args []string) int {
	configManager, err := loadConfig()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		return 2
	}
	if err := configManager.Validate(); err != nil {
		fmt.Fprintf(os.Stderr, "Invalid configuration: %v\n", err)
		return 2
	}

	cfg := configManager.GetConfig()
	logger := logging.New(cfg.Logging)
	if used := configManager.ConfigFileUsed(); used != "" {
		logger.WithField("config_file", used).Debug("Configuration loaded")
	}

	// Setup graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app := cli.New(cfg, logger)
	defer app.Close()

	if err := app.Run(ctx, args); err != nil {
		logger.WithError(err).Debug("Command failed")
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
