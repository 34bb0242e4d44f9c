// Package main implements the database migration utility for the wa-dispatcher service.
package main

import (
	"flag"
	"fmt"
	"os"

	_ "github.com/joho/godotenv/autoload"
	"go.uber.org/zap"

	"github.com/popeskul/wa-dispatcher/internal/config"
	"github.com/popeskul/wa-dispatcher/internal/infrastructure/migrate"
)

const (
	defaultConfigPath   = "config.yaml"
	defaultMigrateSteps = 0
)

func main() {
	var (
		configPath     string
		migrationsPath string
		steps          int
	)

	flag.StringVar(&configPath, "config", defaultConfigPath, "Path to config file")
	flag.StringVar(&migrationsPath, "path", "", "Path to migrations directory (overrides config)")
	flag.IntVar(&steps, "steps", defaultMigrateSteps, "Number of migrations to apply, 0 means all for up and one for down")
	flag.Parse()

	logger, err := zap.NewProduction()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	args := flag.Args()
	if len(args) == 0 {
		logger.Fatal("Please specify a command: up, down, or version")
	}

	runner := migrate.NewRunner(runnerConfig(configPath, migrationsPath, logger), logger)

	switch args[0] {
	case "up":
		if steps > 0 {
			err = runner.Steps(steps)
		} else {
			err = runner.Run()
		}
		if err != nil {
			logger.Fatal("Failed to run migrations up", zap.Error(err))
		}

	case "down":
		if steps < 1 {
			steps = 1
		}
		if err := runner.Steps(-steps); err != nil {
			logger.Fatal("Failed to run migrations down", zap.Error(err))
		}

	case "version":
		version, dirty, err := runner.Version()
		if err != nil {
			logger.Fatal("Failed to get version", zap.Error(err))
		}
		if dirty {
			fmt.Printf("Current version: %d (dirty)\n", version)
		} else {
			fmt.Printf("Current version: %d\n", version)
		}

	default:
		logger.Fatal("Unknown command, use 'up', 'down', or 'version'", zap.String("command", args[0]))
	}
}

// runnerConfig prefers DATABASE_URL and falls back to the service config file.
func runnerConfig(configPath, migrationsPath string, logger *zap.Logger) *migrate.Config {
	cfg := &migrate.Config{
		DatabaseURL:    os.Getenv("DATABASE_URL"),
		MigrationsPath: migrationsPath,
	}

	if cfg.DatabaseURL == "" || cfg.MigrationsPath == "" {
		appCfg, err := config.LoadConfig(configPath)
		if err != nil {
			logger.Fatal("DATABASE_URL is not set and config could not be loaded", zap.Error(err))
		}
		if cfg.DatabaseURL == "" {
			cfg.DatabaseURL = appCfg.Database.GetURL()
		}
		if cfg.MigrationsPath == "" {
			cfg.MigrationsPath = appCfg.Database.MigrationsPath
		}
	}

	return cfg
}
