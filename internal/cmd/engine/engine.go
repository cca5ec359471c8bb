// Package engine parses engine command flags and launches the engine runtime.
package engine

import (
	"context"
	"flag"

	engineserver "github.com/emberline/saga/internal/app/engine"
	entrypoint "github.com/emberline/saga/internal/platform/cmd"
)

// Config holds engine command configuration.
type Config struct {
	Port          int    `env:"SAGA_ENGINE_PORT" envDefault:"8095"`
	MetricsPort   int    `env:"SAGA_ENGINE_METRICS_PORT" envDefault:"9095"`
	DBPath        string `env:"SAGA_ENGINE_DB_PATH" envDefault:"data/engine.db"`
	ContentDir    string `env:"SAGA_ENGINE_CONTENT_DIR" envDefault:"content"`
	SweepSchedule string `env:"SAGA_ENGINE_SWEEP_SCHEDULE" envDefault:"@every 1m"`
}

// ParseConfig parses environment and flags into a Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	fs.IntVar(&cfg.Port, "port", cfg.Port, "The engine health gRPC server port")
	fs.IntVar(&cfg.MetricsPort, "metrics-port", cfg.MetricsPort, "The engine Prometheus metrics port")
	fs.StringVar(&cfg.DBPath, "db-path", cfg.DBPath, "The engine SQLite database path")
	fs.StringVar(&cfg.ContentDir, "content-dir", cfg.ContentDir, "The narrative content pack directory")
	fs.StringVar(&cfg.SweepSchedule, "sweep-schedule", cfg.SweepSchedule, "The AFK sweep cron schedule")
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Run starts the engine runtime.
func Run(ctx context.Context, cfg Config) error {
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceEngine, func(context.Context) error {
		return engineserver.Run(ctx, engineserver.RuntimeConfig{
			Port:          cfg.Port,
			MetricsPort:   cfg.MetricsPort,
			DBPath:        cfg.DBPath,
			ContentDir:    cfg.ContentDir,
			SweepSchedule: cfg.SweepSchedule,
		})
	})
}
