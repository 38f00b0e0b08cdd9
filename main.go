package xkeycursor

import (
	"context"
	"errors"
	"fmt"

	"github.com/xkeycursor/xkeycursor/internal/config"
	"github.com/xkeycursor/xkeycursor/internal/metrics"
	"github.com/xkeycursor/xkeycursor/internal/uinput"
)

// Options are the command line overrides.
type Options struct {
	ConfigPath string
	LogLevel   string
	Backend    string
}

// LoadConfig reads the config file and applies opts on top of it. Problems
// in the file are logged and never fatal.
func LoadConfig(opts Options) config.Config {
	cfg, warns := config.Load(opts.ConfigPath)
	for _, w := range warns {
		if errors.Is(w, config.ErrNotFound) {
			configLogger.Info().Str("path", opts.ConfigPath).Msg("no config file, using defaults")
			continue
		}
		configLogger.Warn().Err(w).Str("path", opts.ConfigPath).Msg("config")
	}

	if opts.LogLevel != "" {
		cfg.LogLevel = opts.LogLevel
	}
	if opts.Backend != "" {
		cfg.Backend = opts.Backend
	}
	if err := SetLogLevel(cfg.LogLevel); err != nil {
		configLogger.Warn().Err(err).Str("level", cfg.LogLevel).Msg("invalid log level, using info")
		_ = SetLogLevel("info")
	}
	return cfg
}

func run(ctx context.Context, opts Options) error {
	cfg := LoadConfig(opts)

	pointer, err := uinput.NewPointer(&uinputLogger)
	if err != nil {
		return fmt.Errorf("create virtual pointer: %w", err)
	}
	defer pointer.Close()

	backend, err := openBackend(cfg)
	if err != nil {
		return err
	}
	defer backend.Close()
	logger.Info().Str("backend", backend.Name()).Msg("input backend ready")

	var reloads <-chan config.Config
	watcher, err := config.Watch(opts.ConfigPath, &configLogger)
	if err != nil {
		configLogger.Warn().Err(err).Msg("config hot reload disabled")
	} else {
		defer watcher.Close()
		reloads = watcher.Updates()
	}

	return NewDriver(cfg, backend, pointer, reloads, metrics.New()).Run(ctx)
}

// Main runs until ctx is cancelled. Startup failures are fatal.
func Main(ctx context.Context, opts Options) {
	logger.Info().Str("config", opts.ConfigPath).Msg("starting xkeycursor")
	if err := run(ctx, opts); err != nil {
		logger.Fatal().Err(err).Msg("xkeycursor failed")
	}
	logger.Info().Msg("shutdown complete")
}
