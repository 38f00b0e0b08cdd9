package xkeycursor

import (
	"fmt"
	"os"

	"github.com/rs/zerolog"

	"github.com/xkeycursor/xkeycursor/internal/config"
	"github.com/xkeycursor/xkeycursor/internal/drive"
	"github.com/xkeycursor/xkeycursor/internal/evdev"
	"github.com/xkeycursor/xkeycursor/internal/x11"
)

// inputBackend is where key state, the hotkey and key grabs come from.
type inputBackend interface {
	drive.SnapshotSource

	Name() string
	Bind(b drive.Bindings) error

	// hotkey
	GrabHotkey() error
	UngrabHotkey() error
	Hotkeys() <-chan struct{}
	ActivationHeld() (bool, error)
	Drain()

	// drive keys
	GrabDrive() error
	UngrabDrive() error

	// display, 0 if unknown
	DisplayHeight() int
	RefreshRate() int

	Close() error
}

var (
	openX11 = func(l *zerolog.Logger) (inputBackend, error) {
		b, err := x11.Open(l)
		if err != nil {
			return nil, err
		}
		return b, nil
	}
	openEvdev = func(paths []string, l *zerolog.Logger) (inputBackend, error) {
		b, err := evdev.Open(paths, l)
		if err != nil {
			return nil, err
		}
		return b, nil
	}
)

// detectDisplay returns true if an X display is configured (rough check)
func detectDisplay() bool {
	return os.Getenv("DISPLAY") != ""
}

// openBackend opens the configured backend. In auto mode X11 is preferred
// when a display is present, with evdev as the fallback.
func openBackend(cfg config.Config) (inputBackend, error) {
	switch cfg.Backend {
	case config.BackendX11:
		return openX11(&x11Logger)
	case config.BackendEvdev:
		return openEvdev(cfg.Devices, &evdevLogger)
	}

	if detectDisplay() {
		backendLogger.Info().Msg("X display detected, initializing x11 backend")
		b, err := openX11(&x11Logger)
		if err == nil {
			return b, nil
		}
		backendLogger.Warn().Err(err).Msg("x11 backend init failed, falling back to evdev backend")
	}

	backendLogger.Info().Msg("Initializing evdev backend")
	b, err := openEvdev(cfg.Devices, &evdevLogger)
	if err != nil {
		return nil, fmt.Errorf("no input backend available: %w", err)
	}
	return b, nil
}
