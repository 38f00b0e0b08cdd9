package xkeycursor

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

var (
	defaultLogger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).With().Timestamp().Logger()
	logger        = defaultLogger.With().Str("component", "xkeycursor").Logger()
	driverLogger  = subsystemLogger("driver")
	backendLogger = subsystemLogger("backend")
	configLogger  = subsystemLogger("config")
	uinputLogger  = subsystemLogger("uinput")
	x11Logger     = subsystemLogger("x11")
	evdevLogger   = subsystemLogger("evdev")
	driveLogger   = subsystemLogger("drive")
)

func subsystemLogger(name string) zerolog.Logger {
	return defaultLogger.With().Str("component", "xkeycursor").Str("subsystem", name).Logger()
}

// SetLogLevel applies level ("trace" through "disabled") to every logger.
func SetLogLevel(level string) error {
	lvl, err := zerolog.ParseLevel(level)
	if err != nil {
		return err
	}
	if lvl == zerolog.NoLevel {
		lvl = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(lvl)
	return nil
}
