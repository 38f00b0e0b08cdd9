package xkeycursor

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/xid"
	"github.com/rs/zerolog"

	"github.com/xkeycursor/xkeycursor/internal/config"
	"github.com/xkeycursor/xkeycursor/internal/drive"
	"github.com/xkeycursor/xkeycursor/internal/metrics"
	"github.com/xkeycursor/xkeycursor/internal/utils"
)

// defaultRefreshRate is used when neither the config nor the display knows.
const defaultRefreshRate = 60

// Driver waits for the activation hotkey and runs one drive session per
// activation. Everything happens on the goroutine calling Run.
type Driver struct {
	cfg     config.Config
	backend inputBackend
	sink    drive.Sink
	reloads <-chan config.Config
	metrics *metrics.Metrics
	clock   clockwork.Clock
	log     *zerolog.Logger

	newID    func() string
	setTitle func(string)
}

func NewDriver(cfg config.Config, backend inputBackend, sink drive.Sink, reloads <-chan config.Config, m *metrics.Metrics) *Driver {
	return &Driver{
		cfg:      cfg,
		backend:  backend,
		sink:     sink,
		reloads:  reloads,
		metrics:  m,
		clock:    clockwork.NewRealClock(),
		log:      &driverLogger,
		newID:    func() string { return xid.New().String() },
		setTitle: utils.SetProcTitle,
	}
}

func (d *Driver) displayHeight() int {
	if d.cfg.DisplayHeight > 0 {
		return d.cfg.DisplayHeight
	}
	if h := d.backend.DisplayHeight(); h > 0 {
		return h
	}
	return drive.ReferenceHeight
}

func (d *Driver) period() time.Duration {
	rate := d.cfg.RefreshRate
	if rate <= 0 {
		rate = d.backend.RefreshRate()
	}
	if rate <= 0 {
		rate = defaultRefreshRate
	}
	return drive.PeriodForRate(rate)
}

// Run blocks until ctx is done. It only returns an error if the bindings
// cannot be applied or the hotkey cannot be grabbed at startup.
func (d *Driver) Run(ctx context.Context) error {
	if err := d.backend.Bind(d.cfg.Bindings); err != nil {
		return fmt.Errorf("bind keys: %w", err)
	}
	if err := d.backend.GrabHotkey(); err != nil {
		return fmt.Errorf("grab hotkey: %w", err)
	}
	defer func() {
		if err := d.backend.UngrabHotkey(); err != nil {
			d.log.Warn().Err(err).Msg("ungrab hotkey")
		}
	}()

	d.log.Info().
		Str("backend", d.backend.Name()).
		Str("hotkey", d.cfg.Bindings.Modifier+"+"+d.cfg.Bindings.Activate).
		Int("display_height", d.displayHeight()).
		Dur("period", d.period()).
		Msg("waiting for hotkey")

	for {
		d.setTitle(utils.IdleTitle())

		select {
		case <-ctx.Done():
			return nil
		case cfg, ok := <-d.reloads:
			if !ok {
				d.reloads = nil
				continue
			}
			d.reload(cfg)
		case <-d.backend.Hotkeys():
			d.activate(ctx)
		}
	}
}

// reload swaps in cfg. If the new bindings cannot be applied the previous
// config stays in effect.
func (d *Driver) reload(cfg config.Config) {
	if cfg.Bindings != d.cfg.Bindings {
		if err := d.backend.Bind(cfg.Bindings); err != nil {
			d.log.Warn().Err(err).Msg("reloaded bindings rejected, keeping previous config")
			if rerr := d.backend.Bind(d.cfg.Bindings); rerr != nil {
				d.log.Error().Err(rerr).Msg("restore previous bindings")
			}
			return
		}
	}
	if cfg.Backend != d.cfg.Backend || !slices.Equal(cfg.Devices, d.cfg.Devices) {
		d.log.Warn().Msg("backend and device changes take effect after a restart")
	}
	if cfg.LogLevel != d.cfg.LogLevel {
		if err := SetLogLevel(cfg.LogLevel); err != nil {
			d.log.Warn().Err(err).Str("level", cfg.LogLevel).Msg("invalid log level")
		}
	}
	d.cfg = cfg
	d.log.Info().
		Str("hotkey", cfg.Bindings.Modifier+"+"+cfg.Bindings.Activate).
		Dur("period", d.period()).
		Msg("configuration applied")
}

func (d *Driver) activate(ctx context.Context) {
	if err := d.backend.GrabDrive(); err != nil {
		d.log.Warn().Err(err).Msg("some drive keys could not be grabbed")
	}
	defer func() {
		if err := d.backend.UngrabDrive(); err != nil {
			d.log.Warn().Err(err).Msg("ungrab drive keys")
		}
	}()

	// the hotkey that brought us here must not count as a deactivation
	if err := d.waitRelease(ctx); err != nil {
		return
	}
	d.backend.Drain()

	id := d.newID()
	d.setTitle(utils.DriveTitle(id))

	l := driveLogger.With().Str("session", id).Logger()
	engine := drive.NewEngine(d.sink, d.displayHeight(), &l, d.metrics)
	sched := drive.NewScheduler(d.clock, d.period(), &l, d.metrics)
	sess := drive.NewSession(id, engine, &l, d.metrics)

	err := sess.Run(ctx, d.backend, sched)
	if err != nil && !errors.Is(err, context.Canceled) {
		d.log.Warn().Err(err).Str("session", id).Msg("session ended with error")
	}
	d.writeMetrics()

	if ctx.Err() != nil {
		return
	}
	if err := d.waitRelease(ctx); err == nil {
		d.backend.Drain()
	}
}

// waitRelease polls until the activation key is up.
func (d *Driver) waitRelease(ctx context.Context) error {
	period := d.period()
	for {
		held, err := d.backend.ActivationHeld()
		if err != nil {
			d.log.Warn().Err(err).Msg("read activation key state")
			return err
		}
		if !held {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-d.clock.After(period):
		}
	}
}

func (d *Driver) writeMetrics() {
	if d.cfg.MetricsFile == "" {
		return
	}
	if err := d.metrics.WriteTextfile(d.cfg.MetricsFile); err != nil {
		d.log.Warn().Err(err).Str("path", d.cfg.MetricsFile).Msg("write metrics")
	}
}
