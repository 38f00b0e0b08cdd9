package evdev

import (
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"
	"time"

	goevdev "github.com/holoplot/go-evdev"
	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"

	"github.com/xkeycursor/xkeycursor/internal/drive"
)

const (
	// HotkeyPoll is how often the idle hotkey check reads key state.
	HotkeyPoll = 10 * time.Millisecond

	// settleTimeout bounds how long GrabDrive waits for the hotkey to be let go.
	settleTimeout = 2 * time.Second
)

var defaultLogger = zerolog.New(os.Stderr).With().Str("subsystem", "evdev").Logger()

// device is the part of *goevdev.InputDevice the backend uses.
type device interface {
	Path() string
	State(t goevdev.EvType) (goevdev.StateMap, error)
	Grab() error
	Ungrab() error
	Close() error
}

// Backend reads key state straight from kernel keyboards. It works without
// a display server. Drive keys are isolated with an exclusive EVIOCGRAB of
// every keyboard, so nothing typed reaches other clients while driving.
type Backend struct {
	devs  []device
	log   *zerolog.Logger
	clock clockwork.Clock

	mu       sync.Mutex
	km       *keymap
	armed    bool
	grabbed  bool
	lastDown bool

	hotkeys   chan struct{}
	stop      chan struct{}
	closeOnce sync.Once
	wg        sync.WaitGroup
}

var _ drive.SnapshotSource = (*Backend)(nil)

// Open opens the given event devices, or every keyboard-like device when
// paths is empty, and starts the hotkey poller.
func Open(paths []string, logger *zerolog.Logger) (*Backend, error) {
	if logger == nil {
		l := defaultLogger
		logger = &l
	}

	var devs []device
	var err error
	if len(paths) == 0 {
		devs, err = detectKeyboards(logger)
	} else {
		devs, err = openPaths(paths)
	}
	if err != nil {
		return nil, err
	}

	b := newBackend(devs, logger, clockwork.NewRealClock())
	b.wg.Add(1)
	go b.pollHotkey()
	return b, nil
}

func newBackend(devs []device, logger *zerolog.Logger, clock clockwork.Clock) *Backend {
	return &Backend{
		devs:    devs,
		log:     logger,
		clock:   clock,
		hotkeys: make(chan struct{}, 1),
		stop:    make(chan struct{}),
	}
}

func openPaths(paths []string) ([]device, error) {
	var devs []device
	for _, p := range paths {
		d, err := goevdev.Open(p)
		if err != nil {
			for _, opened := range devs {
				_ = opened.Close()
			}
			return nil, fmt.Errorf("open %s: %w", p, err)
		}
		devs = append(devs, d)
	}
	return devs, nil
}

func isKeyboard(d *goevdev.InputDevice) bool {
	if !slices.Contains(d.CapableTypes(), goevdev.EV_KEY) {
		return false
	}
	keys := d.CapableEvents(goevdev.EV_KEY)
	return slices.Contains(keys, goevdev.KEY_A) && slices.Contains(keys, goevdev.KEY_SPACE)
}

func detectKeyboards(logger *zerolog.Logger) ([]device, error) {
	paths, err := goevdev.ListDevicePaths()
	if err != nil {
		return nil, fmt.Errorf("list input devices: %w", err)
	}

	var devs []device
	for _, p := range paths {
		d, err := goevdev.Open(p.Path)
		if err != nil {
			logger.Debug().Err(err).Str("path", p.Path).Msg("skipping device")
			continue
		}
		if !isKeyboard(d) {
			_ = d.Close()
			continue
		}
		logger.Info().Str("path", p.Path).Str("name", p.Name).Msg("using keyboard")
		devs = append(devs, d)
	}
	if len(devs) == 0 {
		return nil, errors.New("no keyboard devices found (is the user in the input group?)")
	}
	return devs, nil
}

func (b *Backend) Name() string { return "evdev" }

func (b *Backend) Bind(bindings drive.Bindings) error {
	km, err := resolve(bindings)
	if err != nil {
		return err
	}
	b.mu.Lock()
	b.km = km
	b.mu.Unlock()
	return nil
}

func (b *Backend) current() (*keymap, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.km == nil {
		return nil, errors.New("evdev: no bindings")
	}
	return b.km, nil
}

// state ORs the key state of every device.
func (b *Backend) state() (goevdev.StateMap, error) {
	merged := goevdev.StateMap{}
	for _, d := range b.devs {
		st, err := d.State(goevdev.EV_KEY)
		if err != nil {
			return nil, fmt.Errorf("read key state of %s: %w", d.Path(), err)
		}
		for c, down := range st {
			if down {
				merged[c] = true
			}
		}
	}
	return merged, nil
}

// GrabHotkey arms the hotkey poller. A keyboard can only be grabbed as a
// whole, so the hotkey itself is never isolated from other clients.
func (b *Backend) GrabHotkey() error {
	b.mu.Lock()
	b.armed = true
	b.mu.Unlock()
	return nil
}

func (b *Backend) UngrabHotkey() error {
	b.mu.Lock()
	b.armed = false
	b.mu.Unlock()
	return nil
}

// GrabDrive takes an exclusive grab on every keyboard. It first waits for
// the hotkey keys to come up so other clients see their release.
func (b *Backend) GrabDrive() error {
	km, err := b.current()
	if err != nil {
		return err
	}

	deadline := b.clock.Now().Add(settleTimeout)
	for b.clock.Now().Before(deadline) {
		st, err := b.state()
		if err != nil {
			return err
		}
		if !anyDown(st, km.modKeys...) && !st[km.activate] {
			break
		}
		b.clock.Sleep(HotkeyPoll)
	}

	b.mu.Lock()
	defer b.mu.Unlock()
	var errs []error
	for _, d := range b.devs {
		if err := d.Grab(); err != nil {
			errs = append(errs, fmt.Errorf("grab %s: %w", d.Path(), err))
		}
	}
	b.grabbed = true
	return errors.Join(errs...)
}

func (b *Backend) UngrabDrive() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.ungrabLocked()
}

func (b *Backend) ungrabLocked() error {
	if !b.grabbed {
		return nil
	}
	var errs []error
	for _, d := range b.devs {
		if err := d.Ungrab(); err != nil {
			errs = append(errs, fmt.Errorf("ungrab %s: %w", d.Path(), err))
		}
	}
	b.grabbed = false
	return errors.Join(errs...)
}

func (b *Backend) Hotkeys() <-chan struct{} { return b.hotkeys }

func (b *Backend) pollHotkey() {
	defer b.wg.Done()

	errLog := b.log.Sample(&zerolog.BurstSampler{Burst: 1, Period: 10 * time.Second})
	ticker := b.clock.NewTicker(HotkeyPoll)
	defer ticker.Stop()

	for {
		select {
		case <-b.stop:
			return
		case <-ticker.Chan():
			if err := b.checkHotkey(); err != nil {
				errLog.Warn().Err(err).Msg("hotkey poll failed")
			}
		}
	}
}

// checkHotkey signals a hotkey on the down edge of modifier+activation key.
func (b *Backend) checkHotkey() error {
	b.mu.Lock()
	km, armed := b.km, b.armed && !b.grabbed
	b.mu.Unlock()
	if km == nil || !armed {
		b.lastDown = false
		return nil
	}

	st, err := b.state()
	if err != nil {
		return err
	}
	down := km.hotkeyDown(st)
	if down && !b.lastDown {
		select {
		case b.hotkeys <- struct{}{}:
		default:
		}
	}
	b.lastDown = down
	return nil
}

func (b *Backend) Drain() {
	for {
		select {
		case <-b.hotkeys:
		default:
			return
		}
	}
}

// Sample implements drive.SnapshotSource.
func (b *Backend) Sample() (drive.Snapshot, error) {
	km, err := b.current()
	if err != nil {
		return drive.Snapshot{}, err
	}
	st, err := b.state()
	if err != nil {
		return drive.Snapshot{}, err
	}
	return km.snapshot(st), nil
}

func (b *Backend) ActivationHeld() (bool, error) {
	km, err := b.current()
	if err != nil {
		return false, err
	}
	st, err := b.state()
	if err != nil {
		return false, err
	}
	return st[km.activate], nil
}

// DisplayHeight is unknown without a display server.
func (b *Backend) DisplayHeight() int { return 0 }

// RefreshRate is unknown without a display server.
func (b *Backend) RefreshRate() int { return 0 }

// Close releases any grab and closes the devices. It is safe to call more
// than once.
func (b *Backend) Close() error {
	var err error
	b.closeOnce.Do(func() {
		close(b.stop)
		b.wg.Wait()

		b.mu.Lock()
		err = b.ungrabLocked()
		b.mu.Unlock()

		for _, d := range b.devs {
			if cerr := d.Close(); cerr != nil && err == nil {
				err = cerr
			}
		}
	})
	return err
}
