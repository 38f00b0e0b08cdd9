package x11

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/BurntSushi/xgb/randr"
	"github.com/BurntSushi/xgb/xproto"
	"github.com/BurntSushi/xgbutil"
	"github.com/BurntSushi/xgbutil/keybind"
	"github.com/BurntSushi/xgbutil/xevent"
	"github.com/rs/zerolog"

	"github.com/xkeycursor/xkeycursor/internal/drive"
)

var defaultLogger = zerolog.New(os.Stderr).With().Str("subsystem", "x11").Logger()

// Backend reads key state from an X server with QueryKeymap and uses passive
// key grabs on the root window for the hotkey and the drive keys.
type Backend struct {
	xu   *xgbutil.XUtil
	root xproto.Window
	log  *zerolog.Logger

	mu            sync.Mutex
	km            *keymap
	hotkeyGrabbed bool
	driveGrabbed  bool

	hotkeys chan struct{}

	// seams over the server, set by Open
	lookup    func(name string) []xproto.Keycode
	grabKey   func(mods uint16, kc xproto.Keycode) error
	ungrabKey func(mods uint16, kc xproto.Keycode)
}

var _ drive.SnapshotSource = (*Backend)(nil)

// Open connects to $DISPLAY.
func Open(logger *zerolog.Logger) (*Backend, error) {
	if logger == nil {
		l := defaultLogger
		logger = &l
	}

	xu, err := xgbutil.NewConn()
	if err != nil {
		return nil, fmt.Errorf("connect to X server: %w", err)
	}
	keybind.Initialize(xu)

	b := &Backend{
		xu:      xu,
		root:    xu.RootWin(),
		log:     logger,
		hotkeys: make(chan struct{}, 1),
		lookup: func(name string) []xproto.Keycode {
			return keybind.StrToKeycodes(xu, name)
		},
		grabKey: func(mods uint16, kc xproto.Keycode) error {
			// GrabChecked also grabs every lock-key variant of mods.
			return keybind.GrabChecked(xu, xu.RootWin(), mods, kc)
		},
		ungrabKey: func(mods uint16, kc xproto.Keycode) {
			keybind.Ungrab(xu, xu.RootWin(), mods, kc)
		},
	}

	xevent.KeyPressFun(b.onKeyPress).Connect(xu, b.root)
	go xevent.Main(xu)

	logger.Info().Str("display", os.Getenv("DISPLAY")).Msg("connected to X server")
	return b, nil
}

func (b *Backend) Name() string { return "x11" }

// Bind resolves names against the server keymap. If the hotkey is grabbed it
// is moved to the new combination; when that grab fails the previous
// bindings and their grab stay in place.
func (b *Backend) Bind(bindings drive.Bindings) error {
	km, err := resolve(bindings, b.lookup)
	if err != nil {
		return err
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if !b.hotkeyGrabbed {
		b.km = km
		return nil
	}
	prev := b.km
	b.ungrabHotkeyLocked()
	b.km = km
	if err := b.grabHotkeyLocked(); err != nil {
		b.km = prev
		if rerr := b.grabHotkeyLocked(); rerr != nil {
			return errors.Join(err, fmt.Errorf("restore hotkey: %w", rerr))
		}
		return err
	}
	return nil
}

func (b *Backend) current() (*keymap, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.km == nil {
		return nil, errors.New("x11: no bindings")
	}
	return b.km, nil
}

func (b *Backend) GrabHotkey() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.grabHotkeyLocked()
}

func (b *Backend) grabHotkeyLocked() error {
	if b.km == nil {
		return errors.New("x11: no bindings")
	}
	for i, kc := range b.km.activate {
		if err := b.grabKey(b.km.mods, kc); err != nil {
			for _, held := range b.km.activate[:i] {
				b.ungrabKey(b.km.mods, held)
			}
			return fmt.Errorf("grab hotkey (keycode %d): %w", kc, err)
		}
	}
	b.hotkeyGrabbed = true
	return nil
}

func (b *Backend) UngrabHotkey() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.ungrabHotkeyLocked()
	return nil
}

func (b *Backend) ungrabHotkeyLocked() {
	if b.km == nil || !b.hotkeyGrabbed {
		return
	}
	for _, kc := range b.km.activate {
		b.ungrabKey(b.km.mods, kc)
	}
	b.hotkeyGrabbed = false
}

// GrabDrive grabs every drive key under any modifier so they stop reaching
// the focused client. Keys held by another client's grab are skipped.
func (b *Backend) GrabDrive() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.km == nil {
		return errors.New("x11: no bindings")
	}

	var errs []error
	for _, kc := range b.km.driveCodes() {
		err := xproto.GrabKeyChecked(b.xu.Conn(), true, b.root, xproto.ModMaskAny, kc,
			xproto.GrabModeAsync, xproto.GrabModeAsync).Check()
		if err != nil {
			errs = append(errs, fmt.Errorf("grab keycode %d: %w", kc, err))
		}
	}
	b.driveGrabbed = true
	return errors.Join(errs...)
}

// UngrabDrive releases the drive grabs. An AnyModifier ungrab also drops the
// hotkey grab when the activation key doubles as a drive key, so the hotkey
// is grabbed again afterwards.
func (b *Backend) UngrabDrive() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.km == nil || !b.driveGrabbed {
		return nil
	}
	for _, kc := range b.km.driveCodes() {
		xproto.UngrabKey(b.xu.Conn(), kc, b.root, xproto.ModMaskAny)
	}
	b.driveGrabbed = false

	if b.hotkeyGrabbed {
		return b.grabHotkeyLocked()
	}
	return nil
}

func (b *Backend) Hotkeys() <-chan struct{} { return b.hotkeys }

func (b *Backend) onKeyPress(_ *xgbutil.XUtil, ev xevent.KeyPressEvent) {
	b.mu.Lock()
	km, armed := b.km, b.hotkeyGrabbed && !b.driveGrabbed
	b.mu.Unlock()

	if !armed || km == nil || !km.isActivate(ev.Detail) || ev.State&km.mods != km.mods {
		return
	}
	select {
	case b.hotkeys <- struct{}{}:
	default:
	}
}

// Drain discards hotkey presses queued so far.
func (b *Backend) Drain() {
	b.xu.Sync()
	for {
		select {
		case <-b.hotkeys:
		default:
			return
		}
	}
}

func (b *Backend) queryKeymap() ([]byte, error) {
	reply, err := xproto.QueryKeymap(b.xu.Conn()).Reply()
	if err != nil {
		return nil, fmt.Errorf("query keymap: %w", err)
	}
	return reply.Keys, nil
}

// Sample implements drive.SnapshotSource.
func (b *Backend) Sample() (drive.Snapshot, error) {
	km, err := b.current()
	if err != nil {
		return drive.Snapshot{}, err
	}
	bits, err := b.queryKeymap()
	if err != nil {
		return drive.Snapshot{}, err
	}
	return km.snapshot(bits), nil
}

// ActivationHeld reports whether the activation key is currently down.
func (b *Backend) ActivationHeld() (bool, error) {
	km, err := b.current()
	if err != nil {
		return false, err
	}
	bits, err := b.queryKeymap()
	if err != nil {
		return false, err
	}
	return anyDown(bits, km.activate), nil
}

func (b *Backend) DisplayHeight() int {
	return int(b.xu.Screen().HeightInPixels)
}

// RefreshRate queries RandR for the current rate, 0 if unavailable.
func (b *Backend) RefreshRate() int {
	if err := randr.Init(b.xu.Conn()); err != nil {
		b.log.Debug().Err(err).Msg("randr unavailable")
		return 0
	}
	info, err := randr.GetScreenInfo(b.xu.Conn(), b.root).Reply()
	if err != nil {
		b.log.Debug().Err(err).Msg("randr screen info")
		return 0
	}
	return int(info.Rate)
}

func (b *Backend) Close() error {
	b.mu.Lock()
	if b.driveGrabbed {
		for _, kc := range b.km.driveCodes() {
			xproto.UngrabKey(b.xu.Conn(), kc, b.root, xproto.ModMaskAny)
		}
		b.driveGrabbed = false
	}
	b.ungrabHotkeyLocked()
	b.mu.Unlock()

	xevent.Quit(b.xu)
	b.xu.Conn().Close()
	b.log.Info().Msg("disconnected from X server")
	return nil
}
