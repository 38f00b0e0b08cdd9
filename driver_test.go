package xkeycursor

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkeycursor/xkeycursor/internal/config"
	"github.com/xkeycursor/xkeycursor/internal/drive"
	"github.com/xkeycursor/xkeycursor/internal/metrics"
)

var testPeriod = drive.PeriodForRate(60)

// fakeBackend replays snapshots; once they run out it reports the
// deactivation hotkey. Every sample advances the fake clock by one period
// so sessions never sleep.
type fakeBackend struct {
	mu    sync.Mutex
	clock *clockwork.FakeClock

	snaps    []drive.Snapshot
	samples  int
	onSample func(n int)

	hotkeys chan struct{}
	bound   []drive.Bindings
	bindErr func(drive.Bindings) error

	hotkeyGrabbed bool
	driveGrabs    int
	driveUngrabs  int
	drains        int
	closed        bool
}

func newFakeBackend(snaps ...drive.Snapshot) *fakeBackend {
	return &fakeBackend{
		clock:   clockwork.NewFakeClock(),
		snaps:   snaps,
		hotkeys: make(chan struct{}, 1),
	}
}

func (b *fakeBackend) Name() string { return "fake" }

func (b *fakeBackend) Bind(bindings drive.Bindings) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.bound = append(b.bound, bindings)
	if b.bindErr != nil {
		return b.bindErr(bindings)
	}
	return nil
}

func (b *fakeBackend) GrabHotkey() error {
	b.mu.Lock()
	b.hotkeyGrabbed = true
	b.mu.Unlock()
	return nil
}

func (b *fakeBackend) UngrabHotkey() error {
	b.mu.Lock()
	b.hotkeyGrabbed = false
	b.mu.Unlock()
	return nil
}

func (b *fakeBackend) Hotkeys() <-chan struct{} { return b.hotkeys }

func (b *fakeBackend) ActivationHeld() (bool, error) { return false, nil }

func (b *fakeBackend) Drain() {
	b.mu.Lock()
	b.drains++
	b.mu.Unlock()
}

func (b *fakeBackend) GrabDrive() error {
	b.mu.Lock()
	b.driveGrabs++
	b.mu.Unlock()
	return nil
}

func (b *fakeBackend) UngrabDrive() error {
	b.mu.Lock()
	b.driveUngrabs++
	b.mu.Unlock()
	return nil
}

func (b *fakeBackend) Sample() (drive.Snapshot, error) {
	b.clock.Advance(testPeriod)

	b.mu.Lock()
	b.samples++
	n := b.samples
	hook := b.onSample
	b.mu.Unlock()

	if hook != nil {
		hook(n)
	}
	if n > len(b.snaps) {
		return drive.Snapshot{Deactivate: true}, nil
	}
	return b.snaps[n-1], nil
}

func (b *fakeBackend) DisplayHeight() int { return 0 }
func (b *fakeBackend) RefreshRate() int   { return 0 }

func (b *fakeBackend) Close() error {
	b.closed = true
	return nil
}

func (b *fakeBackend) ungrabs() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.driveUngrabs
}

func (b *fakeBackend) bindings() []drive.Bindings {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]drive.Bindings(nil), b.bound...)
}

type recordingSink struct {
	events []string
}

func (s *recordingSink) RelativeMove(axis drive.Axis, delta int32) error {
	s.events = append(s.events, fmt.Sprintf("%s%d", axis, delta))
	return nil
}

func (s *recordingSink) Scroll(ticks int32) error {
	s.events = append(s.events, fmt.Sprintf("wheel%d", ticks))
	return nil
}

func (s *recordingSink) Button(b drive.Button, pressed bool) error {
	s.events = append(s.events, fmt.Sprintf("%s=%t", b, pressed))
	return nil
}

func (s *recordingSink) Frame() error {
	s.events = append(s.events, "syn")
	return nil
}

func newTestDriver(cfg config.Config, b *fakeBackend, sink drive.Sink, reloads <-chan config.Config) (*Driver, *[]string) {
	d := NewDriver(cfg, b, sink, reloads, metrics.New())
	l := zerolog.Nop()
	d.log = &l
	d.clock = b.clock

	ids := 0
	d.newID = func() string {
		ids++
		return fmt.Sprintf("s%d", ids)
	}
	var titles []string
	d.setTitle = func(title string) { titles = append(titles, title) }
	return d, &titles
}

func testConfig(t *testing.T) config.Config {
	cfg := config.Default()
	cfg.RefreshRate = 60
	cfg.DisplayHeight = 1080
	cfg.MetricsFile = filepath.Join(t.TempDir(), "xkeycursor.prom")
	return cfg
}

func runDriver(t *testing.T, d *Driver) (context.CancelFunc, <-chan error) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- d.Run(ctx) }()
	return cancel, done
}

func TestDriverRunsOneSessionPerHotkey(t *testing.T) {
	up := drive.Snapshot{Keys: drive.KeySetOf(drive.MoveUp)}
	click := drive.Snapshot{}
	click.Buttons[drive.Left] = true

	fb := newFakeBackend(up, up, click)
	sink := &recordingSink{}
	cfg := testConfig(t)
	d, titles := newTestDriver(cfg, fb, sink, nil)

	fb.hotkeys <- struct{}{}
	cancel, done := runDriver(t, d)
	require.Eventually(t, func() bool { return fb.ungrabs() == 1 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	assert.Equal(t, []string{"xkeycursor: idle", "xkeycursor: drive s1", "xkeycursor: idle"}, *titles)
	assert.Equal(t, 1, fb.driveGrabs)
	assert.Equal(t, 2, fb.drains)
	assert.False(t, fb.hotkeyGrabbed)
	assert.Equal(t, 4, fb.samples)

	assert.Equal(t, []string{
		"y-2", "syn",
		"y-2", "syn",
		"syn", "left=true", "syn",
		"left=false", "syn",
	}, sink.events)

	assert.FileExists(t, cfg.MetricsFile)
}

func TestDriverCancelDuringSession(t *testing.T) {
	click := drive.Snapshot{}
	click.Buttons[drive.Right] = true
	snaps := make([]drive.Snapshot, 100)
	for i := range snaps {
		snaps[i] = click
	}

	fb := newFakeBackend(snaps...)
	sink := &recordingSink{}
	d, _ := newTestDriver(testConfig(t), fb, sink, nil)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	fb.onSample = func(n int) {
		if n == 3 {
			cancel()
		}
	}

	fb.hotkeys <- struct{}{}
	require.NoError(t, d.Run(ctx))

	assert.Equal(t, 3, fb.samples)
	assert.Equal(t, 1, fb.driveUngrabs)
	assert.False(t, fb.hotkeyGrabbed)
	// the held button is released on the way out
	assert.Equal(t, []string{
		"syn", "right=true", "syn",
		"syn",
		"syn",
		"right=false", "syn",
	}, sink.events)
}

func TestDriverReload(t *testing.T) {
	fb := newFakeBackend()
	fb.bindErr = func(b drive.Bindings) error {
		if b.Activate == "F24" {
			return errors.New(`unknown key "F24"`)
		}
		return nil
	}

	reloads := make(chan config.Config)
	cfg := testConfig(t)
	d, _ := newTestDriver(cfg, fb, &recordingSink{}, reloads)
	cancel, done := runDriver(t, d)

	next := cfg
	next.Bindings.Activate = "m"
	reloads <- next

	bad := next
	bad.Bindings.Activate = "F24"
	reloads <- bad

	require.Eventually(t, func() bool { return len(fb.bindings()) == 4 }, 2*time.Second, 5*time.Millisecond)
	cancel()
	require.NoError(t, <-done)

	bound := fb.bindings()
	assert.Equal(t, "w", bound[0].Activate)
	assert.Equal(t, "m", bound[1].Activate)
	assert.Equal(t, "F24", bound[2].Activate)
	assert.Equal(t, "m", bound[3].Activate, "previous bindings restored")
	assert.Equal(t, "m", d.cfg.Bindings.Activate)
}

func TestDriverStartupBindFailure(t *testing.T) {
	fb := newFakeBackend()
	fb.bindErr = func(drive.Bindings) error { return errors.New("no keycodes") }

	d, _ := newTestDriver(testConfig(t), fb, &recordingSink{}, nil)
	err := d.Run(context.Background())
	assert.ErrorContains(t, err, "bind keys")
	assert.False(t, fb.hotkeyGrabbed)
}

func TestDriverDisplayFallbacks(t *testing.T) {
	fb := newFakeBackend()
	cfg := config.Default()
	d, _ := newTestDriver(cfg, fb, &recordingSink{}, nil)

	assert.Equal(t, drive.ReferenceHeight, d.displayHeight())
	assert.Equal(t, drive.PeriodForRate(defaultRefreshRate), d.period())

	d.cfg.DisplayHeight = 2160
	d.cfg.RefreshRate = 144
	assert.Equal(t, 2160, d.displayHeight())
	assert.Equal(t, time.Second/144, d.period())
}
