package drive

import (
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkeycursor/xkeycursor/internal/metrics"
)

// recordingSink captures emitted events as short strings.
type recordingSink struct {
	events []string
	fail   map[string]error
}

func (s *recordingSink) record(ev string, kind string) error {
	if err := s.fail[kind]; err != nil {
		return err
	}
	s.events = append(s.events, ev)
	return nil
}

func (s *recordingSink) RelativeMove(axis Axis, delta int32) error {
	return s.record(fmt.Sprintf("rel_%s(%d)", axis, delta), "rel")
}

func (s *recordingSink) Scroll(ticks int32) error {
	return s.record(fmt.Sprintf("wheel(%d)", ticks), "wheel")
}

func (s *recordingSink) Button(b Button, pressed bool) error {
	return s.record(fmt.Sprintf("btn_%s(%t)", b, pressed), "btn")
}

func (s *recordingSink) Frame() error {
	return s.record("frame", "frame")
}

func (s *recordingSink) take() []string {
	ev := s.events
	s.events = nil
	return ev
}

func withButton(b Button, keys ...Key) Snapshot {
	snap := Snapshot{Keys: KeySetOf(keys...)}
	snap.Buttons[b] = true
	return snap
}

func TestDensity(t *testing.T) {
	assert.Equal(t, 1.0, Density(1080))
	assert.Equal(t, 2.0, Density(2160))
	assert.Equal(t, 1.0, Density(0))
}

func TestEngineEmissionOrder(t *testing.T) {
	sink := &recordingSink{}
	e := NewEngine(sink, 1080, nil, nil)

	snap := withButton(Left, MoveUp, MoveRight, ScrollUp)
	e.Step(snap, epoch)

	assert.Equal(t, []string{
		"rel_x(2)",
		"rel_y(-2)",
		"wheel(1)",
		"frame",
		"btn_left(true)",
		"frame",
	}, sink.take())
}

func TestEngineIdleTickOnlyFrames(t *testing.T) {
	sink := &recordingSink{}
	e := NewEngine(sink, 1080, nil, nil)
	e.Step(Snapshot{}, epoch)
	assert.Equal(t, []string{"frame"}, sink.take())
}

func TestEngineDensityScaling(t *testing.T) {
	tests := []struct {
		height int
		keys   []Key
		want   []string
	}{
		{2160, []Key{MoveRight}, []string{"rel_x(4)", "frame"}},
		{1440, []Key{MoveLeft}, []string{"rel_x(-3)", "frame"}},
		{720, []Key{MoveDown}, []string{"rel_y(1)", "frame"}},
		{100, []Key{MoveUp}, []string{"rel_y(-1)", "frame"}},
	}
	for _, tt := range tests {
		t.Run(fmt.Sprint(tt.height), func(t *testing.T) {
			sink := &recordingSink{}
			e := NewEngine(sink, tt.height, nil, nil)
			e.Step(Snapshot{Keys: KeySetOf(tt.keys...)}, epoch)
			assert.Equal(t, tt.want, sink.take())
		})
	}
}

func TestEngineSlowKeyUsesUnitSteps(t *testing.T) {
	sink := &recordingSink{}
	e := NewEngine(sink, 1080, nil, nil)
	now := epoch
	for range 50 {
		e.Step(Snapshot{Keys: KeySetOf(MoveRight)}, now)
		now = now.Add(tick)
	}
	require.Equal(t, 7, e.Motion().Speed())
	sink.take()

	f := e.Step(Snapshot{Keys: KeySetOf(MoveRight, MoveUp), Slow: true}, now)
	assert.Equal(t, int32(1), f.DX)
	assert.Equal(t, int32(-1), f.DY)
	assert.Equal(t, []string{"rel_x(1)", "rel_y(-1)", "frame"}, sink.take())
	assert.Equal(t, 7, e.Motion().Speed(), "ramp keeps running under the slow key")
}

func TestEngineClickScenario(t *testing.T) {
	sink := &recordingSink{}
	e := NewEngine(sink, 1080, nil, nil)

	var buttons []string
	snaps := []Snapshot{withButton(Left), withButton(Left), withButton(Left), {}, {}}
	for i, snap := range snaps {
		e.Step(snap, epoch.Add(time.Duration(i)*tick))
		for _, ev := range sink.take() {
			if ev != "frame" {
				buttons = append(buttons, fmt.Sprintf("%d:%s", i, ev))
			}
		}
	}
	assert.Equal(t, []string{"0:btn_left(true)", "3:btn_left(false)"}, buttons)
}

func TestEngineBothButtons(t *testing.T) {
	sink := &recordingSink{}
	e := NewEngine(sink, 1080, nil, nil)
	snap := Snapshot{}
	snap.Buttons = [buttonCount]bool{true, true}

	f := e.Step(snap, epoch)
	assert.Equal(t, [buttonCount]bool{true, true}, f.Down)
	assert.Equal(t, []string{"frame", "btn_left(true)", "frame", "btn_right(true)", "frame"}, sink.take())
}

func TestEngineSinkErrorsDoNotCorruptState(t *testing.T) {
	sink := &recordingSink{fail: map[string]error{"rel": errors.New("EAGAIN")}}
	m := metrics.New()
	e := NewEngine(sink, 1080, nil, m)

	now := epoch
	for range 20 {
		e.Step(Snapshot{Keys: KeySetOf(MoveDown)}, now)
		now = now.Add(tick)
	}
	assert.Equal(t, uint64(20), e.Motion().Accumulator())
	assert.Equal(t, 4, e.Motion().Speed())

	// frames still go out even though every move fails
	assert.Len(t, sink.take(), 20)

	sink.fail = nil
	f := e.Step(Snapshot{Keys: KeySetOf(MoveDown)}, now)
	assert.Equal(t, int32(4), f.DY)
	assert.Equal(t, []string{"rel_y(4)", "frame"}, sink.take())
}

func TestEngineResetReleasesHeldButtons(t *testing.T) {
	sink := &recordingSink{}
	e := NewEngine(sink, 1080, nil, nil)
	e.Step(withButton(Right, MoveUp), epoch)
	sink.take()

	e.Reset()
	assert.Equal(t, []string{"btn_right(false)", "frame"}, sink.take())
	assert.Equal(t, BaseSpeed, e.Motion().Speed())
	assert.Zero(t, e.Motion().Accumulator())
	assert.False(t, e.Button(Right).Held())

	e.Reset()
	assert.Empty(t, sink.take(), "second reset has nothing to release")
}

func TestEngineCountsBoosts(t *testing.T) {
	m := metrics.New()
	e := NewEngine(&recordingSink{}, 1080, nil, m)
	e.Step(Snapshot{Keys: KeySetOf(MoveUp)}, epoch)
	e.Step(Snapshot{}, epoch.Add(tick))
	f := e.Step(Snapshot{Keys: KeySetOf(MoveUp)}, epoch.Add(2*tick))

	assert.True(t, f.Motion.Boosted)
	assert.Equal(t, int32(-MaxSpeed), f.DY)

	expected := `
# HELP xkeycursor_boosts_total Number of fast re-presses that jumped to maximum speed.
# TYPE xkeycursor_boosts_total counter
xkeycursor_boosts_total 1
`
	assert.NoError(t, testutil.GatherAndCompare(m.Registry(), strings.NewReader(expected), "xkeycursor_boosts_total"))
}
