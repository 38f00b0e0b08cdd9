package drive

import (
	"math"
	"os"
	"time"

	"github.com/rs/zerolog"

	"github.com/xkeycursor/xkeycursor/internal/metrics"
)

// ReferenceHeight is the display height at which one motion unit is one pixel.
const ReferenceHeight = 1080

var defaultLogger = zerolog.New(os.Stderr).With().Str("subsystem", "drive").Logger()

// Density returns the pixel multiplier for a display of the given height.
func Density(displayHeight int) float64 {
	if displayHeight <= 0 {
		return 1
	}
	return float64(displayHeight) / ReferenceHeight
}

// Frame records what one Step decided to emit, after scaling.
type Frame struct {
	Motion MotionOutput
	DX     int32
	DY     int32
	Scroll int32
	Down   [buttonCount]bool
	Up     [buttonCount]bool
}

// Engine owns the motion and button state of a drive session and shapes
// their output into ordered Sink events.
type Engine struct {
	motion  *MotionState
	buttons [buttonCount]ButtonState
	sink    Sink
	density float64

	log     *zerolog.Logger
	errLog  zerolog.Logger
	metrics *metrics.Metrics
}

func NewEngine(sink Sink, displayHeight int, logger *zerolog.Logger, m *metrics.Metrics) *Engine {
	if logger == nil {
		l := defaultLogger
		logger = &l
	}
	return &Engine{
		motion:  NewMotionState(),
		sink:    sink,
		density: Density(displayHeight),
		log:     logger,
		errLog:  logger.Sample(&zerolog.BurstSampler{Burst: 5, Period: time.Second}),
		metrics: m,
	}
}

func (e *Engine) Motion() *MotionState { return e.motion }

func (e *Engine) Button(b Button) *ButtonState { return &e.buttons[b] }

// Step advances the state machines with snap and emits the result: motion,
// scroll, a frame terminator, then each button edge in its own frame.
// State is updated before any write, so a failing sink cannot corrupt it.
func (e *Engine) Step(snap Snapshot, now time.Time) Frame {
	out := e.motion.Tick(snap.Keys, now)
	if out.Boosted {
		e.metrics.Boost()
		e.log.Debug().Int("speed", out.Speed).Msg("boost")
	}

	f := Frame{Motion: out}
	dx, dy := out.DX, out.DY
	if snap.Slow && out.Speed > 0 {
		dx, dy = dx/out.Speed, dy/out.Speed
	}
	f.DX = e.scale(dx)
	f.DY = e.scale(dy)
	if out.EmitScroll {
		f.Scroll = int32(out.Scroll)
	}
	for b := range buttonCount {
		f.Down[b], f.Up[b] = e.buttons[b].Tick(snap.Buttons[b])
	}

	if f.DX != 0 {
		e.emit("rel_x", e.sink.RelativeMove(AxisX, f.DX))
	}
	if f.DY != 0 {
		e.emit("rel_y", e.sink.RelativeMove(AxisY, f.DY))
	}
	if f.Scroll != 0 {
		e.emit("wheel", e.sink.Scroll(f.Scroll))
	}
	e.emit("frame", e.sink.Frame())

	for b := range buttonCount {
		if f.Down[b] {
			e.emitButton(b, true)
		}
		if f.Up[b] {
			e.emitButton(b, false)
		}
	}
	return f
}

// Reset releases any button still held on the sink and returns every state
// machine to its initial values.
func (e *Engine) Reset() {
	for b := range buttonCount {
		if e.buttons[b].Held() {
			e.emitButton(b, false)
		}
		e.buttons[b].Reset()
	}
	e.motion.Reset()
}

func (e *Engine) emitButton(b Button, pressed bool) {
	e.log.Debug().Stringer("button", b).Bool("pressed", pressed).Msg("button")
	e.emit("btn_"+b.String(), e.sink.Button(b, pressed))
	e.emit("frame", e.sink.Frame())
}

func (e *Engine) emit(kind string, err error) {
	if err != nil {
		e.metrics.EmitFailed(kind)
		e.errLog.Warn().Err(err).Str("event", kind).Msg("failed to emit event")
		return
	}
	e.metrics.Emitted(kind)
}

func (e *Engine) scale(v int) int32 {
	if v == 0 {
		return 0
	}
	r := math.Round(float64(v) * e.density)
	if r == 0 {
		if v < 0 {
			return -1
		}
		return 1
	}
	return int32(r)
}
