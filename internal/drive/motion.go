package drive

import "time"

const (
	BaseSpeed = 2
	MaxSpeed  = 12

	// RampTicks is the number of held ticks per speed step.
	RampTicks = 10

	// BoostWindow is the largest release gap that still counts as a flick.
	BoostWindow = 100 * time.Millisecond

	// ScrollStride is the minimum spacing between two scroll emissions.
	ScrollStride = 100 * time.Millisecond
)

// MotionOutput is the density-independent result of one tick.
type MotionOutput struct {
	DX     int
	DY     int
	Scroll int

	EmitScroll bool
	Boosted    bool
	Speed      int
}

// MotionState is the speed ramp / boost / scroll throttle state machine.
// The zero value is not ready for use; call NewMotionState or Reset.
type MotionState struct {
	held          KeySet
	prevHeld      KeySet
	lastActivated [keyCount]time.Time
	accumulator   uint64
	speed         int
}

func NewMotionState() *MotionState {
	m := &MotionState{}
	m.Reset()
	return m
}

// Reset forgets all held keys, timing and speed.
func (m *MotionState) Reset() {
	*m = MotionState{speed: BaseSpeed}
}

func (m *MotionState) Speed() int          { return m.speed }
func (m *MotionState) Accumulator() uint64 { return m.accumulator }
func (m *MotionState) Held() KeySet        { return m.held }

// Tick consumes the held keys observed at now and returns the motion to emit.
func (m *MotionState) Tick(keys KeySet, now time.Time) MotionOutput {
	m.held = keys

	var (
		gap                     [keyCount]time.Duration
		moveX, moveY, scrollSum int
		accInc                  bool
	)
	for _, k := range Keys {
		// A zero lastActivated saturates to the maximum duration.
		gap[k] = now.Sub(m.lastActivated[k])
		if !keys[k] {
			continue
		}
		e := ActionTable[k]
		moveX += e.DX
		moveY += e.DY
		scrollSum += e.Scroll
		if k.Directional() {
			accInc = true
			m.lastActivated[k] = now
		}
	}

	if accInc {
		m.accumulator++
	} else {
		m.accumulator = 0
		m.speed = BaseSpeed
	}

	out := MotionOutput{}
	for _, k := range Keys[:ScrollUp] {
		if keys[k] && !m.prevHeld[k] && gap[k] < BoostWindow {
			m.speed = MaxSpeed
			out.Boosted = true
		}
	}
	if !out.Boosted && m.speed < MaxSpeed {
		m.speed = rampSpeed(m.accumulator)
	}

	out.Speed = m.speed
	out.DX = moveX * m.speed
	out.DY = moveY * m.speed

	for _, k := range Keys[ScrollUp:] {
		if keys[k] && gap[k] > ScrollStride {
			out.EmitScroll = true
			m.lastActivated[k] = now
		}
	}
	if out.EmitScroll {
		out.Scroll = scrollSum
	}

	m.prevHeld = keys
	return out
}

func rampSpeed(acc uint64) int {
	step := acc / RampTicks
	if step >= MaxSpeed-BaseSpeed {
		return MaxSpeed
	}
	return BaseSpeed + int(step)
}
