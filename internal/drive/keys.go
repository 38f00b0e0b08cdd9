package drive

// Key is one of the six logical motion keys.
type Key int

const (
	MoveUp Key = iota
	MoveDown
	MoveLeft
	MoveRight
	ScrollUp
	ScrollDown

	keyCount
)

// Keys lists every logical key in table order.
var Keys = [keyCount]Key{MoveUp, MoveDown, MoveLeft, MoveRight, ScrollUp, ScrollDown}

var keyNames = [keyCount]string{"up", "down", "left", "right", "scroll_up", "scroll_down"}

func (k Key) String() string {
	if k < 0 || k >= keyCount {
		return "unknown"
	}
	return keyNames[k]
}

// Directional reports whether k moves the pointer (as opposed to scrolling).
func (k Key) Directional() bool {
	return k >= MoveUp && k <= MoveRight
}

// Effect is the contribution of a single held key to the tick vector.
type Effect struct {
	DX     int
	DY     int
	Scroll int
}

// ActionTable maps every logical key to its effect.
var ActionTable = [keyCount]Effect{
	MoveUp:     {DX: 0, DY: -1},
	MoveDown:   {DX: 0, DY: 1},
	MoveLeft:   {DX: -1, DY: 0},
	MoveRight:  {DX: 1, DY: 0},
	ScrollUp:   {Scroll: 1},
	ScrollDown: {Scroll: -1},
}

// KeySet is the set of logical keys believed held.
type KeySet [keyCount]bool

// KeySetOf builds a set from the given keys.
func KeySetOf(keys ...Key) KeySet {
	var s KeySet
	for _, k := range keys {
		s[k] = true
	}
	return s
}

// Has reports whether k is in the set.
func (s KeySet) Has(k Key) bool { return s[k] }

// AnyDirectional reports whether any movement key is in the set.
func (s KeySet) AnyDirectional() bool {
	return s[MoveUp] || s[MoveDown] || s[MoveLeft] || s[MoveRight]
}

// Button identifies one of the emulated pointer buttons.
type Button int

const (
	Left Button = iota
	Right

	buttonCount
)

// Buttons lists every emulated button.
var Buttons = [buttonCount]Button{Left, Right}

func (b Button) String() string {
	switch b {
	case Left:
		return "left"
	case Right:
		return "right"
	default:
		return "unknown"
	}
}

// Axis identifies a relative motion axis.
type Axis int

const (
	AxisX Axis = iota
	AxisY
)

func (a Axis) String() string {
	if a == AxisX {
		return "x"
	}
	return "y"
}

// Snapshot is a point-in-time read of every key the engine cares about.
//
// The authoritative held-state is always the latest snapshot, never state
// accumulated from press/release events: grabbed-key release notifications
// can be lost when several keys are released together, so nothing in this
// package ever infers "still held" from the absence of a release.
type Snapshot struct {
	Keys    KeySet
	Buttons [buttonCount]bool

	// Slow is the precision modifier.
	Slow bool

	// Deactivate is set while both the activation modifier and key are held.
	Deactivate bool
}

// SnapshotSource returns the current down/up state of the bound keys.
// Sample must not block.
type SnapshotSource interface {
	Sample() (Snapshot, error)
}

// Sink receives the synthesized pointer events of one tick, in order.
type Sink interface {
	RelativeMove(axis Axis, delta int32) error
	Scroll(ticks int32) error
	Button(b Button, pressed bool) error
	Frame() error
}

// Bindings maps each role to a platform key name. Backends resolve the names
// (X keysym names such as "w", "space" or "Shift_L").
type Bindings struct {
	Modifier string
	Activate string
	Keys     [keyCount]string
	Buttons  [buttonCount]string
	Slow     string
}
