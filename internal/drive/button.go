package drive

// ButtonState turns level-sampled button keys into one-shot down/up edges.
//
// A release is recorded as pendingUp instead of clearing isDown, so the up
// edge is emitted on the tick the release is observed and never on the same
// tick as the down edge.
type ButtonState struct {
	isDown    bool
	isHeld    bool
	pendingUp bool
}

// Tick records one raw observation and reports which edges to emit.
func (b *ButtonState) Tick(pressed bool) (down, up bool) {
	if pressed {
		b.isDown = true
		b.pendingUp = false
	} else {
		b.pendingUp = true
	}

	if b.isDown && !b.isHeld {
		b.isHeld = true
		down = true
	}
	if b.isDown && b.pendingUp {
		*b = ButtonState{}
		up = true
	}
	return down, up
}

// Held reports whether a down edge has been emitted without its up edge.
func (b *ButtonState) Held() bool { return b.isHeld }

func (b *ButtonState) Reset() { *b = ButtonState{} }
