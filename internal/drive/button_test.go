package drive

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type edge struct{ down, up bool }

func runButton(obs ...bool) []edge {
	var b ButtonState
	edges := make([]edge, 0, len(obs))
	for _, pressed := range obs {
		d, u := b.Tick(pressed)
		edges = append(edges, edge{d, u})
	}
	return edges
}

func TestButtonHoldAndRelease(t *testing.T) {
	edges := runButton(true, true, true, false, false)
	assert.Equal(t, []edge{
		{down: true},
		{},
		{},
		{up: true},
		{},
	}, edges)
}

func TestButtonNeverPressedEmitsNothing(t *testing.T) {
	for _, e := range runButton(false, false, false) {
		assert.Equal(t, edge{}, e)
	}
}

func TestButtonRepeatedClicks(t *testing.T) {
	edges := runButton(true, false, true, false)
	assert.Equal(t, []edge{{down: true}, {up: true}, {down: true}, {up: true}}, edges)
}

func TestButtonHeldFlag(t *testing.T) {
	var b ButtonState
	assert.False(t, b.Held())
	b.Tick(true)
	assert.True(t, b.Held())
	b.Tick(false)
	assert.False(t, b.Held())

	b.Tick(true)
	b.Reset()
	assert.False(t, b.Held())
	d, u := b.Tick(false)
	assert.False(t, d)
	assert.False(t, u, "reset must not leave a pending up")
}
