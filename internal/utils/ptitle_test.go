package utils

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTitles(t *testing.T) {
	assert.Equal(t, "xkeycursor: idle", IdleTitle())
	assert.Equal(t, "xkeycursor: drive cv37img5tppgl4002kb0", DriveTitle("cv37img5tppgl4002kb0"))
}
