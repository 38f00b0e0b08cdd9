//go:build !linux

package uinput

import (
	"errors"

	"github.com/rs/zerolog"

	"github.com/xkeycursor/xkeycursor/internal/drive"
)

var errUnsupported = errors.New("uinput only supported on linux")

type Pointer struct{}

func NewPointer(logger *zerolog.Logger) (*Pointer, error) {
	return nil, errUnsupported
}

func (p *Pointer) Close() error { return nil }

func (p *Pointer) RelativeMove(axis drive.Axis, delta int32) error { return errUnsupported }
func (p *Pointer) Scroll(ticks int32) error                        { return errUnsupported }
func (p *Pointer) Button(b drive.Button, pressed bool) error       { return errUnsupported }
func (p *Pointer) Frame() error                                    { return errUnsupported }
