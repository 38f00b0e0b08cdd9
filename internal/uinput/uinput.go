//go:build linux

package uinput

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/rs/zerolog"
	"golang.org/x/sys/unix"

	"github.com/xkeycursor/xkeycursor/internal/drive"
)

// DeviceName is the name the virtual pointer registers under.
const DeviceName = "xkeycursor"

var devicePaths = []string{"/dev/uinput", "/dev/input/uinput"}

var defaultLogger = zerolog.New(os.Stderr).With().Str("subsystem", "uinput").Logger()

type inputID struct {
	Bustype uint16
	Vendor  uint16
	Product uint16
	Version uint16
}

type uinputUserDev struct {
	Name         [80]byte
	ID           inputID
	FFEffectsMax uint32
	Absmax       [64]int32
	Absmin       [64]int32
	Absfuzz      [64]int32
	Absflat      [64]int32
}

type inputEvent struct {
	Time  unix.Timeval
	Type  uint16
	Code  uint16
	Value int32
}

// Pointer is a virtual relative pointer with a wheel and two buttons.
// It implements drive.Sink.
type Pointer struct {
	fd  *os.File
	w   io.Writer
	log *zerolog.Logger
}

var _ drive.Sink = (*Pointer)(nil)

// NewPointer creates and registers the virtual pointer device.
func NewPointer(logger *zerolog.Logger) (*Pointer, error) {
	if logger == nil {
		l := defaultLogger
		logger = &l
	}

	f, err := openDevice()
	if err != nil {
		return nil, err
	}
	p := &Pointer{fd: f, w: f, log: logger}
	if err := p.configure(); err != nil {
		_ = f.Close()
		return nil, err
	}
	logger.Info().Str("path", f.Name()).Str("name", DeviceName).Msg("virtual pointer created")
	return p, nil
}

func openDevice() (*os.File, error) {
	var lastErr error
	for _, path := range devicePaths {
		f, err := os.OpenFile(path, os.O_WRONLY|unix.O_NONBLOCK, 0)
		if err == nil {
			return f, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("open uinput failed: %w. Ensure 'modprobe uinput' and permissions", lastErr)
}

func (p *Pointer) configure() error {
	fd := int(p.fd.Fd())

	if err := unix.IoctlSetInt(fd, unix.UI_SET_EVBIT, EV_KEY); err != nil {
		return fmt.Errorf("ioctl UI_SET_EVBIT EV_KEY failed: %w", err)
	}
	for _, code := range []int{BTN_LEFT, BTN_RIGHT} {
		if err := unix.IoctlSetInt(fd, unix.UI_SET_KEYBIT, code); err != nil {
			return fmt.Errorf("ioctl UI_SET_KEYBIT %#x failed: %w", code, err)
		}
	}

	if err := unix.IoctlSetInt(fd, unix.UI_SET_EVBIT, EV_REL); err != nil {
		return fmt.Errorf("ioctl UI_SET_EVBIT EV_REL failed: %w", err)
	}
	for _, code := range []int{REL_X, REL_Y, REL_WHEEL} {
		if err := unix.IoctlSetInt(fd, unix.UI_SET_RELBIT, code); err != nil {
			return fmt.Errorf("ioctl UI_SET_RELBIT %#x failed: %w", code, err)
		}
	}

	var dev uinputUserDev
	copy(dev.Name[:], DeviceName)
	dev.ID = inputID{Bustype: unix.BUS_USB, Vendor: 0x1234, Product: 0x5678, Version: 1}
	if err := binary.Write(p.fd, binary.LittleEndian, &dev); err != nil {
		return fmt.Errorf("write uinput_user_dev: %w", err)
	}

	if err := unix.IoctlSetInt(fd, unix.UI_DEV_CREATE, 0); err != nil {
		return fmt.Errorf("ioctl UI_DEV_CREATE failed: %w", err)
	}
	return nil
}

// Close destroys the device. It is safe to call more than once.
func (p *Pointer) Close() error {
	if p.fd == nil {
		return nil
	}
	_ = unix.IoctlSetInt(int(p.fd.Fd()), unix.UI_DEV_DESTROY, 0)
	err := p.fd.Close()
	p.fd = nil
	p.w = nil
	p.log.Info().Msg("virtual pointer destroyed")
	return err
}

func (p *Pointer) RelativeMove(axis drive.Axis, delta int32) error {
	code := uint16(REL_X)
	if axis == drive.AxisY {
		code = REL_Y
	}
	return p.writeEvent(EV_REL, code, delta)
}

func (p *Pointer) Scroll(ticks int32) error {
	return p.writeEvent(EV_REL, REL_WHEEL, ticks)
}

func (p *Pointer) Button(b drive.Button, pressed bool) error {
	code := uint16(BTN_LEFT)
	if b == drive.Right {
		code = BTN_RIGHT
	}
	var v int32
	if pressed {
		v = 1
	}
	return p.writeEvent(EV_KEY, code, v)
}

// Frame terminates the events written since the previous Frame.
func (p *Pointer) Frame() error {
	return p.writeEvent(EV_SYN, SYN_REPORT, 0)
}

func (p *Pointer) writeEvent(typ, code uint16, val int32) error {
	if p.w == nil {
		return errors.New("uinput device not initialized")
	}
	// The kernel stamps uinput events itself.
	ev := inputEvent{Type: typ, Code: code, Value: val}
	return binary.Write(p.w, binary.LittleEndian, &ev)
}
