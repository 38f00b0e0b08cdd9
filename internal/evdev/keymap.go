package evdev

import (
	"fmt"

	goevdev "github.com/holoplot/go-evdev"

	"github.com/xkeycursor/xkeycursor/internal/drive"
	"github.com/xkeycursor/xkeycursor/internal/uinput"
)

var modifierKeys = map[string][]string{
	"Super":   {"Super_L", "Super_R"},
	"Alt":     {"Alt_L", "Alt_R"},
	"Control": {"Control_L", "Control_R"},
	"Shift":   {"Shift_L", "Shift_R"},
}

// keymap holds bindings resolved to Linux key codes.
type keymap struct {
	modKeys  []goevdev.EvCode
	activate goevdev.EvCode
	keys     [len(drive.Keys)]goevdev.EvCode
	buttons  [len(drive.Buttons)]goevdev.EvCode
	slow     goevdev.EvCode
	hasSlow  bool
}

func code(name string) (goevdev.EvCode, error) {
	c, ok := uinput.KeyCode(name)
	if !ok {
		return 0, fmt.Errorf("unknown key %q", name)
	}
	return goevdev.EvCode(c), nil
}

func resolve(b drive.Bindings) (*keymap, error) {
	syms, ok := modifierKeys[b.Modifier]
	if !ok {
		return nil, fmt.Errorf("unknown modifier %q", b.Modifier)
	}

	km := &keymap{}
	for _, sym := range syms {
		c, err := code(sym)
		if err != nil {
			return nil, err
		}
		km.modKeys = append(km.modKeys, c)
	}

	var err error
	if km.activate, err = code(b.Activate); err != nil {
		return nil, err
	}
	for _, k := range drive.Keys {
		if km.keys[k], err = code(b.Keys[k]); err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
	}
	for _, btn := range drive.Buttons {
		if km.buttons[btn], err = code(b.Buttons[btn]); err != nil {
			return nil, fmt.Errorf("%s click: %w", btn, err)
		}
	}
	if b.Slow != "" {
		if km.slow, err = code(b.Slow); err != nil {
			return nil, fmt.Errorf("slow: %w", err)
		}
		km.hasSlow = true
	}
	return km, nil
}

func anyDown(state goevdev.StateMap, codes ...goevdev.EvCode) bool {
	for _, c := range codes {
		if state[c] {
			return true
		}
	}
	return false
}

func (km *keymap) hotkeyDown(state goevdev.StateMap) bool {
	return anyDown(state, km.modKeys...) && state[km.activate]
}

func (km *keymap) snapshot(state goevdev.StateMap) drive.Snapshot {
	var s drive.Snapshot
	for _, k := range drive.Keys {
		s.Keys[k] = state[km.keys[k]]
	}
	for _, b := range drive.Buttons {
		s.Buttons[b] = state[km.buttons[b]]
	}
	s.Slow = km.hasSlow && state[km.slow]
	s.Deactivate = km.hotkeyDown(state)
	return s
}
