package x11

import (
	"fmt"

	"github.com/BurntSushi/xgb/xproto"

	"github.com/xkeycursor/xkeycursor/internal/drive"
)

// modifierSpec describes one of the accepted activation modifiers.
type modifierSpec struct {
	mask    uint16
	keysyms []string
}

var modifiers = map[string]modifierSpec{
	"Super":   {mask: xproto.ModMask4, keysyms: []string{"Super_L", "Super_R"}},
	"Alt":     {mask: xproto.ModMask1, keysyms: []string{"Alt_L", "Alt_R"}},
	"Control": {mask: xproto.ModMaskControl, keysyms: []string{"Control_L", "Control_R"}},
	"Shift":   {mask: xproto.ModMaskShift, keysyms: []string{"Shift_L", "Shift_R"}},
}

// keymap is a set of bindings resolved to the keycodes of the running server.
// One keysym can sit on several keycodes; a role is down if any of them is.
type keymap struct {
	mods     uint16
	modKeys  []xproto.Keycode
	activate []xproto.Keycode
	keys     [len(drive.Keys)][]xproto.Keycode
	buttons  [len(drive.Buttons)][]xproto.Keycode
	slow     []xproto.Keycode
}

// lookupFunc resolves a keysym name to keycodes.
type lookupFunc func(name string) []xproto.Keycode

func resolve(b drive.Bindings, lookup lookupFunc) (*keymap, error) {
	spec, ok := modifiers[b.Modifier]
	if !ok {
		return nil, fmt.Errorf("unknown modifier %q", b.Modifier)
	}

	km := &keymap{mods: spec.mask}
	for _, sym := range spec.keysyms {
		km.modKeys = append(km.modKeys, lookup(sym)...)
	}
	if len(km.modKeys) == 0 {
		return nil, fmt.Errorf("modifier %s has no keycodes", b.Modifier)
	}

	var err error
	must := func(name string) []xproto.Keycode {
		codes := lookup(name)
		if len(codes) == 0 && err == nil {
			err = fmt.Errorf("unknown key %q", name)
		}
		return codes
	}

	km.activate = must(b.Activate)
	for _, k := range drive.Keys {
		km.keys[k] = must(b.Keys[k])
	}
	for _, btn := range drive.Buttons {
		km.buttons[btn] = must(b.Buttons[btn])
	}
	if b.Slow != "" {
		km.slow = must(b.Slow)
	}
	if err != nil {
		return nil, err
	}
	return km, nil
}

// driveCodes returns every keycode grabbed while driving.
func (km *keymap) driveCodes() []xproto.Keycode {
	seen := map[xproto.Keycode]bool{}
	var out []xproto.Keycode
	add := func(codes []xproto.Keycode) {
		for _, c := range codes {
			if !seen[c] {
				seen[c] = true
				out = append(out, c)
			}
		}
	}
	for _, codes := range km.keys {
		add(codes)
	}
	for _, codes := range km.buttons {
		add(codes)
	}
	add(km.slow)
	return out
}

// keyDown tests keycode kc in a QueryKeymap bit vector.
func keyDown(bits []byte, kc xproto.Keycode) bool {
	i := int(kc) / 8
	if i >= len(bits) {
		return false
	}
	return bits[i]&(1<<(kc%8)) != 0
}

func anyDown(bits []byte, codes []xproto.Keycode) bool {
	for _, kc := range codes {
		if keyDown(bits, kc) {
			return true
		}
	}
	return false
}

func (km *keymap) snapshot(bits []byte) drive.Snapshot {
	var s drive.Snapshot
	for _, k := range drive.Keys {
		s.Keys[k] = anyDown(bits, km.keys[k])
	}
	for _, b := range drive.Buttons {
		s.Buttons[b] = anyDown(bits, km.buttons[b])
	}
	s.Slow = anyDown(bits, km.slow)
	s.Deactivate = anyDown(bits, km.modKeys) && anyDown(bits, km.activate)
	return s
}

func (km *keymap) isActivate(kc xproto.Keycode) bool {
	for _, c := range km.activate {
		if c == kc {
			return true
		}
	}
	return false
}
