package uinput

import "strings"

// Linux input event types and codes, from include/uapi/linux/input-event-codes.h.
const (
	EV_SYN = 0x00
	EV_KEY = 0x01
	EV_REL = 0x02

	SYN_REPORT = 0

	REL_X     = 0x00
	REL_Y     = 0x01
	REL_WHEEL = 0x08

	BTN_LEFT  = 0x110
	BTN_RIGHT = 0x111
)

// Linux keyboard key codes.
const (
	KEY_ESC        = 1
	KEY_1          = 2
	KEY_2          = 3
	KEY_3          = 4
	KEY_4          = 5
	KEY_5          = 6
	KEY_6          = 7
	KEY_7          = 8
	KEY_8          = 9
	KEY_9          = 10
	KEY_0          = 11
	KEY_MINUS      = 12
	KEY_EQUAL      = 13
	KEY_BACKSPACE  = 14
	KEY_TAB        = 15
	KEY_Q          = 16
	KEY_W          = 17
	KEY_E          = 18
	KEY_R          = 19
	KEY_T          = 20
	KEY_Y          = 21
	KEY_U          = 22
	KEY_I          = 23
	KEY_O          = 24
	KEY_P          = 25
	KEY_LEFTBRACE  = 26
	KEY_RIGHTBRACE = 27
	KEY_ENTER      = 28
	KEY_LEFTCTRL   = 29
	KEY_A          = 30
	KEY_S          = 31
	KEY_D          = 32
	KEY_F          = 33
	KEY_G          = 34
	KEY_H          = 35
	KEY_J          = 36
	KEY_K          = 37
	KEY_L          = 38
	KEY_SEMICOLON  = 39
	KEY_APOSTROPHE = 40
	KEY_GRAVE      = 41
	KEY_LEFTSHIFT  = 42
	KEY_BACKSLASH  = 43
	KEY_Z          = 44
	KEY_X          = 45
	KEY_C          = 46
	KEY_V          = 47
	KEY_B          = 48
	KEY_N          = 49
	KEY_M          = 50
	KEY_COMMA      = 51
	KEY_DOT        = 52
	KEY_SLASH      = 53
	KEY_RIGHTSHIFT = 54
	KEY_LEFTALT    = 56
	KEY_SPACE      = 57
	KEY_CAPSLOCK   = 58
	KEY_RIGHTCTRL  = 97
	KEY_RIGHTALT   = 100
	KEY_UP         = 103
	KEY_LEFT       = 105
	KEY_RIGHT      = 106
	KEY_DOWN       = 108
	KEY_LEFTMETA   = 125
	KEY_RIGHTMETA  = 126
)

// keysymToLinux maps X keysym names (as used in the bindings file) to Linux
// key codes, so one bindings file serves both the X11 and evdev backends.
// Lookups are case-insensitive.
var keysymToLinux = map[string]uint16{
	"escape":    KEY_ESC,
	"1":         KEY_1,
	"2":         KEY_2,
	"3":         KEY_3,
	"4":         KEY_4,
	"5":         KEY_5,
	"6":         KEY_6,
	"7":         KEY_7,
	"8":         KEY_8,
	"9":         KEY_9,
	"0":         KEY_0,
	"minus":     KEY_MINUS,
	"equal":     KEY_EQUAL,
	"backspace": KEY_BACKSPACE,
	"tab":       KEY_TAB,

	"q":            KEY_Q,
	"w":            KEY_W,
	"e":            KEY_E,
	"r":            KEY_R,
	"t":            KEY_T,
	"y":            KEY_Y,
	"u":            KEY_U,
	"i":            KEY_I,
	"o":            KEY_O,
	"p":            KEY_P,
	"bracketleft":  KEY_LEFTBRACE,
	"bracketright": KEY_RIGHTBRACE,
	"return":       KEY_ENTER,
	"control_l":    KEY_LEFTCTRL,

	"a":          KEY_A,
	"s":          KEY_S,
	"d":          KEY_D,
	"f":          KEY_F,
	"g":          KEY_G,
	"h":          KEY_H,
	"j":          KEY_J,
	"k":          KEY_K,
	"l":          KEY_L,
	"semicolon":  KEY_SEMICOLON,
	"apostrophe": KEY_APOSTROPHE,
	"grave":      KEY_GRAVE,
	"shift_l":    KEY_LEFTSHIFT,
	"backslash":  KEY_BACKSLASH,

	"z":       KEY_Z,
	"x":       KEY_X,
	"c":       KEY_C,
	"v":       KEY_V,
	"b":       KEY_B,
	"n":       KEY_N,
	"m":       KEY_M,
	"comma":   KEY_COMMA,
	"period":  KEY_DOT,
	"slash":   KEY_SLASH,
	"shift_r": KEY_RIGHTSHIFT,

	"alt_l":     KEY_LEFTALT,
	"space":     KEY_SPACE,
	"caps_lock": KEY_CAPSLOCK,
	"control_r": KEY_RIGHTCTRL,
	"alt_r":     KEY_RIGHTALT,
	"super_l":   KEY_LEFTMETA,
	"super_r":   KEY_RIGHTMETA,

	"up":    KEY_UP,
	"left":  KEY_LEFT,
	"right": KEY_RIGHT,
	"down":  KEY_DOWN,
}

// KeyCode resolves a keysym name to its Linux key code.
func KeyCode(name string) (uint16, bool) {
	code, ok := keysymToLinux[strings.ToLower(name)]
	return code, ok
}
