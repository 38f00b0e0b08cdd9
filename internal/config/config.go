package config

import (
	"errors"
	"fmt"
	"io"
	"io/fs"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"github.com/Masterminds/semver/v3"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog"

	"github.com/xkeycursor/xkeycursor/internal/drive"
)

var (
	ErrNotFound  = errors.New("config file not found")
	ErrMalformed = errors.New("config file malformed")
	ErrVersion   = errors.New("unsupported config version")
)

// SupportedVersions is the ConfigVersion range this build understands.
const SupportedVersions = ">= 1.0.0, < 2.0.0"

const CurrentVersion = "1.0.0"

// Modifier is the activation modifier. Only these exact names are accepted.
type Modifier string

const (
	ModSuper   Modifier = "Super"
	ModAlt     Modifier = "Alt"
	ModControl Modifier = "Control"
	ModShift   Modifier = "Shift"
)

func ParseModifier(s string) (Modifier, error) {
	switch m := Modifier(s); m {
	case ModSuper, ModAlt, ModControl, ModShift:
		return m, nil
	default:
		return "", fmt.Errorf("unknown modifier %q (want Super, Alt, Control or Shift)", s)
	}
}

const (
	BackendAuto  = "auto"
	BackendX11   = "x11"
	BackendEvdev = "evdev"
)

type Config struct {
	Bindings drive.Bindings

	// RefreshRate in Hz; 0 probes the display.
	RefreshRate int
	// DisplayHeight in pixels; 0 probes the display.
	DisplayHeight int

	Backend     string
	Devices     []string
	MetricsFile string
	LogLevel    string
	Version     string
}

// Default mirrors the stock bindings: Super+w toggles, WASD moves, e/q
// scroll, space and Tab click, left shift slows the pointer.
func Default() Config {
	b := drive.Bindings{
		Modifier: string(ModSuper),
		Activate: "w",
		Slow:     "Shift_L",
	}
	b.Keys[drive.MoveUp] = "w"
	b.Keys[drive.MoveDown] = "s"
	b.Keys[drive.MoveLeft] = "a"
	b.Keys[drive.MoveRight] = "d"
	b.Keys[drive.ScrollUp] = "e"
	b.Keys[drive.ScrollDown] = "q"
	b.Buttons[drive.Left] = "space"
	b.Buttons[drive.Right] = "Tab"

	return Config{
		Bindings: b,
		Backend:  BackendAuto,
		LogLevel: zerolog.InfoLevel.String(),
		Version:  CurrentVersion,
	}
}

// DefaultPath is $XDG_CONFIG_HOME/xkeycursor/config.
func DefaultPath() string {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "xkeycursor.conf"
	}
	return filepath.Join(dir, "xkeycursor", "config")
}

// Warnings are non-fatal problems found while loading. Each affected value
// keeps its default.
type Warnings []error

// Has reports whether any warning matches target.
func (w Warnings) Has(target error) bool {
	for _, err := range w {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Rejected reports whether the whole file was discarded.
func (w Warnings) Rejected() bool {
	return w.Has(ErrNotFound) || w.Has(ErrMalformed) || w.Has(ErrVersion)
}

// Load reads path. A missing or unreadable file yields the defaults.
func Load(path string) (Config, Warnings) {
	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return Default(), Warnings{fmt.Errorf("%w: %s", ErrNotFound, path)}
		}
		return Default(), Warnings{fmt.Errorf("%w: %w", ErrMalformed, err)}
	}
	defer f.Close()
	return Parse(f)
}

type setter func(c *Config, v string) error

func bindKey(k drive.Key) setter {
	return func(c *Config, v string) error {
		c.Bindings.Keys[k] = v
		return nil
	}
}

func bindButton(b drive.Button) setter {
	return func(c *Config, v string) error {
		c.Bindings.Buttons[b] = v
		return nil
	}
}

func intRange(dst func(*Config) *int, lo, hi int) setter {
	return func(c *Config, v string) error {
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("not a number: %q", v)
		}
		if n < lo || n > hi {
			return fmt.Errorf("%d out of range [%d, %d]", n, lo, hi)
		}
		*dst(c) = n
		return nil
	}
}

var setters = map[string]setter{
	"ActivateModifier": func(c *Config, v string) error {
		m, err := ParseModifier(v)
		if err != nil {
			return err
		}
		c.Bindings.Modifier = string(m)
		return nil
	},
	"ActivateKey": func(c *Config, v string) error {
		c.Bindings.Activate = v
		return nil
	},
	"LeftClickKey":  bindButton(drive.Left),
	"RightClickKey": bindButton(drive.Right),
	"MouseUpKey":    bindKey(drive.MoveUp),
	"MouseDownKey":  bindKey(drive.MoveDown),
	"MouseLeftKey":  bindKey(drive.MoveLeft),
	"MouseRightKey": bindKey(drive.MoveRight),
	"ScrollUpKey":   bindKey(drive.ScrollUp),
	"ScrollDownKey": bindKey(drive.ScrollDown),
	"SlowKey": func(c *Config, v string) error {
		c.Bindings.Slow = v
		return nil
	},
	"RefreshRate":   intRange(func(c *Config) *int { return &c.RefreshRate }, 0, 1000),
	"DisplayHeight": intRange(func(c *Config) *int { return &c.DisplayHeight }, 0, 16384),
	"Backend": func(c *Config, v string) error {
		switch v {
		case BackendAuto, BackendX11, BackendEvdev:
			c.Backend = v
			return nil
		}
		return fmt.Errorf("unknown backend %q", v)
	},
	"Devices": func(c *Config, v string) error {
		c.Devices = nil
		for _, d := range strings.Split(v, ",") {
			if d = strings.TrimSpace(d); d != "" {
				c.Devices = append(c.Devices, d)
			}
		}
		return nil
	},
	"MetricsFile": func(c *Config, v string) error {
		c.MetricsFile = v
		return nil
	},
	"LogLevel": func(c *Config, v string) error {
		if _, err := zerolog.ParseLevel(v); err != nil {
			return err
		}
		c.LogLevel = v
		return nil
	},
	"ConfigVersion": func(c *Config, v string) error {
		c.Version = v
		return nil
	},
}

// Parse reads key=value lines from r on top of the defaults.
func Parse(r io.Reader) (Config, Warnings) {
	values, err := godotenv.Parse(r)
	if err != nil {
		return Default(), Warnings{fmt.Errorf("%w: %w", ErrMalformed, err)}
	}

	if v, ok := values["ConfigVersion"]; ok {
		if err := checkVersion(v); err != nil {
			return Default(), Warnings{err}
		}
	}

	cfg := Default()
	var warns Warnings
	for _, key := range slices.Sorted(maps.Keys(values)) {
		v := values[key]
		set, ok := setters[key]
		if !ok {
			warns = append(warns, fmt.Errorf("unknown key %q", key))
			continue
		}
		v = strings.TrimSpace(v)
		if v == "" && key != "Devices" && key != "MetricsFile" {
			warns = append(warns, fmt.Errorf("%s: empty value, keeping default", key))
			continue
		}
		if err := set(&cfg, v); err != nil {
			warns = append(warns, fmt.Errorf("%s: %w, keeping default", key, err))
		}
	}
	warns = append(warns, cfg.conflicts()...)
	return cfg, warns
}

func checkVersion(v string) error {
	ver, err := semver.NewVersion(v)
	if err != nil {
		return fmt.Errorf("%w: %q: %w", ErrVersion, v, err)
	}
	c, err := semver.NewConstraint(SupportedVersions)
	if err != nil {
		return err
	}
	if !c.Check(ver) {
		return fmt.Errorf("%w: %s does not satisfy %s", ErrVersion, ver, SupportedVersions)
	}
	return nil
}

// conflicts reports keys bound to more than one drive-mode role. The
// activation key is allowed to double as a motion key because it is only
// matched together with the modifier.
func (c Config) conflicts() Warnings {
	roles := map[string][]string{}
	add := func(role, key string) {
		if key != "" {
			k := strings.ToLower(key)
			roles[k] = append(roles[k], role)
		}
	}
	for _, k := range drive.Keys {
		add(k.String(), c.Bindings.Keys[k])
	}
	add("left_click", c.Bindings.Buttons[drive.Left])
	add("right_click", c.Bindings.Buttons[drive.Right])
	add("slow", c.Bindings.Slow)

	var warns Warnings
	for _, key := range slices.Sorted(maps.Keys(roles)) {
		if rs := roles[key]; len(rs) > 1 {
			warns = append(warns, fmt.Errorf("key %q bound to %s", key, strings.Join(rs, ", ")))
		}
	}
	return warns
}

// Encode renders cfg in the file format accepted by Parse.
func Encode(cfg Config) (string, error) {
	b := cfg.Bindings
	values := map[string]string{
		"ConfigVersion":    cfg.Version,
		"ActivateModifier": b.Modifier,
		"ActivateKey":      b.Activate,
		"LeftClickKey":     b.Buttons[drive.Left],
		"RightClickKey":    b.Buttons[drive.Right],
		"MouseUpKey":       b.Keys[drive.MoveUp],
		"MouseDownKey":     b.Keys[drive.MoveDown],
		"MouseLeftKey":     b.Keys[drive.MoveLeft],
		"MouseRightKey":    b.Keys[drive.MoveRight],
		"ScrollUpKey":      b.Keys[drive.ScrollUp],
		"ScrollDownKey":    b.Keys[drive.ScrollDown],
		"SlowKey":          b.Slow,
		"RefreshRate":      strconv.Itoa(cfg.RefreshRate),
		"DisplayHeight":    strconv.Itoa(cfg.DisplayHeight),
		"Backend":          cfg.Backend,
		"Devices":          strings.Join(cfg.Devices, ","),
		"MetricsFile":      cfg.MetricsFile,
		"LogLevel":         cfg.LogLevel,
	}
	return godotenv.Marshal(values)
}
