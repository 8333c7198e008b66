// Package hotkey provides the global hold-to-talk hotkey pipeline: a raw
// input hook listener, logical key folding, and an edge-triggered
// combination matcher.
package hotkey

import (
	"fmt"
	"strings"

	hook "github.com/robotn/gohook"
)

// Key is a logical key identity. Physically distinct codes that mean the
// same thing (left/right variants of a modifier) fold into one Key.
type Key string

const (
	KeyCtrl  Key = "ctrl"
	KeyShift Key = "shift"
	KeyAlt   Key = "alt"
	KeySuper Key = "super"
	KeySpace Key = "space"
)

// KeyEvent is one normalized key transition posted to the matcher loop.
type KeyEvent struct {
	Key  Key
	Down bool
}

// Combo is the set of keys that must be simultaneously down to engage.
type Combo []Key

// ParseCombo parses a configuration string like "ctrl+shift+space" into a
// Combo. Single letters and digits are accepted as-is.
func ParseCombo(s string) (Combo, error) {
	parts := strings.Split(strings.ToLower(strings.TrimSpace(s)), "+")
	combo := make(Combo, 0, len(parts))
	seen := make(map[Key]bool)
	for _, p := range parts {
		p = strings.TrimSpace(p)
		var k Key
		switch p {
		case "ctrl", "control":
			k = KeyCtrl
		case "shift":
			k = KeyShift
		case "alt", "option":
			k = KeyAlt
		case "super", "cmd", "win", "meta":
			k = KeySuper
		case "space":
			k = KeySpace
		default:
			if len(p) != 1 || !isPrintableKey(rune(p[0])) {
				return nil, fmt.Errorf("unknown key %q in combo %q", p, s)
			}
			k = Key(p)
		}
		if seen[k] {
			continue
		}
		seen[k] = true
		combo = append(combo, k)
	}
	if len(combo) == 0 {
		return nil, fmt.Errorf("empty combo %q", s)
	}
	return combo, nil
}

func (c Combo) String() string {
	parts := make([]string, len(c))
	for i, k := range c {
		parts[i] = string(k)
	}
	return strings.Join(parts, "+")
}

func isPrintableKey(r rune) bool {
	return (r >= 'a' && r <= 'z') || (r >= '0' && r <= '9')
}

// Raw codes observed from the hook, keyed per platform family. X11 reports
// keysyms (left/right modifiers have distinct codes), macOS reports virtual
// keycodes, Windows reports VK codes. All variants of a modifier fold into
// the same logical Key.
var rawcodeKeys = map[uint16]Key{
	// X11 keysyms
	65507: KeyCtrl, 65508: KeyCtrl,
	65505: KeyShift, 65506: KeyShift,
	65513: KeyAlt, 65514: KeyAlt,
	65515: KeySuper, 65516: KeySuper,
	32: KeySpace,

	// Windows virtual-key codes
	162: KeyCtrl, 163: KeyCtrl, 17: KeyCtrl,
	160: KeyShift, 161: KeyShift, 16: KeyShift,
	164: KeyAlt, 165: KeyAlt, 18: KeyAlt,
	91: KeySuper, 92: KeySuper,

	// macOS virtual keycodes
	59: KeyCtrl, 62: KeyCtrl,
	56: KeyShift, 60: KeyShift,
	58: KeyAlt, 61: KeyAlt,
	55: KeySuper, 54: KeySuper,
	49: KeySpace,
}

// foldEvent maps a raw hook event to a logical key. ok is false for keys the
// matcher does not care about.
func foldEvent(ev hook.Event) (Key, bool) {
	if k, ok := rawcodeKeys[ev.Rawcode]; ok {
		return k, true
	}
	if isPrintableKey(ev.Keychar) {
		return Key(string(ev.Keychar)), true
	}
	return "", false
}
