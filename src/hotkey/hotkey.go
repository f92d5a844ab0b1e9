package hotkey

import (
	"fmt"
	"strings"
	"sync"

	gohook "github.com/robotn/gohook"
	"go.uber.org/zap"
)

type keyState struct {
	name     string
	rawcodes []uint16
	pressed  bool
}

// Listener fires a callback when every key of a combo is held down at once.
type Listener struct {
	combo    string
	callback func()

	mu   sync.Mutex
	keys []keyState

	stopOnce sync.Once
}

// New validates the combo and prepares a listener without hooking the keyboard.
func New(combo string, callback func()) (*Listener, error) {
	names := parseHotkey(combo)
	var keys []keyState
	for _, name := range names {
		rawcodes := keyNameToRawcodes(name)
		if len(rawcodes) == 0 {
			return nil, fmt.Errorf("hotkey %q: unknown key %q", combo, name)
		}
		keys = append(keys, keyState{name: name, rawcodes: rawcodes})
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("hotkey %q: no keys", combo)
	}
	return &Listener{combo: combo, callback: callback, keys: keys}, nil
}

// Listen starts the global keyboard hook and returns once it is running.
func Listen(combo string, callback func()) (*Listener, error) {
	l, err := New(combo, callback)
	if err != nil {
		return nil, err
	}
	log := zap.S()

	evChan := gohook.Start()
	if evChan == nil {
		return nil, fmt.Errorf("gohook.Start returned nil channel")
	}
	log.Infow("Hotkey listener configured", "hotkey", combo, "keys", parseHotkey(combo))

	go func() {
		defer func() {
			if r := recover(); r != nil {
				log.Errorw("PANIC in hotkey goroutine", "panic", r)
			}
		}()
		for ev := range evChan {
			if ev.Kind != gohook.KeyDown && ev.Kind != gohook.KeyUp {
				continue
			}
			if l.handle(ev.Kind, ev.Rawcode) {
				log.Infow("Hotkey activated", "hotkey", combo)
				if l.callback != nil {
					l.callback()
				}
			}
		}
		log.Debugw("Hotkey event channel closed")
	}()
	return l, nil
}

// Stop unhooks the keyboard. Safe to call more than once.
func (l *Listener) Stop() {
	l.stopOnce.Do(gohook.End)
}

func (l *Listener) Combo() string { return l.combo }

// handle updates key state and reports whether the full combo just completed.
// States are reset after a match so auto-repeat of the last key does not refire.
func (l *Listener) handle(kind uint8, rawcode uint16) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	for i := range l.keys {
		for _, rc := range l.keys[i].rawcodes {
			if rc == rawcode {
				l.keys[i].pressed = kind == gohook.KeyDown
				break
			}
		}
	}
	if kind != gohook.KeyDown {
		return false
	}
	for i := range l.keys {
		if !l.keys[i].pressed {
			return false
		}
	}
	for i := range l.keys {
		l.keys[i].pressed = false
	}
	return true
}

// Modifiers returns the robotgo names of the modifier keys in combo; these are
// still physically held when the callback fires.
func Modifiers(combo string) []string {
	var mods []string
	for _, k := range parseHotkey(combo) {
		switch k {
		case "ctrl", "alt", "shift", "cmd":
			mods = append(mods, k)
		}
	}
	return mods
}

// parseHotkey converts a hotkey string like "Ctrl+Alt+q" to normalized key names
func parseHotkey(combo string) []string {
	var keys []string
	for _, part := range strings.Split(strings.ToLower(combo), "+") {
		part = strings.TrimSpace(part)
		switch part {
		case "":
			continue
		case "control":
			keys = append(keys, "ctrl")
		case "option":
			keys = append(keys, "alt")
		case "win", "cmd", "super", "meta":
			keys = append(keys, "cmd")
		default:
			keys = append(keys, part)
		}
	}
	return keys
}

// Windows virtual-key codes as reported by gohook's Rawcode.
var vkCodes = func() map[string][]uint16 {
	m := map[string][]uint16{
		"ctrl":  {162, 163}, // VK_LCONTROL, VK_RCONTROL
		"alt":   {164, 165}, // VK_LMENU, VK_RMENU
		"shift": {160, 161}, // VK_LSHIFT, VK_RSHIFT
		"cmd":   {91, 92},   // VK_LWIN, VK_RWIN

		"space":     {32},
		"enter":     {13},
		"return":    {13},
		"esc":       {27},
		"escape":    {27},
		"tab":       {9},
		"backspace": {8},
		"delete":    {46},
		"del":       {46},
		"insert":    {45},
		"ins":       {45},
		"home":      {36},
		"end":       {35},
		"pageup":    {33},
		"pgup":      {33},
		"pagedown":  {34},
		"pgdn":      {34},
		"left":      {37},
		"up":        {38},
		"right":     {39},
		"down":      {40},
	}
	for c := 'a'; c <= 'z'; c++ {
		m[string(c)] = []uint16{uint16(65 + c - 'a')}
	}
	for d := '0'; d <= '9'; d++ {
		m[string(d)] = []uint16{uint16(48 + d - '0')}
	}
	for n := 1; n <= 24; n++ {
		m[fmt.Sprintf("f%d", n)] = []uint16{uint16(111 + n)} // VK_F1 = 112
	}
	return m
}()

// keyNameToRawcodes maps a key name to its rawcodes (left and right variants for modifiers).
func keyNameToRawcodes(keyName string) []uint16 {
	keyName = strings.ToLower(strings.TrimSpace(keyName))
	switch keyName {
	case "win", "super", "meta":
		keyName = "cmd"
	}
	return vkCodes[keyName]
}
