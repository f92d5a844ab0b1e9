package input

import (
	"fmt"
	"runtime"

	"github.com/go-vgo/robotgo"
)

// Robot synthesizes keystrokes through robotgo.
type Robot struct{}

func New() *Robot { return &Robot{} }

// Release sends key-up events so modifiers still held from the hotkey do not
// combine with the synthetic copy/paste.
func (r *Robot) Release(keys ...string) error {
	for _, k := range keys {
		if err := robotgo.KeyToggle(k, "up"); err != nil {
			return fmt.Errorf("release %s: %w", k, err)
		}
	}
	return nil
}

// Copy sends the platform copy shortcut.
func (r *Robot) Copy() error {
	if err := robotgo.KeyTap("c", shortcutModifier()); err != nil {
		return fmt.Errorf("copy keystroke: %w", err)
	}
	return nil
}

// Paste sends the platform paste shortcut.
func (r *Robot) Paste() error {
	if err := robotgo.KeyTap("v", shortcutModifier()); err != nil {
		return fmt.Errorf("paste keystroke: %w", err)
	}
	return nil
}

func shortcutModifier() string {
	if runtime.GOOS == "darwin" {
		return "cmd"
	}
	return "ctrl"
}
