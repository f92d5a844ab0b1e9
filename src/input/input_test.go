package input

import (
	"runtime"
	"testing"
)

func TestShortcutModifier(t *testing.T) {
	want := "ctrl"
	if runtime.GOOS == "darwin" {
		want = "cmd"
	}
	if got := shortcutModifier(); got != want {
		t.Errorf("shortcutModifier() = %q, want %q", got, want)
	}
}
