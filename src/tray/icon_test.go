package tray

import (
	"bytes"
	"image/png"
	"testing"
)

func TestIconPNG(t *testing.T) {
	data, err := iconPNG()
	if err != nil {
		t.Fatalf("iconPNG: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("icon is not a PNG: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 32 || b.Dy() != 32 {
		t.Errorf("icon size %v, want 32x32", b)
	}
}

func TestIcon(t *testing.T) {
	data, err := Icon()
	if err != nil || len(data) == 0 {
		t.Fatalf("Icon() = %d bytes, %v", len(data), err)
	}
}

func TestUpdateTooltipBeforeReady(t *testing.T) {
	UpdateTooltip("Typofix: fixing...")
	readyMu.Lock()
	defer readyMu.Unlock()
	if pending != "Typofix: fixing..." {
		t.Errorf("pending tooltip = %q", pending)
	}
}
