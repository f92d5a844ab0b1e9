package tray

import (
	"bytes"
	"fmt"
	"image"
	"image/png"

	"typofix/src/overlay"
)

const (
	iconFrame = 3 // the standing duck
	iconScale = 2
)

// Icon returns the tray icon in the format systray expects on this platform.
func Icon() ([]byte, error) {
	data, err := iconPNG()
	if err != nil {
		return nil, err
	}
	return wrapIcon(data), nil
}

// iconPNG renders the duck sprite as a 32x32 PNG.
func iconPNG() ([]byte, error) {
	src := overlay.Frames()[iconFrame]
	size := overlay.SpriteSize * iconScale
	dst := image.NewNRGBA(image.Rect(0, 0, size, size))
	for y := 0; y < size; y++ {
		for x := 0; x < size; x++ {
			dst.SetNRGBA(x, y, src.NRGBAAt(x/iconScale, y/iconScale))
		}
	}
	var buf bytes.Buffer
	if err := png.Encode(&buf, dst); err != nil {
		return nil, fmt.Errorf("encode tray icon: %w", err)
	}
	return buf.Bytes(), nil
}
