package overlay

import (
	"image"
	"image/color"
)

// SpriteSize is the edge length of one animation frame in pixels.
const SpriteSize = 16

// FrameCount is the number of frames in the duck animation.
const FrameCount = 11

var (
	headGreen  = color.NRGBA{34, 139, 34, 255}
	neckWhite  = color.NRGBA{255, 255, 255, 255}
	chestBrown = color.NRGBA{139, 69, 19, 255}
	bodyGrey   = color.NRGBA{160, 160, 160, 255}
	beakOrange = color.NRGBA{255, 140, 0, 255}
	eyeBlack   = color.NRGBA{0, 0, 0, 255}
	groundLine = color.NRGBA{80, 80, 80, 255}
	smoke      = color.NRGBA{210, 210, 230, 180}
	star       = color.NRGBA{255, 215, 0, 255}
)

type pose int

const (
	poseStand pose = iota
	poseRun1
	poseRun2
)

type canvas struct{ img *image.NRGBA }

func newCanvas() canvas {
	return canvas{img: image.NewNRGBA(image.Rect(0, 0, SpriteSize, SpriteSize))}
}

// set ignores out-of-frame pixels so poses can be shifted freely.
func (c canvas) set(x, y int, col color.NRGBA) {
	if x < 0 || y < 0 || x >= SpriteSize || y >= SpriteSize {
		return
	}
	c.img.SetNRGBA(x, y, col)
}

func (c canvas) fill(x0, y0, x1, y1 int, col color.NRGBA) {
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			c.set(x, y, col)
		}
	}
}

func (c canvas) line(full bool) {
	if full {
		c.fill(0, 14, 16, 15, groundLine)
		return
	}
	c.fill(4, 14, 12, 15, groundLine)
}

func (c canvas) duck(yOff int, p pose) {
	hx, hy := 6, 2+yOff
	c.fill(hx, hy, hx+4, hy+4, headGreen)
	c.set(hx+3, hy+1, eyeBlack)
	c.fill(hx-3, hy+2, hx, hy+3, beakOrange)
	c.fill(hx, hy+4, hx+4, hy+5, neckWhite)

	by := hy + 5
	c.fill(hx-2, by, hx+1, by+4, chestBrown)
	c.fill(hx+1, by, hx+7, by+4, bodyGrey)

	fy := by + 4
	switch p {
	case poseStand:
		c.set(hx, fy, beakOrange)
		c.set(hx+4, fy, beakOrange)
	case poseRun1:
		c.set(hx-1, fy, beakOrange)
		c.set(hx+3, fy-1, beakOrange)
	case poseRun2:
		c.set(hx, fy-1, beakOrange)
		c.set(hx+5, fy, beakOrange)
	}
}

// Frames renders the animation: 0-4 intro (the duck pops out of a hole),
// 5-6 running loop, 7-10 outro (a puff of smoke).
func Frames() []*image.NRGBA {
	frames := make([]*image.NRGBA, 0, FrameCount)
	add := func(draw func(c canvas)) {
		c := newCanvas()
		draw(c)
		frames = append(frames, c.img)
	}

	add(func(c canvas) { c.line(false) })
	add(func(c canvas) {
		c.line(true)
		c.fill(7, 11, 11, 14, headGreen)
		c.set(10, 12, eyeBlack)
		c.fill(4, 13, 7, 14, beakOrange)
	})
	add(func(c canvas) { c.line(false); c.duck(-2, poseStand) })
	add(func(c canvas) { c.duck(1, poseStand) })
	add(func(c canvas) { c.duck(2, poseStand) })
	add(func(c canvas) { c.duck(1, poseRun1) })
	add(func(c canvas) { c.duck(0, poseRun2) })
	add(func(c canvas) { c.duck(1, poseRun1) })
	add(func(c canvas) { c.fill(5, 6, 11, 12, smoke) })
	add(func(c canvas) { c.fill(2, 3, 14, 13, smoke) })
	add(func(c canvas) {
		c.set(4, 4, star)
		c.set(12, 2, star)
		c.set(13, 10, star)
		c.set(8, 7, smoke)
		c.set(7, 8, smoke)
	})
	return frames
}

// IsTransparent reports whether a sprite pixel should not be drawn.
func IsTransparent(c color.NRGBA) bool { return c.A == 0 }
