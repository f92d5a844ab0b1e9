package overlay

import (
	"image"
	"sync"
	"time"

	"github.com/kbinani/screenshot"
	"go.uber.org/zap"
)

// Phase of the duck animation.
type Phase int

const (
	PhaseIntro Phase = iota
	PhaseRunning
	PhaseOutro
	PhaseDone
)

const (
	firstRunningFrame = 5
	firstOutroFrame   = 7
	lastFrame         = FrameCount - 1

	// Offsets from the bottom-right corner of the primary display.
	marginRight  = 120
	marginBottom = 150
	outroSlack   = 100 * time.Millisecond
)

// Timing controls how long the overlay stays on screen.
type Timing struct {
	Frame            time.Duration
	IntroFrames      int
	OutroFrames      int
	MinRunningCycles int
	FramesPerCycle   int
}

func DefaultTiming() Timing {
	return Timing{
		Frame:            150 * time.Millisecond,
		IntroFrames:      5,
		OutroFrames:      4,
		MinRunningCycles: 2,
		FramesPerCycle:   2,
	}
}

// MinDisplay is the shortest time the overlay is visible before the outro:
// the intro plus MinRunningCycles running cycles.
func (t Timing) MinDisplay() time.Duration {
	return t.Frame * time.Duration(t.IntroFrames+t.MinRunningCycles*t.FramesPerCycle)
}

// OutroWait is how long the outro plays before the window is hidden.
func (t Timing) OutroWait() time.Duration {
	return t.Frame*time.Duration(t.OutroFrames) + outroSlack
}

// Position returns the top-left corner of the overlay for a display.
func Position(display image.Rectangle) image.Point {
	return image.Pt(display.Max.X-marginRight, display.Max.Y-marginBottom)
}

// nextFrame advances the animation by one tick.
func nextFrame(phase Phase, frame int) (Phase, int) {
	switch phase {
	case PhaseIntro:
		if frame >= firstRunningFrame-1 {
			return PhaseRunning, firstRunningFrame
		}
		return PhaseIntro, frame + 1
	case PhaseRunning:
		if frame == firstRunningFrame {
			return PhaseRunning, firstRunningFrame + 1
		}
		return PhaseRunning, firstRunningFrame
	case PhaseOutro:
		if frame >= lastFrame {
			return PhaseDone, lastFrame
		}
		return PhaseOutro, frame + 1
	}
	return PhaseDone, frame
}

// Surface is the window that shows animation frames.
type Surface interface {
	Show(x, y int) error
	SetFrame(frame int)
	Hide()
}

// Duck runs the processing indicator on a Surface.
type Duck struct {
	timing  Timing
	surface Surface
	display func() image.Rectangle
	now     func() time.Time
	sleep   func(time.Duration)

	mu      sync.Mutex
	shownAt time.Time
	visible bool
	finish  chan struct{}
	stopped chan struct{}
}

// NewDuck returns an animator drawing on the platform overlay window.
func NewDuck() *Duck {
	return newDuck(DefaultTiming(), newSurface(), primaryDisplay)
}

func newDuck(timing Timing, surface Surface, display func() image.Rectangle) *Duck {
	return &Duck{
		timing:  timing,
		surface: surface,
		display: display,
		now:     time.Now,
		sleep:   time.Sleep,
	}
}

func primaryDisplay() image.Rectangle {
	if screenshot.NumActiveDisplays() < 1 {
		return image.Rect(0, 0, 1920, 1080)
	}
	return screenshot.GetDisplayBounds(0)
}

// Start positions the overlay at the bottom-right of the primary display,
// shows it and begins the intro.
func (d *Duck) Start() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.visible {
		return
	}

	pos := Position(d.display())
	d.surface.SetFrame(0)
	if err := d.surface.Show(pos.X, pos.Y); err != nil {
		zap.S().Warnw("Overlay: failed to show", "error", err)
		return
	}
	d.shownAt = d.now()
	d.visible = true
	d.finish = make(chan struct{})
	d.stopped = make(chan struct{})
	go d.animate(d.finish, d.stopped)
}

// Finish keeps the overlay up for at least MinDisplay since Start, plays the
// outro and hides the window. It blocks until the overlay is gone.
func (d *Duck) Finish() {
	d.mu.Lock()
	if !d.visible {
		d.mu.Unlock()
		return
	}
	shownAt, finish, stopped := d.shownAt, d.finish, d.stopped
	d.visible = false
	d.mu.Unlock()

	if elapsed := d.now().Sub(shownAt); elapsed < d.timing.MinDisplay() {
		d.sleep(d.timing.MinDisplay() - elapsed)
	}
	close(finish)
	d.sleep(d.timing.OutroWait())
	<-stopped
	d.surface.Hide()
}

func (d *Duck) animate(finish <-chan struct{}, stopped chan<- struct{}) {
	defer close(stopped)
	ticker := time.NewTicker(d.timing.Frame)
	defer ticker.Stop()

	phase, frame := PhaseIntro, 0
	for {
		select {
		case <-finish:
			phase, frame = PhaseOutro, firstOutroFrame
			d.surface.SetFrame(frame)
			finish = nil
		case <-ticker.C:
			phase, frame = nextFrame(phase, frame)
			if phase == PhaseDone {
				return
			}
			d.surface.SetFrame(frame)
		}
	}
}
