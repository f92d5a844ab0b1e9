package overlay

import (
	"image"
	"sync"
	"testing"
	"time"
)

type fakeSurface struct {
	mu     sync.Mutex
	shown  []image.Point
	frames []int
	hidden int
}

func (f *fakeSurface) Show(x, y int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.shown = append(f.shown, image.Pt(x, y))
	return nil
}

func (f *fakeSurface) SetFrame(frame int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.frames = append(f.frames, frame)
}

func (f *fakeSurface) Hide() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.hidden++
}

func TestDefaultTiming(t *testing.T) {
	tm := DefaultTiming()
	if got := tm.MinDisplay(); got != 1350*time.Millisecond {
		t.Errorf("MinDisplay = %v, want 1.35s", got)
	}
	if got := tm.OutroWait(); got != 700*time.Millisecond {
		t.Errorf("OutroWait = %v, want 700ms", got)
	}
}

func TestPosition(t *testing.T) {
	got := Position(image.Rect(0, 0, 1920, 1080))
	if got != image.Pt(1800, 930) {
		t.Errorf("Position = %v", got)
	}
}

func TestNextFrameSequence(t *testing.T) {
	phase, frame := PhaseIntro, 0
	var seen []int
	for i := 0; i < 9; i++ {
		phase, frame = nextFrame(phase, frame)
		seen = append(seen, frame)
	}
	want := []int{1, 2, 3, 4, 5, 6, 5, 6, 5}
	for i := range want {
		if seen[i] != want[i] {
			t.Fatalf("intro/running frames = %v, want %v", seen, want)
		}
	}
	if phase != PhaseRunning {
		t.Errorf("Expected running phase, got %v", phase)
	}

	phase, frame = PhaseOutro, firstOutroFrame
	for _, want := range []int{8, 9, 10} {
		phase, frame = nextFrame(phase, frame)
		if phase != PhaseOutro || frame != want {
			t.Fatalf("outro step = (%v, %d), want frame %d", phase, frame, want)
		}
	}
	if phase, _ = nextFrame(phase, frame); phase != PhaseDone {
		t.Errorf("Expected done after last outro frame, got %v", phase)
	}
}

func TestDuckMinimumDisplayWithInstantWork(t *testing.T) {
	surface := &fakeSurface{}
	tm := DefaultTiming()
	tm.Frame = time.Millisecond
	d := newDuck(tm, surface, func() image.Rectangle { return image.Rect(0, 0, 1000, 800) })

	clock := time.Unix(0, 0)
	var slept []time.Duration
	d.now = func() time.Time { return clock }
	d.sleep = func(dur time.Duration) {
		slept = append(slept, dur)
		clock = clock.Add(dur)
	}

	d.Start()
	d.Finish()

	if len(slept) != 2 || slept[0] != tm.MinDisplay() || slept[1] != tm.OutroWait() {
		t.Errorf("sleeps = %v, want [%v %v]", slept, tm.MinDisplay(), tm.OutroWait())
	}

	surface.mu.Lock()
	defer surface.mu.Unlock()
	if len(surface.shown) != 1 || surface.shown[0] != image.Pt(880, 650) {
		t.Errorf("shown = %v", surface.shown)
	}
	if surface.hidden != 1 {
		t.Errorf("Expected one Hide, got %d", surface.hidden)
	}
	if len(surface.frames) == 0 || surface.frames[0] != 0 {
		t.Fatalf("Expected first frame 0, got %v", surface.frames)
	}
	if last := surface.frames[len(surface.frames)-1]; last != lastFrame {
		t.Errorf("Expected outro to end on frame %d, got %d", lastFrame, last)
	}
}

func TestDuckSlowWorkSkipsMinimumWait(t *testing.T) {
	surface := &fakeSurface{}
	tm := DefaultTiming()
	tm.Frame = time.Millisecond
	d := newDuck(tm, surface, func() image.Rectangle { return image.Rect(0, 0, 1000, 800) })

	clock := time.Unix(0, 0)
	var slept []time.Duration
	d.now = func() time.Time { return clock }
	d.sleep = func(dur time.Duration) { slept = append(slept, dur) }

	d.Start()
	clock = clock.Add(5 * time.Second)
	d.Finish()

	if len(slept) != 1 || slept[0] != tm.OutroWait() {
		t.Errorf("sleeps = %v, want only the outro wait", slept)
	}
}

func TestFinishWithoutStart(t *testing.T) {
	surface := &fakeSurface{}
	d := newDuck(DefaultTiming(), surface, func() image.Rectangle { return image.Rect(0, 0, 10, 10) })
	d.Finish()
	if surface.hidden != 0 {
		t.Errorf("Finish without Start should not touch the surface")
	}
}

func TestFrames(t *testing.T) {
	frames := Frames()
	if len(frames) != FrameCount {
		t.Fatalf("Frames() returned %d frames", len(frames))
	}
	for i, f := range frames {
		if f.Bounds() != image.Rect(0, 0, SpriteSize, SpriteSize) {
			t.Errorf("frame %d bounds %v", i, f.Bounds())
		}
	}
	// frame 3 is the landed duck: the eye pixel is set
	if c := frames[3].NRGBAAt(9, 4); c != eyeBlack {
		t.Errorf("Expected eye at (9,4) in frame 3, got %v", c)
	}
	if !IsTransparent(frames[0].NRGBAAt(0, 0)) {
		t.Errorf("Expected transparent corner in frame 0")
	}
}
