package clipboard

import (
	"testing"
)

func TestWriteBeforeInit(t *testing.T) {
	mu.Lock()
	was := initialized
	initialized = false
	mu.Unlock()
	defer func() {
		mu.Lock()
		initialized = was
		mu.Unlock()
	}()

	if err := Write("x"); err != ErrNotInitialized {
		t.Errorf("Write before Init = %v, want ErrNotInitialized", err)
	}
	if _, err := Read(); err != ErrNotInitialized {
		t.Errorf("Read before Init = %v, want ErrNotInitialized", err)
	}
}

func TestRoundTrip(t *testing.T) {
	// Needs a display/clipboard; headless runners skip.
	if err := Init(); err != nil {
		t.Skipf("clipboard unavailable: %v", err)
	}
	if err := Write("typofix clipboard test"); err != nil {
		t.Fatalf("Write: %v", err)
	}
	got, err := System{}.Read()
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got != "typofix clipboard test" {
		t.Errorf("Read = %q", got)
	}
}
