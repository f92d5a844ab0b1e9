package clipboard

import (
	"errors"
	"sync"

	"golang.design/x/clipboard"
)

// ErrNotInitialized is returned until Init has succeeded.
var ErrNotInitialized = errors.New("clipboard not initialized")

var (
	mu          sync.Mutex
	initialized bool
)

func Init() error {
	mu.Lock()
	defer mu.Unlock()
	if initialized {
		return nil
	}
	if err := clipboard.Init(); err != nil {
		return err
	}
	initialized = true
	return nil
}

// Read returns the current text content; an empty clipboard or non-text content reads as "".
func Read() (string, error) {
	mu.Lock()
	defer mu.Unlock()
	if !initialized {
		return "", ErrNotInitialized
	}
	return string(clipboard.Read(clipboard.FmtText)), nil
}

// Write performs a mutex-guarded clipboard write to prevent corruption under parallel writes.
func Write(text string) error {
	mu.Lock()
	defer mu.Unlock()
	if !initialized {
		return ErrNotInitialized
	}
	clipboard.Write(clipboard.FmtText, []byte(text))
	return nil
}

// System adapts the package functions to the fix pipeline's clipboard interface.
type System struct{}

func (System) Read() (string, error) { return Read() }
func (System) Write(text string) error { return Write(text) }
