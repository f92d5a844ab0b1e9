package singleinstance

import "sync"

const (
	DefaultPortStart = 49600
	DefaultPortEnd   = 49650

	minPort = 1024
	maxPort = 65535
)

var (
	rangeMu   sync.RWMutex
	portStart = DefaultPortStart
	portEnd   = DefaultPortEnd
)

// SetPortRange sets the TCP port range (inclusive). Zero values keep the
// defaults, the range is clamped to [1024, 65535], and a reversed range is swapped.
func SetPortRange(start, end int) {
	if start == 0 {
		start = DefaultPortStart
	}
	if end == 0 {
		end = DefaultPortEnd
	}
	if start < minPort {
		start = minPort
	}
	if end > maxPort {
		end = maxPort
	}
	if end < start {
		start, end = end, start
	}
	rangeMu.Lock()
	portStart, portEnd = start, end
	rangeMu.Unlock()
}

// PortRange returns the effective port range.
func PortRange() (int, int) {
	rangeMu.RLock()
	defer rangeMu.RUnlock()
	return portStart, portEnd
}
