//go:build windows

package main

import (
	"go.uber.org/zap"
	"golang.org/x/sys/windows"
)

const (
	processPerMonitorDPIAware = 2

	smCXScreen  = 0
	smCYScreen  = 1
	smCMonitors = 80
)

var (
	shcore = windows.NewLazySystemDLL("Shcore.dll")
	user32 = windows.NewLazySystemDLL("user32.dll")

	procSetProcessDpiAwareness = shcore.NewProc("SetProcessDpiAwareness")
	procSetProcessDPIAware     = user32.NewProc("SetProcessDPIAware")
	procGetSystemMetrics       = user32.NewProc("GetSystemMetrics")
)

// enableDPIAwareness opts into per-monitor DPI awareness, falling back to
// system awareness on older Windows.
func enableDPIAwareness() {
	if err := procSetProcessDpiAwareness.Find(); err == nil {
		ret, _, _ := procSetProcessDpiAwareness.Call(uintptr(processPerMonitorDPIAware))
		if ret == 0 {
			zap.S().Debugw("DPI: per-monitor awareness set")
		} else {
			zap.S().Warnw("DPI: per-monitor awareness failed", "code", ret)
		}
		return
	}

	if err := procSetProcessDPIAware.Find(); err != nil {
		zap.S().Warnw("DPI: no awareness API available")
		return
	}
	if ret, _, _ := procSetProcessDPIAware.Call(); ret == 0 {
		zap.S().Warnw("DPI: system awareness failed")
	}
}

func logMonitorConfiguration() {
	count, _, _ := procGetSystemMetrics.Call(smCMonitors)
	w, _, _ := procGetSystemMetrics.Call(smCXScreen)
	h, _, _ := procGetSystemMetrics.Call(smCYScreen)
	zap.S().Infow("Monitors", "count", count, "primary_width", w, "primary_height", h)
}
