//go:build windows

package notification

import (
	"runtime"
	"sync"
	"unsafe"

	"go.uber.org/zap"
	"golang.org/x/sys/windows"
)

var (
	user32                = windows.NewLazySystemDLL("user32.dll")
	procMessageBox        = user32.NewProc("MessageBoxW")
	procCreateWindowEx    = user32.NewProc("CreateWindowExW")
	procDefWindowProc     = user32.NewProc("DefWindowProcW")
	procDestroyWindow     = user32.NewProc("DestroyWindow")
	procShowWindow        = user32.NewProc("ShowWindow")
	procSetWindowPos      = user32.NewProc("SetWindowPos")
	procGetSystemMetrics  = user32.NewProc("GetSystemMetrics")
	procSetTimer          = user32.NewProc("SetTimer")
	procKillTimer         = user32.NewProc("KillTimer")
	procRegisterClassEx   = user32.NewProc("RegisterClassExW")
	procUpdateWindow      = user32.NewProc("UpdateWindow")
	procGetMessage        = user32.NewProc("GetMessageW")
	procPeekMessage       = user32.NewProc("PeekMessageW")
	procDispatchMessage   = user32.NewProc("DispatchMessageW")
	procTranslateMessage  = user32.NewProc("TranslateMessage")
	procBeginPaint        = user32.NewProc("BeginPaint")
	procEndPaint          = user32.NewProc("EndPaint")
	procDrawText          = user32.NewProc("DrawTextW")
	procLoadCursor        = user32.NewProc("LoadCursorW")
	procPostThreadMessage = user32.NewProc("PostThreadMessageW")
)

const (
	wsPopup          = 0x80000000
	wsVisible        = 0x10000000
	wsExNoActivate   = 0x08000000
	wsExToolWindow   = 0x00000080
	wsExClientEdge   = 0x00000200
	wmDestroy        = 0x0002
	wmClose          = 0x0010
	wmPaint          = 0x000F
	wmTimer          = 0x0113
	wmLButtonDown    = 0x0201
	wmRButtonDown    = 0x0204
	wmNCLButtonDown  = 0x00A1
	wmUser           = 0x0400
	wmExitLoop       = wmUser + 2
	swShowNoActivate = 4
	swpNoActivate    = 0x0010
	swpNoMove        = 0x0002
	swpNoSize        = 0x0001
	hwndTopmost      = ^uintptr(0)
	smCYScreen       = 1
	dtWordBreak      = 0x00000010
	colorWindow      = 5
	idcArrow         = 32512
	pmRemove         = 1
	timerClose       = 1

	popupWidth   = 400
	popupHeight  = 100
	popupCloseMs = 3000
	className    = "TypofixNotificationClass"
)

// popupShowCmd keeps keyboard focus on the window the text was pasted into.
const popupShowCmd = swShowNoActivate

type wndClassEx struct {
	CbSize        uint32
	Style         uint32
	LpfnWndProc   uintptr
	CbClsExtra    int32
	CbWndExtra    int32
	HInstance     windows.Handle
	HIcon         windows.Handle
	HCursor       windows.Handle
	HbrBackground windows.Handle
	LpszMenuName  *uint16
	LpszClassName *uint16
	HIconSm       windows.Handle
}

type point struct{ X, Y int32 }

type msg struct {
	Hwnd    windows.Handle
	Message uint32
	WParam  uintptr
	LParam  uintptr
	Time    uint32
	Pt      point
}

type rect struct{ Left, Top, Right, Bottom int32 }

type paintStruct struct {
	Hdc         windows.Handle
	FErase      int32
	RcPaint     rect
	FRestore    int32
	FIncUpdate  int32
	RgbReserved [32]byte
}

var (
	popupQueue chan string
	popupOnce  sync.Once

	// popupText is only touched on the popup thread.
	popupText string
)

// ShowBlockingError displays a modal, blocking error dialog and returns after user dismisses it.
func ShowBlockingError(title, message string) {
	titlePtr, _ := windows.UTF16PtrFromString(title)
	msgPtr, _ := windows.UTF16PtrFromString(message)
	const mbOK, mbIconError, mbSystemModal = 0x0, 0x10, 0x1000
	procMessageBox.Call(0, uintptr(unsafe.Pointer(msgPtr)), uintptr(unsafe.Pointer(titlePtr)), mbOK|mbIconError|mbSystemModal)
}

// showPopup queues a popup for the single popup thread; a full queue drops the request.
func showPopup(title, body string) error {
	initPopupThread()
	select {
	case popupQueue <- title + "\n" + body:
	default:
		zap.S().Warnw("Popup queue full, dropping notification", "title", title)
	}
	return nil
}

func initPopupThread() {
	popupOnce.Do(func() {
		popupQueue = make(chan string, 10)
		go func() {
			runtime.LockOSThread()
			defer runtime.UnlockOSThread()
			log := zap.S()
			defer func() {
				if r := recover(); r != nil {
					log.Errorw("Popup thread panic", "panic", r)
				}
			}()

			if err := registerClass(); err != nil {
				log.Errorw("Popup: failed to register window class", "error", err)
				return
			}
			for text := range popupQueue {
				showAndWait(text)
			}
		}()
	})
}

func registerClass() error {
	name, _ := windows.UTF16PtrFromString(className)
	cursor, _, _ := procLoadCursor.Call(0, idcArrow)
	wc := wndClassEx{
		CbSize:        uint32(unsafe.Sizeof(wndClassEx{})),
		LpfnWndProc:   windows.NewCallback(wndProc),
		HCursor:       windows.Handle(cursor),
		HbrBackground: windows.Handle(colorWindow + 1),
		LpszClassName: name,
	}
	if atom, _, err := procRegisterClassEx.Call(uintptr(unsafe.Pointer(&wc))); atom == 0 {
		return err
	}
	return nil
}

func wndProc(hwnd windows.Handle, message uint32, wParam, lParam uintptr) uintptr {
	switch message {
	case wmPaint:
		var ps paintStruct
		hdc, _, _ := procBeginPaint.Call(uintptr(hwnd), uintptr(unsafe.Pointer(&ps)))
		r := rect{Left: 10, Top: 10, Right: popupWidth - 10, Bottom: popupHeight - 10}
		textPtr, _ := windows.UTF16PtrFromString(popupText)
		procDrawText.Call(hdc, uintptr(unsafe.Pointer(textPtr)), uintptr(^uint32(0)), uintptr(unsafe.Pointer(&r)), dtWordBreak)
		procEndPaint.Call(uintptr(hwnd), uintptr(unsafe.Pointer(&ps)))
		return 0
	case wmTimer, wmLButtonDown, wmRButtonDown, wmNCLButtonDown, wmClose:
		procKillTimer.Call(uintptr(hwnd), timerClose)
		procDestroyWindow.Call(uintptr(hwnd))
		return 0
	case wmDestroy:
		procPostThreadMessage.Call(uintptr(windows.GetCurrentThreadId()), wmExitLoop, 0, 0)
		return 0
	}
	ret, _, _ := procDefWindowProc.Call(uintptr(hwnd), uintptr(message), wParam, lParam)
	return ret
}

// showAndWait creates a popup in the lower-left corner and pumps messages until it closes.
func showAndWait(text string) {
	popupText = text
	name, _ := windows.UTF16PtrFromString(className)
	title, _ := windows.UTF16PtrFromString("Typofix")
	screenHeight, _, _ := procGetSystemMetrics.Call(smCYScreen)

	hwnd, _, _ := procCreateWindowEx.Call(
		wsExNoActivate|wsExToolWindow|wsExClientEdge,
		uintptr(unsafe.Pointer(name)),
		uintptr(unsafe.Pointer(title)),
		wsPopup|wsVisible,
		20, uintptr(int32(screenHeight)-popupHeight-20),
		popupWidth, popupHeight,
		0, 0, 0, 0,
	)
	if hwnd == 0 {
		zap.S().Warnw("Popup: CreateWindowEx failed")
		return
	}
	procSetWindowPos.Call(hwnd, hwndTopmost, 0, 0, 0, 0, swpNoActivate|swpNoMove|swpNoSize)
	procShowWindow.Call(hwnd, popupShowCmd)
	procUpdateWindow.Call(hwnd)
	procSetTimer.Call(hwnd, timerClose, popupCloseMs, 0)

	var m msg
	for {
		ret, _, _ := procGetMessage.Call(uintptr(unsafe.Pointer(&m)), 0, 0, 0)
		if ret == 0 || m.Message == wmExitLoop {
			break
		}
		procTranslateMessage.Call(uintptr(unsafe.Pointer(&m)))
		procDispatchMessage.Call(uintptr(unsafe.Pointer(&m)))
	}
	// drop leftovers so they cannot close the next popup
	for {
		ret, _, _ := procPeekMessage.Call(uintptr(unsafe.Pointer(&m)), 0, 0, 0, pmRemove)
		if ret == 0 {
			break
		}
	}
}
