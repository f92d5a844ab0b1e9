//go:build windows

package overlay

import (
	"errors"
	"image"
	"runtime"
	"sync"
	"sync/atomic"
	"unsafe"

	"go.uber.org/zap"
	"golang.org/x/sys/windows"
)

var (
	user32                         = windows.NewLazySystemDLL("user32.dll")
	gdi32                          = windows.NewLazySystemDLL("gdi32.dll")
	procRegisterClassEx            = user32.NewProc("RegisterClassExW")
	procCreateWindowEx             = user32.NewProc("CreateWindowExW")
	procDefWindowProc              = user32.NewProc("DefWindowProcW")
	procShowWindow                 = user32.NewProc("ShowWindow")
	procSetWindowPos               = user32.NewProc("SetWindowPos")
	procSetLayeredWindowAttributes = user32.NewProc("SetLayeredWindowAttributes")
	procInvalidateRect             = user32.NewProc("InvalidateRect")
	procBeginPaint                 = user32.NewProc("BeginPaint")
	procEndPaint                   = user32.NewProc("EndPaint")
	procFillRect                   = user32.NewProc("FillRect")
	procGetMessage                 = user32.NewProc("GetMessageW")
	procTranslateMessage           = user32.NewProc("TranslateMessage")
	procDispatchMessage            = user32.NewProc("DispatchMessageW")
	procCreateSolidBrush           = gdi32.NewProc("CreateSolidBrush")
	procDeleteObject               = gdi32.NewProc("DeleteObject")
)

const (
	wsPopup          = 0x80000000
	wsExTopmost      = 0x00000008
	wsExToolWindow   = 0x00000080
	wsExLayered      = 0x00080000
	wsExNoActivate   = 0x08000000
	wsExTransparent  = 0x00000020
	wmPaint          = 0x000F
	wmEraseBkgnd     = 0x0014
	swHide           = 0
	swShowNoActivate = 4
	swpNoActivate    = 0x0010
	swpNoSize        = 0x0001
	swpShowWindow    = 0x0040
	hwndTopmost      = ^uintptr(0)
	lwaColorKey      = 0x00000001

	windowSize = 100
	pixelScale = 6
	// magenta is painted as fully transparent through the layered color key
	colorKey  = 0x00FF00FF
	className = "TypofixDuckOverlay"
)

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

type msg struct {
	Hwnd    windows.Handle
	Message uint32
	WParam  uintptr
	LParam  uintptr
	Time    uint32
	PtX     int32
	PtY     int32
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

// winSurface is a borderless, click-through, topmost layered window owned by a
// dedicated OS thread.
type winSurface struct {
	once   sync.Once
	hwnd   uintptr
	err    error
	frames []*image.NRGBA
	frame  atomic.Int32
}

// the window procedure is a process-wide callback; it paints this surface
var active atomic.Pointer[winSurface]

func newSurface() Surface {
	s := &winSurface{frames: Frames()}
	active.Store(s)
	return s
}

func (s *winSurface) ensureWindow() error {
	s.once.Do(func() {
		ready := make(chan struct{})
		go func() {
			runtime.LockOSThread()
			defer runtime.UnlockOSThread()
			s.hwnd, s.err = createWindow()
			close(ready)
			if s.err != nil {
				return
			}
			var m msg
			for {
				ret, _, _ := procGetMessage.Call(uintptr(unsafe.Pointer(&m)), 0, 0, 0)
				if int32(ret) <= 0 {
					return
				}
				procTranslateMessage.Call(uintptr(unsafe.Pointer(&m)))
				procDispatchMessage.Call(uintptr(unsafe.Pointer(&m)))
			}
		}()
		<-ready
	})
	return s.err
}

func createWindow() (uintptr, error) {
	name, _ := windows.UTF16PtrFromString(className)
	wc := wndClassEx{
		CbSize:        uint32(unsafe.Sizeof(wndClassEx{})),
		LpfnWndProc:   windows.NewCallback(wndProc),
		LpszClassName: name,
	}
	if atom, _, err := procRegisterClassEx.Call(uintptr(unsafe.Pointer(&wc))); atom == 0 {
		return 0, err
	}
	hwnd, _, err := procCreateWindowEx.Call(
		wsExTopmost|wsExToolWindow|wsExLayered|wsExNoActivate|wsExTransparent,
		uintptr(unsafe.Pointer(name)), uintptr(unsafe.Pointer(name)),
		wsPopup,
		0, 0, windowSize, windowSize,
		0, 0, 0, 0,
	)
	if hwnd == 0 {
		return 0, errors.Join(errors.New("CreateWindowEx failed"), err)
	}
	procSetLayeredWindowAttributes.Call(hwnd, colorKey, 0, lwaColorKey)
	return hwnd, nil
}

func (s *winSurface) Show(x, y int) error {
	if err := s.ensureWindow(); err != nil {
		return err
	}
	procSetWindowPos.Call(s.hwnd, hwndTopmost, uintptr(x), uintptr(y), 0, 0, swpNoActivate|swpNoSize|swpShowWindow)
	procShowWindow.Call(s.hwnd, swShowNoActivate)
	return nil
}

func (s *winSurface) SetFrame(frame int) {
	if frame < 0 || frame >= len(s.frames) {
		return
	}
	s.frame.Store(int32(frame))
	if s.hwnd != 0 {
		procInvalidateRect.Call(s.hwnd, 0, 1)
	}
}

func (s *winSurface) Hide() {
	if s.hwnd == 0 {
		return
	}
	procShowWindow.Call(s.hwnd, swHide)
}

func wndProc(hwnd windows.Handle, message uint32, wParam, lParam uintptr) uintptr {
	switch message {
	case wmEraseBkgnd:
		return 1
	case wmPaint:
		if s := active.Load(); s != nil {
			s.paint(hwnd)
			return 0
		}
	}
	ret, _, _ := procDefWindowProc.Call(uintptr(hwnd), uintptr(message), wParam, lParam)
	return ret
}

// paint fills the window with the color key and draws the current sprite scaled up.
func (s *winSurface) paint(hwnd windows.Handle) {
	var ps paintStruct
	hdc, _, _ := procBeginPaint.Call(uintptr(hwnd), uintptr(unsafe.Pointer(&ps)))
	defer procEndPaint.Call(uintptr(hwnd), uintptr(unsafe.Pointer(&ps)))

	fillRect(hdc, rect{0, 0, windowSize, windowSize}, colorKey)

	img := s.frames[s.frame.Load()]
	offset := int32((windowSize - SpriteSize*pixelScale) / 2)
	for y := 0; y < SpriteSize; y++ {
		for x := 0; x < SpriteSize; x++ {
			c := img.NRGBAAt(x, y)
			if IsTransparent(c) {
				continue
			}
			left := offset + int32(x*pixelScale)
			top := offset + int32(y*pixelScale)
			colorRef := uint32(c.R) | uint32(c.G)<<8 | uint32(c.B)<<16
			fillRect(hdc, rect{left, top, left + pixelScale, top + pixelScale}, colorRef)
		}
	}
}

func fillRect(hdc uintptr, r rect, colorRef uint32) {
	brush, _, _ := procCreateSolidBrush.Call(uintptr(colorRef))
	if brush == 0 {
		zap.S().Debugw("Overlay: CreateSolidBrush failed")
		return
	}
	procFillRect.Call(hdc, uintptr(unsafe.Pointer(&r)), brush)
	procDeleteObject.Call(brush)
}
