package tray

import (
	"sync"

	"github.com/getlantern/systray"
	"go.uber.org/zap"
)

type Config struct {
	Title   string
	Tooltip string
	// OnOpen is called from the menu goroutine when "Open" is clicked.
	OnOpen func()
	// OnExit is called once after the tray loop has stopped.
	OnExit func()
}

// Tray owns the systray icon and its Open / Quit menu.
type Tray struct {
	cfg  Config
	icon []byte
	quit chan struct{}
	once sync.Once
}

var (
	readyMu sync.Mutex
	ready   bool
	pending string
)

func New(cfg Config) (*Tray, error) {
	icon, err := Icon()
	if err != nil {
		return nil, err
	}
	return &Tray{cfg: cfg, icon: icon, quit: make(chan struct{})}, nil
}

// Run blocks running the systray loop; it must be called from the main goroutine.
func (t *Tray) Run() {
	systray.Run(t.onReady, t.onExit)
}

// Quit stops the systray loop. Safe to call more than once.
func (t *Tray) Quit() {
	t.once.Do(func() {
		close(t.quit)
		systray.Quit()
	})
}

// Done is closed when the user picks Quit or Quit is called.
func (t *Tray) Done() <-chan struct{} { return t.quit }

func (t *Tray) onReady() {
	if len(t.icon) > 0 {
		systray.SetIcon(t.icon)
	}
	systray.SetTitle(t.cfg.Title)

	readyMu.Lock()
	ready = true
	tooltip := t.cfg.Tooltip
	if pending != "" {
		tooltip = pending
	}
	systray.SetTooltip(tooltip)
	readyMu.Unlock()

	mOpen := systray.AddMenuItem("Open", "Open settings")
	systray.AddSeparator()
	mQuit := systray.AddMenuItem("Quit", "Exit "+t.cfg.Title)

	go func() {
		for {
			select {
			case <-mOpen.ClickedCh:
				if t.cfg.OnOpen != nil {
					t.cfg.OnOpen()
				}
			case <-mQuit.ClickedCh:
				zap.S().Infow("User requested quit from system tray")
				t.Quit()
				return
			case <-t.quit:
				return
			}
		}
	}()
}

func (t *Tray) onExit() {
	readyMu.Lock()
	ready = false
	readyMu.Unlock()
	zap.S().Infow("System tray exited")
	if t.cfg.OnExit != nil {
		t.cfg.OnExit()
	}
}

// UpdateTooltip sets the tray tooltip; before the tray is ready the text is kept
// and applied on startup.
func UpdateTooltip(text string) {
	readyMu.Lock()
	defer readyMu.Unlock()
	if !ready {
		pending = text
		return
	}
	systray.SetTooltip(text)
}
