package fixer

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"typofix/src/config"
	"typofix/src/llm"
	"typofix/src/logutil"
)

const (
	NotifyTitle       = "Typo Fixed"
	NotifyBody        = "Text corrected and copied to clipboard."
	NotifyFailedTitle = "Typo Fix Failed"

	defaultReleaseDelay = 50 * time.Millisecond
	defaultCopyDelay    = 200 * time.Millisecond
)

type SettingsSource interface {
	Load() (config.Settings, error)
}

type Clipboard interface {
	Read() (string, error)
	Write(text string) error
}

// Keyboard synthesizes the turbo-mode keystrokes.
type Keyboard interface {
	Release(keys ...string) error
	Copy() error
	Paste() error
}

type Notifier interface {
	Notify(title, body string) error
}

// Overlay is the processing indicator. Finish blocks until it is hidden.
type Overlay interface {
	Start()
	Finish()
}

type Corrector interface {
	FixText(ctx context.Context, preprompt, text string) (string, error)
}

// CorrectorFactory builds a Corrector for the settings of one run.
type CorrectorFactory func(config.Settings) Corrector

type Options struct {
	Settings     SettingsSource
	Clipboard    Clipboard
	Keyboard     Keyboard
	Notifier     Notifier
	Overlay      Overlay
	NewCorrector CorrectorFactory

	// ReleaseKeys are the hotkey modifiers still held when a run starts.
	ReleaseKeys  []string
	ReleaseDelay time.Duration
	CopyDelay    time.Duration
	Sleep        func(time.Duration)
	Logger       *zap.SugaredLogger
}

type Result struct {
	Output      string
	Model       string
	Turbo       bool
	InputChars  int
	OutputChars int
	StartedAt   time.Time
	Duration    time.Duration
}

// Pipeline turns the clipboard text into its corrected version.
type Pipeline struct {
	opts Options
	log  *zap.SugaredLogger
}

func New(opts Options) (*Pipeline, error) {
	switch {
	case opts.Settings == nil:
		return nil, errors.New("fixer: Settings is required")
	case opts.Clipboard == nil:
		return nil, errors.New("fixer: Clipboard is required")
	case opts.NewCorrector == nil:
		return nil, errors.New("fixer: NewCorrector is required")
	}
	if opts.ReleaseDelay <= 0 {
		opts.ReleaseDelay = defaultReleaseDelay
	}
	if opts.CopyDelay <= 0 {
		opts.CopyDelay = defaultCopyDelay
	}
	if opts.Sleep == nil {
		opts.Sleep = time.Sleep
	}
	log := opts.Logger
	if log == nil {
		log = zap.S()
	}
	return &Pipeline{opts: opts, log: log}, nil
}

// Run executes one fix: settings, optional copy, clipboard read, API call,
// clipboard write, optional paste, notification. The first failure aborts.
func (p *Pipeline) Run(ctx context.Context) (Result, error) {
	started := time.Now()
	res := Result{StartedAt: started}

	st, err := p.opts.Settings.Load()
	if err != nil {
		return p.finish(res, newError(KindStore, "load settings", err))
	}
	res.Model = st.Model
	res.Turbo = st.TurboMode
	p.log.Infow("Fix started",
		"model", st.Model, "turbo", st.TurboMode, "duck", st.ShowDuck,
		"notify", st.ShowNotification, "api_key", logutil.RedactKey(st.APIKey))

	if st.ShowDuck && p.opts.Overlay != nil {
		p.opts.Overlay.Start()
		defer p.opts.Overlay.Finish()
	}

	res, err = p.run(ctx, st, res)
	if err != nil && st.ShowNotification && p.opts.Notifier != nil && KindOf(err) != KindNotify {
		if nerr := p.opts.Notifier.Notify(NotifyFailedTitle, err.Error()); nerr != nil {
			p.log.Warnw("Failure notification not shown", "error", nerr)
		}
	}
	return p.finish(res, err)
}

func (p *Pipeline) run(ctx context.Context, st config.Settings, res Result) (Result, error) {
	if st.TurboMode {
		if err := p.copySelection(); err != nil {
			return res, err
		}
	}

	text, err := p.opts.Clipboard.Read()
	if err != nil {
		p.log.Warnw("Clipboard read failed, using empty text", "error", err)
		text = ""
	}
	res.InputChars = utf8.RuneCountInString(text)
	p.log.Debugw("Clipboard captured", "chars", res.InputChars, "text", logutil.Sanitize(text))

	fixed, err := p.opts.NewCorrector(st).FixText(ctx, st.Preprompt, text)
	if err != nil {
		return res, classifyAPIError(err)
	}
	res.Output = fixed
	res.OutputChars = utf8.RuneCountInString(fixed)

	if err := p.opts.Clipboard.Write(fixed); err != nil {
		return res, newError(KindClipboard, "write clipboard", err)
	}

	if st.TurboMode {
		if err := p.keyboard().Paste(); err != nil {
			return res, newError(KindInput, "paste", err)
		}
	}

	if st.ShowNotification && p.opts.Notifier != nil {
		if err := p.opts.Notifier.Notify(NotifyTitle, NotifyBody); err != nil {
			return res, newError(KindNotify, "notify", err)
		}
	}
	return res, nil
}

// copySelection lets go of the held hotkey modifiers, then copies the selection
// and waits for the clipboard to update.
func (p *Pipeline) copySelection() error {
	kb := p.keyboard()
	if len(p.opts.ReleaseKeys) > 0 {
		if err := kb.Release(p.opts.ReleaseKeys...); err != nil {
			return newError(KindInput, "release modifiers", err)
		}
		p.opts.Sleep(p.opts.ReleaseDelay)
	}
	if err := kb.Copy(); err != nil {
		return newError(KindInput, "copy", err)
	}
	p.opts.Sleep(p.opts.CopyDelay)
	return nil
}

func (p *Pipeline) keyboard() Keyboard {
	if p.opts.Keyboard == nil {
		return noKeyboard{}
	}
	return p.opts.Keyboard
}

func (p *Pipeline) finish(res Result, err error) (Result, error) {
	res.Duration = time.Since(res.StartedAt)
	if err != nil {
		p.log.Errorw("Fix failed", "kind", KindOf(err), "error", err, "duration", res.Duration)
		return res, err
	}
	p.log.Infow("Fix completed", "in_chars", res.InputChars, "out_chars", res.OutputChars, "duration", res.Duration)
	return res, nil
}

func classifyAPIError(err error) error {
	var apiErr *llm.APIError
	switch {
	case errors.As(err, &apiErr):
		return newError(KindVendor, "generate content", err)
	case errors.Is(err, llm.ErrMalformedResponse), errors.Is(err, llm.ErrNoCandidate):
		return newError(KindParse, "decode response", err)
	default:
		return newError(KindNetwork, "generate content", err)
	}
}

type noKeyboard struct{}

var errNoKeyboard = errors.New("no keyboard available")

func (noKeyboard) Release(...string) error { return errNoKeyboard }
func (noKeyboard) Copy() error              { return errNoKeyboard }
func (noKeyboard) Paste() error             { return errNoKeyboard }
