package eventloop

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"typofix/src/fixer"
	"typofix/src/history"
	"typofix/src/singleinstance"
	"typofix/src/tray"
	"typofix/src/worker"
)

const (
	DefaultTooltip = "Typofix"
	busyTooltip    = "Typofix: fixing..."
	ignoredTooltip = "Typofix: still fixing, press ignored"

	SourceHotkey  = "hotkey"
	SourceRunOnce = "run-once"
)

// Runner executes one fix.
type Runner interface {
	Run(ctx context.Context) (fixer.Result, error)
}

// Recorder persists run metrics.
type Recorder interface {
	SaveRun(r *history.Run) error
}

// StatusSink receives live run status, typically the settings UI.
type StatusSink interface {
	BroadcastStatus(status, message string)
	BroadcastRun(run history.Run)
}

type Options struct {
	Pipeline Runner
	// Server accepts delegated --run-once requests. Optional.
	Server   singleinstance.Server
	Recorder Recorder
	Status   StatusSink
	// Tooltip defaults to tray.UpdateTooltip.
	Tooltip        func(string)
	DefaultTooltip string
	// Deadline bounds a single run. Defaults to 60s.
	Deadline time.Duration
	Logger   *zap.SugaredLogger
}

// Loop is the single-threaded coordinator for hotkey presses and delegated
// run-once requests. At most one fix runs at a time; presses that arrive
// while busy are ignored.
type Loop struct {
	opts     Options
	log      *zap.SugaredLogger
	pool     *worker.Pool
	busy     bool
	results  chan result
	hotkeyCh chan struct{}
}

type result struct {
	res    fixer.Result
	err    error
	target resultTarget
	cancel context.CancelFunc
}

type resultTarget interface {
	Source() string
	OnSuccess(res fixer.Result)
	OnFailure(err error)
	Close()
}

type hotkeyResultTarget struct{}

func (hotkeyResultTarget) Source() string         { return SourceHotkey }
func (hotkeyResultTarget) OnSuccess(fixer.Result) {}
func (hotkeyResultTarget) OnFailure(error)        {}
func (hotkeyResultTarget) Close()                 {}

type delegatedResultTarget struct {
	conn singleinstance.Conn
	log  *zap.SugaredLogger
}

func (t delegatedResultTarget) Source() string { return SourceRunOnce }

func (t delegatedResultTarget) OnSuccess(res fixer.Result) {
	text := ""
	if t.conn.Request().OutputToStdout {
		text = res.Output
	}
	if err := t.conn.RespondSuccess(text); err != nil {
		t.log.Warnw("Failed to answer run-once client", "error", err)
	}
}

func (t delegatedResultTarget) OnFailure(err error) {
	if rerr := t.conn.RespondError(err.Error()); rerr != nil {
		t.log.Warnw("Failed to answer run-once client", "error", rerr)
	}
}

func (t delegatedResultTarget) Close() { _ = t.conn.Close() }

func New(opts Options) (*Loop, error) {
	if opts.Pipeline == nil {
		return nil, errors.New("eventloop: Pipeline is required")
	}
	if opts.Tooltip == nil {
		opts.Tooltip = tray.UpdateTooltip
	}
	if opts.DefaultTooltip == "" {
		opts.DefaultTooltip = DefaultTooltip
	}
	if opts.Deadline <= 0 {
		opts.Deadline = 60 * time.Second
	}
	log := opts.Logger
	if log == nil {
		log = zap.S()
	}
	return &Loop{
		opts:     opts,
		log:      log,
		pool:     worker.New(1),
		results:  make(chan result, 1),
		hotkeyCh: make(chan struct{}, 4),
	}, nil
}

// Trigger posts a hotkey press into the loop. It never blocks.
func (l *Loop) Trigger() {
	select {
	case l.hotkeyCh <- struct{}{}:
	default:
		l.log.Debugw("Hotkey queue full, press dropped")
	}
}

// Run processes hotkey presses, run-once requests and results until ctx is
// cancelled. A configured Server is started here.
func (l *Loop) Run(ctx context.Context) error {
	defer l.pool.Close()

	var reqCh chan singleinstance.Conn
	if l.opts.Server != nil {
		if err := l.opts.Server.Start(ctx); err != nil {
			return fmt.Errorf("start single-instance server: %w", err)
		}
		l.log.Infow("Resident listening", "port", l.opts.Server.Port())
		reqCh = make(chan singleinstance.Conn, 4)
		go l.acceptLoop(ctx, reqCh)
	}
	l.opts.Tooltip(l.opts.DefaultTooltip)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-l.hotkeyCh:
			l.handleHotkey(ctx)
		case conn, ok := <-reqCh:
			if !ok {
				reqCh = nil
				continue
			}
			l.handleConn(ctx, conn)
		case res := <-l.results:
			l.handleResult(res)
		}
	}
}

func (l *Loop) acceptLoop(ctx context.Context, reqCh chan<- singleinstance.Conn) {
	defer close(reqCh)
	for {
		conn, err := l.opts.Server.Next(ctx)
		if err != nil {
			return
		}
		select {
		case reqCh <- conn:
		case <-ctx.Done():
			_ = conn.Close()
			return
		}
	}
}

func (l *Loop) setBusy(b bool) {
	l.busy = b
	if b {
		l.opts.Tooltip(busyTooltip)
	} else {
		l.opts.Tooltip(l.opts.DefaultTooltip)
	}
}

func (l *Loop) handleHotkey(ctx context.Context) {
	if l.busy {
		l.log.Infow("Hotkey pressed while a fix is running, ignored")
		l.opts.Tooltip(ignoredTooltip)
		return
	}
	if err := l.start(ctx, hotkeyResultTarget{}); err != nil {
		l.log.Warnw("Hotkey run not started", "error", err)
	}
}

func (l *Loop) handleConn(ctx context.Context, conn singleinstance.Conn) {
	target := delegatedResultTarget{conn: conn, log: l.log}
	if l.busy {
		l.log.Infow("Run-once request while busy, rejected")
		target.OnFailure(worker.ErrBusy)
		target.Close()
		return
	}
	if err := l.start(ctx, target); err != nil {
		target.OnFailure(err)
		target.Close()
	}
}

func (l *Loop) start(ctx context.Context, target resultTarget) error {
	jobCtx, cancel := context.WithTimeout(ctx, l.opts.Deadline)
	l.setBusy(true)
	l.broadcastStatus("running", "Fixing text...")

	task := func(ctx context.Context) (any, error) {
		return l.opts.Pipeline.Run(ctx)
	}
	submitted := l.pool.Submit(jobCtx, task, func(value any, err error) {
		res, _ := value.(fixer.Result)
		select {
		case l.results <- result{res: res, err: err, target: target, cancel: cancel}:
		case <-ctx.Done():
			cancel()
			target.Close()
		}
	})
	if !submitted {
		cancel()
		l.setBusy(false)
		l.broadcastStatus("idle", "")
		return worker.ErrBusy
	}
	return nil
}

func (l *Loop) handleResult(res result) {
	defer func() {
		l.setBusy(false)
		if res.cancel != nil {
			res.cancel()
		}
		res.target.Close()
	}()

	l.record(res)
	if res.err != nil {
		l.log.Warnw("Fix failed", "source", res.target.Source(), "kind", fixer.KindOf(res.err), "error", res.err)
		l.broadcastStatus("error", res.err.Error())
		res.target.OnFailure(res.err)
		return
	}
	l.broadcastStatus("done", "Text corrected and copied to clipboard.")
	res.target.OnSuccess(res.res)
}

func (l *Loop) record(res result) {
	run := history.Run{
		StartedAt:   res.res.StartedAt,
		DurationMs:  res.res.Duration.Milliseconds(),
		Source:      res.target.Source(),
		Model:       res.res.Model,
		Turbo:       res.res.Turbo,
		InputChars:  res.res.InputChars,
		OutputChars: res.res.OutputChars,
		Success:     res.err == nil,
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	if res.err != nil {
		run.ErrorKind = string(fixer.KindOf(res.err))
		run.ErrorMessage = res.err.Error()
	}
	if l.opts.Recorder != nil {
		if err := l.opts.Recorder.SaveRun(&run); err != nil {
			l.log.Warnw("Failed to record run", "error", err)
		}
	}
	if l.opts.Status != nil {
		l.opts.Status.BroadcastRun(run)
	}
}

func (l *Loop) broadcastStatus(status, message string) {
	if l.opts.Status != nil {
		l.opts.Status.BroadcastStatus(status, message)
	}
}

// Deadline returns the per-run deadline of this loop.
func (l *Loop) Deadline() time.Duration { return l.opts.Deadline }
