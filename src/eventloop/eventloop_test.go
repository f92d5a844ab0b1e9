package eventloop

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"typofix/src/fixer"
	"typofix/src/history"
	"typofix/src/logutil"
	"typofix/src/singleinstance"
)

// blockingRunner holds each run until release is closed.
type blockingRunner struct {
	mu      sync.Mutex
	calls   int
	started chan struct{}
	release chan struct{}
	err     error
}

func newBlockingRunner() *blockingRunner {
	return &blockingRunner{started: make(chan struct{}, 8), release: make(chan struct{})}
}

func (r *blockingRunner) Run(ctx context.Context) (fixer.Result, error) {
	r.mu.Lock()
	r.calls++
	r.mu.Unlock()
	r.started <- struct{}{}
	select {
	case <-r.release:
	case <-ctx.Done():
		return fixer.Result{}, ctx.Err()
	}
	return fixer.Result{Output: "fixed", Model: "gemini-2.5-flash", StartedAt: time.Now(), InputChars: 3, OutputChars: 5}, r.err
}

func (r *blockingRunner) Calls() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.calls
}

type tooltips struct {
	mu   sync.Mutex
	seen []string
	ch   chan string
}

func newTooltips() *tooltips { return &tooltips{ch: make(chan string, 32)} }

func (t *tooltips) set(s string) {
	t.mu.Lock()
	t.seen = append(t.seen, s)
	t.mu.Unlock()
	t.ch <- s
}

func (t *tooltips) waitFor(tb testing.TB, want string) {
	tb.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case got := <-t.ch:
			if got == want {
				return
			}
		case <-timeout:
			tb.Fatalf("tooltip %q never set", want)
		}
	}
}

type fakeRecorder struct {
	mu   sync.Mutex
	runs []history.Run
	ch   chan history.Run
}

func (f *fakeRecorder) SaveRun(r *history.Run) error {
	f.mu.Lock()
	f.runs = append(f.runs, *r)
	f.mu.Unlock()
	f.ch <- *r
	return nil
}

type fakeStatus struct {
	mu       sync.Mutex
	statuses []string
}

func (f *fakeStatus) BroadcastStatus(status, _ string) {
	f.mu.Lock()
	f.statuses = append(f.statuses, status)
	f.mu.Unlock()
}

func (f *fakeStatus) BroadcastRun(history.Run) {}

func (f *fakeStatus) snapshot() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.statuses...)
}

func startLoop(t *testing.T, opts Options) (*Loop, context.CancelFunc) {
	t.Helper()
	opts.Logger = logutil.Discard()
	l, err := New(opts)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = l.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})
	return l, cancel
}

func TestNewRequiresPipeline(t *testing.T) {
	if _, err := New(Options{}); err == nil {
		t.Error("expected error without pipeline")
	}
}

func TestHotkeyWhileBusyIsIgnored(t *testing.T) {
	runner := newBlockingRunner()
	tips := newTooltips()
	rec := &fakeRecorder{ch: make(chan history.Run, 4)}
	status := &fakeStatus{}
	l, _ := startLoop(t, Options{Pipeline: runner, Tooltip: tips.set, Recorder: rec, Status: status})

	l.Trigger()
	<-runner.started
	tips.waitFor(t, busyTooltip)

	l.Trigger()
	tips.waitFor(t, ignoredTooltip)

	close(runner.release)
	run := <-rec.ch
	tips.waitFor(t, DefaultTooltip)

	if runner.Calls() != 1 {
		t.Errorf("runner called %d times, want 1", runner.Calls())
	}
	if !run.Success || run.Source != SourceHotkey || run.OutputChars != 5 {
		t.Errorf("recorded run = %+v", run)
	}
	got := status.snapshot()
	if len(got) != 2 || got[0] != "running" || got[1] != "done" {
		t.Errorf("statuses = %v", got)
	}
}

func TestHotkeyAfterCompletionRunsAgain(t *testing.T) {
	runner := newBlockingRunner()
	close(runner.release)
	rec := &fakeRecorder{ch: make(chan history.Run, 4)}
	l, _ := startLoop(t, Options{Pipeline: runner, Tooltip: func(string) {}, Recorder: rec})

	l.Trigger()
	<-rec.ch
	l.Trigger()
	<-rec.ch
	if runner.Calls() != 2 {
		t.Errorf("runner called %d times, want 2", runner.Calls())
	}
}

func TestFailedRunRecordsKind(t *testing.T) {
	runner := newBlockingRunner()
	runner.err = &fixer.Error{Kind: fixer.KindVendor, Op: "generate content", Err: errors.New("API key not valid")}
	close(runner.release)
	rec := &fakeRecorder{ch: make(chan history.Run, 4)}
	status := &fakeStatus{}
	l, _ := startLoop(t, Options{Pipeline: runner, Tooltip: func(string) {}, Recorder: rec, Status: status})

	l.Trigger()
	run := <-rec.ch
	if run.Success || run.ErrorKind != "vendor" || run.ErrorMessage == "" {
		t.Errorf("recorded run = %+v", run)
	}
}

type fakeConn struct {
	req     singleinstance.Request
	mu      sync.Mutex
	success *string
	errMsg  *string
	closed  chan struct{}
}

func newFakeConn(stdout bool) *fakeConn {
	return &fakeConn{req: singleinstance.Request{OutputToStdout: stdout}, closed: make(chan struct{})}
}

func (c *fakeConn) Request() singleinstance.Request { return c.req }

func (c *fakeConn) RespondSuccess(text string) error {
	c.mu.Lock()
	c.success = &text
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) RespondError(msg string) error {
	c.mu.Lock()
	c.errMsg = &msg
	c.mu.Unlock()
	return nil
}

func (c *fakeConn) Close() error {
	close(c.closed)
	return nil
}

type fakeServer struct {
	conns chan singleinstance.Conn
}

func (s *fakeServer) Start(context.Context) error { return nil }
func (s *fakeServer) Port() int                   { return 49600 }
func (s *fakeServer) Close() error                { return nil }

func (s *fakeServer) Next(ctx context.Context) (singleinstance.Conn, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case c := <-s.conns:
		return c, nil
	}
}

func TestDelegatedRequests(t *testing.T) {
	runner := newBlockingRunner()
	srv := &fakeServer{conns: make(chan singleinstance.Conn, 4)}
	startLoop(t, Options{Pipeline: runner, Server: srv, Tooltip: func(string) {}})

	first := newFakeConn(true)
	srv.conns <- first
	<-runner.started

	busy := newFakeConn(false)
	srv.conns <- busy
	<-busy.closed
	if busy.errMsg == nil || *busy.errMsg != "busy, please retry" {
		t.Errorf("busy client got error %v", busy.errMsg)
	}

	close(runner.release)
	<-first.closed
	if first.success == nil || *first.success != "fixed" {
		t.Errorf("stdout client got %v", first.success)
	}

	clip := newFakeConn(false)
	srv.conns <- clip
	<-clip.closed
	if clip.success == nil || *clip.success != "" {
		t.Errorf("clipboard client got %v", clip.success)
	}
}
