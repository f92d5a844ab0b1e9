package singleinstance

import (
	"bufio"
	"context"
	"fmt"
	"net"
	"sync"
	"time"

	"go.uber.org/zap"
)

const (
	residentHost     = "127.0.0.1"
	pingRequest      = "PING\n"
	pongResponse     = "PONG\n"
	fixRequest       = "FIX\n"
	fixStdoutRequest = "FIX STDOUT\n"
	successStatus    = "SUCCESS\n"
	errorStatus      = "ERROR\n"
)

// tcpServer implements Server over TCP loopback.
type tcpServer struct {
	mu        sync.Mutex
	lis       net.Listener
	incoming  chan *tcpConn
	done      chan struct{}
	closeOnce sync.Once
	port      int
}

func newTcpServer() Server {
	return &tcpServer{incoming: make(chan *tcpConn, 8), done: make(chan struct{})}
}

// Start binds ONLY the start port of the configured range. If occupied, fail.
func (s *tcpServer) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.lis != nil {
		return nil
	}
	start, _ := PortRange()
	addr := fmt.Sprintf("%s:%d", residentHost, start)
	lis, err := net.Listen("tcp", addr)
	if err != nil {
		zap.S().Warnw("singleinstance: bind failed", "addr", addr, "error", err)
		return err
	}
	s.lis = lis
	s.port = start
	zap.S().Infow("singleinstance: listening", "addr", addr)
	go s.acceptLoop(ctx, lis)
	return nil
}

// Port returns the bound port (0 if not started).
func (s *tcpServer) Port() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.port
}

func (s *tcpServer) acceptLoop(ctx context.Context, lis net.Listener) {
	for {
		c, err := lis.Accept()
		if err != nil {
			return
		}
		tc, ok := s.handshake(c)
		if !ok {
			continue
		}
		select {
		case s.incoming <- tc:
		case <-ctx.Done():
			_ = c.Close()
			return
		case <-s.done:
			_ = c.Close()
			return
		}
	}
}

// handshake reads the request line. PING is answered inline; FIX requests are
// handed to Next. Anything else is rejected.
func (s *tcpServer) handshake(c net.Conn) (*tcpConn, bool) {
	remote := c.RemoteAddr().String()
	_ = c.SetDeadline(time.Now().Add(3 * time.Second))
	br := bufio.NewReader(c)
	line, _ := br.ReadString('\n')
	bw := bufio.NewWriter(c)

	switch line {
	case pingRequest:
		zap.S().Debugw("singleinstance: PING -> PONG", "remote", remote)
		_, _ = bw.WriteString(pongResponse)
		_ = bw.Flush()
		_ = c.Close()
		return nil, false
	case fixRequest, fixStdoutRequest:
		_ = c.SetDeadline(time.Time{})
		stdout := line == fixStdoutRequest
		zap.S().Infow("singleinstance: fix request", "remote", remote, "stdout", stdout)
		return &tcpConn{c: c, r: Request{OutputToStdout: stdout}, w: bw}, true
	default:
		zap.S().Warnw("singleinstance: unknown request", "remote", remote, "line", line)
		_, _ = bw.WriteString(errorStatus + "unknown request")
		_ = bw.Flush()
		_ = c.Close()
		return nil, false
	}
}

func (s *tcpServer) Next(ctx context.Context) (Conn, error) {
	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case <-s.done:
		return nil, net.ErrClosed
	case tc := <-s.incoming:
		return tc, nil
	}
}

func (s *tcpServer) Close() error {
	s.closeOnce.Do(func() {
		close(s.done)
		s.mu.Lock()
		if s.lis != nil {
			_ = s.lis.Close()
			s.lis = nil
			s.port = 0
		}
		s.mu.Unlock()
	})
	return nil
}

type tcpConn struct {
	c net.Conn
	r Request
	w *bufio.Writer
}

func (tc *tcpConn) Request() Request { return tc.r }

func (tc *tcpConn) RespondSuccess(text string) error {
	if _, err := tc.w.WriteString(successStatus); err != nil {
		return err
	}
	if len(text) > 0 {
		if _, err := tc.w.WriteString(text); err != nil {
			return err
		}
	}
	return tc.w.Flush()
}

func (tc *tcpConn) RespondError(msg string) error {
	if _, err := tc.w.WriteString(errorStatus + msg); err != nil {
		return err
	}
	return tc.w.Flush()
}

func (tc *tcpConn) Close() error { return tc.c.Close() }
