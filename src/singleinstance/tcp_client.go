package singleinstance

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"time"

	"go.uber.org/zap"
)

type tcpClient struct{}

func newTcpClient() Client { return &tcpClient{} }

func (c *tcpClient) TryFix(ctx context.Context, outputToStdout bool) (bool, string, error) {
	timeout := pingTimeout(ctx)
	start, end := PortRange()
	for port := start; port <= end; port++ {
		if err := ctx.Err(); err != nil {
			return false, "", err
		}
		addr := residentAddr(port)
		if !ping(addr, timeout) {
			continue
		}
		zap.S().Debugw("singleinstance: resident found", "addr", addr)
		text, err := sendFix(ctx, addr, timeout, outputToStdout)
		if errors.Is(err, errUnknownStatus) {
			continue
		}
		return true, text, err
	}
	return false, "", nil
}

var errUnknownStatus = errors.New("unknown response status")

// ResidentError is a failure reported by the resident itself, as opposed to a
// transport failure while talking to it.
type ResidentError struct {
	Message string
}

func (e *ResidentError) Error() string { return e.Message }

func sendFix(ctx context.Context, addr string, dialTimeout time.Duration, outputToStdout bool) (string, error) {
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return "", fmt.Errorf("connect to resident: %w", err)
	}
	defer conn.Close()
	if dl, ok := ctx.Deadline(); ok {
		_ = conn.SetDeadline(dl)
	}

	req := fixRequest
	if outputToStdout {
		req = fixStdoutRequest
	}
	w := bufio.NewWriter(conn)
	if _, err := w.WriteString(req); err != nil {
		return "", err
	}
	if err := w.Flush(); err != nil {
		return "", err
	}

	br := bufio.NewReader(conn)
	status, err := br.ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("read resident response: %w", err)
	}
	body, _ := io.ReadAll(br)
	switch status {
	case successStatus:
		return string(body), nil
	case errorStatus:
		return "", &ResidentError{Message: string(body)}
	default:
		return "", errUnknownStatus
	}
}
