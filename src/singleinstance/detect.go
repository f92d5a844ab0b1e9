package singleinstance

import (
	"bufio"
	"context"
	"net"
	"strconv"
	"time"
)

const defaultPingTimeout = 300 * time.Millisecond

// DetectResidentPort returns the first port in PortRange whose listener
// answers PING with PONG.
func DetectResidentPort(ctx context.Context) (int, bool) {
	timeout := pingTimeout(ctx)
	start, end := PortRange()
	for port := start; port <= end && ctx.Err() == nil; port++ {
		if ping(residentAddr(port), timeout) {
			return port, true
		}
	}
	return 0, false
}

func residentAddr(port int) string {
	return net.JoinHostPort(residentHost, strconv.Itoa(port))
}

// pingTimeout is the per-port budget, capped by the remaining ctx time.
func pingTimeout(ctx context.Context) time.Duration {
	if dl, ok := ctx.Deadline(); ok {
		if left := time.Until(dl); left > 0 && left < defaultPingTimeout {
			return left
		}
	}
	return defaultPingTimeout
}

func ping(addr string, timeout time.Duration) bool {
	conn, err := net.DialTimeout("tcp", addr, timeout)
	if err != nil {
		return false
	}
	defer conn.Close()
	_ = conn.SetDeadline(time.Now().Add(timeout))

	if _, err := conn.Write([]byte(pingRequest)); err != nil {
		return false
	}
	resp, err := bufio.NewReader(conn).ReadString('\n')
	return err == nil && resp == pongResponse
}
