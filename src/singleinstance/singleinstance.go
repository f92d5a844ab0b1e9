// Package singleinstance keeps one resident typofix per user session and lets
// `--run-once` invocations hand their fix to it over loopback TCP.
//
// Wire format, one request line per connection:
//
//	PING\n        -> PONG\n
//	FIX\n         -> SUCCESS\n            or ERROR\n<message>
//	FIX STDOUT\n  -> SUCCESS\n<fixed text> or ERROR\n<message>
package singleinstance

import "context"

// Server is the resident side.
type Server interface {
	// Start binds the first port of PortRange. It fails when the port is taken.
	Start(ctx context.Context) error
	// Port is the bound port, or 0.
	Port() int
	// Next blocks until a FIX request arrives, ctx ends or the server closes.
	Next(ctx context.Context) (Conn, error)
	Close() error
}

// Conn is one pending FIX request. Exactly one Respond call is expected.
type Conn interface {
	Request() Request
	// RespondSuccess sends SUCCESS; text is only meaningful for stdout requests.
	RespondSuccess(text string) error
	RespondError(msg string) error
	Close() error
}

type Request struct {
	// OutputToStdout is set for FIX STDOUT.
	OutputToStdout bool
}

// Client is the --run-once side.
type Client interface {
	// TryFix finds a resident in PortRange and waits for its answer.
	// delegated=false with a nil error means no resident answered PING.
	TryFix(ctx context.Context, outputToStdout bool) (delegated bool, text string, err error)
}

func NewServer() Server { return newTcpServer() }

func NewClient() Client { return newTcpClient() }
