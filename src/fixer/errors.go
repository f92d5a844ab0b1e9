package fixer

import (
	"errors"
	"fmt"
)

// Kind classifies a pipeline failure.
type Kind string

const (
	KindStore     Kind = "store"     // settings could not be read
	KindClipboard Kind = "clipboard" // clipboard write failed
	KindInput     Kind = "input"     // synthetic keystrokes failed
	KindNetwork   Kind = "network"   // transport or HTTP status failure
	KindVendor    Kind = "vendor"    // the API answered with an error object
	KindParse     Kind = "parse"     // the API answer could not be decoded
	KindNotify    Kind = "notify"    // the completion notification failed
)

// Error is the single error type returned by Pipeline.Run.
type Error struct {
	Kind Kind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s failed (%s): %v", e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the kind of a pipeline error, or "" for any other error.
func KindOf(err error) Kind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}

func newError(kind Kind, op string, err error) *Error {
	return &Error{Kind: kind, Op: op, Err: err}
}
