package source

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/url"
)

// ErrorKind classifies why a worker failed. Every kind is recoverable by restarting.
type ErrorKind string

const (
	ErrorNetwork     ErrorKind = "network"
	ErrorParse       ErrorKind = "parse"
	ErrorRateLimited ErrorKind = "rate-limited"
	ErrorUnsupported ErrorKind = "unsupported"
	ErrorTimeout     ErrorKind = "timeout"
	ErrorUnknown     ErrorKind = "unknown"
)

// Sentinels providers wrap to pick a classification explicitly.
var (
	ErrNetwork     = errors.New("network error")
	ErrParse       = errors.New("parse error")
	ErrRateLimited = errors.New("rate limited")
	ErrUnsupported = errors.New("unsupported")
)

// Error is a classified worker failure.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return string(e.Kind)
	}

	return string(e.Kind) + ": " + e.Err.Error()
}

func (e *Error) Unwrap() error {
	return e.Err
}

func (e *Error) MarshalJSON() ([]byte, error) {
	message := ""
	if e.Err != nil {
		message = e.Err.Error()
	}

	return json.Marshal(struct {
		Kind    ErrorKind `json:"kind"`
		Message string    `json:"message"`
	}{e.Kind, message})
}

// Classify maps any error returned by a worker to the taxonomy.
func Classify(err error) *Error {
	if err == nil {
		return nil
	}

	var classified *Error
	if errors.As(err, &classified) {
		return classified
	}

	return &Error{Kind: kindOf(err), Err: err}
}

func kindOf(err error) ErrorKind {
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return ErrorTimeout
	case errors.Is(err, ErrRateLimited):
		return ErrorRateLimited
	case errors.Is(err, ErrUnsupported):
		return ErrorUnsupported
	case errors.Is(err, ErrParse):
		return ErrorParse
	case errors.Is(err, ErrNetwork), errors.Is(err, io.ErrUnexpectedEOF):
		return ErrorNetwork
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return ErrorTimeout
		}
		return ErrorNetwork
	}

	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		return ErrorNetwork
	}

	var syntaxErr *json.SyntaxError
	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &syntaxErr) || errors.As(err, &typeErr) {
		return ErrorParse
	}

	return ErrorUnknown
}

// Timeout is the error recorded for a worker that ran out of time.
func Timeout(err error) *Error {
	return &Error{Kind: ErrorTimeout, Err: err}
}
