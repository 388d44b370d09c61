package engine

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
)

// Transport and response failures. Every error returned by Client.Execute
// matches exactly one of these with errors.Is / errors.As.
var (
	ErrTimeout           = errors.New("request timed out")
	ErrConnection        = errors.New("connection error")
	ErrRequest           = errors.New("request failed")
	ErrMalformedResponse = errors.New("malformed response")
)

// StatusError is returned for non-2xx responses.
type StatusError struct {
	StatusCode int
	Status     string
	Body       string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("function returned %s: %s", e.Status, e.Body)
}

// FunctionError is returned when the function answered {"status":"error"}.
type FunctionError struct {
	Message string
}

func (e *FunctionError) Error() string {
	return "function error: " + e.Message
}

// Error kinds used in logs and result rows.
const (
	KindTimeout    = "timeout"
	KindConnection = "connection"
	KindRequest    = "request"
	KindStatus     = "http_status"
	KindMalformed  = "malformed_response"
	KindFunction   = "function_error"
	KindCancelled  = "cancelled"
)

// ErrorKind classifies err for logging and reporting.
func ErrorKind(err error) string {
	var se *StatusError
	var fe *FunctionError
	switch {
	case err == nil:
		return ""
	case errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.Is(err, ErrTimeout):
		return KindTimeout
	case errors.Is(err, ErrConnection):
		return KindConnection
	case errors.As(err, &se):
		return KindStatus
	case errors.Is(err, ErrMalformedResponse):
		return KindMalformed
	case errors.As(err, &fe):
		return KindFunction
	default:
		return KindRequest
	}
}

// classifyTransport wraps a client.Do error with its transport kind.
func classifyTransport(err error) error {
	if errors.Is(err, context.Canceled) {
		return err
	}

	var netErr net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &netErr) && netErr.Timeout()) {
		return fmt.Errorf("%w: %w", ErrTimeout, err)
	}

	var opErr *net.OpError
	var dnsErr *net.DNSError
	switch {
	case errors.As(err, &dnsErr),
		errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.ECONNRESET),
		errors.Is(err, syscall.EHOSTUNREACH),
		errors.Is(err, syscall.ENETUNREACH),
		errors.As(err, &opErr) && opErr.Op == "dial":
		return fmt.Errorf("%w: %w", ErrConnection, err)
	}
	return fmt.Errorf("%w: %w", ErrRequest, err)
}
