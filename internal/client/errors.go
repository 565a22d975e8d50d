package client

import (
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"

	"github.com/hitechniques/llclient/internal/protocol"
)

// ErrClosed is returned by outbound calls after Close
var ErrClosed = errors.New("client is closed")

// ErrorType represents the category of a connection error
type ErrorType int

const (
	// ErrTypeNetwork indicates a generic network-level error
	ErrTypeNetwork ErrorType = iota
	// ErrTypeTimeout indicates a dial or I/O timeout
	ErrTypeTimeout
	// ErrTypeRefused indicates the server refused the connection
	ErrTypeRefused
	// ErrTypeDNS indicates a DNS resolution failure
	ErrTypeDNS
	// ErrTypeUnreachable indicates the host or network is unreachable
	ErrTypeUnreachable
	// ErrTypeProtocol indicates the server violated the framing protocol
	ErrTypeProtocol
	// ErrTypeClosed indicates the server closed or reset the connection
	ErrTypeClosed
)

// String returns a human-readable name for the error type
func (et ErrorType) String() string {
	switch et {
	case ErrTypeNetwork:
		return "Network Error"
	case ErrTypeTimeout:
		return "Timeout"
	case ErrTypeRefused:
		return "Connection Refused"
	case ErrTypeDNS:
		return "DNS Error"
	case ErrTypeUnreachable:
		return "Unreachable"
	case ErrTypeProtocol:
		return "Protocol Error"
	case ErrTypeClosed:
		return "Connection Closed"
	default:
		return fmt.Sprintf("ErrorType(%d)", et)
	}
}

// ConnectionError is a classified transport or framing failure
type ConnectionError struct {
	Type ErrorType // Category of error
	Op   string    // "dial", "read" or "write"
	Addr string    // Server address
	Err  error     // Underlying error
}

// Error implements the error interface
func (e *ConnectionError) Error() string {
	return fmt.Sprintf("%s %s: %s: %v", e.Op, e.Addr, e.Type, e.Err)
}

// Unwrap returns the underlying error for error chain inspection
func (e *ConnectionError) Unwrap() error {
	return e.Err
}

// ClassifyNetworkError wraps err in a ConnectionError with a category
func ClassifyNetworkError(op, addr string, err error) *ConnectionError {
	if err == nil {
		return nil
	}

	ce := &ConnectionError{Type: ErrTypeNetwork, Op: op, Addr: addr, Err: err}

	switch {
	case isProtocolError(err):
		ce.Type = ErrTypeProtocol
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.EPIPE):
		ce.Type = ErrTypeClosed
	case os.IsTimeout(err):
		ce.Type = ErrTypeTimeout
	case errors.Is(err, syscall.ECONNREFUSED):
		ce.Type = ErrTypeRefused
	case errors.Is(err, syscall.EHOSTUNREACH), errors.Is(err, syscall.ENETUNREACH):
		ce.Type = ErrTypeUnreachable
	default:
		var dnsErr *net.DNSError
		if errors.As(err, &dnsErr) {
			ce.Type = ErrTypeDNS
		}
	}

	return ce
}

func isProtocolError(err error) bool {
	return errors.Is(err, protocol.ErrFrameTooLarge) ||
		errors.Is(err, protocol.ErrInvalidID) ||
		errors.Is(err, protocol.ErrInvalidLength) ||
		errors.Is(err, io.ErrNoProgress)
}

// IsProtocolError reports whether err is a framing violation by the server
func IsProtocolError(err error) bool {
	var ce *ConnectionError
	if errors.As(err, &ce) {
		return ce.Type == ErrTypeProtocol
	}
	return isProtocolError(err)
}

// ShortMessage returns a concise, user-facing description of err
func ShortMessage(err error) string {
	if err == nil {
		return "connection closed"
	}

	var ce *ConnectionError
	if !errors.As(err, &ce) {
		return err.Error()
	}

	switch ce.Type {
	case ErrTypeTimeout:
		return fmt.Sprintf("Server %s not responding (timeout)", ce.Addr)
	case ErrTypeRefused:
		return fmt.Sprintf("Server %s refused connection - is it running?", ce.Addr)
	case ErrTypeDNS:
		return fmt.Sprintf("Cannot resolve %s", ce.Addr)
	case ErrTypeUnreachable:
		return fmt.Sprintf("Server %s unreachable - check network connection", ce.Addr)
	case ErrTypeProtocol:
		return fmt.Sprintf("Server %s sent an invalid frame: %v", ce.Addr, ce.Err)
	case ErrTypeClosed:
		return fmt.Sprintf("Server %s closed the connection", ce.Addr)
	default:
		return ce.Error()
	}
}
