package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"os"
	"syscall"
)

// ErrorKind is a coarse classification of a failed write attempt.
type ErrorKind string

const (
	KindNone               ErrorKind = ""
	KindConnectionRefused  ErrorKind = "connection_refused"
	KindConnectionReset    ErrorKind = "connection_reset"
	KindBrokenPipe         ErrorKind = "broken_pipe"
	KindTimeout            ErrorKind = "timeout"
	KindHostUnreachable    ErrorKind = "host_unreachable"
	KindNetworkUnreachable ErrorKind = "network_unreachable"
	KindAddressInUse       ErrorKind = "address_in_use"
	KindCancelled          ErrorKind = "cancelled"
	KindShortWrite         ErrorKind = "short_write"
	KindOther              ErrorKind = "other"
)

// Classify maps an error returned by the net package onto an ErrorKind.
func Classify(err error) ErrorKind {
	if err == nil {
		return KindNone
	}
	switch {
	case errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.Is(err, context.DeadlineExceeded), errors.Is(err, os.ErrDeadlineExceeded):
		return KindTimeout
	case errors.Is(err, syscall.ECONNREFUSED):
		return KindConnectionRefused
	case errors.Is(err, syscall.ECONNRESET), errors.Is(err, syscall.ECONNABORTED):
		return KindConnectionReset
	case errors.Is(err, syscall.EPIPE):
		return KindBrokenPipe
	case errors.Is(err, syscall.EHOSTUNREACH):
		return KindHostUnreachable
	case errors.Is(err, syscall.ENETUNREACH):
		return KindNetworkUnreachable
	case errors.Is(err, syscall.EADDRINUSE), errors.Is(err, syscall.EADDRNOTAVAIL):
		return KindAddressInUse
	case errors.Is(err, io.ErrShortWrite):
		return KindShortWrite
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	return KindOther
}
