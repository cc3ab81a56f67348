package runner

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidConcurrency = errors.New("concurrency must be at least 1")
	ErrNoPolicy           = errors.New("a stopping policy is required")
	ErrNoWriter           = errors.New("a writer is required")
	ErrNoTarget           = errors.New("a resolved target is required")
	ErrInvalidRate        = errors.New("rate must be non-negative")
	ErrUnknownArrival     = errors.New("unknown arrival model")
)

// ConfigurationError reports options that make a run impossible. It is
// returned before any worker starts or any socket is opened.
type ConfigurationError struct {
	Option string
	Err    error
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Option, e.Err)
}

func (e *ConfigurationError) Unwrap() error {
	return e.Err
}
