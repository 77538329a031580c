package producer

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/heetch/kafkian/codec"
)

var (
	// ErrClosed is returned by Send once the producer has been closed.
	ErrClosed = errors.New("producer is closed")

	// ErrQueueFull is returned by Send when the local outbound queue
	// is saturated. Messages are never dropped silently: the caller
	// decides whether to poll and retry or give up.
	ErrQueueFull = errors.New("local queue is full")
)

// SerializationError is returned by Send when the key or the value
// cannot be serialized. The message never reaches the transport.
type SerializationError struct {
	Topic string
	Role  codec.Role
	Err   error
}

func (e *SerializationError) Error() string {
	return fmt.Sprintf("cannot serialize %s for topic %q: %v", e.Role, e.Topic, e.Err)
}

func (e *SerializationError) Unwrap() error {
	return e.Err
}

// ConfigError reports an invalid producer configuration.
type ConfigError struct {
	// Option is the name of the offending option, if any.
	Option string
	Err    error
}

func (e *ConfigError) Error() string {
	if e.Option == "" {
		return fmt.Sprintf("invalid producer configuration: %v", e.Err)
	}
	return fmt.Sprintf("invalid producer option %q: %v", e.Option, e.Err)
}

func (e *ConfigError) Unwrap() error {
	return e.Err
}
