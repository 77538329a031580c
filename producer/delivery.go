package producer

import (
	"github.com/heetch/kafkian/message"
)

// Delivery is the outcome of a message sent with Send. It holds the
// message as acknowledged by the broker, with its partition and offset,
// or the error that made the transport give up on it.
type Delivery struct {
	message.Message

	// Err is nil when the message was delivered.
	Err error
}

// Failed reports whether the message could not be delivered.
func (d Delivery) Failed() bool {
	return d.Err != nil
}

// SuccessObserver is notified of every delivered message.
type SuccessObserver func(Delivery) error

// ErrorObserver is notified of every message that could not be delivered.
type ErrorObserver func(Delivery, error) error
