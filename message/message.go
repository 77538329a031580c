package message

import (
	"time"
)

// Message is a Kafka record.
type Message struct {
	// Kafka topic.
	Topic string

	// Key of the message. Messages with the same key go to the same partition.
	// nil when the message has no key.
	Key []byte

	// Value of the message. nil for tombstones.
	Value []byte

	// Headers of the message.
	Headers map[string]string

	// Partition where this message was stored.
	Partition int32

	// Offset where this message was stored.
	Offset int64

	// ProducedAt is the timestamp of the message.
	ProducedAt time.Time
}

// IsTombstone reports whether m marks the deletion of its key.
func (m *Message) IsTombstone() bool {
	return m.Value == nil
}

// Option is a function type that receives a pointer to a Message and
// modifies it in place. Options are intended to customize a message
// before sending it.
type Option func(*Message)

// Header is an Option that adds a custom header to the message. If
// multiple Headers are defined for the same key, the value of the last
// one wins.
func Header(k, v string) Option {
	return func(m *Message) {
		if m.Headers == nil {
			m.Headers = make(map[string]string)
		}
		m.Headers[k] = v
	}
}

// Timestamp is an Option that sets the time the message was produced at.
// When unset, the producer uses the current time.
func Timestamp(t time.Time) Option {
	return func(m *Message) {
		m.ProducedAt = t
	}
}
