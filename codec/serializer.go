package codec

import (
	"fmt"
)

// Role tells a Serializer or a Deserializer whether it handles
// the key or the value of a Kafka message.
type Role int

const (
	// KeyRole is used when encoding or decoding message keys.
	KeyRole Role = iota
	// ValueRole is used when encoding or decoding message values.
	ValueRole
)

func (r Role) String() string {
	switch r {
	case KeyRole:
		return "key"
	case ValueRole:
		return "value"
	}
	return fmt.Sprintf("role(%d)", int(r))
}

// Serializer turns a Go value into the bytes sent as the key or the value
// of a Kafka message.
//
// Implementations must return the same bytes for the same
// (value, topic, role) and must be safe for concurrent use: a producer
// serializes messages from many goroutines with the same instance.
// A nil value stands for an absent key and should be returned as nil.
type Serializer interface {
	Serialize(v interface{}, topic string, role Role) ([]byte, error)
}

// SerializerFunc adapts a function to the Serializer interface.
type SerializerFunc func(v interface{}, topic string, role Role) ([]byte, error)

// Serialize calls f.
func (f SerializerFunc) Serialize(v interface{}, topic string, role Role) ([]byte, error) {
	return f(v, topic, role)
}

// UnsupportedTypeError is returned by serializers given a value they
// cannot encode.
type UnsupportedTypeError struct {
	Value interface{}
	Role  Role
	// Err holds the underlying codec error, if any.
	Err error
}

func (e *UnsupportedTypeError) Error() string {
	msg := fmt.Sprintf("cannot serialize %s of type %T", e.Role, e.Value)
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *UnsupportedTypeError) Unwrap() error {
	return e.Err
}

// Bytes returns the default Serializer. It passes byte slices through
// untouched and rejects anything else with an UnsupportedTypeError;
// values are never stringified.
func Bytes() Serializer {
	return SerializerFunc(func(v interface{}, _ string, role Role) ([]byte, error) {
		switch t := v.(type) {
		case nil:
			return nil, nil
		case []byte:
			return t, nil
		}
		return nil, &UnsupportedTypeError{Value: v, Role: role}
	})
}

// FromCodec returns a Serializer encoding values with c.
// Encoding failures are reported as UnsupportedTypeError.
func FromCodec(c Codec) Serializer {
	return SerializerFunc(func(v interface{}, _ string, role Role) ([]byte, error) {
		if v == nil {
			return nil, nil
		}
		data, err := c.Encode(v)
		if err != nil {
			return nil, &UnsupportedTypeError{Value: v, Role: role, Err: err}
		}
		return data, nil
	})
}
