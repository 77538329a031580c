package codec

import (
	"github.com/pkg/errors"
)

// ErrNoData is returned when decoding an absent key or a tombstone value.
var ErrNoData = errors.New("no data to decode")

// A Deserializer decodes the key or the value of a consumed
// Kafka message into target.
type Deserializer interface {
	Deserialize(data []byte, topic string, role Role, target interface{}) error
}

// DeserializerFunc adapts a function to the Deserializer interface.
type DeserializerFunc func(data []byte, topic string, role Role, target interface{}) error

// Deserialize calls f.
func (f DeserializerFunc) Deserialize(data []byte, topic string, role Role, target interface{}) error {
	return f(data, topic, role, target)
}

// Raw returns a Deserializer that copies data into a *[]byte or a *string.
func Raw() Deserializer {
	return DecodeWith(String())
}

// DecodeWith returns a Deserializer decoding data with c.
// Absent data (nil) fails with ErrNoData.
func DecodeWith(c Codec) Deserializer {
	return DeserializerFunc(func(data []byte, topic string, role Role, target interface{}) error {
		if data == nil {
			return errors.Wrapf(ErrNoData, "cannot decode %s from topic %q", role, topic)
		}
		if err := c.Decode(data, target); err != nil {
			return errors.Wrapf(err, "cannot decode %s from topic %q", role, topic)
		}
		return nil
	})
}
