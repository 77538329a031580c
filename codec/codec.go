package codec

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/pkg/errors"
)

// A Codec can encode and decode values. Codecs know nothing of topics
// or roles: use FromCodec and DecodeWith to plug them into a producer or
// a subscriber.
type Codec interface {
	Encode(v interface{}) ([]byte, error)
	Decode(data []byte, target interface{}) error
}

type codecFunc struct {
	encode func(v interface{}) ([]byte, error)
	decode func(data []byte, target interface{}) error
}

func (c *codecFunc) Encode(v interface{}) ([]byte, error) {
	return c.encode(v)
}

func (c *codecFunc) Decode(data []byte, target interface{}) error {
	return c.decode(data, target)
}

// String passes raw data through.
// Encode accepts a byte slice, string, stringer or error.
// Decode copies data into a *string or a *[]byte.
func String() Codec {
	return &codecFunc{encodeString, decodeString}
}

// JSON Codec handles JSON encoding.
func JSON() Codec {
	return &codecFunc{json.Marshal, json.Unmarshal}
}

// Int64 encodes int64 values as decimal text.
func Int64() Codec {
	return &codecFunc{encodeInt64, decodeInt64}
}

// Float64 encodes float64 values as decimal text, using the shortest
// representation that parses back to the same value.
func Float64() Codec {
	return &codecFunc{encodeFloat64, decodeFloat64}
}

func encodeString(v interface{}) ([]byte, error) {
	switch t := v.(type) {
	case string:
		return []byte(t), nil
	case []byte:
		return t, nil
	case fmt.Stringer:
		return []byte(t.String()), nil
	case error:
		return []byte(t.Error()), nil
	}
	return nil, errors.Errorf("%v must be a string, a stringer, an error or a byte slice, got %T instead", v, v)
}

func decodeString(data []byte, target interface{}) error {
	switch t := target.(type) {
	case *string:
		*t = string(data)
	case *[]byte:
		*t = data
	default:
		return errors.Errorf("target must be a pointer to string or to a byte slice, got %T instead", target)
	}
	return nil
}

func encodeInt64(v interface{}) ([]byte, error) {
	i, ok := v.(int64)
	if !ok {
		return nil, errors.Errorf("%v must be an int64, got %T instead", v, v)
	}
	return strconv.AppendInt(nil, i, 10), nil
}

func decodeInt64(data []byte, target interface{}) error {
	ptr, ok := target.(*int64)
	if !ok {
		return errors.Errorf("target must be a pointer to int64, got %T instead", target)
	}
	i, err := strconv.ParseInt(string(data), 10, 64)
	if err != nil {
		return errors.Errorf("%q is not an int64", data)
	}
	*ptr = i
	return nil
}

func encodeFloat64(v interface{}) ([]byte, error) {
	f, ok := v.(float64)
	if !ok {
		return nil, errors.Errorf("%v must be a float64, got %T instead", v, v)
	}
	return strconv.AppendFloat(nil, f, 'f', -1, 64), nil
}

func decodeFloat64(data []byte, target interface{}) error {
	ptr, ok := target.(*float64)
	if !ok {
		return errors.Errorf("target must be a pointer to float64, got %T instead", target)
	}
	f, err := strconv.ParseFloat(string(data), 64)
	if err != nil {
		return errors.Errorf("%q is not a float64", data)
	}
	*ptr = f
	return nil
}
