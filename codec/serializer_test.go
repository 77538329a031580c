package codec_test

import (
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/require"

	"github.com/heetch/kafkian/codec"
)

func TestRoleString(t *testing.T) {
	require.Equal(t, "key", codec.KeyRole.String())
	require.Equal(t, "value", codec.ValueRole.String())
	require.Equal(t, "role(7)", codec.Role(7).String())
}

func TestBytesSerializer(t *testing.T) {
	s := codec.Bytes()

	data, err := s.Serialize([]byte("v1"), "orders", codec.ValueRole)
	require.NoError(t, err)
	require.Equal(t, []byte("v1"), data)

	data, err = s.Serialize([]byte{}, "orders", codec.ValueRole)
	require.NoError(t, err)
	require.NotNil(t, data, "empty values are not tombstones")
	require.Len(t, data, 0)

	data, err = s.Serialize(nil, "orders", codec.KeyRole)
	require.NoError(t, err)
	require.Nil(t, data)
}

// The default serializer must never stringify what it does not know.
func TestBytesSerializerRejectsOtherTypes(t *testing.T) {
	s := codec.Bytes()

	for _, v := range []interface{}{"hello", 10, struct{}{}, map[string]int{}} {
		_, err := s.Serialize(v, "orders", codec.ValueRole)
		var uerr *codec.UnsupportedTypeError
		require.True(t, errors.As(err, &uerr), "value %#v", v)
		require.Equal(t, codec.ValueRole, uerr.Role)
	}

	_, err := s.Serialize("k", "orders", codec.KeyRole)
	require.EqualError(t, err, "cannot serialize key of type string")
}

func TestSerializersAreDeterministic(t *testing.T) {
	serializers := map[string]codec.Serializer{
		"bytes":  codec.Bytes(),
		"string": codec.FromCodec(codec.String()),
		"json":   codec.FromCodec(codec.JSON()),
	}
	for name, s := range serializers {
		t.Run(name, func(t *testing.T) {
			first, err := s.Serialize([]byte("payload"), "orders", codec.ValueRole)
			require.NoError(t, err)
			for i := 0; i < 10; i++ {
				again, err := s.Serialize([]byte("payload"), "orders", codec.ValueRole)
				require.NoError(t, err)
				require.Equal(t, first, again)
			}
		})
	}
}

func TestFromCodec(t *testing.T) {
	s := codec.FromCodec(codec.JSON())

	data, err := s.Serialize(map[string]int{"x": 1}, "orders", codec.ValueRole)
	require.NoError(t, err)
	require.Equal(t, `{"x":1}`, string(data))

	data, err = s.Serialize(nil, "orders", codec.KeyRole)
	require.NoError(t, err)
	require.Nil(t, data)

	_, err = s.Serialize(make(chan bool), "orders", codec.ValueRole)
	require.EqualError(t, err, "cannot serialize value of type chan bool: json: unsupported type: chan bool")

	_, err = codec.FromCodec(codec.Int64()).Serialize("hello", "orders", codec.KeyRole)
	var uerr *codec.UnsupportedTypeError
	require.True(t, errors.As(err, &uerr))
	require.Equal(t, codec.KeyRole, uerr.Role)
}

func TestSerializerFunc(t *testing.T) {
	var got []string
	s := codec.SerializerFunc(func(v interface{}, topic string, role codec.Role) ([]byte, error) {
		got = append(got, topic+"/"+role.String())
		return []byte("x"), nil
	})
	_, err := s.Serialize(1, "orders", codec.KeyRole)
	require.NoError(t, err)
	require.Equal(t, []string{"orders/key"}, got)
}
