package codec

import (
	"encoding/binary"

	"github.com/pkg/errors"
)

// magicByte prefixes every payload in the Confluent wire format.
const magicByte byte = 0

const wireHeaderLen = 5

// SchemaRegistry resolves the id of a schema registered under a subject.
// RegistryClient implements it against the Confluent Schema Registry.
type SchemaRegistry interface {
	Register(subject, schema string) (int, error)
}

// SubjectName returns the registry subject used for a topic and a role.
// Keys and values of the same topic are registered under distinct
// subjects: "<topic>-key" and "<topic>-value".
func SubjectName(topic string, role Role) string {
	return topic + "-" + role.String()
}

type registrySerializer struct {
	registry SchemaRegistry
	schema   string
	inner    Serializer
}

// Registry returns a Serializer that encodes values with inner and
// frames the result in the Confluent wire format, using the id
// of schema under the subject derived from the topic and the role.
// Absent keys stay absent.
func Registry(r SchemaRegistry, schema string, inner Serializer) Serializer {
	return &registrySerializer{
		registry: r,
		schema:   schema,
		inner:    inner,
	}
}

func (s *registrySerializer) Serialize(v interface{}, topic string, role Role) ([]byte, error) {
	payload, err := s.inner.Serialize(v, topic, role)
	if err != nil || payload == nil {
		return nil, err
	}
	subject := SubjectName(topic, role)
	id, err := s.registry.Register(subject, s.schema)
	if err != nil {
		return nil, errors.Wrapf(err, "cannot resolve schema for subject %q", subject)
	}
	return AppendSchemaID(make([]byte, 0, wireHeaderLen+len(payload)), id, payload), nil
}

// AppendSchemaID appends the wire format header for id followed by
// payload to buf.
func AppendSchemaID(buf []byte, id int, payload []byte) []byte {
	var hdr [wireHeaderLen]byte
	hdr[0] = magicByte
	binary.BigEndian.PutUint32(hdr[1:], uint32(id))
	buf = append(buf, hdr[:]...)
	return append(buf, payload...)
}

// SchemaID splits a wire format payload into its schema id and data.
func SchemaID(data []byte) (int, []byte, error) {
	if len(data) < wireHeaderLen {
		return 0, nil, errors.Errorf("payload too short for the wire format: %d bytes", len(data))
	}
	if data[0] != magicByte {
		return 0, nil, errors.Errorf("unknown magic byte %d", data[0])
	}
	return int(binary.BigEndian.Uint32(data[1:wireHeaderLen])), data[wireHeaderLen:], nil
}

// RegistryDecoder returns a Deserializer that strips the wire format
// header and decodes the remaining data with inner.
func RegistryDecoder(inner Deserializer) Deserializer {
	return DeserializerFunc(func(data []byte, topic string, role Role, target interface{}) error {
		if data == nil {
			return inner.Deserialize(nil, topic, role, target)
		}
		_, payload, err := SchemaID(data)
		if err != nil {
			return errors.Wrapf(err, "cannot decode %s from topic %q", role, topic)
		}
		return inner.Deserialize(payload, topic, role, target)
	})
}
