// Package message contains the Message type shared by the producer and
// the consumer packages.
//
// On the producer side a Message is built from the serialized key and
// value given to Producer.Send and is handed back, with its partition
// and offset filled in, in the Delivery reported once the broker has
// acknowledged or rejected it. On the consumer side Subscriber.Next
// returns the Messages read from Kafka.
//
// A Message with a nil Value is a tombstone: on compacted topics it
// marks the deletion of its key. An empty but non-nil Value is an
// ordinary value.
//
// Options customize a Message before it is sent:
//
//	p.Send(ctx, "orders", key, value, message.Header("Content-Type", "application/json"))
package message
