// Package producer sends messages to Kafka asynchronously.
//
// A Producer serializes keys and values with the configured
// codec.Serializer and queues them on a Transport, by default a Sarama
// AsyncProducer. Send returns as soon as a message is queued; its outcome,
// a Delivery, is dispatched later to the observers registered with
// OnSuccess and OnError, and logged. Outcomes are dispatched from the
// goroutine calling Poll, Flush or Close: long-running producers that use
// Send must poll regularly.
//
// A nil value is a tombstone: it bypasses the value serializer and is
// written as a null record, which compacted topics treat as a deletion.
//
// Configuration starts from NewConfig, which favors ordered,
// acknowledged delivery, and can be overridden with Options named after
// the usual Kafka client properties, e.g. loaded from YAML with
// LoadOptions. Options binding delivery, error, throttle or statistics
// callbacks are ignored: the producer owns them.
//
// Close must be called before the program exits, otherwise queued
// messages are lost.
package producer
