package producer

import (
	"os"
	"time"

	"github.com/Shopify/sarama"
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rogpeppe/fastuuid"
	"go.uber.org/zap"

	"github.com/heetch/kafkian/codec"
)

// Config is used to configure the Producer.
type Config struct {
	sarama.Config

	// Brokers used by New when no address is given to it.
	Brokers []string

	// KeySerializer and ValueSerializer encode keys and values.
	// Both default to codec.Bytes.
	KeySerializer   codec.Serializer
	ValueSerializer codec.Serializer

	// Logger receives delivery reports and transport events.
	// Defaults to a no-op logger.
	Logger *zap.Logger

	// StatsInterval is how often transport statistics are collected
	// while polling. Zero disables statistics.
	StatsInterval time.Duration

	// EnqueueTimeout bounds the time Send waits for the Kafka client to
	// accept a message before failing with ErrQueueFull. Zero makes
	// Send fail as soon as the client is busy.
	EnqueueTimeout time.Duration

	// Registerer, if set, is used to register the producer metrics.
	Registerer prometheus.Registerer

	// Observers registered when the producer is created.
	SuccessObservers []SuccessObserver
	ErrorObservers   []ErrorObserver

	// ignored holds the reserved options dropped by Apply.
	ignored []string
}

// NewConfig creates a config with defaults suited to ordered,
// acknowledged, at-least-once delivery.
func NewConfig() Config {
	config := sarama.NewConfig()
	config.Version = sarama.V1_0_0_0
	config.ClientID = defaultClientID()
	config.Producer.RequiredAcks = sarama.WaitForAll // Wait for all in-sync replicas to ack the message
	config.Producer.Retry.Max = 3                    // Retry up to 3 times to produce the message
	config.Producer.Flush.Frequency = 100 * time.Millisecond
	config.Producer.Partitioner = NewJVMCompatiblePartitioner
	// A single in-flight request per connection keeps messages ordered across retries.
	config.Net.MaxOpenRequests = 1
	// Delivery reports are read from both channels by the producer.
	config.Producer.Return.Successes = true
	config.Producer.Return.Errors = true

	return Config{
		Config:          *config,
		KeySerializer:   codec.Bytes(),
		ValueSerializer: codec.Bytes(),
		Logger:          zap.NewNop(),
		StatsInterval:   15 * time.Second,
		EnqueueTimeout:  50 * time.Millisecond,
	}
}

// prepare fills in the zero fields, forces the settings the producer
// relies on and validates the result.
func (c *Config) prepare() error {
	if c.KeySerializer == nil {
		c.KeySerializer = codec.Bytes()
	}
	if c.ValueSerializer == nil {
		c.ValueSerializer = codec.Bytes()
	}
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.StatsInterval < 0 {
		return &ConfigError{Option: "statistics.interval.ms", Err: errNegative}
	}
	if c.EnqueueTimeout < 0 {
		return &ConfigError{Err: errors.New("EnqueueTimeout must not be negative")}
	}
	c.Producer.Return.Successes = true
	c.Producer.Return.Errors = true
	if err := c.Config.Validate(); err != nil {
		return &ConfigError{Err: err}
	}
	return nil
}

var uuids = fastuuid.MustNewGenerator()

func defaultClientID() string {
	if host, err := os.Hostname(); err == nil && host != "" {
		return host
	}
	return "kafkian-" + uuids.Hex128()[:8]
}
