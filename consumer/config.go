package consumer

import (
	"time"

	"github.com/Shopify/sarama"
	"go.uber.org/zap"
	"gopkg.in/retry.v1"

	"github.com/heetch/kafkian/codec"
)

// Config is used to configure the Subscriber.
type Config struct {
	*sarama.Config

	// KafkaAddrs holds kafka brokers addresses. There must be at least
	// one entry in the slice.
	// Default to localhost:9092.
	KafkaAddrs []string

	// GroupID is the consumer group the subscriber joins.
	// Defaults to the client id.
	GroupID string

	// Logger receives consumer group errors and lifecycle events.
	// Defaults to a no-op logger.
	Logger *zap.Logger

	// MaxRetryInterval controls the maximum length of time that
	// the subscriber waits before joining the group again after
	// a consume error.
	// Default to 5 seconds.
	MaxRetryInterval time.Duration

	// KeyDeserializer and ValueDeserializer are used by DecodeKey
	// and DecodeValue. Both default to codec.Raw.
	KeyDeserializer   codec.Deserializer
	ValueDeserializer codec.Deserializer
}

// NewConfig creates a config with sane defaults.
func NewConfig(clientID string, addrs ...string) Config {
	var c Config

	c.Config = sarama.NewConfig()
	c.ClientID = clientID
	c.Consumer.Return.Errors = true
	// Specify that we are using at least Kafka v1.0
	c.Version = sarama.V1_0_0_0
	// Distribute load across instances using round robin strategy
	c.Consumer.Group.Rebalance.Strategy = sarama.BalanceStrategyRoundRobin
	// Read topics from the beginning the first time the group joins them.
	c.Consumer.Offsets.Initial = sarama.OffsetOldest
	// Offsets are committed by Commit, when claims are revoked and on Close.
	c.Consumer.Offsets.AutoCommit.Enable = false

	c.KafkaAddrs = addrs
	if c.KafkaAddrs == nil {
		c.KafkaAddrs = []string{"localhost:9092"}
	}
	c.GroupID = clientID
	c.MaxRetryInterval = 5 * time.Second
	c.KeyDeserializer = codec.Raw()
	c.ValueDeserializer = codec.Raw()
	c.Logger = zap.NewNop()

	return c
}

func (c *Config) retryStrategy() retry.Strategy {
	// Note: the run loop assumes that this strategy does not
	// terminate; be aware of that when changing it.
	return retry.Exponential{
		Initial:  10 * time.Millisecond,
		Factor:   2,
		MaxDelay: c.MaxRetryInterval,
		Jitter:   true,
	}
}
