package consumer_test

import (
	"errors"

	"github.com/Shopify/sarama"
	qt "github.com/frankban/quicktest"
	"github.com/heetch/kafkatest"
	"github.com/rogpeppe/fastuuid"

	"github.com/heetch/kafkian/consumer"
	"github.com/heetch/kafkian/producer"
)

var uuids = fastuuid.MustNewGenerator()

type testKafka struct {
	kt *kafkatest.Kafka
}

func newTestKafka(c *qt.C) *testKafka {
	kt, err := kafkatest.New()
	if errors.Is(err, kafkatest.ErrDisabled) {
		c.Skipf("skipping integration tests")
	}
	c.Assert(err, qt.IsNil)
	c.Cleanup(func() {
		c.Check(kt.Close(), qt.IsNil)
	})
	return &testKafka{kt: kt}
}

// NewProducer returns a producer writing to the test cluster.
func (k *testKafka) NewProducer(c *qt.C, config producer.Config) *producer.Producer {
	config.Version = k.kt.Config().Version
	config.ClientID = randomName("producer")
	p, err := producer.New(config, k.kt.Addrs()...)
	c.Assert(err, qt.IsNil)
	c.Cleanup(func() { c.Check(p.Close(), qt.IsNil) })
	return p
}

// NewSubscriber returns a subscriber with its own consumer group.
func (k *testKafka) NewSubscriber(c *qt.C, topics ...string) *consumer.Subscriber {
	// Note: if we use the same consumer group name
	// for all consumers, we see sporadic timeout issues,
	// even though that technically shouldn't happen
	// with unrelated topics.
	cfg := consumer.NewConfig(randomName("testclient"), k.kt.Addrs()...)
	cfg.Version = k.kt.Config().Version
	cfg.Consumer.Offsets.Initial = sarama.OffsetOldest
	s, err := consumer.New(cfg, topics...)
	c.Assert(err, qt.IsNil)
	c.Cleanup(func() { c.Check(s.Close(), qt.IsNil) })
	return s
}

func (k *testKafka) NewTopic() string {
	return k.kt.NewTopic()
}

func randomName(prefix string) string {
	return prefix + "-" + uuids.Hex128()[:12]
}
