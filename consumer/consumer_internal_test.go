package consumer

import (
	"context"
	"testing"
	"time"

	"github.com/Shopify/sarama"
	qt "github.com/frankban/quicktest"
	"go.uber.org/zap/zaptest/observer"

	"github.com/heetch/kafkian/codec"
	"github.com/heetch/kafkian/common"
	"github.com/heetch/kafkian/message"
)

func newTestSubscriber(c *qt.C, g *consumerGroup) (*Subscriber, *observer.ObservedLogs) {
	logger, logs := common.NewTestLogger()
	cfg := NewConfig("clientid")
	cfg.Logger = logger
	cfg.MaxRetryInterval = 50 * time.Millisecond
	s, err := NewFrom(g, cfg, "orders")
	c.Assert(err, qt.IsNil)
	c.Cleanup(func() {
		c.Check(s.Close(), qt.IsNil)
	})
	return s, logs
}

func TestNextReturnsMessagesInOrder(t *testing.T) {
	c := qt.New(t)
	g := newConsumerGroup()
	s, _ := newTestSubscriber(c, g)

	t0 := time.Now().Truncate(time.Millisecond)
	go func() {
		g.ch <- &sarama.ConsumerMessage{
			Topic:     "orders",
			Key:       []byte("k1"),
			Value:     []byte("v1"),
			Offset:    10,
			Timestamp: t0,
			Headers:   []*sarama.RecordHeader{{Key: []byte("h"), Value: []byte("x")}},
		}
		g.ch <- &sarama.ConsumerMessage{Topic: "orders", Key: []byte("k2"), Offset: 11}
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	m, err := s.Next(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(m, qt.DeepEquals, &message.Message{
		Topic:      "orders",
		Key:        []byte("k1"),
		Value:      []byte("v1"),
		Headers:    map[string]string{"h": "x"},
		Offset:     10,
		ProducedAt: t0,
	})

	m, err = s.Next(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(string(m.Key), qt.Equals, "k2")
	c.Assert(m.IsTombstone(), qt.IsTrue)
	c.Assert(m.Value, qt.IsNil)

	marked, _ := g.session(0).state()
	c.Assert(marked, qt.DeepEquals, []int64{10, 11})
}

func TestCommit(t *testing.T) {
	c := qt.New(t)
	g := newConsumerGroup()
	s, _ := newTestSubscriber(c, g)

	go func() {
		g.ch <- &sarama.ConsumerMessage{Topic: "orders", Value: []byte("v"), Offset: 3}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := s.Next(ctx)
	c.Assert(err, qt.IsNil)

	c.Assert(s.Commit(ctx, true), qt.IsNil)
	_, commits := g.session(0).state()
	c.Assert(commits, qt.Equals, 1)

	// Leaving the group commits again.
	c.Assert(s.Close(), qt.IsNil)
	_, commits = g.session(0).state()
	c.Assert(commits, qt.Equals, 2)

	c.Assert(s.Commit(ctx, true), qt.Equals, ErrClosed)
	_, err = s.Next(ctx)
	c.Assert(err, qt.Equals, ErrClosed)
}

func TestNextContextDone(t *testing.T) {
	c := qt.New(t)
	s, _ := newTestSubscriber(c, newConsumerGroup())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	_, err := s.Next(ctx)
	c.Assert(err, qt.Equals, context.DeadlineExceeded)
}

func TestConsumeErrorsAreRetried(t *testing.T) {
	c := qt.New(t)
	g := newConsumerGroup()
	g.failures = 2
	s, logs := newTestSubscriber(c, g)

	go func() {
		g.ch <- &sarama.ConsumerMessage{Topic: "orders", Value: []byte("v")}
	}()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	m, err := s.Next(ctx)
	c.Assert(err, qt.IsNil)
	c.Assert(string(m.Value), qt.Equals, "v")
	c.Assert(logs.FilterMessage("consumer group error, joining again").Len(), qt.Equals, 2)
}

func TestGroupErrorsAreLogged(t *testing.T) {
	c := qt.New(t)
	g := newConsumerGroup()
	s, logs := newTestSubscriber(c, g)

	g.errs <- sarama.ErrNotCoordinatorForConsumer
	c.Assert(s.Close(), qt.IsNil)

	deadline := time.Now().Add(5 * time.Second)
	for logs.FilterMessage("consumer error").Len() == 0 && time.Now().Before(deadline) {
		time.Sleep(time.Millisecond)
	}
	c.Assert(logs.FilterMessage("consumer error").Len(), qt.Equals, 1)
}

func TestNewFromRequiresTopics(t *testing.T) {
	c := qt.New(t)
	_, err := NewFrom(newConsumerGroup(), NewConfig("clientid"))
	c.Assert(err, qt.ErrorMatches, "at least one topic is required")
}

func TestDecode(t *testing.T) {
	c := qt.New(t)
	cfg := NewConfig("clientid")
	cfg.ValueDeserializer = codec.DecodeWith(codec.JSON())
	s, err := NewFrom(newConsumerGroup(), cfg, "orders")
	c.Assert(err, qt.IsNil)
	defer s.Close()

	m := &message.Message{Topic: "orders", Key: []byte("k"), Value: []byte(`{"amount":12}`)}
	var key string
	c.Assert(s.DecodeKey(m, &key), qt.IsNil)
	c.Assert(key, qt.Equals, "k")

	var v struct{ Amount int }
	c.Assert(s.DecodeValue(m, &v), qt.IsNil)
	c.Assert(v.Amount, qt.Equals, 12)

	err = s.DecodeValue(&message.Message{Topic: "orders"}, &v)
	c.Assert(err, qt.ErrorIs, codec.ErrNoData)
}
