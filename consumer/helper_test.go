package consumer

import (
	"context"
	"sync"

	"github.com/Shopify/sarama"
)

// consumerGroupClaim implements sarama.ConsumerGroupClaim interface.
type consumerGroupClaim struct {
	ch    chan *sarama.ConsumerMessage
	topic string
}

func (c consumerGroupClaim) Topic() string {
	return c.topic
}

func (consumerGroupClaim) Partition() int32 {
	return int32(0)
}

func (consumerGroupClaim) InitialOffset() int64 {
	return int64(0)
}

func (consumerGroupClaim) HighWaterMarkOffset() int64 {
	return int64(1)
}

func (c consumerGroupClaim) Messages() <-chan *sarama.ConsumerMessage {
	return c.ch
}

// consumerGroupSession implements sarama.ConsumerGroupSession interface.
// It records marked offsets and commits.
type consumerGroupSession struct {
	ctx context.Context

	mu      sync.Mutex
	marked  []int64
	commits int
}

func (*consumerGroupSession) Claims() map[string][]int32 {
	return nil
}

func (*consumerGroupSession) MemberID() string {
	return "member-1"
}

func (*consumerGroupSession) GenerationID() int32 {
	return int32(1)
}

func (*consumerGroupSession) MarkOffset(topic string, partition int32, offset int64, metadata string) {
}

func (*consumerGroupSession) ResetOffset(topic string, partition int32, offset int64, metadata string) {
}

func (s *consumerGroupSession) MarkMessage(msg *sarama.ConsumerMessage, metadata string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.marked = append(s.marked, msg.Offset)
}

func (s *consumerGroupSession) Commit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.commits++
}

func (s *consumerGroupSession) Context() context.Context {
	return s.ctx
}

func (s *consumerGroupSession) state() (marked []int64, commits int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]int64(nil), s.marked...), s.commits
}

// consumerGroup implements the parts of sarama.ConsumerGroup used by
// the Subscriber. Every Consume call is one generation with a single
// claim fed from ch.
type consumerGroup struct {
	sarama.ConsumerGroup

	ch   chan *sarama.ConsumerMessage
	errs chan error
	// failures is the number of Consume calls failing before one
	// succeeds.
	failures int

	mu       sync.Mutex
	calls    int
	sessions []*consumerGroupSession
	closed   bool
}

func newConsumerGroup() *consumerGroup {
	return &consumerGroup{
		ch:   make(chan *sarama.ConsumerMessage),
		errs: make(chan error, 1),
	}
}

func (g *consumerGroup) Consume(ctx context.Context, topics []string, h sarama.ConsumerGroupHandler) error {
	g.mu.Lock()
	g.calls++
	if g.calls <= g.failures {
		g.mu.Unlock()
		return sarama.ErrOutOfBrokers
	}
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	sess := &consumerGroupSession{ctx: ctx}
	g.sessions = append(g.sessions, sess)
	g.mu.Unlock()

	if err := h.Setup(sess); err != nil {
		return err
	}
	err := h.ConsumeClaim(sess, consumerGroupClaim{ch: g.ch, topic: topics[0]})
	cancel()
	if cerr := h.Cleanup(sess); err == nil {
		err = cerr
	}
	return err
}

func (g *consumerGroup) Errors() <-chan error {
	return g.errs
}

func (g *consumerGroup) Close() error {
	g.mu.Lock()
	defer g.mu.Unlock()
	if !g.closed {
		g.closed = true
		close(g.errs)
	}
	return nil
}

func (g *consumerGroup) session(i int) *consumerGroupSession {
	g.mu.Lock()
	defer g.mu.Unlock()
	if i >= len(g.sessions) {
		return nil
	}
	return g.sessions[i]
}
