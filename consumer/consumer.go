package consumer

import (
	"context"
	"sync"

	"github.com/Shopify/sarama"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	"gopkg.in/retry.v1"

	"github.com/heetch/kafkian/codec"
	"github.com/heetch/kafkian/message"
)

// ErrClosed is returned by the Subscriber once it has been closed.
var ErrClosed = errors.New("subscriber is closed")

// Subscriber reads messages from a set of topics as part of a consumer
// group. Messages are returned one at a time by Next, in offset order
// within a partition.
//
// A message returned by Next is marked as consumed; marked offsets are
// committed by Commit, when the group rebalances and by Close.
type Subscriber struct {
	group  sarama.ConsumerGroup
	config Config
	topics []string
	logger *zap.Logger

	messages chan claimed
	ctx      context.Context
	cancel   context.CancelFunc
	runDone  chan struct{}

	mu      sync.Mutex
	closed  bool
	session sarama.ConsumerGroupSession
}

// claimed is a message handed over from a claim to Next.
type claimed struct {
	msg     *sarama.ConsumerMessage
	session sarama.ConsumerGroupSession
}

// New creates a Subscriber joining config.GroupID and consuming topics.
func New(config Config, topics ...string) (*Subscriber, error) {
	if config.GroupID == "" {
		config.GroupID = config.ClientID
	}
	group, err := sarama.NewConsumerGroup(config.KafkaAddrs, config.GroupID, config.Config)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create a consumer group")
	}
	s, err := NewFrom(group, config, topics...)
	if err != nil {
		group.Close()
		return nil, err
	}
	return s, nil
}

// NewFrom creates a Subscriber consuming topics with the given
// consumer group. The Subscriber owns the group and closes it.
func NewFrom(group sarama.ConsumerGroup, config Config, topics ...string) (*Subscriber, error) {
	if len(topics) == 0 {
		return nil, errors.New("at least one topic is required")
	}
	if config.Logger == nil {
		config.Logger = zap.NewNop()
	}
	if config.KeyDeserializer == nil {
		config.KeyDeserializer = codec.Raw()
	}
	if config.ValueDeserializer == nil {
		config.ValueDeserializer = codec.Raw()
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Subscriber{
		group:    group,
		config:   config,
		topics:   topics,
		logger:   config.Logger,
		messages: make(chan claimed),
		ctx:      ctx,
		cancel:   cancel,
		runDone:  make(chan struct{}),
	}
	s.logger.Info("starting subscriber",
		zap.String("group", config.GroupID),
		zap.Strings("topics", topics),
	)
	go s.logErrors()
	go s.run()
	return s, nil
}

// run joins the group until the subscriber is closed. Consume returns
// whenever the group rebalances, so it is called in a loop.
func (s *Subscriber) run() {
	defer close(s.runDone)

	h := &groupHandler{s: s}
	attempt := retry.StartWithCancel(s.config.retryStrategy(), nil, s.ctx.Done())
	for attempt.Next() {
		err := s.group.Consume(s.ctx, s.topics, h)
		if s.ctx.Err() != nil {
			return
		}
		if err == nil {
			attempt = retry.StartWithCancel(s.config.retryStrategy(), nil, s.ctx.Done())
			continue
		}
		if errors.Is(err, sarama.ErrClosedConsumerGroup) {
			return
		}
		s.logger.Error("consumer group error, joining again",
			zap.Int("attempt", attempt.Count()),
			zap.Error(err),
		)
	}
}

func (s *Subscriber) logErrors() {
	for err := range s.group.Errors() {
		s.logger.Error("consumer error", zap.Error(err))
	}
}

// Next blocks until a message is available and returns it, marking
// it as consumed. It fails with ErrClosed once the subscriber is
// closed and with ctx.Err() when ctx is done first.
func (s *Subscriber) Next(ctx context.Context) (*message.Message, error) {
	select {
	case c := <-s.messages:
		c.session.MarkMessage(c.msg, "")
		return fromSarama(c.msg), nil
	case <-s.ctx.Done():
		return nil, ErrClosed
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Commit commits the offsets marked so far. When sync is false the
// commit happens in the background. Without a current group session
// there is nothing to commit.
func (s *Subscriber) Commit(ctx context.Context, sync bool) error {
	s.mu.Lock()
	closed, session := s.closed, s.session
	s.mu.Unlock()
	if closed {
		return ErrClosed
	}
	if session == nil {
		return nil
	}
	if !sync {
		go session.Commit()
		return nil
	}
	done := make(chan struct{})
	go func() {
		session.Commit()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return errors.Wrap(ctx.Err(), "commit interrupted")
	}
}

// DecodeKey decodes the key of m into target with the configured
// KeyDeserializer.
func (s *Subscriber) DecodeKey(m *message.Message, target interface{}) error {
	return s.config.KeyDeserializer.Deserialize(m.Key, m.Topic, codec.KeyRole, target)
}

// DecodeValue decodes the value of m into target with the configured
// ValueDeserializer. Tombstones fail with an error wrapping codec.ErrNoData.
func (s *Subscriber) DecodeValue(m *message.Message, target interface{}) error {
	return s.config.ValueDeserializer.Deserialize(m.Value, m.Topic, codec.ValueRole, target)
}

// Close leaves the group, committing the marked offsets. Calling
// Close more than once is a no-op.
func (s *Subscriber) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	s.mu.Unlock()

	s.logger.Info("closing subscriber", zap.String("group", s.config.GroupID))
	s.cancel()
	<-s.runDone
	return errors.Wrap(s.group.Close(), "failed to close consumer group")
}

func (s *Subscriber) setSession(sess sarama.ConsumerGroupSession) {
	s.mu.Lock()
	s.session = sess
	s.mu.Unlock()
}

func fromSarama(sm *sarama.ConsumerMessage) *message.Message {
	m := &message.Message{
		Topic:      sm.Topic,
		Key:        sm.Key,
		Value:      sm.Value,
		Partition:  sm.Partition,
		Offset:     sm.Offset,
		ProducedAt: sm.Timestamp,
	}
	for _, h := range sm.Headers {
		if h == nil {
			continue
		}
		if m.Headers == nil {
			m.Headers = make(map[string]string, len(sm.Headers))
		}
		m.Headers[string(h.Key)] = string(h.Value)
	}
	return m
}

// groupHandler implements sarama.ConsumerGroupHandler.
type groupHandler struct {
	s *Subscriber
}

func (h *groupHandler) Setup(sess sarama.ConsumerGroupSession) error {
	h.s.setSession(sess)
	h.s.logger.Debug("claims assigned",
		zap.String("member", sess.MemberID()),
		zap.Int32("generation", sess.GenerationID()),
	)
	return nil
}

func (h *groupHandler) Cleanup(sess sarama.ConsumerGroupSession) error {
	sess.Commit()
	h.s.setSession(nil)
	h.s.logger.Debug("claims revoked", zap.Int32("generation", sess.GenerationID()))
	return nil
}

func (h *groupHandler) ConsumeClaim(sess sarama.ConsumerGroupSession, claim sarama.ConsumerGroupClaim) error {
	for {
		select {
		case msg, ok := <-claim.Messages():
			if !ok {
				return nil
			}
			select {
			case h.s.messages <- claimed{msg: msg, session: sess}:
			case <-sess.Context().Done():
				return nil
			}
		case <-sess.Context().Done():
			return nil
		}
	}
}
