package producer

import (
	"context"
	"sync"
	"time"

	"github.com/Shopify/sarama"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/heetch/kafkian/codec"
	"github.com/heetch/kafkian/message"
)

// DefaultPollTimeout is used by Poll when given a non-positive timeout.
const DefaultPollTimeout = time.Second

// Producer sends messages to Kafka.
//
// Send only queues messages; their outcome is reported asynchronously to
// the registered observers, from Poll, Flush or Close. Callers that send
// without SendSync must call Poll regularly, otherwise delivery reports
// pile up and Send eventually fails with ErrQueueFull.
//
// The application must call Close before exiting so that queued messages
// are not lost.
type Producer struct {
	transport Transport
	config    Config
	dispatch  *dispatcher
	logger    *zap.Logger

	mu     sync.RWMutex
	closed bool
}

// New creates a Producer writing to the given brokers through a Sarama
// AsyncProducer. When addrs is empty, config.Brokers is used.
func New(config Config, addrs ...string) (*Producer, error) {
	if len(addrs) == 0 {
		addrs = config.Brokers
	}
	if err := config.prepare(); err != nil {
		return nil, err
	}
	ap, err := sarama.NewAsyncProducer(addrs, &config.Config)
	if err != nil {
		return nil, errors.Wrap(err, "failed to create a producer")
	}
	p, err := NewFrom(NewTransport(ap, config), config)
	if err != nil {
		ap.AsyncClose()
		return nil, err
	}
	return p, nil
}

// NewFrom creates a Producer using the given Transport. Useful for
// tests or for sharing a single Sarama producer.
func NewFrom(t Transport, config Config) (*Producer, error) {
	if err := config.prepare(); err != nil {
		return nil, err
	}
	metrics, err := newCollector(config.Registerer, config.ClientID)
	if err != nil {
		return nil, &ConfigError{Err: err}
	}
	d := newDispatcher(config.Logger, metrics)
	for _, o := range config.SuccessObservers {
		d.addSuccessObserver(o)
	}
	for _, o := range config.ErrorObservers {
		d.addErrorObserver(o)
	}
	t.Configure(d.hooks())

	for _, name := range config.ignored {
		config.Logger.Warn("ignoring reserved producer option", zap.String("option", name))
	}
	config.Logger.Info("initializing producer",
		zap.String("client_id", config.ClientID),
		zap.Strings("brokers", config.Brokers),
		zap.Int16("acks", int16(config.Producer.RequiredAcks)),
		zap.Int("max_in_flight", config.Net.MaxOpenRequests),
		zap.Duration("linger", config.Producer.Flush.Frequency),
		zap.Duration("stats_interval", config.StatsInterval),
	)

	return &Producer{
		transport: t,
		config:    config,
		dispatch:  d,
		logger:    config.Logger,
	}, nil
}

// OnSuccess registers an observer notified of every delivered message.
// Observers run in registration order.
func (p *Producer) OnSuccess(o SuccessObserver) {
	p.dispatch.addSuccessObserver(o)
}

// OnError registers an observer notified of every message that could
// not be delivered. Observers run in registration order.
func (p *Producer) OnError(o ErrorObserver) {
	p.dispatch.addErrorObserver(o)
}

// Send serializes key and value and queues the message for topic.
// A nil value, untyped or a nil []byte, is a tombstone: it is not
// serialized and is sent as a null record. Any other value, including an
// empty string or an empty []byte, goes through the value serializer and
// is never sent as null. Send returns once the message is queued, before the broker
// acknowledges it; the outcome is reported to the observers.
func (p *Producer) Send(ctx context.Context, topic string, key, value interface{}, opts ...message.Option) error {
	if topic == "" {
		return errors.New("messages require a non-empty topic")
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := message.Message{Topic: topic}
	var err error
	msg.Key, err = p.config.KeySerializer.Serialize(key, topic, codec.KeyRole)
	if err != nil {
		return &SerializationError{Topic: topic, Role: codec.KeyRole, Err: err}
	}
	if b, ok := value.([]byte); ok && b == nil {
		value = nil
	}
	if value != nil {
		msg.Value, err = p.config.ValueSerializer.Serialize(value, topic, codec.ValueRole)
		if err != nil {
			return &SerializationError{Topic: topic, Role: codec.ValueRole, Err: err}
		}
		if msg.Value == nil {
			// Only nil values are tombstones.
			msg.Value = []byte{}
		}
	}
	for _, o := range opts {
		o(&msg)
	}
	if msg.ProducedAt.IsZero() {
		msg.ProducedAt = time.Now()
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrClosed
	}
	if err := p.transport.Enqueue(&msg, p.dispatch.deliver); err != nil {
		return errors.Wrapf(err, "cannot send message to topic %q", topic)
	}
	return nil
}

// SendSync sends a message like Send, then flushes the producer.
// When it returns nil, every message sent so far has an outcome. ctx
// bounds the flush; without a deadline SendSync may wait forever.
func (p *Producer) SendSync(ctx context.Context, topic string, key, value interface{}, opts ...message.Option) error {
	if err := p.Send(ctx, topic, key, value, opts...); err != nil {
		return err
	}
	return p.Flush(ctx)
}

// Flush waits until every queued message has been acknowledged or has
// failed, dispatching their outcome, or until ctx is done. Flushing an
// empty producer returns immediately.
func (p *Producer) Flush(ctx context.Context) error {
	p.logger.Debug("flushing producer", zap.Int("pending", p.transport.Len()))
	return p.transport.Flush(ctx)
}

// Poll dispatches the outcome of completed messages, waiting at most
// timeout for the first one, and returns how many were dispatched.
// A non-positive timeout means DefaultPollTimeout.
func (p *Producer) Poll(timeout time.Duration) int {
	p.mu.RLock()
	closed := p.closed
	p.mu.RUnlock()
	if closed {
		return 0
	}
	if timeout <= 0 {
		timeout = DefaultPollTimeout
	}
	return p.transport.Poll(timeout)
}

// Len returns the number of messages awaiting an outcome.
func (p *Producer) Len() int {
	return p.transport.Len()
}

// Close stops accepting messages, waits without time limit for the
// outcome of every queued message and releases the transport. If the
// brokers cannot be reached, Close blocks until Sarama gives up on the
// queued messages. Calling Close more than once is a no-op.
func (p *Producer) Close() error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	p.mu.Unlock()

	p.logger.Info("closing producer", zap.Int("pending", p.transport.Len()))
	if err := p.transport.Flush(context.Background()); err != nil {
		return errors.Wrap(err, "failed to flush producer")
	}
	return errors.Wrap(p.transport.Close(), "failed to close producer")
}
