package producer

import (
	"context"
	"sync"
	"time"

	"github.com/Shopify/sarama"
	"github.com/pkg/errors"
	metrics "github.com/rcrowley/go-metrics"

	"github.com/heetch/kafkian/message"
)

// DeliveryFunc receives the outcome of an enqueued message.
type DeliveryFunc func(Delivery)

// Hooks are the transport events the producer binds itself to.
// They are installed by the producer and cannot be set by callers.
type Hooks struct {
	// Error receives errors not attached to a message.
	Error func(error)
	// Throttle receives broker throttling events.
	Throttle func(ThrottleEvent)
	// Stats receives periodic client statistics.
	Stats func(Stats)
}

// Transport is the Kafka client the Producer writes to.
//
// Enqueue must not block for long: it fails with ErrQueueFull when the
// local queue is saturated. The DeliveryFunc given to Enqueue is called
// exactly once, from Poll, Flush or Close, never from Enqueue itself.
type Transport interface {
	// Configure installs the producer hooks. It is called once,
	// before any other method.
	Configure(Hooks)
	Enqueue(msg *message.Message, done DeliveryFunc) error
	// Flush waits until every enqueued message has been delivered
	// or ctx is done.
	Flush(ctx context.Context) error
	// Poll processes the outcomes available within timeout and
	// returns how many were processed.
	Poll(timeout time.Duration) int
	// Len returns the number of messages awaiting an outcome.
	Len() int
	// Close delivers the outcome of the remaining messages and
	// releases the client.
	Close() error
}

// SaramaTransport is a Transport writing to a sarama.AsyncProducer.
//
// Outcomes are only read from the producer Successes and Errors
// channels by Poll, Flush and Close: when the caller stops polling, the
// Sarama buffers fill up and Enqueue starts failing with ErrQueueFull.
type SaramaTransport struct {
	producer       sarama.AsyncProducer
	registry       metrics.Registry
	statsInterval  time.Duration
	enqueueTimeout time.Duration
	hooks          Hooks

	// mu is held for reading while sending to the producer input,
	// so Close never closes it under a pending send.
	mu     sync.RWMutex
	closed bool

	pendingMu sync.Mutex
	pending   int
	// idle is closed whenever pending is zero.
	idle chan struct{}

	// drain is a one-slot token held by the goroutine reading an
	// outcome until that outcome is dispatched, so outcomes reach the
	// observers in the order Sarama reported them. successes and errs
	// are only touched while holding it and set to nil once closed.
	drain     chan struct{}
	successes <-chan *sarama.ProducerMessage
	errs      <-chan *sarama.ProducerError

	statsMu      sync.Mutex
	lastStats    time.Time
	throttleSeen map[string]int64
}

// envelope travels in sarama.ProducerMessage.Metadata so the outcome
// can be matched with its message.
type envelope struct {
	msg  message.Message
	done DeliveryFunc
}

// NewTransport wraps p. The metric registry, the statistics interval and
// the enqueue timeout are taken from config. p must report successes and
// errors.
func NewTransport(p sarama.AsyncProducer, config Config) *SaramaTransport {
	idle := make(chan struct{})
	close(idle)
	t := &SaramaTransport{
		producer:       p,
		registry:       config.MetricRegistry,
		statsInterval:  config.StatsInterval,
		enqueueTimeout: config.EnqueueTimeout,
		idle:           idle,
		drain:          make(chan struct{}, 1),
		lastStats:      time.Now(),
		throttleSeen:   make(map[string]int64),
	}
	if p != nil {
		t.successes, t.errs = p.Successes(), p.Errors()
	}
	return t
}

// Configure implements Transport.Configure.
func (t *SaramaTransport) Configure(h Hooks) {
	t.hooks = h
}

// Enqueue implements Transport.Enqueue.
func (t *SaramaTransport) Enqueue(msg *message.Message, done DeliveryFunc) error {
	pm := &sarama.ProducerMessage{
		Topic:     msg.Topic,
		Timestamp: msg.ProducedAt,
		Metadata:  &envelope{msg: *msg, done: done},
	}
	// A nil Value is what makes Sarama write a null record.
	if msg.Key != nil {
		pm.Key = sarama.ByteEncoder(msg.Key)
	}
	if msg.Value != nil {
		pm.Value = sarama.ByteEncoder(msg.Value)
	}
	for k, v := range msg.Headers {
		pm.Headers = append(pm.Headers, sarama.RecordHeader{Key: []byte(k), Value: []byte(v)})
	}

	t.mu.RLock()
	defer t.mu.RUnlock()
	if t.closed {
		return ErrClosed
	}
	// Counted before sending: the outcome may be read as soon as
	// the producer has the message.
	t.addPending()
	if !t.send(pm) {
		t.donePending()
		return ErrQueueFull
	}
	return nil
}

// send hands pm to the producer, waiting at most enqueueTimeout when
// its input is busy.
func (t *SaramaTransport) send(pm *sarama.ProducerMessage) bool {
	input := t.producer.Input()
	select {
	case input <- pm:
		return true
	default:
	}
	if t.enqueueTimeout <= 0 {
		return false
	}
	timer := time.NewTimer(t.enqueueTimeout)
	defer timer.Stop()
	select {
	case input <- pm:
		return true
	case <-timer.C:
		return false
	}
}

func (t *SaramaTransport) addPending() {
	t.pendingMu.Lock()
	defer t.pendingMu.Unlock()
	if t.pending == 0 {
		t.idle = make(chan struct{})
	}
	t.pending++
}

func (t *SaramaTransport) donePending() {
	t.pendingMu.Lock()
	defer t.pendingMu.Unlock()
	t.pending--
	if t.pending == 0 {
		close(t.idle)
	}
}

// Len implements Transport.Len.
func (t *SaramaTransport) Len() int {
	t.pendingMu.Lock()
	defer t.pendingMu.Unlock()
	return t.pending
}

// Poll implements Transport.Poll. It waits up to timeout for a first
// outcome, then processes every outcome already available.
// Statistics are emitted from here when they are due.
func (t *SaramaTransport) Poll(timeout time.Duration) int {
	t.emitStats(time.Now())

	ctx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()

	n, more := t.drainOne(true, nil, ctx.Done())
	for more {
		var k int
		k, more = t.drainOne(false, nil, nil)
		n += k
	}
	return n
}

// Flush implements Transport.Flush. Concurrent calls share the work:
// each one returns as soon as no message is pending, even while another
// goroutine is dispatching.
func (t *SaramaTransport) Flush(ctx context.Context) error {
	for {
		t.pendingMu.Lock()
		idle := t.idle
		t.pendingMu.Unlock()

		select {
		case <-idle:
			return nil
		default:
		}
		if err := ctx.Err(); err != nil {
			return errors.Wrapf(err, "flush interrupted with %d messages in flight", t.Len())
		}
		t.emitStats(time.Now())
		t.drainOne(true, idle, ctx.Done())
	}
}

// Close implements Transport.Close. Sarama delivers the outcome of the
// messages still buffered before closing its channels; they are all
// dispatched before Close returns.
func (t *SaramaTransport) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	t.mu.Unlock()

	t.producer.AsyncClose()
	for {
		if _, more := t.drainOne(true, nil, nil); !more {
			return nil
		}
	}
}

// drainOne dispatches at most one outcome while holding the drain token.
// When block is false it gives up as soon as the token or an outcome is
// not immediately available; otherwise it waits until done or stop is
// closed. It reports how many messages were dispatched and whether the
// caller may keep draining.
func (t *SaramaTransport) drainOne(block bool, done, stop <-chan struct{}) (int, bool) {
	if block {
		select {
		case t.drain <- struct{}{}:
		case <-done:
			return 0, false
		case <-stop:
			return 0, false
		}
	} else {
		select {
		case t.drain <- struct{}{}:
		default:
			return 0, false
		}
	}
	defer func() { <-t.drain }()

	if t.successes == nil && t.errs == nil {
		// Both channels are closed: nothing will ever come.
		if block && (done != nil || stop != nil) {
			select {
			case <-done:
			case <-stop:
			}
		}
		return 0, false
	}

	var (
		pm    *sarama.ProducerMessage
		perr  *sarama.ProducerError
		ok    bool
		isErr bool
		ready = true
	)
	if block {
		select {
		case pm, ok = <-t.successes:
		case perr, ok = <-t.errs:
			isErr = true
		case <-done:
			return 0, false
		case <-stop:
			return 0, false
		}
	} else {
		select {
		case pm, ok = <-t.successes:
		case perr, ok = <-t.errs:
			isErr = true
		default:
			ready = false
		}
	}
	switch {
	case !ready:
		return 0, false
	case !ok && isErr:
		t.errs = nil
		return 0, true
	case !ok:
		t.successes = nil
		return 0, true
	case isErr:
		return t.deliverError(perr), true
	}
	t.deliver(pm, nil)
	return 1, true
}

func (t *SaramaTransport) deliverError(perr *sarama.ProducerError) int {
	if perr == nil {
		return 0
	}
	if perr.Msg == nil {
		if t.hooks.Error != nil {
			t.hooks.Error(perr.Err)
		}
		return 0
	}
	t.deliver(perr.Msg, perr.Err)
	return 1
}

func (t *SaramaTransport) deliver(pm *sarama.ProducerMessage, err error) {
	env, ok := pm.Metadata.(*envelope)
	if !ok {
		// Not one of ours: nothing to notify and nothing pending.
		if err != nil && t.hooks.Error != nil {
			t.hooks.Error(errors.Wrapf(err, "unexpected message on topic %q", pm.Topic))
		}
		return
	}
	d := Delivery{Message: env.msg, Err: err}
	d.Partition = pm.Partition
	d.Offset = pm.Offset
	if !pm.Timestamp.IsZero() {
		d.ProducedAt = pm.Timestamp
	}
	env.done(d)
	t.donePending()
}

func (t *SaramaTransport) emitStats(now time.Time) {
	if t.statsInterval <= 0 || t.registry == nil || t.hooks.Stats == nil {
		return
	}
	t.statsMu.Lock()
	defer t.statsMu.Unlock()
	if now.Sub(t.lastStats) < t.statsInterval {
		return
	}
	t.lastStats = now

	s := snapshot(t.registry, now)
	if t.hooks.Throttle != nil {
		for _, ev := range throttled(s, t.throttleSeen) {
			t.hooks.Throttle(ev)
		}
	}
	t.hooks.Stats(s)
}
