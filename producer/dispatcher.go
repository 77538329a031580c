package producer

import (
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// dispatcher turns transport events into logs, metrics and observer calls.
// It runs on whichever goroutine drives the transport (Poll, Flush or
// Close), concurrently with Send.
type dispatcher struct {
	logger  *zap.Logger
	metrics *collector

	// Observer slices are copied on write so deliver can iterate
	// without holding the lock.
	mu        sync.RWMutex
	onSuccess []SuccessObserver
	onError   []ErrorObserver
}

func newDispatcher(logger *zap.Logger, metrics *collector) *dispatcher {
	return &dispatcher{
		logger:  logger,
		metrics: metrics,
	}
}

func (d *dispatcher) addSuccessObserver(o SuccessObserver) {
	d.mu.Lock()
	d.onSuccess = append(d.onSuccess[:len(d.onSuccess):len(d.onSuccess)], o)
	d.mu.Unlock()
}

func (d *dispatcher) addErrorObserver(o ErrorObserver) {
	d.mu.Lock()
	d.onError = append(d.onError[:len(d.onError):len(d.onError)], o)
	d.mu.Unlock()
}

// deliver is called exactly once per message sent.
func (d *dispatcher) deliver(dl Delivery) {
	d.metrics.delivered(dl)

	if dl.Failed() {
		d.logger.Warn("producer send failed",
			zap.String("topic", dl.Topic),
			zap.ByteString("key", dl.Key),
			zap.Int32("partition", dl.Partition),
			zap.Error(dl.Err),
		)
		d.mu.RLock()
		observers := d.onError
		d.mu.RUnlock()
		for i, o := range observers {
			o := o
			d.notify("error", i, func() error { return o(dl, dl.Err) })
		}
		return
	}

	d.logger.Debug("producer send succeeded",
		zap.String("topic", dl.Topic),
		zap.ByteString("key", dl.Key),
		zap.Int32("partition", dl.Partition),
		zap.Int64("offset", dl.Offset),
	)
	d.mu.RLock()
	observers := d.onSuccess
	d.mu.RUnlock()
	for i, o := range observers {
		o := o
		d.notify("success", i, func() error { return o(dl) })
	}
}

// notify runs one observer. Errors and panics are logged and counted,
// never propagated to the transport.
func (d *dispatcher) notify(kind string, index int, call func() error) {
	defer func() {
		if r := recover(); r != nil {
			d.metrics.observerFailures.Inc()
			d.logger.Error("delivery observer panicked",
				zap.String("observer", kind),
				zap.Int("index", index),
				zap.String("panic", fmt.Sprint(r)),
			)
		}
	}()
	if err := call(); err != nil {
		d.metrics.observerFailures.Inc()
		d.logger.Error("delivery observer failed",
			zap.String("observer", kind),
			zap.Int("index", index),
			zap.Error(err),
		)
	}
}

// brokerError reports transport errors not attached to a message.
func (d *dispatcher) brokerError(err error) {
	d.logger.Error("producer error", zap.Error(err))
}

func (d *dispatcher) throttle(ev ThrottleEvent) {
	d.metrics.throttle.Observe(ev.Throttle.Seconds())
	d.logger.Warn("producer throttled",
		zap.String("metric", ev.Metric),
		zap.Duration("throttle", ev.Throttle),
	)
}

func (d *dispatcher) stats(s Stats) {
	d.metrics.publish(s)
	d.logger.Debug("producer statistics", zap.Int("metrics", len(s.Metrics)))
}

// hooks returns the transport bindings owned by the producer.
func (d *dispatcher) hooks() Hooks {
	return Hooks{
		Error:    d.brokerError,
		Throttle: d.throttle,
		Stats:    d.stats,
	}
}
