package producer

import (
	"github.com/pkg/errors"
	"github.com/prometheus/client_golang/prometheus"
)

// collector holds the producer metrics. Metrics are always updated;
// they are only exposed when a prometheus.Registerer is configured.
type collector struct {
	deliveries       *prometheus.CounterVec
	observerFailures prometheus.Counter
	transport        *prometheus.GaugeVec
	throttle         prometheus.Histogram
}

func newCollector(reg prometheus.Registerer, clientID string) (*collector, error) {
	labels := prometheus.Labels{"client_id": clientID}
	c := &collector{
		deliveries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace:   "kafkian",
			Subsystem:   "producer",
			Name:        "deliveries_total",
			Help:        "Delivery reports received, by topic and outcome.",
			ConstLabels: labels,
		}, []string{"topic", "outcome"}),
		observerFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace:   "kafkian",
			Subsystem:   "producer",
			Name:        "observer_failures_total",
			Help:        "Delivery observers that returned an error or panicked.",
			ConstLabels: labels,
		}),
		transport: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace:   "kafkian",
			Subsystem:   "producer",
			Name:        "transport_metric",
			Help:        "Last statistics snapshot of the Kafka client.",
			ConstLabels: labels,
		}, []string{"metric", "field"}),
		throttle: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace:   "kafkian",
			Subsystem:   "producer",
			Name:        "throttle_seconds",
			Help:        "Throttling applied by brokers.",
			ConstLabels: labels,
			Buckets:     prometheus.ExponentialBuckets(0.01, 4, 8),
		}),
	}
	if reg == nil {
		return c, nil
	}
	for _, m := range []prometheus.Collector{c.deliveries, c.observerFailures, c.transport, c.throttle} {
		if err := reg.Register(m); err != nil {
			return nil, errors.Wrap(err, "cannot register producer metrics")
		}
	}
	return c, nil
}

func (c *collector) delivered(d Delivery) {
	outcome := "success"
	if d.Failed() {
		outcome = "failure"
	}
	c.deliveries.WithLabelValues(d.Topic, outcome).Inc()
}

func (c *collector) publish(s Stats) {
	for name, m := range s.Metrics {
		c.transport.WithLabelValues(name, "count").Set(float64(m.Count))
		c.transport.WithLabelValues(name, "rate1").Set(m.Rate1)
		c.transport.WithLabelValues(name, "mean").Set(m.Mean)
		c.transport.WithLabelValues(name, "max").Set(m.Max)
		c.transport.WithLabelValues(name, "value").Set(m.Value)
	}
}
