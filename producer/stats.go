package producer

import (
	"strings"
	"time"

	metrics "github.com/rcrowley/go-metrics"
)

// Stats is a snapshot of the metrics maintained by the Kafka client,
// e.g. "record-send-rate" or "request-latency-in-ms".
type Stats struct {
	Time    time.Time
	Metrics map[string]Metric
}

// Metric is the snapshot of one client metric. Only the fields relevant
// to the kind of metric are set: Count and Rate1 for meters, Count, Mean
// and Max for histograms, Count for counters and Value for gauges.
type Metric struct {
	Count int64
	Rate1 float64
	Mean  float64
	Max   float64
	Value float64
}

// ThrottleEvent reports that a broker throttled the producer.
type ThrottleEvent struct {
	// Metric is the client metric the throttling was read from,
	// which identifies the broker when it is broker specific.
	Metric string
	// Throttle is the longest throttle time observed.
	Throttle time.Duration
}

const throttleMetricPrefix = "throttle-time-in-ms"

func snapshot(r metrics.Registry, now time.Time) Stats {
	s := Stats{
		Time:    now,
		Metrics: make(map[string]Metric),
	}
	r.Each(func(name string, i interface{}) {
		switch m := i.(type) {
		case metrics.Meter:
			ms := m.Snapshot()
			s.Metrics[name] = Metric{Count: ms.Count(), Rate1: ms.Rate1()}
		case metrics.Histogram:
			hs := m.Snapshot()
			s.Metrics[name] = Metric{Count: hs.Count(), Mean: hs.Mean(), Max: float64(hs.Max())}
		case metrics.Counter:
			s.Metrics[name] = Metric{Count: m.Count()}
		case metrics.Gauge:
			s.Metrics[name] = Metric{Value: float64(m.Value())}
		case metrics.GaugeFloat64:
			s.Metrics[name] = Metric{Value: m.Value()}
		}
	})
	return s
}

// throttled returns the throttle events found in s, given the histogram
// counts seen in the previous snapshot. seen is updated in place.
func throttled(s Stats, seen map[string]int64) []ThrottleEvent {
	var events []ThrottleEvent
	for name, m := range s.Metrics {
		if !strings.HasPrefix(name, throttleMetricPrefix) {
			continue
		}
		if m.Count > seen[name] && m.Max > 0 {
			events = append(events, ThrottleEvent{
				Metric:   name,
				Throttle: time.Duration(m.Max) * time.Millisecond,
			})
		}
		seen[name] = m.Count
	}
	return events
}
