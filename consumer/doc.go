// Package consumer reads messages from Kafka as part of a consumer group.
//
// A Subscriber is created for a set of topics and joins its group in the
// background. Messages are pulled one at a time with Next:
//
//	s, err := consumer.New(consumer.NewConfig("billing", "localhost:9092"), "orders")
//	if err != nil {
//		return err
//	}
//	defer s.Close()
//	for {
//		m, err := s.Next(ctx)
//		if err != nil {
//			return err
//		}
//		if m.IsTombstone() {
//			// The key was deleted.
//		}
//	}
//
// Every message returned by Next is marked as consumed. Marked offsets are
// committed by Commit and whenever the subscriber leaves a generation of
// the group, on rebalance or on Close.
//
// # Tweaking the consumer
//
// Config embeds the Sarama configuration. NewConfig starts new groups from
// the oldest offset and distributes partitions round robin. When the group
// fails, the subscriber joins it again after an exponential backoff capped by
// MaxRetryInterval. Keys and values are left as raw bytes; DecodeKey and
// DecodeValue decode them with the configured codec.Deserializer.
package consumer
