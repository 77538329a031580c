package kafkian

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/heetch/kafkian/codec"
	"github.com/heetch/kafkian/producer"
)

func BenchmarkSend(b *testing.B) {
	config := producer.NewConfig()
	config.ClientID = "benchmark"
	config.KeySerializer = codec.FromCodec(codec.String())
	config.ValueSerializer = codec.FromCodec(codec.String())
	prod, err := producer.New(config, "localhost:9092")
	if err != nil {
		b.Skipf("no Kafka available: %v", err)
	}
	defer prod.Close()

	errCount := make(map[string]int)
	prod.OnError(func(_ producer.Delivery, err error) error {
		errCount[err.Error()]++
		return nil
	})
	b.ResetTimer()
	for n := 0; n < b.N; n++ {
		err := prod.Send(context.Background(), "benchmark.test", "some key", "some body")
		for errors.Is(err, producer.ErrQueueFull) {
			prod.Poll(10 * time.Millisecond)
			err = prod.Send(context.Background(), "benchmark.test", "some key", "some body")
		}
		if err != nil {
			errCount[err.Error()]++
		}
		prod.Poll(time.Microsecond)
	}
	if err := prod.Flush(context.Background()); err != nil {
		b.Fatal(err)
	}
	b.StopTimer()

	output := "\n"
	for m, c := range errCount {
		output += fmt.Sprintf("|| %d\t\t: \"%s\"\n", c, m)
	}
	b.Log(output)
}
