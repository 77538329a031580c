// Command kafkian-produce writes the lines read from its standard input
// to a Kafka topic.
//
// Each line is a key and a value separated by a tab. A line without a
// tab is a tombstone for the key it holds.
//
//	printf 'k1\tv1\nk2\n' | kafkian-produce -brokers localhost:9092 -topic orders
package main

import (
	"bufio"
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/heetch/kafkian/codec"
	"github.com/heetch/kafkian/common"
	"github.com/heetch/kafkian/producer"
)

var (
	brokers     = flag.String("brokers", "localhost:9092", "comma-separated list of Kafka brokers")
	topic       = flag.String("topic", "", "topic to write to")
	configFile  = flag.String("config", "", "YAML file of producer options")
	syncSend    = flag.Bool("sync", false, "wait for each message to be acknowledged")
	metricsAddr = flag.String("metrics-addr", "", "address serving Prometheus metrics on /metrics")
	logLevel    = flag.String("log-level", "info", "log level")
)

func main() {
	flag.Parse()
	if err := main1(); err != nil {
		fmt.Fprintf(os.Stderr, "kafkian-produce: %v\n", err)
		os.Exit(1)
	}
}

func main1() error {
	if *topic == "" {
		return errors.New("-topic is required")
	}
	logger, err := common.NewLogger(*logLevel, "kafkian-produce")
	if err != nil {
		return err
	}
	defer logger.Sync()

	config := producer.NewConfig()
	config.Logger = logger
	config.KeySerializer = codec.FromCodec(codec.String())
	config.ValueSerializer = codec.FromCodec(codec.String())
	opts := producer.Options{"bootstrap.servers": *brokers}
	if *configFile != "" {
		f, err := os.Open(*configFile)
		if err != nil {
			return err
		}
		fileOpts, err := producer.LoadOptions(f)
		f.Close()
		if err != nil {
			return err
		}
		for k, v := range fileOpts {
			opts[k] = v
		}
	}
	if err := config.Apply(opts); err != nil {
		return err
	}

	if *metricsAddr != "" {
		reg := prometheus.NewRegistry()
		config.Registerer = reg
		go serveMetrics(logger, *metricsAddr, reg)
	}

	p, err := producer.New(config)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	n, err := produce(ctx, p, *topic, *syncSend, os.Stdin)
	logger.Info("sent messages", zap.Int("count", n), zap.String("topic", *topic))
	if cerr := p.Close(); err == nil {
		err = cerr
	}
	return err
}

func serveMetrics(logger *zap.Logger, addr string, g prometheus.Gatherer) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(g, promhttp.HandlerOpts{}))
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	if err := srv.ListenAndServe(); err != nil {
		logger.Error("metrics server stopped", zap.Error(err))
	}
}

// produce sends every line of in to topic until in is exhausted or ctx
// is done. It returns the number of messages sent.
func produce(ctx context.Context, p *producer.Producer, topic string, sync bool, in io.Reader) (int, error) {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		sc := bufio.NewScanner(in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- sc.Err()
	}()

	n := 0
	for {
		select {
		case <-ctx.Done():
			return n, nil
		case line, ok := <-lines:
			if !ok {
				return n, <-scanErr
			}
			key, value, ok := parseLine(line)
			if !ok {
				continue
			}
			if err := send(ctx, p, topic, key, value, sync); err != nil {
				return n, err
			}
			n++
			p.Poll(time.Millisecond)
		}
	}
}

// send retries on a full queue, polling to make room.
func send(ctx context.Context, p *producer.Producer, topic, key string, value interface{}, sync bool) error {
	for {
		var err error
		if sync {
			err = p.SendSync(ctx, topic, key, value)
		} else {
			err = p.Send(ctx, topic, key, value)
		}
		if !errors.Is(err, producer.ErrQueueFull) {
			return err
		}
		p.Poll(100 * time.Millisecond)
	}
}

// parseLine splits a key<TAB>value line. A line without a tab yields a
// nil value. Empty lines are skipped.
func parseLine(line string) (key string, value interface{}, ok bool) {
	if line == "" {
		return "", nil, false
	}
	key, v, found := strings.Cut(line, "\t")
	if !found {
		return key, nil, true
	}
	return key, v, true
}
