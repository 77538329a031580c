package producer

import (
	"io"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/Shopify/sarama"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Options is a flat set of producer options named after the librdkafka
// configuration properties, e.g. "acks" or "linger.ms". Values are
// strings, booleans or numbers; durations are in milliseconds.
type Options map[string]interface{}

// reservedOptions are callback bindings owned by the producer.
// Apply drops them: the producer always installs its own.
var reservedOptions = map[string]bool{
	"on_delivery":        true,
	"delivery.report.cb": true,
	"dr_cb":              true,
	"dr_msg_cb":          true,
	"error_cb":           true,
	"throttle_cb":        true,
	"stats_cb":           true,
}

var errNegative = errors.New("must not be negative")

type optionSetter func(c *Config, v interface{}) error

var optionSetters = map[string]optionSetter{
	"bootstrap.servers": func(c *Config, v interface{}) error {
		s, err := stringOption(v)
		if err != nil {
			return err
		}
		c.Brokers = nil
		for _, addr := range strings.Split(s, ",") {
			if addr = strings.TrimSpace(addr); addr != "" {
				c.Brokers = append(c.Brokers, addr)
			}
		}
		return nil
	},
	"client.id": func(c *Config, v interface{}) error {
		s, err := stringOption(v)
		c.ClientID = s
		return err
	},
	"acks": func(c *Config, v interface{}) error {
		s, err := stringOption(v)
		if err != nil {
			return err
		}
		switch s {
		case "all", "-1":
			c.Producer.RequiredAcks = sarama.WaitForAll
		case "0":
			c.Producer.RequiredAcks = sarama.NoResponse
		case "1":
			c.Producer.RequiredAcks = sarama.WaitForLocal
		default:
			return errors.Errorf("unknown acks value %q", s)
		}
		return nil
	},
	"max.in.flight":                         intSetter(func(c *Config, n int) { c.Net.MaxOpenRequests = n }),
	"max.in.flight.requests.per.connection": intSetter(func(c *Config, n int) { c.Net.MaxOpenRequests = n }),
	"queue.buffering.max.ms":                durationSetter(func(c *Config, d time.Duration) { c.Producer.Flush.Frequency = d }),
	"linger.ms":                             durationSetter(func(c *Config, d time.Duration) { c.Producer.Flush.Frequency = d }),
	"queue.buffering.max.messages":          intSetter(func(c *Config, n int) { c.ChannelBufferSize = n }),
	"batch.num.messages":                    intSetter(func(c *Config, n int) { c.Producer.Flush.Messages = n }),
	"message.max.bytes":                     intSetter(func(c *Config, n int) { c.Producer.MaxMessageBytes = n }),
	"retries":                               intSetter(func(c *Config, n int) { c.Producer.Retry.Max = n }),
	"message.send.max.retries":              intSetter(func(c *Config, n int) { c.Producer.Retry.Max = n }),
	"retry.backoff.ms":                      durationSetter(func(c *Config, d time.Duration) { c.Producer.Retry.Backoff = d }),
	"request.timeout.ms":                    durationSetter(func(c *Config, d time.Duration) { c.Producer.Timeout = d }),
	"statistics.interval.ms":                durationSetter(func(c *Config, d time.Duration) { c.StatsInterval = d }),
	"compression.type":                      compressionSetter,
	"compression.codec":                     compressionSetter,
	"enable.idempotence": func(c *Config, v interface{}) error {
		b, err := boolOption(v)
		c.Producer.Idempotent = b
		return err
	},
	// Accepted for compatibility with librdkafka configurations.
	// Sarama always negotiates API versions and keeps quiet about closed connections.
	"api.version.request":  ignoredBool,
	"log.connection.close": ignoredBool,
}

// Apply merges opts over c; on conflict opts win. Reserved callback
// options are dropped and reported in a warning when the producer is
// created. Apply fails with a *ConfigError on the first unknown option
// or invalid value.
func (c *Config) Apply(opts Options) error {
	names := make([]string, 0, len(opts))
	for name := range opts {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		if reservedOptions[name] {
			c.ignored = append(c.ignored, name)
			continue
		}
		set, ok := optionSetters[name]
		if !ok {
			return &ConfigError{Option: name, Err: errors.New("unknown option")}
		}
		if err := set(c, opts[name]); err != nil {
			return &ConfigError{Option: name, Err: err}
		}
	}
	return nil
}

// LoadOptions reads Options from a flat YAML mapping.
func LoadOptions(r io.Reader) (Options, error) {
	opts := make(Options)
	if err := yaml.NewDecoder(r).Decode(&opts); err != nil && err != io.EOF {
		return nil, errors.Wrap(err, "cannot decode producer options")
	}
	return opts, nil
}

func compressionSetter(c *Config, v interface{}) error {
	s, err := stringOption(v)
	if err != nil {
		return err
	}
	switch s {
	case "none":
		c.Producer.Compression = sarama.CompressionNone
	case "gzip":
		c.Producer.Compression = sarama.CompressionGZIP
	case "snappy":
		c.Producer.Compression = sarama.CompressionSnappy
	case "lz4":
		c.Producer.Compression = sarama.CompressionLZ4
	case "zstd":
		c.Producer.Compression = sarama.CompressionZSTD
	default:
		return errors.Errorf("unknown compression %q", s)
	}
	return nil
}

func ignoredBool(_ *Config, v interface{}) error {
	_, err := boolOption(v)
	return err
}

func intSetter(set func(*Config, int)) optionSetter {
	return func(c *Config, v interface{}) error {
		n, err := intOption(v)
		if err != nil {
			return err
		}
		if n < 0 {
			return errNegative
		}
		set(c, n)
		return nil
	}
}

func durationSetter(set func(*Config, time.Duration)) optionSetter {
	return intSetter(func(c *Config, ms int) {
		set(c, time.Duration(ms)*time.Millisecond)
	})
}

func stringOption(v interface{}) (string, error) {
	switch t := v.(type) {
	case string:
		return t, nil
	case int:
		return strconv.Itoa(t), nil
	case int64:
		return strconv.FormatInt(t, 10), nil
	}
	return "", errors.Errorf("expected a string, got %T", v)
}

func intOption(v interface{}) (int, error) {
	switch t := v.(type) {
	case int:
		return t, nil
	case int64:
		return int(t), nil
	case float64:
		if t != float64(int(t)) {
			return 0, errors.Errorf("expected an integer, got %v", t)
		}
		return int(t), nil
	case string:
		n, err := strconv.Atoi(t)
		if err != nil {
			return 0, errors.Errorf("expected an integer, got %q", t)
		}
		return n, nil
	}
	return 0, errors.Errorf("expected an integer, got %T", v)
}

func boolOption(v interface{}) (bool, error) {
	switch t := v.(type) {
	case bool:
		return t, nil
	case string:
		b, err := strconv.ParseBool(t)
		if err != nil {
			return false, errors.Errorf("expected a boolean, got %q", t)
		}
		return b, nil
	}
	return false, errors.Errorf("expected a boolean, got %T", v)
}
