package codec

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/retry.v1"
)

// RegistryConfig configures a RegistryClient.
type RegistryConfig struct {
	// URL of the schema registry, e.g. http://localhost:8081.
	URL string

	// Username and Password enable basic authentication when Username is set.
	Username string
	Password string

	// Timeout of a single HTTP request. Defaults to 10 seconds.
	Timeout time.Duration

	// Attempts is the number of times a request is tried when the
	// registry is unreachable or answers with a server error.
	// Defaults to 3.
	Attempts int
}

// RegistryClient registers schemas against a Confluent Schema Registry
// and caches the returned ids.
type RegistryClient struct {
	url      string
	username string
	password string
	http     *http.Client
	strategy retry.Strategy

	mu  sync.RWMutex
	ids map[string]int
}

// NewRegistryClient creates a RegistryClient.
func NewRegistryClient(cfg RegistryConfig) (*RegistryClient, error) {
	if cfg.URL == "" {
		return nil, errors.New("schema registry URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 10 * time.Second
	}
	if cfg.Attempts <= 0 {
		cfg.Attempts = 3
	}
	return &RegistryClient{
		url:      strings.TrimSuffix(cfg.URL, "/"),
		username: cfg.Username,
		password: cfg.Password,
		http:     &http.Client{Timeout: cfg.Timeout},
		strategy: retry.LimitCount(cfg.Attempts, retry.Exponential{
			Initial: 100 * time.Millisecond,
			Factor:  2,
			Jitter:  true,
		}),
		ids: make(map[string]int),
	}, nil
}

// Register implements SchemaRegistry. Registering a schema that already
// exists under subject returns its current id.
func (c *RegistryClient) Register(subject, schema string) (int, error) {
	key := subject + "\x00" + schema
	c.mu.RLock()
	id, ok := c.ids[key]
	c.mu.RUnlock()
	if ok {
		return id, nil
	}

	var err error
	for a := retry.Start(c.strategy, nil); a.Next(); {
		var retryable bool
		id, retryable, err = c.register(subject, schema)
		if err == nil {
			c.mu.Lock()
			c.ids[key] = id
			c.mu.Unlock()
			return id, nil
		}
		if !retryable {
			break
		}
	}
	return 0, err
}

func (c *RegistryClient) register(subject, schema string) (id int, retryable bool, err error) {
	body, err := json.Marshal(struct {
		Schema string `json:"schema"`
	}{schema})
	if err != nil {
		return 0, false, err
	}
	req, err := http.NewRequest(http.MethodPost, c.url+"/subjects/"+url.PathEscape(subject)+"/versions", bytes.NewReader(body))
	if err != nil {
		return 0, false, err
	}
	req.Header.Set("Content-Type", "application/vnd.schemaregistry.v1+json")
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return 0, true, errors.Wrap(err, "schema registry request failed")
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, true, errors.Wrap(err, "cannot read schema registry response")
	}
	if resp.StatusCode != http.StatusOK {
		return 0, resp.StatusCode >= 500, errors.Errorf("schema registry returned %s: %s", resp.Status, bytes.TrimSpace(data))
	}
	var result struct {
		ID int `json:"id"`
	}
	if err := json.Unmarshal(data, &result); err != nil {
		return 0, false, errors.Wrap(err, "cannot decode schema registry response")
	}
	return result.ID, false, nil
}
