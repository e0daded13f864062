// Package search keeps key-value pairs as documents in an OpenSearch or
// Elasticsearch index, one document per key.
package search

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	elasticsearch "github.com/elastic/go-elasticsearch/v8"
	opensearch "github.com/opensearch-project/opensearch-go/v4"

	"github.com/nimburion/injurystore/pkg/observability/logger"
	"github.com/nimburion/injurystore/pkg/store"
)

// Engine selects the client library.
type Engine string

const (
	EngineOpenSearch    Engine = "opensearch"
	EngineElasticsearch Engine = "elasticsearch"

	defaultIndex = "injurystore-kv"
)

// performer is the transport surface shared by both official clients.
type performer interface {
	Perform(req *http.Request) (*http.Response, error)
}

// Config holds search adapter configuration.
type Config struct {
	Engine           Engine
	URLs             []string
	Username         string
	Password         string
	APIKey           string
	Index            string
	MaxConns         int
	OperationTimeout time.Duration
}

type source struct {
	Value     string    `json:"value"`
	UpdatedAt time.Time `json:"updated_at"`
}

// Adapter stores each key as the _id of a document whose "value" field holds
// the raw string.
type Adapter struct {
	client    performer
	transport *http.Transport
	index     string
	engine    Engine
	logger    logger.Logger
	timeout   time.Duration
	mu        sync.RWMutex
	closed    bool
}

// NewAdapter builds the client for cfg.Engine and pings the cluster.
func NewAdapter(cfg Config, log logger.Logger) (*Adapter, error) {
	addresses, err := normalizeAddresses(cfg.URLs)
	if err != nil {
		return nil, err
	}
	if cfg.MaxConns <= 0 {
		cfg.MaxConns = 10
	}
	transport := &http.Transport{
		MaxIdleConns:        cfg.MaxConns,
		MaxIdleConnsPerHost: cfg.MaxConns,
		MaxConnsPerHost:     cfg.MaxConns,
		IdleConnTimeout:     90 * time.Second,
	}

	var client performer
	switch cfg.Engine {
	case EngineOpenSearch, "":
		cfg.Engine = EngineOpenSearch
		osCfg := opensearch.Config{
			Addresses: addresses,
			Username:  cfg.Username,
			Password:  cfg.Password,
			Transport: transport,
		}
		if key := strings.TrimSpace(cfg.APIKey); key != "" {
			osCfg.Header = http.Header{"Authorization": []string{"ApiKey " + key}}
		}
		c, err := opensearch.NewClient(osCfg)
		if err != nil {
			return nil, fmt.Errorf("failed to create opensearch client: %w", err)
		}
		client = c
	case EngineElasticsearch:
		c, err := elasticsearch.NewClient(elasticsearch.Config{
			Addresses: addresses,
			Username:  cfg.Username,
			Password:  cfg.Password,
			APIKey:    strings.TrimSpace(cfg.APIKey),
			Transport: transport,
		})
		if err != nil {
			return nil, fmt.Errorf("failed to create elasticsearch client: %w", err)
		}
		client = c
	default:
		return nil, fmt.Errorf("unsupported search engine %q", cfg.Engine)
	}

	a := newAdapter(client, cfg, log)
	a.transport = transport

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := a.Ping(ctx); err != nil {
		transport.CloseIdleConnections()
		return nil, fmt.Errorf("failed to ping %s: %w", cfg.Engine, err)
	}
	log.Info("Search connection established", "engine", string(cfg.Engine), "nodes", len(addresses), "index", a.index)
	return a, nil
}

func newAdapter(client performer, cfg Config, log logger.Logger) *Adapter {
	index := strings.TrimSpace(cfg.Index)
	if index == "" {
		index = defaultIndex
	}
	timeout := cfg.OperationTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Adapter{client: client, index: index, engine: cfg.Engine, logger: log, timeout: timeout}
}

// Get returns the value stored under key.
func (a *Adapter) Get(ctx context.Context, key string) (string, error) {
	if err := a.ensureOpen(); err != nil {
		return "", err
	}
	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()

	resp, err := a.perform(opCtx, http.MethodGet, a.docPath(key), nil)
	if err != nil {
		return "", fmt.Errorf("%s get %s: %w", a.engine, key, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", store.ErrNotFound
	}
	if err := statusError(resp); err != nil {
		return "", fmt.Errorf("%s get %s: %w", a.engine, key, err)
	}
	var doc struct {
		Found  bool   `json:"found"`
		Source source `json:"_source"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return "", fmt.Errorf("%s decode %s: %w", a.engine, key, err)
	}
	if !doc.Found {
		return "", store.ErrNotFound
	}
	return doc.Source.Value, nil
}

// Set indexes the document for key, replacing any previous version.
func (a *Adapter) Set(ctx context.Context, key, value string) error {
	if err := a.ensureOpen(); err != nil {
		return err
	}
	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()

	payload, err := json.Marshal(source{Value: value, UpdatedAt: time.Now().UTC()})
	if err != nil {
		return fmt.Errorf("%s encode %s: %w", a.engine, key, err)
	}
	resp, err := a.perform(opCtx, http.MethodPut, a.docPath(key), payload)
	if err != nil {
		return fmt.Errorf("%s index %s: %w", a.engine, key, err)
	}
	defer resp.Body.Close()
	if err := statusError(resp); err != nil {
		return fmt.Errorf("%s index %s: %w", a.engine, key, err)
	}
	return nil
}

// Remove deletes the document for key. A missing document or index is not an error.
func (a *Adapter) Remove(ctx context.Context, key string) error {
	if err := a.ensureOpen(); err != nil {
		return err
	}
	opCtx, cancel := a.withOperationTimeout(ctx)
	defer cancel()

	resp, err := a.perform(opCtx, http.MethodDelete, a.docPath(key), nil)
	if err != nil {
		return fmt.Errorf("%s delete %s: %w", a.engine, key, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	if err := statusError(resp); err != nil {
		return fmt.Errorf("%s delete %s: %w", a.engine, key, err)
	}
	return nil
}

// Ping verifies the cluster answers.
func (a *Adapter) Ping(ctx context.Context) error {
	if err := a.ensureOpen(); err != nil {
		return err
	}
	resp, err := a.perform(ctx, http.MethodGet, "/", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return statusError(resp)
}

func (a *Adapter) HealthCheck(ctx context.Context) error {
	hcCtx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := a.ensureOpen(); err != nil {
		return err
	}

	resp, err := a.perform(hcCtx, http.MethodGet, "/_cluster/health?local=true", nil)
	if err == nil {
		defer resp.Body.Close()
		err = statusError(resp)
	}
	if err != nil {
		a.logger.Error("Search health check failed", "engine", string(a.engine), "error", err)
		return fmt.Errorf("search health check failed: %w", err)
	}
	return nil
}

func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	if a.transport != nil {
		a.transport.CloseIdleConnections()
	}
	return nil
}

func (a *Adapter) docPath(key string) string {
	return "/" + url.PathEscape(a.index) + "/_doc/" + url.PathEscape(key)
}

func (a *Adapter) perform(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, path, reader)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := a.client.Perform(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	return resp, nil
}

func statusError(resp *http.Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	return fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
}

func normalizeAddresses(raw []string) ([]string, error) {
	addresses := make([]string, 0, len(raw))
	for _, candidate := range raw {
		candidate = strings.TrimRight(strings.TrimSpace(candidate), "/")
		if candidate == "" {
			continue
		}
		u, err := url.Parse(candidate)
		if err != nil || u.Scheme == "" || u.Host == "" {
			return nil, fmt.Errorf("invalid search node URL %q", candidate)
		}
		addresses = append(addresses, candidate)
	}
	if len(addresses) == 0 {
		return nil, errors.New("at least one search node URL is required")
	}
	return addresses, nil
}

func (a *Adapter) ensureOpen() error {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return store.ErrClosed
	}
	return nil
}

func (a *Adapter) withOperationTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if _, hasDeadline := ctx.Deadline(); hasDeadline {
		return ctx, func() {}
	}
	return context.WithTimeout(ctx, a.timeout)
}
