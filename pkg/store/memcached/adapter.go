package memcached

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"hash/fnv"
	"io"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/nimburion/injurystore/pkg/store"
)

// memcached rejects keys longer than this or containing whitespace/control bytes.
const maxKeyLength = 250

var errNotFound = errors.New("not found")

// Adapter is a lightweight memcached text-protocol client. Each operation
// uses a short-lived TCP connection to the server selected by key hash.
type Adapter struct {
	addresses []string
	timeout   time.Duration
	prefix    string
	dial      func(ctx context.Context, network, address string) (net.Conn, error)
}

// Config configures the memcached backend.
type Config struct {
	Addresses []string
	Timeout   time.Duration
	Prefix    string
}

// NewAdapter creates a memcached adapter. No connection is made until the first operation.
func NewAdapter(cfg Config) (*Adapter, error) {
	normalized := make([]string, 0, len(cfg.Addresses))
	for _, addr := range cfg.Addresses {
		if trimmed := strings.TrimSpace(addr); trimmed != "" {
			normalized = append(normalized, trimmed)
		}
	}
	if len(normalized) == 0 {
		return nil, errors.New("at least one memcached address is required")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 500 * time.Millisecond
	}
	return &Adapter{
		addresses: normalized,
		timeout:   timeout,
		prefix:    strings.TrimSpace(cfg.Prefix),
		dial:      (&net.Dialer{Timeout: timeout}).DialContext,
	}, nil
}

// Get fetches a value by key.
func (c *Adapter) Get(ctx context.Context, key string) (string, error) {
	raw, err := c.get(ctx, c.key(key))
	if errors.Is(err, errNotFound) {
		return "", store.ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("memcached get %s: %w", key, err)
	}
	return string(raw), nil
}

// Set stores a value without expiry.
func (c *Adapter) Set(ctx context.Context, key, value string) error {
	if err := c.set(ctx, c.key(key), []byte(value)); err != nil {
		return fmt.Errorf("memcached set %s: %w", key, err)
	}
	return nil
}

// Remove deletes a key. NOT_FOUND replies are treated as success.
func (c *Adapter) Remove(ctx context.Context, key string) error {
	err := c.delete(ctx, c.key(key))
	if err == nil || errors.Is(err, errNotFound) {
		return nil
	}
	return fmt.Errorf("memcached delete %s: %w", key, err)
}

// HealthCheck issues a "version" command against every configured server.
func (c *Adapter) HealthCheck(ctx context.Context) error {
	for _, addr := range c.addresses {
		if err := c.version(ctx, addr); err != nil {
			return fmt.Errorf("memcached health check failed for %s: %w", addr, err)
		}
	}
	return nil
}

// Close is a no-op: connections are per operation.
func (c *Adapter) Close() error {
	return nil
}

func (c *Adapter) get(ctx context.Context, key string) ([]byte, error) {
	if err := validateKey(key); err != nil {
		return nil, err
	}
	conn, err := c.connect(ctx, c.pickAddress(key))
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	reader := bufio.NewReader(conn)
	if _, err := io.WriteString(conn, fmt.Sprintf("get %s\r\n", key)); err != nil {
		return nil, err
	}

	line, err := reader.ReadString('\n')
	if err != nil {
		return nil, err
	}
	line = strings.TrimSpace(line)
	if line == "END" {
		return nil, errNotFound
	}
	// VALUE <key> <flags> <bytes>
	parts := strings.Fields(line)
	if len(parts) != 4 || parts[0] != "VALUE" {
		return nil, fmt.Errorf("unexpected memcached response: %s", line)
	}
	size, err := strconv.Atoi(parts[3])
	if err != nil {
		return nil, fmt.Errorf("invalid memcached size: %w", err)
	}
	payload := make([]byte, size+2)
	if _, err := io.ReadFull(reader, payload); err != nil {
		return nil, err
	}
	endLine, err := reader.ReadString('\n')
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(endLine) != "END" {
		return nil, fmt.Errorf("unexpected memcached terminator: %s", strings.TrimSpace(endLine))
	}
	return payload[:size], nil
}

func (c *Adapter) set(ctx context.Context, key string, value []byte) error {
	if err := validateKey(key); err != nil {
		return err
	}
	conn, err := c.connect(ctx, c.pickAddress(key))
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := io.WriteString(conn, fmt.Sprintf("set %s 0 0 %d\r\n", key, len(value))); err != nil {
		return err
	}
	if _, err := conn.Write(value); err != nil {
		return err
	}
	if _, err := io.WriteString(conn, "\r\n"); err != nil {
		return err
	}

	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return err
	}
	if strings.TrimSpace(line) != "STORED" {
		return fmt.Errorf("memcached set failed: %s", strings.TrimSpace(line))
	}
	return nil
}

func (c *Adapter) delete(ctx context.Context, key string) error {
	if err := validateKey(key); err != nil {
		return err
	}
	conn, err := c.connect(ctx, c.pickAddress(key))
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := io.WriteString(conn, fmt.Sprintf("delete %s\r\n", key)); err != nil {
		return err
	}
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return err
	}
	switch strings.TrimSpace(line) {
	case "DELETED":
		return nil
	case "NOT_FOUND":
		return errNotFound
	default:
		return fmt.Errorf("unexpected memcached delete response: %s", strings.TrimSpace(line))
	}
}

func (c *Adapter) version(ctx context.Context, addr string) error {
	conn, err := c.connect(ctx, addr)
	if err != nil {
		return err
	}
	defer conn.Close()

	if _, err := io.WriteString(conn, "version\r\n"); err != nil {
		return err
	}
	line, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		return err
	}
	if !strings.HasPrefix(line, "VERSION") {
		return fmt.Errorf("unexpected memcached version response: %s", strings.TrimSpace(line))
	}
	return nil
}

func (c *Adapter) connect(ctx context.Context, target string) (net.Conn, error) {
	conn, err := c.dial(ctx, "tcp", target)
	if err != nil {
		return nil, err
	}
	deadline := time.Now().Add(c.timeout)
	if ctxDeadline, ok := ctx.Deadline(); ok && ctxDeadline.Before(deadline) {
		deadline = ctxDeadline
	}
	_ = conn.SetDeadline(deadline)
	return conn, nil
}

func (c *Adapter) pickAddress(key string) string {
	if len(c.addresses) == 1 {
		return c.addresses[0]
	}
	hash := fnv.New32a()
	_, _ = hash.Write([]byte(key))
	return c.addresses[int(hash.Sum32()%uint32(len(c.addresses)))]
}

func (c *Adapter) key(key string) string {
	if c.prefix == "" {
		return key
	}
	return c.prefix + ":" + key
}

func validateKey(key string) error {
	if key == "" || len(key) > maxKeyLength {
		return fmt.Errorf("invalid memcached key length %d", len(key))
	}
	for _, r := range key {
		if r <= ' ' || r == 0x7f {
			return fmt.Errorf("invalid memcached key %q", key)
		}
	}
	return nil
}
