package memcached

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/nimburion/injurystore/pkg/store"
)

type fakeMemcached struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newFakeMemcached() *fakeMemcached {
	return &fakeMemcached{data: map[string][]byte{}}
}

func (f *fakeMemcached) dial(_ context.Context, _ string, _ string) (net.Conn, error) {
	clientConn, serverConn := net.Pipe()
	go f.serve(serverConn)
	return clientConn, nil
}

func (f *fakeMemcached) serve(conn net.Conn) {
	defer conn.Close()
	reader := bufio.NewReader(conn)

	line, err := reader.ReadString('\n')
	if err != nil {
		return
	}
	parts := strings.Fields(strings.TrimSpace(line))
	if len(parts) == 0 {
		return
	}

	switch parts[0] {
	case "set":
		if len(parts) != 5 {
			_, _ = io.WriteString(conn, "CLIENT_ERROR\r\n")
			return
		}
		size, _ := strconv.Atoi(parts[4])
		payload := make([]byte, size+2)
		if _, err := io.ReadFull(reader, payload); err != nil {
			return
		}
		f.mu.Lock()
		f.data[parts[1]] = append([]byte(nil), payload[:size]...)
		f.mu.Unlock()
		_, _ = io.WriteString(conn, "STORED\r\n")
	case "get":
		f.mu.Lock()
		value, ok := f.data[parts[1]]
		f.mu.Unlock()
		if !ok {
			_, _ = io.WriteString(conn, "END\r\n")
			return
		}
		_, _ = io.WriteString(conn, fmt.Sprintf("VALUE %s 0 %d\r\n", parts[1], len(value)))
		_, _ = conn.Write(value)
		_, _ = io.WriteString(conn, "\r\nEND\r\n")
	case "delete":
		f.mu.Lock()
		_, ok := f.data[parts[1]]
		delete(f.data, parts[1])
		f.mu.Unlock()
		if ok {
			_, _ = io.WriteString(conn, "DELETED\r\n")
		} else {
			_, _ = io.WriteString(conn, "NOT_FOUND\r\n")
		}
	case "version":
		_, _ = io.WriteString(conn, "VERSION 1.6.21\r\n")
	default:
		_, _ = io.WriteString(conn, "ERROR\r\n")
	}
}

func newTestAdapter(t *testing.T, prefix string) (*Adapter, *fakeMemcached) {
	t.Helper()
	adapter, err := NewAdapter(Config{Addresses: []string{"fake:11211"}, Timeout: 500 * time.Millisecond, Prefix: prefix})
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	fake := newFakeMemcached()
	adapter.dial = fake.dial
	return adapter, fake
}

func TestNewAdapter_RequiresAddress(t *testing.T) {
	if _, err := NewAdapter(Config{Addresses: []string{" ", ""}}); err == nil {
		t.Fatal("expected error when no usable address is configured")
	}
}

func TestAdapter_CRUD(t *testing.T) {
	ctx := context.Background()
	adapter, fake := newTestAdapter(t, "app")

	if _, err := adapter.Get(ctx, "injuries"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	value := `[{"id":1,"part":"knee"}]`
	if err := adapter.Set(ctx, "injuries", value); err != nil {
		t.Fatalf("set: %v", err)
	}
	fake.mu.Lock()
	_, stored := fake.data["app:injuries"]
	fake.mu.Unlock()
	if !stored {
		t.Fatal("expected prefixed key on server")
	}

	got, err := adapter.Get(ctx, "injuries")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != value {
		t.Fatalf("expected %q, got %q", value, got)
	}

	if err := adapter.Remove(ctx, "injuries"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := adapter.Remove(ctx, "injuries"); err != nil {
		t.Fatalf("removing absent key must succeed, got %v", err)
	}
	if _, err := adapter.Get(ctx, "injuries"); !errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected ErrNotFound after remove, got %v", err)
	}
}

func TestAdapter_HealthCheck(t *testing.T) {
	adapter, _ := newTestAdapter(t, "")
	if err := adapter.HealthCheck(context.Background()); err != nil {
		t.Fatalf("health check: %v", err)
	}
}

func TestAdapter_DialFailure(t *testing.T) {
	adapter, _ := newTestAdapter(t, "")
	adapter.dial = func(context.Context, string, string) (net.Conn, error) {
		return nil, errors.New("connection refused")
	}
	_, err := adapter.Get(context.Background(), "injuries")
	if err == nil || errors.Is(err, store.ErrNotFound) {
		t.Fatalf("expected dial error, got %v", err)
	}
}

func TestValidateKey(t *testing.T) {
	if err := validateKey("injuries"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, key := range []string{"", "has space", strings.Repeat("k", maxKeyLength+1)} {
		if err := validateKey(key); err == nil {
			t.Errorf("expected error for key %q", key)
		}
	}
}

func TestPickAddress_Stable(t *testing.T) {
	adapter, err := NewAdapter(Config{Addresses: []string{"a:1", "b:1", "c:1"}})
	if err != nil {
		t.Fatalf("new adapter: %v", err)
	}
	first := adapter.pickAddress("injuries")
	for i := 0; i < 10; i++ {
		if got := adapter.pickAddress("injuries"); got != first {
			t.Fatalf("expected stable address %q, got %q", first, got)
		}
	}
}
