package injury

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/nimburion/injurystore/pkg/observability/logger"
	kv "github.com/nimburion/injurystore/pkg/store"
)

var errBackend = errors.New("backend unavailable")

// countingStore wraps a MemoryStore and counts calls; getErr/setErr/removeErr inject failures.
type countingStore struct {
	*kv.MemoryStore

	mu        sync.Mutex
	gets      int
	sets      int
	removes   int
	getErr    error
	setErr    error
	removeErr error
}

func newCountingStore() *countingStore {
	return &countingStore{MemoryStore: kv.NewMemoryStore()}
}

func (c *countingStore) Get(ctx context.Context, key string) (string, error) {
	c.mu.Lock()
	c.gets++
	err := c.getErr
	c.mu.Unlock()
	if err != nil {
		return "", err
	}
	return c.MemoryStore.Get(ctx, key)
}

func (c *countingStore) Set(ctx context.Context, key, value string) error {
	c.mu.Lock()
	c.sets++
	err := c.setErr
	c.mu.Unlock()
	if err != nil {
		return err
	}
	return c.MemoryStore.Set(ctx, key, value)
}

func (c *countingStore) Remove(ctx context.Context, key string) error {
	c.mu.Lock()
	c.removes++
	err := c.removeErr
	c.mu.Unlock()
	if err != nil {
		return err
	}
	return c.MemoryStore.Remove(ctx, key)
}

func (c *countingStore) setCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.sets
}

type logEntry struct {
	level string
	msg   string
	args  []any
}

// recordingLogger keeps every entry, including those of derived loggers.
type recordingLogger struct {
	mu      *sync.Mutex
	entries *[]logEntry
	fields  []any
}

func newRecordingLogger() *recordingLogger {
	return &recordingLogger{mu: &sync.Mutex{}, entries: &[]logEntry{}}
}

func (r *recordingLogger) record(level, msg string, args []any) {
	r.mu.Lock()
	defer r.mu.Unlock()
	all := append(append([]any{}, r.fields...), args...)
	*r.entries = append(*r.entries, logEntry{level: level, msg: msg, args: all})
}

func (r *recordingLogger) Debug(msg string, args ...any) { r.record("debug", msg, args) }
func (r *recordingLogger) Info(msg string, args ...any)  { r.record("info", msg, args) }
func (r *recordingLogger) Warn(msg string, args ...any)  { r.record("warn", msg, args) }
func (r *recordingLogger) Error(msg string, args ...any) { r.record("error", msg, args) }

func (r *recordingLogger) With(args ...any) logger.Logger {
	return &recordingLogger{mu: r.mu, entries: r.entries, fields: append(append([]any{}, r.fields...), args...)}
}

func (r *recordingLogger) WithContext(context.Context) logger.Logger { return r }

func (r *recordingLogger) errors() []logEntry {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []logEntry
	for _, e := range *r.entries {
		if e.level == "error" {
			out = append(out, e)
		}
	}
	return out
}

func (e logEntry) field(name string) any {
	for i := 0; i+1 < len(e.args); i += 2 {
		if fmt.Sprint(e.args[i]) == name {
			return e.args[i+1]
		}
	}
	return nil
}
