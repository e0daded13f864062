package injury

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/nimburion/injurystore/pkg/observability/logger"
	kv "github.com/nimburion/injurystore/pkg/store"
)

// DefaultKey is the storage key used when WithKey is not given.
const DefaultKey = "injuries"

// Store keeps one injury collection under one key of a key-value backend.
type Store struct {
	backend            kv.Store
	key                string
	log                logger.Logger
	serializeMutations bool
	hooks              []ChangeHook

	mu sync.Mutex
}

// Change describes a mutation that reached the backend.
type Change struct {
	Op  string
	Key string
	// ID is the id of the added, updated or deleted record; nil for save and clear.
	ID any
	// Count is the collection size after the change.
	Count int
	// Removed is the number of records a delete filtered out.
	Removed int
}

// ChangeHook observes successful mutations. Hooks run synchronously after the
// write, while the mutation lock is held when WithSerializedMutations is on,
// so they must not call back into the Store.
type ChangeHook func(ctx context.Context, c Change)

// Option configures a Store.
type Option func(*Store)

// WithKey sets the storage key. Distinct keys give independent collections on
// the same backend.
func WithKey(key string) Option {
	return func(s *Store) { s.key = strings.TrimSpace(key) }
}

// WithLogger sets the logger used to report failures.
func WithLogger(log logger.Logger) Option {
	return func(s *Store) {
		if log != nil {
			s.log = log
		}
	}
}

// WithSerializedMutations makes every write operation of this Store hold one
// mutex across its read-modify-write. Off by default: two overlapping
// mutations may then both read the same list and the later write wins.
// Writers in other processes are never coordinated.
func WithSerializedMutations(enabled bool) Option {
	return func(s *Store) { s.serializeMutations = enabled }
}

// WithChangeHook registers h to run after every successful mutation. Reads,
// failed writes and updates that matched nothing do not trigger it.
func WithChangeHook(h ChangeHook) Option {
	return func(s *Store) {
		if h != nil {
			s.hooks = append(s.hooks, h)
		}
	}
}

// NewStore creates a Store over backend.
func NewStore(backend kv.Store, opts ...Option) (*Store, error) {
	if backend == nil {
		return nil, errors.New("injury store: backend is required")
	}
	s := &Store{
		backend: backend,
		key:     DefaultKey,
		log:     logger.Nop(),
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.key == "" {
		return nil, errors.New("injury store: storage key must not be empty")
	}
	s.log = s.log.With("component", "injury_store", "key", s.key)
	return s, nil
}

// Key returns the storage key of the collection.
func (s *Store) Key() string {
	return s.key
}

// SaveInjuries replaces the stored collection. A nil slice is stored as [].
func (s *Store) SaveInjuries(ctx context.Context, injuries []Injury) error {
	defer s.lockMutations()()

	if err := s.write(ctx, injuries); err != nil {
		return s.fail(ctx, OpSave, err)
	}
	s.notify(ctx, Change{Op: OpSave, Count: len(injuries)})
	return nil
}

// GetInjuries returns the stored collection, or an empty one when nothing is
// stored. Read and decode failures are logged and also yield an empty
// collection; use the returned slice as-is, an error is never reported.
func (s *Store) GetInjuries(ctx context.Context) []Injury {
	injuries, err := s.load(ctx)
	if err != nil {
		_ = s.fail(ctx, OpGet, err)
		return []Injury{}
	}
	return injuries
}

// AddInjury appends injury to the stored collection and returns the new collection.
func (s *Store) AddInjury(ctx context.Context, injury Injury) ([]Injury, error) {
	defer s.lockMutations()()

	injuries, err := s.load(ctx)
	if err != nil {
		return nil, s.fail(ctx, OpAdd, err)
	}
	injuries = append(injuries, injury)
	if err := s.write(ctx, injuries); err != nil {
		return nil, s.fail(ctx, OpAdd, err)
	}
	s.notify(ctx, Change{Op: OpAdd, ID: injury.ID(), Count: len(injuries)})
	return injuries, nil
}

// UpdateInjury replaces, in place, the first stored record whose id equals
// injury's id. When no record matches nothing is written and the stored
// collection is returned unchanged.
func (s *Store) UpdateInjury(ctx context.Context, injury Injury) ([]Injury, error) {
	defer s.lockMutations()()

	injuries, err := s.load(ctx)
	if err != nil {
		return nil, s.fail(ctx, OpUpdate, err)
	}
	idx := indexOf(injuries, injury.ID())
	if idx < 0 {
		s.log.WithContext(ctx).Debug("no injury matches id, nothing updated", "id", injury.ID())
		return injuries, nil
	}
	injuries[idx] = injury
	if err := s.write(ctx, injuries); err != nil {
		return nil, s.fail(ctx, OpUpdate, err)
	}
	s.notify(ctx, Change{Op: OpUpdate, ID: injury.ID(), Count: len(injuries)})
	return injuries, nil
}

// DeleteInjury removes every record whose id equals id and returns the rest
// in their original order. The result is written back even when nothing matched.
func (s *Store) DeleteInjury(ctx context.Context, id any) ([]Injury, error) {
	defer s.lockMutations()()

	injuries, err := s.load(ctx)
	if err != nil {
		return nil, s.fail(ctx, OpDelete, err)
	}
	kept := make([]Injury, 0, len(injuries))
	for _, injury := range injuries {
		if !SameID(injury.ID(), id) {
			kept = append(kept, injury)
		}
	}
	if err := s.write(ctx, kept); err != nil {
		return nil, s.fail(ctx, OpDelete, err)
	}
	s.notify(ctx, Change{Op: OpDelete, ID: id, Count: len(kept), Removed: len(injuries) - len(kept)})
	return kept, nil
}

// ClearInjuries removes the stored value, leaving the key absent.
func (s *Store) ClearInjuries(ctx context.Context) error {
	defer s.lockMutations()()

	if err := s.backend.Remove(ctx, s.key); err != nil {
		return s.fail(ctx, OpClear, fmt.Errorf("remove: %w", err))
	}
	s.notify(ctx, Change{Op: OpClear})
	return nil
}

// load reads and decodes the collection. An absent key is an empty collection.
func (s *Store) load(ctx context.Context) ([]Injury, error) {
	raw, err := s.backend.Get(ctx, s.key)
	if kv.IsNotFound(err) {
		return []Injury{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read: %w", err)
	}
	var injuries []Injury
	if err := json.Unmarshal([]byte(raw), &injuries); err != nil {
		return nil, fmt.Errorf("decode: %w", err)
	}
	if injuries == nil {
		injuries = []Injury{}
	}
	return injuries, nil
}

func (s *Store) write(ctx context.Context, injuries []Injury) error {
	if injuries == nil {
		injuries = []Injury{}
	}
	payload, err := json.Marshal(injuries)
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}
	if err := s.backend.Set(ctx, s.key, string(payload)); err != nil {
		return fmt.Errorf("write: %w", err)
	}
	return nil
}

func (s *Store) fail(ctx context.Context, op string, err error) error {
	s.log.WithContext(ctx).Error("injury store operation failed", "op", op, "error", err)
	return &PersistenceError{Op: op, Key: s.key, Err: err}
}

func (s *Store) notify(ctx context.Context, c Change) {
	c.Key = s.key
	for _, h := range s.hooks {
		h(ctx, c)
	}
}

func (s *Store) lockMutations() func() {
	if !s.serializeMutations {
		return func() {}
	}
	s.mu.Lock()
	return s.mu.Unlock
}
