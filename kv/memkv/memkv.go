// Package memkv is an in-memory kv.Store used by tests. It gives every
// transaction a snapshot-isolated view of the keyspace and validates read
// ranges at commit time, so tests can exercise real multi-builder
// contention (spec §5, §8 scenario 4) instead of assuming it away.
//
// It is deliberately small and un-tuned: a fresh copy-on-write map per
// commit is fine at the scale the builder's own tests run at, the same
// way the teacher's test_utils package favors a short, obviously-correct
// fixture over a production-grade one.
package memkv

import (
	"bytes"
	"context"
	"sort"
	"sync"

	"github.com/drpcorg/onlinebuild/kv"
)

type cell struct {
	value   []byte
	deleted bool
	version int
}

// Store is an in-memory kv.Store.
type Store struct {
	mu      sync.Mutex
	version int
	cells   map[string]*cell

	// failNext, if non-nil, is consulted once per Run attempt, with that
	// attempt's 1-based number, and stays registered until replaced, to
	// inject errors for Retry Controller tests (spec §8 scenarios 3 and 6).
	failNext func(attempt int) error
	attempts int
}

// New returns an empty store.
func New() *Store {
	return &Store{cells: make(map[string]*cell)}
}

// InjectFailures registers a hook consulted at the start of every Run
// attempt; returning a non-nil error aborts that attempt without touching
// the keyspace.
func (s *Store) InjectFailures(hook func(attempt int) error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = hook
	s.attempts = 0
}

type readRange struct {
	begin, end []byte
}

type txn struct {
	ctx      context.Context
	store    *Store
	snapshot map[string]*cell
	snapVer  int

	writes map[string]*cell // nil value + deleted=true means Clear
	reads  []readRange
}

// Run executes fn against a fresh transaction and commits it on success.
func (s *Store) Run(ctx context.Context, priority kv.Priority, fn func(ctx context.Context, tx kv.Transaction) error) error {
	s.mu.Lock()
	s.attempts++
	attempt := s.attempts
	hook := s.failNext
	snap := s.cells
	ver := s.version
	s.mu.Unlock()

	if hook != nil {
		if err := hook(attempt); err != nil {
			return err
		}
	}

	tx := &txn{ctx: ctx, store: s, snapshot: snap, snapVer: ver, writes: make(map[string]*cell)}
	if err := fn(ctx, tx); err != nil {
		return err
	}
	return s.commit(tx)
}

func (s *Store) commit(tx *txn) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, r := range tx.reads {
		for key, c := range s.cells {
			if inRange(key, r.begin, r.end) && c.version > tx.snapVer {
				return kv.NewCapacityError(kv.CodeCommitConflict)
			}
		}
	}

	s.version++
	next := make(map[string]*cell, len(s.cells)+len(tx.writes))
	for k, v := range s.cells {
		next[k] = v
	}
	for k, w := range tx.writes {
		if w.deleted {
			delete(next, k)
			continue
		}
		next[k] = &cell{value: w.value, version: s.version}
	}
	s.cells = next
	return nil
}

func inRange(key string, begin, end []byte) bool {
	return bytes.Compare([]byte(key), begin) >= 0 && bytes.Compare([]byte(key), end) < 0
}

func (t *txn) view(key []byte) (*cell, bool) {
	if w, ok := t.writes[string(key)]; ok {
		if w.deleted {
			return nil, false
		}
		return w, true
	}
	if c, ok := t.snapshot[string(key)]; ok {
		return c, true
	}
	return nil, false
}

func (t *txn) Get(key []byte) ([]byte, error) {
	t.reads = append(t.reads, readRange{begin: append([]byte{}, key...), end: successor(key)})
	c, ok := t.view(key)
	if !ok {
		return nil, kv.ErrNotFound
	}
	return c.value, nil
}

func (t *txn) Set(key, value []byte) {
	t.writes[string(key)] = &cell{value: append([]byte{}, value...)}
}

func (t *txn) Clear(key []byte) {
	t.writes[string(key)] = &cell{deleted: true}
}

func (t *txn) ClearRange(begin, end []byte) {
	for _, k := range t.allKeys(begin, end) {
		t.writes[k] = &cell{deleted: true}
	}
}

func successor(key []byte) []byte {
	return append(append([]byte{}, key...), 0x00)
}

func (t *txn) allKeys(begin, end []byte) []string {
	seen := map[string]bool{}
	var out []string
	for k := range t.snapshot {
		if inRange(k, begin, end) {
			if !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	for k, w := range t.writes {
		if inRange(k, begin, end) {
			if !w.deleted && !seen[k] {
				seen[k] = true
				out = append(out, k)
			}
		}
	}
	return out
}

func (t *txn) Scan(begin, end []byte, continuation []byte, reverse bool) kv.Cursor {
	t.reads = append(t.reads, readRange{begin: append([]byte{}, begin...), end: append([]byte{}, end...)})

	merged := map[string][]byte{}
	for k, c := range t.snapshot {
		if inRange(k, begin, end) {
			merged[k] = c.value
		}
	}
	for k, w := range t.writes {
		if !inRange(k, begin, end) {
			continue
		}
		if w.deleted {
			delete(merged, k)
		} else {
			merged[k] = w.value
		}
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	if reverse {
		for i, j := 0, len(keys)-1; i < j; i, j = i+1, j-1 {
			keys[i], keys[j] = keys[j], keys[i]
		}
	}

	if continuation != nil {
		keys = afterContinuation(keys, continuation, reverse)
	}

	return &cursor{keys: keys, merged: merged}
}

func afterContinuation(keys []string, continuation []byte, reverse bool) []string {
	cont := string(continuation)
	for i, k := range keys {
		if reverse {
			if k < cont {
				return keys[i:]
			}
		} else {
			if k > cont {
				return keys[i:]
			}
		}
	}
	return nil
}

type cursor struct {
	keys   []string
	merged map[string][]byte
	pos    int
	last   string
}

func (c *cursor) HasNext(ctx context.Context) (bool, error) {
	return c.pos < len(c.keys), nil
}

func (c *cursor) Next() kv.Row {
	k := c.keys[c.pos]
	c.pos++
	c.last = k
	return kv.Row{Key: []byte(k), Value: c.merged[k]}
}

func (c *cursor) Continuation() []byte {
	return []byte(c.last)
}
