// Package pebblekv is a kv.Store backed by a local Pebble LSM tree
// (github.com/cockroachdb/pebble), the embedded storage engine the teacher
// repo builds its own record store on (chotki.go's Chotki.db field). It
// gives the online index builder somewhere real to run against without a
// distributed KV service: one process, one *pebble.DB, one mutex
// serializing transactions the same way the teacher serializes its own
// critical sections (chotki.go's outlock/hlock fields).
package pebblekv

import (
	"context"
	"sync"

	"github.com/cockroachdb/pebble"

	"github.com/drpcorg/onlinebuild/kv"
)

// MaxBatchBytes bounds how large one transaction's pending writes may grow
// before Run refuses to commit it, surfacing a transaction_too_large
// capacity error (spec §4.D code 1004) for the Retry Controller to shrink
// the chunk limit against. Pebble itself has no such ceiling; this exists
// so the online path exercises real capacity-error handling against a real
// store, not only against the injectable test double.
const MaxBatchBytes = 8 << 20

// Store opens a single Pebble instance at dir.
type Store struct {
	db *pebble.DB
	mu sync.Mutex
}

// Open creates the directory at dir if absent and opens (or creates) a
// Pebble store there.
func Open(dir string) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close closes the underlying Pebble instance. No Run call may be in
// flight when Close is called.
func (s *Store) Close() error {
	return s.db.Close()
}

// Run executes fn against a fresh indexed batch layered over the current
// committed state, and applies the batch on success. Transactions are
// serialized by s.mu: a single embedded store has no distributed
// contention to detect, so (unlike memkv) there is no separate
// commit-conflict path — only the size-based capacity error above.
func (s *Store) Run(ctx context.Context, priority kv.Priority, fn func(ctx context.Context, tx kv.Transaction) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	batch := s.db.NewIndexedBatch()
	defer batch.Close()

	tx := &txn{batch: batch}
	err := fn(ctx, tx)
	tx.closeIterators()
	if err != nil {
		return err
	}

	if batch.Len() > MaxBatchBytes {
		return kv.NewCapacityError(kv.CodeTransactionTooLarge)
	}
	return s.db.Apply(batch, &pebble.WriteOptions{Sync: false})
}

type txn struct {
	batch *pebble.Batch
	iters []*pebble.Iterator
}

func (t *txn) Get(key []byte) ([]byte, error) {
	v, closer, err := t.batch.Get(key)
	if err == pebble.ErrNotFound {
		return nil, kv.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	out := append([]byte{}, v...)
	_ = closer.Close()
	return out, nil
}

func (t *txn) Set(key, value []byte) {
	_ = t.batch.Set(key, value, nil)
}

func (t *txn) Clear(key []byte) {
	_ = t.batch.Delete(key, nil)
}

func (t *txn) ClearRange(begin, end []byte) {
	_ = t.batch.DeleteRange(begin, end, nil)
}

func (t *txn) Scan(begin, end []byte, continuation []byte, reverse bool) kv.Cursor {
	iter, err := t.batch.NewIter(&pebble.IterOptions{LowerBound: begin, UpperBound: end})
	if err != nil {
		return &errCursor{err: err}
	}
	t.iters = append(t.iters, iter)

	c := &cursor{iter: iter, reverse: reverse}
	if reverse {
		if continuation != nil {
			c.valid = iter.SeekLT(continuation)
		} else {
			c.valid = iter.Last()
		}
	} else {
		if continuation != nil {
			c.valid = iter.SeekGE(keyAfter(continuation))
		} else {
			c.valid = iter.First()
		}
	}
	return c
}

func (t *txn) closeIterators() {
	for _, it := range t.iters {
		_ = it.Close()
	}
	t.iters = nil
}

// keyAfter returns the smallest key strictly greater than b, for resuming
// a forward scan strictly after a continuation key.
func keyAfter(b []byte) []byte {
	return append(append([]byte{}, b...), 0x00)
}

type cursor struct {
	iter    *pebble.Iterator
	reverse bool
	valid   bool
	lastKey []byte
}

func (c *cursor) HasNext(ctx context.Context) (bool, error) {
	if err := c.iter.Error(); err != nil {
		return false, err
	}
	return c.valid, nil
}

func (c *cursor) Next() kv.Row {
	row := kv.Row{
		Key:   append([]byte{}, c.iter.Key()...),
		Value: append([]byte{}, c.iter.Value()...),
	}
	c.lastKey = row.Key
	if c.reverse {
		c.valid = c.iter.Prev()
	} else {
		c.valid = c.iter.Next()
	}
	return row
}

func (c *cursor) Continuation() []byte {
	return c.lastKey
}

type errCursor struct{ err error }

func (c *errCursor) HasNext(ctx context.Context) (bool, error) { return false, c.err }
func (c *errCursor) Next() kv.Row                               { return kv.Row{} }
func (c *errCursor) Continuation() []byte                       { return nil }
