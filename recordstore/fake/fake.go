// Package fake is an in-memory recordstore.Store/Opener fixture for builder
// tests: a small test double built from the module's own real types rather
// than a mock, the way the teacher's test_utils package composes real
// Syncer/Host values instead of reaching for a mocking framework.
package fake

import (
	"context"
	"errors"
	"sort"

	"github.com/drpcorg/onlinebuild/kv"
	"github.com/drpcorg/onlinebuild/pk"
	"github.com/drpcorg/onlinebuild/recordstore"
)

// Backend is the record fixture shared across every transaction a test
// opens against it. Records are immutable for the fixture's lifetime, the
// same way spec §3 says Records Range is immutable for a builder's
// lifetime; index state is the one thing that genuinely needs to be
// transactional, so it round-trips through the same kv.Transaction
// everything else in a build uses.
type Backend struct {
	records  []recordstore.Record
	subspace []byte
	stateKey []byte

	// NewMaintainer builds the Maintainer bound to one transaction. Any
	// recordstore.Maintainer fits; the builder package's tests supply
	// counting stubs that tally Update calls per PK.
	NewMaintainer func(tx kv.Transaction) recordstore.Maintainer

	clearedCount int
}

// NewBackend sorts records by PK once and keeps that order for every scan.
func NewBackend(records []recordstore.Record, subspace []byte) *Backend {
	sorted := append([]recordstore.Record{}, records...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].PK.Less(sorted[j].PK) })
	return &Backend{
		records:  sorted,
		subspace: subspace,
		stateKey: append(append([]byte{}, subspace...), []byte("/state")...),
	}
}

// Seed writes the index's initial state directly, outside of any build
// transaction, the way a test sets up fixtures before exercising the
// system under test.
func (b *Backend) Seed(ctx context.Context, store kv.Store, state recordstore.IndexState) error {
	return store.Run(ctx, kv.Batch, func(ctx context.Context, tx kv.Transaction) error {
		tx.Set(b.stateKey, []byte{byte(state)})
		return nil
	})
}

// ClearedCount is how many times ClearIndexData has been called, for tests
// asserting Rebuild actually clears before rebuilding.
func (b *Backend) ClearedCount() int { return b.clearedCount }

// Opener opens a Store bound to one Backend and index identity.
type Opener struct {
	Backend *Backend
	Index   recordstore.IndexIdentity
}

func (o *Opener) Open(ctx context.Context, tx kv.Transaction) (recordstore.Store, error) {
	return &Store{backend: o.Backend, index: o.Index, tx: tx}, nil
}

// Store is the per-transaction handle BuildChunk/BuildUnbuilt/BuildEndpoints
// operate on.
type Store struct {
	backend *Backend
	index   recordstore.IndexIdentity
	tx      kv.Transaction
}

func (s *Store) Transaction() kv.Transaction { return s.tx }

func (s *Store) IndexState(index recordstore.IndexIdentity) (recordstore.IndexState, error) {
	b, err := s.tx.Get(s.backend.stateKey)
	if err != nil {
		if errors.Is(err, kv.ErrNotFound) {
			return recordstore.Disabled, nil
		}
		return recordstore.Disabled, err
	}
	if len(b) != 1 {
		return recordstore.Disabled, nil
	}
	return recordstore.IndexState(b[0]), nil
}

func (s *Store) IndexMaintainer(index recordstore.IndexIdentity) (recordstore.Maintainer, error) {
	return s.backend.NewMaintainer(s.tx), nil
}

func (s *Store) ScanRecords(ctx context.Context, interval pk.Interval, continuation []byte, reverse bool) recordstore.RecordCursor {
	var rows []recordstore.Record
	for _, r := range s.backend.records {
		if interval.Contains(r.PK) {
			rows = append(rows, r)
		}
	}
	if reverse {
		for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
			rows[i], rows[j] = rows[j], rows[i]
		}
	}
	if continuation != nil {
		rows = afterContinuation(rows, continuation, reverse)
	}
	return &cursor{rows: rows}
}

func afterContinuation(rows []recordstore.Record, continuation []byte, reverse bool) []recordstore.Record {
	cont := pk.Bytes(continuation)
	for i, r := range rows {
		if reverse {
			if r.PK.Less(cont) {
				return rows[i:]
			}
		} else if cont.Less(r.PK) {
			return rows[i:]
		}
	}
	return nil
}

func (s *Store) ClearIndexData(index recordstore.IndexIdentity) error {
	s.backend.clearedCount++
	return nil
}

func (s *Store) MarkIndexReadable(ctx context.Context, index recordstore.IndexIdentity) error {
	s.tx.Set(s.backend.stateKey, []byte{byte(recordstore.Readable)})
	return nil
}

func (s *Store) IndexRangeSubspace(index recordstore.IndexIdentity) []byte {
	return s.backend.subspace
}

type cursor struct {
	rows []recordstore.Record
	pos  int
}

func (c *cursor) HasNext(ctx context.Context) (bool, error) { return c.pos < len(c.rows), nil }

func (c *cursor) Next() recordstore.Record {
	r := c.rows[c.pos]
	c.pos++
	return r
}

func (c *cursor) Continuation() []byte {
	if c.pos == 0 {
		return nil
	}
	return c.rows[c.pos-1].PK.Raw()
}
