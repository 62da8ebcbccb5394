// Package recordstore defines the record-store contract the online index
// builder depends on (spec §6): opening a store inside a transaction,
// looking up an index's state and maintainer, and scanning records by
// primary key. Record-store internals (schema resolution, how a Record is
// actually laid out on disk) are out of scope per spec §1 — this package
// only states the interface a concrete record store must satisfy.
package recordstore

import (
	"context"

	"github.com/drpcorg/onlinebuild/kv"
	"github.com/drpcorg/onlinebuild/pk"
)

// IndexState is the external index state machine the builder depends on
// (spec §4.G): DISABLED -> WRITE_ONLY -> READABLE, with READABLE only
// reachable from WRITE_ONLY via a successful build.
type IndexState int

const (
	Disabled IndexState = iota
	WriteOnly
	Readable
)

func (s IndexState) String() string {
	switch s {
	case Disabled:
		return "DISABLED"
	case WriteOnly:
		return "WRITE_ONLY"
	case Readable:
		return "READABLE"
	default:
		return "UNKNOWN"
	}
}

// RecordType identifies a record's shape. RTS (Record Type Set, spec §3)
// is the finite subset of types one build covers.
type RecordType uint32

// RecordTypeSet is the Record Type Set from spec §3.
type RecordTypeSet map[RecordType]struct{}

func NewRecordTypeSet(types ...RecordType) RecordTypeSet {
	rts := make(RecordTypeSet, len(types))
	for _, t := range types {
		rts[t] = struct{}{}
	}
	return rts
}

func (rts RecordTypeSet) Has(t RecordType) bool {
	_, ok := rts[t]
	return ok
}

// Record is the opaque payload the builder scans but never mutates
// (spec §3).
type Record struct {
	PK    pk.Key
	Type  RecordType
	Value []byte
}

// Maintainer applies one record's effect to an index's stored
// representation (spec §4.B, §6). old == nil marks an initial build, never
// an update of a previously-indexed value — the distinction matters for
// non-idempotent maintainers (counters, sums), which must not be invoked
// twice for the same record. A Maintainer is bound to the transaction it
// was obtained from (via Store.IndexMaintainer); it writes through that
// transaction internally, the same way spec §6's update(old,new) takes no
// transaction argument of its own.
type Maintainer interface {
	Update(ctx context.Context, old, new *Record) error
}

// IndexIdentity names one index within a record store.
type IndexIdentity struct {
	Name string
}

// Store is the record-store handle opened inside one transaction
// (spec §6 open_async).
type Store interface {
	IndexState(index IndexIdentity) (IndexState, error)
	IndexMaintainer(index IndexIdentity) (Maintainer, error)
	// ScanRecords iterates records with PK in [interval.Begin, interval.End),
	// honoring continuation the way kv.Cursor does.
	ScanRecords(ctx context.Context, interval pk.Interval, continuation []byte, reverse bool) RecordCursor
	ClearIndexData(index IndexIdentity) error
	MarkIndexReadable(ctx context.Context, index IndexIdentity) error
	// IndexRangeSubspace returns the KV key prefix BRS entries for this
	// index live under (spec §6).
	IndexRangeSubspace(index IndexIdentity) []byte
	// Transaction returns the transaction this Store was opened from, for
	// builder-level code (rangeset.Insert and friends) that must share it
	// with whatever the Maintainer writes through.
	Transaction() kv.Transaction
}

// RecordCursor iterates Records within one transaction.
type RecordCursor interface {
	HasNext(ctx context.Context) (bool, error)
	Next() Record
	// Continuation returns a resume token for the row last returned by
	// Next; a later ScanRecords given that token starts strictly after that
	// row. Used by the Chunk Builder (spec §4.B) to compute the resume point
	// with a second, one-row cursor.
	Continuation() []byte
}

// Opener opens a Store inside an in-flight transaction (spec §6
// open_async). Implementations typically close over a *kv.Store and an
// index identity.
type Opener interface {
	Open(ctx context.Context, tx kv.Transaction) (Store, error)
}
