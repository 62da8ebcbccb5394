package pebblekv

import (
	"context"

	"github.com/drpcorg/onlinebuild/kv"
	"github.com/drpcorg/onlinebuild/pk"
	"github.com/drpcorg/onlinebuild/recordstore"
)

// RecordStore is a minimal recordstore.Opener good enough to drive the
// builder against a real Pebble engine (SPEC_FULL §6): records live under
// "rec/" + PK, one index's state/BRS/applied-data each live under their
// own "idx/<name>/..." subspace. Schema resolution, record typing from
// application data, and everything else a production record store would
// own are out of scope (spec.md §1) — this exists to exercise `builder`
// end-to-end, not to be one.
type RecordStore struct {
	store *Store

	// NewMaintainer builds the Maintainer for one (transaction, index)
	// pair. Callers wire in maintainer.HashIndex, maintainer.RunningTotal,
	// or their own, the same way recordstore/fake.Backend.NewMaintainer
	// works for the in-memory fixture.
	NewMaintainer func(tx kv.Transaction, index recordstore.IndexIdentity) recordstore.Maintainer
}

// NewRecordStore binds a RecordStore to store. It is empty of records and
// indexes until PutRecord and SeedIndexState are used to populate it.
func NewRecordStore(store *Store) *RecordStore {
	return &RecordStore{store: store}
}

const recPrefix = "rec/"

func recordKey(p pk.Key) []byte {
	return append([]byte(recPrefix), p.Raw()...)
}

func recordBound(p pk.Key) []byte {
	switch {
	case p.Equal(pk.NegInf):
		return []byte(recPrefix)
	case p.Equal(pk.PosInf):
		return prefixSuccessor([]byte(recPrefix))
	default:
		return recordKey(p)
	}
}

func prefixSuccessor(prefix []byte) []byte {
	out := append([]byte{}, prefix...)
	for i := len(out) - 1; i >= 0; i-- {
		if out[i] < 0xff {
			out[i]++
			return out[:i+1]
		}
	}
	return append(out, 0xff)
}

func indexSubspace(index recordstore.IndexIdentity, part string) []byte {
	return []byte("idx/" + index.Name + "/" + part + "/")
}

// DataSubspace returns the KV subspace an index's applied data lives under,
// for callers (the CLI, fixtures) that need to hand a maintainer its own
// storage location without reaching into this package's internals.
func (rs *RecordStore) DataSubspace(index recordstore.IndexIdentity) []byte {
	return indexSubspace(index, "data")
}

func indexStateKey(index recordstore.IndexIdentity) []byte {
	return []byte("idx/" + index.Name + "/state")
}

// PutRecord stages a record write directly against tx, bypassing the
// builder — used to populate fixtures and by the CLI's seed path.
func (rs *RecordStore) PutRecord(tx kv.Transaction, rec recordstore.Record) {
	tx.Set(recordKey(rec.PK), encodeRecord(rec))
}

// SeedIndexState stages the initial IndexState for index.
func (rs *RecordStore) SeedIndexState(tx kv.Transaction, index recordstore.IndexIdentity, state recordstore.IndexState) {
	tx.Set(indexStateKey(index), []byte{byte(state)})
}

func encodeRecord(rec recordstore.Record) []byte {
	out := make([]byte, 4, 4+len(rec.Value))
	out[0] = byte(rec.Type >> 24)
	out[1] = byte(rec.Type >> 16)
	out[2] = byte(rec.Type >> 8)
	out[3] = byte(rec.Type)
	return append(out, rec.Value...)
}

func decodeRecord(pkRaw, value []byte) recordstore.Record {
	typ := recordstore.RecordType(uint32(value[0])<<24 | uint32(value[1])<<16 | uint32(value[2])<<8 | uint32(value[3]))
	return recordstore.Record{
		PK:    pk.Bytes(append([]byte{}, pkRaw...)),
		Type:  typ,
		Value: append([]byte{}, value[4:]...),
	}
}

// Open implements recordstore.Opener.
func (rs *RecordStore) Open(ctx context.Context, tx kv.Transaction) (recordstore.Store, error) {
	return &recordHandle{rs: rs, tx: tx}, nil
}

type recordHandle struct {
	rs *RecordStore
	tx kv.Transaction
}

func (h *recordHandle) Transaction() kv.Transaction { return h.tx }

func (h *recordHandle) IndexState(index recordstore.IndexIdentity) (recordstore.IndexState, error) {
	b, err := h.tx.Get(indexStateKey(index))
	if err != nil {
		if err == kv.ErrNotFound {
			return recordstore.Disabled, nil
		}
		return recordstore.Disabled, err
	}
	if len(b) != 1 {
		return recordstore.Disabled, nil
	}
	return recordstore.IndexState(b[0]), nil
}

func (h *recordHandle) IndexMaintainer(index recordstore.IndexIdentity) (recordstore.Maintainer, error) {
	if h.rs.NewMaintainer == nil {
		return nil, errNoMaintainer{index.Name}
	}
	return h.rs.NewMaintainer(h.tx, index), nil
}

type errNoMaintainer struct{ index string }

func (e errNoMaintainer) Error() string {
	return "pebblekv: no maintainer registered for index " + e.index
}

func (h *recordHandle) ScanRecords(ctx context.Context, interval pk.Interval, continuation []byte, reverse bool) recordstore.RecordCursor {
	begin, end := recordBound(interval.Begin), recordBound(interval.End)
	var rawContinuation []byte
	if continuation != nil {
		rawContinuation = recordKey(pk.Bytes(continuation))
	}
	return &recordCursor{cursor: h.tx.Scan(begin, end, rawContinuation, reverse)}
}

type recordCursor struct {
	cursor kv.Cursor
}

func (c *recordCursor) HasNext(ctx context.Context) (bool, error) { return c.cursor.HasNext(ctx) }

func (c *recordCursor) Next() recordstore.Record {
	row := c.cursor.Next()
	return decodeRecord(row.Key[len(recPrefix):], row.Value)
}

func (c *recordCursor) Continuation() []byte {
	cont := c.cursor.Continuation()
	if cont == nil {
		return nil
	}
	return cont[len(recPrefix):]
}

func (h *recordHandle) ClearIndexData(index recordstore.IndexIdentity) error {
	data := indexSubspace(index, "data")
	h.tx.ClearRange(data, prefixSuccessor(data))
	return nil
}

func (h *recordHandle) MarkIndexReadable(ctx context.Context, index recordstore.IndexIdentity) error {
	h.tx.Set(indexStateKey(index), []byte{byte(recordstore.Readable)})
	return nil
}

func (h *recordHandle) IndexRangeSubspace(index recordstore.IndexIdentity) []byte {
	return indexSubspace(index, "brs")
}
