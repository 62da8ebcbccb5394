package maintainer

import (
	"context"
	"encoding/binary"

	"github.com/drpcorg/onlinebuild/kv"
	"github.com/drpcorg/onlinebuild/recordstore"
)

// RunningTotal maintains a single int64 sum under one KV key, grounded on
// the teacher's AtomicCounter — but deliberately without its merge
// semantics. The teacher's counter is safe under at-least-once CRDT
// application because ZCounter/NCounter merge is idempotent per source;
// RunningTotal has no such reconciliation, so Update must run exactly once
// per record. It exists to make spec §8 invariant 1 (single application)
// observable: a violation shows up as a visibly wrong total, not merely a
// duplicated write nothing downstream would notice.
type RunningTotal struct {
	tx       kv.Transaction
	key      []byte
	amountOf func(*recordstore.Record) int64
}

// NewRunningTotal binds a RunningTotal to tx and key. amountOf extracts the
// quantity to sum from a record (e.g. a decoded field of Record.Value).
func NewRunningTotal(tx kv.Transaction, key []byte, amountOf func(*recordstore.Record) int64) *RunningTotal {
	return &RunningTotal{tx: tx, key: key, amountOf: amountOf}
}

func (r *RunningTotal) Update(ctx context.Context, old, new *recordstore.Record) error {
	var delta int64
	if new != nil {
		delta += r.amountOf(new)
	}
	if old != nil {
		delta -= r.amountOf(old)
	}
	if delta == 0 {
		return nil
	}
	r.tx.Set(r.key, encodeInt64(r.read()+delta))
	return nil
}

func (r *RunningTotal) read() int64 {
	b, err := r.tx.Get(r.key)
	if err != nil || len(b) != 8 {
		return 0
	}
	return int64(binary.BigEndian.Uint64(b))
}

// Value returns the current total.
func (r *RunningTotal) Value() int64 { return r.read() }

func encodeInt64(v int64) []byte {
	return binary.BigEndian.AppendUint64(nil, uint64(v))
}
