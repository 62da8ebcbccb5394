package builder

import (
	"context"

	"github.com/drpcorg/onlinebuild/pk"
	"github.com/drpcorg/onlinebuild/rangeset"
	"github.com/drpcorg/onlinebuild/recordstore"
)

// Rebuild is the Single-Transaction Rebuild (spec §4.G): clears the index
// and its BRS, then rebuilds the whole records range within the caller's
// own transaction. No retry, no rate limit — intended for stores small
// enough that the whole thing fits in one transaction; if it doesn't, the
// underlying KV store fails the commit and the caller falls back to the
// online path.
func Rebuild(
	ctx context.Context,
	store recordstore.Store,
	index recordstore.IndexIdentity,
	recordsRange pk.Interval,
	rts recordstore.RecordTypeSet,
	limit int,
	m *Metrics,
) error {
	if err := store.ClearIndexData(index); err != nil {
		return err
	}

	rs := rangeset.New(store.IndexRangeSubspace(index))
	rs.Clear(store.Transaction())
	if _, err := rs.Insert(ctx, store.Transaction(), pk.NegInf, pk.PosInf); err != nil {
		return err
	}

	low := recordsRange.Begin
	for {
		outcome, err := BuildChunk(ctx, store, index, recordsRange, pk.Interval{Begin: low, End: recordsRange.End}, rts, limit, true, m)
		if err != nil {
			return err
		}
		if outcome.Kind != Partial {
			return nil
		}
		low = outcome.Next
	}
}
