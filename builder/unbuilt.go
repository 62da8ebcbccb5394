package builder

import (
	"context"

	"github.com/drpcorg/onlinebuild/pk"
	"github.com/drpcorg/onlinebuild/rangeset"
	"github.com/drpcorg/onlinebuild/recordstore"
)

// BuildUnbuilt composes BuildChunk with a BRS insert inside one transaction
// (spec §4.C). It returns the real end of what got built — which may be
// short of end if the chunk hit the row limit — or a *RangeAlreadyBuiltError
// if BRS.Insert found the interval already fully covered.
func BuildUnbuilt(
	ctx context.Context,
	store recordstore.Store,
	index recordstore.IndexIdentity,
	recordsRange pk.Interval,
	rts recordstore.RecordTypeSet,
	begin, end pk.Key,
	limit int,
	metrics *Metrics,
) (pk.Key, error) {
	outcome, err := BuildChunk(ctx, store, index, recordsRange, pk.Interval{Begin: begin, End: end}, rts, limit, true, metrics)
	if err != nil {
		return pk.Key{}, err
	}

	realEnd := end
	if outcome.Kind == Partial {
		realEnd = outcome.Next
	}

	rs := rangeset.New(store.IndexRangeSubspace(index))
	changed, err := rs.Insert(ctx, store.Transaction(), begin, realEnd)
	if err != nil {
		return pk.Key{}, err
	}
	if !changed {
		return pk.Key{}, &RangeAlreadyBuiltError{Begin: begin, End: end}
	}
	return realEnd, nil
}
